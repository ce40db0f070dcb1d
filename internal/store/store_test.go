package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

var ctx = context.Background()

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// steppingClock makes every created_at stamp unique so ordering is stable.
func steppingClock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
}

func newUserTimer(t *testing.T, s *Store, username, name string) *Timer {
	t.Helper()
	if _, err := s.EnsureUser(ctx, username); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	timer, err := s.CreateTimer(ctx, username, name, "#22C55E", "book")
	if err != nil {
		t.Fatalf("create timer: %v", err)
	}
	return timer
}

// insertSession is a test helper that writes a session directly.
func insertSession(t *testing.T, s *Store, username, timerID, day string, start time.Time, durationSecs int64, closed bool) *Session {
	t.Helper()
	se := &Session{
		Username:  username,
		TimerID:   timerID,
		StartAt:   start,
		ClientTZ:  "UTC",
		DayDate:   day,
		DayOfWeek: 0,
	}
	if closed {
		end := start.Add(time.Duration(durationSecs) * time.Second)
		se.EndAt = &end
		se.DurationSeconds = &durationSecs
	}
	err := s.WithTx(ctx, func(tx Tx) error { return tx.InsertSession(ctx, se) })
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}
	return se
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != currentVersion {
		t.Fatalf("expected user_version %d, got %d", currentVersion, version)
	}
	if s.Backend() != "sqlite" {
		t.Fatalf("expected sqlite backend, got %s", s.Backend())
	}
}

func TestNewWithPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "coursetimers.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	newUserTimer(t, s, "jay", "BIO130")
	s.Close()

	// Reopen: data survives and migration is not re-run.
	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	timers, err := s2.ListTimers(ctx, "jay", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(timers) != 1 {
		t.Fatalf("expected 1 timer after reopen, got %d", len(timers))
	}
}

func TestIsPostgresDSN(t *testing.T) {
	if !IsPostgresDSN("postgres://localhost/db") || !IsPostgresDSN("postgresql://localhost/db") {
		t.Fatal("postgres URLs should select postgres")
	}
	if IsPostgresDSN("/tmp/coursetimers.db") {
		t.Fatal("file paths should select sqlite")
	}
}

func TestRebind(t *testing.T) {
	got := dialectPostgres.rebind(`SELECT a FROM t WHERE x = ? AND y = ?`)
	if got != `SELECT a FROM t WHERE x = $1 AND y = $2` {
		t.Fatalf("rebind = %q", got)
	}
	if dialectSQLite.rebind(`x = ?`) != `x = ?` {
		t.Fatal("sqlite queries should be left alone")
	}
}

func TestDefaultDBPath(t *testing.T) {
	path, err := DefaultDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "coursetimers.db" {
		t.Fatalf("unexpected default path %s", path)
	}
}

// ============================================================
// Users
// ============================================================

func TestEnsureUserCreatesOnce(t *testing.T) {
	s := newTestStore(t)
	u1, err := s.EnsureUser(ctx, "  jay  ")
	if err != nil {
		t.Fatal(err)
	}
	if u1.Username != "jay" {
		t.Fatalf("username should be trimmed, got %q", u1.Username)
	}
	u2, err := s.EnsureUser(ctx, "jay")
	if err != nil {
		t.Fatal(err)
	}
	if !u2.CreatedAt.Equal(u1.CreatedAt) {
		t.Fatal("second EnsureUser should return the existing row")
	}
}

func TestEnsureUserInvalid(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"", "   ", "abcdefghijklmnopqrstuvwxyz0123456"} {
		if _, err := s.EnsureUser(ctx, name); !errors.Is(err, ErrInvalidUsername) {
			t.Fatalf("%q: expected ErrInvalidUsername, got %v", name, err)
		}
	}
}

func TestDeleteUserCascades(t *testing.T) {
	s := newTestStore(t)
	timer := newUserTimer(t, s, "jay", "BIO130")
	insertSession(t, s, "jay", timer.ID, "2026-01-01", time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), 60, true)

	if err := s.DeleteUser(ctx, "jay"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetTimer(ctx, timer.ID); !errors.Is(err, ErrTimerNotFound) {
		t.Fatalf("timer should be gone, got %v", err)
	}
	sessions, _ := s.ListSessions(ctx, SessionFilter{Username: "jay"})
	if len(sessions) != 0 {
		t.Fatal("sessions should be gone")
	}
}

// ============================================================
// Timers
// ============================================================

func TestCreateAndGetTimer(t *testing.T) {
	s := newTestStore(t)
	timer := newUserTimer(t, s, "jay", "BIO130")
	if timer.ID == "" {
		t.Fatal("expected an id")
	}
	if timer.Name != "BIO130" || timer.Color != "#22C55E" || timer.Icon != "book" {
		t.Fatalf("unexpected timer: %+v", timer)
	}
	if timer.Archived || timer.CycleTotalSeconds != 0 {
		t.Fatal("new timer should be active with a zero cycle total")
	}

	byName, err := s.GetTimerByName(ctx, "jay", "BIO130")
	if err != nil {
		t.Fatal(err)
	}
	if byName.ID != timer.ID {
		t.Fatal("lookup by name returned a different timer")
	}
}

func TestGetTimerNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetTimer(ctx, "missing"); !errors.Is(err, ErrTimerNotFound) {
		t.Fatalf("expected ErrTimerNotFound, got %v", err)
	}
}

func TestCreateTimerDuplicateName(t *testing.T) {
	s := newTestStore(t)
	timer := newUserTimer(t, s, "jay", "BIO130")
	if err := s.ArchiveTimer(ctx, "jay", timer.ID); err != nil {
		t.Fatal(err)
	}
	// Archived timers still hold their name.
	_, err := s.CreateTimer(ctx, "jay", "BIO130", "#000", "x")
	if !errors.Is(err, ErrDuplicateTimerName) {
		t.Fatalf("expected ErrDuplicateTimerName, got %v", err)
	}
}

func TestCreateTimerSameNameDifferentUsers(t *testing.T) {
	s := newTestStore(t)
	newUserTimer(t, s, "jay", "BIO130")
	newUserTimer(t, s, "sam", "BIO130")
}

func TestCreateTimerInvalidFields(t *testing.T) {
	s := newTestStore(t)
	s.EnsureUser(ctx, "jay")
	if _, err := s.CreateTimer(ctx, "jay", "", "#000", "x"); !errors.Is(err, ErrInvalidTimerField) {
		t.Fatalf("expected ErrInvalidTimerField, got %v", err)
	}
}

func TestListTimers(t *testing.T) {
	s := newTestStore(t)
	s.SetNow(steppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	b := newUserTimer(t, s, "jay", "B")
	newUserTimer(t, s, "jay", "A")
	newUserTimer(t, s, "sam", "C")

	timers, err := s.ListTimers(ctx, "jay", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(timers) != 2 {
		t.Fatalf("expected 2 timers, got %d", len(timers))
	}
	// Ordered by creation, not by name.
	if timers[0].ID != b.ID {
		t.Fatalf("expected creation order, got %s first", timers[0].Name)
	}
}

func TestListTimersEmpty(t *testing.T) {
	s := newTestStore(t)
	timers, err := s.ListTimers(ctx, "nobody", false)
	if err != nil {
		t.Fatal(err)
	}
	if timers != nil {
		t.Fatalf("expected nil slice, got %d items", len(timers))
	}
}

func TestArchiveTimer(t *testing.T) {
	s := newTestStore(t)
	timer := newUserTimer(t, s, "jay", "Old")
	if err := s.ArchiveTimer(ctx, "jay", timer.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.ArchiveTimer(ctx, "jay", timer.ID); err != nil {
		t.Fatalf("second archive should be a no-op, got %v", err)
	}

	timers, _ := s.ListTimers(ctx, "jay", false)
	if len(timers) != 0 {
		t.Fatal("archived timer should be hidden")
	}
	timers, _ = s.ListTimers(ctx, "jay", true)
	if len(timers) != 1 || !timers[0].Archived {
		t.Fatal("archived timer should appear with includeArchived")
	}
}

func TestArchiveTimerWrongOwner(t *testing.T) {
	s := newTestStore(t)
	timer := newUserTimer(t, s, "jay", "Mine")
	if err := s.ArchiveTimer(ctx, "sam", timer.ID); !errors.Is(err, ErrTimerNotFound) {
		t.Fatalf("expected ErrTimerNotFound, got %v", err)
	}
}

func TestUpdateTimer(t *testing.T) {
	s := newTestStore(t)
	timer := newUserTimer(t, s, "jay", "Old")
	name, icon := "New", "flask"
	updated, err := s.UpdateTimer(ctx, "jay", timer.ID, TimerUpdate{Name: &name, Icon: &icon})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "New" || updated.Icon != "flask" || updated.Color != timer.Color {
		t.Fatalf("update failed: %+v", updated)
	}
}

func TestUpdateTimerDuplicateName(t *testing.T) {
	s := newTestStore(t)
	newUserTimer(t, s, "jay", "A")
	b := newUserTimer(t, s, "jay", "B")
	name := "A"
	if _, err := s.UpdateTimer(ctx, "jay", b.ID, TimerUpdate{Name: &name}); !errors.Is(err, ErrDuplicateTimerName) {
		t.Fatalf("expected ErrDuplicateTimerName, got %v", err)
	}
}

// ============================================================
// Sessions
// ============================================================

func TestOneOpenSessionPerUser(t *testing.T) {
	s := newTestStore(t)
	a := newUserTimer(t, s, "jay", "A")
	b := newUserTimer(t, s, "jay", "B")
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	insertSession(t, s, "jay", a.ID, "2026-01-01", start, 0, false)

	err := s.WithTx(ctx, func(tx Tx) error {
		return tx.InsertSession(ctx, &Session{
			Username: "jay", TimerID: b.ID, StartAt: start, ClientTZ: "UTC", DayDate: "2026-01-01",
		})
	})
	if !errors.Is(err, ErrActiveSessionExists) {
		t.Fatalf("expected ErrActiveSessionExists, got %v", err)
	}

	// Another user is unaffected.
	c := newUserTimer(t, s, "sam", "C")
	insertSession(t, s, "sam", c.ID, "2026-01-01", start, 0, false)
}

func TestGetActiveSession(t *testing.T) {
	s := newTestStore(t)
	timer := newUserTimer(t, s, "jay", "A")

	active, err := s.GetActiveSession(ctx, "jay")
	if err != nil {
		t.Fatal(err)
	}
	if active != nil {
		t.Fatal("expected no active session")
	}

	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	se := insertSession(t, s, "jay", timer.ID, "2026-01-01", start, 0, false)
	active, err = s.GetActiveSession(ctx, "jay")
	if err != nil {
		t.Fatal(err)
	}
	if active == nil || active.ID != se.ID {
		t.Fatal("expected the inserted session to be active")
	}
	if !active.Open() || active.DurationSeconds != nil {
		t.Fatal("active session should be open with no duration")
	}
	if !active.StartAt.Equal(start) {
		t.Fatalf("start_at round trip: got %s", active.StartAt)
	}
}

func TestCloseSessionKeepsMilliseconds(t *testing.T) {
	s := newTestStore(t)
	timer := newUserTimer(t, s, "jay", "A")
	start := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	se := insertSession(t, s, "jay", timer.ID, "2026-01-01", start, 0, false)

	end := time.Date(2026, 1, 2, 4, 59, 59, 999_000_000, time.UTC)
	err := s.WithTx(ctx, func(tx Tx) error { return tx.CloseSession(ctx, se.ID, end, 21599) })
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.GetSession(ctx, se.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.EndAt == nil || !got.EndAt.Equal(end) {
		t.Fatalf("end_at = %v, want %s", got.EndAt, end)
	}
	if got.Duration() != 21599 {
		t.Fatalf("duration = %d", got.Duration())
	}
}

func TestCloseSessionTwiceFails(t *testing.T) {
	s := newTestStore(t)
	timer := newUserTimer(t, s, "jay", "A")
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	se := insertSession(t, s, "jay", timer.ID, "2026-01-01", start, 60, true)
	err := s.WithTx(ctx, func(tx Tx) error { return tx.CloseSession(ctx, se.ID, start, 0) })
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEndBeforeStartRejected(t *testing.T) {
	s := newTestStore(t)
	timer := newUserTimer(t, s, "jay", "A")
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	se := insertSession(t, s, "jay", timer.ID, "2026-01-01", start, 0, false)
	err := s.WithTx(ctx, func(tx Tx) error { return tx.CloseSession(ctx, se.ID, start.Add(-time.Second), 0) })
	if err == nil {
		t.Fatal("expected the end >= start check to fail")
	}
}

func TestWithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	timer := newUserTimer(t, s, "jay", "A")
	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx Tx) error {
		if err := tx.IncrementCycleTotal(ctx, timer.ID, 50); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := s.GetTimer(ctx, timer.ID)
	if got.CycleTotalSeconds != 0 {
		t.Fatal("failed transaction should leave no partial effect")
	}
}

func TestListSessions(t *testing.T) {
	s := newTestStore(t)
	a := newUserTimer(t, s, "jay", "A")
	b := newUserTimer(t, s, "jay", "B")
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	insertSession(t, s, "jay", a.ID, "2026-01-02", base.Add(24*time.Hour), 60, true)
	insertSession(t, s, "jay", b.ID, "2026-01-01", base, 60, true)
	insertSession(t, s, "jay", a.ID, "2026-01-05", base.Add(96*time.Hour), 60, true)

	sessions, err := s.ListSessions(ctx, SessionFilter{Username: "jay", From: "2026-01-01", To: "2026-01-02"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].DayDate != "2026-01-01" {
		t.Fatal("sessions should be ordered by start_at ascending")
	}

	sessions, _ = s.ListSessions(ctx, SessionFilter{Username: "jay", TimerID: a.ID})
	if len(sessions) != 2 {
		t.Fatalf("timer filter: expected 2, got %d", len(sessions))
	}

	sessions, _ = s.ListSessions(ctx, SessionFilter{Username: "jay", Limit: 1})
	if len(sessions) != 1 {
		t.Fatal("limit should be applied")
	}
}

func TestDayTotalsExcludesOpen(t *testing.T) {
	s := newTestStore(t)
	a := newUserTimer(t, s, "jay", "A")
	b := newUserTimer(t, s, "jay", "B")
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	insertSession(t, s, "jay", a.ID, "2026-01-01", base, 100, true)
	insertSession(t, s, "jay", a.ID, "2026-01-01", base.Add(time.Hour), 50, true)
	insertSession(t, s, "jay", b.ID, "2026-01-01", base.Add(2*time.Hour), 0, false)

	totals, err := s.DayTotals(ctx, "jay", "2026-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(totals) != 1 {
		t.Fatalf("expected only the closed timer, got %+v", totals)
	}
	if totals[0].TimerID != a.ID || totals[0].TotalSeconds != 150 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

func TestDailyAndRangeTotals(t *testing.T) {
	s := newTestStore(t)
	a := newUserTimer(t, s, "jay", "A")
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	insertSession(t, s, "jay", a.ID, "2026-01-01", base, 100, true)
	insertSession(t, s, "jay", a.ID, "2026-01-03", base.Add(48*time.Hour), 200, true)
	insertSession(t, s, "jay", a.ID, "2026-01-09", base.Add(192*time.Hour), 400, true)

	daily, err := s.DailyTotals(ctx, "jay", "2026-01-01", "2026-01-07")
	if err != nil {
		t.Fatal(err)
	}
	if len(daily) != 2 || daily[1].DayDate != "2026-01-03" || daily[1].TotalSeconds != 200 {
		t.Fatalf("unexpected daily totals %+v", daily)
	}

	rng, err := s.RangeTotals(ctx, "jay", "2026-01-01", "2026-01-07")
	if err != nil {
		t.Fatal(err)
	}
	if rng[a.ID] != 300 {
		t.Fatalf("range total = %d, want 300", rng[a.ID])
	}
}

// ============================================================
// Cycle totals
// ============================================================

func TestIncrementAndResetCycleTotals(t *testing.T) {
	s := newTestStore(t)
	a := newUserTimer(t, s, "jay", "A")
	b := newUserTimer(t, s, "jay", "B")
	other := newUserTimer(t, s, "sam", "C")

	err := s.WithTx(ctx, func(tx Tx) error {
		for _, id := range []string{a.ID, b.ID, other.ID} {
			if err := tx.IncrementCycleTotal(ctx, id, 30); err != nil {
				return err
			}
		}
		// Non-positive deltas and unknown timers are ignored.
		if err := tx.IncrementCycleTotal(ctx, a.ID, -10); err != nil {
			return err
		}
		return tx.IncrementCycleTotal(ctx, "missing", 10)
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetTimer(ctx, a.ID)
	if got.CycleTotalSeconds != 30 {
		t.Fatalf("cycle total = %d, want 30", got.CycleTotalSeconds)
	}

	if err := s.WithTx(ctx, func(tx Tx) error { return tx.ResetCycleTotals(ctx, "jay") }); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetTimer(ctx, b.ID)
	if got.CycleTotalSeconds != 0 {
		t.Fatal("reset should zero the user's timers")
	}
	got, _ = s.GetTimer(ctx, other.ID)
	if got.CycleTotalSeconds != 30 {
		t.Fatal("reset must not touch other users")
	}
}

// ============================================================
// Day summaries
// ============================================================

func TestUpsertDaySummariesIdempotent(t *testing.T) {
	s := newTestStore(t)
	a := newUserTimer(t, s, "jay", "A")
	totals := []TimerTotal{{TimerID: a.ID, TotalSeconds: 120}}

	for i := 0; i < 2; i++ {
		if err := s.UpsertDaySummaries(ctx, "jay", "2026-01-01", totals); err != nil {
			t.Fatal(err)
		}
	}
	summaries, err := s.ListDaySummaries(ctx, "jay", "2026-01-01", "2026-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].TotalSeconds != 120 {
		t.Fatalf("expected one row of 120, got %+v", summaries)
	}

	totals[0].TotalSeconds = 90
	s.UpsertDaySummaries(ctx, "jay", "2026-01-01", totals)
	summaries, _ = s.ListDaySummaries(ctx, "jay", "2026-01-01", "2026-01-01")
	if summaries[0].TotalSeconds != 90 {
		t.Fatalf("latest value should win, got %d", summaries[0].TotalSeconds)
	}
}

func TestUpsertDaySummariesEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertDaySummaries(ctx, "jay", "2026-01-01", nil); err != nil {
		t.Fatal(err)
	}
}

// ============================================================
// Settings
// ============================================================

func TestSettingsDefaults(t *testing.T) {
	s := newTestStore(t)
	s.EnsureUser(ctx, "jay")
	v, err := s.GetSetting(ctx, "jay", SettingAveragesDays)
	if err != nil {
		t.Fatal(err)
	}
	if v != "14" {
		t.Fatalf("averages_days default = %q, want 14", v)
	}
}

func TestSetSettingOverwrite(t *testing.T) {
	s := newTestStore(t)
	s.EnsureUser(ctx, "jay")
	s.SetSetting(ctx, "jay", SettingTimezone, "America/Toronto")
	s.SetSetting(ctx, "jay", SettingTimezone, "Europe/Berlin")
	v, _ := s.GetSetting(ctx, "jay", SettingTimezone)
	if v != "Europe/Berlin" {
		t.Fatalf("expected overwrite, got %q", v)
	}
}

func TestGetSettingNotFound(t *testing.T) {
	s := newTestStore(t)
	s.EnsureUser(ctx, "jay")
	if _, err := s.GetSetting(ctx, "jay", "nonexistent"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestGetAllSettings(t *testing.T) {
	s := newTestStore(t)
	s.EnsureUser(ctx, "jay")
	s.SetSetting(ctx, "jay", SettingDailyGoal, "3600")
	settings, err := s.GetAllSettings(ctx, "jay")
	if err != nil {
		t.Fatal(err)
	}
	if len(settings) != 3 {
		t.Fatalf("expected 3 settings, got %d", len(settings))
	}
	for _, st := range settings {
		if st.Key == SettingDailyGoal && st.Value != "3600" {
			t.Fatalf("stored value should override default, got %q", st.Value)
		}
	}
}

// ============================================================
// Foreign keys
// ============================================================

func TestForeignKeyTimerUser(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateTimer(ctx, "ghost", "A", "#000", "x"); err == nil {
		t.Fatal("expected foreign key error for unknown user")
	}
}

func TestCloseStore(t *testing.T) {
	s, _ := NewMemory()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
