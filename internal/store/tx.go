package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tx is the set of writes that must commit together with the read of a
// user's open session.
type Tx interface {
	// LockUser serializes this transaction against others for the same user.
	LockUser(ctx context.Context, username string) error
	// ActiveSession re-reads the open session under the lock.
	ActiveSession(ctx context.Context, username string) (*Session, error)
	InsertSession(ctx context.Context, se *Session) error
	CloseSession(ctx context.Context, id string, endAt time.Time, durationSeconds int64) error
	IncrementCycleTotal(ctx context.Context, timerID string, deltaSeconds int64) error
	ResetCycleTotals(ctx context.Context, username string) error
	UpsertDaySummaries(ctx context.Context, username, day string, totals []TimerTotal) error
}

type sqlTx struct {
	tx      *sql.Tx
	dialect dialect
	stamp   func() string
}

// WithTx runs fn in a transaction, committing only if fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx, dialect: s.dialect, stamp: s.stamp}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.rebind(query), args...)
}

func (t *sqlTx) LockUser(ctx context.Context, username string) error {
	query := t.dialect.rebind(t.dialect.lockUserQuery())
	if t.dialect == dialectSQLite {
		if _, err := t.tx.ExecContext(ctx, query, username); err != nil {
			return fmt.Errorf("lock user %q: %w", username, err)
		}
		return nil
	}
	rows, err := t.tx.QueryContext(ctx, query, username)
	if err != nil {
		return fmt.Errorf("lock user %q: %w", username, err)
	}
	return rows.Close()
}

func (t *sqlTx) ActiveSession(ctx context.Context, username string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE username = ? AND end_at IS NULL` + t.dialect.forUpdate()
	se, err := scanSession(t.tx.QueryRowContext(ctx, t.dialect.rebind(query), username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock active session: %w", err)
	}
	return se, nil
}

// InsertSession stores se, filling in ID and CreatedAt. A second open session
// for the same user fails with ErrActiveSessionExists.
func (t *sqlTx) InsertSession(ctx context.Context, se *Session) error {
	if se.ID == "" {
		se.ID = uuid.NewString()
	}
	created := t.stamp()
	var endAt any
	if se.EndAt != nil {
		endAt = formatTime(*se.EndAt)
	}
	var duration any
	if se.DurationSeconds != nil {
		duration = *se.DurationSeconds
	}
	_, err := t.exec(ctx,
		`INSERT INTO sessions (id, username, timer_id, start_at, end_at, duration_seconds, client_tz, day_date, day_of_week, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		se.ID, se.Username, se.TimerID, formatTime(se.StartAt), endAt, duration,
		se.ClientTZ, se.DayDate, se.DayOfWeek, created,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("start session: %w", ErrActiveSessionExists)
	}
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	se.CreatedAt = parseTime(created)
	return nil
}

func (t *sqlTx) CloseSession(ctx context.Context, id string, endAt time.Time, durationSeconds int64) error {
	res, err := t.exec(ctx,
		`UPDATE sessions SET end_at = ?, duration_seconds = ? WHERE id = ? AND end_at IS NULL`,
		formatTime(endAt), durationSeconds, id,
	)
	if err != nil {
		return fmt.Errorf("stop session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("stop session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

// IncrementCycleTotal is a no-op for non-positive deltas and missing timers.
func (t *sqlTx) IncrementCycleTotal(ctx context.Context, timerID string, deltaSeconds int64) error {
	if deltaSeconds <= 0 {
		return nil
	}
	_, err := t.exec(ctx,
		`UPDATE timers SET cycle_total_seconds = cycle_total_seconds + ? WHERE id = ?`,
		deltaSeconds, timerID,
	)
	if err != nil {
		return fmt.Errorf("increment cycle total: %w", err)
	}
	return nil
}

func (t *sqlTx) ResetCycleTotals(ctx context.Context, username string) error {
	_, err := t.exec(ctx, `UPDATE timers SET cycle_total_seconds = 0 WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("reset cycle totals: %w", err)
	}
	return nil
}

// UpsertDaySummaries overwrites, never adds to, existing summaries.
func (t *sqlTx) UpsertDaySummaries(ctx context.Context, username, day string, totals []TimerTotal) error {
	created := t.stamp()
	for _, total := range totals {
		_, err := t.exec(ctx,
			`INSERT INTO day_summaries (id, username, day_date, timer_id, total_seconds, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (username, day_date, timer_id) DO UPDATE SET total_seconds = excluded.total_seconds`,
			uuid.NewString(), username, day, total.TimerID, total.TotalSeconds, created,
		)
		if err != nil {
			return fmt.Errorf("upsert day summary %s/%s: %w", day, total.TimerID, err)
		}
	}
	return nil
}
