package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const sessionColumns = `id, username, timer_id, start_at, end_at, duration_seconds, client_tz, day_date, day_of_week, created_at`

func scanSession(row rowScanner) (*Session, error) {
	se := &Session{}
	var startAt, createdAt string
	var endAt sql.NullString
	var duration sql.NullInt64
	err := row.Scan(&se.ID, &se.Username, &se.TimerID, &startAt, &endAt, &duration,
		&se.ClientTZ, &se.DayDate, &se.DayOfWeek, &createdAt)
	if err != nil {
		return nil, err
	}
	se.StartAt = parseTime(startAt)
	if endAt.Valid {
		t := parseTime(endAt.String)
		se.EndAt = &t
	}
	if duration.Valid {
		se.DurationSeconds = &duration.Int64
	}
	se.CreatedAt = parseTime(createdAt)
	return se, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	se, err := scanSession(s.queryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return se, nil
}

// GetActiveSession returns the user's open session, or nil when idle.
func (s *Store) GetActiveSession(ctx context.Context, username string) (*Session, error) {
	se, err := scanSession(s.queryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE username = ? AND end_at IS NULL`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	return se, nil
}

// ListSessions returns sessions ordered by start time.
func (s *Store) ListSessions(ctx context.Context, f SessionFilter) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE username = ?`
	args := []any{f.Username}

	if f.From != "" {
		query += ` AND day_date >= ?`
		args = append(args, f.From)
	}
	if f.To != "" {
		query += ` AND day_date <= ?`
		args = append(args, f.To)
	}
	if f.TimerID != "" {
		query += ` AND timer_id = ?`
		args = append(args, f.TimerID)
	}
	query += ` ORDER BY start_at ASC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		se, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *se)
	}
	return sessions, rows.Err()
}

// DayTotals sums closed sessions of one local day per timer.
func (s *Store) DayTotals(ctx context.Context, username, day string) ([]TimerTotal, error) {
	rows, err := s.query(ctx, `
		SELECT timer_id, COALESCE(SUM(duration_seconds), 0)
		FROM sessions
		WHERE username = ? AND day_date = ? AND end_at IS NOT NULL
		GROUP BY timer_id
		ORDER BY timer_id`,
		username, day,
	)
	if err != nil {
		return nil, fmt.Errorf("day totals: %w", err)
	}
	defer rows.Close()

	var totals []TimerTotal
	for rows.Next() {
		var t TimerTotal
		if err := rows.Scan(&t.TimerID, &t.TotalSeconds); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// DailyTotals sums closed sessions per (day, timer) for days in [from, to].
func (s *Store) DailyTotals(ctx context.Context, username, from, to string) ([]DayTimerTotal, error) {
	rows, err := s.query(ctx, `
		SELECT day_date, timer_id, COALESCE(SUM(duration_seconds), 0)
		FROM sessions
		WHERE username = ? AND day_date >= ? AND day_date <= ? AND end_at IS NOT NULL
		GROUP BY day_date, timer_id
		ORDER BY day_date, timer_id`,
		username, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	var totals []DayTimerTotal
	for rows.Next() {
		var t DayTimerTotal
		if err := rows.Scan(&t.DayDate, &t.TimerID, &t.TotalSeconds); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// RangeTotals sums closed sessions per timer for days in [from, to].
func (s *Store) RangeTotals(ctx context.Context, username, from, to string) (map[string]int64, error) {
	rows, err := s.query(ctx, `
		SELECT timer_id, COALESCE(SUM(duration_seconds), 0)
		FROM sessions
		WHERE username = ? AND day_date >= ? AND day_date <= ? AND end_at IS NOT NULL
		GROUP BY timer_id`,
		username, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("range totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var id string
		var total int64
		if err := rows.Scan(&id, &total); err != nil {
			return nil, err
		}
		totals[id] = total
	}
	return totals, rows.Err()
}
