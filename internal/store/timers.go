package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

const timerColumns = `id, username, name, color, icon, archived, cycle_total_seconds, created_at, updated_at`

func validField(v string) bool {
	n := utf8.RuneCountInString(v)
	return n >= 1 && n <= 32
}

func (s *Store) CreateTimer(ctx context.Context, username, name, color, icon string) (*Timer, error) {
	if !validField(name) || !validField(color) || !validField(icon) {
		return nil, ErrInvalidTimerField
	}
	id := uuid.NewString()
	now := s.stamp()
	_, err := s.exec(ctx,
		`INSERT INTO timers (id, username, name, color, icon, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, username, name, color, icon, now, now,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert timer %q: %w", name, ErrDuplicateTimerName)
	}
	if err != nil {
		return nil, fmt.Errorf("insert timer: %w", err)
	}
	return s.GetTimer(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTimer(row rowScanner) (*Timer, error) {
	t := &Timer{}
	var createdAt, updatedAt string
	var archived int
	if err := row.Scan(&t.ID, &t.Username, &t.Name, &t.Color, &t.Icon, &archived, &t.CycleTotalSeconds, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.Archived = archived == 1
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func (s *Store) GetTimer(ctx context.Context, id string) (*Timer, error) {
	t, err := scanTimer(s.queryRow(ctx, `SELECT `+timerColumns+` FROM timers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get timer %s: %w", id, ErrTimerNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get timer %s: %w", id, err)
	}
	return t, nil
}

// GetTimerByName looks a timer up by its per-user unique name.
func (s *Store) GetTimerByName(ctx context.Context, username, name string) (*Timer, error) {
	t, err := scanTimer(s.queryRow(ctx,
		`SELECT `+timerColumns+` FROM timers WHERE username = ? AND name = ?`, username, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get timer %q: %w", name, ErrTimerNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get timer %q: %w", name, err)
	}
	return t, nil
}

func (s *Store) ListTimers(ctx context.Context, username string, includeArchived bool) ([]Timer, error) {
	query := `SELECT ` + timerColumns + ` FROM timers WHERE username = ?`
	if !includeArchived {
		query += ` AND archived = 0`
	}
	query += ` ORDER BY created_at, name`

	rows, err := s.query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	defer rows.Close()

	var timers []Timer
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, err
		}
		timers = append(timers, *t)
	}
	return timers, rows.Err()
}

// UpdateTimer applies the non-nil fields of u to a timer owned by username.
func (s *Store) UpdateTimer(ctx context.Context, username, id string, u TimerUpdate) (*Timer, error) {
	t, err := s.GetTimer(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Username != username {
		return nil, fmt.Errorf("update timer %s: %w", id, ErrTimerNotFound)
	}

	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Color != nil {
		t.Color = *u.Color
	}
	if u.Icon != nil {
		t.Icon = *u.Icon
	}
	if u.Archived != nil {
		t.Archived = *u.Archived
	}
	if !validField(t.Name) || !validField(t.Color) || !validField(t.Icon) {
		return nil, ErrInvalidTimerField
	}

	archived := 0
	if t.Archived {
		archived = 1
	}
	_, err = s.exec(ctx,
		`UPDATE timers SET name = ?, color = ?, icon = ?, archived = ?, updated_at = ? WHERE id = ?`,
		t.Name, t.Color, t.Icon, archived, s.stamp(), id,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("update timer %q: %w", t.Name, ErrDuplicateTimerName)
	}
	if err != nil {
		return nil, fmt.Errorf("update timer: %w", err)
	}
	return s.GetTimer(ctx, id)
}

// ArchiveTimer hides a timer owned by username. Archiving twice is fine.
func (s *Store) ArchiveTimer(ctx context.Context, username, id string) error {
	t, err := s.GetTimer(ctx, id)
	if err != nil {
		return err
	}
	if t.Username != username {
		return fmt.Errorf("archive timer %s: %w", id, ErrTimerNotFound)
	}
	if t.Archived {
		return nil
	}
	_, err = s.exec(ctx, `UPDATE timers SET archived = 1, updated_at = ? WHERE id = ?`, s.stamp(), id)
	return err
}
