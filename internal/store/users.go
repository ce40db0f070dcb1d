package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// NormalizeUsername trims a handle and checks its length.
func NormalizeUsername(username string) (string, error) {
	u := strings.TrimSpace(username)
	if n := utf8.RuneCountInString(u); n < 1 || n > 32 {
		return "", ErrInvalidUsername
	}
	return u, nil
}

// EnsureUser returns the user, creating the row on first sight. A concurrent
// create of the same handle is not an error.
func (s *Store) EnsureUser(ctx context.Context, username string) (*User, error) {
	u, err := NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if user, err := s.GetUser(ctx, u); err == nil {
		return user, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	_, err = s.exec(ctx, `INSERT INTO users (username, created_at) VALUES (?, ?)`, u, s.stamp())
	if err != nil && !isUniqueViolation(err) {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUser(ctx, u)
}

func (s *Store) GetUser(ctx context.Context, username string) (*User, error) {
	user := &User{}
	var createdAt string
	err := s.queryRow(ctx, `SELECT username, created_at FROM users WHERE username = ?`, username).
		Scan(&user.Username, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user %q: %w", username, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	user.CreatedAt = parseTime(createdAt)
	return user, nil
}

// DeleteUser removes the user and, by cascade, everything it owns.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	_, err := s.exec(ctx, `DELETE FROM users WHERE username = ?`, username)
	return err
}
