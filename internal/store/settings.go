package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

const (
	SettingTimezone     = "timezone"
	SettingAveragesDays = "averages_days"
	SettingDailyGoal    = "daily_goal"
)

// DefaultSettings are returned for keys a user never set.
var DefaultSettings = map[string]string{
	SettingTimezone:     "UTC",
	SettingAveragesDays: "14",
	SettingDailyGoal:    "7200",
}

func (s *Store) GetSetting(ctx context.Context, username, key string) (string, error) {
	var value string
	err := s.queryRow(ctx, `SELECT value FROM settings WHERE username = ? AND key = ?`, username, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		if v, ok := DefaultSettings[key]; ok {
			return v, nil
		}
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetSetting(ctx context.Context, username, key, value string) error {
	_, err := s.exec(ctx,
		`INSERT INTO settings (username, key, value) VALUES (?, ?, ?) ON CONFLICT (username, key) DO UPDATE SET value = excluded.value`,
		username, key, value,
	)
	return err
}

// GetAllSettings merges stored values over DefaultSettings.
func (s *Store) GetAllSettings(ctx context.Context, username string) ([]Setting, error) {
	rows, err := s.query(ctx, `SELECT key, value FROM settings WHERE username = ? ORDER BY key`, username)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	stored := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		stored[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var settings []Setting
	for _, k := range []string{SettingAveragesDays, SettingDailyGoal, SettingTimezone} {
		v, ok := stored[k]
		if !ok {
			v = DefaultSettings[k]
		}
		settings = append(settings, Setting{Key: k, Value: v})
		delete(stored, k)
	}
	extra := make([]string, 0, len(stored))
	for k := range stored {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		settings = append(settings, Setting{Key: k, Value: stored[k]})
	}
	return settings, nil
}
