package store

import (
	"context"
	"fmt"
)

// UpsertDaySummaries writes one day's totals as a single atomic batch.
func (s *Store) UpsertDaySummaries(ctx context.Context, username, day string, totals []TimerTotal) error {
	if len(totals) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx Tx) error {
		return tx.UpsertDaySummaries(ctx, username, day, totals)
	})
}

func (s *Store) ListDaySummaries(ctx context.Context, username, from, to string) ([]DaySummary, error) {
	rows, err := s.query(ctx, `
		SELECT id, username, day_date, timer_id, total_seconds, created_at
		FROM day_summaries
		WHERE username = ? AND day_date >= ? AND day_date <= ?
		ORDER BY day_date, timer_id`,
		username, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list day summaries: %w", err)
	}
	defer rows.Close()

	var summaries []DaySummary
	for rows.Next() {
		var ds DaySummary
		var createdAt string
		if err := rows.Scan(&ds.ID, &ds.Username, &ds.DayDate, &ds.TimerID, &ds.TotalSeconds, &createdAt); err != nil {
			return nil, err
		}
		ds.CreatedAt = parseTime(createdAt)
		summaries = append(summaries, ds)
	}
	return summaries, rows.Err()
}
