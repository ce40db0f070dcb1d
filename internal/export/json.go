package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sadopc/coursetimers/internal/store"
)

type jsonExport struct {
	ExportedAt string        `json:"exported_at"`
	Count      int           `json:"count"`
	Sessions   []jsonSession `json:"sessions"`
}

type jsonSession struct {
	ID          string `json:"id"`
	Timer       string `json:"timer"`
	TimerID     string `json:"timer_id"`
	DayDate     string `json:"day_date"`
	DayOfWeek   int    `json:"day_of_week"`
	StartAt     string `json:"start_at"`
	EndAt       string `json:"end_at,omitempty"`
	DurationSec int64  `json:"duration_seconds"`
	Duration    string `json:"duration"`
	ClientTZ    string `json:"client_tz"`
}

func ToJSON(sessions []store.Session, timers map[string]*store.Timer, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	defer f.Close()
	return WriteJSON(f, sessions, timers)
}

func WriteJSON(w io.Writer, sessions []store.Session, timers map[string]*store.Timer) error {
	export := jsonExport{
		ExportedAt: exportedAt(time.Now()),
		Count:      len(sessions),
	}

	for _, se := range sessions {
		endStr := ""
		if se.EndAt != nil {
			endStr = se.EndAt.UTC().Format(stampLayout)
		}
		export.Sessions = append(export.Sessions, jsonSession{
			ID:          se.ID,
			Timer:       timerName(timers, se.TimerID),
			TimerID:     se.TimerID,
			DayDate:     se.DayDate,
			DayOfWeek:   se.DayOfWeek,
			StartAt:     se.StartAt.UTC().Format(stampLayout),
			EndAt:       endStr,
			DurationSec: se.Duration(),
			Duration:    formatDuration(se.Duration()),
			ClientTZ:    se.ClientTZ,
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
