package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/sadopc/coursetimers/internal/store"
)

// stampLayout keeps the millisecond that end-of-day cuts land on.
const stampLayout = "2006-01-02T15:04:05.000Z07:00"

var csvHeader = []string{"ID", "Timer", "Day", "Weekday", "Start", "End", "Duration (s)", "Duration", "Timezone"}

var weekdays = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func ToCSV(sessions []store.Session, timers map[string]*store.Timer, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()
	return WriteCSV(f, sessions, timers)
}

// WriteCSV writes one row per session. Open sessions have an empty End and
// a zero duration.
func WriteCSV(out io.Writer, sessions []store.Session, timers map[string]*store.Timer) error {
	w := csv.NewWriter(out)

	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, se := range sessions {
		endStr := ""
		if se.EndAt != nil {
			endStr = se.EndAt.UTC().Format(stampLayout)
		}
		row := []string{
			se.ID,
			timerName(timers, se.TimerID),
			se.DayDate,
			weekdayName(se.DayOfWeek),
			se.StartAt.UTC().Format(stampLayout),
			endStr,
			strconv.FormatInt(se.Duration(), 10),
			formatDuration(se.Duration()),
			se.ClientTZ,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func timerName(timers map[string]*store.Timer, id string) string {
	if t, ok := timers[id]; ok {
		return t.Name
	}
	return "Unknown"
}

func weekdayName(i int) string {
	if i < 0 || i > 6 {
		return ""
	}
	return weekdays[i]
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// TimerIndex keys timers by id for the exporters.
func TimerIndex(timers []store.Timer) map[string]*store.Timer {
	idx := make(map[string]*store.Timer, len(timers))
	for i := range timers {
		idx[timers[i].ID] = &timers[i]
	}
	return idx
}

func exportedAt(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}
