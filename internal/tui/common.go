package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sadopc/coursetimers/internal/clock"
	"github.com/sadopc/coursetimers/internal/ledger"
	"github.com/sadopc/coursetimers/internal/stats"
	"github.com/sadopc/coursetimers/internal/store"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewTimers
	viewReports
	viewSettings
)

var viewNames = []string{"Dashboard", "Timers", "Reports", "Settings"}

// env is shared by pointer between the views so a timezone change made in
// settings is seen everywhere.
type env struct {
	store  *store.Store
	ledger *ledger.Ledger
	stats  *stats.Engine
	clock  clock.Clock
	user   string
	tz     string
}

func (e *env) today() string {
	day, err := clock.Today(e.tz, e.clock.Now())
	if err != nil {
		return e.clock.Now().UTC().Format(clock.DayFormat)
	}
	return day
}

// --- Messages ---

type timerStartedMsg struct {
	result *ledger.StartResult
}

type timerStoppedMsg struct {
	session *store.Session
}

type dayEndedMsg struct {
	result *stats.EndDayResult
}

type totalsResetMsg struct{}

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	path string
}

func errStatus(err error) tea.Cmd {
	return func() tea.Msg { return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true} }
}

// --- Helpers ---

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatSeconds(secs int64) string {
	return formatDuration(time.Duration(secs) * time.Second)
}

func formatHours(secs int64) string {
	h := float64(secs) / 3600
	return fmt.Sprintf("%.1fh", h)
}

func timerIndex(timers []store.Timer) map[string]store.Timer {
	idx := make(map[string]store.Timer, len(timers))
	for _, t := range timers {
		idx[t.ID] = t
	}
	return idx
}
