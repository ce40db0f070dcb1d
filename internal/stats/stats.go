// Package stats derives day, week and rolling-average totals from closed
// sessions, and finalizes days into stored summaries.
package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/sadopc/coursetimers/internal/clock"
	"github.com/sadopc/coursetimers/internal/logger"
	"github.com/sadopc/coursetimers/internal/store"
)

const (
	DefaultWindowDays = 14
	MaxWindowDays     = 365
)

var (
	ErrInvalidRange  = errors.New("from day is after to day")
	ErrInvalidWindow = fmt.Errorf("averages window must be between 1 and %d days", MaxWindowDays)
)

// Repository is the read side of the store plus the summary upsert.
type Repository interface {
	DayTotals(ctx context.Context, username, day string) ([]store.TimerTotal, error)
	DailyTotals(ctx context.Context, username, from, to string) ([]store.DayTimerTotal, error)
	RangeTotals(ctx context.Context, username, from, to string) (map[string]int64, error)
	ListTimers(ctx context.Context, username string, includeArchived bool) ([]store.Timer, error)
	ListSessions(ctx context.Context, f store.SessionFilter) ([]store.Session, error)
	UpsertDaySummaries(ctx context.Context, username, day string, totals []store.TimerTotal) error
}

// DayStopper closes the open session when a day is ended. *ledger.Ledger
// satisfies it.
type DayStopper interface {
	StopForDay(ctx context.Context, username, tz, day string) (*store.Session, error)
}

type Engine struct {
	repo    Repository
	stopper DayStopper
	clock   clock.Clock
}

func New(repo Repository, stopper DayStopper, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	return &Engine{repo: repo, stopper: stopper, clock: clk}
}

// DayBreakdown is the per-timer totals of one local day.
type DayBreakdown struct {
	Day    string
	Totals []store.TimerTotal
}

type TimerAverage struct {
	TimerID          string
	AvgSecondsPerDay int64
}

// EndDayResult is what ending a day reports back.
type EndDayResult struct {
	EndedDay  string
	Finalized bool
	Stopped   *store.Session
	Totals    []store.TimerTotal
}

// DayTotals sums closed sessions of day by timer. Open sessions are left out.
func (e *Engine) DayTotals(ctx context.Context, username, day string) ([]store.TimerTotal, error) {
	if _, err := clock.ParseDay(day); err != nil {
		return nil, err
	}
	totals, err := e.repo.DayTotals(ctx, username, day)
	if err != nil {
		return nil, err
	}
	if totals == nil {
		totals = []store.TimerTotal{}
	}
	return totals, nil
}

// FinalizeDay stores totals as the summaries of day, replacing earlier ones.
func (e *Engine) FinalizeDay(ctx context.Context, username, day string, totals []store.TimerTotal) error {
	if _, err := clock.ParseDay(day); err != nil {
		return err
	}
	if err := e.repo.UpsertDaySummaries(ctx, username, day, totals); err != nil {
		return fmt.Errorf("finalize %s: %w", day, err)
	}
	return nil
}

// EndDay stops the running session for day and then finalizes day, so the
// session just closed is part of the totals.
func (e *Engine) EndDay(ctx context.Context, username, tz, day string) (*EndDayResult, error) {
	if _, err := clock.ParseDay(day); err != nil {
		return nil, err
	}
	stopped, err := e.stopper.StopForDay(ctx, username, tz, day)
	if err != nil {
		return nil, err
	}
	totals, err := e.DayTotals(ctx, username, day)
	if err != nil {
		return nil, err
	}
	if err := e.FinalizeDay(ctx, username, day, totals); err != nil {
		return nil, err
	}
	logger.Debug("ended day", "user", username, "day", day, "timers", len(totals))
	return &EndDayResult{EndedDay: day, Finalized: true, Stopped: stopped, Totals: totals}, nil
}

// WeekTotals returns seven consecutive days starting at weekStart. Days
// without sessions are present with an empty list.
func (e *Engine) WeekTotals(ctx context.Context, username, weekStart string) ([]DayBreakdown, error) {
	days, err := weekDays(weekStart)
	if err != nil {
		return nil, err
	}
	rows, err := e.repo.DailyTotals(ctx, username, days[0], days[6])
	if err != nil {
		return nil, err
	}

	week := make([]DayBreakdown, len(days))
	index := make(map[string]int, len(days))
	for i, d := range days {
		week[i] = DayBreakdown{Day: d, Totals: []store.TimerTotal{}}
		index[d] = i
	}
	for _, r := range rows {
		if i, ok := index[r.DayDate]; ok {
			week[i].Totals = append(week[i].Totals, r.TimerTotal)
		}
	}
	return week, nil
}

// Averages divides each active timer's closed seconds over the trailing
// windowDays local days (today included) by windowDays, truncating.
// Timers with no activity report 0. A windowDays of 0 means the default.
func (e *Engine) Averages(ctx context.Context, username string, windowDays int, tz string) ([]TimerAverage, error) {
	if windowDays == 0 {
		windowDays = DefaultWindowDays
	}
	if windowDays < 1 || windowDays > MaxWindowDays {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, windowDays)
	}
	today, err := clock.Today(tz, e.clock.Now())
	if err != nil {
		return nil, err
	}
	from, err := clock.AddDays(today, -(windowDays - 1))
	if err != nil {
		return nil, err
	}

	timers, err := e.repo.ListTimers(ctx, username, false)
	if err != nil {
		return nil, err
	}
	sums, err := e.repo.RangeTotals(ctx, username, from, today)
	if err != nil {
		return nil, err
	}

	avgs := make([]TimerAverage, 0, len(timers))
	for _, t := range timers {
		avgs = append(avgs, TimerAverage{
			TimerID:          t.ID,
			AvgSecondsPerDay: sums[t.ID] / int64(windowDays),
		})
	}
	return avgs, nil
}

// ListSessions returns the sessions whose local day is in [from, to],
// optionally for one timer, oldest first.
func (e *Engine) ListSessions(ctx context.Context, username, from, to, timerID string) ([]store.Session, error) {
	f, err := clock.ParseDay(from)
	if err != nil {
		return nil, err
	}
	t, err := clock.ParseDay(to)
	if err != nil {
		return nil, err
	}
	if f.After(t) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, from, to)
	}
	return e.repo.ListSessions(ctx, store.SessionFilter{
		Username: username,
		From:     from,
		To:       to,
		TimerID:  timerID,
	})
}

// DaySchedule is every session of one local day.
type DaySchedule struct {
	Day      string
	Sessions []store.Session
}

func (e *Engine) DaySchedule(ctx context.Context, username, day string) (*DaySchedule, error) {
	sessions, err := e.ListSessions(ctx, username, day, day, "")
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	return &DaySchedule{Day: day, Sessions: sessions}, nil
}

// WeekSchedule buckets a week's sessions into seven days starting at
// weekStart.
func (e *Engine) WeekSchedule(ctx context.Context, username, weekStart string) ([]DaySchedule, error) {
	days, err := weekDays(weekStart)
	if err != nil {
		return nil, err
	}
	sessions, err := e.ListSessions(ctx, username, days[0], days[6], "")
	if err != nil {
		return nil, err
	}

	week := make([]DaySchedule, len(days))
	index := make(map[string]int, len(days))
	for i, d := range days {
		week[i] = DaySchedule{Day: d, Sessions: []store.Session{}}
		index[d] = i
	}
	for _, se := range sessions {
		if i, ok := index[se.DayDate]; ok {
			week[i].Sessions = append(week[i].Sessions, se)
		}
	}
	return week, nil
}

func weekDays(weekStart string) ([]string, error) {
	days := make([]string, 7)
	for i := range days {
		d, err := clock.AddDays(weekStart, i)
		if err != nil {
			return nil, err
		}
		days[i] = d
	}
	return days, nil
}
