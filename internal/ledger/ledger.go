// Package ledger owns the session state machine: at most one open session
// per user, switching between timers, closing at day boundaries, and the
// per-timer cycle totals that closing a session feeds.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sadopc/coursetimers/internal/clock"
	"github.com/sadopc/coursetimers/internal/logger"
	"github.com/sadopc/coursetimers/internal/store"
)

// ErrTimerNotFound is returned when a timer is missing or owned by someone else.
var ErrTimerNotFound = store.ErrTimerNotFound

// Repository is the slice of the store the ledger needs.
type Repository interface {
	GetTimer(ctx context.Context, id string) (*store.Timer, error)
	GetActiveSession(ctx context.Context, username string) (*store.Session, error)
	ListTimers(ctx context.Context, username string, includeArchived bool) ([]store.Timer, error)
	WithTx(ctx context.Context, fn func(store.Tx) error) error
}

type Ledger struct {
	repo  Repository
	clock clock.Clock
	locks *userLocks
}

func New(repo Repository, clk clock.Clock) *Ledger {
	if clk == nil {
		clk = clock.System{}
	}
	return &Ledger{repo: repo, clock: clk, locks: newUserLocks()}
}

// StartResult reports what a start did. Stopped is nil unless a different
// timer was running.
type StartResult struct {
	Stopped *store.Session
	Active  *store.Session
}

// now is truncated to the precision the store keeps.
func (l *Ledger) now() time.Time {
	return l.clock.Now().UTC().Truncate(time.Millisecond)
}

// Start makes timerID the user's running timer, closing whatever else was
// running. Starting the timer that is already running changes nothing.
func (l *Ledger) Start(ctx context.Context, username, timerID, tz string) (*StartResult, error) {
	timer, err := l.repo.GetTimer(ctx, timerID)
	if errors.Is(err, store.ErrTimerNotFound) || (err == nil && timer.Username != username) {
		return nil, fmt.Errorf("start timer %s: %w", timerID, ErrTimerNotFound)
	}
	if err != nil {
		return nil, err
	}

	now := l.now()
	day, weekday, err := clock.DeriveLocalDay(tz, now)
	if err != nil {
		return nil, err
	}

	unlock := l.locks.lock(username)
	defer unlock()

	var res StartResult
	err = l.repo.WithTx(ctx, func(tx store.Tx) error {
		res = StartResult{}
		active, err := lockActive(ctx, tx, username)
		if err != nil {
			return err
		}
		if active != nil && active.TimerID == timerID {
			res.Active = active
			return nil
		}
		if active != nil {
			if err := closeSession(ctx, tx, active, now); err != nil {
				return err
			}
			res.Stopped = active
		}

		se := &store.Session{
			Username:  username,
			TimerID:   timerID,
			StartAt:   now,
			ClientTZ:  tz,
			DayDate:   day,
			DayOfWeek: weekday,
		}
		if err := tx.InsertSession(ctx, se); err != nil {
			return err
		}
		res.Active = se
		return nil
	})

	if errors.Is(err, store.ErrActiveSessionExists) {
		// Another writer opened a session first; report theirs.
		active, rerr := l.repo.GetActiveSession(ctx, username)
		if rerr != nil {
			return nil, rerr
		}
		if active == nil {
			return nil, err
		}
		logger.Warn("start lost race", "user", username, "timer", timerID, "winner", active.ID)
		return &StartResult{Active: active}, nil
	}
	if err != nil {
		return nil, err
	}

	if res.Stopped != nil {
		logger.Debug("switched timer", "user", username, "from", res.Stopped.TimerID,
			"to", timerID, "seconds", res.Stopped.Duration())
	} else {
		logger.Debug("started timer", "user", username, "timer", timerID, "session", res.Active.ID)
	}
	return &res, nil
}

// Stop closes the open session at the current instant. It returns nil when
// the user was idle.
func (l *Ledger) Stop(ctx context.Context, username string) (*store.Session, error) {
	unlock := l.locks.lock(username)
	defer unlock()

	now := l.now()
	var stopped *store.Session
	err := l.repo.WithTx(ctx, func(tx store.Tx) error {
		active, err := lockActive(ctx, tx, username)
		if err != nil || active == nil {
			return err
		}
		if err := closeSession(ctx, tx, active, now); err != nil {
			return err
		}
		stopped = active
		return nil
	})
	if err != nil {
		return nil, err
	}
	if stopped != nil {
		logger.Debug("stopped timer", "user", username, "timer", stopped.TimerID,
			"session", stopped.ID, "seconds", stopped.Duration())
	}
	return stopped, nil
}

// StopForDay closes the open session as part of finalizing day. A session
// that started on an earlier day is cut at 23:59:59.999 local time on the
// day before day, but never before it started.
func (l *Ledger) StopForDay(ctx context.Context, username, tz, day string) (*store.Session, error) {
	if _, err := clock.LoadLocation(tz); err != nil {
		return nil, err
	}
	prev, err := clock.AddDays(day, -1)
	if err != nil {
		return nil, err
	}

	unlock := l.locks.lock(username)
	defer unlock()

	now := l.now()
	var stopped *store.Session
	err = l.repo.WithTx(ctx, func(tx store.Tx) error {
		active, err := lockActive(ctx, tx, username)
		if err != nil || active == nil {
			return err
		}
		end := now
		if active.DayDate != day {
			end, err = clock.EndOfLocalDayUTC(prev, tz)
			if err != nil {
				return err
			}
		}
		if err := closeSession(ctx, tx, active, end); err != nil {
			return err
		}
		stopped = active
		return nil
	})
	if err != nil {
		return nil, err
	}
	if stopped != nil {
		logger.Debug("stopped timer for day", "user", username, "day", day,
			"session", stopped.ID, "end", stopped.EndAt, "seconds", stopped.Duration())
	}
	return stopped, nil
}

// ResetTotals stops the running session, folding its time into the cycle
// total, then zeroes every cycle total of the user. Both happen in one
// transaction. It returns the user's timers with their zeroed totals.
func (l *Ledger) ResetTotals(ctx context.Context, username string) ([]store.Timer, error) {
	unlock := l.locks.lock(username)
	defer unlock()

	now := l.now()
	err := l.repo.WithTx(ctx, func(tx store.Tx) error {
		active, err := lockActive(ctx, tx, username)
		if err != nil {
			return err
		}
		if active != nil {
			if err := closeSession(ctx, tx, active, now); err != nil {
				return err
			}
		}
		return tx.ResetCycleTotals(ctx, username)
	})
	if err != nil {
		return nil, fmt.Errorf("reset totals: %w", err)
	}
	logger.Debug("reset cycle totals", "user", username)
	return l.repo.ListTimers(ctx, username, true)
}

// Active returns the user's open session, or nil when idle.
func (l *Ledger) Active(ctx context.Context, username string) (*store.Session, error) {
	return l.repo.GetActiveSession(ctx, username)
}

func lockActive(ctx context.Context, tx store.Tx, username string) (*store.Session, error) {
	if err := tx.LockUser(ctx, username); err != nil {
		return nil, err
	}
	return tx.ActiveSession(ctx, username)
}

// closeSession ends se at end (clamped to its start), records the whole
// seconds elapsed and adds them to the timer's cycle total. se is updated
// in place.
func closeSession(ctx context.Context, tx store.Tx, se *store.Session, end time.Time) error {
	if end.Before(se.StartAt) {
		end = se.StartAt
	}
	secs := int64(end.Sub(se.StartAt) / time.Second)
	if err := tx.CloseSession(ctx, se.ID, end, secs); err != nil {
		return err
	}
	if err := tx.IncrementCycleTotal(ctx, se.TimerID, secs); err != nil {
		return err
	}
	se.EndAt = &end
	se.DurationSeconds = &secs
	return nil
}
