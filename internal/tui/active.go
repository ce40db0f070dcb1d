package tui

import (
	"context"
	"errors"
	"time"

	"github.com/sadopc/coursetimers/internal/ledger"
	"github.com/sadopc/coursetimers/internal/store"
)

// activeModel mirrors the user's open session for display. The ledger owns
// the state; this keeps what it last returned plus the elapsed time.
type activeModel struct {
	env *env

	session    *store.Session
	timerName  string
	timerColor string
	elapsed    time.Duration
}

func newActiveModel(e *env) activeModel {
	return activeModel{env: e}
}

func (a *activeModel) set(se *store.Session) {
	a.session = se
	a.timerName, a.timerColor = "", ""
	if se == nil {
		a.elapsed = 0
		return
	}
	if t, err := a.env.store.GetTimer(context.Background(), se.TimerID); err == nil {
		a.timerName, a.timerColor = t.Name, t.Color
	} else if errors.Is(err, store.ErrTimerNotFound) {
		a.timerName = "?"
	}
	a.tick()
}

func (a *activeModel) start(timerID string) (*ledger.StartResult, error) {
	res, err := a.env.ledger.Start(context.Background(), a.env.user, timerID, a.env.tz)
	if err != nil {
		return nil, err
	}
	a.set(res.Active)
	return res, nil
}

func (a *activeModel) stop() (*store.Session, error) {
	if a.session == nil {
		return nil, nil
	}
	se, err := a.env.ledger.Stop(context.Background(), a.env.user)
	if err != nil {
		return nil, err
	}
	a.set(nil)
	return se, nil
}

func (a *activeModel) tick() {
	if a.session != nil {
		a.elapsed = a.env.clock.Now().Sub(a.session.StartAt)
	}
}

func (a activeModel) running() bool {
	return a.session != nil
}

func (a activeModel) currentElapsed() time.Duration {
	if a.session == nil {
		return 0
	}
	return a.env.clock.Now().Sub(a.session.StartAt)
}
