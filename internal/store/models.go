package store

import "time"

type User struct {
	Username  string
	CreatedAt time.Time
}

type Timer struct {
	ID                string
	Username          string
	Name              string
	Color             string
	Icon              string
	Archived          bool
	CycleTotalSeconds int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Session is one tracked interval. EndAt and DurationSeconds are nil while
// the session is open.
type Session struct {
	ID              string
	Username        string
	TimerID         string
	StartAt         time.Time
	EndAt           *time.Time
	DurationSeconds *int64
	ClientTZ        string
	DayDate         string // local calendar day at start, YYYY-MM-DD
	DayOfWeek       int    // 0 = Monday
	CreatedAt       time.Time
}

// Open reports whether the session is still running.
func (s Session) Open() bool { return s.EndAt == nil }

// Duration returns the recorded duration, or 0 for an open session.
func (s Session) Duration() int64 {
	if s.DurationSeconds == nil {
		return 0
	}
	return *s.DurationSeconds
}

// DaySummary is the finalized total for one (user, day, timer).
type DaySummary struct {
	ID           string
	Username     string
	DayDate      string
	TimerID      string
	TotalSeconds int64
	CreatedAt    time.Time
}

type TimerTotal struct {
	TimerID      string
	TotalSeconds int64
}

// DayTimerTotal is a TimerTotal bucketed by local day.
type DayTimerTotal struct {
	DayDate string
	TimerTotal
}

type Setting struct {
	Key   string
	Value string
}

// TimerUpdate carries optional changes; nil fields are left alone.
type TimerUpdate struct {
	Name     *string
	Color    *string
	Icon     *string
	Archived *bool
}

// SessionFilter is used to filter sessions in queries. From and To are
// inclusive local days.
type SessionFilter struct {
	Username string
	From     string
	To       string
	TimerID  string
	Limit    int
}
