package clock

import (
	"errors"
	"fmt"
	"time"
)

// DayFormat is the layout of a local calendar day (YYYY-MM-DD).
const DayFormat = "2006-01-02"

var (
	ErrInvalidTimezone = errors.New("invalid timezone")
	ErrInvalidDay      = errors.New("invalid day")
)

// LoadLocation resolves an IANA timezone identifier. Unlike time.LoadLocation
// it rejects the empty string and "Local", which are not IANA names.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" || tz == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTimezone, tz, err)
	}
	return loc, nil
}

// DeriveLocalDay converts at into tz and returns the local calendar day and
// the weekday index, where Monday is 0 and Sunday is 6.
func DeriveLocalDay(tz string, at time.Time) (string, int, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return "", 0, err
	}
	local := at.In(loc)
	return local.Format(DayFormat), MondayIndex(local.Weekday()), nil
}

// MondayIndex maps a time.Weekday onto a Monday-based 0-6 index.
func MondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// EndOfLocalDayUTC returns the UTC instant of 23:59:59.999 local time on day
// in tz. If that wall time occurs twice because of a backward transition,
// the later instant is returned.
func EndOfLocalDayUTC(day, tz string) (time.Time, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	d, err := ParseDay(day)
	if err != nil {
		return time.Time{}, err
	}

	wall := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 999_000_000, time.UTC)
	guess := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 999_000_000, loc)

	// Offsets in effect around the wall time; a fold has two valid ones.
	var best time.Time
	for _, probe := range []time.Time{guess, guess.Add(-12 * time.Hour), guess.Add(12 * time.Hour)} {
		_, offset := probe.Zone()
		cand := wall.Add(-time.Duration(offset) * time.Second)
		if !sameWall(cand.In(loc), wall) {
			continue
		}
		if best.IsZero() || cand.After(best) {
			best = cand
		}
	}
	if best.IsZero() {
		// The wall time falls in a gap; keep the normalized instant.
		best = guess
	}
	return best.UTC(), nil
}

func sameWall(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() &&
		a.Second() == b.Second() && a.Nanosecond() == b.Nanosecond()
}

// ParseDay parses a YYYY-MM-DD day into midnight UTC.
func ParseDay(day string) (time.Time, error) {
	t, err := time.Parse(DayFormat, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	return t, nil
}

// AddDays shifts a YYYY-MM-DD day by n calendar days.
func AddDays(day string, n int) (string, error) {
	t, err := ParseDay(day)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DayFormat), nil
}

// Today returns the local calendar day of now in tz.
func Today(tz string, now time.Time) (string, error) {
	day, _, err := DeriveLocalDay(tz, now)
	return day, err
}

// WeekStart returns the Monday on or before day.
func WeekStart(day string) (string, error) {
	t, err := ParseDay(day)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, -MondayIndex(t.Weekday())).Format(DayFormat), nil
}
