// Package cli holds the kong commands. Each command's Run receives the
// shared Context built in main.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sadopc/coursetimers/internal/clock"
	"github.com/sadopc/coursetimers/internal/ledger"
	"github.com/sadopc/coursetimers/internal/stats"
	"github.com/sadopc/coursetimers/internal/store"
)

type Context struct {
	Store  *store.Store
	Ledger *ledger.Ledger
	Stats  *stats.Engine
	Clock  clock.Clock
	User   string
	// TZ stamps new sessions and picks "today".
	TZ          string
	AverageDays int
	Out         io.Writer
}

func (c *Context) ctx() context.Context {
	return context.Background()
}

func (c *Context) printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) today() (string, error) {
	return clock.Today(c.TZ, c.Clock.Now())
}

// dayOrToday returns day when set and the user's local today otherwise.
func (c *Context) dayOrToday(day string) (string, error) {
	if day == "" {
		return c.today()
	}
	if _, err := clock.ParseDay(day); err != nil {
		return "", err
	}
	return day, nil
}

// resolveTimer accepts a timer id or a timer name of the current user.
func (c *Context) resolveTimer(ref string) (*store.Timer, error) {
	t, err := c.Store.GetTimer(c.ctx(), ref)
	if err == nil && t.Username == c.User {
		return t, nil
	}
	if err != nil && !errors.Is(err, store.ErrTimerNotFound) {
		return nil, err
	}
	t, err = c.Store.GetTimerByName(c.ctx(), c.User, ref)
	if errors.Is(err, store.ErrTimerNotFound) {
		return nil, fmt.Errorf("no timer %q: %w", ref, ledger.ErrTimerNotFound)
	}
	return t, err
}

// timerNames maps timer ids to names, archived timers included.
func (c *Context) timerNames() (map[string]string, error) {
	timers, err := c.Store.ListTimers(c.ctx(), c.User, true)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(timers))
	for _, t := range timers {
		names[t.ID] = t.Name
	}
	return names, nil
}

func formatSeconds(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

func (c *Context) localTime(t time.Time) string {
	loc, err := clock.LoadLocation(c.TZ)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02 15:04:05")
}

// ResolveTimezone picks override when set and the user's stored timezone
// setting otherwise. The result is validated.
func ResolveTimezone(ctx context.Context, s *store.Store, username, override string) (string, error) {
	tz := override
	if tz == "" {
		v, err := s.GetSetting(ctx, username, store.SettingTimezone)
		if err != nil {
			return "", err
		}
		tz = v
	}
	if _, err := clock.LoadLocation(tz); err != nil {
		return "", err
	}
	return tz, nil
}

// ResolveAverageDays is override when positive, else the user's
// averages_days setting, else stats.DefaultWindowDays.
func ResolveAverageDays(ctx context.Context, s *store.Store, username string, override int) int {
	if override > 0 {
		return override
	}
	v, err := s.GetSetting(ctx, username, store.SettingAveragesDays)
	if err != nil {
		return stats.DefaultWindowDays
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > stats.MaxWindowDays {
		return stats.DefaultWindowDays
	}
	return n
}
