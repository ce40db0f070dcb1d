package cli

import (
	"fmt"

	"github.com/sadopc/coursetimers/internal/clock"
)

type StatsDayCmd struct {
	Day string `help:"Local day (YYYY-MM-DD). Defaults to today."`
}

func (c *StatsDayCmd) Run(ctx *Context) error {
	day, err := ctx.dayOrToday(c.Day)
	if err != nil {
		return err
	}
	totals, err := ctx.Stats.DayTotals(ctx.ctx(), ctx.User, day)
	if err != nil {
		return fmt.Errorf("failed to total %s: %w", day, err)
	}
	names, err := ctx.timerNames()
	if err != nil {
		return err
	}

	ctx.printf("%s:\n", day)
	if len(totals) == 0 {
		ctx.printf("  no sessions\n")
		return nil
	}
	var total int64
	for _, t := range totals {
		ctx.printf("  %-24s %s\n", names[t.TimerID], formatSeconds(t.TotalSeconds))
		total += t.TotalSeconds
	}
	ctx.printf("  %-24s %s\n", "total", formatSeconds(total))
	return nil
}

type StatsWeekCmd struct {
	Start string `help:"Monday the week starts on (YYYY-MM-DD). Defaults to this week."`
}

func (c *StatsWeekCmd) Run(ctx *Context) error {
	start := c.Start
	if start == "" {
		today, err := ctx.today()
		if err != nil {
			return err
		}
		if start, err = clock.WeekStart(today); err != nil {
			return err
		}
	}
	week, err := ctx.Stats.WeekTotals(ctx.ctx(), ctx.User, start)
	if err != nil {
		return fmt.Errorf("failed to total week: %w", err)
	}
	names, err := ctx.timerNames()
	if err != nil {
		return err
	}

	for _, day := range week {
		var total int64
		for _, t := range day.Totals {
			total += t.TotalSeconds
		}
		label := day.Day
		if d, err := clock.ParseDay(day.Day); err == nil {
			label = d.Format("Mon 2006-01-02")
		}
		ctx.printf("%s  %s\n", label, formatSeconds(total))
		for _, t := range day.Totals {
			ctx.printf("    %-22s %s\n", names[t.TimerID], formatSeconds(t.TotalSeconds))
		}
	}
	return nil
}

type StatsAveragesCmd struct {
	Days int `short:"n" help:"Window in days (1-365). Defaults to the averages_days setting."`
}

func (c *StatsAveragesCmd) Run(ctx *Context) error {
	days := c.Days
	if days == 0 {
		days = ctx.AverageDays
	}
	avgs, err := ctx.Stats.Averages(ctx.ctx(), ctx.User, days, ctx.TZ)
	if err != nil {
		return fmt.Errorf("failed to compute averages: %w", err)
	}
	names, err := ctx.timerNames()
	if err != nil {
		return err
	}
	if len(avgs) == 0 {
		ctx.printf("No timers found\n")
		return nil
	}
	ctx.printf("Average per day:\n")
	for _, a := range avgs {
		ctx.printf("  %-24s %s\n", names[a.TimerID], formatSeconds(a.AvgSecondsPerDay))
	}
	return nil
}

type SessionsCmd struct {
	From  string `help:"First local day (YYYY-MM-DD). Defaults to today."`
	To    string `help:"Last local day (YYYY-MM-DD). Defaults to --from."`
	Timer string `help:"Only this timer (ID or name)."`
}

func (c *SessionsCmd) Run(ctx *Context) error {
	from, err := ctx.dayOrToday(c.From)
	if err != nil {
		return err
	}
	to := from
	if c.To != "" {
		to = c.To
	}
	timerID := ""
	if c.Timer != "" {
		t, err := ctx.resolveTimer(c.Timer)
		if err != nil {
			return err
		}
		timerID = t.ID
	}

	sessions, err := ctx.Stats.ListSessions(ctx.ctx(), ctx.User, from, to, timerID)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	names, err := ctx.timerNames()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		ctx.printf("No sessions found\n")
		return nil
	}
	for _, se := range sessions {
		dur := formatSeconds(se.Duration())
		if se.Open() {
			dur = "running"
		}
		ctx.printf("%s  %s  %-20s %s\n", se.DayDate, ctx.localTime(se.StartAt), names[se.TimerID], dur)
	}
	return nil
}
