package cli

import (
	"fmt"
)

type StartCmd struct {
	Timer string `arg:"" help:"Timer ID or name."`
}

func (c *StartCmd) Run(ctx *Context) error {
	t, err := ctx.resolveTimer(c.Timer)
	if err != nil {
		return err
	}
	res, err := ctx.Ledger.Start(ctx.ctx(), ctx.User, t.ID, ctx.TZ)
	if err != nil {
		return fmt.Errorf("failed to start timer: %w", err)
	}
	if res.Stopped != nil {
		names, _ := ctx.timerNames()
		ctx.printf("Stopped %s after %s\n", names[res.Stopped.TimerID], formatSeconds(res.Stopped.Duration()))
	}
	ctx.printf("Running %s since %s (%s)\n", t.Name, ctx.localTime(res.Active.StartAt), res.Active.DayDate)
	return nil
}

type StopCmd struct{}

func (c *StopCmd) Run(ctx *Context) error {
	se, err := ctx.Ledger.Stop(ctx.ctx(), ctx.User)
	if err != nil {
		return fmt.Errorf("failed to stop timer: %w", err)
	}
	if se == nil {
		ctx.printf("No timer running\n")
		return nil
	}
	names, _ := ctx.timerNames()
	ctx.printf("Stopped %s after %s\n", names[se.TimerID], formatSeconds(se.Duration()))
	return nil
}

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *Context) error {
	se, err := ctx.Ledger.Active(ctx.ctx(), ctx.User)
	if err != nil {
		return err
	}
	if se == nil {
		ctx.printf("Idle\n")
		return nil
	}
	names, _ := ctx.timerNames()
	elapsed := int64(ctx.Clock.Now().Sub(se.StartAt).Seconds())
	ctx.printf("Running %s for %s (since %s, day %s)\n",
		names[se.TimerID], formatSeconds(elapsed), ctx.localTime(se.StartAt), se.DayDate)
	return nil
}

type EndDayCmd struct {
	Day string `help:"Local day to end (YYYY-MM-DD). Defaults to today."`
}

func (c *EndDayCmd) Run(ctx *Context) error {
	day, err := ctx.dayOrToday(c.Day)
	if err != nil {
		return err
	}
	res, err := ctx.Stats.EndDay(ctx.ctx(), ctx.User, ctx.TZ, day)
	if err != nil {
		return fmt.Errorf("failed to end day: %w", err)
	}
	names, _ := ctx.timerNames()
	if res.Stopped != nil {
		ctx.printf("Stopped %s after %s\n", names[res.Stopped.TimerID], formatSeconds(res.Stopped.Duration()))
	}
	ctx.printf("Ended %s:\n", res.EndedDay)
	var total int64
	for _, t := range res.Totals {
		ctx.printf("  %-24s %s\n", names[t.TimerID], formatSeconds(t.TotalSeconds))
		total += t.TotalSeconds
	}
	ctx.printf("  %-24s %s\n", "total", formatSeconds(total))
	return nil
}

type ResetCmd struct {
	Yes bool `short:"y" help:"Confirm zeroing every cycle total."`
}

func (c *ResetCmd) Run(ctx *Context) error {
	if !c.Yes {
		return fmt.Errorf("reset zeroes every cycle total; pass --yes to confirm")
	}
	timers, err := ctx.Ledger.ResetTotals(ctx.ctx(), ctx.User)
	if err != nil {
		return fmt.Errorf("failed to reset totals: %w", err)
	}
	ctx.printf("Reset cycle totals of %d timers\n", len(timers))
	return nil
}
