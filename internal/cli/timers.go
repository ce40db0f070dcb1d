package cli

import (
	"fmt"

	"github.com/sadopc/coursetimers/internal/store"
)

type TimerAddCmd struct {
	Name  string `arg:"" help:"Timer name."`
	Color string `short:"c" help:"Display color." default:"#6C63FF"`
	Icon  string `short:"i" help:"Icon label." default:"book"`
}

func (c *TimerAddCmd) Run(ctx *Context) error {
	t, err := ctx.Store.CreateTimer(ctx.ctx(), ctx.User, c.Name, c.Color, c.Icon)
	if err != nil {
		return fmt.Errorf("failed to add timer: %w", err)
	}
	ctx.printf("Added timer %s (ID: %s)\n", t.Name, t.ID)
	return nil
}

type TimerListCmd struct {
	Archived bool `short:"a" help:"Include archived timers."`
	ShowIDs  bool `help:"Show timer IDs." name:"show-ids"`
}

func (c *TimerListCmd) Run(ctx *Context) error {
	timers, err := ctx.Store.ListTimers(ctx.ctx(), ctx.User, c.Archived)
	if err != nil {
		return fmt.Errorf("failed to list timers: %w", err)
	}
	if len(timers) == 0 {
		ctx.printf("No timers found\n")
		return nil
	}

	ctx.printf("Timers:\n")
	for _, t := range timers {
		status := "active"
		if t.Archived {
			status = "archived"
		}
		idStr := ""
		if c.ShowIDs {
			idStr = fmt.Sprintf(" (ID: %s)", t.ID)
		}
		ctx.printf("  [%s] %s%s - cycle %s\n", status, t.Name, idStr, formatSeconds(t.CycleTotalSeconds))
	}
	return nil
}

type TimerEditCmd struct {
	Timer string  `arg:"" help:"Timer ID or name."`
	Name  *string `help:"New name."`
	Color *string `help:"New color."`
	Icon  *string `help:"New icon."`
}

func (c *TimerEditCmd) Run(ctx *Context) error {
	t, err := ctx.resolveTimer(c.Timer)
	if err != nil {
		return err
	}
	if c.Name == nil && c.Color == nil && c.Icon == nil {
		return fmt.Errorf("nothing to change: pass --name, --color or --icon")
	}
	t, err = ctx.Store.UpdateTimer(ctx.ctx(), ctx.User, t.ID, store.TimerUpdate{
		Name:  c.Name,
		Color: c.Color,
		Icon:  c.Icon,
	})
	if err != nil {
		return fmt.Errorf("failed to edit timer: %w", err)
	}
	ctx.printf("Updated timer %s\n", t.Name)
	return nil
}

type TimerArchiveCmd struct {
	Timer string `arg:"" help:"Timer ID or name."`
}

func (c *TimerArchiveCmd) Run(ctx *Context) error {
	t, err := ctx.resolveTimer(c.Timer)
	if err != nil {
		return err
	}
	if err := ctx.Store.ArchiveTimer(ctx.ctx(), ctx.User, t.ID); err != nil {
		return fmt.Errorf("failed to archive timer: %w", err)
	}
	ctx.printf("Archived timer %s\n", t.Name)
	return nil
}
