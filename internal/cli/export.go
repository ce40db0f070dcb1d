package cli

import (
	"fmt"

	"github.com/sadopc/coursetimers/internal/export"
	"github.com/sadopc/coursetimers/internal/store"
)

type ExportCSVCmd struct {
	Out string `short:"o" help:"Output file. Use - for stdout. Defaults to coursetimers-export-<today>.csv."`
}

func (c *ExportCSVCmd) Run(ctx *Context) error {
	return exportSessions(ctx, "csv", c.Out)
}

type ExportJSONCmd struct {
	Out string `short:"o" help:"Output file. Use - for stdout. Defaults to coursetimers-export-<today>.json."`
}

func (c *ExportJSONCmd) Run(ctx *Context) error {
	return exportSessions(ctx, "json", c.Out)
}

func exportSessions(ctx *Context, format, out string) error {
	sessions, err := ctx.Store.ListSessions(ctx.ctx(), store.SessionFilter{Username: ctx.User})
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	list, err := ctx.Store.ListTimers(ctx.ctx(), ctx.User, true)
	if err != nil {
		return fmt.Errorf("failed to list timers: %w", err)
	}
	timers := export.TimerIndex(list)

	if out == "-" {
		if format == "csv" {
			return export.WriteCSV(ctx.Out, sessions, timers)
		}
		return export.WriteJSON(ctx.Out, sessions, timers)
	}

	path := out
	if path == "" {
		today, err := ctx.today()
		if err != nil {
			return err
		}
		path = fmt.Sprintf("coursetimers-export-%s.%s", today, format)
	}
	if format == "csv" {
		err = export.ToCSV(sessions, timers, path)
	} else {
		err = export.ToJSON(sessions, timers, path)
	}
	if err != nil {
		return err
	}
	ctx.printf("Exported %d sessions to %s\n", len(sessions), path)
	return nil
}
