package cli

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/coursetimers/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *Context) error {
	app := tui.NewApp(ctx.Store, ctx.Ledger, ctx.Stats, ctx.Clock, ctx.User, ctx.TZ)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
