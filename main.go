package main

import (
	"context"
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/alecthomas/kong"

	"github.com/sadopc/coursetimers/internal/cli"
	"github.com/sadopc/coursetimers/internal/clock"
	"github.com/sadopc/coursetimers/internal/config"
	"github.com/sadopc/coursetimers/internal/ledger"
	"github.com/sadopc/coursetimers/internal/logger"
	"github.com/sadopc/coursetimers/internal/stats"
	"github.com/sadopc/coursetimers/internal/store"
)

var CLI struct {
	DB    string `help:"SQLite file path or postgres:// URL. Overrides COURSETIMERS_DATABASE_URL."`
	User  string `short:"u" help:"User handle. Overrides COURSETIMERS_USER."`
	TZ    string `name:"tz" help:"IANA timezone for new sessions. Defaults to the user's timezone setting."`
	Debug bool   `help:"Log at debug level."`

	Tui   cli.TuiCmd `cmd:"" help:"Launch the interactive TUI." default:"1"`
	Timer struct {
		Add     cli.TimerAddCmd     `cmd:"" help:"Add a timer."`
		List    cli.TimerListCmd    `cmd:"" help:"List timers."`
		Edit    cli.TimerEditCmd    `cmd:"" help:"Edit a timer."`
		Archive cli.TimerArchiveCmd `cmd:"" help:"Archive a timer."`
	} `cmd:"" help:"Manage timers."`
	Start  cli.StartCmd  `cmd:"" help:"Start a timer, stopping the running one."`
	Stop   cli.StopCmd   `cmd:"" help:"Stop the running timer."`
	Status cli.StatusCmd `cmd:"" help:"Show the running timer."`
	EndDay cli.EndDayCmd `cmd:"" name:"end-day" help:"Stop the running timer and finalize the day's totals."`
	Reset  cli.ResetCmd  `cmd:"" help:"Zero every cycle total."`
	Stats  struct {
		Day      cli.StatsDayCmd      `cmd:"" help:"Per-timer totals for one day." default:"1"`
		Week     cli.StatsWeekCmd     `cmd:"" help:"Per-timer totals for seven days."`
		Averages cli.StatsAveragesCmd `cmd:"" help:"Average seconds per day over a trailing window."`
	} `cmd:"" help:"Show study statistics."`
	Sessions cli.SessionsCmd `cmd:"" help:"List sessions."`
	Export   struct {
		CSV  cli.ExportCSVCmd  `cmd:"" name:"csv" help:"Export sessions as CSV."`
		JSON cli.ExportJSONCmd `cmd:"" name:"json" help:"Export sessions as JSON."`
	} `cmd:"" help:"Export sessions."`
}

func main() {
	cfg := config.Load()

	kctx := kong.Parse(&CLI,
		kong.Name("coursetimers"),
		kong.Description("Per-course study timers with daily and weekly totals"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
	)

	if CLI.DB != "" {
		cfg.DatabaseURL = CLI.DB
	}
	if CLI.User != "" {
		cfg.User = CLI.User
	}
	if CLI.TZ != "" {
		cfg.Timezone = CLI.TZ
	}
	cfg.Debug = cfg.Debug || CLI.Debug

	// The TUI owns the terminal, so its logs only go to the file.
	if err := logger.Init(logger.Config{
		Debug:  cfg.Debug,
		Dir:    cfg.LogDir,
		Stderr: kctx.Command() != "tui",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}

	if err := run(kctx, cfg); err != nil {
		logger.Error("command failed", "command", kctx.Command(), "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(kctx *kong.Context, cfg *config.Config) error {
	ctx := context.Background()

	s, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	user, err := s.EnsureUser(ctx, cfg.User)
	if err != nil {
		return err
	}
	tz, err := cli.ResolveTimezone(ctx, s, user.Username, cfg.Timezone)
	if err != nil {
		return err
	}

	clk := clock.System{}
	l := ledger.New(s, clk)
	logger.Debug("starting", "backend", s.Backend(), "user", user.Username, "tz", tz)

	return kctx.Run(&cli.Context{
		Store:       s,
		Ledger:      l,
		Stats:       stats.New(s, l, clk),
		Clock:       clk,
		User:        user.Username,
		TZ:          tz,
		AverageDays: cli.ResolveAverageDays(ctx, s, user.Username, cfg.AverageDays),
		Out:         os.Stdout,
	})
}
