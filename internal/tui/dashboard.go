package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/coursetimers/internal/store"
)

type dashboardModel struct {
	env    *env
	active activeModel
	width  int
	height int

	today     string
	dayTotals []store.TimerTotal
	sessions  []store.Session
	timers    []store.Timer
	timerIdx  map[string]store.Timer
	dailyGoal int64

	// Timer picker state
	picking      bool
	pickerCursor int

	// Reset confirmation; the pointer survives value copies.
	confirming   bool
	confirm      *huh.Form
	confirmReset *bool
}

func newDashboardModel(e *env) dashboardModel {
	yes := false
	return dashboardModel{
		env:          e,
		active:       newActiveModel(e),
		timerIdx:     map[string]store.Timer{},
		confirmReset: &yes,
	}
}

func (d dashboardModel) Init() tea.Cmd {
	return d.loadData()
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d dashboardModel) isRunning() bool { return d.active.running() }
func (d dashboardModel) elapsed() time.Duration {
	return d.active.currentElapsed()
}

type dashboardDataMsg struct {
	today     string
	dayTotals []store.TimerTotal
	sessions  []store.Session
	timers    []store.Timer
	dailyGoal int64
	active    *store.Session
	err       error
}

func (d dashboardModel) loadData() tea.Cmd {
	e := d.env
	return func() tea.Msg {
		ctx := context.Background()
		today := e.today()
		msg := dashboardDataMsg{today: today}

		var err error
		if msg.dayTotals, err = e.stats.DayTotals(ctx, e.user, today); err != nil {
			msg.err = err
			return msg
		}
		if sched, err := e.stats.DaySchedule(ctx, e.user, today); err == nil {
			msg.sessions = sched.Sessions
		}
		msg.timers, _ = e.store.ListTimers(ctx, e.user, false)
		msg.active, _ = e.ledger.Active(ctx, e.user)

		goal, _ := e.store.GetSetting(ctx, e.user, store.SettingDailyGoal)
		msg.dailyGoal, _ = strconv.ParseInt(goal, 10, 64)
		return msg
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if d.confirming && d.confirm != nil {
		return d.updateConfirm(msg)
	}

	switch msg := msg.(type) {
	case dashboardDataMsg:
		if msg.err != nil {
			return d, errStatus(msg.err)
		}
		d.today = msg.today
		d.dayTotals = msg.dayTotals
		d.sessions = msg.sessions
		d.timers = msg.timers
		d.timerIdx = timerIndex(msg.timers)
		d.dailyGoal = msg.dailyGoal
		d.active.set(msg.active)
		if d.pickerCursor >= len(d.timers) {
			d.pickerCursor = max(0, len(d.timers)-1)
		}
		return d, nil

	case tickMsg:
		d.active.tick()
		return d, nil

	case tea.KeyMsg:
		if d.picking {
			return d.updatePicker(msg)
		}

		switch {
		case key.Matches(msg, keys.Start):
			if len(d.timers) == 0 {
				return d, func() tea.Msg {
					return statusMsg{text: "No timers yet. Press 2 to go to Timers and create one.", isError: true}
				}
			}
			if len(d.timers) == 1 && !d.active.running() {
				return d.startTimer(d.timers[0].ID)
			}
			d.picking = true
			d.pickerCursor = 0
			return d, nil

		case key.Matches(msg, keys.Stop):
			return d.stopTimer()

		case key.Matches(msg, keys.EndDay):
			return d.endDay()

		case key.Matches(msg, keys.Reset):
			return d.showResetConfirm()
		}
	}
	return d, nil
}

func (d dashboardModel) updatePicker(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if d.pickerCursor > 0 {
			d.pickerCursor--
		}
	case key.Matches(msg, keys.Down):
		if d.pickerCursor < len(d.timers)-1 {
			d.pickerCursor++
		}
	case key.Matches(msg, keys.Enter):
		d.picking = false
		if d.pickerCursor < len(d.timers) {
			return d.startTimer(d.timers[d.pickerCursor].ID)
		}
	case key.Matches(msg, keys.Back):
		d.picking = false
	}
	return d, nil
}

func (d dashboardModel) startTimer(timerID string) (dashboardModel, tea.Cmd) {
	res, err := d.active.start(timerID)
	if err != nil {
		return d, errStatus(err)
	}
	return d, tea.Batch(
		d.loadData(),
		func() tea.Msg { return timerStartedMsg{result: res} },
	)
}

func (d dashboardModel) stopTimer() (dashboardModel, tea.Cmd) {
	se, err := d.active.stop()
	if err != nil {
		return d, errStatus(err)
	}
	return d, tea.Batch(
		d.loadData(),
		func() tea.Msg { return timerStoppedMsg{session: se} },
	)
}

func (d dashboardModel) endDay() (dashboardModel, tea.Cmd) {
	day := d.env.today()
	res, err := d.env.stats.EndDay(context.Background(), d.env.user, d.env.tz, day)
	if err != nil {
		return d, errStatus(err)
	}
	if res.Stopped != nil {
		d.active.set(nil)
	}
	return d, tea.Batch(
		d.loadData(),
		func() tea.Msg { return dayEndedMsg{result: res} },
	)
}

func (d dashboardModel) showResetConfirm() (dashboardModel, tea.Cmd) {
	*d.confirmReset = false
	d.confirm = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Reset all cycle totals?").
				Description("The running timer is stopped first.").
				Affirmative("Reset").
				Negative("Cancel").
				Value(d.confirmReset),
		),
	).WithShowHelp(true)
	d.confirming = true
	return d, d.confirm.Init()
}

func (d dashboardModel) updateConfirm(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		d.confirming = false
		d.confirm = nil
		return d, nil
	}

	form, cmd := d.confirm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		d.confirm = f
	}
	if d.confirm.State != huh.StateCompleted {
		return d, cmd
	}

	d.confirming = false
	d.confirm = nil
	if !*d.confirmReset {
		return d, nil
	}
	if _, err := d.env.ledger.ResetTotals(context.Background(), d.env.user); err != nil {
		return d, errStatus(err)
	}
	d.active.set(nil)
	return d, tea.Batch(
		d.loadData(),
		func() tea.Msg { return totalsResetMsg{} },
	)
}

// todaySeconds is the closed total for today plus the running session when
// it belongs to today.
func (d dashboardModel) todaySeconds() int64 {
	var total int64
	for _, t := range d.dayTotals {
		total += t.TotalSeconds
	}
	if se := d.active.session; se != nil && se.DayDate == d.today {
		total += int64(d.active.currentElapsed() / time.Second)
	}
	return total
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4

	if d.confirming && d.confirm != nil {
		return activePanelStyle.Width(contentWidth).Render(d.confirm.View())
	}

	timerPanel := d.renderTimerPanel(contentWidth)
	summaryPanel := d.renderSummaryPanel(contentWidth)

	var bottomPanel string
	if d.picking {
		bottomPanel = d.renderTimerPicker(contentWidth)
	} else {
		bottomPanel = d.renderSessionsPanel(contentWidth)
	}

	return lipgloss.JoinVertical(lipgloss.Left, timerPanel, summaryPanel, bottomPanel)
}

func (d dashboardModel) renderTimerPanel(w int) string {
	if d.active.running() {
		timeDisplay := timerRunningStyle.Width(w - 6).Render(formatDuration(d.active.currentElapsed()))
		indicator := successStyle.Render("●  RUNNING")

		color := d.active.timerColor
		if color == "" {
			color = string(colorHighlight)
		}
		timerLine := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(d.active.timerName)
		since := mutedStyle.Render("since " + d.active.session.StartAt.In(d.location()).Format("15:04"))

		content := lipgloss.JoinVertical(lipgloss.Center, timeDisplay, indicator, timerLine, since)
		return activePanelStyle.Width(w).Render(content)
	}

	timeDisplay := timerStyle.Width(w - 6).Render("00:00:00")
	indicator := mutedStyle.Render("■  IDLE")
	hint := mutedStyle.Render("Press s to start a timer")

	content := lipgloss.JoinVertical(lipgloss.Center, timeDisplay, indicator, hint)
	return panelStyle.Width(w).Render(content)
}

func (d dashboardModel) location() *time.Location {
	if loc, err := time.LoadLocation(d.env.tz); err == nil {
		return loc
	}
	return time.UTC
}

func (d dashboardModel) renderSummaryPanel(w int) string {
	total := d.todaySeconds()
	title := titleStyle.Render("Today")
	header := fmt.Sprintf("%s  %s", title, highlightStyle.Render(formatSeconds(total)))
	if d.dailyGoal > 0 {
		header += mutedStyle.Render(fmt.Sprintf("  goal %s", formatHours(d.dailyGoal)))
		header += "  " + renderGoalBar(total, d.dailyGoal, 20)
	}

	var rows []string
	rows = append(rows, header)

	if len(d.timers) == 0 {
		rows = append(rows, mutedStyle.Render("No timers yet"))
		return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
	}

	today := make(map[string]int64, len(d.dayTotals))
	for _, t := range d.dayTotals {
		today[t.TimerID] = t.TotalSeconds
	}
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-2s %-24s %10s %12s", "", "Timer", "Today", "Cycle")))
	for _, t := range d.timers {
		colorDot := lipgloss.NewStyle().Foreground(lipgloss.Color(t.Color)).Render("●")
		rows = append(rows, fmt.Sprintf("  %s  %-24s %10s %12s",
			colorDot, t.Name, formatSeconds(today[t.ID]), formatSeconds(t.CycleTotalSeconds)))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func renderGoalBar(done, goal int64, width int) string {
	filled := int(done * int64(width) / goal)
	filled = min(filled, width)
	bar := successStyle.Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", width-filled))
	return bar
}

func (d dashboardModel) renderSessionsPanel(w int) string {
	title := titleStyle.Render("Sessions today")
	if len(d.sessions) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No sessions today"),
		)
		return panelStyle.Width(w).Render(content)
	}

	loc := d.location()
	var rows []string
	rows = append(rows, title)
	// Most recent last, capped to what fits.
	start := max(0, len(d.sessions)-8)
	for _, se := range d.sessions[start:] {
		name := "?"
		if t, ok := d.timerIdx[se.TimerID]; ok {
			name = t.Name
		}
		status, dur := "✓", formatSeconds(se.Duration())
		if se.Open() {
			status, dur = "●", "running"
		}
		rows = append(rows, fmt.Sprintf("  %s %s  %-16s %s", status, se.StartAt.In(loc).Format("15:04"), name, dur))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderTimerPicker(w int) string {
	title := titleStyle.Render("Select Timer")

	var rows []string
	rows = append(rows, title)
	for i, t := range d.timers {
		colorDot := lipgloss.NewStyle().Foreground(lipgloss.Color(t.Color)).Render("●")
		cursor := "  "
		style := normalItemStyle
		if i == d.pickerCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		line := fmt.Sprintf("%s%s %s %s", cursor, colorDot, t.Icon, t.Name)
		if se := d.active.session; se != nil && se.TimerID == t.ID {
			line += "  (running)"
		}
		rows = append(rows, style.Render(line))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: select  esc: cancel"))

	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
