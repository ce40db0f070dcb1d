package tui

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/coursetimers/internal/clock"
	"github.com/sadopc/coursetimers/internal/stats"
	"github.com/sadopc/coursetimers/internal/store"
)

type reportMode int

const (
	reportWeekly reportMode = iota
	reportAverages
)

type reportsModel struct {
	env    *env
	width  int
	height int

	mode      reportMode
	offset    int // weeks back from the current one
	weekStart string
	week      []stats.DayBreakdown
	averages  []stats.TimerAverage
	window    int
	timerIdx  map[string]store.Timer

	chart barchart.Model
}

func newReportsModel(e *env) reportsModel {
	return reportsModel{
		env:      e,
		timerIdx: map[string]store.Timer{},
		chart:    barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type reportsDataMsg struct {
	weekStart string
	week      []stats.DayBreakdown
	averages  []stats.TimerAverage
	window    int
	timers    []store.Timer
	err       error
}

func (r reportsModel) refresh() tea.Cmd {
	e, offset := r.env, r.offset
	return func() tea.Msg {
		ctx := context.Background()
		msg := reportsDataMsg{}

		start, err := clock.WeekStart(e.today())
		if err == nil {
			start, err = clock.AddDays(start, -7*offset)
		}
		if err != nil {
			msg.err = err
			return msg
		}
		msg.weekStart = start
		if msg.week, err = e.stats.WeekTotals(ctx, e.user, start); err != nil {
			msg.err = err
			return msg
		}

		v, _ := e.store.GetSetting(ctx, e.user, store.SettingAveragesDays)
		msg.window, _ = strconv.Atoi(v)
		if msg.window < 1 || msg.window > stats.MaxWindowDays {
			msg.window = stats.DefaultWindowDays
		}
		if msg.averages, err = e.stats.Averages(ctx, e.user, msg.window, e.tz); err != nil {
			msg.err = err
			return msg
		}
		// Archived timers still label past weeks.
		msg.timers, _ = e.store.ListTimers(ctx, e.user, true)
		return msg
	}
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		if msg.err != nil {
			return r, errStatus(msg.err)
		}
		r.weekStart = msg.weekStart
		r.week = msg.week
		r.averages = msg.averages
		r.window = msg.window
		r.timerIdx = timerIndex(msg.timers)
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
			return r, r.refresh()
		case key.Matches(msg, keys.Right):
			if r.offset > 0 {
				r.offset--
			}
			return r, r.refresh()
		case key.Matches(msg, keys.Enter):
			if r.mode == reportWeekly {
				r.mode = reportAverages
			} else {
				r.mode = reportWeekly
			}
			return r, nil
		}
	}
	return r, nil
}

func (r reportsModel) timerName(id string) (string, string) {
	if t, ok := r.timerIdx[id]; ok {
		return t.Name, t.Color
	}
	return "?", string(colorMuted)
}

func (r *reportsModel) buildChart() {
	chartWidth := max(r.width-8, 20)
	chartHeight := 12
	if r.height > 30 {
		chartHeight = 16
	}

	r.chart = barchart.New(chartWidth, chartHeight)

	var bars []barchart.BarData
	for _, day := range r.week {
		label := day.Day
		if t, err := clock.ParseDay(day.Day); err == nil {
			label = t.Format("Mon 02")
		}

		var values []barchart.BarValue
		for _, total := range day.Totals {
			name, color := r.timerName(total.TimerID)
			values = append(values, barchart.BarValue{
				Name:  name,
				Value: float64(total.TotalSeconds) / 3600.0,
				Style: lipgloss.NewStyle().Foreground(lipgloss.Color(color)),
			})
		}
		if len(values) == 0 {
			values = []barchart.BarValue{{Name: "", Value: 0, Style: lipgloss.NewStyle().Foreground(colorSubtle)}}
		}

		bars = append(bars, barchart.BarData{Label: label, Values: values})
	}

	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r reportsModel) view() string {
	w := r.width - 4

	weeklyTab := inactiveTabStyle.Render("Week")
	avgTab := inactiveTabStyle.Render("Averages")
	if r.mode == reportWeekly {
		weeklyTab = activeTabStyle.Render("Week")
	} else {
		avgTab = activeTabStyle.Render("Averages")
	}
	modeTabs := lipgloss.JoinHorizontal(lipgloss.Bottom, weeklyTab, avgTab)

	var label, body string
	if r.mode == reportWeekly {
		if len(r.week) == 7 {
			label = mutedStyle.Render(fmt.Sprintf("%s to %s", r.week[0].Day, r.week[6].Day))
		}
		body = lipgloss.JoinVertical(lipgloss.Left, r.chart.View(), "", r.renderLegend(), "", r.renderWeekTable(w))
	} else {
		label = mutedStyle.Render(fmt.Sprintf("last %d days", r.window))
		body = r.renderAverages()
	}

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Reports"), "  ", modeTabs, "  ", label,
	)
	nav := mutedStyle.Render("  ←/→: previous/next week  enter: switch mode")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", nav),
	)
}

// weekTotals sums the week per timer, largest first.
func (r reportsModel) weekTotals() []store.TimerTotal {
	sums := map[string]int64{}
	for _, day := range r.week {
		for _, t := range day.Totals {
			sums[t.TimerID] += t.TotalSeconds
		}
	}
	totals := make([]store.TimerTotal, 0, len(sums))
	for id, secs := range sums {
		totals = append(totals, store.TimerTotal{TimerID: id, TotalSeconds: secs})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].TotalSeconds != totals[j].TotalSeconds {
			return totals[i].TotalSeconds > totals[j].TotalSeconds
		}
		return totals[i].TimerID < totals[j].TimerID
	})
	return totals
}

func (r reportsModel) renderWeekTable(w int) string {
	totals := r.weekTotals()
	if len(totals) == 0 {
		return mutedStyle.Render("  No data for this week")
	}

	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-24s %10s", "Timer", "Total")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 36))))
	for _, t := range totals {
		name, color := r.timerName(t.TimerID)
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("●")
		rows = append(rows, fmt.Sprintf("  %s %-22s %10s", dot, name, formatSeconds(t.TotalSeconds)))
	}
	return strings.Join(rows, "\n")
}

func (r reportsModel) renderAverages() string {
	if len(r.averages) == 0 {
		return mutedStyle.Render("  No timers")
	}
	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-24s %12s", "Timer", "Per day")))
	for _, a := range r.averages {
		name, color := r.timerName(a.TimerID)
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("●")
		rows = append(rows, fmt.Sprintf("  %s %-22s %12s", dot, name, formatSeconds(a.AvgSecondsPerDay)))
	}
	return strings.Join(rows, "\n")
}

func (r reportsModel) renderLegend() string {
	var items []string
	for _, t := range r.weekTotals() {
		name, color := r.timerName(t.TimerID)
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("●")
		items = append(items, fmt.Sprintf("%s %s", dot, name))
	}
	if len(items) == 0 {
		return ""
	}
	return "  " + strings.Join(items, "  ")
}
