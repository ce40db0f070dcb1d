package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/coursetimers/internal/clock"
	"github.com/sadopc/coursetimers/internal/stats"
	"github.com/sadopc/coursetimers/internal/store"
)

type settingsModel struct {
	env    *env
	width  int
	height int

	settings   []store.Setting
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	timezone     *string
	averagesDays *string
	dailyGoal    *string
}

func newSettingsModel(e *env) settingsModel {
	tz, ad, dg := "", "", ""
	return settingsModel{
		env:          e,
		timezone:     &tz,
		averagesDays: &ad,
		dailyGoal:    &dg,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings []store.Setting
}

func (s settingsModel) refresh() tea.Cmd {
	e := s.env
	return func() tea.Msg {
		settings, err := e.store.GetAllSettings(context.Background(), e.user)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return settingsDataMsg{settings: settings}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		s.settings = msg.settings
		return s, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.New):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.timezone = s.getVal(store.SettingTimezone)
	*s.averagesDays = s.getVal(store.SettingAveragesDays)
	*s.dailyGoal = secsToHours(s.getVal(store.SettingDailyGoal))

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Timezone (IANA)").
				Placeholder("America/Toronto").
				Validate(validTimezone).
				Value(s.timezone),
			huh.NewInput().Title("Averages window (days)").
				Validate(validWindow).
				Value(s.averagesDays),
			huh.NewInput().Title("Daily goal (hours)").
				Validate(validHours).
				Value(s.dailyGoal),
		).Title("General"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func validTimezone(v string) error {
	if _, err := clock.LoadLocation(v); err != nil {
		return errors.New("unknown timezone")
	}
	return nil
}

func validWindow(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > stats.MaxWindowDays {
		return fmt.Errorf("must be between 1 and %d", stats.MaxWindowDays)
	}
	return nil
}

func validHours(v string) error {
	h, err := strconv.ParseFloat(v, 64)
	if err != nil || h < 0 || h > 24 {
		return errors.New("must be between 0 and 24")
	}
	return nil
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		s.form = nil
		if err := s.saveSettings(); err != nil {
			return s, errStatus(err)
		}
		return s, tea.Batch(s.refresh(), func() tea.Msg {
			return statusMsg{text: "Settings saved"}
		})
	}

	return s, cmd
}

func (s settingsModel) saveSettings() error {
	ctx := context.Background()
	values := []store.Setting{
		{Key: store.SettingTimezone, Value: *s.timezone},
		{Key: store.SettingAveragesDays, Value: *s.averagesDays},
		{Key: store.SettingDailyGoal, Value: hoursToSecs(*s.dailyGoal)},
	}
	for _, v := range values {
		if err := s.env.store.SetSetting(ctx, s.env.user, v.Key, v.Value); err != nil {
			return err
		}
	}
	s.env.tz = *s.timezone
	return nil
}

func (s settingsModel) getVal(k string) string {
	v, err := s.env.store.GetSetting(context.Background(), s.env.user, k)
	if err != nil {
		return store.DefaultSettings[k]
	}
	return v
}

func (s settingsModel) view() string {
	w := s.width - 4

	if s.formActive && s.form != nil {
		title := titleStyle.Render("Settings")
		formView := s.form.View()
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", formView),
		)
	}

	title := titleStyle.Render("Settings")
	hint := mutedStyle.Render("Press enter to edit settings")

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	label := lipgloss.NewStyle().Width(24)
	rows = append(rows, fmt.Sprintf("  %s %s", label.Render("user"), highlightStyle.Render(s.env.user)))
	rows = append(rows, fmt.Sprintf("  %s %s", label.Render("database"), highlightStyle.Render(s.env.store.Backend())))
	for _, setting := range s.settings {
		value := highlightStyle.Render(formatSettingValue(setting.Key, setting.Value))
		rows = append(rows, fmt.Sprintf("  %s %s", label.Render(setting.Key), value))
	}

	rows = append(rows, "")
	rows = append(rows, hint)

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatSettingValue(k, v string) string {
	switch k {
	case store.SettingAveragesDays:
		return v + " days"
	case store.SettingDailyGoal:
		if secs, err := strconv.Atoi(v); err == nil {
			return fmt.Sprintf("%.1f hours", float64(secs)/3600)
		}
	}
	return v
}

func secsToHours(s string) string {
	if secs, err := strconv.Atoi(s); err == nil {
		return fmt.Sprintf("%.1f", float64(secs)/3600)
	}
	return s
}

func hoursToSecs(s string) string {
	if hours, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.Itoa(int(hours * 3600))
	}
	return s
}
