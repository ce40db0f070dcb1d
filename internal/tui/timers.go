package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/coursetimers/internal/store"
)

var timerColors = []string{"#6C63FF", "#2EC4B6", "#FF6B6B", "#F39C12", "#2ECC71", "#E74C3C", "#9B59B6", "#3498DB"}
var timerIcons = []string{"book", "pencil", "flask", "code", "calc", "globe", "music", "brush"}

type timersModel struct {
	env    *env
	width  int
	height int

	timers       []store.Timer
	cursor       int
	showArchived bool

	formActive bool
	form       *huh.Form
	editingID  string // empty when creating

	// Form field pointers (survive value copies)
	formName  *string
	formColor *string
	formIcon  *string
}

func newTimersModel(e *env) timersModel {
	name, color, icon := "", timerColors[0], timerIcons[0]
	return timersModel{
		env:       e,
		formName:  &name,
		formColor: &color,
		formIcon:  &icon,
	}
}

func (p *timersModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

type timersDataMsg struct {
	timers []store.Timer
}

func (p timersModel) refresh() tea.Cmd {
	e, archived := p.env, p.showArchived
	return func() tea.Msg {
		timers, err := e.store.ListTimers(context.Background(), e.user, archived)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return timersDataMsg{timers: timers}
	}
}

func (p timersModel) update(msg tea.Msg) (timersModel, tea.Cmd) {
	if p.formActive && p.form != nil {
		return p.updateForm(msg)
	}

	switch msg := msg.(type) {
	case timersDataMsg:
		p.timers = msg.timers
		if p.cursor >= len(p.timers) {
			p.cursor = max(0, len(p.timers)-1)
		}
		return p, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if p.cursor > 0 {
				p.cursor--
			}
		case key.Matches(msg, keys.Down):
			if p.cursor < len(p.timers)-1 {
				p.cursor++
			}
		case key.Matches(msg, keys.New):
			return p.showForm(nil)
		case key.Matches(msg, keys.Edit):
			if len(p.timers) > 0 {
				t := p.timers[p.cursor]
				return p.showForm(&t)
			}
		case key.Matches(msg, keys.Delete):
			if len(p.timers) > 0 {
				t := p.timers[p.cursor]
				if err := p.env.store.ArchiveTimer(context.Background(), p.env.user, t.ID); err != nil {
					return p, errStatus(err)
				}
				return p, p.refresh()
			}
		case key.Matches(msg, keys.Archived):
			p.showArchived = !p.showArchived
			return p, p.refresh()
		}
	}
	return p, nil
}

func validTimerField(label string) func(string) error {
	return func(s string) error {
		if n := utf8.RuneCountInString(strings.TrimSpace(s)); n < 1 || n > 32 {
			return fmt.Errorf("%s must be 1-32 characters", label)
		}
		return nil
	}
}

// showForm opens the create form, or the edit form when t is set.
func (p timersModel) showForm(t *store.Timer) (timersModel, tea.Cmd) {
	*p.formName = ""
	*p.formColor = timerColors[0]
	*p.formIcon = timerIcons[0]
	p.editingID = ""
	if t != nil {
		*p.formName = t.Name
		*p.formColor = t.Color
		*p.formIcon = t.Icon
		p.editingID = t.ID
	}

	colorOptions := make([]huh.Option[string], len(timerColors))
	for i, c := range timerColors {
		colorOptions[i] = huh.NewOption(fmt.Sprintf("● %s", c), c)
	}
	iconOptions := make([]huh.Option[string], len(timerIcons))
	for i, ic := range timerIcons {
		iconOptions[i] = huh.NewOption(ic, ic)
	}

	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Timer Name").Value(p.formName).Validate(validTimerField("name")),
			huh.NewSelect[string]().Title("Color").Options(colorOptions...).Value(p.formColor),
			huh.NewSelect[string]().Title("Icon").Options(iconOptions...).Value(p.formIcon),
		),
	).WithShowHelp(true).WithShowErrors(true)

	p.formActive = true
	return p, p.form.Init()
}

func (p timersModel) updateForm(msg tea.Msg) (timersModel, tea.Cmd) {
	// Check for escape to cancel form
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			p.formActive = false
			p.form = nil
			return p, nil
		}
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}

	if p.form.State == huh.StateCompleted {
		p.formActive = false
		if err := p.save(); err != nil {
			return p, errStatus(err)
		}
		return p, p.refresh()
	}

	return p, cmd
}

func (p timersModel) save() error {
	ctx := context.Background()
	name := strings.TrimSpace(*p.formName)
	var err error
	if p.editingID == "" {
		_, err = p.env.store.CreateTimer(ctx, p.env.user, name, *p.formColor, *p.formIcon)
	} else {
		_, err = p.env.store.UpdateTimer(ctx, p.env.user, p.editingID, store.TimerUpdate{
			Name:  &name,
			Color: p.formColor,
			Icon:  p.formIcon,
		})
	}
	if errors.Is(err, store.ErrDuplicateTimerName) {
		return fmt.Errorf("a timer named %q already exists", name)
	}
	return err
}

func (p timersModel) view() string {
	if p.formActive && p.form != nil {
		title := titleStyle.Render("New Timer")
		if p.editingID != "" {
			title = titleStyle.Render("Edit Timer")
		}
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", p.form.View())
		return panelStyle.Width(p.width - 4).Render(content)
	}
	return p.renderTimerList()
}

func (p timersModel) renderTimerList() string {
	w := p.width - 4
	title := titleStyle.Render("Timers")
	if p.showArchived {
		title += mutedStyle.Render("  (including archived)")
	}

	if len(p.timers) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No timers yet. Press n to create one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	header := mutedStyle.Render(fmt.Sprintf("  %-3s %-24s %-8s %12s", "", "Name", "Icon", "Cycle"))
	rows = append(rows, header)

	for i, t := range p.timers {
		colorDot := lipgloss.NewStyle().Foreground(lipgloss.Color(t.Color)).Render("●")
		cursor := "  "
		style := normalItemStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		line := style.Render(fmt.Sprintf("%s%s %-24s %-8s %12s", cursor, colorDot, t.Name, t.Icon, formatSeconds(t.CycleTotalSeconds)))
		if t.Archived {
			line += warningStyle.Render("  archived")
		}
		rows = append(rows, line)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  enter: edit  d: archive  a: show archived"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
