// Package alerts is the desktop alert opt-in form.
package alerts

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/nyord-notifier/internal/alert"
	"github.com/nhle/nyord-notifier/internal/theme"
)

// DecidedMsg carries the user's answer.
type DecidedMsg struct {
	Permission alert.Permission
}

// CancelMsg is sent when the form is dismissed without an answer.
type CancelMsg struct{}

// formBindings holds the answer on the heap so huh's Value pointer stays
// valid across Bubble Tea model copies.
type formBindings struct {
	enable bool
}

// Model asks once whether desktop alerts should be shown.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	current alert.Permission
	width   int
	height  int
}

func New(width, height int) Model {
	return Model{fb: &formBindings{}, width: width, height: height}
}

// Start builds a fresh form preselected from the current permission.
func (m *Model) Start(current alert.Permission) tea.Cmd {
	m.current = current
	m.fb.enable = current == alert.PermissionGranted
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Show desktop alerts for new notifications?").
				Description(description(current)).
				Affirmative("Enable").
				Negative("Disable").
				Value(&m.fb.enable),
		),
	).WithShowHelp(false)
	return m.form.Init()
}

func description(p alert.Permission) string {
	switch p {
	case alert.PermissionGranted:
		return "Currently enabled."
	case alert.PermissionDenied:
		return "Currently disabled."
	default:
		return "Not decided yet. Nothing is shown until you choose."
	}
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		p := alert.PermissionDenied
		if m.fb.enable {
			p = alert.PermissionGranted
		}
		m.form = nil
		return m, func() tea.Msg { return DecidedMsg{Permission: p} }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Desktop Alerts")

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, m.form.View()))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(max(width-8, 20))
	}
}
