package detail

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/nyord-notifier/internal/keys"
	"github.com/nhle/nyord-notifier/internal/model"
	"github.com/nhle/nyord-notifier/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// ActionMsg asks the parent to run an action on the shown notification.
type ActionMsg struct {
	Action string
	ID     model.ID
}

const (
	ActionMarkRead = "mark read"
	ActionDelete   = "delete"
)

// Model shows a single notification in full.
type Model struct {
	n        *model.Notification
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, max(height-2, 0))
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.MarkRead):
			if m.n != nil && !m.n.IsRead {
				id := m.n.ID
				return m, func() tea.Msg { return ActionMsg{Action: ActionMarkRead, ID: id} }
			}
			return m, nil

		case key.Matches(msg, m.keys.Delete):
			if m.n != nil {
				id := m.n.ID
				return m, func() tea.Msg { return ActionMsg{Action: ActionDelete, ID: id} }
			}
			return m, nil
		}
	}

	// j/k, up/down, pgup/pgdn scroll.
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.n == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notification selected")
	}
	return m.viewport.View()
}

func (m Model) renderContent() string {
	if m.n == nil {
		return ""
	}
	n := m.n
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(n.Title))

	cat := n.Category
	if cat == "" {
		cat = model.CategoryFor(n.Type)
	}
	state := theme.UnreadStyle.Render("unread")
	if n.IsRead {
		state = theme.DimmedStyle.Render("read")
	}
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top,
		theme.CategoryStyle(string(cat)).Render(strings.ToUpper(string(cat))), "  ", state))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(10)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) {
		if value == "" {
			return
		}
		sections = append(sections, metaStyle.Render(label+":")+" "+valStyle.Render(value))
	}

	row("Type", string(n.Type))
	if n.FromUserName != "" {
		row("From", n.FromUserName)
	} else {
		row("From", n.FromUserID.String())
	}
	row("Related", n.RelatedID.String())
	if !n.CreatedAt.IsZero() {
		row("Received", n.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if n.ReadAt != nil && !n.ReadAt.IsZero() {
		row("Read", n.ReadAt.Local().Format("2006-01-02 15:04"))
	}
	row("ID", n.ID.String())

	separator := lipgloss.NewStyle().
		Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	body := n.Message
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No message")
	} else {
		body = lipgloss.NewStyle().Width(max(min(m.width-4, 80), 20)).Render(body)
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetNotification shows n and scrolls to the top.
func (m *Model) SetNotification(n model.Notification) {
	m.n = &n
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Refresh re-renders n in place when it is the notification being shown,
// keeping the scroll position.
func (m *Model) Refresh(n model.Notification) {
	if m.n == nil || m.n.ID != n.ID {
		return
	}
	m.n = &n
	m.viewport.SetContent(m.renderContent())
}

// Current returns the ID of the shown notification, if any.
func (m Model) Current() (model.ID, bool) {
	if m.n == nil {
		return "", false
	}
	return m.n.ID, true
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-2, 0)
	if m.n != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
