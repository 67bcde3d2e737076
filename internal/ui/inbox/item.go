package inbox

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/nyord-notifier/internal/model"
	"github.com/nhle/nyord-notifier/internal/theme"
)

// Item wraps a notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for searching.
func (i Item) FilterValue() string {
	return i.Notification.Title + " " + i.Notification.Message
}

func (i Item) Title() string { return i.Notification.Title }

// Description returns a short summary line for the list.
func (i Item) Description() string {
	parts := []string{
		string(category(i.Notification)),
		i.Notification.Message,
		relativeTime(i.Notification.CreatedAt.Time),
	}
	return strings.Join(parts, " | ")
}

// category falls back to deriving the category from the type when the
// backend did not send one.
func category(n model.Notification) model.Category {
	if n.Category != "" {
		return n.Category
	}
	return model.CategoryFor(n.Type)
}

// ItemDelegate implements list.ItemDelegate for rendering notifications.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification
	isSelected := index == m.Index()

	marker := " "
	if !n.IsRead {
		marker = theme.UnreadStyle.Render("●")
	}

	cat := string(category(n))
	badge := theme.CategoryStyle(cat).Render(badgeLabel(cat))

	title := n.Title
	if title == "" {
		title = string(n.Type)
	}

	message := ""
	if n.Message != "" {
		message = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Render("  " + truncate(n.Message, 60))
	}

	when := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(n.CreatedAt.Time))

	line := fmt.Sprintf("%s %s %s%s  %s", marker, badge, title, message, when)

	if n.IsRead {
		line = theme.DimmedStyle.Render(line)
	}

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

func badgeLabel(category string) string {
	switch category {
	case "transaction":
		return "TXN"
	case "loan":
		return "LOAN"
	case "kyc":
		return "KYC"
	case "account":
		return "ACCT"
	default:
		return "INFO"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("Jan 02")
	}
}
