package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/nyord-notifier/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// RenderHeader renders the top bar with the title on the left and an
// already styled status on the right.
func (l Layout) RenderHeader(title string, status string) string {
	return l.bar(theme.HeaderStyle, theme.HeaderStyle.Render(title), status)
}

// RenderStatusBar renders the bottom bar with key hints on the left and
// an optional note on the right.
func (l Layout) RenderStatusBar(hints string, note string) string {
	right := ""
	if note != "" {
		right = theme.StatusBarStyle.Render(note)
	}
	return l.bar(theme.StatusBarStyle, theme.StatusBarStyle.Render(hints), right)
}

// bar joins left and right with a filler in style's background.
func (l Layout) bar(style lipgloss.Style, left, right string) string {
	gap := l.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}
