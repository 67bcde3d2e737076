package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// Styles shared by every view. Use rebuilds them.
var (
	// HeaderStyle is used for the application title bar.
	HeaderStyle lipgloss.Style
	// StatusBarStyle is used for the bottom status bar.
	StatusBarStyle lipgloss.Style
	// PanelStyle wraps overlays such as help and forms.
	PanelStyle lipgloss.Style
	// ListItemStyle is the base style for items in a list.
	ListItemStyle lipgloss.Style
	// SelectedItemStyle highlights the focused list item.
	SelectedItemStyle lipgloss.Style
	HelpStyle         lipgloss.Style
	DimmedStyle       lipgloss.Style
	UnreadStyle       lipgloss.Style
	ErrorStyle        lipgloss.Style
)

func init() {
	build()
}

// Use switches the palette. "mono" drops all color; anything else is the
// default palette.
func Use(name string) {
	if name == "mono" {
		plain := lipgloss.AdaptiveColor{}
		ColorBlue, ColorGreen, ColorYellow, ColorRed = plain, plain, plain, plain
		ColorOrange, ColorMagenta, ColorGray = plain, plain, plain
		ColorWhite, ColorSubtle, ColorBorder = plain, plain, plain
	}
	build()
}

func build() {
	HeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorWhite).
		Background(ColorBlue).
		Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
		Foreground(ColorWhite).
		Background(ColorSubtle).
		Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	ListItemStyle = lipgloss.NewStyle().
		PaddingLeft(2)

	SelectedItemStyle = lipgloss.NewStyle().
		PaddingLeft(1).
		Bold(true).
		Foreground(ColorBlue).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(ColorBlue)

	HelpStyle = lipgloss.NewStyle().
		Foreground(ColorGray).
		Italic(true)

	DimmedStyle = lipgloss.NewStyle().
		Foreground(ColorGray)

	UnreadStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBlue)

	ErrorStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorRed)
}

// CategoryStyle returns a color-coded badge style for a notification
// category.
func CategoryStyle(category string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch category {
	case "transaction":
		return base.Foreground(ColorGreen)
	case "loan":
		return base.Foreground(ColorOrange)
	case "kyc":
		return base.Foreground(ColorMagenta)
	case "account":
		return base.Foreground(ColorBlue)
	default:
		return base.Foreground(ColorGray)
	}
}

// ConnectionStyle colors the push channel status shown in the header.
func ConnectionStyle(status string) lipgloss.Style {
	base := HeaderStyle

	switch status {
	case "connected":
		return base.Foreground(ColorGreen)
	case "connecting":
		return base.Foreground(ColorYellow)
	case "polling":
		return base.Foreground(ColorOrange)
	default:
		return base.Foreground(ColorRed)
	}
}
