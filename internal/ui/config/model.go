package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/nyord-notifier/internal/model"
	"github.com/nhle/nyord-notifier/internal/theme"
)

// SavedMsg reports the outcome of writing the settings file.
type SavedMsg struct {
	Config *model.AppConfig
	Err    error
}

// DoneMsg signals the settings view closed without saving.
type DoneMsg struct{}

// formBindings holds the field values huh writes into. It lives on the
// heap so the pointers stay valid across model copies.
type formBindings struct {
	baseURL         string
	wsURL           string
	theme           string
	refreshInterval string
	pollInterval    string
	metricsAddr     string
	redisAddr       string
}

// Model edits the persisted AppConfig.
type Model struct {
	form *huh.Form
	fb   *formBindings
	base *model.AppConfig
	path string

	width, height int
}

// New creates a settings view writing to path.
func New(path string, width, height int) Model {
	return Model{fb: &formBindings{}, path: path, width: width, height: height}
}

// Start opens the form prefilled from cfg.
func (m *Model) Start(cfg *model.AppConfig) tea.Cmd {
	c := *cfg
	m.base = &c
	*m.fb = formBindings{
		baseURL:         cfg.API.BaseURL,
		wsURL:           cfg.API.WSURL,
		theme:           cfg.Display.Theme,
		refreshInterval: cfg.Sync.RefreshInterval.String(),
		pollInterval:    cfg.Sync.PollInterval.String(),
		metricsAddr:     cfg.Metrics.Addr,
		redisAddr:       cfg.Events.RedisAddr,
	}
	m.form = m.buildForm()
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API base URL").
				Description("Applies on next start").
				Value(&m.fb.baseURL).
				Validate(validateURL("http", "https")),
			huh.NewInput().
				Title("WebSocket URL").
				Description("Push channel endpoint").
				Value(&m.fb.wsURL).
				Validate(validateURL("ws", "wss")),
			huh.NewSelect[string]().
				Title("Theme").
				Options(
					huh.NewOption("Default", "default"),
					huh.NewOption("Monochrome", "mono"),
				).
				Value(&m.fb.theme),
		).Title("Connection"),
		huh.NewGroup(
			huh.NewInput().
				Title("Refresh interval").
				Description("Full refetch while connected, e.g. 30s").
				Value(&m.fb.refreshInterval).
				Validate(validateDuration),
			huh.NewInput().
				Title("Poll interval").
				Description("Refetch while the socket is down, e.g. 10s").
				Value(&m.fb.pollInterval).
				Validate(validateDuration),
			huh.NewInput().
				Title("Metrics address").
				Description("host:port for /metrics, empty to disable").
				Value(&m.fb.metricsAddr),
			huh.NewInput().
				Title("Redis address").
				Description("host:port to mirror events, empty to disable").
				Value(&m.fb.redisAddr),
		).Title("Sync"),
	).WithShowHelp(false).WithWidth(m.formWidth())
}

// Update handles messages for the settings form.
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
		m.form = nil
		return m, m.save(m.result())
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return DoneMsg{} }
	}
	return m, cmd
}

// result applies the form values to a copy of the base config. Values
// were validated by the form, so parse failures keep the old setting.
func (m Model) result() *model.AppConfig {
	c := *m.base
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(m.fb.baseURL), "/")
	c.API.WSURL = strings.TrimSpace(m.fb.wsURL)
	c.Display.Theme = m.fb.theme
	if d, err := time.ParseDuration(strings.TrimSpace(m.fb.refreshInterval)); err == nil {
		c.Sync.RefreshInterval = d
	}
	if d, err := time.ParseDuration(strings.TrimSpace(m.fb.pollInterval)); err == nil {
		c.Sync.PollInterval = d
	}
	c.Metrics.Addr = strings.TrimSpace(m.fb.metricsAddr)
	c.Events.RedisAddr = strings.TrimSpace(m.fb.redisAddr)
	return &c
}

func (m Model) save(cfg *model.AppConfig) tea.Cmd {
	path := m.path
	return func() tea.Msg {
		return SavedMsg{Config: cfg, Err: model.SaveConfig(path, cfg)}
	}
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
		Render("Settings")
	path := theme.HelpStyle.Render(m.path)

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, path, "", m.form.View()))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

// --- Validators ---

func validateURL(schemes ...string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("URL is required")
		}
		parsed, err := url.Parse(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("invalid URL: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("URL must include scheme and host")
		}
		for _, scheme := range schemes {
			if parsed.Scheme == scheme {
				return nil
			}
		}
		return fmt.Errorf("URL scheme must be one of %s", strings.Join(schemes, ", "))
	}
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("not a duration (try 30s or 1m)")
	}
	if d < time.Second {
		return fmt.Errorf("must be at least 1s")
	}
	return nil
}
