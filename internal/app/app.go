package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/nyord-notifier/internal/alert"
	"github.com/nhle/nyord-notifier/internal/keys"
	"github.com/nhle/nyord-notifier/internal/model"
	"github.com/nhle/nyord-notifier/internal/notify"
	appsync "github.com/nhle/nyord-notifier/internal/sync"
	"github.com/nhle/nyord-notifier/internal/theme"
	"github.com/nhle/nyord-notifier/internal/ui"
	alertsview "github.com/nhle/nyord-notifier/internal/ui/alerts"
	"github.com/nhle/nyord-notifier/internal/ui/command"
	configview "github.com/nhle/nyord-notifier/internal/ui/config"
	"github.com/nhle/nyord-notifier/internal/ui/detail"
	helpview "github.com/nhle/nyord-notifier/internal/ui/help"
	"github.com/nhle/nyord-notifier/internal/ui/inbox"
)

// actionTimeout bounds a single user-triggered REST call.
const actionTimeout = 15 * time.Second

// Provider is the part of the sync provider the inbox drives.
type Provider interface {
	Snapshot() notify.Snapshot
	ConnectionStatus() appsync.ConnectionStatus
	Refresh()
	Reconcile()
	MarkRead(ctx context.Context, id model.ID) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id model.ID) error
	WaitForUpdate() tea.Cmd
	Stop()
}

// AlertControl reads and records the desktop alert decision.
type AlertControl interface {
	Permission() alert.Permission
	SetPermission(ctx context.Context, p alert.Permission) error
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewHelp
	ViewCommand
	ViewAlerts
	ViewSettings
)

// actionResultMsg reports the outcome of a REST action.
type actionResultMsg struct {
	action string
	err    error
}

// permissionSavedMsg reports the outcome of recording an alert decision.
type permissionSavedMsg struct {
	permission alert.Permission
	err        error
}

// Option customises the root model.
type Option func(*Model)

// WithAlertControl enables the A key.
func WithAlertControl(ac AlertControl) Option { return func(m *Model) { m.alerts = ac } }

// WithLogout sets what L does besides stopping the provider, typically
// forgetting the stored token.
func WithLogout(f func() error) Option { return func(m *Model) { m.logout = f } }

// WithSettings enables the S key, editing cfg and saving it to path.
func WithSettings(cfg *model.AppConfig, path string) Option {
	return func(m *Model) {
		m.settings = cfg
		m.settingsView = configview.New(path, 80, 24)
	}
}

func WithLogger(l *zap.Logger) Option { return func(m *Model) { m.log = l } }

// Model is the root Bubble Tea model: view routing, layout and the
// bridge from key presses to provider actions.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	provider     Provider
	alerts       AlertControl
	logout       func() error
	settings     *model.AppConfig
	log          *zap.Logger

	inbox       inbox.Model
	detailView  detail.Model
	helpView    helpview.Model
	commandView command.Model
	alertsView  alertsview.Model

	settingsView configview.Model

	ready       bool
	unreadCount int
	connection  appsync.ConnectionStatus
	balance     *model.BalanceUpdate
	errMessage  string
	notice      string
	loggedOut   bool
}

// New creates the root model for p.
func New(p Provider, opts ...Option) Model {
	k := keys.DefaultKeyMap()
	m := Model{
		currentView: ViewList,
		keys:        k,
		provider:    p,
		log:         zap.NewNop(),
		inbox:       inbox.New(k, 80, 24),
		detailView:  detail.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		alertsView:  alertsview.New(80, 24),
		connection:  p.ConnectionStatus(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	snap := p.Snapshot()
	m.unreadCount = snap.UnreadCount
	m.inbox.SetNotifications(snap.Notifications)
	return m
}

// LoggedOut reports whether the session ended through the L key.
func (m Model) LoggedOut() bool { return m.loggedOut }

// Init starts listening for provider updates.
func (m Model) Init() tea.Cmd {
	return m.provider.WaitForUpdate()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.inbox.SetSize(w, h)
		m.detailView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.alertsView.SetSize(w, h)
		m.settingsView.SetSize(w, h)
		return m.updateActiveView(msg)

	case appsync.Update:
		cmd := m.applyUpdate(msg)
		return m, tea.Batch(cmd, m.provider.WaitForUpdate())

	case inbox.MarkReadRequestMsg:
		return m, m.runAction("mark read", func(ctx context.Context) error {
			return m.provider.MarkRead(ctx, msg.ID)
		})

	case inbox.OpenRequestMsg:
		m.previousView = ViewList
		m.currentView = ViewDetail
		m.detailView.SetNotification(msg.Notification)
		if msg.Notification.IsRead {
			return m, nil
		}
		id := msg.Notification.ID
		return m, m.runAction("mark read", func(ctx context.Context) error {
			return m.provider.MarkRead(ctx, id)
		})

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case detail.ActionMsg:
		id := msg.ID
		switch msg.Action {
		case detail.ActionMarkRead:
			return m, m.runAction("mark read", func(ctx context.Context) error {
				return m.provider.MarkRead(ctx, id)
			})
		case detail.ActionDelete:
			m.currentView = ViewList
			return m, m.runAction("delete", func(ctx context.Context) error {
				return m.provider.Delete(ctx, id)
			})
		}
		return m, nil

	case inbox.DeleteRequestMsg:
		return m, m.runAction("delete", func(ctx context.Context) error {
			return m.provider.Delete(ctx, msg.ID)
		})

	case actionResultMsg:
		if msg.err != nil {
			m.errMessage = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.log.Warn("inbox action failed", zap.String("action", msg.action), zap.Error(msg.err))
		} else {
			m.errMessage = ""
		}
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(string(msg))

	case command.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case alertsview.DecidedMsg:
		m.currentView = ViewList
		return m, m.savePermission(msg.Permission)

	case alertsview.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case configview.SavedMsg:
		m.currentView = ViewList
		if msg.Err != nil {
			m.errMessage = fmt.Sprintf("saving settings failed: %v", msg.Err)
			return m, nil
		}
		m.settings = msg.Config
		theme.Use(msg.Config.Display.Theme)
		m.notice = "settings saved, connection changes apply on next start"
		return m, nil

	case configview.DoneMsg:
		m.currentView = ViewList
		return m, nil

	case permissionSavedMsg:
		if msg.err != nil {
			m.errMessage = fmt.Sprintf("saving alert setting failed: %v", msg.err)
		} else {
			m.notice = "desktop alerts " + string(msg.permission)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.currentView == ViewList && !m.inbox.Searching() {
			m.notice = ""
			if next, cmd, handled := m.handleListKeys(msg); handled {
				return next, cmd
			}
		}
		if m.currentView == ViewHelp && (key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back)) {
			m.currentView = m.previousView
			return m, nil
		}
	}

	return m.updateActiveView(msg)
}

// handleListKeys covers the global keys that only apply to the list.
func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus(), true

	case key.Matches(msg, m.keys.MarkAllRead):
		return m, m.markAllRead(), true

	case key.Matches(msg, m.keys.Refresh):
		m.provider.Refresh()
		m.notice = "refreshing"
		return m, nil, true

	case key.Matches(msg, m.keys.Reconcile):
		m.provider.Reconcile()
		m.notice = "recounting unread"
		return m, nil, true

	case key.Matches(msg, m.keys.EnableAlerts):
		next, cmd := m.openAlerts()
		return next, cmd, true

	case key.Matches(msg, m.keys.Settings):
		next, cmd := m.openSettings()
		return next, cmd, true

	case key.Matches(msg, m.keys.Logout):
		next, cmd := m.doLogout()
		return next, cmd, true
	}
	return m, nil, false
}

func (m *Model) applyUpdate(u appsync.Update) tea.Cmd {
	switch u.Kind {
	case appsync.UpdateSnapshot:
		m.unreadCount = u.Snapshot.UnreadCount
		if m.currentView == ViewDetail {
			m.syncDetail(u.Snapshot.Notifications)
		}
		return m.inbox.SetNotifications(u.Snapshot.Notifications)

	case appsync.UpdateConnection:
		m.connection = u.Connection

	case appsync.UpdateBalance:
		b := u.Balance
		m.balance = &b

	case appsync.UpdateError:
		if u.AuthExpired {
			m.errMessage = "session expired: press L and log in again"
		} else if u.Err != nil {
			m.errMessage = "sync failed: " + u.Err.Error()
		}
	}
	return nil
}

// syncDetail re-renders the open notification from ns, or returns to the
// list when it is gone.
func (m *Model) syncDetail(ns []model.Notification) {
	id, ok := m.detailView.Current()
	if !ok {
		return
	}
	for _, n := range ns {
		if n.ID == id {
			m.detailView.Refresh(n)
			return
		}
	}
	m.currentView = ViewList
}

func (m Model) runAction(name string, f func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionResultMsg{action: name, err: f(ctx)}
	}
}

func (m Model) markAllRead() tea.Cmd {
	p := m.provider
	return m.runAction("mark all read", p.MarkAllRead)
}

func (m Model) openAlerts() (tea.Model, tea.Cmd) {
	if m.alerts == nil {
		m.notice = "desktop alerts are not available"
		return m, nil
	}
	m.previousView = m.currentView
	m.currentView = ViewAlerts
	return m, m.alertsView.Start(m.alerts.Permission())
}

func (m Model) openSettings() (tea.Model, tea.Cmd) {
	if m.settings == nil {
		m.notice = "settings are not available"
		return m, nil
	}
	m.previousView = m.currentView
	m.currentView = ViewSettings
	return m, m.settingsView.Start(m.settings)
}

func (m Model) savePermission(p alert.Permission) tea.Cmd {
	ac := m.alerts
	if ac == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return permissionSavedMsg{permission: p, err: ac.SetPermission(ctx, p)}
	}
}

func (m Model) doLogout() (tea.Model, tea.Cmd) {
	m.provider.Stop()
	if m.logout != nil {
		if err := m.logout(); err != nil {
			m.log.Warn("logout cleanup failed", zap.Error(err))
		}
	}
	m.loggedOut = true
	m.connection = appsync.StatusDisconnected
	return m, tea.Quit
}

// executeCommand handles a command string from the command palette.
func (m Model) executeCommand(cmd string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "refresh", "sync":
		m.provider.Refresh()
		return m, nil
	case "reconcile":
		m.provider.Reconcile()
		return m, nil
	case "read all", "mark all read":
		return m, m.markAllRead()
	case "unread":
		return m.updateActiveView(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("u")})
	case "alerts":
		return m.openAlerts()
	case "settings":
		return m.openSettings()
	case "logout":
		return m.doLogout()
	case "help":
		m.previousView = ViewList
		m.currentView = ViewHelp
		return m, nil
	case "quit", "q":
		return m, tea.Quit
	default:
		m.errMessage = fmt.Sprintf("unknown command %q", cmd)
		return m, nil
	}
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewAlerts:
		m.alertsView, cmd = m.alertsView.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "Nyord Notifications"
	if m.unreadCount > 0 {
		title = fmt.Sprintf("Nyord Notifications [%d unread]", m.unreadCount)
	}
	status := theme.ConnectionStyle(string(m.connection)).Render(string(m.connection))
	header := m.layout.RenderHeader(title, status)
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.balanceNote())

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewDetail:
		return m.detailView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewAlerts:
		return m.alertsView.View()
	case ViewSettings:
		return m.settingsView.View()
	default:
		return m.inbox.View()
	}
}

// balanceNote summarises the last balance update for the status bar.
func (m Model) balanceNote() string {
	if m.balance == nil {
		return ""
	}
	return fmt.Sprintf("txn %s: %s, balance %s",
		m.balance.TransactionID, m.balance.Amount.StringFixed(2), m.balance.NewSrcBalance.StringFixed(2))
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.errMessage != "" && (m.currentView == ViewList || m.currentView == ViewDetail) {
		return theme.ErrorStyle.Render(m.errMessage)
	}

	switch m.currentView {
	case ViewDetail:
		return "enter read | d delete | j/k scroll | esc back"
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewAlerts:
		return "←/→ choose | enter confirm | esc cancel"
	case ViewSettings:
		return "tab next field | enter confirm | esc cancel"
	default:
		if m.notice != "" {
			return m.notice
		}
		if summary := m.inbox.FilterSummary(); summary != "" {
			return summary + " | esc clear"
		}
		return "v open | enter read | M read all | d delete | r refresh | ? help | q quit"
	}
}
