package alert

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/gen2brain/beeep"
)

// PermissionKey is the settings key holding the user's alert decision.
const PermissionKey = "alerts.permission"

// Settings persists small string values.
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// DesktopPresenter shows alerts through the OS notification service.
type DesktopPresenter struct {
	settings Settings
	notify   func(title, body string, important bool) error

	mu         gosync.RWMutex
	permission Permission
}

var _ Presenter = (*DesktopPresenter)(nil)

// NewDesktopPresenter loads the stored permission from settings.
func NewDesktopPresenter(ctx context.Context, settings Settings) (*DesktopPresenter, error) {
	p := &DesktopPresenter{
		settings:   settings,
		notify:     beeepNotify,
		permission: PermissionDefault,
	}

	v, err := settings.GetSetting(ctx, PermissionKey)
	if err != nil {
		return p, fmt.Errorf("loading alert permission: %w", err)
	}
	p.permission = ParsePermission(v)
	return p, nil
}

func beeepNotify(title, body string, important bool) error {
	if important {
		return beeep.Alert(title, body, "")
	}
	return beeep.Notify(title, body, "")
}

// Permission returns the last recorded decision.
func (p *DesktopPresenter) Permission() Permission {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.permission
}

// SetPermission records the user's decision. It is only ever called from
// an explicit user action.
func (p *DesktopPresenter) SetPermission(ctx context.Context, perm Permission) error {
	if err := p.settings.SetSetting(ctx, PermissionKey, string(perm)); err != nil {
		return fmt.Errorf("saving alert permission: %w", err)
	}
	p.mu.Lock()
	p.permission = perm
	p.mu.Unlock()
	return nil
}

// Show presents a through beeep.
func (p *DesktopPresenter) Show(a Alert) error {
	title := a.Title
	if a.Kind == KindAccount && a.Level != "" && a.Level != "info" {
		title = fmt.Sprintf("%s (%s)", a.Title, a.Level)
	}
	if err := p.notify(title, a.Body, a.Important); err != nil {
		return fmt.Errorf("desktop notify: %w", err)
	}
	return nil
}
