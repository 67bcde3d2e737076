package store

import (
	"context"
	"time"

	"github.com/nhle/nyord-notifier/internal/model"
)

// Store defines the local persistence the notifier needs between runs:
// small settings, the alerted-notification ledger and a per-user snapshot
// of the last known notification list.
type Store interface {
	// === Settings ===

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// === Alert ledger ===

	// MarkAlerted records id and reports whether it was not recorded before.
	MarkAlerted(ctx context.Context, id model.ID) (bool, error)
	PruneAlerted(ctx context.Context, before time.Time) (int64, error)

	// === Notification cache ===

	SaveNotifications(ctx context.Context, userID model.ID, list []model.Notification) error
	LoadNotifications(ctx context.Context, userID model.ID) ([]model.Notification, error)
	ClearNotifications(ctx context.Context, userID model.ID) error

	Close() error
}
