package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nhle/nyord-notifier/internal/model"
)

// cacheRow is one row of notification_cache.
type cacheRow struct {
	NotificationID string `db:"notification_id"`
	Position       int    `db:"position"`
	IsRead         bool   `db:"is_read"`
	Payload        string `db:"payload"`
}

// SaveNotifications replaces the cached list for userID, preserving order.
func (s *SQLiteStore) SaveNotifications(
	ctx context.Context,
	userID model.ID,
	list []model.Notification,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM notification_cache WHERE user_id = ?", userID.String(),
	); err != nil {
		return fmt.Errorf("clearing notification cache: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT OR REPLACE INTO notification_cache (
			user_id, notification_id, position, is_read, payload, cached_at
		) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing cache insert: %w", err)
	}
	defer stmt.Close()

	now := s.now().Unix()
	for i, n := range list {
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshaling notification %s: %w", n.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			userID.String(), n.ID.String(), i, boolToInt(n.IsRead), string(payload), now,
		); err != nil {
			return fmt.Errorf("caching notification %s: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing notification cache: %w", err)
	}
	return nil
}

// LoadNotifications returns the cached list for userID, newest-first.
func (s *SQLiteStore) LoadNotifications(
	ctx context.Context,
	userID model.ID,
) ([]model.Notification, error) {
	var rows []cacheRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT notification_id, position, is_read, payload
		FROM notification_cache
		WHERE user_id = ?
		ORDER BY position ASC`,
		userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying notification cache: %w", err)
	}

	list := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		var n model.Notification
		if err := json.Unmarshal([]byte(r.Payload), &n); err != nil {
			return nil, fmt.Errorf("unmarshaling cached notification %s: %w", r.NotificationID, err)
		}
		n.IsRead = r.IsRead
		list = append(list, n)
	}
	return list, nil
}

// ClearNotifications drops the cached list for userID.
func (s *SQLiteStore) ClearNotifications(ctx context.Context, userID model.ID) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM notification_cache WHERE user_id = ?", userID.String(),
	)
	if err != nil {
		return fmt.Errorf("clearing notification cache: %w", err)
	}
	return nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
