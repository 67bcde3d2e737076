package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/nyord-notifier/internal/model"
)

// MarkAlerted records that id raised an alert. It reports false when id
// had already been recorded.
func (s *SQLiteStore) MarkAlerted(ctx context.Context, id model.ID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO alerted_notifications (notification_id, alerted_at) VALUES (?, ?)",
		id.String(), s.now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("recording alert for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("recording alert for %s: %w", id, err)
	}
	return n == 1, nil
}

// PruneAlerted forgets ledger entries recorded before the given time.
func (s *SQLiteStore) PruneAlerted(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM alerted_notifications WHERE alerted_at < ?", before.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning alert ledger: %w", err)
	}
	return res.RowsAffected()
}
