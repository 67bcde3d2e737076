package alert

import (
	"context"

	"go.uber.org/zap"

	"github.com/nhle/nyord-notifier/internal/model"
)

// Ledger records which notification ids have already raised an alert.
type Ledger interface {
	// MarkAlerted records id and reports whether it was new.
	MarkAlerted(ctx context.Context, id model.ID) (bool, error)
}

// Once forwards each notification id to the wrapped notifier at most once.
type Once struct {
	next   Notifier
	ledger Ledger
	log    *zap.Logger
}

var _ Notifier = (*Once)(nil)

// NewOnce guards next with ledger.
func NewOnce(next Notifier, ledger Ledger, log *zap.Logger) *Once {
	if log == nil {
		log = zap.NewNop()
	}
	return &Once{next: next, ledger: ledger, log: log}
}

// Notify forwards n unless its id was seen before. Notifications without
// an id are always forwarded. If the ledger fails, the alert is still
// raised.
func (o *Once) Notify(ctx context.Context, n model.Notification) {
	if n.ID != "" {
		first, err := o.ledger.MarkAlerted(ctx, n.ID)
		if err != nil {
			o.log.Warn("alert ledger", zap.String("id", n.ID.String()), zap.Error(err))
		} else if !first {
			return
		}
	}
	o.next.Notify(ctx, n)
}
