package sync

import (
	"github.com/nhle/nyord-notifier/internal/channel"
	"github.com/nhle/nyord-notifier/internal/model"
	"github.com/nhle/nyord-notifier/internal/notify"
)

// UpdateKind says which field of an Update is set.
type UpdateKind int

const (
	UpdateSnapshot UpdateKind = iota
	UpdateConnection
	UpdateBalance
	UpdateError
)

// ConnectionStatus is the user-facing view of the push channel.
type ConnectionStatus string

const (
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusPolling      ConnectionStatus = "polling"
	StatusDisconnected ConnectionStatus = "disconnected"
)

// statusFor maps a channel state of a live run. A closed channel means the
// polling fallback is carrying the session.
func statusFor(s channel.State) ConnectionStatus {
	switch s {
	case channel.StateOpen:
		return StatusConnected
	case channel.StateConnecting:
		return StatusConnecting
	default:
		return StatusPolling
	}
}

// Update is a tea.Msg emitted by the Provider.
type Update struct {
	Kind       UpdateKind
	Snapshot   notify.Snapshot
	Connection ConnectionStatus
	Balance    model.BalanceUpdate
	Err        error
	// AuthExpired is set when Err means the session token was rejected.
	AuthExpired bool
}
