package channel

import "encoding/json"

// Inbound and outbound frame types.
const (
	FrameNotification     = "notification"
	FrameTransaction      = "transaction.success"
	FrameSubscriptionAck  = "notification_subscription"
	FrameLowBalance       = "low_balance"
	FrameSubscribeRequest = "subscribe_notifications"
)

// envelope is the common shape of every push frame. Transaction frames
// carry their fields at the top level, so the raw bytes are kept for a
// second decode.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// subscribeRequest is sent once per successful open.
type subscribeRequest struct {
	Type string `json:"type"`
}
