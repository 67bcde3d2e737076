package model

import (
	"strings"
	"time"
)

// NotificationType is the fine-grained tag the backend attaches to a
// notification.
type NotificationType string

const (
	TypeTransaction  NotificationType = "transaction"
	TypeLoanRequest  NotificationType = "loan_request"
	TypeLoanApproved NotificationType = "loan_approved"
	TypeLoanRejected NotificationType = "loan_rejected"
	TypeCardRequest  NotificationType = "card_request"
	TypeCardApproved NotificationType = "card_approved"
	TypeCardRejected NotificationType = "card_rejected"
	TypeKYCApproved  NotificationType = "kyc_approved"
	TypeKYCRejected  NotificationType = "kyc_rejected"
	TypeGeneral      NotificationType = "general"
)

// Category is the coarse grouping used to route desktop alerts.
type Category string

const (
	CategoryTransaction Category = "transaction"
	CategoryLoan        Category = "loan"
	CategoryKYC         Category = "kyc"
	CategoryAccount     Category = "account"
	CategoryOther       Category = "other"
)

// Notification is a server-issued notification as cached by the client.
type Notification struct {
	// ID is the server's identifier for the notification.
	ID ID `json:"id"`

	// UserID is the recipient.
	UserID ID `json:"user_id,omitempty"`

	// Type is the fine-grained tag (loan_approved, transaction, ...).
	Type NotificationType `json:"type"`

	// Category drives alert routing.
	Category Category `json:"category,omitempty"`

	Title   string `json:"title"`
	Message string `json:"message"`

	// RelatedID points at the loan, card or transaction the
	// notification is about, when there is one.
	RelatedID ID `json:"related_id,omitempty"`

	// IsRead flips to true once; ReadAt is stamped at that moment.
	IsRead bool       `json:"is_read"`
	ReadAt *Timestamp `json:"read_at,omitempty"`

	CreatedAt Timestamp `json:"created_at"`

	FromUserID   ID     `json:"from_user_id,omitempty"`
	FromUserName string `json:"from_user_name,omitempty"`
}

// MarkRead sets IsRead and stamps ReadAt with at. Calling it on an
// already-read notification leaves ReadAt untouched.
func (n *Notification) MarkRead(at time.Time) {
	if n.IsRead {
		return
	}
	ts := NewTimestamp(at)
	n.IsRead = true
	n.ReadAt = &ts
}

// Stats is the response of the notification stats endpoint.
type Stats struct {
	TotalCount  int `json:"total_count"`
	UnreadCount int `json:"unread_count"`
}

// CategoryFor derives the routing category from a notification type for
// producers that only know the type.
func CategoryFor(t NotificationType) Category {
	switch {
	case t == TypeTransaction:
		return CategoryTransaction
	case strings.HasPrefix(string(t), "loan_"):
		return CategoryLoan
	case strings.HasPrefix(string(t), "kyc_"):
		return CategoryKYC
	case strings.HasPrefix(string(t), "card_"):
		return CategoryAccount
	default:
		return CategoryOther
	}
}
