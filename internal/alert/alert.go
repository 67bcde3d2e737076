// Package alert surfaces a subset of pushed notifications as desktop
// alerts, gated by a permission the user grants explicitly.
package alert

import (
	"context"

	"go.uber.org/zap"

	"github.com/nhle/nyord-notifier/internal/model"
)

// Permission mirrors the three states of a desktop notification grant.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission maps a stored value back to a Permission. Unknown
// values are treated as not yet decided.
func ParsePermission(s string) Permission {
	switch Permission(s) {
	case PermissionGranted, PermissionDenied:
		return Permission(s)
	default:
		return PermissionDefault
	}
}

// Kind selects the alert's presentation.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindLoanSuccess Kind = "loan_success"
	KindLoanFailure Kind = "loan_failure"
	KindKYCSuccess  Kind = "kyc_success"
	KindKYCFailure  Kind = "kyc_failure"
	KindAccount     Kind = "account"
)

// Alert is one presentation request.
type Alert struct {
	Kind  Kind
	Title string
	Body  string
	// Level is the account alert's sub-label (the raw notification type).
	Level string
	// Tag groups alerts that replace each other on platforms that support it.
	Tag string
	// Important alerts should stay on screen until dismissed.
	Important bool

	NotificationID model.ID
}

// Presenter shows alerts on some output surface.
type Presenter interface {
	Permission() Permission
	Show(a Alert) error
}

// Notifier is what the channel forwards pushed notifications to.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

// Route maps a notification onto an alert. The mapping is fixed:
// transaction, loan and kyc categories get their own kinds, loan and kyc
// picking success when the type is an approval; everything else is an
// account alert labelled with the raw type.
func Route(n model.Notification) Alert {
	a := Alert{Body: n.Message, NotificationID: n.ID}

	switch n.Category {
	case model.CategoryTransaction:
		a.Kind = KindTransaction
		a.Title = n.Title
		if a.Title == "" {
			a.Title = "Transaction"
		}
		a.Tag = "transaction-" + n.RelatedID.String()
		if n.RelatedID == "" {
			a.Tag = "transaction-" + n.ID.String()
		}

	case model.CategoryLoan:
		a.Tag = "loan-notification"
		if isApproval(n.Type, model.TypeLoanApproved) {
			a.Kind, a.Title, a.Important = KindLoanSuccess, "Loan Approved", true
		} else {
			a.Kind, a.Title = KindLoanFailure, "Loan Update"
		}

	case model.CategoryKYC:
		a.Tag = "kyc-notification"
		if isApproval(n.Type, model.TypeKYCApproved) {
			a.Kind, a.Title, a.Important = KindKYCSuccess, "KYC Approved", true
		} else {
			a.Kind, a.Title = KindKYCFailure, "KYC Update"
		}

	default:
		a.Kind = KindAccount
		a.Title = "Nyord Banking"
		a.Level = string(n.Type)
		if a.Level == "" {
			a.Level = "info"
		}
		a.Tag = "account-" + a.Level
	}

	return a
}

// isApproval accepts both the backend's "_approved" tag and the older
// "_approval" spelling.
func isApproval(t, approved model.NotificationType) bool {
	if t == approved {
		return true
	}
	return len(approved) > 2 && t == approved[:len(approved)-2]+"al"
}

// Sink routes notifications to a presenter. It never de-duplicates.
type Sink struct {
	presenter Presenter
	log       *zap.Logger
}

var _ Notifier = (*Sink)(nil)

// NewSink creates a sink over p.
func NewSink(p Presenter, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{presenter: p, log: log}
}

// Notify presents n when permission has been granted. Presenter errors
// are logged and absorbed.
func (s *Sink) Notify(_ context.Context, n model.Notification) {
	if s.presenter == nil || s.presenter.Permission() != PermissionGranted {
		return
	}

	a := Route(n)
	if err := s.presenter.Show(a); err != nil {
		s.log.Warn("showing alert",
			zap.String("id", n.ID.String()),
			zap.String("kind", string(a.Kind)),
			zap.Error(err),
		)
	}
}
