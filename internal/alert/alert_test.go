package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/nyord-notifier/internal/model"
)

type recordingPresenter struct {
	perm  Permission
	shown []Alert
	err   error
}

func (r *recordingPresenter) Permission() Permission { return r.perm }

func (r *recordingPresenter) Show(a Alert) error {
	r.shown = append(r.shown, a)
	return r.err
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name      string
		category  model.Category
		typ       model.NotificationType
		wantKind  Kind
		wantTitle string
		wantLevel string
	}{
		{"transaction", model.CategoryTransaction, model.TypeTransaction, KindTransaction, "Sent", ""},
		{"loan approved", model.CategoryLoan, model.TypeLoanApproved, KindLoanSuccess, "Loan Approved", ""},
		{"loan approval spelling", model.CategoryLoan, "loan_approval", KindLoanSuccess, "Loan Approved", ""},
		{"loan rejected", model.CategoryLoan, model.TypeLoanRejected, KindLoanFailure, "Loan Update", ""},
		{"loan request", model.CategoryLoan, model.TypeLoanRequest, KindLoanFailure, "Loan Update", ""},
		{"kyc approved", model.CategoryKYC, model.TypeKYCApproved, KindKYCSuccess, "KYC Approved", ""},
		{"kyc rejected", model.CategoryKYC, model.TypeKYCRejected, KindKYCFailure, "KYC Update", ""},
		{"account card", model.CategoryAccount, model.TypeCardApproved, KindAccount, "Nyord Banking", "card_approved"},
		{"other general", model.CategoryOther, model.TypeGeneral, KindAccount, "Nyord Banking", "general"},
		{"unknown category no type", "mystery", "", KindAccount, "Nyord Banking", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Route(model.Notification{
				ID:       "1",
				Category: tt.category,
				Type:     tt.typ,
				Title:    "Sent",
				Message:  "body",
			})
			assert.Equal(t, tt.wantKind, a.Kind)
			assert.Equal(t, tt.wantTitle, a.Title)
			assert.Equal(t, tt.wantLevel, a.Level)
			assert.Equal(t, "body", a.Body)
		})
	}
}

func TestSink_SilentWithoutPermission(t *testing.T) {
	for _, perm := range []Permission{PermissionDefault, PermissionDenied} {
		p := &recordingPresenter{perm: perm}
		sink := NewSink(p, zaptest.NewLogger(t))

		assert.NotPanics(t, func() {
			sink.Notify(context.Background(), model.Notification{ID: "1", Category: model.CategoryLoan})
		})
		assert.Empty(t, p.shown)
	}

	assert.NotPanics(t, func() {
		NewSink(nil, nil).Notify(context.Background(), model.Notification{ID: "1"})
	})
}

func TestSink_PresenterErrorIsAbsorbed(t *testing.T) {
	p := &recordingPresenter{perm: PermissionGranted, err: errors.New("no dbus")}
	sink := NewSink(p, zaptest.NewLogger(t))

	sink.Notify(context.Background(), model.Notification{ID: "1", Category: model.CategoryKYC, Type: model.TypeKYCApproved})
	require.Len(t, p.shown, 1)
	assert.Equal(t, KindKYCSuccess, p.shown[0].Kind)
	assert.True(t, p.shown[0].Important)
}

func TestSink_DoesNotDeduplicate(t *testing.T) {
	p := &recordingPresenter{perm: PermissionGranted}
	sink := NewSink(p, nil)

	n := model.Notification{ID: "1", Category: model.CategoryTransaction}
	sink.Notify(context.Background(), n)
	sink.Notify(context.Background(), n)
	assert.Len(t, p.shown, 2)
}

type memLedger struct {
	seen map[model.ID]bool
	err  error
}

func (m *memLedger) MarkAlerted(_ context.Context, id model.ID) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func TestOnce(t *testing.T) {
	p := &recordingPresenter{perm: PermissionGranted}
	ledger := &memLedger{seen: map[model.ID]bool{}}
	once := NewOnce(NewSink(p, nil), ledger, zaptest.NewLogger(t))

	once.Notify(context.Background(), model.Notification{ID: "1"})
	once.Notify(context.Background(), model.Notification{ID: "1"})
	once.Notify(context.Background(), model.Notification{ID: "2"})
	once.Notify(context.Background(), model.Notification{})
	once.Notify(context.Background(), model.Notification{})

	assert.Len(t, p.shown, 4)

	ledger.err = errors.New("disk full")
	once.Notify(context.Background(), model.Notification{ID: "1"})
	assert.Len(t, p.shown, 5, "ledger failure still alerts")
}

type memSettings map[string]string

func (m memSettings) GetSetting(_ context.Context, key string) (string, error) {
	return m[key], nil
}

func (m memSettings) SetSetting(_ context.Context, key, value string) error {
	m[key] = value
	return nil
}

func TestDesktopPresenter_PermissionPersists(t *testing.T) {
	settings := memSettings{}
	p, err := NewDesktopPresenter(context.Background(), settings)
	require.NoError(t, err)
	assert.Equal(t, PermissionDefault, p.Permission())

	require.NoError(t, p.SetPermission(context.Background(), PermissionGranted))
	assert.Equal(t, "granted", settings[PermissionKey])

	reopened, err := NewDesktopPresenter(context.Background(), settings)
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, reopened.Permission())
}

func TestDesktopPresenter_Show(t *testing.T) {
	p, err := NewDesktopPresenter(context.Background(), memSettings{})
	require.NoError(t, err)

	var title, body string
	var important bool
	p.notify = func(tt, b string, imp bool) error {
		title, body, important = tt, b, imp
		return nil
	}

	require.NoError(t, p.Show(Route(model.Notification{Category: model.CategoryAccount, Type: "warning", Message: "low"})))
	assert.Equal(t, "Nyord Banking (warning)", title)
	assert.Equal(t, "low", body)
	assert.False(t, important)

	p.notify = func(string, string, bool) error { return errors.New("unsupported") }
	assert.Error(t, p.Show(Alert{Title: "x"}))
}
