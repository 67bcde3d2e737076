package sync_test

import (
	"context"
	"strconv"
	gosync "sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/nyord-notifier/internal/alert"
	"github.com/nhle/nyord-notifier/internal/channel"
	"github.com/nhle/nyord-notifier/internal/devserver"
	"github.com/nhle/nyord-notifier/internal/model"
	"github.com/nhle/nyord-notifier/internal/session"
	nsync "github.com/nhle/nyord-notifier/internal/sync"
	"github.com/nhle/nyord-notifier/tests/testutil"
)

const waitFor = 3 * time.Second
const tick = 10 * time.Millisecond

type recordingPresenter struct {
	mu    gosync.Mutex
	shown []alert.Alert
}

func (p *recordingPresenter) Permission() alert.Permission { return alert.PermissionGranted }

func (p *recordingPresenter) Show(a alert.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = append(p.shown, a)
	return nil
}

func (p *recordingPresenter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.shown)
}

func testConfig(b *testutil.Backend) nsync.Config {
	return nsync.Config{
		APIBaseURL: b.BaseURL,
		APITimeout: 5 * time.Second,
		Channel: channel.Config{
			URL:          b.WSURL,
			Backoff:      channel.Backoff{Initial: 20 * time.Millisecond},
			RefreshDelay: 20 * time.Millisecond,
		},
		RefreshInterval: time.Hour,
		PollInterval:    time.Hour,
	}
}

func newProvider(t *testing.T, b *testutil.Backend, opts ...nsync.Option) *nsync.Provider {
	t.Helper()
	opts = append([]nsync.Option{nsync.WithLogger(zaptest.NewLogger(t))}, opts...)
	p := nsync.New(testConfig(b), opts...)
	t.Cleanup(p.Stop)
	return p
}

func push(t *testing.T, b *testutil.Backend, typ model.NotificationType, silent bool) int64 {
	t.Helper()
	id, err := b.Push(devserver.NewNotification{
		UserID:  b.UserID,
		Type:    typ,
		Title:   string(typ),
		Message: "hello",
		Silent:  silent,
	})
	require.NoError(t, err)
	return id
}

func TestStartFetchesAndConnects(t *testing.T) {
	b := testutil.NewBackend(t)
	push(t, b, model.TypeLoanApproved, true)
	push(t, b, model.TypeGeneral, true)

	p := newProvider(t, b)
	p.Start(b.Session(t))

	require.Eventually(t, func() bool {
		return len(p.Snapshot().Notifications) == 2
	}, waitFor, tick)
	assert.Equal(t, 2, p.Snapshot().UnreadCount)

	require.Eventually(t, func() bool {
		return p.ConnectionStatus() == nsync.StatusConnected
	}, waitFor, tick)
	assert.Equal(t, 1, b.ConnectionCount(b.UserID))
}

func TestStartWithoutSessionIsNoop(t *testing.T) {
	b := testutil.NewBackend(t)
	p := newProvider(t, b)

	p.Start(session.Session{})

	_, ok := p.Session()
	assert.False(t, ok)
	assert.Equal(t, nsync.StatusDisconnected, p.ConnectionStatus())
	assert.Equal(t, 0, b.Accepted())
}

func TestPushedNotificationAlertsAndCounts(t *testing.T) {
	b := testutil.NewBackend(t)
	pres := &recordingPresenter{}
	p := newProvider(t, b, nsync.WithPresenter(pres), nsync.WithCache(testutil.NewTestStore(t)))
	p.Start(b.Session(t))

	require.Eventually(t, func() bool {
		return p.ConnectionStatus() == nsync.StatusConnected && b.ConnectionCount(b.UserID) == 1
	}, waitFor, tick)

	push(t, b, model.TypeKYCApproved, false)

	require.Eventually(t, func() bool { return p.Snapshot().UnreadCount == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return pres.count() == 1 }, waitFor, tick)

	pres.mu.Lock()
	assert.Equal(t, alert.KindKYCSuccess, pres.shown[0].Kind)
	pres.mu.Unlock()
}

func TestMarkReadThroughProvider(t *testing.T) {
	b := testutil.NewBackend(t)
	id := push(t, b, model.TypeGeneral, true)
	push(t, b, model.TypeGeneral, true)

	p := newProvider(t, b)
	p.Start(b.Session(t))
	require.Eventually(t, func() bool { return p.Snapshot().UnreadCount == 2 }, waitFor, tick)

	ctx := context.Background()
	require.NoError(t, p.MarkRead(ctx, model.ID(itoa(id))))
	assert.Equal(t, 1, p.Snapshot().UnreadCount)

	require.NoError(t, p.MarkAllRead(ctx))
	assert.Equal(t, 0, p.Snapshot().UnreadCount)

	require.NoError(t, p.Delete(ctx, model.ID(itoa(id))))
	assert.Len(t, p.Snapshot().Notifications, 1)
}

func TestStopPreventsReconnect(t *testing.T) {
	b := testutil.NewBackend(t)
	p := newProvider(t, b)
	p.Start(b.Session(t))

	require.Eventually(t, func() bool { return b.ConnectionCount(b.UserID) == 1 }, waitFor, tick)

	p.Stop()

	require.Eventually(t, func() bool { return b.ConnectionCount(b.UserID) == 0 }, waitFor, tick)
	accepted := b.Accepted()

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, accepted, b.Accepted())
	assert.Equal(t, nsync.StatusDisconnected, p.ConnectionStatus())
}

func TestAbnormalDropReconnects(t *testing.T) {
	b := testutil.NewBackend(t)
	p := newProvider(t, b)
	p.Start(b.Session(t))
	require.Eventually(t, func() bool { return b.ConnectionCount(b.UserID) == 1 }, waitFor, tick)

	b.Drop(b.UserID, websocket.CloseAbnormalClosure)

	require.Eventually(t, func() bool { return b.Accepted() >= 2 }, waitFor, tick)
	require.Eventually(t, func() bool {
		return p.ConnectionStatus() == nsync.StatusConnected
	}, waitFor, tick)
}

func TestTransactionPublishesBalanceUpdate(t *testing.T) {
	b := testutil.NewBackend(t)
	p := newProvider(t, b)
	p.Start(b.Session(t))
	require.Eventually(t, func() bool { return b.ConnectionCount(b.UserID) == 1 }, waitFor, tick)

	b.PushTransaction(devserver.Transaction{
		UserID:        b.UserID,
		TransactionID: 42,
		Amount:        decimal.RequireFromString("10.00"),
		NewSrcBalance: decimal.RequireFromString("90.00"),
	})

	deadline := time.After(waitFor)
	for {
		select {
		case u := <-p.Updates():
			if u.Kind != nsync.UpdateBalance {
				continue
			}
			assert.Equal(t, model.ID("42"), u.Balance.TransactionID)
			assert.True(t, u.Balance.NewSrcBalance.Equal(decimal.RequireFromString("90")))
			return
		case <-deadline:
			t.Fatal("no balance update received")
		}
	}
}

func TestCacheSeedsBeforeFetch(t *testing.T) {
	b := testutil.NewBackend(t)
	cache := testutil.NewTestStore(t)
	s := b.Session(t)

	cached := []model.Notification{{
		ID:        "900",
		Type:      model.TypeGeneral,
		Title:     "from cache",
		CreatedAt: model.NewTimestamp(time.Now().UTC()),
	}}
	require.NoError(t, cache.SaveNotifications(context.Background(), s.UserID, cached))

	p := newProvider(t, b, nsync.WithCache(cache))
	p.Start(s)

	select {
	case u := <-p.Updates():
		require.Equal(t, nsync.UpdateSnapshot, u.Kind)
		require.Len(t, u.Snapshot.Notifications, 1)
		assert.Equal(t, "from cache", u.Snapshot.Notifications[0].Title)
	case <-time.After(waitFor):
		t.Fatal("no seeded snapshot")
	}

	// The server has nothing, so the first fetch replaces the cache.
	require.Eventually(t, func() bool { return len(p.Snapshot().Notifications) == 0 }, waitFor, tick)
}

func TestSwitchSessionReplacesRun(t *testing.T) {
	b := testutil.NewBackend(t)
	bob := b.AddUser("bob", "pw")
	push(t, b, model.TypeGeneral, true)

	p := newProvider(t, b)
	p.Start(b.Session(t))
	require.Eventually(t, func() bool { return len(p.Snapshot().Notifications) == 1 }, waitFor, tick)

	token, err := b.IssueToken(bob)
	require.NoError(t, err)
	bobSession, err := session.FromToken(token)
	require.NoError(t, err)

	p.SwitchSession(bobSession)

	got, ok := p.Session()
	require.True(t, ok)
	assert.Equal(t, bobSession.UserID, got.UserID)
	require.Eventually(t, func() bool {
		return b.ConnectionCount(bob) == 1 && b.ConnectionCount(b.UserID) == 0
	}, waitFor, tick)
	assert.Empty(t, p.Snapshot().Notifications)

	p.SwitchSession(session.Session{})
	_, ok = p.Session()
	assert.False(t, ok)
}

func TestExpiredTokenReportsAuthError(t *testing.T) {
	b := testutil.NewBackend(t)
	s := b.Session(t)
	s.Token = s.Token + "x"

	p := newProvider(t, b, nsync.WithDialer(&websocket.Dialer{HandshakeTimeout: time.Second}))
	p.Start(s)

	deadline := time.After(waitFor)
	for {
		select {
		case u := <-p.Updates():
			if u.Kind != nsync.UpdateError {
				continue
			}
			assert.True(t, u.AuthExpired)
			return
		case <-deadline:
			t.Fatal("no error update received")
		}
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
