package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/nyord-notifier/internal/events"
	"github.com/nhle/nyord-notifier/internal/model"
	"github.com/nhle/nyord-notifier/internal/session"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// wsServer is a minimal push endpoint that records what clients do.
type wsServer struct {
	srv *httptest.Server

	mu         gosync.Mutex
	conns      []*websocket.Conn
	tokens     []string
	received   [][]byte
	closeCodes []int
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{}
	upgrader := websocket.Upgrader{}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.tokens = append(s.tokens, r.URL.Query().Get("token"))
		s.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				var ce *websocket.CloseError
				if errors.As(err, &ce) {
					s.mu.Lock()
					s.closeCodes = append(s.closeCodes, ce.Code)
					s.mu.Unlock()
				}
				return
			}
			s.mu.Lock()
			s.received = append(s.received, data)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
}

func (s *wsServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *wsServer) latest() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[len(s.conns)-1]
}

func (s *wsServer) send(t *testing.T, frame string) {
	t.Helper()
	require.NoError(t, s.latest().WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (s *wsServer) closeLatest(code int) {
	conn := s.latest()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, "test"), time.Now().Add(time.Second))
	_ = conn.Close()
}

func (s *wsServer) codes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.closeCodes...)
}

func (s *wsServer) frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.received...)
}

type fakeStore struct {
	mu      gosync.Mutex
	applied []model.Notification
	fetches int
}

func (f *fakeStore) ApplyNotification(n model.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, n)
}

func (f *fakeStore) BulkFetch(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return nil
}

func (f *fakeStore) appliedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

func (f *fakeStore) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type fakeAlerts struct {
	mu  gosync.Mutex
	ids []model.ID
}

func (f *fakeAlerts) Notify(_ context.Context, n model.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, n.ID)
}

func (f *fakeAlerts) seen() []model.ID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ID(nil), f.ids...)
}

var testSession = session.Session{Token: "tok-1", UserID: "1"}

func newTestChannel(t *testing.T, url string, store Store, opts ...Option) *Channel {
	t.Helper()
	cfg := Config{
		URL:          url,
		Backoff:      Backoff{Initial: 50 * time.Millisecond},
		RefreshDelay: 20 * time.Millisecond,
	}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	c := New(cfg, store, opts...)
	t.Cleanup(c.Disconnect)
	return c
}

func (c *Channel) reconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnects
}

func waitOpen(t *testing.T, c *Channel) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == StateOpen }, waitFor, tick)
}

func TestConnect_SubscribesAndDispatchesNotification(t *testing.T) {
	srv := newWSServer(t)
	store := &fakeStore{}
	alerts := &fakeAlerts{}
	c := newTestChannel(t, srv.url(), store, WithAlerts(alerts))

	c.Connect(testSession)
	waitOpen(t, c)

	require.Eventually(t, func() bool { return len(srv.frames()) == 1 }, waitFor, tick)
	assert.JSONEq(t, `{"type":"subscribe_notifications"}`, string(srv.frames()[0]))
	assert.Equal(t, []string{"tok-1"}, srv.tokens)

	srv.send(t, `{"type":"notification","data":{"id":17,"type":"loan_approved","category":"loan",
		"title":"Loan","message":"ok","is_read":false,"created_at":"2024-05-01T10:00:00.123456"}}`)

	require.Eventually(t, func() bool { return store.appliedCount() == 1 }, waitFor, tick)
	assert.Equal(t, model.ID("17"), store.applied[0].ID)
	assert.Equal(t, 2024, store.applied[0].CreatedAt.Year())
	assert.Equal(t, []model.ID{"17"}, alerts.seen())
}

func TestConnect_WithoutSessionIsNoop(t *testing.T) {
	srv := newWSServer(t)
	c := newTestChannel(t, srv.url(), &fakeStore{})

	c.Connect(session.Session{})
	c.Connect(session.Session{Token: "tok-only"})
	c.Connect(session.Session{UserID: "1"})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, 0, srv.connCount())
}

func TestConnect_IsIdempotent(t *testing.T) {
	srv := newWSServer(t)
	c := newTestChannel(t, srv.url(), &fakeStore{})

	c.Connect(testSession)
	c.Connect(testSession)
	waitOpen(t, c)
	c.Connect(testSession)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, srv.connCount())
}

func TestReconnectOnAbnormalClose(t *testing.T) {
	srv := newWSServer(t)
	c := newTestChannel(t, srv.url(), &fakeStore{})

	var mu gosync.Mutex
	var states []State
	c.OnStateChange(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	})

	c.Connect(testSession)
	waitOpen(t, c)

	srv.closeLatest(websocket.CloseInternalServerErr)

	require.Eventually(t, func() bool { return srv.connCount() == 2 }, waitFor, tick)
	waitOpen(t, c)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 2, srv.connCount(), "exactly one reconnection")
	assert.Equal(t, 1, c.reconnectCount())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateConnecting, StateOpen, StateClosed, StateConnecting, StateOpen}, states)
}

func TestNormalClosureFromServerDoesNotReconnect(t *testing.T) {
	srv := newWSServer(t)
	c := newTestChannel(t, srv.url(), &fakeStore{})

	c.Connect(testSession)
	waitOpen(t, c)

	srv.closeLatest(websocket.CloseNormalClosure)

	require.Eventually(t, func() bool { return c.State() == StateClosed }, waitFor, tick)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, srv.connCount())
	assert.Equal(t, 0, c.reconnectCount())
}

func TestDisconnect_StopsReconnection(t *testing.T) {
	srv := newWSServer(t)
	c := newTestChannel(t, srv.url(), &fakeStore{})

	c.Connect(testSession)
	waitOpen(t, c)

	c.Disconnect()
	assert.Equal(t, StateClosed, c.State())

	require.Eventually(t, func() bool {
		codes := srv.codes()
		return len(codes) == 1 && codes[0] == websocket.CloseNormalClosure
	}, waitFor, tick)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, srv.connCount())
	assert.Equal(t, 0, c.reconnectCount())

	c.Connect(testSession)
	waitOpen(t, c)
	assert.Equal(t, 2, srv.connCount())
}

func TestDisconnect_CancelsPendingTimer(t *testing.T) {
	srv := newWSServer(t)
	c := newTestChannel(t, srv.url(), &fakeStore{})
	c.cfg.Backoff.Initial = 150 * time.Millisecond

	c.Connect(testSession)
	waitOpen(t, c)

	srv.closeLatest(websocket.CloseGoingAway)
	require.Eventually(t, func() bool { return c.reconnectCount() == 1 }, waitFor, tick)

	c.Disconnect()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, srv.connCount())
	assert.Equal(t, StateClosed, c.State())
}

func TestHandleClose_SingleTimer(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1/ws", Backoff: Backoff{Initial: time.Hour}}, &fakeStore{},
		WithLogger(zaptest.NewLogger(t)))
	c.session = testSession
	c.gen = 7

	c.handleClose(7, websocket.CloseAbnormalClosure)
	first := c.timer
	c.handleClose(7, websocket.CloseGoingAway)

	assert.Equal(t, 1, c.reconnects)
	assert.Same(t, first, c.timer)

	c.handleClose(6, websocket.CloseAbnormalClosure)
	assert.Equal(t, 1, c.reconnects, "stale generation ignored")

	c.Disconnect()
	assert.Nil(t, c.timer)
}

func TestDialFailureRetriesUntilDisconnect(t *testing.T) {
	srv := newWSServer(t)
	url := srv.url()
	srv.srv.Close()

	c := newTestChannel(t, url, &fakeStore{})
	c.cfg.Backoff.Initial = 10 * time.Millisecond

	c.Connect(testSession)
	require.Eventually(t, func() bool { return c.reconnectCount() >= 3 }, waitFor, tick)

	c.Disconnect()
	n := c.reconnectCount()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, n, c.reconnectCount())
}

func TestTransactionFrame_RefreshesAndPublishes(t *testing.T) {
	srv := newWSServer(t)
	store := &fakeStore{}
	bus := events.NewLocalBus()

	var mu gosync.Mutex
	var updates []model.BalanceUpdate
	bus.Subscribe(events.TopicBalanceUpdate, func(_ context.Context, e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, e.Payload.(model.BalanceUpdate))
	})

	c := newTestChannel(t, srv.url(), store, WithBus(bus))
	c.Connect(testSession)
	waitOpen(t, c)

	srv.send(t, `{"type":"transaction.success","transaction_id":55,"src":1,"dest":2,
		"amount":"10.25","new_src_balance":89.75,"new_dest_balance":"110.25"}`)

	require.Eventually(t, func() bool { return store.fetchCount() == 1 }, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 1)
	assert.Equal(t, model.ID("55"), updates[0].TransactionID)
	assert.True(t, updates[0].Amount.Equal(decimal.RequireFromString("10.25")))
	assert.True(t, updates[0].NewSrcBalance.Equal(decimal.RequireFromString("89.75")))
	assert.True(t, updates[0].NewDestBalance.Equal(decimal.RequireFromString("110.25")))
	assert.Equal(t, 0, store.appliedCount())
}

func TestBadFramesAreDropped(t *testing.T) {
	srv := newWSServer(t)
	store := &fakeStore{}
	c := newTestChannel(t, srv.url(), store)

	c.Connect(testSession)
	waitOpen(t, c)

	srv.send(t, `not json`)
	srv.send(t, `{"type":"notification"}`)
	srv.send(t, `{"type":"notification","data":{"id":{}}}`)
	srv.send(t, `{"type":"low_balance","balance":"3.00"}`)
	srv.send(t, `{"type":"notification_subscription","status":"subscribed"}`)
	srv.send(t, `{"type":"notification","data":{"id":"ok","title":"t"}}`)

	require.Eventually(t, func() bool { return store.appliedCount() == 1 }, waitFor, tick)
	assert.Equal(t, StateOpen, c.State())
	assert.Equal(t, 1, srv.connCount())
	assert.Equal(t, 0, store.fetchCount())
}

func TestSessionChangeReconnects(t *testing.T) {
	srv := newWSServer(t)
	c := newTestChannel(t, srv.url(), &fakeStore{})

	c.Connect(testSession)
	waitOpen(t, c)

	c.Connect(session.Session{Token: "tok-2", UserID: "2"})
	require.Eventually(t, func() bool { return srv.connCount() == 2 }, waitFor, tick)
	waitOpen(t, c)

	assert.Equal(t, []string{"tok-1", "tok-2"}, srv.tokens)
	require.Eventually(t, func() bool {
		codes := srv.codes()
		return len(codes) == 1 && codes[0] == websocket.CloseNormalClosure
	}, waitFor, tick)
	assert.Equal(t, 0, c.reconnectCount())
}

func TestEndpointKeepsExistingQuery(t *testing.T) {
	c := New(Config{URL: "wss://bank.example/ws?v=2"}, &fakeStore{})
	got, err := c.endpoint("a b&c")
	require.NoError(t, err)
	assert.Equal(t, "wss://bank.example/ws?token=a+b%26c&v=2", got)
}

func TestBackoff(t *testing.T) {
	fixed := Backoff{Initial: 5 * time.Second, Multiplier: 1}
	for i := 0; i < 50; i++ {
		assert.Equal(t, 5*time.Second, fixed.Next(i))
	}

	assert.Equal(t, DefaultReconnectDelay, Backoff{}.Next(3))

	exp := Backoff{Initial: time.Second, Max: 10 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, exp.Next(0))
	assert.Equal(t, 2*time.Second, exp.Next(1))
	assert.Equal(t, 8*time.Second, exp.Next(3))
	assert.Equal(t, 10*time.Second, exp.Next(4))
	assert.Equal(t, 10*time.Second, exp.Next(10000))
}

func TestFrameShapes(t *testing.T) {
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(`{"type":"notification","data":{"id":1}}`), &env))
	assert.Equal(t, FrameNotification, env.Type)
	assert.JSONEq(t, `{"id":1}`, string(env.Data))
}
