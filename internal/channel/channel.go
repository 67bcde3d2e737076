// Package channel owns the push connection to the banking backend: it
// connects for a session, dispatches inbound frames and reconnects after
// unexpected loss.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nhle/nyord-notifier/internal/alert"
	"github.com/nhle/nyord-notifier/internal/events"
	"github.com/nhle/nyord-notifier/internal/metrics"
	"github.com/nhle/nyord-notifier/internal/model"
	"github.com/nhle/nyord-notifier/internal/session"
)

const (
	// Time allowed to write a control frame to the peer.
	writeWait = 10 * time.Second

	// Maximum frame size accepted from the backend.
	maxFrameSize = 1 << 20

	// Bound on side-effect calls made while handling one frame.
	dispatchTimeout = 10 * time.Second

	// Bound on the bulk refresh that follows a transaction frame.
	refreshTimeout = 30 * time.Second
)

// State is the connection state.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Dialer opens websocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Store receives pushed notifications and post-transaction refreshes.
type Store interface {
	ApplyNotification(n model.Notification)
	BulkFetch(ctx context.Context) error
}

// Config tunes a Channel.
type Config struct {
	// URL is the push endpoint; the session token is added as ?token=.
	URL string

	Backoff Backoff

	// RefreshDelay is the wait between a transaction frame and the bulk
	// refresh it triggers.
	RefreshDelay time.Duration

	// PingInterval enables client pings and a pong read deadline when
	// positive.
	PingInterval time.Duration
}

// Option customises a Channel.
type Option func(*Channel)

func WithDialer(d Dialer) Option { return func(c *Channel) { c.dialer = d } }

func WithAlerts(n alert.Notifier) Option { return func(c *Channel) { c.alerts = n } }

func WithBus(b events.Bus) Option { return func(c *Channel) { c.bus = b } }

func WithLogger(l *zap.Logger) Option { return func(c *Channel) { c.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Channel) { c.metrics = m } }

// Channel maintains at most one live connection for one session.
//
// Every connection attempt gets a new generation number. Callbacks from
// the dialer, the reader and timers carry the generation they were
// started with and are ignored once it is stale.
type Channel struct {
	cfg     Config
	store   Store
	dialer  Dialer
	alerts  alert.Notifier
	bus     events.Bus
	log     *zap.Logger
	metrics *metrics.Metrics

	mu           gosync.Mutex
	session      session.Session
	state        State
	conn         *websocket.Conn
	gen          uint64
	stopped      bool
	attempt      int
	timer        *time.Timer
	refreshTimer *time.Timer
	cancelDial   context.CancelFunc
	reconnects   int

	listeners    map[int]func(State)
	nextListener int
	pending      []State
}

// New creates a closed channel that will feed store.
func New(cfg Config, store Store, opts ...Option) *Channel {
	c := &Channel{
		cfg:       cfg,
		store:     store,
		dialer:    websocket.DefaultDialer,
		bus:       events.Nop{},
		log:       zap.NewNop(),
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStateChange registers fn for every later state transition. The
// returned function removes it.
func (c *Channel) OnStateChange(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Connect opens the connection for s. It is a no-op when s lacks a token
// or a user identity, and when the same session is already connecting,
// open or waiting to reconnect. A different identity tears the current
// connection down first.
func (c *Channel) Connect(s session.Session) {
	if !s.Valid() {
		c.log.Debug("connect skipped: no session")
		return
	}

	c.mu.Lock()
	if c.session.SameIdentity(s) && !c.stopped &&
		(c.state != StateClosed || c.timer != nil) {
		c.unlock()
		return
	}

	var old *websocket.Conn
	if c.session.Valid() && !c.session.SameIdentity(s) {
		c.log.Info("session changed, reconnecting",
			zap.String("from_user", c.session.UserID.String()),
			zap.String("to_user", s.UserID.String()),
		)
		old = c.teardownLocked()
	}

	c.session = s
	c.stopped = false
	c.attempt = 0
	c.dialLocked()
	c.unlock()

	closeIntentionally(old)
}

// Disconnect cancels any pending reconnection or dial, closes the live
// connection with the normal-closure code and keeps the channel stopped
// until the next Connect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.stopped = true
	old := c.teardownLocked()
	c.unlock()

	closeIntentionally(old)
}

// teardownLocked invalidates every callback of the current generation and
// returns the live connection, if any, for the caller to close outside
// the lock.
func (c *Channel) teardownLocked() *websocket.Conn {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	conn := c.conn
	c.conn = nil
	c.attempt = 0
	c.setStateLocked(StateClosed)
	return conn
}

func closeIntentionally(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}

// dialLocked starts a new connection attempt in the background.
func (c *Channel) dialLocked() {
	target, err := c.endpoint(c.session.Token)
	if err != nil {
		c.log.Error("invalid push endpoint", zap.String("url", c.cfg.URL), zap.Error(err))
		return
	}

	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	c.setStateLocked(StateConnecting)

	go c.run(ctx, gen, target)
}

func (c *Channel) endpoint(token string) (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// run owns one connection attempt from dial to close.
func (c *Channel) run(ctx context.Context, gen uint64, target string) {
	log := c.log.With(zap.String("conn", uuid.NewString()))

	conn, resp, err := c.dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("dial failed", zap.Error(err))
		}
		c.handleClose(gen, websocket.CloseAbnormalClosure)
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.cancelDial = nil
	c.attempt = 0
	c.setStateLocked(StateOpen)
	c.unlock()
	log.Info("push connection open")

	if err := conn.WriteJSON(subscribeRequest{Type: FrameSubscribeRequest}); err != nil {
		log.Warn("sending subscription request", zap.Error(err))
	}

	done := make(chan struct{})
	if c.cfg.PingInterval > 0 {
		go c.keepalive(conn, done, log)
	}

	code := c.readLoop(conn, gen, log)
	close(done)
	c.handleClose(gen, code)
}

// readLoop reads frames until the connection fails and returns the close
// code to act on. Transport errors force-close the socket and are
// reported as abnormal closure.
func (c *Channel) readLoop(conn *websocket.Conn, gen uint64, log *zap.Logger) int {
	conn.SetReadLimit(maxFrameSize)
	if c.cfg.PingInterval > 0 {
		pongWait := c.cfg.PingInterval * 10 / 9
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				log.Info("push connection closed",
					zap.Int("code", ce.Code),
					zap.String("reason", ce.Text),
				)
				conn.Close()
				return ce.Code
			}
			if c.isCurrent(gen) {
				log.Warn("push connection error", zap.Error(err))
			}
			conn.Close()
			return websocket.CloseAbnormalClosure
		}

		c.dispatch(gen, data, log)
	}
}

func (c *Channel) keepalive(conn *websocket.Conn, done <-chan struct{}, log *zap.Logger) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug("ping failed", zap.Error(err))
				conn.Close()
				return
			}
		}
	}
}

// handleClose runs once per ended connection attempt. Normal closure
// ends the cycle; any other code schedules a reconnection while the
// session is valid and the channel was not stopped.
func (c *Channel) handleClose(gen uint64, code int) {
	c.mu.Lock()
	defer c.unlock()

	if gen != c.gen {
		return
	}

	c.conn = nil
	c.cancelDial = nil
	c.setStateLocked(StateClosed)

	if code == websocket.CloseNormalClosure {
		return
	}
	if c.stopped || !c.session.Valid() {
		return
	}
	c.scheduleReconnectLocked(code)
}

// scheduleReconnectLocked arms the single reconnection timer. A pending
// timer is never duplicated.
func (c *Channel) scheduleReconnectLocked(code int) {
	if c.timer != nil {
		return
	}

	delay := c.cfg.Backoff.Next(c.attempt)
	c.attempt++
	gen := c.gen
	c.timer = time.AfterFunc(delay, func() { c.reconnect(gen) })
	c.reconnects++
	c.metrics.ReconnectScheduled()

	c.log.Info("reconnect scheduled",
		zap.Int("code", code),
		zap.Duration("delay", delay),
		zap.Int("attempt", c.attempt),
	)
}

func (c *Channel) reconnect(gen uint64) {
	c.mu.Lock()
	defer c.unlock()

	if gen != c.gen {
		return
	}
	c.timer = nil
	if c.stopped || !c.session.Valid() {
		return
	}
	c.dialLocked()
}

// dispatch decodes one frame and routes it. Undecodable frames are
// logged and dropped.
func (c *Channel) dispatch(gen uint64, data []byte, log *zap.Logger) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.metrics.DecodeError()
		log.Warn("dropping undecodable frame", zap.Error(err), zap.ByteString("frame", truncate(data)))
		return
	}
	if !c.isCurrent(gen) {
		return
	}
	c.metrics.FrameReceived(env.Type)

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	switch env.Type {
	case FrameNotification:
		if len(env.Data) == 0 {
			c.metrics.DecodeError()
			log.Warn("notification frame without data")
			return
		}
		var n model.Notification
		if err := json.Unmarshal(env.Data, &n); err != nil {
			c.metrics.DecodeError()
			log.Warn("dropping undecodable notification", zap.Error(err))
			return
		}
		c.store.ApplyNotification(n)
		if c.alerts != nil {
			c.alerts.Notify(ctx, n)
		}

	case FrameTransaction:
		var tx model.TransactionCompleted
		if err := json.Unmarshal(data, &tx); err != nil {
			c.metrics.DecodeError()
			log.Warn("dropping undecodable transaction frame", zap.Error(err))
			return
		}
		c.scheduleRefresh()
		err := c.bus.Publish(ctx, events.Event{
			Topic:   events.TopicBalanceUpdate,
			Payload: tx.BalanceUpdate(),
		})
		if err != nil {
			log.Warn("publishing balance update", zap.Error(err))
		}

	case FrameSubscriptionAck:
		log.Debug("subscription acknowledged", zap.ByteString("frame", truncate(data)))

	default:
		log.Info("unhandled frame type", zap.String("type", env.Type))
	}
}

// scheduleRefresh runs a bulk fetch after RefreshDelay. Transactions that
// arrive while a refresh is pending share it.
func (c *Channel) scheduleRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.refreshTimer != nil {
		return
	}

	c.refreshTimer = time.AfterFunc(c.cfg.RefreshDelay, func() {
		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			return
		}
		c.refreshTimer = nil
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := c.store.BulkFetch(ctx); err != nil {
			c.log.Warn("post-transaction refresh", zap.Error(err))
		}
	})
}

func (c *Channel) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

// setStateLocked records a transition to be announced by unlock.
func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.pending = append(c.pending, s)
}

// unlock releases the mutex and then announces queued state transitions.
func (c *Channel) unlock() {
	pending := c.pending
	c.pending = nil
	var listeners []func(State)
	if len(pending) > 0 {
		listeners = make([]func(State), 0, len(c.listeners))
		for _, l := range c.listeners {
			listeners = append(listeners, l)
		}
	}
	c.mu.Unlock()

	for _, s := range pending {
		c.metrics.SetConnectionState(int(s))
		for _, l := range listeners {
			l(s)
		}
	}
}

func truncate(b []byte) []byte {
	const limit = 256
	if len(b) > limit {
		return b[:limit]
	}
	return b
}
