package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/nyord-notifier/internal/alert"
	"github.com/nhle/nyord-notifier/internal/api"
	"github.com/nhle/nyord-notifier/internal/channel"
	"github.com/nhle/nyord-notifier/internal/events"
	"github.com/nhle/nyord-notifier/internal/metrics"
	"github.com/nhle/nyord-notifier/internal/model"
	"github.com/nhle/nyord-notifier/internal/notify"
	"github.com/nhle/nyord-notifier/internal/session"
	"github.com/nhle/nyord-notifier/internal/store"
)

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// Config tunes a Provider.
type Config struct {
	APIBaseURL string
	APITimeout time.Duration
	Channel    channel.Config

	// RefreshInterval is the periodic bulk fetch while connected.
	RefreshInterval time.Duration
	// PollInterval is the bulk fetch cadence while the push channel is down.
	PollInterval time.Duration
}

// ConfigFrom maps the application config onto a Provider config.
func ConfigFrom(c *model.AppConfig) Config {
	return Config{
		APIBaseURL: c.API.BaseURL,
		APITimeout: c.API.Timeout,
		Channel: channel.Config{
			URL: c.API.WSURL,
			Backoff: channel.Backoff{
				Initial:    c.Channel.ReconnectDelay,
				Max:        c.Channel.MaxReconnectDelay,
				Multiplier: c.Channel.BackoffMultiplier,
			},
			RefreshDelay: c.Channel.RefreshDelay,
			PingInterval: c.Channel.PingInterval,
		},
		RefreshInterval: c.Sync.RefreshInterval,
		PollInterval:    c.Sync.PollInterval,
	}
}

// Option customises a Provider.
type Option func(*Provider)

// WithCache persists snapshots and guards alerts with the ledger in s.
func WithCache(s store.Store) Option { return func(p *Provider) { p.cache = s } }

// WithPresenter sets where alerts are shown.
func WithPresenter(pr alert.Presenter) Option { return func(p *Provider) { p.presenter = pr } }

func WithBus(b events.Bus) Option { return func(p *Provider) { p.bus = b } }

func WithLogger(l *zap.Logger) Option { return func(p *Provider) { p.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(p *Provider) { p.metrics = m } }

func WithDialer(d channel.Dialer) Option { return func(p *Provider) { p.dialer = d } }

// WithAPI replaces the REST client factory.
func WithAPI(f func(token string) notify.API) Option { return func(p *Provider) { p.newAPI = f } }

// run is everything owned by one session.
type run struct {
	id        string
	session   session.Session
	store     *notify.Store
	channel   *channel.Channel
	ctx       context.Context
	cancel    context.CancelFunc
	stopCh    chan struct{}
	triggerCh chan trigger
	unsub     []func()
	wg        gosync.WaitGroup
}

type trigger int

const (
	triggerRefresh trigger = iota
	triggerReconcile
)

// Provider owns the notification store and push channel for the current
// session. It runs the initial fetch, the periodic refresh and the
// polling fallback, and reports changes on its update channel.
type Provider struct {
	cfg       Config
	cache     store.Store
	presenter alert.Presenter
	bus       events.Bus
	log       *zap.Logger
	metrics   *metrics.Metrics
	dialer    channel.Dialer
	newAPI    func(token string) notify.API

	updates chan Update

	mu  gosync.Mutex
	cur *run
}

// New creates an idle Provider.
func New(cfg Config, opts ...Option) *Provider {
	p := &Provider{
		cfg:     cfg,
		bus:     events.NewLocalBus(),
		log:     zap.NewNop(),
		updates: make(chan Update, 64),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.newAPI == nil {
		p.newAPI = func(token string) notify.API {
			return api.NewClient(p.cfg.APIBaseURL, token, api.WithTimeout(p.cfg.APITimeout))
		}
	}
	if p.cfg.RefreshInterval <= 0 {
		p.cfg.RefreshInterval = 30 * time.Second
	}
	if p.cfg.PollInterval <= 0 {
		p.cfg.PollInterval = 10 * time.Second
	}
	return p
}

// Bus returns the event bus balance updates are published on.
func (p *Provider) Bus() events.Bus { return p.bus }

// Start begins a run for s. Invalid sessions are ignored; starting the
// running session again is a no-op; a different identity replaces the
// current run.
func (p *Provider) Start(s session.Session) {
	if !s.Valid() {
		p.log.Debug("provider start skipped: no session")
		return
	}

	p.mu.Lock()
	cur := p.cur
	p.mu.Unlock()
	if cur != nil {
		if cur.session.SameIdentity(s) {
			return
		}
		p.Stop()
	}

	r := p.newRun(s)

	p.mu.Lock()
	if p.cur != nil {
		// Lost a race with a concurrent Start.
		p.mu.Unlock()
		p.teardown(r)
		return
	}
	p.cur = r
	p.mu.Unlock()

	p.log.Info("provider started",
		zap.String("run", r.id),
		zap.String("user", s.UserID.String()),
	)

	r.channel.Connect(s)
	r.wg.Add(1)
	go p.loop(r)
}

// SwitchSession moves the provider to s, tearing down the current run
// only when the identity differs.
func (p *Provider) SwitchSession(s session.Session) {
	if !s.Valid() {
		p.Stop()
		return
	}
	p.Start(s)
}

// Stop ends the current run: the channel is disconnected with no further
// reconnects, loops stop and the store is closed.
func (p *Provider) Stop() {
	p.mu.Lock()
	r := p.cur
	p.cur = nil
	p.mu.Unlock()

	if r == nil {
		return
	}
	p.teardown(r)
	p.send(Update{Kind: UpdateConnection, Connection: StatusDisconnected})
	p.log.Info("provider stopped", zap.String("run", r.id))
}

func (p *Provider) teardown(r *run) {
	r.channel.Disconnect()
	r.cancel()
	close(r.stopCh)
	for _, u := range r.unsub {
		u()
	}
	r.store.Close()
	r.wg.Wait()
}

// Session returns the session of the current run.
func (p *Provider) Session() (session.Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil {
		return session.Session{}, false
	}
	return p.cur.session, true
}

// Snapshot returns the current store state.
func (p *Provider) Snapshot() notify.Snapshot {
	if r := p.current(); r != nil {
		return r.store.Snapshot()
	}
	return notify.Snapshot{}
}

// ConnectionStatus reports the push channel status of the current run.
func (p *Provider) ConnectionStatus() ConnectionStatus {
	r := p.current()
	if r == nil {
		return StatusDisconnected
	}
	return statusFor(r.channel.State())
}

// Refresh requests an immediate bulk fetch.
func (p *Provider) Refresh() { p.trigger(triggerRefresh) }

// Reconcile requests an immediate reconcile of the unread counter.
func (p *Provider) Reconcile() { p.trigger(triggerReconcile) }

// MarkRead marks one notification read for the current session.
func (p *Provider) MarkRead(ctx context.Context, id model.ID) error {
	if r := p.current(); r != nil {
		return r.store.MarkRead(ctx, id)
	}
	return nil
}

// MarkAllRead marks every notification read for the current session.
func (p *Provider) MarkAllRead(ctx context.Context) error {
	if r := p.current(); r != nil {
		return r.store.MarkAllRead(ctx)
	}
	return nil
}

// Delete removes one notification for the current session.
func (p *Provider) Delete(ctx context.Context, id model.ID) error {
	if r := p.current(); r != nil {
		return r.store.Delete(ctx, id)
	}
	return nil
}

// Updates returns the stream of store, connection and balance changes.
func (p *Provider) Updates() <-chan Update { return p.updates }

// WaitForUpdate returns a tea.Cmd that waits for the next Update. Call it
// again after handling each Update to keep listening.
func (p *Provider) WaitForUpdate() tea.Cmd {
	return func() tea.Msg {
		u, ok := <-p.updates
		if !ok {
			return nil
		}
		return u
	}
}

func (p *Provider) current() *run {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

func (p *Provider) trigger(t trigger) {
	r := p.current()
	if r == nil {
		return
	}
	select {
	case r.triggerCh <- t:
	default:
		// Channel full; a fetch is already queued.
	}
}

// newRun wires the store, alert chain and channel for s.
func (p *Provider) newRun(s session.Session) *run {
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:        uuid.NewString(),
		session:   s,
		ctx:       ctx,
		cancel:    cancel,
		stopCh:    make(chan struct{}),
		triggerCh: make(chan trigger, 4),
	}
	log := p.log.With(zap.String("run", r.id))

	r.store = notify.New(p.newAPI(s.Token), notify.WithLogger(log))

	var notifier alert.Notifier = alert.NewSink(p.presenter, log)
	if p.cache != nil {
		notifier = alert.NewOnce(notifier, p.cache, log)
	}

	chOpts := []channel.Option{
		channel.WithAlerts(notifier),
		channel.WithBus(p.bus),
		channel.WithLogger(log),
		channel.WithMetrics(p.metrics),
	}
	if p.dialer != nil {
		chOpts = append(chOpts, channel.WithDialer(p.dialer))
	}
	r.channel = channel.New(p.cfg.Channel, r.store, chOpts...)

	if p.cache != nil {
		seedCtx, seedCancel := context.WithTimeout(ctx, 5*time.Second)
		cached, err := p.cache.LoadNotifications(seedCtx, s.UserID)
		seedCancel()
		if err != nil {
			log.Warn("loading cached notifications", zap.Error(err))
		} else if len(cached) > 0 {
			r.store.Seed(cached)
			p.send(Update{Kind: UpdateSnapshot, Snapshot: r.store.Snapshot()})
		}
	}

	r.unsub = append(r.unsub,
		r.store.Subscribe(func(snap notify.Snapshot) {
			p.metrics.SetUnread(snap.UnreadCount)
			p.persist(r, snap)
			p.send(Update{Kind: UpdateSnapshot, Snapshot: snap})
		}),
		r.channel.OnStateChange(func(st channel.State) {
			p.send(Update{Kind: UpdateConnection, Connection: statusFor(st)})
		}),
		p.bus.Subscribe(events.TopicBalanceUpdate, func(_ context.Context, e events.Event) {
			if b, ok := e.Payload.(model.BalanceUpdate); ok {
				p.send(Update{Kind: UpdateBalance, Balance: b})
			}
		}),
	)

	return r
}

func (p *Provider) persist(r *run, snap notify.Snapshot) {
	if p.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.cache.SaveNotifications(ctx, r.session.UserID, snap.Notifications); err != nil {
		p.log.Warn("caching notifications", zap.String("run", r.id), zap.Error(err))
	}
}

// loop runs the initial fetch and then the refresh and polling schedule
// until the run is stopped.
func (p *Provider) loop(r *run) {
	defer r.wg.Done()

	p.fetch(r, triggerRefresh)

	refresh := time.NewTicker(p.cfg.RefreshInterval)
	defer refresh.Stop()
	poll := time.NewTicker(p.cfg.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-refresh.C:
			p.fetch(r, triggerRefresh)
		case <-poll.C:
			if r.channel.State() != channel.StateOpen {
				p.fetch(r, triggerRefresh)
			}
		case t := <-r.triggerCh:
			p.fetch(r, t)
		}
	}
}

func (p *Provider) fetch(r *run, t trigger) {
	ctx, cancel := context.WithTimeout(r.ctx, fetchTimeout)
	defer cancel()

	op := "bulk_fetch"
	start := time.Now()
	var err error
	if t == triggerReconcile {
		op = "reconcile"
		err = r.store.Reconcile(ctx)
	} else {
		err = r.store.BulkFetch(ctx)
	}
	p.metrics.ObserveFetch(op, start, err)

	if err == nil || r.ctx.Err() != nil {
		return
	}
	p.send(Update{Kind: UpdateError, Err: err, AuthExpired: api.IsAuthError(err)})
}

// send delivers u without blocking.
func (p *Provider) send(u Update) {
	select {
	case p.updates <- u:
	default:
		// Drop if channel is full to avoid blocking the caller
	}
}
