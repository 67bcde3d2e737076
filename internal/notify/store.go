// Package notify holds the reconciled notification list and unread
// counter for one session, and bridges user actions to the REST API.
package notify

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/nyord-notifier/internal/api"
	"github.com/nhle/nyord-notifier/internal/model"
)

// API is the subset of the REST client the store needs.
type API interface {
	ListNotifications(ctx context.Context, opts api.ListOptions) ([]model.Notification, error)
	Stats(ctx context.Context) (*model.Stats, error)
	MarkRead(ctx context.Context, id model.ID) (*model.Notification, error)
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id model.ID) error
}

// Snapshot is an immutable copy of the store's state.
type Snapshot struct {
	Notifications []model.Notification
	UnreadCount   int
}

// Unread returns the unread subset of the snapshot, newest-first.
func (s Snapshot) Unread() []model.Notification {
	return filterUnread(s.Notifications)
}

// Listener receives a snapshot after every state change.
type Listener func(Snapshot)

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger used for absorbed failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock overrides time.Now for read_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithListOptions sets the paging used by BulkFetch and Reconcile.
func WithListOptions(o api.ListOptions) Option {
	return func(s *Store) { s.listOpts = o }
}

// Store is the single source of truth for the notification list and the
// unread counter. The counter is maintained incrementally and is only
// recomputed from the list by Seed and Reconcile.
type Store struct {
	api      API
	log      *zap.Logger
	now      func() time.Time
	listOpts api.ListOptions

	mu            gosync.Mutex
	notifications []model.Notification
	unread        int
	closed        bool
	listeners     map[int]Listener
	nextListener  int
}

// New creates an empty store backed by the given API.
func New(client API, opts ...Option) *Store {
	s := &Store{
		api:       client,
		log:       zap.NewNop(),
		now:       time.Now,
		listOpts:  api.ListOptions{Limit: 50},
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BulkFetch replaces the list wholesale with the server's current list and
// overwrites the counter from the stats endpoint. The two halves are
// applied independently; a failed half leaves its previous value in place.
func (s *Store) BulkFetch(ctx context.Context) error {
	var errs []error

	list, err := s.api.ListNotifications(ctx, s.listOpts)
	if err != nil {
		s.log.Warn("bulk fetch: list failed", zap.Error(err))
		errs = append(errs, err)
	} else {
		s.update(func() bool {
			s.notifications = list
			return true
		})
	}

	stats, err := s.api.Stats(ctx)
	if err != nil {
		s.log.Warn("bulk fetch: stats failed", zap.Error(err))
		errs = append(errs, err)
	} else {
		s.update(func() bool {
			s.unread = max(0, stats.UnreadCount)
			return true
		})
	}

	if len(errs) > 0 {
		return fmt.Errorf("bulk fetch: %w", errors.Join(errs...))
	}
	return nil
}

// Reconcile refetches the list and recomputes the counter from its
// is_read flags. When the fetch fails the counter is recomputed from the
// local list instead.
func (s *Store) Reconcile(ctx context.Context) error {
	list, err := s.api.ListNotifications(ctx, s.listOpts)
	if err != nil {
		s.log.Warn("reconcile: list failed, recounting local list", zap.Error(err))
		s.update(func() bool {
			s.unread = countUnread(s.notifications)
			return true
		})
		return fmt.Errorf("reconcile: %w", err)
	}

	s.update(func() bool {
		s.notifications = list
		s.unread = countUnread(list)
		return true
	})
	return nil
}

// Seed shows a previously cached list before the first fetch.
func (s *Store) Seed(list []model.Notification) {
	s.update(func() bool {
		s.notifications = append([]model.Notification(nil), list...)
		s.unread = countUnread(s.notifications)
		return true
	})
}

// ApplyNotification is the push path: the notification is prepended and
// the counter incremented by one.
func (s *Store) ApplyNotification(n model.Notification) {
	s.update(func() bool {
		next := make([]model.Notification, 0, len(s.notifications)+1)
		next = append(next, n)
		next = append(next, s.notifications...)
		s.notifications = next
		s.unread++
		return true
	})
}

// MarkRead marks one notification read on the server and then locally.
// Unknown or already-read ids make no server call. A 404 is a silent no-op;
// other failures leave local state unchanged and are returned.
func (s *Store) MarkRead(ctx context.Context, id model.ID) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	skip := s.closed || idx < 0 || s.notifications[idx].IsRead
	s.mu.Unlock()
	if skip {
		return nil
	}

	if _, err := s.api.MarkRead(ctx, id); err != nil {
		if api.IsNotFound(err) {
			s.log.Debug("mark read: notification gone on server", zap.String("id", id.String()))
			return nil
		}
		s.log.Error("mark read failed", zap.String("id", id.String()), zap.Error(err))
		return err
	}

	s.update(func() bool {
		i := s.indexOf(id)
		if i < 0 || s.notifications[i].IsRead {
			return false
		}
		s.notifications[i].MarkRead(s.now())
		s.unread = max(0, s.unread-1)
		return true
	})
	return nil
}

// MarkAllRead marks everything read on the server, then stamps every
// unread item with one shared read_at and resets the counter to zero.
func (s *Store) MarkAllRead(ctx context.Context) error {
	if s.isClosed() {
		return nil
	}

	if err := s.api.MarkAllRead(ctx); err != nil {
		s.log.Error("mark all read failed", zap.Error(err))
		return err
	}

	s.update(func() bool {
		at := s.now()
		for i := range s.notifications {
			s.notifications[i].MarkRead(at)
		}
		s.unread = 0
		return true
	})
	return nil
}

// Delete removes a notification on the server, then locally. The counter
// is decremented only when the removed item was unread.
func (s *Store) Delete(ctx context.Context, id model.ID) error {
	if s.isClosed() {
		return nil
	}

	if err := s.api.Delete(ctx, id); err != nil {
		if api.IsNotFound(err) {
			s.log.Debug("delete: notification gone on server", zap.String("id", id.String()))
			return nil
		}
		s.log.Error("delete failed", zap.String("id", id.String()), zap.Error(err))
		return err
	}

	s.update(func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		wasUnread := !s.notifications[i].IsRead
		next := make([]model.Notification, 0, len(s.notifications)-1)
		next = append(next, s.notifications[:i]...)
		next = append(next, s.notifications[i+1:]...)
		s.notifications = next
		if wasUnread {
			s.unread = max(0, s.unread-1)
		}
		return true
	})
	return nil
}

// GetUnread returns the unread notifications, newest-first.
func (s *Store) GetUnread() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterUnread(s.notifications)
}

// Notifications returns a copy of the list, newest-first.
func (s *Store) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.notifications...)
}

// UnreadCount returns the tracked unread counter.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every later state change. The returned
// function removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Close ends the store's session. Results of calls that complete after
// Close are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.listeners = make(map[int]Listener)
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// update applies fn under the lock and, if it reported a change, notifies
// listeners after releasing it.
func (s *Store) update(fn func() bool) {
	s.mu.Lock()
	if s.closed || !fn() {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Notifications: append([]model.Notification(nil), s.notifications...),
		UnreadCount:   s.unread,
	}
}

func (s *Store) indexOf(id model.ID) int {
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			return i
		}
	}
	return -1
}

func countUnread(list []model.Notification) int {
	n := 0
	for i := range list {
		if !list[i].IsRead {
			n++
		}
	}
	return n
}

func filterUnread(list []model.Notification) []model.Notification {
	out := make([]model.Notification, 0, len(list))
	for _, n := range list {
		if !n.IsRead {
			out = append(out, n)
		}
	}
	return out
}
