// Package events is the application-wide publish/subscribe bus used for
// cross-cutting signals such as balance updates.
package events

import (
	"context"
	gosync "sync"
)

// TopicBalanceUpdate carries a model.BalanceUpdate after a completed
// transaction.
const TopicBalanceUpdate = "balanceUpdate"

// Event is one message on the bus.
type Event struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// Handler reacts to an event. Handlers run on the publisher's goroutine.
type Handler func(ctx context.Context, e Event)

// Bus publishes events to subscribers by topic name.
type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(topic string, h Handler) (unsubscribe func())
}

// LocalBus is an in-process, synchronous fan-out.
type LocalBus struct {
	mu       gosync.RWMutex
	handlers map[string]map[int]Handler
	nextID   int
}

var _ Bus = (*LocalBus)(nil)

// NewLocalBus creates an empty bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string]map[int]Handler)}
}

// Publish delivers e to every handler subscribed to e.Topic.
func (b *LocalBus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers[e.Topic]))
	for _, h := range b.handlers[e.Topic] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(ctx, e)
	}
	return nil
}

// Subscribe registers h for topic.
func (b *LocalBus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[topic][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[topic], id)
	}
}

// Nop discards events.
type Nop struct{}

var _ Bus = Nop{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Subscribe(string, Handler) func() { return func() {} }
