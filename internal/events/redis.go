package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher is the part of *redis.Client the bridge uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisBridge delivers events to a local bus and mirrors them as JSON on a
// Redis channel for out-of-process consumers.
type RedisBridge struct {
	local   Bus
	rdb     Publisher
	channel string
	log     *zap.Logger
}

var _ Bus = (*RedisBridge)(nil)

// NewRedisBridge wraps local. Events are mirrored to channel on rdb.
func NewRedisBridge(local Bus, rdb Publisher, channel string, log *zap.Logger) *RedisBridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBridge{local: local, rdb: rdb, channel: channel, log: log}
}

// Publish delivers locally first; a Redis failure is logged and returned.
func (b *RedisBridge) Publish(ctx context.Context, e Event) error {
	localErr := b.local.Publish(ctx, e)

	payload, err := json.Marshal(e)
	if err != nil {
		return errors.Join(localErr, fmt.Errorf("marshaling event %s: %w", e.Topic, err))
	}

	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.log.Warn("redis publish failed",
			zap.String("topic", e.Topic),
			zap.String("channel", b.channel),
			zap.Error(err),
		)
		return errors.Join(localErr, fmt.Errorf("publishing %s to redis: %w", e.Topic, err))
	}

	return localErr
}

// Subscribe registers h on the local bus only.
func (b *RedisBridge) Subscribe(topic string, h Handler) func() {
	return b.local.Subscribe(topic, h)
}

// NewRedisClient builds a go-redis client for addr.
func NewRedisClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
}
