package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/nyord-notifier/internal/model"
)

func TestLocalBus_DeliversByTopic(t *testing.T) {
	bus := NewLocalBus()

	var balance, other int
	unsubscribe := bus.Subscribe(TopicBalanceUpdate, func(context.Context, Event) { balance++ })
	bus.Subscribe("other", func(context.Context, Event) { other++ })

	require.NoError(t, bus.Publish(context.Background(), Event{Topic: TopicBalanceUpdate}))
	assert.Equal(t, 1, balance)
	assert.Equal(t, 0, other)

	unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), Event{Topic: TopicBalanceUpdate}))
	assert.Equal(t, 1, balance)
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestRedisBridge_MirrorsJSON(t *testing.T) {
	local := NewLocalBus()
	pub := &fakePublisher{}
	bridge := NewRedisBridge(local, pub, "nyord:events", zaptest.NewLogger(t))

	var got model.BalanceUpdate
	bridge.Subscribe(TopicBalanceUpdate, func(_ context.Context, e Event) {
		got = e.Payload.(model.BalanceUpdate)
	})

	update := model.BalanceUpdate{
		TransactionID:  "99",
		Amount:         decimal.RequireFromString("25.50"),
		NewSrcBalance:  decimal.RequireFromString("74.50"),
		NewDestBalance: decimal.RequireFromString("125.50"),
	}
	require.NoError(t, bridge.Publish(context.Background(), Event{Topic: TopicBalanceUpdate, Payload: update}))

	assert.Equal(t, model.ID("99"), got.TransactionID)
	assert.Equal(t, "nyord:events", pub.channel)

	var wire struct {
		Topic   string `json:"topic"`
		Payload struct {
			TransactionID string `json:"transactionId"`
			Amount        string `json:"amount"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(pub.payload, &wire))
	assert.Equal(t, TopicBalanceUpdate, wire.Topic)
	assert.Equal(t, "99", wire.Payload.TransactionID)
	assert.Equal(t, "25.5", wire.Payload.Amount)
}

func TestRedisBridge_LocalDeliveryDespiteRedisFailure(t *testing.T) {
	local := NewLocalBus()
	pub := &fakePublisher{err: errors.New("connection refused")}
	bridge := NewRedisBridge(local, pub, "nyord:events", zaptest.NewLogger(t))

	delivered := false
	bridge.Subscribe("x", func(context.Context, Event) { delivered = true })

	err := bridge.Publish(context.Background(), Event{Topic: "x"})
	assert.Error(t, err)
	assert.True(t, delivered)
}
