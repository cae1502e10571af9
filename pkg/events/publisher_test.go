package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	mu        sync.Mutex
	published []struct {
		topic string
		body  []byte
	}
	attempts  int
	failFirst int
	failAll   bool
}

func (b *fakeBroker) Publish(_ context.Context, topic string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts++
	if b.failAll || b.attempts <= b.failFirst {
		return errors.New("broker unavailable")
	}
	b.published = append(b.published, struct {
		topic string
		body  []byte
	}{topic, body})
	return nil
}

func (b *fakeBroker) Close() error { return nil }

func (b *fakeBroker) topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.published))
	for i, p := range b.published {
		out[i] = p.topic
	}
	return out
}

func newTestPublisher(b Broker, cfg Config) *AsyncPublisher {
	if cfg.RetryBase == 0 {
		cfg.RetryBase = time.Millisecond
	}
	return NewPublisher(b, cfg, zerolog.Nop())
}

func env(entityType, id string) Envelope {
	return Envelope{
		EntityType: entityType,
		Operation:  OpCreated,
		EntityID:   id,
		Timestamp:  time.Now().UTC(),
	}
}

func TestPublisherTopicRouting(t *testing.T) {
	broker := &fakeBroker{}
	pub := newTestPublisher(broker, Config{})

	pub.Publish(context.Background(), env("custodian", "c1"))
	pub.Publish(context.Background(), env("account", "a1"))
	pub.Publish(context.Background(), env("transaction", "t1"))
	require.NoError(t, pub.Close())

	assert.Equal(t, []string{
		"custodian.custodian",
		"custodian.custodian",
		"custodian.transactions",
	}, broker.topics())
}

func TestPublisherPreservesOrder(t *testing.T) {
	broker := &fakeBroker{}
	pub := newTestPublisher(broker, Config{})

	for _, id := range []string{"1", "2", "3", "4"} {
		pub.Publish(context.Background(), env("custodian", id))
	}
	require.NoError(t, pub.Close())

	require.Len(t, broker.published, 4)
	for i, want := range []string{"1", "2", "3", "4"} {
		var got Envelope
		require.NoError(t, json.Unmarshal(broker.published[i].body, &got))
		assert.Equal(t, want, got.EntityID)
	}
}

func TestPublisherRetriesThenSucceeds(t *testing.T) {
	broker := &fakeBroker{failFirst: 2}
	pub := newTestPublisher(broker, Config{MaxAttempts: 5})

	pub.Publish(context.Background(), env("custodian", "c1"))
	require.NoError(t, pub.Close())

	assert.Equal(t, 3, broker.attempts)
	assert.Len(t, broker.published, 1)
	assert.Zero(t, pub.Dropped())
}

func TestPublisherExhaustionDoesNotFailCaller(t *testing.T) {
	broker := &fakeBroker{failAll: true}
	var dropped []*PublicationError
	var mu sync.Mutex
	pub := newTestPublisher(broker, Config{
		MaxAttempts: 3,
		OnDrop: func(perr *PublicationError) {
			mu.Lock()
			dropped = append(dropped, perr)
			mu.Unlock()
		},
	})

	// Publish never returns an error; delivery failure is operational only.
	pub.Publish(context.Background(), env("transaction", "t1"))
	require.NoError(t, pub.Close())

	assert.Equal(t, uint64(1), pub.Dropped())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, dropped, 1)
	assert.Equal(t, "custodian.transactions", dropped[0].Topic)
	assert.Equal(t, 3, dropped[0].Attempts)
	assert.Equal(t, "t1", dropped[0].Envelope.EntityID)
}

func TestPublisherPublishAfterClose(t *testing.T) {
	broker := &fakeBroker{}
	pub := newTestPublisher(broker, Config{})
	require.NoError(t, pub.Close())

	// Must not panic or deliver.
	pub.Publish(context.Background(), env("custodian", "late"))
	assert.Empty(t, broker.topics())
}

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = NoopPublisher{}
	pub.Publish(context.Background(), env("custodian", "c1"))
	assert.NoError(t, pub.Close())
}
