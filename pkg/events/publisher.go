package events

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config tunes the asynchronous publisher.
type Config struct {
	// CustodianTopic receives events for custodians, portfolios, accounts
	// and positions.
	CustodianTopic string
	// TransactionTopic receives transaction events.
	TransactionTopic string
	// MaxAttempts bounds delivery retries per envelope, first try included.
	MaxAttempts int
	// RetryBase is the first backoff interval; it doubles per attempt.
	RetryBase time.Duration
	// PublishTimeout bounds each individual broker call.
	PublishTimeout time.Duration
	// QueueSize is the capacity of the pending-envelope queue. When the
	// queue is full new envelopes are dropped and counted.
	QueueSize int
	// OnDrop, when set, observes every envelope that could not be delivered.
	OnDrop func(*PublicationError)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.CustodianTopic == "" {
		out.CustodianTopic = "custodian.custodian"
	}
	if out.TransactionTopic == "" {
		out.TransactionTopic = "custodian.transactions"
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 5
	}
	if out.RetryBase <= 0 {
		out.RetryBase = 200 * time.Millisecond
	}
	if out.PublishTimeout <= 0 {
		out.PublishTimeout = 5 * time.Second
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 1024
	}
	return out
}

// AsyncPublisher delivers envelopes through a single background worker so
// event order follows mutation order and retries never block a request.
type AsyncPublisher struct {
	broker  Broker
	cfg     Config
	log     zerolog.Logger
	queue   chan Envelope
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewPublisher starts the delivery worker. Close drains the queue before
// closing the broker.
func NewPublisher(broker Broker, cfg Config, log zerolog.Logger) *AsyncPublisher {
	p := &AsyncPublisher{
		broker: broker,
		cfg:    cfg.withDefaults(),
		log:    log,
		queue:  make(chan Envelope, cfg.withDefaults().QueueSize),
	}
	p.wg.Add(1)
	go p.worker()
	return p
}

func (p *AsyncPublisher) topicFor(entityType string) string {
	if entityType == "transaction" {
		return p.cfg.TransactionTopic
	}
	return p.cfg.CustodianTopic
}

// Publish enqueues the envelope and returns immediately. A full queue drops
// the envelope; durability of the write always wins over publication.
func (p *AsyncPublisher) Publish(_ context.Context, env Envelope) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- env:
	default:
		p.dropped.Add(1)
		p.surfaceDrop(&PublicationError{
			Topic:    p.topicFor(env.EntityType),
			Envelope: env,
			Attempts: 0,
			Err:      errQueueFull,
		})
	}
}

// Dropped reports how many envelopes were lost to queue overflow or retry
// exhaustion since startup.
func (p *AsyncPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
	return p.broker.Close()
}

func (p *AsyncPublisher) worker() {
	defer p.wg.Done()
	for env := range p.queue {
		p.deliver(env)
	}
}

func (p *AsyncPublisher) deliver(env Envelope) {
	topic := p.topicFor(env.EntityType)

	body, err := json.Marshal(env)
	if err != nil {
		p.dropped.Add(1)
		p.surfaceDrop(&PublicationError{Topic: topic, Envelope: env, Attempts: 0, Err: err})
		return
	}

	backoff := p.cfg.RetryBase
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PublishTimeout)
		lastErr = p.broker.Publish(ctx, topic, body)
		cancel()
		if lastErr == nil {
			return
		}
		p.log.Warn().
			Err(lastErr).
			Str("topic", topic).
			Str("entity_type", env.EntityType).
			Str("entity_id", env.EntityID).
			Int("attempt", attempt).
			Msg("event publish failed")
		if attempt < p.cfg.MaxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	p.dropped.Add(1)
	p.surfaceDrop(&PublicationError{
		Topic:    topic,
		Envelope: env,
		Attempts: p.cfg.MaxAttempts,
		Err:      lastErr,
	})
}

func (p *AsyncPublisher) surfaceDrop(perr *PublicationError) {
	p.log.Error().
		Err(perr.Err).
		Str("topic", perr.Topic).
		Str("entity_type", perr.Envelope.EntityType).
		Str("entity_id", perr.Envelope.EntityID).
		Int("attempts", perr.Attempts).
		Msg("event dropped")
	if p.cfg.OnDrop != nil {
		p.cfg.OnDrop(perr)
	}
}

var errQueueFull = queueFullError{}

type queueFullError struct{}

func (queueFullError) Error() string { return "publish queue full" }

// NoopPublisher is used when event publication is disabled by configuration.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Envelope) {}
func (NoopPublisher) Close() error                      { return nil }

var (
	_ Publisher = (*AsyncPublisher)(nil)
	_ Publisher = NoopPublisher{}
)
