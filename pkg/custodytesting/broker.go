package custodytesting

import (
	"context"
	"errors"
	"sync"

	"github.com/openwealth/custody/pkg/events"
)

// Delivery is one body accepted by the recording broker.
type Delivery struct {
	Topic string
	Body  []byte
}

// RecordingBroker captures published bodies in order and can inject
// failures to exercise the publisher's retry path.
type RecordingBroker struct {
	mu         sync.Mutex
	deliveries []Delivery
	attempts   int

	// FailAll rejects every publish.
	FailAll bool
	// FailFirst rejects the first N publish attempts, then accepts.
	FailFirst int

	closed bool
}

func NewRecordingBroker() *RecordingBroker {
	return &RecordingBroker{}
}

var errInjected = errors.New("injected broker failure")

func (b *RecordingBroker) Publish(_ context.Context, topic string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts++
	if b.FailAll {
		return errInjected
	}
	if b.attempts <= b.FailFirst {
		return errInjected
	}
	cp := make([]byte, len(body))
	copy(cp, body)
	b.deliveries = append(b.deliveries, Delivery{Topic: topic, Body: cp})
	return nil
}

func (b *RecordingBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Deliveries returns the accepted deliveries in publication order.
func (b *RecordingBroker) Deliveries() []Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Delivery, len(b.deliveries))
	copy(out, b.deliveries)
	return out
}

// Attempts reports how many publish calls were made, failed ones included.
func (b *RecordingBroker) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Closed reports whether Close was called.
func (b *RecordingBroker) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

var _ events.Broker = (*RecordingBroker)(nil)
