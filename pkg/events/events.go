// Package events publishes custody domain events to a message broker with
// at-least-once semantics.
//
// Every accepted mutation produces an [Envelope] naming the entity type, the
// operation, the entity identifier and a snapshot of the entity (nil for
// deletes, the tombstone). Envelopes for transaction entities go to the
// transaction topic, everything else to the custodian topic.
//
// Delivery is fire-and-forget from the caller's perspective: a failed publish
// is retried on a background schedule with exponential backoff up to a
// bounded attempt count, and exhaustion is logged and counted but never
// reported as a failure of the mutation that produced the event. Consumers
// must therefore tolerate duplicate and, after exhaustion, missing events;
// idempotent consumption is a downstream responsibility.
package events

import (
	"context"
	"fmt"
	"time"
)

// Operation is the kind of mutation an event describes.
type Operation string

const (
	OpCreated Operation = "created"
	OpUpdated Operation = "updated"
	OpDeleted Operation = "deleted"
)

// Envelope is the wire shape of a domain event. Payload is a snapshot of the
// entity after the mutation, or nil for a delete tombstone.
type Envelope struct {
	EntityType string    `json:"entity_type"`
	Operation  Operation `json:"operation"`
	EntityID   string    `json:"entity_id"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload,omitempty"`
}

// Broker delivers an opaque message body to a named topic. Implementations
// wrap a concrete message broker client; tests substitute a recorder.
type Broker interface {
	Publish(ctx context.Context, topic string, body []byte) error
	Close() error
}

// Publisher accepts envelopes for asynchronous delivery. Publish never
// blocks on broker I/O and never returns an error to the caller.
type Publisher interface {
	Publish(ctx context.Context, env Envelope)
	Close() error
}

// PublicationError reports an envelope that exhausted its delivery attempts.
// It surfaces through logs and the optional OnDrop hook, never through the
// request path that produced the mutation.
type PublicationError struct {
	Topic    string
	Envelope Envelope
	Attempts int
	Err      error
}

func (e *PublicationError) Error() string {
	return fmt.Sprintf("publishing %s %s event for %s to topic %s failed after %d attempts: %v",
		e.Envelope.EntityType, e.Envelope.Operation, e.Envelope.EntityID, e.Topic, e.Attempts, e.Err)
}

func (e *PublicationError) Unwrap() error { return e.Err }
