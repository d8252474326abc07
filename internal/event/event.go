// Package event defines the domain events recorded against reservation
// streams and the JSON envelope used to move them through the event store
// and the message broker.
package event

import "time"

// Metadata carries optional free-form context for an event, such as
// causation and correlation identifiers or the acting user.  It is stored
// and published alongside the event payload but never interpreted by the
// core itself.
type Metadata map[string]string

// DomainEvent is an immutable fact about a single aggregate instance.
// Implementations embed Base, which supplies everything except the type
// discriminator.
type DomainEvent interface {
	// EventType returns the string discriminator, e.g. "ReservationCreated".
	EventType() string
	// AggregateID identifies the stream the event belongs to.
	AggregateID() string
	// EventVersion is the 1-based, per-stream sequence number of the event.
	EventVersion() int
	// OccurredAt is the time the fact happened, not the time it was stored.
	OccurredAt() time.Time
	// EventMetadata returns the optional metadata map, which may be nil.
	EventMetadata() Metadata
}

// Base holds the envelope fields shared by every event type.  The fields
// are exported so events serialize as flat JSON objects.
type Base struct {
	ID      string    `json:"aggregate_id"`
	Version int       `json:"version"`
	At      time.Time `json:"occurred_at"`
	Meta    Metadata  `json:"metadata,omitempty"`
}

func (b *Base) AggregateID() string { return b.ID }

func (b *Base) EventVersion() int { return b.Version }

func (b *Base) OccurredAt() time.Time { return b.At }

func (b *Base) EventMetadata() Metadata { return b.Meta }

// SetEventVersion stamps the per-stream sequence number.  Only the event
// store calls this: versions are assigned at append time, derived from the
// expected version the writer proved it held.
func (b *Base) SetEventVersion(v int) { b.Version = v }
