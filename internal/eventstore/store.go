// Package eventstore persists the append-only event streams that are the
// system of record.  The (stream_id, version) uniqueness constraint is the
// sole concurrency-control mechanism: any two writers racing for the same
// next version collide on the constraint and exactly one commits.
package eventstore

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/event"
)

// ConcurrencyError reports an optimistic-concurrency conflict on append.
// Nothing is persisted when it is returned.  Callers decide whether to
// reload and retry or surface the conflict; the store never retries.
type ConcurrencyError struct {
	StreamID string
	Expected int
	Actual   int
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency conflict on stream %s: expected version %d, actual %d",
		e.StreamID, e.Expected, e.Actual)
}

// EventStore is the durable, ordered, per-stream append log.
type EventStore interface {
	// AppendEvents atomically verifies that the stream is at expectedVersion,
	// assigns versions expectedVersion+1..expectedVersion+len(events) to the
	// events in order, and commits them in one transaction.  On a version
	// mismatch it returns *ConcurrencyError and appends nothing.
	AppendEvents(ctx context.Context, streamID string, events []event.DomainEvent, expectedVersion int) error

	// GetEvents returns the full stream in ascending version order.  An
	// unknown stream yields an empty slice, not an error.
	GetEvents(ctx context.Context, streamID string) ([]event.DomainEvent, error)

	// GetEventsByType returns events of one type across all streams in
	// ascending occurrence order.  limit <= 0 means no limit.
	GetEventsByType(ctx context.Context, eventType string, limit int) ([]event.DomainEvent, error)

	// GetVersion returns the stream's current max version, 0 if unknown.
	GetVersion(ctx context.Context, streamID string) (int, error)
}

// StoredEvent pairs an event with its stream coordinates.  The outbox uses
// it so relays can acknowledge exactly the rows they published.
type StoredEvent struct {
	StreamID string
	Version  int
	Event    event.DomainEvent
}

// Outbox exposes the "needs publishing" marker written in the same
// transaction as the append.  A relay drains it to close the gap left when
// a process dies between a successful save and the broker publish.
type Outbox interface {
	// Unpublished returns committed events that have not been marked
	// published and are older than the grace window, in commit order.
	Unpublished(ctx context.Context, olderThan time.Duration, limit int) ([]StoredEvent, error)

	// MarkPublished flags the given versions of a stream as handed to the
	// broker.  Marking an already-marked row is a no-op.
	MarkPublished(ctx context.Context, streamID string, versions []int) error
}
