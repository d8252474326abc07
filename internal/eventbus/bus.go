// Package eventbus fans committed domain events out to interested
// consumers.  Delivery is at-least-once: every handler registered here must
// be idempotent.
package eventbus

import (
	"context"

	"github.com/iliyamo/hotel-reservation/internal/event"
)

// Handler consumes one delivered event.  Returning nil acknowledges the
// message; returning an error triggers a bounded redelivery.
type Handler func(ctx context.Context, ev event.DomainEvent) error

// EventBus is the publish/subscribe contract used by command handlers, the
// outbox relay and projections.
type EventBus interface {
	// Publish hands one already-committed event to the broker.
	Publish(ctx context.Context, ev event.DomainEvent) error

	// PublishMany publishes a batch, preserving input order.  Ordering
	// across different aggregates or event types is not guaranteed.
	PublishMany(ctx context.Context, events []event.DomainEvent) error

	// Subscribe registers a handler for one event type.  Multiple handlers
	// may subscribe to the same type; each receives every message.
	Subscribe(eventType string, h Handler) error
}
