package eventbus

import (
	"context"
	"sync"

	"github.com/iliyamo/hotel-reservation/internal/event"
)

// MemoryBus is a synchronous in-process EventBus used by the test suite.
// Handlers run inline on the publisher's goroutine, in registration order.
// The subscriber registry is owned by the instance and never shared.
var _ EventBus = (*MemoryBus)(nil)

type MemoryBus struct {
	mu       sync.Mutex
	handlers map[string][]Handler
}

// NewMemoryBus returns an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]Handler)}
}

// Subscribe implements EventBus.
func (b *MemoryBus) Subscribe(eventType string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
	return nil
}

// Publish implements EventBus.  Every handler registered for the type sees
// the event; the first handler error is returned after the rest have run,
// mirroring the isolation between real consumers.
func (b *MemoryBus) Publish(ctx context.Context, ev event.DomainEvent) error {
	b.mu.Lock()
	hs := make([]Handler, len(b.handlers[ev.EventType()]))
	copy(hs, b.handlers[ev.EventType()])
	b.mu.Unlock()

	var first error
	for _, h := range hs {
		if err := h(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PublishMany implements EventBus.
func (b *MemoryBus) PublishMany(ctx context.Context, events []event.DomainEvent) error {
	for _, ev := range events {
		if err := b.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
