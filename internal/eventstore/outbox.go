package eventstore

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/eventbus"
)

// Relay drains the outbox: events that were committed but never handed to
// the broker, typically because the process died between save and publish.
// Command handlers publish inline and mark their own batch, so under normal
// operation the relay finds nothing; the grace window keeps it from racing
// a handler that is still publishing.  Consumers are idempotent, so the
// rare double publish after a crash is harmless.
type Relay struct {
	outbox   Outbox
	bus      eventbus.EventBus
	interval time.Duration
	grace    time.Duration
	batch    int
}

// NewRelay builds a relay.  interval is how often the outbox is polled,
// grace is how long a row may stay unpublished before the relay claims it,
// batch caps how many rows are drained per tick.
func NewRelay(outbox Outbox, bus eventbus.EventBus, interval, grace time.Duration, batch int) *Relay {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Relay{outbox: outbox, bus: bus, interval: interval, grace: grace, batch: batch}
}

// Run polls until the context is cancelled.  Errors are logged and the next
// tick retries; an unreachable broker must not take the relay down.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				log.Printf("outbox: drain failed: %v", err)
			}
		}
	}
}

// Drain publishes one batch of overdue rows and marks them.  Rows are
// processed in commit order, which preserves per-stream publish order.
func (r *Relay) Drain(ctx context.Context) error {
	entries, err := r.outbox.Unpublished(ctx, r.grace, r.batch)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	log.Printf("outbox: republishing %d event(s)", len(entries))

	done := make(map[string][]int)
	for _, e := range entries {
		if err := r.bus.Publish(ctx, e.Event); err != nil {
			// Stop at the first failure so commit order is preserved on the
			// next attempt; everything already published gets marked below.
			log.Printf("outbox: publish %s v%d failed: %v", e.StreamID, e.Version, err)
			break
		}
		done[e.StreamID] = append(done[e.StreamID], e.Version)
	}
	for streamID, versions := range done {
		if err := r.outbox.MarkPublished(ctx, streamID, versions); err != nil {
			return err
		}
	}
	return nil
}
