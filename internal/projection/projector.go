package projection

import (
	"context"
	"fmt"
	"log"

	"github.com/iliyamo/hotel-reservation/internal/event"
	"github.com/iliyamo/hotel-reservation/internal/eventbus"
	"github.com/iliyamo/hotel-reservation/internal/eventstore"
)

// Projector folds reservation events into the read model.  One handler per
// event type; every handler is idempotent, so at-least-once delivery and
// rebuild replays are both safe.
type Projector struct {
	rm ReadModel
}

// NewProjector returns a projector writing to the given read model.
func NewProjector(rm ReadModel) *Projector {
	if rm == nil {
		panic("nil read model passed to NewProjector")
	}
	return &Projector{rm: rm}
}

// subscribedTypes lists the event types this projection consumes, in the
// order the rebuild path replays them.
var subscribedTypes = []string{
	event.TypeReservationCreated,
	event.TypeReservationConfirmed,
	event.TypeReservationCancelled,
}

// Register subscribes the projector's handlers on the bus.
func (p *Projector) Register(bus eventbus.EventBus) error {
	for _, t := range subscribedTypes {
		if err := bus.Subscribe(t, p.Apply); err != nil {
			return err
		}
	}
	return nil
}

// Apply dispatches one event to its read-model write.  Used both as the
// bus handler and by the rebuild path.
func (p *Projector) Apply(ctx context.Context, ev event.DomainEvent) error {
	switch e := ev.(type) {
	case *event.ReservationCreated:
		return p.rm.UpsertDetails(ctx, ReservationRow{
			ID:        e.AggregateID(),
			HotelID:   e.HotelID,
			GuestName: e.GuestName,
			CheckIn:   e.CheckIn,
			CheckOut:  e.CheckOut,
			Status:    "pending",
			CreatedAt: e.OccurredAt(),
			UpdatedAt: e.OccurredAt(),
		})
	case *event.ReservationConfirmed:
		return p.rm.SetStatus(ctx, e.AggregateID(), "confirmed", e.OccurredAt())
	case *event.ReservationCancelled:
		return p.rm.SetStatus(ctx, e.AggregateID(), "cancelled", e.OccurredAt())
	default:
		return fmt.Errorf("projection: unexpected event type %q", ev.EventType())
	}
}

// Rebuild drops the read model and reconstructs it by replaying every
// subscribed event type from the store in occurrence order.  This is the
// canonical recovery path after a projection bug or schema change.
func (p *Projector) Rebuild(ctx context.Context, store eventstore.EventStore) error {
	if err := p.rm.Truncate(ctx); err != nil {
		return err
	}
	total := 0
	for _, t := range subscribedTypes {
		events, err := store.GetEventsByType(ctx, t, 0)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if err := p.Apply(ctx, ev); err != nil {
				return err
			}
		}
		total += len(events)
	}
	log.Printf("projection: rebuilt read model from %d event(s)", total)
	return nil
}
