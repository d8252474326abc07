// Package repository reconstitutes aggregates from their event streams and
// appends their new events under the optimistic-concurrency check.
package repository

import (
	"context"

	"github.com/iliyamo/hotel-reservation/internal/aggregate"
	"github.com/iliyamo/hotel-reservation/internal/eventstore"
)

// ReservationRepository loads and saves Reservation aggregates.  It never
// publishes: handing committed events to the bus is the command handler's
// job, performed only after a successful save.
type ReservationRepository struct {
	store eventstore.EventStore
}

// NewReservationRepository returns a repository bound to the given store.
func NewReservationRepository(store eventstore.EventStore) *ReservationRepository {
	if store == nil {
		panic("nil event store passed to NewReservationRepository")
	}
	return &ReservationRepository{store: store}
}

// FindByID fetches the stream and folds it.  An unknown id yields
// (nil, nil) so callers can tell "not found" apart from real failures.
func (r *ReservationRepository) FindByID(ctx context.Context, id string) (*aggregate.Reservation, error) {
	events, err := r.store.GetEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return aggregate.FromEvents(events)
}

// Save appends the aggregate's uncommitted events at the version it was
// loaded at, then clears the buffer.  A clean aggregate is a no-op.  A
// *eventstore.ConcurrencyError propagates unchanged and unretried; the
// command layer owns the reload-or-surface decision.
func (r *ReservationRepository) Save(ctx context.Context, res *aggregate.Reservation) error {
	pending := res.UncommittedEvents()
	if len(pending) == 0 {
		return nil
	}
	if err := r.store.AppendEvents(ctx, res.ID(), pending, res.LoadedVersion()); err != nil {
		return err
	}
	res.MarkCommitted()
	return nil
}
