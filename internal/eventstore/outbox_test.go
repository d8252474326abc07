package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/event"
	"github.com/iliyamo/hotel-reservation/internal/eventbus"
)

func TestRelayDrainsUnpublishedRows(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendEvents(ctx, "res-1", []event.DomainEvent{
		createdEvent("res-1", now),
		event.NewReservationConfirmed("res-1", now.Add(time.Minute), nil),
	}, 0))
	require.NoError(t, s.AppendEvents(ctx, "res-2", []event.DomainEvent{
		createdEvent("res-2", now),
	}, 0))

	// res-2 was published inline by its command handler.
	require.NoError(t, s.MarkPublished(ctx, "res-2", []int{1}))

	bus := eventbus.NewMemoryBus()
	var delivered []event.DomainEvent
	record := func(ctx context.Context, ev event.DomainEvent) error {
		delivered = append(delivered, ev)
		return nil
	}
	require.NoError(t, bus.Subscribe(event.TypeReservationCreated, record))
	require.NoError(t, bus.Subscribe(event.TypeReservationConfirmed, record))

	relay := NewRelay(s, bus, time.Second, 0, 100)
	require.NoError(t, relay.Drain(ctx))

	// Only the two res-1 events were overdue, and they come out in commit
	// order.
	require.Len(t, delivered, 2)
	assert.Equal(t, event.TypeReservationCreated, delivered[0].EventType())
	assert.Equal(t, event.TypeReservationConfirmed, delivered[1].EventType())
	assert.Equal(t, "res-1", delivered[0].AggregateID())

	// A second drain finds nothing: the rows are marked.
	require.NoError(t, relay.Drain(ctx))
	assert.Len(t, delivered, 2)
}

func TestRelayGraceWindowSkipsFreshRows(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.AppendEvents(ctx, "res-1", []event.DomainEvent{
		createdEvent("res-1", time.Now().UTC()),
	}, 0))

	rows, err := s.Unpublished(ctx, time.Hour, 100)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = s.Unpublished(ctx, 0, 100)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMarkPublishedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.AppendEvents(ctx, "res-1", []event.DomainEvent{
		createdEvent("res-1", time.Now().UTC().Add(-time.Minute)),
	}, 0))

	require.NoError(t, s.MarkPublished(ctx, "res-1", []int{1}))
	require.NoError(t, s.MarkPublished(ctx, "res-1", []int{1}))

	rows, err := s.Unpublished(ctx, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
