package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/event"
)

func TestMemoryBusFanOut(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()

	var got []string
	require.NoError(t, bus.Subscribe(event.TypeReservationConfirmed, func(ctx context.Context, ev event.DomainEvent) error {
		got = append(got, "first:"+ev.AggregateID())
		return nil
	}))
	require.NoError(t, bus.Subscribe(event.TypeReservationConfirmed, func(ctx context.Context, ev event.DomainEvent) error {
		got = append(got, "second:"+ev.AggregateID())
		return nil
	}))

	ev := event.NewReservationConfirmed("res-1", time.Now().UTC(), nil)
	require.NoError(t, bus.Publish(ctx, ev))

	// Every handler registered for the type sees every message, in
	// registration order.
	assert.Equal(t, []string{"first:res-1", "second:res-1"}, got)
}

func TestMemoryBusIgnoresOtherTypes(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()

	calls := 0
	require.NoError(t, bus.Subscribe(event.TypeReservationCancelled, func(ctx context.Context, ev event.DomainEvent) error {
		calls++
		return nil
	}))
	require.NoError(t, bus.Publish(ctx, event.NewReservationConfirmed("res-1", time.Now().UTC(), nil)))
	assert.Zero(t, calls)
}

func TestMemoryBusPublishManyPreservesOrder(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()

	var got []string
	handler := func(ctx context.Context, ev event.DomainEvent) error {
		got = append(got, ev.EventType())
		return nil
	}
	require.NoError(t, bus.Subscribe(event.TypeReservationConfirmed, handler))
	require.NoError(t, bus.Subscribe(event.TypeReservationCancelled, handler))

	now := time.Now().UTC()
	require.NoError(t, bus.PublishMany(ctx, []event.DomainEvent{
		event.NewReservationConfirmed("res-1", now, nil),
		event.NewReservationCancelled("res-1", "Guest request", now, nil),
	}))
	assert.Equal(t, []string{event.TypeReservationConfirmed, event.TypeReservationCancelled}, got)
}

func TestMemoryBusHandlerFailureDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()
	boom := errors.New("boom")

	secondRan := false
	require.NoError(t, bus.Subscribe(event.TypeReservationConfirmed, func(ctx context.Context, ev event.DomainEvent) error {
		return boom
	}))
	require.NoError(t, bus.Subscribe(event.TypeReservationConfirmed, func(ctx context.Context, ev event.DomainEvent) error {
		secondRan = true
		return nil
	}))

	err := bus.Publish(ctx, event.NewReservationConfirmed("res-1", time.Now().UTC(), nil))
	assert.ErrorIs(t, err, boom)
	assert.True(t, secondRan)
}
