package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/event"
)

func TestTopologyNames(t *testing.T) {
	assert.Equal(t, "event.ReservationCreated", routingKey("ReservationCreated"))
	assert.Equal(t, "events.ReservationCreated", queueName("ReservationCreated"))
	assert.Equal(t, "events.ReservationCreated.dead", deadQueueName("ReservationCreated"))
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, retryCount(nil))
	assert.Equal(t, 0, retryCount(amqp.Table{}))
	assert.Equal(t, 0, retryCount(amqp.Table{retryHeader: "3"})) // wrong type tolerated

	// Different AMQP clients write different integer widths.
	assert.Equal(t, 3, retryCount(amqp.Table{retryHeader: int32(3)}))
	assert.Equal(t, 4, retryCount(amqp.Table{retryHeader: int64(4)}))
	assert.Equal(t, 5, retryCount(amqp.Table{retryHeader: 5}))
}

// fakeAcknowledger records the ack decision handleDelivery makes for a
// delivery without a live channel behind it.
type fakeAcknowledger struct {
	acks    int
	nacks   int
	requeue bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error { a.acks++; return nil }

func (a *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

type republishCall struct {
	eventType string
	attempt   int
}

func deliveryBus(h Handler) (*RabbitBus, *[]republishCall) {
	var calls []republishCall
	b := &RabbitBus{
		maxRetries:     5,
		handlerTimeout: time.Second,
		handlers:       map[string][]Handler{event.TypeReservationConfirmed: {h}},
	}
	b.republishFn = func(eventType string, body []byte, attempt int) error {
		calls = append(calls, republishCall{eventType: eventType, attempt: attempt})
		return nil
	}
	return b, &calls
}

func confirmedBody(t *testing.T) []byte {
	t.Helper()
	body, err := event.Marshal(event.NewReservationConfirmed("res-1", time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC), nil))
	require.NoError(t, err)
	return body
}

func TestDeliverySuccessAcks(t *testing.T) {
	b, calls := deliveryBus(func(ctx context.Context, ev event.DomainEvent) error { return nil })
	ack := &fakeAcknowledger{}

	b.handleDelivery(event.TypeReservationConfirmed, amqp.Delivery{Acknowledger: ack, Body: confirmedBody(t)})

	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 0, ack.nacks)
	assert.Empty(t, *calls)
}

func TestDeliveryFailureBelowBoundRepublishes(t *testing.T) {
	b, calls := deliveryBus(func(ctx context.Context, ev event.DomainEvent) error { return errors.New("readmodel down") })
	ack := &fakeAcknowledger{}

	b.handleDelivery(event.TypeReservationConfirmed, amqp.Delivery{
		Acknowledger: ack,
		Body:         confirmedBody(t),
		Headers:      amqp.Table{retryHeader: int32(2)},
	})

	// The failed original is acked and a copy with the incremented counter
	// takes its place.
	require.Len(t, *calls, 1)
	assert.Equal(t, event.TypeReservationConfirmed, (*calls)[0].eventType)
	assert.Equal(t, 3, (*calls)[0].attempt)
	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 0, ack.nacks)
}

func TestDeliveryGivesUpAtBound(t *testing.T) {
	b, calls := deliveryBus(func(ctx context.Context, ev event.DomainEvent) error { return errors.New("readmodel down") })
	ack := &fakeAcknowledger{}

	b.handleDelivery(event.TypeReservationConfirmed, amqp.Delivery{
		Acknowledger: ack,
		Body:         confirmedBody(t),
		Headers:      amqp.Table{retryHeader: int32(4)},
	})

	// Attempt 5 of 5: rejected without requeue, which dead-letters it.
	assert.Empty(t, *calls)
	assert.Equal(t, 0, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue)
}

func TestPoisonMessageParkedImmediately(t *testing.T) {
	handled := false
	b, calls := deliveryBus(func(ctx context.Context, ev event.DomainEvent) error { handled = true; return nil })
	ack := &fakeAcknowledger{}

	b.handleDelivery(event.TypeReservationConfirmed, amqp.Delivery{Acknowledger: ack, Body: []byte("not json")})

	assert.False(t, handled)
	assert.Empty(t, *calls)
	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue)
}

func TestRepublishFailureFallsBackToRequeue(t *testing.T) {
	b, _ := deliveryBus(func(ctx context.Context, ev event.DomainEvent) error { return errors.New("readmodel down") })
	b.republishFn = func(eventType string, body []byte, attempt int) error { return errors.New("channel closed") }
	ack := &fakeAcknowledger{}

	b.handleDelivery(event.TypeReservationConfirmed, amqp.Delivery{Acknowledger: ack, Body: confirmedBody(t)})

	assert.Equal(t, 0, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.True(t, ack.requeue)
}
