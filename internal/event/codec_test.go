package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	at := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	created := NewReservationCreated("res-1", "hotel-1", "John Doe",
		time.Date(2099, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2099, 6, 5, 0, 0, 0, 0, time.UTC),
		at, Metadata{"correlation_id": "abc-123"})
	created.SetEventVersion(1)

	body, err := Marshal(created)
	require.NoError(t, err)

	decoded, err := Unmarshal(body)
	require.NoError(t, err)
	got, ok := decoded.(*ReservationCreated)
	require.True(t, ok)

	assert.Equal(t, created, got)
	assert.Equal(t, "abc-123", got.EventMetadata()["correlation_id"])
	assert.Equal(t, 1, got.EventVersion())
	assert.True(t, got.OccurredAt().Equal(at))
}

func TestDecodeDispatchesByType(t *testing.T) {
	at := time.Now().UTC()
	for _, ev := range []DomainEvent{
		NewReservationConfirmed("res-1", at, nil),
		NewReservationCancelled("res-1", "Guest request", at, nil),
	} {
		body, err := Marshal(ev)
		require.NoError(t, err)
		decoded, err := Unmarshal(body)
		require.NoError(t, err)
		assert.Equal(t, ev.EventType(), decoded.EventType())
		assert.Equal(t, "res-1", decoded.AggregateID())
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode("ReservationExploded", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestUnmarshalGarbage(t *testing.T) {
	_, err := Unmarshal([]byte(`not json`))
	assert.Error(t, err)
}
