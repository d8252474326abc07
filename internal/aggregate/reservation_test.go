package aggregate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/event"
)

var (
	testNow      = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	testCheckIn  = time.Date(2099, 6, 1, 0, 0, 0, 0, time.UTC)
	testCheckOut = time.Date(2099, 6, 5, 0, 0, 0, 0, time.UTC)
)

func newTestReservation(t *testing.T) *Reservation {
	t.Helper()
	r, err := NewReservation("res-1", "hotel-1", "John Doe", testCheckIn, testCheckOut, testNow, nil)
	require.NoError(t, err)
	return r
}

func TestNewReservation(t *testing.T) {
	r := newTestReservation(t)

	assert.Equal(t, "res-1", r.ID())
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, 1, r.Version())
	assert.Equal(t, 0, r.LoadedVersion())

	pending := r.UncommittedEvents()
	require.Len(t, pending, 1)
	created, ok := pending[0].(*event.ReservationCreated)
	require.True(t, ok)
	assert.Equal(t, "hotel-1", created.HotelID)
	assert.Equal(t, "John Doe", created.GuestName)
}

func TestNewReservationValidation(t *testing.T) {
	cases := []struct {
		name      string
		id        string
		hotelID   string
		guest     string
		checkIn   time.Time
		checkOut  time.Time
		wantInErr string
	}{
		{"missing id", "", "hotel-1", "John Doe", testCheckIn, testCheckOut, "id is required"},
		{"missing hotel", "res-1", "", "John Doe", testCheckIn, testCheckOut, "hotel id"},
		{"short guest name", "res-1", "hotel-1", "J", testCheckIn, testCheckOut, "guest name"},
		{"whitespace guest name", "res-1", "hotel-1", "  a  ", testCheckIn, testCheckOut, "guest name"},
		{"check-in equals check-out", "res-1", "hotel-1", "John Doe", testCheckIn, testCheckIn, "before check-out"},
		{"check-in after check-out", "res-1", "hotel-1", "John Doe", testCheckOut, testCheckIn, "before check-out"},
		{"check-in in the past", "res-1", "hotel-1", "John Doe",
			time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), testCheckOut, "in the past"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewReservation(tc.id, tc.hotelID, tc.guest, tc.checkIn, tc.checkOut, testNow, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			assert.Contains(t, err.Error(), tc.wantInErr)
			assert.Nil(t, r)
		})
	}
}

func TestNewReservationAcceptsToday(t *testing.T) {
	// A check-in on the current day is not "in the past" even though the
	// clock has already moved past midnight.
	checkIn := time.Date(testNow.Year(), testNow.Month(), testNow.Day(), 0, 0, 0, 0, time.UTC)
	_, err := NewReservation("res-1", "hotel-1", "John Doe", checkIn, checkIn.AddDate(0, 0, 2), testNow, nil)
	assert.NoError(t, err)
}

func TestConfirm(t *testing.T) {
	r := newTestReservation(t)
	require.NoError(t, r.Confirm(testNow, nil))

	assert.Equal(t, StatusConfirmed, r.Status)
	assert.Equal(t, 2, r.Version())
	assert.Len(t, r.UncommittedEvents(), 2)
}

func TestConfirmRejectedOutsidePending(t *testing.T) {
	confirmed := newTestReservation(t)
	require.NoError(t, confirmed.Confirm(testNow, nil))

	cancelled := newTestReservation(t)
	require.NoError(t, cancelled.Cancel("changed plans", testNow, nil))

	for name, r := range map[string]*Reservation{"confirmed": confirmed, "cancelled": cancelled} {
		t.Run(name, func(t *testing.T) {
			before := r.Version()
			err := r.Confirm(testNow, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTransition))
			assert.Contains(t, err.Error(), r.Status)
			// No event may be emitted on a rejected transition.
			assert.Equal(t, before, r.Version())
			assert.Len(t, r.UncommittedEvents(), before)
		})
	}
}

func TestCancel(t *testing.T) {
	t.Run("from pending", func(t *testing.T) {
		r := newTestReservation(t)
		require.NoError(t, r.Cancel("Guest request", testNow, nil))
		assert.Equal(t, StatusCancelled, r.Status)
	})
	t.Run("from confirmed", func(t *testing.T) {
		r := newTestReservation(t)
		require.NoError(t, r.Confirm(testNow, nil))
		require.NoError(t, r.Cancel("Guest request", testNow, nil))
		assert.Equal(t, StatusCancelled, r.Status)
	})
	t.Run("already cancelled", func(t *testing.T) {
		r := newTestReservation(t)
		require.NoError(t, r.Cancel("first", testNow, nil))
		before := r.Version()
		err := r.Cancel("second", testNow, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidTransition))
		assert.Equal(t, before, r.Version())
	})
}

func TestFromEventsReplayIsDeterministic(t *testing.T) {
	events := []event.DomainEvent{
		event.NewReservationCreated("res-1", "hotel-1", "John Doe", testCheckIn, testCheckOut, testNow, nil),
		event.NewReservationConfirmed("res-1", testNow.Add(time.Hour), nil),
		event.NewReservationCancelled("res-1", "Guest request", testNow.Add(2*time.Hour), nil),
	}

	first, err := FromEvents(events)
	require.NoError(t, err)
	second, err := FromEvents(events)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, StatusCancelled, first.Status)
	assert.Equal(t, 3, first.Version())
	assert.Equal(t, 3, first.LoadedVersion())
	assert.Empty(t, first.UncommittedEvents())
}

func TestFromEventsEmptyStream(t *testing.T) {
	_, err := FromEvents(nil)
	assert.Error(t, err)
}

func TestMarkCommitted(t *testing.T) {
	r := newTestReservation(t)
	require.NoError(t, r.Confirm(testNow, nil))

	r.MarkCommitted()
	assert.Empty(t, r.UncommittedEvents())
	assert.Equal(t, 2, r.Version())
	assert.Equal(t, 2, r.LoadedVersion())
}
