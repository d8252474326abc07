package aggregate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/event"
)

// Reservation status values.  Cancelled is terminal.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// ErrValidation wraps every rule violation raised before an event is
// produced.  Handlers translate it into an HTTP 400 response.
var ErrValidation = errors.New("invalid reservation")

// ErrInvalidTransition wraps every rejected state transition, naming the
// current status.  Handlers translate it into an HTTP 409 response.
var ErrInvalidTransition = errors.New("invalid status transition")

// Reservation is the booking aggregate.  Its state is derived entirely by
// folding its event stream; nothing here touches storage or the broker.
type Reservation struct {
	Base

	HotelID   string
	GuestName string
	CheckIn   time.Time
	CheckOut  time.Time
	Status    string
}

var _ Root = (*Reservation)(nil)

// NewReservation validates the creation rules and, if they hold, returns a
// fresh aggregate with a single buffered ReservationCreated event.  The
// caller supplies now so the past-date rule is deterministic under test.
// No event exists, and therefore nothing can ever be persisted, when any
// rule fails.
func NewReservation(id, hotelID, guestName string, checkIn, checkOut, now time.Time, meta event.Metadata) (*Reservation, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: reservation id is required", ErrValidation)
	}
	if hotelID == "" {
		return nil, fmt.Errorf("%w: hotel id is required", ErrValidation)
	}
	if len(strings.TrimSpace(guestName)) < 2 {
		return nil, fmt.Errorf("%w: guest name must be at least 2 characters", ErrValidation)
	}
	if !checkIn.Before(checkOut) {
		return nil, fmt.Errorf("%w: check-in must be before check-out", ErrValidation)
	}
	// Compare against the start of the current day so a booking for today
	// is still accepted.
	today := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)
	if checkIn.Before(today) {
		return nil, fmt.Errorf("%w: check-in date is in the past", ErrValidation)
	}

	r := &Reservation{}
	return r, r.raise(event.NewReservationCreated(id, hotelID, guestName, checkIn, checkOut, now, meta))
}

// FromEvents reconstitutes a reservation by folding its stream in order.
// The fold is pure, so the same input always yields the same state.
func FromEvents(events []event.DomainEvent) (*Reservation, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: empty event stream", ErrValidation)
	}
	r := &Reservation{}
	for _, ev := range events {
		if err := r.ApplyEvent(ev); err != nil {
			return nil, err
		}
	}
	r.MarkLoaded()
	return r, nil
}

// Confirm moves a pending reservation to confirmed.  Any other current
// status rejects the command without producing an event.
func (r *Reservation) Confirm(now time.Time, meta event.Metadata) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: cannot confirm a reservation in status %q", ErrInvalidTransition, r.Status)
	}
	return r.raise(event.NewReservationConfirmed(r.ID(), now, meta))
}

// Cancel moves a pending or confirmed reservation to cancelled.  Cancelling
// twice is rejected; cancelled is terminal.
func (r *Reservation) Cancel(reason string, now time.Time, meta event.Metadata) error {
	if r.Status == StatusCancelled {
		return fmt.Errorf("%w: reservation is already cancelled", ErrInvalidTransition)
	}
	return r.raise(event.NewReservationCancelled(r.ID(), reason, now, meta))
}

// ApplyEvent folds one event into the state.  The switch is exhaustive over
// the reservation event set; anything else is a replay bug.
func (r *Reservation) ApplyEvent(ev event.DomainEvent) error {
	switch e := ev.(type) {
	case *event.ReservationCreated:
		r.HotelID = e.HotelID
		r.GuestName = e.GuestName
		r.CheckIn = e.CheckIn
		r.CheckOut = e.CheckOut
		r.Status = StatusPending
	case *event.ReservationConfirmed:
		r.Status = StatusConfirmed
	case *event.ReservationCancelled:
		r.Status = StatusCancelled
	default:
		return fmt.Errorf("reservation: unexpected event type %q", ev.EventType())
	}
	r.Advance(ev)
	return nil
}

// raise applies a freshly produced event and buffers it for the next save,
// so later commands in the same unit of work see the updated status.
func (r *Reservation) raise(ev event.DomainEvent) error {
	if err := r.ApplyEvent(ev); err != nil {
		return err
	}
	r.Append(ev)
	return nil
}
