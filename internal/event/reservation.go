package event

import "time"

// Event type discriminators.  These values appear in the event_type column,
// in broker routing keys (event.<Type>) and in queue names (events.<Type>),
// so they must never change for already-committed events.
const (
	TypeReservationCreated   = "ReservationCreated"
	TypeReservationConfirmed = "ReservationConfirmed"
	TypeReservationCancelled = "ReservationCancelled"
)

// ReservationCreated is the first event of every reservation stream.  It
// carries the full initial state of the booking.
type ReservationCreated struct {
	Base
	HotelID   string    `json:"hotel_id"`
	GuestName string    `json:"guest_name"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
}

func (*ReservationCreated) EventType() string { return TypeReservationCreated }

// ReservationConfirmed records the transition from pending to confirmed.
type ReservationConfirmed struct {
	Base
}

func (*ReservationConfirmed) EventType() string { return TypeReservationConfirmed }

// ReservationCancelled records the terminal transition to cancelled.
// Cancellation is a new fact, not a rollback: the earlier events remain.
type ReservationCancelled struct {
	Base
	Reason string `json:"reason"`
}

func (*ReservationCancelled) EventType() string { return TypeReservationCancelled }

// NewReservationCreated builds the creation event.  The version is left at
// zero and assigned by the event store on append.
func NewReservationCreated(id, hotelID, guestName string, checkIn, checkOut, at time.Time, meta Metadata) *ReservationCreated {
	return &ReservationCreated{
		Base:      Base{ID: id, At: at.UTC(), Meta: meta},
		HotelID:   hotelID,
		GuestName: guestName,
		CheckIn:   checkIn.UTC(),
		CheckOut:  checkOut.UTC(),
	}
}

// NewReservationConfirmed builds the confirmation event.
func NewReservationConfirmed(id string, at time.Time, meta Metadata) *ReservationConfirmed {
	return &ReservationConfirmed{Base: Base{ID: id, At: at.UTC(), Meta: meta}}
}

// NewReservationCancelled builds the cancellation event with the caller's
// stated reason.
func NewReservationCancelled(id, reason string, at time.Time, meta Metadata) *ReservationCancelled {
	return &ReservationCancelled{Base: Base{ID: id, At: at.UTC(), Meta: meta}, Reason: reason}
}
