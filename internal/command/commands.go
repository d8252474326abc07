// Package command orchestrates the write side: load the aggregate, apply
// the business mutation, persist, then publish.
package command

import (
	"time"

	"github.com/iliyamo/hotel-reservation/internal/event"
)

// CreateReservation asks for a new reservation stream.  ReservationID is
// optional; a UUID is generated when it is empty.
type CreateReservation struct {
	ReservationID string
	HotelID       string
	GuestName     string
	CheckIn       time.Time
	CheckOut      time.Time
	Metadata      event.Metadata
}

// ConfirmReservation asks to move a pending reservation to confirmed.
type ConfirmReservation struct {
	ReservationID string
	Metadata      event.Metadata
}

// CancelReservation asks to cancel a pending or confirmed reservation.
type CancelReservation struct {
	ReservationID string
	Reason        string
	Metadata      event.Metadata
}
