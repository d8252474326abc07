// Package projection maintains the denormalized reservation read model by
// consuming published events.  The table is derived and disposable: it can
// always be rebuilt from the event store.
package projection

import (
	"context"
	"time"
)

// ReservationRow is one denormalized read-model row, keyed by aggregate id.
type ReservationRow struct {
	ID        string    `json:"id"`
	HotelID   string    `json:"hotel_id"`
	GuestName string    `json:"guest_name"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReadModel is the storage contract for the projection.  Every write is
// idempotent, and status and detail writes are independent so event types
// arriving out of order still converge.
type ReadModel interface {
	// UpsertDetails records the booking details from a Created event.  It
	// fills detail fields without touching the status of an existing row,
	// so a redelivered or late Created can never undo a status change.
	UpsertDetails(ctx context.Context, row ReservationRow) error

	// SetStatus records a status change, creating a stub row when the
	// Created event has not been projected yet.  Applying the same change
	// twice yields the same row.
	SetStatus(ctx context.Context, id, status string, at time.Time) error

	// GetByID returns the row, or (nil, nil) when it does not exist.
	GetByID(ctx context.Context, id string) (*ReservationRow, error)

	// List returns rows filtered by hotel and/or status; empty filters
	// match everything.
	List(ctx context.Context, hotelID, status string) ([]ReservationRow, error)

	// Truncate drops every row.  Used by the rebuild path.
	Truncate(ctx context.Context) error
}
