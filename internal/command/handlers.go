package command

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/hotel-reservation/internal/aggregate"
	"github.com/iliyamo/hotel-reservation/internal/eventbus"
	"github.com/iliyamo/hotel-reservation/internal/eventstore"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// ErrNotFound is returned when a confirm or cancel names an unknown
// reservation.  Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("reservation not found")

// ErrAlreadyExists is returned when a create supplies an id whose stream
// already has events.
var ErrAlreadyExists = errors.New("reservation already exists")

// ReservationHandler executes the reservation use cases.  Concurrency
// conflicts are not retried here: the *eventstore.ConcurrencyError
// propagates to the caller, which decides whether to reload and resubmit.
type ReservationHandler struct {
	repo   *repository.ReservationRepository
	outbox eventstore.Outbox
	bus    eventbus.EventBus
	now    func() time.Time
}

// NewReservationHandler wires the write side together.  now defaults to
// time.Now and exists as a parameter so tests can pin the clock.
func NewReservationHandler(repo *repository.ReservationRepository, outbox eventstore.Outbox, bus eventbus.EventBus, now func() time.Time) *ReservationHandler {
	if repo == nil || outbox == nil || bus == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationHandler{repo: repo, outbox: outbox, bus: bus, now: now}
}

// HandleCreate validates and persists a new reservation, returning its id.
// Validation failures reject the command before any event exists, so a
// rejected create leaves the stream empty.
func (h *ReservationHandler) HandleCreate(ctx context.Context, cmd CreateReservation) (string, error) {
	id := cmd.ReservationID
	if id == "" {
		id = uuid.NewString()
	} else {
		existing, err := h.repo.FindByID(ctx, id)
		if err != nil {
			return "", err
		}
		if existing != nil {
			return "", ErrAlreadyExists
		}
	}

	res, err := aggregate.NewReservation(id, cmd.HotelID, cmd.GuestName, cmd.CheckIn, cmd.CheckOut, h.now(), cmd.Metadata)
	if err != nil {
		return "", err
	}
	if err := h.persist(ctx, res); err != nil {
		return "", err
	}
	return id, nil
}

// HandleConfirm confirms a pending reservation.
func (h *ReservationHandler) HandleConfirm(ctx context.Context, cmd ConfirmReservation) error {
	res, err := h.repo.FindByID(ctx, cmd.ReservationID)
	if err != nil {
		return err
	}
	if res == nil {
		return ErrNotFound
	}
	if err := res.Confirm(h.now(), cmd.Metadata); err != nil {
		return err
	}
	return h.persist(ctx, res)
}

// HandleCancel cancels a pending or confirmed reservation.
func (h *ReservationHandler) HandleCancel(ctx context.Context, cmd CancelReservation) error {
	res, err := h.repo.FindByID(ctx, cmd.ReservationID)
	if err != nil {
		return err
	}
	if res == nil {
		return ErrNotFound
	}
	if err := res.Cancel(cmd.Reason, h.now(), cmd.Metadata); err != nil {
		return err
	}
	return h.persist(ctx, res)
}

// persist saves the buffered events, publishes them in order, and marks the
// batch in the outbox.  A publish failure after a successful save is not an
// error for the caller: the events are durable and the outbox relay will
// deliver them once the broker is back.
func (h *ReservationHandler) persist(ctx context.Context, res *aggregate.Reservation) error {
	pending := res.UncommittedEvents()
	if err := h.repo.Save(ctx, res); err != nil {
		return err
	}
	if err := h.bus.PublishMany(ctx, pending); err != nil {
		log.Printf("command: publish for %s failed, leaving to outbox relay: %v", res.ID(), err)
		return nil
	}
	versions := make([]int, len(pending))
	for i, ev := range pending {
		versions[i] = ev.EventVersion()
	}
	if err := h.outbox.MarkPublished(ctx, res.ID(), versions); err != nil {
		// The relay will republish; consumers are idempotent.
		log.Printf("command: mark published for %s failed: %v", res.ID(), err)
	}
	return nil
}
