// Package handler exposes the command intake and query endpoints.  Commands
// are forwarded to the command layer; queries never touch the event store
// and read only from the projection.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/aggregate"
	"github.com/iliyamo/hotel-reservation/internal/command"
	"github.com/iliyamo/hotel-reservation/internal/event"
	"github.com/iliyamo/hotel-reservation/internal/eventstore"
	"github.com/iliyamo/hotel-reservation/internal/projection"
)

// ReservationHandler serves the reservation API.  Error mapping: aggregate
// validation failures are 400, unknown ids are 404, rejected transitions
// and version conflicts are 409.  A ConcurrencyError is surfaced with both
// versions so the client can decide whether to reload and retry.
type ReservationHandler struct {
	Commands  *command.ReservationHandler
	ReadModel projection.ReadModel
}

// NewReservationHandler constructs the handler.  Both dependencies must be
// non-nil.
func NewReservationHandler(commands *command.ReservationHandler, rm projection.ReadModel) *ReservationHandler {
	if commands == nil || rm == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Commands: commands, ReadModel: rm}
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	var body struct {
		ReservationID string `json:"reservation_id"`
		HotelID       string `json:"hotel_id"`
		GuestName     string `json:"guest_name"`
		CheckIn       string `json:"check_in"`
		CheckOut      string `json:"check_out"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	checkIn, err := parseDate(body.CheckIn)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid check_in date"})
	}
	checkOut, err := parseDate(body.CheckOut)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid check_out date"})
	}

	id, err := h.Commands.HandleCreate(c.Request().Context(), command.CreateReservation{
		ReservationID: body.ReservationID,
		HotelID:       body.HotelID,
		GuestName:     body.GuestName,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		Metadata:      requestMetadata(c),
	})
	if err != nil {
		return writeCommandError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id, "status": aggregate.StatusPending})
}

// Confirm handles POST /v1/reservations/:id/confirm.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	err := h.Commands.HandleConfirm(c.Request().Context(), command.ConfirmReservation{
		ReservationID: c.Param("id"),
		Metadata:      requestMetadata(c),
	})
	if err != nil {
		return writeCommandError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "status": aggregate.StatusConfirmed})
}

// Cancel handles POST /v1/reservations/:id/cancel.  The body may carry a
// free-form reason.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body) // an empty body is fine; the reason is optional
	err := h.Commands.HandleCancel(c.Request().Context(), command.CancelReservation{
		ReservationID: c.Param("id"),
		Reason:        body.Reason,
		Metadata:      requestMetadata(c),
	})
	if err != nil {
		return writeCommandError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "status": aggregate.StatusCancelled})
}

// Get handles GET /v1/reservations/:id, served from the projection.  The
// read model lags writes by design; a just-created reservation may 404 for
// a moment.
func (h *ReservationHandler) Get(c echo.Context) error {
	row, err := h.ReadModel.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if row == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	return c.JSON(http.StatusOK, row)
}

// List handles GET /v1/reservations with optional hotel_id and status
// query filters.
func (h *ReservationHandler) List(c echo.Context) error {
	rows, err := h.ReadModel.List(c.Request().Context(), c.QueryParam("hotel_id"), c.QueryParam("status"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if rows == nil {
		rows = []projection.ReservationRow{}
	}
	return c.JSON(http.StatusOK, rows)
}

// writeCommandError translates the command layer's error taxonomy into
// HTTP responses.
func writeCommandError(c echo.Context, err error) error {
	var conflict *eventstore.ConcurrencyError
	switch {
	case errors.Is(err, aggregate.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, command.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, command.ErrAlreadyExists),
		errors.Is(err, aggregate.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":            "version conflict, reload and retry",
			"expected_version": conflict.Expected,
			"actual_version":   conflict.Actual,
		})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// requestMetadata captures correlation context for the emitted events.
func requestMetadata(c echo.Context) event.Metadata {
	meta := event.Metadata{"source": "http"}
	if rid := c.Request().Header.Get(echo.HeaderXRequestID); rid != "" {
		meta["correlation_id"] = rid
	}
	return meta
}

// parseDate accepts RFC3339 timestamps and bare dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	return t.UTC(), err
}
