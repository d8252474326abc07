// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/handler"
)

// RegisterRoutes wires the health check and the reservation API onto the
// provided Echo instance.  limit is applied to the command endpoints only;
// queries are cheap reads against the projection and stay unthrottled.
func RegisterRoutes(e *echo.Echo, h *handler.ReservationHandler, limit echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	g := e.Group("/v1")
	g.POST("/reservations", h.Create, limit)
	g.POST("/reservations/:id/confirm", h.Confirm, limit)
	g.POST("/reservations/:id/cancel", h.Cancel, limit)
	g.GET("/reservations/:id", h.Get)
	g.GET("/reservations", h.List)
}
