package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-booking/internal/handler"
	"github.com/iliyamo/seat-booking/internal/middleware"
)

// Deps bundles what the route table needs.  Limiter and Ready may be nil.
type Deps struct {
	Bookings  *handler.BookingHandler
	JWTSecret string
	// Limiter throttles the write routes (lock, release, confirm, cancel).
	Limiter echo.MiddlewareFunc
	Ready   echo.HandlerFunc
}

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
}

// RegisterBooking registers the seat booking API under /v1.  Every route
// requires a valid JWT; the admin group additionally requires the ADMIN
// role.
func RegisterBooking(e *echo.Echo, d Deps) {
	g := e.Group("/v1", middleware.JWTAuth(d.JWTSecret))

	writes := []echo.MiddlewareFunc{}
	if d.Limiter != nil {
		writes = append(writes, d.Limiter)
	}

	h := d.Bookings
	g.GET("/screenings/:id/seats", h.SeatMap)

	g.POST("/lock", h.Lock, writes...)
	g.POST("/release", h.Release, writes...)
	g.POST("/confirm", h.Confirm, writes...)

	g.GET("/bookings", h.ListBookings)
	g.GET("/bookings/:id", h.GetBooking)
	g.DELETE("/bookings/:id", h.Cancel, writes...)
	g.PATCH("/bookings/:id/cancel", h.Cancel, writes...)

	admin := g.Group("/admin", middleware.RequireRole("ADMIN"))
	admin.PATCH("/bookings/:id/cancel", h.AdminCancel, writes...)
}

// Register wires the full route table.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d.Ready)
	RegisterBooking(e, d)
}
