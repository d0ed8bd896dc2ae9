package router

import (
	"github.com/iliyamo/hotel-room-reservation/internal/handler"
	"github.com/iliyamo/hotel-room-reservation/internal/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterCustomer registers customer-scoped endpoints under /v1.  All
// routes require a valid JWT and the CUSTOMER role.  Customers can place
// holds on rooms, inspect and release them, and manage their bookings.
// Bookings themselves are created only by the payment consumer.
func RegisterCustomer(e *echo.Echo, hh *handler.HoldHandler, bh *handler.BookingHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("CUSTOMER"),
	)

	// ---- Holds ----
	g.POST("/holds", hh.CreateHold)
	g.GET("/holds", hh.ListHolds)
	g.GET("/holds/:id", hh.GetHold)
	g.DELETE("/holds/:id", hh.ReleaseHold)

	// ---- Bookings ----
	g.GET("/bookings", bh.ListBookings)
	g.GET("/bookings/:id", bh.GetBooking)
	g.DELETE("/bookings/:id", bh.CancelBooking)
}
