package router // router defines how HTTP routes are registered for the API

import (
	"github.com/iliyamo/hotel-room-reservation/internal/handler"    // owner handlers
	"github.com/iliyamo/hotel-room-reservation/internal/middleware" // JWT + role middlewares
	"github.com/labstack/echo/v4"
)

// RegisterOwner registers OWNER-scoped endpoints under /v1.
// All routes require a valid JWT and OWNER role.
func RegisterOwner(e *echo.Echo, o *handler.OwnerHandler, jwtSecret string) {
	// Attach middlewares at group construction time for clarity.
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("OWNER"),
	)

	// ---- Hotels ----
	g.POST("/hotels", o.CreateHotel)
	// NOTE: Listing all hotels is handled by the public browse API at
	// GET /v1/hotels; the owner-scoped list lives under /my-hotels to
	// avoid a route conflict.
	g.GET("/my-hotels", o.ListHotels)

	// ---- Rooms ----
	g.POST("/hotels/:id/rooms", o.CreateRoom)

	// ---- Inventory calendar ----
	// Upserts total rooms, nightly price and status over a date range.
	g.PUT("/rooms/:id/inventory", o.UpsertInventory)
}
