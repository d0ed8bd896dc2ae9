package handler

import (
	"database/sql" // for sentinel errors returned from repository
	"errors"       // for errors.Is comparisons
	"net/http"     // HTTP status codes
	"time"         // check-in comparisons and timestamp formatting

	"github.com/iliyamo/hotel-room-reservation/internal/model"      // domain models
	"github.com/iliyamo/hotel-room-reservation/internal/repository" // repository layer
	"github.com/labstack/echo/v4"                                   // Echo web framework
)

// BookingHandler serves a customer's confirmed bookings.  Bookings are
// created only by the payment consumer, never over HTTP, so this handler
// covers listing, inspection and cancellation.  Cancellation returns the
// booked rooms to the inventory pool inside one transaction.
type BookingHandler struct {
	BookingRepo   *repository.BookingRepo   // access to bookings and booking_rooms
	InventoryRepo *repository.InventoryRepo // booked-counter decrements on cancel
	Store         *repository.TxStore       // transaction boundary for cancellation
}

// NewBookingHandler constructs a new BookingHandler with the provided
// dependencies.  All dependencies must be non-nil.
func NewBookingHandler(bookingRepo *repository.BookingRepo, inventoryRepo *repository.InventoryRepo, store *repository.TxStore) *BookingHandler {
	if bookingRepo == nil || inventoryRepo == nil || store == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{BookingRepo: bookingRepo, InventoryRepo: inventoryRepo, Store: store}
}

// bookingJSON shapes a booking for API responses.
func bookingJSON(b *model.Booking) echo.Map {
	return echo.Map{
		"id":          b.ID,
		"code":        b.Code,
		"hotel_id":    b.HotelID,
		"check_in":    b.CheckIn.Format(dateLayout),
		"check_out":   b.CheckOut.Format(dateLayout),
		"guests":      b.Guests,
		"quantity":    b.Quantity,
		"total_price": b.TotalPrice,
		"currency":    b.Currency,
		"status":      b.Status,
		"created_at":  b.CreatedAt.Format(time.RFC3339),
	}
}

// ListBookings handles GET /v1/bookings.  It returns all bookings of the
// current user, newest first.  When no bookings exist it returns an
// empty array.
func (h *BookingHandler) ListBookings(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookings, err := h.BookingRepo.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	items := make([]echo.Map, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, bookingJSON(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetBooking handles GET /v1/bookings/:id.  It returns a single booking
// for the authenticated user.  When the booking does not exist it
// responds with 404; when it belongs to another user it responds with
// 403.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.BookingRepo.GetByIDForUser(c.Request().Context(), bookingID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		if errors.Is(err, repository.ErrForbidden) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch booking"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": bookingJSON(b)})
}

// CancelBooking handles DELETE /v1/bookings/:id.  It cancels a confirmed
// booking belonging to the current user if check-in has not yet arrived,
// returning the booked rooms to the pool.  It returns 204 on success,
// 404 when the booking does not exist, 403 for another user's booking,
// and 409 when the stay has started or the booking is already cancelled.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx := c.Request().Context()
	b, err := h.BookingRepo.GetByIDForUser(ctx, bookingID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		if errors.Is(err, repository.ErrForbidden) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load booking"})
	}
	if b.Status != model.BookingStatusConfirmed {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not confirmed"})
	}
	if !b.CheckIn.After(time.Now().UTC()) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "stay has already started"})
	}
	err = h.Store.WithTx(ctx, func(tx *sql.Tx) error {
		cancelled, err := h.BookingRepo.CancelTx(ctx, tx, b.ID)
		if err != nil {
			return err
		}
		if !cancelled {
			// lost a race with a concurrent cancel
			return repository.ErrConflict
		}
		rooms, err := h.BookingRepo.RoomsByBookingTx(ctx, tx, b.ID)
		if err != nil {
			return err
		}
		lines := make([]model.RoomRequest, 0, len(rooms))
		for _, r := range rooms {
			lines = append(lines, model.RoomRequest{RoomID: r.RoomID, Quantity: r.Quantity})
		}
		return h.InventoryRepo.BatchDecrementBookedTx(ctx, tx, lines, b.CheckIn, b.CheckOut)
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not confirmed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel booking"})
	}
	return c.NoContent(http.StatusNoContent)
}
