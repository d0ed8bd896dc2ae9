// Package handler exposes HTTP handlers for both authenticated and public endpoints.
// This file defines handlers for the public browsing API. These routes allow
// unauthenticated users to browse hotels, room types and nightly availability
// without requiring authentication. Sensitive fields (owner IDs, held/booked
// counters) are filtered from responses.

package handler

import (
	"net/http"

	"github.com/iliyamo/hotel-room-reservation/internal/model"
	"github.com/iliyamo/hotel-room-reservation/internal/repository"
	"github.com/labstack/echo/v4"
)

// PublicHandler aggregates repositories needed for unauthenticated browsing.
// It produces sanitized responses suitable for public consumption.
type PublicHandler struct {
	HotelRepo     *repository.HotelRepo     // provides access to hotel data
	RoomRepo      *repository.RoomRepo      // provides access to room type data
	InventoryRepo *repository.InventoryRepo // provides access to per-night inventory
}

// PublicHotel represents a hotel exposed via the public API. It contains
// only safe fields.
type PublicHotel struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name"`
	City    string `json:"city"`
	Address string `json:"address,omitempty"`
}

// PublicRoom represents a room type exposed via the public API.
type PublicRoom struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	MaxGuests   uint32 `json:"max_guests"`
	Description string `json:"description,omitempty"`
}

// PublicNight is one night of availability for a room type. Available is
// the derived free count; the raw held and booked counters stay private.
type PublicNight struct {
	Date          string `json:"date"`
	Available     uint32 `json:"available"`
	PricePerNight uint32 `json:"price_per_night"`
	Status        string `json:"status"`
}

// GetPublicHotels returns a list of all hotels accessible to unauthenticated users.
// Response JSON contains an "items" array of PublicHotel.
func (h *PublicHandler) GetPublicHotels(c echo.Context) error {
	ctx := c.Request().Context()
	hotels, err := h.HotelRepo.ListAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]PublicHotel, 0, len(hotels))
	for _, ht := range hotels {
		out = append(out, PublicHotel{ID: ht.ID, Name: ht.Name, City: ht.City, Address: ht.Address})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetPublicRoomsByHotel lists room types of a hotel for unauthenticated users.
// It validates the hotel exists, then returns only non-sensitive fields.
func (h *PublicHandler) GetPublicRoomsByHotel(c echo.Context) error {
	ctx := c.Request().Context()
	hotelID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	// ensure hotel exists
	if _, err := h.HotelRepo.GetByID(ctx, hotelID); err != nil {
		if err == repository.ErrHotelNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hotel not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	rooms, err := h.RoomRepo.ListByHotel(ctx, hotelID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]PublicRoom, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, PublicRoom{ID: rm.ID, Name: rm.Name, MaxGuests: rm.MaxGuests, Description: rm.Description})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetPublicAvailability handles GET /v1/hotels/:id/availability. It returns
// per-night availability for every room type of the hotel over the
// requested range. Query parameters check_in and check_out are required
// YYYY-MM-DD dates; check_out is exclusive. Nights without an inventory
// record are simply absent from the response.
func (h *PublicHandler) GetPublicAvailability(c echo.Context) error {
	ctx := c.Request().Context()
	hotelID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	checkIn, ok := parseDate(c.QueryParam("check_in"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_in must be YYYY-MM-DD"})
	}
	checkOut, ok := parseDate(c.QueryParam("check_out"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_out must be YYYY-MM-DD"})
	}
	if !checkOut.After(checkIn) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_out must be after check_in"})
	}
	// ensure hotel exists
	if _, err := h.HotelRepo.GetByID(ctx, hotelID); err != nil {
		if err == repository.ErrHotelNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hotel not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	rooms, err := h.RoomRepo.ListByHotel(ctx, hotelID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if len(rooms) == 0 {
		return c.JSON(http.StatusOK, echo.Map{"items": []echo.Map{}})
	}
	roomIDs := make([]uint64, 0, len(rooms))
	for _, rm := range rooms {
		roomIDs = append(roomIDs, rm.ID)
	}
	days, err := h.InventoryRepo.DaysForRange(ctx, roomIDs, checkIn, checkOut)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	// group nights per room, preserving room listing order
	perRoom := make(map[uint64][]PublicNight, len(rooms))
	for _, d := range days {
		night := PublicNight{
			Date:          d.Date.Format(dateLayout),
			PricePerNight: d.PricePerNight,
			Status:        d.Status,
		}
		if d.Status == model.DayStatusOpen {
			night.Available = d.Available()
		}
		perRoom[d.RoomID] = append(perRoom[d.RoomID], night)
	}
	items := make([]echo.Map, 0, len(rooms))
	for _, rm := range rooms {
		nights := perRoom[rm.ID]
		if nights == nil {
			nights = []PublicNight{}
		}
		items = append(items, echo.Map{
			"room_id": rm.ID,
			"name":    rm.Name,
			"nights":  nights,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
