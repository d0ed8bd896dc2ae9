package handler

import (
	"errors"   // for errors.Is comparisons
	"net/http" // HTTP status codes
	"time"     // formatting timestamps

	"github.com/iliyamo/hotel-room-reservation/internal/model"      // domain models
	"github.com/iliyamo/hotel-room-reservation/internal/repository" // repository layer
	"github.com/iliyamo/hotel-room-reservation/internal/service"    // hold orchestrator
	"github.com/labstack/echo/v4"                                   // Echo web framework
)

// HoldHandler exposes the hold lifecycle to customers: placing a hold,
// inspecting it, listing active holds and releasing one.  All methods
// assume that JWT authentication and role validation has already been
// performed by middleware.  The availability semantics live in the
// orchestrator; this layer only validates the request shape, checks that
// the referenced hotel and rooms exist, and maps errors to HTTP statuses.
type HoldHandler struct {
	Orchestrator *service.HoldOrchestrator // hold state machine
	HotelRepo    *repository.HotelRepo     // hotel existence checks
	RoomRepo     *repository.RoomRepo      // room-to-hotel ownership checks
}

// NewHoldHandler constructs a new HoldHandler with the provided
// dependencies.  All dependencies must be non-nil.
func NewHoldHandler(orch *service.HoldOrchestrator, hotelRepo *repository.HotelRepo, roomRepo *repository.RoomRepo) *HoldHandler {
	if orch == nil || hotelRepo == nil || roomRepo == nil {
		panic("nil dependency passed to NewHoldHandler")
	}
	return &HoldHandler{Orchestrator: orch, HotelRepo: hotelRepo, RoomRepo: roomRepo}
}

// holdJSON shapes a hold for API responses.
func holdJSON(h *model.Hold, rooms []model.HoldRoom, isExpired bool) echo.Map {
	lines := make([]echo.Map, 0, len(rooms))
	for _, r := range rooms {
		lines = append(lines, echo.Map{"room_id": r.RoomID, "quantity": r.Quantity})
	}
	m := echo.Map{
		"id":          h.ID,
		"code":        h.Code,
		"hotel_id":    h.HotelID,
		"check_in":    h.CheckIn.Format(dateLayout),
		"check_out":   h.CheckOut.Format(dateLayout),
		"guests":      h.Guests,
		"quantity":    h.Quantity,
		"total_price": h.TotalPrice,
		"currency":    h.Currency,
		"status":      h.Status,
		"expires_at":  h.ExpiresAt.Format(time.RFC3339),
		"created_at":  h.CreatedAt.Format(time.RFC3339),
	}
	if rooms != nil {
		m["rooms"] = lines
	}
	if isExpired {
		m["is_expired"] = true
	}
	return m
}

// CreateHold handles POST /v1/holds.  It places a temporary hold on one
// or more room types of a hotel for a date range.  The request body must
// contain the hotel id, check-in and check-out dates (YYYY-MM-DD) and a
// non-empty "rooms" array of {room_id, quantity} lines.  On success it
// returns 201 Created with the hold, its code and expiry.  When any
// night cannot cover the requested quantity it returns 409 without
// having taken any inventory.
func (h *HoldHandler) CreateHold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		HotelID  uint64              `json:"hotel_id"`
		CheckIn  string              `json:"check_in"`
		CheckOut string              `json:"check_out"`
		Guests   uint32              `json:"guests"`
		Rooms    []model.RoomRequest `json:"rooms"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.HotelID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hotel_id is required"})
	}
	checkIn, ok := parseDate(body.CheckIn)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_in must be YYYY-MM-DD"})
	}
	checkOut, ok := parseDate(body.CheckOut)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_out must be YYYY-MM-DD"})
	}
	if len(body.Rooms) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rooms is required"})
	}
	// merge duplicate room lines so the ledger sees one line per room type
	merged := make([]model.RoomRequest, 0, len(body.Rooms))
	index := make(map[uint64]int)
	for _, l := range body.Rooms {
		if l.RoomID == 0 || l.Quantity == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "rooms entries need room_id and quantity"})
		}
		if i, ok := index[l.RoomID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.RoomID] = len(merged)
		merged = append(merged, l)
	}
	ctx := c.Request().Context()
	// ensure hotel exists
	if _, err := h.HotelRepo.GetByID(ctx, body.HotelID); err != nil {
		if errors.Is(err, repository.ErrHotelNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hotel not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	// ensure every requested room belongs to that hotel
	ok, err = h.RoomRepo.AllBelongToHotel(ctx, body.HotelID, merged)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rooms do not belong to the hotel"})
	}
	view, err := h.Orchestrator.CreateHold(ctx, service.CreateHoldInput{
		UserID:   userID,
		HotelID:  body.HotelID,
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Guests:   body.Guests,
		Rooms:    merged,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInvalidRooms):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room lines"})
		case errors.Is(err, repository.ErrInvalidDateRange):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_out must be after check_in"})
		case errors.Is(err, repository.ErrInsufficientAvailability):
			return c.JSON(http.StatusConflict, echo.Map{"error": "not enough rooms available for the requested dates"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create hold"})
	}
	return c.JSON(http.StatusCreated, holdJSON(view.Hold, view.Rooms, view.IsExpired))
}

// GetHold handles GET /v1/holds/:id.  It returns the hold with its room
// lines for the authenticated owner of the hold.  A hold past its expiry
// that the sweeper has not yet processed is reported with is_expired set;
// reading never changes state.
func (h *HoldHandler) GetHold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	holdID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hold id"})
	}
	view, err := h.Orchestrator.GetHold(c.Request().Context(), holdID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrHoldNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hold not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch hold"})
	}
	return c.JSON(http.StatusOK, holdJSON(view.Hold, view.Rooms, view.IsExpired))
}

// ListHolds handles GET /v1/holds.  It returns the current user's active
// holds, newest first.  When no holds exist it returns an empty array.
func (h *HoldHandler) ListHolds(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	holds, err := h.Orchestrator.GetActiveHoldsByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load holds"})
	}
	items := make([]echo.Map, 0, len(holds))
	for _, hd := range holds {
		items = append(items, holdJSON(hd, nil, false))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ReleaseHold handles DELETE /v1/holds/:id.  It releases the caller's
// active hold and returns the held rooms to the pool.  Releasing a hold
// that is already released is a no-op success; a hold in any other
// terminal state responds with 400.
func (h *HoldHandler) ReleaseHold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	holdID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hold id"})
	}
	hold, err := h.Orchestrator.ReleaseHold(c.Request().Context(), holdID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrHoldNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hold not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, repository.ErrHoldNotActive):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "hold is not active"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release hold"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":     hold.ID,
		"status": hold.Status,
	})
}
