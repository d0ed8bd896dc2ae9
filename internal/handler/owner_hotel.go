package handler // handler package contains owner-specific hotel handlers

import (
	"database/sql" // sql is imported for the transaction closure signature
	"errors"       // errors provides errors.Is for sentinel comparisons
	"net/http"     // http provides status code constants
	"strings"      // strings offers trimming utilities

	"github.com/iliyamo/hotel-room-reservation/internal/model"      // model holds domain status constants
	"github.com/iliyamo/hotel-room-reservation/internal/repository" // repository holds database models
	"github.com/labstack/echo/v4"                                   // echo is the web framework used for handlers
)

// OwnerHandler bundles repositories for owners to manage their catalog:
// hotels, room types and the per-night inventory calendar.
type OwnerHandler struct {
	HotelRepo     *repository.HotelRepo     // HotelRepo provides hotel persistence
	RoomRepo      *repository.RoomRepo      // RoomRepo provides room type persistence
	InventoryRepo *repository.InventoryRepo // InventoryRepo provides inventory calendar persistence
	Store         *repository.TxStore       // Store opens transactions for calendar writes
}

// NewOwnerHandler constructs a new OwnerHandler and panics if any dependency is nil
func NewOwnerHandler(hotelRepo *repository.HotelRepo, roomRepo *repository.RoomRepo, inventoryRepo *repository.InventoryRepo, store *repository.TxStore) *OwnerHandler {
	if hotelRepo == nil || roomRepo == nil || inventoryRepo == nil || store == nil { // check for nil dependencies
		panic("nil dependency passed to NewOwnerHandler") // panic when a dependency is missing
	}
	return &OwnerHandler{
		HotelRepo:     hotelRepo,     // assign hotel repository
		RoomRepo:      roomRepo,      // assign room repository
		InventoryRepo: inventoryRepo, // assign inventory repository
		Store:         store,         // assign transaction store
	}
}

// CreateHotel handles POST /v1/hotels and creates a new hotel for the authenticated owner
func (h *OwnerHandler) CreateHotel(c echo.Context) error {
	ownerID, err := getUserID(c) // extract the owner ID from context
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	var body struct { // anonymous struct to bind incoming JSON
		Name    string `json:"name"`
		City    string `json:"city"`
		Address string `json:"address"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	name := strings.TrimSpace(body.Name) // trim spaces around the hotel name
	city := strings.TrimSpace(body.City)
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}
	if city == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "city is required"})
	}
	hotel := &repository.Hotel{
		OwnerID: ownerID, // assign the owner ID to the hotel
		Name:    name,
		City:    city,
		Address: strings.TrimSpace(body.Address),
	}
	if err := h.HotelRepo.Create(c.Request().Context(), hotel); err != nil {
		if strings.Contains(err.Error(), "1062") { // check for duplicate key error
			return c.JSON(http.StatusConflict, map[string]string{"error": "hotel name already exists"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not create hotel"})
	}
	return c.JSON(http.StatusCreated, hotel) // return 201 and the created hotel on success
}

// ListHotels handles GET /v1/my-hotels and returns all hotels owned by the authenticated user
func (h *OwnerHandler) ListHotels(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	items, err := h.HotelRepo.ListByOwner(c.Request().Context(), ownerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items}) // return the list wrapped in a JSON object
}

// CreateRoom handles POST /v1/hotels/:id/rooms and adds a room type to one
// of the owner's hotels
func (h *OwnerHandler) CreateRoom(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	hotelID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	// verify the hotel exists and belongs to the owner before touching rooms
	if _, err := h.HotelRepo.GetByIDAndOwner(c.Request().Context(), hotelID, ownerID); err != nil {
		if err == repository.ErrHotelNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "hotel not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
	}
	var body struct {
		Name        string `json:"name"`
		MaxGuests   uint32 `json:"max_guests"`
		Description string `json:"description"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}
	if body.MaxGuests == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "max_guests must be positive"})
	}
	room := &repository.Room{
		HotelID:     hotelID,
		Name:        name,
		MaxGuests:   body.MaxGuests,
		Description: strings.TrimSpace(body.Description),
	}
	if err := h.RoomRepo.Create(c.Request().Context(), room); err != nil {
		if strings.Contains(err.Error(), "1062") { // duplicate room name within the hotel
			return c.JSON(http.StatusConflict, map[string]string{"error": "room name already exists in this hotel"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not create room"})
	}
	return c.JSON(http.StatusCreated, room)
}

// UpsertInventory handles PUT /v1/rooms/:id/inventory.  It creates or
// updates the inventory calendar of one room type over a date range:
// total room count, nightly price and day status.  The range end is
// exclusive.  Shrinking total_rooms below what is already booked or held
// on any night in the range is rejected with 409 and nothing is written.
func (h *OwnerHandler) UpsertInventory(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	var body struct {
		StartDate     string `json:"start_date"`
		EndDate       string `json:"end_date"`
		TotalRooms    uint32 `json:"total_rooms"`
		PricePerNight uint32 `json:"price_per_night"`
		Status        string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	start, okStart := parseDate(body.StartDate)
	end, okEnd := parseDate(body.EndDate)
	if !okStart || !okEnd || !end.After(start) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "start_date and end_date must be YYYY-MM-DD with end after start"})
	}
	status := body.Status
	if status == "" {
		status = model.DayStatusOpen // default new nights to bookable
	}
	switch status {
	case model.DayStatusOpen, model.DayStatusClosed, model.DayStatusMaintenance:
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "status must be open, closed or maintenance"})
	}
	ctx := c.Request().Context()
	// walk room -> hotel -> owner to enforce ownership
	room, err := h.RoomRepo.GetByID(ctx, roomID)
	if err != nil {
		if err == repository.ErrRoomNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
	}
	if _, err := h.HotelRepo.GetByIDAndOwner(ctx, room.HotelID, ownerID); err != nil {
		if err == repository.ErrHotelNotFound {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
	}
	err = h.Store.WithTx(ctx, func(tx *sql.Tx) error {
		return h.InventoryRepo.UpsertRangeTx(ctx, tx, roomID, start, end, body.TotalRooms, body.PricePerNight, status)
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "total_rooms is below existing booked and held rooms"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not update inventory"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"room_id":    roomID,
		"start_date": start.Format(dateLayout),
		"end_date":   end.Format(dateLayout),
	})
}
