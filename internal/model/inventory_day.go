package model

import "time"

// Inventory day statuses.  A day only sells while it is open; the other
// states block new holds without touching the counters.
const (
	DayStatusOpen        = "open"
	DayStatusClosed      = "closed"
	DayStatusSoldOut     = "sold_out"
	DayStatusMaintenance = "maintenance"
)

// InventoryDay is the authoritative availability record for one room type
// on one calendar night.  The counters are only ever changed through the
// ledger's atomic increment/decrement statements; no code path may read a
// row, modify it in memory and write it back.
//
// Invariant (holds at all times, for every row):
//
//	0 <= booked_rooms, 0 <= held_rooms, booked_rooms + held_rooms <= total_rooms
//
// Fields:
//
//	RoomID        – room type this night belongs to.
//	Date          – the calendar night (check-in night, date only).
//	TotalRooms    – sellable capacity for this night.
//	BookedRooms   – rooms confirmed by completed payments.
//	HeldRooms     – rooms tentatively reserved by active holds.
//	PricePerNight – price in minor units (cents) for one room, this night.
//	Status        – open, closed, sold_out or maintenance.
type InventoryDay struct {
	ID            uint64    // inventory_days.id
	RoomID        uint64    // inventory_days.room_id
	Date          time.Time // inventory_days.date
	TotalRooms    uint32    // inventory_days.total_rooms
	BookedRooms   uint32    // inventory_days.booked_rooms
	HeldRooms     uint32    // inventory_days.held_rooms
	PricePerNight uint32    // inventory_days.price_per_night
	Status        string    // inventory_days.status
}

// Available returns how many rooms can still be reserved for this night.
func (d InventoryDay) Available() uint32 {
	used := d.BookedRooms + d.HeldRooms
	if used >= d.TotalRooms {
		return 0
	}
	return d.TotalRooms - used
}

// RoomRequest is one line of a reservation request: a quantity of rooms of
// a single room type.  A hold or booking covers the same quantity for every
// night in its [check_in, check_out) range.
type RoomRequest struct {
	RoomID   uint64 `json:"room_id"`
	Quantity uint32 `json:"quantity"`
}
