package model

// HoldRoom is one line item of a hold: how many rooms of a single room
// type the hold reserves.  Line items are created atomically with their
// parent hold and are never mutated afterwards; releasing a hold flips
// the parent's status and decrements the ledger instead of touching the
// lines.
type HoldRoom struct {
	ID       uint64 // hold_rooms.id
	HoldID   uint64 // hold_rooms.hold_id
	RoomID   uint64 // hold_rooms.room_id
	Quantity uint32 // hold_rooms.quantity
}
