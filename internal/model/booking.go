package model

import "time"

// Booking statuses.
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// Booking is a confirmed stay created exactly once from a paid hold.  It
// carries a copy of the hold's commercial terms so the booking survives
// independently of later inventory or pricing changes.
//
// Fields:
//
//	ID         – primary key identifier.
//	Code       – opaque business key (UUID) exposed to clients.
//	HoldID     – the hold this booking was converted from.
//	UserID     – buyer who owns the booking.
//	HotelID    – hotel of the stay.
//	CheckIn    – first night (date only).
//	CheckOut   – morning of departure, exclusive.
//	Guests     – number of guests.
//	Quantity   – total rooms across all line items.
//	TotalPrice – amount charged, in minor units.
//	Currency   – ISO currency code.
//	Status     – confirmed or cancelled.
//	PaymentRef – charge identifier from the payment provider.
//	CreatedAt  – when the conversion committed.
type Booking struct {
	ID         uint64    // bookings.id
	Code       string    // bookings.code
	HoldID     uint64    // bookings.hold_id
	UserID     uint64    // bookings.user_id
	HotelID    uint64    // bookings.hotel_id
	CheckIn    time.Time // bookings.check_in_date
	CheckOut   time.Time // bookings.check_out_date
	Guests     uint32    // bookings.number_of_guests
	Quantity   uint32    // bookings.quantity
	TotalPrice uint64    // bookings.total_price
	Currency   string    // bookings.currency
	Status     string    // bookings.status
	PaymentRef string    // bookings.payment_ref
	CreatedAt  time.Time // bookings.created_at
}

// BookingRoom is one line item of a booking, mirroring the hold line it
// was created from.
type BookingRoom struct {
	ID        uint64 // booking_rooms.id
	BookingID uint64 // booking_rooms.booking_id
	RoomID    uint64 // booking_rooms.room_id
	Quantity  uint32 // booking_rooms.quantity
}
