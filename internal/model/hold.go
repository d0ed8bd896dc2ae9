package model

import "time"

// Hold statuses.  A hold starts active and ends in exactly one of the
// terminal states; terminal holds are immutable and never deleted.
const (
	HoldStatusActive    = "active"    // reservation is live, counters are held
	HoldStatusReleased  = "released"  // buyer cancelled before paying
	HoldStatusExpired   = "expired"   // TTL elapsed, sweeper freed the counters
	HoldStatusConverted = "converted" // payment succeeded, hold became a booking
)

// Hold is a buyer's tentative reservation: a time-boxed claim on inventory
// that either converts into a booking when payment completes or gives the
// rooms back when it is released or expires.
//
// Fields:
//
//	ID         – primary key identifier.
//	Code       – opaque business key (UUID) carried by payment events.
//	UserID     – buyer who owns the hold.
//	HotelID    – hotel the held rooms belong to.
//	CheckIn    – first night of the stay (date only).
//	CheckOut   – morning of departure; strictly after CheckIn, exclusive.
//	Guests     – number of guests across all rooms.
//	Quantity   – total rooms across all line items.
//	TotalPrice – sum of per-night prices × quantities, in minor units.
//	Currency   – ISO currency code of TotalPrice.
//	Status     – active, released, expired or converted.
//	ExpiresAt  – creation time plus the hold TTL.
//	CreatedAt  – when the hold was created.
//	ReleasedAt – when the hold left the active state (nil while active,
//	             and for converted holds).
type Hold struct {
	ID         uint64     // holds.id
	Code       string     // holds.code
	UserID     uint64     // holds.user_id
	HotelID    uint64     // holds.hotel_id
	CheckIn    time.Time  // holds.check_in_date
	CheckOut   time.Time  // holds.check_out_date
	Guests     uint32     // holds.number_of_guests
	Quantity   uint32     // holds.quantity
	TotalPrice uint64     // holds.total_price
	Currency   string     // holds.currency
	Status     string     // holds.status
	ExpiresAt  time.Time  // holds.expires_at
	CreatedAt  time.Time  // holds.created_at
	ReleasedAt *time.Time // holds.released_at (nullable)
}

// Nights returns the number of room-nights covered per room, i.e. the
// length of the [CheckIn, CheckOut) range.
func (h Hold) Nights() int {
	return int(h.CheckOut.Sub(h.CheckIn) / (24 * time.Hour))
}
