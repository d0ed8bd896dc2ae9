package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/hotel-room-reservation/internal/model"
)

// InventoryRepo is the ledger: it owns the per-room, per-night counters in
// inventory_days and exposes the only legal mutators for them.  Every
// mutation is a conditional UPDATE whose WHERE clause re-states the ledger
// invariant, so the row lock taken by the statement is what serializes
// concurrent reservations — there is no read-then-write window.
//
// All ...Tx methods require the caller's transaction; the ledger never
// opens its own.  The orchestrator, sweeper and converter share one
// transaction per atomic unit across ledger and hold/booking writes.
type InventoryRepo struct {
	db *sql.DB
}

// NewInventoryRepo returns an InventoryRepo bound to the provided database.
func NewInventoryRepo(db *sql.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// dateOnly is the column format for DATE values sent to MySQL.
const dateOnly = "2006-01-02"

// dateStr formats a timestamp as a DATE literal in UTC.
func dateStr(t time.Time) string { return t.UTC().Format(dateOnly) }

// nightsBetween returns the number of nights in [checkIn, checkOut).
// Both values are date-only; a non-positive range yields zero.
func nightsBetween(checkIn, checkOut time.Time) int {
	n := int(checkOut.Sub(checkIn) / (24 * time.Hour))
	if n < 0 {
		return 0
	}
	return n
}

// placeholders returns a comma-separated list of n "?" markers for use in
// IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(",?", n)[1:]
}

// CheckAvailability reports whether every requested (room, night) pair can
// satisfy its quantity while the row is open.  This form runs outside any
// transaction and is advisory only: it lets createHold fail fast with a
// 409 before opening a transaction, but the authoritative check is the
// conditional UPDATE in BatchIncrementHeldTx.
func (r *InventoryRepo) CheckAvailability(ctx context.Context, lines []model.RoomRequest, checkIn, checkOut time.Time) (bool, error) {
	return checkAvailability(ctx, r.db, lines, checkIn, checkOut)
}

// CheckAvailabilityTx is CheckAvailability inside the caller's transaction.
func (r *InventoryRepo) CheckAvailabilityTx(ctx context.Context, tx *sql.Tx, lines []model.RoomRequest, checkIn, checkOut time.Time) (bool, error) {
	return checkAvailability(ctx, tx, lines, checkIn, checkOut)
}

func checkAvailability(ctx context.Context, q querier, lines []model.RoomRequest, checkIn, checkOut time.Time) (bool, error) {
	nights := nightsBetween(checkIn, checkOut)
	if nights == 0 || len(lines) == 0 {
		return false, nil
	}
	const query = `SELECT COUNT(*) FROM inventory_days
	               WHERE room_id = ? AND date >= ? AND date < ?
	                 AND status = 'open'
	                 AND total_rooms - booked_rooms - held_rooms >= ?`
	for _, l := range lines {
		var n int
		if err := q.QueryRowContext(ctx, query, l.RoomID, dateStr(checkIn), dateStr(checkOut), l.Quantity).Scan(&n); err != nil {
			return false, err
		}
		// Missing rows count as unavailable nights.
		if n != nights {
			return false, nil
		}
	}
	return true, nil
}

// BatchIncrementHeldTx reserves the requested quantities by incrementing
// held_rooms for every night of every line.  The UPDATE only touches rows
// that stay within capacity, so an affected-row count short of the night
// count means at least one row could not satisfy the request; the method
// then returns ErrInsufficientAvailability and the caller rolls the
// transaction back, which also undoes the increments already applied for
// earlier lines.  All-or-nothing across the full room × night set.
func (r *InventoryRepo) BatchIncrementHeldTx(ctx context.Context, tx *sql.Tx, lines []model.RoomRequest, checkIn, checkOut time.Time) error {
	nights := nightsBetween(checkIn, checkOut)
	if nights == 0 || len(lines) == 0 {
		return ErrInsufficientAvailability
	}
	const query = `UPDATE inventory_days
	               SET held_rooms = held_rooms + ?
	               WHERE room_id = ? AND date >= ? AND date < ?
	                 AND status = 'open'
	                 AND booked_rooms + held_rooms + ? <= total_rooms`
	for _, l := range lines {
		res, err := tx.ExecContext(ctx, query, l.Quantity, l.RoomID, dateStr(checkIn), dateStr(checkOut), l.Quantity)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected != int64(nights) {
			return ErrInsufficientAvailability
		}
	}
	return nil
}

// BatchDecrementHeldTx gives reserved quantities back on release or
// expiry.  It clamps at zero instead of failing for already-zero rows, so
// a double release is a no-op rather than an error.
func (r *InventoryRepo) BatchDecrementHeldTx(ctx context.Context, tx *sql.Tx, lines []model.RoomRequest, checkIn, checkOut time.Time) error {
	const query = `UPDATE inventory_days
	               SET held_rooms = GREATEST(CAST(held_rooms AS SIGNED) - ?, 0)
	               WHERE room_id = ? AND date >= ? AND date < ?`
	for _, l := range lines {
		if _, err := tx.ExecContext(ctx, query, l.Quantity, l.RoomID, dateStr(checkIn), dateStr(checkOut)); err != nil {
			return err
		}
	}
	return nil
}

// TransferHeldToBookedTx moves quantities from held_rooms to booked_rooms
// when a hold converts into a booking.  Both counters change in a single
// UPDATE so no statement ever observes the rooms as free in between.
// MySQL applies SET assignments left to right, so the status expression
// sees the already-incremented booked_rooms and flips the row to sold_out
// when the night fills up.
func (r *InventoryRepo) TransferHeldToBookedTx(ctx context.Context, tx *sql.Tx, lines []model.RoomRequest, checkIn, checkOut time.Time) error {
	nights := nightsBetween(checkIn, checkOut)
	const query = `UPDATE inventory_days
	               SET held_rooms = GREATEST(CAST(held_rooms AS SIGNED) - ?, 0),
	                   booked_rooms = booked_rooms + ?,
	                   status = IF(status = 'open' AND booked_rooms >= total_rooms, 'sold_out', status)
	               WHERE room_id = ? AND date >= ? AND date < ?`
	for _, l := range lines {
		res, err := tx.ExecContext(ctx, query, l.Quantity, l.Quantity, l.RoomID, dateStr(checkIn), dateStr(checkOut))
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		// An active hold always has its ledger rows; anything else means
		// the store is inconsistent and the conversion must not commit.
		if affected != int64(nights) {
			return ErrConflict
		}
	}
	return nil
}

// BatchDecrementBookedTx releases confirmed rooms when a booking is
// cancelled.  Clamps at zero and reopens nights that were only sold out
// by the cancelled rooms.
func (r *InventoryRepo) BatchDecrementBookedTx(ctx context.Context, tx *sql.Tx, lines []model.RoomRequest, checkIn, checkOut time.Time) error {
	const query = `UPDATE inventory_days
	               SET booked_rooms = GREATEST(CAST(booked_rooms AS SIGNED) - ?, 0),
	                   status = IF(status = 'sold_out' AND booked_rooms + held_rooms < total_rooms, 'open', status)
	               WHERE room_id = ? AND date >= ? AND date < ?`
	for _, l := range lines {
		if _, err := tx.ExecContext(ctx, query, l.Quantity, l.RoomID, dateStr(checkIn), dateStr(checkOut)); err != nil {
			return err
		}
	}
	return nil
}

// NightPrice is one night's price for a room type.
type NightPrice struct {
	Date          time.Time
	PricePerNight uint32
}

// PricesForRangeTx returns the per-night prices for the given rooms over
// [checkIn, checkOut), keyed by room id.  Holds are priced from this data
// at creation time; a missing night means the room is not sellable for
// the requested range and the caller rejects the request.
func (r *InventoryRepo) PricesForRangeTx(ctx context.Context, tx *sql.Tx, roomIDs []uint64, checkIn, checkOut time.Time) (map[uint64][]NightPrice, error) {
	return pricesForRange(ctx, tx, roomIDs, checkIn, checkOut)
}

func pricesForRange(ctx context.Context, q querier, roomIDs []uint64, checkIn, checkOut time.Time) (map[uint64][]NightPrice, error) {
	out := make(map[uint64][]NightPrice, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}
	query := `SELECT room_id, date, price_per_night FROM inventory_days
	          WHERE room_id IN (` + placeholders(len(roomIDs)) + `) AND date >= ? AND date < ?
	          ORDER BY room_id, date`
	args := make([]interface{}, 0, len(roomIDs)+2)
	for _, id := range roomIDs {
		args = append(args, id)
	}
	args = append(args, dateStr(checkIn), dateStr(checkOut))
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var roomID uint64
		var p NightPrice
		if err := rows.Scan(&roomID, &p.Date, &p.PricePerNight); err != nil {
			return nil, err
		}
		out[roomID] = append(out[roomID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DaysForRange returns the full inventory rows for the given rooms over
// [checkIn, checkOut).  Read-only view used by the public availability
// endpoints; it never feeds a reservation decision.
func (r *InventoryRepo) DaysForRange(ctx context.Context, roomIDs []uint64, checkIn, checkOut time.Time) ([]model.InventoryDay, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}
	query := `SELECT id, room_id, date, total_rooms, booked_rooms, held_rooms, price_per_night, status
	          FROM inventory_days
	          WHERE room_id IN (` + placeholders(len(roomIDs)) + `) AND date >= ? AND date < ?
	          ORDER BY room_id, date`
	args := make([]interface{}, 0, len(roomIDs)+2)
	for _, id := range roomIDs {
		args = append(args, id)
	}
	args = append(args, dateStr(checkIn), dateStr(checkOut))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.InventoryDay
	for rows.Next() {
		var d model.InventoryDay
		if err := rows.Scan(&d.ID, &d.RoomID, &d.Date, &d.TotalRooms, &d.BookedRooms, &d.HeldRooms, &d.PricePerNight, &d.Status); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertRangeTx seeds or reprices the inventory rows of one room for every
// night in [start, end).  Counters of existing rows are preserved; only
// capacity, price and status are overwritten.  The capacity check runs
// first inside the same transaction: shrinking total_rooms below the
// reserved count would break the ledger invariant, so such an upsert is
// rejected with ErrConflict before any row changes.
func (r *InventoryRepo) UpsertRangeTx(ctx context.Context, tx *sql.Tx, roomID uint64, start, end time.Time, totalRooms, pricePerNight uint32, status string) error {
	nights := nightsBetween(start, end)
	if nights == 0 {
		return ErrInvalidDateRange
	}
	const guard = `SELECT COUNT(*) FROM inventory_days
	               WHERE room_id = ? AND date >= ? AND date < ?
	                 AND booked_rooms + held_rooms > ?`
	var over int
	if err := tx.QueryRowContext(ctx, guard, roomID, dateStr(start), dateStr(end), totalRooms).Scan(&over); err != nil {
		return err
	}
	if over > 0 {
		return ErrConflict
	}
	query := `INSERT INTO inventory_days (room_id, date, total_rooms, booked_rooms, held_rooms, price_per_night, status) VALUES `
	args := make([]interface{}, 0, nights*5)
	for i := 0; i < nights; i++ {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, 0, 0, ?, ?)"
		args = append(args, roomID, dateStr(start.AddDate(0, 0, i)), totalRooms, pricePerNight, status)
	}
	query += ` ON DUPLICATE KEY UPDATE
	           total_rooms = VALUES(total_rooms),
	           price_per_night = VALUES(price_per_night),
	           status = VALUES(status)`
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
