package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/hotel-room-reservation/internal/model"
)

// BookingRepo persists confirmed bookings and their line items.  Bookings
// are only ever created by the payment converter, inside the same
// transaction that flips the hold to converted and moves the ledger
// counters from held to booked.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, code, hold_id, user_id, hotel_id, check_in_date, check_out_date,
	number_of_guests, quantity, total_price, currency, status, payment_ref, created_at`

func scanBooking(row interface{ Scan(...interface{}) error }) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.Code, &b.HoldID, &b.UserID, &b.HotelID, &b.CheckIn, &b.CheckOut,
		&b.Guests, &b.Quantity, &b.TotalPrice, &b.Currency, &b.Status, &b.PaymentRef, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateTx inserts the booking and its line items within the provided
// transaction, populating the booking's ID on success.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking, rooms []model.BookingRoom) error {
	const qInsert = `INSERT INTO bookings
		(code, hold_id, user_id, hotel_id, check_in_date, check_out_date, number_of_guests,
		 quantity, total_price, currency, status, payment_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, qInsert,
		b.Code, b.HoldID, b.UserID, b.HotelID, dateStr(b.CheckIn), dateStr(b.CheckOut), b.Guests,
		b.Quantity, b.TotalPrice, b.Currency, b.Status, b.PaymentRef,
		b.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)

	query := `INSERT INTO booking_rooms (booking_id, room_id, quantity) VALUES `
	args := make([]interface{}, 0, len(rooms)*3)
	for i, br := range rooms {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, b.ID, br.RoomID, br.Quantity)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// ExistsForChargeTx reports whether a booking created from the given hold
// already references the given payment charge.  The converter uses this
// to recognize a replayed webhook for an already-converted hold.
func (r *BookingRepo) ExistsForChargeTx(ctx context.Context, tx *sql.Tx, holdID uint64, paymentRef string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM bookings WHERE hold_id = ? AND payment_ref = ? LIMIT 1`,
		holdID, paymentRef).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByIDForUser fetches a booking by id and enforces ownership: a missing
// row yields sql.ErrNoRows, a row owned by someone else ErrForbidden.
func (r *BookingRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	return b, nil
}

// ListByUser returns all bookings of a user, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]*model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RoomsByBookingTx returns the line items of a booking within the caller's
// transaction; cancellation uses them to decrement the booked counters.
func (r *BookingRepo) RoomsByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.BookingRoom, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, booking_id, room_id, quantity FROM booking_rooms WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BookingRoom
	for rows.Next() {
		var br model.BookingRoom
		if err := rows.Scan(&br.ID, &br.BookingID, &br.RoomID, &br.Quantity); err != nil {
			return nil, err
		}
		out = append(out, br)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelTx flips a confirmed booking to cancelled with the same optimistic
// status guard the holds use.  Returns false when the booking was not in
// the confirmed state.
func (r *BookingRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = 'cancelled' WHERE id = ? AND status = 'confirmed'`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
