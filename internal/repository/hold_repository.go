package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/hotel-room-reservation/internal/model"
)

// HoldRepo persists holds and their line items.  The hold header and its
// hold_rooms are created atomically inside the caller's transaction; a
// hold is never deleted, it only moves from active to one of its terminal
// states through MarkTerminalTx.
type HoldRepo struct {
	db *sql.DB
}

// NewHoldRepo returns a HoldRepo bound to the provided database.
func NewHoldRepo(db *sql.DB) *HoldRepo { return &HoldRepo{db: db} }

const holdColumns = `id, code, user_id, hotel_id, check_in_date, check_out_date,
	number_of_guests, quantity, total_price, currency, status, expires_at, created_at, released_at`

func scanHold(row interface{ Scan(...interface{}) error }) (*model.Hold, error) {
	var h model.Hold
	var releasedAt sql.NullTime
	err := row.Scan(&h.ID, &h.Code, &h.UserID, &h.HotelID, &h.CheckIn, &h.CheckOut,
		&h.Guests, &h.Quantity, &h.TotalPrice, &h.Currency, &h.Status, &h.ExpiresAt, &h.CreatedAt, &releasedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHoldNotFound
		}
		return nil, err
	}
	if releasedAt.Valid {
		t := releasedAt.Time
		h.ReleasedAt = &t
	}
	return &h, nil
}

// CreateTx inserts the hold header and all of its line items within the
// provided transaction.  On success the hold's ID is populated from the
// auto-generated key.  The caller commits or rolls back; a failed line
// insert therefore also undoes the header and the ledger increments that
// share the transaction.
func (r *HoldRepo) CreateTx(ctx context.Context, tx *sql.Tx, h *model.Hold, rooms []model.HoldRoom) error {
	const qInsert = `INSERT INTO holds
		(code, user_id, hotel_id, check_in_date, check_out_date, number_of_guests,
		 quantity, total_price, currency, status, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, qInsert,
		h.Code, h.UserID, h.HotelID, dateStr(h.CheckIn), dateStr(h.CheckOut), h.Guests,
		h.Quantity, h.TotalPrice, h.Currency, h.Status,
		h.ExpiresAt.UTC().Format("2006-01-02 15:04:05"), h.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)

	if len(rooms) == 0 {
		return ErrInvalidRooms
	}
	query := `INSERT INTO hold_rooms (hold_id, room_id, quantity) VALUES `
	args := make([]interface{}, 0, len(rooms)*3)
	for i, hr := range rooms {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, h.ID, hr.RoomID, hr.Quantity)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// GetByID fetches a hold by primary key.  Returns ErrHoldNotFound when no
// row exists.
func (r *HoldRepo) GetByID(ctx context.Context, id uint64) (*model.Hold, error) {
	return scanHold(r.db.QueryRowContext(ctx, `SELECT `+holdColumns+` FROM holds WHERE id = ?`, id))
}

// GetByIDTx is GetByID inside the caller's transaction, used to re-read a
// hold after losing an optimistic status update.
func (r *HoldRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Hold, error) {
	return scanHold(tx.QueryRowContext(ctx, `SELECT `+holdColumns+` FROM holds WHERE id = ?`, id))
}

// GetByCodeTx fetches a hold by its business code within the caller's
// transaction.  Payment events reference holds by code, never by primary
// key.
func (r *HoldRepo) GetByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*model.Hold, error) {
	return scanHold(tx.QueryRowContext(ctx, `SELECT `+holdColumns+` FROM holds WHERE code = ?`, code))
}

// ActiveByUser returns the user's active holds, newest first.  An empty
// slice is a valid result, not an error.
func (r *HoldRepo) ActiveByUser(ctx context.Context, userID uint64) ([]*model.Hold, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+holdColumns+` FROM holds WHERE user_id = ? AND status = 'active' ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Hold{}
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindExpiredActive returns ids of holds still active past their
// expires_at, oldest first, capped at limit.  The sweeper re-checks the
// status at update time, so stale ids in this snapshot are harmless.
func (r *HoldRepo) FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM holds WHERE status = 'active' AND expires_at < ? ORDER BY expires_at LIMIT ?`,
		now.UTC().Format("2006-01-02 15:04:05"), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// RoomsByHold returns the line items of a hold.
func (r *HoldRepo) RoomsByHold(ctx context.Context, holdID uint64) ([]model.HoldRoom, error) {
	return roomsByHold(ctx, r.db, holdID)
}

// RoomsByHoldTx is RoomsByHold inside the caller's transaction.
func (r *HoldRepo) RoomsByHoldTx(ctx context.Context, tx *sql.Tx, holdID uint64) ([]model.HoldRoom, error) {
	return roomsByHold(ctx, tx, holdID)
}

func roomsByHold(ctx context.Context, q querier, holdID uint64) ([]model.HoldRoom, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, hold_id, room_id, quantity FROM hold_rooms WHERE hold_id = ? ORDER BY id`, holdID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.HoldRoom
	for rows.Next() {
		var hr model.HoldRoom
		if err := rows.Scan(&hr.ID, &hr.HoldID, &hr.RoomID, &hr.Quantity); err != nil {
			return nil, err
		}
		out = append(out, hr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkTerminalTx transitions a hold out of the active state with an
// optimistic status guard: the UPDATE only matches while the hold is
// still active, and the affected-row count tells the caller whether it
// won the transition or lost it to a concurrent release, expiry or
// conversion.  Converted holds keep a NULL released_at.
func (r *HoldRepo) MarkTerminalTx(ctx context.Context, tx *sql.Tx, id uint64, to string, at time.Time) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if to == model.HoldStatusConverted {
		res, err = tx.ExecContext(ctx,
			`UPDATE holds SET status = ? WHERE id = ? AND status = 'active'`, to, id)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE holds SET status = ?, released_at = ? WHERE id = ? AND status = 'active'`,
			to, at.UTC().Format("2006-01-02 15:04:05"), id)
	}
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
