package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/hotel-room-reservation/internal/model"
)

// Room represents a bookable room type within a hotel (e.g. "Double
// Deluxe"), not a physical room: the per-night sellable count lives in
// inventory_days.total_rooms.
type Room struct {
	ID          uint64 // rooms.id
	HotelID     uint64 // rooms.hotel_id
	Name        string // rooms.name
	MaxGuests   uint32 // rooms.max_guests per room
	Description string // rooms.description
	CreatedAt   string // rooms.created_at
	UpdatedAt   string // rooms.updated_at
}

// ErrRoomNotFound is returned when a room cannot be found.
var ErrRoomNotFound = errors.New("room not found")

// RoomRepo encapsulates database access for room types.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo constructs a RoomRepo with the provided DB handle.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// Create inserts a new room type and populates its ID and timestamps.
func (r *RoomRepo) Create(ctx context.Context, rm *Room) error {
	const qInsert = `INSERT INTO rooms (hotel_id, name, max_guests, description) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, qInsert, rm.HotelID, rm.Name, rm.MaxGuests, rm.Description)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rm.ID = uint64(id)

	const qSelect = `SELECT created_at, updated_at FROM rooms WHERE id = ?`
	return r.db.QueryRowContext(ctx, qSelect, rm.ID).Scan(&rm.CreatedAt, &rm.UpdatedAt)
}

// GetByID fetches a room type by id. Returns ErrRoomNotFound when no row
// exists.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*Room, error) {
	const q = `SELECT id, hotel_id, name, max_guests, description, created_at, updated_at FROM rooms WHERE id = ?`
	var rm Room
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&rm.ID, &rm.HotelID, &rm.Name, &rm.MaxGuests, &rm.Description, &rm.CreatedAt, &rm.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

// ListByHotel returns all room types of a hotel ordered by id.
func (r *RoomRepo) ListByHotel(ctx context.Context, hotelID uint64) ([]*Room, error) {
	const q = `SELECT id, hotel_id, name, max_guests, description, created_at, updated_at
	           FROM rooms WHERE hotel_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Room
	for rows.Next() {
		rm := new(Room)
		if err := rows.Scan(&rm.ID, &rm.HotelID, &rm.Name, &rm.MaxGuests, &rm.Description, &rm.CreatedAt, &rm.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AllBelongToHotel reports whether every requested room line references a
// room type of the given hotel.  The create-hold handler rejects requests
// that mix hotels before the engine touches the ledger.
func (r *RoomRepo) AllBelongToHotel(ctx context.Context, hotelID uint64, lines []model.RoomRequest) (bool, error) {
	if len(lines) == 0 {
		return false, nil
	}
	ids := make([]interface{}, 0, len(lines)+1)
	for _, l := range lines {
		ids = append(ids, l.RoomID)
	}
	ids = append(ids, hotelID)
	query := `SELECT COUNT(DISTINCT id) FROM rooms WHERE id IN (` + placeholders(len(lines)) + `) AND hotel_id = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, query, ids...).Scan(&n); err != nil {
		return false, err
	}
	// Duplicate room ids in the request are the caller's bug, not a
	// membership failure; count distinct requested ids for the compare.
	distinct := make(map[uint64]struct{}, len(lines))
	for _, l := range lines {
		distinct[l.RoomID] = struct{}{}
	}
	return n == len(distinct), nil
}
