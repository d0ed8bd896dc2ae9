// This file defines the Hotel record and its repository. The hotel catalog
// is plumbing around the reservation engine: the engine only needs hotels
// as an ownership scope for rooms and holds, so the repository stays
// deliberately small.
package repository

import (
	"context"
	"database/sql"
	"errors"
)

// Hotel represents a property owned by a single owner account. Rooms and
// their inventory hang off a hotel; the ID field is the auto-incremented
// primary key.
type Hotel struct {
	ID        uint64 // hotels.id
	OwnerID   uint64 // hotels.owner_id, references users.id
	Name      string // hotels.name
	City      string // hotels.city
	Address   string // hotels.address
	CreatedAt string // hotels.created_at
	UpdatedAt string // hotels.updated_at
}

// ErrHotelNotFound is returned when a hotel cannot be found.
var ErrHotelNotFound = errors.New("hotel not found")

// HotelRepo encapsulates database access for hotels.
type HotelRepo struct {
	db *sql.DB
}

// NewHotelRepo constructs a HotelRepo with the provided DB handle.
func NewHotelRepo(db *sql.DB) *HotelRepo { return &HotelRepo{db: db} }

// Create inserts a new hotel and populates its ID and timestamps.
func (r *HotelRepo) Create(ctx context.Context, h *Hotel) error {
	const qInsert = `INSERT INTO hotels (owner_id, name, city, address) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, qInsert, h.OwnerID, h.Name, h.City, h.Address)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)

	const qSelect = `SELECT created_at, updated_at FROM hotels WHERE id = ?`
	return r.db.QueryRowContext(ctx, qSelect, h.ID).Scan(&h.CreatedAt, &h.UpdatedAt)
}

// GetByID fetches a hotel regardless of owner. Returns ErrHotelNotFound
// when no row exists.
func (r *HotelRepo) GetByID(ctx context.Context, id uint64) (*Hotel, error) {
	const q = `SELECT id, owner_id, name, city, address, created_at, updated_at FROM hotels WHERE id = ?`
	var h Hotel
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&h.ID, &h.OwnerID, &h.Name, &h.City, &h.Address, &h.CreatedAt, &h.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHotelNotFound
		}
		return nil, err
	}
	return &h, nil
}

// GetByIDAndOwner fetches a hotel only if it belongs to the given owner;
// otherwise ErrHotelNotFound.
func (r *HotelRepo) GetByIDAndOwner(ctx context.Context, id, ownerID uint64) (*Hotel, error) {
	const q = `SELECT id, owner_id, name, city, address, created_at, updated_at FROM hotels WHERE id = ? AND owner_id = ?`
	var h Hotel
	if err := r.db.QueryRowContext(ctx, q, id, ownerID).Scan(&h.ID, &h.OwnerID, &h.Name, &h.City, &h.Address, &h.CreatedAt, &h.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHotelNotFound
		}
		return nil, err
	}
	return &h, nil
}

// ListAll returns every hotel ordered by id; the public browse endpoint
// serves this behind the response cache.
func (r *HotelRepo) ListAll(ctx context.Context) ([]*Hotel, error) {
	return r.list(ctx, `SELECT id, owner_id, name, city, address, created_at, updated_at FROM hotels ORDER BY id`)
}

// ListByOwner returns all hotels of one owner ordered by id.
func (r *HotelRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]*Hotel, error) {
	return r.list(ctx, `SELECT id, owner_id, name, city, address, created_at, updated_at FROM hotels WHERE owner_id = ? ORDER BY id`, ownerID)
}

func (r *HotelRepo) list(ctx context.Context, query string, args ...interface{}) ([]*Hotel, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Hotel
	for rows.Next() {
		h := new(Hotel)
		if err := rows.Scan(&h.ID, &h.OwnerID, &h.Name, &h.City, &h.Address, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
