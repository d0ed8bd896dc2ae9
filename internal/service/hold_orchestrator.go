// Package service contains the reservation engine: the hold orchestrator,
// the expiration sweeper and the payment-to-booking converter. The engine
// talks to storage through small interfaces so the state machine can be
// tested against in-memory fakes; the production implementations live in
// the repository package and run over one *sql.Tx per atomic unit.
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/hotel-room-reservation/internal/model"
	"github.com/iliyamo/hotel-room-reservation/internal/repository"
)

// TxRunner scopes a function to a single database transaction. Every
// mutation the engine performs — ledger counters, hold rows, booking rows,
// the payment event log — happens inside one WithTx call, so either all of
// it commits or none of it does.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Ledger is the inventory counter store. The ...Tx mutators are
// conditional updates: they enforce the invariant
// booked + held <= total themselves and fail the whole batch when any
// single (room, night) row cannot satisfy it.
type Ledger interface {
	CheckAvailability(ctx context.Context, lines []model.RoomRequest, checkIn, checkOut time.Time) (bool, error)
	BatchIncrementHeldTx(ctx context.Context, tx *sql.Tx, lines []model.RoomRequest, checkIn, checkOut time.Time) error
	BatchDecrementHeldTx(ctx context.Context, tx *sql.Tx, lines []model.RoomRequest, checkIn, checkOut time.Time) error
	TransferHeldToBookedTx(ctx context.Context, tx *sql.Tx, lines []model.RoomRequest, checkIn, checkOut time.Time) error
	PricesForRangeTx(ctx context.Context, tx *sql.Tx, roomIDs []uint64, checkIn, checkOut time.Time) (map[uint64][]repository.NightPrice, error)
}

// HoldStore persists holds and their line items.
type HoldStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, h *model.Hold, rooms []model.HoldRoom) error
	GetByID(ctx context.Context, id uint64) (*model.Hold, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Hold, error)
	GetByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*model.Hold, error)
	ActiveByUser(ctx context.Context, userID uint64) ([]*model.Hold, error)
	FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]uint64, error)
	RoomsByHold(ctx context.Context, holdID uint64) ([]model.HoldRoom, error)
	RoomsByHoldTx(ctx context.Context, tx *sql.Tx, holdID uint64) ([]model.HoldRoom, error)
	MarkTerminalTx(ctx context.Context, tx *sql.Tx, id uint64, to string, at time.Time) (bool, error)
}

// defaultHoldTTL is how long a hold keeps rooms reserved before the
// sweeper may expire it.
const defaultHoldTTL = 15 * time.Minute

// HoldOrchestrator drives the hold state machine: active on creation,
// then exactly one of released, expired or converted. It is the only
// component that creates holds; release and expiry run through it as
// well, so the ledger decrement and the status flip always share one
// transaction.
type HoldOrchestrator struct {
	store    TxRunner
	ledger   Ledger
	holds    HoldStore
	ttl      time.Duration
	currency string
	now      func() time.Time
}

// HoldOrchestratorOption customises a HoldOrchestrator.
type HoldOrchestratorOption func(*HoldOrchestrator)

// WithHoldTTL overrides the default 15-minute hold lifetime.
func WithHoldTTL(d time.Duration) HoldOrchestratorOption {
	return func(o *HoldOrchestrator) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithCurrency sets the currency code stamped on new holds.
func WithCurrency(code string) HoldOrchestratorOption {
	return func(o *HoldOrchestrator) {
		if code != "" {
			o.currency = code
		}
	}
}

// WithClock overrides the time source. Tests use it to move holds past
// their expiry without sleeping.
func WithClock(now func() time.Time) HoldOrchestratorOption {
	return func(o *HoldOrchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewHoldOrchestrator constructs the orchestrator. All dependencies must
// be non-nil.
func NewHoldOrchestrator(store TxRunner, ledger Ledger, holds HoldStore, opts ...HoldOrchestratorOption) *HoldOrchestrator {
	if store == nil || ledger == nil || holds == nil {
		panic("nil dependency passed to NewHoldOrchestrator")
	}
	o := &HoldOrchestrator{
		store:    store,
		ledger:   ledger,
		holds:    holds,
		ttl:      defaultHoldTTL,
		currency: "USD",
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateHoldInput carries everything needed to place a hold.
type CreateHoldInput struct {
	UserID   uint64
	HotelID  uint64
	CheckIn  time.Time
	CheckOut time.Time
	Guests   uint32
	Rooms    []model.RoomRequest
}

// HoldView is a hold together with its line items and the derived expiry
// flag. IsExpired is computed at read time and never transitions state:
// only the sweeper moves a hold to expired, so reads cannot race it.
type HoldView struct {
	Hold      *model.Hold
	Rooms     []model.HoldRoom
	IsExpired bool
}

// CreateHold validates the request, fails fast on the advisory
// availability check and then reserves the rooms inside one transaction:
// the conditional held-counter increment (the authoritative check), the
// price computation and the hold + line item insert commit together or
// not at all.
func (o *HoldOrchestrator) CreateHold(ctx context.Context, in CreateHoldInput) (*HoldView, error) {
	if len(in.Rooms) == 0 {
		return nil, repository.ErrInvalidRooms
	}
	var quantity uint32
	for _, l := range in.Rooms {
		if l.Quantity == 0 || l.RoomID == 0 {
			return nil, repository.ErrInvalidRooms
		}
		quantity += l.Quantity
	}
	if !in.CheckOut.After(in.CheckIn) {
		return nil, repository.ErrInvalidDateRange
	}

	// Advisory pre-check: lets the common "sold out" case return 409
	// without opening a transaction. The increment below re-validates.
	ok, err := o.ledger.CheckAvailability(ctx, in.Rooms, in.CheckIn, in.CheckOut)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repository.ErrInsufficientAvailability
	}

	now := o.now()
	nights := nightCount(in.CheckIn, in.CheckOut)
	h := &model.Hold{
		Code:      uuid.NewString(),
		UserID:    in.UserID,
		HotelID:   in.HotelID,
		CheckIn:   in.CheckIn,
		CheckOut:  in.CheckOut,
		Guests:    in.Guests,
		Quantity:  quantity,
		Currency:  o.currency,
		Status:    model.HoldStatusActive,
		ExpiresAt: now.Add(o.ttl),
		CreatedAt: now,
	}
	lines := make([]model.HoldRoom, 0, len(in.Rooms))
	for _, l := range in.Rooms {
		lines = append(lines, model.HoldRoom{RoomID: l.RoomID, Quantity: l.Quantity})
	}

	err = o.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := o.ledger.BatchIncrementHeldTx(ctx, tx, in.Rooms, in.CheckIn, in.CheckOut); err != nil {
			return err
		}
		roomIDs := make([]uint64, 0, len(in.Rooms))
		for _, l := range in.Rooms {
			roomIDs = append(roomIDs, l.RoomID)
		}
		prices, err := o.ledger.PricesForRangeTx(ctx, tx, roomIDs, in.CheckIn, in.CheckOut)
		if err != nil {
			return err
		}
		total, err := totalPrice(in.Rooms, prices, nights)
		if err != nil {
			return err
		}
		h.TotalPrice = total
		return o.holds.CreateTx(ctx, tx, h, lines)
	})
	if err != nil {
		return nil, err
	}
	rooms, err := o.holds.RoomsByHold(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	return &HoldView{Hold: h, Rooms: rooms}, nil
}

// totalPrice sums per-night prices times quantities across all lines.
// Every line must have a price row for every night; a gap means the room
// is not sellable for part of the range.
func totalPrice(lines []model.RoomRequest, prices map[uint64][]repository.NightPrice, nights int) (uint64, error) {
	var total uint64
	for _, l := range lines {
		nightly, ok := prices[l.RoomID]
		if !ok || len(nightly) != nights {
			return 0, repository.ErrInsufficientAvailability
		}
		for _, p := range nightly {
			total += uint64(p.PricePerNight) * uint64(l.Quantity)
		}
	}
	return total, nil
}

func nightCount(checkIn, checkOut time.Time) int {
	n := int(checkOut.Sub(checkIn) / (24 * time.Hour))
	if n < 0 {
		return 0
	}
	return n
}

// GetHold returns a hold with its line items after checking ownership.
func (o *HoldOrchestrator) GetHold(ctx context.Context, holdID, userID uint64) (*HoldView, error) {
	h, err := o.holds.GetByID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if h.UserID != userID {
		return nil, repository.ErrForbidden
	}
	rooms, err := o.holds.RoomsByHold(ctx, holdID)
	if err != nil {
		return nil, err
	}
	return &HoldView{
		Hold:      h,
		Rooms:     rooms,
		IsExpired: h.Status == model.HoldStatusActive && o.now().After(h.ExpiresAt),
	}, nil
}

// GetActiveHoldsByUser returns the user's active holds, newest first.
func (o *HoldOrchestrator) GetActiveHoldsByUser(ctx context.Context, userID uint64) ([]*model.Hold, error) {
	return o.holds.ActiveByUser(ctx, userID)
}

// ReleaseHold cancels a buyer's own hold. Releasing a hold that is
// already released is an idempotent no-op; any other terminal state is
// ErrHoldNotActive.
func (o *HoldOrchestrator) ReleaseHold(ctx context.Context, holdID, userID uint64) (*model.Hold, error) {
	return o.release(ctx, holdID, userID, model.HoldStatusReleased, true)
}

// ExpireHold is the sweeper's system-initiated release: same transition
// with reason expired and no ownership check.
func (o *HoldOrchestrator) ExpireHold(ctx context.Context, holdID uint64) (*model.Hold, error) {
	return o.release(ctx, holdID, 0, model.HoldStatusExpired, false)
}

func (o *HoldOrchestrator) release(ctx context.Context, holdID, userID uint64, reason string, enforceOwner bool) (*model.Hold, error) {
	h, err := o.holds.GetByID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if enforceOwner && h.UserID != userID {
		return nil, repository.ErrForbidden
	}
	if h.Status == reason {
		// Second release (or second sweep) of the same hold: the effect
		// already happened, report success without touching the ledger.
		return h, nil
	}
	if h.Status != model.HoldStatusActive {
		return nil, repository.ErrHoldNotActive
	}

	now := o.now()
	err = o.store.WithTx(ctx, func(tx *sql.Tx) error {
		won, err := o.holds.MarkTerminalTx(ctx, tx, holdID, reason, now)
		if err != nil {
			return err
		}
		if !won {
			// Lost the optimistic update to a concurrent release, sweep
			// or conversion. Re-read and decide: same terminal state is
			// an idempotent success and must not decrement again.
			cur, err := o.holds.GetByIDTx(ctx, tx, holdID)
			if err != nil {
				return err
			}
			h = cur
			if cur.Status == reason {
				return nil
			}
			return repository.ErrHoldNotActive
		}
		rooms, err := o.holds.RoomsByHoldTx(ctx, tx, holdID)
		if err != nil {
			return err
		}
		if err := o.ledger.BatchDecrementHeldTx(ctx, tx, toRequests(rooms), h.CheckIn, h.CheckOut); err != nil {
			return err
		}
		h.Status = reason
		h.ReleasedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func toRequests(rooms []model.HoldRoom) []model.RoomRequest {
	out := make([]model.RoomRequest, 0, len(rooms))
	for _, hr := range rooms {
		out = append(out, model.RoomRequest{RoomID: hr.RoomID, Quantity: hr.Quantity})
	}
	return out
}
