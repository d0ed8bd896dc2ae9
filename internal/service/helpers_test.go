package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/iliyamo/hotel-room-reservation/internal/model"
	"github.com/iliyamo/hotel-room-reservation/internal/repository"
)

// The engine is tested against in-memory fakes of its storage interfaces.
// fakeStore serializes transactions with a mutex (standing in for InnoDB
// row locks) and snapshots the fakes before each transaction body so a
// returned error restores the previous state, the same all-or-nothing
// behavior a rolled-back *sql.Tx gives the real repositories.

const dayKeyLayout = "2006-01-02"

type fakeDay struct {
	total  uint32
	booked uint32
	held   uint32
	price  uint32
	status string
}

// fakeLedger holds per-room per-night counters and enforces the
// booked+held <= total invariant the way the conditional UPDATEs do.
type fakeLedger struct {
	mu   sync.Mutex
	days map[uint64]map[string]*fakeDay // roomID -> date -> counters
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{days: make(map[uint64]map[string]*fakeDay)}
}

// seed creates open inventory for a room across [checkIn, checkOut).
func (l *fakeLedger) seed(roomID uint64, checkIn, checkOut time.Time, total, price uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.days[roomID] == nil {
		l.days[roomID] = make(map[string]*fakeDay)
	}
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		l.days[roomID][d.Format(dayKeyLayout)] = &fakeDay{total: total, price: price, status: model.DayStatusOpen}
	}
}

func (l *fakeLedger) setStatus(roomID uint64, date time.Time, status string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d := l.days[roomID][date.Format(dayKeyLayout)]; d != nil {
		d.status = status
	}
}

func (l *fakeLedger) day(roomID uint64, date time.Time) fakeDay {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d := l.days[roomID][date.Format(dayKeyLayout)]; d != nil {
		return *d
	}
	return fakeDay{}
}

func (l *fakeLedger) snapshot() map[uint64]map[string]*fakeDay {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[uint64]map[string]*fakeDay, len(l.days))
	for room, byDate := range l.days {
		cp := make(map[string]*fakeDay, len(byDate))
		for k, v := range byDate {
			d := *v
			cp[k] = &d
		}
		out[room] = cp
	}
	return out
}

func (l *fakeLedger) restore(snap map[uint64]map[string]*fakeDay) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.days = snap
}

func (l *fakeLedger) forEachNight(lines []model.RoomRequest, checkIn, checkOut time.Time, fn func(line model.RoomRequest, d *fakeDay) error) error {
	for _, line := range lines {
		for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
			day := l.days[line.RoomID][d.Format(dayKeyLayout)]
			if day == nil {
				return repository.ErrInsufficientAvailability
			}
			if err := fn(line, day); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *fakeLedger) CheckAvailability(ctx context.Context, lines []model.RoomRequest, checkIn, checkOut time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.forEachNight(lines, checkIn, checkOut, func(line model.RoomRequest, d *fakeDay) error {
		if d.status != model.DayStatusOpen || d.booked+d.held+line.Quantity > d.total {
			return repository.ErrInsufficientAvailability
		}
		return nil
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (l *fakeLedger) BatchIncrementHeldTx(ctx context.Context, tx *sql.Tx, lines []model.RoomRequest, checkIn, checkOut time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	// Mutates night by night like the per-line UPDATEs; fakeStore's
	// snapshot restore undoes any partial effect on failure.
	return l.forEachNight(lines, checkIn, checkOut, func(line model.RoomRequest, d *fakeDay) error {
		if d.status != model.DayStatusOpen || d.booked+d.held+line.Quantity > d.total {
			return repository.ErrInsufficientAvailability
		}
		d.held += line.Quantity
		return nil
	})
}

func (l *fakeLedger) BatchDecrementHeldTx(ctx context.Context, tx *sql.Tx, lines []model.RoomRequest, checkIn, checkOut time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.forEachNight(lines, checkIn, checkOut, func(line model.RoomRequest, d *fakeDay) error {
		if line.Quantity > d.held {
			d.held = 0
			return nil
		}
		d.held -= line.Quantity
		return nil
	})
}

func (l *fakeLedger) TransferHeldToBookedTx(ctx context.Context, tx *sql.Tx, lines []model.RoomRequest, checkIn, checkOut time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.forEachNight(lines, checkIn, checkOut, func(line model.RoomRequest, d *fakeDay) error {
		if line.Quantity > d.held {
			return repository.ErrConflict
		}
		d.held -= line.Quantity
		d.booked += line.Quantity
		if d.status == model.DayStatusOpen && d.booked >= d.total {
			d.status = model.DayStatusSoldOut
		}
		return nil
	})
}

func (l *fakeLedger) PricesForRangeTx(ctx context.Context, tx *sql.Tx, roomIDs []uint64, checkIn, checkOut time.Time) (map[uint64][]repository.NightPrice, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[uint64][]repository.NightPrice, len(roomIDs))
	for _, roomID := range roomIDs {
		for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
			day := l.days[roomID][d.Format(dayKeyLayout)]
			if day == nil {
				continue
			}
			out[roomID] = append(out[roomID], repository.NightPrice{
				Date:          d,
				PricePerNight: day.price,
			})
		}
	}
	return out, nil
}

// fakeHoldStore keeps holds and line items in maps keyed by id.
type fakeHoldStore struct {
	mu    sync.Mutex
	seq   uint64
	holds map[uint64]*model.Hold
	rooms map[uint64][]model.HoldRoom
	// failCreate, when set, makes the next CreateTx fail once.
	failCreate error
}

func newFakeHoldStore() *fakeHoldStore {
	return &fakeHoldStore{holds: make(map[uint64]*model.Hold), rooms: make(map[uint64][]model.HoldRoom)}
}

type holdSnapshot struct {
	seq   uint64
	holds map[uint64]*model.Hold
	rooms map[uint64][]model.HoldRoom
}

func (s *fakeHoldStore) snapshot() holdSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := holdSnapshot{
		seq:   s.seq,
		holds: make(map[uint64]*model.Hold, len(s.holds)),
		rooms: make(map[uint64][]model.HoldRoom, len(s.rooms)),
	}
	for id, h := range s.holds {
		cp := *h
		snap.holds[id] = &cp
	}
	for id, rs := range s.rooms {
		snap.rooms[id] = append([]model.HoldRoom(nil), rs...)
	}
	return snap
}

func (s *fakeHoldStore) restore(snap holdSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = snap.seq
	s.holds = snap.holds
	s.rooms = snap.rooms
}

func (s *fakeHoldStore) CreateTx(ctx context.Context, tx *sql.Tx, h *model.Hold, rooms []model.HoldRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCreate; err != nil {
		s.failCreate = nil
		return err
	}
	s.seq++
	h.ID = s.seq
	cp := *h
	s.holds[h.ID] = &cp
	lines := make([]model.HoldRoom, 0, len(rooms))
	for i, r := range rooms {
		r.ID = uint64(i + 1)
		r.HoldID = h.ID
		lines = append(lines, r)
	}
	s.rooms[h.ID] = lines
	return nil
}

func (s *fakeHoldStore) get(id uint64) (*model.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holds[id]
	if !ok {
		return nil, repository.ErrHoldNotFound
	}
	cp := *h
	return &cp, nil
}

func (s *fakeHoldStore) GetByID(ctx context.Context, id uint64) (*model.Hold, error) {
	return s.get(id)
}

func (s *fakeHoldStore) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Hold, error) {
	return s.get(id)
}

func (s *fakeHoldStore) GetByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*model.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.holds {
		if h.Code == code {
			cp := *h
			return &cp, nil
		}
	}
	return nil, repository.ErrHoldNotFound
}

func (s *fakeHoldStore) ActiveByUser(ctx context.Context, userID uint64) ([]*model.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Hold
	// newest first: ids are assigned in creation order
	for id := s.seq; id >= 1; id-- {
		h, ok := s.holds[id]
		if ok && h.UserID == userID && h.Status == model.HoldStatusActive {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeHoldStore) FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uint64
	for id := uint64(1); id <= s.seq; id++ {
		h, ok := s.holds[id]
		if !ok || h.Status != model.HoldStatusActive || !now.After(h.ExpiresAt) {
			continue
		}
		out = append(out, id)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeHoldStore) RoomsByHold(ctx context.Context, holdID uint64) ([]model.HoldRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.HoldRoom(nil), s.rooms[holdID]...), nil
}

func (s *fakeHoldStore) RoomsByHoldTx(ctx context.Context, tx *sql.Tx, holdID uint64) ([]model.HoldRoom, error) {
	return s.RoomsByHold(ctx, holdID)
}

func (s *fakeHoldStore) MarkTerminalTx(ctx context.Context, tx *sql.Tx, id uint64, to string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holds[id]
	if !ok || h.Status != model.HoldStatusActive {
		return false, nil
	}
	h.Status = to
	if to != model.HoldStatusConverted {
		t := at
		h.ReleasedAt = &t
	}
	return true, nil
}

// fakeBookings implements BookingStore.
type fakeBookings struct {
	mu       sync.Mutex
	seq      uint64
	bookings map[uint64]*model.Booking
	rooms    map[uint64][]model.BookingRoom
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{bookings: make(map[uint64]*model.Booking), rooms: make(map[uint64][]model.BookingRoom)}
}

type bookingSnapshot struct {
	seq      uint64
	bookings map[uint64]*model.Booking
	rooms    map[uint64][]model.BookingRoom
}

func (f *fakeBookings) snapshot() bookingSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := bookingSnapshot{
		seq:      f.seq,
		bookings: make(map[uint64]*model.Booking, len(f.bookings)),
		rooms:    make(map[uint64][]model.BookingRoom, len(f.rooms)),
	}
	for id, b := range f.bookings {
		cp := *b
		snap.bookings[id] = &cp
	}
	for id, rs := range f.rooms {
		snap.rooms[id] = append([]model.BookingRoom(nil), rs...)
	}
	return snap
}

func (f *fakeBookings) restore(snap bookingSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq = snap.seq
	f.bookings = snap.bookings
	f.rooms = snap.rooms
}

func (f *fakeBookings) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking, rooms []model.BookingRoom) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	b.ID = f.seq
	cp := *b
	f.bookings[b.ID] = &cp
	lines := make([]model.BookingRoom, 0, len(rooms))
	for i, r := range rooms {
		r.ID = uint64(i + 1)
		r.BookingID = b.ID
		lines = append(lines, r)
	}
	f.rooms[b.ID] = lines
	return nil
}

func (f *fakeBookings) ExistsForChargeTx(ctx context.Context, tx *sql.Tx, holdID uint64, paymentRef string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.HoldID == holdID && b.PaymentRef == paymentRef {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookings) byHold(holdID uint64) *model.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.HoldID == holdID {
			cp := *b
			return &cp
		}
	}
	return nil
}

// fakeEvents implements EventLog.
type fakeEvents struct {
	mu        sync.Mutex
	processed map[string]bool
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{processed: make(map[string]bool)}
}

func (f *fakeEvents) snapshot() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.processed))
	for k, v := range f.processed {
		out[k] = v
	}
	return out
}

func (f *fakeEvents) restore(snap map[string]bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = snap
}

func (f *fakeEvents) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed[eventID], nil
}

func (f *fakeEvents) MarkProcessedTx(ctx context.Context, tx *sql.Tx, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processed[eventID] {
		return repository.ErrDuplicateEvent
	}
	f.processed[eventID] = true
	return nil
}

// fakeStore ties the fakes together as a TxRunner.
type fakeStore struct {
	mu       sync.Mutex
	ledger   *fakeLedger
	holds    *fakeHoldStore
	bookings *fakeBookings
	events   *fakeEvents
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ledgerSnap := s.ledger.snapshot()
	holdSnap := s.holds.snapshot()
	var bookSnap bookingSnapshot
	var eventSnap map[string]bool
	if s.bookings != nil {
		bookSnap = s.bookings.snapshot()
	}
	if s.events != nil {
		eventSnap = s.events.snapshot()
	}
	if err := fn(nil); err != nil {
		s.ledger.restore(ledgerSnap)
		s.holds.restore(holdSnap)
		if s.bookings != nil {
			s.bookings.restore(bookSnap)
		}
		if s.events != nil {
			s.events.restore(eventSnap)
		}
		return err
	}
	return nil
}

// engineFixture wires an orchestrator over fresh fakes with a controllable
// clock.
type engineFixture struct {
	store  *fakeStore
	ledger *fakeLedger
	holds  *fakeHoldStore
	orch   *HoldOrchestrator
	now    time.Time
}

func newEngineFixture(opts ...HoldOrchestratorOption) *engineFixture {
	f := &engineFixture{
		ledger: newFakeLedger(),
		holds:  newFakeHoldStore(),
		now:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	f.store = &fakeStore{ledger: f.ledger, holds: f.holds}
	all := append([]HoldOrchestratorOption{WithClock(func() time.Time { return f.now })}, opts...)
	f.orch = NewHoldOrchestrator(f.store, f.ledger, f.holds, all...)
	return f
}

func (f *engineFixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
