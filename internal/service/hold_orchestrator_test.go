package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-room-reservation/internal/model"
	"github.com/iliyamo/hotel-room-reservation/internal/repository"
)

func TestCreateHoldValidation(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 3)

	_, err := f.orch.CreateHold(ctx, CreateHoldInput{UserID: 1, HotelID: 1, CheckIn: checkIn, CheckOut: checkOut})
	assert.ErrorIs(t, err, repository.ErrInvalidRooms)

	_, err = f.orch.CreateHold(ctx, CreateHoldInput{
		UserID: 1, HotelID: 1, CheckIn: checkIn, CheckOut: checkOut,
		Rooms: []model.RoomRequest{{RoomID: 7, Quantity: 0}},
	})
	assert.ErrorIs(t, err, repository.ErrInvalidRooms)

	_, err = f.orch.CreateHold(ctx, CreateHoldInput{
		UserID: 1, HotelID: 1, CheckIn: checkOut, CheckOut: checkIn,
		Rooms: []model.RoomRequest{{RoomID: 7, Quantity: 1}},
	})
	assert.ErrorIs(t, err, repository.ErrInvalidDateRange)

	// same-day stays cover zero nights
	_, err = f.orch.CreateHold(ctx, CreateHoldInput{
		UserID: 1, HotelID: 1, CheckIn: checkIn, CheckOut: checkIn,
		Rooms: []model.RoomRequest{{RoomID: 7, Quantity: 1}},
	})
	assert.ErrorIs(t, err, repository.ErrInvalidDateRange)
}

func TestCreateHoldReservesAndPrices(t *testing.T) {
	f := newEngineFixture(WithHoldTTL(10 * time.Minute))
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 4) // 3 nights
	f.ledger.seed(7, checkIn, checkOut, 5, 120_00)
	f.ledger.seed(8, checkIn, checkOut, 2, 200_00)

	view, err := f.orch.CreateHold(ctx, CreateHoldInput{
		UserID: 42, HotelID: 3, CheckIn: checkIn, CheckOut: checkOut, Guests: 4,
		Rooms: []model.RoomRequest{{RoomID: 7, Quantity: 2}, {RoomID: 8, Quantity: 1}},
	})
	require.NoError(t, err)
	h := view.Hold

	assert.NotEmpty(t, h.Code)
	assert.Equal(t, model.HoldStatusActive, h.Status)
	assert.Equal(t, uint32(3), h.Quantity)
	assert.Equal(t, "USD", h.Currency)
	assert.Equal(t, f.now.Add(10*time.Minute), h.ExpiresAt)
	// 3 nights * (2 * 120.00 + 1 * 200.00)
	assert.Equal(t, uint64(3*(2*120_00+1*200_00)), h.TotalPrice)
	require.Len(t, view.Rooms, 2)

	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		assert.Equal(t, uint32(2), f.ledger.day(7, d).held)
		assert.Equal(t, uint32(1), f.ledger.day(8, d).held)
	}
}

func TestCreateHoldInsufficientLeavesNothingBehind(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 4)
	// middle night can only cover 1 room
	f.ledger.seed(7, checkIn, checkOut, 3, 100_00)
	f.ledger.days[7][date(2026, 9, 2).Format(dayKeyLayout)].total = 1

	_, err := f.orch.CreateHold(ctx, CreateHoldInput{
		UserID: 1, HotelID: 1, CheckIn: checkIn, CheckOut: checkOut,
		Rooms: []model.RoomRequest{{RoomID: 7, Quantity: 2}},
	})
	assert.ErrorIs(t, err, repository.ErrInsufficientAvailability)

	// no partial increments survive the failed attempt
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		assert.Equal(t, uint32(0), f.ledger.day(7, d).held, "night %s", d.Format(dayKeyLayout))
	}
}

func TestCreateHoldRollsBackOnStorageError(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 3)
	f.ledger.seed(7, checkIn, checkOut, 5, 100_00)
	f.holds.failCreate = errors.New("disk on fire")

	_, err := f.orch.CreateHold(ctx, CreateHoldInput{
		UserID: 1, HotelID: 1, CheckIn: checkIn, CheckOut: checkOut,
		Rooms: []model.RoomRequest{{RoomID: 7, Quantity: 2}},
	})
	require.Error(t, err)

	// the held increments that ran before the insert failed are undone
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		assert.Equal(t, uint32(0), f.ledger.day(7, d).held)
	}
}

func TestCreateHoldRejectsClosedNight(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 3)
	f.ledger.seed(7, checkIn, checkOut, 5, 100_00)
	f.ledger.setStatus(7, date(2026, 9, 2), model.DayStatusMaintenance)

	_, err := f.orch.CreateHold(ctx, CreateHoldInput{
		UserID: 1, HotelID: 1, CheckIn: checkIn, CheckOut: checkOut,
		Rooms: []model.RoomRequest{{RoomID: 7, Quantity: 1}},
	})
	assert.ErrorIs(t, err, repository.ErrInsufficientAvailability)
}

func TestReleaseHoldReturnsRooms(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 3)
	f.ledger.seed(7, checkIn, checkOut, 5, 100_00)

	view, err := f.orch.CreateHold(ctx, CreateHoldInput{
		UserID: 42, HotelID: 1, CheckIn: checkIn, CheckOut: checkOut,
		Rooms: []model.RoomRequest{{RoomID: 7, Quantity: 2}},
	})
	require.NoError(t, err)

	released, err := f.orch.ReleaseHold(ctx, view.Hold.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, model.HoldStatusReleased, released.Status)
	require.NotNil(t, released.ReleasedAt)
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		assert.Equal(t, uint32(0), f.ledger.day(7, d).held)
	}

	// releasing again is an idempotent no-op and must not decrement twice
	again, err := f.orch.ReleaseHold(ctx, view.Hold.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, model.HoldStatusReleased, again.Status)
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		assert.Equal(t, uint32(0), f.ledger.day(7, d).held)
	}
}

func TestReleaseHoldOwnershipAndState(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 2)
	f.ledger.seed(7, checkIn, checkOut, 5, 100_00)

	view, err := f.orch.CreateHold(ctx, CreateHoldInput{
		UserID: 42, HotelID: 1, CheckIn: checkIn, CheckOut: checkOut,
		Rooms: []model.RoomRequest{{RoomID: 7, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.orch.ReleaseHold(ctx, view.Hold.ID, 99)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	_, err = f.orch.ReleaseHold(ctx, 12345, 42)
	assert.ErrorIs(t, err, repository.ErrHoldNotFound)

	// a converted hold can never be released back
	won, err := f.holds.MarkTerminalTx(ctx, nil, view.Hold.ID, model.HoldStatusConverted, f.now)
	require.NoError(t, err)
	require.True(t, won)
	_, err = f.orch.ReleaseHold(ctx, view.Hold.ID, 42)
	assert.ErrorIs(t, err, repository.ErrHoldNotActive)
}

func TestGetHoldReportsExpiryWithoutTransitioning(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 2)
	f.ledger.seed(7, checkIn, checkOut, 5, 100_00)

	view, err := f.orch.CreateHold(ctx, CreateHoldInput{
		UserID: 42, HotelID: 1, CheckIn: checkIn, CheckOut: checkOut,
		Rooms: []model.RoomRequest{{RoomID: 7, Quantity: 1}},
	})
	require.NoError(t, err)

	fresh, err := f.orch.GetHold(ctx, view.Hold.ID, 42)
	require.NoError(t, err)
	assert.False(t, fresh.IsExpired)

	f.advance(defaultHoldTTL + time.Minute)
	stale, err := f.orch.GetHold(ctx, view.Hold.ID, 42)
	require.NoError(t, err)
	assert.True(t, stale.IsExpired)
	// reading never transitions: the stored row is still active
	assert.Equal(t, model.HoldStatusActive, stale.Hold.Status)

	_, err = f.orch.GetHold(ctx, view.Hold.ID, 99)
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestGetActiveHoldsNewestFirst(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 2)
	f.ledger.seed(7, checkIn, checkOut, 10, 100_00)

	var ids []uint64
	for i := 0; i < 3; i++ {
		view, err := f.orch.CreateHold(ctx, CreateHoldInput{
			UserID: 42, HotelID: 1, CheckIn: checkIn, CheckOut: checkOut,
			Rooms: []model.RoomRequest{{RoomID: 7, Quantity: 1}},
		})
		require.NoError(t, err)
		ids = append(ids, view.Hold.ID)
	}
	_, err := f.orch.ReleaseHold(ctx, ids[1], 42)
	require.NoError(t, err)

	holds, err := f.orch.GetActiveHoldsByUser(ctx, 42)
	require.NoError(t, err)
	require.Len(t, holds, 2)
	assert.Equal(t, ids[2], holds[0].ID)
	assert.Equal(t, ids[0], holds[1].ID)
}

func TestConcurrentHoldsNeverOversell(t *testing.T) {
	f := newEngineFixture()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 3)
	// one last room for the whole range
	f.ledger.seed(7, checkIn, checkOut, 1, 100_00)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.orch.CreateHold(context.Background(), CreateHoldInput{
				UserID: uint64(i + 1), HotelID: 1, CheckIn: checkIn, CheckOut: checkOut,
				Rooms: []model.RoomRequest{{RoomID: 7, Quantity: 1}},
			})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, repository.ErrInsufficientAvailability)
		}
	}
	assert.Equal(t, 1, wins, "exactly one request may take the last room")
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		day := f.ledger.day(7, d)
		assert.LessOrEqual(t, day.booked+day.held, day.total)
	}
}
