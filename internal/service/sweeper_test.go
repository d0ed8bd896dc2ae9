package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-room-reservation/internal/model"
)

func newSweeperFixture(opts ...SweeperOption) (*engineFixture, *Sweeper) {
	f := newEngineFixture()
	all := append([]SweeperOption{WithSweepClock(func() time.Time { return f.now })}, opts...)
	return f, NewSweeper(f.holds, f.orch, all...)
}

func placeHold(t *testing.T, f *engineFixture, userID uint64, checkIn, checkOut time.Time) *model.Hold {
	t.Helper()
	view, err := f.orch.CreateHold(context.Background(), CreateHoldInput{
		UserID: userID, HotelID: 1, CheckIn: checkIn, CheckOut: checkOut,
		Rooms: []model.RoomRequest{{RoomID: 7, Quantity: 1}},
	})
	require.NoError(t, err)
	return view.Hold
}

func TestSweepOnceExpiresStaleHolds(t *testing.T) {
	f, sw := newSweeperFixture()
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 3)
	f.ledger.seed(7, checkIn, checkOut, 10, 100_00)

	h1 := placeHold(t, f, 1, checkIn, checkOut)
	h2 := placeHold(t, f, 2, checkIn, checkOut)

	// nothing is stale yet
	n, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.advance(defaultHoldTTL + time.Minute)
	n, err = sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []uint64{h1.ID, h2.ID} {
		h, err := f.holds.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.HoldStatusExpired, h.Status)
		assert.NotNil(t, h.ReleasedAt)
	}
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		assert.Equal(t, uint32(0), f.ledger.day(7, d).held)
	}
}

func TestSweepSkipsHoldsFinishedMeanwhile(t *testing.T) {
	f, sw := newSweeperFixture()
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 2)
	f.ledger.seed(7, checkIn, checkOut, 10, 100_00)

	h1 := placeHold(t, f, 1, checkIn, checkOut)
	h2 := placeHold(t, f, 2, checkIn, checkOut)

	_, err := f.orch.ReleaseHold(ctx, h1.ID, 1)
	require.NoError(t, err)

	f.advance(defaultHoldTTL + time.Minute)
	n, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	released, err := f.holds.GetByID(ctx, h1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.HoldStatusReleased, released.Status)
	expired, err := f.holds.GetByID(ctx, h2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.HoldStatusExpired, expired.Status)
	assert.Equal(t, uint32(0), f.ledger.day(7, checkIn).held)
}

func TestSweepHonorsBatchLimit(t *testing.T) {
	f, sw := newSweeperFixture(WithSweepBatch(2))
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 2)
	f.ledger.seed(7, checkIn, checkOut, 10, 100_00)

	for i := 0; i < 3; i++ {
		placeHold(t, f, uint64(i+1), checkIn, checkOut)
	}
	f.advance(defaultHoldTTL + time.Minute)

	n, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweeperStartStopsOnCancel(t *testing.T) {
	f, _ := newSweeperFixture()
	sw := NewSweeper(f.holds, f.orch, WithSweepInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Start(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
