package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-room-reservation/internal/model"
	"github.com/iliyamo/hotel-room-reservation/internal/queue"
	"github.com/iliyamo/hotel-room-reservation/internal/repository"
)

type converterFixture struct {
	*engineFixture
	bookings  *fakeBookings
	events    *fakeEvents
	conv      *Converter
	mu        sync.Mutex
	published []queue.BookingConfirmedEvent
}

func newConverterFixture(t *testing.T) *converterFixture {
	cf := &converterFixture{
		engineFixture: newEngineFixture(),
		bookings:      newFakeBookings(),
		events:        newFakeEvents(),
	}
	cf.store.bookings = cf.bookings
	cf.store.events = cf.events
	cf.conv = NewConverter(cf.store, cf.ledger, cf.holds, cf.bookings, cf.events,
		WithConverterClock(func() time.Time { return cf.now }),
		WithPublisher(func(ctx context.Context, ev queue.BookingConfirmedEvent) error {
			cf.mu.Lock()
			defer cf.mu.Unlock()
			cf.published = append(cf.published, ev)
			return nil
		}),
	)
	return cf
}

func (cf *converterFixture) publishedCount() int {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	return len(cf.published)
}

func paymentFor(h *model.Hold, eventID, chargeID string) queue.PaymentSucceededEvent {
	return queue.PaymentSucceededEvent{
		EventID:  eventID,
		Type:     "payment.succeeded",
		HoldCode: h.Code,
		Amount:   h.TotalPrice,
		Currency: h.Currency,
		ChargeID: chargeID,
	}
}

func TestConvertPaymentCreatesBookingOnce(t *testing.T) {
	cf := newConverterFixture(t)
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 3)
	cf.ledger.seed(7, checkIn, checkOut, 2, 150_00)

	hold := placeHold(t, cf.engineFixture, 42, checkIn, checkOut)

	res, err := cf.conv.ProcessPaymentEvent(ctx, paymentFor(hold, "evt-1", "ch-1"))
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.NotZero(t, res.BookingID)
	assert.NotEmpty(t, res.BookingCode)

	// hold is converted, never released
	converted, err := cf.holds.GetByID(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, model.HoldStatusConverted, converted.Status)
	assert.Nil(t, converted.ReleasedAt)

	// counters moved from held to booked
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		day := cf.ledger.day(7, d)
		assert.Equal(t, uint32(0), day.held)
		assert.Equal(t, uint32(1), day.booked)
	}

	b := cf.bookings.byHold(hold.ID)
	require.NotNil(t, b)
	assert.Equal(t, hold.TotalPrice, b.TotalPrice)
	assert.Equal(t, "ch-1", b.PaymentRef)
	assert.Equal(t, model.BookingStatusConfirmed, b.Status)

	require.Equal(t, 1, cf.publishedCount())
	assert.Equal(t, hold.Code, cf.published[0].HoldCode)
	assert.Equal(t, res.BookingCode, cf.published[0].BookingCode)
}

func TestConvertDuplicateEventIsIdempotent(t *testing.T) {
	cf := newConverterFixture(t)
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 2)
	cf.ledger.seed(7, checkIn, checkOut, 2, 150_00)

	hold := placeHold(t, cf.engineFixture, 42, checkIn, checkOut)
	ev := paymentFor(hold, "evt-1", "ch-1")

	first, err := cf.conv.ProcessPaymentEvent(ctx, ev)
	require.NoError(t, err)
	require.False(t, first.AlreadyProcessed)

	// redelivery of the same event id
	second, err := cf.conv.ProcessPaymentEvent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)

	// still exactly one booking, one ledger transfer, one publish
	assert.Equal(t, uint32(1), cf.ledger.day(7, checkIn).booked)
	assert.Equal(t, uint64(1), cf.bookings.seq)
	assert.Equal(t, 1, cf.publishedCount())
}

func TestConvertReplaySameChargeNewEventID(t *testing.T) {
	cf := newConverterFixture(t)
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 2)
	cf.ledger.seed(7, checkIn, checkOut, 2, 150_00)

	hold := placeHold(t, cf.engineFixture, 42, checkIn, checkOut)

	_, err := cf.conv.ProcessPaymentEvent(ctx, paymentFor(hold, "evt-1", "ch-1"))
	require.NoError(t, err)

	// the provider retried the same charge under a fresh event id
	res, err := cf.conv.ProcessPaymentEvent(ctx, paymentFor(hold, "evt-2", "ch-1"))
	require.NoError(t, err)
	assert.True(t, res.AlreadyProcessed)
	assert.Equal(t, uint64(1), cf.bookings.seq)

	// the fresh event id was recorded too, so its next delivery short-circuits
	done, err := cf.events.IsProcessed(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestConvertRejectsDifferentChargeForConvertedHold(t *testing.T) {
	cf := newConverterFixture(t)
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 2)
	cf.ledger.seed(7, checkIn, checkOut, 2, 150_00)

	hold := placeHold(t, cf.engineFixture, 42, checkIn, checkOut)

	_, err := cf.conv.ProcessPaymentEvent(ctx, paymentFor(hold, "evt-1", "ch-1"))
	require.NoError(t, err)

	_, err = cf.conv.ProcessPaymentEvent(ctx, paymentFor(hold, "evt-2", "ch-OTHER"))
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, uint64(1), cf.bookings.seq)
}

func TestConvertAmountMismatchRollsBack(t *testing.T) {
	cf := newConverterFixture(t)
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 2)
	cf.ledger.seed(7, checkIn, checkOut, 2, 150_00)

	hold := placeHold(t, cf.engineFixture, 42, checkIn, checkOut)

	ev := paymentFor(hold, "evt-1", "ch-1")
	ev.Amount = hold.TotalPrice - 1
	_, err := cf.conv.ProcessPaymentEvent(ctx, ev)
	assert.ErrorIs(t, err, repository.ErrConflict)

	// the whole unit rolled back: hold still active, counters untouched,
	// event unrecorded so a corrected redelivery can still convert
	h, err := cf.holds.GetByID(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, model.HoldStatusActive, h.Status)
	day := cf.ledger.day(7, checkIn)
	assert.Equal(t, uint32(1), day.held)
	assert.Equal(t, uint32(0), day.booked)
	done, err := cf.events.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Zero(t, cf.publishedCount())
}

func TestConvertReleasedHoldIsHardError(t *testing.T) {
	cf := newConverterFixture(t)
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 2)
	cf.ledger.seed(7, checkIn, checkOut, 2, 150_00)

	hold := placeHold(t, cf.engineFixture, 42, checkIn, checkOut)
	_, err := cf.orch.ReleaseHold(ctx, hold.ID, 42)
	require.NoError(t, err)

	_, err = cf.conv.ProcessPaymentEvent(ctx, paymentFor(hold, "evt-1", "ch-1"))
	assert.ErrorIs(t, err, repository.ErrHoldNotActive)
	assert.Zero(t, cf.bookings.seq)
}

func TestConvertFillsSoldOutFlag(t *testing.T) {
	cf := newConverterFixture(t)
	ctx := context.Background()
	checkIn := date(2026, 9, 1)
	checkOut := date(2026, 9, 2)
	// single-room night: converting the hold books the night out
	cf.ledger.seed(7, checkIn, checkOut, 1, 150_00)

	hold := placeHold(t, cf.engineFixture, 42, checkIn, checkOut)
	_, err := cf.conv.ProcessPaymentEvent(ctx, paymentFor(hold, "evt-1", "ch-1"))
	require.NoError(t, err)

	day := cf.ledger.day(7, checkIn)
	assert.Equal(t, model.DayStatusSoldOut, day.status)
	assert.Equal(t, day.total, day.booked)
}

func TestConvertRejectsMalformedEvent(t *testing.T) {
	cf := newConverterFixture(t)
	_, err := cf.conv.ProcessPaymentEvent(context.Background(), queue.PaymentSucceededEvent{})
	assert.Error(t, err)
}
