package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/hotel-room-reservation/internal/model"
	"github.com/iliyamo/hotel-room-reservation/internal/queue"
	"github.com/iliyamo/hotel-room-reservation/internal/repository"
)

// BookingStore persists bookings created from converted holds.
type BookingStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking, rooms []model.BookingRoom) error
	ExistsForChargeTx(ctx context.Context, tx *sql.Tx, holdID uint64, paymentRef string) (bool, error)
}

// EventLog records processed payment event ids. MarkProcessedTx returns
// repository.ErrDuplicateEvent when the id was already committed by a
// concurrent delivery.
type EventLog interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessedTx(ctx context.Context, tx *sql.Tx, eventID string) error
}

// Converter turns a paid hold into a confirmed booking exactly once.
// Payment webhooks arrive at least once and may race each other; the
// event log plus the hold's optimistic status guard make every replay an
// idempotent success instead of a second booking.
type Converter struct {
	store    TxRunner
	ledger   Ledger
	holds    HoldStore
	bookings BookingStore
	events   EventLog
	// publish sends the booking.confirmed event after commit. Optional;
	// a nil publish or a publish error never fails the conversion.
	publish func(ctx context.Context, ev queue.BookingConfirmedEvent) error
	now     func() time.Time
}

// ConverterOption customises a Converter.
type ConverterOption func(*Converter)

// WithPublisher sets the post-commit booking.confirmed publisher.
func WithPublisher(publish func(ctx context.Context, ev queue.BookingConfirmedEvent) error) ConverterOption {
	return func(c *Converter) { c.publish = publish }
}

// WithConverterClock overrides the time source.
func WithConverterClock(now func() time.Time) ConverterOption {
	return func(c *Converter) {
		if now != nil {
			c.now = now
		}
	}
}

// NewConverter constructs the converter. All storage dependencies must be
// non-nil.
func NewConverter(store TxRunner, ledger Ledger, holds HoldStore, bookings BookingStore, events EventLog, opts ...ConverterOption) *Converter {
	if store == nil || ledger == nil || holds == nil || bookings == nil || events == nil {
		panic("nil dependency passed to NewConverter")
	}
	c := &Converter{
		store:    store,
		ledger:   ledger,
		holds:    holds,
		bookings: bookings,
		events:   events,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessPaymentEvent applies one payment.succeeded event. Inside a
// single transaction it flips the hold to converted, transfers the
// ledger counters from held to booked, creates the booking and records
// the event id. Any failure rolls the whole unit back and leaves the
// event unrecorded, so the broker's redelivery can complete the
// conversion later.
func (c *Converter) ProcessPaymentEvent(ctx context.Context, ev queue.PaymentSucceededEvent) (queue.ConversionResult, error) {
	var res queue.ConversionResult
	if ev.EventID == "" || ev.HoldCode == "" {
		return res, fmt.Errorf("payment event missing event_id or hold_code")
	}

	// Fast idempotency gate. Advisory only: the unique-key insert at the
	// end of the transaction is what closes the race between concurrent
	// deliveries of the same event.
	done, err := c.events.IsProcessed(ctx, ev.EventID)
	if err != nil {
		return res, err
	}
	if done {
		res.AlreadyProcessed = true
		return res, nil
	}

	now := c.now()
	var converted *model.Hold
	err = c.store.WithTx(ctx, func(tx *sql.Tx) error {
		converted = nil
		h, err := c.holds.GetByCodeTx(ctx, tx, ev.HoldCode)
		if err != nil {
			return err
		}

		if h.Status == model.HoldStatusActive {
			won, err := c.holds.MarkTerminalTx(ctx, tx, h.ID, model.HoldStatusConverted, now)
			if err != nil {
				return err
			}
			if !won {
				// A concurrent path finished the hold first; re-read and
				// fall through to the terminal-state handling below.
				h, err = c.holds.GetByIDTx(ctx, tx, h.ID)
				if err != nil {
					return err
				}
			} else {
				if ev.Amount != h.TotalPrice || (ev.Currency != "" && ev.Currency != h.Currency) {
					return fmt.Errorf("%w: payment amount %d %s does not match hold %s (%d %s)",
						repository.ErrConflict, ev.Amount, ev.Currency, h.Code, h.TotalPrice, h.Currency)
				}
				rooms, err := c.holds.RoomsByHoldTx(ctx, tx, h.ID)
				if err != nil {
					return err
				}
				if err := c.ledger.TransferHeldToBookedTx(ctx, tx, toRequests(rooms), h.CheckIn, h.CheckOut); err != nil {
					return err
				}
				b := &model.Booking{
					Code:       uuid.NewString(),
					HoldID:     h.ID,
					UserID:     h.UserID,
					HotelID:    h.HotelID,
					CheckIn:    h.CheckIn,
					CheckOut:   h.CheckOut,
					Guests:     h.Guests,
					Quantity:   h.Quantity,
					TotalPrice: h.TotalPrice,
					Currency:   h.Currency,
					Status:     model.BookingStatusConfirmed,
					PaymentRef: ev.ChargeID,
					CreatedAt:  now,
				}
				lines := make([]model.BookingRoom, 0, len(rooms))
				for _, hr := range rooms {
					lines = append(lines, model.BookingRoom{RoomID: hr.RoomID, Quantity: hr.Quantity})
				}
				if err := c.bookings.CreateTx(ctx, tx, b, lines); err != nil {
					return err
				}
				res.BookingID = b.ID
				res.BookingCode = b.Code
				converted = h
				return c.events.MarkProcessedTx(ctx, tx, ev.EventID)
			}
		}

		switch h.Status {
		case model.HoldStatusConverted:
			// Replay for a hold that already converted: accept only when
			// the same charge produced it, and record this event id too.
			same, err := c.bookings.ExistsForChargeTx(ctx, tx, h.ID, ev.ChargeID)
			if err != nil {
				return err
			}
			if !same {
				return fmt.Errorf("%w: hold %s already converted by a different charge", repository.ErrConflict, h.Code)
			}
			res.AlreadyProcessed = true
			return c.events.MarkProcessedTx(ctx, tx, ev.EventID)
		default:
			// Paying for a released or expired hold is a real
			// inconsistency between us and the payment provider; it must
			// be reported, not papered over.
			return fmt.Errorf("%w: hold %s is %s", repository.ErrHoldNotActive, h.Code, h.Status)
		}
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEvent) {
			// Another delivery of this event committed first; ours rolled
			// back completely, which is exactly the idempotent outcome.
			return queue.ConversionResult{AlreadyProcessed: true}, nil
		}
		return queue.ConversionResult{}, err
	}

	if !res.AlreadyProcessed && c.publish != nil && converted != nil {
		confirmed := queue.BookingConfirmedEvent{
			BookingID:   res.BookingID,
			BookingCode: res.BookingCode,
			HoldCode:    converted.Code,
			UserID:      converted.UserID,
			HotelID:     converted.HotelID,
			CheckIn:     converted.CheckIn.Format("2006-01-02"),
			CheckOut:    converted.CheckOut.Format("2006-01-02"),
			Quantity:    converted.Quantity,
			TotalPrice:  converted.TotalPrice,
			Currency:    converted.Currency,
			ConfirmedAt: now.Format(time.RFC3339),
		}
		if err := c.publish(ctx, confirmed); err != nil {
			log.Printf("converter: publish booking.confirmed failed: %v", err)
		}
	}
	return res, nil
}
