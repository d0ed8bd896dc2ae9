package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// PaymentEventRepo is the idempotency gate for payment webhooks.  The
// provider delivers events at least once; recording each event id inside
// the conversion transaction makes the application of an event exactly
// once: a replayed delivery either finds the id up front or collides on
// the unique key and rolls back.
type PaymentEventRepo struct {
	db *sql.DB
}

// NewPaymentEventRepo returns a PaymentEventRepo bound to the provided
// database.
func NewPaymentEventRepo(db *sql.DB) *PaymentEventRepo { return &PaymentEventRepo{db: db} }

// IsProcessed reports whether the event id has already been recorded.
// Advisory fast path; the authoritative guard is the unique key hit in
// MarkProcessedTx.
func (r *PaymentEventRepo) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_payment_events WHERE event_id = ? LIMIT 1`, eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkProcessedTx records the event id within the caller's transaction.
// A duplicate key (MySQL error 1062) means another delivery of the same
// event already committed; ErrDuplicateEvent tells the caller to roll
// back and report idempotent success.
func (r *PaymentEventRepo) MarkProcessedTx(ctx context.Context, tx *sql.Tx, eventID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO processed_payment_events (event_id) VALUES (?)`, eventID)
	if err != nil {
		if strings.Contains(err.Error(), "1062") {
			return ErrDuplicateEvent
		}
		return err
	}
	return nil
}
