package repository

import (
	"context"
	"database/sql"
)

// TxStore runs a function inside a single database transaction.  The
// engine's atomic units (hold creation, release, conversion) pass their
// repository calls an explicit *sql.Tx so that the ledger counters and the
// hold/booking rows always commit or roll back together.
type TxStore struct {
	DB *sql.DB
}

// NewTxStore returns a TxStore bound to the provided database.
func NewTxStore(db *sql.DB) *TxStore { return &TxStore{DB: db} }

// WithTx begins a transaction, invokes fn with it and commits when fn
// returns nil.  Any error from fn (or from Commit) rolls the transaction
// back and is returned to the caller, so no partial write survives.
func (s *TxStore) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// querier is the subset of *sql.DB and *sql.Tx used by read helpers that
// can run either inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
