package storage

import (
	"context"
	"errors"

	"treasurySync/internal/model"
)

var (
	// ErrRecordRejected marks a single-row write the store refused (constraint or data error).
	ErrRecordRejected = errors.New("record rejected")
	// ErrNotFound is returned by point lookups that match nothing.
	ErrNotFound = errors.New("not found")
)

// CursorStore reads the durable sync position of a treasury.
type CursorStore interface {
	// MaxBlockNumber returns the highest stored block_number for the treasury.
	MaxBlockNumber(ctx context.Context, treasuryID string) (uint64, bool, error)
}

// InsertStatus is the per-row result of an insert.
type InsertStatus int

const (
	StatusInserted InsertStatus = iota
	StatusDuplicate
	StatusRejected
)

// InsertOutcome reports what happened to one row. Err is set for StatusRejected.
type InsertOutcome struct {
	Row    model.StoredTransaction
	Status InsertStatus
	Err    error
}

// TransactionWriter writes treasury transactions idempotently.
type TransactionWriter interface {
	// InsertTransactions writes the rows of one block as a unit. Rows whose key already
	// exists are reported as duplicates and rows the store refuses are rejected on their
	// own; both leave the other rows intact. A returned error means none of the rows of
	// this call were made durable.
	InsertTransactions(ctx context.Context, txs []model.StoredTransaction) ([]InsertOutcome, error)
}

// TransactionStore is the store surface used by a sync run.
type TransactionStore interface {
	CursorStore
	TransactionWriter
}

// TreasuryStore reads treasury registrations.
type TreasuryStore interface {
	GetTreasury(ctx context.Context, id string) (model.Treasury, error)
	ListTreasuries(ctx context.Context) ([]model.Treasury, error)
}

// FailureSink records logs that could not be decoded.
type FailureSink interface {
	PutDecodeErrors(errs []model.DecodeError) error
}
