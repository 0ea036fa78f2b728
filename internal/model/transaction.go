package model

import "time"

// StoredTransaction is a row of the treasury_transactions table.
type StoredTransaction struct {
	ID             string
	TreasuryID     string
	TxHash         string
	BlockNumber    uint64
	BlockTimestamp time.Time
	EventType      EventType
	FromAddress    string
	ToAddress      string
	Amount         string
	PeriodIndex    *int64
	CreatedAt      time.Time
}

// TransactionKey is the idempotency key of a stored transaction.
type TransactionKey struct {
	TxHash     string
	TreasuryID string
	EventType  EventType
}

func (t StoredTransaction) Key() TransactionKey {
	return TransactionKey{TxHash: t.TxHash, TreasuryID: t.TreasuryID, EventType: t.EventType}
}

// Treasury is the subset of the treasuries table the sync engine reads.
type Treasury struct {
	ID      string
	Address string
	ChainID int64
	Name    string
}
