package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType is the stored discriminator of a treasury transaction.
type EventType string

const (
	EventSpend     EventType = "spend"
	EventMigration EventType = "migration"
	EventDeposit   EventType = "deposit"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventSpend, EventMigration, EventDeposit:
		return true
	default:
		return false
	}
}

// TreasuryRef identifies the treasury contract being synced.
type TreasuryRef struct {
	ID      string
	Address common.Address
}

// EventMeta holds the chain position shared by every decoded event.
type EventMeta struct {
	BlockNumber    uint64
	TxHash         common.Hash
	LogIndex       uint
	BlockTimestamp time.Time
}

// DomainEvent is a decoded treasury log. Implemented by *SpendEvent and *MigrationEvent.
type DomainEvent interface {
	Type() EventType
	Meta() *EventMeta
}

// SpendEvent is the decoded Spend(address,address,uint256,uint256) log.
type SpendEvent struct {
	EventMeta
	Operator    common.Address
	To          common.Address
	Amount      *big.Int
	PeriodIndex *big.Int
}

func (e *SpendEvent) Type() EventType  { return EventSpend }
func (e *SpendEvent) Meta() *EventMeta { return &e.EventMeta }

// MigrationEvent is the decoded Migration(address,address,uint256,uint256,uint256) log.
type MigrationEvent struct {
	EventMeta
	Operator         common.Address
	To               common.Address
	Amount           *big.Int
	PeriodIndex      *big.Int
	RemainingBalance *big.Int
}

func (e *MigrationEvent) Type() EventType  { return EventMigration }
func (e *MigrationEvent) Meta() *EventMeta { return &e.EventMeta }
