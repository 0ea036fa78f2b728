package indexer

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"treasurySync/internal/model"
)

// buildStoredTransaction maps a decoded event variant onto its stored row.
func buildStoredTransaction(treasuryID string, event model.DomainEvent) (model.StoredTransaction, error) {
	var (
		from, to common.Address
		amount   *big.Int
		period   *big.Int
	)

	switch ev := event.(type) {
	case *model.SpendEvent:
		from, to, amount, period = ev.Operator, ev.To, ev.Amount, ev.PeriodIndex
	case *model.MigrationEvent:
		// remainingBalance is informational only and not stored.
		from, to, amount, period = ev.Operator, ev.To, ev.Amount, ev.PeriodIndex
	default:
		return model.StoredTransaction{}, fmt.Errorf("unsupported event %T", event)
	}
	if amount == nil || amount.Sign() < 0 {
		return model.StoredTransaction{}, fmt.Errorf("invalid amount")
	}

	meta := event.Meta()
	tx := model.StoredTransaction{
		TreasuryID:     treasuryID,
		TxHash:         meta.TxHash.Hex(),
		BlockNumber:    meta.BlockNumber,
		BlockTimestamp: meta.BlockTimestamp.UTC(),
		EventType:      event.Type(),
		FromAddress:    lowerHex(from),
		ToAddress:      lowerHex(to),
		Amount:         amount.String(),
	}
	if period != nil {
		if !period.IsInt64() {
			return model.StoredTransaction{}, fmt.Errorf("period index overflow: %s", period)
		}
		value := period.Int64()
		tx.PeriodIndex = &value
	}
	return tx, nil
}

func buildDecodeError(treasuryID string, log types.Log, err error) model.DecodeError {
	topic0 := ""
	if len(log.Topics) > 0 {
		topic0 = log.Topics[0].Hex()
	}

	return model.DecodeError{
		TreasuryID:  treasuryID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topic0:      topic0,
		Error:       err.Error(),
	}
}

func lowerHex(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
