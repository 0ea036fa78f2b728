package indexer

import (
	"context"

	"go.uber.org/zap"

	"treasurySync/internal/model"
	"treasurySync/internal/storage"
)

// PersistResult summarizes one persist pass.
type PersistResult struct {
	Inserted []model.StoredTransaction
	Skipped  int
	Rejected int
}

// persist writes events in order, one block per store call, so a block is either fully
// stored or not at all and the cursor (max stored block + 1) never skips part of a block.
// Duplicates are skipped, rejected rows are logged and skipped, and any other store error
// aborts with the blocks written so far left in place.
func (r *Runner) persist(ctx context.Context, treasuryID string, events []model.DomainEvent) (PersistResult, error) {
	result := PersistResult{Inserted: make([]model.StoredTransaction, 0, len(events))}

	for _, group := range groupByBlock(events) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		txs := make([]model.StoredTransaction, 0, len(group))
		for _, event := range group {
			tx, err := buildStoredTransaction(treasuryID, event)
			if err != nil {
				r.logger.Warn("build transaction failed", zap.Error(err), zap.String("tx_hash", event.Meta().TxHash.Hex()))
				result.Rejected++
				continue
			}
			txs = append(txs, tx)
		}
		if len(txs) == 0 {
			continue
		}

		outcomes, err := r.store.InsertTransactions(ctx, txs)
		if err != nil {
			return result, err
		}

		for _, outcome := range outcomes {
			switch outcome.Status {
			case storage.StatusInserted:
				result.Inserted = append(result.Inserted, outcome.Row)
			case storage.StatusDuplicate:
				result.Skipped++
			case storage.StatusRejected:
				r.logger.Warn("insert rejected",
					zap.Error(outcome.Err),
					zap.String("tx_hash", outcome.Row.TxHash),
					zap.String("event_type", string(outcome.Row.EventType)),
				)
				result.Rejected++
			}
		}
	}

	return result, nil
}

// groupByBlock splits block-ordered events into consecutive same-block groups.
func groupByBlock(events []model.DomainEvent) [][]model.DomainEvent {
	groups := make([][]model.DomainEvent, 0)
	for i, event := range events {
		if i == 0 || event.Meta().BlockNumber != events[i-1].Meta().BlockNumber {
			groups = append(groups, nil)
		}
		last := len(groups) - 1
		groups[last] = append(groups[last], event)
	}
	return groups
}
