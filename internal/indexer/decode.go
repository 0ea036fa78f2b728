package indexer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"treasurySync/internal/model"
)

// decodeLogs decodes every recognized log. Unknown topics are dropped silently;
// malformed logs are recorded and skipped so one bad log cannot block the rest.
func (r *Runner) decodeLogs(treasuryID string, logs []types.Log) ([]model.DomainEvent, []model.DecodeError) {
	events := make([]model.DomainEvent, 0, len(logs))
	var failures []model.DecodeError

	for _, log := range logs {
		if len(log.Topics) > 0 && !r.decoder.CanDecode(log.Topics[0]) {
			r.logger.Debug("skip unknown topic", zap.String("topic0", log.Topics[0].Hex()), zap.Uint64("block_number", log.BlockNumber))
			continue
		}

		event, err := r.decoder.Decode(log)
		if err != nil {
			r.logger.Warn("decode skipped",
				zap.Error(err),
				zap.Uint64("block_number", log.BlockNumber),
				zap.String("tx_hash", log.TxHash.Hex()),
				zap.Uint("log_index", log.Index),
			)
			failures = append(failures, buildDecodeError(treasuryID, log, err))
			continue
		}
		events = append(events, event)
	}

	return events, failures
}

// attachTimestamps fetches each distinct block's timestamp exactly once and stamps the events.
func (r *Runner) attachTimestamps(ctx context.Context, events []model.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	seen := make(map[uint64]struct{})
	blocks := make([]uint64, 0)
	for _, event := range events {
		number := event.Meta().BlockNumber
		if _, ok := seen[number]; ok {
			continue
		}
		seen[number] = struct{}{}
		blocks = append(blocks, number)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })

	workers := r.cfg.TimestampWorkers
	if workers <= 0 {
		workers = 1
	}

	results := make([]uint64, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, number := range blocks {
		i, number := i, number
		g.Go(func() error {
			ts, err := r.blockTimestampWithRetry(gctx, number)
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", number, err)
			}
			results[i] = ts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	memo := make(map[uint64]time.Time, len(blocks))
	for i, number := range blocks {
		memo[number] = time.Unix(int64(results[i]), 0).UTC()
	}
	for _, event := range events {
		meta := event.Meta()
		meta.BlockTimestamp = memo[meta.BlockNumber]
	}

	r.logger.Debug("block timestamps resolved", zap.Int("blocks", len(blocks)), zap.Int("events", len(events)))
	return nil
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}
