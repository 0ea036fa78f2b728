package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"treasurySync/internal/metrics"
	"treasurySync/internal/model"
	"treasurySync/internal/storage"
	"treasurySync/internal/treasury"
)

const defaultBatchSize = 2000

// RunConfig holds runtime settings for a sync run.
type RunConfig struct {
	BatchSize        uint64
	MaxRetries       int
	RetryBackoff     time.Duration
	TimestampWorkers int
	Failures         storage.FailureSink
	Metrics          *metrics.Syncer
}

// Runner executes one sync run for one treasury: resolve cursor, fetch, decode, persist.
// A Runner holds no state between runs; build one per invocation.
type Runner struct {
	cfg     RunConfig
	chain   ChainReader
	store   storage.TransactionStore
	decoder *treasury.Decoder
	logger  *zap.Logger
}

// Summary is the outcome of a successful run.
type Summary struct {
	TreasuryID     string
	SyncedFrom     uint64
	SyncedTo       uint64
	Inserted       []model.StoredTransaction
	Skipped        int
	Rejected       int
	DecodeFailures []model.DecodeError
}

// Result renders the summary as the success response of the invocation contract.
func (s Summary) Result() model.SyncResult {
	events := make([]model.SyncedEvent, 0, len(s.Inserted))
	for _, tx := range s.Inserted {
		events = append(events, model.NewSyncedEvent(tx))
	}
	return model.SyncResult{
		Success:         true,
		SyncedFrom:      s.SyncedFrom,
		SyncedTo:        s.SyncedTo,
		EventsProcessed: len(events),
		Events:          events,
		DecodeSkipped:   len(s.DecodeFailures),
	}
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, chainClient ChainReader, store storage.TransactionStore, logger *zap.Logger) (*Runner, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}

	decoder, err := treasury.NewDecoder()
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:     cfg,
		chain:   chainClient,
		store:   store,
		decoder: decoder,
		logger:  logger,
	}, nil
}

// Run executes a single sync run. fromOverride, when set, replaces the stored cursor.
func (r *Runner) Run(ctx context.Context, ref model.TreasuryRef, fromOverride *uint64) (Summary, error) {
	logger := r.logger.With(zap.String("treasury_id", ref.ID), zap.String("treasury", ref.Address.Hex()))
	summary := Summary{TreasuryID: ref.ID}

	stage := StageResolvingCursor
	logger.Debug("stage", zap.Stringer("stage", stage))
	from, err := ResolveCursor(ctx, r.store, ref.ID, fromOverride)
	if err != nil {
		return summary, r.fail(ctx, logger, stage, KindStorageUnavailable, fmt.Errorf("resolve cursor: %w", err))
	}
	summary.SyncedFrom = from

	stage = StageFetching
	logger.Debug("stage", zap.Stringer("stage", stage), zap.Uint64("from", from))
	head, err := r.latestBlockWithRetry(ctx)
	if err != nil {
		return summary, r.fail(ctx, logger, stage, KindRPCUnavailable, fmt.Errorf("get latest block: %w", err))
	}
	summary.SyncedTo = head

	if from > head {
		logger.Info("already up to date", zap.Uint64("from", from), zap.Uint64("head", head))
		return summary, nil
	}

	logs, err := r.fetchLogs(ctx, ref.Address, from, head)
	if err != nil {
		return summary, r.fail(ctx, logger, stage, KindRPCUnavailable, err)
	}

	stage = StageDecoding
	logger.Debug("stage", zap.Stringer("stage", stage), zap.Int("logs", len(logs)))
	events, failures := r.decodeLogs(ref.ID, logs)
	summary.DecodeFailures = failures
	r.recordFailures(logger, failures)
	if err := r.attachTimestamps(ctx, events); err != nil {
		return summary, r.fail(ctx, logger, stage, KindRPCUnavailable, err)
	}

	stage = StagePersisting
	logger.Debug("stage", zap.Stringer("stage", stage), zap.Int("events", len(events)))
	result, err := r.persist(ctx, ref.ID, events)
	summary.Inserted = result.Inserted
	summary.Skipped = result.Skipped
	summary.Rejected = result.Rejected
	r.cfg.Metrics.ObserveEvents(metrics.ResultInserted, len(result.Inserted))
	r.cfg.Metrics.ObserveEvents(metrics.ResultSkipped, result.Skipped)
	r.cfg.Metrics.ObserveEvents(metrics.ResultRejected, result.Rejected)
	if err != nil {
		logger.Warn("persist aborted", zap.Int("inserted_before_abort", len(result.Inserted)))
		return summary, r.fail(ctx, logger, stage, KindStorageUnavailable, fmt.Errorf("persist: %w", err))
	}

	logger.Info("sync complete",
		zap.Stringer("stage", StageDone),
		zap.Uint64("from", from),
		zap.Uint64("to", head),
		zap.Int("logs", len(logs)),
		zap.Int("inserted", len(result.Inserted)),
		zap.Int("skipped", result.Skipped),
		zap.Int("rejected", result.Rejected),
		zap.Int("decode_skipped", len(failures)),
	)
	return summary, nil
}

func (r *Runner) fail(ctx context.Context, logger *zap.Logger, stage Stage, kind Kind, err error) error {
	syncErr := newSyncError(ctx, stage, kind, err)
	logger.Error("sync failed",
		zap.Stringer("stage", StageFailed),
		zap.Stringer("failed_in", stage),
		zap.String("kind", string(syncErr.Kind)),
		zap.Error(err),
	)
	return syncErr
}

func (r *Runner) recordFailures(logger *zap.Logger, failures []model.DecodeError) {
	if len(failures) == 0 {
		return
	}
	r.cfg.Metrics.ObserveEvents(metrics.ResultDecodeSkipped, len(failures))
	if r.cfg.Failures == nil {
		return
	}
	if err := r.cfg.Failures.PutDecodeErrors(failures); err != nil {
		logger.Warn("write decode errors", zap.Error(err))
	}
}
