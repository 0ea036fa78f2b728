package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"treasurySync/internal/config"
	"treasurySync/internal/indexer"
	"treasurySync/internal/model"
	"treasurySync/internal/storage/postgres"
)

var errSomeFailed = errors.New("one or more treasuries failed to sync")

func runSyncAll(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	treasuries, err := store.ListTreasuries(ctx)
	if err != nil {
		return err
	}

	svc := newService(cfg, store, logger)
	logger.Info("sync-all start", zap.Int("treasuries", len(treasuries)), zap.Int("concurrency", cfg.Concurrency))

	// Each treasury is independent: one failure does not cancel the others.
	var failed, inserted atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(cfg.Concurrency)
	for _, treasury := range treasuries {
		treasury := treasury
		g.Go(func() error {
			summary, err := svc.Sync(ctx, model.SyncRequest{
				TreasuryAddress: treasury.Address,
				TreasuryID:      treasury.ID,
			})
			if err != nil {
				failed.Add(1)
				logger.Error("treasury sync failed",
					zap.String("treasury_id", treasury.ID),
					zap.String("code", string(indexer.KindOf(err))),
					zap.Error(err),
				)
				return nil
			}
			inserted.Add(int64(len(summary.Inserted)))
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("sync-all complete",
		zap.Int("treasuries", len(treasuries)),
		zap.Int64("failed", failed.Load()),
		zap.Int64("inserted", inserted.Load()),
	)
	if failed.Load() > 0 {
		return errSomeFailed
	}
	return nil
}
