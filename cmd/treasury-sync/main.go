package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"treasurySync/internal/chain"
	"treasurySync/internal/config"
	"treasurySync/internal/indexer"
	"treasurySync/internal/metrics"
	"treasurySync/internal/model"
	"treasurySync/internal/storage"
	"treasurySync/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "treasury-sync",
		Short:        "Treasury event sync engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync one treasury's events into Postgres",
		RunE:  runSync,
	}
	addSyncFlags(syncCmd.Flags())
	syncCmd.Flags().String("address", "", "treasury contract address (looked up by treasury-id when empty)")
	syncCmd.Flags().String("treasury-id", "", "treasury id")
	syncCmd.Flags().Uint64("from", 0, "start block (inclusive), overrides the stored cursor when set")
	root.AddCommand(syncCmd)

	syncAllCmd := &cobra.Command{
		Use:   "sync-all",
		Short: "Sync every registered treasury",
		RunE:  runSyncAll,
	}
	addSyncFlags(syncAllCmd.Flags())
	syncAllCmd.Flags().Int("concurrency", 4, "treasuries synced in parallel")
	root.AddCommand(syncAllCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sync endpoint over HTTP",
		RunE:  runServe,
	}
	addSyncFlags(serveCmd.Flags())
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().StringSlice("cors-origins", []string{"*"}, "allowed CORS origins (comma-separated)")
	serveCmd.Flags().Bool("metrics", true, "expose /metrics")
	serveCmd.Flags().Bool("allow-rpc-override", false, "accept rpcUrl from requests")
	root.AddCommand(serveCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE:  runMigrate,
	}
	migrateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	migrateCmd.Flags().Int64("version", 0, "target schema version, 0 means latest")
	migrateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(migrateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSyncFlags(flags *pflag.FlagSet) {
	flags.String("rpc", indexer.DefaultRPCURL, "chain RPC URL")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.Uint64("batch-size", 2000, "blocks per getLogs request")
	flags.Int("max-retries", 3, "maximum retry attempts per RPC call")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.Int("timestamp-workers", 4, "concurrent block timestamp lookups")
	flags.Int("rpc-rate-limit", 0, "RPC requests per second, 0 means unlimited")
	flags.Duration("timeout", 5*time.Minute, "deadline for one sync run")
	flags.String("errors", "./data/decode_errors.jsonl", "decode errors JSONL, empty disables")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func runSync(cmd *cobra.Command, _ []string) error {
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

	if cfg.TreasuryID == "" {
		return fmt.Errorf("treasury-id is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	address, err := resolveAddress(ctx, store, cfg)
	if err != nil {
		return err
	}

	svc := newService(cfg, store, logger)

	logger.Info("sync start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("treasury_id", cfg.TreasuryID),
		zap.String("treasury", address),
		zap.Bool("from_override", cfg.FromBlock != nil),
		zap.Uint64("batch_size", cfg.BatchSize),
	)

	summary, err := svc.Sync(ctx, model.SyncRequest{
		TreasuryAddress: address,
		TreasuryID:      cfg.TreasuryID,
		FromBlock:       cfg.FromBlock,
	})
	if err != nil {
		_ = printJSON(indexer.Failure(err))
		return err
	}
	return printJSON(summary.Result())
}

// resolveAddress returns the configured address, or the registered one for the treasury id.
func resolveAddress(ctx context.Context, treasuries storage.TreasuryStore, cfg config.Config) (string, error) {
	if cfg.Address != "" {
		return cfg.Address, nil
	}
	treasury, err := treasuries.GetTreasury(ctx, cfg.TreasuryID)
	if err != nil {
		return "", fmt.Errorf("resolve treasury address: %w", err)
	}
	return treasury.Address, nil
}

func newService(cfg config.Config, store *postgres.Store, logger *zap.Logger) *indexer.Service {
	var failures storage.FailureSink
	if cfg.Errors != "" {
		failures = storage.NewJsonlStorage(cfg.Errors)
	}

	dial := indexer.ChainDialer(chain.Options{
		RequestsPerSecond: cfg.RPCRateLimit,
		Metrics:           metrics.NewRPCClient(),
	})

	return indexer.NewService(indexer.ServiceConfig{
		Run: indexer.RunConfig{
			BatchSize:        cfg.BatchSize,
			MaxRetries:       cfg.MaxRetries,
			RetryBackoff:     cfg.RetryBackoff,
			TimestampWorkers: cfg.TimestampWorkers,
			Failures:         failures,
			Metrics:          metrics.NewSyncer(),
		},
		DefaultRPCURL:    cfg.RPCURL,
		AllowRPCOverride: cfg.AllowRPCOverride,
		Timeout:          cfg.Timeout,
	}, store, dial, logger)
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
