package indexer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"treasurySync/internal/chain"
	"treasurySync/internal/model"
	"treasurySync/internal/storage"
)

// DefaultRPCURL is used when neither the request nor the configuration names an endpoint.
const DefaultRPCURL = "http://localhost:8545"

// Dialer opens a chain connection for one run. The returned func releases it.
type Dialer func(ctx context.Context, rpcURL string) (ChainReader, func(), error)

// ChainDialer dials go-ethereum backed clients.
func ChainDialer(opts chain.Options) Dialer {
	return func(ctx context.Context, rpcURL string) (ChainReader, func(), error) {
		client, err := chain.NewClient(ctx, rpcURL, opts)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}
}

// ServiceConfig configures the request-level entry point.
type ServiceConfig struct {
	Run              RunConfig
	DefaultRPCURL    string
	AllowRPCOverride bool
	Timeout          time.Duration
}

// Service validates sync requests and runs them against fresh chain connections.
type Service struct {
	cfg    ServiceConfig
	store  storage.TransactionStore
	dial   Dialer
	logger *zap.Logger
}

func NewService(cfg ServiceConfig, store storage.TransactionStore, dial Dialer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultRPCURL == "" {
		cfg.DefaultRPCURL = DefaultRPCURL
	}
	return &Service{cfg: cfg, store: store, dial: dial, logger: logger}
}

// Sync runs one treasury sync. Errors are *SyncError values.
func (s *Service) Sync(ctx context.Context, req model.SyncRequest) (Summary, error) {
	started := time.Now()
	summary, err := s.sync(ctx, req)

	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
	}
	s.cfg.Run.Metrics.ObserveRun(outcome, started)
	return summary, err
}

func (s *Service) sync(ctx context.Context, req model.SyncRequest) (Summary, error) {
	ref, err := ParseRequest(req)
	if err != nil {
		return Summary{}, err
	}

	rpcURL := strings.TrimSpace(req.RPCURL)
	if rpcURL != "" && rpcURL != s.cfg.DefaultRPCURL && !s.cfg.AllowRPCOverride {
		return Summary{}, invalidArgument("rpcUrl override is disabled")
	}
	if rpcURL == "" {
		rpcURL = s.cfg.DefaultRPCURL
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	chainClient, release, err := s.dial(ctx, rpcURL)
	if err != nil {
		return Summary{}, newSyncError(ctx, StageIdle, KindRPCUnavailable, fmt.Errorf("connect rpc: %w", err))
	}
	defer release()

	runner, err := NewRunner(s.cfg.Run, chainClient, s.store, s.logger)
	if err != nil {
		return Summary{}, err
	}
	return runner.Run(ctx, ref, req.FromBlock)
}
