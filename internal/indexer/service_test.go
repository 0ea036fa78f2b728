package indexer

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"treasurySync/internal/model"
)

const testAddress = "0x9999999999999999999999999999999999999999"

type dialRecorder struct {
	chain    ChainReader
	err      error
	urls     []string
	released int
}

func (d *dialRecorder) dial(_ context.Context, rpcURL string) (ChainReader, func(), error) {
	d.urls = append(d.urls, rpcURL)
	if d.err != nil {
		return nil, nil, d.err
	}
	return d.chain, func() { d.released++ }, nil
}

func newTestService(cfg ServiceConfig, dialer *dialRecorder, store *memStore) *Service {
	if cfg.Run.BatchSize == 0 {
		cfg.Run = testRunConfig()
	}
	return NewService(cfg, store, dialer.dial, zap.NewNop())
}

func TestServiceSync(t *testing.T) {
	dialer := &dialRecorder{chain: newFakeChain(100, spendLog(50, 0, txA, big.NewInt(1), 0))}
	store := newMemStore()
	svc := newTestService(ServiceConfig{DefaultRPCURL: "http://node:8545"}, dialer, store)

	summary, err := svc.Sync(context.Background(), model.SyncRequest{TreasuryAddress: testAddress, TreasuryID: "treasury-1"})
	require.NoError(t, err)
	assert.Len(t, summary.Inserted, 1)
	assert.Equal(t, []string{"http://node:8545"}, dialer.urls)
	assert.Equal(t, 1, dialer.released)
}

func TestServiceRejectsInvalidRequests(t *testing.T) {
	cases := []struct {
		name    string
		req     model.SyncRequest
		message string
	}{
		{
			name:    "missing id",
			req:     model.SyncRequest{TreasuryAddress: testAddress},
			message: "treasuryAddress and treasuryId are required",
		},
		{
			name:    "missing address",
			req:     model.SyncRequest{TreasuryID: "treasury-1"},
			message: "treasuryAddress and treasuryId are required",
		},
		{
			name:    "short address",
			req:     model.SyncRequest{TreasuryAddress: "0x1234", TreasuryID: "treasury-1"},
			message: "Invalid treasury address format",
		},
		{
			name:    "no prefix",
			req:     model.SyncRequest{TreasuryAddress: "9999999999999999999999999999999999999999", TreasuryID: "treasury-1"},
			message: "Invalid treasury address format",
		},
		{
			name:    "rpc override disabled",
			req:     model.SyncRequest{TreasuryAddress: testAddress, TreasuryID: "treasury-1", RPCURL: "http://elsewhere:8545"},
			message: "rpcUrl override is disabled",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dialer := &dialRecorder{chain: newFakeChain(100)}
			store := newMemStore()
			svc := newTestService(ServiceConfig{}, dialer, store)

			_, err := svc.Sync(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Empty(t, dialer.urls, "no connection before validation passes")

			failure := Failure(err)
			assert.False(t, failure.Success)
			assert.Equal(t, tc.message, failure.Error)
			assert.Equal(t, "invalid_argument", failure.Code)
			assert.Empty(t, failure.Details)
		})
	}
}

func TestServiceRPCOverride(t *testing.T) {
	dialer := &dialRecorder{chain: newFakeChain(10)}
	svc := newTestService(ServiceConfig{AllowRPCOverride: true}, dialer, newMemStore())

	_, err := svc.Sync(context.Background(), model.SyncRequest{
		TreasuryAddress: testAddress,
		TreasuryID:      "treasury-1",
		RPCURL:          " http://archive:8545 ",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"http://archive:8545"}, dialer.urls)
}

func TestServiceDialFailure(t *testing.T) {
	dialer := &dialRecorder{err: errors.New("dial tcp: connection refused")}
	store := newMemStore()
	svc := newTestService(ServiceConfig{}, dialer, store)

	_, err := svc.Sync(context.Background(), model.SyncRequest{TreasuryAddress: testAddress, TreasuryID: "treasury-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRPCUnavailable)
	assert.Equal(t, []string{DefaultRPCURL}, dialer.urls)

	failure := Failure(err)
	assert.Equal(t, "rpc_unavailable", failure.Code)
	assert.Equal(t, "RPC error during idle", failure.Error)
	assert.Contains(t, failure.Details, "connection refused")
}

type slowChain struct {
	*fakeChain
}

func (c slowChain) LatestBlockNumber(ctx context.Context) (uint64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestServiceTimeout(t *testing.T) {
	dialer := &dialRecorder{chain: slowChain{newFakeChain(100)}}
	svc := newTestService(ServiceConfig{Timeout: 20 * time.Millisecond}, dialer, newMemStore())

	_, err := svc.Sync(context.Background(), model.SyncRequest{TreasuryAddress: testAddress, TreasuryID: "treasury-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "Sync timed out during fetching", Failure(err).Error)
	assert.Equal(t, 1, dialer.released)
}

func TestFailureRendersUnclassifiedErrors(t *testing.T) {
	failure := Failure(errors.New("boom"))
	assert.Equal(t, "internal", failure.Code)
	assert.Equal(t, "Internal error", failure.Error)
	assert.Equal(t, "boom", failure.Details)
}

func TestStorageFailureRendering(t *testing.T) {
	store := newMemStore()
	store.maxErr = errors.New("db down")
	dialer := &dialRecorder{chain: newFakeChain(100)}
	svc := newTestService(ServiceConfig{}, dialer, store)

	_, err := svc.Sync(context.Background(), model.SyncRequest{TreasuryAddress: testAddress, TreasuryID: "treasury-1"})
	failure := Failure(err)
	assert.Equal(t, "storage_unavailable", failure.Code)
	assert.Equal(t, "Storage error during resolving_cursor", failure.Error)
	assert.Contains(t, failure.Details, "db down")
}
