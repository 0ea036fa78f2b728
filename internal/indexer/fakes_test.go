package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"treasurySync/internal/model"
	"treasurySync/internal/storage"
	"treasurySync/internal/treasury"
)

var (
	testTreasury = model.TreasuryRef{
		ID:      "treasury-1",
		Address: common.HexToAddress("0x9999999999999999999999999999999999999999"),
	}
	operatorAddr = common.HexToAddress("0xAAAaAAAAaaAAaaAAaAaAAAAAAAaaaaAaAaaaAAaA")
	recipient    = common.HexToAddress("0xBbbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")
)

type fakeChain struct {
	mu          sync.Mutex
	head        uint64
	headErr     error
	logs        []types.Log
	logsErr     error
	tsErr       error
	timestamps  map[uint64]uint64
	filterCalls []BlockRange
	tsCalls     map[uint64]int
}

func newFakeChain(head uint64, logs ...types.Log) *fakeChain {
	return &fakeChain{
		head:       head,
		logs:       logs,
		timestamps: make(map[uint64]uint64),
		tsCalls:    make(map[uint64]int),
	}
}

func (c *fakeChain) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head, c.headErr
}

func (c *fakeChain) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.filterCalls = append(c.filterCalls, BlockRange{From: fromBlock, To: toBlock})
	if c.logsErr != nil {
		return nil, c.logsErr
	}

	out := make([]types.Log, 0)
	for _, log := range c.logs {
		if log.BlockNumber < fromBlock || log.BlockNumber > toBlock {
			continue
		}
		if !containsAddress(addresses, log.Address) {
			continue
		}
		if len(topic0) > 0 && (len(log.Topics) == 0 || !containsHash(topic0, log.Topics[0])) {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

func (c *fakeChain) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tsCalls[number]++
	if c.tsErr != nil {
		return 0, c.tsErr
	}
	if ts, ok := c.timestamps[number]; ok {
		return ts, nil
	}
	return 1700000000 + number*12, nil
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, item := range list {
		if item == addr {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, hash common.Hash) bool {
	for _, item := range list {
		if item == hash {
			return true
		}
	}
	return false
}

// memStore is an in-memory TransactionStore with the same key semantics as Postgres.
type memStore struct {
	mu        sync.Mutex
	rows      []model.StoredTransaction
	keys      map[model.TransactionKey]struct{}
	maxErr    error
	insertErr func(tx model.StoredTransaction) error
	calls     int
	nextID    int
}

func newMemStore() *memStore {
	return &memStore{keys: make(map[model.TransactionKey]struct{})}
}

func (s *memStore) MaxBlockNumber(_ context.Context, treasuryID string) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxErr != nil {
		return 0, false, s.maxErr
	}

	var maxBlock uint64
	found := false
	for _, row := range s.rows {
		if row.TreasuryID != treasuryID {
			continue
		}
		if !found || row.BlockNumber > maxBlock {
			maxBlock = row.BlockNumber
			found = true
		}
	}
	return maxBlock, found, nil
}

func (s *memStore) InsertTransactions(_ context.Context, txs []model.StoredTransaction) ([]storage.InsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	staged := make([]model.StoredTransaction, 0, len(txs))
	stagedKeys := make(map[model.TransactionKey]struct{})
	outcomes := make([]storage.InsertOutcome, 0, len(txs))
	for _, tx := range txs {
		if s.insertErr != nil {
			if err := s.insertErr(tx); err != nil {
				if errors.Is(err, storage.ErrRecordRejected) {
					outcomes = append(outcomes, storage.InsertOutcome{Row: tx, Status: storage.StatusRejected, Err: err})
					continue
				}
				return nil, err
			}
		}

		key := tx.Key()
		_, stored := s.keys[key]
		_, pending := stagedKeys[key]
		if stored || pending {
			outcomes = append(outcomes, storage.InsertOutcome{Row: tx, Status: storage.StatusDuplicate})
			continue
		}

		s.nextID++
		tx.ID = fmt.Sprintf("row-%d", s.nextID)
		tx.CreatedAt = time.Now().UTC()
		stagedKeys[key] = struct{}{}
		staged = append(staged, tx)
		outcomes = append(outcomes, storage.InsertOutcome{Row: tx, Status: storage.StatusInserted})
	}

	for _, tx := range staged {
		s.keys[tx.Key()] = struct{}{}
		s.rows = append(s.rows, tx)
	}
	return outcomes, nil
}

func (s *memStore) snapshot() []model.StoredTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.StoredTransaction(nil), s.rows...)
}

type failureRecorder struct {
	mu   sync.Mutex
	errs []model.DecodeError
}

func (f *failureRecorder) PutDecodeErrors(errs []model.DecodeError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, errs...)
	return nil
}

func spendLog(block uint64, index uint, txHash string, amount *big.Int, period int64) types.Log {
	parsed, err := treasury.ABI()
	if err != nil {
		panic(err)
	}
	data, err := parsed.Events["Spend"].Inputs.NonIndexed().Pack(amount, big.NewInt(period))
	if err != nil {
		panic(err)
	}
	return treasuryLog(treasury.SpendTopic, block, index, txHash, data)
}

func migrationLog(block uint64, index uint, txHash string, amount *big.Int, period int64, remaining *big.Int) types.Log {
	parsed, err := treasury.ABI()
	if err != nil {
		panic(err)
	}
	data, err := parsed.Events["Migration"].Inputs.NonIndexed().Pack(amount, big.NewInt(period), remaining)
	if err != nil {
		panic(err)
	}
	return treasuryLog(treasury.MigrationTopic, block, index, txHash, data)
}

func treasuryLog(topic0 common.Hash, block uint64, index uint, txHash string, data []byte) types.Log {
	return types.Log{
		Address: testTreasury.Address,
		Topics: []common.Hash{
			topic0,
			common.BytesToHash(operatorAddr.Bytes()),
			common.BytesToHash(recipient.Bytes()),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash(txHash),
		Index:       index,
	}
}

func testRunConfig() RunConfig {
	return RunConfig{
		BatchSize:        2000,
		MaxRetries:       0,
		RetryBackoff:     time.Millisecond,
		TimestampWorkers: 4,
	}
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}
