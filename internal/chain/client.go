package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/ratelimit"

	"treasurySync/internal/metrics"
)

// ErrBlockNotFound is returned when the node does not (yet) know a block.
var ErrBlockNotFound = errors.New("block not found")

// Options tunes the client transport.
type Options struct {
	// RequestsPerSecond caps outgoing calls. Zero disables the limit.
	RequestsPerSecond int
	Metrics           *metrics.RPCClient
}

// Client wraps go-ethereum RPC and provides the calls used by the sync engine.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	limiter   ratelimit.Limiter
	metrics   *metrics.RPCClient
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string, opts Options) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.NewUnlimited()
	if opts.RequestsPerSecond > 0 {
		limiter = ratelimit.New(opts.RequestsPerSecond)
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		limiter:   limiter,
		metrics:   opts.Metrics,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// LatestBlockNumber returns the latest block number (eth_blockNumber).
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	started := c.begin()
	number, err := c.ethClient.BlockNumber(ctx)
	c.metrics.Observe("eth_blockNumber", err, started)
	return number, err
}

// BlockTimestamp returns the unix timestamp of a block (eth_getBlockByNumber, no txs).
// Only the timestamp field is decoded so chains with non-standard headers still work.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	started := c.begin()

	var head *struct {
		Timestamp hexutil.Uint64 `json:"timestamp"`
	}
	err := c.rpcClient.CallContext(ctx, &head, "eth_getBlockByNumber", hexutil.EncodeUint64(number), false)
	if err == nil && head == nil {
		err = fmt.Errorf("%w: %d", ErrBlockNotFound, number)
	}
	c.metrics.Observe("eth_getBlockByNumber", err, started)
	if err != nil {
		return 0, err
	}
	return uint64(head.Timestamp), nil
}

// FilterLogs returns logs in the given range for addresses and topic0 filters (eth_getLogs).
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}

	started := c.begin()
	logs, err := c.ethClient.FilterLogs(ctx, query)
	c.metrics.Observe("eth_getLogs", err, started)
	return logs, err
}

func (c *Client) begin() time.Time {
	if c.limiter != nil {
		c.limiter.Take()
	}
	return time.Now()
}
