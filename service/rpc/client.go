package rpc

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mikeydub/erc20-holders-indexer/service/tracing"
)

// TransferLogTopic is the first topic every ERC-20 Transfer(address,address,uint256) log
// carries; GetLogs filters on it so a chain worker never has to pass topics itself.
var TransferLogTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// Limiter enforces a QPS floor for one RPC endpoint, keyed by endpoint name. Both the
// Redis-backed *limiters.KeyRateLimiter (service/limiters) and the in-process fallback below
// satisfy it, so a chain worker can be handed either without caring which.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// minDelayLimiter is the in-process QPS floor used when no distributed limiter is configured:
// it sleeps out ceil(1000/qps) between calls sharing a key, per endpoint.
type minDelayLimiter struct {
	mu       sync.Mutex
	minDelay time.Duration
	last     map[string]time.Time
}

// NewMinDelayLimiter returns a Limiter enforcing a floor of ceil(1000/qps) milliseconds
// between calls to the same key. qps <= 0 falls back to 10.
func NewMinDelayLimiter(qps int) Limiter {
	if qps <= 0 {
		qps = 10
	}
	return NewFixedDelayLimiter(time.Duration((1000+qps-1)/qps) * time.Millisecond)
}

// NewFixedDelayLimiter returns a Limiter enforcing an explicit minimum delay between calls to
// the same key, the INDEXER_RPC_MIN_DELAY_MS way of stating the floor directly instead of
// deriving it from a QPS figure.
func NewFixedDelayLimiter(minDelay time.Duration) Limiter {
	return &minDelayLimiter{
		minDelay: minDelay,
		last:     make(map[string]time.Time),
	}
}

func (l *minDelayLimiter) Wait(ctx context.Context, key string) error {
	l.mu.Lock()
	wait := l.minDelay - time.Since(l.last[key])
	l.mu.Unlock()

	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	l.mu.Lock()
	l.last[key] = time.Now()
	l.mu.Unlock()
	return nil
}

// Client is a JSON-RPC client bound to one endpoint, rate-limited by a private Limiter.
// The bucket it holds is never shared with the client another chain worker owns, even when two
// chains happen to point at the same provider URL, matching the "private to the poller that
// owns the endpoint" resource policy.
type Client struct {
	eth      *ethclient.Client
	endpoint string
	limiter  Limiter
	timeout  time.Duration
}

// NewClient wraps eth with rate limiting keyed by endpoint. A nil limiter falls back to an
// in-process 10 QPS floor.
func NewClient(eth *ethclient.Client, endpoint string, limiter Limiter) *Client {
	if limiter == nil {
		limiter = NewMinDelayLimiter(10)
	}
	return &Client{eth: eth, endpoint: endpoint, limiter: limiter, timeout: 30 * time.Second}
}

// GetBlockNumber returns the chain's current block height, waiting on the QPS floor first. A
// RateLimited error is returned as-is rather than retried here: the chain poller's outer loop
// is the one place that knows how to sleep out RetryAfter and continue, per the poller's
// documented RateLimited-propagates-to-the-outer-loop architecture.
func (c *Client) GetBlockNumber(ctx context.Context) (uint64, error) {
	if err := c.limiter.Wait(ctx, c.endpoint); err != nil {
		return 0, err
	}
	span, ctx := tracing.StartSpan(ctx, "rpc.getBlockNumber", c.endpoint)
	defer tracing.FinishSpan(span)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return GetBlockNumber(ctx, c.eth)
}

// GetLogs returns Transfer logs for token across [fromBlock, toBlock], waiting on the QPS
// floor first. Like GetBlockNumber, a RateLimited error is surfaced immediately instead of
// being retried internally, so the caller's RetryAfter hint is never discarded in favor of a
// fixed backoff schedule.
func (c *Client) GetLogs(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]types.Log, error) {
	if err := c.limiter.Wait(ctx, c.endpoint); err != nil {
		return nil, err
	}
	span, ctx := tracing.StartSpan(ctx, "rpc.getLogs", c.endpoint)
	tracing.AddEventDataToSpan(span, map[string]interface{}{
		"token":      token.Hex(),
		"from_block": fromBlock,
		"to_block":   toBlock,
	})
	defer tracing.FinishSpan(span)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return GetLogs(ctx,
		c.eth,
		new(big.Int).SetUint64(fromBlock),
		new(big.Int).SetUint64(toBlock),
		[]common.Address{token},
		[][]common.Hash{{TransferLogTopic}},
	)
}
