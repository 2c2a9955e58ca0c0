package rpc

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// DefaultRetryAfterFloor is the minimum wait the client honours for a RateLimited error, used
// whenever the endpoint doesn't hint at a longer one.
var DefaultRetryAfterFloor = time.Second

// rateLimitedSubstrs are messages that signal HTTP 429/503 when a provider doesn't carry it
// as a structured JSON-RPC error code.
var rateLimitedSubstrs = []string{
	"429 too many requests",
	"503 service unavailable",
	"service unavailable",
	"rate limit",
	"too many requests",
}

// blockRangeSubstrs are the messages providers use in place of a structured error code when a
// getLogs call spans too many blocks.
var blockRangeSubstrs = []string{
	"query returned more than",
	"block range too large",
	"exceed max results",
	"block range is too wide",
	"range too large",
	"too large",
	"range",
}

// retryAfterPattern pulls a numeric retry hint (seconds) out of a JSON-RPC error message when
// a provider embeds one in the text instead of an HTTP Retry-After header. go-ethereum's
// ethclient doesn't surface response headers through the errors it returns, so a header-based
// Retry-After can't be read here; this regex is the fallback source of a server hint.
var retryAfterPattern = regexp.MustCompile(`retry[-_ ]?after[^0-9]{0,5}(\d+)`)

// RateLimited means the call was rejected because it exceeded a provider's request rate. The
// caller should wait retryAfter (if it's nonzero) before retrying.
type RateLimited struct {
	RetryAfter time.Duration
}

func (e RateLimited) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// BlockRangeTooLarge means a getLogs call spanned more blocks than the provider is willing to
// scan in one request. The caller should shrink its span and retry.
type BlockRangeTooLarge struct {
	Err error
}

func (e BlockRangeTooLarge) Error() string {
	return e.Err.Error()
}

// Transport means the call failed for a reason unrelated to rate limiting or span size:
// a dropped connection, a provider outage, a malformed response.
type Transport struct {
	Err error
}

func (e Transport) Error() string {
	return e.Err.Error()
}

func (e Transport) Unwrap() error {
	return e.Err
}

// Classify maps a raw error from an ethclient call into one of RateLimited, BlockRangeTooLarge,
// or Transport. It is the single place that inspects provider-specific error text.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	if code, ok := rpcErrorCode(err); ok {
		switch code {
		case -32005, -32016:
			return RateLimited{RetryAfter: retryAfterHint(msg)}
		case -32062, -32602:
			return BlockRangeTooLarge{Err: err}
		}
	}

	if strings.Contains(lower, "413") {
		return BlockRangeTooLarge{Err: err}
	}

	for _, substr := range rateLimitedSubstrs {
		if strings.Contains(lower, substr) {
			return RateLimited{RetryAfter: retryAfterHint(msg)}
		}
	}

	for _, substr := range blockRangeSubstrs {
		if strings.Contains(lower, substr) || strings.Contains(lower, "-32062") || strings.Contains(lower, "-32602") {
			return BlockRangeTooLarge{Err: err}
		}
	}

	return Transport{Err: err}
}

// retryAfterHint extracts a server-hinted wait from a JSON-RPC error message, floored at
// DefaultRetryAfterFloor the way the live HTTP Retry-After header would be.
func retryAfterHint(msg string) time.Duration {
	hint := DefaultRetryAfterFloor
	if m := retryAfterPattern.FindStringSubmatch(strings.ToLower(msg)); m != nil {
		if secs, err := strconv.Atoi(m[1]); err == nil {
			if d := time.Duration(secs) * time.Second; d > hint {
				hint = d
			}
		}
	}
	return hint
}

// NewEthClient dials the RPC endpoint at url, giving up after 10 seconds.
func NewEthClient(url string) *ethclient.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rpcClient, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		panic(err)
	}

	return ethclient.NewClient(rpcClient)
}

// GetBlockNumber returns the chain's current block height.
func GetBlockNumber(ctx context.Context, ethClient *ethclient.Client) (uint64, error) {
	height, err := ethClient.BlockNumber(ctx)
	if err != nil {
		return 0, Classify(err)
	}
	return height, nil
}

// GetLogs returns log events for the given block range, optionally narrowed to a single
// contract address, and topic filters.
func GetLogs(ctx context.Context, ethClient *ethclient.Client, fromBlock, toBlock *big.Int, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error) {
	logs, err := ethClient.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Addresses: addresses,
		Topics:    topics,
	})
	if err != nil {
		return nil, Classify(err)
	}
	return logs, nil
}

// rpcErrorCode extracts a provider's JSON-RPC error code, if the error carries one.
func rpcErrorCode(err error) (int, bool) {
	if rpcErr, ok := err.(gethrpc.Error); ok {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}
