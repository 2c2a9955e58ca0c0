package indexer

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeydub/erc20-holders-indexer/chain"
	"github.com/mikeydub/erc20-holders-indexer/service/persist/postgres"
	"github.com/mikeydub/erc20-holders-indexer/service/rpc"
)

const testTokenAddr = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

// testWorker builds a ChainWorker with inert fakes for every dependency, which individual tests
// override as needed.
func testWorker(cfg chain.Config) *ChainWorker {
	return &ChainWorker{
		cfg:     cfg,
		span:    NewSpanController(cfg.MaxSpan),
		backoff: time.Millisecond,
		getLogs: func(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]types.Log, error) {
			return nil, nil
		},
		getBlockNumber: func(ctx context.Context) (uint64, error) {
			return 0, nil
		},
		listTracked: func(ctx context.Context, chainID int64) ([]postgres.TrackedToken, error) {
			return nil, nil
		},
		getCursor: func(ctx context.Context, chainID int64, tokenAddress string) (postgres.TrackedToken, error) {
			return postgres.TrackedToken{}, nil
		},
		applyBatch: func(ctx context.Context, chainID int64, tokenAddress string, deltas map[string]*big.Int, fromBlock, toBlock int64) error {
			return nil
		},
		quarantine: func(ctx context.Context, chainID int64, tokenAddress, reason string) error {
			return nil
		},
	}
}

func trackedAt(fromBlock int64) postgres.TrackedToken {
	return postgres.TrackedToken{ChainID: 1, TokenAddress: testTokenAddr, FromBlock: &fromBlock}
}

func TestChainWorker_processToken_shrinksSpanAfterBlockRangeTooLarge(t *testing.T) {
	w := testWorker(chain.Config{ChainID: 1, MaxSpan: 1000})

	var requestedSpans []uint64
	w.getLogs = func(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]types.Log, error) {
		span := toBlock - fromBlock + 1
		requestedSpans = append(requestedSpans, span)
		if span > 500 {
			return nil, rpc.BlockRangeTooLarge{Err: errors.New("block range too large")}
		}
		return nil, nil
	}

	var appliedFrom, appliedTo int64
	w.applyBatch = func(ctx context.Context, chainID int64, tokenAddress string, deltas map[string]*big.Int, fromBlock, toBlock int64) error {
		appliedFrom, appliedTo = fromBlock, toBlock
		return nil
	}

	didWork, err := w.processToken(context.Background(), trackedAt(1), 10000, nil)
	require.NoError(t, err)
	assert.True(t, didWork)

	assert.Equal(t, []uint64{1000, 500}, requestedSpans, "expected one rejected attempt then a halved retry")
	assert.EqualValues(t, 501, appliedFrom, "cursor fromBlock must be the block after the applied range")
	assert.EqualValues(t, 500, appliedTo)
	assert.EqualValues(t, 500, w.span.InitialSpan(1, 10000), "expected the shrunk span to be remembered for the next batch")
}

func TestChainWorker_processToken_spanRetriesAreBounded(t *testing.T) {
	w := testWorker(chain.Config{ChainID: 1, MaxSpan: 1000})

	calls := 0
	w.getLogs = func(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]types.Log, error) {
		calls++
		return nil, rpc.BlockRangeTooLarge{Err: errors.New("block range too large")}
	}
	w.applyBatch = func(ctx context.Context, chainID int64, tokenAddress string, deltas map[string]*big.Int, fromBlock, toBlock int64) error {
		t.Fatal("applyBatch must not run when every fetch fails")
		return nil
	}

	_, err := w.processToken(context.Background(), trackedAt(1), 10000, nil)
	assert.Error(t, err, "a batch that never fits must surface its error")
	assert.LessOrEqual(t, calls, MaxSpanRetries)
}

func TestChainWorker_processToken_propagatesRateLimited(t *testing.T) {
	w := testWorker(chain.Config{ChainID: 1, MaxSpan: 1000})

	calls := 0
	w.getLogs = func(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]types.Log, error) {
		calls++
		return nil, rpc.RateLimited{RetryAfter: 2 * time.Second}
	}
	w.applyBatch = func(ctx context.Context, chainID int64, tokenAddress string, deltas map[string]*big.Int, fromBlock, toBlock int64) error {
		t.Fatal("applyBatch must not run on a rate-limited fetch")
		return nil
	}

	didWork, err := w.processToken(context.Background(), trackedAt(1), 10000, nil)
	assert.True(t, didWork)

	var rateLimited rpc.RateLimited
	require.ErrorAs(t, err, &rateLimited, "RateLimited must reach the outer loop untouched")
	assert.Equal(t, 2*time.Second, rateLimited.RetryAfter, "the server's retry hint must survive propagation")
	assert.Equal(t, 1, calls, "a rate-limited fetch must not be retried inside the batch loop")
}

func TestChainWorker_processToken_quarantinesOnNegativeBalance(t *testing.T) {
	w := testWorker(chain.Config{ChainID: 1, MaxSpan: 1000})

	from := common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	w.getLogs = func(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]types.Log, error) {
		return []types.Log{transferLog(from, to, big.NewInt(1), false)}, nil
	}
	w.applyBatch = func(ctx context.Context, chainID int64, tokenAddress string, deltas map[string]*big.Int, fromBlock, toBlock int64) error {
		return postgres.ErrNegativeBalance{
			ChainID:       chainID,
			TokenAddress:  tokenAddress,
			HolderAddress: "0xdddddddddddddddddddddddddddddddddddddddd",
			Resulting:     big.NewInt(-1),
		}
	}

	var quarantined string
	w.quarantine = func(ctx context.Context, chainID int64, tokenAddress, reason string) error {
		quarantined = tokenAddress
		return nil
	}

	didWork, err := w.processToken(context.Background(), trackedAt(1), 10000, nil)
	assert.True(t, didWork)
	assert.NoError(t, err, "a quarantined token is handled locally, not surfaced to the loop")
	assert.Equal(t, testTokenAddr, quarantined)
}

func TestChainWorker_processToken_noWorkWhenCaughtUp(t *testing.T) {
	w := testWorker(chain.Config{ChainID: 1, MaxSpan: 1000})

	didWork, err := w.processToken(context.Background(), trackedAt(101), 100, nil)
	assert.NoError(t, err)
	assert.False(t, didWork, "a cursor past the confirmed tip has nothing to do")
}

func TestChainWorker_resolveStart_prefersPendingFromBlock(t *testing.T) {
	w := testWorker(chain.Config{ChainID: 1})

	fromBlock, toBlock := int64(42), int64(90)
	token := postgres.TrackedToken{ChainID: 1, TokenAddress: testTokenAddr, FromBlock: &fromBlock, ToBlock: &toBlock}
	assert.EqualValues(t, 42, w.resolveStart(token, 100000))
}

func TestChainWorker_resolveStart_resumesAfterLastApplied(t *testing.T) {
	w := testWorker(chain.Config{ChainID: 1})

	toBlock := int64(90)
	token := postgres.TrackedToken{ChainID: 1, TokenAddress: testTokenAddr, ToBlock: &toBlock}
	assert.EqualValues(t, 91, w.resolveStart(token, 100000))
}

func TestChainWorker_resolveStart_appliesInitialLookbackWhenUnstarted(t *testing.T) {
	w := testWorker(chain.Config{ChainID: 1, Mode: "live"})

	token := postgres.TrackedToken{ChainID: 1, TokenAddress: testTokenAddr}
	assert.EqualValues(t, 100000-InitialLookback, w.resolveStart(token, 100000))
	assert.EqualValues(t, 0, w.resolveStart(token, 10), "a tip inside the lookback window starts at genesis")
}

func TestChainWorker_resolveStart_usesConfiguredStartInBackfill(t *testing.T) {
	w := testWorker(chain.Config{ChainID: 1, Mode: "backfill", BackfillStart: 12345})

	token := postgres.TrackedToken{ChainID: 1, TokenAddress: testTokenAddr}
	assert.EqualValues(t, 12345, w.resolveStart(token, 100000))
}

func TestChainWorker_runLive_onceRunsASinglePass(t *testing.T) {
	w := testWorker(chain.Config{ChainID: 1, MaxSpan: 1000, Mode: "live", PollInterval: 5000})
	w.once = true

	passes := 0
	w.getBlockNumber = func(ctx context.Context) (uint64, error) {
		return 1000, nil
	}
	w.listTracked = func(ctx context.Context, chainID int64) ([]postgres.TrackedToken, error) {
		passes++
		return nil, nil
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Equal(t, 1, passes)
	case <-time.After(2 * time.Second):
		t.Fatal("a once-mode worker must return after one pass")
	}
}

func TestChainWorker_runBackfill_terminatesAtTarget(t *testing.T) {
	target := uint64(200)
	w := testWorker(chain.Config{ChainID: 1, MaxSpan: 1000, Mode: "backfill", BackfillTarget: &target})

	cursor := trackedAt(1)
	w.getBlockNumber = func(ctx context.Context) (uint64, error) {
		return 100000, nil
	}
	w.listTracked = func(ctx context.Context, chainID int64) ([]postgres.TrackedToken, error) {
		return []postgres.TrackedToken{cursor}, nil
	}
	w.getCursor = func(ctx context.Context, chainID int64, tokenAddress string) (postgres.TrackedToken, error) {
		return cursor, nil
	}
	w.applyBatch = func(ctx context.Context, chainID int64, tokenAddress string, deltas map[string]*big.Int, fromBlock, toBlock int64) error {
		cursor = postgres.TrackedToken{ChainID: chainID, TokenAddress: tokenAddress, FromBlock: &fromBlock, ToBlock: &toBlock}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
		require.NotNil(t, cursor.ToBlock)
		assert.EqualValues(t, target, *cursor.ToBlock, "backfill must stop exactly at the target block")
	case <-time.After(2 * time.Second):
		t.Fatal("a backfill worker must terminate once the target is reached")
	}
}
