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
	"github.com/gammazero/workerpool"
	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"

	"github.com/mikeydub/erc20-holders-indexer/chain"
	"github.com/mikeydub/erc20-holders-indexer/service/logger"
	"github.com/mikeydub/erc20-holders-indexer/service/persist/postgres"
	"github.com/mikeydub/erc20-holders-indexer/service/rpc"
)

// InitialLookback is how many blocks behind the confirmed tip a token with no prior cursor
// starts from, overridable via INITIAL_LOOKBACK_BLOCKS.
var InitialLookback uint64 = 50000

// DefaultBackoff is the base delay applied after a Transport error, overridable via
// INDEXER_BACKOFF_MS.
var DefaultBackoff = 1500 * time.Millisecond

// backfillPoolSize bounds how many tokens on one chain catch up concurrently during backfill.
const backfillPoolSize = 4

// The func fields below let a ChainWorker's RPC and persistence dependencies be swapped for
// fakes in tests without standing up a client or a database.
type getLogsFunc func(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]types.Log, error)
type getBlockNumberFunc func(ctx context.Context) (uint64, error)
type listTrackedFunc func(ctx context.Context, chainID int64) ([]postgres.TrackedToken, error)
type getCursorFunc func(ctx context.Context, chainID int64, tokenAddress string) (postgres.TrackedToken, error)
type applyBatchFunc func(ctx context.Context, chainID int64, tokenAddress string, deltas map[string]*big.Int, fromBlock, toBlock int64) error
type quarantineFunc func(ctx context.Context, chainID int64, tokenAddress, reason string) error

// ChainWorker runs the Chain Poller control loop for one chain: it advances every tracked
// token's cursor under rate, confirmation, and span constraints.
type ChainWorker struct {
	cfg     chain.Config
	span    *SpanController
	backoff time.Duration
	once    bool

	getLogs        getLogsFunc
	getBlockNumber getBlockNumberFunc
	listTracked    listTrackedFunc
	getCursor      getCursorFunc
	applyBatch     applyBatchFunc
	quarantine     quarantineFunc
}

// NewChainWorker wires a worker for cfg.ChainID against client, backed by repos. When once is
// true, a live-mode worker runs a single round-robin pass over its tracked tokens and returns,
// instead of ticking forever (the HOLDERS_INDEXER_ONCE behaviour).
func NewChainWorker(cfg chain.Config, client *rpc.Client, repos *postgres.Repositories, once bool) *ChainWorker {
	return &ChainWorker{
		cfg:            cfg,
		span:           NewSpanController(cfg.MaxSpan),
		backoff:        DefaultBackoff,
		once:           once,
		getLogs:        client.GetLogs,
		getBlockNumber: client.GetBlockNumber,
		listTracked:    repos.CursorStore.ListTrackedByChain,
		getCursor:      repos.CursorStore.GetCursor,
		applyBatch:     repos.ApplyBatch,
		quarantine:     repos.CursorStore.Quarantine,
	}
}

// Run drives the worker until ctx is cancelled, dispatching to the configured mode.
func (w *ChainWorker) Run(ctx context.Context) error {
	if w.cfg.Mode == "backfill" {
		return w.runBackfill(ctx)
	}
	return w.runLive(ctx)
}

// runLive ticks indefinitely, round-robining one batch per tracked token each pass, and sleeps
// pollInterval whenever a pass finds nothing to do.
func (w *ChainWorker) runLive(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(w.cfg.PollInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		tip, err := w.confirmedTip(ctx)
		if err != nil {
			w.sleepOutError(ctx, err)
			continue
		}

		tokens, err := w.listTracked(ctx, w.cfg.ChainID)
		if err != nil {
			return DatabaseUnavailable{Err: err}
		}

		didWork := false
		for _, token := range tokens {
			if token.QuarantineReason != "" {
				continue
			}
			ok, err := w.processToken(ctx, token, tip, nil)
			if err != nil {
				w.sleepOutError(ctx, err)
			}
			didWork = didWork || ok
		}

		if w.once {
			return nil
		}

		if didWork {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runBackfill drains every tracked token on this chain from its configured startBlock up to an
// optional targetBlock, one bounded workerpool slot per token so distinct tokens catch up
// concurrently without two writers ever touching the same (chain, token) rows.
func (w *ChainWorker) runBackfill(ctx context.Context) error {
	tokens, err := w.listTracked(ctx, w.cfg.ChainID)
	if err != nil {
		return DatabaseUnavailable{Err: err}
	}

	pool := workerpool.New(backfillPoolSize)

	var mu sync.Mutex
	var firstErr error

	for _, token := range tokens {
		token := token
		if token.QuarantineReason != "" {
			continue
		}
		pool.Submit(func() {
			if err := w.drainToken(ctx, token); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
	}

	pool.StopWait()
	return firstErr
}

// drainToken runs batches for one token until it has nothing left to do (tip or targetBlock
// reached), sleeping out RateLimited/Transport errors rather than aborting the whole drain.
func (w *ChainWorker) drainToken(ctx context.Context, token postgres.TrackedToken) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		tip, err := w.confirmedTip(ctx)
		if err != nil {
			w.sleepOutError(ctx, err)
			continue
		}
		if w.cfg.BackfillTarget != nil && *w.cfg.BackfillTarget < tip {
			tip = *w.cfg.BackfillTarget
		}

		didWork, err := w.processToken(ctx, token, tip, w.cfg.BackfillTarget)
		if err != nil {
			var dbErr DatabaseUnavailable
			if errors.As(err, &dbErr) {
				return err
			}
			w.sleepOutError(ctx, err)
			continue
		}
		if !didWork {
			return nil
		}

		updated, err := w.getCursor(ctx, token.ChainID, token.TokenAddress)
		if err != nil {
			return DatabaseUnavailable{Err: err}
		}
		if updated.QuarantineReason != "" {
			return nil
		}
		token = updated
	}
}

// confirmedTip returns the chain height minus the configured confirmation depth, floored at 0.
func (w *ChainWorker) confirmedTip(ctx context.Context) (uint64, error) {
	height, err := w.getBlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	if height < w.cfg.Confirmations {
		return 0, nil
	}
	return height - w.cfg.Confirmations, nil
}

// resolveStart computes the next batch's starting block for token: a pending fromBlock (set by
// either a fresh tracked_tokens row or an admin reindex) takes priority, falling back to
// toBlock+1 for a token mid-sync. A token with neither falls back to the chain's configured
// CHAIN_POLLER_START in backfill mode (a one-shot run from an explicit startBlock), or to
// tip-InitialLookback in live mode.
func (w *ChainWorker) resolveStart(token postgres.TrackedToken, tip uint64) uint64 {
	if token.FromBlock != nil {
		return uint64(*token.FromBlock)
	}
	if token.ToBlock != nil {
		return uint64(*token.ToBlock) + 1
	}
	if w.cfg.Mode == "backfill" {
		return w.cfg.BackfillStart
	}
	if tip < InitialLookback {
		return 0
	}
	return tip - InitialLookback
}

// processToken attempts one batch for token, from its cursor up to min(tip, target). It reports
// whether there was work to do, even when the batch ultimately failed, so the caller's idle
// decision stays accurate.
func (w *ChainWorker) processToken(ctx context.Context, token postgres.TrackedToken, tip uint64, target *uint64) (bool, error) {
	ctx = logger.WithChainWorkerFields(ctx, token.ChainID, token.TokenAddress)

	start := w.resolveStart(token, tip)
	end := tip
	if target != nil && *target < end {
		end = *target
	}
	if start > end {
		return false, nil
	}

	remaining := end - start + 1
	addr := common.HexToAddress(token.TokenAddress)
	runID := ksuid.New().String()
	startedAt := time.Now()

	span := w.span.InitialSpan(token.ChainID, remaining)
	batchEnd := start + span - 1

	var logs []types.Log
	var err error

	for attempt := 0; attempt < MaxSpanRetries; attempt++ {
		logs, err = w.getLogs(ctx, addr, start, batchEnd)
		if err == nil {
			break
		}

		var tooLarge rpc.BlockRangeTooLarge
		if errors.As(err, &tooLarge) {
			next := w.span.Shrink(token.ChainID, span, remaining)
			if next == span {
				return true, fmt.Errorf("span controller floored at %d blocks for token %s on chain %d: %w", next, token.TokenAddress, token.ChainID, err)
			}
			span = next
			batchEnd = start + span - 1
			select {
			case <-ctx.Done():
				return true, ctx.Err()
			case <-time.After(SpanRetryDelay):
			}
			continue
		}

		var rateLimited rpc.RateLimited
		if errors.As(err, &rateLimited) {
			// Propagate to the outer loop, which sleeps out RetryAfter and continues.
			return true, err
		}

		// Transport: back off and retry within the same bounded attempt budget the span
		// controller uses, rather than looping unboundedly.
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case <-time.After(w.backoff):
		}
	}
	if err != nil {
		return true, err
	}

	transfers := DecodeTransfers(logs)
	deltas := AggregateDeltas(transfers)

	if err := w.applyBatch(ctx, token.ChainID, token.TokenAddress, deltas, int64(batchEnd+1), int64(batchEnd)); err != nil {
		var negBal postgres.ErrNegativeBalance
		if errors.As(err, &negBal) {
			if qerr := w.quarantine(ctx, token.ChainID, token.TokenAddress, negBal.Error()); qerr != nil {
				logger.For(ctx).WithError(qerr).Error("could not quarantine token after negative balance")
			}
			logger.For(ctx).WithError(negBal).Error("quarantined token after negative balance")
			return true, nil
		}
		return true, logger.NewLoggedError("applying batch failed", DatabaseUnavailable{Err: err})
	}

	w.span.Remember(token.ChainID, span)
	logger.For(ctx).WithFields(logrus.Fields{
		"run_id":      runID,
		"tip":         tip,
		"from_block":  start,
		"to_block":    batchEnd,
		"span":        span,
		"logs":        len(logs),
		"transfers":   len(transfers),
		"duration_ms": time.Since(startedAt).Milliseconds(),
	}).Info("chain poller batch applied")

	return true, nil
}

// sleepOutError sleeps out a RateLimited hint, or the worker's base backoff for anything else,
// logging the error first.
func (w *ChainWorker) sleepOutError(ctx context.Context, err error) {
	wait := w.backoff
	var rateLimited rpc.RateLimited
	if errors.As(err, &rateLimited) {
		wait = rateLimited.RetryAfter
	}

	logger.For(ctx).WithError(err).WithField("chain_id", w.cfg.ChainID).Warn("chain poller iteration failed")

	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}
