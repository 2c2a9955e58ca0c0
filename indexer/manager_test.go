package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/mikeydub/erc20-holders-indexer/chain"
	"github.com/mikeydub/erc20-holders-indexer/service/persist/postgres"
)

func TestManager_returnsWhenAllWorkersFinishTheirMode(t *testing.T) {
	w := testWorker(chain.Config{ChainID: 1, MaxSpan: 1000, Mode: "backfill"})
	w.listTracked = func(ctx context.Context, chainID int64) ([]postgres.TrackedToken, error) {
		return nil, nil
	}

	m := NewManager([]*ChainWorker{w})

	done := make(chan struct{})
	go func() {
		m.Run(context.Background(), time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run must return once every worker has completed, without waiting for a signal")
	}
}

func TestManager_drainsOnCancellation(t *testing.T) {
	w := testWorker(chain.Config{ChainID: 1, MaxSpan: 1000, Mode: "live", PollInterval: 10})
	w.getBlockNumber = func(ctx context.Context) (uint64, error) {
		return 1000, nil
	}

	m := NewManager([]*ChainWorker{w})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Second)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run must drain and return promptly after cancellation")
	}
}
