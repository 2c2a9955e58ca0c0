package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikeydub/erc20-holders-indexer/service/logger"
)

// Manager owns one ChainWorker per configured chain, running each on its own goroutine with
// panic recovery so a crash in one chain's poller never takes down the others.
type Manager struct {
	workers []*ChainWorker
}

// NewManager returns a Manager driving every worker in workers.
func NewManager(workers []*ChainWorker) *Manager {
	return &Manager{workers: workers}
}

// Run starts every worker and blocks until either every worker has finished its mode (a
// backfill that caught up, a single --once pass) or ctx is cancelled and the workers have
// drained, bounded by drainTimeout.
func (m *Manager) Run(ctx context.Context, drainTimeout time.Duration) {
	var wg sync.WaitGroup
	for _, worker := range m.workers {
		wg.Add(1)
		go func(w *ChainWorker) {
			defer wg.Done()
			recoverAndRestart(ctx, w)
		}(worker)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	select {
	case <-done:
	case <-time.After(drainTimeout):
		logger.For(ctx).Warn("drain timeout elapsed, exiting with chain workers still in flight")
	}
}

// recoverAndRestart runs w.Run, logging and restarting it after a panic or an unrecoverable
// error instead of letting either take down the process. A worker that returns cleanly has
// finished its mode and is not restarted.
func recoverAndRestart(ctx context.Context, w *ChainWorker) {
	for {
		err := runRecovered(ctx, w)

		if ctx.Err() != nil || err == nil {
			return
		}
		logger.For(ctx).WithError(err).WithField("chain_id", w.cfg.ChainID).Error("chain worker exited, restarting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.backoff):
		}
	}
}

func runRecovered(ctx context.Context, w *ChainWorker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chain worker panicked: %v", r)
		}
	}()
	return w.Run(ctx)
}
