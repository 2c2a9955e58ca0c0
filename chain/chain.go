// Package chain is the catalogue of blockchains this deployment indexes: their JSON-RPC
// endpoints, confirmation depth, and span-controller ceilings, each overridable per chain via
// environment variables.
package chain

import (
	"fmt"

	"github.com/mikeydub/erc20-holders-indexer/env"
)

// Well-known chain IDs, matching the values used on-wire by eth_chainId.
const (
	Ethereum int64 = 1
	Polygon  int64 = 137
	BSC      int64 = 56
	Arbitrum int64 = 42161
	Optimism int64 = 10
	Base     int64 = 8453
	ZkSync   int64 = 324
)

const (
	defaultMaxSpan        = 2000
	defaultConfirmations  = 10
	defaultPollIntervalMs = 5000
	defaultQPS            = 10
)

var defaultMaxSpanByChain = map[int64]uint64{
	Ethereum: 5000,
	BSC:      3000,
	Polygon:  1000,
	ZkSync:   2000,
}

// Config is the resolved, env-overridden configuration for one chain.
type Config struct {
	ChainID         int64
	RPCURL          string
	Confirmations   uint64
	PollInterval    uint64 // milliseconds
	MaxSpan         uint64
	QPS             int
	Mode            string // "live" or "backfill"
	BackfillStart   uint64
	BackfillTarget  *uint64
}

// ErrUnsupported is returned by Get for a chain ID this deployment hasn't been configured for.
type ErrUnsupported struct {
	ChainID int64
}

func (e ErrUnsupported) Error() string {
	return fmt.Sprintf("chain %d is not supported", e.ChainID)
}

// Registry is the set of chains a deployment has been told to track, read once at startup from
// INDEXER_CHAINS (a comma-separated list of chain IDs).
type Registry struct {
	chains map[int64]Config
}

// Load resolves a Registry from environment variables for the given chain IDs.
func Load(chainIDs []int64) *Registry {
	r := &Registry{chains: make(map[int64]Config, len(chainIDs))}
	for _, id := range chainIDs {
		r.chains[id] = loadConfig(id)
	}
	return r
}

// Get returns the Config for chainID, or ErrUnsupported if this deployment doesn't track it.
func (r *Registry) Get(chainID int64) (Config, error) {
	cfg, ok := r.chains[chainID]
	if !ok {
		return Config{}, ErrUnsupported{ChainID: chainID}
	}
	return cfg, nil
}

// Supported reports whether chainID is tracked by this deployment.
func (r *Registry) Supported(chainID int64) bool {
	_, ok := r.chains[chainID]
	return ok
}

// All returns every chain this deployment tracks.
func (r *Registry) All() []Config {
	out := make([]Config, 0, len(r.chains))
	for _, cfg := range r.chains {
		out = append(out, cfg)
	}
	return out
}

func loadConfig(chainID int64) Config {
	maxSpan := uint64(env.GetInt(chainKey("INDEXER_MAX_SPAN", chainID)))
	if maxSpan == 0 {
		maxSpan = defaultMaxSpanByChain[chainID]
	}
	if maxSpan == 0 {
		maxSpan = uint64(env.GetInt("INDEXER_MAX_SPAN_DEFAULT"))
	}
	if maxSpan == 0 {
		maxSpan = defaultMaxSpan
	}

	confirmations := uint64(env.GetInt(chainKey("CHAIN_POLLER_CONFIRMATIONS", chainID)))
	if confirmations == 0 {
		confirmations = uint64(env.GetInt("CHAIN_POLLER_CONFIRMATIONS"))
	}
	if confirmations == 0 {
		confirmations = defaultConfirmations
	}

	pollInterval := uint64(env.GetInt(chainKey("CHAIN_POLLER_INTERVAL_MS", chainID)))
	if pollInterval == 0 {
		pollInterval = uint64(env.GetInt("CHAIN_POLLER_INTERVAL_MS"))
	}
	if pollInterval == 0 {
		pollInterval = defaultPollIntervalMs
	}

	qps := env.GetInt(chainKey("INDEXER_QPS", chainID))
	if qps == 0 {
		qps = env.GetInt("INDEXER_QPS")
	}
	if qps == 0 {
		qps = defaultQPS
	}

	mode := env.GetString(chainKey("CHAIN_POLLER_MODE", chainID))
	if mode == "" {
		mode = env.GetString("CHAIN_POLLER_MODE")
	}
	if mode == "" {
		mode = "live"
	}

	cfg := Config{
		ChainID:       chainID,
		RPCURL:        env.GetString(chainKey("RPC_URL", chainID)),
		Confirmations: confirmations,
		PollInterval:  pollInterval,
		MaxSpan:       maxSpan,
		QPS:           qps,
		Mode:          mode,
		BackfillStart: uint64(env.GetInt(chainKey("CHAIN_POLLER_START", chainID))),
	}

	if target := env.GetInt(chainKey("CHAIN_POLLER_TARGET", chainID)); target != 0 {
		t := uint64(target)
		cfg.BackfillTarget = &t
	}

	return cfg
}

func chainKey(prefix string, chainID int64) string {
	return fmt.Sprintf("%s_%d", prefix, chainID)
}
