package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v4"

	"github.com/mikeydub/erc20-holders-indexer/db/gen/indexerdb"
)

// ErrTokenNotTracked is returned when a (chainID, tokenAddress) pair has no tracked_tokens row.
type ErrTokenNotTracked struct {
	ChainID      int64
	TokenAddress string
}

func (e ErrTokenNotTracked) Error() string {
	return fmt.Sprintf("token %s on chain %d is not tracked", e.TokenAddress, e.ChainID)
}

// TrackedToken mirrors indexerdb.TrackedToken with nullable columns surfaced as plain values.
type TrackedToken struct {
	ChainID          int64
	TokenAddress     string
	FromBlock        *int64
	ToBlock          *int64
	QuarantineReason string
}

// CursorStore owns the tracked_tokens table: which tokens are indexed on which chain, and
// the last block range each one has fully caught up to.
type CursorStore struct {
	queries *indexerdb.Queries
}

func NewCursorStore(queries *indexerdb.Queries) *CursorStore {
	return &CursorStore{queries: queries}
}

// ListTracked returns every tracked token across all chains, in chain/address order.
func (c *CursorStore) ListTracked(ctx context.Context) ([]TrackedToken, error) {
	rows, err := c.queries.ListTracked(ctx)
	if err != nil {
		return nil, err
	}
	return toTrackedTokens(rows), nil
}

// ListTrackedByChain returns the tracked tokens for a single chain.
func (c *CursorStore) ListTrackedByChain(ctx context.Context, chainID int64) ([]TrackedToken, error) {
	rows, err := c.queries.ListTrackedByChain(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return toTrackedTokens(rows), nil
}

// GetCursor returns the current fromBlock/toBlock cursor for a tracked token.
func (c *CursorStore) GetCursor(ctx context.Context, chainID int64, tokenAddress string) (TrackedToken, error) {
	row, err := c.queries.GetCursor(ctx, chainID, tokenAddress)
	if err == pgx.ErrNoRows {
		return TrackedToken{}, ErrTokenNotTracked{ChainID: chainID, TokenAddress: tokenAddress}
	}
	if err != nil {
		return TrackedToken{}, err
	}
	return toTrackedToken(row), nil
}

// UpsertCursor advances the stored fromBlock/toBlock for a tracked token. Pass queries derived
// from a transaction (via WithTx) so the cursor move commits atomically with the balance deltas
// it covers.
func (c *CursorStore) UpsertCursor(ctx context.Context, queries *indexerdb.Queries, chainID int64, tokenAddress string, fromBlock, toBlock int64) error {
	if queries == nil {
		queries = c.queries
	}
	return queries.UpsertCursor(ctx, indexerdb.UpsertCursorParams{
		ChainID:      chainID,
		TokenAddress: tokenAddress,
		FromBlock:    sql.NullInt64{Int64: fromBlock, Valid: true},
		ToBlock:      sql.NullInt64{Int64: toBlock, Valid: true},
	})
}

// Quarantine marks a tracked token as quarantined, removing it from the live poll rotation.
func (c *CursorStore) Quarantine(ctx context.Context, chainID int64, tokenAddress, reason string) error {
	return c.queries.QuarantineToken(ctx, chainID, tokenAddress, reason)
}

// EnqueueReindex marks a token as tracked, clearing any prior quarantine. If the token is new,
// a fresh tracked_tokens row is created with fromBlock (nil leaves it NULL, so the poller
// applies its initial-lookback policy). If it already exists, a non-nil fromBlock rewinds its
// cursor so the next poll re-derives balances from there; a nil fromBlock leaves the existing
// cursor untouched, so a bare quarantine-clear never loses indexing progress.
func (c *CursorStore) EnqueueReindex(ctx context.Context, queries *indexerdb.Queries, chainID int64, tokenAddress string, fromBlock *int64) error {
	if queries == nil {
		queries = c.queries
	}

	param := sql.NullInt64{}
	if fromBlock != nil {
		param = sql.NullInt64{Int64: *fromBlock, Valid: true}
	}

	if err := queries.EnqueueReindexInsert(ctx, indexerdb.EnqueueReindexInsertParams{
		ChainID:      chainID,
		TokenAddress: tokenAddress,
		FromBlock:    param,
	}); err != nil {
		return err
	}

	return queries.EnqueueReindexUpdate(ctx, indexerdb.EnqueueReindexUpdateParams{
		ChainID:      chainID,
		TokenAddress: tokenAddress,
		FromBlock:    param,
	})
}

func toTrackedTokens(rows []indexerdb.TrackedToken) []TrackedToken {
	out := make([]TrackedToken, len(rows))
	for i, row := range rows {
		out[i] = toTrackedToken(row)
	}
	return out
}

func toTrackedToken(row indexerdb.TrackedToken) TrackedToken {
	t := TrackedToken{
		ChainID:          row.ChainID,
		TokenAddress:     row.TokenAddress,
		QuarantineReason: row.QuarantineReason.String,
	}
	if row.FromBlock.Valid {
		t.FromBlock = &row.FromBlock.Int64
	}
	if row.ToBlock.Valid {
		t.ToBlock = &row.ToBlock.Int64
	}
	return t
}
