package postgres

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/jackc/pgx/v4"

	"github.com/mikeydub/erc20-holders-indexer/db/gen/indexerdb"
)

// ErrNegativeBalance is returned when applying a set of deltas would drive a holder's balance
// below zero, which signals the deltas were derived from an inconsistent block range.
type ErrNegativeBalance struct {
	ChainID       int64
	TokenAddress  string
	HolderAddress string
	Resulting     *big.Int
}

func (e ErrNegativeBalance) Error() string {
	return fmt.Sprintf("applying deltas would leave %s with a negative balance of %s for token %s on chain %d",
		e.HolderAddress, e.Resulting.String(), e.TokenAddress, e.ChainID)
}

// HolderStore owns the token_holders table: the materialised balance of every address that
// has ever held a tracked token.
type HolderStore struct {
	queries *indexerdb.Queries
}

func NewHolderStore(queries *indexerdb.Queries) *HolderStore {
	return &HolderStore{queries: queries}
}

// ApplyDeltas folds a batch of signed balance deltas into token_holders. queries must be bound
// to the same transaction the caller is about to commit the cursor advance in, via WithTx,
// so a crash between writing balances and advancing the cursor can only replay work, never
// lose it. Holders are visited in deterministic address order so concurrent batches touching
// overlapping holders always acquire their row locks in the same order.
func (h *HolderStore) ApplyDeltas(ctx context.Context, queries *indexerdb.Queries, chainID int64, tokenAddress string, deltas map[string]*big.Int) error {
	if queries == nil {
		queries = h.queries
	}

	holders := make([]string, 0, len(deltas))
	for addr := range deltas {
		holders = append(holders, addr)
	}
	sort.Strings(holders)

	for _, holder := range holders {
		delta := deltas[holder]
		if delta.Sign() == 0 {
			continue
		}

		current, err := queries.GetHolderBalanceForUpdate(ctx, chainID, tokenAddress, holder)
		if err == pgx.ErrNoRows {
			current = "0"
		} else if err != nil {
			return err
		}

		currentAmt, ok := new(big.Int).SetString(current, 10)
		if !ok {
			return fmt.Errorf("could not parse stored balance %q for holder %s", current, holder)
		}

		next := new(big.Int).Add(currentAmt, delta)
		if next.Sign() < 0 {
			return ErrNegativeBalance{ChainID: chainID, TokenAddress: tokenAddress, HolderAddress: holder, Resulting: next}
		}

		if next.Sign() == 0 {
			if err := queries.DeleteHolder(ctx, chainID, tokenAddress, holder); err != nil {
				return err
			}
			continue
		}

		if err := queries.UpsertHolderBalance(ctx, indexerdb.UpsertHolderBalanceParams{
			ChainID:       chainID,
			TokenAddress:  tokenAddress,
			HolderAddress: holder,
			Balance:       next.String(),
		}); err != nil {
			return err
		}
	}

	return nil
}

// Holder is a single ranked row from GetHolders.
type Holder struct {
	Address string
	Balance *big.Int
}

// GetHoldersPage returns up to limit holders ranked by balance descending (ties broken by
// address ascending), starting after cursorBalance/cursorHolder. Pass a nil cursor for the
// first page.
func (h *HolderStore) GetHoldersPage(ctx context.Context, chainID int64, tokenAddress string, cursorBalance *big.Int, cursorHolder string, limit int32) ([]Holder, error) {
	var rows []indexerdb.TokenHolder
	var err error

	if cursorBalance == nil {
		rows, err = h.queries.ListHoldersFirstPage(ctx, chainID, tokenAddress, limit)
	} else {
		rows, err = h.queries.ListHoldersPage(ctx, indexerdb.ListHoldersPageParams{
			ChainID:       chainID,
			TokenAddress:  tokenAddress,
			CursorBalance: cursorBalance.String(),
			CursorHolder:  cursorHolder,
			Limit:         limit,
		})
	}
	if err != nil {
		return nil, err
	}

	out := make([]Holder, len(rows))
	for i, row := range rows {
		bal, ok := new(big.Int).SetString(row.Balance, 10)
		if !ok {
			return nil, fmt.Errorf("could not parse stored balance %q for holder %s", row.Balance, row.HolderAddress)
		}
		out[i] = Holder{Address: row.HolderAddress, Balance: bal}
	}
	return out, nil
}

// RankOf returns the 1-based rank of the given balance/address pair, i.e. the number of holders
// at or ahead of that position in (balance DESC, holder ASC) order, the pair itself included.
// The query engine uses it to compute a page's base rank without walking the whole table.
func (h *HolderStore) RankOf(ctx context.Context, chainID int64, tokenAddress string, balance *big.Int, holderAddress string) (int64, error) {
	return h.queries.CountHoldersThroughCursor(ctx, chainID, tokenAddress, balance.String(), holderAddress)
}

// TotalSupply returns the sum of every holder's balance for a token, i.e. the circulating
// supply as derived purely from observed Transfer events.
func (h *HolderStore) TotalSupply(ctx context.Context, chainID int64, tokenAddress string) (*big.Int, error) {
	sum, err := h.queries.SumBalances(ctx, chainID, tokenAddress)
	if err != nil {
		return nil, err
	}
	total, ok := new(big.Int).SetString(sum, 10)
	if !ok {
		return nil, fmt.Errorf("could not parse summed balance %q", sum)
	}
	return total, nil
}
