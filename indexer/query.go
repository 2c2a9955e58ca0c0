package indexer

import (
	"context"
	"math/big"
	"strings"

	"github.com/mikeydub/erc20-holders-indexer/chain"
	"github.com/mikeydub/erc20-holders-indexer/service/persist/postgres"
)

const (
	defaultHoldersLimit = 25
	maxHoldersLimit     = 100
)

// Holder is one ranked row returned by GetHolders.
type Holder struct {
	Rank    int64
	Address string
	Balance *big.Int
	Pct     float64
}

// HoldersPage is the result of one GetHolders call.
type HoldersPage struct {
	Items      []Holder
	NextCursor string
	Status     string
}

// GetHolders returns a keyset-paginated, rank-ordered page of token's holders on chainID.
// limit is clamped to [1, 100], default 25. An empty cursor requests the first page.
func GetHolders(ctx context.Context, registry *chain.Registry, repos *postgres.Repositories, chainID int64, token, cursor string, limit int) (HoldersPage, error) {
	if !registry.Supported(chainID) {
		return HoldersPage{}, UnsupportedChain{ChainID: chainID}
	}

	// Stored addresses are canonical lower-hex; accept checksummed input.
	token = strings.ToLower(token)

	if limit < 1 {
		limit = defaultHoldersLimit
	}
	if limit > maxHoldersLimit {
		limit = maxHoldersLimit
	}

	var cursorBalance *big.Int
	var cursorHolder string
	if cursor != "" {
		bal, holder, err := DecodeCursor(cursor)
		if err != nil {
			return HoldersPage{}, err
		}
		cursorBalance, cursorHolder = bal, holder
	}

	rows, err := repos.HolderStore.GetHoldersPage(ctx, chainID, token, cursorBalance, cursorHolder, int32(limit))
	if err != nil {
		return HoldersPage{}, DatabaseUnavailable{Err: err}
	}

	total, err := repos.HolderStore.TotalSupply(ctx, chainID, token)
	if err != nil {
		return HoldersPage{}, DatabaseUnavailable{Err: err}
	}

	var baseRank int64
	if cursorBalance != nil {
		baseRank, err = repos.HolderStore.RankOf(ctx, chainID, token, cursorBalance, cursorHolder)
		if err != nil {
			return HoldersPage{}, DatabaseUnavailable{Err: err}
		}
	}

	items := make([]Holder, len(rows))
	for i, row := range rows {
		items[i] = Holder{
			Rank:    baseRank + int64(i) + 1,
			Address: row.Address,
			Balance: row.Balance,
			Pct:     computePct(row.Balance, total),
		}
	}

	var nextCursor string
	if len(items) == limit {
		last := items[len(items)-1]
		nextCursor = EncodeCursor(last.Balance, last.Address)
	}

	status := "indexing"
	if tracked, err := repos.CursorStore.GetCursor(ctx, chainID, token); err == nil && tracked.ToBlock != nil {
		status = "ok"
	}

	return HoldersPage{Items: items, NextCursor: nextCursor, Status: status}, nil
}

// computePct returns balance as a percentage of total, scaled through a fixed integer factor
// (×100000, integer-divide, ÷1000.0) to avoid floating-point imprecision while still yielding at
// least three significant fractional digits. Returns 0 when total is zero.
func computePct(balance, total *big.Int) float64 {
	if total.Sign() == 0 {
		return 0
	}
	scaled := new(big.Int).Mul(balance, big.NewInt(100000))
	scaled.Quo(scaled, total)
	return float64(scaled.Int64()) / 1000.0
}
