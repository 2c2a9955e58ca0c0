package indexer

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mikeydub/erc20-holders-indexer/chain"
	"github.com/mikeydub/erc20-holders-indexer/db/gen/indexerdb"
	"github.com/mikeydub/erc20-holders-indexer/service/persist/postgres"
	"github.com/mikeydub/erc20-holders-indexer/validate"
)

// ReindexRequest is the admin DTO for POST /admin/reindex.
type ReindexRequest struct {
	ChainID   int64  `json:"chainId" validate:"required"`
	Token     string `json:"token" validate:"required,eth_addr"`
	FromBlock string `json:"fromBlock,omitempty" validate:"omitempty,numeric"`
}

// EnqueueReindex validates req — chainId must be supported, token must be 20-byte hex,
// fromBlock (if present) must be a non-negative decimal integer — and on success rewinds or
// creates the token's tracked_tokens row inside a transaction.
func EnqueueReindex(ctx context.Context, registry *chain.Registry, repos *postgres.Repositories, req ReindexRequest) error {
	if err := validate.Validate.Struct(req); err != nil {
		return classifyReindexValidationErr(req, err)
	}

	if !registry.Supported(req.ChainID) {
		return UnsupportedChain{ChainID: req.ChainID}
	}

	token := strings.ToLower(req.Token)

	var fromBlock *int64
	if req.FromBlock != "" {
		n, err := strconv.ParseInt(req.FromBlock, 10, 64)
		if err != nil || n < 0 {
			return InvalidFromBlock{FromBlock: req.FromBlock}
		}
		fromBlock = &n
	}

	tx, err := repos.BeginTx(ctx)
	if err != nil {
		return DatabaseUnavailable{Err: err}
	}
	defer tx.Rollback(ctx)

	queries := indexerdb.New(tx)
	if err := repos.CursorStore.EnqueueReindex(ctx, queries, req.ChainID, token, fromBlock); err != nil {
		return DatabaseUnavailable{Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return DatabaseUnavailable{Err: err}
	}
	return nil
}

func classifyReindexValidationErr(req ReindexRequest, err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return InvalidToken{Token: req.Token}
	}

	for _, fe := range verrs {
		switch fe.Field() {
		case "ChainID":
			return UnsupportedChain{ChainID: req.ChainID}
		case "FromBlock":
			return InvalidFromBlock{FromBlock: req.FromBlock}
		case "Token":
			return InvalidToken{Token: req.Token}
		}
	}
	return InvalidToken{Token: req.Token}
}
