package indexer

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mikeydub/erc20-holders-indexer/chain"
	"github.com/mikeydub/erc20-holders-indexer/service/logger"
	"github.com/mikeydub/erc20-holders-indexer/service/persist/postgres"
	"github.com/mikeydub/erc20-holders-indexer/util"
)

// handlersInit wires the admin/query HTTP surface onto router. Routing, CORS, and auth
// middleware around these routes are the caller's responsibility.
func handlersInit(router *gin.Engine, registry *chain.Registry, repos *postgres.Repositories) *gin.Engine {
	router.POST("/admin/reindex", reindexHandler(registry, repos))
	router.GET("/token/:address/holders", holdersHandler(registry, repos))
	return router
}

type reindexRequestBody struct {
	ChainID   int64  `json:"chainId"`
	Token     string `json:"token"`
	FromBlock string `json:"fromBlock,omitempty"`
}

func reindexHandler(registry *chain.Registry, repos *postgres.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body reindexRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			util.ErrorResponse(c, http.StatusBadRequest, errors.New("invalid_chain"))
			return
		}

		err := EnqueueReindex(c.Request.Context(), registry, repos, ReindexRequest{
			ChainID:   body.ChainID,
			Token:     body.Token,
			FromBlock: body.FromBlock,
		})

		var unsupported UnsupportedChain
		var invalidToken InvalidToken
		var invalidFrom InvalidFromBlock

		switch {
		case err == nil:
			c.JSON(http.StatusAccepted, gin.H{"ok": true})
		case errors.As(err, &unsupported):
			util.ErrorResponse(c, http.StatusBadRequest, errors.New("unsupported_chain"))
		case errors.As(err, &invalidToken):
			util.ErrorResponse(c, http.StatusBadRequest, errors.New("invalid_token"))
		case errors.As(err, &invalidFrom):
			util.ErrorResponse(c, http.StatusBadRequest, errors.New("invalid_from_block"))
		default:
			logger.For(c).WithError(err).Error("reindex request failed")
			util.ErrorResponse(c, http.StatusInternalServerError, errors.New("internal"))
		}
	}
}

type holderDTO struct {
	Rank    int64   `json:"rank"`
	Holder  string  `json:"holder"`
	Balance string  `json:"balance"`
	Pct     float64 `json:"pct"`
}

type holdersResponse struct {
	Items      []holderDTO `json:"items"`
	NextCursor string      `json:"nextCursor,omitempty"`
	Status     string      `json:"status"`
}

func holdersHandler(registry *chain.Registry, repos *postgres.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("address")

		chainIDParam := c.Query("chainId")
		if chainIDParam == "" {
			util.ErrorResponse(c, http.StatusBadRequest, errors.New("missing_chain"))
			return
		}
		chainID, err := strconv.ParseInt(chainIDParam, 10, 64)
		if err != nil {
			util.ErrorResponse(c, http.StatusBadRequest, errors.New("invalid_chain"))
			return
		}

		limit := defaultHoldersLimit
		if l := c.Query("limit"); l != "" {
			if n, err := strconv.Atoi(l); err == nil {
				limit = n
			}
		}

		page, err := GetHolders(c.Request.Context(), registry, repos, chainID, token, c.Query("cursor"), limit)

		var unsupported UnsupportedChain
		switch {
		case err == nil:
			c.JSON(http.StatusOK, holdersResponse{
				Items:      toHolderDTOs(page.Items),
				NextCursor: page.NextCursor,
				Status:     page.Status,
			})
		case errors.As(err, &unsupported):
			util.ErrorResponse(c, http.StatusBadRequest, errors.New("unsupported_chain"))
		default:
			logger.For(c).WithError(err).Error("get holders failed")
			util.ErrorResponse(c, http.StatusInternalServerError, errors.New("internal"))
		}
	}
}

func toHolderDTOs(items []Holder) []holderDTO {
	out := make([]holderDTO, len(items))
	for i, h := range items {
		out[i] = holderDTO{Rank: h.Rank, Holder: h.Address, Balance: h.Balance.String(), Pct: h.Pct}
	}
	return out
}
