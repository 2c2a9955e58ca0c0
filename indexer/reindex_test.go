package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mikeydub/erc20-holders-indexer/chain"
)

func TestEnqueueReindex_rejectsUnsupportedChain(t *testing.T) {
	registry := chain.Load([]int64{1})

	err := EnqueueReindex(context.Background(), registry, nil, ReindexRequest{
		ChainID: 999,
		Token:   "0x1111111111111111111111111111111111111111",
	})

	var unsupported UnsupportedChain
	assert.ErrorAs(t, err, &unsupported)
}

func TestEnqueueReindex_rejectsMalformedToken(t *testing.T) {
	registry := chain.Load([]int64{1})

	err := EnqueueReindex(context.Background(), registry, nil, ReindexRequest{
		ChainID: 1,
		Token:   "not-an-address",
	})

	var invalidToken InvalidToken
	assert.ErrorAs(t, err, &invalidToken)
}

func TestEnqueueReindex_rejectsNonNumericFromBlock(t *testing.T) {
	registry := chain.Load([]int64{1})

	err := EnqueueReindex(context.Background(), registry, nil, ReindexRequest{
		ChainID:   1,
		Token:     "0x1111111111111111111111111111111111111111",
		FromBlock: "not-a-number",
	})

	var invalidFrom InvalidFromBlock
	assert.ErrorAs(t, err, &invalidFrom)
}
