package indexer

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestAggregateDeltas_mintCreditsRecipientOnly(t *testing.T) {
	deltas := AggregateDeltas([]Transfer{
		{From: zeroAddress, To: alice, Value: big.NewInt(100)},
	})

	assert.Len(t, deltas, 1)
	got, ok := deltas[lowerHex(alice)]
	assert.True(t, ok, "expected a delta keyed by lowercase hex")
	assert.Zero(t, got.Cmp(big.NewInt(100)), "expected mint delta of 100")
}

func TestAggregateDeltas_transferIsZeroSum(t *testing.T) {
	deltas := AggregateDeltas([]Transfer{
		{From: alice, To: bob, Value: big.NewInt(30)},
	})

	assert.Zero(t, deltas[lowerHex(alice)].Cmp(big.NewInt(-30)), "expected alice delta -30")
	assert.Zero(t, deltas[lowerHex(bob)].Cmp(big.NewInt(30)), "expected bob delta +30")
}

func TestAggregateDeltas_netZeroOmitted(t *testing.T) {
	deltas := AggregateDeltas([]Transfer{
		{From: alice, To: bob, Value: big.NewInt(30)},
		{From: bob, To: alice, Value: big.NewInt(30)},
	})
	assert.Empty(t, deltas, "expected net-zero transfers to cancel out")
}

func TestAggregateDeltas_excludesZeroAddress(t *testing.T) {
	deltas := AggregateDeltas([]Transfer{
		{From: alice, To: zeroAddress, Value: big.NewInt(10)},
	})
	_, ok := deltas[lowerHex(zeroAddress)]
	assert.False(t, ok, "zero address must never appear in deltas")
}

func lowerHex(a common.Address) string {
	return strings.ToLower(a.Hex())
}

