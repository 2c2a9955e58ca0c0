package indexer

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// zeroAddress is excluded from balance accounting: mints debit it nothing, burns credit it
// nothing, since it represents supply entering or leaving existence rather than a holder.
var zeroAddress = common.HexToAddress("0x0000000000000000000000000000000000000000")

// AggregateDeltas folds a list of Transfers into a map of lower-hex address to signed balance
// delta. The result omits any address whose net delta is zero, and never includes the zero
// address. Order of the input transfers does not affect the result: every delta is produced by
// commutative bigint addition.
func AggregateDeltas(transfers []Transfer) map[string]*big.Int {
	deltas := make(map[string]*big.Int)

	credit := func(addr common.Address, amount *big.Int) {
		if addr == zeroAddress {
			return
		}
		key := strings.ToLower(addr.Hex())
		cur, ok := deltas[key]
		if !ok {
			cur = new(big.Int)
		}
		deltas[key] = new(big.Int).Add(cur, amount)
	}

	for _, t := range transfers {
		credit(t.To, t.Value)
		credit(t.From, new(big.Int).Neg(t.Value))
	}

	for addr, delta := range deltas {
		if delta.Sign() == 0 {
			delete(deltas, addr)
		}
	}

	return deltas
}
