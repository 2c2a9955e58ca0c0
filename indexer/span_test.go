package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanController_initialSpanCapsAtMaxSpanAndRemaining(t *testing.T) {
	c := NewSpanController(2000)

	assert.EqualValues(t, 50, c.InitialSpan(1, 50), "expected span clamped to remaining")
	assert.EqualValues(t, 2000, c.InitialSpan(1, 10000), "expected span clamped to maxSpan")
}

func TestSpanController_shrinkHalvesAndFloorsAtMinSpan(t *testing.T) {
	c := NewSpanController(2000)

	span := c.Shrink(1, 2000, 10000)
	assert.EqualValues(t, 1000, span, "expected first shrink to halve")

	for i := 0; i < 10; i++ {
		span = c.Shrink(1, span, 10000)
	}
	assert.GreaterOrEqual(t, span, uint64(MinSpan), "shrink must never go below MinSpan")
}

func TestSpanController_rememberIsUsedByNextInitialSpan(t *testing.T) {
	c := NewSpanController(2000)
	c.Remember(1, 500)

	assert.EqualValues(t, 500, c.InitialSpan(1, 10000), "expected InitialSpan to reuse the remembered span")
}

// A controller's lastGood hint is per-chain memory shared across every token on that chain, not
// per-token: a provider's span ceiling is a property of the endpoint, and one ChainWorker owns
// exactly one controller for its entire chain.
func TestSpanController_sharedAcrossTokensOnSameChain(t *testing.T) {
	c := NewSpanController(2000)
	c.Remember(1, 100)

	assert.EqualValues(t, 100, c.InitialSpan(1, 10000), "expected a different token on the same chain to see the shared lastGood hint")
}

func TestSpanController_independentAcrossSeparateControllerInstances(t *testing.T) {
	chain1 := NewSpanController(2000)
	chain2 := NewSpanController(2000)
	chain1.Remember(1, 100)

	assert.EqualValues(t, 2000, chain2.InitialSpan(2, 10000), "expected an independent chain's controller to be untouched")
}
