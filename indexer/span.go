package indexer

import "time"

// MinSpan is the smallest block span the controller will ever recommend, regardless of how
// many times a batch has been shrunk.
const MinSpan = 100

// MaxSpanRetries bounds how many times the Chain Poller will shrink and retry a single batch
// before giving up and surfacing the error.
const MaxSpanRetries = 4

// SpanRetryDelay is the fixed pause between a shrink and the retried fetch.
const SpanRetryDelay = 300 * time.Millisecond

// SpanController tracks the last span that succeeded on a chain, so the next batch starts from a
// span known to work instead of re-learning it from maxSpan every time. It holds per-chain
// memory, not per-token memory: one controller is owned by each chain's ChainWorker, and every
// tracked token on that chain shares the same lastGood hint, since a span ceiling a provider
// enforces is a property of the endpoint, not of any one token being polled through it. It is a
// plain value, never a package-global, so tests and concurrent chains each get an independent
// instance.
type SpanController struct {
	maxSpan     uint64
	lastGood    uint64
	hasLastGood bool
}

// NewSpanController returns a controller whose recommendations never exceed maxSpan.
func NewSpanController(maxSpan uint64) *SpanController {
	if maxSpan == 0 {
		maxSpan = 2000
	}
	return &SpanController{maxSpan: maxSpan}
}

func floorSpan(span, remaining uint64) uint64 {
	if remaining == 0 {
		return 0
	}
	min := uint64(MinSpan)
	if remaining < min {
		min = remaining
	}
	if span < min {
		span = min
	}
	if span > remaining {
		span = remaining
	}
	return span
}

// InitialSpan returns the span to attempt for the next batch on chainID, given how many blocks
// remain to be caught up on. chainID identifies which chain this controller's memory belongs to;
// since a controller is owned by exactly one chain's ChainWorker, it exists for readability at
// call sites and to match the other per-chain operations, not to key a map.
func (c *SpanController) InitialSpan(chainID int64, remaining uint64) uint64 {
	if remaining == 0 {
		return 0
	}
	span := c.maxSpan
	if c.hasLastGood && c.lastGood < span {
		span = c.lastGood
	}
	return floorSpan(span, remaining)
}

// Shrink halves the current span after a BlockRangeTooLarge error and records the result as the
// new lastGood hint for chainID, so future batches on that chain start small instead of
// re-discovering the ceiling.
func (c *SpanController) Shrink(chainID int64, current, remaining uint64) uint64 {
	next := current / 2
	if next > c.maxSpan {
		next = c.maxSpan
	}
	if next > remaining {
		next = remaining
	}
	next = floorSpan(next, remaining)
	if next < 1 {
		next = 1
	}
	c.lastGood = next
	c.hasLastGood = true
	return next
}

// Remember records span as the last span that succeeded on chainID.
func (c *SpanController) Remember(chainID int64, span uint64) {
	c.lastGood = span
	c.hasLastGood = true
}
