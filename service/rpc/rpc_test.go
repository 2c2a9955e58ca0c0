package rpc

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify_rateLimitSubstring(t *testing.T) {
	err := Classify(errors.New("429 Too Many Requests"))

	var rateLimited RateLimited
	if assert.ErrorAs(t, err, &rateLimited) {
		assert.GreaterOrEqual(t, rateLimited.RetryAfter, DefaultRetryAfterFloor)
	}
}

func TestClassify_rateLimitWithRetryAfterHint(t *testing.T) {
	err := Classify(errors.New("rate limit exceeded, retry after 30 seconds"))

	var rateLimited RateLimited
	if assert.ErrorAs(t, err, &rateLimited) {
		assert.Equal(t, 30*time.Second, rateLimited.RetryAfter)
	}
}

func TestClassify_blockRangeSubstring(t *testing.T) {
	err := Classify(errors.New("query returned more than 10000 results"))

	var tooLarge BlockRangeTooLarge
	assert.ErrorAs(t, err, &tooLarge)
}

func TestClassify_unrecognizedFallsBackToTransport(t *testing.T) {
	err := Classify(errors.New("connection reset by peer"))

	var transport Transport
	assert.ErrorAs(t, err, &transport)
}

func TestClassify_nilIsNil(t *testing.T) {
	assert.NoError(t, Classify(nil))
}
