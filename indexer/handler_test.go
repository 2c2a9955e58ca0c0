package indexer

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/mikeydub/erc20-holders-indexer/chain"
)

// testRouter wires the handlers over a registry tracking only mainnet and no database, enough
// to exercise every validation path that rejects a request before persistence is touched.
func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return handlersInit(gin.New(), chain.Load([]int64{1}), nil)
}

func doRequest(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestReindexHandler_rejectsMalformedBody(t *testing.T) {
	w := doRequest(testRouter(), http.MethodPost, "/admin/reindex", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_chain")
}

func TestReindexHandler_rejectsUnsupportedChain(t *testing.T) {
	w := doRequest(testRouter(), http.MethodPost, "/admin/reindex",
		`{"chainId": 999, "token": "0x1111111111111111111111111111111111111111"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported_chain")
}

func TestReindexHandler_rejectsMalformedToken(t *testing.T) {
	w := doRequest(testRouter(), http.MethodPost, "/admin/reindex",
		`{"chainId": 1, "token": "not-an-address"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_token")
}

func TestReindexHandler_rejectsMalformedFromBlock(t *testing.T) {
	w := doRequest(testRouter(), http.MethodPost, "/admin/reindex",
		`{"chainId": 1, "token": "0x1111111111111111111111111111111111111111", "fromBlock": "-5"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_from_block")
}

func TestHoldersHandler_requiresChainID(t *testing.T) {
	w := doRequest(testRouter(), http.MethodGet, "/token/0x1111111111111111111111111111111111111111/holders", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_chain")
}

func TestHoldersHandler_rejectsNonNumericChainID(t *testing.T) {
	w := doRequest(testRouter(), http.MethodGet, "/token/0x1111111111111111111111111111111111111111/holders?chainId=mainnet", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_chain")
}

func TestHoldersHandler_rejectsUnsupportedChain(t *testing.T) {
	w := doRequest(testRouter(), http.MethodGet, "/token/0x1111111111111111111111111111111111111111/holders?chainId=999", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported_chain")
}
