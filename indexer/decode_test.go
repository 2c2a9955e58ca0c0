package indexer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
)

func transferLog(from, to common.Address, value *big.Int, removed bool) types.Log {
	data := make([]byte, 32)
	value.FillBytes(data)
	return types.Log{
		Address: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Topics: []common.Hash{
			TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:    data,
		Removed: removed,
	}
}

func TestDecodeTransfers_decodesWellFormedLog(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	value := big.NewInt(1000)

	got := DecodeTransfers([]types.Log{transferLog(from, to, value, false)})
	assert.Len(t, got, 1)
	assert.Equal(t, from, got[0].From)
	assert.Equal(t, to, got[0].To)
	assert.Zero(t, got[0].Value.Cmp(value))
}

func TestDecodeTransfers_dropsRemovedLogs(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	got := DecodeTransfers([]types.Log{transferLog(from, to, big.NewInt(1), true)})
	assert.Empty(t, got, "expected removed log to be dropped")
}

func TestDecodeTransfers_dropsNonTransferTopics(t *testing.T) {
	log := types.Log{
		Topics: []common.Hash{common.HexToHash("0xdeadbeef")},
		Data:   make([]byte, 32),
	}
	got := DecodeTransfers([]types.Log{log})
	assert.Empty(t, got, "expected non-Transfer log to be dropped")
}

func TestDecodeTransfers_dropsWrongTopicCount(t *testing.T) {
	log := types.Log{
		Topics: []common.Hash{TransferTopic, common.HexToHash("0x1")},
		Data:   make([]byte, 32),
	}
	got := DecodeTransfers([]types.Log{log})
	assert.Empty(t, got, "expected malformed topic count to be dropped")
}
