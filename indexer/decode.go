package indexer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// transferEventHash is the keccak256 hash of Transfer(address,address,uint256).
const transferEventHash = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// TransferTopic is the first topic every decodable ERC-20 Transfer log carries.
var TransferTopic = common.HexToHash(transferEventHash)

// Transfer is a decoded ERC-20 Transfer event.
type Transfer struct {
	Token       common.Address
	From        common.Address
	To          common.Address
	Value       *big.Int
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

// DecodeTransfers converts a batch of raw logs into Transfers, silently dropping anything that
// isn't a well-formed Transfer(address,address,uint256) event. A malformed log is not an error:
// it's either noise from a different event sharing no topic overlap, or a reorg-stale log
// (removed == true), which is dropped here as well.
func DecodeTransfers(logs []types.Log) []Transfer {
	transfers := make([]Transfer, 0, len(logs))
	for _, log := range logs {
		t, ok := decodeTransfer(log)
		if !ok {
			continue
		}
		transfers = append(transfers, t)
	}
	return transfers
}

func decodeTransfer(log types.Log) (Transfer, bool) {
	if log.Removed {
		return Transfer{}, false
	}
	if len(log.Topics) != 3 {
		return Transfer{}, false
	}
	if log.Topics[0] != TransferTopic {
		return Transfer{}, false
	}
	if len(log.Data) != 32 {
		return Transfer{}, false
	}

	return Transfer{
		Token:       log.Address,
		From:        common.BytesToAddress(log.Topics[1].Bytes()),
		To:          common.BytesToAddress(log.Topics[2].Bytes()),
		Value:       new(big.Int).SetBytes(log.Data),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
	}, true
}
