package types

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Block tags accepted wherever a node expects a block identifier
const (
	BlockLatest    = "latest"
	BlockPending   = "pending"
	BlockEarliest  = "earliest"
	BlockSafe      = "safe"
	BlockFinalized = "finalized"
)

// NetworkID is an EVM chain id
type NetworkID int64

// BlockNumber encodes n as a hex quantity block identifier
func BlockNumber(n uint64) string {
	return hexutil.EncodeUint64(n)
}

// IsBlockTag reports whether s is one of the named block tags
func IsBlockTag(s string) bool {
	switch s {
	case BlockLatest, BlockPending, BlockEarliest, BlockSafe, BlockFinalized:
		return true
	}
	return false
}
