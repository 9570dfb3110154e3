package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// HashLength is the number of bytes in a transaction or block hash
const HashLength = 32

// Hash is a 0x-prefixed lowercase 32-byte hash
type Hash string

// TxHash identifies a transaction
type TxHash = Hash

// BlockHash identifies a block
type BlockHash = Hash

// ParseHash validates s as a 0x-prefixed 32-byte hash
func ParseHash(s string) (Hash, error) {
	if !strings.HasPrefix(s, "0x") || len(s) != 2+2*HashLength {
		return "", fmt.Errorf("invalid hash %q: expected 0x followed by 64 hex chars", s)
	}
	if _, err := hex.DecodeString(s[2:]); err != nil {
		return "", fmt.Errorf("invalid hash %q: contains non-hex characters", s)
	}
	return Hash(strings.ToLower(s)), nil
}

// String implements fmt.Stringer
func (h Hash) String() string { return string(h) }

// Keccak256 hashes the concatenation of data
func Keccak256(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}

// Selector computes the 4-byte function selector of a canonical signature,
// e.g. "balanceOf(address)" -> 0x70a08231
func Selector(signature string) []byte {
	return Keccak256([]byte(signature))[:4]
}

// Topic computes the 32-byte event topic of a canonical event signature
func Topic(signature string) Hash {
	return Hash("0x" + hex.EncodeToString(Keccak256([]byte(signature))))
}
