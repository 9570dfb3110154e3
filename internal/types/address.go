// Package types contains shared type definitions used across multiple packages
package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// AddressLength is the number of bytes in an account or contract address
const AddressLength = 20

// ErrInvalidAddress is matched by every address validation failure
var ErrInvalidAddress = errors.New("invalid address")

// InvalidAddressError reports an input that cannot be normalized to a 20-byte address
type InvalidAddressError struct {
	Input  string
	Reason string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid address %q: %s", e.Input, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidAddress) hold for every InvalidAddressError
func (e *InvalidAddressError) Is(target error) bool {
	return target == ErrInvalidAddress
}

// Address is a 0x-prefixed address stored in its EIP-55 checksummed form.
// Two addresses are equal iff their canonical forms are equal.
type Address string

// ParseAddress normalizes s into its checksummed form. It accepts any casing,
// an optional 0x prefix and a 32-byte ABI word whose first 12 bytes are zero.
func ParseAddress(s string) (Address, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	if len(digits) == 64 {
		if strings.Trim(digits[:24], "0") != "" {
			return "", &InvalidAddressError{Input: s, Reason: "non-zero padding in 32-byte word"}
		}
		digits = digits[24:]
	}

	if len(digits) != 2*AddressLength {
		return "", &InvalidAddressError{Input: s, Reason: fmt.Sprintf("expected 40 hex chars, got %d", len(digits))}
	}

	raw, err := hex.DecodeString(digits)
	if err != nil {
		return "", &InvalidAddressError{Input: s, Reason: "contains non-hex characters"}
	}

	return ChecksumBytes(raw), nil
}

// MustParseAddress is like ParseAddress but panics on malformed input.
// Intended for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ChecksumBytes encodes the low 20 bytes of b using EIP-55 mixed-case hex
func ChecksumBytes(b []byte) Address {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	padded := make([]byte, AddressLength)
	copy(padded[AddressLength-len(b):], b)

	lower := []byte(hex.EncodeToString(padded))
	hash := hex.EncodeToString(crypto.Keccak256(lower))

	for i, c := range lower {
		// letters only; digits have no case
		if c >= 'a' && hash[i] >= '8' {
			lower[i] = c - ('a' - 'A')
		}
	}
	return Address("0x" + string(lower))
}

// Hex returns the checksummed 0x-prefixed string
func (a Address) Hex() string { return string(a) }

// String implements fmt.Stringer
func (a Address) String() string { return string(a) }

// Bytes returns the raw 20 bytes of the address
func (a Address) Bytes() []byte {
	b, _ := hex.DecodeString(strings.TrimPrefix(string(a), "0x"))
	return b
}

// Word returns the address left-padded to a 32-byte ABI word
func (a Address) Word() []byte {
	word := make([]byte, 32)
	copy(word[32-AddressLength:], a.Bytes())
	return word
}

// Equal compares the canonical forms of both addresses
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(string(a), string(other))
}

// IsZero reports whether a is empty or the zero address
func (a Address) IsZero() bool {
	return a == "" || strings.Trim(strings.TrimPrefix(string(a), "0x"), "0") == ""
}

// UnmarshalText normalizes addresses read from JSON, YAML or SQL text
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalText emits the checksummed form
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a), nil
}
