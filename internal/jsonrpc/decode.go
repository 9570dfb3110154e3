package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/yourorg/extools/internal/types"
)

const wordSize = 32

// Decode turns a raw JSON result into the value declared by kind.
// ReturnRaw passes the JSON through; every other kind expects a hex string.
func Decode(kind ReturnKind, raw json.RawMessage) (any, error) {
	if kind == ReturnRaw {
		return raw, nil
	}

	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &DecodeError{Kind: kind, Reason: "null result"}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &DecodeError{Kind: kind, Reason: "result is not a hex string", Err: err}
	}

	switch kind {
	case ReturnInt:
		return DecodeInt(s)
	case ReturnAddress:
		return DecodeAddress(s)
	case ReturnString:
		return DecodeString(s)
	case ReturnReserves:
		return DecodeReserves(s)
	default:
		return nil, &DecodeError{Kind: kind, Reason: "unknown return kind"}
	}
}

// DecodeInt interprets the whole payload as a big-endian unsigned integer.
// The empty payload "0x" is zero. Quantities with odd digit counts are accepted.
func DecodeInt(s string) (*big.Int, error) {
	if !strings.HasPrefix(s, "0x") {
		return nil, &DecodeError{Kind: ReturnInt, Reason: fmt.Sprintf("missing 0x prefix in %q", truncate(s))}
	}
	digits := s[2:]
	if digits == "" {
		return new(big.Int), nil
	}
	for _, c := range digits {
		if !isHexDigit(c) {
			return nil, &DecodeError{Kind: ReturnInt, Reason: fmt.Sprintf("invalid hex integer %q", truncate(s))}
		}
	}
	n, _ := new(big.Int).SetString(digits, 16)
	return n, nil
}

func isHexDigit(c rune) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// DecodeAddress checksums the low 20 bytes of the first 32-byte word.
// The empty payload "0x" is the zero address.
func DecodeAddress(s string) (types.Address, error) {
	data, err := payload(ReturnAddress, s)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return types.ChecksumBytes(nil), nil
	}
	if len(data) < wordSize {
		return "", &DecodeError{Kind: ReturnAddress, Reason: fmt.Sprintf("payload is %d bytes, need %d", len(data), wordSize)}
	}
	return types.ChecksumBytes(data[wordSize-types.AddressLength : wordSize]), nil
}

// DecodeString decodes an ABI dynamic string: an offset word (ignored), a
// length word N, then N bytes of UTF-8. Trailing NUL bytes are stripped.
// The empty payload "0x" is the empty string; a payload shorter than its
// declared length is an error.
func DecodeString(s string) (string, error) {
	data, err := payload(ReturnString, s)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", nil
	}
	if len(data) < 2*wordSize {
		return "", &DecodeError{Kind: ReturnString, Reason: fmt.Sprintf("payload is %d bytes, need at least %d", len(data), 2*wordSize)}
	}

	length := new(big.Int).SetBytes(data[wordSize : 2*wordSize])
	available := len(data) - 2*wordSize
	if !length.IsInt64() || length.Int64() > int64(available) {
		return "", &DecodeError{Kind: ReturnString, Reason: fmt.Sprintf("declared length %s exceeds %d available bytes", length, available)}
	}

	body := data[2*wordSize : 2*wordSize+int(length.Int64())]
	if !utf8.Valid(body) {
		return "", &DecodeError{Kind: ReturnString, Reason: "string is not valid UTF-8"}
	}
	return strings.TrimRight(string(body), "\x00"), nil
}

// DecodeReserves splits the first two 32-byte words into reserve0 and reserve1.
// The empty payload "0x" yields zero reserves.
func DecodeReserves(s string) (Reserves, error) {
	data, err := payload(ReturnReserves, s)
	if err != nil {
		return Reserves{}, err
	}
	if len(data) == 0 {
		return Reserves{Reserve0: new(big.Int), Reserve1: new(big.Int)}, nil
	}
	if len(data) < 2*wordSize {
		return Reserves{}, &DecodeError{Kind: ReturnReserves, Reason: fmt.Sprintf("payload is %d bytes, need %d", len(data), 2*wordSize)}
	}
	return Reserves{
		Reserve0: new(big.Int).SetBytes(data[:wordSize]),
		Reserve1: new(big.Int).SetBytes(data[wordSize : 2*wordSize]),
	}, nil
}

func payload(kind ReturnKind, s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		return nil, &DecodeError{Kind: kind, Reason: fmt.Sprintf("missing 0x prefix in %q", truncate(s))}
	}
	data, err := hexutil.Decode(s)
	if err != nil {
		return nil, &DecodeError{Kind: kind, Reason: "malformed hex", Err: err}
	}
	return data, nil
}

func truncate(s string) string {
	if len(s) > 16 {
		return s[:16] + "..."
	}
	return s
}
