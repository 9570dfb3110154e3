package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/yourorg/extools/internal/types"
)

// ReturnKind is the declared return shape of a call and selects its decoder
type ReturnKind int

// Supported return shapes
const (
	ReturnRaw      ReturnKind = iota // structured JSON passed through unchanged
	ReturnInt                        // big-endian unsigned integer
	ReturnAddress                    // address in the low 20 bytes of a word
	ReturnString                     // ABI dynamic string
	ReturnReserves                   // two uint words (getReserves)
)

func (k ReturnKind) String() string {
	switch k {
	case ReturnRaw:
		return "raw"
	case ReturnInt:
		return "int"
	case ReturnAddress:
		return "address"
	case ReturnString:
		return "string"
	case ReturnReserves:
		return "reserves"
	default:
		return fmt.Sprintf("ReturnKind(%d)", int(k))
	}
}

// Call describes one JSON-RPC invocation and the shape of its result.
// ID is left empty by the builders; the Engine assigns one per batch.
type Call struct {
	ID      string
	Method  string
	Params  []any
	Returns ReturnKind
}

// WithID returns a copy of c carrying the given correlation id
func (c Call) WithID(id string) Call {
	c.ID = id
	return c
}

// Reserves holds the decoded result of a pair's getReserves()
type Reserves struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// Result is the outcome of one call at its position in the batch.
// Exactly one of Value and Err is set.
type Result struct {
	ID    string
	Value any
	Err   error
}

// Int returns the value of a ReturnInt call
func (r Result) Int() (*big.Int, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	v, ok := r.Value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("result %s holds %T, not an integer", r.ID, r.Value)
	}
	return v, nil
}

// Text returns the value of a ReturnString call
func (r Result) Text() (string, error) {
	if r.Err != nil {
		return "", r.Err
	}
	v, ok := r.Value.(string)
	if !ok {
		return "", fmt.Errorf("result %s holds %T, not a string", r.ID, r.Value)
	}
	return v, nil
}

// Address returns the value of a ReturnAddress call
func (r Result) Address() (types.Address, error) {
	if r.Err != nil {
		return "", r.Err
	}
	v, ok := r.Value.(types.Address)
	if !ok {
		return "", fmt.Errorf("result %s holds %T, not an address", r.ID, r.Value)
	}
	return v, nil
}

// Reserves returns the value of a ReturnReserves call
func (r Result) Reserves() (Reserves, error) {
	if r.Err != nil {
		return Reserves{}, r.Err
	}
	v, ok := r.Value.(Reserves)
	if !ok {
		return Reserves{}, fmt.Errorf("result %s holds %T, not reserves", r.ID, r.Value)
	}
	return v, nil
}

// Into unmarshals the JSON of a ReturnRaw call into dest
func (r Result) Into(dest any) error {
	if r.Err != nil {
		return r.Err
	}
	raw, ok := r.Value.(json.RawMessage)
	if !ok {
		return fmt.Errorf("result %s holds %T, not raw JSON", r.ID, r.Value)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &DecodeError{Kind: ReturnRaw, Reason: fmt.Sprintf("unmarshal into %T", dest), Err: err}
	}
	return nil
}

// Batch collects calls from the builders, keeping the first builder errors
// so a whole group can be checked once before it is sent:
//
//	var b jsonrpc.Batch
//	b.Add(jsonrpc.Symbol(token)).Add(jsonrpc.Decimals(token))
//	calls, err := b.Calls()
type Batch struct {
	calls []Call
	errs  []error
}

// Add appends a call produced by a builder
func (b *Batch) Add(c Call, err error) *Batch {
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.calls = append(b.calls, c)
	return b
}

// Len returns the number of valid calls collected
func (b *Batch) Len() int { return len(b.calls) }

// Calls returns the collected calls in insertion order, or the joined builder errors
func (b *Batch) Calls() ([]Call, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out, nil
}
