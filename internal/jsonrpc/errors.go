package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yourorg/extools/internal/types"
)

// Sentinel errors matched with errors.Is
var (
	ErrInvalidAddress  = types.ErrInvalidAddress
	ErrRemoteCall      = errors.New("remote call failed")
	ErrTransport       = errors.New("transport failure")
	ErrDecode          = errors.New("decode failure")
	ErrMissingResponse = errors.New("no response for call")
	ErrDuplicateID     = errors.New("duplicate correlation id")
)

// RemoteCallError is a JSON-RPC error object returned for one call of a batch.
// It is reported at the position of that call and does not abort its siblings.
type RemoteCallError struct {
	ID      string
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("RPC error %d in %s: %s", e.Code, e.Method, e.Message)
}

// Is matches ErrRemoteCall
func (e *RemoteCallError) Is(target error) bool { return target == ErrRemoteCall }

// TransportError aborts a whole batch: connection failure, timeout,
// non-2xx status or a body that is not a JSON-RPC response array.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error from %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error from %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// DecodeError reports a result payload inconsistent with the expected return shape
type DecodeError struct {
	Kind   ReturnKind
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.Kind, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is matches ErrDecode
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
