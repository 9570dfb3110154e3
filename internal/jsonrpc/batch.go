package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yourorg/extools/internal/metrics"
	"github.com/yourorg/extools/internal/otel"
)

// Engine sends groups of calls to one node as a single JSON-RPC batch.
// It holds no per-batch state and may be shared between goroutines.
type Engine struct {
	url     string
	poster  Poster
	headers map[string]string
	newID   func() string
	metrics *metrics.Collector
}

// Option configures an Engine
type Option func(*Engine)

// WithPoster replaces the default HTTP poster
func WithPoster(p Poster) Option {
	return func(e *Engine) { e.poster = p }
}

// WithHeaders adds headers to every batch request
func WithHeaders(h map[string]string) Option {
	return func(e *Engine) { e.headers = h }
}

// WithIDGenerator replaces the UUIDv4 correlation id generator
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// WithMetrics records batch sizes, latencies and per-call failures in c
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// NewEngine creates an engine for the node at url
func NewEngine(url string, opts ...Option) *Engine {
	e := &Engine{
		url:   url,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.poster == nil {
		e.poster = NewHTTPPoster(HTTPOptions{Timeout: 10 * time.Second})
	}
	return e
}

// URL returns the node endpoint
func (e *Engine) URL() string { return e.url }

// Execute sends calls as one batch and returns one Result per call, in the
// order of calls regardless of the order the node answers in. A non-nil
// error means the batch as a whole failed and no results are returned;
// failures of individual calls are reported in their Result.
func (e *Engine) Execute(ctx context.Context, calls ...Call) ([]Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	requests := make([]Request, len(calls))
	index := make(map[string]int, len(calls))
	for i, c := range calls {
		id := c.ID
		if id == "" {
			id = e.newID()
		}
		if _, dup := index[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		index[id] = i

		params := c.Params
		if params == nil {
			params = []any{}
		}
		requests[i] = Request{JSONRPC: Version, ID: id, Method: c.Method, Params: params}
	}

	body, err := json.Marshal(requests)
	if err != nil {
		return nil, fmt.Errorf("error encoding batch: %w", err)
	}

	ctx, span := otel.Start(ctx, "jsonrpc.batch",
		attribute.String("rpc.system", "jsonrpc"),
		attribute.Int("rpc.batch_size", len(calls)),
	)
	defer span.End()

	logrus.Debugf("Sending JSON-RPC batch of %d calls to %s", len(calls), e.url)
	start := time.Now()
	responses, err := e.roundTrip(ctx, body)
	e.metrics.ObserveBatch(len(calls), time.Since(start), err)
	if err != nil {
		otel.RecordError(ctx, err)
		return nil, err
	}

	results := make([]Result, len(calls))
	answered := make([]bool, len(calls))
	for _, resp := range responses {
		if resp.RawID != nil {
			logrus.Warnf("Ignoring JSON-RPC response with non-string id %s", truncate(string(resp.RawID)))
			continue
		}
		i, ok := index[resp.ID]
		if !ok {
			logrus.Warnf("Ignoring JSON-RPC response with unknown id %q", resp.ID)
			continue
		}
		if answered[i] {
			logrus.Warnf("Ignoring repeated JSON-RPC response for id %q", resp.ID)
			continue
		}
		answered[i] = true
		results[i] = e.resolve(calls[i], requests[i].ID, resp)
	}

	for i := range results {
		if answered[i] {
			continue
		}
		e.metrics.CallError("missing")
		results[i] = Result{
			ID:  requests[i].ID,
			Err: fmt.Errorf("%w: %s (id %s)", ErrMissingResponse, calls[i].Method, requests[i].ID),
		}
	}

	return results, nil
}

// Call sends a single call and returns its result. The error is either the
// batch failure or the failure of the call itself.
func (e *Engine) Call(ctx context.Context, c Call) (Result, error) {
	results, err := e.Execute(ctx, c)
	if err != nil {
		return Result{}, err
	}
	return results[0], results[0].Err
}

// ExecuteBatch sends the calls collected in b
func (e *Engine) ExecuteBatch(ctx context.Context, b *Batch) ([]Result, error) {
	calls, err := b.Calls()
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, calls...)
}

func (e *Engine) roundTrip(ctx context.Context, body []byte) ([]Response, error) {
	status, data, err := e.poster.PostJSON(ctx, e.url, body, e.headers)
	if err != nil {
		return nil, &TransportError{URL: e.url, Err: err}
	}
	if status < 200 || status > 299 {
		return nil, &TransportError{
			URL:        e.url,
			StatusCode: status,
			Err:        fmt.Errorf("unexpected status, body: %s", truncate(string(data))),
		}
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		// some nodes reject a whole batch with a single error object
		var single Response
		if err := json.Unmarshal(data, &single); err == nil && single.Error != nil {
			return nil, &TransportError{
				URL:        e.url,
				StatusCode: status,
				Err: &RemoteCallError{
					ID:      single.ID,
					Method:  "batch",
					Code:    single.Error.Code,
					Message: single.Error.Message,
					Data:    single.Error.Data,
				},
			}
		}
		return nil, &TransportError{URL: e.url, StatusCode: status, Err: errors.New("response is not a batch array")}
	}

	var responses []Response
	if err := json.Unmarshal(data, &responses); err != nil {
		return nil, &TransportError{URL: e.url, StatusCode: status, Err: fmt.Errorf("malformed batch response: %w", err)}
	}
	return responses, nil
}

func (e *Engine) resolve(c Call, id string, resp Response) Result {
	if resp.Error != nil {
		e.metrics.CallError("remote")
		return Result{ID: id, Err: &RemoteCallError{
			ID:      id,
			Method:  c.Method,
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
			Data:    resp.Error.Data,
		}}
	}

	value, err := Decode(c.Returns, resp.Result)
	if err != nil {
		e.metrics.CallError("decode")
		return Result{ID: id, Err: fmt.Errorf("%s: %w", c.Method, err)}
	}
	return Result{ID: id, Value: value}
}
