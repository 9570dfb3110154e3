package jsonrpc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Poster sends one JSON body and returns the raw reply. Implementations
// report connection failures and timeouts as errors and leave status
// interpretation to the caller.
type Poster interface {
	PostJSON(ctx context.Context, url string, body []byte, headers map[string]string) (status int, respBody []byte, err error)
}

// HTTPOptions configures the HTTP poster
type HTTPOptions struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// HTTPPoster posts over a retryablehttp client. With RetryMax 0 (the
// default) every batch is sent exactly once.
type HTTPPoster struct {
	client *retryablehttp.Client
}

// NewHTTPPoster creates a poster from opts
func NewHTTPPoster(opts HTTPOptions) *HTTPPoster {
	c := retryablehttp.NewClient()
	c.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		c.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		c.RetryWaitMax = opts.RetryWaitMax
	}
	c.HTTPClient.Timeout = opts.Timeout
	// non-2xx replies reach the engine instead of becoming "giving up" errors
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.Logger = nil
	return &HTTPPoster{client: c}
}

// PostJSON implements Poster
func (p *HTTPPoster) PostJSON(ctx context.Context, url string, body []byte, headers map[string]string) (int, []byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("error reading response body: %w", err)
	}
	return resp.StatusCode, data, nil
}
