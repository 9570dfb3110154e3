// Package fetch provides rate limited clients for the public price and
// metadata APIs (DexTools, DexScreener, GeckoTerminal, CoinGecko) and the
// local CryptoAPI service.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yourorg/extools/internal/metrics"
	"github.com/yourorg/extools/internal/otel"
	"github.com/yourorg/extools/internal/ratelimit"
)

var (
	// ErrNoQuote is returned when a provider answered but had no usable price
	ErrNoQuote = errors.New("no quote available")

	ErrUnsupportedChain = errors.New("unsupported chain")
)

// Provider describes one upstream HTTP API
type Provider struct {
	Name    string
	BaseURL string
	// Prefix is prepended to every endpoint path
	Prefix  string
	Headers map[string]string
	// KeyHeader carries the API key when one is configured
	KeyHeader         string
	RequestsPerMinute float64
}

// APIError is a non-200 reply from a provider
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("%s API error: status %d, body: %s", e.Provider, e.Status, body)
}

// Client performs GET requests against a single provider
type Client struct {
	provider   Provider
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	metrics    *metrics.Collector
	timeout    time.Duration
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithLimiter replaces the provider's default limiter. Share one limiter
// between clients to make them draw from the same budget.
func WithLimiter(l *ratelimit.Limiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithMetrics(m *metrics.Collector) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithBaseURL points the client at another host, e.g. a paid API tier or a test server
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.provider.BaseURL = strings.TrimRight(u, "/") }
}

// WithAPIKey sends key in the provider's key header
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		if key == "" || c.provider.KeyHeader == "" {
			return
		}
		headers := make(map[string]string, len(c.provider.Headers)+1)
		for k, v := range c.provider.Headers {
			headers[k] = v
		}
		headers[c.provider.KeyHeader] = key
		c.provider.Headers = headers
	}
}

// NewClient creates a client for p
func NewClient(p Provider, opts ...ClientOption) *Client {
	c := &Client{provider: p, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newRetryClient(c.timeout).StandardClient()
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New(p.Name, p.RequestsPerMinute)
	}
	c.limiter.WithMetrics(c.metrics)
	return c
}

// newRetryClient creates a new HTTP client with retry capabilities.
// Final non-2xx replies are passed through so they surface as APIError.
func newRetryClient(timeout time.Duration) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.HTTPClient.Timeout = timeout
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.Logger = nil
	return c
}

func (c *Client) Name() string { return c.provider.Name }

// URL builds the full request URL for endpoint and params
func (c *Client) URL(endpoint string, params url.Values) string {
	path := strings.TrimRight(c.provider.Prefix, "/") + "/" + strings.TrimLeft(endpoint, "/")
	u := c.provider.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Get fetches endpoint and decodes the JSON reply into dest
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, dest any) error {
	raw, err := c.Raw(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("error decoding %s response: %w", c.provider.Name, err)
	}
	return nil
}

// Raw fetches endpoint and returns the JSON body unchanged
func (c *Client) Raw(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.URL(endpoint, params)
	ctx, span := otel.Start(ctx, "fetch."+c.provider.Name,
		attribute.String("http.method", http.MethodGet),
		attribute.String("http.url", u),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	for k, v := range c.provider.Headers {
		req.Header.Set(k, v)
	}

	logrus.Debugf("Fetching %s: %s", c.provider.Name, u)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(c.provider.Name, 0, time.Since(start))
		otel.RecordError(ctx, err)
		return nil, fmt.Errorf("error fetching data from %s: %w", c.provider.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(c.provider.Name, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("error reading %s response: %w", c.provider.Name, err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Provider: c.provider.Name, Status: resp.StatusCode, Body: string(body)}
		otel.RecordError(ctx, apiErr)
		return nil, apiErr
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s returned a non-JSON body", c.provider.Name)
	}

	return body, nil
}
