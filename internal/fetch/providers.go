package fetch

import (
	"context"
	"fmt"

	"github.com/yourorg/extools/internal/config"
	"github.com/yourorg/extools/internal/metrics"
	"github.com/yourorg/extools/internal/model"
	"github.com/yourorg/extools/internal/ratelimit"
	"github.com/yourorg/extools/internal/types"
)

var accept = map[string]string{"accept": "application/json"}

// Built-in provider table
var (
	DexToolsProvider = Provider{
		Name:              config.DexTools,
		BaseURL:           "https://open-api.dextools.io",
		Prefix:            "/free/v2",
		Headers:           accept,
		KeyHeader:         "X-BLOBR-KEY",
		RequestsPerMinute: 40,
	}
	DexScreenerProvider = Provider{
		Name:              config.DexScreener,
		BaseURL:           "https://api.dexscreener.com",
		Prefix:            "/latest/dex",
		Headers:           accept,
		RequestsPerMinute: 300,
	}
	GeckoTerminalProvider = Provider{
		Name:              config.GeckoTerminal,
		BaseURL:           "https://api.geckoterminal.com",
		Prefix:            "/api/v2",
		Headers:           accept,
		RequestsPerMinute: 30,
	}
	CoinGeckoProvider = Provider{
		Name:              config.CoinGecko,
		BaseURL:           "https://api.coingecko.com",
		Prefix:            "/api/v3",
		Headers:           accept,
		KeyHeader:         "x-cg-demo-api-key",
		RequestsPerMinute: 30,
	}
	CryptoAPIProvider = Provider{
		Name:    config.CryptoAPI,
		BaseURL: "http://127.0.0.1:9876",
		Headers: accept,
	}
)

// QuoteSource is implemented by every provider that can price a token
type QuoteSource interface {
	Name() string
	Quote(ctx context.Context, chain types.SupportedChain, token types.Address) (model.Quote, error)
}

// Clients holds one client per provider
type Clients struct {
	DexTools      *DexTools
	DexScreener   *DexScreener
	GeckoTerminal *GeckoTerminal
	CoinGecko     *CoinGecko
	CryptoAPI     *CryptoAPI
}

// NewClients builds every provider client with the overrides from cfg
func NewClients(cfg config.Config, m *metrics.Collector) *Clients {
	opts := func(name string) []ClientOption {
		pc := cfg.Provider(name)
		o := []ClientOption{WithMetrics(m), WithAPIKey(pc.APIKey)}
		if pc.BaseURL != "" {
			o = append(o, WithBaseURL(pc.BaseURL))
		}
		if pc.RequestsPerMinute > 0 {
			o = append(o, WithLimiter(ratelimit.New(name, pc.RequestsPerMinute)))
		}
		if pc.Timeout > 0 {
			o = append(o, WithTimeout(pc.Timeout))
		}
		return o
	}

	return &Clients{
		DexTools:      NewDexTools(opts(config.DexTools)...),
		DexScreener:   NewDexScreener(opts(config.DexScreener)...),
		GeckoTerminal: NewGeckoTerminal(opts(config.GeckoTerminal)...),
		CoinGecko:     NewCoinGecko(opts(config.CoinGecko)...),
		CryptoAPI:     NewCryptoAPI(opts(config.CryptoAPI)...),
	}
}

// Client returns the generic client for a provider name
func (c *Clients) Client(name string) (*Client, bool) {
	switch name {
	case config.DexTools:
		return c.DexTools.Client, true
	case config.DexScreener:
		return c.DexScreener.Client, true
	case config.GeckoTerminal:
		return c.GeckoTerminal.Client, true
	case config.CoinGecko:
		return c.CoinGecko.Client, true
	case config.CryptoAPI:
		return c.CryptoAPI.Client, true
	}
	return nil, false
}

// QuoteSources returns the providers that can price tokens. DexTools is
// left out when no key is configured since its free tier rejects anonymous calls.
func (c *Clients) QuoteSources() []QuoteSource {
	sources := []QuoteSource{c.DexScreener, c.GeckoTerminal, c.CoinGecko}
	if c.DexTools.HasKey() {
		sources = append(sources, c.DexTools)
	}
	return sources
}

func chainConfig(chain types.SupportedChain) (types.ChainConfig, error) {
	cfg, ok := types.Chains[chain]
	if !ok {
		return types.ChainConfig{}, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}
	return cfg, nil
}
