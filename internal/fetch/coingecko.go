package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/yourorg/extools/internal/model"
	"github.com/yourorg/extools/internal/types"
)

// CoinGeckoTokenPrices maps a lowercase contract address to currency fields,
// e.g. {"usd": 1.0, "usd_24h_vol": 1234.5}
type CoinGeckoTokenPrices map[string]map[string]float64

// Price returns the price of addr in currency vs
func (p CoinGeckoTokenPrices) Price(addr, vs string) (float64, bool) {
	fields, ok := p[strings.ToLower(addr)]
	if !ok {
		return 0, false
	}
	v, ok := fields[strings.ToLower(vs)]
	return v, ok
}

type CoinGecko struct {
	*Client
}

func NewCoinGecko(opts ...ClientOption) *CoinGecko {
	return &CoinGecko{NewClient(CoinGeckoProvider, opts...)}
}

// TokenPrice returns prices of contract addresses on platform (an asset
// platform id such as "ethereum"). vs defaults to usd.
func (c *CoinGecko) TokenPrice(ctx context.Context, platform string, addrs []string, vs ...string) (CoinGeckoTokenPrices, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("coingecko: no contract addresses")
	}
	if len(vs) == 0 {
		vs = []string{"usd"}
	}

	params := url.Values{}
	params.Set("contract_addresses", strings.Join(addrs, ","))
	params.Set("vs_currencies", strings.Join(vs, ","))
	params.Set("include_24hr_vol", "true")

	var out CoinGeckoTokenPrices
	if err := c.Get(ctx, "simple/token_price/"+platform, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks that the API is reachable
func (c *CoinGecko) Ping(ctx context.Context) error {
	return c.Get(ctx, "ping", nil, nil)
}

func (c *CoinGecko) Quote(ctx context.Context, chain types.SupportedChain, token types.Address) (model.Quote, error) {
	cfg, err := chainConfig(chain)
	if err != nil {
		return model.Quote{}, err
	}

	prices, err := c.TokenPrice(ctx, cfg.CoinGecko, []string{token.Hex()}, "usd")
	if err != nil {
		return model.Quote{}, err
	}
	price, ok := prices.Price(token.Hex(), "usd")
	if !ok || price <= 0 {
		return model.Quote{}, fmt.Errorf("coingecko %s on %s: %w", token, chain, ErrNoQuote)
	}
	volume, _ := prices.Price(token.Hex(), "usd_24h_vol")
	return model.NewQuote(c.Name(), chain, token, price).WithLiquidity(0, volume), nil
}
