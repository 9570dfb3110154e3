package fetch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/yourorg/extools/internal/model"
	"github.com/yourorg/extools/internal/types"
)

// GeckoTerminalPrices is the reply of /simple/networks/{network}/token_price/{addresses}
type GeckoTerminalPrices struct {
	Data struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			// lowercase address to decimal price string
			TokenPrices map[string]string `json:"token_prices"`
		} `json:"attributes"`
	} `json:"data"`
}

// Price looks up the USD price of addr
func (p *GeckoTerminalPrices) Price(addr string) (float64, bool) {
	raw, ok := p.Data.Attributes.TokenPrices[strings.ToLower(addr)]
	if !ok {
		return 0, false
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

type GeckoTerminal struct {
	*Client
}

func NewGeckoTerminal(opts ...ClientOption) *GeckoTerminal {
	return &GeckoTerminal{NewClient(GeckoTerminalProvider, opts...)}
}

// TokenPrice returns USD prices for up to 30 tokens on network
func (g *GeckoTerminal) TokenPrice(ctx context.Context, network string, addrs ...string) (*GeckoTerminalPrices, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("geckoterminal: no token addresses")
	}
	var out GeckoTerminalPrices
	endpoint := fmt.Sprintf("simple/networks/%s/token_price/%s", network, strings.Join(addrs, ","))
	if err := g.Get(ctx, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *GeckoTerminal) Quote(ctx context.Context, chain types.SupportedChain, token types.Address) (model.Quote, error) {
	cfg, err := chainConfig(chain)
	if err != nil {
		return model.Quote{}, err
	}

	prices, err := g.TokenPrice(ctx, cfg.GeckoTerminal, token.Hex())
	if err != nil {
		return model.Quote{}, err
	}
	price, ok := prices.Price(token.Hex())
	if !ok || price <= 0 {
		return model.Quote{}, fmt.Errorf("geckoterminal %s on %s: %w", token, chain, ErrNoQuote)
	}
	return model.NewQuote(g.Name(), chain, token, price), nil
}
