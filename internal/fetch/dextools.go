package fetch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yourorg/extools/internal/model"
	"github.com/yourorg/extools/internal/types"
)

// DexToolsPrice is the reply of /token/{chain}/{address}/price
type DexToolsPrice struct {
	StatusCode int `json:"statusCode"`
	Data       *struct {
		Price        float64  `json:"price"`
		PriceChain   float64  `json:"priceChain"`
		Variation5m  *float64 `json:"variation5m"`
		Variation1h  *float64 `json:"variation1h"`
		Variation6h  *float64 `json:"variation6h"`
		Variation24h *float64 `json:"variation24h"`
	} `json:"data"`
}

type DexTools struct {
	*Client
	hasKey bool
}

// NewDexTools creates a DexTools client; pass WithAPIKey for authenticated access
func NewDexTools(opts ...ClientOption) *DexTools {
	c := NewClient(DexToolsProvider, opts...)
	_, hasKey := c.provider.Headers[DexToolsProvider.KeyHeader]
	return &DexTools{Client: c, hasKey: hasKey}
}

// HasKey reports whether an API key is configured
func (d *DexTools) HasKey() bool { return d.hasKey }

// TokenPrice returns the current price of addr on chain (DexTools chain slug)
func (d *DexTools) TokenPrice(ctx context.Context, chain, addr string) (*DexToolsPrice, error) {
	var out DexToolsPrice
	if err := d.Get(ctx, fmt.Sprintf("token/%s/%s/price", chain, addr), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Token returns the token profile as returned by DexTools
func (d *DexTools) Token(ctx context.Context, chain, addr string) (json.RawMessage, error) {
	return d.Raw(ctx, fmt.Sprintf("token/%s/%s", chain, addr), nil)
}

func (d *DexTools) Quote(ctx context.Context, chain types.SupportedChain, token types.Address) (model.Quote, error) {
	cfg, err := chainConfig(chain)
	if err != nil {
		return model.Quote{}, err
	}

	p, err := d.TokenPrice(ctx, cfg.DexTools, token.Hex())
	if err != nil {
		return model.Quote{}, err
	}
	if p.Data == nil || p.Data.Price <= 0 {
		return model.Quote{}, fmt.Errorf("dextools %s on %s: %w", token, chain, ErrNoQuote)
	}
	return model.NewQuote(d.Name(), chain, token, p.Data.Price), nil
}
