package fetch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/yourorg/extools/internal/model"
	"github.com/yourorg/extools/internal/types"
)

// maxDexScreenerTokens is the number of addresses /tokens accepts per request
const maxDexScreenerTokens = 30

// DexScreenerPairs is the reply of the /tokens, /pairs and /search endpoints
type DexScreenerPairs struct {
	SchemaVersion string            `json:"schemaVersion"`
	Pairs         []DexScreenerPair `json:"pairs"`
}

// DexScreenerPair contains the trading data of one pool
type DexScreenerPair struct {
	ChainID     string           `json:"chainId"`
	DexID       string           `json:"dexId"`
	URL         string           `json:"url"`
	PairAddress string           `json:"pairAddress"`
	BaseToken   DexScreenerToken `json:"baseToken"`
	QuoteToken  DexScreenerToken `json:"quoteToken"`
	PriceNative string           `json:"priceNative"`
	PriceUSD    string           `json:"priceUsd"`
	Txns        struct {
		H24 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
	Volume struct {
		H1  float64 `json:"h1"`
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H1  float64 `json:"h1"`
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	// nil for pools DexScreener cannot value
	Liquidity *struct {
		USD   float64 `json:"usd"`
		Base  float64 `json:"base"`
		Quote float64 `json:"quote"`
	} `json:"liquidity"`
	FDV           float64 `json:"fdv"`
	MarketCap     float64 `json:"marketCap"`
	PairCreatedAt int64   `json:"pairCreatedAt"`
}

type DexScreenerToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// LiquidityUSD returns the pool's USD liquidity, zero when unknown
func (p DexScreenerPair) LiquidityUSD() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}

type DexScreener struct {
	*Client
}

func NewDexScreener(opts ...ClientOption) *DexScreener {
	return &DexScreener{NewClient(DexScreenerProvider, opts...)}
}

// Tokens returns every pair trading any of the given token addresses
func (d *DexScreener) Tokens(ctx context.Context, addrs ...string) (*DexScreenerPairs, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("dexscreener: no token addresses")
	}
	if len(addrs) > maxDexScreenerTokens {
		return nil, fmt.Errorf("dexscreener: %d addresses, at most %d per request", len(addrs), maxDexScreenerTokens)
	}

	var out DexScreenerPairs
	if err := d.Get(ctx, "tokens/"+strings.Join(addrs, ","), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pair returns a single pool on chainID (DexScreener's chain slug)
func (d *DexScreener) Pair(ctx context.Context, chainID, pair string) (*DexScreenerPairs, error) {
	var out DexScreenerPairs
	if err := d.Get(ctx, "pairs/"+chainID+"/"+pair, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Quote prices token from its most liquid pair on chain where it is the base token
func (d *DexScreener) Quote(ctx context.Context, chain types.SupportedChain, token types.Address) (model.Quote, error) {
	cfg, err := chainConfig(chain)
	if err != nil {
		return model.Quote{}, err
	}

	pairs, err := d.Tokens(ctx, token.Hex())
	if err != nil {
		return model.Quote{}, err
	}

	var best *DexScreenerPair
	for i := range pairs.Pairs {
		p := &pairs.Pairs[i]
		if p.ChainID != cfg.DexScreener || !strings.EqualFold(p.BaseToken.Address, token.Hex()) {
			continue
		}
		if best == nil || p.LiquidityUSD() > best.LiquidityUSD() {
			best = p
		}
	}
	if best == nil {
		return model.Quote{}, fmt.Errorf("dexscreener %s on %s: %w", token, chain, ErrNoQuote)
	}

	price, err := strconv.ParseFloat(best.PriceUSD, 64)
	if err != nil || price <= 0 {
		return model.Quote{}, fmt.Errorf("dexscreener %s: bad priceUsd %q: %w", token, best.PriceUSD, ErrNoQuote)
	}

	q := model.NewQuote(d.Name(), chain, token, price).WithLiquidity(best.LiquidityUSD(), best.Volume.H24)
	if pair, err := types.ParseAddress(best.PairAddress); err == nil {
		q.Pair = pair
	}
	return q, nil
}
