// Package model defines the normalized price record shared by every provider.
package model

import (
	"math"
	"time"

	"github.com/yourorg/extools/internal/types"
)

// Quote is a single USD price observation for a token from one provider.
// This is the record that flows from the fetch clients into aggregation.
type Quote struct {
	// Source is the provider name, or "aggregated"
	Source string `json:"source"`

	// Chain is the SupportedChain the token lives on
	Chain types.SupportedChain `json:"chain"`

	Token types.Address `json:"token"`

	PriceUSD float64 `json:"price_usd"`

	// LiquidityUSD is the pool depth behind the price, zero when the provider does not report it
	LiquidityUSD float64 `json:"liquidity_usd,omitempty"`

	Volume24hUSD float64 `json:"volume_24h_usd,omitempty"`

	// Pair the price was read from, if any
	Pair types.Address `json:"pair,omitempty"`

	// CollectedAt is the Unix timestamp when this quote was fetched
	CollectedAt int64 `json:"collected_at"`
}

// NewQuote creates a quote stamped with the current time
func NewQuote(source string, chain types.SupportedChain, token types.Address, price float64) Quote {
	return Quote{
		Source:      source,
		Chain:       chain,
		Token:       token,
		PriceUSD:    price,
		CollectedAt: time.Now().Unix(),
	}
}

// IsValid performs basic validation on this quote
func (q Quote) IsValid() bool {
	return q.PriceUSD > 0 &&
		!math.IsInf(q.PriceUSD, 0) &&
		q.LiquidityUSD >= 0 &&
		q.Source != "" &&
		!q.Token.IsZero() &&
		time.Since(time.Unix(q.CollectedAt, 0)) < 24*time.Hour
}

// WithLiquidity sets the liquidity and 24h volume behind the price
func (q Quote) WithLiquidity(liquidity, volume float64) Quote {
	q.LiquidityUSD = liquidity
	q.Volume24hUSD = volume
	return q
}
