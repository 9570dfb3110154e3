package types

import "strings"

// SupportedChain represents a blockchain network known to the price providers
type SupportedChain string

// Supported blockchain networks
const (
	ChainEthereum  SupportedChain = "ethereum"
	ChainPolygon   SupportedChain = "polygon"
	ChainArbitrum  SupportedChain = "arbitrum"
	ChainOptimism  SupportedChain = "optimism"
	ChainAvalanche SupportedChain = "avalanche"
	ChainBSC       SupportedChain = "binance"
	ChainBase      SupportedChain = "base"
	ChainAlvey     SupportedChain = "alvey"
)

// ChainConfig maps a chain onto the identifiers each provider uses for it
type ChainConfig struct {
	ID            NetworkID `json:"id" yaml:"id"`
	CoinGecko     string    `json:"coingecko" yaml:"coingecko"`
	GeckoTerminal string    `json:"geckoterminal" yaml:"geckoterminal"`
	DexTools      string    `json:"dextools" yaml:"dextools"`
	DexScreener   string    `json:"dexscreener" yaml:"dexscreener"`
}

// Chains lists provider identifiers per chain.
// Ref: https://docs.coingecko.com/v3.0.1/reference/asset-platforms-list
var Chains = map[SupportedChain]ChainConfig{
	ChainEthereum:  {ID: 1, CoinGecko: "ethereum", GeckoTerminal: "eth", DexTools: "ether", DexScreener: "ethereum"},
	ChainPolygon:   {ID: 137, CoinGecko: "polygon-pos", GeckoTerminal: "polygon_pos", DexTools: "polygon", DexScreener: "polygon"},
	ChainArbitrum:  {ID: 42161, CoinGecko: "arbitrum-one", GeckoTerminal: "arbitrum", DexTools: "arbitrum", DexScreener: "arbitrum"},
	ChainOptimism:  {ID: 10, CoinGecko: "optimistic-ethereum", GeckoTerminal: "optimism", DexTools: "optimism", DexScreener: "optimism"},
	ChainAvalanche: {ID: 43114, CoinGecko: "avalanche", GeckoTerminal: "avax", DexTools: "avalanche", DexScreener: "avalanche"},
	ChainBSC:       {ID: 56, CoinGecko: "binance-smart-chain", GeckoTerminal: "bsc", DexTools: "bsc", DexScreener: "bsc"},
	ChainBase:      {ID: 8453, CoinGecko: "base", GeckoTerminal: "base", DexTools: "base", DexScreener: "base"},
	ChainAlvey:     {ID: 3797, CoinGecko: "alvey-chain", GeckoTerminal: "alvey", DexTools: "alvey", DexScreener: "alvey"},
}

// LookupChain resolves a chain by name, case-insensitively
func LookupChain(name string) (SupportedChain, ChainConfig, bool) {
	chain := SupportedChain(strings.ToLower(name))
	cfg, ok := Chains[chain]
	return chain, cfg, ok
}
