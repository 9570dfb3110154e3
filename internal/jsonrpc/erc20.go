package jsonrpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/yourorg/extools/internal/types"
)

// Token is the ERC-20 metadata read by TokenInfo
type Token struct {
	Address     types.Address
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

// Pair is the state of a Uniswap V2 style pair read by PairInfo
type Pair struct {
	Address  types.Address
	Token0   types.Address
	Token1   types.Address
	Reserves Reserves
}

// TokenInfo reads name, symbol, decimals and total supply in one batch
func (e *Engine) TokenInfo(ctx context.Context, token string) (*Token, error) {
	addr, err := types.ParseAddress(token)
	if err != nil {
		return nil, err
	}

	var b Batch
	b.Add(Name(addr.Hex())).
		Add(Symbol(addr.Hex())).
		Add(Decimals(addr.Hex())).
		Add(TotalSupply(addr.Hex()))

	results, err := e.ExecuteBatch(ctx, &b)
	if err != nil {
		return nil, err
	}

	t := &Token{Address: addr}
	if t.Name, err = results[0].Text(); err != nil {
		return nil, fmt.Errorf("token %s name: %w", addr, err)
	}
	if t.Symbol, err = results[1].Text(); err != nil {
		return nil, fmt.Errorf("token %s symbol: %w", addr, err)
	}
	decimals, err := results[2].Int()
	if err != nil {
		return nil, fmt.Errorf("token %s decimals: %w", addr, err)
	}
	if !decimals.IsUint64() || decimals.Uint64() > 255 {
		return nil, fmt.Errorf("token %s decimals: %s out of range", addr, decimals)
	}
	t.Decimals = uint8(decimals.Uint64())
	if t.TotalSupply, err = results[3].Int(); err != nil {
		return nil, fmt.Errorf("token %s total supply: %w", addr, err)
	}
	return t, nil
}

// PairInfo reads both token addresses and the reserves of a pair in one batch
func (e *Engine) PairInfo(ctx context.Context, pair string) (*Pair, error) {
	addr, err := types.ParseAddress(pair)
	if err != nil {
		return nil, err
	}

	var b Batch
	b.Add(Token0(addr.Hex())).
		Add(Token1(addr.Hex())).
		Add(GetReserves(addr.Hex()))

	results, err := e.ExecuteBatch(ctx, &b)
	if err != nil {
		return nil, err
	}

	p := &Pair{Address: addr}
	if p.Token0, err = results[0].Address(); err != nil {
		return nil, fmt.Errorf("pair %s token0: %w", addr, err)
	}
	if p.Token1, err = results[1].Address(); err != nil {
		return nil, fmt.Errorf("pair %s token1: %w", addr, err)
	}
	if p.Reserves, err = results[2].Reserves(); err != nil {
		return nil, fmt.Errorf("pair %s reserves: %w", addr, err)
	}
	return p, nil
}

// Balances reads token balances of several wallets in one batch. Per-wallet
// failures are returned in the error slice at the wallet's position.
func (e *Engine) Balances(ctx context.Context, token string, wallets ...string) ([]*big.Int, []error, error) {
	var b Batch
	for _, w := range wallets {
		b.Add(BalanceOf(token, w))
	}

	results, err := e.ExecuteBatch(ctx, &b)
	if err != nil {
		return nil, nil, err
	}

	balances := make([]*big.Int, len(results))
	errs := make([]error, len(results))
	for i, r := range results {
		balances[i], errs[i] = r.Int()
	}
	return balances, errs, nil
}
