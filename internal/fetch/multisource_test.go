package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/extools/internal/aggregate"
	"github.com/yourorg/extools/internal/circuitbreaker"
	"github.com/yourorg/extools/internal/model"
	"github.com/yourorg/extools/internal/types"
	"github.com/yourorg/extools/internal/validation"
)

type fakeSource struct {
	name      string
	price     float64
	liquidity float64
	err       error
	calls     int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Quote(_ context.Context, chain types.SupportedChain, token types.Address) (model.Quote, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return model.Quote{}, f.err
	}
	return model.NewQuote(f.name, chain, token, f.price).WithLiquidity(f.liquidity, 0), nil
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memoryStore) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (s *memoryStore) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return nil
}

func TestMultiSource_Quotes(t *testing.T) {
	ok1 := &fakeSource{name: "a", price: 1.0, liquidity: 1000}
	ok2 := &fakeSource{name: "b", price: 4.0, liquidity: 2000}
	bad := &fakeSource{name: "c", err: errors.New("boom")}

	m := NewMultiSource(ok1, ok2, bad)
	quotes, failed := m.Quotes(context.Background(), types.ChainEthereum, usdc)

	require.Len(t, quotes, 2)
	assert.Equal(t, "a", quotes[0].Source)
	assert.Equal(t, "b", quotes[1].Source)
	require.Len(t, failed, 1)
	assert.EqualError(t, failed["c"], "boom")
}

func TestMultiSource_PriceWeighted(t *testing.T) {
	m := NewMultiSource(
		&fakeSource{name: "a", price: 1.0, liquidity: 1000},
		&fakeSource{name: "b", price: 4.0, liquidity: 2000},
	)

	q, err := m.Price(context.Background(), types.ChainEthereum, usdc)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, q.PriceUSD, 1e-9)
	assert.Equal(t, "aggregated", q.Source)
	assert.Equal(t, usdc, q.Token)
}

func TestMultiSource_PriceMedianWithoutLiquidity(t *testing.T) {
	m := NewMultiSource(
		&fakeSource{name: "a", price: 1.0},
		&fakeSource{name: "b", price: 1.2},
		&fakeSource{name: "c", price: 1.1},
	)

	q, err := m.Price(context.Background(), types.ChainEthereum, usdc)
	require.NoError(t, err)
	assert.Equal(t, 1.1, q.PriceUSD)
}

func TestMultiSource_Method(t *testing.T) {
	m := NewMultiSource(
		&fakeSource{name: "a", price: 1.0, liquidity: 1000},
		&fakeSource{name: "b", price: 4.0, liquidity: 2000},
	).WithMethod(aggregate.MethodMean)

	q, err := m.Price(context.Background(), types.ChainEthereum, usdc)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, q.PriceUSD, 1e-9)
}

func TestMultiSource_AllFail(t *testing.T) {
	m := NewMultiSource(
		&fakeSource{name: "a", err: ErrNoQuote},
		&fakeSource{name: "b", err: errors.New("timeout")},
	)

	_, err := m.Price(context.Background(), types.ChainEthereum, usdc)
	assert.ErrorIs(t, err, ErrNoQuote)
	assert.ErrorContains(t, err, "timeout")
}

func TestMultiSource_ValidationOptions(t *testing.T) {
	m := NewMultiSource(
		&fakeSource{name: "thick", price: 1.0, liquidity: 100_000},
		&fakeSource{name: "thin", price: 9.0, liquidity: 10},
	)

	opts := validation.DefaultOptions()
	opts.MinLiquidityUSD = 1000
	q, err := m.WithValidation(opts).Price(context.Background(), types.ChainEthereum, usdc)
	require.NoError(t, err)
	assert.Equal(t, 1.0, q.PriceUSD)

	opts.RequireLiquidity = true
	opts.MinLiquidityUSD = 1_000_000
	_, err = m.WithValidation(opts).Price(context.Background(), types.ChainEthereum, usdc)
	assert.ErrorIs(t, err, ErrNoQuote)
}

func TestMultiSource_Breaker(t *testing.T) {
	cb := circuitbreaker.New(circuitbreaker.Thresholds{MinSources: 2})
	m := NewMultiSource(&fakeSource{name: "a", price: 1.0}).WithBreaker(cb)

	_, err := m.Price(context.Background(), types.ChainEthereum, usdc)
	assert.ErrorIs(t, err, circuitbreaker.ErrTripped)

	_, err = m.Price(context.Background(), types.ChainEthereum, usdc)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, circuitbreaker.StateOpen, cb.State(QuoteKey(types.ChainEthereum, usdc)))

	ok := NewMultiSource(
		&fakeSource{name: "a", price: 1.0},
		&fakeSource{name: "b", price: 1.0},
	).WithBreaker(cb)
	q, err := ok.Price(context.Background(), types.ChainBSC, usdc)
	require.NoError(t, err)
	assert.Equal(t, 1.0, q.PriceUSD)
}

func TestMultiSource_Cache(t *testing.T) {
	src := &fakeSource{name: "a", price: 2.0}
	m := NewMultiSource(src)

	for i := 0; i < 3; i++ {
		_, err := m.Price(context.Background(), types.ChainEthereum, usdc)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))

	uncached := &fakeSource{name: "b", price: 2.0}
	m = NewMultiSource(uncached).WithCacheTTL(0)
	for i := 0; i < 3; i++ {
		_, _ = m.Quotes(context.Background(), types.ChainEthereum, usdc)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&uncached.calls))
}

func TestMultiSource_CacheSize(t *testing.T) {
	src := &fakeSource{name: "a", price: 2.0}
	m := NewMultiSource(src).WithCacheSize(1)
	other := types.Address("0xCb3e9919C56efF1004E54175a01e39163a352129")

	ctx := context.Background()
	_, _ = m.Quotes(ctx, types.ChainEthereum, usdc)
	_, _ = m.Quotes(ctx, types.ChainEthereum, other)
	// usdc was evicted by other
	_, _ = m.Quotes(ctx, types.ChainEthereum, usdc)
	assert.Equal(t, int32(3), atomic.LoadInt32(&src.calls))

	_, _ = m.Quotes(ctx, types.ChainEthereum, usdc)
	assert.Equal(t, int32(3), atomic.LoadInt32(&src.calls))
}

func TestMultiSource_SharedStore(t *testing.T) {
	store := &memoryStore{data: map[string][]byte{}}
	first := &fakeSource{name: "a", price: 2.0}
	second := &fakeSource{name: "a", price: 2.0}

	_, err := NewMultiSource(first).WithStore(store).Price(context.Background(), types.ChainEthereum, usdc)
	require.NoError(t, err)
	assert.Contains(t, store.data, "quote:chain:ethereum:token:0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48:")

	// a second process reuses the stored quotes
	q, err := NewMultiSource(second).WithStore(store).Price(context.Background(), types.ChainEthereum, usdc)
	require.NoError(t, err)
	assert.Equal(t, 2.0, q.PriceUSD)
	assert.Zero(t, atomic.LoadInt32(&second.calls))
}

func TestMultiSource_ProviderTimeout(t *testing.T) {
	slow := sourceFunc(func(ctx context.Context) (model.Quote, error) {
		<-ctx.Done()
		return model.Quote{}, ctx.Err()
	})

	m := NewMultiSource(slow).WithProviderTimeout(20 * time.Millisecond)
	_, failed := m.Quotes(context.Background(), types.ChainEthereum, usdc)
	assert.ErrorIs(t, failed["slow"], context.DeadlineExceeded)
}

type sourceFunc func(ctx context.Context) (model.Quote, error)

func (f sourceFunc) Name() string { return "slow" }

func (f sourceFunc) Quote(ctx context.Context, _ types.SupportedChain, _ types.Address) (model.Quote, error) {
	return f(ctx)
}
