package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/extools/internal/aggregate"
	"github.com/yourorg/extools/internal/cache"
	"github.com/yourorg/extools/internal/circuitbreaker"
	"github.com/yourorg/extools/internal/model"
	"github.com/yourorg/extools/internal/types"
	"github.com/yourorg/extools/internal/validation"
)

// QuoteStore is a shared cache for quotes, e.g. Redis
type QuoteStore interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

type cachedQuotes struct {
	quotes []model.Quote
	at     time.Time
}

// MultiSource asks several providers for the same token concurrently and
// combines the answers. Results are cached per chain and token.
type MultiSource struct {
	sources         []QuoteSource
	providerTimeout time.Duration
	cacheTTL        time.Duration
	store           QuoteStore
	filter          validation.Options
	breaker         *circuitbreaker.CircuitBreaker
	method          aggregate.Method

	// chain+token -> cachedQuotes, least recently used evicted first
	cached *lru.Cache
}

const defaultCacheSize = 1024

func NewMultiSource(sources ...QuoteSource) *MultiSource {
	return &MultiSource{
		sources:         sources,
		providerTimeout: 10 * time.Second,
		cacheTTL:        time.Minute,
		filter:          validation.DefaultOptions(),
		method:          aggregate.MethodAuto,
		cached:          newLRU(defaultCacheSize),
	}
}

// WithCacheTTL sets how long quotes are reused; zero disables caching
func (m *MultiSource) WithCacheTTL(d time.Duration) *MultiSource {
	m.cacheTTL = d
	return m
}

// WithCacheSize bounds the in-process cache to n tokens
func (m *MultiSource) WithCacheSize(n int) *MultiSource {
	m.cached = newLRU(n)
	return m
}

func newLRU(n int) *lru.Cache {
	if n <= 0 {
		n = defaultCacheSize
	}
	c, _ := lru.New(n)
	return c
}

// WithStore adds a shared cache consulted after the in-process one
func (m *MultiSource) WithStore(s QuoteStore) *MultiSource {
	m.store = s
	return m
}

// WithValidation replaces the default quote filter
func (m *MultiSource) WithValidation(opts validation.Options) *MultiSource {
	m.filter = opts
	return m
}

// WithBreaker guards every token's price with cb
func (m *MultiSource) WithBreaker(cb *circuitbreaker.CircuitBreaker) *MultiSource {
	m.breaker = cb
	return m
}

// WithMethod sets how filtered quotes are combined
func (m *MultiSource) WithMethod(method aggregate.Method) *MultiSource {
	m.method = method
	return m
}

// WithProviderTimeout bounds each provider request, 10s by default
func (m *MultiSource) WithProviderTimeout(d time.Duration) *MultiSource {
	m.providerTimeout = d
	return m
}

// QuoteKey is the cache key of the quotes for token on chain
func QuoteKey(chain types.SupportedChain, token types.Address) string {
	return cache.Key("quote", cache.F("chain", string(chain)), cache.F("token", strings.ToLower(token.Hex())))
}

// Quotes returns one quote per provider that could price token. Providers
// that failed are reported in the error map keyed by provider name.
func (m *MultiSource) Quotes(ctx context.Context, chain types.SupportedChain, token types.Address) ([]model.Quote, map[string]error) {
	key := QuoteKey(chain, token)

	if quotes, ok := m.fromCache(ctx, key); ok {
		return quotes, nil
	}

	quotes := make([]model.Quote, len(m.sources))
	errs := make([]error, len(m.sources))

	var g errgroup.Group
	for i, src := range m.sources {
		i, src := i, src
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, m.providerTimeout)
			defer cancel()

			quotes[i], errs[i] = src.Quote(pctx, chain, token)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.Quote, 0, len(m.sources))
	failed := make(map[string]error)
	for i, src := range m.sources {
		if errs[i] != nil {
			failed[src.Name()] = errs[i]
			logrus.Warnf("Error fetching quote from %s: %v", src.Name(), errs[i])
			continue
		}
		out = append(out, quotes[i])
	}

	logrus.Infof("Fetched %s on %s from %d/%d providers", token, chain, len(out), len(m.sources))

	if len(out) > 0 {
		m.toCache(ctx, key, out)
	}
	if len(failed) == 0 {
		failed = nil
	}
	return out, failed
}

// Price combines all provider quotes into one price, dropping stale quotes
// and outliers. The default method weights by liquidity and uses the median
// without liquidity data. With a breaker set, a tripped or open circuit fails the call.
func (m *MultiSource) Price(ctx context.Context, chain types.SupportedChain, token types.Address) (model.Quote, error) {
	quotes, failed := m.Quotes(ctx, chain, token)

	valid := validation.FilterWithOptions(quotes, m.filter)
	if len(valid) == 0 {
		errs := make([]error, 0, len(failed)+1)
		errs = append(errs, fmt.Errorf("%s on %s: %w", token, chain, ErrNoQuote))
		for name, err := range failed {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return model.Quote{}, errors.Join(errs...)
	}

	if m.breaker != nil {
		if err := m.breaker.Check(QuoteKey(chain, token), valid); err != nil {
			return model.Quote{}, err
		}
	}

	return aggregate.Combine(m.method, valid), nil
}

func (m *MultiSource) fromCache(ctx context.Context, key string) ([]model.Quote, bool) {
	if m.cacheTTL <= 0 {
		return nil, false
	}

	if v, ok := m.cached.Get(key); ok {
		if entry := v.(cachedQuotes); time.Since(entry.at) < m.cacheTTL {
			return entry.quotes, true
		}
	}

	if m.store == nil {
		return nil, false
	}
	var quotes []model.Quote
	found, err := m.store.GetJSON(ctx, key, &quotes)
	if err != nil {
		logrus.Warnf("Quote cache read %s: %v", key, err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	m.cached.Add(key, cachedQuotes{quotes: quotes, at: time.Now()})
	return quotes, true
}

func (m *MultiSource) toCache(ctx context.Context, key string, quotes []model.Quote) {
	if m.cacheTTL <= 0 {
		return
	}

	m.cached.Add(key, cachedQuotes{quotes: quotes, at: time.Now()})

	if m.store != nil {
		if err := m.store.SetJSON(ctx, key, quotes, m.cacheTTL); err != nil {
			logrus.Warnf("Quote cache write %s: %v", key, err)
		}
	}
}
