package services

import (
	"context"
	"time"

	"github.com/marketpulse/aggregator/internal/cache"
	"github.com/marketpulse/aggregator/internal/providers/normalize"
	"github.com/marketpulse/aggregator/internal/providers/types"
)

// QuoteFetcher is the upstream call a QuoteService wraps: crypto.Client.Quote
// or a market.Client.Quote closure with its market tag already bound.
type QuoteFetcher func(ctx context.Context, symbol string) (types.Quote, error)

// QuoteServiceConfig tunes a QuoteService's cache/stale/mock behavior.
type QuoteServiceConfig struct {
	TTL         time.Duration // default 10s
	StaleWindow time.Duration // default 120s
	Mock        bool          // enable deterministic mock fallback

	// Alias resolves a ticker shorthand to the canonical symbol used as the
	// cache key and passed to fetch, e.g. crypto's BTC -> BTCUSDT. Optional;
	// nil passes the symbol through unchanged.
	Alias func(symbol string) string
}

func (c QuoteServiceConfig) withDefaults() QuoteServiceConfig {
	if c.TTL <= 0 {
		c.TTL = 10 * time.Second
	}
	if c.StaleWindow <= 0 {
		c.StaleWindow = 120 * time.Second
	}
	return c
}

// QuoteService is the cached, coalesced, rate-limited, circuit-broken quote
// surface for a single provider (crypto or market-data).
type QuoteService struct {
	core  *core[types.Quote]
	fetch QuoteFetcher
	alias func(string) string
}

// NewQuoteService builds a QuoteService over fetch.
func NewQuoteService(cfg QuoteServiceConfig, fetch QuoteFetcher) *QuoteService {
	cfg = cfg.withDefaults()
	var mock MockFallback[types.Quote]
	if cfg.Mock {
		mock = mockQuote
	}
	return &QuoteService{
		core:  newCore(coreConfig{TTL: cfg.TTL, StaleWindow: cfg.StaleWindow}, cache.New[types.Quote](cache.Config{}), mock),
		fetch: fetch,
		alias: cfg.Alias,
	}
}

// Quote returns the normalized quote for symbol, serving from cache, a fresh
// upstream call, a stale cached value, or a synthesized mock, in that order.
// An alias (e.g. a crypto ticker shorthand) is resolved before the cache key
// is derived, so every spelling of the same instrument shares one entry.
func (s *QuoteService) Quote(ctx context.Context, symbol string) (types.Quote, error) {
	if s.alias != nil {
		symbol = s.alias(symbol)
	}
	sym, err := normalize.Symbol(symbol)
	if err != nil {
		return types.Quote{}, err
	}

	result, err := s.core.execute(ctx, sym, func(ctx context.Context) (types.Quote, error) {
		return s.fetch(ctx, sym)
	})
	if err != nil {
		return types.Quote{}, err
	}

	q := result.Value
	q.Stale = result.Stale
	if result.Mock {
		q.Source = "mock"
		q.Stale = false
	}
	return q, nil
}

// mockQuote synthesizes a deterministic quote so a down upstream never
// surfaces a hard failure to a client that opted into degraded service.
// Deterministic in symbol: the same symbol always yields the same mock
// price, derived from a stable hash rather than real market data.
func mockQuote(symbol string) types.Quote {
	now := time.Now().UTC()
	price := 1 + float64(stableHash(symbol)%100000)/100
	return types.Quote{
		Symbol:            symbol,
		Price:             price,
		ProviderTimestamp: now,
		Source:            "mock",
		FetchedAt:         now,
	}
}

// stableHash is FNV-1a: deterministic across calls and process restarts, no
// seeded randomness involved.
func stableHash(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}
