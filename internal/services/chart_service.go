package services

import (
	"context"
	"time"

	"github.com/marketpulse/aggregator/internal/cache"
	"github.com/marketpulse/aggregator/internal/providers/normalize"
	"github.com/marketpulse/aggregator/internal/providers/types"
)

// ChartFetcher is the upstream call a ChartService wraps.
type ChartFetcher func(ctx context.Context, symbol string, interval normalize.Interval, rng normalize.Range) (types.Chart, error)

// ChartServiceConfig tunes a ChartService's cache/stale behavior.
type ChartServiceConfig struct {
	TTL         time.Duration // default 60s
	StaleWindow time.Duration // default 120s
}

func (c ChartServiceConfig) withDefaults() ChartServiceConfig {
	if c.TTL <= 0 {
		c.TTL = 60 * time.Second
	}
	if c.StaleWindow <= 0 {
		c.StaleWindow = 120 * time.Second
	}
	return c
}

// ChartService is the cached, coalesced, rate-limited, circuit-broken chart
// surface for a single provider.
type ChartService struct {
	core  *core[types.Chart]
	fetch ChartFetcher
}

// NewChartService builds a ChartService over fetch. No mock fallback: a
// synthesized OHLC series would be misleading in a way a synthesized quote
// point is not.
func NewChartService(cfg ChartServiceConfig, fetch ChartFetcher) *ChartService {
	cfg = cfg.withDefaults()
	return &ChartService{
		core:  newCore[types.Chart](coreConfig{TTL: cfg.TTL, StaleWindow: cfg.StaleWindow}, cache.New[types.Chart](cache.Config{}), nil),
		fetch: fetch,
	}
}

// Chart returns the normalized OHLC series for symbol/interval/range.
func (s *ChartService) Chart(ctx context.Context, symbol string, requested normalize.Interval, rng normalize.Range) (types.Chart, error) {
	sym, err := normalize.Symbol(symbol)
	if err != nil {
		return types.Chart{}, err
	}

	key := sym + "|" + string(requested) + "|" + string(rng)
	result, err := s.core.execute(ctx, key, func(ctx context.Context) (types.Chart, error) {
		return s.fetch(ctx, sym, requested, rng)
	})
	if err != nil {
		return types.Chart{}, err
	}

	c := result.Value
	c.Stale = result.Stale
	return c, nil
}
