package services

import (
	"context"
	"time"

	"github.com/marketpulse/aggregator/internal/cache"
	"github.com/marketpulse/aggregator/internal/providers/normalize"
	"github.com/marketpulse/aggregator/internal/providers/types"
)

// DetailFetcher is the upstream call a DetailService wraps.
type DetailFetcher func(ctx context.Context, symbol string) (types.Detail, error)

// DetailServiceConfig tunes a DetailService's cache/stale behavior.
type DetailServiceConfig struct {
	TTL         time.Duration // default 5min
	StaleWindow time.Duration // default 300s
}

func (c DetailServiceConfig) withDefaults() DetailServiceConfig {
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.StaleWindow <= 0 {
		c.StaleWindow = 300 * time.Second
	}
	return c
}

// DetailService is the cached, coalesced, rate-limited, circuit-broken
// fundamentals surface for a single provider.
type DetailService struct {
	core  *core[types.Detail]
	fetch DetailFetcher
}

// NewDetailService builds a DetailService over fetch.
func NewDetailService(cfg DetailServiceConfig, fetch DetailFetcher) *DetailService {
	cfg = cfg.withDefaults()
	return &DetailService{
		core:  newCore[types.Detail](coreConfig{TTL: cfg.TTL, StaleWindow: cfg.StaleWindow}, cache.New[types.Detail](cache.Config{}), nil),
		fetch: fetch,
	}
}

// Detail returns fundamentals for symbol.
func (s *DetailService) Detail(ctx context.Context, symbol string) (types.Detail, error) {
	sym, err := normalize.Symbol(symbol)
	if err != nil {
		return types.Detail{}, err
	}

	result, err := s.core.execute(ctx, sym, func(ctx context.Context) (types.Detail, error) {
		return s.fetch(ctx, sym)
	})
	if err != nil {
		return types.Detail{}, err
	}

	d := result.Value
	d.Stale = result.Stale
	return d, nil
}
