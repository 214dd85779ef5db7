// Package services composes the per-host HTTP executor and provider clients
// into the cached, coalesced, rate-limited, circuit-broken surface the HTTP
// and WebSocket layers call into.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/marketpulse/aggregator/internal/breaker"
	"github.com/marketpulse/aggregator/internal/cache"
	"github.com/marketpulse/aggregator/internal/concurrency"
	cerrors "github.com/marketpulse/aggregator/internal/errors"
)

// MockFallback synthesizes a stable value for key when the upstream is
// judged down. It never returns an error: a fallback that can fail is not a
// fallback.
type MockFallback[V any] func(key string) V

// coreConfig holds the tunables shared by every provider service: cache TTL,
// stale-if-error window, and how long a recent failure keeps the mock
// fallback (if any) engaged before the service tries the upstream again.
type coreConfig struct {
	TTL              time.Duration
	StaleWindow      time.Duration
	MockRetryWindow  time.Duration // default 60s
}

func (c coreConfig) withDefaults() coreConfig {
	if c.MockRetryWindow <= 0 {
		c.MockRetryWindow = 60 * time.Second
	}
	return c
}

// core implements the common provider-service contract: cache.get,
// coalesce+limit+breaker-wrapped upstream call, stale-if-error fallback, and
// an optional deterministic mock fallback when the upstream is down.
type core[V any] struct {
	cfg       coreConfig
	cache     *cache.Cache[V]
	coalescer *concurrency.Coalescer[V]
	limiter   *concurrency.Limiter
	breaker   *breaker.CircuitBreaker
	mock      MockFallback[V]

	mu            sync.Mutex
	lastFailureAt time.Time
}

func newCore[V any](cfg coreConfig, c *cache.Cache[V], mock MockFallback[V]) *core[V] {
	return &core[V]{
		cfg:       cfg.withDefaults(),
		cache:     c,
		coalescer: concurrency.NewCoalescer[V](),
		limiter:   concurrency.NewLimiter(4),
		breaker:   breaker.New(breaker.Config{Name: "provider"}),
		mock:      mock,
	}
}

// fetchResult carries the normalized value plus whether it was served stale
// or synthesized by the mock fallback.
type fetchResult[V any] struct {
	Value V
	Stale bool
	Mock  bool
}

// execute runs the shared contract for cache key key, calling fetch on a
// cache miss. fetch must itself apply input validation before this is
// called; execute only orchestrates caching, coalescing, and resilience.
func (c *core[V]) execute(ctx context.Context, key string, fetch func(context.Context) (V, error)) (fetchResult[V], error) {
	if v, ok := c.cache.Get(key); ok {
		return fetchResult[V]{Value: v}, nil
	}

	v, err := c.coalescer.Do(key, func() (V, error) {
		var zero V
		limiterErr := c.limiter.Submit(ctx, func() error {
			result, breakerErr := c.breaker.Execute(func() (interface{}, error) {
				return fetch(ctx)
			})
			if breakerErr != nil {
				return breakerErr
			}
			zero = result.(V)
			return nil
		})
		return zero, limiterErr
	})

	if err == nil {
		c.cache.Set(key, v, c.cfg.TTL)
		c.clearFailure()
		return fetchResult[V]{Value: v}, nil
	}

	c.recordFailure()

	if stale, ok := c.cache.GetWithStale(key, c.cfg.StaleWindow); ok {
		return fetchResult[V]{Value: stale.Value, Stale: stale.Stale}, nil
	}

	if c.mock != nil && c.upstreamDeemedDown() {
		return fetchResult[V]{Value: c.mock(key), Mock: true}, nil
	}

	var zero fetchResult[V]
	if _, ok := cerrors.As(err); ok {
		return zero, err
	}
	return zero, cerrors.Wrap(cerrors.ProviderError, err)
}

func (c *core[V]) recordFailure() {
	c.mu.Lock()
	c.lastFailureAt = time.Now()
	c.mu.Unlock()
}

func (c *core[V]) clearFailure() {
	c.mu.Lock()
	c.lastFailureAt = time.Time{}
	c.mu.Unlock()
}

func (c *core[V]) upstreamDeemedDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFailureAt.IsZero() {
		return false
	}
	return time.Since(c.lastFailureAt) <= c.cfg.MockRetryWindow
}
