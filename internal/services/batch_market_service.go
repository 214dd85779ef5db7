package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marketpulse/aggregator/internal/cache"
	"github.com/marketpulse/aggregator/internal/concurrency"
	cerrors "github.com/marketpulse/aggregator/internal/errors"
	"github.com/marketpulse/aggregator/internal/providers/normalize"
	"github.com/marketpulse/aggregator/internal/providers/types"
)

const (
	defaultBatchChunkSize       = 15
	defaultBatchConcurrency     = 2
	defaultBatchMinStartDelay   = 300 * time.Millisecond
	defaultBatchMaxSymbols      = 500
	defaultBatchTTL             = 30 * time.Second
	defaultBatchStaleWindow     = 120 * time.Second
)

// BatchMarketServiceConfig tunes the batch scan's chunking and throttling.
type BatchMarketServiceConfig struct {
	ChunkSize      int
	Concurrency    int
	MinStartDelay  time.Duration
	MaxSymbols     int
	TTL            time.Duration
	StaleWindow    time.Duration
}

func (c BatchMarketServiceConfig) withDefaults() BatchMarketServiceConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultBatchChunkSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultBatchConcurrency
	}
	if c.MinStartDelay <= 0 {
		c.MinStartDelay = defaultBatchMinStartDelay
	}
	if c.MaxSymbols <= 0 {
		c.MaxSymbols = defaultBatchMaxSymbols
	}
	if c.TTL <= 0 {
		c.TTL = defaultBatchTTL
	}
	if c.StaleWindow <= 0 {
		c.StaleWindow = defaultBatchStaleWindow
	}
	return c
}

// BatchMarketService scans an ordered symbol list through a quote fetcher,
// chunked and throttled, isolating one symbol's failure from the rest.
type BatchMarketService struct {
	cfg     BatchMarketServiceConfig
	fetch   QuoteFetcher
	market  string
	cache   *cache.Cache[types.BatchResult]
	limiter *concurrency.ThrottledLimiter
}

// NewBatchMarketService builds a BatchMarketService over fetch. market is
// carried only for cache-key namespacing; the fetcher itself already knows
// which provider and market tag it targets.
func NewBatchMarketService(cfg BatchMarketServiceConfig, market string, fetch QuoteFetcher) *BatchMarketService {
	cfg = cfg.withDefaults()
	return &BatchMarketService{
		cfg:     cfg,
		fetch:   fetch,
		market:  market,
		cache:   cache.New[types.BatchResult](cache.Config{}),
		limiter: concurrency.NewThrottledLimiter(cfg.Concurrency, cfg.MinStartDelay),
	}
}

// Scan fetches quotes for every symbol in symbols, chunked through the
// throttled limiter, and returns the aggregate result sorted by symbol
// ascending. A per-symbol failure is recorded in Errors and does not abort
// the scan.
func (s *BatchMarketService) Scan(ctx context.Context, symbols []string) (types.BatchResult, error) {
	if len(symbols) == 0 {
		return types.BatchResult{}, cerrors.New(cerrors.MissingParam, "symbols is required")
	}
	if len(symbols) > s.cfg.MaxSymbols {
		return types.BatchResult{}, cerrors.New(cerrors.TooManySymbols, "batch exceeds maximum symbol count")
	}

	normalized := make([]string, 0, len(symbols))
	for _, raw := range symbols {
		sym, err := normalize.Symbol(raw)
		if err != nil {
			return types.BatchResult{}, err
		}
		normalized = append(normalized, sym)
	}

	key := s.market + "|" + batchCacheKey(normalized)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	var mu sync.Mutex
	var quotes []types.Quote
	var errs []types.BatchItemError

	for start := 0; start < len(normalized); start += s.cfg.ChunkSize {
		end := start + s.cfg.ChunkSize
		if end > len(normalized) {
			end = len(normalized)
		}
		chunk := normalized[start:end]

		var wg sync.WaitGroup
		for _, sym := range chunk {
			sym := sym
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.limiter.Submit(ctx, func() error {
					q, fetchErr := s.fetch(ctx, sym)
					mu.Lock()
					defer mu.Unlock()
					if fetchErr != nil {
						errs = append(errs, types.BatchItemError{Symbol: sym, Error: fetchErr.Error()})
						return nil
					}
					quotes = append(quotes, q)
					return nil
				})
				if err != nil {
					mu.Lock()
					errs = append(errs, types.BatchItemError{Symbol: sym, Error: err.Error()})
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
	}

	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Symbol < quotes[j].Symbol })
	sort.Slice(errs, func(i, j int) bool { return errs[i].Symbol < errs[j].Symbol })

	result := types.BatchResult{
		Count:   len(normalized),
		Success: len(quotes),
		Failed:  len(errs),
		Quotes:  quotes,
		Errors:  errs,
		Source:  "batch",
	}

	if len(quotes) == 0 && len(errs) > 0 {
		if stale, ok := s.cache.GetWithStale(key, s.cfg.StaleWindow); ok {
			stale.Value.Stale = true
			return stale.Value, nil
		}
	}

	s.cache.Set(key, result, s.cfg.TTL)
	return result, nil
}

func batchCacheKey(symbols []string) string {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)
	key := ""
	for i, s := range sorted {
		if i > 0 {
			key += ","
		}
		key += s
	}
	return key
}
