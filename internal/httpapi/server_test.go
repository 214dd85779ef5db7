package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/aggregator/internal/health"
	"github.com/marketpulse/aggregator/internal/metrics"
	"github.com/marketpulse/aggregator/internal/providers/normalize"
	"github.com/marketpulse/aggregator/internal/providers/types"
	"github.com/marketpulse/aggregator/internal/services"
)

type fakeNewsReader struct {
	items map[string]types.NewsItem
}

func (f *fakeNewsReader) ListByCategory(ctx context.Context, category string, limit int) ([]types.NewsItem, error) {
	var out []types.NewsItem
	for _, item := range f.items {
		if item.Category == category {
			out = append(out, item)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeNewsReader) GetByID(ctx context.Context, id string) (types.NewsItem, bool, error) {
	item, ok := f.items[id]
	return item, ok, nil
}

type fakePinger struct{ err error }

func (p *fakePinger) Ping(ctx context.Context) error { return p.err }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	quoteSvc := services.NewQuoteService(services.QuoteServiceConfig{}, func(ctx context.Context, symbol string) (types.Quote, error) {
		return types.Quote{Symbol: symbol, Price: 100, Source: "test", FetchedAt: time.Now()}, nil
	})
	chartSvc := services.NewChartService(services.ChartServiceConfig{}, func(ctx context.Context, symbol string, interval normalize.Interval, rng normalize.Range) (types.Chart, error) {
		return types.Chart{Symbol: symbol, Source: "test"}, nil
	})
	detailSvc := services.NewDetailService(services.DetailServiceConfig{}, func(ctx context.Context, symbol string) (types.Detail, error) {
		return types.Detail{Symbol: symbol, Source: "test"}, nil
	})
	batchSvc := services.NewBatchMarketService(services.BatchMarketServiceConfig{}, "crypto", func(ctx context.Context, symbol string) (types.Quote, error) {
		return types.Quote{Symbol: symbol, Price: 1, Source: "test", FetchedAt: time.Now()}, nil
	})

	markets := map[string]MarketServices{
		"crypto": {Quote: quoteSvc, Chart: chartSvc, Detail: detailSvc, Batch: batchSvc},
	}

	newsReader := &fakeNewsReader{items: map[string]types.NewsItem{
		"abc123": {ID: "abc123", Category: "crypto", Title: "Bitcoin rallies", URL: "https://example.com/a"},
	}}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	return NewServer(
		ServerConfig{},
		markets,
		newsReader,
		health.NewTracker(0),
		&fakePinger{},
		m,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		nil,
		nil,
	)
}

func decodeEnvelope(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestHandleQuoteReturnsOKEnvelope(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/crypto/quote?symbol=BTC", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	env := decodeEnvelope(t, rec.Body.Bytes())
	require.Equal(t, true, env["ok"])
}

func TestHandleQuoteMissingSymbolReturnsErrorEnvelope(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/crypto/quote", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, 400, rec.Code)
	env := decodeEnvelope(t, rec.Body.Bytes())
	require.Equal(t, false, env["ok"])
}

func TestHandleQuoteUnknownMarketReturns404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/nope/quote?symbol=BTC", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, 404, rec.Code)
}

func TestHandleMarketScanReturnsBatchResult(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/markets/crypto?symbols=BTC,ETH", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	env := decodeEnvelope(t, rec.Body.Bytes())
	require.Equal(t, true, env["ok"])
}

func TestHandleNewsListFiltersByCategory(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/news?category=crypto&limit=10", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
}

func TestHandleNewsListRejectsInvalidCategory(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/news?category=weather", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, 400, rec.Code)
}

func TestHandleNewsArticleFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/news/article/abc123", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
}

func TestHandleNewsArticleNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/news/article/missing", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, 404, rec.Code)
}

func TestHandleLivenessAlwaysOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/health/live", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
}

func TestHandleReadinessReflectsPingerFailure(t *testing.T) {
	s := newTestServer(t)
	s.pinger = &fakePinger{err: context.DeadlineExceeded}

	req := httptest.NewRequest("GET", "/health/ready", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, 503, rec.Code)
}

func TestHandleMetricsServesExposition(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
}

func TestHandleCollectorStatusReturnsList(t *testing.T) {
	s := newTestServer(t)
	s.tracker.RunStarted("gdelt")
	s.tracker.RunSucceeded("gdelt", 3)

	req := httptest.NewRequest("GET", "/admin/collectors", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	env := decodeEnvelope(t, rec.Body.Bytes())
	result, ok := env["result"].([]any)
	require.True(t, ok)
	require.Len(t, result, 1)
}
