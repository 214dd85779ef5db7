package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(reg), reg
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestObserveRequestIncrementsCounter(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.ObserveRequest("/crypto/quote", "GET", "200", 10*time.Millisecond)

	c, err := r.RequestsTotal.GetMetricWithLabelValues("/crypto/quote", "GET", "200")
	require.NoError(t, err)
	require.Equal(t, 1.0, counterValue(t, c))
}

func TestRecordNewsIngestTalliesOutcomes(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.RecordNewsIngest(3, 1, 2, 4)

	inserted, err := r.NewsItemsIngested.GetMetricWithLabelValues("inserted")
	require.NoError(t, err)
	require.Equal(t, 3.0, counterValue(t, inserted))
	require.Equal(t, 4.0, counterValue(t, r.NewsDuplicates))
}

func TestHandlerServesExposition(t *testing.T) {
	_, reg := newTestRegistry(t)
	handler := Handler(reg)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "aggregator_news_duplicates_total")
}
