package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/aggregator/internal/httpclient"
	"github.com/marketpulse/aggregator/internal/providers/normalize"
)

func TestQuoteAddsAndStripsBISTSuffix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "THYAO.IS", r.URL.Query().Get("symbols"), "upstream request carries the .IS suffix")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[{"symbol":"THYAO.IS","shortName":"Turkish Airlines","fullExchangeName":"BIST","currency":"TRY","regularMarketPrice":250.5}],"error":null}}`))
	}))
	defer srv.Close()

	exec := httpclient.New(httpclient.Config{}, nil)
	client := New(Config{BaseURL: srv.URL}, exec)

	q, err := client.Quote(context.Background(), "thyao", "bist")
	require.NoError(t, err)
	assert.Equal(t, "THYAO", q.Symbol, "response is exposed without the .IS suffix")
	assert.Equal(t, 250.5, q.Price)
}

func TestQuoteSurfacesUpstreamErrorDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse":{"result":[],"error":{"description":"No data found"}}}`))
	}))
	defer srv.Close()

	exec := httpclient.New(httpclient.Config{}, nil)
	client := New(Config{BaseURL: srv.URL}, exec)

	_, err := client.Quote(context.Background(), "AAPL", "us")
	require.Error(t, err)
}

func TestChartMapsIndicatorArraysIntoCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart":{"result":[{
			"meta":{"currency":"USD","exchangeName":"NMS","gmtoffset":-18000,"timezone":"EST"},
			"timestamp":[1690000000,1690003600],
			"indicators":{"quote":[{"open":[100,101],"high":[105,106],"low":[99,100],"close":[104,105],"volume":[1000,1100]}]}
		}],"error":null}}`))
	}))
	defer srv.Close()

	exec := httpclient.New(httpclient.Config{}, nil)
	client := New(Config{BaseURL: srv.URL}, exec)

	chart, err := client.Chart(context.Background(), "AAPL", "us", normalize.Interval1h, normalize.Range1d)
	require.NoError(t, err)
	require.Len(t, chart.Candles, 2)
	assert.Equal(t, 104.0, chart.Candles[0].Close)
	assert.Equal(t, "USD", chart.Currency)
}

func TestDetailMapsFundamentals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quoteSummary":{"result":[{
			"summaryProfile":{"sector":"Technology","industry":"Consumer Electronics","website":"https://apple.com"},
			"summaryDetail":{"trailingPE":28.5}
		}],"error":null}}`))
	}))
	defer srv.Close()

	exec := httpclient.New(httpclient.Config{}, nil)
	client := New(Config{BaseURL: srv.URL}, exec)

	d, err := client.Detail(context.Background(), "AAPL", "us")
	require.NoError(t, err)
	require.NotNil(t, d.Sector)
	assert.Equal(t, "Technology", *d.Sector)
	require.NotNil(t, d.PERatio)
	assert.Equal(t, 28.5, *d.PERatio)
}
