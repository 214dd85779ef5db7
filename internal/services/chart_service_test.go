package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marketpulse/aggregator/internal/providers/normalize"
	"github.com/marketpulse/aggregator/internal/providers/types"
)

func TestChartServiceCachesByIntervalAndRange(t *testing.T) {
	var calls int32
	svc := NewChartService(ChartServiceConfig{TTL: time.Minute}, func(ctx context.Context, symbol string, interval normalize.Interval, rng normalize.Range) (types.Chart, error) {
		atomic.AddInt32(&calls, 1)
		return types.Chart{Symbol: symbol, RequestedInterval: string(interval), RequestedRange: string(rng)}, nil
	})

	_, err := svc.Chart(context.Background(), "BTCUSDT", normalize.Interval1h, normalize.Range1d)
	require.NoError(t, err)
	_, err = svc.Chart(context.Background(), "BTCUSDT", normalize.Interval1h, normalize.Range1d)
	require.NoError(t, err)
	_, err = svc.Chart(context.Background(), "BTCUSDT", normalize.Interval1d, normalize.Range1d)
	require.NoError(t, err)

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
