package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cerrors "github.com/marketpulse/aggregator/internal/errors"
	"github.com/marketpulse/aggregator/internal/providers/types"
)

func TestQuoteServiceCachesFreshValue(t *testing.T) {
	var calls int32
	svc := NewQuoteService(QuoteServiceConfig{TTL: time.Minute}, func(ctx context.Context, symbol string) (types.Quote, error) {
		atomic.AddInt32(&calls, 1)
		return types.Quote{Symbol: symbol, Price: 100}, nil
	})

	q1, err := svc.Quote(context.Background(), "btc")
	require.NoError(t, err)
	q2, err := svc.Quote(context.Background(), "BTC")
	require.NoError(t, err)

	require.Equal(t, "BTC", q1.Symbol)
	require.Equal(t, q1, q2)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestQuoteServiceFallsBackToStaleOnUpstreamError(t *testing.T) {
	var fail int32
	svc := NewQuoteService(QuoteServiceConfig{TTL: 10 * time.Millisecond, StaleWindow: time.Minute}, func(ctx context.Context, symbol string) (types.Quote, error) {
		if atomic.LoadInt32(&fail) == 1 {
			return types.Quote{}, cerrors.New(cerrors.ProviderError, "down")
		}
		return types.Quote{Symbol: symbol, Price: 42}, nil
	})

	_, err := svc.Quote(context.Background(), "ETH")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	atomic.StoreInt32(&fail, 1)

	q, err := svc.Quote(context.Background(), "ETH")
	require.NoError(t, err)
	require.True(t, q.Stale)
	require.Equal(t, 42.0, q.Price)
}

func TestQuoteServiceUsesMockFallbackWhenNoStaleAvailable(t *testing.T) {
	svc := NewQuoteService(QuoteServiceConfig{TTL: time.Minute, Mock: true}, func(ctx context.Context, symbol string) (types.Quote, error) {
		return types.Quote{}, cerrors.New(cerrors.ProviderError, "down")
	})

	q, err := svc.Quote(context.Background(), "XRP")
	require.NoError(t, err)
	require.Equal(t, "mock", q.Source)
	require.Equal(t, "XRP", q.Symbol)

	q2, err := svc.Quote(context.Background(), "XRP")
	require.NoError(t, err)
	require.Equal(t, q.Price, q2.Price)
}

func TestQuoteServiceRejectsInvalidSymbol(t *testing.T) {
	svc := NewQuoteService(QuoteServiceConfig{}, func(ctx context.Context, symbol string) (types.Quote, error) {
		return types.Quote{}, nil
	})

	_, err := svc.Quote(context.Background(), "bad symbol!")
	require.Error(t, err)
	cerr, ok := cerrors.As(err)
	require.True(t, ok)
	require.Equal(t, cerrors.InvalidSymbol, cerr.Kind)
}
