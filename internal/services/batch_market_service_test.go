package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cerrors "github.com/marketpulse/aggregator/internal/errors"
	"github.com/marketpulse/aggregator/internal/providers/types"
)

func TestBatchMarketServiceIsolatesPerSymbolFailure(t *testing.T) {
	svc := NewBatchMarketService(BatchMarketServiceConfig{ChunkSize: 2, Concurrency: 2, MinStartDelay: time.Millisecond}, "crypto",
		func(ctx context.Context, symbol string) (types.Quote, error) {
			if symbol == "BAD" {
				return types.Quote{}, cerrors.New(cerrors.SymbolNotFound, "not found")
			}
			return types.Quote{Symbol: symbol, Price: 1}, nil
		})

	result, err := svc.Scan(context.Background(), []string{"AAA", "BAD", "CCC"})
	require.NoError(t, err)
	require.Equal(t, 3, result.Count)
	require.Equal(t, 2, result.Success)
	require.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	require.Equal(t, "BAD", result.Errors[0].Symbol)
}

func TestBatchMarketServiceSortsResultsBySymbolAscending(t *testing.T) {
	svc := NewBatchMarketService(BatchMarketServiceConfig{MinStartDelay: time.Millisecond}, "crypto",
		func(ctx context.Context, symbol string) (types.Quote, error) {
			return types.Quote{Symbol: symbol, Price: 1}, nil
		})

	result, err := svc.Scan(context.Background(), []string{"ZZZ", "AAA", "MMM"})
	require.NoError(t, err)
	require.Len(t, result.Quotes, 3)
	require.Equal(t, "AAA", result.Quotes[0].Symbol)
	require.Equal(t, "MMM", result.Quotes[1].Symbol)
	require.Equal(t, "ZZZ", result.Quotes[2].Symbol)
}

func TestBatchMarketServiceRejectsOversizedBatch(t *testing.T) {
	svc := NewBatchMarketService(BatchMarketServiceConfig{MaxSymbols: 2}, "crypto",
		func(ctx context.Context, symbol string) (types.Quote, error) {
			return types.Quote{Symbol: symbol}, nil
		})

	_, err := svc.Scan(context.Background(), []string{"A", "B", "C"})
	require.Error(t, err)
	cerr, ok := cerrors.As(err)
	require.True(t, ok)
	require.Equal(t, cerrors.TooManySymbols, cerr.Kind)
}

func TestBatchMarketServiceCachesAggregateResult(t *testing.T) {
	calls := 0
	svc := NewBatchMarketService(BatchMarketServiceConfig{TTL: time.Minute, MinStartDelay: time.Millisecond}, "crypto",
		func(ctx context.Context, symbol string) (types.Quote, error) {
			calls++
			return types.Quote{Symbol: symbol}, nil
		})

	_, err := svc.Scan(context.Background(), []string{"AAA", "BBB"})
	require.NoError(t, err)
	firstCalls := calls

	_, err = svc.Scan(context.Background(), []string{"BBB", "AAA"})
	require.NoError(t, err)
	require.Equal(t, firstCalls, calls)
}
