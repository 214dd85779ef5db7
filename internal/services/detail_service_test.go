package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marketpulse/aggregator/internal/providers/types"
)

func TestDetailServiceReturnsFundamentals(t *testing.T) {
	svc := NewDetailService(DetailServiceConfig{}, func(ctx context.Context, symbol string) (types.Detail, error) {
		return types.Detail{Symbol: symbol, Name: "Example Corp"}, nil
	})

	d, err := svc.Detail(context.Background(), "aapl")
	require.NoError(t, err)
	require.Equal(t, "AAPL", d.Symbol)
	require.Equal(t, "Example Corp", d.Name)
	require.False(t, d.Stale)
}
