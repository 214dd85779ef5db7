package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/marketpulse/aggregator/internal/errors"
)

func TestSymbolUppercasesAndValidates(t *testing.T) {
	s, err := Symbol("btc-usd")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", s)

	_, err = Symbol("")
	require.Error(t, err)
	var ce *cerrors.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, cerrors.InvalidSymbol, ce.Kind)

	_, err = Symbol("BTC/USD")
	require.Error(t, err)
}

func TestBISTSuffixRoundTrip(t *testing.T) {
	assert.Equal(t, "THYAO", StripBISTSuffix(WithBISTSuffix("THYAO")))
	assert.Equal(t, "THYAO.IS", WithBISTSuffix("THYAO"))
	assert.Equal(t, "THYAO.IS", WithBISTSuffix("THYAO.IS"), "adding the suffix twice is a no-op")
}

func TestParseIntervalRejectsUnknown(t *testing.T) {
	_, err := ParseInterval("7m")
	require.Error(t, err)

	i, err := ParseInterval("1h")
	require.NoError(t, err)
	assert.Equal(t, Interval1h, i)
}

func TestResolveIntervalMapsUnsupportedToNearestLower(t *testing.T) {
	assert.Equal(t, Interval1h, ResolveInterval(Interval4h, DefaultProviderIntervalMap))
	assert.Equal(t, Interval1m, ResolveInterval(Interval1m, DefaultProviderIntervalMap), "intervals without an entry map to themselves")
}

func TestPeriod1ForFixedRanges(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	p1, err := ParseRange("1d")
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), Period1(p1, now))

	ytd := Period1(RangeYTD, now)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), ytd)

	assert.True(t, Period1(RangeMax, now).IsZero())
}

func TestParseRangeRejectsUnknown(t *testing.T) {
	_, err := ParseRange("decade")
	require.Error(t, err)
}
