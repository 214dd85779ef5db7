package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }
func i64(v int64) *int64     { return &v }

func TestNormalizeCandlesDropsMissingCloseOrTime(t *testing.T) {
	raw := []RawCandle{
		{Time: i64(100), Close: ptr(10), Volume: 1},
		{Time: nil, Close: ptr(11), Volume: 1},
		{Time: i64(101), Close: nil, Volume: 1},
	}
	out := NormalizeCandles(raw)
	require.Len(t, out, 1)
	assert.Equal(t, 10.0, out[0].Close)
}

func TestNormalizeCandlesSortsAscendingByTime(t *testing.T) {
	raw := []RawCandle{
		{Time: i64(300), Close: ptr(3)},
		{Time: i64(100), Close: ptr(1)},
		{Time: i64(200), Close: ptr(2)},
	}
	out := NormalizeCandles(raw)
	require.Len(t, out, 3)
	assert.Equal(t, 1.0, out[0].Close)
	assert.Equal(t, 2.0, out[1].Close)
	assert.Equal(t, 3.0, out[2].Close)
	assert.True(t, out[0].Time.Before(out[1].Time))
	assert.True(t, out[1].Time.Before(out[2].Time))
}

func TestNormalizeCandlesFillsMissingOHLFromClose(t *testing.T) {
	raw := []RawCandle{
		{Time: i64(100), Close: ptr(42)},
	}
	out := NormalizeCandles(raw)
	require.Len(t, out, 1)
	c := out[0]
	assert.Equal(t, 42.0, c.Open)
	assert.Equal(t, 42.0, c.High)
	assert.Equal(t, 42.0, c.Low)
	assert.Equal(t, 42.0, c.Close)
}
