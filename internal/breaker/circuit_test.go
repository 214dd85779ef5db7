package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/marketpulse/aggregator/internal/errors"
)

func TestTripsAfterConsecutiveFailures(t *testing.T) {
	b := New(Config{Name: "upstream", FailureThreshold: 3, RecoveryTimeout: 50 * time.Millisecond})
	upstreamErr := errors.New("boom")

	for i := 0; i < 3; i++ {
		_, err := b.Execute(func() (interface{}, error) { return nil, upstreamErr })
		assert.ErrorIs(t, err, upstreamErr)
	}

	_, err := b.Execute(func() (interface{}, error) {
		t.Fatal("upstream must not be called while circuit is open")
		return nil, nil
	})
	require.Error(t, err)
	var ce *cerrors.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, cerrors.CircuitOpenErr, ce.Kind)
	assert.InDelta(t, 50, ce.RetryAfter, 50)
	assert.Equal(t, Open, b.State())
}

func TestHalfOpenProbeClosesOnSuccess(t *testing.T) {
	b := New(Config{Name: "upstream", FailureThreshold: 2, RecoveryTimeout: 30 * time.Millisecond})
	upstreamErr := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, _ = b.Execute(func() (interface{}, error) { return nil, upstreamErr })
	}
	assert.Equal(t, Open, b.State())

	time.Sleep(40 * time.Millisecond)

	v, err := b.Execute(func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, Closed, b.State())

	// circuit closed: subsequent calls proceed normally
	v, err = b.Execute(func() (interface{}, error) { return "again", nil })
	require.NoError(t, err)
	assert.Equal(t, "again", v)
}

func TestHalfOpenProbeReopensOnFailure(t *testing.T) {
	b := New(Config{Name: "upstream", FailureThreshold: 1, RecoveryTimeout: 20 * time.Millisecond})
	upstreamErr := errors.New("boom")

	_, _ = b.Execute(func() (interface{}, error) { return nil, upstreamErr })
	assert.Equal(t, Open, b.State())

	time.Sleep(25 * time.Millisecond)
	_, err := b.Execute(func() (interface{}, error) { return nil, upstreamErr })
	assert.ErrorIs(t, err, upstreamErr)
	assert.Equal(t, Open, b.State())
}

func TestClosedResetsOnSuccess(t *testing.T) {
	b := New(Config{Name: "upstream", FailureThreshold: 2, RecoveryTimeout: time.Second})
	upstreamErr := errors.New("boom")

	_, _ = b.Execute(func() (interface{}, error) { return nil, upstreamErr })
	_, err := b.Execute(func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)

	// one more failure shouldn't trip since the streak was reset by the success
	_, _ = b.Execute(func() (interface{}, error) { return nil, upstreamErr })
	assert.Equal(t, Closed, b.State())
}
