package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadProvidersConfigReturnsEmptyWhenFileMissing(t *testing.T) {
	cfg, err := LoadProvidersConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Empty(t, cfg.Providers)
}

func TestLoadProvidersConfigParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	err := os.WriteFile(path, []byte(`
providers:
  yahoo:
    host: query1.finance.yahoo.com
    base_url: https://query1.finance.yahoo.com
    enabled: true
    rps: 3
    burst: 5
    ttl_secs: 10
    backoff_ms:
      base: 200
      max: 5000
    circuit:
      failure_threshold: 5
      success_threshold: 2
      timeout_ms: 8000
global:
  max_concurrent_per_host: 4
  user_agent: test-agent
`), 0o644)
	require.NoError(t, err)

	cfg, err := LoadProvidersConfig(path)
	require.NoError(t, err)
	yahoo, ok := cfg.Get("yahoo")
	require.True(t, ok)
	require.Equal(t, 3, yahoo.RPS)
	require.Equal(t, 10, yahoo.TTLSecs)
}

func TestLoadProvidersConfigRejectsInvalidBurst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	err := os.WriteFile(path, []byte(`
providers:
  yahoo:
    host: h
    base_url: https://h
    enabled: true
    rps: 10
    burst: 1
    backoff_ms:
      base: 200
      max: 5000
    circuit:
      failure_threshold: 5
      success_threshold: 2
      timeout_ms: 8000
`), 0o644)
	require.NoError(t, err)

	_, err = LoadProvidersConfig(path)
	require.Error(t, err)
}

func TestProviderTuningDerivedDurations(t *testing.T) {
	p := ProviderTuning{TTLSecs: 10, Circuit: CircuitTuning{TimeoutMS: 2000}}
	require.Equal(t, 10e9, float64(p.CacheTTL()))
	require.Equal(t, 2e9, float64(p.RequestTimeout()))
}
