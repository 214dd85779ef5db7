package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"PORT", "DATABASE_URL", "GDELT_ENABLED", "SEC_RSS_ENABLED", "KAP_ENABLED",
		"GOOGLE_NEWS_RSS_ENABLED", "HTTP_TIMEOUT_MS", "HTTP_RETRY_COUNT", "HTTP_CACHE_TTL_MS",
		"FAILURE_THRESHOLD", "RECOVERY_TIMEOUT_MS", "CACHE_TTL_MS", "CACHE_MAX_SIZE",
		"JWT_SECRET", "BCRYPT_ROUNDS", "PROVIDERS_CONFIG_PATH", "NEWS_FRESHNESS_THRESHOLD_MS",
		"YAHOO_CONCURRENCY", "YAHOO_MIN_DELAY_MS",
	}
	for _, v := range vars {
		t.Setenv(v, "")
	}
}

func TestLoadAppliesDocumentedDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 8000*time.Millisecond, cfg.HTTPTimeout)
	require.Equal(t, 3, cfg.HTTPRetries)
	require.Equal(t, 5, cfg.FailureThreshold)
	require.Equal(t, 1_800_000*time.Millisecond, cfg.RecoveryTimeout)
	require.Equal(t, 60_000*time.Millisecond, cfg.CacheTTL)
	require.Equal(t, 1000, cfg.CacheMaxSize)
	require.Equal(t, 12, cfg.BCryptRounds)
	require.Equal(t, 2*time.Hour, cfg.NewsFreshnessThreshold)
	require.False(t, cfg.AuthEnabled)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("GDELT_ENABLED", "true")
	t.Setenv("YAHOO_CONCURRENCY", "7")
	t.Setenv("YAHOO_MIN_DELAY_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.True(t, cfg.GDELTEnabled)
	require.Equal(t, 7, cfg.ProviderThrottles["YAHOO"].Concurrency)
	require.Equal(t, 250*time.Millisecond, cfg.ProviderThrottles["YAHOO"].MinDelay)
}

func TestLoadRejectsUnparseableValue(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "not-a-number")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadEnablesAuthWhenJWTSecretSet(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("JWT_SECRET", "super-secret")
	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.AuthEnabled)
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	cfg := &AppConfig{Port: 0, BCryptRounds: 12, CacheMaxSize: 1, FailureThreshold: 1}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsAuthEnabledWithoutSecret(t *testing.T) {
	cfg := &AppConfig{Port: 8080, AuthEnabled: true, BCryptRounds: 12, CacheMaxSize: 1, FailureThreshold: 1}
	require.Error(t, cfg.Validate())
}
