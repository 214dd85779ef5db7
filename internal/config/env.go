// Package config loads process configuration from environment variables and
// the provider-tunables YAML file, with strict validation at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// AppConfig is the full set of environment-derived settings the composition
// root needs to wire the provider graph, storage, and HTTP/WS servers.
type AppConfig struct {
	Port        int
	DatabaseURL string

	GDELTEnabled         bool
	SECRSSEnabled        bool
	KAPEnabled           bool
	GoogleNewsRSSEnabled bool

	HTTPTimeout   time.Duration
	HTTPRetries   int
	HTTPCacheTTL  time.Duration

	FailureThreshold int
	RecoveryTimeout  time.Duration

	ProviderThrottles map[string]ThrottleConfig

	CacheTTL     time.Duration
	CacheMaxSize int

	JWTSecret    string
	BCryptRounds int
	AuthEnabled  bool

	ProvidersConfigPath string
	NewsFreshnessThreshold time.Duration
}

// ThrottleConfig is a per-provider concurrency/min-delay pair, e.g.
// YAHOO_CONCURRENCY / YAHOO_MIN_DELAY_MS.
type ThrottleConfig struct {
	Concurrency int
	MinDelay    time.Duration
}

// defaultThrottledProviders lists the provider name prefixes this module
// reads <PREFIX>_CONCURRENCY / <PREFIX>_MIN_DELAY_MS for.
var defaultThrottledProviders = []string{"YAHOO", "BINANCE", "COINGECKO"}

// Load builds an AppConfig from the process environment, applying the
// documented defaults and failing closed on any unparseable value.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:                 8080,
		HTTPTimeout:          8000 * time.Millisecond,
		HTTPRetries:          3,
		HTTPCacheTTL:         0,
		FailureThreshold:     5,
		RecoveryTimeout:      1_800_000 * time.Millisecond,
		CacheTTL:             60_000 * time.Millisecond,
		CacheMaxSize:         1000,
		BCryptRounds:         12,
		ProvidersConfigPath:  "configs/providers.yaml",
		NewsFreshnessThreshold: 2 * time.Hour,
		ProviderThrottles:    map[string]ThrottleConfig{},
	}

	var err error
	if cfg.Port, err = intEnv("PORT", cfg.Port); err != nil {
		return nil, err
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	if cfg.GDELTEnabled, err = boolEnv("GDELT_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.SECRSSEnabled, err = boolEnv("SEC_RSS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.KAPEnabled, err = boolEnv("KAP_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.GoogleNewsRSSEnabled, err = boolEnv("GOOGLE_NEWS_RSS_ENABLED", false); err != nil {
		return nil, err
	}

	if cfg.HTTPTimeout, err = msEnv("HTTP_TIMEOUT_MS", cfg.HTTPTimeout); err != nil {
		return nil, err
	}
	if cfg.HTTPRetries, err = intEnv("HTTP_RETRY_COUNT", cfg.HTTPRetries); err != nil {
		return nil, err
	}
	if cfg.HTTPCacheTTL, err = msEnv("HTTP_CACHE_TTL_MS", cfg.HTTPCacheTTL); err != nil {
		return nil, err
	}

	if cfg.FailureThreshold, err = intEnv("FAILURE_THRESHOLD", cfg.FailureThreshold); err != nil {
		return nil, err
	}
	if cfg.RecoveryTimeout, err = msEnv("RECOVERY_TIMEOUT_MS", cfg.RecoveryTimeout); err != nil {
		return nil, err
	}

	for _, provider := range defaultThrottledProviders {
		concurrency, err := intEnv(provider+"_CONCURRENCY", 3)
		if err != nil {
			return nil, err
		}
		minDelay, err := msEnv(provider+"_MIN_DELAY_MS", 100*time.Millisecond)
		if err != nil {
			return nil, err
		}
		cfg.ProviderThrottles[provider] = ThrottleConfig{Concurrency: concurrency, MinDelay: minDelay}
	}

	if cfg.CacheTTL, err = msEnv("CACHE_TTL_MS", cfg.CacheTTL); err != nil {
		return nil, err
	}
	if cfg.CacheMaxSize, err = intEnv("CACHE_MAX_SIZE", cfg.CacheMaxSize); err != nil {
		return nil, err
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.AuthEnabled = cfg.JWTSecret != ""
	if cfg.BCryptRounds, err = intEnv("BCRYPT_ROUNDS", cfg.BCryptRounds); err != nil {
		return nil, err
	}

	if path := os.Getenv("PROVIDERS_CONFIG_PATH"); path != "" {
		cfg.ProvidersConfigPath = path
	}
	if cfg.NewsFreshnessThreshold, err = msEnv("NEWS_FRESHNESS_THRESHOLD_MS", cfg.NewsFreshnessThreshold); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the invariants Load cannot: cross-field and
// conditionally-required values.
func (c *AppConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT must be in (0, 65535], got %d", c.Port)
	}
	if c.AuthEnabled && c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required when auth is enabled")
	}
	if c.BCryptRounds < 4 || c.BCryptRounds > 31 {
		return fmt.Errorf("config: BCRYPT_ROUNDS must be in [4, 31], got %d", c.BCryptRounds)
	}
	if c.CacheMaxSize <= 0 {
		return fmt.Errorf("config: CACHE_MAX_SIZE must be positive, got %d", c.CacheMaxSize)
	}
	if c.HTTPRetries < 0 {
		return fmt.Errorf("config: HTTP_RETRY_COUNT cannot be negative, got %d", c.HTTPRetries)
	}
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("config: FAILURE_THRESHOLD must be positive, got %d", c.FailureThreshold)
	}
	return nil
}

func intEnv(key string, def int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, raw)
	}
	return v, nil
}

func boolEnv(key string, def bool) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s must be a boolean, got %q", key, raw)
	}
	return v, nil
}

func msEnv(key string, def time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer millisecond count, got %q", key, raw)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
