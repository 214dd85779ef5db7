package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProvidersConfig is the per-provider operational tuning loaded from
// ProvidersConfigPath — rate limits, cache TTLs, backoff, and circuit
// breaker parameters, kept separate from the env-derived AppConfig because
// it changes per deployment environment rather than per process.
type ProvidersConfig struct {
	Providers map[string]ProviderTuning `yaml:"providers"`
	Global    GlobalTuning              `yaml:"global"`
}

// ProviderTuning configures a single upstream data provider.
type ProviderTuning struct {
	Host        string        `yaml:"host"`
	RPS         int           `yaml:"rps"`
	Burst       int           `yaml:"burst"`
	TTLSecs     int           `yaml:"ttl_secs"`
	Backoff     BackoffTuning `yaml:"backoff_ms"`
	Circuit     CircuitTuning `yaml:"circuit"`
	Enabled     bool          `yaml:"enabled"`
	BaseURL     string        `yaml:"base_url"`
}

// BackoffTuning is exponential retry backoff, in milliseconds.
type BackoffTuning struct {
	Base   int  `yaml:"base"`
	Max    int  `yaml:"max"`
	Jitter bool `yaml:"jitter"`
}

// CircuitTuning configures the breaker guarding a provider.
type CircuitTuning struct {
	FailureThreshold int `yaml:"failure_threshold"`
	SuccessThreshold int `yaml:"success_threshold"`
	TimeoutMS        int `yaml:"timeout_ms"`
}

// GlobalTuning applies across every provider.
type GlobalTuning struct {
	MaxConcurrentPerHost int    `yaml:"max_concurrent_per_host"`
	UserAgent            string `yaml:"user_agent"`
}

// LoadProvidersConfig reads and validates the YAML file at path. A missing
// file is not an error: callers fall back to AppConfig env defaults.
func LoadProvidersConfig(path string) (*ProvidersConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &ProvidersConfig{Providers: map[string]ProviderTuning{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("providers config: read %s: %w", path, err)
	}

	var cfg ProvidersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("providers config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("providers config: %w", err)
	}
	return &cfg, nil
}

// Validate checks every provider entry and the global section.
func (c *ProvidersConfig) Validate() error {
	if c.Global.MaxConcurrentPerHost < 0 {
		return fmt.Errorf("global max_concurrent_per_host cannot be negative")
	}
	for name, p := range c.Providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}
	return nil
}

// Validate checks a single provider's tuning values.
func (p *ProviderTuning) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if p.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %d", p.RPS)
	}
	if p.Burst < p.RPS {
		return fmt.Errorf("burst (%d) must be >= rps (%d)", p.Burst, p.RPS)
	}
	if p.TTLSecs < 0 {
		return fmt.Errorf("ttl_secs cannot be negative, got %d", p.TTLSecs)
	}
	if p.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if err := p.Backoff.Validate(); err != nil {
		return fmt.Errorf("backoff_ms: %w", err)
	}
	if err := p.Circuit.Validate(); err != nil {
		return fmt.Errorf("circuit: %w", err)
	}
	return nil
}

// Validate checks backoff bounds.
func (b *BackoffTuning) Validate() error {
	if b.Base <= 0 {
		return fmt.Errorf("base must be positive, got %d", b.Base)
	}
	if b.Max <= b.Base {
		return fmt.Errorf("max (%d) must be > base (%d)", b.Max, b.Base)
	}
	return nil
}

// Validate checks circuit breaker bounds.
func (c *CircuitTuning) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.SuccessThreshold <= 0 {
		return fmt.Errorf("success_threshold must be positive, got %d", c.SuccessThreshold)
	}
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", c.TimeoutMS)
	}
	return nil
}

// CacheTTL returns the provider's cache TTL as a Duration.
func (p *ProviderTuning) CacheTTL() time.Duration {
	return time.Duration(p.TTLSecs) * time.Second
}

// RequestTimeout returns the provider's circuit timeout as a Duration.
func (p *ProviderTuning) RequestTimeout() time.Duration {
	return time.Duration(p.Circuit.TimeoutMS) * time.Millisecond
}

// Get returns the tuning for name, if present.
func (c *ProvidersConfig) Get(name string) (ProviderTuning, bool) {
	p, ok := c.Providers[name]
	return p, ok
}
