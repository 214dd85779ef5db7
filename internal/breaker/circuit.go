// Package breaker implements the circuit breaker that gates flaky upstream
// collectors, wrapping sony/gobreaker with the exact
// Closed/Open/HalfOpen transition rules and the CIRCUIT_OPEN error carrying
// retryAfterMs.
package breaker

import (
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker"

	cerrors "github.com/marketpulse/aggregator/internal/errors"
)

// Config holds the breaker's tunables.
type Config struct {
	Name              string
	FailureThreshold  uint32 // consecutive failures to trip
	RecoveryTimeout   time.Duration
}

// CircuitBreaker protects a single named upstream.
type CircuitBreaker struct {
	name string
	cb   *gobreaker.CircuitBreaker

	mu       sync.Mutex
	openedAt time.Time
	timeout  time.Duration
}

// New builds a CircuitBreaker. A single probe is admitted in HalfOpen via
// gobreaker's MaxRequests=1.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}

	b := &CircuitBreaker{name: cfg.Name, timeout: cfg.RecoveryTimeout}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    0, // never reset Closed-state counts on a timer; only consecutive failures matter
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				b.mu.Lock()
				b.openedAt = time.Now()
				b.mu.Unlock()
			}
		},
	}
	b.cb = gobreaker.NewCircuitBreaker(settings)
	return b
}

// Execute runs fn under breaker protection. When the circuit is open it
// rejects immediately with a *errors.Error{Kind: CIRCUIT_OPEN, RetryAfter}.
func (b *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	v, err := b.cb.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, cerrors.CircuitOpen(b.name, b.retryAfterMs())
	}
	return v, err
}

func (b *CircuitBreaker) retryAfterMs() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openedAt.IsZero() {
		return 0
	}
	remaining := b.timeout - time.Since(b.openedAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining.Milliseconds()
}

// State is the breaker's Closed/Open/HalfOpen lifecycle state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() State {
	switch b.cb.State() {
	case gobreaker.StateClosed:
		return Closed
	case gobreaker.StateOpen:
		return Open
	default:
		return HalfOpen
	}
}

// Name returns the protected upstream's name.
func (b *CircuitBreaker) Name() string { return b.name }

// Counts exposes gobreaker's rolling counters for health reporting.
func (b *CircuitBreaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}
