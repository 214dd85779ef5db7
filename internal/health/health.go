// Package health implements liveness, readiness, freshness, and per-collector
// status reporting for the HTTP health surface.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/marketpulse/aggregator/internal/providers/types"
)

// DefaultFreshnessThreshold is how old the most recent successful news
// ingest can be before the system is reported stale. Overridable via
// NEWS_FRESHNESS_THRESHOLD_MS.
const DefaultFreshnessThreshold = 2 * time.Hour

// DefaultReadinessLatencyBudget bounds how long the storage ping may take
// before readiness reports unready.
const DefaultReadinessLatencyBudget = 2 * time.Second

// Pinger is the storage collaborator readiness checks against.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Tracker owns the live CollectorStatus set, one entry per named collector
// (gdelt, sec_rss, kap, google_news_rss, ...).
type Tracker struct {
	mu                sync.RWMutex
	statuses          map[string]*types.CollectorStatus
	freshnessThreshold time.Duration
}

// NewTracker builds an empty Tracker. threshold <= 0 uses
// DefaultFreshnessThreshold.
func NewTracker(threshold time.Duration) *Tracker {
	if threshold <= 0 {
		threshold = DefaultFreshnessThreshold
	}
	return &Tracker{
		statuses:           make(map[string]*types.CollectorStatus),
		freshnessThreshold: threshold,
	}
}

// RunStarted marks collector as currently running.
func (t *Tracker) RunStarted(collector string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	s := t.statusFor(collector)
	s.IsRunning = true
	s.LastRunAt = &now
	s.Stats.TotalRuns++
}

// RunSucceeded marks collector's most recent run a success and records how
// many items it collected.
func (t *Tracker) RunSucceeded(collector string, itemsCollected int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	s := t.statusFor(collector)
	s.IsRunning = false
	s.LastSuccessAt = &now
	s.LastError = ""
	s.Stats.SuccessfulRuns++
	s.Stats.ItemsCollected += itemsCollected
}

// RunFailed marks collector's most recent run a failure.
func (t *Tracker) RunFailed(collector string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.statusFor(collector)
	s.IsRunning = false
	s.LastError = err.Error()
	s.Stats.FailedRuns++
}

// ScheduleNext records when collector is next due to run.
func (t *Tracker) ScheduleNext(collector string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.statusFor(collector)
	s.NextRunAt = &at
}

// statusFor returns the entry for collector, creating it on first use.
// Caller must hold the write lock.
func (t *Tracker) statusFor(collector string) *types.CollectorStatus {
	s, ok := t.statuses[collector]
	if !ok {
		s = &types.CollectorStatus{Collector: collector}
		t.statuses[collector] = s
	}
	return s
}

// Statuses returns a snapshot of every tracked collector's status.
func (t *Tracker) Statuses() []types.CollectorStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.CollectorStatus, 0, len(t.statuses))
	for _, s := range t.statuses {
		out = append(out, *s)
	}
	return out
}

// Fresh reports whether the most recent successful run, across every
// tracked collector, is within the freshness threshold. A tracker with no
// successful runs yet is not fresh.
func (t *Tracker) Fresh() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	now := time.Now().UTC()
	for _, s := range t.statuses {
		if s.LastSuccessAt != nil && now.Sub(*s.LastSuccessAt) <= t.freshnessThreshold {
			return true
		}
	}
	return false
}

// Liveness always reports up while the process can answer at all; there is
// no failure mode for this check by construction.
func Liveness() bool { return true }

// Readiness reports whether storage is reachable within budget. budget <= 0
// uses DefaultReadinessLatencyBudget.
func Readiness(ctx context.Context, store Pinger, budget time.Duration) (ready bool, latency time.Duration) {
	if budget <= 0 {
		budget = DefaultReadinessLatencyBudget
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()
	err := store.Ping(ctx)
	latency = time.Since(start)
	return err == nil, latency
}
