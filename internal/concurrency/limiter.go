// Package concurrency implements the bounded concurrency limiters and the
// single-flight coalescer.
package concurrency

import (
	"context"
	"sync"
	"time"
)

// Limiter admits at most N concurrent operations; extra submissions queue
// FIFO on the semaphore channel.
type Limiter struct {
	sem     chan struct{}
	mu      sync.Mutex
	active  int
	pending int
}

// NewLimiter builds a bounded concurrency limiter. concurrency must be >= 1.
func NewLimiter(concurrency int) *Limiter {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Limiter{sem: make(chan struct{}, concurrency)}
}

// Submit runs fn once a slot is available, or returns ctx.Err() if the
// context is cancelled while queued. A caller that abandons Submit by
// cancelling ctx does not stop fn once it has started.
func (l *Limiter) Submit(ctx context.Context, fn func() error) error {
	l.mu.Lock()
	l.pending++
	l.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		l.mu.Lock()
		l.pending--
		l.active++
		l.mu.Unlock()
	case <-ctx.Done():
		l.mu.Lock()
		l.pending--
		l.mu.Unlock()
		return ctx.Err()
	}

	defer func() {
		<-l.sem
		l.mu.Lock()
		l.active--
		l.mu.Unlock()
	}()

	return fn()
}

// ActiveCount returns the number of operations currently running.
func (l *Limiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// PendingCount returns the number of operations queued, not yet admitted.
func (l *Limiter) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// ThrottledLimiter is a Limiter that additionally enforces a minimum delay
// between the starts of successive operations.
type ThrottledLimiter struct {
	*Limiter
	minDelay time.Duration

	startMu   sync.Mutex
	lastStart time.Time
	now       func() time.Time
	sleep     func(time.Duration)
}

// NewThrottledLimiter builds a throttled limiter. minDelay == 0 behaves
// identically to a plain Limiter.
func NewThrottledLimiter(concurrency int, minDelay time.Duration) *ThrottledLimiter {
	return &ThrottledLimiter{
		Limiter:  NewLimiter(concurrency),
		minDelay: minDelay,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Submit waits for a concurrency slot, then enforces the minimum inter-start
// delay (measured from the moment work begins, not from submission time),
// then runs fn.
func (t *ThrottledLimiter) Submit(ctx context.Context, fn func() error) error {
	return t.Limiter.Submit(ctx, func() error {
		t.waitForSlot(ctx)
		return fn()
	})
}

func (t *ThrottledLimiter) waitForSlot(ctx context.Context) {
	if t.minDelay <= 0 {
		return
	}
	t.startMu.Lock()
	defer t.startMu.Unlock()

	now := t.now()
	if !t.lastStart.IsZero() {
		deficit := t.minDelay - now.Sub(t.lastStart)
		if deficit > 0 {
			select {
			case <-ctx.Done():
			default:
				t.sleep(deficit)
			}
			now = t.now()
		}
	}
	t.lastStart = now
}
