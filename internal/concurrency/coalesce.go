package concurrency

import "golang.org/x/sync/singleflight"

// Coalescer ensures at most one in-flight execution per key; concurrent
// callers for the same key share the same result, success or failure
// It is a thin, typed wrapper over singleflight.Group, whose
// check-or-insert registration is already atomic and which already removes
// the in-flight entry the instant it settles.
type Coalescer[V any] struct {
	group singleflight.Group
}

// NewCoalescer creates an empty coalescer.
func NewCoalescer[V any]() *Coalescer[V] {
	return &Coalescer[V]{}
}

// Do runs fn for key if no flight is in progress, otherwise waits for and
// shares the result of the flight already underway.
func (c *Coalescer[V]) Do(key string, fn func() (V, error)) (V, error) {
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return fn()
	})
	return v.(V), err
}

// Forget drops a key so the next Do starts a fresh flight.
func (c *Coalescer[V]) Forget(key string) {
	c.group.Forget(key)
}
