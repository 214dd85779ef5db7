package httpclient

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// cachedEntry is the wire shape persisted to Redis or held in memory.
type cachedEntry struct {
	StatusCode int                 `json:"status_code"`
	Header     map[string][]string `json:"header"`
	Body       []byte              `json:"body"`
}

func toCached(r *Result) cachedEntry {
	return cachedEntry{StatusCode: r.StatusCode, Header: map[string][]string(r.Header), Body: r.Body}
}

func (c cachedEntry) toResult() *Result {
	return &Result{StatusCode: c.StatusCode, Header: c.Header, Body: c.Body}
}

// BodyCache holds small, short-lived HTTP response bodies keyed by URL+headers.
// It falls back to an in-process map when no Redis address is configured, and
// degrades silently to cache misses on Redis errors rather than failing the
// request that triggered the lookup.
type BodyCache struct {
	redisClient *redis.Client

	mu sync.Mutex
	m  map[string]memEntry
}

type memEntry struct {
	value   cachedEntry
	expires time.Time
}

// NewBodyCache builds an in-process BodyCache.
func NewBodyCache() *BodyCache {
	return &BodyCache{m: make(map[string]memEntry)}
}

// NewBodyCacheAuto uses Redis when REDIS_ADDR is set, falling back to the
// in-process cache otherwise.
func NewBodyCacheAuto() *BodyCache {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return &BodyCache{redisClient: redis.NewClient(&redis.Options{Addr: addr}), m: make(map[string]memEntry)}
	}
	return NewBodyCache()
}

func (c *BodyCache) Get(key string) (*Result, bool) {
	if c.redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		raw, err := c.redisClient.Get(ctx, key).Bytes()
		if err != nil {
			return nil, false
		}
		var entry cachedEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, false
		}
		return entry.toResult(), true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.value.toResult(), true
}

func (c *BodyCache) Set(key string, result *Result, ttl time.Duration) {
	entry := toCached(result)

	if c.redisClient != nil {
		raw, err := json.Marshal(entry)
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		_ = c.redisClient.Set(ctx, key, raw, ttl).Err()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = memEntry{value: entry, expires: time.Now().Add(ttl)}
}
