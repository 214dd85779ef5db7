// Package httpclient implements the per-host HTTP executor:
// per-host rate limiting, hard per-request timeout, retries with
// exponential backoff + jitter on transient failures, and an optional small
// response-body cache.
package httpclient

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Kind distinguishes the executor's own failure shapes, ahead of whatever a
// provider service later maps them into from the canonical error taxonomy.
type Kind string

const (
	KindTimeout    Kind = "TIMEOUT"
	KindTransport  Kind = "TRANSPORT"
	KindHTTPStatus Kind = "HTTP_STATUS"
	KindCanceled   Kind = "CANCELED"
)

// Error is the executor's failure report.
type Error struct {
	Kind    Kind
	Code    int
	Snippet string
	cause   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return "http status " + strconv.Itoa(e.Code) + ": " + e.Snippet
	default:
		if e.cause != nil {
			return string(e.Kind) + ": " + e.cause.Error()
		}
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.cause }

// HostPolicy configures per-host throttling, matched by a regex against the
// request host.
type HostPolicy struct {
	Pattern        *regexp.Regexp
	MinInterval    time.Duration
	MaxConcurrency int
}

// Config is the executor's tunables.
type Config struct {
	Timeout      time.Duration // default 8s
	MaxRetries   int           // no default: 0 means a single attempt
	BackoffBase  time.Duration // default 500ms
	BackoffCap   time.Duration // default 10s
	UserAgent    string
	HostPolicies []HostPolicy
	DefaultMinInterval    time.Duration
	DefaultMaxConcurrency int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 8 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 10 * time.Second
	}
	if c.DefaultMaxConcurrency <= 0 {
		c.DefaultMaxConcurrency = 4
	}
	return c
}

// Result is a fully-drained HTTP response, safe to cache and reuse.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type hostState struct {
	limiter *rate.Limiter
	sem     chan struct{}
}

// Executor is the per-host HTTP executor.
type Executor struct {
	cfg    Config
	client *http.Client
	cache  *BodyCache

	mu    sync.Mutex
	hosts map[string]*hostState
}

// New builds an Executor. cache may be nil to disable response caching.
func New(cfg Config, cache *BodyCache) *Executor {
	cfg = cfg.withDefaults()
	return &Executor{
		cfg:    cfg,
		client: &http.Client{}, // deadline applied per-request via context
		cache:  cache,
		hosts:  make(map[string]*hostState),
	}
}

func (e *Executor) policyFor(host string) (time.Duration, int) {
	for _, p := range e.cfg.HostPolicies {
		if p.Pattern != nil && p.Pattern.MatchString(host) {
			maxConc := p.MaxConcurrency
			if maxConc <= 0 {
				maxConc = e.cfg.DefaultMaxConcurrency
			}
			return p.MinInterval, maxConc
		}
	}
	return e.cfg.DefaultMinInterval, e.cfg.DefaultMaxConcurrency
}

func (e *Executor) stateFor(host string) *hostState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.hosts[host]; ok {
		return s
	}
	minInterval, maxConc := e.policyFor(host)
	var limiter *rate.Limiter
	if minInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	s := &hostState{limiter: limiter, sem: make(chan struct{}, maxConc)}
	e.hosts[host] = s
	return s
}

// Do executes req honoring per-host throttling, the hard timeout, retries
// with exponential backoff + jitter, and the optional body cache. ttl<=0
// disables caching for this call even if the executor has a cache.
func (e *Executor) Do(ctx context.Context, req *http.Request, ttl time.Duration) (*Result, error) {
	cacheKey := ""
	if e.cache != nil && ttl > 0 && req.Method == http.MethodGet {
		cacheKey = CacheKey(req.URL.String(), req.Header)
		if cached, ok := e.cache.Get(cacheKey); ok {
			return cached, nil
		}
	}

	host := req.URL.Hostname()
	state := e.stateFor(host)

	select {
	case state.sem <- struct{}{}:
		defer func() { <-state.sem }()
	case <-ctx.Done():
		return nil, &Error{Kind: KindCanceled, cause: ctx.Err()}
	}

	if state.limiter != nil {
		if err := state.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindCanceled, cause: err}
		}
	}

	result, err := e.doWithRetries(ctx, req)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		e.cache.Set(cacheKey, result, ttl)
	}
	return result, nil
}

func (e *Executor) doWithRetries(ctx context.Context, req *http.Request) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := e.backoffFor(attempt, lastErr)
			log.Debug().Int("attempt", attempt).Dur("backoff", delay).Str("url", req.URL.String()).Msg("retrying http request")
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, &Error{Kind: KindCanceled, cause: ctx.Err()}
			}
		}

		result, retryAfter, err := e.attempt(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		httpErr, isHTTPErr := err.(*Error)
		if !e.retryable(err) || attempt == e.cfg.MaxRetries {
			return nil, err
		}
		if isHTTPErr && retryAfter > 0 {
			lastErr = &retryAfterHint{Error: httpErr, delay: retryAfter}
		}
	}
	return nil, lastErr
}

// retryAfterHint lets backoffFor read a server-supplied delay without
// widening the public Error shape.
type retryAfterHint struct {
	*Error
	delay time.Duration
}

func (e *Executor) attempt(ctx context.Context, req *http.Request) (*Result, time.Duration, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	clone := req.Clone(reqCtx)
	if e.cfg.UserAgent != "" {
		clone.Header.Set("User-Agent", e.cfg.UserAgent)
	}

	resp, err := e.client.Do(clone)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, 0, &Error{Kind: KindTimeout, cause: err}
		}
		if ctx.Err() != nil {
			return nil, 0, &Error{Kind: KindCanceled, cause: err}
		}
		return nil, 0, &Error{Kind: KindTransport, cause: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if readErr != nil {
		return nil, 0, &Error{Kind: KindTransport, cause: readErr}
	}

	if isRetryableStatus(resp.StatusCode) {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, retryAfter, &Error{Kind: KindHTTPStatus, Code: resp.StatusCode, Snippet: snippet}
	}
	if resp.StatusCode >= 400 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, 0, &Error{Kind: KindHTTPStatus, Code: resp.StatusCode, Snippet: snippet}
	}

	return &Result{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, 0, nil
}

func (e *Executor) retryable(err error) bool {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		switch httpErr.Kind {
		case KindTimeout, KindTransport:
			return true
		case KindHTTPStatus:
			return isRetryableStatus(httpErr.Code)
		default:
			return false
		}
	}
	return false
}

func (e *Executor) backoffFor(attempt int, lastErr error) time.Duration {
	var hint *retryAfterHint
	if errors.As(lastErr, &hint) && hint.delay > 0 {
		return hint.delay
	}
	backoff := e.cfg.BackoffBase * (1 << uint(attempt-1))
	if backoff > e.cfg.BackoffCap {
		backoff = e.cfg.BackoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(200 * time.Millisecond)))
	return backoff + jitter
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		d := time.Until(when)
		if d > 0 {
			return d
		}
	}
	return 0
}

// CacheKey builds a stable key for the body cache: URL plus sorted headers.
func CacheKey(rawURL string, headers http.Header) string {
	var sb strings.Builder
	sb.WriteString(rawURL)
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString("|")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(strings.Join(headers[k], ","))
	}
	return sb.String()
}
