// Package transport implements authenticated request/response access to
// the Gateway REST API: token lifecycle, a token-bucket rate limiter per
// endpoint class, retry with exponential backoff, and a TTL instrument
// cache. Cached entries expire after CacheTTL; the cache has no entry
// limit and no LRU eviction (Config.CacheSize is not applied). It never
// holds a lock across a network wait.
package transport

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	tserrors "github.com/abdoElHodaky/tradingsuite/pkg/errors"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Authenticator performs the actual HTTP exchange that yields a Token.
// Kept as an interface so tests can inject a fake without a live Gateway.
type Authenticator interface {
	Authenticate(ctx context.Context) (Token, error)
}

// EndpointClass buckets endpoints sharing a rate limit allowance, e.g.
// "orders", "marketdata-lookup", "account".
type EndpointClass string

// RetryConfig controls the exponential backoff envelope for transient
// errors.
type RetryConfig struct {
	Base       time.Duration
	Cap        time.Duration
	MaxAttempts int
}

// DefaultRetryConfig returns base 0.5s, cap 30s, max 5 attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Base: 500 * time.Millisecond, Cap: 30 * time.Second, MaxAttempts: 5}
}

// Config bundles Transport's tunables.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	Retry          RetryConfig
	RateLimits     map[EndpointClass]RateLimit
	CacheTTL       time.Duration
	CacheSize      int
}

// RateLimit configures one endpoint class's token bucket.
type RateLimit struct {
	RatePerSecond float64
	Burst         int
	WaitTimeout   time.Duration
}

// DefaultConfig returns sane defaults for production use.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		RequestTimeout: 30 * time.Second,
		Retry:          DefaultRetryConfig(),
		RateLimits: map[EndpointClass]RateLimit{
			"default": {RatePerSecond: 10, Burst: 20, WaitTimeout: 5 * time.Second},
		},
		CacheTTL:  time.Hour,
		CacheSize: 1000,
	}
}

// Transport is the Gateway's authenticated REST client.
type Transport struct {
	cfg    Config
	logger *zap.Logger
	client *http.Client

	auth  Authenticator
	store *tokenStore

	authMu      sync.Mutex
	authPending chan struct{}

	limiters   map[EndpointClass]*rate.Limiter
	limitersMu sync.RWMutex

	breaker *gobreaker.CircuitBreaker

	instrumentCache *gocache.Cache
}

// New builds a Transport bound to auth for token acquisition.
func New(cfg Config, auth Authenticator, logger *zap.Logger) *Transport {
	limiters := make(map[EndpointClass]*rate.Limiter, len(cfg.RateLimits))
	for class, rl := range cfg.RateLimits {
		limiters[class] = rate.NewLimiter(rate.Limit(rl.RatePerSecond), rl.Burst)
	}

	breakerSettings := gobreaker.Settings{
		Name:        "transport.auth",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
	}

	return &Transport{
		cfg:             cfg,
		logger:          logger,
		client:          &http.Client{Timeout: cfg.RequestTimeout},
		auth:            auth,
		store:           newTokenStore(),
		limiters:        limiters,
		breaker:         gobreaker.NewCircuitBreaker(breakerSettings),
		instrumentCache: gocache.New(cfg.CacheTTL, cfg.CacheTTL/2),
	}
}

// OnTokenChanged registers a listener for token rotation, used by the
// Stream Client to re-authorize its hubs.
func (t *Transport) OnTokenChanged(fn OnTokenChanged) { t.store.OnChange(fn) }

// CurrentToken returns the presently held token and auth state.
func (t *Transport) CurrentToken() (Token, TokenState) { return t.store.Current() }

// Authenticate performs authentication, collapsing concurrent callers
// onto a single in-flight attempt: concurrent callers all observe the
// first authentication's result.
func (t *Transport) Authenticate(ctx context.Context) (Token, error) {
	t.authMu.Lock()
	if t.authPending != nil {
		ch := t.authPending
		t.authMu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return Token{}, tserrors.Wrap(tserrors.CodeTimeout, ctx.Err(), "authenticate: waiting for in-flight auth")
		}
		tok, state := t.store.Current()
		if state != Authenticated {
			return Token{}, tserrors.New(tserrors.CodeAuthentication, "in-flight authentication failed")
		}
		return tok, nil
	}
	done := make(chan struct{})
	t.authPending = done
	t.authMu.Unlock()

	var result Token
	var resultErr error
	defer func() {
		t.authMu.Lock()
		t.authPending = nil
		t.authMu.Unlock()
		close(done)
	}()

	_, err := t.breaker.Execute(func() (interface{}, error) {
		tok, aErr := t.auth.Authenticate(ctx)
		if aErr != nil {
			return nil, aErr
		}
		result = tok
		return tok, nil
	})
	if err != nil {
		t.store.MarkUnauthenticated()
		resultErr = tserrors.Wrap(tserrors.CodeAuthentication, err, "authentication failed")
		return Token{}, resultErr
	}
	t.store.Set(result)
	return result, nil
}

// maybeRefresh proactively re-authenticates at >=80% token lifetime.
func (t *Transport) maybeRefresh(ctx context.Context) error {
	tok, state := t.store.Current()
	if state == Authenticated && !tok.ShouldRefresh(time.Now()) {
		return nil
	}
	_, err := t.Authenticate(ctx)
	return err
}

// Request issues method/path with an optional JSON body, applying the
// endpoint class's rate limit, retrying transient failures with backoff,
// and re-authenticating once on 401.
func (t *Transport) Request(ctx context.Context, class EndpointClass, method, path string, body io.Reader) (*http.Response, error) {
	if err := t.maybeRefresh(ctx); err != nil {
		return nil, err
	}
	if err := t.awaitRateLimit(ctx, class); err != nil {
		return nil, err
	}

	var lastErr error
	reauthed := false
	for attempt := 0; attempt < t.cfg.Retry.MaxAttempts; attempt++ {
		resp, err := t.doOnce(ctx, method, path, body)
		if err == nil {
			switch {
			case resp.StatusCode == http.StatusUnauthorized && !reauthed:
				reauthed = true
				resp.Body.Close()
				if _, aerr := t.Authenticate(ctx); aerr != nil {
					return nil, aerr
				}
				continue
			case resp.StatusCode == http.StatusTooManyRequests:
				resp.Body.Close()
				lastErr = tserrors.New(tserrors.CodeRateLimited, "gateway returned 429")
			case resp.StatusCode >= 500:
				resp.Body.Close()
				lastErr = tserrors.New(tserrors.CodeTransientTransport, fmt.Sprintf("gateway returned %d", resp.StatusCode))
			case resp.StatusCode >= 400:
				return resp, tserrors.New(tserrors.CodeBrokerRejection, fmt.Sprintf("gateway returned %d", resp.StatusCode))
			default:
				return resp, nil
			}
		} else {
			lastErr = tserrors.Wrap(tserrors.CodeTransientTransport, err, "request failed")
		}

		if attempt < t.cfg.Retry.MaxAttempts-1 {
			wait := backoff(t.cfg.Retry, attempt)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, tserrors.Wrap(tserrors.CodeTimeout, ctx.Err(), "request cancelled during backoff")
			}
		}
	}
	return nil, lastErr
}

func (t *Transport) doOnce(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	tok, _ := t.store.Current()
	req, err := http.NewRequestWithContext(ctx, method, t.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if tok.Value != "" {
		req.Header.Set("Authorization", "Bearer "+tok.Value)
	}
	return t.client.Do(req)
}

func (t *Transport) awaitRateLimit(ctx context.Context, class EndpointClass) error {
	t.limitersMu.RLock()
	lim, ok := t.limiters[class]
	t.limitersMu.RUnlock()
	if !ok {
		t.limitersMu.RLock()
		lim = t.limiters["default"]
		t.limitersMu.RUnlock()
	}
	if lim == nil {
		return nil
	}

	timeout := t.cfg.RateLimits[class].WaitTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := lim.Wait(waitCtx); err != nil {
		return tserrors.Wrap(tserrors.CodeRateLimited, err, "rate limit wait exceeded bound")
	}
	return nil
}

// CachedInstrument returns a cached instrument lookup payload, or
// (nil, false) on a miss; callers go to the wire and call CacheInstrument.
func (t *Transport) CachedInstrument(contractID string) (interface{}, bool) {
	return t.instrumentCache.Get(contractID)
}

// CacheInstrument stores a freshly looked-up instrument payload.
func (t *Transport) CacheInstrument(contractID string, payload interface{}) {
	t.instrumentCache.Set(contractID, payload, gocache.DefaultExpiration)
}

// backoff computes exponential backoff with full jitter, capped.
func backoff(cfg RetryConfig, attempt int) time.Duration {
	d := cfg.Base * time.Duration(1<<uint(attempt))
	if d > cfg.Cap {
		d = cfg.Cap
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

// redact strips any query-string token from a URL before it reaches a
// log line.
func redact(url string) string {
	if i := strings.Index(url, "?"); i >= 0 {
		return url[:i] + "?<redacted>"
	}
	return url
}
