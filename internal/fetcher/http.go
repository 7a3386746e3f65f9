package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/insider-scan/internal/cache"
	"github.com/sells-group/insider-scan/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	// UserAgent is the identifying header required by SEC EDGAR's access
	// policy. Always sent; a default is substituted when empty.
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	RateLimiters map[string]*rate.Limiter

	// Cache is consulted before any network request when a TTL is given.
	// Nil disables caching.
	Cache cache.Store
}

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		initialRate: initialRate,
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 1.2
	if newRate > a.maxRate {
		newRate = a.maxRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 0.5
	if newRate < a.minRate {
		newRate = a.minRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
	zap.L().Warn("adaptive rate limit: reducing rate after 429",
		zap.Float64("new_rate", float64(newRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher implements Fetcher using net/http with retry, per-host rate
// limiting, and TTL response caching.
type HTTPFetcher struct {
	client           *http.Client
	opts             HTTPOptions
	mu               sync.Mutex
	limiters         map[string]*rate.Limiter
	adaptiveLimiters map[string]*AdaptiveLimiter
	backoffBase      time.Duration
}

// DefaultRateLimiters returns the default per-host rate limiters. The
// sec.gov hosts carry a hard regulatory ceiling of 10 req/s; the scraped
// sites get slower, politeness-driven pacing.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"efts.sec.gov":                rate.NewLimiter(10, 10),
		"www.sec.gov":                 rate.NewLimiter(10, 10),
		"data.sec.gov":                rate.NewLimiter(10, 10),
		"openinsider.com":             rate.NewLimiter(rate.Limit(1.25), 1),
		"www.secform4.com":            rate.NewLimiter(rate.Limit(1.5), 1),
		"disclosures-clerk.house.gov": rate.NewLimiter(2, 2),
		"efdsearch.senate.gov":        rate.NewLimiter(1, 1),
	}
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "insider-scan/1.0"
	}
	limiters := make(map[string]*rate.Limiter)
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	adaptive := map[string]*AdaptiveLimiter{
		"efts.sec.gov": NewAdaptiveLimiter(10, 10),
		"www.sec.gov":  NewAdaptiveLimiter(10, 10),
		"data.sec.gov": NewAdaptiveLimiter(10, 10),
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:             opts,
		limiters:         limiters,
		adaptiveLimiters: adaptive,
		backoffBase:      time.Second,
	}
}

// Get implements Fetcher.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	o := applyRequestOptions(opts)

	var key string
	if f.opts.Cache != nil && o.ttlSeconds > 0 {
		key = cacheKeyFor(http.MethodGet, rawURL, "")
		if body, ok := f.opts.Cache.Get(key); ok {
			zap.L().Debug("cache hit", zap.String("url", rawURL))
			return &Response{Body: body, StatusCode: http.StatusOK, Cached: true}, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}

	resp, err := f.do(ctx, req, o)
	if err != nil {
		return nil, err
	}

	if key != "" && resp.StatusCode == http.StatusOK {
		f.opts.Cache.Set(key, resp.Body, o.ttlSeconds)
	}
	return resp, nil
}

// PostForm implements Fetcher. Form posts are never cached.
func (f *HTTPFetcher) PostForm(ctx context.Context, rawURL string, form url.Values, opts ...RequestOption) (*Response, error) {
	o := applyRequestOptions(opts)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return f.do(ctx, req, o)
}

func (f *HTTPFetcher) do(ctx context.Context, req *http.Request, o requestOptions) (*Response, error) {
	req.Header.Set("User-Agent", f.opts.UserAgent)
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &Response{Body: body, StatusCode: resp.StatusCode, Header: resp.Header}, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &resilience.AccessDeniedError{Host: req.URL.Host, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &resilience.NotFoundError{Kind: "resource", Key: req.URL.String()}
	default:
		return nil, eris.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.String())
	}
}

func (f *HTTPFetcher) adaptiveLimiterFor(u *url.URL) *AdaptiveLimiter {
	return f.adaptiveLimiters[u.Host]
}

// limiterFor returns the host's limiter, creating and remembering a default
// one for hosts outside the configured map so pacing holds across requests.
func (f *HTTPFetcher) limiterFor(u *url.URL) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[u.Host]
	if !ok {
		lim = rate.NewLimiter(20, 20)
		f.limiters[u.Host] = lim
	}
	return lim
}

func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	adaptive := f.adaptiveLimiterFor(req.URL)

	var bodySnapshot []byte
	if req.Body != nil {
		var err error
		bodySnapshot, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, eris.Wrap(err, "snapshot request body")
		}
	}

	var lastErr error
	var lastStatus int
	for attempt := 0; attempt < f.opts.MaxRetries; attempt++ {
		if adaptive != nil {
			if err := adaptive.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "rate limiter wait")
			}
		} else {
			if err := f.limiterFor(req.URL).Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "rate limiter wait")
			}
		}

		cloned := req.Clone(ctx)
		if bodySnapshot != nil {
			cloned.Body = io.NopCloser(strings.NewReader(string(bodySnapshot)))
		}
		resp, err := f.client.Do(cloned)
		if err != nil {
			lastErr = resilience.NewTransientError(err, 0)
			zap.L().Warn("http request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			f.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			lastErr = resilience.NewTransientError(eris.Errorf("http 429 from %s", req.URL.String()), resp.StatusCode)
			lastStatus = resp.StatusCode
			if adaptive != nil {
				adaptive.OnRateLimit()
			}
			zap.L().Warn("rate limited (429), backing off",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
			)
			f.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = resilience.NewTransientError(eris.Errorf("http %d from %s", resp.StatusCode, req.URL.String()), resp.StatusCode)
			lastStatus = resp.StatusCode
			zap.L().Warn("server error, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			f.backoff(ctx, attempt)
			continue
		}

		if adaptive != nil {
			adaptive.OnSuccess()
		}
		return resp, nil
	}

	// A destination that answers 429 on every attempt is blocking us, not
	// hiccuping: report it as terminal for this adapter.
	if lastStatus == http.StatusTooManyRequests {
		return nil, &resilience.AccessDeniedError{Host: req.URL.Host, StatusCode: lastStatus}
	}
	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

func (f *HTTPFetcher) backoff(ctx context.Context, attempt int) {
	base := f.backoffBase
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	d = d + jitter

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
