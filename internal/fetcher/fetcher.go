// Package fetcher is the single HTTP access point for all source adapters.
// It enforces per-host request pacing, bounded retries with exponential
// backoff, and TTL-keyed response caching. A cache hit returns immediately
// without pacing or counting against rate limits.
package fetcher

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sells-group/insider-scan/internal/cache"
)

// Response is the outcome of a fetch. Body is fully read and the underlying
// connection released before Response is returned.
type Response struct {
	Body       []byte
	StatusCode int
	Header     http.Header

	// Cached is true when the body was served from the response cache
	// without touching the network.
	Cached bool
}

// Fetcher defines the contract adapters depend on.
type Fetcher interface {
	// Get fetches rawURL. Pass WithTTL to consult and populate the cache.
	Get(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error)

	// PostForm sends an urlencoded form. Never cached.
	PostForm(ctx context.Context, rawURL string, form url.Values, opts ...RequestOption) (*Response, error)
}

type requestOptions struct {
	ttlSeconds int
	headers    map[string]string
}

// RequestOption customizes a single fetch.
type RequestOption func(*requestOptions)

// WithTTL enables response caching for this request with the given TTL.
func WithTTL(seconds int) RequestOption {
	return func(o *requestOptions) { o.ttlSeconds = seconds }
}

// WithHeader adds a header to the outgoing request. The identifying
// User-Agent header is always set by the client and cannot be removed.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

func applyRequestOptions(opts []RequestOption) requestOptions {
	var o requestOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func cacheKeyFor(method, rawURL, body string) string {
	return cache.Key(method, rawURL, body)
}
