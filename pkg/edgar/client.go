// Package edgar is a client for the SEC's EDGAR filing system: ticker to CIK
// resolution, company submission indexes, and Form 4 filing lookups.
//
// EDGAR's access policy requires an identifying User-Agent and caps clients
// at 10 requests per second; both are enforced by the fetcher this client is
// constructed with.
package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/insider-scan/internal/fetcher"
	"github.com/sells-group/insider-scan/internal/resilience"
)

const (
	defaultWWWBase  = "https://www.sec.gov"
	defaultDataBase = "https://data.sec.gov"

	tickerMapTTL   = 24 * 60 * 60 // company_tickers.json changes rarely
	submissionsTTL = 60 * 60
)

// Identity is a resolved ticker to CIK mapping.
type Identity struct {
	Ticker      string
	CIK         string // zero-padded to 10 digits
	Title       string
	CachedUntil time.Time
}

// Client resolves issuer identities and looks up filings. Safe for
// concurrent use; resolved identities are cached in-process until expiry.
type Client struct {
	fetcher     fetcher.Fetcher
	wwwBase     string
	dataBase    string
	identityTTL time.Duration
	now         func() time.Time

	mu         sync.RWMutex
	identities map[string]Identity
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the EDGAR endpoints, for tests.
func WithBaseURLs(www, data string) Option {
	return func(c *Client) {
		c.wwwBase = www
		c.dataBase = data
	}
}

// WithIdentityTTL overrides how long resolved identities are held.
func WithIdentityTTL(d time.Duration) Option {
	return func(c *Client) { c.identityTTL = d }
}

// NewClient creates an EDGAR client on top of the given fetcher.
func NewClient(f fetcher.Fetcher, opts ...Option) *Client {
	c := &Client{
		fetcher:     f,
		wwwBase:     defaultWWWBase,
		dataBase:    defaultDataBase,
		identityTTL: 24 * time.Hour,
		now:         time.Now,
		identities:  make(map[string]Identity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// tickerEntry mirrors one entry of company_tickers.json:
// {"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}, ...}
type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// Resolve maps a ticker to its issuer identity. The bulk ticker index is the
// primary path; when the ticker is absent from it, a company search against
// the EDGAR browse endpoint is tried before reporting NotFound. Lookups are
// case-insensitive; repeated lookups within the TTL are served from memory.
func (c *Client) Resolve(ctx context.Context, ticker string) (Identity, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return Identity{}, eris.New("edgar: empty ticker")
	}

	c.mu.RLock()
	id, ok := c.identities[ticker]
	c.mu.RUnlock()
	if ok && c.now().Before(id.CachedUntil) {
		return id, nil
	}

	id, err := c.resolveFromTickerMap(ctx, ticker)
	if err != nil {
		if !resilience.IsNotFound(err) {
			return Identity{}, err
		}
		zap.L().Debug("ticker absent from bulk index, trying company search",
			zap.String("ticker", ticker),
		)
		id, err = c.resolveFromCompanySearch(ctx, ticker)
		if err != nil {
			return Identity{}, err
		}
	}

	id.CachedUntil = c.now().Add(c.identityTTL)
	c.mu.Lock()
	c.identities[ticker] = id
	c.mu.Unlock()
	return id, nil
}

func (c *Client) resolveFromTickerMap(ctx context.Context, ticker string) (Identity, error) {
	resp, err := c.fetcher.Get(ctx, c.wwwBase+"/files/company_tickers.json", fetcher.WithTTL(tickerMapTTL))
	if err != nil {
		return Identity{}, eris.Wrap(err, "edgar: fetch ticker map")
	}

	var raw map[string]tickerEntry
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return Identity{}, eris.Wrap(err, "edgar: decode ticker map")
	}

	for _, e := range raw {
		if strings.EqualFold(e.Ticker, ticker) {
			return Identity{
				Ticker: ticker,
				CIK:    fmt.Sprintf("%010d", e.CIK),
				Title:  e.Title,
			}, nil
		}
	}
	return Identity{}, &resilience.NotFoundError{Kind: "ticker", Key: ticker}
}

var cikHrefRe = regexp.MustCompile(`CIK=0*(\d{1,10})\D`)

// resolveFromCompanySearch is the degraded path: the browse-edgar company
// search returns an HTML page whose links carry the matched CIK.
func (c *Client) resolveFromCompanySearch(ctx context.Context, ticker string) (Identity, error) {
	url := c.wwwBase + "/cgi-bin/browse-edgar?company=&CIK=" + ticker +
		"&type=4&dateb=&owner=include&count=1&action=getcompany"
	resp, err := c.fetcher.Get(ctx, url, fetcher.WithTTL(tickerMapTTL))
	if err != nil {
		return Identity{}, eris.Wrap(err, "edgar: company search")
	}

	m := cikHrefRe.FindSubmatch(resp.Body)
	if m == nil {
		return Identity{}, &resilience.NotFoundError{Kind: "ticker", Key: ticker}
	}
	return Identity{
		Ticker: ticker,
		CIK:    zeroPadCIK(string(m[1])),
	}, nil
}

func zeroPadCIK(cik string) string {
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}
