package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/insider-scan/internal/cache"
	"github.com/sells-group/insider-scan/internal/fetcher"
	"github.com/sells-group/insider-scan/internal/model"
)

const screenerFixture = `
<html><body>
<table class="tinytable">
<tr>
  <th>X</th><th>Filing Date</th><th>Trade Date</th><th>Ticker</th>
  <th>Company Name</th><th>Insider Name</th><th>Title</th>
  <th>Trade Type</th><th>Price</th><th>Qty</th><th>Value</th><th>SEC Form 4</th>
</tr>
<tr>
  <td>D</td><td>2024-03-16</td><td>2024-03-15</td><td><a href="/screener?s=AAPL">AAPL</a></td>
  <td>Apple Inc</td><td>Cook Timothy D</td><td>CEO</td>
  <td>P - Purchase</td><td>$182.50</td><td>+1,000</td><td>$182,500</td>
  <td><a href="https://www.sec.gov/Archives/edgar/data/320193/000032019324000050/wk-form4.xml">Mar 16</a></td>
</tr>
<tr>
  <td>D</td><td>2024-03-10</td><td>2024-03-08</td><td>AAPL</td>
  <td>Apple Inc</td><td>Maestri Luca</td><td>CFO</td>
  <td>S - Sale</td><td>$180.00</td><td>-2,500</td><td>-$450,000</td>
  <td></td>
</tr>
</table>
</body></html>`

func newTestFetcher(t *testing.T, handler http.Handler) (fetcher.Fetcher, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: "test admin@example.com",
		Cache:     cache.NewMemory(),
	})
	return f, srv.URL
}

func TestOpenInsider_Scrape(t *testing.T) {
	f, base := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/screener", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("s"))
		w.Write([]byte(screenerFixture))
	}))

	o := NewOpenInsider(f, base)
	trades, err := o.Scrape(context.Background(), Query{Ticker: "aapl"})
	require.NoError(t, err)
	require.Len(t, trades, 2)

	buy := trades[0]
	assert.Equal(t, "AAPL", buy.Ticker)
	assert.Equal(t, "Cook Timothy D", buy.InsiderName)
	assert.Equal(t, "CEO", buy.InsiderRole)
	assert.Equal(t, model.TradeBuy, buy.TradeType)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), buy.TradeDate)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), buy.FilingDate)
	assert.True(t, buy.Shares.Equal(decimal.NewFromInt(1000)))
	assert.True(t, buy.Price.Equal(decimal.RequireFromString("182.5")))
	assert.True(t, buy.Value.Equal(decimal.NewFromInt(182500)))
	assert.Equal(t, model.ConfidenceHigh, buy.Confidence)
	assert.Contains(t, buy.FilingURL, "sec.gov/Archives/")
	assert.NotEmpty(t, buy.EventID)

	sell := trades[1]
	assert.Equal(t, model.TradeSell, sell.TradeType)
	assert.Equal(t, model.ConfidenceLow, sell.Confidence)
	assert.Empty(t, sell.FilingURL)
	assert.True(t, sell.Shares.IsNegative())
}

func TestOpenInsider_RangeFilter(t *testing.T) {
	f, base := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(screenerFixture))
	}))

	o := NewOpenInsider(f, base)
	trades, err := o.Scrape(context.Background(), Query{
		Ticker: "AAPL",
		Range:  model.DateRange{From: time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "Cook Timothy D", trades[0].InsiderName)
}

func TestOpenInsider_LatestUsesCount(t *testing.T) {
	f, base := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "", r.URL.Query().Get("s"))
		assert.Equal(t, "25", r.URL.Query().Get("cnt"))
		w.Write([]byte(screenerFixture))
	}))

	o := NewOpenInsider(f, base)
	trades, err := o.Scrape(context.Background(), Query{Count: 25})
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestOpenInsider_NoTable(t *testing.T) {
	f, base := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>maintenance</body></html>"))
	}))

	o := NewOpenInsider(f, base)
	trades, err := o.Scrape(context.Background(), Query{Ticker: "AAPL"})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestOpenInsider_FetchError(t *testing.T) {
	f, base := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	o := NewOpenInsider(f, base)
	_, err := o.Scrape(context.Background(), Query{Ticker: "AAPL"})
	assert.Error(t, err)
}
