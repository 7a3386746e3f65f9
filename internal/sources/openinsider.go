package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/insider-scan/internal/fetcher"
	"github.com/sells-group/insider-scan/internal/htmltable"
	"github.com/sells-group/insider-scan/internal/model"
	"github.com/sells-group/insider-scan/internal/normalize"
	"github.com/sells-group/insider-scan/internal/resilience"
	"github.com/sells-group/insider-scan/pkg/edgar"
)

const (
	defaultOpenInsiderBase = "http://openinsider.com"
	openInsiderTTL         = 15 * 60
	openInsiderPageSize    = 200
)

// OpenInsider scrapes the openinsider.com screener. Screener rows carry a
// direct SEC Form 4 link, so records from this adapter can reach HIGH
// confidence without enrichment.
type OpenInsider struct {
	fetcher fetcher.Fetcher
	baseURL string
}

// NewOpenInsider creates the openinsider.com adapter. An empty baseURL uses
// the production site.
func NewOpenInsider(f fetcher.Fetcher, baseURL string) *OpenInsider {
	if baseURL == "" {
		baseURL = defaultOpenInsiderBase
	}
	return &OpenInsider{fetcher: f, baseURL: strings.TrimRight(baseURL, "/")}
}

// Name implements TradeAdapter.
func (o *OpenInsider) Name() model.Source { return model.SourceOpenInsider }

// Scrape implements TradeAdapter. With a ticker it queries the per-issuer
// screener; with a Count and no ticker it returns the latest filings
// site-wide.
func (o *OpenInsider) Scrape(ctx context.Context, q Query) ([]model.StandardTrade, error) {
	params := url.Values{
		"o": {""}, "pl": {""}, "ph": {""}, "ll": {""}, "lh": {""},
		"fdr": {""}, "td": {""}, "tdr": {""}, "cd": {""}, "cdr": {""},
		"sortcol": {"0"},
		"page":    {"1"},
	}
	count := openInsiderPageSize
	if q.Ticker != "" {
		params.Set("s", strings.ToUpper(q.Ticker))
	} else if q.Count > 0 {
		count = q.Count
	}
	params.Set("cnt", fmt.Sprintf("%d", count))
	if !q.Range.From.IsZero() {
		params.Set("fd", q.Range.From.Format("01/02/2006"))
	} else {
		params.Set("fd", "")
	}

	scrapeURL := o.baseURL + "/screener?" + params.Encode()
	resp, err := o.fetcher.Get(ctx, scrapeURL, fetcher.WithTTL(openInsiderTTL))
	if err != nil {
		return nil, eris.Wrap(err, "openinsider: fetch screener")
	}

	tables, err := htmltable.Parse(resp.Body)
	if err != nil {
		return nil, &resilience.ParseError{Source: "openinsider", Msg: err.Error()}
	}
	table := findTinyTable(tables)
	if table == nil || len(table.Body()) == 0 {
		zap.L().Debug("openinsider: no screener table in response", zap.String("url", scrapeURL))
		return nil, nil
	}

	trades := o.parseRows(table, q, scrapeURL)
	zap.L().Info("openinsider: scraped rows",
		zap.String("ticker", q.Ticker),
		zap.Int("rows", len(trades)),
	)
	return trades, nil
}

// findTinyTable locates the screener results table. Its class attribute
// contains "tinytable"; the largest table is the fallback when the site's
// styling changes.
func findTinyTable(tables []*htmltable.Table) *htmltable.Table {
	for _, t := range tables {
		if strings.Contains(t.Class, "tinytable") {
			return t
		}
	}
	return htmltable.Largest(tables)
}

func (o *OpenInsider) parseRows(table *htmltable.Table, q Query, scrapeURL string) []model.StandardTrade {
	idx := table.HeaderIndex()
	col := func(names ...string) int {
		for _, n := range names {
			if i, ok := idx[n]; ok {
				return i
			}
		}
		return -1
	}

	iTicker := col("ticker")
	iCompany := col("company name", "company")
	iInsider := col("insider name", "insider")
	iTitle := col("title")
	iTradeDate := col("trade date")
	iFilingDate := col("filing date")
	iType := col("trade type", "type")
	iShares := col("qty", "shares")
	iPrice := col("price")
	iValue := col("value")
	iLink := col("sec form 4", "sec")

	cell := func(row []htmltable.Cell, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i].Text
	}

	var trades []model.StandardTrade
	for _, row := range table.Body() {
		if len(row) == 0 {
			continue
		}

		ticker := strings.ToUpper(strings.TrimSpace(cell(row, iTicker)))
		if ticker == "" {
			ticker = strings.ToUpper(q.Ticker)
		}
		if ticker == "" {
			continue
		}

		t := model.StandardTrade{
			Ticker:      ticker,
			InsiderName: strings.TrimSpace(cell(row, iInsider)),
			TradeType:   normalize.ClassifyTransaction(cell(row, iType)),
			TradeDate:   normalize.ParseDate(cell(row, iTradeDate)),
			Shares:      normalize.ParseShares(cell(row, iShares)),
			Price:       normalize.ParseDecimal(cell(row, iPrice)),
			Source:      model.SourceOpenInsider,
			SourceURL:   scrapeURL,
			Confidence:  model.ConfidenceLow,
		}
		t.Company = strings.TrimSpace(cell(row, iCompany))
		t.InsiderRole = normalize.RoleBucket(cell(row, iTitle))
		t.FilingDate = normalize.ParseDate(cell(row, iFilingDate))
		t.Value = normalize.ParseDecimal(cell(row, iValue))
		t.DeriveValue()

		if iLink >= 0 && iLink < len(row) && len(row[iLink].Links) > 0 {
			href := row[iLink].Links[0]
			if !strings.HasPrefix(href, "http") {
				href = o.baseURL + href
			}
			if archives := edgar.ExtractArchivesLink(href); archives != "" {
				href = archives
			}
			t.FilingURL = href
			t.Confidence = model.ConfidenceHigh
		}

		if !q.Range.Contains(t.TradeDate) {
			continue
		}

		t.EventID = t.Fingerprint()
		trades = append(trades, t)
	}
	return trades
}
