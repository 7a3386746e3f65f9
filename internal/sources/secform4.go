package sources

import (
	"context"
	"strconv"
	"strings"
	"time"

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
	defaultSecForm4Base = "https://www.secform4.com"
	secForm4TTL         = 15 * 60
)

// SecForm4 scrapes secform4.com company pages. The site keys companies by
// CIK, so this adapter needs the resolver; its rows never carry record-level
// filing links and stay LOW until EDGAR enrichment.
type SecForm4 struct {
	fetcher fetcher.Fetcher
	edgar   *edgar.Client
	baseURL string
}

// NewSecForm4 creates the secform4.com adapter.
func NewSecForm4(f fetcher.Fetcher, e *edgar.Client, baseURL string) *SecForm4 {
	if baseURL == "" {
		baseURL = defaultSecForm4Base
	}
	return &SecForm4{fetcher: f, edgar: e, baseURL: strings.TrimRight(baseURL, "/")}
}

// Name implements TradeAdapter.
func (s *SecForm4) Name() model.Source { return model.SourceSecForm4 }

// Scrape implements TradeAdapter. Latest-N queries are not supported by the
// site; only per-ticker queries produce records.
func (s *SecForm4) Scrape(ctx context.Context, q Query) ([]model.StandardTrade, error) {
	if q.Ticker == "" {
		return nil, nil
	}
	ticker := strings.ToUpper(strings.TrimSpace(q.Ticker))

	id, err := s.edgar.Resolve(ctx, ticker)
	if err != nil {
		return nil, eris.Wrapf(err, "secform4: resolve %s", ticker)
	}

	// Company pages are keyed by the integer CIK, leading zeros stripped.
	cikInt, err := strconv.ParseInt(id.CIK, 10, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "secform4: bad CIK %q", id.CIK)
	}
	pageURL := s.baseURL + "/insider-trading/" + strconv.FormatInt(cikInt, 10) + ".htm"

	resp, err := s.fetcher.Get(ctx, pageURL, fetcher.WithTTL(secForm4TTL))
	if err != nil {
		return nil, eris.Wrap(err, "secform4: fetch company page")
	}

	tables, err := htmltable.Parse(resp.Body)
	if err != nil {
		return nil, &resilience.ParseError{Source: "secform4", Msg: err.Error()}
	}
	table := scoreTransactionTable(tables)
	if table == nil || len(table.Body()) == 0 {
		zap.L().Debug("secform4: no transaction table", zap.String("url", pageURL))
		return nil, nil
	}

	trades := s.parseRows(table, ticker, id.Title, pageURL, q.Range)
	zap.L().Info("secform4: scraped rows",
		zap.String("ticker", ticker),
		zap.Int("rows", len(trades)),
	)
	return trades, nil
}

// scoreTransactionTable picks the table that looks most like a transaction
// history by scoring its headers.
func scoreTransactionTable(tables []*htmltable.Table) *htmltable.Table {
	var best *htmltable.Table
	bestScore := 0
	for _, t := range tables {
		if len(t.Body()) == 0 {
			continue
		}
		score := 0
		for _, h := range t.Header() {
			hl := strings.ToLower(h)
			switch {
			case strings.Contains(hl, "transaction"):
				score += 2
			case strings.Contains(hl, "reported") || strings.Contains(hl, "filing"):
				score += 2
			case strings.Contains(hl, "insider"):
				score++
			case strings.Contains(hl, "shares"):
				score++
			}
		}
		if score > bestScore {
			best = t
			bestScore = score
		}
	}
	return best
}

func (s *SecForm4) parseRows(table *htmltable.Table, ticker, companyTitle, pageURL string, dr model.DateRange) []model.StandardTrade {
	headers := table.Header()
	col := func(substrings ...string) int {
		for i, h := range headers {
			hl := strings.ToLower(h)
			for _, sub := range substrings {
				if strings.Contains(hl, sub) {
					return i
				}
			}
		}
		return -1
	}

	iCompany := col("company", "issuer")
	iInsider := col("insider", "reporting")
	iRole := col("relationship", "title", "role")
	iTradeDate := col("transaction date", "trade date")
	iFilingDate := col("reported", "filing date", "filed")
	iType := col("transaction", "type")
	iShares := col("shares", "amount")
	iPrice := col("price")
	iValue := col("value", "total")

	var trades []model.StandardTrade
	for _, row := range table.Body() {
		if len(row) == 0 {
			continue
		}

		// Compound cells encode two fields split by a line break, e.g. a
		// date stacked over a transaction label or a name over a title.
		insider, role := splitCompound(cellText(row, iInsider))
		if r := cellText(row, iRole); r != "" {
			role = r
		}
		tradeDateRaw, typeRaw := splitCompound(cellText(row, iTradeDate))
		if tr := cellText(row, iType); iType != iTradeDate && tr != "" {
			typeRaw = tr
		}

		t := model.StandardTrade{
			Ticker:      ticker,
			Company:     companyTitle,
			InsiderName: strings.TrimSpace(insider),
			InsiderRole: normalize.RoleBucket(role),
			TradeType:   normalize.ClassifyTransaction(typeRaw),
			TradeDate:   normalize.ParseDate(tradeDateRaw),
			FilingDate:  normalize.ParseDate(firstLine(cellText(row, iFilingDate))),
			Shares:      normalize.ParseShares(cellText(row, iShares)),
			Price:       normalize.ParseDecimal(cellText(row, iPrice)),
			Value:       normalize.ParseDecimal(cellText(row, iValue)),
			Source:      model.SourceSecForm4,
			SourceURL:   pageURL,
			Confidence:  model.ConfidenceLow,
		}
		if c := cellText(row, iCompany); c != "" {
			t.Company = firstLine(c)
		}
		if t.InsiderName == "" {
			continue
		}
		t.DeriveValue()

		if !inRangeByEitherDate(dr, t.TradeDate, t.FilingDate) {
			continue
		}

		t.EventID = t.Fingerprint()
		trades = append(trades, t)
	}
	return trades
}

func cellText(row []htmltable.Cell, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i].Text
}

// splitCompound splits a two-line cell into its parts. Single-line cells
// return the whole text as the first part.
func splitCompound(text string) (first, second string) {
	parts := strings.SplitN(text, "\n", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(text), ""
}

func firstLine(text string) string {
	first, _ := splitCompound(text)
	return first
}

// inRangeByEitherDate keeps a record when its trade date falls in range, or
// when the trade date is unknown and the filing date falls in range. Records
// with neither date are kept so that later evidence can still attach.
func inRangeByEitherDate(dr model.DateRange, tradeDate, filingDate time.Time) bool {
	if !tradeDate.IsZero() {
		return dr.Contains(tradeDate)
	}
	return dr.Contains(filingDate)
}
