package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/insider-scan/internal/fetcher"
	"github.com/sells-group/insider-scan/internal/htmltable"
	"github.com/sells-group/insider-scan/internal/model"
	"github.com/sells-group/insider-scan/internal/normalize"
	"github.com/sells-group/insider-scan/internal/resilience"
)

const (
	defaultSenateBase = "https://efdsearch.senate.gov"

	// EFD search API codes.
	senateReportTypePTR    = 11
	senateFilerTypeSenator = 1

	senatePageSize  = 100
	senateResultCap = 1000
)

// SessionState tracks where an EFD session is in its establishment flow.
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAgreementAccepted
	StateTokenAcquired
	StateQuerying
)

// Senate scrapes the Senate's Electronic Financial Disclosure system. The
// EFD search API sits behind a prohibition-agreement acceptance flow, so
// each scrape establishes a short-lived session: landing page CSRF token,
// agreement POST, csrftoken cookie carried as X-CSRFToken on every query.
// Sessions are never shared across scans.
type Senate struct {
	fetcher fetcher.Fetcher
	baseURL string
}

// NewSenate creates the Senate EFD adapter.
func NewSenate(f fetcher.Fetcher, baseURL string) *Senate {
	if baseURL == "" {
		baseURL = defaultSenateBase
	}
	return &Senate{fetcher: f, baseURL: strings.TrimRight(baseURL, "/")}
}

// Name implements CongressAdapter.
func (s *Senate) Name() model.Source { return model.SourceSenate }

// Chamber implements CongressAdapter.
func (s *Senate) Chamber() model.Chamber { return model.ChamberSenate }

// efdSession is the per-scan session state machine.
type efdSession struct {
	fetcher fetcher.Fetcher
	baseURL string
	state   SessionState
	cookies map[string]string
	csrf    string
}

var csrfInputRe = regexp.MustCompile(`name=["']csrfmiddlewaretoken["']\s+value=["']([^"']+)["']`)

func (s *Senate) newSession() *efdSession {
	return &efdSession{
		fetcher: s.fetcher,
		baseURL: s.baseURL,
		state:   StateUnauthenticated,
		cookies: make(map[string]string),
	}
}

func (e *efdSession) absorbCookies(resp *fetcher.Response) {
	if resp == nil || resp.Header == nil {
		return
	}
	for _, raw := range resp.Header.Values("Set-Cookie") {
		pair, _, _ := strings.Cut(raw, ";")
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		e.cookies[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
}

func (e *efdSession) cookieHeader() string {
	pairs := make([]string, 0, len(e.cookies))
	for name, value := range e.cookies {
		pairs = append(pairs, name+"="+value)
	}
	return strings.Join(pairs, "; ")
}

// establish walks the session to TokenAcquired: fetch the landing page,
// accept the prohibition agreement, pick the csrftoken cookie up.
func (e *efdSession) establish(ctx context.Context) error {
	if e.state != StateUnauthenticated {
		return eris.Errorf("senate: establish called in state %d", e.state)
	}

	landing := e.baseURL + "/search/"
	resp, err := e.fetcher.Get(ctx, landing)
	if err != nil {
		return eris.Wrap(err, "senate: fetch landing page")
	}
	e.absorbCookies(resp)

	m := csrfInputRe.FindSubmatch(resp.Body)
	if m == nil {
		return &resilience.ParseError{Source: "senate", Msg: "no CSRF token on landing page"}
	}

	form := url.Values{
		"prohibition_agreement": {"1"},
		"csrfmiddlewaretoken":   {string(m[1])},
	}
	resp, err = e.fetcher.PostForm(ctx, e.baseURL+"/search/home/", form,
		fetcher.WithHeader("Cookie", e.cookieHeader()),
		fetcher.WithHeader("Referer", e.baseURL+"/search/home/"),
		fetcher.WithHeader("Origin", e.baseURL),
	)
	if err != nil {
		return eris.Wrap(err, "senate: accept agreement")
	}
	e.state = StateAgreementAccepted
	e.absorbCookies(resp)

	token, ok := e.cookies["csrftoken"]
	if !ok || token == "" {
		return &resilience.ParseError{Source: "senate", Msg: "no csrftoken cookie after agreement"}
	}
	e.csrf = token
	e.state = StateTokenAcquired
	zap.L().Debug("senate: session established")
	return nil
}

// searchResponse is the EFD report data API payload. Each data row is
// [first_name, last_name, filer_type, report_link_html, filing_date].
type searchResponse struct {
	Result          string     `json:"result"`
	RecordsTotal    int        `json:"recordsTotal"`
	RecordsFiltered int        `json:"recordsFiltered"`
	Data            [][]string `json:"data"`
}

func (e *efdSession) search(ctx context.Context, q Query, start int) (*searchResponse, error) {
	if e.state != StateTokenAcquired && e.state != StateQuerying {
		return nil, eris.Errorf("senate: search called in state %d", e.state)
	}
	e.state = StateQuerying

	first, last := splitOfficialName(q.Official)
	form := url.Values{
		"start":        {fmt.Sprintf("%d", start)},
		"length":       {fmt.Sprintf("%d", senatePageSize)},
		"report_types": {fmt.Sprintf("[%d]", senateReportTypePTR)},
		"filter_types": {fmt.Sprintf("[%d]", senateFilerTypeSenator)},
	}
	if first != "" {
		form.Set("first_name", first)
	}
	if last != "" {
		form.Set("last_name", last)
	}
	if !q.Range.From.IsZero() {
		form.Set("submitted_start_date", q.Range.From.Format("01/02/2006")+" 00:00:00")
	}
	if !q.Range.To.IsZero() {
		form.Set("submitted_end_date", q.Range.To.Format("01/02/2006")+" 00:00:00")
	}

	resp, err := e.fetcher.PostForm(ctx, e.baseURL+"/search/report/data/", form,
		fetcher.WithHeader("Cookie", e.cookieHeader()),
		fetcher.WithHeader("X-CSRFToken", e.csrf),
		fetcher.WithHeader("Referer", e.baseURL+"/search/"),
		fetcher.WithHeader("Origin", e.baseURL),
	)
	if err != nil {
		return nil, eris.Wrap(err, "senate: search request")
	}

	var sr searchResponse
	if err := json.Unmarshal(resp.Body, &sr); err != nil {
		return nil, &resilience.ParseError{Source: "senate", Msg: "search response: " + err.Error()}
	}
	return &sr, nil
}

func (e *efdSession) fetchPage(ctx context.Context, href string) ([]byte, error) {
	if !strings.HasPrefix(href, "http") {
		href = e.baseURL + href
	}
	resp, err := e.fetcher.Get(ctx, href,
		fetcher.WithHeader("Cookie", e.cookieHeader()),
		fetcher.WithHeader("Referer", e.baseURL+"/search/"),
	)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ptrFiling is one electronic PTR hit from the search API.
type ptrFiling struct {
	officialName string
	href         string
	filingDate   string
}

var (
	ptrHrefRe   = regexp.MustCompile(`/search/view/ptr/[a-f0-9-]+/`)
	ptrUUIDRe   = regexp.MustCompile(`/ptr/([a-f0-9-]+)/`)
	paperHrefRe = regexp.MustCompile(`/search/view/paper/`)
	anchorRe    = regexp.MustCompile(`href=["']([^"']+)["']`)
)

// Scrape implements CongressAdapter. One session per scrape; paginated up
// to the API's result cap; paper filings (scanned documents) are skipped.
func (s *Senate) Scrape(ctx context.Context, q Query) ([]model.LegislativeTrade, error) {
	session := s.newSession()
	if err := session.establish(ctx); err != nil {
		return nil, err
	}

	var filings []ptrFiling
	for start := 0; start < senateResultCap; start += senatePageSize {
		sr, err := session.search(ctx, q, start)
		if err != nil {
			return nil, err
		}
		if sr.Result != "ok" {
			zap.L().Warn("senate: search returned non-ok result", zap.String("result", sr.Result))
			break
		}
		filings = append(filings, selectElectronicFilings(sr.Data)...)
		if start+senatePageSize >= sr.RecordsFiltered || len(sr.Data) == 0 {
			break
		}
	}
	if len(filings) == 0 {
		zap.L().Info("senate: no electronic PTR filings", zap.String("official", q.Official))
		return nil, nil
	}

	total := len(filings)
	zap.L().Info("senate: processing PTR filings", zap.Int("count", total))

	var trades []model.LegislativeTrade
	for i, filing := range filings {
		if err := ctx.Err(); err != nil {
			return trades, err
		}
		q.progress(i, total, fmt.Sprintf("Senate %s PTR", filing.officialName))

		body, err := session.fetchPage(ctx, filing.href)
		if err != nil {
			if resilience.IsAccessDenied(err) {
				return trades, err
			}
			zap.L().Warn("senate: PTR page failed",
				zap.String("href", filing.href),
				zap.Error(err),
			)
			continue
		}
		trades = append(trades, s.parsePTRPage(body, filing)...)
	}
	q.progress(total, total, "Senate done")
	return trades, nil
}

func selectElectronicFilings(rows [][]string) []ptrFiling {
	var out []ptrFiling
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		linkHTML := row[3]
		if paperHrefRe.MatchString(linkHTML) {
			continue
		}
		am := anchorRe.FindStringSubmatch(linkHTML)
		if am == nil || !ptrHrefRe.MatchString(am[1]) {
			continue
		}
		out = append(out, ptrFiling{
			officialName: strings.TrimSpace(row[0] + " " + row[1]),
			href:         am[1],
			filingDate:   strings.TrimSpace(row[4]),
		})
	}
	return out
}

func (s *Senate) parsePTRPage(body []byte, filing ptrFiling) []model.LegislativeTrade {
	tables, err := htmltable.Parse(body)
	if err != nil {
		zap.L().Warn("senate: PTR page parse failed", zap.Error(err))
		return nil
	}
	table := findSenateTransactionTable(tables)
	if table == nil {
		zap.L().Debug("senate: no transaction table on PTR page", zap.String("href", filing.href))
		return nil
	}

	headers := table.Header()
	col := func(match func(string) bool) int {
		for i, h := range headers {
			if match(strings.ToLower(strings.TrimSpace(h))) {
				return i
			}
		}
		return -1
	}
	iDate := col(func(h string) bool { return strings.Contains(h, "transaction") && strings.Contains(h, "date") })
	iOwner := col(func(h string) bool { return h == "owner" })
	iTicker := col(func(h string) bool { return h == "ticker" })
	iAssetName := col(func(h string) bool { return strings.Contains(h, "asset") && strings.Contains(h, "name") })
	iType := col(func(h string) bool { return h == "type" })
	iAmount := col(func(h string) bool { return h == "amount" })
	iComment := col(func(h string) bool { return h == "comment" })

	docID := ""
	if m := ptrUUIDRe.FindStringSubmatch(filing.href); m != nil {
		docID = m[1]
	}
	sourceURL := filing.href
	if !strings.HasPrefix(sourceURL, "http") {
		sourceURL = s.baseURL + sourceURL
	}
	filingDate := normalize.ParseDate(filing.filingDate)

	var trades []model.LegislativeTrade
	for _, row := range table.Body() {
		asset := cellText(row, iAssetName)
		if asset == "" {
			continue
		}
		ticker := strings.TrimSpace(cellText(row, iTicker))
		if ticker == "" || ticker == "--" {
			ticker = normalize.ExtractTicker(asset)
		}

		t := model.LegislativeTrade{
			OfficialName:     filing.officialName,
			Chamber:          model.ChamberSenate,
			Ticker:           ticker,
			AssetDescription: asset,
			Owner:            normalize.NormalizeOwner(cellText(row, iOwner)),
			TradeType:        normalize.ClassifyLegislative(cellText(row, iType)),
			TradeDate:        normalize.ParseDate(cellText(row, iDate)),
			FilingDate:       filingDate,
			AmountRange:      cellText(row, iAmount),
			Comment:          cellText(row, iComment),
			DocID:            docID,
			SourceURL:        sourceURL,
			Source:           model.SourceSenate,
		}
		t.AmountLow, t.AmountHigh = normalize.ParseAmountRange(t.AmountRange)
		trades = append(trades, t)
	}
	return trades
}

// findSenateTransactionTable picks the table whose headers mention assets
// and transactions or amounts.
func findSenateTransactionTable(tables []*htmltable.Table) *htmltable.Table {
	for _, t := range tables {
		joined := strings.ToLower(strings.Join(t.Header(), " "))
		if strings.Contains(joined, "asset") &&
			(strings.Contains(joined, "transaction") || strings.Contains(joined, "amount") || strings.Contains(joined, "type")) {
			return t
		}
	}
	return nil
}

// splitOfficialName splits a full name into (first, last) for the EFD
// search form. "Last, First" is recognized; otherwise the first token is
// taken as the first name.
func splitOfficialName(full string) (first, last string) {
	name := strings.TrimSpace(full)
	if name == "" {
		return "", ""
	}
	if before, after, ok := strings.Cut(name, ","); ok {
		return strings.TrimSpace(after), strings.TrimSpace(before)
	}
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return "", name
	}
	return parts[0], strings.Join(parts[1:], " ")
}
