package sources

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/insider-scan/internal/fetcher"
	"github.com/sells-group/insider-scan/internal/model"
	"github.com/sells-group/insider-scan/internal/normalize"
	"github.com/sells-group/insider-scan/internal/pdftext"
	"github.com/sells-group/insider-scan/internal/resilience"
)

const (
	defaultHouseBase = "https://disclosures-clerk.house.gov"

	// The yearly index is immutable for past years; the current year's
	// file grows as filings arrive.
	houseCurrentYearMaxAge = 24 * time.Hour

	housePDFTTL      = 7 * 24 * 60 * 60
	housePDFParallel = 4

	// Periodic Transaction Report filing type code in the index.
	houseFilingTypePTR = "P"
)

// House scrapes the House of Representatives financial disclosure system:
// a yearly ZIP index of filing metadata, then individual PTR PDFs parsed
// through pdftotext. Image-only scans are skipped.
type House struct {
	fetcher   fetcher.Fetcher
	extractor pdftext.Extractor
	baseURL   string
	dir       string // where extracted yearly indexes live
	now       func() time.Time
}

// NewHouse creates the House disclosure adapter. dir is the local directory
// holding extracted index files.
func NewHouse(f fetcher.Fetcher, ex pdftext.Extractor, baseURL, dir string) *House {
	if baseURL == "" {
		baseURL = defaultHouseBase
	}
	return &House{
		fetcher:   f,
		extractor: ex,
		baseURL:   strings.TrimRight(baseURL, "/"),
		dir:       dir,
		now:       time.Now,
	}
}

// Name implements CongressAdapter.
func (h *House) Name() model.Source { return model.SourceHouse }

// Chamber implements CongressAdapter.
func (h *House) Chamber() model.Chamber { return model.ChamberHouse }

type houseFiling struct {
	Prefix     string `xml:"Prefix"`
	Last       string `xml:"Last"`
	First      string `xml:"First"`
	Suffix     string `xml:"Suffix"`
	FilingType string `xml:"FilingType"`
	StateDst   string `xml:"StateDst"`
	Year       int    `xml:"Year"`
	FilingDate string `xml:"FilingDate"`
	DocID      string `xml:"DocID"`
}

type houseIndex struct {
	Members []houseFiling `xml:"Member"`
}

func (f houseFiling) officialName() string {
	parts := []string{f.Prefix, f.First, f.Last, f.Suffix}
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// Scrape implements CongressAdapter: ensure yearly indexes for the query
// range, select matching PTR filings, then fetch and parse their PDFs in
// parallel.
func (h *House) Scrape(ctx context.Context, q Query) ([]model.LegislativeTrade, error) {
	years := h.yearsFor(q.Range)

	var filings []houseFiling
	for _, year := range years {
		idx, err := h.ensureIndex(ctx, year)
		if err != nil {
			// Years with no published index yet are normal near January.
			zap.L().Warn("house: index unavailable",
				zap.Int("year", year),
				zap.Error(err),
			)
			continue
		}
		filings = append(filings, h.selectFilings(idx, q)...)
	}
	if len(filings) == 0 {
		zap.L().Info("house: no matching PTR filings", zap.String("official", q.Official))
		return nil, nil
	}

	total := len(filings)
	zap.L().Info("house: fetching PTR documents", zap.Int("count", total))

	var mu sync.Mutex
	var trades []model.LegislativeTrade
	var done int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(housePDFParallel)
	for _, filing := range filings {
		filing := filing
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			rows, err := h.scrapeDocument(gctx, filing)

			mu.Lock()
			done++
			current := done
			if err == nil {
				trades = append(trades, rows...)
			}
			mu.Unlock()
			q.progress(current, total, fmt.Sprintf("House %s (%s)", filing.officialName(), filing.DocID))

			if err != nil {
				if gctx.Err() != nil || resilience.IsAccessDenied(err) {
					return err
				}
				// Individual broken documents don't fail the scan.
				zap.L().Warn("house: document failed",
					zap.String("doc_id", filing.DocID),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return trades, err
	}
	return trades, nil
}

func (h *House) yearsFor(dr model.DateRange) []int {
	current := h.now().Year()
	to := current
	if !dr.To.IsZero() {
		to = dr.To.Year()
	}
	if to > current {
		to = current
	}
	// Without a lower bound the scan covers only the upper bound's year.
	from := to
	if !dr.From.IsZero() {
		from = dr.From.Year()
	}
	var years []int
	for y := from; y <= to; y++ {
		years = append(years, y)
	}
	return years
}

// ensureIndex downloads and extracts the {year}FD.zip index unless a fresh
// local copy exists, then parses it.
func (h *House) ensureIndex(ctx context.Context, year int) ([]houseFiling, error) {
	xmlPath := filepath.Join(h.dir, fmt.Sprintf("%dFD.xml", year))

	if info, err := os.Stat(xmlPath); err == nil {
		fresh := year < h.now().Year() || h.now().Sub(info.ModTime()) < houseCurrentYearMaxAge
		if fresh {
			return h.parseIndexFile(xmlPath, year)
		}
	}

	url := fmt.Sprintf("%s/public_disc/financial-pdfs/%dFD.zip", h.baseURL, year)
	resp, err := h.fetcher.Get(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "house: download index %d", year)
	}

	if err := h.extractIndex(resp.Body, year); err != nil {
		return nil, err
	}
	return h.parseIndexFile(xmlPath, year)
}

func (h *House) extractIndex(zipBytes []byte, year int) error {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return eris.Wrapf(err, "house: open index zip %d", year)
	}
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return eris.Wrap(err, "house: create index dir")
	}

	found := false
	for _, f := range zr.File {
		name := filepath.Base(f.Name)
		if !strings.HasSuffix(name, "FD.xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "house: open %s in zip", f.Name)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return eris.Wrapf(err, "house: read %s in zip", f.Name)
		}
		dst := filepath.Join(h.dir, fmt.Sprintf("%dFD.xml", year))
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return eris.Wrap(err, "house: write index file")
		}
		found = true
	}
	if !found {
		return eris.Errorf("house: zip for %d contains no FD.xml", year)
	}
	return nil
}

func (h *House) parseIndexFile(path string, year int) ([]houseFiling, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, eris.Wrap(err, "house: read index file")
	}
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})

	var idx houseIndex
	if err := xml.Unmarshal(raw, &idx); err != nil {
		return nil, &resilience.ParseError{Source: "house", Msg: fmt.Sprintf("index %d: %v", year, err)}
	}
	for i := range idx.Members {
		if idx.Members[i].Year == 0 {
			idx.Members[i].Year = year
		}
	}
	return idx.Members, nil
}

// selectFilings keeps PTR filings matching the query's official name and
// filing date range. Name matching is containment in either direction over
// "Last First" and "First Last" forms.
func (h *House) selectFilings(filings []houseFiling, q Query) []houseFiling {
	name := strings.ToLower(strings.TrimSpace(q.Official))

	var out []houseFiling
	for _, f := range filings {
		if f.FilingType != houseFilingTypePTR || f.DocID == "" {
			continue
		}
		if name != "" && !houseNameMatches(f, name) {
			continue
		}
		if fd := normalize.ParseDate(f.FilingDate); !q.Range.Contains(fd) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func houseNameMatches(f houseFiling, name string) bool {
	lastFirst := strings.ToLower(strings.TrimSpace(f.Last + " " + f.First))
	firstLast := strings.ToLower(strings.TrimSpace(f.First + " " + f.Last))
	full := strings.ToLower(f.officialName())
	return strings.Contains(lastFirst, name) ||
		strings.Contains(firstLast, name) ||
		strings.Contains(full, name) ||
		strings.Contains(name, lastFirst) ||
		strings.Contains(name, firstLast)
}

func (h *House) scrapeDocument(ctx context.Context, filing houseFiling) ([]model.LegislativeTrade, error) {
	url := fmt.Sprintf("%s/public_disc/ptr-pdfs/%d/%s.pdf", h.baseURL, filing.Year, filing.DocID)
	resp, err := h.fetcher.Get(ctx, url, fetcher.WithTTL(housePDFTTL))
	if err != nil {
		return nil, eris.Wrapf(err, "house: fetch PTR %s", filing.DocID)
	}

	text, err := pdftext.ExtractBytes(ctx, h.extractor, resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "house: extract PTR %s", filing.DocID)
	}
	if pdftext.IsScanned(text) {
		zap.L().Debug("house: skipping scanned document", zap.String("doc_id", filing.DocID))
		return nil, nil
	}

	official := filing.officialName()
	filingDate := normalize.ParseDate(filing.FilingDate)

	var trades []model.LegislativeTrade
	for _, tx := range parsePTRText(text) {
		trades = append(trades, model.LegislativeTrade{
			OfficialName:     official,
			Chamber:          model.ChamberHouse,
			Ticker:           normalize.ExtractTicker(tx.asset),
			AssetDescription: tx.asset,
			Owner:            normalize.NormalizeOwner(tx.owner),
			TradeType:        normalize.ClassifyLegislative(tx.txType),
			TradeDate:        normalize.ParseDate(tx.date),
			FilingDate:       filingDate,
			AmountRange:      tx.amount,
			DocID:            filing.DocID,
			SourceURL:        url,
			Source:           model.SourceHouse,
		})
	}
	for i := range trades {
		trades[i].AmountLow, trades[i].AmountHigh = normalize.ParseAmountRange(trades[i].AmountRange)
	}
	return trades, nil
}

type ptrTransaction struct {
	owner  string
	asset  string
	txType string
	date   string
	amount string
}

// ptrLineRe matches one transaction line of a -layout extraction: optional
// owner code, asset description, type code, transaction date, notification
// date, amount range.
var ptrLineRe = regexp.MustCompile(
	`^\s*(?:(SP|DC|JT)\s+)?(.+?)\s+([PSE])(?:\s*\((?:partial|full)\))?\s+` +
		`(\d{1,2}/\d{1,2}/\d{4})\s+(\d{1,2}/\d{1,2}/\d{4})\s+` +
		`(\$[\d,]+\s*-\s*\$[\d,]+|Over \$[\d,]+)`,
)

// parsePTRText pulls transaction rows out of the extracted PTR text. Lines
// that don't look like transactions are ignored.
func parsePTRText(text string) []ptrTransaction {
	var out []ptrTransaction
	for _, line := range strings.Split(text, "\n") {
		m := ptrLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		asset := strings.TrimSpace(m[2])
		if asset == "" {
			continue
		}
		out = append(out, ptrTransaction{
			owner:  m[1],
			asset:  asset,
			txType: m[3],
			date:   m[4],
			amount: strings.TrimSpace(m[6]),
		})
	}
	return out
}
