package edgar

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/insider-scan/internal/fetcher"
)

// Filing is one entry from a company's submissions index.
type Filing struct {
	CIK         string
	AccessionNo string // with dashes
	Form        string
	FilingDate  time.Time
	PrimaryDoc  string
}

// submissionsDoc is the column-oriented shape of
// data.sec.gov/submissions/CIK{cik}.json: parallel arrays, one element per
// filing.
type submissionsDoc struct {
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// Submissions fetches the recent filings index for a CIK.
func (c *Client) Submissions(ctx context.Context, cik string) ([]Filing, error) {
	url := c.dataBase + "/submissions/CIK" + cik + ".json"
	resp, err := c.fetcher.Get(ctx, url, fetcher.WithTTL(submissionsTTL))
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: fetch submissions for CIK %s", cik)
	}

	var doc submissionsDoc
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, eris.Wrap(err, "edgar: decode submissions")
	}

	r := doc.Filings.Recent
	n := min(len(r.AccessionNumber), len(r.FilingDate), len(r.Form), len(r.PrimaryDocument))
	filings := make([]Filing, 0, n)
	for i := 0; i < n; i++ {
		fd, _ := time.Parse("2006-01-02", r.FilingDate[i])
		filings = append(filings, Filing{
			CIK:         cik,
			AccessionNo: r.AccessionNumber[i],
			Form:        r.Form[i],
			FilingDate:  fd,
			PrimaryDoc:  r.PrimaryDocument[i],
		})
	}
	return filings, nil
}

// FindForm4Near returns the Form 4 (or 4/A) filing whose filing date is
// closest to target, provided it is within maxDays. Nil when the company has
// no Form 4 close enough.
func (c *Client) FindForm4Near(ctx context.Context, cik string, target time.Time, maxDays int) (*Filing, error) {
	filings, err := c.Submissions(ctx, cik)
	if err != nil {
		return nil, err
	}

	var best *Filing
	bestDelta := maxDays + 1
	for i := range filings {
		f := &filings[i]
		if f.Form != "4" && f.Form != "4/A" {
			continue
		}
		if f.FilingDate.IsZero() || target.IsZero() {
			continue
		}
		delta := daysApart(f.FilingDate, target)
		if delta < bestDelta {
			best = f
			bestDelta = delta
		}
	}
	return best, nil
}

func daysApart(a, b time.Time) int {
	d := int(a.Sub(b).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}

// FilingIndexURL builds the Archives index page URL for a filing:
// /Archives/edgar/data/{cik}/{accession-nodashes}/{accession}-index.html
// with leading CIK zeros stripped from the path segment.
func (c *Client) FilingIndexURL(cik, accessionNo string) string {
	n, err := strconv.ParseInt(cik, 10, 64)
	cikSeg := cik
	if err == nil {
		cikSeg = strconv.FormatInt(n, 10)
	}
	noDash := strings.ReplaceAll(accessionNo, "-", "")
	return c.wwwBase + "/Archives/edgar/data/" + cikSeg + "/" + noDash + "/" + accessionNo + "-index.html"
}

var archivesLinkRe = regexp.MustCompile(`(?i)(https?://(?:www\.)?sec\.gov/Archives/edgar/data/[^\s"'>]+)`)

// ExtractArchivesLink finds a direct SEC Archives filing link inside
// arbitrary text, or returns the empty string.
func ExtractArchivesLink(text string) string {
	if m := archivesLinkRe.FindString(text); m != "" {
		return m
	}
	return ""
}
