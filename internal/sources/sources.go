// Package sources contains the adapters that scrape insider-trading
// disclosures from their upstream sites. Adapters differ entirely in
// transport and parsing strategy but share one contract: produce normalized
// trade records for a query, best-effort, without letting a failure escape
// the adapter boundary as anything other than an error return.
package sources

import (
	"context"

	"github.com/sells-group/insider-scan/internal/model"
)

// Progress reports scraping progress to the caller. Implementations must be
// fast and non-blocking; adapters call it inline between fetches.
type Progress func(current, total int, message string)

// Query describes what to scrape.
type Query struct {
	// Ticker restricts open-market adapters to one issuer. Empty with a
	// positive Count means a latest-N screener query.
	Ticker string

	// Official restricts legislative adapters to one filer. Empty scans
	// all filers in range.
	Official string

	// Range bounds the scan by date. Adapters filter on trade date when
	// known, falling back to filing date.
	Range model.DateRange

	// Count caps latest-N queries.
	Count int

	Progress Progress
}

func (q Query) progress(current, total int, message string) {
	if q.Progress != nil {
		q.Progress(current, total, message)
	}
}

// TradeAdapter scrapes open-market/derivative insider transactions.
type TradeAdapter interface {
	Name() model.Source
	Scrape(ctx context.Context, q Query) ([]model.StandardTrade, error)
}

// CongressAdapter scrapes legislative disclosure transactions.
type CongressAdapter interface {
	Name() model.Source
	Chamber() model.Chamber
	Scrape(ctx context.Context, q Query) ([]model.LegislativeTrade, error)
}
