// Package scan orchestrates a full scan: source adapters run in parallel
// against the shared fetcher, results are normalized, enriched against
// EDGAR, reconciled, flagged, filtered, and returned ordered. A single
// adapter failing never aborts the scan; the summary records what each
// source contributed.
package scan

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/insider-scan/internal/merge"
	"github.com/sells-group/insider-scan/internal/model"
	"github.com/sells-group/insider-scan/internal/roster"
	"github.com/sells-group/insider-scan/internal/sources"
	"github.com/sells-group/insider-scan/pkg/edgar"
)

// Status describes how a source fared during a scan.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// SourceResult is one source's contribution to a scan.
type SourceResult struct {
	Source  model.Source `json:"source"`
	Records int          `json:"records"`
	Status  Status       `json:"status"`
	Err     string       `json:"error,omitempty"`
}

// Summary reports what a scan gathered and from where.
type Summary struct {
	ScanID   string         `json:"scan_id"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Sources  []SourceResult `json:"sources"`
}

func (s *Summary) add(r SourceResult) {
	s.Sources = append(s.Sources, r)
}

// finish stamps the end time and sorts source results for stable output.
func (s *Summary) finish() {
	s.Finished = time.Now()
	sort.Slice(s.Sources, func(i, j int) bool {
		return model.PriorityRank(s.Sources[i].Source) < model.PriorityRank(s.Sources[j].Source)
	})
}

// Progress is one progress event from a running scan.
type Progress struct {
	ScanID  string       `json:"scan_id"`
	Source  model.Source `json:"source"`
	Current int          `json:"current"`
	Total   int          `json:"total"`
	Message string       `json:"message"`
}

// Options bound and filter a scan.
type Options struct {
	Range   model.DateRange
	Sources []model.Source // empty enables every adapter
	Filters merge.Filters
}

func (o Options) enabled(s model.Source) bool {
	if len(o.Sources) == 0 {
		return true
	}
	for _, src := range o.Sources {
		if src == s {
			return true
		}
	}
	return false
}

// Scanner runs scans. Construct once and share; per-scan state lives in the
// scan methods.
type Scanner struct {
	edgar    *edgar.Client
	roster   *roster.Roster
	trades   []sources.TradeAdapter
	congress []sources.CongressAdapter
	progress chan<- Progress
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithProgress makes the scanner emit progress events to ch. Sends never
// block: events are dropped when the receiver lags.
func WithProgress(ch chan<- Progress) Option {
	return func(s *Scanner) { s.progress = ch }
}

// NewScanner wires a scanner from its collaborators.
func NewScanner(e *edgar.Client, r *roster.Roster, trades []sources.TradeAdapter, congress []sources.CongressAdapter, opts ...Option) *Scanner {
	s := &Scanner{
		edgar:    e,
		roster:   r,
		trades:   trades,
		congress: congress,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scanner) emit(p Progress) {
	if s.progress == nil {
		return
	}
	select {
	case s.progress <- p:
	default:
	}
}

// ScanTicker scans all enabled open-market adapters for one ticker and
// returns the reconciled, filtered, ordered record set. Cancellation
// returns whatever was gathered before the cancellation point.
func (s *Scanner) ScanTicker(ctx context.Context, ticker string, opts Options) ([]model.StandardTrade, *Summary, error) {
	return s.runTradeScan(ctx, opts, func(a sources.TradeAdapter) sources.Query {
		return sources.Query{
			Ticker:   ticker,
			Range:    opts.Range,
			Progress: s.adapterProgress(a.Name()),
		}
	})
}

// ScanLatest returns the latest count insider filings site-wide, from the
// adapters that support latest-N queries.
func (s *Scanner) ScanLatest(ctx context.Context, count int, since time.Time, opts Options) ([]model.StandardTrade, *Summary, error) {
	opts.Range = model.DateRange{From: since}
	return s.runTradeScan(ctx, opts, func(a sources.TradeAdapter) sources.Query {
		return sources.Query{
			Count:    count,
			Range:    opts.Range,
			Progress: s.adapterProgress(a.Name()),
		}
	})
}

func (s *Scanner) runTradeScan(ctx context.Context, opts Options, queryFor func(sources.TradeAdapter) sources.Query) ([]model.StandardTrade, *Summary, error) {
	summary := &Summary{ScanID: uuid.NewString(), Started: time.Now()}
	defer summary.finish()

	var mu sync.Mutex
	var gathered []model.StandardTrade
	var failures []error

	g, gctx := errgroup.WithContext(ctx)
	for _, adapter := range s.trades {
		adapter := adapter
		if !opts.enabled(adapter.Name()) {
			mu.Lock()
			summary.add(SourceResult{Source: adapter.Name(), Status: StatusSkipped})
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			records, err := adapter.Scrape(gctx, queryFor(adapter))

			mu.Lock()
			defer mu.Unlock()
			gathered = append(gathered, records...)
			result := SourceResult{Source: adapter.Name(), Records: len(records)}
			switch {
			case err == nil:
				result.Status = StatusOK
			case len(records) > 0:
				result.Status = StatusPartial
				result.Err = err.Error()
			default:
				result.Status = StatusFailed
				result.Err = err.Error()
			}
			summary.add(result)
			if err != nil {
				failures = append(failures, err)
				zap.L().Warn("scan: source failed",
					zap.String("source", string(adapter.Name())),
					zap.Error(err),
				)
			}
			// Adapter failures are absorbed here; only cancellation
			// propagates.
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	waitErr := g.Wait()

	// A scan where every source failed outright is a scan-level failure.
	if waitErr == nil && len(gathered) == 0 && len(failures) > 0 && len(failures) == enabledCount(s.trades, opts) {
		return nil, summary, eris.Wrap(failures[0], "scan: all sources failed")
	}

	records := s.finishTrades(ctx, gathered, opts)
	if waitErr != nil {
		return records, summary, waitErr
	}
	return records, summary, nil
}

func enabledCount(adapters []sources.TradeAdapter, opts Options) int {
	n := 0
	for _, a := range adapters {
		if opts.enabled(a.Name()) {
			n++
		}
	}
	return n
}

// finishTrades runs the post-gather pipeline: EDGAR confidence enrichment,
// reconciliation, affiliation flagging, then filters and ordering.
func (s *Scanner) finishTrades(ctx context.Context, gathered []model.StandardTrade, opts Options) []model.StandardTrade {
	if len(gathered) == 0 {
		return nil
	}

	enriched := s.enrich(ctx, gathered)
	records := merge.Merge(enriched)
	if s.roster != nil {
		records = s.roster.Flag(records)
	}
	records = merge.Apply(records, opts.Filters)
	merge.Sort(records)
	return records
}

func (s *Scanner) adapterProgress(source model.Source) sources.Progress {
	return func(current, total int, message string) {
		s.emit(Progress{
			Source:  source,
			Current: current,
			Total:   total,
			Message: message,
		})
	}
}

// ScanCongress scans the legislative disclosure adapters for one official
// (or all officials when empty) across the requested chambers.
func (s *Scanner) ScanCongress(ctx context.Context, official string, dr model.DateRange, chambers []model.Chamber) ([]model.LegislativeTrade, *Summary, error) {
	summary := &Summary{ScanID: uuid.NewString(), Started: time.Now()}
	defer summary.finish()

	wanted := make(map[model.Chamber]bool, len(chambers))
	for _, c := range chambers {
		wanted[c] = true
	}

	var mu sync.Mutex
	var gathered []model.LegislativeTrade

	g, gctx := errgroup.WithContext(ctx)
	for _, adapter := range s.congress {
		adapter := adapter
		if len(wanted) > 0 && !wanted[adapter.Chamber()] {
			mu.Lock()
			summary.add(SourceResult{Source: adapter.Name(), Status: StatusSkipped})
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			q := sources.Query{
				Official: official,
				Range:    dr,
				Progress: s.adapterProgress(adapter.Name()),
			}
			records, err := adapter.Scrape(gctx, q)

			mu.Lock()
			defer mu.Unlock()
			gathered = append(gathered, records...)
			result := SourceResult{Source: adapter.Name(), Records: len(records)}
			switch {
			case err == nil:
				result.Status = StatusOK
			case len(records) > 0:
				result.Status = StatusPartial
				result.Err = err.Error()
			default:
				result.Status = StatusFailed
				result.Err = err.Error()
			}
			summary.add(result)
			if err != nil {
				zap.L().Warn("scan: congress source failed",
					zap.String("source", string(adapter.Name())),
					zap.Error(err),
				)
			}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	waitErr := g.Wait()

	sortLegislative(gathered)
	return gathered, summary, waitErr
}

// sortLegislative orders disclosures by trade date descending with unknown
// dates last, then by parsed upper amount bound descending.
func sortLegislative(trades []model.LegislativeTrade) {
	sort.SliceStable(trades, func(i, j int) bool {
		a, b := trades[i], trades[j]
		switch {
		case a.TradeDate.IsZero() != b.TradeDate.IsZero():
			return !a.TradeDate.IsZero()
		case !a.TradeDate.Equal(b.TradeDate):
			return a.TradeDate.After(b.TradeDate)
		case (a.AmountHigh != nil) != (b.AmountHigh != nil):
			return a.AmountHigh != nil
		case a.AmountHigh != nil && b.AmountHigh != nil && !a.AmountHigh.Equal(*b.AmountHigh):
			return a.AmountHigh.GreaterThan(*b.AmountHigh)
		default:
			return a.DocID < b.DocID
		}
	})
}

// ResolveCIK maps a ticker to its zero-padded CIK. A ticker with no EDGAR
// identity returns a typed NotFound error.
func (s *Scanner) ResolveCIK(ctx context.Context, ticker string) (string, error) {
	id, err := s.edgar.Resolve(ctx, ticker)
	if err != nil {
		return "", err
	}
	return id.CIK, nil
}
