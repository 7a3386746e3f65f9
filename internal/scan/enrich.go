package scan

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/insider-scan/internal/model"
	"github.com/sells-group/insider-scan/internal/resilience"
)

// Confidence enrichment thresholds: a Form 4 filed within highMatchDays of
// the record's date corroborates it fully; within nearMatchDays it is a
// plausible but unconfirmed match.
const (
	highMatchDays = 2
	nearMatchDays = 10
)

// enrich assigns confidence by verifying each record against EDGAR.
// A direct Archives link is already full corroboration. Otherwise the
// issuer's submissions index is searched for a Form 4 near the record's
// filing (or trade) date; a close match upgrades the record and supplies
// the filing index URL. Records that cannot be corroborated stay LOW.
func (s *Scanner) enrich(ctx context.Context, records []model.StandardTrade) []model.StandardTrade {
	if s.edgar == nil {
		return records
	}

	for i := range records {
		r := &records[i]

		if strings.Contains(r.FilingURL, "sec.gov/Archives/") {
			r.Confidence = model.ConfidenceHigh
			continue
		}

		id, err := s.edgar.Resolve(ctx, r.Ticker)
		if err != nil {
			if !resilience.IsNotFound(err) {
				zap.L().Warn("enrich: resolve failed",
					zap.String("ticker", r.Ticker),
					zap.Error(err),
				)
			}
			r.Confidence = floorConfidence(r.Confidence)
			continue
		}
		if r.Company == "" {
			r.Company = id.Title
		}

		target := r.FilingDate
		if target.IsZero() {
			target = r.TradeDate
		}
		filing, err := s.edgar.FindForm4Near(ctx, id.CIK, target, nearMatchDays)
		if err != nil {
			zap.L().Warn("enrich: submissions lookup failed",
				zap.String("ticker", r.Ticker),
				zap.Error(err),
			)
			r.Confidence = floorConfidence(r.Confidence)
			continue
		}
		if filing == nil {
			r.Confidence = floorConfidence(r.Confidence)
			continue
		}

		r.FilingURL = s.edgar.FilingIndexURL(id.CIK, filing.AccessionNo)
		if !target.IsZero() && daysApart(filing.FilingDate, target) <= highMatchDays {
			r.Confidence = model.ConfidenceHigh
		} else if r.Confidence.Rank() < model.ConfidenceMed.Rank() {
			r.Confidence = model.ConfidenceMed
		}
		if r.FilingDate.IsZero() {
			r.FilingDate = filing.FilingDate
		}
	}
	return records
}

func daysApart(a, b time.Time) int {
	d := int(a.Sub(b).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}

// floorConfidence never downgrades evidence a record already carries.
func floorConfidence(c model.Confidence) model.Confidence {
	if c.Rank() > model.ConfidenceLow.Rank() {
		return c
	}
	return model.ConfidenceLow
}
