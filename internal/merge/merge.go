// Package merge is the reconciliation engine: it collapses exact duplicate
// records, fuzzy-merges near-duplicates across sources into one survivor per
// real-world event, and applies caller filters after merging so a filtered
// duplicate can never suppress a kept duplicate's evidence.
package merge

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/insider-scan/internal/model"
	"github.com/sells-group/insider-scan/internal/normalize"
)

// Merge deduplicates records from all adapters. Exact duplicates (same
// event fingerprint) collapse first; remaining records fuzzy-merge when they
// share ticker, normalized insider name, rounded share count, and trade
// dates within one calendar day. The result is independent of input order.
func Merge(records []model.StandardTrade) []model.StandardTrade {
	if len(records) == 0 {
		return nil
	}

	in := len(records)
	records = collapseExact(records)
	records = fuzzyMerge(records)
	Sort(records)

	if len(records) < in {
		zap.L().Debug("merge: collapsed records",
			zap.Int("in", in),
			zap.Int("out", len(records)),
		)
	}
	return records
}

// collapseExact keeps one record per event fingerprint, preferring the copy
// with the most evidence.
func collapseExact(records []model.StandardTrade) []model.StandardTrade {
	byID := make(map[string]model.StandardTrade, len(records))
	order := make([]string, 0, len(records))
	for _, r := range records {
		if r.EventID == "" {
			r.EventID = r.Fingerprint()
		}
		cur, seen := byID[r.EventID]
		if !seen {
			byID[r.EventID] = r
			order = append(order, r.EventID)
			continue
		}
		if better(r, cur) {
			byID[r.EventID] = r
		}
	}

	sort.Strings(order)
	out := make([]model.StandardTrade, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// fuzzyGroupKey buckets candidates before date clustering.
type fuzzyGroupKey struct {
	ticker  string
	insider string
	shares  string
}

func fuzzyMerge(records []model.StandardTrade) []model.StandardTrade {
	// Records are processed in fingerprint order so that clustering, and
	// therefore the survivor, does not depend on adapter completion order.
	sort.Slice(records, func(i, j int) bool {
		return records[i].EventID < records[j].EventID
	})

	groups := make(map[fuzzyGroupKey][]model.StandardTrade)
	var keys []fuzzyGroupKey
	for _, r := range records {
		k := fuzzyGroupKey{
			ticker:  strings.ToUpper(r.Ticker),
			insider: normalize.InsiderKey(r.InsiderName),
			shares:  r.Shares.Round(0).String(),
		}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}

	var out []model.StandardTrade
	for _, k := range keys {
		for _, cluster := range clusterByDate(groups[k]) {
			out = append(out, combine(cluster))
		}
	}
	return out
}

// clusterByDate splits a candidate group into clusters of records whose
// trade dates lie within one day of the cluster seed. Records without a
// trade date never cluster; they stand alone.
func clusterByDate(group []model.StandardTrade) [][]model.StandardTrade {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i].TradeDate, group[j].TradeDate
		if !a.Equal(b) {
			return a.Before(b)
		}
		return group[i].EventID < group[j].EventID
	})

	used := make([]bool, len(group))
	var clusters [][]model.StandardTrade
	for i := range group {
		if used[i] {
			continue
		}
		cluster := []model.StandardTrade{group[i]}
		used[i] = true
		if group[i].TradeDate.IsZero() {
			clusters = append(clusters, cluster)
			continue
		}
		for j := i + 1; j < len(group); j++ {
			if used[j] || group[j].TradeDate.IsZero() {
				continue
			}
			if daysBetween(group[i].TradeDate, group[j].TradeDate) <= 1 {
				cluster = append(cluster, group[j])
				used[j] = true
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

func daysBetween(a, b time.Time) int {
	d := int(b.Sub(a).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}

// combine picks the survivor of a fuzzy cluster and backfills its missing
// fields from the losers. Confidence only ever goes up.
func combine(cluster []model.StandardTrade) model.StandardTrade {
	survivor := cluster[0]
	for _, r := range cluster[1:] {
		if better(r, survivor) {
			survivor = r
		}
	}

	for _, r := range cluster {
		if r.EventID == survivor.EventID {
			continue
		}
		backfill(&survivor, r)
		if r.Confidence.Rank() > survivor.Confidence.Rank() {
			survivor.Confidence = r.Confidence
		}
	}
	survivor.DeriveValue()
	return survivor
}

// better reports whether a beats b as cluster survivor: direct filing link
// first, then confidence, then fixed adapter priority, then fingerprint as
// the deterministic last resort.
func better(a, b model.StandardTrade) bool {
	if (a.FilingURL != "") != (b.FilingURL != "") {
		return a.FilingURL != ""
	}
	if a.Confidence.Rank() != b.Confidence.Rank() {
		return a.Confidence.Rank() > b.Confidence.Rank()
	}
	if model.PriorityRank(a.Source) != model.PriorityRank(b.Source) {
		return model.PriorityRank(a.Source) < model.PriorityRank(b.Source)
	}
	return a.EventID < b.EventID
}

func backfill(dst *model.StandardTrade, src model.StandardTrade) {
	if dst.Company == "" {
		dst.Company = src.Company
	}
	if dst.InsiderRole == "" {
		dst.InsiderRole = src.InsiderRole
	}
	if dst.TradeDate.IsZero() {
		dst.TradeDate = src.TradeDate
	}
	if dst.FilingDate.IsZero() {
		dst.FilingDate = src.FilingDate
	}
	if dst.Shares.IsZero() {
		dst.Shares = src.Shares
	}
	if dst.Price.IsZero() {
		dst.Price = src.Price
	}
	if dst.Value.IsZero() {
		dst.Value = src.Value
	}
	if dst.FilingURL == "" {
		dst.FilingURL = src.FilingURL
	}
	if dst.SourceURL == "" {
		dst.SourceURL = src.SourceURL
	}
	if !dst.Affiliated && src.Affiliated {
		dst.Affiliated = true
		dst.AffiliationName = src.AffiliationName
	}
}

// Filters restrict the merged record set. Applied after merging, never
// before.
type Filters struct {
	Range          model.DateRange
	Types          []model.TradeType
	MinValue       decimal.Decimal
	Sources        []model.Source
	AffiliatedOnly bool
}

// Apply filters records, preserving order.
func Apply(records []model.StandardTrade, f Filters) []model.StandardTrade {
	typeSet := make(map[model.TradeType]bool, len(f.Types))
	for _, t := range f.Types {
		typeSet[t] = true
	}
	sourceSet := make(map[model.Source]bool, len(f.Sources))
	for _, s := range f.Sources {
		sourceSet[s] = true
	}

	out := make([]model.StandardTrade, 0, len(records))
	for _, r := range records {
		if !f.Range.Contains(r.TradeDate) {
			continue
		}
		if len(typeSet) > 0 && !typeSet[r.TradeType] {
			continue
		}
		if !f.MinValue.IsZero() && r.Value.Abs().LessThan(f.MinValue) {
			continue
		}
		if len(sourceSet) > 0 && !sourceSet[r.Source] {
			continue
		}
		if f.AffiliatedOnly && !r.Affiliated {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Sort orders records by trade date descending with unknown dates last,
// then by total value descending.
func Sort(records []model.StandardTrade) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch {
		case a.TradeDate.IsZero() != b.TradeDate.IsZero():
			return !a.TradeDate.IsZero()
		case !a.TradeDate.Equal(b.TradeDate):
			return a.TradeDate.After(b.TradeDate)
		case !a.Value.Equal(b.Value):
			return a.Value.GreaterThan(b.Value)
		default:
			return a.EventID < b.EventID
		}
	})
}
