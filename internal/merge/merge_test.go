package merge

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/insider-scan/internal/model"
)

func mkTrade(src model.Source, mods ...func(*model.StandardTrade)) model.StandardTrade {
	t := model.StandardTrade{
		Ticker:      "AAPL",
		InsiderName: "Cook Timothy D",
		TradeType:   model.TradeBuy,
		TradeDate:   time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Shares:      decimal.NewFromInt(1000),
		Price:       decimal.NewFromFloat(182.50),
		Source:      src,
		Confidence:  model.ConfidenceLow,
	}
	for _, m := range mods {
		m(&t)
	}
	t.EventID = t.Fingerprint()
	return t
}

func TestMerge_ExactDuplicatesCollapse(t *testing.T) {
	a := mkTrade(model.SourceOpenInsider)
	b := mkTrade(model.SourceOpenInsider)

	out := Merge([]model.StandardTrade{a, b})
	require.Len(t, out, 1)
	assert.Equal(t, a.EventID, out[0].EventID)
}

func TestMerge_Idempotent(t *testing.T) {
	a := mkTrade(model.SourceOpenInsider)
	b := mkTrade(model.SourceSecForm4)

	once := Merge([]model.StandardTrade{a, b})
	twice := Merge(once)
	assert.Equal(t, once, twice)
}

func TestMerge_FuzzyAcrossSources(t *testing.T) {
	// Same event reported by two aggregators with slightly different name
	// casing and a one-day date offset.
	a := mkTrade(model.SourceOpenInsider)
	b := mkTrade(model.SourceSecForm4, func(tr *model.StandardTrade) {
		tr.InsiderName = "COOK TIMOTHY D"
		tr.TradeDate = tr.TradeDate.AddDate(0, 0, 1)
	})

	out := Merge([]model.StandardTrade{a, b})
	require.Len(t, out, 1)
}

func TestMerge_Commutative(t *testing.T) {
	a := mkTrade(model.SourceOpenInsider)
	b := mkTrade(model.SourceSecForm4, func(tr *model.StandardTrade) {
		tr.TradeDate = tr.TradeDate.AddDate(0, 0, 1)
	})

	ab := Merge([]model.StandardTrade{a, b})
	ba := Merge([]model.StandardTrade{b, a})
	assert.Equal(t, ab, ba)
}

func TestMerge_SurvivorPrefersFilingLink(t *testing.T) {
	a := mkTrade(model.SourceOpenInsider, func(tr *model.StandardTrade) {
		tr.Confidence = model.ConfidenceHigh
	})
	b := mkTrade(model.SourceSecForm4, func(tr *model.StandardTrade) {
		tr.Confidence = model.ConfidenceLow
		tr.FilingURL = "https://www.sec.gov/Archives/edgar/data/320193/0000320193-24-000050-index.html"
	})

	out := Merge([]model.StandardTrade{a, b})
	require.Len(t, out, 1)
	// The record with the direct filing link survives, carrying the merged
	// confidence of the pair.
	assert.Equal(t, b.FilingURL, out[0].FilingURL)
	assert.Equal(t, model.SourceSecForm4, out[0].Source)
	assert.Equal(t, model.ConfidenceHigh, out[0].Confidence)
}

func TestMerge_ConfidenceOnlyUpgrades(t *testing.T) {
	a := mkTrade(model.SourceOpenInsider, func(tr *model.StandardTrade) {
		tr.Confidence = model.ConfidenceHigh
		tr.FilingURL = "https://www.sec.gov/Archives/edgar/data/320193/x-index.html"
	})
	b := mkTrade(model.SourceSecForm4, func(tr *model.StandardTrade) {
		tr.Confidence = model.ConfidenceLow
	})

	out := Merge([]model.StandardTrade{a, b})
	require.Len(t, out, 1)
	assert.Equal(t, model.ConfidenceHigh, out[0].Confidence)
}

func TestMerge_BackfillFromLoser(t *testing.T) {
	a := mkTrade(model.SourceOpenInsider, func(tr *model.StandardTrade) {
		tr.FilingURL = "https://www.sec.gov/Archives/edgar/data/320193/x-index.html"
		tr.InsiderRole = ""
		tr.Company = ""
	})
	b := mkTrade(model.SourceSecForm4, func(tr *model.StandardTrade) {
		tr.InsiderRole = "CEO"
		tr.Company = "Apple Inc"
	})

	out := Merge([]model.StandardTrade{a, b})
	require.Len(t, out, 1)
	assert.Equal(t, "CEO", out[0].InsiderRole)
	assert.Equal(t, "Apple Inc", out[0].Company)
}

func TestMerge_PriorityBreaksResidualTies(t *testing.T) {
	a := mkTrade(model.SourceSecForm4)
	b := mkTrade(model.SourceOpenInsider)

	out := Merge([]model.StandardTrade{a, b})
	require.Len(t, out, 1)
	assert.Equal(t, model.SourceOpenInsider, out[0].Source)
}

func TestMerge_DistinctEventsSurvive(t *testing.T) {
	a := mkTrade(model.SourceOpenInsider)
	b := mkTrade(model.SourceOpenInsider, func(tr *model.StandardTrade) {
		tr.Shares = decimal.NewFromInt(500)
	})
	c := mkTrade(model.SourceOpenInsider, func(tr *model.StandardTrade) {
		tr.TradeDate = tr.TradeDate.AddDate(0, 0, 10)
	})

	out := Merge([]model.StandardTrade{a, b, c})
	assert.Len(t, out, 3)
}

func TestMerge_ZeroDatesNeverCluster(t *testing.T) {
	a := mkTrade(model.SourceOpenInsider, func(tr *model.StandardTrade) {
		tr.TradeDate = time.Time{}
	})
	b := mkTrade(model.SourceSecForm4, func(tr *model.StandardTrade) {
		tr.TradeDate = time.Time{}
	})

	out := Merge([]model.StandardTrade{a, b})
	assert.Len(t, out, 2)
}

func TestApply_Filters(t *testing.T) {
	buy := mkTrade(model.SourceOpenInsider, func(tr *model.StandardTrade) {
		tr.Value = decimal.NewFromInt(182_500)
	})
	sell := mkTrade(model.SourceSecForm4, func(tr *model.StandardTrade) {
		tr.TradeType = model.TradeSell
		tr.Shares = decimal.NewFromInt(10)
		tr.Value = decimal.NewFromInt(500)
	})
	records := []model.StandardTrade{buy, sell}

	out := Apply(records, Filters{Types: []model.TradeType{model.TradeBuy}})
	require.Len(t, out, 1)
	assert.Equal(t, model.TradeBuy, out[0].TradeType)

	out = Apply(records, Filters{MinValue: decimal.NewFromInt(1000)})
	require.Len(t, out, 1)
	assert.Equal(t, buy.EventID, out[0].EventID)

	out = Apply(records, Filters{Sources: []model.Source{model.SourceSecForm4}})
	require.Len(t, out, 1)
	assert.Equal(t, model.SourceSecForm4, out[0].Source)

	out = Apply(records, Filters{AffiliatedOnly: true})
	assert.Empty(t, out)
}

func TestApply_RangeKeepsUnknownDates(t *testing.T) {
	unknown := mkTrade(model.SourceOpenInsider, func(tr *model.StandardTrade) {
		tr.TradeDate = time.Time{}
	})
	old := mkTrade(model.SourceOpenInsider, func(tr *model.StandardTrade) {
		tr.TradeDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	})

	out := Apply([]model.StandardTrade{unknown, old}, Filters{
		Range: model.DateRange{From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.Len(t, out, 1)
	assert.True(t, out[0].TradeDate.IsZero())
}

func TestSort_Order(t *testing.T) {
	newer := mkTrade(model.SourceOpenInsider, func(tr *model.StandardTrade) {
		tr.TradeDate = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		tr.Value = decimal.NewFromInt(100)
	})
	bigger := mkTrade(model.SourceSecForm4, func(tr *model.StandardTrade) {
		tr.TradeDate = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		tr.Value = decimal.NewFromInt(9999)
	})
	smaller := mkTrade(model.SourceHouse, func(tr *model.StandardTrade) {
		tr.TradeDate = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		tr.Value = decimal.NewFromInt(1)
	})
	undated := mkTrade(model.SourceSenate, func(tr *model.StandardTrade) {
		tr.TradeDate = time.Time{}
	})

	records := []model.StandardTrade{undated, smaller, bigger, newer}
	Sort(records)

	assert.Equal(t, newer.EventID, records[0].EventID)
	assert.Equal(t, bigger.EventID, records[1].EventID)
	assert.Equal(t, smaller.EventID, records[2].EventID)
	assert.Equal(t, undated.EventID, records[3].EventID)
}

func TestMerge_EmptyInput(t *testing.T) {
	assert.Nil(t, Merge(nil))
	assert.Nil(t, Merge([]model.StandardTrade{}))
}
