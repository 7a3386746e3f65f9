package model

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies the adapter a record came from.
type Source string

const (
	SourceOpenInsider Source = "openinsider"
	SourceSecForm4    Source = "secform4"
	SourceHouse       Source = "house"
	SourceSenate      Source = "senate"
)

// DefaultSourcePriority is the fixed adapter-priority order used as the
// final merge tie-break: earlier entries win residual ties.
var DefaultSourcePriority = []Source{SourceOpenInsider, SourceSecForm4, SourceHouse, SourceSenate}

// PriorityRank returns the tie-break rank of a source (lower wins).
// Unknown sources rank last.
func PriorityRank(s Source) int {
	for i, p := range DefaultSourcePriority {
		if p == s {
			return i
		}
	}
	return len(DefaultSourcePriority)
}

// TradeType classifies an open-market/derivative insider transaction.
type TradeType string

const (
	TradeBuy      TradeType = "Buy"
	TradeSell     TradeType = "Sell"
	TradeExercise TradeType = "Exercise"
	TradeOther    TradeType = "Other"
)

// Confidence reflects how well a record is corroborated by the SEC's
// authoritative filing system.
type Confidence string

const (
	ConfidenceHigh Confidence = "HIGH"
	ConfidenceMed  Confidence = "MED"
	ConfidenceLow  Confidence = "LOW"
)

// Rank orders confidence levels: HIGH > MED > LOW > unknown.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMed:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// DateRange bounds a scan. Zero From or To means unbounded on that side.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether d falls inside the range. A zero d is treated
// as in-range so records with unknown dates are never silently dropped.
func (r DateRange) Contains(d time.Time) bool {
	if d.IsZero() {
		return true
	}
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

// StandardTrade is one canonical open-market/derivative insider transaction,
// reconciled across sources.
type StandardTrade struct {
	Ticker      string          `json:"ticker" csv:"ticker"`
	Company     string          `json:"company,omitempty" csv:"company"`
	InsiderName string          `json:"insider_name" csv:"insider_name"`
	InsiderRole string          `json:"insider_role,omitempty" csv:"insider_role"`
	TradeType   TradeType       `json:"transaction_type" csv:"transaction_type"`
	TradeDate   time.Time       `json:"trade_date" csv:"trade_date"`
	FilingDate  time.Time       `json:"filing_date,omitzero" csv:"filing_date"`
	Shares      decimal.Decimal `json:"shares" csv:"shares"`
	Price       decimal.Decimal `json:"price_per_share" csv:"price_per_share"`
	Value       decimal.Decimal `json:"total_value" csv:"total_value"`
	Source      Source          `json:"source" csv:"source"`
	SourceURL   string          `json:"source_url,omitempty" csv:"source_url"`
	FilingURL   string          `json:"filing_url,omitempty" csv:"filing_url"`
	Confidence  Confidence      `json:"confidence" csv:"confidence"`
	EventID     string          `json:"event_id" csv:"event_id"`

	// Affiliation annotation, set by the roster flagger.
	Affiliated      bool   `json:"affiliated" csv:"affiliated"`
	AffiliationName string `json:"affiliation_name,omitempty" csv:"affiliation_name"`
}

// Fingerprint computes the stable event identity for a trade. Two records
// with the same fingerprint are exact duplicates.
func (t StandardTrade) Fingerprint() string {
	return EventID(t.Ticker, t.InsiderName, t.TradeDate, t.Shares, t.Price, string(t.TradeType), string(t.Source))
}

// EventID hashes the identity fields of a transaction into a hex digest.
// Absent dates and zero amounts contribute empty components so that records
// missing the same fields still collide.
func EventID(ticker, insider string, tradeDate time.Time, shares, price decimal.Decimal, txnType, source string) string {
	var d, sh, pr string
	if !tradeDate.IsZero() {
		d = tradeDate.Format("2006-01-02")
	}
	if !shares.IsZero() {
		sh = shares.String()
	}
	if !price.IsZero() {
		pr = price.String()
	}
	key := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s", ticker, insider, d, sh, pr, txnType, source)
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// DeriveValue fills Value from Shares x Price when both are present and
// Value is absent.
func (t *StandardTrade) DeriveValue() {
	if t.Value.IsZero() && !t.Shares.IsZero() && !t.Price.IsZero() {
		t.Value = t.Shares.Mul(t.Price)
	}
}
