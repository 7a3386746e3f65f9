// Package normalize converts the raw strings scraped from disclosure sites
// into canonical typed values. Anything that cannot be parsed comes back as
// the zero value rather than a guess.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/insider-scan/internal/model"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"01/02/06",
	"01-02-2006",
	"Jan 2, 2006",
}

var absentValues = map[string]bool{
	"":     true,
	"--":   true,
	"-":    true,
	"n/a":  true,
	"na":   true,
	"none": true,
	"nan":  true,
}

func isAbsent(s string) bool {
	return absentValues[strings.ToLower(strings.TrimSpace(s))]
}

// ParseDate parses a date across the formats the sources use. Returns the
// zero time when the text is absent or unparseable.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if isAbsent(s) {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseDecimal parses a dollar or share amount, stripping currency symbols,
// thousands separators, and a leading plus. Parenthesized values are
// negative. Returns zero when unparseable.
func ParseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if isAbsent(s) {
		return decimal.Zero
	}
	neg := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	replacer := strings.NewReplacer("$", "", ",", "", "USD", "", "+", "", "(", "", ")", "")
	s = strings.TrimSpace(replacer.Replace(s))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if neg {
		return d.Neg()
	}
	return d
}

var nonShareChars = regexp.MustCompile(`[^\d.\-]`)

// ParseShares parses a share count, tolerating unit suffixes and footnote
// markers some aggregators attach.
func ParseShares(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if isAbsent(s) {
		return decimal.Zero
	}
	s = nonShareChars.ReplaceAllString(s, "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ClassifyTransaction maps a raw transaction code or label to a TradeType.
// Sources use either single-letter Form 4 codes (P, S, M) or free text.
func ClassifyTransaction(raw string) model.TradeType {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return model.TradeOther
	case s == "p" || strings.Contains(s, "buy") || strings.Contains(s, "purchase"):
		return model.TradeBuy
	case s == "s" || strings.Contains(s, "sale") || strings.Contains(s, "sell"):
		return model.TradeSell
	case s == "m" || strings.Contains(s, "exercise") || strings.Contains(s, "option"):
		return model.TradeExercise
	default:
		return model.TradeOther
	}
}

// ClassifyLegislative maps a disclosed transaction label to a
// LegislativeTradeType. "Sale (Full)" and "Sale (Partial)" both classify as Sale.
func ClassifyLegislative(raw string) model.LegislativeTradeType {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "p" || strings.HasPrefix(s, "purchase"):
		return model.LegPurchase
	case s == "s" || strings.HasPrefix(s, "sale"):
		return model.LegSale
	case s == "e" || strings.HasPrefix(s, "exchange"):
		return model.LegExchange
	default:
		return model.LegOther
	}
}

// NormalizeOwner maps a PTR owner code to the Owner enum. An empty code
// means the filer themselves.
func NormalizeOwner(raw string) model.Owner {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SP", "SPOUSE":
		return model.OwnerSpouse
	case "DC", "DEPENDENT CHILD":
		return model.OwnerDependentChild
	case "JT", "JOINT":
		return model.OwnerJoint
	default:
		return model.OwnerSelf
	}
}

// RoleBucket collapses a free-text insider title into a coarse role label.
func RoleBucket(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	switch {
	case r == "":
		return ""
	case strings.Contains(r, "chief executive") || strings.HasPrefix(r, "ceo"):
		return "CEO"
	case strings.Contains(r, "chief financial") || strings.HasPrefix(r, "cfo"):
		return "CFO"
	case strings.Contains(r, "director"):
		return "Director"
	case strings.Contains(r, "10%") || strings.Contains(r, "ten percent") || strings.Contains(r, "owner"):
		return "10% Owner"
	case strings.Contains(r, "officer"):
		return "Officer"
	case strings.Contains(r, "congress") || strings.Contains(r, "senate") || strings.Contains(r, "house"):
		return "Congress"
	default:
		return "Other"
	}
}

var tickerRe = regexp.MustCompile(`\(([A-Z]{1,5})\)`)

// ExtractTicker pulls a ticker symbol out of a free-text asset description,
// e.g. "Apple Inc (AAPL) [ST]" yields "AAPL". Empty when no parenthesized
// symbol is present.
func ExtractTicker(assetDescription string) string {
	m := tickerRe.FindStringSubmatch(assetDescription)
	if m == nil {
		return ""
	}
	return m[1]
}

// amountBuckets are the fixed textual ranges used by congressional
// disclosure forms.
var amountBuckets = map[string][2]int64{
	"$1,001 - $15,000":          {1_001, 15_000},
	"$15,001 - $50,000":         {15_001, 50_000},
	"$50,001 - $100,000":        {50_001, 100_000},
	"$100,001 - $250,000":       {100_001, 250_000},
	"$250,001 - $500,000":       {250_001, 500_000},
	"$500,001 - $1,000,000":     {500_001, 1_000_000},
	"$1,000,001 - $5,000,000":   {1_000_001, 5_000_000},
	"$5,000,001 - $25,000,000":  {5_000_001, 25_000_000},
	"$25,000,001 - $50,000,000": {25_000_001, 50_000_000},
}

var (
	amountRangeRe = regexp.MustCompile(`^\$?([\d,]+)\s*[-\x{2013}\x{2014}]\s*\$?([\d,]+)$`)
	amountOverRe  = regexp.MustCompile(`(?i)^over\s+\$?([\d,]+)$`)
)

// ParseAmountRange parses a disclosure amount range into numeric bounds.
// Known buckets resolve through a fixed table; anything else falls back to a
// "$X - $Y" pattern. "Over $X" resolves to low = high = X. Unparseable text
// yields nil bounds so the raw string is the only record of the amount.
func ParseAmountRange(raw string) (low, high *decimal.Decimal) {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return nil, nil
	}

	if b, ok := amountBuckets[s]; ok {
		return decPtr(decimal.NewFromInt(b[0])), decPtr(decimal.NewFromInt(b[1]))
	}

	if m := amountRangeRe.FindStringSubmatch(s); m != nil {
		lo := ParseDecimal(m[1])
		hi := ParseDecimal(m[2])
		if lo.LessThanOrEqual(hi) {
			return decPtr(lo), decPtr(hi)
		}
		return nil, nil
	}

	if m := amountOverRe.FindStringSubmatch(s); m != nil {
		v := ParseDecimal(m[1])
		return decPtr(v), decPtr(v)
	}

	return nil, nil
}

func decPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// InsiderKey normalizes an insider name for fuzzy-merge grouping:
// lowercased with runs of whitespace collapsed.
func InsiderKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
