package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Chamber identifies the legislative body a disclosure came from.
type Chamber string

const (
	ChamberHouse  Chamber = "House"
	ChamberSenate Chamber = "Senate"
)

// Owner identifies who holds the disclosed asset.
type Owner string

const (
	OwnerSelf           Owner = "Self"
	OwnerSpouse         Owner = "Spouse"
	OwnerDependentChild Owner = "Dependent Child"
	OwnerJoint          Owner = "Joint"
)

// LegislativeTradeType classifies a disclosed congressional transaction.
type LegislativeTradeType string

const (
	LegPurchase LegislativeTradeType = "Purchase"
	LegSale     LegislativeTradeType = "Sale"
	LegExchange LegislativeTradeType = "Exchange"
	LegOther    LegislativeTradeType = "Other"
)

// LegislativeTrade is one disclosed transaction by a covered public official.
// Amounts are reported as textual ranges; AmountLow/AmountHigh hold the
// parsed bounds and are either both set or both nil. When the range text
// cannot be parsed the raw text is preserved in AmountRange untouched.
type LegislativeTrade struct {
	OfficialName     string               `json:"official_name" csv:"official_name"`
	Chamber          Chamber              `json:"chamber" csv:"chamber"`
	Ticker           string               `json:"ticker,omitempty" csv:"ticker"`
	AssetDescription string               `json:"asset_description" csv:"asset_description"`
	Owner            Owner                `json:"owner" csv:"owner"`
	TradeType        LegislativeTradeType `json:"transaction_type" csv:"transaction_type"`
	TradeDate        time.Time            `json:"transaction_date,omitzero" csv:"transaction_date"`
	FilingDate       time.Time            `json:"filing_date,omitzero" csv:"filing_date"`
	AmountRange      string               `json:"amount_range" csv:"amount_range"`
	AmountLow        *decimal.Decimal     `json:"amount_low,omitempty" csv:"amount_low"`
	AmountHigh       *decimal.Decimal     `json:"amount_high,omitempty" csv:"amount_high"`
	Comment          string               `json:"comment,omitempty" csv:"comment"`
	DocID            string               `json:"doc_id,omitempty" csv:"doc_id"`
	SourceURL        string               `json:"source_url,omitempty" csv:"source_url"`
	Source           Source               `json:"source" csv:"source"`
}
