package record

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the volatile subset of a Record.
type Quote struct {
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	DayHigh       decimal.Decimal `json:"day_high"`
	DayLow        decimal.Decimal `json:"day_low"`
	AsOf          time.Time       `json:"as_of"`
}

// Profile describes the instrument itself.
type Profile struct {
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// Fundamentals holds valuation figures that change on filing cadence, not tick cadence.
type Fundamentals struct {
	MarketCap        decimal.Decimal  `json:"market_cap"`
	PERatio          *decimal.Decimal `json:"pe_ratio,omitempty"`
	EPS              *decimal.Decimal `json:"eps,omitempty"`
	DividendYield    *decimal.Decimal `json:"dividend_yield,omitempty"`
	Beta             *decimal.Decimal `json:"beta,omitempty"`
	FiftyTwoWeekHigh decimal.Decimal  `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  decimal.Decimal  `json:"fifty_two_week_low"`
}

// Analysis is the analyst consensus.
type Analysis struct {
	Recommendation  string           `json:"recommendation,omitempty"`
	TargetMeanPrice *decimal.Decimal `json:"target_mean_price,omitempty"`
	AnalystCount    int              `json:"analyst_count"`
}

// FinancialStatement is one reporting period's headline figures.
type FinancialStatement struct {
	Period            string          `json:"period"`
	Revenue           decimal.Decimal `json:"revenue"`
	NetIncome         decimal.Decimal `json:"net_income"`
	OperatingCash     decimal.Decimal `json:"operating_cash"`
	TotalDebt         decimal.Decimal `json:"total_debt"`
	SharesOutstanding int64           `json:"shares_outstanding"`
	ReportedAt        time.Time       `json:"reported_at"`
}

// Record is the full data for one Key. Slices inside the stable subset are
// shared between copies and must be treated as read-only.
type Record struct {
	Key          Key                  `json:"key"`
	Quote        Quote                `json:"quote"`
	Profile      Profile              `json:"profile"`
	Fundamentals Fundamentals         `json:"fundamentals"`
	Analysis     Analysis             `json:"analysis"`
	Statements   []FinancialStatement `json:"statements,omitempty"`
}

// PricePatch carries the volatile subset returned by a batched price fetch.
type PricePatch struct {
	Key   Key   `json:"key"`
	Quote Quote `json:"quote"`
}

// WithQuote returns a copy of r with q merged into its volatile subset.
// The stable subset is carried over untouched.
func (r Record) WithQuote(q Quote) Record {
	r.Quote = r.Quote.Merge(q)
	return r
}

// Merge returns q updated with the fields set in patch. Zero fields in patch
// are treated as absent. Price, Change and ChangePercent move together: they
// are taken from patch only when it carries a price.
func (q Quote) Merge(patch Quote) Quote {
	if !patch.Price.IsZero() {
		q.Price = patch.Price
		q.Change = patch.Change
		q.ChangePercent = patch.ChangePercent
	}
	if patch.Volume != 0 {
		q.Volume = patch.Volume
	}
	if !patch.DayHigh.IsZero() {
		q.DayHigh = patch.DayHigh
	}
	if !patch.DayLow.IsZero() {
		q.DayLow = patch.DayLow
	}
	if !patch.AsOf.IsZero() {
		q.AsOf = patch.AsOf
	}
	return q
}

// DisplayName returns the profile name, falling back to the symbol.
func (r Record) DisplayName() string {
	if r.Profile.Name != "" {
		return r.Profile.Name
	}
	return string(r.Key)
}

// IsUp reports whether the instrument is trading above its previous close.
func (q Quote) IsUp() bool {
	return q.Change.IsPositive()
}
