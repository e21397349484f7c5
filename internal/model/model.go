// Package model defines the immutable value objects flowing through the
// valuation engine: company inputs, market reference data, and the audit
// trail produced by each method.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stage is a company's funding stage.
type Stage string

const (
	StageSeed    Stage = "seed"
	StageSeriesA Stage = "series_a"
	StageSeriesB Stage = "series_b"
	StageSeriesC Stage = "series_c"
	StageGrowth  Stage = "growth"
)

// Known reports whether s is one of the defined funding stages.
func (s Stage) Known() bool {
	switch s {
	case StageSeed, StageSeriesA, StageSeriesB, StageSeriesC, StageGrowth:
		return true
	}
	return false
}

// MethodName identifies a valuation method.
type MethodName string

const (
	MethodLastRound   MethodName = "last_round"
	MethodComparables MethodName = "comparables"
)

// DisplayName returns the human-readable method name used in narratives.
func (m MethodName) DisplayName() string {
	switch m {
	case MethodLastRound:
		return "Last Round"
	case MethodComparables:
		return "Comparables"
	default:
		return string(m)
	}
}

// Confidence is a three-level qualitative trust rating.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders confidence levels with HIGH first. Used for primary-method
// selection; ties keep registration order.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 0
	case ConfidenceMedium:
		return 1
	default:
		return 2
	}
}

// Company holds basic company identity.
type Company struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Sector      string     `json:"sector" yaml:"sector"`
	Stage       Stage      `json:"stage" yaml:"stage"`
	FoundedDate *time.Time `json:"founded_date,omitempty" yaml:"founded_date,omitempty"`
}

// Financials holds the company's financial metrics. Every field is
// independently optional; a nil RevenueTTM signals a pre-revenue company.
type Financials struct {
	RevenueTTM       *decimal.Decimal `json:"revenue_ttm,omitempty" yaml:"revenue_ttm,omitempty"`
	RevenueGrowthYoY *decimal.Decimal `json:"revenue_growth_yoy,omitempty" yaml:"revenue_growth_yoy,omitempty"`
	GrossMargin      *decimal.Decimal `json:"gross_margin,omitempty" yaml:"gross_margin,omitempty"`
	BurnRate         *decimal.Decimal `json:"burn_rate,omitempty" yaml:"burn_rate,omitempty"`
	RunwayMonths     *int             `json:"runway_months,omitempty" yaml:"runway_months,omitempty"`
}

// LastRound describes the most recent funding round.
type LastRound struct {
	Date          time.Time       `json:"date" yaml:"date"`
	ValuationPre  decimal.Decimal `json:"valuation_pre" yaml:"valuation_pre"`
	ValuationPost decimal.Decimal `json:"valuation_post" yaml:"valuation_post"`
	AmountRaised  decimal.Decimal `json:"amount_raised" yaml:"amount_raised"`
	LeadInvestor  string          `json:"lead_investor,omitempty" yaml:"lead_investor,omitempty"`
}

// Adjustment is a company-specific multiplicative valuation adjustment.
type Adjustment struct {
	Name   string          `json:"name" yaml:"name"`
	Factor decimal.Decimal `json:"factor" yaml:"factor"`
	Reason string          `json:"reason" yaml:"reason"`
}

// CompanyData aggregates everything the engine needs to value one company.
// It is a pure value: custom valuations may supply it without touching
// storage.
type CompanyData struct {
	Company     Company      `json:"company" yaml:"company"`
	Financials  Financials   `json:"financials" yaml:"financials"`
	LastRound   *LastRound   `json:"last_round,omitempty" yaml:"last_round,omitempty"`
	Adjustments []Adjustment `json:"adjustments,omitempty" yaml:"adjustments,omitempty"`
}

// CompanySummary is a listing row for available companies.
type CompanySummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Sector string `json:"sector"`
	Stage  Stage  `json:"stage"`
}

// DataSource records where a reference dataset came from, for citation in
// audit trails.
type DataSource struct {
	Name        string    `json:"name" yaml:"name"`
	RetrievedAt time.Time `json:"retrieved_at" yaml:"retrieved_at"`
}

// MarketIndex is one (index, date) -> value point of a public market index.
type MarketIndex struct {
	Name  string          `json:"name" yaml:"name"`
	Date  time.Time       `json:"date" yaml:"date"`
	Value decimal.Decimal `json:"value" yaml:"value"`
}

// ComparableCompany is a public peer used by the comparables method.
type ComparableCompany struct {
	Ticker            string           `json:"ticker" yaml:"ticker"`
	Name              string           `json:"name" yaml:"name"`
	Sector            string           `json:"sector" yaml:"sector"`
	RevenueTTM        decimal.Decimal  `json:"revenue_ttm" yaml:"revenue_ttm"`
	MarketCap         decimal.Decimal  `json:"market_cap" yaml:"market_cap"`
	EVRevenueMultiple decimal.Decimal  `json:"ev_revenue_multiple" yaml:"ev_revenue_multiple"`
	RevenueGrowthYoY  *decimal.Decimal `json:"revenue_growth_yoy,omitempty" yaml:"revenue_growth_yoy,omitempty"`
	SourceName        string           `json:"source_name,omitempty" yaml:"source_name,omitempty"`
}

// ComparableSet is the peer group for one sector.
type ComparableSet struct {
	Sector    string              `json:"sector" yaml:"sector"`
	AsOfDate  time.Time           `json:"as_of_date" yaml:"as_of_date"`
	Companies []ComparableCompany `json:"companies" yaml:"companies"`
	Source    DataSource          `json:"source" yaml:"source"`
}
