package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldViolation names one field that failed validation and why.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports semantically invalid input data. It is raised at
// construction time, before the engine ever sees the data, and maps to a
// 422 at the API boundary.
type ValidationError struct {
	Violations []FieldViolation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return "invalid company data: " + strings.Join(parts, "; ")
}

// postMoneyTolerance is the allowed absolute difference between the reported
// post-money valuation and pre-money + amount raised.
var postMoneyTolerance = decimal.RequireFromString("0.01")

// maxAdjustmentFactor rejects unreasonable multiplicative leverage.
var maxAdjustmentFactor = decimal.NewFromInt(10)

type violations struct {
	list []FieldViolation
}

func (v *violations) add(field, format string, args ...any) {
	v.list = append(v.list, FieldViolation{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *violations) err() error {
	if len(v.list) == 0 {
		return nil
	}
	return &ValidationError{Violations: v.list}
}

// Validate checks all field-level and cross-field invariants of the
// aggregate. Violated inputs are rejected, never silently corrected.
func (d CompanyData) Validate() error {
	var v violations

	if d.Company.ID == "" {
		v.add("company.id", "must not be empty")
	}
	if d.Company.Name == "" {
		v.add("company.name", "must not be empty")
	}
	if d.Company.Sector == "" {
		v.add("company.sector", "must not be empty")
	}
	if !d.Company.Stage.Known() {
		v.add("company.stage", "unknown stage %q", d.Company.Stage)
	}

	validateFinancials(d.Financials, &v)

	if d.LastRound != nil {
		validateLastRound(*d.LastRound, &v)
	}

	for i, adj := range d.Adjustments {
		field := fmt.Sprintf("adjustments[%d].factor", i)
		if !adj.Factor.IsPositive() {
			v.add(field, "must be positive")
		} else if adj.Factor.GreaterThan(maxAdjustmentFactor) {
			v.add(field, "unreasonably high (>10x)")
		}
		if adj.Name == "" {
			v.add(fmt.Sprintf("adjustments[%d].name", i), "must not be empty")
		}
	}

	return v.err()
}

func validateFinancials(f Financials, v *violations) {
	if f.RevenueTTM != nil && f.RevenueTTM.IsNegative() {
		v.add("financials.revenue_ttm", "must not be negative")
	}
	if f.BurnRate != nil && f.BurnRate.IsNegative() {
		v.add("financials.burn_rate", "must not be negative")
	}
	if f.GrossMargin != nil {
		if f.GrossMargin.IsNegative() || f.GrossMargin.GreaterThan(decimal.NewFromInt(1)) {
			v.add("financials.gross_margin", "must be between 0 and 1")
		}
	}
}

func validateLastRound(r LastRound, v *violations) {
	if r.Date.After(time.Now()) {
		v.add("last_round.date", "must not be in the future")
	}
	if !r.ValuationPre.IsPositive() {
		v.add("last_round.valuation_pre", "must be positive")
	}
	if !r.ValuationPost.IsPositive() {
		v.add("last_round.valuation_post", "must be positive")
	}
	if !r.AmountRaised.IsPositive() {
		v.add("last_round.amount_raised", "must be positive")
	}

	expected := r.ValuationPre.Add(r.AmountRaised)
	if r.ValuationPost.Sub(expected).Abs().GreaterThan(postMoneyTolerance) {
		v.add("last_round.valuation_post",
			"post-money must equal pre-money + amount raised (expected %s, got %s)",
			expected, r.ValuationPost)
	}
}
