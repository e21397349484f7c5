package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuditStep is one step of a method's audit trail. Steps are append-only and
// 1-based; the ordered sequence reads as the full derivation from raw inputs
// to final number. Input values are pre-formatted display strings (or nested
// structures of them), never raw unrounded numbers.
type AuditStep struct {
	StepNumber  int            `json:"step_number"`
	Description string         `json:"description"`
	Inputs      map[string]any `json:"inputs"`
	Calculation string         `json:"calculation,omitempty"`
	Result      string         `json:"result,omitempty"`
}

// MethodResult is the outcome of a successfully executed valuation method.
type MethodResult struct {
	Method           MethodName      `json:"method"`
	Value            decimal.Decimal `json:"value"`
	Confidence       Confidence      `json:"confidence"`
	ConfidenceReason string          `json:"confidence_reason"`
	AuditTrail       []AuditStep     `json:"audit_trail"`
	Warnings         []string        `json:"warnings"`
}

// MethodSkipped records a method whose prerequisites failed. Exactly one of
// MethodResult or MethodSkipped exists per method per run.
type MethodSkipped struct {
	Method MethodName `json:"method"`
	Reason string     `json:"reason"`
}

// MethodComparisonItem is one method's row in the comparison table.
type MethodComparisonItem struct {
	Method     MethodName      `json:"method"`
	Value      decimal.Decimal `json:"value"`
	Confidence Confidence      `json:"confidence"`
	IsPrimary  bool            `json:"is_primary"`
}

// MethodComparison is the structured cross-method comparison shown to
// analysts alongside the narrative.
type MethodComparison struct {
	Methods        []MethodComparisonItem `json:"methods"`
	SpreadPercent  *decimal.Decimal       `json:"spread_percent,omitempty"`
	SpreadWarning  string                 `json:"spread_warning,omitempty"`
	SelectionSteps []string               `json:"selection_steps"`
}

// ValuationSummary is the executive summary of a valuation run.
type ValuationSummary struct {
	PrimaryValue      decimal.Decimal   `json:"primary_value"`
	PrimaryMethod     MethodName        `json:"primary_method"`
	ValueRangeLow     *decimal.Decimal  `json:"value_range_low,omitempty"`
	ValueRangeHigh    *decimal.Decimal  `json:"value_range_high,omitempty"`
	OverallConfidence Confidence        `json:"overall_confidence"`
	SummaryText       string            `json:"summary_text"`
	SelectionReason   string            `json:"selection_reason"`
	MethodComparison  *MethodComparison `json:"method_comparison,omitempty"`
}

// ValuationResult is the complete, serializable output of one engine run.
// ConfigSnapshot carries the exact parameter values that produced the result
// so a dispute can replay the same settings.
type ValuationResult struct {
	CompanyID           string            `json:"company_id"`
	CompanyName         string            `json:"company_name"`
	ValuationDate       time.Time         `json:"valuation_date"`
	Summary             ValuationSummary  `json:"summary"`
	MethodResults       []MethodResult    `json:"method_results"`
	SkippedMethods      []MethodSkipped   `json:"skipped_methods"`
	CrossMethodAnalysis string            `json:"cross_method_analysis,omitempty"`
	ConfigSnapshot      map[string]string `json:"config_snapshot"`
}
