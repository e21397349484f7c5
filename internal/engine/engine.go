// Package engine orchestrates the valuation methods, reconciles their
// outputs into a single primary estimate with a confidence rating, and
// assembles the final serializable result.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/AshwinKadaruDev/vc-audit/internal/config"
	"github.com/AshwinKadaruDev/vc-audit/internal/loader"
	"github.com/AshwinKadaruDev/vc-audit/internal/mathx"
	"github.com/AshwinKadaruDev/vc-audit/internal/model"
	"github.com/AshwinKadaruDev/vc-audit/internal/valuation"
)

// NoValidMethodsError reports that every method's prerequisites failed. It
// carries each method's skip reason so the caller can explain exactly why.
// This is the engine's only intrinsic failure mode.
type NoValidMethodsError struct {
	CompanyID   string
	SkipReasons map[model.MethodName]string
}

func (e *NoValidMethodsError) Error() string {
	parts := make([]string, 0, len(e.SkipReasons))
	for _, name := range valuation.Names() {
		if reason, ok := e.SkipReasons[name]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", name, reason))
		}
	}
	return fmt.Sprintf("no valid valuation methods for company %s (%s)",
		e.CompanyID, strings.Join(parts, "; "))
}

// Engine runs all registered methods against one company's data. The
// configuration is frozen at construction; each invocation is independent
// and free of shared mutable state, so one Engine is safe to share across
// concurrent requests.
type Engine struct {
	dl  loader.DataLoader
	cfg config.ValuationConfig
	now valuation.Clock
}

// Option customizes engine construction.
type Option func(*Engine)

// WithClock overrides the engine's notion of "today". Tests use this to pin
// round-age arithmetic.
func WithClock(now valuation.Clock) Option {
	return func(e *Engine) { e.now = now }
}

// New constructs an engine bound to a data loader and a frozen config.
func New(dl loader.DataLoader, cfg config.ValuationConfig, opts ...Option) *Engine {
	e := &Engine{dl: dl, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run loads a company by ID and values it.
func (e *Engine) Run(ctx context.Context, companyID string) (model.ValuationResult, error) {
	data, err := e.dl.LoadCompany(ctx, companyID)
	if err != nil {
		return model.ValuationResult{}, eris.Wrapf(err, "engine: load company %s", companyID)
	}
	return e.RunWithData(ctx, data)
}

// RunWithData values already-resolved company data: runs every registered
// method, partitions outcomes, reconciles, and assembles the result.
func (e *Engine) RunWithData(ctx context.Context, data model.CompanyData) (model.ValuationResult, error) {
	methods := valuation.CreateAll(data, e.cfg, e.dl, e.now)

	var results []model.MethodResult
	var skipped []model.MethodSkipped

	for _, m := range methods {
		outcome, err := valuation.Run(ctx, m)
		if err != nil {
			return model.ValuationResult{}, err
		}
		if outcome.Result != nil {
			results = append(results, *outcome.Result)
		} else {
			skipped = append(skipped, *outcome.Skipped)
		}
	}

	if len(results) == 0 {
		reasons := make(map[model.MethodName]string, len(skipped))
		for _, s := range skipped {
			reasons[s.Method] = s.Reason
		}
		return model.ValuationResult{}, &NoValidMethodsError{
			CompanyID:   data.Company.ID,
			SkipReasons: reasons,
		}
	}

	var crossAnalysis string
	if len(results) > 1 {
		crossAnalysis = e.compareMethods(results)
	}

	summary := e.summarize(results)

	zap.L().Info("engine: valuation complete",
		zap.String("company_id", data.Company.ID),
		zap.String("primary_method", string(summary.PrimaryMethod)),
		zap.String("primary_value", summary.PrimaryValue.String()),
		zap.String("overall_confidence", string(summary.OverallConfidence)),
		zap.Int("methods_executed", len(results)),
		zap.Int("methods_skipped", len(skipped)),
	)

	return model.ValuationResult{
		CompanyID:           data.Company.ID,
		CompanyName:         data.Company.Name,
		ValuationDate:       e.now(),
		Summary:             summary,
		MethodResults:       results,
		SkippedMethods:      skipped,
		CrossMethodAnalysis: crossAnalysis,
		ConfigSnapshot:      e.cfg.Snapshot(),
	}, nil
}

// spread returns (max-min)/min across result values, zero when min is not
// positive.
func spread(results []model.MethodResult) decimal.Decimal {
	minV, maxV := valueRange(results)
	if !minV.IsPositive() {
		return decimal.Zero
	}
	return maxV.Sub(minV).Div(minV)
}

func valueRange(results []model.MethodResult) (decimal.Decimal, decimal.Decimal) {
	minV, maxV := results[0].Value, results[0].Value
	for _, r := range results[1:] {
		if r.Value.LessThan(minV) {
			minV = r.Value
		}
		if r.Value.GreaterThan(maxV) {
			maxV = r.Value
		}
	}
	return minV, maxV
}

// compareMethods builds the free-text cross-method narrative.
func (e *Engine) compareMethods(results []model.MethodResult) string {
	minV, maxV := valueRange(results)
	sp := spread(results)

	var minMethod, maxMethod model.MethodName
	for _, r := range results {
		if r.Value.Equal(minV) && minMethod == "" {
			minMethod = r.Method
		}
		if r.Value.Equal(maxV) && maxMethod == "" {
			maxMethod = r.Method
		}
	}

	parts := []string{
		fmt.Sprintf("Cross-method comparison: %d methods executed.", len(results)),
		fmt.Sprintf("Value range: %s (%s) to %s (%s).",
			mathx.FormatCurrency(minV), minMethod, mathx.FormatCurrency(maxV), maxMethod),
		fmt.Sprintf("Spread: %s%%.", mathx.Round(sp.Mul(decimal.NewFromInt(100)), 1)),
	}

	switch {
	case sp.GreaterThan(e.cfg.MediumConfidenceSpread):
		parts = append(parts, "WARNING: High spread between methods suggests significant uncertainty in valuation.")
	case sp.GreaterThan(e.cfg.HighConfidenceSpread):
		parts = append(parts, "Note: Moderate spread between methods. Consider weighting towards the higher-confidence method.")
	default:
		parts = append(parts, "Low spread indicates good agreement between methods.")
	}

	return strings.Join(parts, " ")
}

// summarize selects the primary method, derives the overall confidence, and
// builds the narrative plus the structured comparison table.
func (e *Engine) summarize(results []model.MethodResult) model.ValuationSummary {
	// Primary selection: best confidence wins; ties keep registration
	// order, never numeric value.
	ordered := make([]model.MethodResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Confidence.Rank() < ordered[j].Confidence.Rank()
	})
	primary := ordered[0]

	var rangeLow, rangeHigh *decimal.Decimal
	if len(results) > 1 {
		minV, maxV := valueRange(results)
		rangeLow, rangeHigh = &minV, &maxV
	}

	overall := e.overallConfidence(results)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Primary valuation: %s (via %s method, %s confidence).",
		mathx.FormatCurrency(primary.Value), primary.Method, primary.Confidence)
	if len(results) > 1 {
		var others []string
		for _, r := range results {
			if r.Method != primary.Method {
				others = append(others, fmt.Sprintf("%s: %s", r.Method, mathx.FormatCurrency(r.Value)))
			}
		}
		fmt.Fprintf(&sb, " Supporting methods: %s.", strings.Join(others, ", "))
	}

	comparison, selectionReason := e.methodComparison(results, primary)

	return model.ValuationSummary{
		PrimaryValue:      primary.Value,
		PrimaryMethod:     primary.Method,
		ValueRangeLow:     rangeLow,
		ValueRangeHigh:    rangeHigh,
		OverallConfidence: overall,
		SummaryText:       sb.String(),
		SelectionReason:   selectionReason,
		MethodComparison:  comparison,
	}
}

// overallConfidence reclassifies individual confidences against the
// cross-method spread. Disagreement between methods must never produce a
// false HIGH, so the rule table is deliberately conservative:
//
//	spread <= high threshold:   HIGH if any method was HIGH, else MEDIUM
//	spread <= medium threshold: LOW if any was LOW; MEDIUM otherwise
//	                            (including all-HIGH, downgraded for the
//	                            moderate disagreement)
//	spread >  medium threshold: LOW regardless
func (e *Engine) overallConfidence(results []model.MethodResult) model.Confidence {
	if len(results) == 1 {
		return results[0].Confidence
	}

	anyHigh, anyLow, allHigh := false, false, true
	for _, r := range results {
		switch r.Confidence {
		case model.ConfidenceHigh:
			anyHigh = true
		case model.ConfidenceLow:
			anyLow = true
			allHigh = false
		default:
			allHigh = false
		}
	}

	sp := spread(results)

	if sp.LessThanOrEqual(e.cfg.HighConfidenceSpread) {
		if anyHigh {
			return model.ConfidenceHigh
		}
		return model.ConfidenceMedium
	}

	if sp.LessThanOrEqual(e.cfg.MediumConfidenceSpread) {
		if allHigh {
			return model.ConfidenceMedium
		}
		if anyLow {
			return model.ConfidenceLow
		}
		return model.ConfidenceMedium
	}

	return model.ConfidenceLow
}

// methodComparison builds the structured comparison table, the ordered
// selection steps, and the plain-language selection reason.
func (e *Engine) methodComparison(results []model.MethodResult, primary model.MethodResult) (*model.MethodComparison, string) {
	items := make([]model.MethodComparisonItem, len(results))
	for i, r := range results {
		items[i] = model.MethodComparisonItem{
			Method:     r.Method,
			Value:      r.Value,
			Confidence: r.Confidence,
			IsPrimary:  r.Method == primary.Method,
		}
	}

	var spreadPct *decimal.Decimal
	var spreadWarning string
	if len(results) > 1 {
		minV, _ := valueRange(results)
		if minV.IsPositive() {
			pct := mathx.Round(spread(results).Mul(decimal.NewFromInt(100)), 1)
			spreadPct = &pct

			hundred := decimal.NewFromInt(100)
			switch {
			case pct.GreaterThan(e.cfg.MediumConfidenceSpread.Mul(hundred)):
				spreadWarning = fmt.Sprintf("%s%% spread between methods indicates significant uncertainty in valuation.", pct)
			case pct.GreaterThan(e.cfg.HighConfidenceSpread.Mul(hundred)):
				spreadWarning = fmt.Sprintf("%s%% spread between methods indicates moderate uncertainty.", pct)
			}
		}
	}

	steps := selectionSteps(results, primary)
	reason := e.selectionReason(results, primary, spreadPct)

	return &model.MethodComparison{
		Methods:        items,
		SpreadPercent:  spreadPct,
		SpreadWarning:  spreadWarning,
		SelectionSteps: steps,
	}, reason
}

// selectionSteps explains the pick step by step for UI/audit display.
func selectionSteps(results []model.MethodResult, primary model.MethodResult) []string {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Method.DisplayName()
	}

	details := make([]string, len(results))
	for i, r := range results {
		detail := fmt.Sprintf("%s: %s", r.Method.DisplayName(), strings.ToUpper(string(r.Confidence)))
		if len(r.Warnings) > 0 {
			w := r.Warnings[0]
			if len(w) > 50 {
				w = w[:50] + "..."
			}
			detail += fmt.Sprintf(" (%s)", w)
		}
		details[i] = detail
	}

	return []string{
		fmt.Sprintf("Ran all applicable valuation methods: %s", strings.Join(names, ", ")),
		fmt.Sprintf("Assessed confidence: %s", strings.Join(details, "; ")),
		fmt.Sprintf("Selected %s as primary (%s confidence)", primary.Method.DisplayName(), primary.Confidence),
	}
}

// selectionReason explains in plain language whether the primary won on
// confidence or on tie-break, and characterizes the spread.
func (e *Engine) selectionReason(results []model.MethodResult, primary model.MethodResult, spreadPct *decimal.Decimal) string {
	if len(results) == 1 {
		return fmt.Sprintf("Only one valuation method was applicable. %s was used with %s confidence.",
			primary.Method.DisplayName(), primary.Confidence)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "We used %d valuation methods. %s was selected as primary ",
		len(results), primary.Method.DisplayName())

	allSame := true
	var bestOther model.Confidence
	bestRank := 99
	for _, r := range results {
		if r.Confidence != primary.Confidence {
			allSame = false
		}
		if r.Method != primary.Method && r.Confidence.Rank() < bestRank {
			bestRank = r.Confidence.Rank()
			bestOther = r.Confidence
		}
	}

	if allSame {
		fmt.Fprintf(&sb, "because it provides more direct market evidence, even though all methods have %s confidence.",
			primary.Confidence)
	} else {
		fmt.Fprintf(&sb, "because it has higher confidence (%s vs %s).",
			capitalize(string(primary.Confidence)), capitalize(string(bestOther)))
	}

	if spreadPct != nil {
		hundred := decimal.NewFromInt(100)
		switch {
		case spreadPct.GreaterThan(e.cfg.MediumConfidenceSpread.Mul(hundred)):
			fmt.Fprintf(&sb, " The %s%% spread between methods indicates significant valuation uncertainty.", spreadPct)
		case spreadPct.GreaterThan(e.cfg.HighConfidenceSpread.Mul(hundred)):
			fmt.Fprintf(&sb, " The %s%% spread between methods indicates moderate uncertainty.", spreadPct)
		default:
			fmt.Fprintf(&sb, " The %s%% spread shows good agreement between methods.", spreadPct)
		}
	}

	return sb.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
