package valuation

import (
	"context"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/AshwinKadaruDev/vc-audit/internal/config"
	"github.com/AshwinKadaruDev/vc-audit/internal/loader"
	"github.com/AshwinKadaruDev/vc-audit/internal/mathx"
	"github.com/AshwinKadaruDev/vc-audit/internal/model"
)

// Coefficient-of-variation thresholds on peer multiples driving the
// comparables confidence rating.
var (
	cvHighThreshold   = decimal.RequireFromString("0.3")
	cvMediumThreshold = decimal.RequireFromString("0.5")
)

// stageDiscounts is the illiquidity discount applied to the public multiple
// by company stage. Earlier stages carry a heavier discount.
var stageDiscounts = map[model.Stage]decimal.Decimal{
	model.StageSeed:    decimal.RequireFromString("0.35"),
	model.StageSeriesA: decimal.RequireFromString("0.30"),
	model.StageSeriesB: decimal.RequireFromString("0.25"),
	model.StageSeriesC: decimal.RequireFromString("0.20"),
	model.StageGrowth:  decimal.RequireFromString("0.15"),
}

var defaultStageDiscount = decimal.RequireFromString("0.25")

// compsMethod values a company by applying a discounted peer-group revenue
// multiple to trailing revenue, then company-specific adjustments.
type compsMethod struct {
	data model.CompanyData
	cfg  config.ValuationConfig
	dl   loader.DataLoader
	now  Clock
}

// NewComparables builds the comparables method bound to one company's data.
func NewComparables(data model.CompanyData, cfg config.ValuationConfig, dl loader.DataLoader, now Clock) Method {
	return &compsMethod{data: data, cfg: cfg, dl: dl, now: now}
}

func (m *compsMethod) Name() model.MethodName { return model.MethodComparables }

func (m *compsMethod) CheckPrerequisites(ctx context.Context) string {
	revenue := m.data.Financials.RevenueTTM
	if revenue == nil {
		return "Company has no revenue data (pre-revenue)"
	}
	if !revenue.IsPositive() {
		return "Company revenue must be positive"
	}

	sector := m.data.Company.Sector
	comps, err := m.dl.LoadComparables(ctx, sector)
	if err != nil {
		return fmt.Sprintf("Cannot load comparables for sector %q: %v", sector, err)
	}
	if len(comps.Companies) < m.cfg.MinComparables {
		return fmt.Sprintf("Insufficient comparables for sector %q. Found %d, need %d",
			sector, len(comps.Companies), m.cfg.MinComparables)
	}

	return ""
}

func (m *compsMethod) Execute(ctx context.Context) (model.MethodResult, error) {
	t := &trail{}
	revenue := *m.data.Financials.RevenueTTM
	sector := m.data.Company.Sector

	// Step 1: target company metrics as context.
	t.add("Target Company Financial Metrics",
		map[string]any{
			"type":           "target_metrics",
			"annual_revenue": mathx.FormatCurrency(revenue),
			"revenue_growth": optionalPercent(m.data.Financials.RevenueGrowthYoY),
			"gross_margin":   optionalPercent(m.data.Financials.GrossMargin),
			"sector":         titleSector(sector),
		},
		"",
		fmt.Sprintf("Annual revenue of %s in the %s sector",
			mathx.FormatCurrency(revenue), titleSector(sector)),
	)

	// Step 2: the full peer list with the as-of date and source citation.
	comps, err := m.dl.LoadComparables(ctx, sector)
	if err != nil {
		return model.MethodResult{}, eris.Wrapf(err, "comparables: load sector %s", sector)
	}

	peers := make([]map[string]any, 0, len(comps.Companies))
	for _, c := range comps.Companies {
		growth := "N/A"
		if c.RevenueGrowthYoY != nil {
			growth = percent(*c.RevenueGrowthYoY, 0)
		}
		peers = append(peers, map[string]any{
			"ticker":           c.Ticker,
			"name":             c.Name,
			"revenue":          mathx.FormatCurrency(c.RevenueTTM),
			"market_cap":       mathx.FormatCurrency(c.MarketCap),
			"revenue_multiple": mathx.Round(c.EVRevenueMultiple, 1).String() + "x",
			"growth":           growth,
		})
	}
	t.add("Comparable Public Companies",
		map[string]any{
			"type":        "comparable_companies",
			"sector":      titleSector(sector),
			"data_as_of":  displayDate(comps.AsOfDate),
			"companies":   peers,
			"data_source": citation(comps.Source, "Public comparable data"),
		},
		"",
		fmt.Sprintf("Found %d comparable public companies", len(comps.Companies)),
	)

	// Step 3: EV/revenue multiple statistics across peers.
	multiples := make([]decimal.Decimal, len(comps.Companies))
	for i, c := range comps.Companies {
		multiples[i] = c.EVRevenueMultiple
	}

	medianMultiple, err := mathx.Median(multiples)
	if err != nil {
		return model.MethodResult{}, eris.Wrap(err, "comparables: median")
	}
	p25, err := mathx.Percentile(multiples, 25)
	if err != nil {
		return model.MethodResult{}, eris.Wrap(err, "comparables: p25")
	}
	p75, err := mathx.Percentile(multiples, 75)
	if err != nil {
		return model.MethodResult{}, eris.Wrap(err, "comparables: p75")
	}
	minMultiple, maxMultiple := minMax(multiples)

	t.add("Revenue Multiple Analysis",
		map[string]any{
			"type":          "multiple_statistics",
			"lowest":        mathx.Round(minMultiple, 1).String() + "x",
			"percentile_25": mathx.Round(p25, 1).String() + "x",
			"median":        mathx.Round(medianMultiple, 1).String() + "x",
			"percentile_75": mathx.Round(p75, 1).String() + "x",
			"highest":       mathx.Round(maxMultiple, 1).String() + "x",
		},
		fmt.Sprintf(
			"The median revenue multiple among comparable companies is %sx, ranging from %sx to %sx.",
			mathx.Round(medianMultiple, 1), mathx.Round(minMultiple, 1), mathx.Round(maxMultiple, 1)),
		fmt.Sprintf("Using the %s multiple of %sx",
			m.selectionLabel(), mathx.Round(m.selectMultiple(multiples, medianMultiple), 1)),
	)

	// Step 4: multiple selection and illiquidity discount by stage.
	selected := m.selectMultiple(multiples, medianMultiple)
	discount := stageDiscount(m.data.Company.Stage)
	adjustedMultiple := selected.Mul(decimal.NewFromInt(1).Sub(discount))
	stageName := titleSector(string(m.data.Company.Stage))

	t.add("Private Company Discount",
		map[string]any{
			"type":              "private_discount",
			"public_multiple":   mathx.Round(selected, 1).String() + "x",
			"discount_percent":  percent(discount, 0),
			"company_stage":     stageName,
			"adjusted_multiple": mathx.Round(adjustedMultiple, 2).String() + "x",
		},
		fmt.Sprintf(
			"Starting with the %sx public multiple, we apply a %s illiquidity discount for a %s company.",
			mathx.Round(selected, 1), percent(discount, 0), stageName),
		fmt.Sprintf("Adjusted multiple: %sx", mathx.Round(adjustedMultiple, 2)),
	)

	// Step 5: base value.
	baseValue := revenue.Mul(adjustedMultiple)
	t.add("Base Valuation Calculation",
		map[string]any{
			"type":     "base_calculation",
			"revenue":  mathx.FormatCurrency(revenue),
			"multiple": mathx.Round(adjustedMultiple, 2).String() + "x",
		},
		fmt.Sprintf("%s revenue × %sx multiple",
			mathx.FormatCurrency(revenue), mathx.Round(adjustedMultiple, 2)),
		fmt.Sprintf("Base value: %s", mathx.FormatCurrency(baseValue)),
	)

	// Step 6: company-specific adjustments.
	finalValue, combinedFactor, _ := applyAdjustments(t, baseValue, m.data.Adjustments)

	// Step 7: restate the full derivation.
	t.add("Valuation Formula",
		map[string]any{
			"type":                       "formula_summary",
			"revenue":                    mathx.FormatCurrency(revenue),
			"adjusted_multiple":          mathx.Round(adjustedMultiple, 2).String() + "x",
			"combined_adjustment_factor": mathx.Round(combinedFactor, 4).String(),
		},
		fmt.Sprintf(
			"final = revenue (%s) × adjusted multiple %sx (%s %s multiple less %s illiquidity discount) × combined adjustment factor %s",
			mathx.FormatCurrency(revenue), mathx.Round(adjustedMultiple, 2), m.selectionLabel(),
			mathx.Round(selected, 1), percent(discount, 0), mathx.Round(combinedFactor, 4)),
		fmt.Sprintf("Final valuation: %s", mathx.FormatCurrency(finalValue)),
	)

	confidence, reason := multiplesConfidence(multiples, minMultiple, maxMultiple)

	return model.MethodResult{
		Method:           m.Name(),
		Value:            mathx.Round(finalValue, 0),
		Confidence:       confidence,
		ConfidenceReason: reason,
		AuditTrail:       t.steps,
		Warnings:         t.warnings,
	}, nil
}

// selectMultiple picks the configured percentile of the peer multiples,
// using the already-computed median when the percentile is 50.
func (m *compsMethod) selectMultiple(multiples []decimal.Decimal, median decimal.Decimal) decimal.Decimal {
	if m.cfg.MultiplePercentile == 50 {
		return median
	}
	selected, err := mathx.Percentile(multiples, m.cfg.MultiplePercentile)
	if err != nil {
		// Prerequisites guarantee a non-empty peer list and config
		// validation bounds the percentile, so this cannot fail.
		return median
	}
	return selected
}

func (m *compsMethod) selectionLabel() string {
	if m.cfg.MultiplePercentile == 50 {
		return "median"
	}
	return fmt.Sprintf("p%d", m.cfg.MultiplePercentile)
}

func stageDiscount(stage model.Stage) decimal.Decimal {
	if d, ok := stageDiscounts[stage]; ok {
		return d
	}
	return defaultStageDiscount
}

// multiplesConfidence classifies dispersion of the peer multiples by
// coefficient of variation: population standard deviation over mean.
func multiplesConfidence(multiples []decimal.Decimal, minMultiple, maxMultiple decimal.Decimal) (model.Confidence, string) {
	if len(multiples) == 0 {
		return model.ConfidenceLow, "No peer multiples available; dispersion undefined."
	}

	n := decimal.NewFromInt(int64(len(multiples)))
	sum := decimal.Zero
	for _, v := range multiples {
		sum = sum.Add(v)
	}
	mean := sum.Div(n)
	if !mean.IsPositive() {
		return model.ConfidenceLow, "Peer multiples have a non-positive mean; dispersion undefined."
	}

	variance := decimal.Zero
	for _, v := range multiples {
		d := v.Sub(mean)
		variance = variance.Add(d.Mul(d))
	}
	variance = variance.Div(n)

	// Square root has no closed decimal form; the float conversion is only
	// used for classification and display, never for monetary output.
	varFloat, _ := variance.Float64()
	cv := decimal.NewFromFloat(math.Sqrt(varFloat)).Div(mean)

	rangeDesc := fmt.Sprintf("multiples range %sx to %sx",
		mathx.Round(minMultiple, 1), mathx.Round(maxMultiple, 1))

	switch {
	case cv.LessThan(cvHighThreshold):
		return model.ConfidenceHigh, fmt.Sprintf(
			"Coefficient of variation %s is below the %s high-confidence threshold; %s.",
			mathx.Round(cv, 2), cvHighThreshold, rangeDesc)
	case cv.LessThan(cvMediumThreshold):
		return model.ConfidenceMedium, fmt.Sprintf(
			"Coefficient of variation %s is below the %s medium-confidence threshold; %s.",
			mathx.Round(cv, 2), cvMediumThreshold, rangeDesc)
	default:
		return model.ConfidenceLow, fmt.Sprintf(
			"Coefficient of variation %s is at or above the %s threshold; %s.",
			mathx.Round(cv, 2), cvMediumThreshold, rangeDesc)
	}
}

func minMax(values []decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		if v.LessThan(minV) {
			minV = v
		}
		if v.GreaterThan(maxV) {
			maxV = v
		}
	}
	return minV, maxV
}

func optionalPercent(v *decimal.Decimal) string {
	if v == nil {
		return "Not available"
	}
	return percent(*v, 0)
}
