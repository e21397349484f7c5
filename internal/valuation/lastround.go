package valuation

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/AshwinKadaruDev/vc-audit/internal/config"
	"github.com/AshwinKadaruDev/vc-audit/internal/loader"
	"github.com/AshwinKadaruDev/vc-audit/internal/mathx"
	"github.com/AshwinKadaruDev/vc-audit/internal/model"
)

// highConfidenceAgeMonths is the round age at or below which the last-round
// anchor is considered fresh enough for high confidence.
const highConfidenceAgeMonths = 6

// lastRoundMethod values a company by anchoring on its most recent funding
// round, adjusting for public-market movement since that round, then for
// company-specific factors.
type lastRoundMethod struct {
	data model.CompanyData
	cfg  config.ValuationConfig
	dl   loader.DataLoader
	now  Clock
}

// NewLastRound builds the last-round method bound to one company's data.
func NewLastRound(data model.CompanyData, cfg config.ValuationConfig, dl loader.DataLoader, now Clock) Method {
	return &lastRoundMethod{data: data, cfg: cfg, dl: dl, now: now}
}

func (m *lastRoundMethod) Name() model.MethodName { return model.MethodLastRound }

func (m *lastRoundMethod) CheckPrerequisites(ctx context.Context) string {
	if m.data.LastRound == nil {
		return "No last funding round data available"
	}

	monthsOld := monthsBetween(m.data.LastRound.Date, m.now())
	if monthsOld > m.cfg.MaxRoundAgeMonths {
		return fmt.Sprintf("Last round is too old (%d months). Maximum allowed: %d months",
			monthsOld, m.cfg.MaxRoundAgeMonths)
	}

	points, err := m.dl.GetIndex(ctx, m.cfg.MarketIndex)
	if err != nil {
		return fmt.Sprintf("Cannot load market index data: %v", err)
	}
	if len(points) == 0 {
		return fmt.Sprintf("No %s index data available", m.cfg.MarketIndex)
	}

	return ""
}

func (m *lastRoundMethod) Execute(ctx context.Context) (model.MethodResult, error) {
	round := m.data.LastRound
	t := &trail{}
	today := m.now()

	// Step 1: anchor on the post-money valuation.
	anchor := round.ValuationPost
	t.add("Starting Point: Last Funding Round",
		map[string]any{
			"type":                 "funding_round",
			"round_date":           displayDate(round.Date),
			"pre_money_valuation":  mathx.FormatCurrency(round.ValuationPre),
			"amount_raised":        mathx.FormatCurrency(round.AmountRaised),
			"post_money_valuation": mathx.FormatCurrency(round.ValuationPost),
			"lead_investor":        leadInvestor(round.LeadInvestor),
		},
		"",
		fmt.Sprintf("Starting valuation: %s", mathx.FormatCurrency(anchor)),
	)

	monthsOld := monthsBetween(round.Date, today)
	if monthsOld > m.cfg.StaleRoundThresholdMonths {
		t.warn(fmt.Sprintf(
			"This funding round is %d months old. Market conditions may have changed significantly since then.",
			monthsOld))
	}

	// Step 2: market adjustment from the reference index.
	points, err := m.dl.GetIndex(ctx, m.cfg.MarketIndex)
	if err != nil {
		return model.MethodResult{}, eris.Wrapf(err, "last_round: load index %s", m.cfg.MarketIndex)
	}
	indexSource, err := m.dl.GetIndexSource(ctx, m.cfg.MarketIndex)
	if err != nil {
		return model.MethodResult{}, eris.Wrapf(err, "last_round: load index source %s", m.cfg.MarketIndex)
	}

	roundPoint := nearestIndexPoint(points, round.Date)
	todayPoint := nearestIndexPoint(points, today)
	if roundPoint.Value.IsZero() {
		return model.MethodResult{}, eris.Errorf(
			"last_round: index %s value at %s is zero", m.cfg.MarketIndex, roundPoint.Date.Format("2006-01-02"))
	}

	marketReturn := todayPoint.Value.Sub(roundPoint.Value).Div(roundPoint.Value)
	direction, symbol := describeReturn(marketReturn)

	beta := m.cfg.DefaultBeta
	adjustedReturn := beta.Mul(marketReturn)
	marketFactor := decimal.NewFromInt(1).Add(adjustedReturn)
	marketAdjusted := anchor.Mul(marketFactor)

	t.add("Market Adjustment: How Has the Market Moved?",
		map[string]any{
			"type":                    "market_adjustment",
			"index_name":              m.cfg.MarketIndex,
			"round_date":              displayDate(round.Date),
			"round_index_value":       grouped(roundPoint.Value),
			"today_date":              displayDate(today),
			"today_index_value":       grouped(todayPoint.Value),
			"market_change_percent":   symbol + percent(marketReturn.Abs(), 1),
			"market_direction":        direction,
			"volatility_factor":       beta.String(),
			"adjusted_change_percent": symbol + percent(adjustedReturn.Abs(), 1),
			"data_source":             citation(indexSource, "Market index data"),
		},
		fmt.Sprintf(
			"The %s %s by %s since the funding round. Applying the %sx volatility factor, we adjust the valuation by %s.",
			m.cfg.MarketIndex, direction, percent(marketReturn.Abs(), 1), beta, symbol+percent(adjustedReturn.Abs(), 1)),
		fmt.Sprintf("Market-adjusted valuation: %s", mathx.FormatCurrency(marketAdjusted)),
	)

	// Step 3: company-specific adjustments.
	finalValue, combinedFactor, _ := applyAdjustments(t, marketAdjusted, m.data.Adjustments)

	// Step 4: restate the full derivation for human review.
	t.add("Valuation Formula",
		map[string]any{
			"type":                       "formula_summary",
			"anchor_value":               mathx.FormatCurrency(anchor),
			"market_adjustment_factor":   mathx.Round(marketFactor, 4).String(),
			"combined_adjustment_factor": mathx.Round(combinedFactor, 4).String(),
		},
		fmt.Sprintf(
			"final = anchor (%s post-money) × market adjustment factor %s (%s return × %s beta) × combined adjustment factor %s",
			mathx.FormatCurrency(anchor), mathx.Round(marketFactor, 4), signedPercent(marketReturn, 1),
			beta, mathx.Round(combinedFactor, 4)),
		fmt.Sprintf("Final valuation: %s", mathx.FormatCurrency(finalValue)),
	)

	confidence, reason := m.confidence(monthsOld)

	return model.MethodResult{
		Method:           m.Name(),
		Value:            mathx.Round(finalValue, 0),
		Confidence:       confidence,
		ConfidenceReason: reason,
		AuditTrail:       t.steps,
		Warnings:         t.warnings,
	}, nil
}

// confidence rates the anchor's freshness: high within 6 months, medium
// within the staleness threshold, low beyond it.
func (m *lastRoundMethod) confidence(monthsOld int) (model.Confidence, string) {
	switch {
	case monthsOld <= highConfidenceAgeMonths:
		return model.ConfidenceHigh, fmt.Sprintf(
			"Round is %d months old, within the %d-month high-confidence window.",
			monthsOld, highConfidenceAgeMonths)
	case monthsOld <= m.cfg.StaleRoundThresholdMonths:
		return model.ConfidenceMedium, fmt.Sprintf(
			"Round is %d months old, older than %d months but within the %d-month staleness threshold.",
			monthsOld, highConfidenceAgeMonths, m.cfg.StaleRoundThresholdMonths)
	default:
		return model.ConfidenceLow, fmt.Sprintf(
			"Round is %d months old, beyond the %d-month staleness threshold.",
			monthsOld, m.cfg.StaleRoundThresholdMonths)
	}
}

func describeReturn(marketReturn decimal.Decimal) (direction, symbol string) {
	switch marketReturn.Sign() {
	case 1:
		return "increased", "+"
	case -1:
		return "decreased", "-"
	default:
		return "remained flat", ""
	}
}

func leadInvestor(name string) string {
	if name == "" {
		return "Not disclosed"
	}
	return name
}
