package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/AshwinKadaruDev/vc-audit/internal/mathx"
	"github.com/AshwinKadaruDev/vc-audit/internal/model"
)

// applyAdjustments multiplies the company-specific adjustment factors into
// value and appends a single audit step documenting each adjustment's
// individual impact and the combined effect. Both methods use this helper
// so their adjustment semantics and audit phrasing stay consistent.
//
// Returns the adjusted value, the combined factor, and one description
// string per adjustment.
func applyAdjustments(t *trail, value decimal.Decimal, adjustments []model.Adjustment) (decimal.Decimal, decimal.Decimal, []string) {
	one := decimal.NewFromInt(1)

	if len(adjustments) == 0 {
		t.add("Company-Specific Adjustments",
			map[string]any{
				"type":             "company_adjustments",
				"adjustments":      []map[string]any{},
				"total_adjustment": "0%",
			},
			"No company-specific adjustments applied.",
			fmt.Sprintf("Adjusted valuation: %s", mathx.FormatCurrency(value)),
		)
		return value, one, nil
	}

	combined := one
	items := make([]map[string]any, 0, len(adjustments))
	descriptions := make([]string, 0, len(adjustments))

	for _, adj := range adjustments {
		combined = combined.Mul(adj.Factor)
		impact := signedPercent(adj.Factor.Sub(one), 0)
		items = append(items, map[string]any{
			"name":   adj.Name,
			"impact": impact,
			"reason": adj.Reason,
		})
		descriptions = append(descriptions, fmt.Sprintf("%s (%s): %s", adj.Name, impact, adj.Reason))
	}

	adjusted := value.Mul(combined)
	total := signedPercent(combined.Sub(one), 1)

	t.add("Company-Specific Adjustments",
		map[string]any{
			"type":             "company_adjustments",
			"adjustments":      items,
			"total_adjustment": total,
		},
		fmt.Sprintf("Combined adjustment of %s applied to the valuation.", total),
		fmt.Sprintf("Adjusted valuation: %s", mathx.FormatCurrency(adjusted)),
	)

	return adjusted, combined, descriptions
}
