package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshwinKadaruDev/vc-audit/internal/model"
)

func TestGrouped(t *testing.T) {
	assert.Equal(t, "14,500.25", grouped(dec("14500.25")))
	assert.Equal(t, "999.00", grouped(dec("999")))
	assert.Equal(t, "1,000,000.00", grouped(dec("1000000")))
}

func TestSignedPercent(t *testing.T) {
	assert.Equal(t, "+12.5%", signedPercent(dec("0.125"), 1))
	assert.Equal(t, "-8.0%", signedPercent(dec("-0.08"), 1))
	assert.Equal(t, "+0%", signedPercent(dec("0"), 0))
}

func TestMonthsBetween(t *testing.T) {
	from := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 5, monthsBetween(from, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)))
	// Day of month does not matter, only the calendar month difference.
	assert.Equal(t, 5, monthsBetween(from, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, monthsBetween(from, from))
	assert.Equal(t, 12, monthsBetween(from, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))
}

func TestTitleSector(t *testing.T) {
	assert.Equal(t, "Enterprise Software", titleSector("enterprise_software"))
	assert.Equal(t, "Series A", titleSector("series_a"))
	assert.Equal(t, "Robotics", titleSector("robotics"))
}

func TestApplyAdjustments_NoneApplied(t *testing.T) {
	tr := &trail{}
	adjusted, combined, items := applyAdjustments(tr, dec("1000000"), nil)

	assert.True(t, adjusted.Equal(dec("1000000")))
	assert.True(t, combined.Equal(dec("1")))
	assert.Empty(t, items)

	require.Len(t, tr.steps, 1)
	assert.Equal(t, "No company-specific adjustments applied.", tr.steps[0].Calculation)
	assert.Equal(t, "Adjusted valuation: $1.00M", tr.steps[0].Result)
}

func TestApplyAdjustments_Compound(t *testing.T) {
	tr := &trail{}
	adjustments := []model.Adjustment{
		{Name: "team_strength", Factor: dec("1.2"), Reason: "strong team"},
		{Name: "concentration", Factor: dec("0.9"), Reason: "single large customer"},
	}
	adjusted, combined, items := applyAdjustments(tr, dec("1000000"), adjustments)

	// 1.2 * 0.9 = 1.08
	assert.True(t, combined.Equal(dec("1.08")))
	assert.True(t, adjusted.Equal(dec("1080000")))
	assert.Len(t, items, 2)

	require.Len(t, tr.steps, 1)
	assert.Equal(t, "Company-Specific Adjustments", tr.steps[0].Description)
}

func TestTrail_StepNumbering(t *testing.T) {
	tr := &trail{}
	tr.add("first", nil, "", "r1")
	tr.add("second", map[string]any{"k": "v"}, "calc", "r2")

	require.Len(t, tr.steps, 2)
	assert.Equal(t, 1, tr.steps[0].StepNumber)
	assert.Equal(t, 2, tr.steps[1].StepNumber)
	assert.NotNil(t, tr.steps[0].Inputs)
}
