package valuation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshwinKadaruDev/vc-audit/internal/config"
	"github.com/AshwinKadaruDev/vc-audit/internal/loader"
	"github.com/AshwinKadaruDev/vc-audit/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// fixedNow pins "today" so round-age arithmetic is deterministic.
var fixedNow = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func testClock() time.Time { return fixedNow }

func roundCompany(roundDate time.Time) model.CompanyData {
	return model.CompanyData{
		Company: model.Company{
			ID:     "acme",
			Name:   "Acme Robotics",
			Sector: "robotics",
			Stage:  model.StageSeriesA,
		},
		LastRound: &model.LastRound{
			Date:          roundDate,
			ValuationPre:  dec("10000000"),
			ValuationPost: dec("12500000"),
			AmountRaised:  dec("2500000"),
			LeadInvestor:  "Sequoia",
		},
	}
}

// nasdaqLoader seeds index points at the round date and today. Values 100
// and 110 give a clean 10% market return.
func nasdaqLoader(t *testing.T, roundDate time.Time, atRound, atNow string) *loader.Memory {
	t.Helper()
	mem := loader.NewMemory()
	mem.AddIndex("NASDAQ", model.DataSource{Name: "Market Data Feed", RetrievedAt: fixedNow},
		[]model.MarketIndex{
			{Name: "NASDAQ", Date: roundDate, Value: dec(atRound)},
			{Name: "NASDAQ", Date: fixedNow, Value: dec(atNow)},
		})
	return mem
}

func TestLastRound_MarketAdjustedValue(t *testing.T) {
	roundDate := fixedNow.AddDate(0, -5, 0)
	data := roundCompany(roundDate)
	cfg := config.DefaultValuationConfig()
	mem := nasdaqLoader(t, roundDate, "100", "110")

	m := NewLastRound(data, cfg, mem, testClock)
	require.Empty(t, m.CheckPrerequisites(context.Background()))

	res, err := m.Execute(context.Background())
	require.NoError(t, err)

	// 12.5M anchor * (1 + 1.5*0.10) market factor = 14,375,000
	assert.True(t, res.Value.Equal(dec("14375000")), "got %s", res.Value)
	assert.Equal(t, model.MethodLastRound, res.Method)
	assert.Equal(t, model.ConfidenceHigh, res.Confidence)
	assert.Empty(t, res.Warnings)

	require.Len(t, res.AuditTrail, 4)
	assert.Equal(t, 1, res.AuditTrail[0].StepNumber)
	assert.Equal(t, "Starting Point: Last Funding Round", res.AuditTrail[0].Description)
	assert.Equal(t, "Market Adjustment: How Has the Market Moved?", res.AuditTrail[1].Description)
	assert.Equal(t, "Company-Specific Adjustments", res.AuditTrail[2].Description)
	assert.Equal(t, "Valuation Formula", res.AuditTrail[3].Description)

	// Index citation must travel with the market step.
	src, ok := res.AuditTrail[1].Inputs["data_source"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Market Data Feed", src["name"])
}

func TestLastRound_AdjustmentsCompound(t *testing.T) {
	roundDate := fixedNow.AddDate(0, -5, 0)
	data := roundCompany(roundDate)
	data.Adjustments = []model.Adjustment{
		{Name: "team_strength", Factor: dec("1.2"), Reason: "exceptional founding team"},
		{Name: "market_headwind", Factor: dec("0.9"), Reason: "sector multiple compression"},
	}
	cfg := config.DefaultValuationConfig()
	mem := nasdaqLoader(t, roundDate, "100", "110")

	m := NewLastRound(data, cfg, mem, testClock)
	res, err := m.Execute(context.Background())
	require.NoError(t, err)

	// 14,375,000 * 1.2 * 0.9 = 15,525,000
	assert.True(t, res.Value.Equal(dec("15525000")), "got %s", res.Value)
}

func TestLastRound_MarketDecline(t *testing.T) {
	roundDate := fixedNow.AddDate(0, -5, 0)
	data := roundCompany(roundDate)
	cfg := config.DefaultValuationConfig()
	mem := nasdaqLoader(t, roundDate, "100", "90")

	m := NewLastRound(data, cfg, mem, testClock)
	res, err := m.Execute(context.Background())
	require.NoError(t, err)

	// 12.5M * (1 + 1.5*(-0.10)) = 10,625,000
	assert.True(t, res.Value.Equal(dec("10625000")), "got %s", res.Value)
}

func TestLastRound_ConfidenceByAge(t *testing.T) {
	tests := []struct {
		months    int
		want      model.Confidence
		wantStale bool
	}{
		{5, model.ConfidenceHigh, false},
		{6, model.ConfidenceHigh, false},
		{10, model.ConfidenceMedium, false},
		{12, model.ConfidenceMedium, false},
		{13, model.ConfidenceLow, true},
		{18, model.ConfidenceLow, true},
	}
	for _, tt := range tests {
		roundDate := fixedNow.AddDate(0, -tt.months, 0)
		data := roundCompany(roundDate)
		cfg := config.DefaultValuationConfig()
		mem := nasdaqLoader(t, roundDate, "100", "110")

		m := NewLastRound(data, cfg, mem, testClock)
		require.Empty(t, m.CheckPrerequisites(context.Background()), "age %d", tt.months)

		res, err := m.Execute(context.Background())
		require.NoError(t, err, "age %d", tt.months)
		assert.Equal(t, tt.want, res.Confidence, "age %d", tt.months)
		if tt.wantStale {
			require.NotEmpty(t, res.Warnings, "age %d", tt.months)
			assert.Contains(t, res.Warnings[0], "months old", "age %d", tt.months)
		} else {
			assert.Empty(t, res.Warnings, "age %d", tt.months)
		}
	}
}

func TestLastRound_SkipNoRound(t *testing.T) {
	data := roundCompany(fixedNow)
	data.LastRound = nil

	m := NewLastRound(data, config.DefaultValuationConfig(), loader.NewMemory(), testClock)
	reason := m.CheckPrerequisites(context.Background())
	assert.Equal(t, "No last funding round data available", reason)
}

func TestLastRound_SkipTooOld(t *testing.T) {
	roundDate := fixedNow.AddDate(0, -20, 0)
	data := roundCompany(roundDate)

	m := NewLastRound(data, config.DefaultValuationConfig(), loader.NewMemory(), testClock)
	reason := m.CheckPrerequisites(context.Background())
	assert.Contains(t, reason, "too old")
	assert.Contains(t, reason, "20 months")
	assert.Contains(t, reason, "18 months")
}

func TestLastRound_SkipMissingIndex(t *testing.T) {
	roundDate := fixedNow.AddDate(0, -5, 0)
	data := roundCompany(roundDate)

	m := NewLastRound(data, config.DefaultValuationConfig(), loader.NewMemory(), testClock)
	reason := m.CheckPrerequisites(context.Background())
	assert.Contains(t, reason, "market index")
}

func TestLastRound_ZeroIndexValue(t *testing.T) {
	roundDate := fixedNow.AddDate(0, -5, 0)
	data := roundCompany(roundDate)
	mem := nasdaqLoader(t, roundDate, "0", "110")

	m := NewLastRound(data, config.DefaultValuationConfig(), mem, testClock)
	_, err := m.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero")
}

func TestLastRound_RunTemplateSkips(t *testing.T) {
	data := roundCompany(fixedNow)
	data.LastRound = nil

	m := NewLastRound(data, config.DefaultValuationConfig(), loader.NewMemory(), testClock)
	outcome, err := Run(context.Background(), m)
	require.NoError(t, err)
	require.Nil(t, outcome.Result)
	require.NotNil(t, outcome.Skipped)
	assert.Equal(t, model.MethodLastRound, outcome.Skipped.Method)
	assert.Equal(t, "No last funding round data available", outcome.Skipped.Reason)
}

func TestNearestIndexPoint_EarlierDateWinsTies(t *testing.T) {
	before := model.MarketIndex{Name: "NASDAQ", Date: fixedNow.AddDate(0, 0, -2), Value: dec("100")}
	after := model.MarketIndex{Name: "NASDAQ", Date: fixedNow.AddDate(0, 0, 2), Value: dec("105")}
	target := fixedNow

	got := nearestIndexPoint([]model.MarketIndex{before, after}, target)
	assert.True(t, got.Value.Equal(dec("100")))
}
