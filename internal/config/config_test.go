package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 100, cfg.RateLimit.Requests)

	vc, err := cfg.Valuation.Parse()
	require.NoError(t, err)
	assert.Equal(t, DefaultValuationConfig(), vc)
}

func TestValuationSettings_ParseErrors(t *testing.T) {
	s := ValuationSettings{DefaultBeta: "not-a-number", HighConfidenceSpread: "0.15", MediumConfidenceSpread: "0.30"}
	_, err := s.Parse()
	require.Error(t, err)

	s = ValuationSettings{DefaultBeta: "1.5", HighConfidenceSpread: "0.15", MediumConfidenceSpread: "0.30", MultiplePercentile: 101}
	_, err = s.Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple_percentile")
}

func TestValuationConfig_Snapshot(t *testing.T) {
	snap := DefaultValuationConfig().Snapshot()
	assert.Equal(t, "18", snap["max_round_age_months"])
	assert.Equal(t, "12", snap["stale_round_threshold_months"])
	assert.Equal(t, "1.5", snap["default_beta"])
	assert.Equal(t, "3", snap["min_comparables"])
	assert.Equal(t, "50", snap["multiple_percentile"])
	assert.Equal(t, "0.15", snap["high_confidence_spread"])
	assert.Equal(t, "0.3", snap["medium_confidence_spread"])
	assert.Equal(t, "NASDAQ", snap["market_index"])
}

func TestSnapshot_IsStable(t *testing.T) {
	cfg := DefaultValuationConfig()
	cfg.DefaultBeta = decimal.RequireFromString("2.25")
	assert.Equal(t, cfg.Snapshot(), cfg.Snapshot())
	assert.Equal(t, "2.25", cfg.Snapshot()["default_beta"])
}
