package config

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// ValuationSettings is the viper-friendly raw form of the valuation
// parameters. Decimal-valued parameters are strings so no binary float ever
// touches them on the way in.
type ValuationSettings struct {
	MaxRoundAgeMonths         int    `yaml:"max_round_age_months" mapstructure:"max_round_age_months"`
	StaleRoundThresholdMonths int    `yaml:"stale_round_threshold_months" mapstructure:"stale_round_threshold_months"`
	DefaultBeta               string `yaml:"default_beta" mapstructure:"default_beta"`
	MinComparables            int    `yaml:"min_comparables" mapstructure:"min_comparables"`
	MultiplePercentile        int    `yaml:"multiple_percentile" mapstructure:"multiple_percentile"`
	HighConfidenceSpread      string `yaml:"high_confidence_spread" mapstructure:"high_confidence_spread"`
	MediumConfidenceSpread    string `yaml:"medium_confidence_spread" mapstructure:"medium_confidence_spread"`
	MarketIndex               string `yaml:"market_index" mapstructure:"market_index"`
}

// ValuationConfig is the immutable parameter set consumed by the valuation
// engine. It is frozen for the lifetime of one engine; changing parameters
// means constructing a new engine, which keeps every result's snapshot
// internally consistent.
type ValuationConfig struct {
	MaxRoundAgeMonths         int
	StaleRoundThresholdMonths int
	DefaultBeta               decimal.Decimal
	MinComparables            int
	MultiplePercentile        int
	HighConfidenceSpread      decimal.Decimal
	MediumConfidenceSpread    decimal.Decimal
	MarketIndex               string
}

// Parse converts raw settings into a ValuationConfig, validating the
// decimal-valued parameters.
func (s ValuationSettings) Parse() (ValuationConfig, error) {
	beta, err := decimal.NewFromString(s.DefaultBeta)
	if err != nil {
		return ValuationConfig{}, eris.Wrapf(err, "config: parse default_beta %q", s.DefaultBeta)
	}
	high, err := decimal.NewFromString(s.HighConfidenceSpread)
	if err != nil {
		return ValuationConfig{}, eris.Wrapf(err, "config: parse high_confidence_spread %q", s.HighConfidenceSpread)
	}
	medium, err := decimal.NewFromString(s.MediumConfidenceSpread)
	if err != nil {
		return ValuationConfig{}, eris.Wrapf(err, "config: parse medium_confidence_spread %q", s.MediumConfidenceSpread)
	}
	if s.MultiplePercentile < 0 || s.MultiplePercentile > 100 {
		return ValuationConfig{}, eris.Errorf("config: multiple_percentile must be between 0 and 100, got %d", s.MultiplePercentile)
	}

	return ValuationConfig{
		MaxRoundAgeMonths:         s.MaxRoundAgeMonths,
		StaleRoundThresholdMonths: s.StaleRoundThresholdMonths,
		DefaultBeta:               beta,
		MinComparables:            s.MinComparables,
		MultiplePercentile:        s.MultiplePercentile,
		HighConfidenceSpread:      high,
		MediumConfidenceSpread:    medium,
		MarketIndex:               s.MarketIndex,
	}, nil
}

// DefaultValuationConfig returns the stock parameter set.
func DefaultValuationConfig() ValuationConfig {
	return ValuationConfig{
		MaxRoundAgeMonths:         18,
		StaleRoundThresholdMonths: 12,
		DefaultBeta:               decimal.RequireFromString("1.5"),
		MinComparables:            3,
		MultiplePercentile:        50,
		HighConfidenceSpread:      decimal.RequireFromString("0.15"),
		MediumConfidenceSpread:    decimal.RequireFromString("0.30"),
		MarketIndex:               "NASDAQ",
	}
}

// Snapshot renders every tunable parameter as an exact string for embedding
// in a ValuationResult.
func (c ValuationConfig) Snapshot() map[string]string {
	return map[string]string{
		"max_round_age_months":         strconv.Itoa(c.MaxRoundAgeMonths),
		"stale_round_threshold_months": strconv.Itoa(c.StaleRoundThresholdMonths),
		"default_beta":                 c.DefaultBeta.String(),
		"min_comparables":              strconv.Itoa(c.MinComparables),
		"multiple_percentile":          strconv.Itoa(c.MultiplePercentile),
		"high_confidence_spread":       c.HighConfidenceSpread.String(),
		"medium_confidence_spread":     c.MediumConfidenceSpread.String(),
		"market_index":                 c.MarketIndex,
	}
}
