package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshwinKadaruDev/vc-audit/internal/model"
)

const seedCompaniesYAML = `
- id: acme
  name: Acme Robotics
  sector: robotics
  stage: series_a
  financials:
    revenue_ttm: "10000000"
    gross_margin: "0.72"
  last_round:
    date: "2025-01-15"
    valuation_pre: "10000000"
    valuation_post: "12500000"
    amount_raised: "2500000"
    lead_investor: Sequoia
  adjustments:
    - name: team_strength
      factor: "1.2"
      reason: exceptional founding team
`

const seedComparablesYAML = `
- sector: robotics
  as_of_date: "2025-06-01"
  source:
    name: Public Filings
    retrieved_at: "2025-06-10"
  companies:
    - ticker: ROBO
      name: RoboCorp
      revenue_ttm: "500000000"
      market_cap: "2500000000"
      ev_revenue_multiple: "5.2"
      revenue_growth_yoy: "0.25"
`

const seedIndicesYAML = `
- name: NASDAQ
  source:
    name: Market Data Feed
    retrieved_at: "2025-06-10"
  points:
    - date: "2025-01-01"
      value: "100"
    - date: "2025-06-01"
      value: "110.5"
`

func writeSeedDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestSeedFromDir_LoadsAllFixtures(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	dir := writeSeedDir(t, map[string]string{
		seedCompaniesFile:   seedCompaniesYAML,
		seedComparablesFile: seedComparablesYAML,
		seedIndicesFile:     seedIndicesYAML,
	})
	require.NoError(t, SeedFromDir(ctx, st, dir))

	company, err := st.GetCompany(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Robotics", company.Company.Name)
	require.NotNil(t, company.LastRound)
	assert.True(t, company.LastRound.ValuationPost.Equal(dec("12500000")))
	require.Len(t, company.Adjustments, 1)
	assert.True(t, company.Adjustments[0].Factor.Equal(dec("1.2")))

	set, err := st.GetComparables(ctx, "robotics")
	require.NoError(t, err)
	require.Len(t, set.Companies, 1)
	assert.Equal(t, "Public Filings", set.Source.Name)
	assert.Equal(t, "Public Filings", set.Companies[0].SourceName)
	require.NotNil(t, set.Companies[0].RevenueGrowthYoY)

	points, err := st.GetIndex(ctx, "NASDAQ")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.True(t, points[1].Value.Equal(dec("110.5")))
}

func TestSeedFromDir_MissingFilesAreSkipped(t *testing.T) {
	st := newTestSQLiteStore(t)
	dir := writeSeedDir(t, map[string]string{seedIndicesFile: seedIndicesYAML})

	require.NoError(t, SeedFromDir(context.Background(), st, dir))

	names, err := st.ListIndices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"NASDAQ"}, names)

	companies, err := st.ListCompanies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, companies)
}

func TestSeedFromDir_InvalidCompanyAborts(t *testing.T) {
	st := newTestSQLiteStore(t)

	// Post-money does not equal pre + raised.
	bad := `
- id: broken
  name: Broken Co
  sector: robotics
  stage: series_a
  last_round:
    date: "2025-01-15"
    valuation_pre: "10000000"
    valuation_post: "99000000"
    amount_raised: "2500000"
`
	dir := writeSeedDir(t, map[string]string{seedCompaniesFile: bad})

	err := SeedFromDir(context.Background(), st, dir)
	require.Error(t, err)

	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSeedFromDir_BadDecimalFails(t *testing.T) {
	st := newTestSQLiteStore(t)

	bad := `
- id: acme
  name: Acme
  sector: robotics
  stage: seed
  financials:
    revenue_ttm: "not-a-number"
`
	dir := writeSeedDir(t, map[string]string{seedCompaniesFile: bad})

	err := SeedFromDir(context.Background(), st, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "revenue_ttm")
}
