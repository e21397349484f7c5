package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshwinKadaruDev/vc-audit/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

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

func testCompanyData(id string) model.CompanyData {
	roundDate := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	return model.CompanyData{
		Company: model.Company{
			ID:     id,
			Name:   "Acme Robotics",
			Sector: "robotics",
			Stage:  model.StageSeriesA,
		},
		Financials: model.Financials{
			RevenueTTM:  decPtr("10000000"),
			GrossMargin: decPtr("0.72"),
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

func TestSQLite_Company_UpsertAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertCompany(ctx, testCompanyData("acme")))

	got, err := st.GetCompany(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Robotics", got.Company.Name)
	assert.Equal(t, model.StageSeriesA, got.Company.Stage)
	require.NotNil(t, got.Financials.RevenueTTM)
	assert.True(t, got.Financials.RevenueTTM.Equal(dec("10000000")))
	require.NotNil(t, got.LastRound)
	assert.True(t, got.LastRound.ValuationPost.Equal(dec("12500000")))
}

func TestSQLite_Company_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetCompany(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSQLite_Company_UpsertOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	data := testCompanyData("acme")
	require.NoError(t, st.UpsertCompany(ctx, data))

	data.Company.Name = "Acme Robotics Inc"
	require.NoError(t, st.UpsertCompany(ctx, data))

	got, err := st.GetCompany(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Robotics Inc", got.Company.Name)

	all, err := st.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLite_ListCompanies_SortedByName(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	b := testCompanyData("b-corp")
	b.Company.Name = "Beta Corp"
	a := testCompanyData("a-corp")
	a.Company.Name = "Alpha Corp"
	require.NoError(t, st.UpsertCompany(ctx, b))
	require.NoError(t, st.UpsertCompany(ctx, a))

	all, err := st.ListCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alpha Corp", all[0].Name)
	assert.Equal(t, "Beta Corp", all[1].Name)
}

func TestSQLite_Comparables_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	set := model.ComparableSet{
		Sector:   "robotics",
		AsOfDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Companies: []model.ComparableCompany{
			{
				Ticker:            "ROBO",
				Name:              "RoboCorp",
				Sector:            "robotics",
				RevenueTTM:        dec("500000000"),
				MarketCap:         dec("2500000000"),
				EVRevenueMultiple: dec("5.2"),
			},
		},
		Source: model.DataSource{Name: "Public Filings", RetrievedAt: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, st.UpsertComparableSet(ctx, set))

	got, err := st.GetComparables(ctx, "robotics")
	require.NoError(t, err)
	require.Len(t, got.Companies, 1)
	assert.Equal(t, "ROBO", got.Companies[0].Ticker)
	assert.True(t, got.Companies[0].EVRevenueMultiple.Equal(dec("5.2")))
	assert.Equal(t, "Public Filings", got.Source.Name)

	sectors, err := st.ListSectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"robotics"}, sectors)
}

func TestSQLite_Comparables_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetComparables(context.Background(), "biotech")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSQLite_Index_UpsertAndGetSorted(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	source := model.DataSource{Name: "Market Data Feed", RetrievedAt: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)}
	points := []model.MarketIndex{
		{Name: "NASDAQ", Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Value: dec("105.5")},
		{Name: "NASDAQ", Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Value: dec("100")},
	}
	require.NoError(t, st.UpsertIndex(ctx, "NASDAQ", source, points))

	got, err := st.GetIndex(ctx, "NASDAQ")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Sorted ascending regardless of insert order.
	assert.True(t, got[0].Date.Before(got[1].Date))
	assert.True(t, got[0].Value.Equal(dec("100")))
	assert.True(t, got[1].Value.Equal(dec("105.5")))

	gotSource, err := st.GetIndexSource(ctx, "NASDAQ")
	require.NoError(t, err)
	assert.Equal(t, "Market Data Feed", gotSource.Name)

	names, err := st.ListIndices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"NASDAQ"}, names)
}

func TestSQLite_Index_UpsertIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	source := model.DataSource{Name: "Market Data Feed", RetrievedAt: time.Now().UTC()}
	points := []model.MarketIndex{
		{Name: "NASDAQ", Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Value: dec("100")},
	}
	require.NoError(t, st.UpsertIndex(ctx, "NASDAQ", source, points))

	points[0].Value = dec("101")
	require.NoError(t, st.UpsertIndex(ctx, "NASDAQ", source, points))

	got, err := st.GetIndex(ctx, "NASDAQ")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Value.Equal(dec("101")))
}

func TestSQLite_Index_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetIndex(context.Background(), "SP500")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSQLite_Valuation_SaveAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	result := model.ValuationResult{
		CompanyID:     "acme",
		CompanyName:   "Acme Robotics",
		ValuationDate: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Summary: model.ValuationSummary{
			PrimaryValue:      dec("14375000"),
			PrimaryMethod:     model.MethodLastRound,
			OverallConfidence: model.ConfidenceHigh,
		},
	}

	rec, err := st.SaveValuation(ctx, result)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "acme", rec.CompanyID)

	got, err := st.GetValuation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.True(t, got.Result.Summary.PrimaryValue.Equal(dec("14375000")))
	assert.Equal(t, model.ConfidenceHigh, got.Result.Summary.OverallConfidence)
}

func TestSQLite_Valuation_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetValuation(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSQLite_ListValuations_FilterByCompany(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, companyID := range []string{"acme", "acme", "other"} {
		_, err := st.SaveValuation(ctx, model.ValuationResult{
			CompanyID: companyID,
			Summary: model.ValuationSummary{
				PrimaryValue:      dec("1000000"),
				PrimaryMethod:     model.MethodComparables,
				OverallConfidence: model.ConfidenceMedium,
			},
		})
		require.NoError(t, err)
	}

	acme, err := st.ListValuations(ctx, ValuationFilter{CompanyID: "acme"})
	require.NoError(t, err)
	assert.Len(t, acme, 2)

	all, err := st.ListValuations(ctx, ValuationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := st.ListValuations(ctx, ValuationFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
