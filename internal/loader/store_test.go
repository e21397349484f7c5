package loader

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshwinKadaruDev/vc-audit/internal/model"
	"github.com/AshwinKadaruDev/vc-audit/internal/resilience"
	"github.com/AshwinKadaruDev/vc-audit/internal/store"
)

// stubStore counts reads and can fail the first N calls to exercise the
// retry and caching behavior of StoreLoader.
type stubStore struct {
	company     model.CompanyData
	comps       model.ComparableSet
	points      []model.MarketIndex
	source      model.DataSource
	failGets    int
	companyGets int
	compsGets   int
	indexGets   int
}

func (s *stubStore) failNext() error {
	if s.failGets > 0 {
		s.failGets--
		return resilience.NewTransientError(assertError("database is locked"))
	}
	return nil
}

type assertError string

func (e assertError) Error() string { return string(e) }

func (s *stubStore) GetCompany(ctx context.Context, id string) (model.CompanyData, error) {
	s.companyGets++
	if err := s.failNext(); err != nil {
		return model.CompanyData{}, err
	}
	if id != s.company.Company.ID {
		return model.CompanyData{}, &store.NotFoundError{Entity: "company", Key: id}
	}
	return s.company, nil
}

func (s *stubStore) ListCompanies(ctx context.Context) ([]model.CompanySummary, error) {
	return nil, nil
}

func (s *stubStore) UpsertCompany(ctx context.Context, data model.CompanyData) error { return nil }

func (s *stubStore) GetComparables(ctx context.Context, sector string) (model.ComparableSet, error) {
	s.compsGets++
	if sector != s.comps.Sector {
		return model.ComparableSet{}, &store.NotFoundError{Entity: "comparables", Key: sector}
	}
	return s.comps, nil
}

func (s *stubStore) ListSectors(ctx context.Context) ([]string, error) { return nil, nil }

func (s *stubStore) UpsertComparableSet(ctx context.Context, set model.ComparableSet) error {
	return nil
}

func (s *stubStore) GetIndex(ctx context.Context, name string) ([]model.MarketIndex, error) {
	s.indexGets++
	if len(s.points) == 0 {
		return nil, &store.NotFoundError{Entity: "market index", Key: name}
	}
	return s.points, nil
}

func (s *stubStore) GetIndexSource(ctx context.Context, name string) (model.DataSource, error) {
	return s.source, nil
}

func (s *stubStore) ListIndices(ctx context.Context) ([]string, error) { return nil, nil }

func (s *stubStore) UpsertIndex(ctx context.Context, name string, source model.DataSource, points []model.MarketIndex) error {
	return nil
}

func (s *stubStore) SaveValuation(ctx context.Context, result model.ValuationResult) (store.ValuationRecord, error) {
	return store.ValuationRecord{}, nil
}

func (s *stubStore) GetValuation(ctx context.Context, id string) (store.ValuationRecord, error) {
	return store.ValuationRecord{}, nil
}

func (s *stubStore) ListValuations(ctx context.Context, filter store.ValuationFilter) ([]store.ValuationRecord, error) {
	return nil, nil
}

func (s *stubStore) Migrate(ctx context.Context) error { return nil }

func (s *stubStore) Close() error { return nil }

func validStubCompany() model.CompanyData {
	revenue := decimal.RequireFromString("10000000")
	return model.CompanyData{
		Company: model.Company{
			ID:     "acme",
			Name:   "Acme Robotics",
			Sector: "robotics",
			Stage:  model.StageSeriesA,
		},
		Financials: model.Financials{RevenueTTM: &revenue},
	}
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestStoreLoader_LoadCompany(t *testing.T) {
	st := &stubStore{company: validStubCompany()}
	l := NewStoreLoader(st, WithRetry(fastRetry()))

	got, err := l.LoadCompany(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Robotics", got.Company.Name)
}

func TestStoreLoader_LoadCompany_RetriesTransient(t *testing.T) {
	st := &stubStore{company: validStubCompany(), failGets: 2}
	l := NewStoreLoader(st, WithRetry(fastRetry()))

	_, err := l.LoadCompany(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 3, st.companyGets)
}

func TestStoreLoader_LoadCompany_TranslatesNotFound(t *testing.T) {
	st := &stubStore{company: validStubCompany()}
	l := NewStoreLoader(st, WithRetry(fastRetry()))

	_, err := l.LoadCompany(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "company", nf.Resource)
}

func TestStoreLoader_LoadCompany_RejectsInvalidStoredData(t *testing.T) {
	bad := validStubCompany()
	bad.Company.Stage = "ipo"
	st := &stubStore{company: bad}
	l := NewStoreLoader(st, WithRetry(fastRetry()))

	_, err := l.LoadCompany(context.Background(), "acme")
	require.Error(t, err)

	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestStoreLoader_ComparablesAreCached(t *testing.T) {
	st := &stubStore{comps: model.ComparableSet{Sector: "robotics"}}
	l := NewStoreLoader(st, WithRetry(fastRetry()))
	ctx := context.Background()

	_, err := l.LoadComparables(ctx, "robotics")
	require.NoError(t, err)
	_, err = l.LoadComparables(ctx, "robotics")
	require.NoError(t, err)
	assert.Equal(t, 1, st.compsGets)

	l.Invalidate()
	_, err = l.LoadComparables(ctx, "robotics")
	require.NoError(t, err)
	assert.Equal(t, 2, st.compsGets)
}

func TestStoreLoader_IndexIsCached(t *testing.T) {
	st := &stubStore{
		points: []model.MarketIndex{{Name: "NASDAQ", Date: time.Now(), Value: decimal.NewFromInt(100)}},
		source: model.DataSource{Name: "Market Data Feed", RetrievedAt: time.Now()},
	}
	l := NewStoreLoader(st, WithRetry(fastRetry()))
	ctx := context.Background()

	_, err := l.GetIndex(ctx, "NASDAQ")
	require.NoError(t, err)
	_, err = l.GetIndex(ctx, "NASDAQ")
	require.NoError(t, err)
	assert.Equal(t, 1, st.indexGets)
}

func TestStoreLoader_MissingComparablesNotCached(t *testing.T) {
	st := &stubStore{comps: model.ComparableSet{Sector: "robotics"}}
	l := NewStoreLoader(st, WithRetry(fastRetry()))

	_, err := l.LoadComparables(context.Background(), "biotech")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}
