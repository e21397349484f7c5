package loader

import (
	"context"
	"errors"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/AshwinKadaruDev/vc-audit/internal/model"
	"github.com/AshwinKadaruDev/vc-audit/internal/resilience"
	"github.com/AshwinKadaruDev/vc-audit/internal/store"
)

// StoreLoader is the store-backed DataLoader. Reference data (comparable
// sets and index series) is cached after first load; company data is read
// fresh every time and validated before it reaches a valuation method.
type StoreLoader struct {
	st    store.Store
	retry resilience.RetryConfig

	mu      sync.RWMutex
	comps   map[string]model.ComparableSet
	indices map[string][]model.MarketIndex
	sources map[string]model.DataSource
}

// StoreLoaderOption customizes loader construction.
type StoreLoaderOption func(*StoreLoader)

// WithRetry overrides the retry policy for store reads.
func WithRetry(cfg resilience.RetryConfig) StoreLoaderOption {
	return func(l *StoreLoader) { l.retry = cfg }
}

// NewStoreLoader wraps a Store as a DataLoader.
func NewStoreLoader(st store.Store, opts ...StoreLoaderOption) *StoreLoader {
	l := &StoreLoader{
		st:      st,
		retry:   resilience.DefaultRetryConfig(),
		comps:   make(map[string]model.ComparableSet),
		indices: make(map[string][]model.MarketIndex),
		sources: make(map[string]model.DataSource),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// translate converts store row absence into the loader's not-found type so
// callers never import the store package to classify errors.
func translate(err error) error {
	var nf *store.NotFoundError
	if errors.As(err, &nf) {
		return &NotFoundError{Resource: nf.Entity, Key: nf.Key}
	}
	return err
}

func (l *StoreLoader) LoadCompany(ctx context.Context, id string) (model.CompanyData, error) {
	data, err := resilience.DoVal(ctx, l.retry, func(ctx context.Context) (model.CompanyData, error) {
		return l.st.GetCompany(ctx, id)
	})
	if err != nil {
		return model.CompanyData{}, translate(err)
	}
	if err := data.Validate(); err != nil {
		return model.CompanyData{}, eris.Wrapf(err, "loader: stored company %s", id)
	}
	return data, nil
}

func (l *StoreLoader) ListCompanies(ctx context.Context) ([]model.CompanySummary, error) {
	out, err := resilience.DoVal(ctx, l.retry, func(ctx context.Context) ([]model.CompanySummary, error) {
		return l.st.ListCompanies(ctx)
	})
	return out, translate(err)
}

func (l *StoreLoader) LoadComparables(ctx context.Context, sector string) (model.ComparableSet, error) {
	l.mu.RLock()
	set, ok := l.comps[sector]
	l.mu.RUnlock()
	if ok {
		return set, nil
	}

	set, err := resilience.DoVal(ctx, l.retry, func(ctx context.Context) (model.ComparableSet, error) {
		return l.st.GetComparables(ctx, sector)
	})
	if err != nil {
		return model.ComparableSet{}, translate(err)
	}

	l.mu.Lock()
	l.comps[sector] = set
	l.mu.Unlock()
	return set, nil
}

func (l *StoreLoader) ListSectors(ctx context.Context) ([]string, error) {
	out, err := resilience.DoVal(ctx, l.retry, func(ctx context.Context) ([]string, error) {
		return l.st.ListSectors(ctx)
	})
	return out, translate(err)
}

func (l *StoreLoader) GetIndex(ctx context.Context, name string) ([]model.MarketIndex, error) {
	l.mu.RLock()
	points, ok := l.indices[name]
	l.mu.RUnlock()
	if ok {
		return points, nil
	}

	points, err := resilience.DoVal(ctx, l.retry, func(ctx context.Context) ([]model.MarketIndex, error) {
		return l.st.GetIndex(ctx, name)
	})
	if err != nil {
		return nil, translate(err)
	}

	l.mu.Lock()
	l.indices[name] = points
	l.mu.Unlock()
	return points, nil
}

func (l *StoreLoader) GetIndexSource(ctx context.Context, name string) (model.DataSource, error) {
	l.mu.RLock()
	source, ok := l.sources[name]
	l.mu.RUnlock()
	if ok {
		return source, nil
	}

	source, err := resilience.DoVal(ctx, l.retry, func(ctx context.Context) (model.DataSource, error) {
		return l.st.GetIndexSource(ctx, name)
	})
	if err != nil {
		return model.DataSource{}, translate(err)
	}

	l.mu.Lock()
	l.sources[name] = source
	l.mu.Unlock()
	return source, nil
}

func (l *StoreLoader) ListIndices(ctx context.Context) ([]string, error) {
	out, err := resilience.DoVal(ctx, l.retry, func(ctx context.Context) ([]string, error) {
		return l.st.ListIndices(ctx)
	})
	return out, translate(err)
}

// Invalidate drops all cached reference data. Called after reseeding.
func (l *StoreLoader) Invalidate() {
	l.mu.Lock()
	l.comps = make(map[string]model.ComparableSet)
	l.indices = make(map[string][]model.MarketIndex)
	l.sources = make(map[string]model.DataSource)
	l.mu.Unlock()
}
