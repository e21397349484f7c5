package loader

import (
	"context"
	"sort"

	"github.com/AshwinKadaruDev/vc-audit/internal/model"
)

// Memory is an in-memory DataLoader. It backs tests and one-off custom
// valuations that never touch storage.
type Memory struct {
	companies    map[string]model.CompanyData
	comparables  map[string]model.ComparableSet
	indices      map[string][]model.MarketIndex
	indexSources map[string]model.DataSource
}

// NewMemory creates an empty in-memory loader.
func NewMemory() *Memory {
	return &Memory{
		companies:    make(map[string]model.CompanyData),
		comparables:  make(map[string]model.ComparableSet),
		indices:      make(map[string][]model.MarketIndex),
		indexSources: make(map[string]model.DataSource),
	}
}

// AddCompany registers a company.
func (m *Memory) AddCompany(data model.CompanyData) {
	m.companies[data.Company.ID] = data
}

// AddComparables registers a comparable set for its sector.
func (m *Memory) AddComparables(set model.ComparableSet) {
	m.comparables[set.Sector] = set
}

// AddIndex registers an index series and its source. Points are stored
// sorted by date ascending.
func (m *Memory) AddIndex(name string, source model.DataSource, points []model.MarketIndex) {
	sorted := make([]model.MarketIndex, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	m.indices[name] = sorted
	m.indexSources[name] = source
}

func (m *Memory) LoadCompany(_ context.Context, id string) (model.CompanyData, error) {
	data, ok := m.companies[id]
	if !ok {
		return model.CompanyData{}, &NotFoundError{Resource: "company", Key: id}
	}
	return data, nil
}

func (m *Memory) ListCompanies(_ context.Context) ([]model.CompanySummary, error) {
	out := make([]model.CompanySummary, 0, len(m.companies))
	for _, data := range m.companies {
		out = append(out, model.CompanySummary{
			ID:     data.Company.ID,
			Name:   data.Company.Name,
			Sector: data.Company.Sector,
			Stage:  data.Company.Stage,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) LoadComparables(_ context.Context, sector string) (model.ComparableSet, error) {
	set, ok := m.comparables[sector]
	if !ok {
		return model.ComparableSet{}, &NotFoundError{Resource: "comparables", Key: sector}
	}
	return set, nil
}

func (m *Memory) ListSectors(_ context.Context) ([]string, error) {
	out := make([]string, 0, len(m.comparables))
	for sector := range m.comparables {
		out = append(out, sector)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) GetIndex(_ context.Context, name string) ([]model.MarketIndex, error) {
	points, ok := m.indices[name]
	if !ok {
		return nil, &NotFoundError{Resource: "market index", Key: name}
	}
	return points, nil
}

func (m *Memory) GetIndexSource(_ context.Context, name string) (model.DataSource, error) {
	source, ok := m.indexSources[name]
	if !ok {
		return model.DataSource{}, &NotFoundError{Resource: "market index", Key: name}
	}
	return source, nil
}

func (m *Memory) ListIndices(_ context.Context) ([]string, error) {
	out := make([]string, 0, len(m.indices))
	for name := range m.indices {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}
