// Package store persists reference data and saved valuation results, with
// postgres and sqlite backends behind one interface.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AshwinKadaruDev/vc-audit/internal/model"
)

// ValuationRecord is a saved valuation run.
type ValuationRecord struct {
	ID        string                `json:"id"`
	CompanyID string                `json:"company_id"`
	CreatedAt time.Time             `json:"created_at"`
	Result    model.ValuationResult `json:"result"`
}

// ValuationFilter specifies criteria for listing saved valuations.
type ValuationFilter struct {
	CompanyID string `json:"company_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Store is the persistence interface. Upserts are idempotent: loading the
// same seed twice leaves one copy.
type Store interface {
	GetCompany(ctx context.Context, id string) (model.CompanyData, error)
	ListCompanies(ctx context.Context) ([]model.CompanySummary, error)
	UpsertCompany(ctx context.Context, data model.CompanyData) error

	GetComparables(ctx context.Context, sector string) (model.ComparableSet, error)
	ListSectors(ctx context.Context) ([]string, error)
	UpsertComparableSet(ctx context.Context, set model.ComparableSet) error

	// GetIndex returns the series sorted by date ascending.
	GetIndex(ctx context.Context, name string) ([]model.MarketIndex, error)
	GetIndexSource(ctx context.Context, name string) (model.DataSource, error)
	ListIndices(ctx context.Context) ([]string, error)
	UpsertIndex(ctx context.Context, name string, source model.DataSource, points []model.MarketIndex) error

	SaveValuation(ctx context.Context, result model.ValuationResult) (ValuationRecord, error)
	GetValuation(ctx context.Context, id string) (ValuationRecord, error)
	ListValuations(ctx context.Context, filter ValuationFilter) ([]ValuationRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

// NotFoundError reports an absent row. The loader translates it before it
// reaches the engine or the API.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
