// Package loader defines the data-access collaborator consumed by the
// valuation methods, plus its store-backed and in-memory implementations.
// The engine treats a successful load as fully reliable data; retries for
// transient I/O live here, never inside method logic.
package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/AshwinKadaruDev/vc-audit/internal/model"
)

// DataLoader provides the reference data valuation methods read. Lookups
// must be deterministic for a given input; implementations may cache.
type DataLoader interface {
	LoadCompany(ctx context.Context, id string) (model.CompanyData, error)
	ListCompanies(ctx context.Context) ([]model.CompanySummary, error)

	LoadComparables(ctx context.Context, sector string) (model.ComparableSet, error)
	ListSectors(ctx context.Context) ([]string, error)

	// GetIndex returns the named index series sorted by date ascending.
	GetIndex(ctx context.Context, name string) ([]model.MarketIndex, error)
	GetIndexSource(ctx context.Context, name string) (model.DataSource, error)
	ListIndices(ctx context.Context) ([]string, error)
}

// NotFoundError reports a company, sector, or index absent from the data
// source. Maps to a 404 at the API boundary.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
