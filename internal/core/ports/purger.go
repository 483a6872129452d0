package ports

import (
	"context"

	"github.com/smortex/r10k/internal/core/domain"
)

// Purger removes content under managed directories that is no longer desired.
//
//go:generate mockgen -source=purger.go -destination=mocks/mock_purger.go -package=mocks
type Purger interface {
	// Purge reconciles the managed directories of req. Per-path failures are
	// listed in the report and joined into the returned error.
	Purge(ctx context.Context, req domain.PurgeRequest) (*domain.PurgeReport, error)
}
