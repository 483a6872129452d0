package ports

import (
	"context"

	"github.com/smortex/r10k/internal/core/domain"
)

// Syncer brings one module's install path to its desired state.
//
//go:generate mockgen -source=syncer.go -destination=mocks/mock_syncer.go -package=mocks
type Syncer interface {
	// Sync never returns an error: failures are captured in the result.
	Sync(ctx context.Context, spec domain.ModuleSpec) domain.SyncResult
}
