package ports

import "github.com/smortex/r10k/internal/core/domain"

// DeploymentStore records what was last deployed at each install path.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type DeploymentStore interface {
	// Get retrieves the deployment recorded for installPath under cacheDir.
	// Returns nil, nil if not found.
	Get(cacheDir, installPath string) (*domain.Deployment, error)

	// Put stores the deployment under cacheDir.
	Put(cacheDir string, deployment domain.Deployment) error
}
