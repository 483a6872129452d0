package ports

import (
	"context"

	"github.com/smortex/r10k/internal/core/domain"
)

// ManifestLoader loads the Puppetfile a run installs.
//
//go:generate mockgen -source=manifest.go -destination=mocks/mock_manifest.go -package=mocks
type ManifestLoader interface {
	// Load reads the manifest at settings.ManifestPath() and resolves every
	// install path and managed directory against settings.
	Load(ctx context.Context, settings domain.Settings) (*domain.Manifest, error)
}

// SettingsLoader loads settings from the optional settings file and the environment.
type SettingsLoader interface {
	// Load returns the settings found for root. configPath overrides the
	// default <root>/r10k.yaml. Fields not set anywhere are left zero.
	Load(root, configPath string) (domain.Settings, error)
}
