package app

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/smortex/r10k/internal/adapters/cas"                //nolint:depguard // Wired in app layer
	"github.com/smortex/r10k/internal/adapters/config"             //nolint:depguard // Wired in app layer
	"github.com/smortex/r10k/internal/adapters/forge"              //nolint:depguard // Wired in app layer
	"github.com/smortex/r10k/internal/adapters/fs"                 //nolint:depguard // Wired in app layer
	"github.com/smortex/r10k/internal/adapters/git"                //nolint:depguard // Wired in app layer
	"github.com/smortex/r10k/internal/adapters/local"              //nolint:depguard // Wired in app layer
	"github.com/smortex/r10k/internal/adapters/logger"             //nolint:depguard // Wired in app layer
	"github.com/smortex/r10k/internal/adapters/svn"                //nolint:depguard // Wired in app layer
	"github.com/smortex/r10k/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in app layer
	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports"
	"github.com/smortex/r10k/internal/engine/purge"
	"github.com/smortex/r10k/internal/engine/syncer"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components contains the initialized application components the CLI layer needs.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.SettingsNodeID,
			config.NodeID,
			logger.NodeID,
			progrock.NodeID,
			cas.NodeID,
			fs.HasherNodeID,
			purge.NodeID,
			git.NodeID,
			svn.NodeID,
			local.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: app, Logger: log}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	settingsLoader, err := graft.Dep[ports.SettingsLoader](ctx)
	if err != nil {
		return nil, err
	}
	manifestLoader, err := graft.Dep[ports.ManifestLoader](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	telemetry, err := graft.Dep[ports.Telemetry](ctx)
	if err != nil {
		return nil, err
	}
	store, err := graft.Dep[ports.DeploymentStore](ctx)
	if err != nil {
		return nil, err
	}
	hasher, err := graft.Dep[ports.TreeHasher](ctx)
	if err != nil {
		return nil, err
	}
	purger, err := graft.Dep[ports.Purger](ctx)
	if err != nil {
		return nil, err
	}
	gitTransport, err := graft.Dep[*git.Transport](ctx)
	if err != nil {
		return nil, err
	}
	svnTransport, err := graft.Dep[*svn.Transport](ctx)
	if err != nil {
		return nil, err
	}
	localTransport, err := graft.Dep[*local.Transport](ctx)
	if err != nil {
		return nil, err
	}

	transports := syncer.Transports{
		domain.SourceGit:   gitTransport,
		domain.SourceSVN:   svnTransport,
		domain.SourceLocal: localTransport,
	}
	newForge := func(baseURL string) ports.Transport {
		return forge.NewTransport(baseURL, nil)
	}

	return New(settingsLoader, manifestLoader, log, telemetry, store, hasher, purger, transports, newForge), nil
}
