// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "github.com/smortex/r10k/internal/adapters/cas"
	_ "github.com/smortex/r10k/internal/adapters/config"
	_ "github.com/smortex/r10k/internal/adapters/fs"
	_ "github.com/smortex/r10k/internal/adapters/git"
	_ "github.com/smortex/r10k/internal/adapters/local"
	_ "github.com/smortex/r10k/internal/adapters/logger"
	_ "github.com/smortex/r10k/internal/adapters/shell"
	_ "github.com/smortex/r10k/internal/adapters/svn"
	_ "github.com/smortex/r10k/internal/adapters/telemetry/progrock"
	// Register app and engine nodes.
	_ "github.com/smortex/r10k/internal/app"
	_ "github.com/smortex/r10k/internal/engine/purge"
)
