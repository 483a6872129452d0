package purge

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/smortex/r10k/internal/adapters/logger" //nolint:depguard // Wired in engine wiring
	"github.com/smortex/r10k/internal/core/ports"
)

// NodeID is the unique identifier for the purge engine Graft node.
const NodeID graft.ID = "engine.purge"

func init() {
	graft.Register(graft.Node[ports.Purger]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.Purger, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewCleaner(log), nil
		},
	})
}
