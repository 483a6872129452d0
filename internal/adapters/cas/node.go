package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/smortex/r10k/internal/core/ports"
)

// NodeID is the unique identifier for the deployment store Graft node.
const NodeID graft.ID = "adapter.deployment_store"

func init() {
	graft.Register(graft.Node[ports.DeploymentStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.DeploymentStore, error) {
			return NewStore(), nil
		},
	})
}
