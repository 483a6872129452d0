package local

import (
	"context"

	"github.com/grindlemire/graft"
)

// NodeID is the unique identifier for the local transport Graft node.
const NodeID graft.ID = "adapter.transport.local"

func init() {
	graft.Register(graft.Node[*Transport]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Transport, error) {
			return NewTransport(), nil
		},
	})
}
