package svn

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/smortex/r10k/internal/adapters/shell"
)

// NodeID is the unique identifier for the svn transport Graft node.
const NodeID graft.ID = "adapter.transport.svn"

func init() {
	graft.Register(graft.Node[*Transport]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{shell.NodeID},
		Run: func(ctx context.Context) (*Transport, error) {
			runner, err := graft.Dep[*shell.Runner](ctx)
			if err != nil {
				return nil, err
			}
			return NewTransport(runner), nil
		},
	})
}
