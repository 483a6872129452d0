// Package ports defines the core interfaces for the application.
package ports

import "context"

// MaterializeRequest describes one working copy to produce from a mirror.
type MaterializeRequest struct {
	// MirrorDir is the shared mirror prepared by EnsureMirror.
	MirrorDir string
	// Location is the upstream location of the module.
	Location string
	// Ref is the desired branch, tag, commit, revision or version.
	Ref string
	// Dest is the install path.
	Dest string
	// Overwrite discards divergent local content at Dest.
	Overwrite bool
}

// Transport fetches and materializes modules of one source kind.
//
//go:generate mockgen -source=transport.go -destination=mocks/mock_transport.go -package=mocks
type Transport interface {
	// EnsureMirror creates the shared mirror for location in mirrorDir,
	// performing the initial fetch. It is called once per cache key per run.
	EnsureMirror(ctx context.Context, location, mirrorDir string) error

	// UpdateMirror brings an existing mirror up to date for ref.
	UpdateMirror(ctx context.Context, mirrorDir, ref string) error

	// Materialize produces the working copy at req.Dest from the mirror.
	// Transports that track local changes return domain.ErrLocalModification
	// when Dest diverges and req.Overwrite is false.
	Materialize(ctx context.Context, req MaterializeRequest) error
}

// RefResolver is implemented by transports whose moving refs, such as the
// forge's "latest", resolve to an immutable ref through the mirror.
type RefResolver interface {
	// ResolveRef returns the immutable ref that ref currently denotes.
	ResolveRef(ctx context.Context, mirrorDir, location, ref string) (string, error)
}
