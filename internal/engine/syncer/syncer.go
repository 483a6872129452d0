// Package syncer brings a single module's install path to its desired state.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports"
	"github.com/smortex/r10k/internal/engine/cache"
	"go.trai.ch/zerr"
)

// Transports maps every source kind to the transport serving it.
type Transports map[domain.SourceKind]ports.Transport

// Syncer implements ports.Syncer on top of a cache manager and the transports.
type Syncer struct {
	cache      *cache.Manager
	transports Transports
	store      ports.DeploymentStore
	hasher     ports.TreeHasher
	tracer     ports.Telemetry
	logger     ports.Logger
	cacheDir   string
	now        func() time.Time
}

var _ ports.Syncer = (*Syncer)(nil)

// NewSyncer creates a Syncer. Deployment records are kept under cacheDir.
func NewSyncer(
	manager *cache.Manager,
	transports Transports,
	store ports.DeploymentStore,
	hasher ports.TreeHasher,
	tracer ports.Telemetry,
	logger ports.Logger,
	cacheDir string,
) *Syncer {
	return &Syncer{
		cache:      manager,
		transports: transports,
		store:      store,
		hasher:     hasher,
		tracer:     tracer,
		logger:     logger,
		cacheDir:   cacheDir,
		now:        time.Now,
	}
}

// Sync fetches the module through its shared mirror and materializes it.
// Failures are returned in the result, never as a panic or a run-wide error.
func (s *Syncer) Sync(ctx context.Context, spec domain.ModuleSpec) domain.SyncResult {
	ctx, vertex := s.tracer.Record(ctx, spec.Name.String())

	changed, err := s.sync(ctx, spec, vertex)
	if err != nil {
		vertex.Log(domain.LogLevelError, err.Error())
		vertex.Complete(err)
		return domain.Failed(spec, zerr.With(zerr.Wrap(err, "failed to sync module"), "module", spec.Name.String()))
	}

	if !changed {
		vertex.Cached()
	}
	vertex.Complete(nil)
	return domain.Synced(spec, changed)
}

func (s *Syncer) sync(ctx context.Context, spec domain.ModuleSpec, vertex ports.Vertex) (bool, error) {
	if err := spec.Validate(); err != nil {
		return false, err
	}

	transport, err := s.transport(spec.Source.Kind)
	if err != nil {
		return false, err
	}

	handle, err := s.cache.Acquire(ctx, spec.CacheKey(), func(ctx context.Context, dir string) error {
		vertex.Log(domain.LogLevelInfo, "creating mirror of "+spec.Source.Location)
		return transport.EnsureMirror(ctx, spec.Source.Location, dir)
	})
	if err != nil {
		return false, err
	}
	defer handle.Release()

	if !handle.Fresh() {
		vertex.Log(domain.LogLevelInfo, "updating mirror of "+spec.Source.Location)
		if err := transport.UpdateMirror(ctx, handle.Dir(), spec.Source.Ref); err != nil {
			return false, errors.Join(domain.ErrSyncFailed, zerr.Wrap(err, domain.ErrMirrorFetchFailed.Error()))
		}
		handle.MarkFresh()
	}

	src, err := resolveSource(ctx, transport, handle.Dir(), spec.Source)
	if err != nil {
		return false, errors.Join(domain.ErrSyncFailed, err)
	}

	previous, current, err := s.checkDivergence(spec)
	if err != nil {
		return false, err
	}

	if src.Pinned() && current != "" && previous.Matches(src) && previous.ContentHash == current {
		return false, nil
	}

	before := current
	if spec.Source.Kind.TracksLocalChanges() {
		// An unreadable tree hashes to "" and counts as changed.
		before, _ = s.hasher.HashTree(spec.InstallPath)
	}

	vertex.Log(domain.LogLevelInfo, fmt.Sprintf("materializing %s at %s", spec.Name, spec.InstallPath))
	err = transport.Materialize(ctx, ports.MaterializeRequest{
		MirrorDir: handle.Dir(),
		Location:  spec.Source.Location,
		Ref:       src.Ref,
		Dest:      spec.InstallPath,
		Overwrite: spec.Options.Force,
	})
	if err != nil {
		if errors.Is(err, domain.ErrLocalModification) {
			return false, err
		}
		return false, errors.Join(domain.ErrSyncFailed, err)
	}

	after := s.record(spec, src)
	return before == "" || after == "" || before != after, nil
}

// resolveSource pins a moving ref through transports able to resolve it, so
// that "latest" is recorded and compared as the version it denotes.
func resolveSource(ctx context.Context, transport ports.Transport, mirrorDir string, src domain.Source) (domain.Source, error) {
	resolver, ok := transport.(ports.RefResolver)
	if !ok || src.Pinned() {
		return src, nil
	}
	ref, err := resolver.ResolveRef(ctx, mirrorDir, src.Location, src.Ref)
	if err != nil {
		return src, err
	}
	src.Ref = ref
	return src, nil
}

// checkDivergence compares the install path with the last recorded deployment
// for kinds that cannot report local changes themselves. It returns the
// previous record and the current content hash.
func (s *Syncer) checkDivergence(spec domain.ModuleSpec) (*domain.Deployment, string, error) {
	if spec.Source.Kind.TracksLocalChanges() {
		return nil, "", nil
	}

	previous, err := s.store.Get(s.cacheDir, spec.InstallPath)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("ignoring unreadable deployment record of %s: %v", spec.Name, err))
		previous = nil
	}

	current, err := s.hasher.HashTree(spec.InstallPath)
	if err != nil {
		return nil, "", errors.Join(domain.ErrSyncFailed, err)
	}

	if previous == nil || current == "" || previous.ContentHash == current {
		return previous, current, nil
	}

	if !spec.Options.Force {
		err := zerr.With(zerr.Wrap(domain.ErrLocalModification, spec.InstallPath), "module", spec.Name.String())
		return nil, "", err
	}

	s.logger.Warn(fmt.Sprintf("Overwriting local modifications to %s", spec.InstallPath))
	return nil, current, nil
}

// record stores what was deployed from src and returns the content hash of the
// install path. A failure only costs the next run its divergence check, so it
// is logged rather than failing the module.
func (s *Syncer) record(spec domain.ModuleSpec, src domain.Source) string {
	deployment := domain.Deployment{
		Module:      spec.Name.String(),
		InstallPath: spec.InstallPath,
		Kind:        src.Kind,
		Location:    src.Location,
		Ref:         src.Ref,
		DeployedAt:  s.now(),
	}

	hash, err := s.hasher.HashTree(spec.InstallPath)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("failed to hash %s: %v", spec.InstallPath, err))
		// Without a hash the next divergence check would misfire.
		if !spec.Source.Kind.TracksLocalChanges() {
			return ""
		}
	}
	deployment.ContentHash = hash

	if err := s.store.Put(s.cacheDir, deployment); err != nil {
		s.logger.Warn(fmt.Sprintf("failed to record deployment of %s: %v", spec.Name, err))
	}
	return hash
}

func (s *Syncer) transport(kind domain.SourceKind) (ports.Transport, error) {
	switch kind {
	case domain.SourceGit, domain.SourceForge, domain.SourceSVN, domain.SourceLocal:
		if t, ok := s.transports[kind]; ok && t != nil {
			return t, nil
		}
		return nil, zerr.With(zerr.Wrap(domain.ErrNoTransport, string(kind)), "kind", string(kind))
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownSourceKind, string(kind)), "kind", string(kind))
	}
}
