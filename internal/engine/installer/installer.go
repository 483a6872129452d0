// Package installer drives the synchronizer over a whole manifest and
// reconciles the managed directories afterwards.
package installer

import (
	"context"
	"errors"
	"slices"

	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Installer syncs every module of a manifest exactly once, then purges.
type Installer struct {
	syncer   ports.Syncer
	purger   ports.Purger
	poolSize int
}

// NewInstaller creates an Installer running up to poolSize cache-key groups at once.
func NewInstaller(syncer ports.Syncer, purger ports.Purger, poolSize int) *Installer {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Installer{
		syncer:   syncer,
		purger:   purger,
		poolSize: poolSize,
	}
}

type indexedResult struct {
	index  int
	result domain.SyncResult
}

// Install syncs the manifest's modules and then purges the managed directories.
// Modules sharing a cache key run sequentially; distinct keys run concurrently.
// A failing module never stops the others, and purge only starts once every
// module has been attempted.
func (i *Installer) Install(ctx context.Context, manifest *domain.Manifest) *domain.InstallReport {
	groups := manifest.ModulesByCacheKey()
	positions := modulePositions(manifest.Modules)
	collected := make([][]indexedResult, len(groups))

	var g errgroup.Group
	g.SetLimit(i.poolSize)

	for gi, group := range groups {
		indices := make([]int, len(group.Modules))
		for k, spec := range group.Modules {
			indices[k] = positions.next(spec)
		}

		g.Go(func() error {
			for k, spec := range group.Modules {
				collected[gi] = append(collected[gi], indexedResult{
					index:  indices[k],
					result: i.syncOne(ctx, spec),
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	report := &domain.InstallReport{Results: flatten(collected)}

	if manifest.Purge {
		report.Purge = i.purge(ctx, manifest, report.DesiredPaths())
	}
	return report
}

// syncOne is the per-module failure boundary: a panic becomes a Failed result.
func (i *Installer) syncOne(ctx context.Context, spec domain.ModuleSpec) (res domain.SyncResult) {
	defer zerr.Defer(func(err error) {
		res = domain.Failed(spec, zerr.With(errors.Join(domain.ErrModulePanicked, err), "module", spec.Name.String()))
	})
	return i.syncer.Sync(ctx, spec)
}

func (i *Installer) purge(ctx context.Context, manifest *domain.Manifest, desired []string) *domain.PurgeReport {
	report, err := i.purger.Purge(ctx, domain.PurgeRequest{
		ManagedDirs: manifest.ManagedDirs,
		Desired:     desired,
		Exclusions:  manifest.PurgeExclusions,
	})
	if report == nil {
		report = &domain.PurgeReport{}
	}
	if err != nil && len(report.Failures) == 0 {
		report.Failures = append(report.Failures, domain.PurgeFailure{Err: err})
	}
	return report
}

// positions hands out manifest indices for specs, in declaration order.
type positions map[domain.ModuleSpec][]int

func modulePositions(modules []domain.ModuleSpec) positions {
	p := make(positions, len(modules))
	for idx, spec := range modules {
		p[spec] = append(p[spec], idx)
	}
	return p
}

func (p positions) next(spec domain.ModuleSpec) int {
	queue := p[spec]
	p[spec] = queue[1:]
	return queue[0]
}

func flatten(collected [][]indexedResult) []domain.SyncResult {
	var all []indexedResult
	for _, group := range collected {
		all = append(all, group...)
	}
	slices.SortFunc(all, func(a, b indexedResult) int {
		return a.index - b.index
	})

	results := make([]domain.SyncResult, len(all))
	for idx, r := range all {
		results[idx] = r.result
	}
	return results
}
