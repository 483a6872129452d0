// Package purge removes content under managed directories that the manifest
// no longer declares.
package purge

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports"
	"go.trai.ch/zerr"
)

// Cleaner implements ports.Purger on the local filesystem.
type Cleaner struct {
	logger ports.Logger
}

// NewCleaner creates a Cleaner that reports removals through logger.
func NewCleaner(logger ports.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// pass holds the state of one Purge call.
type pass struct {
	ctx        context.Context
	logger     ports.Logger
	keep       map[string]struct{}
	ancestors  map[string]struct{}
	exclusions []string
	dryRun     bool
	report     *domain.PurgeReport
}

// Purge walks every managed directory and removes entries that are neither
// desired nor excluded. The managed directories themselves always survive.
func (c *Cleaner) Purge(ctx context.Context, req domain.PurgeRequest) (*domain.PurgeReport, error) {
	p := &pass{
		ctx:        ctx,
		logger:     c.logger,
		keep:       make(map[string]struct{}, len(req.Desired)+len(req.ManagedDirs)),
		ancestors:  make(map[string]struct{}),
		exclusions: req.Exclusions,
		dryRun:     req.DryRun,
		report:     &domain.PurgeReport{},
	}

	for _, path := range req.Desired {
		p.keep[absolute(path)] = struct{}{}
	}
	for _, dir := range req.ManagedDirs {
		p.keep[absolute(dir)] = struct{}{}
	}
	for kept := range p.keep {
		p.addAncestors(kept)
	}

	for _, dir := range req.ManagedDirs {
		if err := ctx.Err(); err != nil {
			return p.report, zerr.Wrap(err, "purge interrupted")
		}
		p.purgeManaged(filepath.Clean(dir))
	}
	if err := ctx.Err(); err != nil {
		return p.report, zerr.Wrap(err, "purge interrupted")
	}

	return p.report, p.err()
}

func (p *pass) purgeManaged(dir string) {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return
	case err != nil:
		p.fail(dir, zerr.Wrap(err, domain.ErrPathStatFailed.Error()))
		return
	case !info.IsDir():
		return
	}
	p.purgeChildren(dir)
}

// purgeChildren processes the entries of dir, children before parents, and
// reports whether anything inside dir was retained.
func (p *pass) purgeChildren(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		p.fail(dir, zerr.Wrap(err, "failed to read directory"))
		return true
	}

	retained := false
	for _, entry := range entries {
		if p.ctx.Err() != nil {
			return true
		}
		if p.purgeEntry(filepath.Join(dir, entry.Name()), entry) {
			retained = true
		}
	}
	return retained
}

// purgeEntry reports whether path was retained.
func (p *pass) purgeEntry(path string, entry os.DirEntry) bool {
	abs := absolute(path)
	if _, ok := p.keep[abs]; ok {
		return true
	}
	if p.excluded(path, abs) {
		p.report.Excluded = append(p.report.Excluded, path)
		return true
	}
	if _, ok := p.ancestors[abs]; ok {
		// A desired path lives below; only its stale siblings may go.
		if entry.IsDir() {
			p.purgeChildren(path)
		}
		return true
	}

	// Symlinks are removed as links and never followed.
	if entry.IsDir() && entry.Type()&os.ModeSymlink == 0 {
		if p.purgeChildren(path) {
			return true
		}
	}
	return !p.remove(path)
}

func (p *pass) excluded(path, abs string) bool {
	candidates := []string{filepath.ToSlash(path), filepath.ToSlash(abs)}
	for _, pattern := range p.exclusions {
		pattern = filepath.ToSlash(pattern)
		for _, candidate := range candidates {
			if ok, _ := doublestar.Match(pattern, candidate); ok {
				return true
			}
		}
	}
	return false
}

// addAncestors records every directory above a kept path.
func (p *pass) addAncestors(kept string) {
	for dir := filepath.Dir(kept); ; dir = filepath.Dir(dir) {
		if _, seen := p.ancestors[dir]; seen {
			return
		}
		p.ancestors[dir] = struct{}{}
		if parent := filepath.Dir(dir); parent == dir {
			return
		}
	}
}

// remove deletes a stale path and reports whether it is gone.
func (p *pass) remove(path string) bool {
	if p.dryRun {
		p.report.Removed = append(p.report.Removed, path)
		p.logger.Info("Would remove unmanaged path " + path)
		return true
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.fail(path, zerr.Wrap(err, "failed to remove path"))
		return false
	}
	p.report.Removed = append(p.report.Removed, path)
	p.logger.Info("Removing unmanaged path " + path)
	return true
}

func (p *pass) fail(path string, err error) {
	failure := domain.PurgeFailure{
		Path: path,
		Err:  errors.Join(domain.ErrPurgeFailed, zerr.With(err, "path", path)),
	}
	p.report.Failures = append(p.report.Failures, failure)
	p.logger.Error(failure.Err)
}

func (p *pass) err() error {
	if len(p.report.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(p.report.Failures))
	for i, f := range p.report.Failures {
		errs[i] = f.Err
	}
	return errors.Join(errs...)
}

func absolute(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
