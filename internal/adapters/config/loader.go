// Package config provides the Puppetfile and settings loaders for r10k.
package config

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"

	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ManifestLoader = (*Loader)(nil)

// Loader implements ports.ManifestLoader for YAML Puppetfiles.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new manifest loader.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load reads the Puppetfile named by settings and resolves every path in it.
func (l *Loader) Load(_ context.Context, settings domain.Settings) (*domain.Manifest, error) {
	path := settings.ManifestPath()
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrManifestReadFailed, err), "path", path)
	}

	var pf Puppetfile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && len(bytes.TrimSpace(data)) > 0 {
		return nil, zerr.With(errors.Join(domain.ErrManifestParseFailed, err), "path", path)
	}

	root, err := filepath.Abs(settings.Root)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to resolve root"), "root", settings.Root)
	}
	moduleDir, err := filepath.Abs(settings.ModuleDir(pf.Moduledir))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to resolve module directory"), "moduledir", pf.Moduledir)
	}

	manifest := &domain.Manifest{
		Path:            path,
		ModuleDir:       moduleDir,
		PurgeExclusions: resolvePatterns(root, pf.PurgeExclusions),
		Purge:           pf.Purge == nil || *pf.Purge,
		ForgeBaseURL:    pf.Forge,
	}

	manifest.ManagedDirs = addManagedDir(manifest.ManagedDirs, root, moduleDir)
	for _, dto := range pf.Modules {
		spec, err := buildModule(dto, root, moduleDir, settings.Force)
		if err != nil {
			return nil, zerr.With(err, "path", path)
		}
		manifest.Modules = append(manifest.Modules, spec)
		manifest.ManagedDirs = addManagedDir(manifest.ManagedDirs, root, filepath.Dir(spec.InstallPath))
	}

	if err := manifest.Validate(); err != nil {
		return nil, zerr.With(err, "path", path)
	}

	l.Logger.Info("Loaded " + path)
	return manifest, nil
}

// addManagedDir appends dir unless it is already managed or contains root.
// Purging root or one of its parents would delete the Puppetfile and the
// settings next to it.
func addManagedDir(dirs []string, root, dir string) []string {
	dir = filepath.Clean(dir)
	if slices.Contains(dirs, dir) || dir == root || isWithin(root, dir) {
		return dirs
	}
	return append(dirs, dir)
}

// isWithin reports whether path lies strictly below dir.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != "." && filepath.IsLocal(rel)
}

func buildModule(dto ModuleDTO, root, moduleDir string, force bool) (domain.ModuleSpec, error) {
	name, err := domain.ParseModuleName(dto.Name)
	if err != nil {
		return domain.ModuleSpec{}, err
	}

	src, err := buildSource(dto, name, root)
	if err != nil {
		return domain.ModuleSpec{}, zerr.With(err, "module", name.String())
	}

	parent := moduleDir
	if dto.InstallPath != "" {
		parent = dto.InstallPath
		if !filepath.IsAbs(parent) {
			parent = filepath.Join(root, parent)
		}
	}

	return domain.ModuleSpec{
		Name:        name,
		InstallPath: filepath.Join(parent, name.Name),
		Source:      src,
		Options:     domain.ModuleOptions{Force: force},
	}, nil
}

func buildSource(dto ModuleDTO, name domain.ModuleName, root string) (domain.Source, error) {
	var sources []domain.Source
	if dto.Git != "" {
		sources = append(sources, domain.Source{Kind: domain.SourceGit, Location: dto.Git, Ref: dto.Ref})
	}
	if dto.SVN != "" {
		sources = append(sources, domain.Source{Kind: domain.SourceSVN, Location: dto.SVN, Ref: dto.Revision})
	}
	if dto.Local != "" {
		location := dto.Local
		if !filepath.IsAbs(location) {
			location = filepath.Join(root, location)
		}
		sources = append(sources, domain.Source{Kind: domain.SourceLocal, Location: location})
	}

	switch len(sources) {
	case 0:
		version := dto.Version
		if version == "" {
			version = domain.LatestVersion
		}
		return domain.Source{Kind: domain.SourceForge, Location: name.String(), Ref: version}, nil
	case 1:
		if dto.Version != "" {
			return domain.Source{}, zerr.Wrap(domain.ErrAmbiguousSource, "version is only valid for forge modules")
		}
		return sources[0], nil
	default:
		return domain.Source{}, zerr.Wrap(domain.ErrAmbiguousSource, name.String())
	}
}

// resolvePatterns anchors relative purge exclusions at root.
func resolvePatterns(root string, patterns []string) []string {
	if len(patterns) == 0 {
		return nil
	}
	resolved := make([]string, len(patterns))
	for i, pattern := range patterns {
		if filepath.IsAbs(pattern) {
			resolved[i] = pattern
			continue
		}
		resolved[i] = filepath.Join(root, pattern)
	}
	return resolved
}
