package domain

import (
	"path/filepath"

	"go.trai.ch/zerr"
)

// Manifest is a loaded Puppetfile with every path resolved.
type Manifest struct {
	// Path is the file the manifest was read from.
	Path string
	// ModuleDir is the default parent directory of module install paths.
	ModuleDir string
	// Modules are the declared modules in declaration order.
	Modules []ModuleSpec
	// ManagedDirs are the directories purge may clean.
	ManagedDirs []string
	// PurgeExclusions are glob patterns protected from purge.
	PurgeExclusions []string
	// Purge enables the reconciliation pass after sync.
	Purge bool
	// ForgeBaseURL overrides the forge API endpoint when set.
	ForgeBaseURL string
}

// ModuleGroup is the set of modules sharing one cache key.
type ModuleGroup struct {
	Key     CacheKey
	Modules []ModuleSpec
}

// ModulesByCacheKey partitions the modules by cache key. Groups are ordered by
// the first appearance of their key and keep declaration order inside.
func (m *Manifest) ModulesByCacheKey() []ModuleGroup {
	var groups []ModuleGroup
	index := make(map[CacheKey]int, len(m.Modules))

	for _, spec := range m.Modules {
		key := spec.CacheKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, ModuleGroup{Key: key})
		}
		groups[i].Modules = append(groups[i].Modules, spec)
	}
	return groups
}

// Validate checks every module and rejects two modules sharing an install path.
func (m *Manifest) Validate() error {
	seen := make(map[string]string, len(m.Modules))
	for _, spec := range m.Modules {
		if err := spec.Validate(); err != nil {
			return err
		}
		path := filepath.Clean(spec.InstallPath)
		if other, ok := seen[path]; ok {
			err := zerr.With(zerr.Wrap(ErrDuplicateInstallPath, path), "module", spec.Name.String())
			return zerr.With(err, "conflicts_with", other)
		}
		seen[path] = spec.Name.String()
	}
	return nil
}
