// Package domain contains the core types of the Puppetfile installer.
package domain

import (
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
)

// SourceKind identifies where a module's content comes from.
type SourceKind string

const (
	// SourceGit is a module cloned from a git repository.
	SourceGit SourceKind = "git"
	// SourceForge is a module downloaded as a release tarball from a forge.
	SourceForge SourceKind = "forge"
	// SourceSVN is a module checked out from a subversion repository.
	SourceSVN SourceKind = "svn"
	// SourceLocal is a module copied from a directory on the local filesystem.
	SourceLocal SourceKind = "local"
)

// SourceKinds lists every supported kind in a stable order.
var SourceKinds = []SourceKind{SourceGit, SourceForge, SourceSVN, SourceLocal}

// ParseSourceKind converts a string to a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(strings.ToLower(strings.TrimSpace(s))) {
	case SourceGit:
		return SourceGit, nil
	case SourceForge:
		return SourceForge, nil
	case SourceSVN:
		return SourceSVN, nil
	case SourceLocal:
		return SourceLocal, nil
	default:
		return "", zerr.With(zerr.Wrap(ErrUnknownSourceKind, s), "kind", s)
	}
}

// TracksLocalChanges reports whether the working copy of this kind can report
// its own local modifications. For the other kinds, divergence is detected by
// comparing content hashes against the last recorded deployment.
func (k SourceKind) TracksLocalChanges() bool {
	switch k {
	case SourceGit, SourceSVN:
		return true
	default:
		return false
	}
}

// Immutable reports whether a ref of this kind always denotes the same content.
// Forge versions never move; git refs, svn revisions and local directories can.
func (k SourceKind) Immutable() bool {
	return k == SourceForge
}

// ModuleName is the owner/name identity of a module.
type ModuleName struct {
	Owner string
	Name  string
}

// ParseModuleName parses "owner/name" or "owner-name".
// A bare name without owner is accepted and yields an empty Owner.
func ParseModuleName(s string) (ModuleName, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ModuleName{}, zerr.Wrap(ErrInvalidModuleName, "empty module name")
	}

	sep := strings.IndexAny(s, "/-")
	if sep < 0 {
		return ModuleName{Name: s}, nil
	}

	owner, name := s[:sep], s[sep+1:]
	if owner == "" || name == "" || strings.ContainsAny(name, "/") {
		return ModuleName{}, zerr.With(zerr.Wrap(ErrInvalidModuleName, s), "name", s)
	}
	return ModuleName{Owner: owner, Name: name}, nil
}

// String returns owner/name, or just the name when there is no owner.
func (n ModuleName) String() string {
	if n.Owner == "" {
		return n.Name
	}
	return n.Owner + "/" + n.Name
}

// Slug returns owner-name, the form used by forge file names.
func (n ModuleName) Slug() string {
	if n.Owner == "" {
		return n.Name
	}
	return n.Owner + "-" + n.Name
}

// Source describes where to fetch a module and which ref or version to deploy.
type Source struct {
	Kind     SourceKind
	Location string
	Ref      string
}

// LatestVersion asks the forge for its current release.
const LatestVersion = "latest"

// Pinned reports whether the source always resolves to the same content.
// A forge module without a version, or with "latest", is not pinned.
func (s Source) Pinned() bool {
	return s.Kind.Immutable() && s.Ref != "" && s.Ref != LatestVersion
}

// ModuleOptions holds per-module behavior flags.
type ModuleOptions struct {
	// Force discards divergent local content instead of failing the sync.
	Force bool
}

// ModuleSpec is the immutable description of one declared module.
type ModuleSpec struct {
	Name        ModuleName
	InstallPath string
	Source      Source
	Options     ModuleOptions
}

// Validate checks the invariants a ModuleSpec must satisfy before it is synced.
func (m ModuleSpec) Validate() error {
	name := m.Name.String()
	if _, err := ParseSourceKind(string(m.Source.Kind)); err != nil {
		return zerr.With(err, "module", name)
	}
	if !filepath.IsAbs(m.InstallPath) {
		return zerr.With(zerr.Wrap(ErrInstallPathNotAbsolute, name), "path", m.InstallPath)
	}
	if strings.TrimSpace(m.Source.Location) == "" {
		return zerr.With(zerr.Wrap(ErrMissingLocation, name), "module", name)
	}
	return nil
}

// CacheKey returns the key of the shared mirror this module is fetched through.
func (m ModuleSpec) CacheKey() CacheKey {
	return NewCacheKey(m.Source)
}

// DesiredPaths returns the on-disk paths this module owns once synced.
func (m ModuleSpec) DesiredPaths() []string {
	return []string{filepath.Clean(m.InstallPath)}
}
