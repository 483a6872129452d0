package domain

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// CacheKey identifies a shared mirror. Two sources with equal keys are
// fetched through one cache entry.
type CacheKey struct {
	Kind     SourceKind
	Location string
}

// NewCacheKey derives the cache key of a source by normalizing its location.
// The ref is not part of the key: every ref of one upstream lives in one mirror.
func NewCacheKey(src Source) CacheKey {
	return CacheKey{
		Kind:     src.Kind,
		Location: normalizeLocation(src.Kind, src.Location),
	}
}

// String returns kind:location.
func (k CacheKey) String() string {
	return string(k.Kind) + ":" + k.Location
}

// DirName returns a filesystem-safe relative directory for the key's mirror.
// The readable prefix is truncated; the hash suffix keeps names unique.
func (k CacheKey) DirName() string {
	const maxReadable = 64

	readable := sanitizeDirName(k.Location)
	if len(readable) > maxReadable {
		readable = readable[len(readable)-maxReadable:]
	}

	sum := xxhash.Sum64String(k.String())
	return filepath.Join(string(k.Kind), fmt.Sprintf("%s-%016x", readable, sum))
}

func normalizeLocation(kind SourceKind, location string) string {
	loc := strings.TrimSpace(location)

	switch kind {
	case SourceGit, SourceSVN:
		loc = strings.TrimRight(loc, "/")
		if kind == SourceGit {
			loc = strings.TrimSuffix(loc, ".git")
		}
		return lowerSchemeAndHost(loc)
	case SourceForge:
		loc = strings.ToLower(loc)
		if i := strings.IndexAny(loc, "/-"); i > 0 {
			loc = loc[:i] + "/" + loc[i+1:]
		}
		return loc
	case SourceLocal:
		return filepath.Clean(loc)
	default:
		return loc
	}
}

// lowerSchemeAndHost lowercases the case-insensitive parts of a URL.
// scp-like git locations (git@host:path) and plain paths are left alone.
func lowerSchemeAndHost(loc string) string {
	if !strings.Contains(loc, "://") {
		return loc
	}
	u, err := url.Parse(loc)
	if err != nil {
		return loc
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

func sanitizeDirName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}
