// Package cache manages the shared mirrors that modules are fetched through.
package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/smortex/r10k/internal/core/domain"
	"go.trai.ch/zerr"
)

// CreateFunc performs the initial fetch of a mirror into dir.
type CreateFunc func(ctx context.Context, dir string) error

// Manager maps cache keys to mirror directories under a root and serializes
// access to each mirror. Entries live for the lifetime of the Manager, which
// is one install run.
type Manager struct {
	root string

	mu      sync.Mutex
	entries map[domain.CacheKey]*entry
}

type entry struct {
	key domain.CacheKey
	dir string
	// guard holds one token while a handle is out.
	guard chan struct{}

	// The fields below are only touched while holding guard.
	ready bool
	fresh bool
	err   error
}

// NewManager creates a Manager storing mirrors under root.
func NewManager(root string) *Manager {
	return &Manager{
		root:    filepath.Clean(root),
		entries: make(map[domain.CacheKey]*entry),
	}
}

// Dir returns the mirror directory of key.
func (m *Manager) Dir(key domain.CacheKey) string {
	return filepath.Join(m.root, key.DirName())
}

func (m *Manager) entry(key domain.CacheKey) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &entry{
			key:   key,
			dir:   m.Dir(key),
			guard: make(chan struct{}, 1),
		}
		m.entries[key] = e
	}
	return e
}

// Acquire blocks until no other handle for key is out, then returns an
// exclusive handle on its mirror. The first acquirer of a key whose mirror is
// missing on disk runs create. If create fails the entry is poisoned: this and
// every later Acquire for key return the same error until Reset is called.
func (m *Manager) Acquire(ctx context.Context, key domain.CacheKey, create CreateFunc) (*Handle, error) {
	e := m.entry(key)

	select {
	case e.guard <- struct{}{}:
	case <-ctx.Done():
		return nil, zerr.With(zerr.Wrap(ctx.Err(), "interrupted while waiting for cache mirror"), "cache_key", key.String())
	}

	if e.err != nil {
		<-e.guard
		return nil, e.err
	}

	if !e.ready {
		if err := e.prepare(ctx, create); err != nil {
			e.err = errors.Join(domain.ErrCacheCreationFailed, zerr.With(err, "cache_key", key.String()))
			<-e.guard
			return nil, e.err
		}
	}

	return &Handle{entry: e}, nil
}

// prepare adopts a mirror left by an earlier run or creates a new one.
func (e *entry) prepare(ctx context.Context, create CreateFunc) error {
	info, err := os.Stat(e.dir)
	switch {
	case err == nil && info.IsDir():
		e.ready = true
		return nil
	case err == nil:
		if err := os.Remove(e.dir); err != nil {
			return zerr.Wrap(err, "failed to remove stale mirror path")
		}
	case !errors.Is(err, fs.ErrNotExist):
		return zerr.Wrap(err, domain.ErrPathStatFailed.Error())
	}

	if err := os.MkdirAll(filepath.Dir(e.dir), domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create mirror parent directory")
	}

	if err := create(ctx, e.dir); err != nil {
		// A half-written mirror would be adopted by the next run.
		_ = os.RemoveAll(e.dir)
		return err
	}

	e.ready = true
	e.fresh = true
	return nil
}

// Reset clears a poisoned entry so the next Acquire retries creation.
// It reports whether key was poisoned.
func (m *Manager) Reset(key domain.CacheKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false
	}

	select {
	case e.guard <- struct{}{}:
	default:
		// Held by a live handle, so it cannot be poisoned.
		return false
	}
	defer func() { <-e.guard }()

	if e.err == nil {
		return false
	}
	delete(m.entries, key)
	return true
}

// Handle grants exclusive use of one mirror until Release.
type Handle struct {
	entry *entry
	once  sync.Once
}

// Key returns the cache key of the mirror.
func (h *Handle) Key() domain.CacheKey {
	return h.entry.key
}

// Dir returns the mirror directory.
func (h *Handle) Dir() string {
	return h.entry.dir
}

// Fresh reports whether the mirror was created or updated during this run.
func (h *Handle) Fresh() bool {
	return h.entry.fresh
}

// MarkFresh records that the mirror was updated during this run.
func (h *Handle) MarkFresh() {
	h.entry.fresh = true
}

// Release gives up the handle. Calling it more than once is a no-op.
func (h *Handle) Release() {
	h.once.Do(func() {
		<-h.entry.guard
	})
}
