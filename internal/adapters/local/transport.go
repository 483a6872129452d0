// Package local implements the transport for modules copied from a directory
// on the local filesystem.
package local

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports"
	"go.trai.ch/zerr"
)

// LocationFileName records the source directory inside a mirror.
const LocationFileName = "location"

var _ ports.Transport = (*Transport)(nil)

// Transport implements ports.Transport for local sources. Materialize makes
// the install path an exact copy of the source, rewriting only what changed.
type Transport struct {
	fs billy.Filesystem
}

// NewTransport creates a Transport operating on the host filesystem.
func NewTransport() *Transport {
	return &Transport{fs: osfs.Default}
}

// EnsureMirror checks that the source directory exists and records it in mirrorDir.
func (t *Transport) EnsureMirror(_ context.Context, location, mirrorDir string) error {
	if err := t.checkSource(location); err != nil {
		return err
	}
	if err := t.fs.MkdirAll(mirrorDir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create mirror directory"), "path", mirrorDir)
	}
	path := filepath.Join(mirrorDir, LocationFileName)
	if err := util.WriteFile(t.fs, path, []byte(location), domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to record mirror location"), "path", path)
	}
	return nil
}

// UpdateMirror checks that the recorded source directory still exists.
func (t *Transport) UpdateMirror(_ context.Context, mirrorDir, _ string) error {
	path := filepath.Join(mirrorDir, LocationFileName)
	location, err := util.ReadFile(t.fs, path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to read mirror location"), "path", path)
	}
	return t.checkSource(string(location))
}

// Materialize synchronizes req.Dest with the source directory: files that
// differ are rewritten and entries missing from the source are removed.
func (t *Transport) Materialize(ctx context.Context, req ports.MaterializeRequest) error {
	if err := t.checkSource(req.Location); err != nil {
		return err
	}

	if info, err := t.fs.Lstat(req.Dest); err == nil && !info.IsDir() {
		if err := t.fs.Remove(req.Dest); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to clear install path"), "path", req.Dest)
		}
	}

	wanted := make(map[string]struct{})
	err := util.Walk(t.fs, req.Location, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, err := filepath.Rel(req.Location, path)
		if err != nil {
			return err
		}
		wanted[rel] = struct{}{}
		return t.copyEntry(path, filepath.Join(req.Dest, rel), info)
	})
	if err != nil {
		return errors.Join(domain.ErrCopyFailed, zerr.With(zerr.With(err, "source", req.Location), "path", req.Dest))
	}

	if err := t.removeStale(req.Dest, wanted); err != nil {
		return errors.Join(domain.ErrCopyFailed, zerr.With(err, "path", req.Dest))
	}
	return nil
}

func (t *Transport) checkSource(location string) error {
	info, err := t.fs.Stat(location)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return zerr.With(zerr.Wrap(domain.ErrSourceNotFound, location), "path", location)
	case err != nil:
		return zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", location)
	case !info.IsDir():
		return zerr.With(zerr.Wrap(domain.ErrSourceNotFound, "source is not a directory"), "path", location)
	}
	return nil
}

// copyEntry makes dst match the source entry src.
func (t *Transport) copyEntry(src, dst string, info fs.FileInfo) error {
	current, err := t.fs.Lstat(dst)
	exists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	switch mode := info.Mode(); {
	case mode.IsDir():
		if exists && !current.IsDir() {
			if err := t.fs.Remove(dst); err != nil {
				return err
			}
		}
		return t.fs.MkdirAll(dst, domain.DirPerm)

	case mode&fs.ModeSymlink != 0:
		target, err := t.fs.Readlink(src)
		if err != nil {
			return err
		}
		if exists && current.Mode()&fs.ModeSymlink != 0 {
			if have, err := t.fs.Readlink(dst); err == nil && have == target {
				return nil
			}
		}
		if exists {
			if err := util.RemoveAll(t.fs, dst); err != nil {
				return err
			}
		}
		return t.fs.Symlink(target, dst)

	case mode.IsRegular():
		data, err := util.ReadFile(t.fs, src)
		if err != nil {
			return err
		}
		if exists && current.Mode().IsRegular() && current.Size() == info.Size() {
			if have, err := util.ReadFile(t.fs, dst); err == nil && bytes.Equal(have, data) {
				return nil
			}
		}
		if exists {
			if err := util.RemoveAll(t.fs, dst); err != nil {
				return err
			}
		}
		return util.WriteFile(t.fs, dst, data, mode.Perm())

	default:
		// sockets, devices and pipes are not module content
		return nil
	}
}

// removeStale deletes every entry under dest whose relative path is not wanted.
func (t *Transport) removeStale(dest string, wanted map[string]struct{}) error {
	return util.Walk(t.fs, dest, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dest, path)
		if err != nil {
			return err
		}
		if _, ok := wanted[rel]; ok {
			return nil
		}
		if err := util.RemoveAll(t.fs, path); err != nil {
			return err
		}
		if info.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
}
