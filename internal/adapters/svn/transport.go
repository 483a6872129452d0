// Package svn implements the subversion transport on top of the svn CLI.
package svn

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports"
	"go.trai.ch/zerr"
)

// Runner executes a command and returns its standard output.
type Runner interface {
	Output(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// locationFile records the upstream URL inside the mirror directory.
const locationFile = "location"

var _ ports.Transport = (*Transport)(nil)

// Transport implements ports.Transport with the svn command line client.
// Subversion keeps no local history, so the mirror only records the
// validated location and every checkout talks to the server.
type Transport struct {
	runner Runner
	binary string
}

// NewTransport creates a Transport running the svn binary through runner.
func NewTransport(runner Runner) *Transport {
	return &Transport{runner: runner, binary: "svn"}
}

// EnsureMirror checks that location is reachable and records it in mirrorDir.
func (t *Transport) EnsureMirror(ctx context.Context, location, mirrorDir string) error {
	if _, err := t.svn(ctx, "", "info", location); err != nil {
		return errors.Join(domain.ErrMirrorFetchFailed, zerr.With(err, "location", location))
	}
	if err := os.MkdirAll(mirrorDir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create mirror directory"), "path", mirrorDir)
	}
	path := filepath.Join(mirrorDir, locationFile)
	if err := os.WriteFile(path, []byte(location+"\n"), domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to record mirror location"), "path", path)
	}
	return nil
}

// UpdateMirror is a no-op: there is nothing to fetch ahead of a checkout.
func (t *Transport) UpdateMirror(_ context.Context, _, _ string) error {
	return nil
}

// Materialize checks out req.Location at req.Ref into req.Dest, switching or
// updating an existing working copy in place.
func (t *Transport) Materialize(ctx context.Context, req ports.MaterializeRequest) error {
	state, err := inspect(req.Dest)
	if err != nil {
		return err
	}

	switch state {
	case destMissing:
		return t.checkout(ctx, req)
	case destForeign:
		if !req.Overwrite {
			return zerr.With(zerr.Wrap(domain.ErrLocalModification, "install path is not a subversion working copy"), "path", req.Dest)
		}
		if err := os.RemoveAll(req.Dest); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to clear install path"), "path", req.Dest)
		}
		return t.checkout(ctx, req)
	}

	status, err := t.svn(ctx, req.Dest, "status", "-q")
	if err != nil {
		return errors.Join(domain.ErrCheckoutFailed, zerr.With(err, "path", req.Dest))
	}
	if len(strings.TrimSpace(string(status))) > 0 {
		if !req.Overwrite {
			return zerr.With(zerr.Wrap(domain.ErrLocalModification, "working copy has local changes"), "path", req.Dest)
		}
		if _, err := t.svn(ctx, req.Dest, "revert", "-R", "."); err != nil {
			return errors.Join(domain.ErrCheckoutFailed, zerr.With(err, "path", req.Dest))
		}
	}

	url, err := t.svn(ctx, req.Dest, "info", "--show-item", "url")
	if err != nil {
		return errors.Join(domain.ErrCheckoutFailed, zerr.With(err, "path", req.Dest))
	}

	if strings.TrimRight(strings.TrimSpace(string(url)), "/") != strings.TrimRight(req.Location, "/") {
		_, err = t.svn(ctx, req.Dest, append([]string{"switch"}, revisionArgs(req.Ref, req.Location)...)...)
	} else {
		_, err = t.svn(ctx, req.Dest, append([]string{"update"}, revisionArgs(req.Ref)...)...)
	}
	if err != nil {
		return errors.Join(domain.ErrCheckoutFailed, zerr.With(err, "path", req.Dest))
	}
	return nil
}

func (t *Transport) checkout(ctx context.Context, req ports.MaterializeRequest) error {
	if err := os.MkdirAll(filepath.Dir(req.Dest), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create install parent"), "path", req.Dest)
	}
	args := append([]string{"checkout"}, revisionArgs(req.Ref, req.Location, req.Dest)...)
	if _, err := t.svn(ctx, "", args...); err != nil {
		return errors.Join(domain.ErrCheckoutFailed, zerr.With(err, "path", req.Dest))
	}
	return nil
}

func (t *Transport) svn(ctx context.Context, dir string, args ...string) ([]byte, error) {
	return t.runner.Output(ctx, dir, t.binary, append([]string{"--non-interactive"}, args...)...)
}

// revisionArgs prefixes rest with "-r ref" when a revision is pinned.
func revisionArgs(ref string, rest ...string) []string {
	if ref == "" {
		return rest
	}
	return append([]string{"-r", ref}, rest...)
}

type destState int

const (
	destMissing destState = iota
	destForeign
	destWorkingCopy
)

func inspect(dest string) (destState, error) {
	entries, err := os.ReadDir(dest)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return destMissing, nil
	case err != nil:
		return 0, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", dest)
	case len(entries) == 0:
		return destMissing, nil
	}
	if info, err := os.Stat(filepath.Join(dest, ".svn")); err == nil && info.IsDir() {
		return destWorkingCopy, nil
	}
	return destForeign, nil
}
