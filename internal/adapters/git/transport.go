// Package git implements the git transport with go-git. Mirrors are bare
// repositories; install paths are ordinary working copies whose origin is
// the mirror.
package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports"
	"go.trai.ch/zerr"
)

// RemoteName is the remote pointing upstream in mirrors and at the mirror in working copies.
const RemoteName = "origin"

// Local paths are served in-process so mirrors and working copies never
// need a git binary.
func init() {
	client.InstallProtocol("file", server.DefaultServer)
}

var (
	mirrorRefSpecs = []config.RefSpec{
		"+refs/heads/*:refs/heads/*",
		"+refs/tags/*:refs/tags/*",
	}
	worktreeRefSpecs = []config.RefSpec{
		"+refs/heads/*:refs/remotes/origin/*",
		"+refs/tags/*:refs/tags/*",
	}
	// defaultRefs are tried in order when a module names no ref.
	defaultRefs = []string{"HEAD", "main", "master"}
)

var _ ports.Transport = (*Transport)(nil)

// Transport implements ports.Transport for git sources.
type Transport struct{}

// NewTransport creates a new git Transport.
func NewTransport() *Transport {
	return &Transport{}
}

// EnsureMirror initializes a bare mirror of location in mirrorDir and fetches
// every branch and tag.
func (t *Transport) EnsureMirror(ctx context.Context, location, mirrorDir string) error {
	repo, err := gogit.Init(storage(mirrorDir), nil)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to initialize mirror"), "path", mirrorDir)
	}

	remote, err := repo.CreateRemote(&config.RemoteConfig{
		Name:  RemoteName,
		URLs:  []string{location},
		Fetch: mirrorRefSpecs,
	})
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to configure mirror remote"), "path", mirrorDir)
	}

	if err := fetch(ctx, repo, mirrorRefSpecs); err != nil {
		return errors.Join(domain.ErrMirrorFetchFailed, zerr.With(err, "location", location))
	}

	// Follow the upstream default branch so an empty ref means what it means upstream.
	refs, err := remote.ListContext(ctx, &gogit.ListOptions{})
	if err != nil {
		return nil //nolint:nilerr // the default branch falls back to main or master
	}
	for _, ref := range refs {
		if ref.Name() == plumbing.HEAD && ref.Type() == plumbing.SymbolicReference {
			if _, err := repo.Reference(ref.Target(), false); err == nil {
				_ = repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, ref.Target()))
			}
		}
	}
	return nil
}

// UpdateMirror fetches the mirror's upstream, unless ref is a commit the
// mirror already holds.
func (t *Transport) UpdateMirror(ctx context.Context, mirrorDir, ref string) error {
	repo, err := gogit.Open(storage(mirrorDir), nil)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open mirror"), "path", mirrorDir)
	}

	if plumbing.IsHash(ref) {
		if _, err := repo.CommitObject(plumbing.NewHash(ref)); err == nil {
			return nil
		}
	}

	if err := fetch(ctx, repo, mirrorRefSpecs); err != nil {
		return zerr.With(err, "path", mirrorDir)
	}
	return nil
}

// Materialize checks out req.Ref into the working copy at req.Dest.
// A working copy with changes to tracked files, or a non-repository
// directory, is divergent: it is replaced only when req.Overwrite is set.
func (t *Transport) Materialize(ctx context.Context, req ports.MaterializeRequest) error {
	mirror, err := gogit.Open(storage(req.MirrorDir), nil)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open mirror"), "path", req.MirrorDir)
	}
	hash, err := resolve(mirror, req.Ref)
	if err != nil {
		return zerr.With(err, "mirror", req.MirrorDir)
	}

	repo, err := t.openWorktree(req)
	if err != nil {
		return err
	}

	if err := ensureOrigin(repo, req.MirrorDir); err != nil {
		return zerr.With(err, "path", req.Dest)
	}
	// A clean working copy already at the commit is left untouched.
	if head, err := repo.Head(); err == nil && head.Hash() == hash && !req.Overwrite {
		return nil
	}
	if _, err := repo.CommitObject(hash); err != nil {
		if err := fetch(ctx, repo, worktreeRefSpecs); err != nil {
			return errors.Join(domain.ErrCheckoutFailed, zerr.With(err, "path", req.Dest))
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return errors.Join(domain.ErrCheckoutFailed, zerr.With(err, "path", req.Dest))
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return errors.Join(domain.ErrCheckoutFailed, zerr.With(zerr.With(err, "path", req.Dest), "commit", hash.String()))
	}
	return nil
}

// openWorktree opens or creates the working copy at req.Dest, refusing to
// touch divergent content unless req.Overwrite is set.
func (t *Transport) openWorktree(req ports.MaterializeRequest) (*gogit.Repository, error) {
	entries, err := os.ReadDir(req.Dest)
	switch {
	case errors.Is(err, os.ErrNotExist), err == nil && len(entries) == 0:
		return initWorktree(req.Dest)
	case err != nil:
		return nil, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", req.Dest)
	}

	repo, err := gogit.Open(storage(filepath.Join(req.Dest, gogit.GitDirName)), osfs.New(req.Dest))
	if err != nil {
		if !req.Overwrite {
			return nil, zerr.With(zerr.Wrap(domain.ErrLocalModification, "install path is not a git working copy"), "path", req.Dest)
		}
		if err := os.RemoveAll(req.Dest); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to clear install path"), "path", req.Dest)
		}
		return initWorktree(req.Dest)
	}

	if req.Overwrite {
		return repo, nil
	}

	dirty, err := isDirty(repo)
	if err != nil {
		return nil, zerr.With(err, "path", req.Dest)
	}
	if dirty {
		return nil, zerr.With(zerr.Wrap(domain.ErrLocalModification, "working copy has local changes"), "path", req.Dest)
	}
	return repo, nil
}

func initWorktree(dest string) (*gogit.Repository, error) {
	repo, err := gogit.Init(storage(filepath.Join(dest, gogit.GitDirName)), osfs.New(dest))
	if err != nil {
		return nil, errors.Join(domain.ErrCheckoutFailed, zerr.With(err, "path", dest))
	}
	return repo, nil
}

// ensureOrigin points the working copy's origin at the mirror.
func ensureOrigin(repo *gogit.Repository, mirrorDir string) error {
	remote, err := repo.Remote(RemoteName)
	switch {
	case err == nil:
		urls := remote.Config().URLs
		if len(urls) == 1 && urls[0] == mirrorDir {
			return nil
		}
		if err := repo.DeleteRemote(RemoteName); err != nil {
			return zerr.Wrap(err, "failed to replace origin")
		}
	case !errors.Is(err, gogit.ErrRemoteNotFound):
		return zerr.Wrap(err, "failed to read origin")
	}

	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name:  RemoteName,
		URLs:  []string{mirrorDir},
		Fetch: worktreeRefSpecs,
	})
	if err != nil {
		return zerr.Wrap(err, "failed to configure origin")
	}
	return nil
}

// isDirty reports changes to tracked files. Untracked files do not count.
func isDirty(repo *gogit.Repository) (bool, error) {
	if _, err := repo.Head(); errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, zerr.Wrap(err, "failed to open worktree")
	}
	status, err := wt.Status()
	if err != nil {
		return false, zerr.Wrap(err, "failed to read worktree status")
	}
	for _, file := range status {
		if file.Staging == gogit.Untracked && file.Worktree == gogit.Untracked {
			continue
		}
		if file.Staging != gogit.Unmodified || file.Worktree != gogit.Unmodified {
			return true, nil
		}
	}
	return false, nil
}

func resolve(repo *gogit.Repository, ref string) (plumbing.Hash, error) {
	candidates := []string{ref}
	if ref == "" {
		candidates = defaultRefs
	}
	for _, candidate := range candidates {
		if hash, err := repo.ResolveRevision(plumbing.Revision(candidate)); err == nil {
			return *hash, nil
		}
	}
	return plumbing.ZeroHash, zerr.With(zerr.Wrap(domain.ErrRefNotFound, ref), "ref", ref)
}

func fetch(ctx context.Context, repo *gogit.Repository, refSpecs []config.RefSpec) error {
	err := repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: RemoteName,
		RefSpecs:   refSpecs,
		Tags:       gogit.NoTags,
		Force:      true,
		Prune:      true,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return zerr.Wrap(err, "failed to fetch")
	}
	return nil
}

func storage(dir string) *filesystem.Storage {
	return filesystem.NewStorage(osfs.New(dir), cache.NewObjectLRUDefault())
}
