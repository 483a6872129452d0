// Package forge implements the transport for modules published on a Puppet
// forge. The mirror of a module holds its metadata and the release archives
// downloaded so far; install paths are extracted archives.
package forge

import (
	"archive/tar"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports"
	"go.trai.ch/zerr"
)

// MetadataFileName is the cached module metadata inside a mirror.
const MetadataFileName = "module.json"

var (
	_ ports.Transport   = (*Transport)(nil)
	_ ports.RefResolver = (*Transport)(nil)
)

// Transport implements ports.Transport for forge sources.
type Transport struct {
	client *Client
}

// NewTransport creates a Transport for the forge at baseURL.
// A nil httpClient uses a client with a default timeout.
func NewTransport(baseURL string, httpClient *http.Client) *Transport {
	return &Transport{client: NewClient(baseURL, httpClient)}
}

// EnsureMirror creates the mirror directory and caches the module metadata.
// A module unknown to the forge fails here.
func (t *Transport) EnsureMirror(ctx context.Context, location, mirrorDir string) error {
	if err := os.MkdirAll(mirrorDir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create mirror directory"), "path", mirrorDir)
	}
	if err := t.refreshMetadata(ctx, location, mirrorDir); err != nil {
		return errors.Join(domain.ErrMirrorFetchFailed, err)
	}
	return nil
}

// UpdateMirror refreshes the cached metadata when ref asks for the latest
// release. Pinned versions never change and need no refresh.
func (t *Transport) UpdateMirror(ctx context.Context, mirrorDir, ref string) error {
	if !isLatest(ref) {
		return nil
	}
	info, err := readMetadata(mirrorDir)
	if err != nil {
		return err
	}
	return t.refreshMetadata(ctx, info.Slug, mirrorDir)
}

// ResolveRef returns the version ref denotes: ref itself when pinned, the
// current release recorded in the mirror when it asks for the latest.
func (t *Transport) ResolveRef(ctx context.Context, mirrorDir, location, ref string) (string, error) {
	return t.resolveVersion(ctx, ports.MaterializeRequest{MirrorDir: mirrorDir, Location: location, Ref: ref})
}

// Materialize extracts the requested release into req.Dest, replacing
// whatever is there. The archive is downloaded into the mirror first when
// it is not already cached.
func (t *Transport) Materialize(ctx context.Context, req ports.MaterializeRequest) error {
	slug := slugOf(req.Location)

	version, err := t.resolveVersion(ctx, req)
	if err != nil {
		return err
	}

	archive := filepath.Join(req.MirrorDir, slug+"-"+version+".tar.gz")
	if _, err := os.Stat(archive); errors.Is(err, os.ErrNotExist) {
		rel, err := t.client.Release(ctx, slug, version)
		if err != nil {
			return err
		}
		if err := t.client.Download(ctx, rel, archive); err != nil {
			return zerr.With(err, "module", req.Location)
		}
	} else if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", archive)
	}

	parent := filepath.Dir(req.Dest)
	if err := os.MkdirAll(parent, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create install parent"), "path", parent)
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(req.Dest)+"-*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create staging directory"), "path", parent)
	}
	defer os.RemoveAll(staging) //nolint:errcheck // gone after a successful rename
	if err := os.Chmod(staging, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to prepare staging directory"), "path", staging)
	}

	if err := Extract(archive, staging); err != nil {
		return zerr.With(err, "module", req.Location)
	}

	if err := os.RemoveAll(req.Dest); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to clear install path"), "path", req.Dest)
	}
	if err := os.Rename(staging, req.Dest); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to move module into place"), "path", req.Dest)
	}
	return nil
}

func (t *Transport) resolveVersion(ctx context.Context, req ports.MaterializeRequest) (string, error) {
	if !isLatest(req.Ref) {
		return req.Ref, nil
	}
	info, err := readMetadata(req.MirrorDir)
	if errors.Is(err, os.ErrNotExist) {
		if err := t.refreshMetadata(ctx, req.Location, req.MirrorDir); err != nil {
			return "", err
		}
		info, err = readMetadata(req.MirrorDir)
	}
	if err != nil {
		return "", err
	}
	if info.CurrentRelease.Version == "" {
		return "", zerr.With(zerr.Wrap(domain.ErrForgeReleaseNotFound, "module has no current release"), "module", req.Location)
	}
	return info.CurrentRelease.Version, nil
}

func (t *Transport) refreshMetadata(ctx context.Context, location, mirrorDir string) error {
	slug := slugOf(location)
	info, err := t.client.Module(ctx, slug)
	if err != nil {
		return err
	}
	if info.Slug == "" {
		info.Slug = slug
	}
	return writeMetadata(mirrorDir, info)
}

func readMetadata(mirrorDir string) (*ModuleInfo, error) {
	path := filepath.Join(mirrorDir, MetadataFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(err, zerr.With(zerr.New("failed to read module metadata"), "path", path))
	}
	var info ModuleInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to decode module metadata"), "path", path)
	}
	return &info, nil
}

func writeMetadata(mirrorDir string, info *ModuleInfo) error {
	path := filepath.Join(mirrorDir, MetadataFileName)
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode module metadata")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write module metadata"), "path", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write module metadata"), "path", path)
	}
	return nil
}

// Extract unpacks a gzipped release archive into dir, dropping the
// archive's top-level directory. Absolute paths, entries escaping dir,
// and links are rejected.
func Extract(archive, dir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", archive)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errors.Join(domain.ErrArchiveInvalid, zerr.With(err, "path", archive))
	}
	defer gz.Close() //nolint:errcheck // Best effort close in defer

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Join(domain.ErrArchiveInvalid, zerr.With(err, "path", archive))
		}

		rel, ok := stripTopDir(hdr.Name)
		if !ok {
			continue
		}
		if filepath.IsAbs(hdr.Name) || !filepath.IsLocal(rel) {
			return zerr.With(zerr.Wrap(domain.ErrArchiveInvalid, "entry escapes module directory"), "entry", hdr.Name)
		}
		target := filepath.Join(dir, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, domain.DirPerm); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to create directory"), "path", target)
			}
		case tar.TypeReg:
			if err := writeEntry(tr, target, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink, tar.TypeLink:
			return zerr.With(zerr.Wrap(domain.ErrArchiveInvalid, "archive contains links"), "entry", hdr.Name)
		default:
			// pax headers and the like carry no content
		}
	}
}

func writeEntry(r io.Reader, target string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create directory"), "path", filepath.Dir(target))
	}
	if perm == 0 {
		perm = domain.FilePerm
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", target)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return errors.Join(domain.ErrArchiveInvalid, zerr.With(err, "path", target))
	}
	if err := out.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write file"), "path", target)
	}
	return nil
}

// stripTopDir removes the first path element of an archive entry name.
// The top-level directory itself yields ok == false.
func stripTopDir(name string) (string, bool) {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	_, rest, found := strings.Cut(name, "/")
	rest = strings.Trim(rest, "/")
	if !found || rest == "" {
		return "", false
	}
	return filepath.FromSlash(rest), true
}

// slugOf turns owner/name into the owner-name form used by the forge API.
func slugOf(location string) string {
	name, err := domain.ParseModuleName(location)
	if err != nil {
		return location
	}
	return name.Slug()
}

func isLatest(ref string) bool {
	return ref == "" || ref == domain.LatestVersion
}
