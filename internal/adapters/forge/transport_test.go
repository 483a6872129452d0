package forge_test

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/smortex/r10k/internal/adapters/forge"
	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tarEntry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

func buildArchive(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Typeflag: e.typeflag, Linkname: e.linkname}
		switch e.typeflag {
		case tar.TypeDir:
			hdr.Mode = 0o755
		case tar.TypeReg:
			hdr.Size = int64(len(e.body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if e.typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func moduleArchive(t *testing.T, version string) []byte {
	t.Helper()
	top := "puppetlabs-stdlib-" + version + "/"
	return buildArchive(t, []tarEntry{
		{name: top, typeflag: tar.TypeDir},
		{name: top + "metadata.json", body: `{"version":"` + version + `"}`, typeflag: tar.TypeReg},
		{name: top + "manifests/init.pp", body: "class stdlib {}\n", typeflag: tar.TypeReg},
	})
}

// fakeForge serves one module with the given releases.
type fakeForge struct {
	t         *testing.T
	current   atomic.Pointer[string]
	archives  map[string][]byte
	badSum    atomic.Bool
	downloads atomic.Int32
	lookups   atomic.Int32
}

func (f *fakeForge) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/modules/puppetlabs-stdlib", func(w http.ResponseWriter, _ *http.Request) {
		f.lookups.Add(1)
		writeJSON(f.t, w, map[string]any{
			"slug":            "puppetlabs-stdlib",
			"current_release": map[string]any{"version": *f.current.Load()},
		})
	})
	mux.HandleFunc("/v3/releases/{release}", func(w http.ResponseWriter, r *http.Request) {
		version := r.PathValue("release")[len("puppetlabs-stdlib-"):]
		archive, ok := f.archives[version]
		if !ok {
			http.NotFound(w, r)
			return
		}
		sum := sha256.Sum256(archive)
		digest := hex.EncodeToString(sum[:])
		if f.badSum.Load() {
			digest = "00" + digest[2:]
		}
		writeJSON(f.t, w, map[string]any{
			"version":     version,
			"file_uri":    "/v3/files/puppetlabs-stdlib-" + version + ".tar.gz",
			"file_sha256": digest,
		})
	})
	mux.HandleFunc("/v3/files/{file}", func(w http.ResponseWriter, r *http.Request) {
		f.downloads.Add(1)
		name := r.PathValue("file")
		version := name[len("puppetlabs-stdlib-") : len(name)-len(".tar.gz")]
		_, _ = w.Write(f.archives[version])
	})
	return mux
}

func (f *fakeForge) setCurrent(version string) {
	f.current.Store(&version)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func newForge(t *testing.T) (*fakeForge, *forge.Transport) {
	t.Helper()
	f := &fakeForge{
		t: t,
		archives: map[string][]byte{
			"8.5.0": moduleArchive(t, "8.5.0"),
			"9.1.0": moduleArchive(t, "9.1.0"),
		},
	}
	f.setCurrent("9.1.0")
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, forge.NewTransport(srv.URL, srv.Client())
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestTransport_MaterializePinnedVersion(t *testing.T) {
	t.Parallel()

	f, transport := newForge(t)
	mirror := filepath.Join(t.TempDir(), "mirror")
	dest := filepath.Join(t.TempDir(), "modules", "stdlib")
	ctx := context.Background()

	require.NoError(t, transport.EnsureMirror(ctx, "puppetlabs/stdlib", mirror))
	require.NoError(t, transport.UpdateMirror(ctx, mirror, "8.5.0"))
	require.NoError(t, transport.Materialize(ctx, ports.MaterializeRequest{
		MirrorDir: mirror,
		Location:  "puppetlabs/stdlib",
		Ref:       "8.5.0",
		Dest:      dest,
	}))

	assert.JSONEq(t, `{"version":"8.5.0"}`, readFile(t, filepath.Join(dest, "metadata.json")))
	assert.Equal(t, "class stdlib {}\n", readFile(t, filepath.Join(dest, "manifests", "init.pp")))
	assert.FileExists(t, filepath.Join(mirror, "puppetlabs-stdlib-8.5.0.tar.gz"))
	assert.Equal(t, int32(1), f.lookups.Load(), "pinned versions need no metadata refresh")

	// A second materialization reuses the cached archive.
	require.NoError(t, transport.Materialize(ctx, ports.MaterializeRequest{
		MirrorDir: mirror,
		Location:  "puppetlabs/stdlib",
		Ref:       "8.5.0",
		Dest:      dest,
	}))
	assert.Equal(t, int32(1), f.downloads.Load())
}

func TestTransport_MaterializeLatest(t *testing.T) {
	t.Parallel()

	f, transport := newForge(t)
	mirror := filepath.Join(t.TempDir(), "mirror")
	dest := filepath.Join(t.TempDir(), "stdlib")
	ctx := context.Background()

	require.NoError(t, transport.EnsureMirror(ctx, "puppetlabs-stdlib", mirror))
	require.NoError(t, transport.Materialize(ctx, ports.MaterializeRequest{
		MirrorDir: mirror,
		Location:  "puppetlabs-stdlib",
		Ref:       domain.LatestVersion,
		Dest:      dest,
	}))
	assert.JSONEq(t, `{"version":"9.1.0"}`, readFile(t, filepath.Join(dest, "metadata.json")))

	f.setCurrent("8.5.0")
	require.NoError(t, transport.UpdateMirror(ctx, mirror, domain.LatestVersion))
	assert.Equal(t, int32(2), f.lookups.Load())

	require.NoError(t, transport.Materialize(ctx, ports.MaterializeRequest{
		MirrorDir: mirror,
		Location:  "puppetlabs-stdlib",
		Ref:       "",
		Dest:      dest,
	}))
	assert.JSONEq(t, `{"version":"8.5.0"}`, readFile(t, filepath.Join(dest, "metadata.json")))
}

func TestTransport_ResolveRef(t *testing.T) {
	t.Parallel()

	f, transport := newForge(t)
	mirror := filepath.Join(t.TempDir(), "mirror")
	ctx := context.Background()

	require.NoError(t, transport.EnsureMirror(ctx, "puppetlabs-stdlib", mirror))
	lookups := f.lookups.Load()

	version, err := transport.ResolveRef(ctx, mirror, "puppetlabs-stdlib", "8.5.0")
	require.NoError(t, err)
	assert.Equal(t, "8.5.0", version)
	assert.Equal(t, lookups, f.lookups.Load(), "pinned versions resolve without a lookup")

	version, err = transport.ResolveRef(ctx, mirror, "puppetlabs-stdlib", domain.LatestVersion)
	require.NoError(t, err)
	assert.Equal(t, "9.1.0", version)

	f.setCurrent("8.5.0")
	require.NoError(t, transport.UpdateMirror(ctx, mirror, domain.LatestVersion))
	version, err = transport.ResolveRef(ctx, mirror, "puppetlabs-stdlib", "")
	require.NoError(t, err)
	assert.Equal(t, "8.5.0", version)

	// Materializing the resolved version twice downloads it once.
	dest := filepath.Join(t.TempDir(), "stdlib")
	for range 2 {
		require.NoError(t, transport.Materialize(ctx, ports.MaterializeRequest{
			MirrorDir: mirror,
			Location:  "puppetlabs-stdlib",
			Ref:       version,
			Dest:      dest,
		}))
	}
	assert.Equal(t, int32(1), f.downloads.Load())
}

func TestTransport_MaterializeReplacesLocalContent(t *testing.T) {
	t.Parallel()

	_, transport := newForge(t)
	mirror := filepath.Join(t.TempDir(), "mirror")
	dest := filepath.Join(t.TempDir(), "stdlib")
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(dest, domain.DirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "stray.txt"), []byte("x"), domain.FilePerm))

	require.NoError(t, transport.EnsureMirror(ctx, "puppetlabs/stdlib", mirror))
	require.NoError(t, transport.Materialize(ctx, ports.MaterializeRequest{
		MirrorDir: mirror,
		Location:  "puppetlabs/stdlib",
		Ref:       "9.1.0",
		Dest:      dest,
	}))

	assert.NoFileExists(t, filepath.Join(dest, "stray.txt"))
	assert.FileExists(t, filepath.Join(dest, "metadata.json"))

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging directory must not be left behind")
}

func TestTransport_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unknown module", func(t *testing.T) {
		t.Parallel()
		_, transport := newForge(t)
		err := transport.EnsureMirror(context.Background(), "puppetlabs/missing", filepath.Join(t.TempDir(), "m"))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMirrorFetchFailed)
		assert.ErrorIs(t, err, domain.ErrForgeReleaseNotFound)
	})

	t.Run("unknown version", func(t *testing.T) {
		t.Parallel()
		_, transport := newForge(t)
		mirror := filepath.Join(t.TempDir(), "m")
		require.NoError(t, transport.EnsureMirror(context.Background(), "puppetlabs/stdlib", mirror))
		err := transport.Materialize(context.Background(), ports.MaterializeRequest{
			MirrorDir: mirror,
			Location:  "puppetlabs/stdlib",
			Ref:       "1.0.0",
			Dest:      filepath.Join(t.TempDir(), "stdlib"),
		})
		assert.ErrorIs(t, err, domain.ErrForgeReleaseNotFound)
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		t.Parallel()
		f, transport := newForge(t)
		f.badSum.Store(true)
		mirror := filepath.Join(t.TempDir(), "m")
		require.NoError(t, transport.EnsureMirror(context.Background(), "puppetlabs/stdlib", mirror))
		err := transport.Materialize(context.Background(), ports.MaterializeRequest{
			MirrorDir: mirror,
			Location:  "puppetlabs/stdlib",
			Ref:       "9.1.0",
			Dest:      filepath.Join(t.TempDir(), "stdlib"),
		})
		assert.ErrorIs(t, err, domain.ErrArchiveInvalid)
		assert.NoFileExists(t, filepath.Join(mirror, "puppetlabs-stdlib-9.1.0.tar.gz"))
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)
		transport := forge.NewTransport(srv.URL, srv.Client())
		err := transport.EnsureMirror(context.Background(), "puppetlabs/stdlib", filepath.Join(t.TempDir(), "m"))
		assert.ErrorIs(t, err, domain.ErrForgeRequestFailed)
	})
}

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []tarEntry
		files   map[string]string
		wantErr error
	}{
		{
			name: "strips top directory",
			entries: []tarEntry{
				{name: "./mod-1.0.0/", typeflag: tar.TypeDir},
				{name: "./mod-1.0.0/lib/facter/x.rb", body: "x", typeflag: tar.TypeReg},
			},
			files: map[string]string{filepath.Join("lib", "facter", "x.rb"): "x"},
		},
		{
			name: "rejects parent traversal",
			entries: []tarEntry{
				{name: "mod/../../evil", body: "x", typeflag: tar.TypeReg},
			},
			wantErr: domain.ErrArchiveInvalid,
		},
		{
			name: "rejects absolute paths",
			entries: []tarEntry{
				{name: "/etc/passwd", body: "x", typeflag: tar.TypeReg},
			},
			wantErr: domain.ErrArchiveInvalid,
		},
		{
			name: "rejects symlinks",
			entries: []tarEntry{
				{name: "mod/link", typeflag: tar.TypeSymlink, linkname: "/etc"},
			},
			wantErr: domain.ErrArchiveInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			archive := filepath.Join(t.TempDir(), "mod.tar.gz")
			require.NoError(t, os.WriteFile(archive, buildArchive(t, tt.entries), domain.FilePerm))
			dir := t.TempDir()

			err := forge.Extract(archive, dir)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			for name, body := range tt.files {
				assert.Equal(t, body, readFile(t, filepath.Join(dir, name)))
			}
		})
	}
}

func TestExtract_CorruptArchive(t *testing.T) {
	t.Parallel()

	archive := filepath.Join(t.TempDir(), "mod.tar.gz")
	require.NoError(t, os.WriteFile(archive, []byte("not gzip"), domain.FilePerm))
	assert.ErrorIs(t, forge.Extract(archive, t.TempDir()), domain.ErrArchiveInvalid)
}
