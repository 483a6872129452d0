package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smortex/r10k/internal/adapters/config"
	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newLoader(t *testing.T) *config.Loader {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	return config.NewLoader(log)
}

func writePuppetfile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, domain.PuppetfileName)
	require.NoError(t, os.WriteFile(path, []byte(content), domain.FilePerm))
	return path
}

func TestLoad_AllSourceKinds(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writePuppetfile(t, root, `
purge_exclusions: ["modules/**/*.rb"]
modules:
  - name: puppetlabs/stdlib
    version: 9.4.1
  - name: puppetlabs-ntp
  - name: acme/profile
    git: https://git.example.com/acme/profile.git
    ref: v1.2.0
    install_path: site
  - name: acme/legacy
    svn: https://svn.example.com/legacy/trunk
    revision: "1234"
  - name: acme/thing
    local: ../local-modules/thing
`)

	manifest, err := newLoader(t).Load(context.Background(), domain.Settings{Root: root, Force: true})
	require.NoError(t, err)

	modules := filepath.Join(root, "modules")
	assert.Equal(t, modules, manifest.ModuleDir)
	assert.True(t, manifest.Purge, "purge defaults to true")
	assert.Equal(t, []string{modules, filepath.Join(root, "site")}, manifest.ManagedDirs)
	assert.Equal(t, []string{filepath.Join(root, "modules/**/*.rb")}, manifest.PurgeExclusions)

	require.Len(t, manifest.Modules, 5)

	assert.Equal(t, domain.ModuleSpec{
		Name:        domain.ModuleName{Owner: "puppetlabs", Name: "stdlib"},
		InstallPath: filepath.Join(modules, "stdlib"),
		Source:      domain.Source{Kind: domain.SourceForge, Location: "puppetlabs/stdlib", Ref: "9.4.1"},
		Options:     domain.ModuleOptions{Force: true},
	}, manifest.Modules[0])

	assert.Equal(t, domain.Source{Kind: domain.SourceForge, Location: "puppetlabs/ntp", Ref: domain.LatestVersion},
		manifest.Modules[1].Source)

	assert.Equal(t, filepath.Join(root, "site", "profile"), manifest.Modules[2].InstallPath)
	assert.Equal(t, domain.Source{
		Kind:     domain.SourceGit,
		Location: "https://git.example.com/acme/profile.git",
		Ref:      "v1.2.0",
	}, manifest.Modules[2].Source)

	assert.Equal(t, domain.Source{
		Kind:     domain.SourceSVN,
		Location: "https://svn.example.com/legacy/trunk",
		Ref:      "1234",
	}, manifest.Modules[3].Source)

	assert.Equal(t, domain.SourceLocal, manifest.Modules[4].Source.Kind)
	assert.Equal(t, filepath.Join(filepath.Dir(root), "local-modules", "thing"), manifest.Modules[4].Source.Location)
}

func TestLoad_ModuleDirPrecedence(t *testing.T) {
	t.Parallel()

	content := `
moduledir: vendor
modules:
  - name: puppetlabs/stdlib
`

	t.Run("manifest moduledir", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writePuppetfile(t, root, content)

		manifest, err := newLoader(t).Load(context.Background(), domain.Settings{Root: root})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "vendor"), manifest.ModuleDir)
		assert.Equal(t, filepath.Join(root, "vendor", "stdlib"), manifest.Modules[0].InstallPath)
	})

	t.Run("custom moduledir wins", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		custom := filepath.Join(t.TempDir(), "custom")
		writePuppetfile(t, root, content)

		manifest, err := newLoader(t).Load(context.Background(), domain.Settings{Root: root, Moduledir: custom})
		require.NoError(t, err)
		assert.Equal(t, custom, manifest.ModuleDir)
		assert.Equal(t, []string{custom}, manifest.ManagedDirs)
	})

	t.Run("relative custom moduledir is joined to root", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writePuppetfile(t, root, content)

		manifest, err := newLoader(t).Load(context.Background(), domain.Settings{Root: root, Moduledir: "site"})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "site"), manifest.ModuleDir)
		assert.Equal(t, filepath.Join(root, "site", "stdlib"), manifest.Modules[0].InstallPath)
		assert.Equal(t, []string{filepath.Join(root, "site")}, manifest.ManagedDirs)
	})

	t.Run("custom puppetfile", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		elsewhere := t.TempDir()
		path := writePuppetfile(t, elsewhere, content)

		manifest, err := newLoader(t).Load(context.Background(), domain.Settings{Root: root, Puppetfile: path})
		require.NoError(t, err)
		assert.Equal(t, path, manifest.Path)
		assert.Equal(t, filepath.Join(root, "vendor"), manifest.ModuleDir, "moduledir stays relative to root")
	})
}

func TestLoad_RootIsNeverManaged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		managed func(root string) []string
	}{
		{
			name: "install_path at root",
			content: `
modules:
  - name: acme/profile
    local: src/profile
    install_path: .
`,
			managed: func(root string) []string { return []string{filepath.Join(root, "modules")} },
		},
		{
			name: "moduledir at root",
			content: `
moduledir: .
modules:
  - name: acme/profile
    local: src/profile
`,
			managed: func(string) []string { return nil },
		},
		{
			name: "install_path above root",
			content: `
modules:
  - name: acme/profile
    local: src/profile
    install_path: ..
`,
			managed: func(root string) []string { return []string{filepath.Join(root, "modules")} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root := t.TempDir()
			writePuppetfile(t, root, tt.content)

			manifest, err := newLoader(t).Load(context.Background(), domain.Settings{Root: root})
			require.NoError(t, err)
			assert.Equal(t, tt.managed(root), manifest.ManagedDirs)
			assert.NotContains(t, manifest.ManagedDirs, root)
		})
	}
}

func TestLoad_PurgeDisabledAndForge(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writePuppetfile(t, root, `
purge: false
forge: https://forge.example.com
modules: []
`)

	manifest, err := newLoader(t).Load(context.Background(), domain.Settings{Root: root})
	require.NoError(t, err)
	assert.False(t, manifest.Purge)
	assert.Equal(t, "https://forge.example.com", manifest.ForgeBaseURL)
	assert.Empty(t, manifest.Modules)
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writePuppetfile(t, root, "")

	manifest, err := newLoader(t).Load(context.Background(), domain.Settings{Root: root})
	require.NoError(t, err)
	assert.Empty(t, manifest.Modules)
	assert.True(t, manifest.Purge)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{
			name:    "invalid yaml",
			content: "modules: [",
			want:    domain.ErrManifestParseFailed,
		},
		{
			name:    "unknown key",
			content: "modules:\n  - name: a/b\n    branch: main\n",
			want:    domain.ErrManifestParseFailed,
		},
		{
			name:    "two sources",
			content: "modules:\n  - name: a/b\n    git: https://example.com/b.git\n    local: /srv/b\n",
			want:    domain.ErrAmbiguousSource,
		},
		{
			name:    "version on git module",
			content: "modules:\n  - name: a/b\n    git: https://example.com/b.git\n    version: 1.0.0\n",
			want:    domain.ErrAmbiguousSource,
		},
		{
			name:    "invalid name",
			content: "modules:\n  - name: /b\n",
			want:    domain.ErrInvalidModuleName,
		},
		{
			name:    "duplicate install path",
			content: "modules:\n  - name: a/b\n  - name: c/b\n",
			want:    domain.ErrDuplicateInstallPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root := t.TempDir()
			writePuppetfile(t, root, tt.content)

			_, err := newLoader(t).Load(context.Background(), domain.Settings{Root: root})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := newLoader(t).Load(context.Background(), domain.Settings{Root: t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrManifestReadFailed))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
