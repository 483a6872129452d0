package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/smortex/r10k/cmd/r10k/commands"
	"github.com/smortex/r10k/internal/app"
	"github.com/smortex/r10k/internal/build"
	"github.com/smortex/r10k/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockApp struct {
	installFunc func(ctx context.Context, opts app.Options) error
	purgeFunc   func(ctx context.Context, opts app.Options) (*domain.PurgeReport, error)
}

func (m *mockApp) InstallPuppetfile(ctx context.Context, opts app.Options) error {
	if m.installFunc != nil {
		return m.installFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) PurgePuppetfile(ctx context.Context, opts app.Options) (*domain.PurgeReport, error) {
	if m.purgeFunc != nil {
		return m.purgeFunc(ctx, opts)
	}
	return &domain.PurgeReport{}, nil
}

func TestCommands_Install(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var captured app.Options
		called := false

		mock := &mockApp{
			installFunc: func(_ context.Context, opts app.Options) error {
				captured = opts
				called = true
				return nil
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{
			"puppetfile", "install",
			"--root", "/srv/puppet",
			"--puppetfile", "/srv/puppet/Puppetfile.prod",
			"--moduledir", "/srv/modules",
			"--config", "/etc/r10k.yaml",
			"--cachedir", "/var/cache/r10k",
			"--log-file", "/var/log/r10k.log",
			"--json", "-f", "-j", "8",
		})

		err := cli.Execute(context.Background())
		require.NoError(t, err)
		assert.True(t, called)
		assert.Equal(t, "/etc/r10k.yaml", captured.ConfigPath)
		assert.Equal(t, domain.Settings{
			Root:       "/srv/puppet",
			Puppetfile: "/srv/puppet/Puppetfile.prod",
			Moduledir:  "/srv/modules",
			CacheDir:   "/var/cache/r10k",
			LogFile:    "/var/log/r10k.log",
			JSONLogs:   true,
			Force:      true,
			PoolSize:   8,
		}, captured.Overrides)
	})

	t.Run("defaults leave settings untouched", func(t *testing.T) {
		var captured app.Options
		mock := &mockApp{
			installFunc: func(_ context.Context, opts app.Options) error {
				captured = opts
				return nil
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"puppetfile", "install"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.Equal(t, app.Options{}, captured)
	})

	t.Run("returns error on install failure", func(t *testing.T) {
		mock := &mockApp{
			installFunc: func(_ context.Context, _ app.Options) error {
				return domain.ErrInstallFailed
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"puppetfile", "install"})
		// Silence output to avoid polluting test logs
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))

		err := cli.Execute(context.Background())
		require.ErrorIs(t, err, domain.ErrInstallFailed)
	})

	t.Run("rejects positional arguments", func(t *testing.T) {
		mock := &mockApp{
			installFunc: func(_ context.Context, _ app.Options) error {
				panic("should not be called")
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"puppetfile", "install", "extra"})
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))

		require.Error(t, cli.Execute(context.Background()))
	})
}

func TestCommands_Purge(t *testing.T) {
	t.Run("dry run lists stale paths", func(t *testing.T) {
		var captured app.Options
		mock := &mockApp{
			purgeFunc: func(_ context.Context, opts app.Options) (*domain.PurgeReport, error) {
				captured = opts
				return &domain.PurgeReport{Removed: []string{"/srv/modules/old", "/srv/modules/stale"}}, nil
			},
		}

		cli := commands.New(mock)
		buf := new(bytes.Buffer)
		cli.SetOutput(buf, buf)
		cli.SetArgs([]string{"puppetfile", "purge", "-n", "--root", "/srv/puppet"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.True(t, captured.DryRun)
		assert.Equal(t, "/srv/puppet", captured.Overrides.Root)
		assert.Equal(t, "/srv/modules/old\n/srv/modules/stale\n", buf.String())
	})

	t.Run("real run prints nothing", func(t *testing.T) {
		mock := &mockApp{
			purgeFunc: func(_ context.Context, _ app.Options) (*domain.PurgeReport, error) {
				return &domain.PurgeReport{Removed: []string{"/srv/modules/old"}}, nil
			},
		}

		cli := commands.New(mock)
		buf := new(bytes.Buffer)
		cli.SetOutput(buf, buf)
		cli.SetArgs([]string{"puppetfile", "purge"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.Empty(t, buf.String())
	})

	t.Run("returns error on purge failure", func(t *testing.T) {
		mock := &mockApp{
			purgeFunc: func(_ context.Context, _ app.Options) (*domain.PurgeReport, error) {
				return nil, errors.New("simulated error")
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"puppetfile", "purge"})
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))

		err := cli.Execute(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "simulated error")
	})
}

func TestCommands_Version(t *testing.T) {
	mock := &mockApp{}
	cli := commands.New(mock)

	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs([]string{"version"})

	err := cli.Execute(context.Background())
	require.NoError(t, err)

	assert.Contains(t, buf.String(), build.Version)
}
