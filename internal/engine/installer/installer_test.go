package installer_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports/mocks"
	"github.com/smortex/r10k/internal/engine/installer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func modules(n int) []domain.ModuleSpec {
	specs := make([]domain.ModuleSpec, n)
	for i := range n {
		name := fmt.Sprintf("modname%d", i+1)
		specs[i] = domain.ModuleSpec{
			Name:        domain.ModuleName{Owner: "author", Name: name},
			InstallPath: "/some/nonexistent/path/modules/" + name,
			Source: domain.Source{
				Kind:     domain.SourceGit,
				Location: "https://example.com/" + name + ".git",
				Ref:      "main",
			},
		}
	}
	return specs
}

func manifestOf(specs []domain.ModuleSpec) *domain.Manifest {
	return &domain.Manifest{
		Modules:         specs,
		ModuleDir:       "/some/nonexistent/path/modules",
		ManagedDirs:     []string{"/some/nonexistent/path/modules"},
		PurgeExclusions: []string{"/some/nonexistent/path/modules/**/**.rb"},
		Purge:           true,
	}
}

func TestInstall_AllModulesSucceed(t *testing.T) {
	ctrl := gomock.NewController(t)
	syncer := mocks.NewMockSyncer(ctrl)
	purger := mocks.NewMockPurger(ctrl)

	specs := modules(4)
	for _, spec := range specs {
		syncer.EXPECT().Sync(gomock.Any(), spec).Return(domain.Synced(spec, true)).Times(1)
	}
	purger.EXPECT().Purge(gomock.Any(), domain.PurgeRequest{
		ManagedDirs: []string{"/some/nonexistent/path/modules"},
		Desired: []string{
			"/some/nonexistent/path/modules/modname1",
			"/some/nonexistent/path/modules/modname2",
			"/some/nonexistent/path/modules/modname3",
			"/some/nonexistent/path/modules/modname4",
		},
		Exclusions: []string{"/some/nonexistent/path/modules/**/**.rb"},
	}).Return(&domain.PurgeReport{}, nil)

	report := installer.NewInstaller(syncer, purger, 4).Install(context.Background(), manifestOf(specs))

	assert.True(t, report.OK())
	require.Len(t, report.Results, 4)
	for i, res := range report.Results {
		assert.Equal(t, specs[i], res.Module, "results keep manifest order")
	}
}

func TestInstall_FailedModuleDoesNotStopOthers(t *testing.T) {
	ctrl := gomock.NewController(t)
	syncer := mocks.NewMockSyncer(ctrl)
	purger := mocks.NewMockPurger(ctrl)

	specs := modules(4)
	for _, spec := range specs[:3] {
		syncer.EXPECT().Sync(gomock.Any(), spec).Return(domain.Synced(spec, true)).Times(1)
	}
	syncer.EXPECT().Sync(gomock.Any(), specs[3]).
		Return(domain.Failed(specs[3], errors.Join(domain.ErrSyncFailed, errors.New("clone failed")))).Times(1)

	purger.EXPECT().Purge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req domain.PurgeRequest) (*domain.PurgeReport, error) {
			assert.NotContains(t, req.Desired, specs[3].InstallPath, "failed modules contribute no desired paths")
			assert.Len(t, req.Desired, 3)
			return &domain.PurgeReport{}, nil
		})

	report := installer.NewInstaller(syncer, purger, 1).Install(context.Background(), manifestOf(specs))

	assert.False(t, report.OK())
	for _, res := range report.Results[:3] {
		assert.True(t, res.OK())
	}
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "modname4", failed[0].Module.Name.Name)
	assert.Equal(t, domain.KindSync, failed[0].Kind())
}

func TestInstall_PanickingModuleIsRecorded(t *testing.T) {
	ctrl := gomock.NewController(t)
	syncer := mocks.NewMockSyncer(ctrl)
	purger := mocks.NewMockPurger(ctrl)

	specs := modules(3)
	syncer.EXPECT().Sync(gomock.Any(), specs[0]).Return(domain.Synced(specs[0], true))
	syncer.EXPECT().Sync(gomock.Any(), specs[1]).DoAndReturn(
		func(context.Context, domain.ModuleSpec) domain.SyncResult {
			panic("boom")
		})
	syncer.EXPECT().Sync(gomock.Any(), specs[2]).Return(domain.Synced(specs[2], true))
	purger.EXPECT().Purge(gomock.Any(), gomock.Any()).Return(&domain.PurgeReport{}, nil)

	report := installer.NewInstaller(syncer, purger, 2).Install(context.Background(), manifestOf(specs))

	assert.False(t, report.OK())
	require.Len(t, report.Failed(), 1)
	assert.True(t, errors.Is(report.Failed()[0].Err, domain.ErrModulePanicked))
	assert.True(t, report.Results[2].OK())
}

func TestInstall_PurgeFailureFailsRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	syncer := mocks.NewMockSyncer(ctrl)
	purger := mocks.NewMockPurger(ctrl)

	specs := modules(1)
	syncer.EXPECT().Sync(gomock.Any(), specs[0]).Return(domain.Synced(specs[0], true))

	failure := domain.PurgeFailure{
		Path: "/some/nonexistent/path/modules/locked",
		Err:  errors.Join(domain.ErrPurgeFailed, errors.New("permission denied")),
	}
	purger.EXPECT().Purge(gomock.Any(), gomock.Any()).
		Return(&domain.PurgeReport{Failures: []domain.PurgeFailure{failure}}, failure.Err)

	report := installer.NewInstaller(syncer, purger, 1).Install(context.Background(), manifestOf(specs))

	assert.False(t, report.OK())
	assert.Empty(t, report.Failed())
	require.Len(t, report.Purge.Failures, 1)
	assert.Equal(t, domain.KindPurgeIO, domain.ClassifyError(report.Purge.Failures[0].Err))
}

func TestInstall_PurgeErrorWithoutReport(t *testing.T) {
	ctrl := gomock.NewController(t)
	syncer := mocks.NewMockSyncer(ctrl)
	purger := mocks.NewMockPurger(ctrl)

	purger.EXPECT().Purge(gomock.Any(), gomock.Any()).Return(nil, errors.New("walk failed"))

	report := installer.NewInstaller(syncer, purger, 1).Install(context.Background(), manifestOf(nil))

	assert.False(t, report.OK())
	require.Len(t, report.Purge.Failures, 1)
}

func TestInstall_PurgeDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	syncer := mocks.NewMockSyncer(ctrl)
	purger := mocks.NewMockPurger(ctrl)

	specs := modules(1)
	syncer.EXPECT().Sync(gomock.Any(), specs[0]).Return(domain.Synced(specs[0], true))
	purger.EXPECT().Purge(gomock.Any(), gomock.Any()).Times(0)

	manifest := manifestOf(specs)
	manifest.Purge = false

	report := installer.NewInstaller(syncer, purger, 1).Install(context.Background(), manifest)
	assert.True(t, report.OK())
	assert.Nil(t, report.Purge)
}

func TestInstall_SerializesWithinCacheKey(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		syncer := mocks.NewMockSyncer(ctrl)
		purger := mocks.NewMockPurger(ctrl)

		// Three modules share one upstream, two have their own.
		specs := modules(5)
		for _, i := range []int{0, 2, 4} {
			specs[i].Source.Location = "https://example.com/shared.git"
			specs[i].Source.Ref = fmt.Sprintf("v%d", i)
		}

		var mu sync.Mutex
		active := map[domain.CacheKey]int{}
		maxPerKey := map[domain.CacheKey]int{}
		running, maxRunning := 0, 0

		syncer.EXPECT().Sync(gomock.Any(), gomock.Any()).Times(5).DoAndReturn(
			func(_ context.Context, spec domain.ModuleSpec) domain.SyncResult {
				key := spec.CacheKey()
				mu.Lock()
				active[key]++
				running++
				maxPerKey[key] = max(maxPerKey[key], active[key])
				maxRunning = max(maxRunning, running)
				mu.Unlock()

				time.Sleep(time.Second)

				mu.Lock()
				active[key]--
				running--
				mu.Unlock()
				return domain.Synced(spec, true)
			})
		purger.EXPECT().Purge(gomock.Any(), gomock.Any()).Return(&domain.PurgeReport{}, nil)

		start := time.Now()
		report := installer.NewInstaller(syncer, purger, 4).Install(context.Background(), manifestOf(specs))

		assert.True(t, report.OK())
		for key, n := range maxPerKey {
			assert.Equal(t, 1, n, "concurrent syncs for %s", key)
		}
		assert.Equal(t, 3, maxRunning, "distinct keys run in parallel")
		assert.Equal(t, 3*time.Second, time.Since(start), "the shared group bounds the run")
	})
}

func TestInstall_PoolSizeBoundsGroups(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		syncer := mocks.NewMockSyncer(ctrl)
		purger := mocks.NewMockPurger(ctrl)

		var mu sync.Mutex
		running, maxRunning := 0, 0
		syncer.EXPECT().Sync(gomock.Any(), gomock.Any()).Times(6).DoAndReturn(
			func(_ context.Context, spec domain.ModuleSpec) domain.SyncResult {
				mu.Lock()
				running++
				maxRunning = max(maxRunning, running)
				mu.Unlock()
				time.Sleep(time.Second)
				mu.Lock()
				running--
				mu.Unlock()
				return domain.Synced(spec, true)
			})
		purger.EXPECT().Purge(gomock.Any(), gomock.Any()).Return(&domain.PurgeReport{}, nil)

		installer.NewInstaller(syncer, purger, 2).Install(context.Background(), manifestOf(modules(6)))
		assert.Equal(t, 2, maxRunning)
	})
}
