// Package app implements the application layer for r10k.
package app

import (
	"context"
	"fmt"
	"maps"

	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports"
	"github.com/smortex/r10k/internal/engine/cache"
	"github.com/smortex/r10k/internal/engine/installer"
	"github.com/smortex/r10k/internal/engine/syncer"
	"go.trai.ch/zerr"
)

// ForgeFactory builds the forge transport for a run from the forge base URL.
type ForgeFactory func(baseURL string) ports.Transport

// logConfigurer is implemented by loggers that can switch format and add a file sink.
type logConfigurer interface {
	SetJSON(enable bool)
	SetFile(path string) error
}

// Options configures one run.
type Options struct {
	// Overrides are applied on top of the settings file and the environment.
	Overrides domain.Settings
	// ConfigPath overrides the settings file location.
	ConfigPath string
	// DryRun only reports what purge would remove.
	DryRun bool
}

// App represents the main application logic.
type App struct {
	settingsLoader ports.SettingsLoader
	manifestLoader ports.ManifestLoader
	logger         ports.Logger
	telemetry      ports.Telemetry
	store          ports.DeploymentStore
	hasher         ports.TreeHasher
	purger         ports.Purger
	transports     syncer.Transports
	forge          ForgeFactory
}

// New creates a new App instance. transports serve every source kind except
// forge, whose transport is built per run by forge.
func New(
	settingsLoader ports.SettingsLoader,
	manifestLoader ports.ManifestLoader,
	log ports.Logger,
	telemetry ports.Telemetry,
	store ports.DeploymentStore,
	hasher ports.TreeHasher,
	purger ports.Purger,
	transports syncer.Transports,
	forge ForgeFactory,
) *App {
	return &App{
		settingsLoader: settingsLoader,
		manifestLoader: manifestLoader,
		logger:         log,
		telemetry:      telemetry,
		store:          store,
		hasher:         hasher,
		purger:         purger,
		transports:     transports,
		forge:          forge,
	}
}

// InstallPuppetfile syncs every module of the Puppetfile, then purges stale
// content. Module failures do not stop the run; each one is logged and the
// run returns domain.ErrInstallFailed.
func (a *App) InstallPuppetfile(ctx context.Context, opts Options) error {
	settings, manifest, err := a.load(ctx, opts)
	if err != nil {
		return err
	}

	forgeURL := settings.ForgeBaseURL
	if manifest.ForgeBaseURL != "" {
		forgeURL = manifest.ForgeBaseURL
	}
	transports := maps.Clone(a.transports)
	if transports == nil {
		transports = syncer.Transports{}
	}
	if a.forge != nil {
		transports[domain.SourceForge] = a.forge(forgeURL)
	}

	manager := cache.NewManager(domain.MirrorsPath(settings.CacheDir))
	modSyncer := syncer.NewSyncer(manager, transports, a.store, a.hasher, a.telemetry, a.logger, settings.CacheDir)
	report := installer.NewInstaller(modSyncer, a.purger, settings.PoolSize).Install(ctx, manifest)

	return a.summarize(report)
}

// PurgePuppetfile runs the purge pass alone, keeping every declared module.
// With opts.DryRun nothing is deleted.
func (a *App) PurgePuppetfile(ctx context.Context, opts Options) (*domain.PurgeReport, error) {
	_, manifest, err := a.load(ctx, opts)
	if err != nil {
		return nil, err
	}

	var desired []string
	for _, spec := range manifest.Modules {
		desired = append(desired, spec.DesiredPaths()...)
	}

	report, err := a.purger.Purge(ctx, domain.PurgeRequest{
		ManagedDirs: manifest.ManagedDirs,
		Desired:     desired,
		Exclusions:  manifest.PurgeExclusions,
		DryRun:      opts.DryRun,
	})
	if err != nil {
		return report, zerr.Wrap(err, "purge failed")
	}
	return report, nil
}

func (a *App) load(ctx context.Context, opts Options) (domain.Settings, *domain.Manifest, error) {
	root := opts.Overrides.Root
	if root == "" {
		root = domain.DefaultSettings().Root
	}

	fromFile, err := a.settingsLoader.Load(root, opts.ConfigPath)
	if err != nil {
		return domain.Settings{}, nil, err
	}
	settings := domain.DefaultSettings().Merge(fromFile).Merge(opts.Overrides)

	if err := a.configureLogging(settings); err != nil {
		return domain.Settings{}, nil, err
	}

	manifest, err := a.manifestLoader.Load(ctx, settings)
	if err != nil {
		return domain.Settings{}, nil, zerr.Wrap(err, "failed to load puppetfile")
	}
	return settings, manifest, nil
}

func (a *App) configureLogging(settings domain.Settings) error {
	lc, ok := a.logger.(logConfigurer)
	if !ok {
		return nil
	}
	lc.SetJSON(settings.JSONLogs)
	if err := lc.SetFile(settings.LogFile); err != nil {
		return zerr.With(err, "log_file", settings.LogFile)
	}
	return nil
}

func (a *App) summarize(report *domain.InstallReport) error {
	changed := 0
	for _, res := range report.Results {
		if res.OK() && res.Changed {
			changed++
		}
	}

	failed := report.Failed()
	for _, res := range failed {
		err := zerr.With(res.Err, "module", res.Module.Name.String())
		a.logger.Error(zerr.With(err, "kind", string(res.Kind())))
	}

	var purgeFailures int
	if report.Purge != nil {
		purgeFailures = len(report.Purge.Failures)
		for _, f := range report.Purge.Failures {
			a.logger.Error(zerr.With(f.Err, "kind", string(domain.ClassifyError(f.Err))))
		}
	}

	a.logger.Info(fmt.Sprintf("Synced %d of %d modules (%d changed)",
		len(report.Results)-len(failed), len(report.Results), changed))

	if report.OK() {
		return nil
	}
	err := zerr.Wrap(domain.ErrInstallFailed, fmt.Sprintf("%d modules failed, %d purge errors", len(failed), purgeFailures))
	return zerr.With(zerr.With(err, "failed_modules", len(failed)), "purge_errors", purgeFailures)
}
