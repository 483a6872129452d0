package domain

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Settings holds the process-wide options of one install run.
// It is built once per run and passed down by value.
type Settings struct {
	// Root is the directory holding the Puppetfile and the default module directory.
	Root string `mapstructure:"root"`
	// Puppetfile overrides the manifest path. Empty means <Root>/Puppetfile.
	Puppetfile string `mapstructure:"puppetfile"`
	// Moduledir overrides the module directory. Empty means the manifest value or <Root>/modules.
	Moduledir string `mapstructure:"moduledir"`
	// Force discards local modifications instead of failing the module.
	Force bool `mapstructure:"force"`
	// CacheDir holds mirrors, staging and deployment records.
	CacheDir string `mapstructure:"cachedir"`
	// PoolSize bounds the number of cache-key groups synced in parallel.
	PoolSize int `mapstructure:"pool_size"`
	// ForgeBaseURL is the forge API endpoint. The manifest can override it.
	ForgeBaseURL string `mapstructure:"forge"`
	// LogFile, when set, receives JSON logs through a rotating writer.
	LogFile string `mapstructure:"log_file"`
	// JSONLogs switches console logging to JSON.
	JSONLogs bool `mapstructure:"json"`
}

// DefaultSettings returns the settings used when nothing is overridden.
func DefaultSettings() Settings {
	return Settings{
		Root:         ".",
		CacheDir:     filepath.Join(xdg.CacheHome, CacheDirName),
		PoolSize:     DefaultPoolSize,
		ForgeBaseURL: DefaultForgeBaseURL,
	}
}

// Merge returns a copy of s where every non-zero field of overrides replaces
// the current value. Zero override fields leave s untouched.
func (s Settings) Merge(overrides Settings) Settings {
	merged := s
	if overrides.Root != "" {
		merged.Root = overrides.Root
	}
	if overrides.Puppetfile != "" {
		merged.Puppetfile = overrides.Puppetfile
	}
	if overrides.Moduledir != "" {
		merged.Moduledir = overrides.Moduledir
	}
	if overrides.Force {
		merged.Force = true
	}
	if overrides.CacheDir != "" {
		merged.CacheDir = overrides.CacheDir
	}
	if overrides.PoolSize > 0 {
		merged.PoolSize = overrides.PoolSize
	}
	if overrides.ForgeBaseURL != "" {
		merged.ForgeBaseURL = overrides.ForgeBaseURL
	}
	if overrides.LogFile != "" {
		merged.LogFile = overrides.LogFile
	}
	if overrides.JSONLogs {
		merged.JSONLogs = true
	}
	return merged
}

// ManifestPath returns the custom Puppetfile path, or <Root>/Puppetfile.
func (s Settings) ManifestPath() string {
	if s.Puppetfile != "" {
		return s.Puppetfile
	}
	return filepath.Join(s.Root, PuppetfileName)
}

// ModuleDir resolves the module directory. A custom Moduledir wins, then the
// manifest's moduledir, then <Root>/modules. Relative values are joined to Root.
func (s Settings) ModuleDir(fromManifest string) string {
	dir := fromManifest
	switch {
	case s.Moduledir != "":
		dir = s.Moduledir
	case fromManifest == "":
		return filepath.Join(s.Root, ModuleDirName)
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(s.Root, dir)
}
