package domain

import "path/filepath"

const (
	// PuppetfileName is the default name of the manifest in the root directory.
	PuppetfileName = "Puppetfile"

	// ModuleDirName is the default name of the module directory in the root directory.
	ModuleDirName = "modules"

	// SettingsFileName is the name of the optional settings file.
	SettingsFileName = "r10k.yaml"

	// CacheDirName is the name of the cache directory under the user cache home.
	CacheDirName = "r10k"

	// MirrorsDirName is the name of the directory holding shared mirrors.
	MirrorsDirName = "mirrors"

	// DeploymentsDirName is the name of the directory holding deployment records.
	DeploymentsDirName = "deployments"

	// DefaultForgeBaseURL is the forge API used when none is configured.
	DefaultForgeBaseURL = "https://forgeapi.puppet.com"

	// DefaultPoolSize is the default number of cache-key groups synced in parallel.
	DefaultPoolSize = 4

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// MirrorsPath returns the directory holding shared mirrors under cacheDir.
func MirrorsPath(cacheDir string) string {
	return filepath.Join(cacheDir, MirrorsDirName)
}

// DeploymentsPath returns the directory holding deployment records under cacheDir.
func DeploymentsPath(cacheDir string) string {
	return filepath.Join(cacheDir, DeploymentsDirName)
}
