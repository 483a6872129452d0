package domain

import (
	"errors"

	"go.trai.ch/zerr"
)

var (
	// ErrCacheCreationFailed is returned when the shared mirror for a cache key cannot be created.
	// The cache entry stays poisoned for the rest of the run.
	ErrCacheCreationFailed = zerr.New("failed to create cache mirror")

	// ErrLocalModification is returned when an install path holds local changes and force is not set.
	ErrLocalModification = zerr.New("install path has local modifications")

	// ErrSyncFailed is returned when fetching or materializing a module fails.
	ErrSyncFailed = zerr.New("module sync failed")

	// ErrPurgeFailed is returned when a path cannot be read or removed during purge.
	ErrPurgeFailed = zerr.New("failed to purge path")

	// ErrInstallFailed is returned when at least one module or purge operation failed.
	ErrInstallFailed = zerr.New("puppetfile install failed")

	// ErrModulePanicked is returned when a module sync panicked and was recovered.
	ErrModulePanicked = zerr.New("module sync panicked")

	// ErrUnknownSourceKind is returned when a source kind is not git, forge, svn or local.
	ErrUnknownSourceKind = zerr.New("unknown source kind")

	// ErrNoTransport is returned when no transport is configured for a source kind.
	ErrNoTransport = zerr.New("no transport configured for source kind")

	// ErrInvalidModuleName is returned when a module name is not of the form owner/name or owner-name.
	ErrInvalidModuleName = zerr.New("invalid module name, expected owner/name")

	// ErrInstallPathNotAbsolute is returned when a module install path is relative.
	ErrInstallPathNotAbsolute = zerr.New("module install path must be absolute")

	// ErrMissingLocation is returned when a module source has no location.
	ErrMissingLocation = zerr.New("module source location is empty")

	// ErrDuplicateInstallPath is returned when two modules resolve to the same install path.
	ErrDuplicateInstallPath = zerr.New("duplicate module install path")

	// ErrAmbiguousSource is returned when a manifest entry declares more than one source.
	ErrAmbiguousSource = zerr.New("module declares more than one source")

	// ErrManifestReadFailed is returned when the manifest file cannot be read.
	ErrManifestReadFailed = zerr.New("failed to read puppetfile")

	// ErrManifestParseFailed is returned when the manifest file cannot be parsed.
	ErrManifestParseFailed = zerr.New("failed to parse puppetfile")

	// ErrSettingsLoadFailed is returned when the settings file cannot be loaded.
	ErrSettingsLoadFailed = zerr.New("failed to load settings")

	// ErrRefNotFound is returned when a ref cannot be resolved in a mirror.
	ErrRefNotFound = zerr.New("ref not found in mirror")

	// ErrMirrorFetchFailed is returned when a mirror cannot be fetched from its upstream.
	ErrMirrorFetchFailed = zerr.New("failed to fetch mirror")

	// ErrCheckoutFailed is returned when a working copy cannot be checked out.
	ErrCheckoutFailed = zerr.New("failed to check out working copy")

	// ErrSourceNotFound is returned when a local module source directory does not exist.
	ErrSourceNotFound = zerr.New("module source not found")

	// ErrForgeRequestFailed is returned when a forge API request fails.
	ErrForgeRequestFailed = zerr.New("forge request failed")

	// ErrForgeReleaseNotFound is returned when a forge module release does not exist.
	ErrForgeReleaseNotFound = zerr.New("forge release not found")

	// ErrArchiveInvalid is returned when a module archive cannot be extracted.
	ErrArchiveInvalid = zerr.New("invalid module archive")

	// ErrStoreReadFailed is returned when a deployment record cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read deployment record")

	// ErrStoreUnmarshalFailed is returned when a deployment record cannot be unmarshaled.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal deployment record")

	// ErrStoreMarshalFailed is returned when a deployment record cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal deployment record")

	// ErrStoreCreateFailed is returned when the deployment store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create deployment store directory")

	// ErrStoreWriteFailed is returned when a deployment record cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write deployment record")

	// ErrFileOpenFailed is returned when a file cannot be opened.
	ErrFileOpenFailed = zerr.New("failed to open file")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrPathStatFailed is returned when stating a path fails.
	ErrPathStatFailed = zerr.New("failed to stat path")

	// ErrCopyFailed is returned when copying a module tree fails.
	ErrCopyFailed = zerr.New("failed to copy module tree")
)

// ErrorKind classifies a module or purge failure.
type ErrorKind string

const (
	// KindCacheCreation is a mirror that could not be created.
	KindCacheCreation ErrorKind = "cache-creation"
	// KindLocalModification is divergent local content without force.
	KindLocalModification ErrorKind = "local-modification"
	// KindSync is any other fetch or checkout failure.
	KindSync ErrorKind = "sync"
	// KindPurgeIO is an unreadable or undeletable path during purge.
	KindPurgeIO ErrorKind = "purge-io"
)

// ClassifyError maps an error to its ErrorKind.
// Errors that match no specific sentinel are sync failures.
func ClassifyError(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrCacheCreationFailed):
		return KindCacheCreation
	case errors.Is(err, ErrLocalModification):
		return KindLocalModification
	case errors.Is(err, ErrPurgeFailed):
		return KindPurgeIO
	default:
		return KindSync
	}
}
