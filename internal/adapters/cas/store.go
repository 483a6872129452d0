// Package cas stores deployment records, one JSON file per install path.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.DeploymentStore = (*Store)(nil)

// Store implements ports.DeploymentStore using a file-per-install-path strategy.
type Store struct{}

// NewStore creates a new DeploymentStore. Every operation takes the cache
// directory explicitly.
func NewStore() *Store {
	return &Store{}
}

// Get retrieves the deployment recorded for installPath.
func (s *Store) Get(cacheDir, installPath string) (*domain.Deployment, error) {
	filename := s.filename(cacheDir, installPath)
	//nolint:gosec // Path is constructed from trusted directory and hashed filename
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "path", installPath)
	}

	var deployment domain.Deployment
	if err := json.Unmarshal(data, &deployment); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreUnmarshalFailed.Error()), "path", installPath)
	}

	return &deployment, nil
}

// Put stores the deployment, replacing any earlier record for the same install path.
func (s *Store) Put(cacheDir string, deployment domain.Deployment) error {
	data, err := json.MarshalIndent(deployment, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreMarshalFailed.Error())
	}

	filename := s.filename(cacheDir, deployment.InstallPath)
	if err := os.MkdirAll(filepath.Dir(filename), domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreCreateFailed.Error())
	}

	// Write then rename so an interrupted run never leaves a truncated record.
	tmp := filename + ".tmp"
	//nolint:gosec // Path is constructed from trusted directory and hashed filename
	if err := os.WriteFile(tmp, data, domain.FilePerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	if err := os.Rename(tmp, filename); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}

	return nil
}

func (s *Store) filename(cacheDir, installPath string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(installPath)))
	return filepath.Join(domain.DeploymentsPath(cacheDir), hex.EncodeToString(hash[:])+".json")
}
