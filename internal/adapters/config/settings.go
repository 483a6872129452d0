package config

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports"
	"github.com/spf13/viper"
	"go.trai.ch/zerr"
)

// EnvPrefix is the prefix of environment variables read as settings.
const EnvPrefix = "R10K"

// settingKeys are the keys read from the settings file and the environment.
var settingKeys = []string{
	"root",
	"puppetfile",
	"moduledir",
	"force",
	"cachedir",
	"pool_size",
	"forge",
	"log_file",
	"json",
}

var _ ports.SettingsLoader = (*SettingsLoader)(nil)

// SettingsLoader implements ports.SettingsLoader with viper.
type SettingsLoader struct{}

// NewSettingsLoader creates a new settings loader.
func NewSettingsLoader() *SettingsLoader {
	return &SettingsLoader{}
}

// Load reads <root>/r10k.yaml, or configPath when given, then applies
// R10K_* environment variables on top. A missing default settings file is
// not an error; a missing explicit one is.
func (l *SettingsLoader) Load(root, configPath string) (domain.Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for _, key := range settingKeys {
		if err := v.BindEnv(key); err != nil {
			return domain.Settings{}, zerr.With(errors.Join(domain.ErrSettingsLoadFailed, err), "key", key)
		}
	}

	path := configPath
	if path == "" {
		path = filepath.Join(root, domain.SettingsFileName)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if configPath != "" || !errors.Is(err, fs.ErrNotExist) {
			return domain.Settings{}, zerr.With(errors.Join(domain.ErrSettingsLoadFailed, err), "path", path)
		}
	}

	var settings domain.Settings
	if err := v.Unmarshal(&settings); err != nil {
		return domain.Settings{}, zerr.With(errors.Join(domain.ErrSettingsLoadFailed, err), "path", path)
	}
	return settings, nil
}
