package config

// Puppetfile represents the structure of the YAML Puppetfile.
type Puppetfile struct {
	Moduledir       string      `yaml:"moduledir"`
	Purge           *bool       `yaml:"purge"`
	PurgeExclusions []string    `yaml:"purge_exclusions"`
	Forge           string      `yaml:"forge"`
	Modules         []ModuleDTO `yaml:"modules"`
}

// ModuleDTO represents one module declaration. Exactly one of Git, SVN and
// Local may be set; a module with none of them comes from the forge.
type ModuleDTO struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Git         string `yaml:"git"`
	Ref         string `yaml:"ref"`
	SVN         string `yaml:"svn"`
	Revision    string `yaml:"revision"`
	Local       string `yaml:"local"`
	InstallPath string `yaml:"install_path"`
}
