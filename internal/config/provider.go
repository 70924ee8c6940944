// SPDX-License-Identifier: MPL-2.0

package config

import "context"

type (
	// LoadOptions selects the configuration file. The first existing file of
	// ConfigFilePath, <config dir>/config.cue and <SearchDir>/tfrun.cue wins.
	LoadOptions struct {
		// ConfigFilePath forces loading from a specific config file when set.
		ConfigFilePath string
		// ConfigDirPath replaces ConfigDir() when set.
		ConfigDirPath string
		// SearchDir is where tfrun.cue is looked up, usually the source
		// directory of a run. Defaults to the working directory.
		SearchDir string
	}

	// Provider loads configuration from explicit options.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Config, error)
	}

	fileProvider struct{}
)

// NewProvider creates a provider that reads CUE files and TFRUN_* variables.
func NewProvider() Provider {
	return &fileProvider{}
}

func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := loadWithOptions(ctx, opts)
	return cfg, err
}

// Locate returns the config file Load would read, or "" when none exists.
func Locate(opts LoadOptions) (string, error) {
	return resolveConfigFile(opts)
}
