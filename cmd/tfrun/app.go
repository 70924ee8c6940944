// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/tfrun/tfrun/internal/config"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives an App and loads configuration through it.
	App struct {
		Config ConfigProvider
		stdout io.Writer
		stderr io.Writer

		// set by persistent flags
		verbose bool
		cfgFile string
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}
)

// NewApp creates an App, filling nil dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// loadConfig loads configuration honoring --config, and applies ui.verbose
// unless --verbose was given. searchDir is where tfrun.cue is looked up.
func (a *App) loadConfig(ctx context.Context, searchDir string) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, a.loadOptions(searchDir))
	if err != nil {
		return nil, err
	}
	if cfg.UI.Verbose {
		a.verbose = true
	}
	return cfg, nil
}

func (a *App) loadOptions(searchDir string) config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: a.cfgFile, SearchDir: searchDir}
}

// logger returns the CLI logger on stderr. Verbose mode enables debug output.
func (a *App) logger() *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{Prefix: "tfrun"})
	if a.verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
