// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for tfrun.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/tfrun/tfrun/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tfrun",
		Short: "Run Terraform deployments with hooks and per-environment variable files",
		Long: TitleStyle.Render("tfrun") + SubtitleStyle.Render(" - Terraform deployment runner") + `

tfrun runs one Terraform action for one component and environment. It picks
the variable files of the environment, sources the "before" hooks, runs
Terraform, checks its output for errors and sources the "after" hooks.
Variables exported by a hook are visible to everything that runs after it.

` + SubtitleStyle.Render("Layout:") + `
  environments/<env>.tfvars, environments/<env>-<version>.tfvars
  hooks/before*, hooks/after*
  components/<component>/{environments,hooks}/

` + SubtitleStyle.Render("Examples:") + `
  tfrun plan network --env dev --version 1.4     Plan the network component
  tfrun apply network -e prod --version 1.4      Apply it to prod
  tfrun describe network -e dev --version 1.4    Show what a run would do
  tfrun status network -e dev                    Show the last run's result
  tfrun config show                              Show current configuration`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/tfrun/config.cue)")

	rootCmd.AddCommand(newRunCommand(app))
	for _, action := range actionAliases {
		rootCmd.AddCommand(newActionCommand(app, action))
	}
	rootCmd.AddCommand(newDescribeCommand(app))
	rootCmd.AddCommand(newStatusCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with the resulting exit code.
// This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(errorHandler(app)),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// errorHandler prints errors that the commands did not render themselves.
func errorHandler(app *App) fang.ErrorHandler {
	return func(w io.Writer, styles fang.Styles, err error) {
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Err == nil {
			return
		}
		var ae *issue.ActionableError
		if errors.As(err, &ae) {
			fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, app.verbose))
			return
		}
		fang.DefaultErrorHandler(w, styles, err)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
