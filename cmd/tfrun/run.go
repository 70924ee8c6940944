// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tfrun/tfrun/internal/config"
	"github.com/tfrun/tfrun/internal/deploy"
	"github.com/tfrun/tfrun/internal/issue"
	"github.com/tfrun/tfrun/internal/runtime"
)

// actionAliases get a top-level command each, e.g. `tfrun plan <component>`.
var actionAliases = []string{"init", "plan", "apply", "destroy"}

type runFlags struct {
	environment   string
	version       string
	action        string
	taskName      string
	sourceDir     string
	terraformPath string
	logDir        string

	logOutput       bool
	failOnLogErrors bool
	hookShell       string
	shell           string
	timeout         time.Duration
	envFiles        []string
	envVars         []string
}

func newRunCommand(app *App) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <component>",
		Short: "Run a Terraform action for a component",
		Long: `Run a Terraform action for a component and environment.

The run sources hooks/before* and components/<component>/hooks/<task>-before.*,
runs terraform <action> in the component directory with every matching
variable file, then sources the matching "after" hooks. Every hook runs in
the component directory too. The first failing step ends the run.

--env defaults to dev and --version to undefined.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeployment(cmd, app, f, args[0])
		},
	}
	cmd.Flags().StringVar(&f.action, "action", "plan", "terraform subcommand to run")
	f.registerTarget(cmd.Flags())
	f.registerExecution(cmd.Flags())
	return cmd
}

// newActionCommand creates a shortcut for `run --action <action>`.
func newActionCommand(app *App, action string) *cobra.Command {
	f := &runFlags{action: action}
	cmd := &cobra.Command{
		Use:   action + " <component>",
		Short: fmt.Sprintf("Run terraform %s for a component", action),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeployment(cmd, app, f, args[0])
		},
	}
	f.registerTarget(cmd.Flags())
	f.registerExecution(cmd.Flags())
	return cmd
}

// registerTarget adds the flags that select what a run works on.
func (f *runFlags) registerTarget(flags *pflag.FlagSet) {
	flags.StringVarP(&f.environment, "env", "e", deploy.DefaultEnvironment, "target environment (selects environments/<env>.tfvars)")
	flags.StringVar(&f.version, "version", deploy.DefaultVersion, "version suffix (selects environments/<env>-<version>.tfvars)")
	flags.StringVar(&f.taskName, "task-name", "", "prefix of component hook names (default: the action)")
	flags.StringVarP(&f.sourceDir, "source-dir", "C", ".", "directory holding environments/, hooks/ and components/")
	flags.StringVar(&f.terraformPath, "terraform", "", "terraform binary (default: terraform_path from config, then PATH)")
	flags.StringVar(&f.logDir, "log-dir", "", "root of run log directories (default: <source-dir>/.tfrun/logs)")
}

// registerExecution adds the flags that change how a run behaves.
func (f *runFlags) registerExecution(flags *pflag.FlagSet) {
	flags.BoolVar(&f.logOutput, "log-output", true, "echo terraform output into the run log")
	flags.BoolVar(&f.failOnLogErrors, "fail-on-log-errors", true, "fail when terraform output contains 'Error: ' lines")
	flags.StringVar(&f.hookShell, "hook-shell", "", "how hooks are sourced: native or virtual")
	flags.StringVar(&f.shell, "shell", "", "shell used to source hooks natively")
	flags.DurationVar(&f.timeout, "timeout", 0, "timeout for each hook and terraform step (0 means none)")
	flags.StringArrayVar(&f.envFiles, "env-file", nil, "load environment variables from a dotenv file (suffix '?' for optional)")
	flags.StringArrayVar(&f.envVars, "env-var", nil, "set an environment variable (KEY=VALUE)")
}

// request merges configuration and flags into a run request. A flag given on
// the command line wins over the configuration.
func (f *runFlags) request(flags *pflag.FlagSet, cfg *config.Config, component string) (deploy.Request, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return deploy.Request{}, err
	}
	req := deploy.Request{
		Component:       component,
		Environment:     f.environment,
		Version:         f.version,
		Action:          f.action,
		TaskName:        f.taskName,
		TerraformPath:   cfg.TerraformPath,
		LogDir:          cfg.LogDir,
		LogOutput:       cfg.LogTerraformOutput,
		FailOnLogErrors: cfg.FailOnLogErrors,
		HookShell:       runtime.HookShell(cfg.HookShell),
		Shell:           cfg.Shell,
		Timeout:         timeout,
		EnvFiles:        f.envFiles,
	}

	if flags.Changed("terraform") {
		req.TerraformPath = f.terraformPath
	}
	if flags.Changed("log-dir") {
		req.LogDir = f.logDir
	}
	if flags.Changed("log-output") {
		req.LogOutput = f.logOutput
	}
	if flags.Changed("fail-on-log-errors") {
		req.FailOnLogErrors = f.failOnLogErrors
	}
	if flags.Changed("hook-shell") {
		req.HookShell = runtime.HookShell(f.hookShell)
	}
	if flags.Changed("shell") {
		req.Shell = f.shell
	}
	if flags.Changed("timeout") {
		req.Timeout = f.timeout
	}

	if req.SourceDir, err = filepath.Abs(f.sourceDir); err != nil {
		return deploy.Request{}, fmt.Errorf("failed to resolve source directory: %w", err)
	}
	if req.LogDir != "" {
		if req.LogDir, err = filepath.Abs(req.LogDir); err != nil {
			return deploy.Request{}, fmt.Errorf("failed to resolve log directory: %w", err)
		}
	}

	if len(f.envVars) > 0 {
		req.ExtraEnv = make(map[string]string, len(f.envVars))
		for _, assignment := range f.envVars {
			name, value, err := runtime.ParseEnvVar(assignment)
			if err != nil {
				return deploy.Request{}, fmt.Errorf("--env-var: %w", err)
			}
			req.ExtraEnv[name] = value
		}
	}
	return req, nil
}

func runDeployment(cmd *cobra.Command, app *App, f *runFlags, component string) error {
	ctx := cmd.Context()
	cfg, err := app.loadConfig(ctx, f.sourceDir)
	if err != nil {
		return err
	}

	req, err := f.request(cmd.Flags(), cfg, component)
	if err != nil {
		return invalidRequestError(err)
	}

	logger := app.logger()
	opts := []deploy.Option{deploy.WithLogger(logger)}
	if app.verbose {
		opts = append(opts, deploy.WithOutput(app.stderr))
	}
	runner, err := deploy.NewRunner(req, opts...)
	if err != nil {
		return invalidRequestError(err)
	}

	logger.Debug("starting run", "component", req.Component, "environment", req.Environment, "action", req.Action)
	res := runner.Run(ctx)
	if !res.Success() {
		renderServiceError(app.stderr, newRunFailure(res), app.verbose, glamourStyle(cfg.UI.ColorScheme))
		return renderedFailure(exitCodeFor(res))
	}

	fmt.Fprintf(app.stdout, "%s terraform %s %s\n",
		SuccessStyle.Render("✓"),
		req.Action,
		CmdStyle.Render(req.Component+"/"+req.Environment))
	fmt.Fprintf(app.stdout, "  %s %s\n", SubtitleStyle.Render("duration:"), res.Duration.Round(time.Millisecond))
	fmt.Fprintf(app.stdout, "  %s %s\n", SubtitleStyle.Render("logs:    "), res.LogDir)
	return nil
}

func invalidRequestError(err error) error {
	return issue.NewErrorContext().
		WithOperation("prepare run").
		WithIssue(issue.InvalidRequestId).
		WithSuggestion("Run 'tfrun run --help' to see the expected arguments").
		Wrap(err).
		BuildError()
}

// exitCodeFor returns terraform's exit code for command failures and 1 otherwise.
func exitCodeFor(res *deploy.Result) int {
	if res.Success() {
		return 0
	}
	if res.Reason() == deploy.ReasonCommandFailure && !res.ExitCode.IsSuccess() {
		return int(res.ExitCode)
	}
	return 1
}
