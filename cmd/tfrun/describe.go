// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tfrun/tfrun/internal/deploy"
)

const (
	formatYAML = "yaml"
	formatTOML = "toml"
)

type (
	// planView is the printed form of a deploy.Plan.
	planView struct {
		Component   string     `yaml:"component" toml:"component"`
		Environment string     `yaml:"environment" toml:"environment"`
		Version     string     `yaml:"version,omitempty" toml:"version,omitempty"`
		Action      string     `yaml:"action" toml:"action"`
		Task        string     `yaml:"task" toml:"task"`
		WorkDir     string     `yaml:"work_dir" toml:"work_dir"`
		LogDir      string     `yaml:"log_dir" toml:"log_dir"`
		VarFiles    []string   `yaml:"var_files" toml:"var_files"`
		Command     string     `yaml:"command" toml:"command"`
		Hooks       []hookView `yaml:"hooks,omitempty" toml:"hooks,omitempty"`
	}

	hookView struct {
		Stage string `yaml:"stage" toml:"stage"`
		Path  string `yaml:"path" toml:"path"`
	}
)

func newDescribeCommand(app *App) *cobra.Command {
	f := &runFlags{}
	var format string
	cmd := &cobra.Command{
		Use:   "describe <component>",
		Short: "Show what a run would do without running it",
		Long: `Show the variable files, the terraform command line and the hooks a run
would use. Nothing is executed and no log directory is created.

Hooks are looked up now; a hook created by an earlier hook during a real run
is not listed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), f.sourceDir)
			if err != nil {
				return err
			}
			req, err := f.request(cmd.Flags(), cfg, args[0])
			if err != nil {
				return invalidRequestError(err)
			}
			plan, err := deploy.Describe(req)
			if err != nil {
				renderServiceError(app.stderr, newServiceError(err, issueFor(err), ""), app.verbose, glamourStyle(cfg.UI.ColorScheme))
				return renderedFailure(1)
			}
			return writePlan(app.stdout, plan, format)
		},
	}
	cmd.Flags().StringVar(&f.action, "action", "plan", "terraform subcommand to describe")
	cmd.Flags().StringVar(&format, "format", formatYAML, "output format: yaml or toml")
	f.registerTarget(cmd.Flags())
	return cmd
}

func newPlanView(plan *deploy.Plan) planView {
	view := planView{
		Component:   plan.Request.Component,
		Environment: plan.Request.Environment,
		Version:     plan.Request.Version,
		Action:      plan.Request.Action,
		Task:        plan.Request.Task(),
		WorkDir:     plan.WorkDir,
		LogDir:      plan.LogDir,
		VarFiles:    plan.VarFiles,
		Command:     plan.Command.String(),
	}
	if view.VarFiles == nil {
		view.VarFiles = []string{}
	}
	for _, h := range plan.Hooks {
		view.Hooks = append(view.Hooks, hookView{Stage: h.Stage.String(), Path: h.Path})
	}
	return view
}

// writePlan encodes plan in the requested format.
func writePlan(w io.Writer, plan *deploy.Plan, format string) error {
	view := newPlanView(plan)
	var (
		data []byte
		err  error
	)
	switch format {
	case formatYAML:
		data, err = yaml.Marshal(view)
	case formatTOML:
		data, err = toml.Marshal(view)
	default:
		return fmt.Errorf("unknown format %q (expected %s or %s)", format, formatYAML, formatTOML)
	}
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	_, err = w.Write(data)
	return err
}
