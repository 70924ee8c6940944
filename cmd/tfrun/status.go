// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/tfrun/tfrun/internal/deploy"
	"github.com/tfrun/tfrun/internal/issue"
	"github.com/tfrun/tfrun/internal/runtime"
)

func newStatusCommand(app *App) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "status <component>",
		Short: "Show the result of the last run of a component",
		Long: `Show the result of the last run of a component and environment, as
recorded in run.toml inside its log directory.

The exit code is 0 when the last run succeeded and 1 otherwise.`,
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
			if err := req.Validate(); err != nil {
				return invalidRequestError(err)
			}

			summary, err := deploy.ReadSummary(req.RunLogDir())
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return issue.NewErrorContext().
						WithOperation("read last run").
						WithResource(req.RunLogDir()).
						WithSuggestion(fmt.Sprintf("Run 'tfrun plan %s --env %s' first", req.Component, req.Environment)).
						WithSuggestion("Pass the same --log-dir that the run used").
						Wrap(err).
						BuildError()
				}
				return err
			}

			writeSummary(app.stdout, summary, app.verbose)
			if summary.Status != deploy.StatusDone {
				return renderedFailure(1)
			}
			return nil
		},
	}
	f.action = "plan"
	f.registerTarget(cmd.Flags())
	return cmd
}

// writeSummary prints a run summary. Verbose mode adds the command, variable
// files and hook invocations.
func writeSummary(w io.Writer, s *deploy.Summary, verbose bool) {
	mark := SuccessStyle.Render("✓")
	if s.Status != deploy.StatusDone {
		mark = ErrorStyle.Render("✗")
	}
	fmt.Fprintf(w, "%s terraform %s %s\n", mark, s.Action, CmdStyle.Render(s.Component+"/"+s.Environment))

	field := func(label, value string) {
		fmt.Fprintf(w, "  %s %s\n", renderLabelStyle.Render(label+":"), value)
	}
	if s.Version != "" {
		field("version", s.Version)
	}
	field("status", string(s.Status))
	if s.Reason != deploy.ReasonNone {
		field("reason", string(s.Reason))
		field("failed in", s.State)
	}
	if s.Error != "" {
		field("error", s.Error)
	}
	field("started", s.StartedAt.Local().Format("2006-01-02 15:04:05"))
	field("duration", s.Duration)
	field("exit code", fmt.Sprint(s.ExitCode))
	field("log", s.PrimaryLog)

	if !verbose {
		return
	}
	field("work dir", s.WorkDir)
	if len(s.Command) > 0 {
		field("command", VerboseStyle.Render(runtime.CommandLine(s.Command).String()))
	}
	for _, vf := range s.VarFiles {
		field("var file", vf)
	}
	for _, h := range s.Hooks {
		field("hook", fmt.Sprintf("%s %s (exit %d, %s)", h.Stage, h.Script, h.ExitCode, h.Duration))
	}
}
