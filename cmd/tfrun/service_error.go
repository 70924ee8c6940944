// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/tfrun/tfrun/internal/config"
	"github.com/tfrun/tfrun/internal/deploy"
	"github.com/tfrun/tfrun/internal/issue"
	"github.com/tfrun/tfrun/internal/runtime"
	"github.com/tfrun/tfrun/internal/varfile"
)

// ServiceError is an error that carries optional rendering information for
// the CLI layer. Always create via newServiceError so Err is never nil.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// newRunFailure describes a failed run as a styled card.
func newRunFailure(res *deploy.Result) *ServiceError {
	req := res.Request
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s terraform %s %s\n",
		ErrorStyle.Render("✗"),
		req.Action,
		CmdStyle.Render(req.Component+"/"+req.Environment))
	writeField(&sb, "failed in", res.State.String())
	writeField(&sb, "reason", string(res.Reason()))

	var logErr *deploy.LogDetectedError
	if errors.As(res.Err, &logErr) {
		writeField(&sb, "log", logErr.LogFile)
		sb.WriteString(renderLogStyle.Render(logErr.Message()))
		sb.WriteString("\n")
	} else {
		writeField(&sb, "error", res.Err.Error())
	}
	if len(res.Command) > 0 {
		writeField(&sb, "command", res.Command.String())
	}
	writeField(&sb, "logs", res.LogDir)

	return newServiceError(res.Err, issueFor(res.Err), sb.String())
}

func writeField(sb *strings.Builder, label, value string) {
	fmt.Fprintf(sb, "  %s %s\n", renderLabelStyle.Render(label+":"), VerboseStyle.Render(value))
}

// issueFor maps a run error onto the catalog entry that explains it.
// Specific causes are checked before the failure class that wraps them.
func issueFor(err error) issue.Id {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.DeadlineExceeded):
		return issue.TimeoutId
	case errors.Is(err, runtime.ErrShellNotFound):
		return issue.ShellNotFoundId
	case errors.Is(err, deploy.ErrCommandFailed) && errors.Is(err, exec.ErrNotFound):
		return issue.TerraformNotFoundId
	case errors.Is(err, deploy.ErrHookFailed):
		return issue.HookFailedId
	case errors.Is(err, deploy.ErrCommandFailed):
		return issue.CommandFailedId
	case errors.Is(err, deploy.ErrLogDetected):
		return issue.LogErrorsDetectedId
	case errors.Is(err, varfile.ErrNotADirectory):
		return issue.SourceDirNotFoundId
	case errors.Is(err, runtime.ErrRunLocked):
		return issue.RunLockedId
	case errors.Is(err, deploy.ErrInvalidRequest):
		return issue.InvalidRequestId
	default:
		return 0
	}
}

// glamourStyle maps the configured color scheme onto a glamour style name.
func glamourStyle(scheme config.ColorScheme) string {
	switch scheme {
	case config.ColorSchemeDark, config.ColorSchemeLight:
		return string(scheme)
	default:
		return "auto"
	}
}

// renderServiceError prints the styled message, then the issue help in
// verbose mode or a pointer to it otherwise.
func renderServiceError(stderr io.Writer, svcErr *ServiceError, verbose bool, style string) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	} else {
		fmt.Fprintln(stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(svcErr.Err, verbose))
	}

	if svcErr.IssueID == 0 {
		return
	}
	if !verbose {
		fmt.Fprintln(stderr, SubtitleStyle.Render("\nRun with --verbose for troubleshooting help."))
		return
	}

	if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render(style)
		if renderErr != nil {
			log.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", renderErr)
			return
		}
		fmt.Fprint(stderr, rendered)
	}
}
