// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"
)

// shellSpecialChars are the characters that force a token to be quoted for display.
const shellSpecialChars = " \t\r\n;\"'()$|&<>`\\#{~*?["

// ErrProcessFailed is the sentinel error wrapped by ProcessError.
var ErrProcessFailed = errors.New("process failed")

type (
	// CommandLine is an ordered sequence of tokens: the executable followed by its arguments.
	CommandLine []string

	// ProcessError is returned when a subprocess exits with a non-zero code.
	// It carries enough context to diagnose the failure without re-running:
	// the exit code, the exact command line and the log file holding its output.
	ProcessError struct {
		ExitCode ExitCode
		Command  CommandLine
		LogFile  string
		// Cause is set when the exit code does not come from a normal exit
		// (signal, cancellation, timeout).
		Cause error
	}

	// Executor launches subprocesses with an explicitly owned Environment.
	// Every launch sees the Environment as it is at call time, so mutations
	// made by earlier hooks are visible to later commands.
	Executor struct {
		env    *Environment
		logger *log.Logger
	}
)

// Executable returns the first token, or "" for an empty command line.
func (c CommandLine) Executable() string {
	if len(c) == 0 {
		return ""
	}
	return c[0]
}

// Args returns every token after the executable.
func (c CommandLine) Args() []string {
	if len(c) < 2 {
		return nil
	}
	return c[1:]
}

// String renders the command line as it would be typed in a POSIX shell.
// Tokens such as -var-file=x are left bare; '=' alone never needs quoting
// in argument position.
func (c CommandLine) String() string {
	parts := make([]string, 0, len(c))
	for _, token := range c {
		if token != "" && !strings.ContainsAny(token, shellSpecialChars) {
			parts = append(parts, token)
			continue
		}
		quoted, err := syntax.Quote(token, syntax.LangBash)
		if err != nil {
			quoted = token
		}
		parts = append(parts, quoted)
	}
	return strings.Join(parts, " ")
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("command '%s' exited with code %d, see log %s", e.Command, e.ExitCode, e.LogFile)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns ErrProcessFailed and the cause, if any, for errors.Is chains.
func (e *ProcessError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrProcessFailed, e.Cause}
	}
	return []error{ErrProcessFailed}
}

// NewExecutor creates an executor bound to env. A nil logger discards debug output.
func NewExecutor(env *Environment, logger *log.Logger) *Executor {
	if env == nil {
		env = NewEnvironment(nil)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Executor{env: env, logger: logger}
}

// Environment returns the environment shared by every launch of this executor.
func (x *Executor) Environment() *Environment {
	return x.env
}

// Run launches command in workDir (the current directory when empty) with the
// executor's environment, redirecting stdout and stderr to logFile, which is
// truncated first. It blocks until the process exits.
//
// A non-zero exit is returned as a *ProcessError together with the exit code;
// callers that tolerate failures must check for it explicitly.
func (x *Executor) Run(ctx context.Context, command CommandLine, workDir, logFile string) (ExitCode, error) {
	if len(command) == 0 {
		return 1, errors.New("empty command line")
	}
	if err := validateWorkDir(workDir); err != nil {
		return 1, err
	}

	out, err := openLogFile(logFile)
	if err != nil {
		return 1, err
	}
	defer out.Close()

	cmd := exec.CommandContext(ctx, command.Executable(), command.Args()...)
	cmd.Dir = workDir
	cmd.Env = x.env.Slice()
	cmd.Stdout = out
	cmd.Stderr = out

	x.logger.Debug("launching process", "command", command.String(), "dir", workDir, "log", logFile)

	runErr := cmd.Run()
	code, err := x.exitStatus(ctx, runErr, command, logFile)
	x.logger.Debug("process finished", "command", command.Executable(), "exit", code)
	return code, err
}

// exitStatus maps the result of exec.Cmd.Run onto an exit code and error.
func (x *Executor) exitStatus(ctx context.Context, runErr error, command CommandLine, logFile string) (ExitCode, error) {
	if runErr == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		procErr := &ProcessError{Command: command, LogFile: logFile}
		exitCode, exited := exitCodeOf(exitErr)
		if !exited {
			// Killed by a signal, usually because the context ended.
			procErr.Cause = runErr
			if ctxErr := ctx.Err(); ctxErr != nil {
				procErr.Cause = ctxErr
			}
		}
		procErr.ExitCode = exitCode
		return exitCode, procErr
	}

	return 1, fmt.Errorf("failed to execute %s: %w", command.Executable(), runErr)
}

// openLogFile creates (or truncates) the log file and its parent directories.
func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("log file path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
