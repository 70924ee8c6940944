// SPDX-License-Identifier: MPL-2.0

package deploy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tfrun/tfrun/internal/hooks"
	"github.com/tfrun/tfrun/internal/runtime"
)

var (
	// ErrHookFailed is the sentinel error wrapped by HookError.
	ErrHookFailed = errors.New("hook failed")
	// ErrCommandFailed is the sentinel error wrapped by CommandError.
	ErrCommandFailed = errors.New("terraform command failed")
	// ErrLogDetected is the sentinel error wrapped by LogDetectedError.
	ErrLogDetected = errors.New("errors detected in terraform log")
)

type (
	// HookError is returned when a before or after hook exits non-zero.
	HookError struct {
		Stage    hooks.Stage
		Script   string
		ExitCode runtime.ExitCode
		LogFile  string
		Err      error
	}

	// CommandError is returned when the Terraform command cannot be launched
	// or exits non-zero.
	CommandError struct {
		ExitCode runtime.ExitCode
		Command  runtime.CommandLine
		LogFile  string
		Err      error
	}

	// LogDetectedError is returned when the Terraform command exited zero but
	// its log contains error markers.
	LogDetectedError struct {
		Action  string
		LogFile string
		// Lines holds every line with the marker and every line after the first one.
		Lines []string
	}
)

// Error implements the error interface.
func (e *HookError) Error() string {
	msg := fmt.Sprintf("%s hook %s failed with exit code %d, see log %s", e.Stage, e.Script, e.ExitCode, e.LogFile)
	return withCause(msg, e.Err)
}

// Unwrap returns ErrHookFailed and the underlying error, if any.
func (e *HookError) Unwrap() []error { return unwrapWith(ErrHookFailed, e.Err) }

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command '%s' exited with code %d, see log %s", e.Command, e.ExitCode, e.LogFile)
	return withCause(msg, e.Err)
}

// Unwrap returns ErrCommandFailed and the underlying error, if any.
func (e *CommandError) Unwrap() []error { return unwrapWith(ErrCommandFailed, e.Err) }

// Error implements the error interface.
func (e *LogDetectedError) Error() string {
	return fmt.Sprintf("terraform %s reported errors (see log %s):\n%s", e.Action, e.LogFile, e.Message())
}

// Message returns the accumulated offending lines.
func (e *LogDetectedError) Message() string {
	return strings.Join(e.Lines, "\n")
}

// Unwrap returns ErrLogDetected so callers can use errors.Is for programmatic detection.
func (e *LogDetectedError) Unwrap() error { return ErrLogDetected }

// withCause appends the part of err that msg does not already say. A plain
// non-zero exit adds nothing; a timeout or a launch failure is appended.
func withCause(msg string, err error) string {
	if err == nil {
		return msg
	}
	var procErr *runtime.ProcessError
	if errors.As(err, &procErr) {
		if procErr.Cause != nil {
			return msg + ": " + procErr.Cause.Error()
		}
		return msg
	}
	return msg + ": " + err.Error()
}

func unwrapWith(sentinel, err error) []error {
	if err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, err}
}
