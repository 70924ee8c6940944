// SPDX-License-Identifier: MPL-2.0

package deploy

import (
	"errors"
	"time"

	"github.com/tfrun/tfrun/internal/hooks"
	"github.com/tfrun/tfrun/internal/runtime"
	"github.com/tfrun/tfrun/internal/varfile"
)

const (
	StateInit State = iota
	StateResolveConfig
	StateBuildCommand
	StateGlobalBeforeHook
	StateComponentBeforeHook
	StateRunPrimaryCommand
	StateScanLog
	StateComponentAfterHook
	StateGlobalAfterHook
	StateDone
	StateFailed
)

const (
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

const (
	ReasonNone           Reason = ""
	ReasonHookFailure    Reason = "hook-failure"
	ReasonCommandFailure Reason = "command-failure"
	ReasonLogDetected    Reason = "log-detected-failure"
	ReasonNotADirectory  Reason = "not-a-directory"
	ReasonInvalidRequest Reason = "invalid-request"
	ReasonInfrastructure Reason = "error"
)

type (
	// State is a step of a run.
	State int

	// Status is the terminal outcome of a run.
	Status string

	// Reason classifies a failure.
	Reason string

	// HookInvocation records one hook that was found and sourced.
	HookInvocation struct {
		Stage    hooks.Stage
		Script   string
		ExitCode runtime.ExitCode
		LogFile  string
		Duration time.Duration
	}

	// Result is the outcome of a run. On failure State is the state that failed.
	Result struct {
		Request    Request
		Status     Status
		Err        error
		State      State
		VarFiles   []string
		Command    runtime.CommandLine
		WorkDir    string
		Hooks      []HookInvocation
		LogDir     string
		PrimaryLog string
		// ExitCode is the primary command's exit code, or 1 when the run
		// failed before or after it.
		ExitCode  runtime.ExitCode
		StartedAt time.Time
		Duration  time.Duration
	}
)

var stateNames = [...]string{
	StateInit:                "init",
	StateResolveConfig:       "resolve-config",
	StateBuildCommand:        "build-command",
	StateGlobalBeforeHook:    "global-before-hook",
	StateComponentBeforeHook: "component-before-hook",
	StateRunPrimaryCommand:   "run-command",
	StateScanLog:             "scan-log",
	StateComponentAfterHook:  "component-after-hook",
	StateGlobalAfterHook:     "global-after-hook",
	StateDone:                "done",
	StateFailed:              "failed",
}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// hookState maps a hook stage onto the state that runs it.
func hookState(stage hooks.Stage) State {
	switch stage {
	case hooks.GlobalBefore:
		return StateGlobalBeforeHook
	case hooks.ComponentBefore:
		return StateComponentBeforeHook
	case hooks.ComponentAfter:
		return StateComponentAfterHook
	default:
		return StateGlobalAfterHook
	}
}

// Success reports whether the run reached Done.
func (r *Result) Success() bool {
	return r.Status == StatusDone
}

// Reason classifies the failure, or returns ReasonNone on success.
func (r *Result) Reason() Reason {
	return ReasonOf(r.Err)
}

// ReasonOf classifies a run error.
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrHookFailed):
		return ReasonHookFailure
	case errors.Is(err, ErrCommandFailed):
		return ReasonCommandFailure
	case errors.Is(err, ErrLogDetected):
		return ReasonLogDetected
	case errors.Is(err, varfile.ErrNotADirectory):
		return ReasonNotADirectory
	case errors.Is(err, ErrInvalidRequest):
		return ReasonInvalidRequest
	default:
		return ReasonInfrastructure
	}
}
