// SPDX-License-Identifier: MPL-2.0

package deploy

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tfrun/tfrun/internal/runtime"
)

const (
	// DefaultLogDirName is the log root used when Request.LogDir is empty,
	// relative to the source directory.
	DefaultLogDirName = ".tfrun/logs"

	// DefaultEnvironment and DefaultVersion are used by the CLI when no
	// --env or --version is given.
	DefaultEnvironment = "dev"
	DefaultVersion     = "undefined"

	// Variables injected into every run before any hook or command.
	EnvVarEnvironment        = "TF_VAR_environment"
	EnvVarVersion            = "TF_VAR_version"
	EnvVarEnvironmentVersion = "TF_VAR_environment_version"
)

// ErrInvalidRequest is the sentinel error wrapped by InvalidRequestError.
var ErrInvalidRequest = errors.New("invalid run request")

type (
	// Request is the immutable description of one run.
	Request struct {
		// Component selects components/<Component> under SourceDir.
		Component string
		// Environment selects the variable files and is exported as TF_VAR_environment.
		Environment string
		// Version is the variable file suffix and is exported as TF_VAR_version.
		Version string
		// Action is the Terraform subcommand, e.g. init, plan or apply.
		Action string
		// TaskName prefixes component hook names. Defaults to Action.
		TaskName string
		// SourceDir is the root holding environments/, hooks/ and components/.
		SourceDir string
		// TerraformPath is used when it exists on disk; otherwise "terraform"
		// is resolved on PATH.
		TerraformPath string
		// LogDir is the root of run log directories. Defaults to <SourceDir>/.tfrun/logs.
		LogDir string
		// LogOutput echoes the Terraform log into the narrative log.
		LogOutput bool
		// FailOnLogErrors fails the run when the Terraform log contains "Error: ".
		FailOnLogErrors bool
		// HookShell selects how hooks are sourced.
		HookShell runtime.HookShell
		// Shell overrides the shell used to source hooks natively.
		Shell string
		// Timeout bounds each subprocess. Zero means no timeout.
		Timeout time.Duration
		// EnvFiles are dotenv files loaded into the run environment.
		EnvFiles []string
		// ExtraEnv is set in the run environment last, after EnvFiles.
		ExtraEnv map[string]string
	}

	// InvalidRequestError is returned when a Request has invalid fields.
	// It wraps ErrInvalidRequest for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidRequestError struct {
		FieldErrors []error
	}
)

// Error implements the error interface.
func (e *InvalidRequestError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid run request: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidRequest so callers can use errors.Is for programmatic detection.
func (e *InvalidRequestError) Unwrap() error { return ErrInvalidRequest }

// Validate checks the request fields.
func (r Request) Validate() error {
	var errs []error
	if err := validateName("component", r.Component); err != nil {
		errs = append(errs, err)
	}
	if err := validateName("environment", r.Environment); err != nil {
		errs = append(errs, err)
	}
	if strings.ContainsAny(r.Version, `/\`) {
		errs = append(errs, fmt.Errorf("version %q must not contain path separators", r.Version))
	}
	if strings.TrimSpace(r.Action) == "" {
		errs = append(errs, errors.New("action must not be empty"))
	}
	if strings.TrimSpace(r.SourceDir) == "" {
		errs = append(errs, errors.New("source directory must not be empty"))
	}
	if valid, fieldErrs := r.HookShell.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if r.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %s must not be negative", r.Timeout))
	}
	if len(errs) > 0 {
		return &InvalidRequestError{FieldErrors: errs}
	}
	return nil
}

// Task returns the hook task name, TaskName or else Action.
func (r Request) Task() string {
	if r.TaskName != "" {
		return r.TaskName
	}
	return r.Action
}

// RunLogDir returns the log directory of this run: <LogDir>/<component>/<environment>.
func (r Request) RunLogDir() string {
	root := r.LogDir
	if root == "" {
		root = filepath.Join(r.SourceDir, filepath.FromSlash(DefaultLogDirName))
	}
	return filepath.Join(root, r.Component, r.Environment)
}

// PrimaryLogFile returns the path of the Terraform log of this run.
func (r Request) PrimaryLogFile() string {
	return filepath.Join(r.RunLogDir(), "terraform-"+r.Action+".log")
}

// BaselineEnv returns the variables injected into every run.
func (r Request) BaselineEnv() map[string]string {
	return map[string]string{
		EnvVarEnvironment:        r.Environment,
		EnvVarVersion:            r.Version,
		EnvVarEnvironmentVersion: r.Environment + "-" + r.Version,
	}
}

func validateName(field, value string) error {
	switch {
	case strings.TrimSpace(value) == "":
		return fmt.Errorf("%s must not be empty", field)
	case strings.ContainsAny(value, `/\`), value == ".", value == "..":
		return fmt.Errorf("%s %q must be a plain name", field, value)
	}
	return nil
}
