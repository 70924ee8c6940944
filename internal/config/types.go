// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// HookShellNative sources hooks with bash or sh.
	// Defined locally to avoid coupling config to internal/runtime.
	HookShellNative HookShell = "native"
	// HookShellVirtual interprets hooks with the embedded mvdan/sh interpreter.
	HookShellVirtual HookShell = "virtual"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidHookShell is returned when a HookShell value is not recognized.
	ErrInvalidHookShell = errors.New("invalid hook shell")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidTimeout is returned when the timeout is not a non-negative duration.
	ErrInvalidTimeout = errors.New("invalid timeout")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// HookShell selects how hook scripts are sourced.
	HookShell string

	// ColorScheme selects the palette used for terminal output.
	ColorScheme string

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// TerraformPath is the terraform binary, used when it exists on disk.
		TerraformPath string `json:"terraform_path" mapstructure:"terraform_path"`
		// LogDir is the root of run log directories. Empty means <source>/.tfrun/logs.
		LogDir string `json:"log_dir" mapstructure:"log_dir"`
		// LogTerraformOutput echoes the terraform log into the run log.
		LogTerraformOutput bool `json:"log_terraform_output" mapstructure:"log_terraform_output"`
		// FailOnLogErrors fails runs whose terraform log contains error lines.
		FailOnLogErrors bool `json:"fail_on_log_errors" mapstructure:"fail_on_log_errors"`
		// HookShell selects native or virtual hook sourcing.
		HookShell HookShell `json:"hook_shell" mapstructure:"hook_shell"`
		// Shell overrides the shell used for native hooks.
		Shell string `json:"shell" mapstructure:"shell"`
		// Timeout bounds each hook and command, as a Go duration string.
		Timeout string `json:"timeout" mapstructure:"timeout"`
		// UI configures terminal output.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// UIConfig configures terminal output.
	UIConfig struct {
		// Verbose mirrors the run log on stderr and enables debug logging.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// ColorScheme selects the palette for rendered issues.
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogTerraformOutput: true,
		FailOnLogErrors:    true,
		HookShell:          HookShellNative,
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// String returns the string representation of the HookShell.
func (s HookShell) String() string { return string(s) }

// IsValid returns whether the HookShell is a recognized value.
// The zero value is valid and means native.
func (s HookShell) IsValid() (bool, []error) {
	switch s {
	case "", HookShellNative, HookShellVirtual:
		return true, nil
	default:
		return false, []error{fmt.Errorf("%w: %q", ErrInvalidHookShell, s)}
	}
}

// String returns the string representation of the ColorScheme.
func (c ColorScheme) String() string { return string(c) }

// IsValid returns whether the ColorScheme is a recognized value.
// The zero value is valid and means auto.
func (c ColorScheme) IsValid() (bool, []error) {
	switch c {
	case "", ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{fmt.Errorf("%w: %q", ErrInvalidColorScheme, c)}
	}
}

// TimeoutDuration parses Timeout. An empty value means no timeout.
func (c Config) TimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(c.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s is negative", ErrInvalidTimeout, c.Timeout)
	}
	return d, nil
}

// IsValid returns whether the Config is valid, and every field error if not.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.HookShell.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig so callers can use errors.Is for programmatic detection.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
