// SPDX-License-Identifier: MPL-2.0

// Package varfile locates the Terraform variable files that apply to an
// environment, following the <dir>/environments/<env>[-<suffix>].tfvars convention.
package varfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// EnvironmentsDir is the subdirectory holding variable files.
	EnvironmentsDir = "environments"
	// ComponentsDir is the subdirectory holding one directory per component.
	ComponentsDir = "components"
	// Extension is the variable file extension.
	Extension = ".tfvars"
)

// ErrNotADirectory is the sentinel error wrapped by NotADirectoryError.
var ErrNotADirectory = errors.New("not a directory")

// NotADirectoryError is returned when a configuration source does not exist or
// is not a directory.
type NotADirectoryError struct {
	Path string
	// Cause is the stat error, nil when the path exists but is a file.
	Cause error
}

// Error implements the error interface.
func (e *NotADirectoryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration source %s is not a directory: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("configuration source %s is not a directory", e.Path)
}

// Unwrap returns ErrNotADirectory so callers can use errors.Is for programmatic detection.
func (e *NotADirectoryError) Unwrap() error { return ErrNotADirectory }

// Candidates returns the two file names considered for environment and
// suffix, in resolution order. An empty suffix still yields <env>-.tfvars.
func Candidates(environment, suffix string) []string {
	return []string{
		environment + Extension,
		environment + "-" + suffix + Extension,
	}
}

// Resolve returns the absolute paths of the variable files for environment
// and suffix found under sourceDir/environments. Missing candidates are
// skipped; only a sourceDir that is not a directory is an error.
func Resolve(sourceDir, environment, suffix string) ([]string, error) {
	if err := checkDir(sourceDir); err != nil {
		return nil, err
	}

	absDir, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", sourceDir, err)
	}

	var files []string
	for _, name := range Candidates(environment, suffix) {
		path := filepath.Join(absDir, EnvironmentsDir, name)
		info, statErr := os.Stat(path)
		if statErr != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	return files, nil
}

// ResolveComponent resolves the variable files of the source root followed by
// those of components/<component>. Order is root-env, root-env-suffix,
// component-env, component-env-suffix; duplicates are kept. A component
// directory that does not exist is a *NotADirectoryError like a missing sourceDir.
func ResolveComponent(sourceDir, component, environment, suffix string) ([]string, error) {
	files, err := Resolve(sourceDir, environment, suffix)
	if err != nil {
		return nil, err
	}

	componentFiles, err := Resolve(ComponentDir(sourceDir, component), environment, suffix)
	if err != nil {
		return nil, err
	}
	return append(files, componentFiles...), nil
}

// ComponentDir returns the directory of component under sourceDir.
func ComponentDir(sourceDir, component string) string {
	return filepath.Join(sourceDir, ComponentsDir, component)
}

// CheckSourceDir returns a *NotADirectoryError unless path is an existing directory.
func CheckSourceDir(path string) error {
	return checkDir(path)
}

func checkDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &NotADirectoryError{Path: path, Cause: err}
	}
	if !info.IsDir() {
		return &NotADirectoryError{Path: path}
	}
	return nil
}
