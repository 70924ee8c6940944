// SPDX-License-Identifier: MPL-2.0

// Package hooks finds the optional lifecycle scripts that run around the
// provisioning command. A missing hook is never an error: it means the
// stage has nothing to do.
package hooks

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tfrun/tfrun/internal/varfile"
)

const (
	// GlobalBefore runs first, from <source>/hooks/before*.
	GlobalBefore Stage = iota + 1
	// ComponentBefore runs from <source>/components/<c>/hooks/<task>-before.*.
	ComponentBefore
	// ComponentAfter runs from <source>/components/<c>/hooks/<task>-after.*.
	ComponentAfter
	// GlobalAfter runs last, from <source>/hooks/after*.
	GlobalAfter

	// Dir is the name of a hooks directory.
	Dir = "hooks"
)

type (
	// Stage identifies when a hook runs relative to the provisioning command.
	Stage int

	// Descriptor is a located hook script.
	Descriptor struct {
		Stage Stage
		Path  string
	}
)

// Stages returns every stage in execution order.
func Stages() []Stage {
	return []Stage{GlobalBefore, ComponentBefore, ComponentAfter, GlobalAfter}
}

// String returns the stage name used in logs and file names.
func (s Stage) String() string {
	switch s {
	case GlobalBefore:
		return "global-before"
	case ComponentBefore:
		return "component-before"
	case ComponentAfter:
		return "component-after"
	case GlobalAfter:
		return "global-after"
	default:
		return "unknown"
	}
}

// IsBefore reports whether the stage runs before the provisioning command.
func (s Stage) IsBefore() bool {
	return s == GlobalBefore || s == ComponentBefore
}

// Find returns the first regular file in directory whose name starts with
// namePrefix. Entries are considered in lexicographic order, so the choice is
// deterministic when several scripts share a prefix. It reports false when the
// directory is missing, unreadable or has no match.
func Find(directory, namePrefix string) (string, bool) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return "", false
	}
	// os.ReadDir returns entries sorted by filename.
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), namePrefix) {
			continue
		}
		path := filepath.Join(directory, entry.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		return path, true
	}
	return "", false
}

// Location returns the directory and name prefix searched for stage.
func Location(stage Stage, sourceDir, component, taskName string) (dir, prefix string) {
	switch stage {
	case GlobalBefore:
		return filepath.Join(sourceDir, Dir), "before"
	case GlobalAfter:
		return filepath.Join(sourceDir, Dir), "after"
	case ComponentBefore:
		return filepath.Join(varfile.ComponentDir(sourceDir, component), Dir), taskName + "-before."
	case ComponentAfter:
		return filepath.Join(varfile.ComponentDir(sourceDir, component), Dir), taskName + "-after."
	default:
		return "", ""
	}
}

// Locate finds the hook for stage of component.
func Locate(stage Stage, sourceDir, component, taskName string) (Descriptor, bool) {
	dir, prefix := Location(stage, sourceDir, component, taskName)
	if dir == "" {
		return Descriptor{}, false
	}
	path, ok := Find(dir, prefix)
	if !ok {
		return Descriptor{}, false
	}
	return Descriptor{Stage: stage, Path: path}, true
}
