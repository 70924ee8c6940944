// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"fmt"
	"maps"
	"os"
	"slices"
)

// Environment is the ordered, mutable set of environment variables owned by a
// single deployment run. It starts as a copy of the host environment and only
// ever grows or overwrites values; entries are never removed.
//
// Subprocesses launched through an Executor receive exactly the entries held
// here, nothing else from the host. An Environment is not safe for concurrent
// use; a run owns it exclusively.
type Environment struct {
	values map[string]string
	order  []string
}

// NewEnvironment creates an Environment seeded from KEY=VALUE entries, as
// returned by os.Environ. Entries without a separator are skipped.
func NewEnvironment(environ []string) *Environment {
	env := &Environment{values: make(map[string]string, len(environ))}
	for _, entry := range environ {
		idx := findEnvSeparator(entry)
		if idx <= 0 {
			continue
		}
		env.Set(entry[:idx], entry[idx+1:])
	}
	return env
}

// HostEnvironment creates an Environment seeded from the current process environment.
func HostEnvironment() *Environment {
	return NewEnvironment(os.Environ())
}

// Get returns the value of name and whether it is set.
func (e *Environment) Get(name string) (string, bool) {
	v, ok := e.values[name]
	return v, ok
}

// Set assigns value to name. An existing name keeps its position.
func (e *Environment) Set(name, value string) {
	if _, exists := e.values[name]; !exists {
		e.order = append(e.order, name)
	}
	e.values[name] = value
}

// Merge overwrites the environment with every entry of vars.
// Names new to the environment are appended in sorted order so that
// merges are reproducible regardless of map iteration order.
func (e *Environment) Merge(vars map[string]string) {
	for _, name := range sortedKeys(vars) {
		e.Set(name, vars[name])
	}
}

// Len returns the number of variables.
func (e *Environment) Len() int {
	return len(e.order)
}

// Names returns the variable names in insertion order.
func (e *Environment) Names() []string {
	return append([]string(nil), e.order...)
}

// Slice returns the environment as KEY=VALUE entries in insertion order,
// ready to be used as exec.Cmd.Env.
func (e *Environment) Slice() []string {
	result := make([]string, 0, len(e.order))
	for _, name := range e.order {
		result = append(result, name+"="+e.values[name])
	}
	return result
}

// Map returns a copy of the environment as a map.
func (e *Environment) Map() map[string]string {
	return maps.Clone(e.values)
}

// Clone returns an independent copy of the environment.
func (e *Environment) Clone() *Environment {
	return &Environment{
		values: maps.Clone(e.values),
		order:  append([]string(nil), e.order...),
	}
}

// String implements fmt.Stringer for debug output.
func (e *Environment) String() string {
	return fmt.Sprintf("Environment(%d vars)", len(e.order))
}

// findEnvSeparator returns the index of the '=' separator in an environment variable string
func findEnvSeparator(e string) int {
	for i := 0; i < len(e); i++ {
		if e[i] == '=' {
			return i
		}
	}
	return -1
}

func sortedKeys(m map[string]string) []string {
	keys := slices.Collect(maps.Keys(m))
	slices.Sort(keys)
	return keys
}

// isValidEnvName reports whether name is a valid POSIX shell variable name.
func isValidEnvName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// validateWorkDir validates that a working directory exists and is accessible.
// This provides a better error message than letting exec fail with a cryptic error.
func validateWorkDir(dir string) error {
	if dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", dir)
		}
		if os.IsPermission(err) {
			return fmt.Errorf("permission denied: %s", dir)
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	return nil
}
