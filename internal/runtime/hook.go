// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

const (
	// HookShellNative sources hooks with a host shell subprocess.
	HookShellNative HookShell = "native"
	// HookShellVirtual interprets hooks in-process with mvdan/sh.
	HookShellVirtual HookShell = "virtual"

	// maxEnvDumpLine bounds a single line of an environment dump.
	maxEnvDumpLine = 4 * 1024 * 1024
)

// shellManagedVars are set by the shell itself while sourcing a hook and are
// never merged back: they describe the hook's shell, not the run.
var shellManagedVars = []string{"PWD", "OLDPWD", "SHLVL", "_"}

var (
	// ErrShellNotFound is returned when no POSIX shell is available to source hooks.
	ErrShellNotFound = errors.New("no shell found")
	// ErrInvalidHookShell is returned when a HookShell value is not recognized.
	ErrInvalidHookShell = errors.New("invalid hook shell")
)

type (
	// HookShell selects how hook scripts are sourced.
	HookShell string

	// HookCapturer runs hook scripts with "source and capture" semantics:
	// the script is sourced, the resulting environment is dumped, and every
	// dumped variable is merged back into the executor's Environment so that
	// later hooks and commands observe what the hook exported.
	HookCapturer struct {
		executor *Executor
		// Shell overrides the shell used in native mode.
		Shell string
		// Mode selects native or virtual sourcing. Empty means native.
		Mode HookShell
		// TempDir holds environment dump files. Empty means os.TempDir.
		TempDir string
	}
)

// IsValid returns whether the HookShell is a recognized value.
// The zero value is valid and means native.
func (s HookShell) IsValid() (bool, []error) {
	switch s {
	case "", HookShellNative, HookShellVirtual:
		return true, nil
	default:
		return false, []error{fmt.Errorf("%w: %q (must be %q or %q)", ErrInvalidHookShell, s, HookShellNative, HookShellVirtual)}
	}
}

// NewHookCapturer creates a capturer that launches hooks through executor.
func NewHookCapturer(executor *Executor) *HookCapturer {
	return &HookCapturer{executor: executor}
}

// RunHook sources scriptPath in workDir, writing its output to logFile, and
// merges the environment it leaves behind. A non-zero exit returns a
// *ProcessError and leaves the Environment untouched.
func (h *HookCapturer) RunHook(ctx context.Context, scriptPath, workDir, logFile string) (ExitCode, error) {
	absScript, err := filepath.Abs(scriptPath)
	if err != nil {
		return 1, fmt.Errorf("failed to resolve hook path: %w", err)
	}

	if h.Mode == HookShellVirtual {
		return h.runVirtual(ctx, absScript, workDir, logFile)
	}
	return h.runNative(ctx, absScript, workDir, logFile)
}

func (h *HookCapturer) runNative(ctx context.Context, scriptPath, workDir, logFile string) (ExitCode, error) {
	shell, err := h.getShell()
	if err != nil {
		return 1, err
	}

	dump, err := os.CreateTemp(h.TempDir, "tfrun-env-*.txt")
	if err != nil {
		return 1, fmt.Errorf("failed to create environment dump file: %w", err)
	}
	dumpPath := dump.Name()
	dump.Close()
	defer os.Remove(dumpPath)

	script, err := composeSourceScript(shell, scriptPath, dumpPath)
	if err != nil {
		return 1, err
	}

	code, err := h.executor.Run(ctx, CommandLine{shell, "-c", script}, workDir, logFile)
	if err != nil {
		return code, err
	}

	vars, err := readEnvDump(dumpPath)
	if err != nil {
		return code, err
	}
	h.executor.Environment().Merge(vars)
	return code, nil
}

// getShell determines which shell to use
func (h *HookCapturer) getShell() (string, error) {
	if h.Shell != "" {
		return h.Shell, nil
	}
	if bash, err := exec.LookPath("bash"); err == nil {
		return bash, nil
	}
	if sh, err := exec.LookPath("sh"); err == nil {
		return sh, nil
	}
	return "", ErrShellNotFound
}

// composeSourceScript builds the `source <script> && env > <dump>` command.
// The dump only runs when sourcing succeeded, so a failing hook never
// contributes a partial environment.
func composeSourceScript(shell, scriptPath, dumpPath string) (string, error) {
	quotedScript, err := syntax.Quote(scriptPath, syntax.LangPOSIX)
	if err != nil {
		return "", fmt.Errorf("cannot quote hook path %q: %w", scriptPath, err)
	}
	quotedDump, err := syntax.Quote(dumpPath, syntax.LangPOSIX)
	if err != nil {
		return "", fmt.Errorf("cannot quote dump path %q: %w", dumpPath, err)
	}
	return sourceBuiltin(shell) + " " + quotedScript + " && env > " + quotedDump, nil
}

// sourceBuiltin returns "source" for shells that provide it and the POSIX "." otherwise.
func sourceBuiltin(shell string) string {
	base := strings.TrimSuffix(filepath.Base(shell), ".exe")
	if slices.Contains([]string{"bash", "zsh", "ksh"}, base) {
		return "source"
	}
	return "."
}

// readEnvDump parses the output of `env`: one KEY=VALUE per line, split at
// the first '='. Lines whose key is not a valid variable name are the
// continuation of a multi-line value and are skipped, as are shellManagedVars.
func readEnvDump(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read environment dump: %w", err)
	}
	defer f.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEnvDumpLine)
	for scanner.Scan() {
		line := scanner.Text()
		idx := findEnvSeparator(line)
		if idx <= 0 {
			continue
		}
		name := line[:idx]
		if !isValidEnvName(name) || slices.Contains(shellManagedVars, name) {
			continue
		}
		vars[name] = line[idx+1:]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse environment dump: %w", err)
	}
	return vars, nil
}
