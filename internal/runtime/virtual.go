// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"os"
	"slices"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// runVirtual interprets the hook with mvdan/sh instead of a host shell.
// The interpreter starts from the current Environment; after a successful
// run every exported string variable except shellManagedVars is merged back.
func (h *HookCapturer) runVirtual(ctx context.Context, scriptPath, workDir, logFile string) (ExitCode, error) {
	src, err := os.Open(scriptPath)
	if err != nil {
		return 1, fmt.Errorf("failed to open hook script: %w", err)
	}
	prog, err := syntax.NewParser().Parse(src, scriptPath)
	src.Close()
	if err != nil {
		return 1, fmt.Errorf("hook script syntax error: %w", err)
	}

	if err := validateWorkDir(workDir); err != nil {
		return 1, err
	}
	dir := workDir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return 1, fmt.Errorf("failed to get current working directory: %w", err)
		}
	}

	out, err := openLogFile(logFile)
	if err != nil {
		return 1, err
	}
	defer out.Close()

	env := h.executor.Environment()
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(env.Slice()...)),
		interp.StdIO(nil, out, out),
	)
	if err != nil {
		return 1, fmt.Errorf("failed to create interpreter: %w", err)
	}

	command := CommandLine{"source", scriptPath}
	h.executor.logger.Debug("interpreting hook", "script", scriptPath, "dir", dir, "log", logFile)

	if err := runner.Run(ctx, prog); err != nil {
		if status, ok := interp.IsExitStatus(err); ok {
			code := ExitCode(status)
			return code, &ProcessError{ExitCode: code, Command: command, LogFile: logFile}
		}
		return 1, &ProcessError{ExitCode: 1, Command: command, LogFile: logFile, Cause: err}
	}

	vars := make(map[string]string)
	for name, vr := range runner.Vars {
		if !vr.Exported || vr.Kind != expand.String || !isValidEnvName(name) || slices.Contains(shellManagedVars, name) {
			continue
		}
		vars[name] = vr.Str
	}
	env.Merge(vars)
	return 0, nil
}
