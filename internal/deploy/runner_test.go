// SPDX-License-Identifier: MPL-2.0

package deploy

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	goruntime "runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/tfrun/tfrun/internal/hooks"
	"github.com/tfrun/tfrun/internal/runtime"
	"github.com/tfrun/tfrun/internal/varfile"
)

// fakeTerraform prints its arguments and a few variables, then prints
// FAKE_TF_OUTPUT and exits with FAKE_TF_EXIT.
const fakeTerraform = `#!/bin/sh
echo "action=$1"
echo "args=$*"
echo "env=$TF_VAR_environment_version"
echo "hook=${HOOK_VALUE:-unset}"
if [ -n "$FAKE_TF_OUTPUT" ]; then
  printf '%s\n' "$FAKE_TF_OUTPUT"
fi
exit ${FAKE_TF_EXIT:-0}
`

type testTree struct {
	src       string
	terraform string
	logs      string
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if goruntime.GOOS == "windows" {
		t.Skip("skipping: requires a POSIX shell")
	}
}

// newTestTree creates a source root with a "network" component and a fake terraform.
func newTestTree(t *testing.T) *testTree {
	t.Helper()
	root := t.TempDir()
	tree := &testTree{
		src:       filepath.Join(root, "src"),
		terraform: filepath.Join(root, "bin", "terraform"),
		logs:      filepath.Join(root, "logs"),
	}
	mkdir(t, filepath.Join(tree.src, varfile.EnvironmentsDir))
	mkdir(t, varfile.ComponentDir(tree.src, "network"))
	writeFile(t, tree.terraform, fakeTerraform, 0o755)
	return tree
}

func (tt *testTree) request(action string) Request {
	return Request{
		Component:       "network",
		Environment:     "dev",
		Version:         "1.0",
		Action:          action,
		SourceDir:       tt.src,
		TerraformPath:   tt.terraform,
		LogDir:          tt.logs,
		FailOnLogErrors: true,
		ExtraEnv:        map[string]string{},
	}
}

func (tt *testTree) globalHook(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(tt.src, hooks.Dir, name)
	writeFile(t, path, content, 0o644)
	return path
}

func (tt *testTree) componentHook(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(varfile.ComponentDir(tt.src, "network"), hooks.Dir, name)
	writeFile(t, path, content, 0o644)
	return path
}

func mkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	mkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	return string(data)
}

func runRequest(t *testing.T, req Request, opts ...Option) *Result {
	t.Helper()
	r, err := NewRunner(req, opts...)
	if err != nil {
		t.Fatalf("NewRunner() error: %v", err)
	}
	return r.Run(context.Background())
}

func TestNewRunner_InvalidRequest(t *testing.T) {
	t.Parallel()

	_, err := NewRunner(Request{Action: "plan"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("NewRunner() = %v, want ErrInvalidRequest", err)
	}
}

func TestRun_NoHooksNoVarFiles(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tree := newTestTree(t)
	res := runRequest(t, tree.request("plan"))

	if !res.Success() {
		t.Fatalf("Run() failed in state %s: %v", res.State, res.Err)
	}
	if res.State != StateDone || res.Reason() != ReasonNone {
		t.Errorf("State = %s, Reason = %q", res.State, res.Reason())
	}
	if len(res.Hooks) != 0 {
		t.Errorf("Hooks = %v, want none", res.Hooks)
	}
	if len(res.VarFiles) != 0 {
		t.Errorf("VarFiles = %v, want none", res.VarFiles)
	}

	out := readFile(t, res.PrimaryLog)
	if !strings.Contains(out, "action=plan") {
		t.Errorf("terraform log = %q, want action=plan", out)
	}
	if !strings.Contains(out, "args=plan "+strings.Join(DefaultFlags, " ")) {
		t.Errorf("terraform log = %q, want the default flags", out)
	}
	if !strings.Contains(out, "env=dev-1.0") {
		t.Errorf("terraform log = %q, want TF_VAR_environment_version", out)
	}
	if filepath.Dir(res.PrimaryLog) != filepath.Join(tree.logs, "network", "dev") {
		t.Errorf("PrimaryLog = %q, want it under the run log directory", res.PrimaryLog)
	}
}

func TestRun_VarFilesInResolutionOrder(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tree := newTestTree(t)
	envDir := filepath.Join(tree.src, varfile.EnvironmentsDir)
	componentEnvDir := filepath.Join(varfile.ComponentDir(tree.src, "network"), varfile.EnvironmentsDir)
	writeFile(t, filepath.Join(envDir, "dev.tfvars"), "a = 1\n", 0o644)
	writeFile(t, filepath.Join(envDir, "dev-1.0.tfvars"), "b = 1\n", 0o644)
	writeFile(t, filepath.Join(componentEnvDir, "dev.tfvars"), "c = 1\n", 0o644)

	res := runRequest(t, tree.request("apply"))
	if !res.Success() {
		t.Fatalf("Run() error: %v", res.Err)
	}

	want := []string{
		filepath.Join(envDir, "dev.tfvars"),
		filepath.Join(envDir, "dev-1.0.tfvars"),
		filepath.Join(componentEnvDir, "dev.tfvars"),
	}
	if !slices.Equal(res.VarFiles, want) {
		t.Errorf("VarFiles = %v, want %v", res.VarFiles, want)
	}
	tail := res.Command[len(res.Command)-3:]
	for i, f := range want {
		if tail[i] != "-var-file="+f {
			t.Errorf("Command[%d] = %q, want -var-file=%s", len(res.Command)-3+i, tail[i], f)
		}
	}
}

func TestRun_HookEnvironmentPropagates(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tree := newTestTree(t)
	tree.globalHook(t, "before.sh", "export HOOK_VALUE=from-global\n")
	tree.componentHook(t, "plan-before.sh", "export HOOK_VALUE=\"$HOOK_VALUE+component\"\n")
	tree.componentHook(t, "plan-after.sh", "echo \"after saw $HOOK_VALUE\"\n")
	tree.globalHook(t, "after.sh", "echo \"global after saw $HOOK_VALUE\"\n")

	res := runRequest(t, tree.request("plan"))
	if !res.Success() {
		t.Fatalf("Run() error: %v", res.Err)
	}

	stages := make([]hooks.Stage, 0, len(res.Hooks))
	for _, h := range res.Hooks {
		stages = append(stages, h.Stage)
	}
	if !slices.Equal(stages, hooks.Stages()) {
		t.Errorf("hook stages = %v, want %v", stages, hooks.Stages())
	}

	if out := readFile(t, res.PrimaryLog); !strings.Contains(out, "hook=from-global+component") {
		t.Errorf("terraform did not see the hook environment: %q", out)
	}
	afterLog := filepath.Join(res.LogDir, "hook-"+hooks.ComponentAfter.String()+".log")
	if out := readFile(t, afterLog); !strings.Contains(out, "after saw from-global+component") {
		t.Errorf("component after hook log = %q", out)
	}
}

func TestRun_VirtualHookShell(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tree := newTestTree(t)
	tree.globalHook(t, "before.sh", "export HOOK_VALUE=virtual\n")
	req := tree.request("plan")
	req.HookShell = runtime.HookShellVirtual

	res := runRequest(t, req)
	if !res.Success() {
		t.Fatalf("Run() error: %v", res.Err)
	}
	if out := readFile(t, res.PrimaryLog); !strings.Contains(out, "hook=virtual") {
		t.Errorf("terraform did not see the virtual hook environment: %q", out)
	}
}

func TestRun_HookFailureStopsRun(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tree := newTestTree(t)
	script := tree.globalHook(t, "before.sh", "echo nope\nexit 3\n")

	res := runRequest(t, tree.request("plan"))
	if res.Success() {
		t.Fatal("Run() should fail when a hook fails")
	}
	if res.Reason() != ReasonHookFailure || res.State != StateGlobalBeforeHook {
		t.Errorf("Reason = %q, State = %s", res.Reason(), res.State)
	}

	var hookErr *HookError
	if !errors.As(res.Err, &hookErr) {
		t.Fatalf("Err = %T, want *HookError", res.Err)
	}
	if hookErr.Stage != hooks.GlobalBefore || hookErr.ExitCode != 3 || hookErr.Script != script {
		t.Errorf("HookError = %+v", hookErr)
	}
	if _, err := os.Stat(res.PrimaryLog); !os.IsNotExist(err) {
		t.Errorf("terraform should not have run, stat error: %v", err)
	}
	if !strings.Contains(readFile(t, hookErr.LogFile), "nope") {
		t.Error("hook output should be in the hook log")
	}
}

func TestRun_CommandFailureSkipsAfterHooks(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tree := newTestTree(t)
	marker := filepath.Join(t.TempDir(), "after-ran")
	tree.componentHook(t, "plan-after.sh", "touch '"+marker+"'\n")

	req := tree.request("plan")
	req.ExtraEnv["FAKE_TF_EXIT"] = "2"
	res := runRequest(t, req)

	if res.Reason() != ReasonCommandFailure || res.State != StateRunPrimaryCommand {
		t.Fatalf("Reason = %q, State = %s, Err = %v", res.Reason(), res.State, res.Err)
	}
	var cmdErr *CommandError
	if !errors.As(res.Err, &cmdErr) || cmdErr.ExitCode != 2 {
		t.Fatalf("Err = %v, want CommandError with exit code 2", res.Err)
	}
	if res.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", res.ExitCode)
	}
	if !strings.Contains(cmdErr.Error(), res.PrimaryLog) {
		t.Errorf("error %q should name the log file", cmdErr.Error())
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("after hook should not run when terraform fails")
	}
}

func TestRun_LogErrors(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tests := []struct {
		name            string
		failOnLogErrors bool
		wantSuccess     bool
	}{
		{name: "fail on log errors", failOnLogErrors: true, wantSuccess: false},
		{name: "ignore log errors", failOnLogErrors: false, wantSuccess: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tree := newTestTree(t)
			marker := filepath.Join(t.TempDir(), "after-ran")
			tree.componentHook(t, "plan-after.sh", "touch '"+marker+"'\n")

			req := tree.request("plan")
			req.FailOnLogErrors = tc.failOnLogErrors
			req.ExtraEnv["FAKE_TF_OUTPUT"] = "Error: provider crashed\nwith details"
			res := runRequest(t, req)

			if res.Success() != tc.wantSuccess {
				t.Fatalf("Success() = %v, want %v (err: %v)", res.Success(), tc.wantSuccess, res.Err)
			}
			_, statErr := os.Stat(marker)
			if tc.wantSuccess {
				if statErr != nil {
					t.Errorf("after hook should have run: %v", statErr)
				}
				return
			}

			if res.Reason() != ReasonLogDetected || res.State != StateScanLog {
				t.Errorf("Reason = %q, State = %s", res.Reason(), res.State)
			}
			var logErr *LogDetectedError
			if !errors.As(res.Err, &logErr) {
				t.Fatalf("Err = %T, want *LogDetectedError", res.Err)
			}
			want := []string{"Error: provider crashed", "with details"}
			if !slices.Equal(logErr.Lines, want) {
				t.Errorf("Lines = %q, want %q", logErr.Lines, want)
			}
			if !os.IsNotExist(statErr) {
				t.Error("after hook should not run when the log has errors")
			}
		})
	}
}

func TestRun_LogOutputEchoesInOrder(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tree := newTestTree(t)
	req := tree.request("plan")
	req.LogOutput = true
	var out bytes.Buffer
	res := runRequest(t, req, WithOutput(&out))
	if !res.Success() {
		t.Fatalf("Run() error: %v", res.Err)
	}

	for _, narrative := range []string{out.String(), readFile(t, filepath.Join(res.LogDir, RunLogFile))} {
		actionAt := strings.Index(narrative, "plan: action=plan")
		envAt := strings.Index(narrative, "plan: env=dev-1.0")
		if actionAt < 0 || envAt < 0 || actionAt > envAt {
			t.Errorf("narrative log should echo terraform output in order:\n%s", narrative)
		}
	}
}

func TestRun_NotADirectory(t *testing.T) {
	t.Parallel()

	req := Request{
		Component:   "network",
		Environment: "dev",
		Action:      "plan",
		SourceDir:   filepath.Join(t.TempDir(), "missing"),
	}
	res := runRequest(t, req)
	if res.Reason() != ReasonNotADirectory {
		t.Fatalf("Reason = %q, want %q (err: %v)", res.Reason(), ReasonNotADirectory, res.Err)
	}
	if _, err := os.Stat(req.SourceDir); !os.IsNotExist(err) {
		t.Error("a failed run must not create the source directory")
	}
}

func TestRun_UnknownComponent(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tree := newTestTree(t)
	req := tree.request("plan")
	req.Component = "absent"

	res := runRequest(t, req)
	if res.Reason() != ReasonNotADirectory {
		t.Fatalf("Reason = %q, want %q (err: %v)", res.Reason(), ReasonNotADirectory, res.Err)
	}
	if res.State != StateResolveConfig {
		t.Errorf("State = %s, want %s", res.State, StateResolveConfig)
	}
	var nadErr *varfile.NotADirectoryError
	if !errors.As(res.Err, &nadErr) || nadErr.Path != varfile.ComponentDir(tree.src, "absent") {
		t.Errorf("Err = %v, want NotADirectoryError for the component directory", res.Err)
	}
	if len(res.Command) != 0 {
		t.Errorf("Command = %v, want none", res.Command)
	}
	if _, err := os.Stat(res.PrimaryLog); !os.IsNotExist(err) {
		t.Error("terraform must not run for an unknown component")
	}
}

func TestRun_HooksRunInComponentDir(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tree := newTestTree(t)
	tree.globalHook(t, "before.sh", "export HOOK_VALUE=\"$(pwd -P)\"\n")
	tree.componentHook(t, "plan-before.sh", "echo \"component before pwd $(pwd -P)\"\n")
	tree.globalHook(t, "after.sh", "echo \"global after pwd $(pwd -P)\"\n")

	res := runRequest(t, tree.request("plan"))
	if !res.Success() {
		t.Fatalf("Run() error: %v", res.Err)
	}

	componentDir, err := filepath.EvalSymlinks(varfile.ComponentDir(tree.src, "network"))
	if err != nil {
		t.Fatal(err)
	}
	if out := readFile(t, res.PrimaryLog); !strings.Contains(out, "hook="+componentDir+"\n") {
		t.Errorf("global before hook did not run in %s: %q", componentDir, out)
	}
	for stage, want := range map[hooks.Stage]string{
		hooks.ComponentBefore: "component before pwd " + componentDir,
		hooks.GlobalAfter:     "global after pwd " + componentDir,
	} {
		logFile := filepath.Join(res.LogDir, "hook-"+stage.String()+".log")
		if out := readFile(t, logFile); !strings.Contains(out, want) {
			t.Errorf("%s hook log = %q, want %q", stage, out, want)
		}
	}
}

func TestRun_NarrativeLogsHookExitCode(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tree := newTestTree(t)
	script := tree.globalHook(t, "before.sh", "export HOOK_VALUE=logged\n")

	res := runRequest(t, tree.request("plan"))
	if !res.Success() {
		t.Fatalf("Run() error: %v", res.Err)
	}

	var found bool
	for line := range strings.SplitSeq(readFile(t, filepath.Join(res.LogDir, RunLogFile)), "\n") {
		if strings.Contains(line, "hook finished") {
			found = strings.Contains(line, "exit=0") && strings.Contains(line, script) &&
				strings.Contains(line, hooks.GlobalBefore.String())
			break
		}
	}
	if !found {
		t.Errorf("run log does not record the hook result:\n%s", readFile(t, filepath.Join(res.LogDir, RunLogFile)))
	}
}

func TestRun_RemovesStalePrimaryLog(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tree := newTestTree(t)
	req := tree.request("plan")
	writeFile(t, req.PrimaryLogFile(), "Error: from a previous run\n", 0o644)

	res := runRequest(t, req)
	if !res.Success() {
		t.Fatalf("Run() error: %v", res.Err)
	}
	if strings.Contains(readFile(t, res.PrimaryLog), "previous run") {
		t.Error("stale terraform log was not replaced")
	}
}

func TestRun_WritesSummary(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tree := newTestTree(t)
	tree.globalHook(t, "before.sh", "true\n")
	res := runRequest(t, tree.request("plan"))
	if !res.Success() {
		t.Fatalf("Run() error: %v", res.Err)
	}

	s, err := ReadSummary(res.LogDir)
	if err != nil {
		t.Fatalf("ReadSummary() error: %v", err)
	}
	if s.Status != StatusDone || s.Action != "plan" || s.Component != "network" {
		t.Errorf("summary = %+v", s)
	}
	if !slices.Equal(s.Command, []string(res.Command)) {
		t.Errorf("summary command = %v, want %v", s.Command, res.Command)
	}
	if len(s.Hooks) != 1 || s.Hooks[0].Stage != hooks.GlobalBefore.String() {
		t.Errorf("summary hooks = %+v", s.Hooks)
	}
}

func TestRun_EnvFilesAndExtraEnv(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tree := newTestTree(t)
	envFile := filepath.Join(t.TempDir(), "run.env")
	writeFile(t, envFile, "HOOK_VALUE=from-file\nFAKE_TF_EXIT=0\n", 0o644)

	req := tree.request("plan")
	req.EnvFiles = []string{envFile, filepath.Join(t.TempDir(), "optional.env") + "?"}
	res := runRequest(t, req)
	if !res.Success() {
		t.Fatalf("Run() error: %v", res.Err)
	}
	if !strings.Contains(readFile(t, res.PrimaryLog), "hook=from-file") {
		t.Error("terraform should see variables from env files")
	}

	req.ExtraEnv["HOOK_VALUE"] = "from-flag"
	res = runRequest(t, req)
	if !strings.Contains(readFile(t, res.PrimaryLog), "hook=from-flag") {
		t.Error("extra env should override env files")
	}
}

func TestRun_Timeout(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tree := newTestTree(t)
	tree.globalHook(t, "before.sh", "sleep 5\n")
	req := tree.request("plan")
	req.Timeout = 100 * time.Millisecond

	res := runRequest(t, req)
	if res.Reason() != ReasonHookFailure {
		t.Fatalf("Reason = %q, want %q (err: %v)", res.Reason(), ReasonHookFailure, res.Err)
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want it to wrap context.DeadlineExceeded", res.Err)
	}
}

func TestRun_CanceledContext(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	tree := newTestTree(t)
	r, err := NewRunner(tree.request("plan"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Run(ctx)
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("Err = %v, want context.Canceled", res.Err)
	}
	if res.State != StateResolveConfig {
		t.Errorf("State = %s, want %s", res.State, StateResolveConfig)
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	writeFile(t, filepath.Join(tree.src, varfile.EnvironmentsDir, "dev.tfvars"), "", 0o644)
	before := tree.globalHook(t, "before.sh", "")
	after := tree.componentHook(t, "plan-after.sh", "")

	plan, err := Describe(tree.request("plan"))
	if err != nil {
		t.Fatalf("Describe() error: %v", err)
	}
	if len(plan.VarFiles) != 1 || plan.Command.Executable() != tree.terraform {
		t.Errorf("plan = %+v", plan)
	}
	want := []hooks.Descriptor{
		{Stage: hooks.GlobalBefore, Path: before},
		{Stage: hooks.ComponentAfter, Path: after},
	}
	if !slices.Equal(plan.Hooks, want) {
		t.Errorf("Hooks = %v, want %v", plan.Hooks, want)
	}
	if _, err := os.Stat(plan.LogDir); !os.IsNotExist(err) {
		t.Error("Describe() must not create the log directory")
	}
}
