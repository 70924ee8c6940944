// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/tfrun/tfrun/internal/config"
	"github.com/tfrun/tfrun/internal/deploy"
	"github.com/tfrun/tfrun/internal/runtime"
)

func parseRunFlags(t *testing.T, args ...string) (*runFlags, *pflag.FlagSet) {
	t.Helper()
	f := &runFlags{action: "plan"}
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	f.registerTarget(flags)
	f.registerExecution(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return f, flags
}

func TestRunFlags_RequestUsesConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.TerraformPath = "/opt/terraform"
	cfg.FailOnLogErrors = false
	cfg.HookShell = config.HookShellVirtual
	cfg.Timeout = "10m"

	f, flags := parseRunFlags(t, "--env", "dev", "--version", "1.0")
	req, err := f.request(flags, cfg, "network")
	if err != nil {
		t.Fatalf("request() error: %v", err)
	}

	if req.TerraformPath != "/opt/terraform" {
		t.Errorf("TerraformPath = %q, want config value", req.TerraformPath)
	}
	if req.FailOnLogErrors {
		t.Error("FailOnLogErrors should come from config")
	}
	if !req.LogOutput {
		t.Error("LogOutput should default to true")
	}
	if req.HookShell != runtime.HookShellVirtual {
		t.Errorf("HookShell = %q, want virtual", req.HookShell)
	}
	if req.Timeout != 10*time.Minute {
		t.Errorf("Timeout = %s, want 10m", req.Timeout)
	}
	if !filepath.IsAbs(req.SourceDir) {
		t.Errorf("SourceDir = %q, want an absolute path", req.SourceDir)
	}
	if req.Component != "network" || req.Environment != "dev" || req.Version != "1.0" || req.Action != "plan" {
		t.Errorf("request = %+v", req)
	}
}

func TestRunFlags_DefaultEnvironmentAndVersion(t *testing.T) {
	t.Parallel()

	f, flags := parseRunFlags(t)
	req, err := f.request(flags, config.DefaultConfig(), "network")
	if err != nil {
		t.Fatalf("request() error: %v", err)
	}
	if req.Environment != "dev" || req.Version != "undefined" {
		t.Errorf("Environment = %q, Version = %q, want dev and undefined", req.Environment, req.Version)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
	if got := req.BaselineEnv()[deploy.EnvVarEnvironmentVersion]; got != "dev-undefined" {
		t.Errorf("%s = %q, want dev-undefined", deploy.EnvVarEnvironmentVersion, got)
	}
}

func TestRunFlags_RequestFlagsWin(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.TerraformPath = "/opt/terraform"
	cfg.Timeout = "10m"

	f, flags := parseRunFlags(t,
		"-e", "prod",
		"--terraform", "/usr/local/bin/terraform",
		"--fail-on-log-errors=false",
		"--log-output=false",
		"--hook-shell", "virtual",
		"--timeout", "30s",
		"--log-dir", "logs",
		"--env-var", "A=1",
		"--env-var", "B=two=2",
	)
	req, err := f.request(flags, cfg, "network")
	if err != nil {
		t.Fatalf("request() error: %v", err)
	}

	if req.TerraformPath != "/usr/local/bin/terraform" {
		t.Errorf("TerraformPath = %q", req.TerraformPath)
	}
	if req.FailOnLogErrors || req.LogOutput {
		t.Errorf("FailOnLogErrors=%v LogOutput=%v, want both false", req.FailOnLogErrors, req.LogOutput)
	}
	if req.HookShell != runtime.HookShellVirtual {
		t.Errorf("HookShell = %q", req.HookShell)
	}
	if req.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", req.Timeout)
	}
	if !filepath.IsAbs(req.LogDir) || filepath.Base(req.LogDir) != "logs" {
		t.Errorf("LogDir = %q, want absolute .../logs", req.LogDir)
	}
	if req.ExtraEnv["A"] != "1" || req.ExtraEnv["B"] != "two=2" {
		t.Errorf("ExtraEnv = %v", req.ExtraEnv)
	}
}

func TestRunFlags_RequestRejectsBadEnvVar(t *testing.T) {
	t.Parallel()

	f, flags := parseRunFlags(t, "-e", "dev", "--env-var", "NOEQUALS")
	if _, err := f.request(flags, config.DefaultConfig(), "network"); err == nil {
		t.Fatal("request() should reject an assignment without '='")
	}
}

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  *deploy.Result
		want int
	}{
		{"success", &deploy.Result{Status: deploy.StatusDone}, 0},
		{"command failure keeps terraform code", &deploy.Result{
			Status: deploy.StatusFailed, Err: &deploy.CommandError{ExitCode: 3}, ExitCode: 3,
		}, 3},
		{"hook failure", &deploy.Result{
			Status: deploy.StatusFailed, Err: &deploy.HookError{ExitCode: 4}, ExitCode: 4,
		}, 1},
		{"log errors", &deploy.Result{
			Status: deploy.StatusFailed, Err: &deploy.LogDetectedError{}, ExitCode: 1,
		}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.res); got != tt.want {
				t.Errorf("exitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPlanCommand_Succeeds(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	src, terraform := newSourceTree(t)
	cli := newTestCLI(nil)

	if err := cli.execute("plan", "network", "-e", "dev", "-C", src, "--terraform", terraform); err != nil {
		t.Fatalf("execute() error: %v\nstderr: %s", err, cli.stderr)
	}
	if !strings.Contains(cli.stdout.String(), "network/dev") {
		t.Errorf("stdout = %q, want the component and environment", cli.stdout)
	}

	logFile := filepath.Join(src, ".tfrun", "logs", "network", "dev", "terraform-plan.log")
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !strings.Contains(string(data), "action=plan") {
		t.Errorf("terraform log = %q", data)
	}
}

func TestRunCommand_FailureReturnsExitError(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	src, terraform := newSourceTree(t)
	cli := newTestCLI(nil)

	err := cli.execute("run", "network", "--action", "apply", "-e", "dev", "-C", src,
		"--terraform", terraform, "--env-var", "FAKE_TF_EXIT=3")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("execute() error = %v, want *ExitError", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("Code = %d, want terraform's exit code 3", exitErr.Code)
	}
	if exitErr.Err != nil {
		t.Errorf("Err = %v, want nil for an already rendered failure", exitErr.Err)
	}
	if !strings.Contains(cli.stderr.String(), "command-failure") {
		t.Errorf("stderr = %q, want the failure card", cli.stderr)
	}
}

func TestRunCommand_InvalidComponent(t *testing.T) {
	t.Parallel()

	cli := newTestCLI(nil)
	err := cli.execute("plan", "../escape", "-e", "dev", "-C", t.TempDir())
	if !errors.Is(err, deploy.ErrInvalidRequest) {
		t.Fatalf("execute() error = %v, want ErrInvalidRequest", err)
	}
}

func TestRunCommand_ConfigError(t *testing.T) {
	t.Parallel()

	loadErr := errors.New("broken config")
	cli := newTestCLI(nil)
	cli.app.Config = staticConfig{err: loadErr}

	if err := cli.execute("plan", "network", "-e", "dev"); !errors.Is(err, loadErr) {
		t.Fatalf("execute() error = %v, want %v", err, loadErr)
	}
}
