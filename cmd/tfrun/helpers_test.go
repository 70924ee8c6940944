// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	goruntime "runtime"
	"testing"

	"github.com/tfrun/tfrun/internal/config"
)

// fakeTerraform prints its action and a baseline variable, then prints
// FAKE_TF_OUTPUT and exits with FAKE_TF_EXIT.
const fakeTerraform = `#!/bin/sh
echo "action=$1"
echo "env=$TF_VAR_environment_version"
if [ -n "$FAKE_TF_OUTPUT" ]; then
  printf '%s\n' "$FAKE_TF_OUTPUT"
fi
exit ${FAKE_TF_EXIT:-0}
`

type staticConfig struct {
	cfg *config.Config
	err error
}

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	cfg := *s.cfg
	return &cfg, nil
}

type testCLI struct {
	app    *App
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestCLI(cfg *config.Config) *testCLI {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := &testCLI{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	c.app = NewApp(Dependencies{Config: staticConfig{cfg: cfg}, Stdout: c.stdout, Stderr: c.stderr})
	return c
}

// execute runs the command tree with args, the way fang would.
func (c *testCLI) execute(args ...string) error {
	root := NewRootCommand(c.app)
	root.SilenceErrors = true
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if goruntime.GOOS == "windows" {
		t.Skip("skipping: requires a POSIX shell")
	}
}

// newSourceTree creates a source root with a "network" component, a dev
// variable file and a fake terraform. It returns the source root and the
// terraform path.
func newSourceTree(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	terraform := filepath.Join(root, "bin", "terraform")
	writeTestFile(t, filepath.Join(src, "environments", "dev.tfvars"), "", 0o644)
	writeTestFile(t, filepath.Join(src, "components", "network", "main.tf"), "", 0o644)
	writeTestFile(t, terraform, fakeTerraform, 0o755)
	return src, terraform
}

func writeTestFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatal(err)
	}
}
