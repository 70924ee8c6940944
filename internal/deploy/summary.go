// SPDX-License-Identifier: MPL-2.0

package deploy

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type (
	// Summary is the persisted form of a Result, written to run.toml.
	Summary struct {
		Component   string        `toml:"component"`
		Environment string        `toml:"environment"`
		Version     string        `toml:"version"`
		Action      string        `toml:"action"`
		TaskName    string        `toml:"task_name"`
		Status      Status        `toml:"status"`
		Reason      Reason        `toml:"reason,omitempty"`
		Error       string        `toml:"error,omitempty"`
		State       string        `toml:"state"`
		ExitCode    int           `toml:"exit_code"`
		StartedAt   time.Time     `toml:"started_at"`
		Duration    string        `toml:"duration"`
		WorkDir     string        `toml:"work_dir"`
		Command     []string      `toml:"command"`
		VarFiles    []string      `toml:"var_files"`
		PrimaryLog  string        `toml:"primary_log"`
		Hooks       []HookSummary `toml:"hooks,omitempty"`
	}

	// HookSummary is the persisted form of a HookInvocation.
	HookSummary struct {
		Stage    string `toml:"stage"`
		Script   string `toml:"script"`
		ExitCode int    `toml:"exit_code"`
		LogFile  string `toml:"log_file"`
		Duration string `toml:"duration"`
	}
)

// Summarize converts a Result into its persisted form.
func Summarize(res *Result) Summary {
	s := Summary{
		Component:   res.Request.Component,
		Environment: res.Request.Environment,
		Version:     res.Request.Version,
		Action:      res.Request.Action,
		TaskName:    res.Request.Task(),
		Status:      res.Status,
		Reason:      res.Reason(),
		State:       res.State.String(),
		ExitCode:    int(res.ExitCode),
		StartedAt:   res.StartedAt.UTC().Truncate(time.Millisecond),
		Duration:    res.Duration.Round(time.Millisecond).String(),
		WorkDir:     res.WorkDir,
		Command:     []string(res.Command),
		VarFiles:    res.VarFiles,
		PrimaryLog:  res.PrimaryLog,
	}
	if res.Err != nil {
		s.Error = res.Err.Error()
	}
	for _, h := range res.Hooks {
		s.Hooks = append(s.Hooks, HookSummary{
			Stage:    h.Stage.String(),
			Script:   h.Script,
			ExitCode: int(h.ExitCode),
			LogFile:  h.LogFile,
			Duration: h.Duration.Round(time.Millisecond).String(),
		})
	}
	return s
}

// WriteSummary writes the summary of res to run.toml in its log directory.
func WriteSummary(res *Result) error {
	data, err := toml.Marshal(Summarize(res))
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	path := filepath.Join(res.LogDir, SummaryFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}
	return nil
}

// ReadSummary loads the run.toml of the last run recorded in logDir.
func ReadSummary(logDir string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(logDir, SummaryFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read run summary: %w", err)
	}
	var s Summary
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse run summary %s: %w", filepath.Join(logDir, SummaryFile), err)
	}
	return &s, nil
}
