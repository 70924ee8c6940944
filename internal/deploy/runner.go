// SPDX-License-Identifier: MPL-2.0

package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tfrun/tfrun/internal/hooks"
	"github.com/tfrun/tfrun/internal/runtime"
	"github.com/tfrun/tfrun/internal/varfile"
)

type (
	// Option configures a Runner.
	Option func(*Runner)

	// Runner executes a Request. A Runner may be run more than once; every
	// Run starts from a fresh copy of the host environment.
	Runner struct {
		req    Request
		logger *log.Logger
		output io.Writer
	}

	// run holds the state owned by a single Run call.
	run struct {
		*Runner
		result    *Result
		env       *runtime.Environment
		executor  *runtime.Executor
		capturer  *runtime.HookCapturer
		narrative *log.Logger
		runLog    *os.File
		lock      *runtime.RunLock
	}

	step struct {
		state State
		fn    func(context.Context) error
	}
)

// WithLogger sets the logger that receives process launch details at debug level.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithOutput mirrors the narrative log to w.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.output = w
	}
}

// NewRunner validates req and returns a Runner for it.
func NewRunner(req Request, opts ...Option) (*Runner, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		req:    req,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Request returns the request this runner executes.
func (r *Runner) Request() Request {
	return r.req
}

// Run executes the request. It never returns nil; failures are reported
// through Result.Err and Result.Status.
func (r *Runner) Run(ctx context.Context) *Result {
	res := &Result{
		Request:    r.req,
		State:      StateInit,
		LogDir:     r.req.RunLogDir(),
		PrimaryLog: r.req.PrimaryLogFile(),
		WorkDir:    varfile.ComponentDir(r.req.SourceDir, r.req.Component),
		StartedAt:  time.Now(),
	}
	s := &run{Runner: r, result: res, narrative: r.consoleLogger()}

	err := s.execute(ctx)
	res.Duration = time.Since(res.StartedAt)
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		if res.ExitCode == 0 {
			res.ExitCode = 1
		}
		s.narrative.Error("run failed", "state", res.State, "reason", res.Reason(), "err", err)
	} else {
		res.Status = StatusDone
		res.State = StateDone
		s.narrative.Info("run finished", "duration", res.Duration.Round(time.Millisecond))
	}
	s.close()
	return res
}

// consoleLogger is the narrative logger used until run.log is open.
func (r *Runner) consoleLogger() *log.Logger {
	if r.output == nil {
		return log.New(io.Discard)
	}
	return newNarrativeLogger(r.output)
}

func (s *run) execute(ctx context.Context) error {
	if err := s.init(); err != nil {
		return err
	}

	steps := []step{
		{StateResolveConfig, s.resolveConfig},
		{StateBuildCommand, s.buildCommand},
		s.hookStep(hooks.GlobalBefore),
		s.hookStep(hooks.ComponentBefore),
		{StateRunPrimaryCommand, s.runPrimaryCommand},
		{StateScanLog, s.scanLog},
		s.hookStep(hooks.ComponentAfter),
		s.hookStep(hooks.GlobalAfter),
	}
	for _, st := range steps {
		s.result.State = st.state
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run canceled before %s: %w", st.state, err)
		}
		s.narrative.Debug("entering state", "state", st.state)
		if err := st.fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// init builds the run environment and prepares the log directory.
func (s *run) init() error {
	req := s.req
	if req.LogDir == "" {
		// The default log root lives under the source directory; do not create it.
		if err := varfile.CheckSourceDir(req.SourceDir); err != nil {
			return err
		}
	}

	s.env = runtime.HostEnvironment()
	s.env.Merge(req.BaselineEnv())
	for _, path := range req.EnvFiles {
		if err := runtime.LoadEnvFile(s.env, path, ""); err != nil {
			return err
		}
	}
	s.env.Merge(req.ExtraEnv)

	logDir := s.result.LogDir
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	lock, err := runtime.AcquireRunLock(logDir)
	if err != nil {
		return err
	}
	s.lock = lock

	if err := os.Remove(s.result.PrimaryLog); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove stale terraform log: %w", err)
	}

	runLog, err := os.Create(filepath.Join(logDir, RunLogFile))
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	s.runLog = runLog
	var w io.Writer = runLog
	if s.output != nil {
		w = io.MultiWriter(runLog, s.output)
	}
	s.narrative = newNarrativeLogger(w)

	s.executor = runtime.NewExecutor(s.env, s.logger)
	s.capturer = runtime.NewHookCapturer(s.executor)
	s.capturer.Mode = req.HookShell
	s.capturer.Shell = req.Shell

	s.narrative.Info("starting run",
		"component", req.Component,
		"environment", req.Environment,
		"version", req.Version,
		"action", req.Action,
		"task", req.Task())
	s.narrative.Debug("run environment ready", "vars", s.env.Len(), "env_files", len(req.EnvFiles))
	return nil
}

func (s *run) resolveConfig(context.Context) error {
	files, err := varfile.ResolveComponent(s.req.SourceDir, s.req.Component, s.req.Environment, s.req.Version)
	if err != nil {
		return err
	}
	s.result.VarFiles = files
	if len(files) == 0 {
		s.narrative.Warn("no variable files found", "environment", s.req.Environment, "version", s.req.Version)
	}
	for _, f := range files {
		s.narrative.Info("using variable file", "path", f)
	}
	return nil
}

func (s *run) buildCommand(context.Context) error {
	executable := ResolveExecutable(s.req.TerraformPath)
	if s.req.TerraformPath != "" && executable != s.req.TerraformPath {
		s.narrative.Warn("terraform path not found, falling back to PATH", "path", s.req.TerraformPath)
	}
	s.result.Command = BuildCommand(executable, s.req.Action, s.result.VarFiles)
	s.narrative.Info("command line", "command", s.result.Command.String(), "dir", s.result.WorkDir)
	return nil
}

func (s *run) hookStep(stage hooks.Stage) step {
	return step{hookState(stage), s.hook(stage)}
}

// hook returns the step that sources the hook of stage, if there is one.
func (s *run) hook(stage hooks.Stage) func(context.Context) error {
	return func(ctx context.Context) error {
		desc, ok := hooks.Locate(stage, s.req.SourceDir, s.req.Component, s.req.Task())
		if !ok {
			s.narrative.Debug("no hook", "stage", stage)
			return nil
		}

		logFile := filepath.Join(s.result.LogDir, "hook-"+stage.String()+".log")
		s.narrative.Info("sourcing hook", "stage", stage, "script", desc.Path, "log", logFile)

		hctx, cancel := s.subprocessContext(ctx)
		defer cancel()
		started := time.Now()
		code, err := s.capturer.RunHook(hctx, desc.Path, s.result.WorkDir, logFile)
		s.result.Hooks = append(s.result.Hooks, HookInvocation{
			Stage:    stage,
			Script:   desc.Path,
			ExitCode: code,
			LogFile:  logFile,
			Duration: time.Since(started),
		})
		if err != nil {
			return &HookError{Stage: stage, Script: desc.Path, ExitCode: code, LogFile: logFile, Err: err}
		}
		s.narrative.Info("hook finished", "stage", stage, "script", desc.Path, "exit", code)
		s.narrative.Debug("hook environment captured", "stage", stage, "vars", s.env.Len())
		return nil
	}
}

func (s *run) runPrimaryCommand(ctx context.Context) error {
	cctx, cancel := s.subprocessContext(ctx)
	defer cancel()

	s.narrative.Info("running terraform", "action", s.req.Action, "log", s.result.PrimaryLog)
	code, err := s.executor.Run(cctx, s.result.Command, s.result.WorkDir, s.result.PrimaryLog)
	s.result.ExitCode = code
	if err != nil {
		return &CommandError{ExitCode: code, Command: s.result.Command, LogFile: s.result.PrimaryLog, Err: err}
	}
	s.narrative.Info("terraform finished", "action", s.req.Action, "exit", code)
	return nil
}

func (s *run) scanLog(context.Context) error {
	var echo func(string)
	if s.req.LogOutput {
		tagged := s.narrative.WithPrefix(s.req.Action)
		echo = func(line string) { tagged.Print(line) }
	}

	lines, err := ScanLog(s.result.PrimaryLog, echo, s.req.FailOnLogErrors)
	if err != nil {
		return err
	}
	if len(lines) > 0 {
		return &LogDetectedError{Action: s.req.Action, LogFile: s.result.PrimaryLog, Lines: lines}
	}
	return nil
}

// subprocessContext bounds a single hook or command by the request timeout.
func (s *run) subprocessContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.req.Timeout > 0 {
		return context.WithTimeout(ctx, s.req.Timeout)
	}
	return context.WithCancel(ctx)
}

// close writes the summary and releases the run's resources.
func (s *run) close() {
	if s.runLog != nil {
		if err := WriteSummary(s.result); err != nil {
			s.narrative.Warn("could not write run summary", "err", err)
		}
		s.runLog.Close()
	}
	if err := s.lock.Release(); err != nil {
		s.logger.Warn("could not release run lock", "dir", s.result.LogDir, "err", err)
	}
}
