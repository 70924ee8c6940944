// SPDX-License-Identifier: MPL-2.0

package deploy

import (
	"github.com/tfrun/tfrun/internal/hooks"
	"github.com/tfrun/tfrun/internal/runtime"
	"github.com/tfrun/tfrun/internal/varfile"
)

// Plan is what a run of a request would do, computed without running anything.
type Plan struct {
	Request  Request
	LogDir   string
	WorkDir  string
	VarFiles []string
	Command  runtime.CommandLine
	Hooks    []hooks.Descriptor
}

// Describe resolves the variable files, command line and hooks of req.
// Hooks are located now; a real run locates each one when its stage starts,
// so scripts created by earlier hooks are not listed here.
func Describe(req Request) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	files, err := varfile.ResolveComponent(req.SourceDir, req.Component, req.Environment, req.Version)
	if err != nil {
		return nil, err
	}
	plan := &Plan{
		Request:  req,
		LogDir:   req.RunLogDir(),
		WorkDir:  varfile.ComponentDir(req.SourceDir, req.Component),
		VarFiles: files,
		Command:  BuildCommand(ResolveExecutable(req.TerraformPath), req.Action, files),
	}
	for _, stage := range hooks.Stages() {
		if desc, ok := hooks.Locate(stage, req.SourceDir, req.Component, req.Task()); ok {
			plan.Hooks = append(plan.Hooks, desc)
		}
	}
	return plan, nil
}
