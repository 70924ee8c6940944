// SPDX-License-Identifier: MPL-2.0

package deploy

import (
	"os"
	"slices"

	"github.com/tfrun/tfrun/internal/runtime"
)

// DefaultExecutable is launched when no TerraformPath exists on disk.
// It is resolved on PATH at launch time.
const DefaultExecutable = "terraform"

// DefaultFlags are passed to every action, right after the action name.
var DefaultFlags = []string{
	"-no-color",
	"-input=false",
	"-force-copy",
	"-backend=true",
	"-reconfigure",
	"-upgrade",
}

// ResolveExecutable returns terraformPath when it names an existing file and
// DefaultExecutable otherwise.
func ResolveExecutable(terraformPath string) string {
	if terraformPath == "" {
		return DefaultExecutable
	}
	if info, err := os.Stat(terraformPath); err == nil && !info.IsDir() {
		return terraformPath
	}
	return DefaultExecutable
}

// BuildCommand assembles `<exe> <action> <DefaultFlags...> -var-file=<f>...`
// with the var files in resolution order.
func BuildCommand(executable, action string, varFiles []string) runtime.CommandLine {
	command := make(runtime.CommandLine, 0, 2+len(DefaultFlags)+len(varFiles))
	command = append(command, executable, action)
	command = append(command, slices.Clone(DefaultFlags)...)
	for _, f := range varFiles {
		command = append(command, "-var-file="+f)
	}
	return command
}
