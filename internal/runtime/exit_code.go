// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"os/exec"
	"strconv"
)

// maxExitCode is the largest status a POSIX process can exit with.
const maxExitCode = 255

// ExitCode is the exit status of a hook or command. Zero means success.
type ExitCode int

// exitCodeOf maps a finished process onto its exit code. It reports false
// when the process did not exit on its own (killed by a signal), in which
// case the code is 1.
func exitCodeOf(exitErr *exec.ExitError) (ExitCode, bool) {
	code := exitErr.ExitCode()
	if code < 0 || code > maxExitCode {
		return 1, false
	}
	return ExitCode(code), true
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
