// SPDX-License-Identifier: MPL-2.0

package deploy

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// RunLogFile is the narrative log of a run, inside the run log directory.
	RunLogFile = "run.log"
	// SummaryFile is the machine-readable result of a run.
	SummaryFile = "run.toml"
)

// newNarrativeLogger creates the logger that records what a run attempted.
func newNarrativeLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           log.DebugLevel,
		Prefix:          "tfrun",
	})
}
