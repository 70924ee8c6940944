// SPDX-License-Identifier: MPL-2.0

package deploy

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const (
	// ErrorMarker flags a line of Terraform output as an error.
	ErrorMarker = "Error: "

	maxLogLine = 1024 * 1024
)

// ScanLog reads the log at path line by line. Every line is passed to echo
// when it is non-nil. When collect is set, the returned slice holds every
// line containing ErrorMarker and every line after the first such line,
// so the context that follows an error is kept.
func ScanLog(path string, echo func(line string), collect bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open terraform log: %w", err)
	}
	defer f.Close()

	var (
		offending []string
		inError   bool
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)
	for scanner.Scan() {
		line := scanner.Text()
		if echo != nil {
			echo(line)
		}
		if !collect {
			continue
		}
		if strings.Contains(line, ErrorMarker) {
			inError = true
		}
		if inError {
			offending = append(offending, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return offending, fmt.Errorf("failed to read terraform log: %w", err)
	}
	return offending, nil
}
