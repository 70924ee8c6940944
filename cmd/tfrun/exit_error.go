// SPDX-License-Identifier: MPL-2.0

package cmd

import "fmt"

// ExitError makes Execute exit with Code. Commands that already printed
// their failure leave Err nil so the error handler stays silent.
type ExitError struct {
	Code int
	Err  error
}

// renderedFailure returns the ExitError of a failure that was already shown.
func renderedFailure(code int) *ExitError {
	return &ExitError{Code: code}
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
