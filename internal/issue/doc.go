// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the operation that failed, the resource involved and
// remediation hints. The issue catalog holds longer Markdown guidance for the
// failure classes of a run, rendered with glamour in verbose mode.
package issue
