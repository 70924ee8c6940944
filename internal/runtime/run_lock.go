// SPDX-License-Identifier: MPL-2.0

package runtime

import "errors"

// lockFileName is the lock file created inside each run log directory.
const lockFileName = ".lock"

// ErrRunLocked is returned when another run already holds a log directory.
var ErrRunLocked = errors.New("another run is already in progress")
