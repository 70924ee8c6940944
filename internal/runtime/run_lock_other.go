// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package runtime

// RunLock is the non-Linux stub. Runs are not serialized on these platforms.
type RunLock struct{}

// AcquireRunLock is a no-op on non-Linux platforms.
func AcquireRunLock(string) (*RunLock, error) {
	return &RunLock{}, nil
}

// Release is a no-op on non-Linux platforms.
func (l *RunLock) Release() error { return nil }
