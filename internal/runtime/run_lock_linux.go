// SPDX-License-Identifier: MPL-2.0

//go:build linux

package runtime

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// RunLock holds an exclusive flock on a run's log directory so two runs of the
// same component and environment cannot interleave their logs. The zero-byte
// lock file is harmless if orphaned: the kernel releases the flock when the fd
// is closed, including on process crash.
type RunLock struct {
	file *os.File
}

// AcquireRunLock takes the lock for dir without blocking. It returns
// ErrRunLocked when another run holds it.
func AcquireRunLock(dir string) (*RunLock, error) {
	return acquireRunLockAt(filepath.Join(dir, lockFileName))
}

func acquireRunLockAt(lockPath string) (*RunLock, error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", lockPath, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrRunLocked, lockPath)
		}
		return nil, fmt.Errorf("flock %s: %w", lockPath, err)
	}

	return &RunLock{file: f}, nil
}

// Release unlocks the flock and closes the file descriptor. It is safe to call
// multiple times; subsequent calls are no-ops.
func (l *RunLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	return errors.Join(unlockErr, closeErr)
}
