package transport

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// endpointLock is an exclusive advisory lock guarding one ipc socket path.
// The kernel releases it when the owning process exits.
type endpointLock struct {
	file *os.File
}

func acquireLock(path string) (*endpointLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open lock %s: %v", ErrBindFailed, path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrEndpointBusy, path)
		}
		return nil, fmt.Errorf("%w: lock %s: %v", ErrBindFailed, path, err)
	}
	return &endpointLock{file: f}, nil
}

func (l *endpointLock) release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	return errors.Join(unlockErr, closeErr)
}

func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove stale socket %s: %v", ErrBindFailed, path, err)
	}
	return nil
}
