package mover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gofrs/flock"

	"shelver/internal/services"
)

// ProbeFunc checks that a file can be moved right now. A non-nil error means
// the file should be skipped this pass.
type ProbeFunc func(path string) (fs.FileInfo, error)

// Probe verifies path is a regular file that no other process holds an
// advisory lock on, by taking and releasing a non-blocking exclusive lock on
// a read/write handle. The file is never created.
func Probe(path string) (fs.FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotAccessible, "mover", "probe", "file vanished", err)
		}
		return nil, services.Wrap(services.ErrNotAccessible, "mover", "probe", "stat failed", err)
	}
	if !info.Mode().IsRegular() {
		return nil, services.Wrap(services.ErrNotAccessible, "mover", "probe", fmt.Sprintf("not a regular file (%s)", info.Mode().Type()), nil)
	}

	lock := flock.New(path, flock.SetFlag(os.O_RDWR))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrNotAccessible, "mover", "probe", "open for exclusive access failed", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrNotAccessible, "mover", "probe", "file is locked by another process", nil)
	}
	if err := lock.Unlock(); err != nil {
		return nil, services.Wrap(services.ErrNotAccessible, "mover", "probe", "release probe lock", err)
	}
	return info, nil
}
