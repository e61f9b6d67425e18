package main

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Lock file permissions (owner rw, group/other r) and directory permissions.
const (
	lockFilePermissions = 0o644
	lockDirPermissions  = 0o755
)

// acquireLock takes an exclusive flock on path, serializing passes: one
// backup, restore, or dedupe pass runs at a time per state directory.
// Returns a release function. Fails immediately when another pass holds the
// lock — the lock dies with its process, so crashes never leave it stale.
func acquireLock(path string) (release func(), err error) {
	if path == "" {
		return nil, fmt.Errorf("lock file path is empty — cannot determine state directory")
	}

	if mkdirErr := os.MkdirAll(filepath.Dir(path), lockDirPermissions); mkdirErr != nil {
		return nil, fmt.Errorf("creating lock file directory: %w", mkdirErr)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	// Non-blocking exclusive lock — fails immediately if another pass holds it.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		return nil, fmt.Errorf("another photosync pass is already running (could not lock %s)", path)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()

		return nil, fmt.Errorf("truncating lock file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()

		return nil, fmt.Errorf("writing lock file: %w", err)
	}

	// Release closes the descriptor, dropping the flock. The file itself is
	// never unlinked: removing it would let a process holding the old inode
	// and a process opening a fresh one lock "the same" path concurrently.
	return func() {
		f.Close()
	}, nil
}
