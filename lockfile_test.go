package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photosync.lock")

	release, err := acquireLock(path)
	require.NoError(t, err)

	_, err = acquireLock(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	release()

	// Released locks are re-acquirable.
	release2, err := acquireLock(path)
	require.NoError(t, err)
	release2()
}

func TestAcquireLockCreatesDirectoryAndWritesPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", "photosync.lock")

	release, err := acquireLock(path)
	require.NoError(t, err)
	defer release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestAcquireLockEmptyPath(t *testing.T) {
	_, err := acquireLock("")
	assert.Error(t, err)
}

func TestReleaseKeepsLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photosync.lock")

	release, err := acquireLock(path)
	require.NoError(t, err)

	release()

	// The file stays behind so every acquirer contends on one inode; only
	// the flock is dropped.
	assert.FileExists(t, path)

	release2, err := acquireLock(path)
	require.NoError(t, err)
	release2()
}
