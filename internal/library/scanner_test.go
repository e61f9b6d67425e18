package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/photosync-go/internal/sync"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestScan_FindsMediaRecursively(t *testing.T) {
	dir := t.TempDir()

	touch(t, filepath.Join(dir, "root.jpg"))
	touch(t, filepath.Join(dir, "2024", "trip", "clip.MOV"))
	touch(t, filepath.Join(dir, "notes.txt")) // not media

	s := NewScanner([]string{dir}, testLogger(t))

	result, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Assets, 2)
	assert.Zero(t, result.Skipped)

	names := []string{result.Assets[0].Filename, result.Assets[1].Filename}
	assert.Contains(t, names, "root.jpg")
	assert.Contains(t, names, "clip.MOV")
}

func TestScan_AssignsMediaTypes(t *testing.T) {
	dir := t.TempDir()

	touch(t, filepath.Join(dir, "photo.HEIC"))
	touch(t, filepath.Join(dir, "video.mp4"))

	s := NewScanner([]string{dir}, testLogger(t))

	result, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Assets, 2)

	byName := make(map[string]sync.MediaType)
	for _, a := range result.Assets {
		byName[a.Filename] = a.MediaType
	}

	assert.Equal(t, sync.MediaTypePhoto, byName["photo.HEIC"])
	assert.Equal(t, sync.MediaTypeVideo, byName["video.mp4"])
}

func TestScan_SkipsHiddenDirectories(t *testing.T) {
	dir := t.TempDir()

	touch(t, filepath.Join(dir, "visible.jpg"))
	touch(t, filepath.Join(dir, ".thumbnails", "thumb.jpg"))

	s := NewScanner([]string{dir}, testLogger(t))

	result, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Assets, 1)
	assert.Equal(t, "visible.jpg", result.Assets[0].Filename)
}

func TestScan_MissingDirectoryIsNotFatal(t *testing.T) {
	present := t.TempDir()
	touch(t, filepath.Join(present, "here.jpg"))

	s := NewScanner([]string{filepath.Join(present, "does-not-exist"), present}, testLogger(t))

	result, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Assets, 1)
}

func TestScan_StableIDsAcrossScans(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "stable.jpg"))

	s := NewScanner([]string{dir}, testLogger(t))

	first, err := s.Scan(context.Background())
	require.NoError(t, err)

	second, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, first.Assets, 1)
	require.Len(t, second.Assets, 1)
	assert.Equal(t, first.Assets[0].ID, second.Assets[0].ID)
}

func TestScan_LocatorOpensFile(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "open_me.jpg"))

	s := NewScanner([]string{dir}, testLogger(t))

	result, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Assets, 1)

	f, size, err := OpenLocator(result.Assets[0].ReadableURI)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, int64(1), size)
}
