package main

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncpkg "github.com/tonimelisma/photosync-go/internal/sync"
)

func TestParseMediaType(t *testing.T) {
	tests := []struct {
		in      string
		want    syncpkg.MediaType
		wantErr bool
	}{
		{"all", "", false},
		{"", "", false},
		{"photos", syncpkg.MediaTypePhoto, false},
		{"photo", syncpkg.MediaTypePhoto, false},
		{"Videos", syncpkg.MediaTypeVideo, false},
		{"music", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMediaType(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssetFilenames(t *testing.T) {
	assets := []syncpkg.LocalAsset{
		{Filename: "a.jpg"},
		{Filename: "b.mp4"},
	}

	assert.Equal(t, []string{"a.jpg", "b.mp4"}, assetFilenames(assets))
	assert.Empty(t, assetFilenames(nil))
}

func TestRemoteFilenames(t *testing.T) {
	files := []syncpkg.RemoteFile{{Filename: "x.jpg"}, {Filename: "y.jpg"}}

	assert.Equal(t, []string{"x.jpg", "y.jpg"}, remoteFilenames(files))
}

func TestPacedReadCloserClosesUnderlying(t *testing.T) {
	closer := &recordingCloser{Reader: bytes.NewBufferString("payload")}
	rc := &pacedReadCloser{Reader: closer, closer: closer}

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, rc.Close())
	assert.True(t, closer.closed)
}

type recordingCloser struct {
	io.Reader
	closed bool
}

func (r *recordingCloser) Close() error {
	if r.closed {
		return errors.New("double close")
	}

	r.closed = true

	return nil
}
