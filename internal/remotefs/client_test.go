package remotefs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticSession returns a fixed token.
type staticSession struct {
	token string
	err   error
}

func (s *staticSession) Token() (string, error) {
	return s.token, s.err
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(&testWriter{t: t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testWriter struct {
	t *testing.T
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

const testDeviceID = "2e9b1c55-6a0f-5c77-9d44-8b30a1f2e6c0"

// newTestClient builds a client against the server with instant retries.
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()

	c, err := NewClient(server.URL, server.Client(), &staticSession{token: "tok-123"}, testDeviceID, testLogger(t))
	require.NoError(t, err)

	c.sleepFunc = func(context.Context, time.Duration) error { return nil }

	return c
}

func TestNewClient_RefusesMissingDeviceIdentity(t *testing.T) {
	_, err := NewClient("http://localhost", nil, &staticSession{}, "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoDeviceIdentity)
}

func TestListFiles_SendsAuthHeaders(t *testing.T) {
	var gotAuth, gotDevice string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotDevice = r.Header.Get("X-Device-UUID")

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"files":[{"filename":"img_1.jpg"},{"filename":"clip.mp4"}]}`)
	}))
	defer server.Close()

	c := newTestClient(t, server)

	files, err := c.ListFiles(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, testDeviceID, gotDevice)
	assert.Equal(t, []string{"img_1.jpg", "clip.mp4"}, files)
}

func TestUploadFile_MultipartWithDuplicateResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		content, err := io.ReadAll(file)
		require.NoError(t, err)

		assert.Equal(t, "beach.jpg", header.Filename)
		assert.Equal(t, "jpeg payload", string(content))

		io.WriteString(w, `{"duplicate":true}`)
	}))
	defer server.Close()

	c := newTestClient(t, server)

	duplicate, err := c.UploadFile(context.Background(), "beach.jpg", func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader([]byte("jpeg payload"))), nil
	})
	require.NoError(t, err)
	assert.True(t, duplicate)
}

func TestUploadFile_RetryRebuildsBody(t *testing.T) {
	var attempts, opens atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(content))

		io.WriteString(w, `{"duplicate":false}`)
	}))
	defer server.Close()

	c := newTestClient(t, server)

	duplicate, err := c.UploadFile(context.Background(), "a.jpg", func() (io.ReadCloser, error) {
		opens.Add(1)
		return io.NopCloser(bytes.NewReader([]byte("payload"))), nil
	})
	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, int32(2), opens.Load(), "each attempt opens a fresh body")
}

func TestDownloadFile_StreamsContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/IMG%201.jpg", r.URL.EscapedPath())
		io.WriteString(w, "binary image data")
	}))
	defer server.Close()

	c := newTestClient(t, server)

	var buf bytes.Buffer

	n, err := c.DownloadFile(context.Background(), "IMG 1.jpg", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len("binary image data")), n)
	assert.Equal(t, "binary image data", buf.String())
}

func TestDo_RetriesTransientServerErrors(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		io.WriteString(w, `{"files":[]}`)
	}))
	defer server.Close()

	c := newTestClient(t, server)

	files, err := c.ListFiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestDo_UnauthorizedIsNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(t, server)

	_, err := c.ListFiles(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), attempts.Load())

	var apiErr *APIError

	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestDo_SessionTokenFailureIsNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		io.WriteString(w, `{"files":[]}`)
	}))
	defer server.Close()

	tokenErr := errors.New("session: token expired, re-authentication required")

	c, err := NewClient(server.URL, server.Client(), &staticSession{err: tokenErr}, testDeviceID, testLogger(t))
	require.NoError(t, err)

	c.sleepFunc = func(context.Context, time.Duration) error {
		t.Fatal("token failures must not back off")
		return nil
	}

	_, err = c.ListFiles(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, tokenErr, "original sentinel survives the wrapping")
	assert.Zero(t, attempts.Load(), "no request leaves the process")
}

func TestLogin_ReturnsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("X-Device-UUID"), "login precedes device identity")

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"email":"user@example.com","password":"pw"}`, string(body))

		io.WriteString(w, `{"token":"session-token"}`)
	}))
	defer server.Close()

	token, err := Login(context.Background(), server.URL, server.Client(), "user@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "session-token", token)
}

func TestLogin_BadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := Login(context.Background(), server.URL, server.Client(), "user@example.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
