// Package remotefs is the HTTP client for the remote media file service. It
// covers the listing, upload, download, and login calls the sync pipeline
// consumes, with retry, backoff, and error classification. Every files call
// carries the bearer session token and the X-Device-UUID header derived by
// the identity resolver; a client cannot be built without a device identity.
package remotefs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Retry and backoff constants.
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
	userAgent      = "photosync-go/0.1"
)

// SessionSource provides the bearer session token for authenticated calls.
// Defined at the consumer per Go convention "accept interfaces, return
// structs"; the session package provides the real implementation.
type SessionSource interface {
	Token() (string, error)
}

// Client is an HTTP client for the media file service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    SessionSource
	deviceID   string
	logger     *slog.Logger

	// sleepFunc waits between retries. Tests override it to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a file service client. deviceID is the device identity
// UUID string; an empty value fails immediately with ErrNoDeviceIdentity so
// no request can ever leave the process without one.
func NewClient(baseURL string, httpClient *http.Client, session SessionSource, deviceID string, logger *slog.Logger) (*Client, error) {
	if deviceID == "" {
		return nil, ErrNoDeviceIdentity
	}

	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		session:    session,
		deviceID:   deviceID,
		logger:     logger,
		sleepFunc:  timeSleep,
	}, nil
}

// listResponse is the GET /files body.
type listResponse struct {
	Files []struct {
		Filename string `json:"filename"`
	} `json:"files"`
}

// ListFiles fetches the authoritative remote inventory.
func (c *Client) ListFiles(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/files", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("remotefs: decoding file listing: %w", err)
	}

	names := make([]string, len(body.Files))
	for i, f := range body.Files {
		names[i] = f.Filename
	}

	return names, nil
}

// uploadResponse is the POST /files body. duplicate=true means the server
// already holds this content and skipped the write.
type uploadResponse struct {
	Duplicate bool `json:"duplicate"`
}

// UploadFile uploads one file as multipart form data (field "file", name set
// to the actual filename). open is called once per attempt so retries never
// replay a consumed stream. Returns whether the server reported the content
// as a duplicate.
func (c *Client) UploadFile(ctx context.Context, filename string, open func() (io.ReadCloser, error)) (bool, error) {
	resp, err := c.doWithBody(ctx, http.MethodPost, "/files", func() (io.Reader, string, error) {
		src, err := open()
		if err != nil {
			return nil, "", err
		}
		defer src.Close()

		// Buffering the multipart body keeps retries simple; one photo or
		// video clip at a time is in flight by design.
		var buf bytes.Buffer

		w := multipart.NewWriter(&buf)

		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return nil, "", fmt.Errorf("remotefs: creating form file: %w", err)
		}

		if _, err := io.Copy(part, src); err != nil {
			return nil, "", fmt.Errorf("remotefs: reading upload content: %w", err)
		}

		if err := w.Close(); err != nil {
			return nil, "", fmt.Errorf("remotefs: finalizing multipart body: %w", err)
		}

		return &buf, w.FormDataContentType(), nil
	})
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var body uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("remotefs: decoding upload response: %w", err)
	}

	return body.Duplicate, nil
}

// DownloadFile streams the named file's content into w and returns the byte
// count. Callers write to a staging path and commit only after success.
func (c *Client) DownloadFile(ctx context.Context, filename string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, "/files/"+url.PathEscape(filename), nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("remotefs: downloading %s: %w", filename, err)
	}

	return n, nil
}

// loginRequest and loginResponse are the POST /auth/login bodies.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login authenticates against the server and returns a session token. It is
// a package function because login happens before a device identity or
// session exists.
func Login(ctx context.Context, baseURL string, httpClient *http.Client, email, password string) (string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	payload, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("remotefs: encoding login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("remotefs: creating login request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("remotefs: login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)

		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	var body loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("remotefs: decoding login response: %w", err)
	}

	return body.Token, nil
}

// do executes a request with an optional static body.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	return c.doWithBody(ctx, method, path, func() (io.Reader, string, error) {
		if body == nil {
			return nil, "", nil
		}

		return bytes.NewReader(body), "application/json", nil
	})
}

// doWithBody executes a request with retry and exponential backoff. bodyFn
// is invoked once per attempt to build a fresh body.
func (c *Client) doWithBody(ctx context.Context, method, path string, bodyFn func() (io.Reader, string, error)) (*http.Response, error) {
	fullURL := c.baseURL + path

	var attempt int
	for {
		resp, err := c.doOnce(ctx, method, fullURL, bodyFn)
		if err != nil {
			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("remotefs: request canceled: %w", ctx.Err())
			}

			// Token and body-build failures cannot heal by waiting.
			var perm *permanentError
			if errors.As(err, &perm) {
				return nil, fmt.Errorf("remotefs: %s %s: %w", method, path, perm.err)
			}

			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", method),
					slog.String("path", path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("remotefs: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("remotefs: %s %s failed after %d retries: %w", method, path, maxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("remotefs: request canceled: %w", err)
			}

			attempt++

			continue
		}

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}
	}
}

// doOnce executes a single request (no retry), attaching the session token
// and device identity headers.
func (c *Client) doOnce(ctx context.Context, method, fullURL string, bodyFn func() (io.Reader, string, error)) (*http.Response, error) {
	body, contentType, err := bodyFn()
	if err != nil {
		return nil, &permanentError{err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	token, err := c.session.Token()
	if err != nil {
		return nil, &permanentError{err: fmt.Errorf("obtaining session token: %w", err)}
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Device-UUID", c.deviceID)
	req.Header.Set("User-Agent", userAgent)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.httpClient.Do(req)
}

// retryBackoff returns the backoff for a retryable response, honoring
// Retry-After on 429.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// permanentError marks a failure the retry loop must not retry: a missing or
// expired session token, or a body that could not be built.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// timeSleep waits for d or until the context is canceled. Default sleepFunc.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
