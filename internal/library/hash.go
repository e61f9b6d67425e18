package library

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/tonimelisma/photosync-go/internal/sync"
)

// fileLocator builds the file:// locator stored in readable_uri for an
// absolute filesystem path.
func fileLocator(path string) string {
	return "file://" + path
}

// locatorPath resolves a locator to a filesystem path. Locators that are not
// file-backed (opaque platform references, remote schemes) wrap
// sync.ErrUnreadableLocator so duplicate detection can count them under the
// right skip reason.
func locatorPath(locator string) (string, error) {
	if strings.HasPrefix(locator, "/") {
		return locator, nil
	}

	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("parsing locator %q: %w", locator, sync.ErrUnreadableLocator)
	}

	if u.Scheme != "file" || u.Path == "" {
		return "", fmt.Errorf("locator %q: %w", locator, sync.ErrUnreadableLocator)
	}

	return u.Path, nil
}

// HashContent computes the hex SHA-256 digest of the content behind a
// locator using streaming I/O (constant memory). It satisfies sync.HashFunc.
func HashContent(ctx context.Context, locator string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := locatorPath(locator)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("library: opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("library: hashing %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// OpenLocator opens the file behind a locator for reading, returning its
// size. Used by uploads, which need a fresh reader per attempt.
func OpenLocator(locator string) (*os.File, int64, error) {
	path, err := locatorPath(locator)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("library: opening %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("library: stat %s: %w", path, err)
	}

	return f, info.Size(), nil
}
