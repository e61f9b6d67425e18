// Package session persists the server session token on disk and answers
// whether it is still usable. Tokens issued by the server are JWTs; expiry is
// checked locally from the unverified claims so a dead session fails fast as
// "re-authenticate" before any network call. Signature verification is the
// server's job, not ours — the token is opaque credential material here.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotLoggedIn is returned when no session file exists.
var ErrNotLoggedIn = errors.New("session: not logged in")

// ErrExpired is returned when the stored token's exp claim has passed.
var ErrExpired = errors.New("session: token expired, re-authentication required")

// Session is the persisted login state.
type Session struct {
	Email   string    `json:"email"`
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// Save writes the session to path with owner-only permissions, creating the
// parent directory when needed.
func Save(path string, s *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("session: creating session directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encoding session: %w", err)
	}

	// Write-then-rename so a crash never leaves a truncated session file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: writing session file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("session: committing session file: %w", err)
	}

	return nil
}

// Load reads the session from path. Returns ErrNotLoggedIn when absent.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotLoggedIn
	}

	if err != nil {
		return nil, fmt.Errorf("session: reading session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: decoding session file: %w", err)
	}

	return &s, nil
}

// Delete removes the session file. Deleting an absent session is not an error.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: removing session file: %w", err)
	}

	return nil
}

// ExpiresAt returns the token's exp claim, or zero time for opaque non-JWT
// tokens, which never expire locally.
func (s *Session) ExpiresAt() time.Time {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(s.Token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}

	return exp.Time
}

// Expired reports whether the token's exp claim has passed at the given time.
func (s *Session) Expired(now time.Time) bool {
	exp := s.ExpiresAt()
	if exp.IsZero() {
		return false
	}

	return now.After(exp)
}

// Source adapts a session file to the remotefs.SessionSource interface,
// re-reading the file on each call so a re-login during a long process is
// picked up.
type Source struct {
	Path string
}

// Token returns the stored bearer token, failing fast on absent or expired
// sessions.
func (src *Source) Token() (string, error) {
	s, err := Load(src.Path)
	if err != nil {
		return "", err
	}

	if s.Expired(time.Now()) {
		return "", ErrExpired
	}

	return s.Token, nil
}
