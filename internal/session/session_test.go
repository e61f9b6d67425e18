package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signedToken builds a signed JWT expiring at exp.
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user@example.com",
		"exp": exp.Unix(),
	})

	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return signed
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")

	want := &Session{Email: "user@example.com", Token: "opaque-token", SavedAt: time.Now().UTC()}
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want.Email, got.Email)
	assert.Equal(t, want.Token, got.Token)
}

func TestSave_OwnerOnlyPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, Save(path, &Session{Token: "secret"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_AbsentIsNotLoggedIn(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestDelete_AbsentIsNotAnError(t *testing.T) {
	assert.NoError(t, Delete(filepath.Join(t.TempDir(), "missing.json")))
}

func TestExpired_JWTClaims(t *testing.T) {
	now := time.Now()

	live := &Session{Token: signedToken(t, now.Add(time.Hour))}
	assert.False(t, live.Expired(now))

	stale := &Session{Token: signedToken(t, now.Add(-time.Hour))}
	assert.True(t, stale.Expired(now))
}

func TestExpired_OpaqueTokenNeverExpiresLocally(t *testing.T) {
	s := &Session{Token: "not-a-jwt"}
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.ExpiresAt().IsZero())
}

func TestSource_Token(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, Save(path, &Session{Token: "bearer-me"}))

	src := &Source{Path: path}

	token, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "bearer-me", token)
}

func TestSource_ExpiredTokenFailsFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, Save(path, &Session{Token: signedToken(t, time.Now().Add(-time.Minute))}))

	src := &Source{Path: path}

	_, err := src.Token()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestSource_MissingSessionFailsFast(t *testing.T) {
	src := &Source{Path: filepath.Join(t.TempDir(), "missing.json")}

	_, err := src.Token()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}
