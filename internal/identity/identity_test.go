package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory identity store for tests.
type memStore struct {
	identities map[string]uuid.UUID

	readErr  error
	writeErr error
	saves    int
}

func newMemStore() *memStore {
	return &memStore{identities: make(map[string]uuid.UUID)}
}

func (s *memStore) DeviceIdentity(_ context.Context, email string) (uuid.UUID, bool, error) {
	if s.readErr != nil {
		return uuid.Nil, false, s.readErr
	}

	id, ok := s.identities[email]

	return id, ok, nil
}

func (s *memStore) SaveDeviceIdentity(_ context.Context, email string, id uuid.UUID) error {
	if s.writeErr != nil {
		return s.writeErr
	}

	s.saves++
	s.identities[email] = id

	return nil
}

func TestDerive_Deterministic(t *testing.T) {
	first := Derive("user@example.com", "hunter2")
	second := Derive("user@example.com", "hunter2")
	assert.Equal(t, first, second)

	other := Derive("user@example.com", "different")
	assert.NotEqual(t, first, other)
}

func TestDerive_EmailCaseInsensitive(t *testing.T) {
	assert.Equal(t,
		Derive("A@B.com", "x"),
		Derive("a@b.com", "x"),
	)

	assert.Equal(t,
		Derive("  user@example.com ", "x"),
		Derive("user@example.com", "x"),
	)
}

func TestDerive_IsVersion5UUID(t *testing.T) {
	id := Derive("user@example.com", "pw")
	assert.Equal(t, uuid.Version(5), id.Version())
}

func TestResolve_PersistsOnFirstDerivation(t *testing.T) {
	store := newMemStore()
	r := NewResolver(store, nil)

	id, err := r.Resolve(context.Background(), "User@Example.com", "pw")
	require.NoError(t, err)

	assert.Equal(t, Derive("user@example.com", "pw"), id)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, id, store.identities["user@example.com"])
}

func TestResolve_OverwritesStalePersistedValue(t *testing.T) {
	store := newMemStore()
	store.identities["user@example.com"] = uuid.New() // stale random value

	r := NewResolver(store, nil)

	id, err := r.Resolve(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)

	// Upsert, not a comparison error: the fresh derivation wins.
	assert.Equal(t, Derive("user@example.com", "pw"), id)
	assert.Equal(t, id, store.identities["user@example.com"])
}

func TestResolve_NoRewriteWhenUnchanged(t *testing.T) {
	store := newMemStore()
	r := NewResolver(store, nil)

	_, err := r.Resolve(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)

	assert.Equal(t, 1, store.saves)
}

func TestLookup_ReturnsPersistedValue(t *testing.T) {
	store := newMemStore()
	want := Derive("user@example.com", "pw")
	store.identities["user@example.com"] = want

	r := NewResolver(store, nil)

	got, err := r.Lookup(context.Background(), "USER@example.com")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLookup_AbsentRequiresReauth(t *testing.T) {
	r := NewResolver(newMemStore(), nil)

	_, err := r.Lookup(context.Background(), "nobody@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReauthRequired)
}

func TestResolve_StoreErrorsPropagate(t *testing.T) {
	store := newMemStore()
	store.readErr = errors.New("db locked")

	r := NewResolver(store, nil)

	_, err := r.Resolve(context.Background(), "user@example.com", "pw")
	assert.Error(t, err)

	store.readErr = nil
	store.writeErr = errors.New("disk full")

	_, err = r.Resolve(context.Background(), "user@example.com", "pw")
	assert.Error(t, err)
}
