// Package identity derives and persists the device identity that binds a
// user's credentials to a stable synchronization identity. The derivation is
// a version-5 (SHA-1) UUID over the normalized credential string under a
// fixed namespace — entirely local, deterministic across devices and
// reinstalls, and reproducible without ever storing the password.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Namespace is the fixed UUID namespace for device identity derivation.
// Changing it would orphan every server-side record keyed by device UUID,
// so it is frozen.
var Namespace = uuid.MustParse("7c9e2f0a-41d3-5b88-9c56-2f1e8a6d03b4")

// ErrReauthRequired is returned when no identity can be resolved without a
// password: there is no persisted value for the email and derivation is
// impossible on a cold start. Callers must send the user back through login.
var ErrReauthRequired = errors.New("identity: no device identity available, re-authentication required")

// Store persists identity records keyed by normalized email. The SQLite
// library store provides the real implementation.
type Store interface {
	// DeviceIdentity returns the persisted identity for the email, with
	// ok=false when none has been recorded.
	DeviceIdentity(ctx context.Context, email string) (id uuid.UUID, ok bool, err error)
	SaveDeviceIdentity(ctx context.Context, email string, id uuid.UUID) error
}

// NormalizeEmail maps an email address to its canonical form: trimmed,
// NFC-normalized, lowercased. "A@B.com" and "a@b.com" derive the same
// identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}

// Derive computes the device identity for a credential pair. Pure function,
// no persistence, no network.
func Derive(email, password string) uuid.UUID {
	return uuid.NewSHA1(Namespace, []byte(NormalizeEmail(email)+":"+password))
}

// Resolver resolves device identities against a persistent store.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{store: store, logger: logger}
}

// Resolve derives the identity for the credential pair and upserts it into
// the store. A persisted value that differs from the fresh derivation is
// overwritten, not treated as an error — the derivation is authoritative
// whenever a password is in hand.
func (r *Resolver) Resolve(ctx context.Context, email, password string) (uuid.UUID, error) {
	normalized := NormalizeEmail(email)
	expected := Derive(email, password)

	persisted, ok, err := r.store.DeviceIdentity(ctx, normalized)
	if err != nil {
		return uuid.Nil, fmt.Errorf("identity: reading persisted identity: %w", err)
	}

	if !ok || persisted != expected {
		if err := r.store.SaveDeviceIdentity(ctx, normalized, expected); err != nil {
			return uuid.Nil, fmt.Errorf("identity: persisting identity: %w", err)
		}

		r.logger.Debug("device identity persisted",
			slog.String("email", normalized),
			slog.String("device_uuid", expected.String()),
		)
	}

	return expected, nil
}

// Lookup returns the persisted identity for the email without a password.
// On a cold start this is the only way to obtain an identity; if none exists
// the caller gets ErrReauthRequired, because the value cannot be recomputed
// without credentials.
func (r *Resolver) Lookup(ctx context.Context, email string) (uuid.UUID, error) {
	normalized := NormalizeEmail(email)

	persisted, ok, err := r.store.DeviceIdentity(ctx, normalized)
	if err != nil {
		return uuid.Nil, fmt.Errorf("identity: reading persisted identity: %w", err)
	}

	if !ok {
		return uuid.Nil, fmt.Errorf("identity for %s: %w", normalized, ErrReauthRequired)
	}

	return persisted, nil
}
