package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tonimelisma/photosync-go/internal/config"
	"github.com/tonimelisma/photosync-go/internal/identity"
	"github.com/tonimelisma/photosync-go/internal/library"
	"github.com/tonimelisma/photosync-go/internal/remotefs"
	"github.com/tonimelisma/photosync-go/internal/session"
	syncpkg "github.com/tonimelisma/photosync-go/internal/sync"
)

// errReauth is the user-facing wrapper for every "you must log in again"
// condition: missing identity, missing session, expired token.
var errReauth = errors.New("not authenticated — run \"photosync login\"")

// passEnv bundles the collaborators one pass needs. Acquiring one takes the
// state-directory lock; callers must defer close.
type passEnv struct {
	cfg      *config.Resolved
	logger   *slog.Logger
	store    *library.Store
	client   *remotefs.Client
	deviceID uuid.UUID

	release func()
}

// openPass locks the state directory and opens the library store. When
// needsRemote is set, it also resolves the device identity and builds the
// file service client — failing fast, before any network traffic, when
// re-authentication is needed.
func openPass(ctx context.Context, cfg *config.Resolved, needsRemote bool) (*passEnv, error) {
	logger := buildLogger()

	release, err := acquireLock(cfg.LockPath())
	if err != nil {
		return nil, err
	}

	store, err := library.Open(ctx, cfg.DatabasePath(), logger)
	if err != nil {
		release()
		return nil, err
	}

	env := &passEnv{cfg: cfg, logger: logger, store: store, release: release}

	if !needsRemote {
		return env, nil
	}

	if err := env.connectRemote(ctx); err != nil {
		env.close()
		return nil, err
	}

	return env, nil
}

// connectRemote resolves the device identity and constructs the file service
// client.
func (e *passEnv) connectRemote(ctx context.Context) error {
	if e.cfg.Email == "" {
		return errReauth
	}

	resolver := identity.NewResolver(e.store, e.logger)

	deviceID, err := resolver.Lookup(ctx, e.cfg.Email)
	if err != nil {
		// A stored session without a resolvable identity forces re-login:
		// the identity cannot be recomputed without the password.
		if errors.Is(err, identity.ErrReauthRequired) {
			return errReauth
		}

		return err
	}

	client, err := remotefs.NewClient(
		e.cfg.BaseURL(),
		transferHTTPClient(),
		&session.Source{Path: e.cfg.SessionPath()},
		deviceID.String(),
		e.logger,
	)
	if err != nil {
		return err
	}

	e.deviceID = deviceID
	e.client = client

	return nil
}

// close releases pass resources in reverse acquisition order.
func (e *passEnv) close() {
	if e.store != nil {
		e.store.Close()
	}

	if e.release != nil {
		e.release()
	}
}

// localSnapshot scans the media directories, refreshes the asset index, and
// returns the current inventory in snapshot order. A non-empty mediaType
// restricts the returned snapshot to that kind; the index itself always
// carries everything the scan found.
func (e *passEnv) localSnapshot(ctx context.Context, mediaType syncpkg.MediaType) ([]syncpkg.LocalAsset, error) {
	if len(e.cfg.MediaDirs) == 0 {
		return nil, errors.New("no media directories configured — set library.media_dirs in the config file")
	}

	scanner := library.NewScanner(e.cfg.MediaDirs, e.logger)

	result, err := scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	if err := e.store.UpsertAssets(ctx, result.Assets); err != nil {
		return nil, err
	}

	keep := make([]string, len(result.Assets))
	for i := range result.Assets {
		keep[i] = result.Assets[i].ID
	}

	if _, err := e.store.PruneExcept(ctx, keep); err != nil {
		return nil, err
	}

	return e.store.SnapshotByMediaType(ctx, mediaType)
}

// remoteSnapshot fetches the authoritative remote inventory. A listing
// failure aborts the whole pass — no partial plan can be computed safely.
func (e *passEnv) remoteSnapshot(ctx context.Context) ([]syncpkg.RemoteFile, error) {
	names, err := e.client.ListFiles(ctx)
	if err != nil {
		return nil, mapRemoteErr(fmt.Errorf("fetching remote inventory: %w", err))
	}

	files := make([]syncpkg.RemoteFile, len(names))
	for i, name := range names {
		files[i] = syncpkg.RemoteFile{Filename: name}
	}

	return files, nil
}

// mapRemoteErr translates authentication-class failures into the friendly
// re-login message.
func mapRemoteErr(err error) error {
	if errors.Is(err, session.ErrNotLoggedIn) ||
		errors.Is(err, session.ErrExpired) ||
		errors.Is(err, remotefs.ErrUnauthorized) {
		return errReauth
	}

	return err
}
