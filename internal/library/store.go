// Package library implements the local media library: a SQLite-backed asset
// index populated by filesystem scans, named albums used to mark restored
// content, persisted device identities, and the content hashing used by
// duplicate detection.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/tonimelisma/photosync-go/internal/sync"
)

// walJournalSizeLimit caps the WAL journal at 64 MiB.
const walJournalSizeLimit = 67108864

// assetNamespace is the fixed UUID namespace for deriving asset IDs from
// filesystem paths. A file keeps its ID across scans as long as it keeps
// its path.
var assetNamespace = uuid.MustParse("3f1b6a92-88cd-5e41-b7a3-54d90c7e11f6")

// AssetID derives the stable asset ID for an absolute filesystem path.
func AssetID(path string) string {
	return uuid.NewSHA1(assetNamespace, []byte(path)).String()
}

// Store is the SQLite-backed asset index. Single writer: the connection pool
// is capped at one connection, so concurrent passes cannot interleave writes.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the library database at dbPath, applies pragmas
// and pending migrations. Use ":memory:" for tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("library: creating state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("library: open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("library database opened", slog.String("path", dbPath))

	return &Store{db: db, logger: logger}, nil
}

// setPragmas configures WAL journaling, durability, and foreign keys.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("library: %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertAssets writes scan results into the index in one transaction.
// Existing rows keep their content_hash; everything else is refreshed from
// the scan.
func (s *Store) UpsertAssets(ctx context.Context, assets []sync.LocalAsset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("library: begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO assets (id, filename, content_hash, creation_time, media_type, readable_uri, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			creation_time = excluded.creation_time,
			media_type = excluded.media_type,
			readable_uri = excluded.readable_uri,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("library: prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()

	for i := range assets {
		a := &assets[i]
		if _, err := stmt.ExecContext(ctx,
			a.ID, a.Filename, a.ContentHash, a.CreationTime, string(a.MediaType), a.ReadableURI, now,
		); err != nil {
			return fmt.Errorf("library: upserting asset %s: %w", a.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("library: commit upsert: %w", err)
	}

	return nil
}

// PruneExcept removes every asset whose ID is not in keep — files that have
// disappeared from disk since the last scan. Album memberships cascade.
// An empty keep set clears the index. The keep set is staged into a temp
// table one row at a time, so libraries of any size stay clear of SQLite's
// bound-variable limit.
func (s *Store) PruneExcept(ctx context.Context, keep []string) (int64, error) {
	if len(keep) == 0 {
		res, err := s.db.ExecContext(ctx, "DELETE FROM assets")
		if err != nil {
			return 0, fmt.Errorf("library: pruning all assets: %w", err)
		}

		return res.RowsAffected()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("library: begin prune: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "CREATE TEMP TABLE keep_ids (id TEXT PRIMARY KEY)"); err != nil {
		return 0, fmt.Errorf("library: creating keep table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO keep_ids (id) VALUES (?)")
	if err != nil {
		return 0, fmt.Errorf("library: prepare keep insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range keep {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return 0, fmt.Errorf("library: staging keep id: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM assets WHERE id NOT IN (SELECT id FROM keep_ids)")
	if err != nil {
		return 0, fmt.Errorf("library: pruning assets: %w", err)
	}

	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("library: counting pruned assets: %w", err)
	}

	// Temp tables outlive the transaction on this connection; drop before
	// commit so the next prune starts clean.
	if _, err := tx.ExecContext(ctx, "DROP TABLE keep_ids"); err != nil {
		return 0, fmt.Errorf("library: dropping keep table: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("library: commit prune: %w", err)
	}

	return pruned, nil
}

// SaveContentHashes caches computed content hashes on their asset rows so the
// next dedupe pass skips rehashing. The upsert path preserves content_hash on
// conflict, so cached values survive rescans. Unknown IDs are ignored.
func (s *Store) SaveContentHashes(ctx context.Context, hashes map[string]string) error {
	if len(hashes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("library: begin hash cache: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE assets SET content_hash = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("library: prepare hash cache: %w", err)
	}
	defer stmt.Close()

	for id, hash := range hashes {
		if _, err := stmt.ExecContext(ctx, hash, id); err != nil {
			return fmt.Errorf("library: caching hash for %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("library: commit hash cache: %w", err)
	}

	return nil
}

// Snapshot returns the full local inventory ordered by creation time, then
// ID. This ordering is the snapshot enumeration order that planning output
// and the duplicate tie-break rule are defined against.
func (s *Store) Snapshot(ctx context.Context) ([]sync.LocalAsset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, content_hash, creation_time, media_type, readable_uri
		 FROM assets ORDER BY creation_time, id`)
	if err != nil {
		return nil, fmt.Errorf("library: listing assets: %w", err)
	}
	defer rows.Close()

	return scanAssets(rows)
}

// SnapshotByMediaType returns the inventory restricted to one media type, in
// snapshot enumeration order. An empty media type means no filter.
func (s *Store) SnapshotByMediaType(ctx context.Context, mt sync.MediaType) ([]sync.LocalAsset, error) {
	if mt == "" {
		return s.Snapshot(ctx)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, content_hash, creation_time, media_type, readable_uri
		 FROM assets WHERE media_type = ? ORDER BY creation_time, id`, string(mt))
	if err != nil {
		return nil, fmt.Errorf("library: listing %s assets: %w", mt, err)
	}
	defer rows.Close()

	return scanAssets(rows)
}

// GetAsset fetches one asset by ID. Returns sql.ErrNoRows when absent.
func (s *Store) GetAsset(ctx context.Context, id string) (*sync.LocalAsset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, content_hash, creation_time, media_type, readable_uri
		 FROM assets WHERE id = ?`, id)

	var a sync.LocalAsset

	var mediaType string

	if err := row.Scan(&a.ID, &a.Filename, &a.ContentHash, &a.CreationTime, &mediaType, &a.ReadableURI); err != nil {
		return nil, fmt.Errorf("library: fetching asset %s: %w", id, err)
	}

	a.MediaType = sync.MediaType(mediaType)

	return &a, nil
}

// scanAssets reads asset rows into a slice.
func scanAssets(rows *sql.Rows) ([]sync.LocalAsset, error) {
	var assets []sync.LocalAsset

	for rows.Next() {
		var a sync.LocalAsset

		var mediaType string

		if err := rows.Scan(&a.ID, &a.Filename, &a.ContentHash, &a.CreationTime, &mediaType, &a.ReadableURI); err != nil {
			return nil, fmt.Errorf("library: scanning asset row: %w", err)
		}

		a.MediaType = sync.MediaType(mediaType)
		assets = append(assets, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("library: iterating assets: %w", err)
	}

	return assets, nil
}

// EnsureAlbum creates the named album if it does not exist and returns its ID.
func (s *Store) EnsureAlbum(ctx context.Context, name string) (int64, error) {
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO albums (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name); err != nil {
		return 0, fmt.Errorf("library: ensuring album %q: %w", name, err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT id FROM albums WHERE name = ?", name).Scan(&id); err != nil {
		return 0, fmt.Errorf("library: fetching album %q: %w", name, err)
	}

	return id, nil
}

// AddToAlbum records the given assets as members of the named album,
// creating the album when needed. Already-member assets are left alone.
func (s *Store) AddToAlbum(ctx context.Context, name string, assetIDs []string) error {
	albumID, err := s.EnsureAlbum(ctx, name)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("library: begin album add: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO album_assets (album_id, asset_id) VALUES (?, ?)
		 ON CONFLICT(album_id, asset_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("library: prepare album add: %w", err)
	}
	defer stmt.Close()

	for _, assetID := range assetIDs {
		if _, err := stmt.ExecContext(ctx, albumID, assetID); err != nil {
			return fmt.Errorf("library: adding asset %s to album %q: %w", assetID, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("library: commit album add: %w", err)
	}

	return nil
}

// AlbumAssetIDs returns the member ID set of the named album. A missing
// album yields an empty set, not an error — planning treats it as "nothing
// restored yet".
func (s *Store) AlbumAssetIDs(ctx context.Context, name string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT aa.asset_id FROM album_assets aa
		 JOIN albums al ON al.id = aa.album_id
		 WHERE al.name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("library: listing album %q members: %w", name, err)
	}
	defer rows.Close()

	members := make(map[string]bool)

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("library: scanning album member: %w", err)
		}

		members[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("library: iterating album members: %w", err)
	}

	return members, nil
}

// DeleteAssets removes the given assets: underlying files first, then index
// rows in one transaction. Any failure fails the whole batch — there is no
// partial-success accounting. Files that are already gone from disk do not
// fail the batch; file removal itself is not transactional, so a failure
// late in the batch leaves earlier files deleted but their rows intact until
// the next scan prunes them.
func (s *Store) DeleteAssets(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("library: begin delete: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		var locator string
		if err := tx.QueryRowContext(ctx,
			"SELECT readable_uri FROM assets WHERE id = ?", id).Scan(&locator); err != nil {
			return fmt.Errorf("library: resolving asset %s for deletion: %w", id, err)
		}

		path, err := locatorPath(locator)
		if err != nil {
			return fmt.Errorf("library: asset %s: %w", id, err)
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("library: removing %s: %w", path, err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id); err != nil {
			return fmt.Errorf("library: deleting asset row %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("library: commit delete: %w", err)
	}

	s.logger.Info("assets deleted", slog.Int("count", len(ids)))

	return nil
}

// CommitDownload moves a fully-downloaded staging file into the library
// directory and indexes it. Returns the new asset so the caller can record
// it in the restored album.
func (s *Store) CommitDownload(ctx context.Context, stagingPath, filename, libraryDir string) (*sync.LocalAsset, error) {
	if err := os.MkdirAll(libraryDir, 0o755); err != nil {
		return nil, fmt.Errorf("library: creating library directory: %w", err)
	}

	dest := filepath.Join(libraryDir, filename)

	if err := os.Rename(stagingPath, dest); err != nil {
		// Staging and library may sit on different filesystems.
		if copyErr := copyFile(stagingPath, dest); copyErr != nil {
			return nil, fmt.Errorf("library: committing %s: %w", filename, copyErr)
		}

		os.Remove(stagingPath)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("library: stat committed file: %w", err)
	}

	asset := sync.LocalAsset{
		ID:           AssetID(dest),
		Filename:     filename,
		CreationTime: info.ModTime().UnixNano(),
		MediaType:    mediaTypeFor(filename),
		ReadableURI:  fileLocator(dest),
	}

	if err := s.UpsertAssets(ctx, []sync.LocalAsset{asset}); err != nil {
		return nil, err
	}

	return &asset, nil
}

// copyFile copies src to dest, creating or truncating dest.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := out.ReadFrom(in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// DeviceIdentity implements identity.Store.
func (s *Store) DeviceIdentity(ctx context.Context, email string) (uuid.UUID, bool, error) {
	var raw string

	err := s.db.QueryRowContext(ctx,
		"SELECT device_uuid FROM device_identities WHERE email = ?", email).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}

	if err != nil {
		return uuid.Nil, false, fmt.Errorf("library: reading device identity: %w", err)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("library: corrupt device identity %q: %w", raw, err)
	}

	return id, true, nil
}

// SaveDeviceIdentity implements identity.Store.
func (s *Store) SaveDeviceIdentity(ctx context.Context, email string, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO device_identities (email, device_uuid, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET device_uuid = excluded.device_uuid, updated_at = excluded.updated_at`,
		email, id.String(), time.Now().UnixNano()); err != nil {
		return fmt.Errorf("library: saving device identity: %w", err)
	}

	return nil
}

// AssetCount returns the number of indexed assets.
func (s *Store) AssetCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets").Scan(&n); err != nil {
		return 0, fmt.Errorf("library: counting assets: %w", err)
	}

	return n, nil
}
