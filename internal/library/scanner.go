package library

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/tonimelisma/photosync-go/internal/sync"
)

// mediaExtensions maps recognized file extensions (lowercase, with dot) to
// their media type. Files with other extensions are not library content.
var mediaExtensions = map[string]sync.MediaType{
	".jpg":  sync.MediaTypePhoto,
	".jpeg": sync.MediaTypePhoto,
	".png":  sync.MediaTypePhoto,
	".gif":  sync.MediaTypePhoto,
	".heic": sync.MediaTypePhoto,
	".heif": sync.MediaTypePhoto,
	".webp": sync.MediaTypePhoto,
	".tiff": sync.MediaTypePhoto,
	".bmp":  sync.MediaTypePhoto,
	".dng":  sync.MediaTypePhoto,
	".mp4":  sync.MediaTypeVideo,
	".mov":  sync.MediaTypeVideo,
	".m4v":  sync.MediaTypeVideo,
	".avi":  sync.MediaTypeVideo,
	".mkv":  sync.MediaTypeVideo,
	".webm": sync.MediaTypeVideo,
}

// mediaTypeFor returns the media type for a filename, or "" when the
// extension is not recognized media.
func mediaTypeFor(filename string) sync.MediaType {
	return mediaExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ScanResult is the outcome of one filesystem scan. Skipped counts entries
// that could not be inspected (stat failures, unreadable directories) — they
// are logged and counted, never fatal to the scan.
type ScanResult struct {
	Assets  []sync.LocalAsset
	Skipped int
}

// Scanner enumerates media files under the configured directories.
type Scanner struct {
	dirs   []string
	logger *slog.Logger
}

// NewScanner creates a Scanner over the given media directories.
func NewScanner(dirs []string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scanner{dirs: dirs, logger: logger}
}

// Scan walks every configured directory and returns the media files found.
// Enumeration order is deterministic: directories in configured order, files
// in lexical walk order within each. Hidden directories are not descended.
// A directory that does not exist is skipped with a warning rather than
// failing the scan — media volumes come and go.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	result := &ScanResult{}

	for _, dir := range s.dirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("library: resolving scan dir %s: %w", dir, err)
		}

		if err := s.scanDir(ctx, absDir, result); err != nil {
			return nil, err
		}
	}

	s.logger.Info("scan complete",
		slog.Int("assets", len(result.Assets)),
		slog.Int("skipped", result.Skipped),
	)

	return result, nil
}

// scanDir walks one directory tree, appending media files to the result.
func (s *Scanner) scanDir(ctx context.Context, dir string, result *ScanResult) error {
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == dir {
				s.logger.Warn("scan directory unavailable", slog.String("dir", dir), slog.String("error", err.Error()))
				return filepath.SkipAll
			}

			result.Skipped++
			s.logger.Warn("skipping unreadable entry", slog.String("path", path), slog.String("error", err.Error()))

			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}

			return nil
		}

		mediaType := mediaTypeFor(d.Name())
		if mediaType == "" {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			result.Skipped++
			s.logger.Warn("skipping uninspectable file", slog.String("path", path), slog.String("error", err.Error()))

			return nil
		}

		result.Assets = append(result.Assets, sync.LocalAsset{
			ID:           AssetID(path),
			Filename:     d.Name(),
			CreationTime: info.ModTime().UnixNano(),
			MediaType:    mediaType,
			ReadableURI:  fileLocator(path),
		})

		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("library: scanning %s: %w", dir, walkErr)
	}

	return nil
}
