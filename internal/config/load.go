package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Resolved is the effective configuration after the full override chain.
// All paths are absolute and all defaults applied.
type Resolved struct {
	ConfigPath string
	ServerMode string
	ServerHost string
	Email      string
	MediaDirs  []string
	RestoreDir string

	RestoredAlbum  string
	BandwidthLimit string
	HashWorkers    int
	LogLevel       string

	stateDir string
}

// StateDir returns the directory holding the database, session, staging,
// and lock files.
func (r *Resolved) StateDir() string {
	return r.stateDir
}

// DatabasePath returns the asset index location.
func (r *Resolved) DatabasePath() string {
	return filepath.Join(r.stateDir, "library.db")
}

// SessionPath returns the session token file location.
func (r *Resolved) SessionPath() string {
	return filepath.Join(r.stateDir, "session.json")
}

// StagingDir returns the download staging directory. Downloads land here and
// are committed into the library only after completing.
func (r *Resolved) StagingDir() string {
	return filepath.Join(r.stateDir, "staging")
}

// LockPath returns the single-pass lock file location.
func (r *Resolved) LockPath() string {
	return filepath.Join(r.stateDir, "photosync.lock")
}

// BaseURL returns the server base URL for the configured mode. Local mode
// without an explicit host targets the desktop shell's default port.
func (r *Resolved) BaseURL() string {
	host := r.ServerHost
	if host == "" && r.ServerMode == "local" {
		host = DefaultLocalHost
	}

	return strings.TrimRight(host, "/")
}

// Resolve loads the config file (when present) and applies environment and
// CLI overrides on top of defaults. A missing config file is fine: login
// bootstraps it.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	path := DefaultConfigPath()
	if env.ConfigPath != "" {
		path = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		path = cli.ConfigPath
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	return ResolveFrom(cfg, path, env, cli)
}

// ResolveFrom applies the override chain on top of an already-loaded file
// config. Login resolves its candidate settings through here so nothing is
// persisted before authentication succeeds.
func ResolveFrom(cfg *Config, path string, env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	resolved := &Resolved{
		ConfigPath:     path,
		ServerMode:     firstNonEmpty(env.ServerMode, cfg.Server.Mode, DefaultServerMode),
		ServerHost:     firstNonEmpty(cli.ServerHost, env.ServerHost, cfg.Server.Host),
		Email:          firstNonEmpty(env.Email, cfg.Auth.Email),
		MediaDirs:      cfg.Library.MediaDirs,
		RestoredAlbum:  firstNonEmpty(cfg.Library.RestoredAlbum, DefaultRestoredAlbum),
		BandwidthLimit: cfg.Transfers.BandwidthLimit,
		HashWorkers:    cfg.Transfers.HashWorkers,
		LogLevel:       firstNonEmpty(env.LogLevel, cfg.Logging.LogLevel, DefaultLogLevel),
		stateDir:       firstNonEmpty(env.StateDir, DefaultStateDir()),
	}

	if resolved.HashWorkers <= 0 {
		resolved.HashWorkers = DefaultHashWorkers
	}

	resolved.RestoreDir = cfg.Library.RestoreDir
	if resolved.RestoreDir == "" && len(resolved.MediaDirs) > 0 {
		resolved.RestoreDir = resolved.MediaDirs[0]
	}

	if err := validate(resolved); err != nil {
		return nil, err
	}

	return resolved, nil
}

// validate rejects configurations that cannot work.
func validate(r *Resolved) error {
	switch r.ServerMode {
	case "hosted", "local":
	default:
		return fmt.Errorf("config: invalid server mode %q (want \"hosted\" or \"local\")", r.ServerMode)
	}

	if r.ServerMode == "hosted" && r.ServerHost == "" {
		return errors.New("config: hosted mode requires server.host")
	}

	for _, dir := range r.MediaDirs {
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("config: media dir %q must be absolute", dir)
		}
	}

	return nil
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

// Save writes the config back to its file, creating the directory when
// needed. Used by login to remember the email and server settings.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: creating config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("config: opening %s for write: %w", path, err)
	}

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("config: encoding config: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("config: closing config file: %w", err)
	}

	return nil
}

// LoadFile reads the raw config file for mutation by Save. A missing file
// yields a zero Config.
func LoadFile(path string) (*Config, error) {
	var cfg Config

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &cfg, nil
		}

		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &cfg, nil
}
