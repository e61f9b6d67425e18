// Package config implements TOML configuration loading, environment
// overrides, and platform-specific path resolution for photosync-go.
// Precedence is defaults -> config file -> environment -> CLI flags.
package config

// Config is the top-level structure parsed from the TOML config file.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Auth      AuthConfig      `toml:"auth"`
	Library   LibraryConfig   `toml:"library"`
	Transfers TransfersConfig `toml:"transfers"`
	Logging   LoggingConfig   `toml:"logging"`
}

// ServerConfig selects how the remote file service is reached. Mode is
// "hosted" (a remote server named by host) or "local" (the desktop shell
// process on this machine); host may carry an explicit URL in either mode.
type ServerConfig struct {
	Mode string `toml:"mode"`
	Host string `toml:"host"`
}

// AuthConfig remembers the login email. The session token itself lives in a
// separate 0600 file under the state directory, never in the config file.
type AuthConfig struct {
	Email string `toml:"email"`
}

// LibraryConfig controls local media enumeration and restore placement.
type LibraryConfig struct {
	// MediaDirs are the directories scanned for photos and videos.
	MediaDirs []string `toml:"media_dirs"`

	// RestoreDir receives files committed by restore. Defaults to the first
	// media dir.
	RestoreDir string `toml:"restore_dir"`

	// RestoredAlbum names the album marking previously restored content so
	// backup never re-uploads it.
	RestoredAlbum string `toml:"restored_album"`
}

// TransfersConfig controls transfer pacing and hashing parallelism.
type TransfersConfig struct {
	// BandwidthLimit caps transfer throughput, e.g. "5MB/s". "0" or empty
	// means unlimited.
	BandwidthLimit string `toml:"bandwidth_limit"`

	// HashWorkers bounds the duplicate-detection hashing pool.
	HashWorkers int `toml:"hash_workers"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel string `toml:"log_level"`
}

// CLIOverrides holds flag values that override file and environment settings.
type CLIOverrides struct {
	ConfigPath string // --config (empty = default path)
	ServerHost string // --server (empty = not set)
}

// Defaults used when neither file nor environment provides a value.
const (
	DefaultServerMode    = "hosted"
	DefaultLocalHost     = "http://localhost:8214"
	DefaultRestoredAlbum = "Restored media"
	DefaultHashWorkers   = 4
	DefaultLogLevel      = "info"
)
