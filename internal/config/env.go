package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig     = "PHOTOSYNC_CONFIG"
	EnvServerMode = "PHOTOSYNC_SERVER_MODE"
	EnvServerHost = "PHOTOSYNC_SERVER_HOST"
	EnvEmail      = "PHOTOSYNC_EMAIL"
	EnvStateDir   = "PHOTOSYNC_STATE_DIR"
	EnvLogLevel   = "PHOTOSYNC_LOG_LEVEL"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // PHOTOSYNC_CONFIG: override config file path
	ServerMode string // PHOTOSYNC_SERVER_MODE: "hosted" or "local"
	ServerHost string // PHOTOSYNC_SERVER_HOST: server base URL
	Email      string // PHOTOSYNC_EMAIL: login email
	StateDir   string // PHOTOSYNC_STATE_DIR: state directory override
	LogLevel   string // PHOTOSYNC_LOG_LEVEL: log level override
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. Callers apply the relevant fields during resolution.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		ServerMode: os.Getenv(EnvServerMode),
		ServerHost: os.Getenv(EnvServerHost),
		Email:      os.Getenv(EnvEmail),
		StateDir:   os.Getenv(EnvStateDir),
		LogLevel:   os.Getenv(EnvLogLevel),
	}
}
