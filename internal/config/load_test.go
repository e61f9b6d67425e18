package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestResolve_FileValues(t *testing.T) {
	path := writeConfig(t, `
[server]
mode = "hosted"
host = "https://media.example.com"

[auth]
email = "user@example.com"

[library]
media_dirs = ["/photos"]
restored_album = "From server"

[transfers]
bandwidth_limit = "5MB/s"
hash_workers = 8

[logging]
log_level = "debug"
`)

	r, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: path})
	require.NoError(t, err)

	assert.Equal(t, "hosted", r.ServerMode)
	assert.Equal(t, "https://media.example.com", r.BaseURL())
	assert.Equal(t, "user@example.com", r.Email)
	assert.Equal(t, []string{"/photos"}, r.MediaDirs)
	assert.Equal(t, "/photos", r.RestoreDir, "restore dir defaults to first media dir")
	assert.Equal(t, "From server", r.RestoredAlbum)
	assert.Equal(t, "5MB/s", r.BandwidthLimit)
	assert.Equal(t, 8, r.HashWorkers)
	assert.Equal(t, "debug", r.LogLevel)
}

func TestResolve_DefaultsWhenFileMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-config.toml")

	r, err := Resolve(EnvOverrides{ServerMode: "local"}, CLIOverrides{ConfigPath: missing})
	require.NoError(t, err)

	assert.Equal(t, "local", r.ServerMode)
	assert.Equal(t, DefaultLocalHost, r.BaseURL())
	assert.Equal(t, DefaultRestoredAlbum, r.RestoredAlbum)
	assert.Equal(t, DefaultHashWorkers, r.HashWorkers)
	assert.Equal(t, DefaultLogLevel, r.LogLevel)
}

func TestResolve_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[server]
mode = "hosted"
host = "https://from-file.example.com"
`)

	env := EnvOverrides{ServerHost: "https://from-env.example.com"}

	r, err := Resolve(env, CLIOverrides{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.example.com", r.BaseURL())
}

func TestResolve_CLIOverridesEnv(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "https://from-file.example.com"
`)

	env := EnvOverrides{ServerHost: "https://from-env.example.com"}
	cli := CLIOverrides{ConfigPath: path, ServerHost: "https://from-flag.example.com"}

	r, err := Resolve(env, cli)
	require.NoError(t, err)
	assert.Equal(t, "https://from-flag.example.com", r.BaseURL())
}

func TestResolve_RejectsInvalidMode(t *testing.T) {
	path := writeConfig(t, `
[server]
mode = "p2p"
host = "https://x.example.com"
`)

	_, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: path})
	assert.Error(t, err)
}

func TestResolve_HostedRequiresHost(t *testing.T) {
	path := writeConfig(t, `
[server]
mode = "hosted"
`)

	_, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: path})
	assert.Error(t, err)
}

func TestResolve_RejectsRelativeMediaDir(t *testing.T) {
	path := writeConfig(t, `
[server]
mode = "local"

[library]
media_dirs = ["photos"]
`)

	_, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: path})
	assert.Error(t, err)
}

func TestResolve_StatePaths(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "cfg.toml")
	stateDir := t.TempDir()

	r, err := Resolve(EnvOverrides{ServerMode: "local", StateDir: stateDir}, CLIOverrides{ConfigPath: missing})
	require.NoError(t, err)

	assert.Equal(t, stateDir, r.StateDir())
	assert.Equal(t, filepath.Join(stateDir, "library.db"), r.DatabasePath())
	assert.Equal(t, filepath.Join(stateDir, "session.json"), r.SessionPath())
	assert.Equal(t, filepath.Join(stateDir, "staging"), r.StagingDir())
	assert.Equal(t, filepath.Join(stateDir, "photosync.lock"), r.LockPath())
}

func TestSaveLoadFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := &Config{}
	cfg.Server.Mode = "hosted"
	cfg.Server.Host = "https://media.example.com"
	cfg.Auth.Email = "user@example.com"

	require.NoError(t, Save(path, cfg))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Server.Host, got.Server.Host)
	assert.Equal(t, cfg.Auth.Email, got.Auth.Email)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"1024", 1024, false},
		{"1KB", 1000, false},
		{"1KiB", 1024, false},
		{"5MB", 5000000, false},
		{"1.5GiB", 1610612736, false},
		{"junk", 0, true},
		{"-5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
