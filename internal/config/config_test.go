package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv points the loader at a nonexistent config file and clears
// every MEALPIX_* override so tests see only what they set themselves.
func isolateEnv(t *testing.T) {
	t.Helper()

	t.Setenv("MEALPIX_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	for _, key := range []string{
		"MEALPIX_SERVICE_URL", "MEALPIX_STORAGE_URL", "MEALPIX_WATCH_URL",
		"MEALPIX_NAMESPACE", "MEALPIX_OWNER_ID", "MEALPIX_AUTH_TOKEN",
		"MEALPIX_DATA_DIR", "MEALPIX_LOG_FILE", "MEALPIX_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8686", cfg.ServiceURL)
	assert.Equal(t, "http://localhost:8687", cfg.StorageURL)
	assert.Equal(t, "ws://localhost:8686", cfg.WatchURL)
	assert.Equal(t, "imports", cfg.Namespace)
	assert.Empty(t, cfg.OwnerID)
	assert.Empty(t, cfg.AuthToken)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadFromFile(t *testing.T) {
	isolateEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service_url: https://api.mealpix.example
namespace: photos
owner_id: user-42
log_level: debug
`), 0o644))
	t.Setenv("MEALPIX_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.mealpix.example", cfg.ServiceURL)
	assert.Equal(t, "photos", cfg.Namespace)
	assert.Equal(t, "user-42", cfg.OwnerID)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	// Values absent from the file keep their defaults.
	assert.Equal(t, "http://localhost:8687", cfg.StorageURL)
}

func TestEnvOverridesFile(t *testing.T) {
	isolateEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service_url: https://file.example\nowner_id: from-file\n"), 0o644))
	t.Setenv("MEALPIX_CONFIG", path)
	t.Setenv("MEALPIX_SERVICE_URL", "https://env.example")
	t.Setenv("MEALPIX_AUTH_TOKEN", "secret")
	t.Setenv("MEALPIX_LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://env.example", cfg.ServiceURL)
	assert.Equal(t, "from-file", cfg.OwnerID)
	assert.Equal(t, "secret", cfg.AuthToken)
	assert.Equal(t, slog.LevelError, cfg.LogLevel)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	isolateEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service_url: [unclosed"), 0o644))
	t.Setenv("MEALPIX_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), "level %q", tt.in)
	}
}
