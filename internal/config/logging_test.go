package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestLoggerFansOutToBothWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := NewTestLogger(&stderr, &file, slog.LevelInfo)

	logger.Info("import started", "job_id", "imp_1")

	assert.Contains(t, stderr.String(), "import started")
	assert.Contains(t, file.String(), "imp_1")
	// The file side is JSON, the stderr side is text.
	assert.Contains(t, file.String(), `"job_id":"imp_1"`)
}

func TestTestLoggerHonorsLevel(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := NewTestLogger(&stderr, &file, slog.LevelWarn)

	logger.Debug("noise")
	logger.Info("still noise")
	logger.Warn("kept")

	assert.NotContains(t, stderr.String(), "noise")
	assert.Contains(t, stderr.String(), "kept")
	assert.NotContains(t, file.String(), "noise")
}

func TestSetupLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mealpix.log")

	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestSetupLoggerDegradesWithoutFile(t *testing.T) {
	// An unwritable path must not break logging.
	logger, cleanup := SetupLogger(filepath.Join(t.TempDir(), "no", "such", "dir", "x.log"), slog.LevelInfo)
	require.NotNil(t, logger)
	logger.Info("still works")
	require.NoError(t, cleanup())
}
