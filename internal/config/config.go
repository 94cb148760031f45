// Package config loads Mealpix client configuration and sets up logging.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values for the import client.
type Config struct {
	// Import service endpoints
	ServiceURL string `yaml:"service_url"`
	StorageURL string `yaml:"storage_url"`
	WatchURL   string `yaml:"watch_url"`

	// Object store layout
	Namespace string `yaml:"namespace"`
	OwnerID   string `yaml:"owner_id"`

	// Optional bearer token forwarded to the service
	AuthToken string `yaml:"auth_token"`

	// Local state
	DataDir string `yaml:"data_dir"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`

	// LogLevelName is the yaml/env form of LogLevel.
	LogLevelName string `yaml:"log_level"`
}

// Load builds the configuration: defaults, overlaid by the optional YAML
// config file, overlaid by environment variables.
func Load() (Config, error) {
	cfg := defaults()

	path := configFilePath()
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	applyEnv(&cfg)
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	return cfg, nil
}

func defaults() Config {
	home, _ := os.UserHomeDir()

	return Config{
		ServiceURL:   "http://localhost:8686",
		StorageURL:   "http://localhost:8687",
		WatchURL:     "ws://localhost:8686",
		Namespace:    "imports",
		DataDir:      filepath.Join(home, ".mealpix"),
		LogFile:      filepath.Join(os.TempDir(), "mealpix.log"),
		LogLevelName: "INFO",
	}
}

// configFilePath returns the YAML config location, honoring MEALPIX_CONFIG.
func configFilePath() string {
	if path := os.Getenv("MEALPIX_CONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mealpix", "config.yaml")
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.ServiceURL, "MEALPIX_SERVICE_URL")
	setFromEnv(&cfg.StorageURL, "MEALPIX_STORAGE_URL")
	setFromEnv(&cfg.WatchURL, "MEALPIX_WATCH_URL")
	setFromEnv(&cfg.Namespace, "MEALPIX_NAMESPACE")
	setFromEnv(&cfg.OwnerID, "MEALPIX_OWNER_ID")
	setFromEnv(&cfg.AuthToken, "MEALPIX_AUTH_TOKEN")
	setFromEnv(&cfg.DataDir, "MEALPIX_DATA_DIR")
	setFromEnv(&cfg.LogFile, "MEALPIX_LOG_FILE")
	setFromEnv(&cfg.LogLevelName, "MEALPIX_LOG_LEVEL")
}

func setFromEnv(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
