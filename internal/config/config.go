package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrConfig is returned for configuration that cannot be used
var ErrConfig = errors.New("configuration error")

const (
	StorageFS     = "fs"
	StorageSQLite = "sqlite"
)

// Config holds all configuration for cinv
type Config struct {
	DBDir           string `mapstructure:"db_dir"`
	BackendDir      string `mapstructure:"backend_dir"`
	Storage         string `mapstructure:"storage"`
	SQLitePath      string `mapstructure:"sqlite_path"`
	LogLevel        string `mapstructure:"log_level"`
	LogFormat       string `mapstructure:"log_format"`
	Lock            bool   `mapstructure:"lock"`
	BackendRequired bool   `mapstructure:"backend_required"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		DBDir:           "~/.cinv/db",
		BackendDir:      "~/.cinv/backend",
		Storage:         StorageFS,
		SQLitePath:      "~/.cinv/cinv.db",
		LogLevel:        "warn",
		LogFormat:       "text",
		Lock:            false,
		BackendRequired: false,
	}
}

// AreaDBPath returns the database directory of one area, e.g. <db>/host
func (c *Config) AreaDBPath(area string) string {
	return filepath.Join(c.DBDir, area)
}

// Resolve expands ~ in every path. A path that needs the home directory
// fails with ErrConfig when it cannot be determined.
func (c *Config) Resolve() error {
	for _, p := range []*string{&c.DBDir, &c.BackendDir, &c.SQLitePath} {
		expanded, err := c.expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// expandPath expands ~ to home directory
func (c *Config) expandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "", fmt.Errorf("%w: HOME unset, cannot resolve %s", ErrConfig, path)
	}

	return filepath.Join(homeDir, strings.TrimPrefix(path[1:], "/")), nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.DBDir == "" {
		return fmt.Errorf("%w: db_dir is required", ErrConfig)
	}
	if c.BackendDir == "" {
		return fmt.Errorf("%w: backend_dir is required", ErrConfig)
	}

	switch c.Storage {
	case StorageFS:
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path is required for sqlite storage", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: invalid storage: %s (must be fs or sqlite)", ErrConfig, c.Storage)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("%w: invalid log_level: %s (must be debug, info, warn, or error)", ErrConfig, c.LogLevel)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: invalid log_format: %s (must be text or json)", ErrConfig, c.LogFormat)
	}

	return nil
}
