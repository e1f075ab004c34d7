package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from defaults, a config file,
// environment variables and command line flags, in increasing priority.
type Loader struct {
	v    *viper.Viper
	file string
}

// NewLoader creates a new configuration loader. A non-empty file is read
// instead of searching the default locations, and must exist.
func NewLoader(file string) *Loader {
	return &Loader{
		v:    viper.New(),
		file: file,
	}
}

// BindFlags binds command line flags to configuration keys
func (l *Loader) BindFlags(flags map[string]*pflag.Flag) error {
	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := l.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}
	return nil
}

// Load loads configuration, expands paths and validates the result
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()
	l.setupConfigPaths()
	l.setupEnvVars()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: error reading config file: %v", ErrConfig, err)
		}
		// Config file not found is OK, we'll use defaults + env vars
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", ErrConfig, err)
	}

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the config file that was read, if any
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// setDefaults sets default configuration values.
func (l *Loader) setDefaults() {
	defaults := NewConfig()
	l.v.SetDefault("db_dir", defaults.DBDir)
	l.v.SetDefault("backend_dir", defaults.BackendDir)
	l.v.SetDefault("storage", defaults.Storage)
	l.v.SetDefault("sqlite_path", defaults.SQLitePath)
	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("log_format", defaults.LogFormat)
	l.v.SetDefault("lock", defaults.Lock)
	l.v.SetDefault("backend_required", defaults.BackendRequired)
}

// setupConfigPaths configures where to search for config files.
func (l *Loader) setupConfigPaths() {
	if l.file != "" {
		l.v.SetConfigFile(l.file)
		return
	}

	l.v.SetConfigName("config")
	l.v.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".cinv"))
	}
	l.v.AddConfigPath(".")
}

// setupEnvVars configures environment variable handling.
func (l *Loader) setupEnvVars() {
	l.v.SetEnvPrefix("CINV")
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
}
