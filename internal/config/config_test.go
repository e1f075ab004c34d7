package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	config := NewConfig()

	if config == nil {
		t.Fatal("Expected non-nil config")
	}

	assert.Equal(t, "~/.cinv/db", config.DBDir)
	assert.Equal(t, "~/.cinv/backend", config.BackendDir)
	assert.Equal(t, StorageFS, config.Storage)
	assert.Equal(t, "warn", config.LogLevel)
	assert.False(t, config.Lock)
	assert.NoError(t, config.Validate())
}

func TestConfig_expandPath_WithTilde(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	config := NewConfig()

	expanded, err := config.expandPath("~/test/path")
	require.NoError(t, err)

	if strings.HasPrefix(expanded, "~/") {
		t.Errorf("Expected path to be expanded, got '%s'", expanded)
	}
	assert.Equal(t, "/home/tester/test/path", expanded)

	expanded, err = config.expandPath("~")
	require.NoError(t, err)
	assert.Equal(t, "/home/tester", expanded)
}

func TestConfig_expandPath_WithoutTilde(t *testing.T) {
	config := NewConfig()

	for _, path := range []string{"/absolute/path", "relative/path", "~user/path"} {
		expanded, err := config.expandPath(path)
		require.NoError(t, err)
		assert.Equal(t, path, expanded)
	}
}

func TestConfig_Resolve_NoHome(t *testing.T) {
	t.Setenv("HOME", "")
	config := NewConfig()

	err := config.Resolve()
	assert.ErrorIs(t, err, ErrConfig)
}

func TestConfig_Resolve(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	config := NewConfig()

	require.NoError(t, config.Resolve())
	assert.Equal(t, "/home/tester/.cinv/db", config.DBDir)
	assert.Equal(t, "/home/tester/.cinv/db/net-ipv4", config.AreaDBPath("net-ipv4"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty db dir", func(c *Config) { c.DBDir = "" }},
		{"empty backend dir", func(c *Config) { c.BackendDir = "" }},
		{"unknown storage", func(c *Config) { c.Storage = "etcd" }},
		{"sqlite without path", func(c *Config) { c.Storage = StorageSQLite; c.SQLitePath = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfig()
			tt.modify(c)
			assert.ErrorIs(t, c.Validate(), ErrConfig)
		})
	}
}

func TestLoader_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cinv", "db"), cfg.DBDir)
	assert.Equal(t, StorageFS, cfg.Storage)
}

func TestLoader_ConfigFileAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".cinv"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".cinv", "config.yaml"), []byte(
		"db_dir: /srv/cinv/db\nstorage: sqlite\nsqlite_path: /srv/cinv/cinv.db\nlog_level: info\n"), 0o644))
	t.Setenv("CINV_LOG_LEVEL", "debug")

	loader := NewLoader("")
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/cinv/db", cfg.DBDir)
	assert.Equal(t, StorageSQLite, cfg.Storage)
	assert.Equal(t, "debug", cfg.LogLevel, "environment overrides file")
	assert.Equal(t, filepath.Join(home, ".cinv", "config.yaml"), loader.ConfigFileUsed())
}

func TestLoader_ExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	file := filepath.Join(t.TempDir(), "cinv.yaml")
	require.NoError(t, os.WriteFile(file, []byte("lock: true\nbackend_required: true\n"), 0o644))

	cfg, err := NewLoader(file).Load()
	require.NoError(t, err)
	assert.True(t, cfg.Lock)
	assert.True(t, cfg.BackendRequired)

	_, err = NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	assert.ErrorIs(t, err, ErrConfig)
}

func TestLoader_Flags(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("CINV_DB_DIR", "/from/env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db-dir", "", "")
	require.NoError(t, flags.Parse([]string{"--db-dir", "/from/flag"}))

	loader := NewLoader("")
	require.NoError(t, loader.BindFlags(map[string]*pflag.Flag{"db_dir": flags.Lookup("db-dir")}))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.DBDir)
}

func TestLoader_Invalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("CINV_STORAGE", "tape")

	_, err := NewLoader("").Load()
	assert.ErrorIs(t, err, ErrConfig)
}
