package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/cinv/internal/backend"
	"github.com/jbweber/homelab/cinv/internal/repository"
)

// setupHome points HOME at an empty directory so the default paths land in
// the test's temp dir.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	return home
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	require.NoError(t, err, "cinv %s", strings.Join(args, " "))
	return out
}

func TestHostCommands(t *testing.T) {
	home := setupHome(t)

	mustExecute(t, "host", "add", "-t", "vm", "web1.example.org")
	mustExecute(t, "host", "add", "--type", "hw", "hv1.example.org")
	_, err := os.Stat(filepath.Join(home, ".cinv", "db", "host", "web1.example.org", "host_type"))
	require.NoError(t, err)

	assert.Equal(t, "hv1.example.org\nweb1.example.org\n", mustExecute(t, "host", "list"))
	assert.Equal(t, "web1.example.org\n", mustExecute(t, "host", "list", "-t", "vm"))
	assert.Equal(t, "vm\n", mustExecute(t, "host", "type-get", "web1.example.org"))

	mustExecute(t, "host", "memory-set", "web1.example.org", "-m", "2g")
	assert.Equal(t, "2147483648\n", mustExecute(t, "host", "memory-get", "web1.example.org"))
	mustExecute(t, "host", "cores-set", "web1.example.org", "-c", "4")
	assert.Equal(t, "4\n", mustExecute(t, "host", "cores-get", "web1.example.org"))

	assert.Equal(t, "disk0\n", mustExecute(t, "host", "disk-add", "web1.example.org", "-s", "10g"))
	assert.Equal(t, "disk1\n", mustExecute(t, "host", "disk-add", "web1.example.org", "-s", "1k"))
	assert.Equal(t, "1024\n", mustExecute(t, "host", "disk-size-get", "web1.example.org", "-n", "disk1"))
	assert.Equal(t, "disk0\ndisk1\n", mustExecute(t, "host", "disk-list", "web1.example.org"))

	assert.Equal(t, "nic0\n", mustExecute(t, "host", "nic-add", "web1.example.org", "-m", "00:16:3e:00:00:01"))
	assert.Equal(t, "00:16:3e:00:00:01\n", mustExecute(t, "host", "nic-addr-get", "web1.example.org", "-n", "nic0"))

	mustExecute(t, "host", "tag-add", "web1.example.org", "-n", "prod")
	assert.Equal(t, "prod\n", mustExecute(t, "host", "tag-list", "web1.example.org"))
	assert.Equal(t, "web1.example.org\n", mustExecute(t, "host", "list", "-T", "prod"))
	_, err = execute(t, "host", "tag-add", "web1.example.org", "-n", "prod")
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	mustExecute(t, "host", "tag-add", "web1.example.org", "-n", "prod", "-V", "yes", "-f")

	mustExecute(t, "host", "vm-host-set", "web1.example.org", "--vm-host", "hv1.example.org")
	assert.Equal(t, "hv1.example.org:\n\tweb1.example.org\n", mustExecute(t, "host", "vm-host-list"))

	_, err = execute(t, "host", "del", "web1.example.org")
	assert.ErrorIs(t, err, repository.ErrHasChildren)
	mustExecute(t, "host", "del", "-r", "web1.example.org")
	mustExecute(t, "host", "del", "-i", "web1.example.org")
	assert.Equal(t, "hv1.example.org\n", mustExecute(t, "host", "list"))
}

func TestHostErrors(t *testing.T) {
	setupHome(t)

	_, err := execute(t, "host", "add", "a.example.org")
	assert.Error(t, err, "type is required")

	_, err = execute(t, "host", "add", "-t", "container", "a.example.org")
	assert.Error(t, err)

	_, err = execute(t, "host", "cores-get", "missing.example.org")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = execute(t, "host", "apply")
	assert.ErrorIs(t, err, repository.ErrInvalidEntity)
}

func TestNetworkCommands(t *testing.T) {
	setupHome(t)

	_, err := execute(t, "net-ipv4", "add", "127.0.0.1", "-m", "16")
	assert.ErrorIs(t, err, repository.ErrInvalidEntity)

	mustExecute(t, "net-ipv4", "add", "10.0.0.0", "-m", "30")
	assert.Equal(t, "10.0.0.0\n", mustExecute(t, "net-ipv4", "list"))
	assert.Equal(t, "10.0.0.3\n", mustExecute(t, "net-ipv4", "broadcast-get", "10.0.0.0"))
	assert.Equal(t, "30\n", mustExecute(t, "net-ipv4", "mask-get", "10.0.0.0"))
	assert.Equal(t, "255.255.255.252\n", mustExecute(t, "net-ipv4", "mask-dotted-quad-get", "10.0.0.0"))

	mustExecute(t, "net-ipv4", "router-set", "10.0.0.0", "-r", "10.0.0.2")
	assert.Equal(t, "10.0.0.2\n", mustExecute(t, "net-ipv4", "router-get", "10.0.0.0"))
	mustExecute(t, "net-ipv4", "bootserver-set", "10.0.0.0", "--bootserver", "boot.example.org")
	assert.Equal(t, "boot.example.org\n", mustExecute(t, "net-ipv4", "bootserver-get", "10.0.0.0"))
	mustExecute(t, "net-ipv4", "bootfilename-set", "10.0.0.0", "--bootfilename", "pxelinux.0")
	assert.Equal(t, "pxelinux.0\n", mustExecute(t, "net-ipv4", "bootfilename-get", "10.0.0.0"))

	assert.Equal(t, "10.0.0.1\n", mustExecute(t, "net-ipv4", "host-add", "10.0.0.0", "-f", "a", "-m", "00:11:22:33:44:55"))
	assert.Equal(t, "10.0.0.2\n", mustExecute(t, "net-ipv4", "host-add", "10.0.0.0", "-f", "b", "-m", "00:11:22:33:44:56"))
	_, err = execute(t, "net-ipv4", "host-add", "10.0.0.0", "-f", "c", "-m", "00:11:22:33:44:57")
	assert.ErrorIs(t, err, repository.ErrExhausted)

	_, err = execute(t, "net-ipv4", "host-add", "10.0.0.0", "-f", "c", "-m", "00:11:22:33:44:55")
	assert.ErrorIs(t, err, repository.ErrConflict)

	assert.Equal(t, "a\nb\n", mustExecute(t, "net-ipv4", "host-list", "10.0.0.0"))
	assert.Equal(t, "00:11:22:33:44:55\n", mustExecute(t, "net-ipv4", "host-mac-address-get", "10.0.0.0", "-f", "a"))
	assert.Equal(t, "10.0.0.2\n", mustExecute(t, "net-ipv4", "host-ipv4-address-get", "10.0.0.0", "-f", "b"))

	mustExecute(t, "net-ipv4", "host-del", "10.0.0.0", "-f", "a")
	assert.Equal(t, "10.0.0.1\n", mustExecute(t, "net-ipv4", "host-add", "10.0.0.0", "-f", "c", "-m", "00:11:22:33:44:57"))

	_, err = execute(t, "net-ipv4", "del", "10.0.0.0")
	assert.ErrorIs(t, err, repository.ErrHasChildren)
	mustExecute(t, "net-ipv4", "del", "-r", "10.0.0.0")
	assert.Empty(t, mustExecute(t, "net-ipv4", "list"))
}

func TestMacCommands(t *testing.T) {
	setupHome(t)

	_, err := execute(t, "mac", "generate")
	assert.ErrorIs(t, err, repository.ErrInvalidEntity)

	mustExecute(t, "mac", "prefix-set", "00:16:3e")
	assert.Equal(t, "00:16:3e\n", mustExecute(t, "mac", "prefix-get"))
	assert.Equal(t, "00:16:3e:00:00:01\n", mustExecute(t, "mac", "generate"))
	assert.Equal(t, "00:16:3e:00:00:02\n", mustExecute(t, "mac", "generate"))

	mustExecute(t, "mac", "free", "00:16:3e:00:00:01")
	assert.Equal(t, "00:16:3e:00:00:01\n", mustExecute(t, "mac", "generate"))

	_, err = execute(t, "mac", "prefix-set", "00:16")
	assert.ErrorIs(t, err, repository.ErrInvalidEntity)
}

func TestExportCommand(t *testing.T) {
	setupHome(t)

	mustExecute(t, "host", "add", "-t", "hw", "a.example.org")
	mustExecute(t, "net-ipv4", "add", "10.0.0.0", "-m", "24")
	mustExecute(t, "net-ipv4", "host-add", "10.0.0.0", "-f", "a.example.org", "-m", "00:11:22:33:44:55")

	out := mustExecute(t, "export")
	assert.Contains(t, out, "fqdn: a.example.org")
	assert.Contains(t, out, "ipv4_address: 10.0.0.1")
	assert.Contains(t, out, "broadcast: 10.0.0.255")
}

func TestSQLiteStorage(t *testing.T) {
	home := setupHome(t)
	dbPath := filepath.Join(home, "inventory.db")

	mustExecute(t, "--storage", "sqlite", "--sqlite-path", dbPath, "host", "add", "-t", "hw", "a.example.org")
	assert.Equal(t, "a.example.org\n", mustExecute(t, "--storage", "sqlite", "--sqlite-path", dbPath, "host", "list"))
	assert.Empty(t, mustExecute(t, "host", "list"), "fs storage stays empty")

	_, err := os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestConfigFileAndEnv(t *testing.T) {
	home := setupHome(t)
	dbDir := filepath.Join(home, "custom-db")

	configPath := filepath.Join(home, "cinv.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("db_dir: "+dbDir+"\n"), 0o644))

	mustExecute(t, "--config", configPath, "mac", "prefix-set", "00:16:3e")
	_, err := os.Stat(filepath.Join(dbDir, "mac", "prefix"))
	require.NoError(t, err)

	t.Setenv("CINV_DB_DIR", dbDir)
	assert.Equal(t, "00:16:3e\n", mustExecute(t, "mac", "prefix-get"))

	_, err = execute(t, "--config", filepath.Join(home, "missing.yaml"), "mac", "prefix-get")
	assert.Error(t, err)

	_, err = execute(t, "--storage", "etcd", "mac", "prefix-get")
	assert.Error(t, err)
}

func TestBackendNotification(t *testing.T) {
	home := setupHome(t)
	record := filepath.Join(home, "record")

	script := filepath.Join(home, ".cinv", "backend", "host", "add")
	require.NoError(t, os.MkdirAll(filepath.Dir(script), 0o755))
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"$__cinv_db_host $@\" > "+record+"\n"), 0o755))

	mustExecute(t, "host", "add", "-t", "vm", "a.example.org")

	data, err := os.ReadFile(record)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cinv", "db", "host")+" a.example.org vm\n", string(data))

	mustExecute(t, "host", "cores-set", "a.example.org", "-c", "2")

	_, err = execute(t, "--backend-required", "host", "cores-set", "a.example.org", "-c", "4")
	assert.ErrorIs(t, err, backend.ErrMissing)
	assert.Equal(t, "4\n", mustExecute(t, "host", "cores-get", "a.example.org"), "change persists before notification")
}
