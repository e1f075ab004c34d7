package inventory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/cinv/internal/backend"
	"github.com/jbweber/homelab/cinv/internal/config"
	"github.com/jbweber/homelab/cinv/internal/domain"
	"github.com/jbweber/homelab/cinv/internal/logger"
	"github.com/jbweber/homelab/cinv/internal/repository"
	"github.com/jbweber/homelab/cinv/internal/testutil"
)

type call struct {
	area    string
	command string
	args    []string
}

type recordingNotifier struct {
	calls []call
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, area, command string, args ...string) error {
	n.calls = append(n.calls, call{area, command, args})
	return n.err
}

func newService(t *testing.T) (*Service, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	return New(Options{Store: testutil.NewFSStore(t), Notifier: n}), n
}

func TestService_NotifiesAfterMutation(t *testing.T) {
	ctx := context.Background()
	svc, n := newService(t)

	require.NoError(t, svc.AddNetwork(ctx, "10.0.0.0", 24))
	h, err := svc.AddNetworkHost(ctx, "10.0.0.0", "a.example.org", "00:11:22:33:44:55", "")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", h.IPv4Address)

	require.Len(t, n.calls, 2)
	assert.Equal(t, call{"net-ipv4", "add", []string{"10.0.0.0", "24"}}, n.calls[0])
	assert.Equal(t, call{"net-ipv4", "host_add", []string{"10.0.0.0", "a.example.org", "00:11:22:33:44:55", "10.0.0.1"}}, n.calls[1])
}

func TestService_NoNotifyOnFailure(t *testing.T) {
	ctx := context.Background()
	svc, n := newService(t)

	err := svc.AddNetwork(ctx, "127.0.0.1", 16)
	assert.ErrorIs(t, err, repository.ErrInvalidEntity)

	_, _, err = svc.AddDisk(ctx, "missing", "", "1G")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.Empty(t, n.calls)
}

func TestService_BackendFailureAfterPersist(t *testing.T) {
	ctx := context.Background()
	svc, n := newService(t)
	n.err = backend.ErrFailed

	err := svc.AddHost(ctx, "a", domain.HostTypeHW)
	assert.ErrorIs(t, err, backend.ErrFailed)

	ok, err := svc.Hosts.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok, "mutation persists even when the backend fails")
}

func TestService_DeleteHostIgnoreMissing(t *testing.T) {
	ctx := context.Background()
	svc, n := newService(t)

	assert.NoError(t, svc.DeleteHost(ctx, "gone", false, true))
	assert.ErrorIs(t, svc.DeleteHost(ctx, "gone", false, false), repository.ErrNotFound)
	assert.Empty(t, n.calls)
}

func TestService_HostMutations(t *testing.T) {
	ctx := context.Background()
	svc, n := newService(t)

	require.NoError(t, svc.AddHost(ctx, "vm1", domain.HostTypeVM))
	cores, err := svc.SetCores(ctx, "vm1", "2")
	require.NoError(t, err)
	assert.Equal(t, "2", cores)
	mem, err := svc.SetMemory(ctx, "vm1", "1m")
	require.NoError(t, err)
	assert.Equal(t, "1048576", mem)
	require.NoError(t, svc.SetVMHost(ctx, "vm1", "hv1"))

	name, size, err := svc.AddDisk(ctx, "vm1", "", "1k")
	require.NoError(t, err)
	assert.Equal(t, "disk0", name)
	assert.Equal(t, "1024", size)

	nic, err := svc.AddNIC(ctx, "vm1", "", "00:16:3e:00:00:01")
	require.NoError(t, err)
	assert.Equal(t, "nic0", nic)
	require.NoError(t, svc.DeleteNIC(ctx, "vm1", nic))
	require.NoError(t, svc.AddTag(ctx, "vm1", "prod", "", false))
	require.NoError(t, svc.DeleteTag(ctx, "vm1", "prod", false))
	require.NoError(t, svc.DeleteHost(ctx, "vm1", true, false))

	var commands []string
	for _, c := range n.calls {
		assert.Equal(t, "host", c.area)
		commands = append(commands, c.command)
	}
	assert.Equal(t, []string{
		"add", "cores_set", "memory_set", "vm_host_set", "disk_add",
		"nic_add", "nic_del", "tag_add", "tag_del", "del",
	}, commands)
	assert.Equal(t, []string{"vm1", "disk0", "1024"}, n.calls[4].args)
}

func TestService_Apply(t *testing.T) {
	ctx := context.Background()
	svc, n := newService(t)

	require.NoError(t, svc.AddHost(ctx, "b", domain.HostTypeVM))
	require.NoError(t, svc.AddHost(ctx, "a", domain.HostTypeHW))
	n.calls = nil

	assert.ErrorIs(t, svc.ApplyHosts(ctx, false, "", nil), repository.ErrInvalidEntity)
	assert.ErrorIs(t, svc.ApplyHosts(ctx, false, domain.HostTypeVM, []string{"a"}), repository.ErrInvalidEntity)

	require.NoError(t, svc.ApplyHosts(ctx, true, "", nil))
	require.NoError(t, svc.ApplyHosts(ctx, false, domain.HostTypeVM, nil))
	require.NoError(t, svc.ApplyHosts(ctx, false, "", []string{"x"}))

	require.Len(t, n.calls, 3)
	assert.Equal(t, call{"host", "apply", []string{"a", "b"}}, n.calls[0])
	assert.Equal(t, call{"host", "apply", []string{"b"}}, n.calls[1])
	assert.Equal(t, call{"host", "apply", []string{"x"}}, n.calls[2])

	assert.ErrorIs(t, svc.ApplyNetworks(ctx, false, nil), repository.ErrInvalidEntity)
	require.NoError(t, svc.AddNetwork(ctx, "10.0.0.0", 8))
	n.calls = nil
	require.NoError(t, svc.ApplyNetworks(ctx, true, nil))
	assert.Equal(t, []call{{"net-ipv4", "apply", []string{"10.0.0.0"}}}, n.calls)
}

func TestService_Mac(t *testing.T) {
	ctx := context.Background()
	svc, n := newService(t)

	require.NoError(t, svc.SetMacPrefix(ctx, "00:16:3e"))
	mac, err := svc.GenerateMac(ctx)
	require.NoError(t, err)
	assert.Equal(t, "00:16:3e:00:00:01", mac)
	require.NoError(t, svc.FreeMac(ctx, mac))

	assert.Equal(t, call{"mac", "generate", []string{mac}}, n.calls[1])
	assert.Equal(t, call{"mac", "free", []string{mac}}, n.calls[2])
}

func TestService_Snapshot(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	require.NoError(t, svc.AddHost(ctx, "b", domain.HostTypeHW))
	require.NoError(t, svc.AddHost(ctx, "a", domain.HostTypeVM))
	require.NoError(t, svc.AddNetwork(ctx, "10.0.0.0", 24))
	_, err := svc.AddNetworkHost(ctx, "10.0.0.0", "a", "00:11:22:33:44:55", "")
	require.NoError(t, err)
	require.NoError(t, svc.SetMacPrefix(ctx, "00:16:3e"))

	inv, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, inv.Hosts, 2)
	assert.Equal(t, "a", inv.Hosts[0].FQDN)
	require.Len(t, inv.Networks, 1)
	assert.Equal(t, []domain.NetworkHost{{FQDN: "a", MACAddress: "00:11:22:33:44:55", IPv4Address: "10.0.0.1"}}, inv.Networks[0].Hosts)
	assert.Equal(t, "00:16:3e", inv.Mac.Prefix)
}

func TestService_Lock(t *testing.T) {
	ctx := context.Background()
	lockPath := filepath.Join(t.TempDir(), "db", ".lock")
	svc := New(Options{Store: testutil.NewFSStore(t), LockPath: lockPath})

	require.NoError(t, svc.AddHost(ctx, "a", domain.HostTypeHW))
	_, err := os.Stat(lockPath)
	assert.NoError(t, err)

	// The lock is released after each mutation.
	require.NoError(t, svc.AddHost(ctx, "b", domain.HostTypeHW))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	for _, storage := range []string{config.StorageFS, config.StorageSQLite} {
		t.Run(storage, func(t *testing.T) {
			dir := t.TempDir()
			cfg := config.NewConfig()
			cfg.DBDir = filepath.Join(dir, "db")
			cfg.BackendDir = filepath.Join(dir, "backend")
			cfg.SQLitePath = filepath.Join(dir, "cinv.db")
			cfg.Storage = storage
			cfg.BackendRequired = true

			svc, err := Open(cfg, logger.Discard())
			require.NoError(t, err)
			defer svc.Close()

			err = svc.AddHost(ctx, "a", domain.HostTypeHW)
			assert.True(t, errors.Is(err, backend.ErrMissing), "required backend is missing: %v", err)

			ok, err := svc.Hosts.Exists(ctx, "a")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}
