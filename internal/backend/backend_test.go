package backend

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, area, command, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, area), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, area, command), []byte("#!/bin/sh\n"+body+"\n"), 0o755))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "__cinv_db_host", EnvName("host"))
	assert.Equal(t, "__cinv_db_net_ipv4", EnvName("net-ipv4"))
}

func TestExecNotifier_Runs(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "net-ipv4", "add", `echo "$__cinv_db_net_ipv4 $@"`)

	var out bytes.Buffer
	n := &ExecNotifier{
		Dir:    dir,
		DBPath: func(area string) string { return "/db/" + area },
		Stdout: &out,
	}

	require.NoError(t, n.Notify(context.Background(), "net-ipv4", "add", "10.0.0.0", "24"))
	assert.Equal(t, "/db/net-ipv4 10.0.0.0 24\n", out.String())
}

func TestExecNotifier_Missing(t *testing.T) {
	n := &ExecNotifier{Dir: t.TempDir()}
	assert.NoError(t, n.Notify(context.Background(), "host", "add", "a"))

	n.Required = true
	assert.ErrorIs(t, n.Notify(context.Background(), "host", "add", "a"), ErrMissing)
}

func TestExecNotifier_Failure(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "host", "del", "exit 3")

	n := &ExecNotifier{Dir: dir, Stderr: &bytes.Buffer{}}
	err := n.Notify(context.Background(), "host", "del", "a")
	assert.ErrorIs(t, err, ErrFailed)
}

func TestNopNotifier(t *testing.T) {
	assert.NoError(t, NopNotifier{}.Notify(context.Background(), "mac", "generate"))
}
