package datastore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	ds, err := Open("file:TestOpen_Memory?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	defer ds.Close()

	var fkEnabled bool
	err = ds.DB.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled)
	require.NoError(t, err)
	assert.True(t, fkEnabled)

	var count int
	err = ds.DB.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='entities'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "cinv.db")

	ds, err := Open(path, nil)
	require.NoError(t, err)
	defer ds.Close()

	assert.FileExists(t, path)

	var mode string
	err = ds.DB.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cinv.db")

	ds, err := Open(path, nil)
	require.NoError(t, err)
	_, err = ds.DB.Exec("INSERT INTO entities (path, parent, name) VALUES ('host', '', 'host')")
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	ds, err = Open(path, nil)
	require.NoError(t, err)
	defer ds.Close()

	var count int
	err = ds.DB.QueryRow("SELECT COUNT(*) FROM entities").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
