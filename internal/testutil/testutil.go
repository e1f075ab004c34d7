package testutil

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/cinv/internal/property"
)

// NewTestDSN generates a DSN for an in-memory SQLite database for testing purposes.
func NewTestDSN(testName string) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(testName)
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewFSStore returns a filesystem store rooted in a per-test temp dir.
func NewFSStore(t *testing.T) *property.FSStore {
	t.Helper()
	return property.NewFSStore(t.TempDir())
}

// NewSQLStore returns a store on a fresh in-memory SQLite database.
func NewSQLStore(t *testing.T) *property.SQLStore {
	t.Helper()
	s, err := property.OpenSQLStore(NewTestDSN(t.Name()), Logger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Stores returns every store implementation keyed by backend name, so
// tests can run the same assertions against each.
func Stores(t *testing.T) map[string]func(t *testing.T) property.Store {
	t.Helper()
	return map[string]func(t *testing.T) property.Store{
		"fs":     func(t *testing.T) property.Store { return NewFSStore(t) },
		"sqlite": func(t *testing.T) property.Store { return NewSQLStore(t) },
	}
}
