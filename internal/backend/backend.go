package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var (
	// ErrMissing is returned when a required backend executable does not exist
	ErrMissing = errors.New("backend command missing")

	// ErrFailed is returned when a backend executable exits unsuccessfully
	ErrFailed = errors.New("backend command failed")
)

// Notifier tells an external system about a completed mutation
type Notifier interface {
	Notify(ctx context.Context, area, command string, args ...string) error
}

// NopNotifier ignores every notification
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string, ...string) error {
	return nil
}

// ExecNotifier runs <Dir>/<area>/<command> with the area's database path in
// the environment variable __cinv_db_<area>.
type ExecNotifier struct {
	Dir string
	// DBPath maps an area to its database path
	DBPath func(area string) string
	// Required turns a missing executable into ErrMissing
	Required bool
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   *slog.Logger
}

// EnvName returns the environment variable carrying the database path of area
func EnvName(area string) string {
	return strings.ReplaceAll("__cinv_db_"+area, "-", "_")
}

func (n *ExecNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

func (n *ExecNotifier) Notify(ctx context.Context, area, command string, args ...string) error {
	path := filepath.Join(n.Dir, area, command)
	envName := EnvName(area)
	dbPath := ""
	if n.DBPath != nil {
		dbPath = n.DBPath(area)
	}

	logger := n.logger().With("area", area, "command", path)
	logger.Debug("Exec backend", "env", envName+"="+dbPath, "args", args)

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s backend command %s: %w", area, path, err)
		}
		if n.Required {
			return fmt.Errorf("%s misses backend command: %s: %w", area, path, ErrMissing)
		}
		logger.Debug("Ignoring missing backend command")
		return nil
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = append(os.Environ(), envName+"="+dbPath)
	cmd.Stdout = n.Stdout
	cmd.Stderr = n.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w: %v", area, command, ErrFailed, err)
	}
	return nil
}
