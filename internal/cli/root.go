// Package cli implements the cinv command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jbweber/homelab/cinv/internal/config"
	"github.com/jbweber/homelab/cinv/internal/inventory"
	"github.com/jbweber/homelab/cinv/internal/logger"
)

// app carries the state shared by all commands of one invocation
type app struct {
	configFile string
	verbose    bool
	debug      bool

	cfg *config.Config
	log *logger.Logger
	svc *inventory.Service
}

// NewRootCommand builds the complete cinv command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "cinv",
		Short: "Configuration inventory for hosts, IPv4 networks and MAC addresses",
		Long: `cinv keeps an inventory of hosts, IPv4 networks and a MAC address pool.
Every successful change is reported to an optional backend executable
below the backend directory, named <area>/<command>.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default is ~/.cinv/config.yaml)")
	flags.String("db-dir", "", "database directory (default ~/.cinv/db)")
	flags.String("backend-dir", "", "backend directory (default ~/.cinv/backend)")
	flags.String("storage", "", "storage driver: fs or sqlite")
	flags.String("sqlite-path", "", "sqlite database file (default ~/.cinv/cinv.db)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.Bool("lock", false, "hold an exclusive lock during changes")
	flags.Bool("backend-required", false, "fail if a backend command is missing")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&a.debug, "debug", "d", false, "debug output")

	root.AddCommand(
		newHostCommand(a),
		newNetworkCommand(a),
		newMacCommand(a),
		newExportCommand(a),
	)
	return root
}

// Execute runs the root command with os.Args and exits non-zero on error
func Execute() {
	root := NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		os.Exit(1)
	}
}

// configFlags maps configuration keys to the persistent flags overriding them
func configFlags(flags *pflag.FlagSet) map[string]*pflag.Flag {
	keys := []string{"db_dir", "backend_dir", "storage", "sqlite_path", "log_level", "log_format", "lock", "backend_required"}
	out := make(map[string]*pflag.Flag, len(keys))
	for _, key := range keys {
		out[key] = flags.Lookup(strings.ReplaceAll(key, "_", "-"))
	}
	return out
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(a.configFile)
	if err := loader.BindFlags(configFlags(cmd.Root().PersistentFlags())); err != nil {
		return err
	}

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	switch {
	case a.debug:
		cfg.LogLevel = "debug"
	case a.verbose:
		cfg.LogLevel = "info"
	}

	a.cfg = cfg
	a.log = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if used := loader.ConfigFileUsed(); used != "" {
		a.log.Debug("Using config file", "path", used)
	}
	return nil
}

// service opens the inventory on first use
func (a *app) service() (*inventory.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	svc, err := inventory.Open(a.cfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory: %w", err)
	}
	a.svc = svc
	return svc, nil
}

func (a *app) close() error {
	if a.svc == nil {
		return nil
	}
	err := a.svc.Close()
	a.svc = nil
	return err
}

// run wraps a command body that needs the inventory
func (a *app) run(fn func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		svc, err := a.service()
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(cmd.Context(), svc, cmd.OutOrStdout(), args)
	}
}

func printLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
