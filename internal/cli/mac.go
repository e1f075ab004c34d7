package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/cinv/internal/inventory"
)

func newMacCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mac",
		Short: "Manage the MAC address pool",
	}

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Issue the next free mac address",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			mac, err := svc.GenerateMac(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, mac)
			return nil
		}),
	}

	free := &cobra.Command{
		Use:   "free ADDRESS",
		Short: "Return an address to the pool",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			return svc.FreeMac(ctx, args[0])
		}),
	}

	prefixSet := &cobra.Command{
		Use:   "prefix-set PREFIX",
		Short: "Set the 3 byte address prefix, f.i. 00:16:3e",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			return svc.SetMacPrefix(ctx, args[0])
		}),
	}

	prefixGet := &cobra.Command{
		Use:   "prefix-get",
		Short: "Show the address prefix",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			prefix, err := svc.Mac.Prefix(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, prefix)
			return nil
		}),
	}

	cmd.AddCommand(generate, free, prefixSet, prefixGet)
	return cmd
}
