package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/cinv/internal/domain"
	"github.com/jbweber/homelab/cinv/internal/inventory"
)

func newNetworkCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "net-ipv4",
		Short: "Manage IPv4 networks",
	}
	cmd.AddCommand(
		netAddCommand(a),
		netDelCommand(a),
		netListCommand(a),
		netApplyCommand(a),
		netGetCommand(a, "broadcast-get", "Show the broadcast address", func(n domain.Network) string { return n.Broadcast() }),
		netGetCommand(a, "mask-get", "Show the mask in bits", func(n domain.Network) string { return fmt.Sprint(n.Mask) }),
		netGetCommand(a, "mask-dotted-quad-get", "Show the mask as dotted quad", func(n domain.Network) string { return domain.MaskDottedQuad(n.Mask) }),
		netGetCommand(a, "bootserver-get", "Show the boot server", func(n domain.Network) string { return n.BootServer }),
		netGetCommand(a, "bootfilename-get", "Show the boot file name", func(n domain.Network) string { return n.BootFilename }),
		netGetCommand(a, "router-get", "Show the router", func(n domain.Network) string { return n.Router }),
		netSetCommand(a, "bootserver-set", "Set the boot server", "bootserver", "", (*inventory.Service).SetBootServer),
		netSetCommand(a, "bootfilename-set", "Set the boot file name", "bootfilename", "", (*inventory.Service).SetBootFilename),
		netSetCommand(a, "router-set", "Set the router", "router", "r", (*inventory.Service).SetRouter),
		netHostAddCommand(a),
		netHostDelCommand(a),
		netHostListCommand(a),
		netHostGetCommand(a, "host-mac-address-get", "Show the mac address of a host", func(h domain.NetworkHost) string { return h.MACAddress }),
		netHostGetCommand(a, "host-ipv4-address-get", "Show the IPv4 address of a host", func(h domain.NetworkHost) string { return h.IPv4Address }),
	)
	return cmd
}

func netAddCommand(a *app) *cobra.Command {
	var mask string
	cmd := &cobra.Command{
		Use:   "add NETWORK",
		Short: "Add a network",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			bits, err := domain.ParseMask(mask)
			if err != nil {
				return err
			}
			return svc.AddNetwork(ctx, args[0], bits)
		}),
	}
	cmd.Flags().StringVarP(&mask, "mask", "m", "", `network mask in bits, f.i. "24"`)
	_ = cmd.MarkFlagRequired("mask")
	return cmd
}

func netDelCommand(a *app) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "del NETWORK",
		Short: "Delete a network",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			return svc.DeleteNetwork(ctx, args[0], recursive)
		}),
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "delete network including its hosts")
	return cmd
}

func netListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List networks",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			networks, err := svc.Networks.List(ctx)
			if err != nil {
				return err
			}
			printLines(out, networks)
			return nil
		}),
	}
}

func netApplyCommand(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "apply [NETWORK...]",
		Short: "Apply networks using the backend",
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			return svc.ApplyNetworks(ctx, all, args)
		}),
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "apply all networks")
	return cmd
}

// netGetCommand prints one attribute of a network
func netGetCommand(a *app, use, short string, field func(domain.Network) string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " NETWORK",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			n, err := svc.Networks.Get(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, field(n))
			return nil
		}),
	}
}

type networkSetter func(s *inventory.Service, ctx context.Context, network, value string) error

// netSetCommand stores one attribute of a network given by --<flag>
func netSetCommand(a *app, use, short, flag, shorthand string, set networkSetter) *cobra.Command {
	var value string
	cmd := &cobra.Command{
		Use:   use + " NETWORK",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			return set(svc, ctx, args[0], value)
		}),
	}
	cmd.Flags().StringVarP(&value, flag, shorthand, "", short)
	_ = cmd.MarkFlagRequired(flag)
	return cmd
}

func netHostAddCommand(a *app) *cobra.Command {
	var fqdn, mac, ipv4 string
	cmd := &cobra.Command{
		Use:   "host-add NETWORK",
		Short: "Add a host to the network, allocating an address unless given",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			h, err := svc.AddNetworkHost(ctx, args[0], fqdn, mac, ipv4)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, h.IPv4Address)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&fqdn, "fqdn", "f", "", "FQDN of host")
	cmd.Flags().StringVarP(&mac, "mac-address", "m", "", "mac address")
	cmd.Flags().StringVarP(&ipv4, "ipv4-address", "i", "", "requested IPv4 address")
	_ = cmd.MarkFlagRequired("fqdn")
	_ = cmd.MarkFlagRequired("mac-address")
	return cmd
}

func netHostDelCommand(a *app) *cobra.Command {
	var fqdn string
	cmd := &cobra.Command{
		Use:   "host-del NETWORK",
		Short: "Remove a host from the network and free its address",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			_, err := svc.DeleteNetworkHost(ctx, args[0], fqdn)
			return err
		}),
	}
	cmd.Flags().StringVarP(&fqdn, "fqdn", "f", "", "FQDN of host")
	_ = cmd.MarkFlagRequired("fqdn")
	return cmd
}

func netHostListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "host-list NETWORK",
		Short: "List hosts of the network",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			hosts, err := svc.Networks.Hosts(ctx, args[0])
			if err != nil {
				return err
			}
			printLines(out, hosts)
			return nil
		}),
	}
}

func netHostGetCommand(a *app, use, short string, field func(domain.NetworkHost) string) *cobra.Command {
	var fqdn string
	cmd := &cobra.Command{
		Use:   use + " NETWORK",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			h, err := svc.Networks.Host(ctx, args[0], fqdn)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, field(h))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&fqdn, "fqdn", "f", "", "FQDN of host")
	_ = cmd.MarkFlagRequired("fqdn")
	return cmd
}
