package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/cinv/internal/domain"
	"github.com/jbweber/homelab/cinv/internal/inventory"
	"github.com/jbweber/homelab/cinv/internal/repository"
)

func newHostCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Manage hosts",
	}
	cmd.AddCommand(
		hostAddCommand(a),
		hostDelCommand(a),
		hostListCommand(a),
		hostApplyCommand(a),
		hostGetCommand(a, "cores-get", "Show the number of cores", func(h domain.Host) string { return h.Cores }),
		hostCoresSetCommand(a),
		hostGetCommand(a, "memory-get", "Show main memory in bytes", func(h domain.Host) string { return h.Memory }),
		hostMemorySetCommand(a),
		hostGetCommand(a, "type-get", "Show the host type", func(h domain.Host) string { return string(h.Type) }),
		hostGetCommand(a, "vm-host-get", "Show the vm host of a VM", func(h domain.Host) string { return h.VMHost }),
		hostVMHostSetCommand(a),
		hostVMHostListCommand(a),
		hostDiskAddCommand(a),
		hostDiskListCommand(a),
		hostDiskSizeGetCommand(a),
		hostNICAddCommand(a),
		hostNICDelCommand(a),
		hostNICAddrGetCommand(a),
		hostNICListCommand(a),
		hostTagAddCommand(a),
		hostTagDelCommand(a),
		hostTagListCommand(a),
	)
	return cmd
}

func parseOptionalHostType(value string) (domain.HostType, error) {
	if value == "" {
		return "", nil
	}
	return domain.ParseHostType(value)
}

func hostAddCommand(a *app) *cobra.Command {
	var hostType string
	cmd := &cobra.Command{
		Use:   "add FQDN",
		Short: "Add a host",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			t, err := domain.ParseHostType(hostType)
			if err != nil {
				return err
			}
			return svc.AddHost(ctx, args[0], t)
		}),
	}
	cmd.Flags().StringVarP(&hostType, "type", "t", "", "host type: hw or vm")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func hostDelCommand(a *app) *cobra.Command {
	var recursive, ignoreMissing bool
	cmd := &cobra.Command{
		Use:   "del FQDN",
		Short: "Delete a host",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			return svc.DeleteHost(ctx, args[0], recursive, ignoreMissing)
		}),
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "delete host including disks and nics")
	cmd.Flags().BoolVarP(&ignoreMissing, "ignore-missing", "i", false, "do not fail if the host is missing")
	return cmd
}

func hostListCommand(a *app) *cobra.Command {
	var (
		hostType string
		tags     []string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List hosts",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			t, err := parseOptionalHostType(hostType)
			if err != nil {
				return err
			}
			hosts, err := svc.Hosts.List(ctx, repository.HostFilter{Type: t, Tags: tags})
			if err != nil {
				return err
			}
			printLines(out, hosts)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&hostType, "type", "t", "", "only hosts of this type")
	cmd.Flags().StringArrayVarP(&tags, "tags", "T", nil, "only hosts carrying this tag (repeatable)")
	return cmd
}

func hostApplyCommand(a *app) *cobra.Command {
	var (
		all      bool
		hostType string
	)
	cmd := &cobra.Command{
		Use:   "apply [FQDN...]",
		Short: "Apply hosts using the backend",
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			t, err := parseOptionalHostType(hostType)
			if err != nil {
				return err
			}
			return svc.ApplyHosts(ctx, all, t, args)
		}),
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "apply all hosts")
	cmd.Flags().StringVarP(&hostType, "type", "t", "", "apply hosts of this type (implies --all)")
	return cmd
}

// hostGetCommand prints one scalar attribute of a host
func hostGetCommand(a *app, use, short string, field func(domain.Host) string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " FQDN",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			h, err := svc.Hosts.Get(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, field(h))
			return nil
		}),
	}
}

func hostCoresSetCommand(a *app) *cobra.Command {
	var cores string
	cmd := &cobra.Command{
		Use:   "cores-set FQDN",
		Short: "Set the number of cores",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			_, err := svc.SetCores(ctx, args[0], cores)
			return err
		}),
	}
	cmd.Flags().StringVarP(&cores, "cores", "c", "", "number of cores")
	_ = cmd.MarkFlagRequired("cores")
	return cmd
}

func hostMemorySetCommand(a *app) *cobra.Command {
	var memory string
	cmd := &cobra.Command{
		Use:   "memory-set FQDN",
		Short: "Set main memory, suffixes k to y are powers of 1024",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			_, err := svc.SetMemory(ctx, args[0], memory)
			return err
		}),
	}
	cmd.Flags().StringVarP(&memory, "memory", "m", "", "main memory")
	_ = cmd.MarkFlagRequired("memory")
	return cmd
}

func hostVMHostSetCommand(a *app) *cobra.Command {
	var vmHost string
	cmd := &cobra.Command{
		Use:   "vm-host-set FQDN",
		Short: "Set the vm host of a VM",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			return svc.SetVMHost(ctx, args[0], vmHost)
		}),
	}
	cmd.Flags().StringVar(&vmHost, "vm-host", "", "vm host (only for VMs)")
	_ = cmd.MarkFlagRequired("vm-host")
	return cmd
}

func hostVMHostListCommand(a *app) *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "vm-host-list",
		Short: "List vm hosts with their VMs",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			vmHosts, err := svc.Hosts.VMHosts(ctx, repository.HostFilter{Tags: tags})
			if err != nil {
				return err
			}
			names := make([]string, 0, len(vmHosts))
			for name := range vmHosts {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				fmt.Fprintf(out, "%s:\n", name)
				for _, vm := range vmHosts[name] {
					fmt.Fprintf(out, "\t%s\n", vm)
				}
			}
			return nil
		}),
	}
	cmd.Flags().StringArrayVarP(&tags, "tags", "T", nil, "only VMs carrying this tag (repeatable)")
	return cmd
}

func hostDiskAddCommand(a *app) *cobra.Command {
	var size, name string
	cmd := &cobra.Command{
		Use:   "disk-add FQDN",
		Short: "Add a disk",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			diskName, _, err := svc.AddDisk(ctx, args[0], name, size)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, diskName)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&size, "size", "s", "", "disk size, suffixes k to y are powers of 1024")
	cmd.Flags().StringVarP(&name, "name", "n", "", "disk name (generated if empty)")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func hostDiskListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disk-list FQDN",
		Short: "List disks",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			disks, err := svc.Hosts.Disks(ctx, args[0])
			if err != nil {
				return err
			}
			printLines(out, disks)
			return nil
		}),
	}
}

func hostDiskSizeGetCommand(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "disk-size-get FQDN",
		Short: "Show the size of a disk in bytes",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			size, err := svc.Hosts.DiskSize(ctx, args[0], name)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, size)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "disk name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func hostNICAddCommand(a *app) *cobra.Command {
	var mac, name string
	cmd := &cobra.Command{
		Use:   "nic-add FQDN",
		Short: "Add a network interface card",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			nicName, err := svc.AddNIC(ctx, args[0], name, mac)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, nicName)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&mac, "mac-address", "m", "", "mac address")
	cmd.Flags().StringVarP(&name, "name", "n", "", "nic name (generated if empty)")
	_ = cmd.MarkFlagRequired("mac-address")
	return cmd
}

func hostNICDelCommand(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "nic-del FQDN",
		Short: "Delete a network interface card",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			return svc.DeleteNIC(ctx, args[0], name)
		}),
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "nic name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func hostNICAddrGetCommand(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "nic-addr-get FQDN",
		Short: "Show the mac address of a network interface card",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			mac, err := svc.Hosts.NICAddress(ctx, args[0], name)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, mac)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "nic name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func hostNICListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "nic-list FQDN",
		Short: "List network interface cards",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			nics, err := svc.Hosts.NICs(ctx, args[0])
			if err != nil {
				return err
			}
			printLines(out, nics)
			return nil
		}),
	}
}

func hostTagAddCommand(a *app) *cobra.Command {
	var (
		name, value string
		force       bool
	)
	cmd := &cobra.Command{
		Use:   "tag-add FQDN",
		Short: "Add a tag",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			return svc.AddTag(ctx, args[0], name, value, force)
		}),
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "tag name")
	cmd.Flags().StringVarP(&value, "value", "V", "", "tag value")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing tag")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func hostTagDelCommand(a *app) *cobra.Command {
	var (
		name  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "tag-del FQDN",
		Short: "Delete a tag",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			return svc.DeleteTag(ctx, args[0], name, force)
		}),
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "tag name")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "do not fail if the tag is gone already")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func hostTagListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tag-list FQDN",
		Short: "List tags",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			tags, err := svc.Hosts.Tags(ctx, args[0])
			if err != nil {
				return err
			}
			printLines(out, tags)
			return nil
		}),
	}
}
