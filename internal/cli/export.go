package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/cinv/internal/codec"
	"github.com/jbweber/homelab/cinv/internal/inventory"
)

func newExportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the whole inventory as YAML",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, svc *inventory.Service, out io.Writer, args []string) error {
			inv, err := svc.Snapshot(ctx)
			if err != nil {
				return err
			}
			var exporter codec.Exporter = codec.NewYAMLCodec()
			return exporter.Export(out, inv)
		}),
	}
}
