// File: cmd/layout.go
package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/domtree/internal/observability"
)

type layoutFlags struct {
	width, height uint32
	direction     string
	metricsOut    string
	concurrency   int
}

func newLayoutCmd(a *app) *cobra.Command {
	var flags layoutFlags

	cmd := &cobra.Command{
		Use:   "layout FILE...",
		Short: "Lay out HTML documents and print their boxes as JSON",
		Long: `Parses each file, styles and lays out the document in the configured
viewport, and prints one JSON object per file with the solved boxes in
document order. Files are processed concurrently; output keeps argument order.
Use "-" to read a document from stdin.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return flags.apply(cmd, a)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			docs := make([]documentJSON, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(flags.concurrency)
			for i, file := range args {
				g.Go(func() error {
					tree, res, err := a.loadDocument(ctx, file, cmd.InOrStdin())
					if err != nil {
						return err
					}
					bs, err := boxes(tree)
					if err != nil {
						return fmt.Errorf("%s: %w", file, err)
					}
					docs[i] = documentJSON{
						File:   file,
						TreeID: tree.ID().String(),
						Result: resultJSON{Width: res.Width, Height: res.Height, Direction: res.Direction, Nodes: res.Nodes},
						Boxes:  bs,
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			for _, d := range docs {
				if err := enc.Encode(d); err != nil {
					return fmt.Errorf("encoding %s: %w", d.File, err)
				}
			}
			return a.writeMetrics()
		},
	}

	cmd.Flags().Uint32Var(&flags.width, "width", 0, "viewport width (default from config)")
	cmd.Flags().Uint32Var(&flags.height, "height", 0, "viewport height (default from config)")
	cmd.Flags().StringVar(&flags.direction, "direction", "", "base direction: ltr, rtl or inherit")
	cmd.Flags().StringVar(&flags.metricsOut, "metrics-out", "", "write arena metrics in Prometheus text format to this file")
	cmd.Flags().IntVarP(&flags.concurrency, "concurrency", "j", runtime.GOMAXPROCS(0), "documents processed in parallel")
	return cmd
}

// apply overrides configuration with flags the user actually set.
func (f *layoutFlags) apply(cmd *cobra.Command, a *app) error {
	lc := a.cfg.Layout()
	width, height := lc.Width, lc.Height
	if cmd.Flags().Changed("width") {
		width = f.width
	}
	if cmd.Flags().Changed("height") {
		height = f.height
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", width, height)
	}
	a.cfg.SetLayoutViewport(width, height)
	if cmd.Flags().Changed("direction") {
		a.cfg.SetLayoutDirection(f.direction)
	}
	if _, err := a.direction(); err != nil {
		return err
	}
	if cmd.Flags().Changed("metrics-out") {
		a.cfg.SetMetricsOutput(f.metricsOut)
	}
	if f.concurrency < 1 {
		f.concurrency = 1
	}
	return nil
}

func (a *app) writeMetrics() error {
	mc := a.cfg.Metrics()
	if !mc.Enabled {
		return nil
	}
	reg := prometheus.NewRegistry()
	if err := reg.Register(a.metrics); err != nil {
		return fmt.Errorf("registering arena metrics: %w", err)
	}
	f, err := os.Create(mc.Output)
	if err != nil {
		return fmt.Errorf("creating metrics file: %w", err)
	}
	if err := observability.WriteSnapshot(f, reg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
