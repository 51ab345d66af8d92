package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/parcelgrid/pkg/pipeline"
	"github.com/matzehuels/parcelgrid/pkg/store"
)

// alignCommand creates the align command that regenerates standard parcels.
func (c *CLI) alignCommand() *cobra.Command {
	var (
		output string
		dryRun bool
		flags  pipelineFlags
	)

	cmd := &cobra.Command{
		Use:   "align [document]",
		Short: "Redraw standard parcels as uniform rows of lots",
		Long: `Redraw standard parcels as uniform rows of lots.

Standard parcels are clustered into rows by latitude and each row is redrawn
left to right as equal rectangles of the target size. Special parcels (parks,
administrative buildings, sports grounds, multi-unit housing, areas outside the
accepted band) and parcels with degenerate geometry are left as they are.

The document is a file path or a store URI:
  plotsData.json
  redis://localhost:6379/0?key=parcelgrid:plots
  mongodb://localhost:27017/parcelgrid?collection=documents&name=plots

The whole document is written back in one pass, or not at all.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, opts, err := c.options(cmd, &flags)
			if err != nil {
				return err
			}
			return c.runAlign(cmd.Context(), documentURI(args, cfg), output, opts, dryRun)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this document instead of the input")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	flags.register(cmd)

	return cmd
}

// runAlign loads, transforms and saves the document.
func (c *CLI) runAlign(ctx context.Context, input, output string, opts pipeline.Options, dryRun bool) error {
	src, err := c.openStore(ctx, input)
	if err != nil {
		return err
	}
	defer c.closeStore(src)

	var dst store.Store
	if output != "" && output != input {
		if dst, err = c.openStore(ctx, output); err != nil {
			return err
		}
		defer c.closeStore(dst)
	}

	prog := newProgress(c.Logger)
	spin := startSpinner(ctx, "Aligning parcels...")
	res, err := c.newRunner().Align(ctx, src, dst, opts, dryRun)
	if err != nil {
		spin.fail("Alignment failed")
		return fmt.Errorf("align %s: %w", input, err)
	}
	spin.stop()
	prog.done("Aligned %d parcels", res.Stats.Total)

	if dryRun {
		printWarning("Dry run, nothing written")
	} else {
		printSuccess("Aligned %d lots in %d rows", res.Stats.Regenerated, res.Stats.Rows)
		if dst == nil {
			dst = src
		}
		printFile(dst.Location())
	}
	printStats(res.Stats)
	printSkipped(res.Outcomes)
	printNewline()
	next := input
	if output != "" && !dryRun {
		next = output
	}
	printNextStep("Inspect rows", appName+" rows "+next)

	return nil
}
