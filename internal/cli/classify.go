package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/parcelgrid/pkg/pipeline"
)

// classifyCommand creates the classify command that explains, per parcel,
// whether align would redraw it.
func (c *CLI) classifyCommand() *cobra.Command {
	var (
		format      string
		specialOnly bool
		flags       pipelineFlags
	)

	cmd := &cobra.Command{
		Use:   "classify [document]",
		Short: "Explain which parcels are standard lots and which are special",
		Long: `Explain which parcels are standard lots and which are special.

Every parcel is listed in document order with its status and the rule that
decided it: a keyword in the name or purpose, a status, or an area outside the
accepted band. Standard parcels with degenerate geometry are listed as skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			cfg, opts, err := c.options(cmd, &flags)
			if err != nil {
				return err
			}
			return c.runClassify(cmd.Context(), documentURI(args, cfg), opts, format, specialOnly)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json")
	cmd.Flags().BoolVar(&specialOnly, "special", false, "list only special and skipped parcels")
	flags.register(cmd)

	return cmd
}

func (c *CLI) runClassify(ctx context.Context, input string, opts pipeline.Options, format string, specialOnly bool) error {
	src, err := c.openStore(ctx, input)
	if err != nil {
		return err
	}
	defer c.closeStore(src)

	outcomes, st, err := c.newRunner().Classify(ctx, src, opts)
	if err != nil {
		return fmt.Errorf("classify %s: %w", input, err)
	}
	if specialOnly {
		outcomes = exceptPlanned(outcomes)
	}

	if format == formatJSON {
		return writeJSON(struct {
			Stats   pipeline.Stats     `json:"stats"`
			Parcels []pipeline.Outcome `json:"parcels"`
		}{st, outcomes})
	}

	fmt.Fprintln(stdout, outcomesTable(outcomes).Render())
	printStats(st)
	return nil
}

// exceptPlanned drops the parcels align would redraw.
func exceptPlanned(outcomes []pipeline.Outcome) []pipeline.Outcome {
	out := outcomes[:0:0]
	for _, o := range outcomes {
		if o.Status != pipeline.StatusPlanned {
			out = append(out, o)
		}
	}
	return out
}
