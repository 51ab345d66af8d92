package cli

import (
	"context"
	"encoding/json"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/parcelgrid/pkg/errors"
	"github.com/matzehuels/parcelgrid/pkg/pipeline"
	"github.com/matzehuels/parcelgrid/pkg/rows"
)

// Output formats of the report commands.
const (
	formatTable = "table"
	formatJSON  = "json"
)

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON:
		return nil
	}
	return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want %s or %s)", format, formatTable, formatJSON)
}

// rowsCommand creates the rows command, a read-only view of the rows an
// align run would operate on.
func (c *CLI) rowsCommand() *cobra.Command {
	var (
		format      string
		interactive bool
		flags       pipelineFlags
	)

	cmd := &cobra.Command{
		Use:   "rows [document]",
		Short: "Show the rows of standard parcels without changing anything",
		Long: `Show the rows of standard parcels without changing anything.

Uses the same classification and clustering as 'align' and reports, per row,
its latitude, the parcels in it and the geohash of its anchor point so the
row can be found on a map.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			cfg, opts, err := c.options(cmd, &flags)
			if err != nil {
				return err
			}
			return c.runRows(cmd.Context(), documentURI(args, cfg), opts, format, interactive)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse rows interactively")
	flags.register(cmd)

	return cmd
}

func (c *CLI) runRows(ctx context.Context, input string, opts pipeline.Options, format string, interactive bool) error {
	src, err := c.openStore(ctx, input)
	if err != nil {
		return err
	}
	defer c.closeStore(src)

	rep, err := c.newRunner().Inspect(ctx, src, opts)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", input, err)
	}

	switch {
	case interactive:
		_, err := tea.NewProgram(newRowsModel(rep), tea.WithContext(ctx)).Run()
		return err
	case format == formatJSON:
		return writeJSON(rep)
	}
	printRowsReport(rep)
	return nil
}

func printRowsReport(rep rows.Report) {
	fmt.Fprintln(stdout, rowsTable(rep, -1).Render())
	printDetail("%d parcels in %d rows, tolerance %g°", rep.Total(), len(rep.Rows), rep.Tolerance)
	if len(rep.Skipped) > 0 {
		printWarning("%d degenerate parcels not placed: %s", len(rep.Skipped), abbreviate(rep.Skipped, 10))
	}
}

// writeJSON writes v to stdout, indented, with non-ASCII text unescaped.
func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
