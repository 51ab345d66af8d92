package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/parcelgrid/pkg/pipeline"
	"github.com/matzehuels/parcelgrid/pkg/rows"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success, regenerated lots
	colorYellow = lipgloss.Color("220") // Amber - warnings, special parcels
	colorRed    = lipgloss.Color("167") // Soft red - errors, skipped parcels
	colorBlue   = lipgloss.Color("75")  // Light blue - commands
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleHeader      = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleCommand     = lipgloss.NewStyle().Foreground(colorBlue)
)

// statusStyles colors per-parcel outcomes.
var statusStyles = map[pipeline.Status]lipgloss.Style{
	pipeline.StatusRegenerated: lipgloss.NewStyle().Foreground(colorGreen),
	pipeline.StatusPlanned:     lipgloss.NewStyle().Foreground(colorCyan),
	pipeline.StatusSpecial:     lipgloss.NewStyle().Foreground(colorYellow),
	pipeline.StatusSkipped:     lipgloss.NewStyle().Foreground(colorRed),
}

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// stdout is where command output goes; tests swap it.
var stdout io.Writer = os.Stdout

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a document location line.
func printFile(location string) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(location))
}

func printNextStep(description, cmd string) {
	fmt.Fprintln(stdout, StyleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}

func printNewline() {
	fmt.Fprintln(stdout)
}

// =============================================================================
// Run Summaries
// =============================================================================

// printStats prints the run counters on a single line, omitting zeros
// except for the total.
func printStats(st pipeline.Stats) {
	parts := []string{fmt.Sprintf("%d parcels", st.Total)}
	for _, p := range []struct {
		n    int
		unit string
	}{
		{st.Standard, "standard"},
		{st.Special, "special"},
		{st.Rows, "rows"},
		{st.Regenerated, "regenerated"},
		{st.Skipped, "skipped"},
	} {
		if p.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", p.n, p.unit))
		}
	}

	line := "  "
	for i, part := range parts {
		if i > 0 {
			line += StyleDim.Render(" · ")
		}
		line += StyleDim.Render(part)
	}
	fmt.Fprintln(stdout, line)
}

// printSkipped warns about every degenerate parcel of a run.
func printSkipped(outcomes []pipeline.Outcome) {
	for _, o := range outcomes {
		if o.Status == pipeline.StatusSkipped {
			printWarning("parcel %s skipped: %s", o.ID, o.Reason)
		}
	}
}

// =============================================================================
// Tables
// =============================================================================

// headerRow is the row index lipgloss/table passes for the header.
const headerRow = -1

// rowsTable renders a rows report. cursor highlights one row; pass -1 for
// none.
func rowsTable(rep rows.Report, cursor int) *table.Table {
	data := make([][]string, len(rep.Rows))
	for i, r := range rep.Rows {
		data[i] = []string{
			strconv.Itoa(r.Index),
			strconv.FormatFloat(r.Key, 'f', 6, 64),
			strconv.Itoa(r.Count),
			r.Geohash,
			abbreviate(r.IDs, 6),
		}
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Row", "Latitude", "Lots", "Geohash", "Parcels").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == headerRow {
				return styleHeader
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == cursor {
				return base.Foreground(colorGreen).Bold(true)
			}
			if col == 3 {
				return base.Foreground(colorGray)
			}
			return base
		})
}

// outcomesTable renders the per-parcel classification.
func outcomesTable(outcomes []pipeline.Outcome) *table.Table {
	data := make([][]string, len(outcomes))
	for i, o := range outcomes {
		row := "—"
		if o.Row >= 0 {
			row = strconv.Itoa(o.Row)
		}
		data[i] = []string{strconv.Itoa(o.Index), o.ID, o.Name, string(o.Status), row, o.Reason}
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("#", "ID", "Name", "Status", "Row", "Reason").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == headerRow {
				return styleHeader
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if col == 3 && row < len(outcomes) {
				if s, ok := statusStyles[outcomes[row].Status]; ok {
					return s.Padding(0, 1)
				}
			}
			if col == 5 {
				return base.Foreground(colorGray)
			}
			return base
		})
}

// abbreviate joins up to limit ids and notes how many were left out.
func abbreviate(ids []string, limit int) string {
	if len(ids) <= limit {
		return strings.Join(ids, ", ")
	}
	return fmt.Sprintf("%s … +%d", strings.Join(ids[:limit], ", "), len(ids)-limit)
}
