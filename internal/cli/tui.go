package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/parcelgrid/pkg/rows"
)

var (
	listLabelStyle = lipgloss.NewStyle().Foreground(colorGray).Width(10)
	listDimStyle   = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// RowsModel - Interactive row browser
// =============================================================================

// RowsModel is the bubbletea model for browsing a rows report. The table
// scrolls; the panel below it lists every parcel of the row under the cursor.
type RowsModel struct {
	Report rows.Report
	Cursor int
	Height int
	Offset int
}

func newRowsModel(rep rows.Report) RowsModel {
	return RowsModel{Report: rep, Height: 15}
}

func (m RowsModel) Init() tea.Cmd {
	return nil
}

func (m RowsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	n := len(m.Report.Rows)
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < n-1 {
				m.Cursor++
			}
		case "home", "g":
			m.Cursor = 0
		case "end", "G":
			if n > 0 {
				m.Cursor = n - 1
			}
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-14, 5)
	}
	m.scroll()
	return m, nil
}

// scroll keeps the cursor inside the visible window.
func (m *RowsModel) scroll() {
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
}

// visible returns the window of the report shown in the table.
func (m RowsModel) visible() rows.Report {
	end := min(m.Offset+m.Height, len(m.Report.Rows))
	win := m.Report
	win.Rows = m.Report.Rows[m.Offset:end]
	return win
}

func (m RowsModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Parcel Rows"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  g/G first/last  q quit"))
	b.WriteString("\n\n")

	if len(m.Report.Rows) == 0 {
		b.WriteString(StyleWarning.Render("No standard parcels to place."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(rowsTable(m.visible(), m.Cursor-m.Offset).Render())
	b.WriteString("\n\n")

	r := m.Report.Rows[m.Cursor]
	b.WriteString(listLabelStyle.Render("Row") + " " + StyleNumber.Render(fmt.Sprint(r.Index)) + "\n")
	b.WriteString(listLabelStyle.Render("Anchor") + " " + StyleValue.Render(fmt.Sprintf("%.6f, %.6f", r.Anchor[1], r.Anchor[0])) + "\n")
	b.WriteString(listLabelStyle.Render("Geohash") + " " + StyleValue.Render(r.Geohash) + "\n")
	b.WriteString(listLabelStyle.Render("Parcels") + " " + StyleValue.Render(strings.Join(r.IDs, ", ")) + "\n")

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Report.Rows))))
	if len(m.Report.Skipped) > 0 {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  %d degenerate parcels not placed", len(m.Report.Skipped))))
	}
	return b.String()
}
