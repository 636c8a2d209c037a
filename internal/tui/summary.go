package tui

import (
	"fmt"
	"strings"

	"rollcall/internal/api"
)

// SummaryPanel renders the Present/Absent breakdown as two fixed-color bars.
// A refresh builds a new panel and the model swaps it wholesale, so there is
// never more than one live instance holding old counts.
type SummaryPanel struct {
	Present int
	Absent  int
	Total   int
	width   int
}

// NewSummaryPanel builds a panel from a fetched summary.
func NewSummaryPanel(s api.Summary, width int) *SummaryPanel {
	if width < 20 {
		width = 20
	}
	return &SummaryPanel{Present: s.Present, Absent: s.Absent, Total: s.TotalStudents, width: width}
}

// Render draws the two series.
func (p *SummaryPanel) Render() string {
	if p == nil {
		return dimStyle.Render("  no summary yet")
	}
	var b strings.Builder
	b.WriteString(dimStyle.Render(fmt.Sprintf("  Total students: %d", p.Total)) + "\n")
	b.WriteString("  " + presentBar.Render(bar("Present", p.Present, p.Total, p.width)) + "\n")
	b.WriteString("  " + absentBar.Render(bar("Absent ", p.Absent, p.Total, p.width)))
	return b.String()
}

func bar(label string, n, total, width int) string {
	cells := width - 16
	if cells < 4 {
		cells = 4
	}
	filled := 0
	if total > 0 {
		filled = n * cells / total
		if filled > cells {
			filled = cells
		}
	}
	return fmt.Sprintf("%s %s%s %d", label,
		strings.Repeat("█", filled), strings.Repeat("░", cells-filled), n)
}
