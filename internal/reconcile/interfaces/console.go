package interfaces

import (
	"fmt"
	"strings"

	"mars-dashboards/internal/reconcile/application"
)

// FormatConsoleTable renders the per-project comparison as a fixed-width
// table for terminal review.
func FormatConsoleTable(result *application.RunResult) string {
	var b strings.Builder

	header := fmt.Sprintf("%-24s %14s %14s %14s %12s %8s %-8s",
		"Project", "Excel Rev", "Excel Cost", "Dash Cost", "Cost Delta", "Delta %", "Status")
	b.WriteString(header)
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("-", len(header)))
	b.WriteByte('\n')

	for _, row := range result.Rows {
		fmt.Fprintf(&b, "%-24s %14s %14s %14s %12s %8s %-8s\n",
			truncate(string(row.Project), 24),
			row.ReferenceRevenue.StringFixed(2),
			row.ReferenceCost.StringFixed(2),
			row.ComputedCost.StringFixed(2),
			row.Delta.StringFixed(2),
			row.DeltaPct.StringFixed(1),
			row.Status)
	}

	fmt.Fprintf(&b, "\n%d projects: %d match, %d close, %d check, %d no data\n",
		result.Summary.Entities, result.Summary.Match, result.Summary.Close,
		result.Summary.Check, result.Summary.NoData)
	fmt.Fprintf(&b, "year total: computed %s vs reference %s (%s)\n",
		result.YearSummary.ComputedCost.StringFixed(2),
		result.YearSummary.ReferenceCost.StringFixed(2),
		result.YearSummary.Status)

	if len(result.AtRiskProjects) > 0 {
		b.WriteString("\nat risk:\n")
		for _, finding := range result.AtRiskProjects {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", finding.Severity, finding.EntityKey, finding.Reason)
		}
	}
	return b.String()
}

// truncate shortens s to at most n display runes, never splitting a
// multibyte character.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "~"
}
