package interfaces

import (
	"strings"
	"testing"
	"unicode/utf8"

	"mars-dashboards/internal/reconcile/application"
	reconcile "mars-dashboards/internal/reconcile/domain"
)

func TestFormatConsoleTable(t *testing.T) {
	result := &application.RunResult{
		Summary: reconcile.Summary{Entities: 2, Match: 1, Check: 1},
		Rows: []application.ProjectRow{
			{
				Project:          "PRJ-1001",
				ReferenceRevenue: reconcile.MoneyFromFloat(52000),
				ReferenceCost:    reconcile.MoneyFromFloat(34852),
				ComputedCost:     reconcile.MoneyFromFloat(34852),
				Delta:            reconcile.MoneyFromFloat(0),
				DeltaPct:         reconcile.MoneyFromFloat(0),
				Status:           reconcile.StatusMatch,
			},
			{
				Project:          "PRJ-2002",
				ReferenceRevenue: reconcile.MoneyFromFloat(41000),
				ReferenceCost:    reconcile.MoneyFromFloat(34852),
				ComputedCost:     reconcile.MoneyFromFloat(26008),
				Delta:            reconcile.MoneyFromFloat(-8844),
				DeltaPct:         reconcile.MoneyFromFloat(-25.4),
				Status:           reconcile.StatusCheck,
			},
		},
		YearSummary: application.YearSummary{
			ComputedCost:  reconcile.MoneyFromFloat(60860),
			ReferenceCost: reconcile.MoneyFromFloat(69704),
			Status:        reconcile.StatusCheck,
		},
		AtRiskProjects: []reconcile.Finding{
			{EntityKey: "PRJ-2002", Severity: reconcile.SeverityHigh, Reason: "cost delta exceeds tolerance"},
		},
	}

	out := FormatConsoleTable(result)
	lines := strings.Split(out, "\n")

	header := lines[0]
	for _, col := range []string{"Project", "Excel Rev", "Excel Cost", "Dash Cost", "Cost Delta", "Delta %", "Status"} {
		if !strings.Contains(header, col) {
			t.Fatalf("header %q missing column %q", header, col)
		}
	}
	if lines[1] != strings.Repeat("-", len(header)) {
		t.Fatalf("separator = %q", lines[1])
	}

	for _, want := range []string{"PRJ-1001", "34852.00", "MATCH"} {
		if !strings.Contains(lines[2], want) {
			t.Fatalf("row 1 = %q, missing %q", lines[2], want)
		}
	}
	for _, want := range []string{"PRJ-2002", "-8844.00", "-25.4", "CHECK"} {
		if !strings.Contains(lines[3], want) {
			t.Fatalf("row 2 = %q, missing %q", lines[3], want)
		}
	}

	if !strings.Contains(out, "2 projects: 1 match, 0 close, 1 check, 0 no data") {
		t.Fatalf("summary line missing from:\n%s", out)
	}
	if !strings.Contains(out, "year total: computed 60860.00 vs reference 69704.00 (CHECK)") {
		t.Fatalf("year total line missing from:\n%s", out)
	}
	if !strings.Contains(out, "  [HIGH] PRJ-2002: cost delta exceeds tolerance") {
		t.Fatalf("at-risk section missing from:\n%s", out)
	}
}

func TestFormatConsoleTableEmpty(t *testing.T) {
	out := FormatConsoleTable(&application.RunResult{})
	if !strings.Contains(out, "0 projects: 0 match, 0 close, 0 check, 0 no data") {
		t.Fatalf("summary line missing from:\n%s", out)
	}
	if strings.Contains(out, "at risk:") {
		t.Fatalf("empty result should not list at-risk projects:\n%s", out)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	cases := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short ascii untouched", "PRJ-1", 24, "PRJ-1"},
		{"exact length untouched", "abcd", 4, "abcd"},
		{"long ascii trimmed", "abcdefgh", 5, "abcd~"},
		{"multibyte untouched", "Überholung Süd", 24, "Überholung Süd"},
		{"multibyte trimmed on rune boundary", "Überholungsprojekt Süd-West", 24, "Überholungsprojekt Süd-~"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := truncate(tc.in, tc.n)
			if got != tc.want {
				t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("truncate(%q, %d) produced invalid UTF-8: %q", tc.in, tc.n, got)
			}
		})
	}
}
