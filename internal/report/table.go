// Package report renders completed scans for terminals and machines.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/certcheck/certcheck/internal/inventory"
	"github.com/certcheck/certcheck/internal/scan"
)

var (
	dangerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // dim gray
)

// WriteTable renders all findings as an aligned table, most urgent
// first. Only the severity cell is styled, after padding, so the
// column math stays plain-text.
func WriteTable(w io.Writer, result scan.Result) error {
	if len(result.Findings) == 0 {
		_, err := fmt.Fprintln(w, "No certificates found.")
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-26s %-40s %s\n", "SEVERITY", "SOURCE", "LOCATION", "EXPIRES")
	fmt.Fprintf(&b, "%-8s %-26s %-40s %s\n", "--------", "------", "--------", "-------")
	for _, f := range sortFindings(result.Findings) {
		cell := severityStyle(f.Severity).Render(fmt.Sprintf("%-8s", strings.ToUpper(string(f.Severity))))
		fmt.Fprintf(&b, "%s %-26s %-40s %s\n",
			cell, f.Source, f.Location, f.NotAfter.UTC().Format("2006-01-02 15:04 UTC"))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func severityStyle(sev inventory.Severity) lipgloss.Style {
	switch sev {
	case inventory.SeverityDanger:
		return dangerStyle
	case inventory.SeverityWarning:
		return warningStyle
	default:
		return okStyle
	}
}

// sortFindings orders by severity, then by expiration, without
// touching the caller's slice.
func sortFindings(findings []inventory.Finding) []inventory.Finding {
	sorted := make([]inventory.Finding, len(findings))
	copy(sorted, findings)

	sevOrder := map[inventory.Severity]int{
		inventory.SeverityDanger:  0,
		inventory.SeverityWarning: 1,
		inventory.SeverityOK:      2,
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := sevOrder[sorted[i].Severity], sevOrder[sorted[j].Severity]
		if si != sj {
			return si < sj
		}
		return sorted[i].NotAfter.Before(sorted[j].NotAfter)
	})

	return sorted
}
