// Package observability provides formatted output utilities for the CLI's pretty mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/talent-pipeline/internal/catalog"
	"github.com/jonathan/talent-pipeline/internal/matching"
	"github.com/jonathan/talent-pipeline/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for pretty mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func joinSkills(skills []string) string {
	return truncate(strings.Join(skills, ", "), 40)
}

// PrintMatchSummary outputs the outcome of a matching run and the best
// ranked talents.
func (p *Printer) PrintMatchSummary(summary *matching.Summary, matches []types.Match) {
	if summary == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Offre:     %s\n", summary.OffreUID))
	sb.WriteString(fmt.Sprintf("Scored:    %d talents\n", summary.Scored))
	sb.WriteString(fmt.Sprintf("Kept:      %d\n", summary.Kept))
	sb.WriteString(fmt.Sprintf("Top score: %d\n", summary.TopScore))
	sb.WriteString(fmt.Sprintf("Duration:  %s", summary.Duration.Round(time.Millisecond)))

	if len(matches) > 0 {
		sb.WriteString("\n\n")
		count := min(len(matches), maxItemsToShow)
		for i := 0; i < count; i++ {
			m := matches[i]
			sb.WriteString(fmt.Sprintf("#%d  %s  %d/100\n", i+1, m.TalentUID, m.Score))
			if len(m.MatchedRequired) > 0 {
				sb.WriteString(fmt.Sprintf("    Required: %s\n", joinSkills(m.MatchedRequired)))
			}
			if len(m.MatchedDesired) > 0 {
				sb.WriteString(fmt.Sprintf("    Desired:  %s\n", joinSkills(m.MatchedDesired)))
			}
			if len(m.MissingRequired) > 0 {
				sb.WriteString(fmt.Sprintf("    Missing:  %s\n", joinSkills(m.MissingRequired)))
			}
		}
		if len(matches) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d more matches\n", len(matches)-maxItemsToShow))
		}
	}

	p.printBox("MATCHING RUN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintImportReport outputs the number of records written by a catalog import.
func (p *Printer) PrintImportReport(report *catalog.Report) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Users:   %d\n", report.Users))
	sb.WriteString(fmt.Sprintf("Clients: %d\n", report.Clients))
	sb.WriteString(fmt.Sprintf("Talents: %d\n", report.Talents))
	sb.WriteString(fmt.Sprintf("Offres:  %d", report.Offres))

	p.printBox("CATALOG IMPORT", sb.String())
}

// PrintSweep outputs the result of an overdue-invoice sweep.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintSweep(flagged int) {
	if flagged == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ NO OVERDUE INVOICES")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}
	p.printBox("OVERDUE SWEEP", fmt.Sprintf("⚠ %d invoice(s) flagged EN_RETARD", flagged))
}
