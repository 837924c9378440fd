// Package observability provides formatted output for the CLI and Prometheus
// metrics for the extraction engine and server.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/skill-extractor/internal/ingestion"
	"github.com/jonathan/skill-extractor/internal/rendering"
	"github.com/jonathan/skill-extractor/internal/taxonomy"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode and the text format
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

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintSource outputs where a job description came from.
func (p *Printer) PrintSource(metadata *ingestion.Metadata) {
	if metadata == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Source:   %s\n", metadata.Source))
	if metadata.URL != "" {
		sb.WriteString(fmt.Sprintf("URL:      %s\n", metadata.URL))
	}
	if metadata.Path != "" {
		sb.WriteString(fmt.Sprintf("Path:     %s\n", metadata.Path))
	}
	if metadata.Platform != "" {
		sb.WriteString(fmt.Sprintf("Platform: %s\n", metadata.Platform))
	}
	sb.WriteString(fmt.Sprintf("Length:   %d chars\n", metadata.Length))
	if metadata.Rendered {
		sb.WriteString("Rendered with headless browser\n")
	}
	sb.WriteString(fmt.Sprintf("Hash:     %s", metadata.Hash))

	p.printBox("JOB DESCRIPTION", sb.String())
}

// PrintAnnotations outputs every annotation followed by per-category totals.
func (p *Printer) PrintAnnotations(annotations []rendering.Annotation, degraded bool) {
	var sb strings.Builder

	if len(annotations) == 0 {
		sb.WriteString("No skills found.")
	} else {
		sb.WriteString(fmt.Sprintf("Found %d annotations:\n\n", len(annotations)))
		for _, a := range annotations {
			sb.WriteString(fmt.Sprintf("• %s  [%s]\n", a.Name, a.Kind))
			sb.WriteString(fmt.Sprintf("  %q  tokens %d-%d  score %s\n", a.Text, a.TokenStart, a.TokenEnd, rendering.FormatScore(a.Score)))
		}
		sb.WriteString("\n")
		for _, g := range rendering.Legend(annotations) {
			sb.WriteString(fmt.Sprintf("%s: %d\n", g.Label, len(g.Skills)))
		}
	}

	if degraded {
		sb.WriteString("\n⚠ approximate matching timed out; exact matches only")
	}

	p.printBox("EXTRACTED SKILLS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintTaxonomy outputs a summary of a loaded taxonomy.
func (p *Printer) PrintTaxonomy(tax *taxonomy.Taxonomy) {
	if tax == nil {
		return
	}

	counts := make(map[taxonomy.Category]int)
	for _, e := range tax.Entries() {
		counts[e.Category]++
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Skills:         %d\n", tax.Len()))
	sb.WriteString(fmt.Sprintf("Surface forms:  %d\n", tax.FormCount()))
	sb.WriteString(fmt.Sprintf("Longest form:   %d tokens\n\n", tax.MaxFormLength()))
	for _, c := range taxonomy.Categories() {
		sb.WriteString(fmt.Sprintf("%-15s %d\n", rendering.CategoryLabel(c)+":", counts[c]))
	}

	entries := tax.Entries()
	count := min(len(entries), maxItemsToShow)
	sb.WriteString("\nFirst entries:\n")
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s (%s)\n", entries[i].CanonicalName, entries[i].ID))
	}
	if len(entries) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more", len(entries)-maxItemsToShow))
	}

	p.printBox("SKILL TAXONOMY", strings.TrimSuffix(sb.String(), "\n"))
}
