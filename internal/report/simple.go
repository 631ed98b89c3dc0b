package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/linkcrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports for the terminal.
// The layout is plain ASCII without colors.
type SimpleWriter struct {
	baseWriter

	// verbose lists the links found on every page.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists the extracted links under each page.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	for _, depth := range report.Depths() {
		w.writeDepth(&sb, depth, report.VisitsAtDepth(depth))
	}
	w.writeFailures(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the run information and totals.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	summary := NewSummary(report)

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          LINKCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seeds:          %s\n", strings.Join(report.Seeds, ", "))
	fmt.Fprintf(sb, "Depth:          %d..%d\n", report.StartDepth, report.MaxDepth)
	fmt.Fprintf(sb, "Started:        %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:       %s\n", summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(sb, "Pages Fetched:  %d (%d failed)\n", summary.Pages, summary.FailedPages)
	fmt.Fprintf(sb, "Links Found:    %d\n", summary.Links)

	if report.Succeeded() {
		fmt.Fprintf(sb, "Status:         %s\n", statusLabel(summary.Outcome))
	} else {
		fmt.Fprintf(sb, "Status:         %s - %s\n", statusLabel(summary.Outcome), report.ErrorMessage)
	}
	sb.WriteString("\n")
}

// writeDepth writes the visits of one depth level.
func (w *SimpleWriter) writeDepth(sb *strings.Builder, depth int, visits []model.PageVisit) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "DEPTH %d (%d pages)\n", depth, len(visits))
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, v := range visits {
		indicator := "+"
		if v.Failed() {
			indicator = "!"
		}
		fmt.Fprintf(sb, "  [%s] %s\n", indicator, v.URL)
		if v.Failed() {
			fmt.Fprintf(sb, "      Error: %s\n", v.Error)
			continue
		}
		fmt.Fprintf(sb, "      %d links, %d bytes\n", len(v.Links), v.BodySize)
		if w.verbose {
			for _, link := range v.Links {
				fmt.Fprintf(sb, "        -> %s\n", link)
			}
		}
	}
	sb.WriteString("\n")
}

// writeFailures lists failed visits so they are visible without scrolling.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.CrawlReport) {
	failed := report.FailedVisits()
	if len(failed) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILURES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, v := range failed {
		fmt.Fprintf(sb, "  * depth %d: %s\n", v.Depth, v.Error)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by linkcrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
