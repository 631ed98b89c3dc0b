package report

import (
	"io"
	"time"

	"github.com/nao1215/linkcrawl/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Writer defines the interface for report output.
// Implementations write crawl results in various formats.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CrawlReport) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Summary holds the headline numbers of a crawl.
type Summary struct {
	Outcome     string        `json:"outcome"`
	Pages       int           `json:"pages"`
	FailedPages int           `json:"failed_pages"`
	Links       int           `json:"links"`
	Depths      []int         `json:"depths"`
	Duration    time.Duration `json:"duration"`
}

// NewSummary computes the summary of report.
func NewSummary(report *model.CrawlReport) Summary {
	return Summary{
		Outcome:     report.Outcome(),
		Pages:       len(report.Visits),
		FailedPages: len(report.FailedVisits()),
		Links:       report.TotalLinks(),
		Depths:      report.Depths(),
		Duration:    report.Duration(),
	}
}

// statusLabel turns an outcome such as "failure" into "Failure".
// A Caser keeps state, so one is built per call.
func statusLabel(outcome string) string {
	return cases.Title(language.English).String(outcome)
}

// visitStatus is the short status of a single visit.
func visitStatus(v model.PageVisit) string {
	if v.Failed() {
		return "failed"
	}
	return "ok"
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
