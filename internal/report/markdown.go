package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/linkcrawl/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in GitHub Flavored Markdown, built with
// github.com/nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := NewSummary(report)

	w.writeHeader(md, report, summary)
	w.writeAlert(md, report, summary)
	if summary.Pages > 0 {
		w.writePieChart(md, report)
	}
	for _, depth := range summary.Depths {
		w.writeDepth(md, depth, report.VisitsAtDepth(depth))
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report title and the run table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport, summary Summary) {
	md.H1("Crawl Report")
	md.PlainText("")

	seeds := make([]string, len(report.Seeds))
	for i, s := range report.Seeds {
		seeds[i] = "`" + s + "`"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seeds", strings.Join(seeds, "<br>")},
			{"Depth", fmt.Sprintf("%d..%d", report.StartDepth, report.MaxDepth)},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", summary.Duration.Round(time.Millisecond).String()},
			{"Pages Fetched", strconv.Itoa(summary.Pages)},
			{"Failed Pages", strconv.Itoa(summary.FailedPages)},
			{"Links Found", strconv.Itoa(summary.Links)},
			{"Status", w.getStatusText(summary)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status cell for the outcome.
func (w *MarkdownWriter) getStatusText(summary Summary) string {
	if summary.Outcome == model.OutcomeFailure {
		return "❌ " + statusLabel(summary.Outcome)
	}
	return "✅ " + statusLabel(summary.Outcome)
}

// writeAlert writes a caution on failure and a tip otherwise.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport, summary Summary) {
	switch {
	case !report.Succeeded():
		md.Cautionf("The crawl failed: %s", report.ErrorMessage)
	case summary.Pages == 0:
		md.Note("Nothing was fetched: the start depth is beyond the max depth.")
	default:
		md.Tip(fmt.Sprintf("All %d fetches succeeded.", summary.Pages))
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of fetches per depth.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.CrawlReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Fetches per Depth"),
		piechart.WithShowData(true),
	)
	for _, depth := range report.Depths() {
		chart.LabelAndIntValue("Depth "+strconv.Itoa(depth), uint64(len(report.VisitsAtDepth(depth))))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeDepth writes the visit table of one depth.
func (w *MarkdownWriter) writeDepth(md *markdown.Markdown, depth int, visits []model.PageVisit) {
	md.H2("Depth " + strconv.Itoa(depth))
	md.PlainText("")

	rows := make([][]string, len(visits))
	for i, v := range visits {
		detail := strconv.Itoa(v.BodySize) + " bytes"
		if v.Failed() {
			detail = truncateString(v.Error, 60)
		}
		rows[i] = []string{
			"`" + truncateString(v.URL, 80) + "`",
			strconv.Itoa(len(v.Links)),
			detail,
			v.Duration.Round(time.Millisecond).String(),
			statusLabel(visitStatus(v)),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Links", "Body", "Duration", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by linkcrawl*")
}
