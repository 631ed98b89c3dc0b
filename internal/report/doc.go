// Package report renders crawl reports.
//
// Writers for each output format:
//   - SimpleWriter: human-readable text for the terminal
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: GitHub Flavored Markdown with tables and alerts
//
// Writers implement the Writer interface, so the crawl command picks one
// from the flags and uses it the same way.
package report
