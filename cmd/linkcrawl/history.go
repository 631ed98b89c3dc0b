package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/linkcrawl/internal/config"
	"github.com/nao1215/linkcrawl/internal/database"
	"github.com/nao1215/linkcrawl/internal/report"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is how many runs history lists by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// It reads past crawls from the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past crawls",
		Long: `History lists the crawls recorded in the history database, newest first.

Examples:
  # List the latest crawls
  linkcrawl history

  # Show the full report of crawl 5
  linkcrawl history --show 5

  # Show the stored page visits of crawl 5
  linkcrawl history --visits 5

  # List all crawls as JSON
  linkcrawl history --limit 0 --json`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of crawls to list (0 = all)")
	cmd.Flags().Int64P("show", "s", 0,
		"Print the report of the crawl with this ID")
	cmd.Flags().Int64("visits", 0,
		"Print the page visits of the crawl with this ID")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the --show report in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	showID, err := flags.GetInt64("show")
	if err != nil {
		return err
	}
	visitsID, err := flags.GetInt64("visits")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate before opening the database
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	if showID != 0 && visitsID != 0 {
		return errors.New("--show and --visits cannot be used together")
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	switch {
	case showID != 0:
		return showRun(ctx, db, out, showID, jsonOutput, markdownOutput, getVerboseFlag(cmd))
	case visitsID != 0:
		return showVisits(ctx, db, out, visitsID, jsonOutput)
	default:
		return listRuns(ctx, db, out, limit, jsonOutput)
	}
}

// listRuns prints the most recent crawls.
func listRuns(ctx context.Context, db *database.CrawlDB, out io.Writer, limit int, jsonOutput bool) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list crawls: %w", err)
	}

	if jsonOutput {
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(runs)
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No crawls found in the history database.")
		fmt.Fprintln(out, "\nUse 'linkcrawl crawl' to run a crawl.")
		return nil
	}

	fmt.Fprintf(out, "Crawl history (%d crawls):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-8s  %-7s  %-6s  %s\n", "ID", "Date", "Outcome", "Pages", "Depth", "Seeds")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 76))

	for _, run := range runs {
		fmt.Fprintf(out, "  %-6d  %-20s  %-8s  %-7d  %-6s  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Outcome,
			run.VisitCount,
			fmt.Sprintf("%d..%d", run.StartDepth, run.MaxDepth),
			strings.Join(run.Seeds, " "),
		)
	}

	fmt.Fprintln(out, "\nUse 'linkcrawl history --show <id>' to see the report of a crawl.")
	return nil
}

// showRun prints the stored report of one crawl.
func showRun(ctx context.Context, db *database.CrawlDB, out io.Writer, id int64, jsonOutput, markdownOutput, verbose bool) error {
	crawlReport, err := db.GetReport(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get crawl %d: %w", id, err)
	}
	if crawlReport == nil {
		return fmt.Errorf("crawl %d not found (use 'linkcrawl history' to list crawls)", id)
	}

	_, err = newReportWriter(jsonOutput, markdownOutput, verbose, out).Write(crawlReport)
	return err
}

// showVisits prints the stored page visits of one crawl.
func showVisits(ctx context.Context, db *database.CrawlDB, out io.Writer, id int64, jsonOutput bool) error {
	visits, err := db.VisitsForRun(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get visits of crawl %d: %w", id, err)
	}

	if jsonOutput {
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(visits)
		return err
	}

	if len(visits) == 0 {
		fmt.Fprintf(out, "No page visits recorded for crawl %d.\n", id)
		return nil
	}

	fmt.Fprintf(out, "Page visits of crawl %d (%d):\n\n", id, len(visits))
	for _, v := range visits {
		status := fmt.Sprintf("%d links, %d bytes, %s", v.LinkCount, v.BodySize, v.Duration)
		if v.Error != "" {
			status = "error: " + v.Error
		}
		fmt.Fprintf(out, "  [%d] %s\n      %s\n", v.Depth, v.URL, status)
	}
	return nil
}
