package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nao1215/linkcrawl/internal/config"
	"github.com/nao1215/linkcrawl/internal/crawler"
	"github.com/nao1215/linkcrawl/internal/database"
	"github.com/nao1215/linkcrawl/internal/fetch"
	"github.com/nao1215/linkcrawl/internal/log"
	"github.com/nao1215/linkcrawl/internal/model"
	"github.com/nao1215/linkcrawl/internal/report"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl the web starting from seed URLs",
		Long: `Crawl fetches every seed URL, extracts the links of each page and follows
them one level deeper, until the maximum depth is reached.

All pages of a level are fetched concurrently. A failure of one page does
not stop the others; the crawl still runs to completion and then reports
the failure and exits with status 1.

Seeds come from the arguments, then from the configuration file, then from
the built-in defaults.

Examples:
  # Crawl the default seeds
  linkcrawl crawl

  # Crawl a site three levels deep
  linkcrawl crawl -d 3 https://example.com/

  # Bound the number of simultaneous fetches
  linkcrawl crawl --max-fetches 8 https://example.com/

  # Write a Markdown report to a file
  linkcrawl crawl -m -o report.md https://example.com/

  # Go through a local Tor SOCKS proxy
  linkcrawl crawl --proxy 127.0.0.1:9050 http://example.onion/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl window flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum crawl depth; pages at this depth are fetched but not followed")
	cmd.Flags().Int("start-depth", config.DefaultStartDepth,
		"Depth assigned to the seed URLs")
	cmd.Flags().Int("max-fetches", config.DefaultMaxConcurrentFetches,
		"Maximum number of simultaneous fetches (0 = unbounded)")

	// HTTP flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("user-agent", "",
		"User-Agent header (default: linkcrawl/<version>)")
	cmd.Flags().String("cookie", "",
		"Cookie header sent with every request")
	cmd.Flags().StringToStringP("header", "H", nil,
		"Extra request header as name=value (repeatable)")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .linkcrawl in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("log-json", false,
		"Write progress logs to stderr as JSON lines")

	// History flags
	cmd.Flags().Bool("no-history", false,
		"Do not record this crawl in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if _, err := crawler.ParseSeeds(cfg.Seeds); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.JSONLogs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancellation reaches in-flight requests; the crawl then fails with
	// context.Canceled once every branch has returned.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, the configuration file and the
// command flags. Only flags set on the command line override the file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.UserAgent = config.UserAgentFor(getVersion())
	cfg.Verbose = getVerboseFlag(cmd)

	flags := cmd.Flags()
	var err error

	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicitly named config file must exist; the default one is optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if flags.Changed("depth") {
		if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("start-depth") {
		if cfg.StartDepth, err = flags.GetInt("start-depth"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-fetches") {
		if cfg.MaxConcurrentFetches, err = flags.GetInt("max-fetches"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("cookie") {
		if cfg.Cookie, err = flags.GetString("cookie"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("header") {
		headers, err := flags.GetStringToString("header")
		if err != nil {
			return nil, err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			cfg.Headers[k] = v
		}
	}
	if flags.Changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.JSONLogs, err = flags.GetBool("log-json"); err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Seeds = args
	}

	return cfg, nil
}

// setupLogger creates the redacting structured logger.
func setupLogger(w io.Writer, verbose, jsonLogs bool) *slog.Logger {
	if jsonLogs {
		return log.NewJSONLogger(w, verbose)
	}
	return log.NewLogger(w, verbose)
}

// newFetchClient builds the HTTP client described by cfg.
func newFetchClient(cfg *config.Config) (*fetch.Client, error) {
	opts := []fetch.Option{
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithCookie(cfg.Cookie),
		fetch.WithHeaders(cfg.Headers),
	}
	if cfg.ProxyAddress != "" {
		opts = append(opts, fetch.WithProxy(cfg.ProxyAddress))
	}
	return fetch.NewClient(opts...)
}

// runCrawl runs one crawl, writes its report and records it in the history.
// It returns the crawl failure, if any, after the report has been written.
func runCrawl(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) error {
	client, err := newFetchClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	collector := crawler.NewCollector()
	scheduler := crawler.NewScheduler(client,
		crawler.WithLogger(logger),
		crawler.WithObserver(collector),
		crawler.WithMaxConcurrentFetches(cfg.MaxConcurrentFetches),
	)

	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"startDepth", cfg.StartDepth,
		"maxDepth", cfg.MaxDepth,
		"maxConcurrentFetches", cfg.MaxConcurrentFetches,
		"saveToDB", cfg.SaveToDB,
	)

	crawlReport := model.NewCrawlReport(cfg.Seeds, cfg.StartDepth, cfg.MaxDepth)
	crawlErr := scheduler.CrawlSeeds(ctx, cfg.Seeds, cfg.StartDepth, cfg.MaxDepth)
	crawlReport.Finish(collector.Visits(), crawlErr)

	if crawlErr != nil {
		logger.Error("crawl failed", "error", crawlErr, "pages", len(crawlReport.Visits))
	} else {
		logger.Info("crawl finished", "pages", len(crawlReport.Visits), "duration", crawlReport.Duration())
	}

	if err := outputReport(cfg, crawlReport, stdout); err != nil {
		return errors.Join(err, crawlErr)
	}

	if cfg.SaveToDB {
		if err := saveCrawlReport(ctx, cfg.DBDir, crawlReport, logger); err != nil {
			// The run itself is reported already; a history failure is not fatal.
			logger.Warn("failed to save crawl history", "error", err)
		}
	}

	if crawlErr != nil {
		return fmt.Errorf("crawl failed: %w", crawlErr)
	}
	return nil
}

// newReportWriter picks the report format from the flags.
// verbose lists the links of every page in the text report.
func newReportWriter(jsonReport, markdownReport, verbose bool, output io.Writer) report.Writer {
	switch {
	case jsonReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case markdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(verbose))
	}
}

// outputReport writes the report to the configured file or to stdout.
func outputReport(cfg *config.Config, crawlReport *model.CrawlReport, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports may hold URLs with credentials, so only the owner may read them.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	if _, err := newReportWriter(cfg.JSONReport, cfg.MarkdownReport, cfg.Verbose, output).Write(crawlReport); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// saveCrawlReport records the report in the history database in dbDir.
func saveCrawlReport(ctx context.Context, dbDir string, crawlReport *model.CrawlReport, logger *slog.Logger) error {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	// Saving must not be skipped because the crawl was interrupted.
	id, err := db.SaveReport(context.WithoutCancel(ctx), crawlReport)
	if err != nil {
		return fmt.Errorf("failed to save crawl report: %w", err)
	}

	logger.Info("crawl saved to history", "id", id, "db", db.Path())
	return nil
}
