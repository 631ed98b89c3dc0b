package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/linkcrawl/internal/config"
	"github.com/nao1215/linkcrawl/internal/crawler"
	"github.com/nao1215/linkcrawl/internal/fetch"
	"github.com/nao1215/linkcrawl/internal/model"
	"github.com/nao1215/linkcrawl/internal/report"
)

// testSite serves a small site and counts the requests per path.
//
//	/       -> /a, /b
//	/a      -> /
//	/b      -> (no links)
//	/broken -> 500
type testSite struct {
	*httptest.Server

	mu      sync.Mutex
	hits    map[string]int
	headers http.Header
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()

	site := &testSite{hits: make(map[string]int)}
	site.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		site.hits[r.URL.Path]++
		site.headers = r.Header.Clone()
		site.mu.Unlock()

		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`<html><body><a href="/a">A</a> <a href="/b">B</a></body></html>`))
		case "/a":
			_, _ = w.Write([]byte(`<html><body><a href="/">home</a></body></html>`))
		case "/b":
			_, _ = w.Write([]byte(`<html><body>leaf</body></html>`))
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(site.Close)
	return site
}

func (s *testSite) hitsFor(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *testSite) totalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

func (s *testSite) lastHeaders() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers
}

// writeConfigFile writes a configuration file into a temp dir. Tests pass it
// with -c so a .linkcrawl in the working or home directory is never used.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "linkcrawl.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// executeCommand runs the root command with args and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	stdout, _, err := executeCommandStreams(t, args...)
	return stdout, err
}

// executeCommandStreams runs the root command with args and returns its
// stdout and stderr.
func executeCommandStreams(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decodeJSONReport(t *testing.T, data string) report.JSONReport {
	t.Helper()

	var got report.JSONReport
	if err := json.Unmarshal([]byte(data), &got); err != nil {
		t.Fatalf("failed to decode JSON report: %v\n%s", err, data)
	}
	return got
}

func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "depth", shorthand: "d", defValue: "2"},
		{name: "start-depth", defValue: "1"},
		{name: "max-fetches", defValue: "0"},
		{name: "timeout", shorthand: "t", defValue: "30s"},
		{name: "user-agent", defValue: ""},
		{name: "cookie", defValue: ""},
		{name: "header", shorthand: "H", defValue: "[]"},
		{name: "proxy", defValue: ""},
		{name: "config", shorthand: "c", defValue: ""},
		{name: "json", shorthand: "j", defValue: "false"},
		{name: "markdown", shorthand: "m", defValue: "false"},
		{name: "output", shorthand: "o", defValue: ""},
		{name: "log-json", defValue: "false"},
		{name: "no-history", defValue: "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	parse := func(t *testing.T, args ...string) (*config.Config, error) {
		t.Helper()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		return buildConfig(cmd, cmd.Flags().Args())
	}

	t.Run("file values are applied", func(t *testing.T) {
		t.Parallel()

		path := writeConfigFile(t, `
seeds:
  - https://example.com/
depth: 4
startDepth: 2
timeout: 5s
userAgent: file-agent
cookie: "session=file"
headers:
  X-From: file
proxy: 127.0.0.1:9050
maxConcurrentFetches: 3
`)
		cfg, err := parse(t, "-c", path, "--no-history")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cfg.Seeds) != 1 || cfg.Seeds[0] != "https://example.com/" {
			t.Errorf("unexpected seeds %v", cfg.Seeds)
		}
		if cfg.MaxDepth != 4 || cfg.StartDepth != 2 {
			t.Errorf("expected depth window 2..4, got %d..%d", cfg.StartDepth, cfg.MaxDepth)
		}
		if cfg.Timeout.String() != "5s" {
			t.Errorf("expected timeout 5s, got %s", cfg.Timeout)
		}
		if cfg.UserAgent != "file-agent" || cfg.Cookie != "session=file" {
			t.Errorf("unexpected user agent %q or cookie %q", cfg.UserAgent, cfg.Cookie)
		}
		if cfg.Headers["X-From"] != "file" {
			t.Errorf("unexpected headers %v", cfg.Headers)
		}
		if cfg.ProxyAddress != "127.0.0.1:9050" || cfg.MaxConcurrentFetches != 3 {
			t.Errorf("unexpected proxy %q or max fetches %d", cfg.ProxyAddress, cfg.MaxConcurrentFetches)
		}
		if cfg.SaveToDB {
			t.Error("expected --no-history to disable saving")
		}
	})

	t.Run("flags override the file", func(t *testing.T) {
		t.Parallel()

		path := writeConfigFile(t, "depth: 4\nuserAgent: file-agent\nheaders:\n  X-From: file\n")
		cfg, err := parse(t, "-c", path, "-d", "1", "--user-agent", "flag-agent",
			"-H", "X-From=flag", "-H", "X-Extra=yes", "https://flag.example/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxDepth != 1 {
			t.Errorf("expected flag depth 1, got %d", cfg.MaxDepth)
		}
		if cfg.UserAgent != "flag-agent" {
			t.Errorf("expected flag user agent, got %q", cfg.UserAgent)
		}
		if cfg.Headers["X-From"] != "flag" || cfg.Headers["X-Extra"] != "yes" {
			t.Errorf("unexpected headers %v", cfg.Headers)
		}
		if len(cfg.Seeds) != 1 || cfg.Seeds[0] != "https://flag.example/" {
			t.Errorf("expected positional seed, got %v", cfg.Seeds)
		}
	})

	t.Run("unset flags keep the defaults", func(t *testing.T) {
		t.Parallel()

		cfg, err := parse(t, "-c", writeConfigFile(t, "{}\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.StartDepth != config.DefaultStartDepth || cfg.MaxDepth != config.DefaultMaxDepth {
			t.Errorf("unexpected depth window %d..%d", cfg.StartDepth, cfg.MaxDepth)
		}
		if len(cfg.Seeds) != len(config.DefaultSeeds) {
			t.Errorf("expected default seeds, got %v", cfg.Seeds)
		}
		if !strings.HasPrefix(cfg.UserAgent, config.DefaultUserAgent) {
			t.Errorf("unexpected user agent %q", cfg.UserAgent)
		}
		if !cfg.SaveToDB {
			t.Error("expected history to be saved by default")
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		_, err := parse(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"))
		if err == nil || !strings.Contains(err.Error(), "configuration file not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("broken config file", func(t *testing.T) {
		t.Parallel()

		_, err := parse(t, "-c", writeConfigFile(t, "depth: [not a number\n"))
		if err == nil || !strings.Contains(err.Error(), "failed to load config file") {
			t.Errorf("expected load error, got %v", err)
		}
	})
}

func TestCrawlCommand(t *testing.T) {
	t.Parallel()

	t.Run("crawls to the max depth and prints a JSON report", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		out, err := executeCommand(t, "crawl", "-c", writeConfigFile(t, "{}\n"),
			"--no-history", "-j", "-d", "2", site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := decodeJSONReport(t, out)
		if got.Summary.Outcome != model.OutcomeSuccess {
			t.Errorf("expected success, got %q", got.Summary.Outcome)
		}
		if got.Summary.Pages != 3 || got.Summary.FailedPages != 0 {
			t.Errorf("expected 3 pages without failures, got %+v", got.Summary)
		}
		if got.Version == "" {
			t.Error("expected version in JSON report")
		}
		if len(got.Report.Visits) != 3 {
			t.Fatalf("expected 3 visits, got %d", len(got.Report.Visits))
		}
		for _, path := range []string{"/", "/a", "/b"} {
			if n := site.hitsFor(path); n != 1 {
				t.Errorf("expected %s fetched once, got %d", path, n)
			}
		}
	})

	t.Run("refetches pages reachable along several paths", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		_, err := executeCommand(t, "crawl", "-c", writeConfigFile(t, "{}\n"),
			"--no-history", "-j", "-d", "3", site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if n := site.hitsFor("/"); n != 2 {
			t.Errorf("expected / fetched at depth 1 and 3, got %d", n)
		}
	})

	t.Run("start depth beyond max depth fetches nothing", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		out, err := executeCommand(t, "crawl", "-c", writeConfigFile(t, "{}\n"),
			"--no-history", "-j", "--start-depth", "3", "-d", "2", site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := decodeJSONReport(t, out); got.Summary.Pages != 0 {
			t.Errorf("expected no pages, got %d", got.Summary.Pages)
		}
		if n := site.totalHits(); n != 0 {
			t.Errorf("expected no requests, got %d", n)
		}
	})

	t.Run("a failing page fails the crawl but not its siblings", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		out, err := executeCommand(t, "crawl", "-c", writeConfigFile(t, "{}\n"),
			"--no-history", "-j", "-d", "2", site.URL+"/broken", site.URL+"/")
		if err == nil {
			t.Fatal("expected crawl error")
		}
		if !strings.Contains(err.Error(), "crawl failed") {
			t.Errorf("unexpected error %v", err)
		}
		var fetchErr *fetch.FetchError
		if !errors.As(err, &fetchErr) || fetchErr.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected FetchError with status 500, got %v", err)
		}

		got := decodeJSONReport(t, out)
		if got.Summary.Outcome != model.OutcomeFailure {
			t.Errorf("expected failure outcome, got %q", got.Summary.Outcome)
		}
		if got.Summary.FailedPages != 1 {
			t.Errorf("expected one failed page, got %d", got.Summary.FailedPages)
		}
		if site.hitsFor("/a") != 1 || site.hitsFor("/b") != 1 {
			t.Error("expected the healthy seed to be crawled to completion")
		}
	})

	t.Run("writes a markdown report to a file", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		reportPath := filepath.Join(t.TempDir(), "reports", "crawl.md")
		out, err := executeCommand(t, "crawl", "-c", writeConfigFile(t, "{}\n"),
			"--no-history", "-m", "-o", reportPath, "-d", "1", site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "" {
			t.Errorf("expected nothing on stdout, got %q", out)
		}

		content, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.Contains(string(content), "# Crawl Report") {
			t.Errorf("expected markdown report, got:\n%s", content)
		}

		info, err := os.Stat(reportPath)
		if err != nil {
			t.Fatalf("failed to stat report: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("expected mode 0600, got %o", perm)
		}
	})

	t.Run("verbose text report lists the links of each page", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		cfgPath := writeConfigFile(t, "{}\n")

		out, err := executeCommand(t, "crawl", "-c", cfgPath, "--no-history", "-d", "1", site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(out, "-> ") {
			t.Errorf("expected no link listing without --verbose, got:\n%s", out)
		}

		out, err = executeCommand(t, "crawl", "-v", "-c", cfgPath, "--no-history", "-d", "1", site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, link := range []string{site.URL + "/a", site.URL + "/b"} {
			if !strings.Contains(out, "-> "+link) {
				t.Errorf("expected link %s in verbose report, got:\n%s", link, out)
			}
		}
	})

	t.Run("writes JSON logs to stderr", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		_, stderr, err := executeCommandStreams(t, "crawl", "-c", writeConfigFile(t, "{}\n"),
			"--no-history", "--log-json", "-d", "1", site.URL+"/b")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(stderr), "\n")
		if len(lines) == 0 || lines[0] == "" {
			t.Fatal("expected log output on stderr")
		}
		for _, line := range lines {
			var entry map[string]any
			if err := json.Unmarshal([]byte(line), &entry); err != nil {
				t.Fatalf("log line is not JSON: %q: %v", line, err)
			}
			if _, ok := entry["msg"]; !ok {
				t.Errorf("log line without msg: %q", line)
			}
		}
	})

	t.Run("sends configured headers", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		_, err := executeCommand(t, "crawl", "-c", writeConfigFile(t, "{}\n"),
			"--no-history", "-d", "1", "--user-agent", "test-agent",
			"--cookie", "session=abc", "-H", "X-Test=1", site.URL+"/b")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		headers := site.lastHeaders()
		if got := headers.Get("User-Agent"); got != "test-agent" {
			t.Errorf("expected user agent test-agent, got %q", got)
		}
		if got := headers.Get("Cookie"); got != "session=abc" {
			t.Errorf("expected cookie, got %q", got)
		}
		if got := headers.Get("X-Test"); got != "1" {
			t.Errorf("expected X-Test header, got %q", got)
		}
	})

	t.Run("records the crawl in the history database", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		dbDir := t.TempDir()
		_, err := executeCommand(t, "crawl", "-c", writeConfigFile(t, "{}\n"),
			"--db-dir", dbDir, "-d", "2", site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out, err := executeCommand(t, "history", "--db-dir", dbDir, "-j")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, `"visit_count": 3`) {
			t.Errorf("expected one stored run with 3 visits, got:\n%s", out)
		}
	})

	t.Run("rejects invalid input before crawling", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		tests := []struct {
			name    string
			args    []string
			wantErr error
		}{
			{
				name:    "conflicting report formats",
				args:    []string{"-j", "-m", site.URL + "/"},
				wantErr: config.ErrConflictingReportFormats,
			},
			{
				name:    "relative seed",
				args:    []string{"/relative/path"},
				wantErr: crawler.ErrInvalidSeed,
			},
			{
				name:    "negative start depth",
				args:    []string{"--start-depth=-1", site.URL + "/"},
				wantErr: config.ErrInvalidDepth,
			},
			{
				name:    "zero timeout",
				args:    []string{"-t", "0s", site.URL + "/"},
				wantErr: config.ErrInvalidTimeout,
			},
		}

		for _, tt := range tests {
			args := append([]string{"crawl", "-c", writeConfigFile(t, "{}\n"), "--no-history"}, tt.args...)
			_, err := executeCommand(t, args...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("%s: expected %v, got %v", tt.name, tt.wantErr, err)
			}
		}
		if n := site.totalHits(); n != 0 {
			t.Errorf("expected no requests, got %d", n)
		}
	})
}
