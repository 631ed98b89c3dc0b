package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "linkcrawl"

	// DefaultStartDepth is the depth assigned to the seed URLs.
	DefaultStartDepth = 1

	// DefaultMaxDepth is the deepest level that is fetched. With the default
	// start depth the seeds and the pages they link to are fetched.
	DefaultMaxDepth = 2

	// DefaultTimeout bounds each HTTP request, including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultUserAgent is the product token of the User-Agent header.
	// UserAgentFor appends the build version.
	DefaultUserAgent = "linkcrawl"

	// DefaultMaxConcurrentFetches of 0 leaves fetching unbounded.
	DefaultMaxConcurrentFetches = 0
)

// DefaultSeeds are crawled when neither the command line nor the
// configuration file names any seed.
var DefaultSeeds = []string{
	"https://www.rust-lang.org/tools",
	"https://www.rust-lang.org/governance",
}

// Config holds all configuration options for linkcrawl.
// It is populated from defaults, then the configuration file, then the
// command line flags, and passed down explicitly.
type Config struct {
	// Seeds are the absolute URLs the crawl starts from.
	Seeds []string

	// StartDepth is the depth of the seeds.
	StartDepth int

	// MaxDepth is the deepest level fetched. Pages at MaxDepth are fetched
	// and parsed, but their links are not followed.
	MaxDepth int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxBodySize is the maximum response body size in bytes to read.
	// Longer bodies are truncated.
	MaxBodySize int64

	// UserAgent is sent with every request.
	UserAgent string

	// Cookie is sent as the Cookie header when not empty.
	Cookie string

	// Headers are extra request headers.
	Headers map[string]string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// MaxConcurrentFetches bounds simultaneous fetches. 0 means unbounded.
	MaxConcurrentFetches int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the configuration file given with --config.
	// If empty, .linkcrawl is searched in the current and home directories.
	ConfigFilePath string

	// JSONReport selects the JSON report. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects the Markdown report. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report. Empty means stdout.
	ReportFile string

	// JSONLogs writes progress logs as JSON lines instead of text.
	JSONLogs bool

	// DBDir is the directory of the history database.
	DBDir string

	// SaveToDB records the crawl in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	seeds := make([]string, len(DefaultSeeds))
	copy(seeds, DefaultSeeds)

	return &Config{
		Seeds:                seeds,
		StartDepth:           DefaultStartDepth,
		MaxDepth:             DefaultMaxDepth,
		Timeout:              DefaultTimeout,
		MaxBodySize:          DefaultMaxBodySize,
		UserAgent:            DefaultUserAgent,
		MaxConcurrentFetches: DefaultMaxConcurrentFetches,
		DBDir:                XDGDataDir(),
		SaveToDB:             true,
	}
}

// UserAgentFor returns the default User-Agent for the given build version.
func UserAgentFor(version string) string {
	if version == "" {
		return DefaultUserAgent
	}
	return DefaultUserAgent + "/" + version
}

// XDGDataDir returns the XDG data directory for linkcrawl.
// On Linux: ~/.local/share/linkcrawl
// On macOS: ~/Library/Application Support/linkcrawl
// On Windows: %LOCALAPPDATA%\linkcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeeds
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	// A start depth beyond the max depth is allowed; it simply fetches nothing.
	if c.StartDepth < 0 || c.MaxDepth < 0 {
		return ErrInvalidDepth
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.MaxConcurrentFetches < 0 {
		return ErrInvalidMaxConcurrency
	}

	return nil
}
