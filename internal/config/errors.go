package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoSeeds is returned when there is no seed URL to crawl.
	ErrNoSeeds = errors.New("no seed URL specified: pass at least one URL or set seeds in the config file")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDepth is returned when the start or max depth is negative.
	ErrInvalidDepth = errors.New("invalid depth: start and max depth must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidMaxConcurrency is returned when the fetch bound is negative.
	ErrInvalidMaxConcurrency = errors.New("invalid max concurrent fetches: must be non-negative")
)
