package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".linkcrawl"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .linkcrawl configuration file.
// Every key is optional; unset keys leave the current value alone.
type File struct {
	// Seeds replaces the default seed list.
	Seeds []string `yaml:"seeds,omitempty"`

	// Depth is the max crawl depth.
	Depth *int `yaml:"depth,omitempty"`

	// StartDepth is the depth of the seeds.
	StartDepth *int `yaml:"startDepth,omitempty"`

	// Timeout is a Go duration string such as "30s".
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Cookie is an HTTP cookie sent with every request.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Proxy is a SOCKS5 proxy address in "host:port" form.
	Proxy string `yaml:"proxy,omitempty"`

	// MaxConcurrentFetches bounds simultaneous fetches.
	MaxConcurrentFetches *int `yaml:"maxConcurrentFetches,omitempty"`
}

// Apply copies every value set in the file into cfg.
// Headers are merged; a file header replaces one of the same name.
func (f *File) Apply(cfg *Config) {
	if len(f.Seeds) > 0 {
		cfg.Seeds = append([]string(nil), f.Seeds...)
	}
	if f.Depth != nil {
		cfg.MaxDepth = *f.Depth
	}
	if f.StartDepth != nil {
		cfg.StartDepth = *f.StartDepth
	}
	if f.Timeout != 0 {
		cfg.Timeout = f.Timeout
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	if f.Cookie != "" {
		cfg.Cookie = f.Cookie
	}
	if len(f.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(f.Headers))
		}
		for k, v := range f.Headers {
			cfg.Headers[k] = v
		}
	}
	if f.Proxy != "" {
		cfg.ProxyAddress = f.Proxy
	}
	if f.MaxConcurrentFetches != nil {
		cfg.MaxConcurrentFetches = *f.MaxConcurrentFetches
	}
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers decide whether that matters, based on whether the path was
// given explicitly.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .linkcrawl in the current directory
// 3. Look for .linkcrawl in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
