// Package config provides the configuration of a linkcrawl run: crawl
// window, HTTP client settings, report format and history database location.
// Values come from defaults, the optional .linkcrawl YAML file and command
// line flags, in increasing order of precedence.
package config
