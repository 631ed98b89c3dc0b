// Package main provides the entry point for the linkcrawl CLI.
//
// linkcrawl crawls the web from a set of seed URLs, following every link
// found on every page down to a maximum depth.
//
// Usage:
//
//	linkcrawl crawl [seed-url...]
//	linkcrawl history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
