// Package fetch retrieves page bodies over HTTP for the crawler.
//
// Client is the fetch collaborator of the crawl scheduler: given an absolute
// URL it returns the response body or a *FetchError. It is safe for
// concurrent use by many crawl branches.
//
// Every failure (transport error, non-2xx status, body read error) is
// reported as a *FetchError so callers can inspect the URL and status code
// with errors.As, and test for ErrUnexpectedStatus with errors.Is.
//
// Requests can optionally be routed through a SOCKS5 proxy (for example a
// local Tor daemon at 127.0.0.1:9050) and can carry a cookie and extra
// headers loaded from the configuration file.
package fetch
