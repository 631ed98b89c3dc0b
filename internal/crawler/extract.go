package crawler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// webSchemes are the schemes whose URLs are meaningless without a host.
var webSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ws":    true,
	"wss":   true,
	"ftp":   true,
}

// tabsAndNewlines removes the characters URL parsers ignore inside a URL.
var tabsAndNewlines = strings.NewReplacer("\t", "", "\n", "", "\r", "")

// ExtractLinks returns the absolute URLs of every href attribute on the <a>
// start tags of page, in document order and with duplicates kept.
//
// Relative references are resolved against the origin of base (scheme,
// userinfo and host); the path and query of base are ignored. Invalid UTF-8
// in page is replaced, never rejected. A single href that is neither an
// absolute URL nor a relative reference fails the whole call with a
// *MalformedLinkError.
//
// Design decision: links are read from the token stream instead of a parsed
// DOM. Broken markup never stops the scan, only <a> start tags are looked at,
// and the page is never held as a tree. Only the origin of base is used, so
// "docs/x" on https://example.com/a/b resolves to https://example.com/docs/x.
func ExtractLinks(base *url.URL, page []byte) ([]*url.URL, error) {
	hrefs, err := scanHrefs(page)
	if err != nil {
		return nil, err
	}

	origin := Origin(base)
	links := make([]*url.URL, 0, len(hrefs))
	for _, href := range hrefs {
		link, err := resolveLink(origin, href)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}

// Origin returns the scheme, userinfo and host of u with the root path.
func Origin(u *url.URL) *url.URL {
	return &url.URL{
		Scheme: u.Scheme,
		User:   u.User,
		Host:   u.Host,
		Path:   "/",
	}
}

// scanHrefs tokenizes page and collects the raw href values of <a> tags.
func scanHrefs(page []byte) ([]string, error) {
	decoded := transform.NewReader(bytes.NewReader(page), unicode.UTF8.NewDecoder())
	z := html.NewTokenizer(decoded)

	hrefs := make([]string, 0)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("failed to tokenize page: %w", err)
			}
			return hrefs, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr || string(name) != "a" {
				continue
			}
			for more := true; more; {
				var key, val []byte
				key, val, more = z.TagAttr()
				if string(key) == "href" {
					hrefs = append(hrefs, string(val))
				}
			}
		}
	}
}

// resolveLink turns one raw href into an absolute URL.
func resolveLink(origin *url.URL, href string) (*url.URL, error) {
	// Browsers drop leading and trailing C0 controls and spaces, and ASCII
	// tabs and newlines anywhere in the value.
	trimmed := strings.TrimFunc(href, func(r rune) bool { return r <= ' ' })
	trimmed = tabsAndNewlines.Replace(trimmed)

	ref, err := url.Parse(trimmed)
	if err != nil {
		return nil, &MalformedLinkError{Href: href, Err: err}
	}
	if ref.Scheme == "" {
		return origin.ResolveReference(ref), nil
	}
	if webSchemes[ref.Scheme] && ref.Host == "" {
		return nil, &MalformedLinkError{Href: href, Err: ErrMissingHost}
	}
	return ref, nil
}
