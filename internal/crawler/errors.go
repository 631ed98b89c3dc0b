package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingHost is wrapped by a MalformedLinkError when a web URL
	// (http, https, ws, wss, ftp) has a scheme but no host.
	ErrMissingHost = errors.New("missing host")

	// ErrInvalidSeed is returned when a seed is not an absolute URL with a host.
	ErrInvalidSeed = errors.New("invalid seed URL")
)

// MalformedLinkError is returned by ExtractLinks when an href value is
// neither an absolute URL nor a relative reference.
type MalformedLinkError struct {
	// Href is the raw attribute value.
	Href string

	// Err is the parse failure.
	Err error
}

// Error implements error.
func (e *MalformedLinkError) Error() string {
	return fmt.Sprintf("malformed link %q: %v", e.Href, e.Err)
}

// Unwrap returns the parse failure.
func (e *MalformedLinkError) Unwrap() error {
	return e.Err
}

// JoinError is returned for a branch that did not run to completion because
// it panicked.
type JoinError struct {
	// URL is the URL the branch was handling.
	URL string

	// Value is the recovered panic value.
	Value any
}

// Error implements error.
func (e *JoinError) Error() string {
	return fmt.Sprintf("crawl branch for %s did not complete: %v", e.URL, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *JoinError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
