package model

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"
)

// PageVisit records a single fetch attempt made by the crawler.
// A visit exists for every URL the crawler tried to fetch, successful or not.
type PageVisit struct {
	// URL is the absolute URL that was fetched.
	URL string `json:"url"`

	// Depth is the crawl depth at which the URL was fetched.
	Depth int `json:"depth"`

	// Links are the absolute URLs extracted from the page, in document order.
	// Duplicates are kept.
	Links []string `json:"links,omitempty"`

	// BodySize is the number of body bytes read.
	BodySize int `json:"body_size"`

	// BodyHash is the hex SHA3-256 digest of the body, empty when no body was read.
	BodyHash string `json:"body_hash,omitempty"`

	// Error is the failure message when the fetch or the link extraction failed.
	Error string `json:"error,omitempty"`

	// Duration is how long the fetch took.
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the visit ended in an error.
func (v PageVisit) Failed() bool {
	return v.Error != ""
}

// HashBody returns the hex SHA3-256 digest of body.
// An empty body yields an empty string.
func HashBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	sum := sha3.Sum256(body)
	return hex.EncodeToString(sum[:])
}
