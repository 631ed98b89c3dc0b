package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseSeeds parses seed strings into a frontier. Every seed must be an
// absolute URL with a host; the first one that is not fails the call with
// an error wrapping ErrInvalidSeed.
func ParseSeeds(seeds []string) ([]*url.URL, error) {
	frontier := make([]*url.URL, 0, len(seeds))
	for _, seed := range seeds {
		u, err := url.Parse(strings.TrimSpace(seed))
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidSeed, seed, err)
		}
		if !u.IsAbs() || u.Host == "" {
			return nil, fmt.Errorf("%w %q: must be an absolute URL with a host", ErrInvalidSeed, seed)
		}
		frontier = append(frontier, u)
	}
	return frontier, nil
}
