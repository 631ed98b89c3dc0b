package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nao1215/linkcrawl/internal/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Fetcher returns the body of the page at u.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) ([]byte, error)
}

// Scheduler runs the depth-bounded concurrent crawl.
// A Scheduler holds no per-crawl state and may run several crawls at once.
//
// Design decision: every level fans out on a plain errgroup.Group rather
// than errgroup.WithContext. A failed fetch records its error and leaves the
// rest of the level running, so a crawl always visits every page reachable
// within the depth bound and the report lists every failure, not just the
// first one. Cancellation stays with the caller's context.
//
// URLs are not deduplicated. A page linked from several pages is fetched once
// per path, which keeps branches independent and free of shared state.
type Scheduler struct {
	// fetcher retrieves page bodies.
	fetcher Fetcher

	// logger receives progress output.
	logger *slog.Logger

	// observer is told about every fetch attempt. May be nil.
	observer Observer

	// fetchSlots bounds simultaneous fetches. Nil means unbounded.
	fetchSlots *semaphore.Weighted
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for progress output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithObserver sets an Observer notified after each fetch attempt.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// WithMaxConcurrentFetches bounds how many fetches run at the same time
// across the whole crawl. Branches are still spawned for every URL; only the
// fetch step waits for a slot. n <= 0 leaves fetching unbounded.
func WithMaxConcurrentFetches(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.fetchSlots = semaphore.NewWeighted(int64(n))
		} else {
			s.fetchSlots = nil
		}
	}
}

// NewScheduler creates a Scheduler that fetches pages with fetcher.
func NewScheduler(fetcher Fetcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		fetcher: fetcher,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// CrawlSeeds parses seeds and crawls them starting at depth current.
func (s *Scheduler) CrawlSeeds(ctx context.Context, seeds []string, current, maxDepth int) error {
	frontier, err := ParseSeeds(seeds)
	if err != nil {
		return err
	}
	return s.Crawl(ctx, frontier, current, maxDepth)
}

// Crawl fetches every URL of frontier concurrently, extracts the links of
// each page and crawls them at current+1. Nothing is fetched once current
// exceeds maxDepth.
//
// Crawl returns after every branch and all of their descendants finished.
// The result is nil when all of them succeeded, otherwise the first error
// returned by a branch: a fetch error, a *MalformedLinkError or a *JoinError.
// Which error wins when several branches fail is unspecified.
//
// ctx is handed to the Fetcher; Crawl itself never cancels a branch.
func (s *Scheduler) Crawl(ctx context.Context, frontier []*url.URL, current, maxDepth int) error {
	s.logger.Info("crawl level", "depth", current, "maxDepth", maxDepth)

	if current > maxDepth {
		s.logger.Info("reached max depth", "depth", current, "maxDepth", maxDepth)
		return nil
	}

	s.logger.Info("crawling frontier", "depth", current, "urls", urlStrings(frontier))

	// A plain Group: a failing branch must not cancel its siblings.
	var g errgroup.Group
	for _, u := range frontier {
		g.Go(func() error {
			return s.branch(ctx, u, current, maxDepth)
		})
	}
	return g.Wait()
}

// branch fetches u, extracts its links and crawls them one level deeper.
// A panic in the branch is returned as a *JoinError, and the attempt is
// reported to the observer as a failed visit unless it was reported already.
func (s *Scheduler) branch(ctx context.Context, u *url.URL, current, maxDepth int) (err error) {
	s.logger.Info("fetching page", "url", u.String(), "depth", current)

	visit := model.PageVisit{URL: u.String(), Depth: current}
	observed := false
	record := func() {
		observed = true
		s.observe(visit)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &JoinError{URL: visit.URL, Value: r}
			s.logger.Error("crawl branch panicked", "url", visit.URL, "depth", current, "error", err)
			if !observed {
				if visit.Duration == 0 {
					visit.Duration = time.Since(start)
				}
				visit.Error = err.Error()
				record()
			}
		}
	}()

	body, err := s.fetch(ctx, u)
	visit.Duration = time.Since(start)
	if err != nil {
		s.logger.Warn("fetch failed", "url", visit.URL, "depth", current, "error", err)
		visit.Error = err.Error()
		record()
		return err
	}
	visit.BodySize = len(body)
	visit.BodyHash = model.HashBody(body)

	links, err := ExtractLinks(u, body)
	if err != nil {
		s.logger.Warn("link extraction failed", "url", visit.URL, "depth", current, "error", err)
		visit.Error = err.Error()
		record()
		return err
	}
	visit.Links = urlStrings(links)
	record()

	s.logger.Info("following links", "url", visit.URL, "depth", current, "links", visit.Links)
	return s.Crawl(ctx, links, current+1, maxDepth)
}

// fetch calls the fetcher, holding a fetch slot when fetching is bounded.
func (s *Scheduler) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	if s.fetchSlots != nil {
		if err := s.fetchSlots.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("failed to wait for fetch slot for %s: %w", u, err)
		}
		defer s.fetchSlots.Release(1)
	}
	return s.fetcher.Fetch(ctx, u)
}

func (s *Scheduler) observe(visit model.PageVisit) {
	if s.observer != nil {
		s.observer.Visited(visit)
	}
}

func urlStrings(urls []*url.URL) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = u.String()
	}
	return out
}
