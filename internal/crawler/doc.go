// Package crawler implements link extraction and the depth-bounded
// concurrent crawl.
//
// # Components
//
//   - ExtractLinks: scans raw HTML at the token level, collects the href
//     attributes of <a> start tags and resolves them against the page origin.
//   - Scheduler: fetches every URL of a frontier concurrently, extracts the
//     links of each page and recurses one depth deeper until the depth budget
//     is exhausted.
//   - Collector: an Observer that records one model.PageVisit per fetch.
//
// # Concurrency
//
// Each URL of a frontier is handled by its own goroutine (a branch). A level
// returns only after all of its branches, and all of their descendants, have
// finished. A failing branch stops its own descent but never cancels its
// siblings; the first error returned by any branch becomes the result of the
// level. Fan-out is unbounded unless WithMaxConcurrentFetches is set.
//
// URLs are not deduplicated: a page linked twice is fetched twice, and cyclic
// link graphs are only bounded by the depth budget.
//
// # Usage
//
//	client, _ := fetch.NewClient()
//	s := crawler.NewScheduler(client, crawler.WithLogger(logger))
//	err := s.CrawlSeeds(ctx, []string{"https://example.com/"}, 1, 2)
package crawler
