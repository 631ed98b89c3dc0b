// Package database provides SQLite-based crawl history for linkcrawl.
//
// Every finished crawl is stored as a crawl_runs row holding the full report
// JSON, plus one page_visits row per fetch attempt. The history command
// lists runs and replays stored reports.
//
// The database is a single file under the XDG data directory, opened with
// the CGO-free modernc.org/sqlite driver.
package database
