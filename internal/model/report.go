package model

import (
	"sort"
	"time"
)

// Outcome labels stored with a finished crawl.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// CrawlReport is the result of one crawl run.
type CrawlReport struct {
	// ID is the database identifier. Zero until the report is saved.
	ID int64 `json:"id,omitempty"`

	// Seeds are the URLs of the first frontier.
	Seeds []string `json:"seeds"`

	// StartDepth is the depth assigned to the seeds.
	StartDepth int `json:"start_depth"`

	// MaxDepth is the last depth at which pages are fetched.
	MaxDepth int `json:"max_depth"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Visits holds one entry per fetch attempt.
	Visits []PageVisit `json:"visits"`

	// Error is the surfaced crawl failure, nil on success.
	// It is not serialized; ErrorMessage carries the text.
	Error error `json:"-"`

	// ErrorMessage is the text of Error.
	ErrorMessage string `json:"error,omitempty"`
}

// NewCrawlReport creates a report for a run that starts now.
func NewCrawlReport(seeds []string, startDepth, maxDepth int) *CrawlReport {
	return &CrawlReport{
		Seeds:      seeds,
		StartDepth: startDepth,
		MaxDepth:   maxDepth,
		StartedAt:  time.Now(),
		Visits:     make([]PageVisit, 0),
	}
}

// Finish stamps the end time and records the visits and the crawl outcome.
func (r *CrawlReport) Finish(visits []PageVisit, err error) {
	r.FinishedAt = time.Now()
	r.Visits = visits
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Succeeded reports whether the crawl completed without a surfaced failure.
func (r *CrawlReport) Succeeded() bool {
	return r.ErrorMessage == ""
}

// Outcome returns OutcomeSuccess or OutcomeFailure.
func (r *CrawlReport) Outcome() string {
	if r.Succeeded() {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// Duration is the wall-clock time of the run.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedVisits returns the visits that ended in an error.
func (r *CrawlReport) FailedVisits() []PageVisit {
	failed := make([]PageVisit, 0)
	for _, v := range r.Visits {
		if v.Failed() {
			failed = append(failed, v)
		}
	}
	return failed
}

// TotalLinks is the number of links extracted across all visits.
func (r *CrawlReport) TotalLinks() int {
	total := 0
	for _, v := range r.Visits {
		total += len(v.Links)
	}
	return total
}

// Depths returns the distinct depths that have visits, ascending.
func (r *CrawlReport) Depths() []int {
	seen := make(map[int]bool)
	depths := make([]int, 0)
	for _, v := range r.Visits {
		if !seen[v.Depth] {
			seen[v.Depth] = true
			depths = append(depths, v.Depth)
		}
	}
	sort.Ints(depths)
	return depths
}

// VisitsAtDepth returns the visits made at the given depth.
func (r *CrawlReport) VisitsAtDepth(depth int) []PageVisit {
	visits := make([]PageVisit, 0)
	for _, v := range r.Visits {
		if v.Depth == depth {
			visits = append(visits, v)
		}
	}
	return visits
}
