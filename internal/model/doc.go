// Package model defines the data recorded about a crawl run.
//
// A CrawlReport describes one invocation of the crawler: the seeds, the depth
// budget, the outcome and one PageVisit per fetch attempt. The crawler fills
// visits in through its Observer hook, the database package persists reports
// and the report package renders them.
//
// All types serialize to JSON; the database stores the full report as JSON
// next to its indexed columns.
package model
