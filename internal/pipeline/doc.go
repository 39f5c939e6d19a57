// Package pipeline holds the step-driven scrape model and the engine that
// advances one fetched page through the first remaining step of its state.
//
// A scraper definition carries an ordered list of steps. Every crawl task
// threads a CrawlState (destination directory plus the steps that remain)
// from submission to response. Advancing a state consumes exactly one step:
// link extraction fans out into child tasks one directory deeper, resource
// extraction produces an ordered batch of downloads and ends the branch.
package pipeline
