// Package source is the crawl task source: it accepts (URL, state)
// submissions, filters them against the domain allow-list, robots.txt and
// the set of already submitted URLs, fetches them through a colly collector
// with per-domain pacing, and yields each page with the state it was
// submitted with.
package source
