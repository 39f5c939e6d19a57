// Package selector is the narrow HTML capability the scrape pipeline depends
// on: compile a CSS selector once, parse a page, and walk the matching
// elements in document order with attribute and text access.
package selector
