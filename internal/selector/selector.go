package selector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// ErrEmptySelector is returned when compiling a blank selector string.
var ErrEmptySelector = errors.New("selector is empty")

// Selector is a compiled CSS selector group. The zero value matches nothing.
type Selector struct {
	raw     string
	matcher cascadia.Selector
}

// Compile parses raw as a CSS selector group.
func Compile(raw string) (Selector, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Selector{}, ErrEmptySelector
	}
	m, err := cascadia.Compile(trimmed)
	if err != nil {
		return Selector{}, fmt.Errorf("compile selector %q: %w", trimmed, err)
	}
	return Selector{raw: trimmed, matcher: m}, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and
// package-level fixtures.
func MustCompile(raw string) Selector {
	s, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the source text of the selector.
func (s Selector) String() string {
	return s.raw
}

// Element is a single matched node.
type Element interface {
	// Attr returns the named attribute and whether it was present.
	Attr(name string) (string, bool)
	// Text concatenates the text content of the element and its descendants.
	Text() string
	// HTML renders the element for diagnostics.
	HTML() string
}

// Document is a parsed page that can be queried with compiled selectors.
type Document interface {
	Select(sel Selector) []Element
}

// Parser turns a raw response body into a Document.
type Parser interface {
	Parse(body string) (Document, error)
}

// GoqueryParser implements Parser on top of goquery.
type GoqueryParser struct{}

// NewParser returns the goquery-backed Parser.
func NewParser() GoqueryParser {
	return GoqueryParser{}
}

// Parse implements Parser.
func (GoqueryParser) Parse(body string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return goqueryDocument{doc: doc}, nil
}

type goqueryDocument struct {
	doc *goquery.Document
}

func (d goqueryDocument) Select(sel Selector) []Element {
	if sel.matcher == nil {
		return nil
	}
	matches := d.doc.FindMatcher(sel.matcher)
	out := make([]Element, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		out = append(out, goqueryElement{sel: s})
	})
	return out
}

type goqueryElement struct {
	sel *goquery.Selection
}

func (e goqueryElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e goqueryElement) Text() string {
	return e.sel.Text()
}

func (e goqueryElement) HTML() string {
	html, err := goquery.OuterHtml(e.sel)
	if err != nil {
		return "<" + goquery.NodeName(e.sel) + ">"
	}
	return html
}
