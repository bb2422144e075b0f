// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package rule describes one book source: its base URL, request shape, and
the selector expressions the Selector Engine evaluates against that
source's HTML to extract search hits, novel detail, tables of contents,
and chapter bodies.

# Dynamic typing in the source

Rule files arrive as loosely typed JSON with multiple legacy shapes
(`url` vs `baseUrl`, `search.result` vs `searchRule.list`). Ingestion is
a normalization pass into one canonical schema; rules that cannot be
normalized are rejected rather than partially accepted. Downstream
components only ever see the canonical [Rule] — never the original
on-disk shape.
*/
package rule

// # Request Method

// Method is the HTTP verb a search request uses.
type Method string

const (
	MethodGET  Method = "GET"
	MethodPOST Method = "POST"
)

// # Rule Schema (closed, canonical — spec.md §3)

// Rule is the immutable, validated description of one book source.
// Once loaded, a Rule is shared read-only across every Source Adapter
// goroutine; nothing ever mutates a Rule after [ParseFile] returns it.
type Rule struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	BaseURL string `json:"baseUrl"`
	Enabled bool   `json:"enabled"`

	// Encoding names the charset chapter/detail pages are served in
	// (e.g. "UTF-8", "GBK", "Big5"). Defaults to UTF-8.
	Encoding string `json:"encoding"`

	Search  SearchRule  `json:"search"`
	Book    BookRule    `json:"book"`
	TOC     TOCRule     `json:"toc"`
	Chapter ChapterRule `json:"chapter"`
}

// SearchRule describes how to query this source and parse the result list.
type SearchRule struct {
	// URLTemplate contains the "{keyword}" placeholder.
	URLTemplate   string `json:"urlTemplate"`
	Method        Method `json:"method"`
	BodyTemplate  string `json:"bodyTemplate,omitempty"`
	ListSelector  string `json:"listSelector"`
	TitleSelector string `json:"titleSelector"`
	AuthorSelector string `json:"authorSelector"`
	LinkSelector  string `json:"linkSelector"`
	LatestSelector string `json:"latestSelector,omitempty"`
}

// BookRule describes how to parse a novel's detail page.
type BookRule struct {
	TitleSelector    string `json:"titleSelector"`
	AuthorSelector   string `json:"authorSelector"`
	IntroSelector    string `json:"introSelector,omitempty"`
	CoverSelector    string `json:"coverSelector,omitempty"`
	CategorySelector string `json:"categorySelector,omitempty"`
	StatusSelector   string `json:"statusSelector,omitempty"`
}

// TOCRule describes how to parse a novel's table of contents, possibly
// spanning multiple pages.
type TOCRule struct {
	// ListSelector may be a pipe-joined fallback list ("a.chapter-item|li a").
	ListSelector    string `json:"listSelector"`
	TitleExtractor  string `json:"titleExtractor"`
	URLExtractor    string `json:"urlExtractor"`
	HasPages        bool   `json:"hasPages"`
	NextPageSelector string `json:"nextPageSelector,omitempty"`

	// URLTransform is a from-regex -> to-template rewrite applied to each
	// discovered chapter URL, e.g. for sources whose TOC page links to a
	// summary URL that must be rewritten to the actual reader URL.
	URLTransform *URLTransform `json:"urlTransform,omitempty"`
}

// URLTransform rewrites a URL using a regular expression and a
// replacement template (Go's regexp.ReplaceAll syntax, so "$1" refers
// to the first capture group).
type URLTransform struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ChapterRule describes how to parse a single chapter page.
type ChapterRule struct {
	TitleSelector   string   `json:"titleSelector"`
	ContentSelector string   `json:"contentSelector"`
	// AdPatterns are regexes removed (replaced with "") from the
	// extracted chapter text, e.g. boilerplate "read more at ..." ads.
	AdPatterns []string `json:"adPatterns,omitempty"`
	// RemoveSelectors name DOM subtrees stripped before text extraction
	// (e.g. inline ad divs, "report a bug" buttons).
	RemoveSelectors []string `json:"removeSelectors,omitempty"`
}

// DefaultEncoding is used when a Rule does not name one.
const DefaultEncoding = "UTF-8"

// DefaultMaxTOCPages is the paginated-TOC page bound. A Rule has no field
// that overrides it, and the Source Adapter bounds traversal with
// constants.MaxTOCPages, which has the same value.
const DefaultMaxTOCPages = 50
