// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package htmlselect is the Selector Engine (spec.md §4.2): it evaluates a
rule's selector expression against a parsed HTML document (or a subtree
of it) and yields text, an attribute value, or a node list.

# Selector grammar

	<css-selector>[@<attr>][##<regex>##<replacement>]

  - A plain CSS selector ("ul.list li") selects matching nodes.
  - "@attr" extracts the named attribute from the first matched node;
    the reserved attribute name "text" extracts that node's trimmed,
    whitespace-collapsed text content instead of a real DOM attribute.
  - The bare literal "text" (no CSS selector) extracts the current
    node's own text content, the same as "@text".
  - "meta[name=...]" selectors default to the "content" attribute when
    no "@attr" suffix is given, since a bare meta tag carries no
    meaningful text.
  - Any other selector with no "@attr" suffix defaults to text
    extraction.
  - A "|" joins fallback alternatives evaluated left to right; the first
    alternative that yields a non-empty result wins.
  - A trailing "##regex##replacement" applies [regexp.Regexp.ReplaceAllString]
    to the extracted string before it is returned.

This package is built on [github.com/PuerkitoBio/goquery] over
[golang.org/x/net/html] parse trees.
*/
package htmlselect

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// textAttr is the reserved pseudo-attribute name for text-content extraction.
const textAttr = "text"

// Parse parses raw HTML bytes into a [goquery.Document].
func Parse(htmlBody string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, fmt.Errorf("htmlselect: parse document: %w", err)
	}
	return doc, nil
}

// Nodes resolves a (possibly pipe-joined) plain CSS selector against
// root, trying each alternative in order until one yields a non-empty
// match. It is used for list selectors, where the caller needs the
// matched nodes themselves rather than an extracted string.
func Nodes(root *goquery.Selection, expr string) *goquery.Selection {
	for _, alt := range strings.Split(expr, "|") {
		alt = strings.TrimSpace(stripSuffixes(alt))
		if alt == "" {
			continue
		}
		found := root.Find(alt)
		if found.Length() > 0 {
			return found
		}
	}
	return root.FilterFunction(func(int, *goquery.Selection) bool { return false })
}

// Extract evaluates a full selector expression (CSS selector + optional
// "@attr" + optional "##regex##replacement", with "|" fallbacks) against
// root and returns the first non-empty extracted string.
func Extract(root *goquery.Selection, expr string) (string, error) {
	var lastErr error
	for _, alt := range strings.Split(expr, "|") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		value, err := extractOne(root, alt)
		if err != nil {
			lastErr = err
			continue
		}
		if value != "" {
			return value, nil
		}
	}
	return "", lastErr
}

// ExtractParagraphs evaluates expr like [Extract], but for plain-text
// (non-"@attr") extraction it preserves paragraph breaks instead of
// collapsing all whitespace to single spaces: spec.md §4.4 requires
// chapter content be "returned as plain text with paragraph breaks
// preserved". Used for the chapter content selector only.
func ExtractParagraphs(root *goquery.Selection, expr string) (string, error) {
	var lastErr error
	for _, alt := range strings.Split(expr, "|") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		value, err := extractOneParagraphs(root, alt)
		if err != nil {
			lastErr = err
			continue
		}
		if value != "" {
			return value, nil
		}
	}
	return "", lastErr
}

// extractOneParagraphs mirrors extractOne, substituting blockText for
// cleanText on the plain-text path.
func extractOneParagraphs(root *goquery.Selection, alt string) (string, error) {
	selectorPart, pattern, replacement, hasRegex := splitRegexSuffix(alt)
	cssPart, attr, hasAttr := splitAttrSuffix(selectorPart)

	var target *goquery.Selection
	if cssPart == "" {
		target = root
	} else {
		target = root.Find(cssPart)
		if target.Length() == 0 {
			return "", nil
		}
	}

	var value string
	switch {
	case hasAttr && attr == textAttr:
		value = blockText(target.First())
	case hasAttr:
		value, _ = target.First().Attr(attr)
	case strings.HasPrefix(strings.ToLower(cssPart), "meta"):
		value, _ = target.First().Attr("content")
	default:
		value = blockText(target.First())
	}

	if hasRegex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return "", fmt.Errorf("htmlselect: compile regex %q: %w", pattern, err)
		}
		value = re.ReplaceAllString(value, replacement)
	}

	return value, nil
}

// blockTags are the elements whose closing tag introduces a paragraph
// break in extracted text; <br> inserts a break at its own position.
var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "section": true, "article": true,
}

// blockText extracts sel's text content, emitting a newline per block
// element instead of [cleanText]'s single-space collapse, then
// normalizes each resulting line's internal whitespace independently.
func blockText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			sb.WriteString(node.Data)
		case html.ElementNode:
			if node.Data == "br" {
				sb.WriteString("\n")
				return
			}
			for c := node.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			if blockTags[node.Data] {
				sb.WriteString("\n")
			}
		default:
			for c := node.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
	}
	walk(sel.Get(0))
	return cleanBlockText(sb.String())
}

// cleanBlockText collapses whitespace within each line while keeping
// the paragraph breaks between lines, dropping blank lines produced by
// adjacent block elements.
func cleanBlockText(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// extractOne evaluates a single (non-fallback) selector alternative.
func extractOne(root *goquery.Selection, alt string) (string, error) {
	selectorPart, pattern, replacement, hasRegex := splitRegexSuffix(alt)
	cssPart, attr, hasAttr := splitAttrSuffix(selectorPart)
	if !hasAttr && strings.TrimSpace(cssPart) == textAttr {
		// The bare literal "text" is shorthand for "@text".
		cssPart, attr, hasAttr = "", textAttr, true
	}

	var target *goquery.Selection
	if cssPart == "" {
		// No selector prefix: operate on the current node itself, e.g.
		// a second "@attr" stage chained after an already-selected node.
		target = root
	} else {
		target = root.Find(cssPart)
		if target.Length() == 0 {
			return "", nil
		}
	}

	var value string
	switch {
	case hasAttr && attr == textAttr:
		value = cleanText(target.First().Text())
	case hasAttr:
		value, _ = target.First().Attr(attr)
	case strings.HasPrefix(strings.ToLower(cssPart), "meta"):
		value, _ = target.First().Attr("content")
	default:
		value = cleanText(target.First().Text())
	}

	if hasRegex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return "", fmt.Errorf("htmlselect: compile regex %q: %w", pattern, err)
		}
		value = re.ReplaceAllString(value, replacement)
	}

	return value, nil
}

// splitAttrSuffix splits "selector@attr" into ("selector", "attr", true),
// or returns (selector, "", false) if there is no "@" suffix.
func splitAttrSuffix(s string) (selector, attr string, hasAttr bool) {
	idx := strings.LastIndex(s, "@")
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+1:], true
}

// splitRegexSuffix splits "selector##regex##replacement" into its three
// parts, or returns (s, "", "", false) if there is no "##" suffix.
func splitRegexSuffix(s string) (selector, pattern, replacement string, hasRegex bool) {
	parts := strings.Split(s, "##")
	if len(parts) != 3 {
		return s, "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// stripSuffixes removes any "@attr"/"##regex##replacement" suffix,
// leaving the bare CSS selector — used by [Nodes], which only cares
// about matched nodes, never an extracted value.
func stripSuffixes(s string) string {
	selectorPart, _, _, _ := splitRegexSuffix(s)
	cssPart, _, _ := splitAttrSuffix(selectorPart)
	return cssPart
}

// cleanText trims whitespace and collapses internal whitespace runs to
// single spaces, matching spec.md §4.2's text-extraction rule.
func cleanText(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// AbsoluteURL absolutizes href against the page's base URL. Relative
// URLs discovered during selection (href/src) are always absolutized
// against the document they were found in.
func AbsoluteURL(base, href string) string {
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	refURL, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(refURL).String()
}

// RemoveSelectors removes every node matched by each selector in sels
// from doc before further extraction, e.g. stripping inline ad nodes
// prior to reading a chapter's content selector.
func RemoveSelectors(root *goquery.Selection, sels []string) {
	for _, sel := range sels {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		root.Find(sel).Remove()
	}
}
