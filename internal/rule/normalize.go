// Copyright (c) 2026 Novelforge. All rights reserved.

package rule

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// legacyPlaceholder is the old-style keyword placeholder some rule files
// still carry, rewritten to "{keyword}" at load time for backward
// compatibility (spec.md §6).
const legacyPlaceholder = "%s"

var bareKeywordPattern = regexp.MustCompile(regexp.QuoteMeta(legacyPlaceholder))

// ParseFile decodes one rule file's contents into a slice of canonical,
// validated [Rule] records. A rule file is a JSON array of loosely typed
// rule objects; legacy field-shapes are normalized, and any rule that
// cannot be normalized into the closed canonical schema is rejected with
// an error identifying its position in the file, not silently dropped.
func ParseFile(data []byte) ([]Rule, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("rule: decode array: %w", err)
	}

	rules := make([]Rule, 0, len(raw))
	for i, obj := range raw {
		r, err := normalizeOne(obj)
		if err != nil {
			return nil, fmt.Errorf("rule: entry %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// normalizeOne maps one loosely typed JSON object onto the canonical
// [Rule] shape, trying each legacy field name in turn before giving up.
func normalizeOne(obj map[string]any) (Rule, error) {
	var r Rule

	r.ID = int(asNumber(firstOf(obj, "id")))
	r.Name = asString(firstOf(obj, "name", "sourceName"))
	r.BaseURL = asString(firstOf(obj, "baseUrl", "url", "base_url"))
	r.Enabled = asBool(firstOf(obj, "enabled", "isActive", "active"), true)
	r.Encoding = asString(firstOf(obj, "encoding", "charset"))
	if r.Encoding == "" {
		r.Encoding = DefaultEncoding
	}

	searchObj := firstObject(obj, "search", "searchRule")
	r.Search = SearchRule{
		URLTemplate:    rewritePlaceholder(asString(firstOf(searchObj, "urlTemplate", "url"))),
		Method:         Method(strings.ToUpper(asString(firstOf(searchObj, "method")))),
		BodyTemplate:   asString(firstOf(searchObj, "bodyTemplate", "body")),
		ListSelector:   asString(firstOf(searchObj, "listSelector", "list", "result")),
		TitleSelector:  asString(firstOf(searchObj, "titleSelector", "title")),
		AuthorSelector: asString(firstOf(searchObj, "authorSelector", "author")),
		LinkSelector:   asString(firstOf(searchObj, "linkSelector", "link", "href")),
		LatestSelector: asString(firstOf(searchObj, "latestSelector", "latest")),
	}
	if r.Search.Method == "" {
		r.Search.Method = MethodGET
	}

	bookObj := firstObject(obj, "book", "detail", "bookRule")
	r.Book = BookRule{
		TitleSelector:    asString(firstOf(bookObj, "titleSelector", "title")),
		AuthorSelector:   asString(firstOf(bookObj, "authorSelector", "author")),
		IntroSelector:    asString(firstOf(bookObj, "introSelector", "intro", "summary")),
		CoverSelector:    asString(firstOf(bookObj, "coverSelector", "cover")),
		CategorySelector: asString(firstOf(bookObj, "categorySelector", "category")),
		StatusSelector:   asString(firstOf(bookObj, "statusSelector", "status")),
	}

	tocObj := firstObject(obj, "toc", "tocRule", "catalog")
	r.TOC = TOCRule{
		ListSelector:     asString(firstOf(tocObj, "listSelector", "list")),
		TitleExtractor:   asString(firstOf(tocObj, "titleExtractor", "title")),
		URLExtractor:     asString(firstOf(tocObj, "urlExtractor", "href")),
		HasPages:         asBool(firstOf(tocObj, "hasPages", "paginated"), false),
		NextPageSelector: asString(firstOf(tocObj, "nextPageSelector", "nextPage")),
	}
	if transformObj := firstObject(tocObj, "urlTransform"); transformObj != nil {
		from := asString(firstOf(transformObj, "from"))
		to := asString(firstOf(transformObj, "to"))
		if from != "" {
			r.TOC.URLTransform = &URLTransform{From: from, To: to}
		}
	}

	chapterObj := firstObject(obj, "chapter", "chapterRule", "content")
	r.Chapter = ChapterRule{
		TitleSelector:   asString(firstOf(chapterObj, "titleSelector", "title")),
		ContentSelector: asString(firstOf(chapterObj, "contentSelector", "content")),
		AdPatterns:      asStringSlice(firstOf(chapterObj, "adPatterns", "adRegex")),
		RemoveSelectors: asStringSlice(firstOf(chapterObj, "removeSelectors", "remove")),
	}

	if err := validate(r); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// rewritePlaceholder rewrites the legacy bare "%s" keyword placeholder to
// "{keyword}" wherever it appears in a URL template.
func rewritePlaceholder(urlTemplate string) string {
	if !strings.Contains(urlTemplate, legacyPlaceholder) {
		return urlTemplate
	}
	return bareKeywordPattern.ReplaceAllString(urlTemplate, "{keyword}")
}

// validate enforces the Rule invariants: id > 0, baseUrl absolute, every
// selector that is reached is non-empty.
func validate(r Rule) error {
	if r.ID <= 0 {
		return fmt.Errorf("id must be > 0, got %d", r.ID)
	}
	if !strings.HasPrefix(r.BaseURL, "http://") && !strings.HasPrefix(r.BaseURL, "https://") {
		return fmt.Errorf("baseUrl %q is not absolute", r.BaseURL)
	}
	if !strings.Contains(r.Search.URLTemplate, "{keyword}") {
		return fmt.Errorf("search.urlTemplate must contain {keyword}")
	}
	if r.Search.ListSelector == "" || r.Search.TitleSelector == "" || r.Search.LinkSelector == "" {
		return fmt.Errorf("search selectors (list/title/link) must be non-empty")
	}
	if r.Book.TitleSelector == "" {
		return fmt.Errorf("book.titleSelector must be non-empty")
	}
	if r.TOC.ListSelector == "" || r.TOC.TitleExtractor == "" || r.TOC.URLExtractor == "" {
		return fmt.Errorf("toc selectors (list/title/url) must be non-empty")
	}
	if r.TOC.HasPages && r.TOC.NextPageSelector == "" {
		return fmt.Errorf("toc.nextPageSelector required when hasPages is true")
	}
	if r.Chapter.TitleSelector == "" || r.Chapter.ContentSelector == "" {
		return fmt.Errorf("chapter selectors (title/content) must be non-empty")
	}
	return nil
}

// # Loosely typed JSON helpers

func firstOf(obj map[string]any, keys ...string) any {
	if obj == nil {
		return nil
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v
		}
	}
	return nil
}

func firstObject(obj map[string]any, keys ...string) map[string]any {
	v := firstOf(obj, keys...)
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func asBool(v any, fallback bool) bool {
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}

func asStringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}
