// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package source implements the Source Adapter (spec.md §4.4): it binds
one [rule.Rule] to the shared HTTP Client Pool, Selector Engine, and
cache, exposing Search/Detail/TOC/Chapter operations that downstream
components call without knowing anything about the underlying rule
format or selector grammar.

Every operation consults the cache first and populates it on success.
Chapter and TOC results are never cached with a TTL shorter than the
page actually changes on the upstream site; see
[github.com/novelforge/novelforge/internal/platform/constants] for the
concrete TTLs.
*/
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/novelforge/novelforge/internal/platform/apperr"
	"github.com/novelforge/novelforge/internal/platform/cache"
	"github.com/novelforge/novelforge/internal/platform/constants"
	"github.com/novelforge/novelforge/internal/platform/hashutil"
	"github.com/novelforge/novelforge/internal/platform/htmlselect"
	"github.com/novelforge/novelforge/internal/platform/httpclient"
	"github.com/novelforge/novelforge/internal/rule"
)

// # Domain records

// Hit is one search result contributed by a source.
type Hit struct {
	SourceID   int    `json:"sourceId"`
	SourceName string `json:"sourceName"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	URL        string `json:"url"`
	Latest     string `json:"latest,omitempty"`
}

// Detail is a novel's detail-page metadata.
type Detail struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Intro    string `json:"intro,omitempty"`
	Cover    string `json:"cover,omitempty"`
	Category string `json:"category,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ChapterRef is one entry discovered on a table-of-contents page, prior
// to normalization.
type ChapterRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ChapterBody is a fetched chapter's title and plain-text content.
type ChapterBody struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// # Adapter

// Adapter is the Source Adapter for one rule.
type Adapter struct {
	rule   rule.Rule
	client *httpclient.Pool
	cache  *cache.Cache

	mu                  sync.Mutex
	consecutiveFailures int
	lastSuccess         time.Time

	sem chan struct{} // per-host concurrency cap
}

// New constructs an [Adapter] bound to r.
func New(r rule.Rule, client *httpclient.Pool, c *cache.Cache) *Adapter {
	return &Adapter{
		rule:   r,
		client: client,
		cache:  c,
		sem:    make(chan struct{}, constants.OutboundConcurrency),
	}
}

// Rule returns the adapter's underlying rule.
func (a *Adapter) Rule() rule.Rule { return a.rule }

// Healthy reports whether the source's consecutive-failure streak is
// below the blocked threshold, for the sources/health listing.
func (a *Adapter) Healthy() (healthy bool, consecutiveFailures int, lastSuccess time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.consecutiveFailures < constants.ChapterMaxAttempts, a.consecutiveFailures, a.lastSuccess
}

func (a *Adapter) recordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.consecutiveFailures = 0
	a.lastSuccess = time.Now()
}

func (a *Adapter) recordFailure() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.consecutiveFailures++
}

// # Search

// Search queries the source for keyword and returns at most
// constants.MaxHitsPerSource results.
func (a *Adapter) Search(ctx context.Context, keyword string) ([]Hit, error) {
	cacheKey := fmt.Sprintf("search:%d:%s", a.rule.ID, keyword)
	ttl := constants.SearchCacheTTL

	raw, err := a.cache.GetOrLoad(cacheKey, ttl, func() ([]byte, error) {
		return a.fetchSearchPage(ctx, keyword)
	})
	if err != nil {
		a.recordFailure()
		return nil, err
	}

	doc, err := htmlselect.Parse(string(raw))
	if err != nil {
		a.recordFailure()
		return nil, apperr.Parse("could not parse search results", err)
	}

	nodes := htmlselect.Nodes(doc.Selection, a.rule.Search.ListSelector)
	hits := make([]Hit, 0, constants.MaxHitsPerSource)
	var parseErr error
	nodes.EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if len(hits) >= constants.MaxHitsPerSource {
			return false
		}
		hit, err := a.parseHit(node)
		if err != nil {
			parseErr = err
			return true
		}
		hits = append(hits, hit)
		return true
	})
	if len(hits) == 0 && parseErr != nil {
		a.recordFailure()
		return nil, apperr.Parse("could not extract any search hit", parseErr)
	}

	a.recordSuccess()
	return hits, nil
}

func (a *Adapter) parseHit(node *goquery.Selection) (Hit, error) {
	title, err := htmlselect.Extract(node, a.rule.Search.TitleSelector)
	if err != nil || title == "" {
		return Hit{}, fmt.Errorf("source: extract title: %w", err)
	}
	author, _ := htmlselect.Extract(node, a.rule.Search.AuthorSelector)
	link, err := htmlselect.Extract(node, a.rule.Search.LinkSelector)
	if err != nil || link == "" {
		return Hit{}, fmt.Errorf("source: extract link: %w", err)
	}
	latest, _ := htmlselect.Extract(node, a.rule.Search.LatestSelector)

	return Hit{
		SourceID:   a.rule.ID,
		SourceName: a.rule.Name,
		Title:      title,
		Author:     author,
		URL:        htmlselect.AbsoluteURL(a.rule.BaseURL, link),
		Latest:     latest,
	}, nil
}

func (a *Adapter) fetchSearchPage(ctx context.Context, keyword string) ([]byte, error) {
	target := strings.ReplaceAll(a.rule.Search.URLTemplate, "{keyword}", url.QueryEscape(keyword))

	req := httpclient.Request{Method: string(a.rule.Search.Method), URL: target, Encoding: a.rule.Encoding}
	if a.rule.Search.Method == rule.MethodPOST {
		req.Body = []byte(strings.ReplaceAll(a.rule.Search.BodyTemplate, "{keyword}", keyword))
	}

	resp, err := a.doThrottled(ctx, req)
	if err != nil {
		return nil, toSourceError(err)
	}
	return []byte(resp.Body), nil
}

// # Detail

// Detail fetches and parses the novel detail page at pageURL.
func (a *Adapter) Detail(ctx context.Context, pageURL string) (Detail, error) {
	cacheKey := "detail:" + hashutil.CacheKey(pageURL)

	raw, err := a.cache.GetOrLoad(cacheKey, constants.DetailCacheTTL, func() ([]byte, error) {
		resp, err := a.doThrottled(ctx, httpclient.Request{Method: "GET", URL: pageURL, Encoding: a.rule.Encoding})
		if err != nil {
			return nil, toSourceError(err)
		}
		return []byte(resp.Body), nil
	})
	if err != nil {
		a.recordFailure()
		return Detail{}, err
	}

	doc, err := htmlselect.Parse(string(raw))
	if err != nil {
		a.recordFailure()
		return Detail{}, apperr.Parse("could not parse detail page", err)
	}

	title, err := htmlselect.Extract(doc.Selection, a.rule.Book.TitleSelector)
	if err != nil || title == "" {
		a.recordFailure()
		return Detail{}, apperr.Parse("could not extract novel title", err)
	}
	author, _ := htmlselect.Extract(doc.Selection, a.rule.Book.AuthorSelector)
	intro, _ := htmlselect.Extract(doc.Selection, a.rule.Book.IntroSelector)
	cover, _ := htmlselect.Extract(doc.Selection, a.rule.Book.CoverSelector)
	category, _ := htmlselect.Extract(doc.Selection, a.rule.Book.CategorySelector)
	status, _ := htmlselect.Extract(doc.Selection, a.rule.Book.StatusSelector)

	a.recordSuccess()
	return Detail{
		Title:    title,
		Author:   author,
		Intro:    intro,
		Cover:    htmlselect.AbsoluteURL(a.rule.BaseURL, cover),
		Category: category,
		Status:   status,
	}, nil
}

// # Table of contents

// TOC fetches every raw chapter reference from pageURL, following
// pagination up to constants.MaxTOCPages when the rule declares HasPages.
func (a *Adapter) TOC(ctx context.Context, pageURL string) ([]ChapterRef, error) {
	cacheKey := "toc:" + hashutil.CacheKey(pageURL)

	raw, err := a.cache.GetOrLoad(cacheKey, constants.TOCCacheTTL, func() ([]byte, error) {
		return a.fetchTOCPages(ctx, pageURL)
	})
	if err != nil {
		a.recordFailure()
		return nil, err
	}

	var refs []ChapterRef
	if err := json.Unmarshal(raw, &refs); err != nil {
		a.recordFailure()
		return nil, apperr.Internal(fmt.Errorf("source: decode cached toc: %w", err))
	}
	a.recordSuccess()
	return refs, nil
}

// fetchTOCPages walks pagination, concatenating every page's parsed
// chapter refs into one JSON-encoded slice suitable for caching.
func (a *Adapter) fetchTOCPages(ctx context.Context, pageURL string) ([]byte, error) {
	var all []ChapterRef
	current := pageURL

	maxPages := constants.MaxTOCPages
	for page := 0; page < maxPages; page++ {
		resp, err := a.doThrottled(ctx, httpclient.Request{Method: "GET", URL: current, Encoding: a.rule.Encoding})
		if err != nil {
			return nil, toSourceError(err)
		}

		doc, err := htmlselect.Parse(resp.Body)
		if err != nil {
			return nil, apperr.Parse("could not parse toc page", err)
		}

		nodes := htmlselect.Nodes(doc.Selection, a.rule.TOC.ListSelector)
		nodes.Each(func(_ int, node *goquery.Selection) {
			title, _ := htmlselect.Extract(node, a.rule.TOC.TitleExtractor)
			href, _ := htmlselect.Extract(node, a.rule.TOC.URLExtractor)
			if title == "" || href == "" {
				return
			}
			chapterURL := htmlselect.AbsoluteURL(a.rule.BaseURL, href)
			chapterURL = applyURLTransform(a.rule.TOC.URLTransform, chapterURL)
			all = append(all, ChapterRef{Title: title, URL: chapterURL})
		})

		if !a.rule.TOC.HasPages {
			break
		}
		nextHref, _ := htmlselect.Extract(doc.Selection, a.rule.TOC.NextPageSelector)
		if nextHref == "" {
			break
		}
		next := htmlselect.AbsoluteURL(a.rule.BaseURL, nextHref)
		if next == current {
			break
		}
		current = next
	}

	return json.Marshal(all)
}

func applyURLTransform(t *rule.URLTransform, chapterURL string) string {
	if t == nil {
		return chapterURL
	}
	re := compileCached(t.From)
	if re == nil {
		return chapterURL
	}
	return re.ReplaceAllString(chapterURL, t.To)
}

// # Regex cache

// compileCached compiles and memoizes ad/URL-transform patterns, which
// are evaluated once per rule but re-applied across every matching hit
// or chapter a source produces.
var (
	regexCacheMu sync.Mutex
	regexCache   = make(map[string]*regexp.Regexp)
)

func compileCached(pattern string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	regexCacheMu.Lock()
	defer regexCacheMu.Unlock()
	if re, ok := regexCache[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		regexCache[pattern] = nil
		return nil
	}
	regexCache[pattern] = re
	return re
}

// # Chapter

// Chapter fetches and parses a single chapter page, stripping ad nodes
// and ad-pattern text before returning the plain-text body.
func (a *Adapter) Chapter(ctx context.Context, pageURL string) (ChapterBody, error) {
	cacheKey := "chapter:" + hashutil.CacheKey(pageURL)

	raw, err := a.cache.GetOrLoad(cacheKey, constants.ChapterCacheTTL, func() ([]byte, error) {
		resp, err := a.doThrottled(ctx, httpclient.Request{Method: "GET", URL: pageURL, Encoding: a.rule.Encoding})
		if err != nil {
			return nil, toSourceError(err)
		}
		body, err := a.extractChapter(resp.Body)
		if err != nil {
			return nil, err
		}
		return json.Marshal(body)
	})
	if err != nil {
		a.recordFailure()
		return ChapterBody{}, err
	}

	var body ChapterBody
	if err := json.Unmarshal(raw, &body); err != nil {
		a.recordFailure()
		return ChapterBody{}, apperr.Internal(fmt.Errorf("source: decode cached chapter: %w", err))
	}

	a.recordSuccess()
	return body, nil
}

func (a *Adapter) extractChapter(html string) (ChapterBody, error) {
	doc, err := htmlselect.Parse(html)
	if err != nil {
		return ChapterBody{}, apperr.Parse("could not parse chapter page", err)
	}

	htmlselect.RemoveSelectors(doc.Selection, a.rule.Chapter.RemoveSelectors)

	title, err := htmlselect.Extract(doc.Selection, a.rule.Chapter.TitleSelector)
	if err != nil {
		return ChapterBody{}, apperr.Parse("could not extract chapter title", err)
	}
	content, err := htmlselect.ExtractParagraphs(doc.Selection, a.rule.Chapter.ContentSelector)
	if err != nil || content == "" {
		return ChapterBody{}, apperr.Parse("could not extract chapter content", err)
	}

	for _, pattern := range a.rule.Chapter.AdPatterns {
		re := compileCached(pattern)
		if re != nil {
			content = re.ReplaceAllString(content, "")
		}
	}

	return ChapterBody{Title: title, Content: strings.TrimSpace(content)}, nil
}

// # Outbound throttling

// doThrottled bounds per-host concurrency before delegating to the
// shared HTTP Client Pool.
func (a *Adapter) doThrottled(ctx context.Context, req httpclient.Request) (*httpclient.Response, error) {
	select {
	case a.sem <- struct{}{}:
		defer func() { <-a.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return a.client.Do(ctx, req)
}

// toSourceError maps a transport-level error to the SOURCE_BLOCKED or
// NETWORK app error kind (spec.md §7).
func toSourceError(err error) error {
	var netErr *httpclient.NetworkError
	if ok := asNetworkError(err, &netErr); ok {
		if netErr.SourceBlocked() {
			return apperr.SourceBlocked("source appears to be blocking requests", netErr)
		}
		return apperr.Network("request to source failed", netErr)
	}
	return apperr.Network("request to source failed", err)
}

func asNetworkError(err error, target **httpclient.NetworkError) bool {
	ne, ok := err.(*httpclient.NetworkError)
	if !ok {
		return false
	}
	*target = ne
	return true
}

