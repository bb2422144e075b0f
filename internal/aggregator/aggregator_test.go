// Copyright (c) 2026 Novelforge. All rights reserved.

package aggregator_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/internal/aggregator"
	"github.com/novelforge/novelforge/internal/platform/cache"
	"github.com/novelforge/novelforge/internal/platform/httpclient"
	"github.com/novelforge/novelforge/internal/rule"
	"github.com/novelforge/novelforge/internal/source"
)

type staticRegistry struct {
	adapters []*source.Adapter
}

func (r staticRegistry) Adapters() []*source.Adapter { return r.adapters }

func newAdapterAgainst(t *testing.T, body string, id int, name string) *source.Adapter {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	r := rule.Rule{
		ID:       id,
		Name:     name,
		BaseURL:  server.URL,
		Enabled:  true,
		Encoding: "UTF-8",
		Search: rule.SearchRule{
			URLTemplate:    server.URL + "/search?q={keyword}",
			Method:         rule.MethodGET,
			ListSelector:   "ul.results li",
			TitleSelector:  "a.title@text",
			AuthorSelector: "span.author@text",
			LatestSelector: "span.latest@text",
			LinkSelector:   "a.title@href",
		},
		Book:    rule.BookRule{TitleSelector: "h1"},
		TOC:     rule.TOCRule{ListSelector: "a", TitleExtractor: "text", URLExtractor: "@href"},
		Chapter: rule.ChapterRule{TitleSelector: "h1", ContentSelector: "#c"},
	}
	pool := httpclient.New(4)
	c, err := cache.New(t.TempDir(), 16)
	require.NoError(t, err)
	return source.New(r, pool, c)
}

func TestSearchAll_MergesAndRanksAcrossSources(t *testing.T) {
	pageA := `<html><body><ul class="results"><li><a class="title" href="/1">Solo Leveling</a><span class="author">Chugong</span></li></ul></body></html>`
	pageB := `<html><body><ul class="results"><li><a class="title" href="/2">Unrelated Novel</a><span class="author">Someone</span></li></ul></body></html>`

	reg := staticRegistry{adapters: []*source.Adapter{
		newAdapterAgainst(t, pageA, 1, "source-a"),
		newAdapterAgainst(t, pageB, 2, "source-b"),
	}}

	results, failedSources, err := aggregator.SearchAll(context.Background(), reg, "Solo Leveling", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, failedSources)
	require.Len(t, results, 2)
	assert.Equal(t, "Solo Leveling", results[0].Title)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchAll_DedupesAcrossSources(t *testing.T) {
	page := `<html><body><ul class="results"><li><a class="title" href="/1">Solo Leveling</a><span class="author">Chugong</span></li></ul></body></html>`

	reg := staticRegistry{adapters: []*source.Adapter{
		newAdapterAgainst(t, page, 1, "source-a"),
		newAdapterAgainst(t, page, 2, "source-b"),
	}}

	results, _, err := aggregator.SearchAll(context.Background(), reg, "Solo Leveling", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchAll_DedupeKeepsHigherScoringHit(t *testing.T) {
	// Both sources report the identical (title, author) key, so they
	// collide during dedup. source-b's "latest chapter" field also
	// mentions the keyword, earning it a higher score than source-a's.
	// The surviving entry must be source-b's, not whichever arrived first.
	pageA := `<html><body><ul class="results"><li><a class="title" href="/1">Solo Leveling</a><span class="author">Chugong</span><span class="latest">Chapter 1000</span></li></ul></body></html>`
	pageB := `<html><body><ul class="results"><li><a class="title" href="/1">Solo Leveling</a><span class="author">Chugong</span><span class="latest">Solo Leveling Chapter 1</span></li></ul></body></html>`

	reg := staticRegistry{adapters: []*source.Adapter{
		newAdapterAgainst(t, pageA, 1, "source-a"),
		newAdapterAgainst(t, pageB, 2, "source-b"),
	}}

	results, _, err := aggregator.SearchAll(context.Background(), reg, "Solo Leveling", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Solo Leveling Chapter 1", results[0].Latest)
}

func TestSearchAll_ClampsMaxResults(t *testing.T) {
	page := `<html><body><ul class="results"><li><a class="title" href="/1">Solo Leveling</a><span class="author">Chugong</span></li></ul></body></html>`
	reg := staticRegistry{adapters: []*source.Adapter{newAdapterAgainst(t, page, 1, "source-a")}}

	results, _, err := aggregator.SearchAll(context.Background(), reg, "Solo Leveling", -5)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestSearchAll_OneSourceFailingDoesNotAbortOthers(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	failingRule := rule.Rule{
		ID: 99, Name: "failing", BaseURL: failing.URL, Enabled: true, Encoding: "UTF-8",
		Search: rule.SearchRule{
			URLTemplate: failing.URL + "/search?q={keyword}", Method: rule.MethodGET,
			ListSelector: "ul.results li", TitleSelector: "a.title@text", LinkSelector: "a.title@href",
		},
		Book:    rule.BookRule{TitleSelector: "h1"},
		TOC:     rule.TOCRule{ListSelector: "a", TitleExtractor: "text", URLExtractor: "@href"},
		Chapter: rule.ChapterRule{TitleSelector: "h1", ContentSelector: "#c"},
	}
	pool := httpclient.New(4)
	c, err := cache.New(t.TempDir(), 16)
	require.NoError(t, err)
	failingAdapter := source.New(failingRule, pool, c)

	page := `<html><body><ul class="results"><li><a class="title" href="/1">Solo Leveling</a><span class="author">Chugong</span></li></ul></body></html>`
	workingAdapter := newAdapterAgainst(t, page, 1, "source-a")

	reg := staticRegistry{adapters: []*source.Adapter{failingAdapter, workingAdapter}}

	results, failedSources, err := aggregator.SearchAll(context.Background(), reg, "Solo Leveling", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, failedSources)
	require.Len(t, results, 1)
	assert.Equal(t, "Solo Leveling", results[0].Title)
}
