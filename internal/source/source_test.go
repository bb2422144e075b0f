// Copyright (c) 2026 Novelforge. All rights reserved.

package source_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/internal/platform/cache"
	"github.com/novelforge/novelforge/internal/platform/httpclient"
	"github.com/novelforge/novelforge/internal/rule"
	"github.com/novelforge/novelforge/internal/source"
)

const searchPage = `
<html><body>
  <ul class="results">
    <li><a class="title" href="/book/1">Solo Leveling</a><span class="author">Chugong</span></li>
    <li><a class="title" href="/book/2">Second Book</a><span class="author">Someone</span></li>
    <li><a class="title" href="/book/3">Third Book</a><span class="author">Someone Else</span></li>
  </ul>
</body></html>`

const detailPage = `
<html><body>
  <h1 class="name">Solo Leveling</h1>
  <span class="author">Chugong</span>
  <div class="intro">A hunter story.</div>
</body></html>`

func newTestAdapter(t *testing.T, server *httptest.Server) *source.Adapter {
	t.Helper()
	r := rule.Rule{
		ID:      1,
		Name:    "test-source",
		BaseURL: server.URL,
		Enabled: true,
		Encoding: "UTF-8",
		Search: rule.SearchRule{
			URLTemplate:    server.URL + "/search?q={keyword}",
			Method:         rule.MethodGET,
			ListSelector:   "ul.results li",
			TitleSelector:  "a.title@text",
			AuthorSelector: "span.author@text",
			LinkSelector:   "a.title@href",
		},
		Book: rule.BookRule{
			TitleSelector:  "h1.name@text",
			AuthorSelector: "span.author@text",
			IntroSelector:  "div.intro@text",
		},
		TOC: rule.TOCRule{
			ListSelector:   "ol.chapters a",
			TitleExtractor: "text",
			URLExtractor:   "@href",
		},
		Chapter: rule.ChapterRule{
			TitleSelector:   "h1",
			ContentSelector: "#content",
		},
	}
	pool := httpclient.New(4)
	c, err := cache.New(t.TempDir(), 16)
	require.NoError(t, err)
	return source.New(r, pool, c)
}

func TestAdapter_Search_CapsAtMaxHitsPerSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(searchPage))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server)
	hits, err := adapter.Search(context.Background(), "solo leveling")
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	assert.Equal(t, "Solo Leveling", hits[0].Title)
	assert.Equal(t, "Chugong", hits[0].Author)
	assert.Equal(t, server.URL+"/book/1", hits[0].URL)
}

func TestAdapter_Detail_ParsesMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailPage))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server)
	detail, err := adapter.Detail(context.Background(), server.URL+"/book/1")
	require.NoError(t, err)
	assert.Equal(t, "Solo Leveling", detail.Title)
	assert.Equal(t, "Chugong", detail.Author)
	assert.Equal(t, "A hunter story.", detail.Intro)
}

func TestAdapter_Chapter_PreservesParagraphBreaks(t *testing.T) {
	page := `<html><body><h1>Chapter 1</h1><div id="content"><p>It was a dark night.</p><p>Then the rain came.</p></div></body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server)
	body, err := adapter.Chapter(context.Background(), server.URL+"/chapter/1")
	require.NoError(t, err)
	assert.Equal(t, "It was a dark night.\nThen the rain came.", body.Content)
}

func TestAdapter_Healthy_TracksConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server)
	for i := 0; i < 3; i++ {
		_, err := adapter.Search(context.Background(), "anything")
		require.Error(t, err)
	}

	healthy, failures, _ := adapter.Healthy()
	assert.False(t, healthy)
	assert.GreaterOrEqual(t, failures, 3)
}
