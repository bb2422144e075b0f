// Copyright (c) 2026 Novelforge. All rights reserved.

package download_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/internal/download"
	"github.com/novelforge/novelforge/internal/platform/cache"
	"github.com/novelforge/novelforge/internal/platform/httpclient"
	"github.com/novelforge/novelforge/internal/rule"
	"github.com/novelforge/novelforge/internal/source"
	"github.com/novelforge/novelforge/internal/tocnorm"
)

func newChapterAdapter(t *testing.T, handler http.HandlerFunc) *source.Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	r := rule.Rule{
		ID: 1, Name: "test", BaseURL: server.URL, Enabled: true, Encoding: "UTF-8",
		Search:  rule.SearchRule{URLTemplate: server.URL + "/s?q={keyword}", Method: rule.MethodGET, ListSelector: "a", TitleSelector: "a", LinkSelector: "a"},
		Book:    rule.BookRule{TitleSelector: "h1"},
		TOC:     rule.TOCRule{ListSelector: "a", TitleExtractor: "text", URLExtractor: "@href"},
		Chapter: rule.ChapterRule{TitleSelector: "h1.chapter-title", ContentSelector: "#content"},
	}
	pool := httpclient.New(4)
	c, err := cache.New(t.TempDir(), 64)
	require.NoError(t, err)
	return source.New(r, pool, c)
}

func chapterPage(title, content string) string {
	return fmt.Sprintf(`<html><body><h1 class="chapter-title">%s</h1><div id="content">%s</div></body></html>`, title, content)
}

func TestRun_FetchesAllChaptersInOrder(t *testing.T) {
	longContent := strings.Repeat("word ", 100)
	adapter := newChapterAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chapterPage("Chapter "+r.URL.Path[1:], longContent)))
	})

	toc := []tocnorm.Chapter{
		{Order: 1, Title: "Chapter 1", URL: adapter.Rule().BaseURL + "/1"},
		{Order: 2, Title: "Chapter 2", URL: adapter.Rule().BaseURL + "/2"},
	}

	var calls int64
	result, err := download.Run(context.Background(), adapter, toc, func(completed, failed, total int64, title string) {
		atomic.AddInt64(&calls, 1)
	})
	require.NoError(t, err)
	assert.Len(t, result.Chapters, 2)
	assert.Equal(t, 0, result.Failed)
	assert.Positive(t, atomic.LoadInt64(&calls))
}

func TestRun_EmptyTOCFails(t *testing.T) {
	adapter := newChapterAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := download.Run(context.Background(), adapter, nil, nil)
	require.Error(t, err)
}

func TestRun_MajorityFailureAbortsTask(t *testing.T) {
	adapter := newChapterAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	toc := []tocnorm.Chapter{
		{Order: 1, Title: "Chapter 1", URL: adapter.Rule().BaseURL + "/1"},
		{Order: 2, Title: "Chapter 2", URL: adapter.Rule().BaseURL + "/2"},
	}

	_, err := download.Run(context.Background(), adapter, toc, nil)
	require.Error(t, err)
}
