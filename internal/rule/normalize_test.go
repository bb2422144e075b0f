// Copyright (c) 2026 Novelforge. All rights reserved.

package rule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/internal/rule"
)

func TestParseFile_CanonicalShape(t *testing.T) {
	data := []byte(`[{
		"id": 1, "name": "example", "baseUrl": "https://example.com", "enabled": true,
		"search": {"urlTemplate": "https://example.com/s?q={keyword}", "method": "GET",
			"listSelector": "ul.list li", "titleSelector": "a@title", "linkSelector": "a@href"},
		"book": {"titleSelector": "h1.title"},
		"toc": {"listSelector": "ul.toc a", "titleExtractor": "text", "urlExtractor": "@href", "hasPages": false},
		"chapter": {"titleSelector": "h1", "contentSelector": "div.content"}
	}]`)

	rules, err := rule.ParseFile(data)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 1, rules[0].ID)
	assert.Equal(t, "https://example.com", rules[0].BaseURL)
	assert.Equal(t, rule.MethodGET, rules[0].Search.Method)
}

func TestParseFile_LegacyShapeNormalized(t *testing.T) {
	data := []byte(`[{
		"id": 2, "name": "legacy", "url": "https://legacy.example",
		"searchRule": {"url": "https://legacy.example/search?q=%s", "list": "div.result",
			"title": "a.title", "href": "a.title"},
		"detail": {"title": "h1.name"},
		"tocRule": {"list": "ol.chapters a", "title": "text", "href": "@href"},
		"content": {"title": "h1", "content": "#content"}
	}]`)

	rules, err := rule.ParseFile(data)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	r := rules[0]
	assert.Equal(t, "https://legacy.example", r.BaseURL)
	assert.Equal(t, "https://legacy.example/search?q={keyword}", r.Search.URLTemplate)
	assert.Equal(t, "div.result", r.Search.ListSelector)
	assert.Equal(t, "h1.name", r.Book.TitleSelector)
}

func TestParseFile_RejectsMissingRequiredSelectors(t *testing.T) {
	data := []byte(`[{
		"id": 3, "baseUrl": "https://x.example",
		"search": {"urlTemplate": "https://x.example/s?q={keyword}"},
		"book": {"titleSelector": "h1"},
		"toc": {"listSelector": "a", "titleExtractor": "text", "urlExtractor": "@href"},
		"chapter": {"titleSelector": "h1", "contentSelector": "#c"}
	}]`)

	_, err := rule.ParseFile(data)
	require.Error(t, err)
}

func TestParseFile_RejectsNonAbsoluteBaseURL(t *testing.T) {
	data := []byte(`[{
		"id": 4, "baseUrl": "example.com",
		"search": {"urlTemplate": "https://example.com/s?q={keyword}", "listSelector": "a", "titleSelector": "a", "linkSelector": "a"},
		"book": {"titleSelector": "h1"},
		"toc": {"listSelector": "a", "titleExtractor": "text", "urlExtractor": "@href"},
		"chapter": {"titleSelector": "h1", "contentSelector": "#c"}
	}]`)

	_, err := rule.ParseFile(data)
	require.Error(t, err)
}
