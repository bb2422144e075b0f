// Copyright (c) 2026 Novelforge. All rights reserved.

package tocnorm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/novelforge/novelforge/internal/source"
	"github.com/novelforge/novelforge/internal/tocnorm"
)

func TestNormalize_DropsNoiseAndEmptyEntries(t *testing.T) {
	raw := []source.ChapterRef{
		{Title: "Chapter 1: Awakening", URL: "/c/1"},
		{Title: "目录", URL: "/index"},
		{Title: "", URL: "/empty"},
		{Title: "Chapter 2", URL: ""},
		{Title: "下一页", URL: "/next"},
	}

	result := tocnorm.Normalize(raw)
	assert.Len(t, result, 1)
	assert.Equal(t, "Chapter 1: Awakening", result[0].Title)
	assert.Equal(t, 1, result[0].Order)
}

func TestNormalize_DedupesByURL(t *testing.T) {
	raw := []source.ChapterRef{
		{Title: "Chapter 1", URL: "/c/1"},
		{Title: "Chapter 1 (mirror)", URL: "/c/1"},
	}
	result := tocnorm.Normalize(raw)
	assert.Len(t, result, 1)
}

func TestNormalize_DedupesByChapterNumber(t *testing.T) {
	raw := []source.ChapterRef{
		{Title: "Chapter 1: The Beginning", URL: "/c/1"},
		{Title: "Chapter 1 - Special Edition", URL: "/c/1-alt"},
	}
	result := tocnorm.Normalize(raw)
	assert.Len(t, result, 1)
	assert.Equal(t, "Chapter 1: The Beginning", result[0].Title)
}

func TestNormalize_DedupesBySimilarTitle(t *testing.T) {
	raw := []source.ChapterRef{
		{Title: "A New Beginning Awaits Us Here", URL: "/c/1"},
		{Title: "A New Beginning Awaits Us Here!", URL: "/c/2"},
	}
	result := tocnorm.Normalize(raw)
	assert.Len(t, result, 1)
}

func TestNormalize_SortsByDetectedChapterNumber(t *testing.T) {
	raw := []source.ChapterRef{
		{Title: "Chapter 3", URL: "/c/3"},
		{Title: "Chapter 1", URL: "/c/1"},
		{Title: "Chapter 2", URL: "/c/2"},
	}
	result := tocnorm.Normalize(raw)
	assert.Equal(t, []string{"/c/1", "/c/2", "/c/3"}, []string{result[0].URL, result[1].URL, result[2].URL})
	assert.Equal(t, []int{1, 2, 3}, []int{result[0].Order, result[1].Order, result[2].Order})
}

func TestNormalize_UnnumberedEntriesKeepRelativeOrder(t *testing.T) {
	raw := []source.ChapterRef{
		{Title: "Prologue", URL: "/p"},
		{Title: "Foreword", URL: "/f"},
	}
	result := tocnorm.Normalize(raw)
	assert.Equal(t, "/p", result[0].URL)
	assert.Equal(t, "/f", result[1].URL)
}

func TestNormalize_UnnumberedEntriesAppearAfterNumberedOnes(t *testing.T) {
	raw := []source.ChapterRef{
		{Title: "Afterword", URL: "/after"},
		{Title: "Chapter 2", URL: "/c/2"},
		{Title: "Foreword", URL: "/fore"},
		{Title: "Chapter 1", URL: "/c/1"},
	}
	result := tocnorm.Normalize(raw)
	urls := make([]string, len(result))
	for i, c := range result {
		urls[i] = c.URL
	}
	assert.Equal(t, []string{"/c/1", "/c/2", "/after", "/fore"}, urls)
}

func TestNormalize_KeepsBareNumberedChapterTitle(t *testing.T) {
	raw := []source.ChapterRef{
		{Title: "第5章", URL: "/c/5"},
	}
	result := tocnorm.Normalize(raw)
	assert.Len(t, result, 1)
	assert.Equal(t, "第5章", result[0].Title)
}
