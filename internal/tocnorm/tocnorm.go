// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package tocnorm normalizes a raw table of contents (spec.md §4.6): it
drops empty, invalid, and navigation-noise entries, deduplicates by URL,
chapter number, and title similarity, orders entries by detected chapter
number, and reassigns a contiguous 1..N order.
*/
package tocnorm

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/novelforge/novelforge/internal/source"
	"github.com/novelforge/novelforge/pkg/textnorm"
)

// Chapter is one normalized table-of-contents entry.
type Chapter struct {
	Order  int    `json:"order"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Number int    `json:"number,omitempty"` // detected chapter number, 0 if none found
}

// noisePatterns match titles that carry no real chapter content: table-
// of-contents navigation chrome, pagination controls, and placeholder
// rows some sources leave in their chapter lists.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^第$`),
	regexp.MustCompile(`^章$`),
	regexp.MustCompile(`目录`),
	regexp.MustCompile(`返回`),
	regexp.MustCompile(`上一页`),
	regexp.MustCompile(`下一页`),
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`^[[:punct:]]+$`),
}

// chapterNumberPattern extracts a leading or embedded chapter number
// from a title, covering both "Chapter 12" and "第12章" styles.
var chapterNumberPattern = regexp.MustCompile(`(?i)(?:chapter\s*|第\s*)(\d+)`)

// Normalize transforms raw into a deduplicated, ordered chapter list.
func Normalize(raw []source.ChapterRef) []Chapter {
	candidates := make([]Chapter, 0, len(raw))
	for _, ref := range raw {
		title := strings.TrimSpace(ref.Title)
		url := strings.TrimSpace(ref.URL)
		if title == "" || url == "" || isNoise(title) {
			continue
		}
		candidates = append(candidates, Chapter{
			Title:  title,
			URL:    url,
			Number: detectNumber(title),
		})
	}

	deduped := dedupeByURL(candidates)
	deduped = dedupeByNumber(deduped)
	deduped = dedupeBySimilarTitle(deduped)

	ordered := orderByNumber(deduped)

	for i := range ordered {
		ordered[i].Order = i + 1
	}
	return ordered
}

// orderByNumber partitions chapters into numbered and unnumbered, sorts
// the numbered block ascending by detected chapter number, and appends
// the unnumbered block afterward in its original (stable) order.
func orderByNumber(chapters []Chapter) []Chapter {
	numbered := make([]Chapter, 0, len(chapters))
	unnumbered := make([]Chapter, 0, len(chapters))
	for _, c := range chapters {
		if c.Number == 0 {
			unnumbered = append(unnumbered, c)
		} else {
			numbered = append(numbered, c)
		}
	}

	sort.SliceStable(numbered, func(i, j int) bool {
		return numbered[i].Number < numbered[j].Number
	})

	return append(numbered, unnumbered...)
}

func isNoise(title string) bool {
	for _, re := range noisePatterns {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

func detectNumber(title string) int {
	match := chapterNumberPattern.FindStringSubmatch(title)
	if len(match) < 2 {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return n
}

// # Dedup passes

func dedupeByURL(chapters []Chapter) []Chapter {
	seen := make(map[string]bool, len(chapters))
	result := make([]Chapter, 0, len(chapters))
	for _, c := range chapters {
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		result = append(result, c)
	}
	return result
}

// dedupeByNumber keeps only the first entry for each detected chapter
// number; unnumbered entries (Number == 0) all pass through untouched,
// since 0 is not a real chapter number to collide on.
func dedupeByNumber(chapters []Chapter) []Chapter {
	seen := make(map[int]bool, len(chapters))
	result := make([]Chapter, 0, len(chapters))
	for _, c := range chapters {
		if c.Number != 0 {
			if seen[c.Number] {
				continue
			}
			seen[c.Number] = true
		}
		result = append(result, c)
	}
	return result
}

// dedupeBySimilarTitle drops any entry whose normalized title is at
// least 90% similar (by normalized Levenshtein distance) to an
// already-kept entry's title.
func dedupeBySimilarTitle(chapters []Chapter) []Chapter {
	kept := make([]Chapter, 0, len(chapters))
	keptNormalized := make([]string, 0, len(chapters))

	for _, c := range chapters {
		normalized := textnorm.Normalize(c.Title)
		duplicate := false
		for _, existing := range keptNormalized {
			if similarity(normalized, existing) >= 0.9 {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, c)
		keptNormalized = append(keptNormalized, normalized)
	}
	return kept
}

// similarity returns 1 - (Levenshtein distance / max length), in [0, 1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1
	}
	distance := levenshtein(a, b)
	return 1 - float64(distance)/float64(maxLen)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
