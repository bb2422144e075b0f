// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package aggregator implements cross-source search fan-out (spec.md
§4.5): it queries every enabled [source.Adapter] concurrently, merges
the results, scores each hit against the original keyword, deduplicates
by normalized (title, author) keeping the higher-scoring hit, and
returns the top-ranked results.

Fan-out is bounded by an [golang.org/x/sync/errgroup.Group], grounded on
the same pattern the upstream controller this module is modeled after
uses for its own concurrent per-ID refreshes: one goroutine per source,
errors collected rather than aborting the whole search, each bounded by
its own per-adapter timeout nested inside the caller's overall deadline.
*/
package aggregator

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/novelforge/novelforge/internal/platform/constants"
	"github.com/novelforge/novelforge/internal/source"
	"github.com/novelforge/novelforge/pkg/textnorm"
)

// # Scoring weights (spec.md §4.5)

const (
	scoreTitleExact       = 100.0
	scoreTitleContainsMax = 50.0
	scoreAuthorExact      = 30.0
	scoreAuthorContains   = 20.0
	scoreMiscContains     = 10.0
)

// Registry yields the set of adapters to fan out a search across.
type Registry interface {
	Adapters() []*source.Adapter
}

// Result is one ranked, deduplicated search hit.
type Result struct {
	source.Hit
	Score float64 `json:"score"`
}

// SearchAll queries every adapter in reg concurrently, merges and scores
// the results against keyword, and returns at most maxResults entries
// sorted by descending score, plus the count of enabled sources that
// failed or timed out. maxResults is clamped to
// [1, constants.MaxMaxResults]; zero or negative defaults to
// constants.DefaultMaxResults.
func SearchAll(ctx context.Context, reg Registry, keyword string, maxResults int) ([]Result, int, error) {
	maxResults = clampMaxResults(maxResults)

	hits, failedSources := fanOut(ctx, reg.Adapters(), keyword)

	scored := dedupe(score(hits, keyword))

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].jitter > scored[j].jitter
	})

	if len(scored) > maxResults {
		scored = scored[:maxResults]
	}

	results := make([]Result, 0, len(scored))
	for _, s := range scored {
		results = append(results, Result{Hit: s.hit, Score: s.Score})
	}
	return results, failedSources, nil
}

func clampMaxResults(maxResults int) int {
	if maxResults <= 0 {
		return constants.DefaultMaxResults
	}
	if maxResults > constants.MaxMaxResults {
		return constants.MaxMaxResults
	}
	return maxResults
}

// # Fan-out

// fanOut queries every adapter concurrently, bounding each by its own
// per-adapter timeout nested inside ctx's overall deadline. A single
// adapter's failure never aborts the others' results: each goroutine
// swallows its own error so the group never short-circuits the rest; it
// is instead counted in the returned failedSources total.
func fanOut(ctx context.Context, adapters []*source.Adapter, keyword string) (hits []source.Hit, failedSources int) {
	var (
		mu     sync.Mutex
		all    []source.Hit
		failed int
	)

	group := new(errgroup.Group)
	group.SetLimit(constants.OutboundConcurrency)

	for _, adapter := range adapters {
		if !adapter.Rule().Enabled {
			continue
		}
		adapter := adapter
		group.Go(func() error {
			adapterCtx, cancel := context.WithTimeout(ctx, constants.DefaultSourceTimeout)
			defer cancel()

			result, err := adapter.Search(adapterCtx, keyword)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				return nil
			}
			all = append(all, result...)
			return nil
		})
	}

	group.Wait()
	return all, failed
}

// # Dedup

// dedupe collapses hits that share a normalized (title, author) key,
// keeping the higher-scoring hit on collision (spec.md §4.5).
func dedupe(hits []scored) []scored {
	best := make(map[string]int, len(hits))
	result := make([]scored, 0, len(hits))
	for _, hit := range hits {
		key := textnorm.Normalize(hit.hit.Title) + "|" + textnorm.Normalize(hit.hit.Author)
		if idx, ok := best[key]; ok {
			if hit.Score > result[idx].Score {
				result[idx] = hit
			}
			continue
		}
		best[key] = len(result)
		result = append(result, hit)
	}
	return result
}

// # Scoring

type scored struct {
	hit    source.Hit
	Score  float64
	jitter float64
}

func score(hits []source.Hit, keyword string) []scored {
	tokens := tokenize(keyword)
	result := make([]scored, 0, len(hits))
	for _, hit := range hits {
		result = append(result, scored{
			hit:    hit,
			Score:  scoreHit(hit, keyword, tokens),
			jitter: rand.Float64() * 0.1,
		})
	}
	return result
}

func scoreHit(hit source.Hit, keyword string, tokens []string) float64 {
	title := textnorm.Normalize(hit.Title)
	author := textnorm.Normalize(hit.Author)
	normalizedKeyword := textnorm.Normalize(keyword)

	var total float64
	switch {
	case title == normalizedKeyword:
		total += scoreTitleExact
	case strings.Contains(title, normalizedKeyword):
		total += scoreTitleContainsMax
	default:
		total += tokenOverlapScore(title, tokens)
	}

	switch {
	case author == normalizedKeyword:
		total += scoreAuthorExact
	case author != "" && strings.Contains(author, normalizedKeyword):
		total += scoreAuthorContains
	}

	if hit.Latest != "" && strings.Contains(textnorm.Normalize(hit.Latest), normalizedKeyword) {
		total += scoreMiscContains
	}

	return total
}

// tokenOverlapScore scores a partial title match as
// 50 x (matched token length) / (title length), summed over every
// keyword token found in title.
func tokenOverlapScore(title string, tokens []string) float64 {
	if len(title) == 0 {
		return 0
	}
	var matchedLen int
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if strings.Contains(title, token) {
			matchedLen += len([]rune(token))
		}
	}
	if matchedLen == 0 {
		return 0
	}
	ratio := float64(matchedLen) / float64(len([]rune(title)))
	if ratio > 1 {
		ratio = 1
	}
	return scoreTitleContainsMax * ratio
}

// tokenize splits a normalized keyword into CJK-aware tokens: a run of
// CJK ideographs yields one token per character (since CJK text carries
// no whitespace word boundaries), while Latin/digit runs are split on
// whitespace as ordinary words.
func tokenize(keyword string) []string {
	normalized := textnorm.Normalize(keyword)
	var tokens []string
	var wordBuf strings.Builder

	flushWord := func() {
		if wordBuf.Len() > 0 {
			tokens = append(tokens, wordBuf.String())
			wordBuf.Reset()
		}
	}

	for _, r := range normalized {
		switch {
		case unicode.IsSpace(r):
			flushWord()
		case isCJK(r):
			flushWord()
			tokens = append(tokens, string(r))
		default:
			wordBuf.WriteRune(r)
		}
	}
	flushWord()
	return tokens
}

// isCJK reports whether r falls in a CJK ideograph range.
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
