// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package download implements the Download Orchestrator (spec.md §4.7): it
fetches every chapter of a novel in politeness-throttled batches, retries
individual chapter failures, and reports progress through a callback as
it goes. A task only fails outright when its precondition (detail/TOC)
fails or more than half its chapters could not be fetched even after
retries.

The batch/retry/progress shape follows the local ingestion pipeline this
package is modeled after: a bounded worker batch per stage, a
current/total/phase progress callback, and atomic counters safe to read
concurrently with the run in progress.
*/
package download

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/novelforge/novelforge/internal/platform/apperr"
	"github.com/novelforge/novelforge/internal/platform/constants"
	"github.com/novelforge/novelforge/internal/source"
	"github.com/novelforge/novelforge/internal/tocnorm"
)

// ChapterResult is one fetched (or failed) chapter in final order.
type ChapterResult struct {
	Order   int
	Title   string
	Content string
	Failed  bool
}

// ProgressCallback is invoked after each chapter attempt completes,
// mirroring the (current, total, phase) shape used elsewhere in the
// codebase for long-running ingestion-style jobs. completed and failed
// are tracked as separate counters, so completed+failed == total holds
// once every chapter has been attempted; completed never includes
// chapters that exhausted all retries.
type ProgressCallback func(completed, failed, total int64, currentTitle string)

// Result summarizes a completed (or partially completed) download.
type Result struct {
	Detail   source.Detail
	Chapters []ChapterResult
	Failed   int
}

// Run downloads every chapter in toc from adapter, reporting progress
// through onProgress (which may be nil). Chapters are fetched in batches
// of constants.DownloadBatchSize with a randomized politeness sleep
// between batches; each chapter is retried up to
// constants.ChapterMaxAttempts times with exponential, jittered backoff.
//
// Run fails outright when toc is empty, when ctx is canceled, or when
// more than half the chapters could not be fetched; otherwise failed
// chapters are included in the result with
// Failed=true and a placeholder body, and the caller decides how to
// present that partial result.
func Run(ctx context.Context, adapter *source.Adapter, toc []tocnorm.Chapter, onProgress ProgressCallback) (*Result, error) {
	total := int64(len(toc))
	if total == 0 {
		return nil, apperr.Parse("table of contents has no chapters after normalization", nil)
	}

	results := make([]ChapterResult, len(toc))
	var completed, failed int64

	report := func(title string) {
		if onProgress != nil {
			onProgress(atomic.LoadInt64(&completed), atomic.LoadInt64(&failed), total, title)
		}
	}

	for start := 0; start < len(toc); start += constants.DownloadBatchSize {
		end := min(start+constants.DownloadBatchSize, len(toc))
		batch := toc[start:end]

		var wg sync.WaitGroup
		for offset, chapter := range batch {
			idx := start + offset
			chapter := chapter
			wg.Add(1)
			go func() {
				defer wg.Done()
				body, ok := fetchWithRetry(ctx, adapter, chapter)
				if ok {
					results[idx] = ChapterResult{Order: chapter.Order, Title: body.Title, Content: body.Content}
					atomic.AddInt64(&completed, 1)
				} else {
					results[idx] = ChapterResult{Order: chapter.Order, Title: chapter.Title, Content: failurePlaceholder(chapter.Title), Failed: true}
					atomic.AddInt64(&failed, 1)
				}
				report(results[idx].Title)
			}()
		}
		wg.Wait()

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if end < len(toc) {
			sleepPoliteness(ctx)
		}
	}

	if float64(failed) > float64(total)/2 {
		return nil, apperr.Network(fmt.Sprintf("more than half of %d chapters failed to download", total), nil)
	}

	return &Result{Chapters: results, Failed: int(failed)}, nil
}

// fetchWithRetry fetches one chapter, retrying up to
// constants.ChapterMaxAttempts times with exponential, jittered backoff.
func fetchWithRetry(ctx context.Context, adapter *source.Adapter, chapter tocnorm.Chapter) (source.ChapterBody, bool) {
	for attempt := 1; attempt <= constants.ChapterMaxAttempts; attempt++ {
		body, err := adapter.Chapter(ctx, chapter.URL)
		if err == nil && len(body.Content) >= constants.MinChapterBytes {
			return body, true
		}
		if attempt < constants.ChapterMaxAttempts {
			select {
			case <-time.After(chapterBackoff(attempt)):
			case <-ctx.Done():
				return source.ChapterBody{}, false
			}
		}
	}
	return source.ChapterBody{}, false
}

func chapterBackoff(attempt int) time.Duration {
	base := 2 * time.Second
	exp := 1 << (attempt - 1)
	jitter := 1 + rand.Float64()*0.5
	return time.Duration(float64(base) * float64(exp) * jitter)
}

func sleepPoliteness(ctx context.Context) {
	span := constants.DownloadBatchSleepMax - constants.DownloadBatchSleepMin
	sleep := constants.DownloadBatchSleepMin + time.Duration(rand.Float64()*float64(span))
	select {
	case <-time.After(sleep):
	case <-ctx.Done():
	}
}

func failurePlaceholder(title string) string {
	return fmt.Sprintf("[This chapter could not be downloaded: %q]", title)
}
