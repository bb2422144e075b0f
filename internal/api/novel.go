// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package api implements the HTTP façade for search, detail, table of
contents, and download (spec.md §6). Handlers here do no scraping or
selector work themselves — they validate the request, delegate to
[github.com/novelforge/novelforge/internal/aggregator],
[github.com/novelforge/novelforge/internal/source],
[github.com/novelforge/novelforge/internal/tocnorm],
[github.com/novelforge/novelforge/internal/download], and
[github.com/novelforge/novelforge/internal/assembler], and shape the
response envelope.
*/
package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/novelforge/novelforge/internal/aggregator"
	"github.com/novelforge/novelforge/internal/assembler"
	"github.com/novelforge/novelforge/internal/download"
	"github.com/novelforge/novelforge/internal/platform/apperr"
	"github.com/novelforge/novelforge/internal/platform/config"
	requestutil "github.com/novelforge/novelforge/internal/platform/request"
	"github.com/novelforge/novelforge/internal/platform/respond"
	"github.com/novelforge/novelforge/internal/source"
	"github.com/novelforge/novelforge/internal/task"
	"github.com/novelforge/novelforge/internal/tocnorm"
)

// # Handler

// NovelHandler implements /search, /detail, /toc, /download, and the
// /download/* task-polling trio.
type NovelHandler struct {
	registry *SourceRegistry
	tasks    *task.Registry
	cfg      *config.Config
	logger   *slog.Logger
}

// NewNovelHandler constructs a [NovelHandler].
func NewNovelHandler(registry *SourceRegistry, tasks *task.Registry, cfg *config.Config, logger *slog.Logger) *NovelHandler {
	return &NovelHandler{registry: registry, tasks: tasks, cfg: cfg, logger: logger}
}

// # Search

// Search handles GET /search.
func (h *NovelHandler) Search(w http.ResponseWriter, r *http.Request) {
	keyword := requestutil.Query(r, "keyword")
	if keyword == "" {
		respond.Error(w, r, apperr.Input("keyword is required"))
		return
	}
	maxResults := requestutil.QueryInt(r, "maxResults", 0)

	start := time.Now()
	results, failedSources, err := aggregator.SearchAll(r.Context(), h.registry, keyword, maxResults)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.OKWithMeta(w, results, map[string]any{
		"durationMs":    time.Since(start).Milliseconds(),
		"cached":        false,
		"totalResults":  len(results),
		"failedSources": failedSources,
	})
}

// # Detail

// Detail handles GET /detail.
func (h *NovelHandler) Detail(w http.ResponseWriter, r *http.Request) {
	pageURL, adapter, sourceID, err := h.resolveSource(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	start := time.Now()
	detail, err := adapter.Detail(r.Context(), pageURL)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.OKWithMeta(w, detail, map[string]any{
		"durationMs": time.Since(start).Milliseconds(),
		"sourceId":   sourceID,
	})
}

// # Table of contents

// TOC handles GET /toc.
func (h *NovelHandler) TOC(w http.ResponseWriter, r *http.Request) {
	pageURL, adapter, _, err := h.resolveSource(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	start := time.Now()
	refs, err := adapter.TOC(r.Context(), pageURL)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	chapters := tocnorm.Normalize(refs)
	respond.OKWithMeta(w, chapters, map[string]any{
		"durationMs":    time.Since(start).Milliseconds(),
		"totalChapters": len(chapters),
	})
}

// # Download (synchronous, small novels)

// Download handles GET /download: it runs the whole pipeline inline,
// blocks until the task reaches a terminal state, and streams the
// finished artifact back in the same request. Callers downloading a
// large novel should prefer /download/start instead.
func (h *NovelHandler) Download(w http.ResponseWriter, r *http.Request) {
	pageURL, adapter, _, err := h.resolveSource(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	format, err := parseFormat(requestutil.Query(r, "format"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	start := time.Now()
	taskID := h.tasks.Submit(context.Background(), func(ctx context.Context, t *task.Task) (string, int, error) {
		return h.runDownload(ctx, adapter, pageURL, format, t)
	})

	snapshot, err := h.awaitTerminal(r.Context(), taskID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if snapshot.Status == task.StatusFailed {
		respond.Error(w, r, apperr.Network(snapshot.Error, nil))
		return
	}

	h.streamArtifact(w, snapshot, taskID, time.Since(start))
}

// # Asynchronous download task

// DownloadStart handles POST /download/start.
func (h *NovelHandler) DownloadStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL      string `json:"url"`
		SourceID int    `json:"sourceId"`
		Format   string `json:"format"`
	}
	if err := requestutil.DecodeJSON(r, &body); err != nil {
		respond.Error(w, r, err)
		return
	}
	if body.URL == "" {
		respond.Error(w, r, apperr.Input("url is required"))
		return
	}
	adapter, err := h.registry.Get(body.SourceID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	format, err := parseFormat(body.Format)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	// Download tasks outlive the request; they are bound to a background
	// context rather than r.Context(), which is canceled the moment this
	// handler returns.
	taskID := h.tasks.Submit(context.Background(), func(ctx context.Context, t *task.Task) (string, int, error) {
		return h.runDownload(ctx, adapter, body.URL, format, t)
	})

	respond.Accepted(w, map[string]string{"task_id": taskID})
}

// DownloadProgress handles GET /download/progress.
func (h *NovelHandler) DownloadProgress(w http.ResponseWriter, r *http.Request) {
	taskID := requestutil.Query(r, "task_id")
	snapshot, err := h.tasks.Progress(taskID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, snapshot)
}

// DownloadResult handles GET /download/result: it streams the finished
// artifact when the task is READY, reports {status, progress_percentage}
// with 200 while the task is still running, and returns the task's
// error when FAILED.
func (h *NovelHandler) DownloadResult(w http.ResponseWriter, r *http.Request) {
	taskID := requestutil.Query(r, "task_id")
	snapshot, err := h.tasks.Progress(taskID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	switch snapshot.Status {
	case task.StatusReady:
		h.streamArtifact(w, snapshot, taskID, 0)
	case task.StatusFailed:
		respond.Error(w, r, apperr.Network(snapshot.Error, nil))
	default:
		progressPercentage := 0
		if snapshot.TotalChapters > 0 {
			progressPercentage = (snapshot.CompletedChapters + snapshot.FailedChapters) * 100 / snapshot.TotalChapters
		}
		respond.OK(w, map[string]any{
			"status":              "running",
			"progress_percentage": progressPercentage,
		})
	}
}

// # Shared pipeline

// runDownload executes detail -> toc -> batched chapter fetch ->
// assembly for one task, advancing t's state machine as it goes.
func (h *NovelHandler) runDownload(ctx context.Context, adapter *source.Adapter, pageURL string, format assembler.Format, t *task.Task) (string, int, error) {
	detail, err := adapter.Detail(ctx, pageURL)
	if err != nil {
		return "", 0, err
	}

	refs, err := adapter.TOC(ctx, pageURL)
	if err != nil {
		return "", 0, err
	}
	chapters := tocnorm.Normalize(refs)

	t.SetFetchingChapters(len(chapters))
	result, err := download.Run(ctx, adapter, chapters, t.ReportProgress)
	if err != nil {
		return "", 0, err
	}

	t.SetAssembling()
	path, err := assembler.Assemble(h.cfg.DownloadsDir, detail, result.Chapters, format)
	if err != nil {
		return "", 0, apperr.Internal(err)
	}

	return path, result.Failed, nil
}

func parseFormat(raw string) (assembler.Format, error) {
	switch raw {
	case "", string(assembler.FormatTXT):
		return assembler.FormatTXT, nil
	case string(assembler.FormatEPUB):
		return assembler.FormatEPUB, nil
	default:
		return "", apperr.Input(fmt.Sprintf("unsupported format %q", raw))
	}
}

// awaitTerminal polls the task registry until taskID reaches a terminal
// state or ctx is canceled, used by the synchronous /download endpoint
// to present an async-internally, sync-externally pipeline.
func (h *NovelHandler) awaitTerminal(ctx context.Context, taskID string) (task.Snapshot, error) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		snapshot, err := h.tasks.Progress(taskID)
		if err != nil {
			return task.Snapshot{}, err
		}
		if snapshot.Status == task.StatusReady || snapshot.Status == task.StatusFailed {
			return snapshot, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return task.Snapshot{}, apperr.Network("download request canceled", ctx.Err())
		}
	}
}

// resolveSource reads the common url/sourceId query parameters and
// resolves the bound adapter.
func (h *NovelHandler) resolveSource(r *http.Request) (pageURL string, adapter *source.Adapter, sourceID int, err error) {
	pageURL = requestutil.Query(r, "url")
	if pageURL == "" {
		return "", nil, 0, apperr.Input("url is required")
	}
	sourceID = requestutil.QueryInt(r, "sourceId", -1)
	adapter, err = h.registry.Get(sourceID)
	if err != nil {
		return "", nil, 0, err
	}
	return pageURL, adapter, sourceID, nil
}

// streamArtifact writes the finished artifact at snapshot.ArtifactPath
// as a binary attachment download.
func (h *NovelHandler) streamArtifact(w http.ResponseWriter, snapshot task.Snapshot, taskID string, duration time.Duration) {
	file, err := os.Open(snapshot.ArtifactPath)
	if err != nil {
		respond.JSON(w, http.StatusInternalServerError, respond.ErrorEnvelope{Error: "artifact unavailable", Code: "INTERNAL"})
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		respond.JSON(w, http.StatusInternalServerError, respond.ErrorEnvelope{Error: "artifact unavailable", Code: "INTERNAL"})
		return
	}

	filename := filepath.Base(snapshot.ArtifactPath)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(filename)))
	w.Header().Set("X-Task-ID", taskID)
	w.Header().Set("X-File-Size", strconv.FormatInt(info.Size(), 10))
	if duration > 0 {
		w.Header().Set("X-Download-Duration-MS", strconv.FormatInt(duration.Milliseconds(), 10))
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	_, _ = io.Copy(w, file)
}
