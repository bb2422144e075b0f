// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package constants provides centralized, immutable values for the entire
engine.

It defines default timeouts, concurrency caps, and cache TTLs so magic
strings and magic numbers are eliminated from business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "novelforge-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	DefaultReadTimeout       = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle,
	// applied to every route. The download/start, progress and result
	// endpoints return at once while a background task runs (see
	// internal/task); the synchronous download endpoint waits for its task
	// inside the request and is bounded by this deadline too.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete
	// during shutdown, and then how long shutdown waits for the Task
	// Registry's running workers to finish before it moves on.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting (inbound API)

const (
	DefaultRateLimitRPS      = 20.0
	DefaultRateLimitBurst    = 40
	RateLimitCleanupInterval = 1 * time.Minute
	RateLimitClientTTL       = 3 * time.Minute
)

// # HTTP Client Pool (outbound, spec §4.1/§5)

const (
	// OutboundConcurrency is the per-process outbound HTTP concurrency cap.
	OutboundConcurrency = 5

	// MaxRedirects is the maximum number of redirects the pool will follow.
	MaxRedirects = 5

	// MaxAttempts is the maximum number of attempts per logical request.
	MaxAttempts = 3

	// RetryBaseDelay is the base backoff delay for timeouts/resets.
	RetryBaseDelay = 1 * time.Second

	// RetryServerErrorBaseDelay is the base backoff delay for 5xx/Cloudflare
	// 520-522 responses.
	RetryServerErrorBaseDelay = 5 * time.Second

	// RequestTimeout is the initial per-attempt timeout; it is lengthened by
	// 50% on each retry after a timeout.
	RequestTimeout = 10 * time.Second
)

// # Cache TTLs (spec §4.3)

const (
	SearchCacheTTL  = 30 * time.Minute
	DetailCacheTTL  = 2 * time.Hour
	TOCCacheTTL     = 2 * time.Hour
	ChapterCacheTTL = 24 * time.Hour

	// MemoryCacheCapacity caps the number of entries held in the in-process
	// LRU tier.
	MemoryCacheCapacity = 2048
)

// # Aggregator / Source Adapter (spec §4.4/§4.5)

const (
	// MaxHitsPerSource caps search results contributed by a single source
	// before the aggregator's final maxResults cut.
	MaxHitsPerSource = 2

	// DefaultSourceTimeout bounds an individual adapter's search call.
	DefaultSourceTimeout = 15 * time.Second

	// DefaultMaxResults is applied when the caller omits maxResults.
	DefaultMaxResults = 30

	// MaxMaxResults is the clamp ceiling for maxResults.
	MaxMaxResults = 100

	// MaxTOCPages bounds paginated TOC traversal.
	MaxTOCPages = 50
)

// # Download Orchestrator (spec §4.7)

const (
	// DownloadBatchSize is the number of chapters fetched in parallel per batch (K).
	DownloadBatchSize = 10

	// DownloadBatchSleepMin/Max bound the politeness sleep between batches.
	DownloadBatchSleepMin = 1 * time.Second
	DownloadBatchSleepMax = 3 * time.Second

	// ChapterMaxAttempts is the per-chapter retry budget.
	ChapterMaxAttempts = 3

	// MinChapterBytes is the minimum plain-text length for a cached chapter
	// body to be considered valid (spec §3 CacheEntry invariant).
	MinChapterBytes = 200

	// TaskRetention is the age, measured from a task's creation, after which
	// a terminal task is removed by GC (spec §4.9). A task that ran longer
	// than this is removed at the first GC pass after it finishes.
	TaskRetention = 1 * time.Hour
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)
