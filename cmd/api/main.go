// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Api is the entry point for the novel aggregation and download engine.

The server aggregates search results across a set of declaratively
configured book-source rules, normalizes tables of contents, and
downloads whole novels as TXT or EPUB in the background while a client
polls progress.

Usage:

	go run cmd/api/main.go [flags]

The flags/environment variables are:

	SERVER_PORT           Port to listen on (default: 8080)
	ENVIRONMENT           deployment environment (development, production)
	RULES_DIR             directory of source rule *.json files
	CACHE_DIR             on-disk cache tier directory
	DOWNLOADS_DIR         finished TXT/EPUB artifact directory
	OUTBOUND_CONCURRENCY  process-wide outbound HTTP concurrency cap

Startup Sequence:

 1. Logger: Initialize structured JSON logging (slog).
 2. Config: Load and validate environment variables.
 3. HTTP Client Pool: construct the shared outbound transport.
 4. Cache: open the two-tier TTL cache.
 5. Rule Provider: load every source rule file.
 6. Wiring: build the source registry, task registry, and handlers.
 7. Server: bind HTTP listener and handle graceful shutdown.

No business logic lives here. This file is strictly for orchestration and wiring.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/novelforge/novelforge/internal/api"
	"github.com/novelforge/novelforge/internal/platform/cache"
	"github.com/novelforge/novelforge/internal/platform/config"
	"github.com/novelforge/novelforge/internal/platform/constants"
	"github.com/novelforge/novelforge/internal/platform/httpclient"
	"github.com/novelforge/novelforge/internal/rule"
	"github.com/novelforge/novelforge/internal/task"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application_startup_failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// # 1. Logger
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries for trace correlation
	log := rawLog.With(slog.String("app", "novelforge"))
	slog.SetDefault(log)

	log.Info("novelforge_service_initializing")

	// # 2. Configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "novelforge"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	for _, dir := range []string{cfg.CacheDir, cfg.DownloadsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	// # 3. HTTP Client Pool
	// Closed in the shutdown sequence below, after the Task Registry drains
	// and before the cache flushes.
	pool := httpclient.New(cfg.OutboundConcurrency)

	// # 4. Cache
	diskCache, err := cache.New(cfg.CacheDir, constants.MemoryCacheCapacity)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	// # 5. Rule Provider
	ruleRepo, err := rule.NewDirectoryRepository(cfg.RulesDir)
	if err != nil {
		return fmt.Errorf("load source rules: %w", err)
	}
	log.Info("rules_loaded", slog.Int("count", len(ruleRepo.All())))

	// # 6. Domain Wiring
	sourceRegistry := api.NewSourceRegistry(ruleRepo, pool, diskCache)
	taskRegistry := task.New(log)

	// Background context for the whole application lifecycle, canceled on
	// shutdown so the rate-limit cleanup goroutine and the task GC loop
	// stop. Download tasks run on their own context and do not observe it.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	go runTaskGC(appCtx, taskRegistry, log)

	novelHdl := api.NewNovelHandler(sourceRegistry, taskRegistry, cfg, log)

	// # 7. API Assembly
	handlers := api.Handlers{
		Health:     api.NewHealthHandler(sourceRegistry, diskCache, taskRegistry),
		Sources:    sourceRegistry.SourcesHandler(),
		CacheClear: api.NewCacheHandler(diskCache),
		Novel:      novelHdl,
	}

	server := api.NewServer(appCtx, cfg, log, handlers)

	// # 8. Lifecycle Handling
	shutdownErr := make(chan error, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownErr <- fmt.Errorf("http_server_crash: %w", err)
		}
	}()

	log.Info("novelforge_api_running", slog.String("port", cfg.ServerPort))

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-shutdownErr:
		return err
	}

	// Start Graceful Shutdown Sequence
	appCancel() // stop the rate-limit cleanup goroutine and the task GC loop

	log.Info("shutting_down_api_server", slog.Duration("timeout", constants.ShutdownTimeout))
	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		return fmt.Errorf("server_shutdown_failed: %w", err)
	}

	log.Info("draining_task_registry")
	drained := make(chan struct{})
	go func() {
		taskRegistry.Drain()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(constants.ShutdownTimeout):
		log.Warn("task_registry_drain_timed_out")
	}

	log.Info("closing http client pool")
	pool.Close()

	log.Info("flushing_cache")
	if err := diskCache.Flush(); err != nil {
		log.Error("cache flush error", slog.Any("error", err))
	}

	log.Info("graceful_shutdown_complete")
	return nil
}

// runTaskGC periodically clears terminal tasks older than
// constants.TaskRetention until ctx is canceled.
func runTaskGC(ctx context.Context, tasks *task.Registry, log *slog.Logger) {
	ticker := time.NewTicker(constants.TaskRetention / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tasks.GC()
		case <-ctx.Done():
			log.Info("task_gc_stopped")
			return
		}
	}
}
