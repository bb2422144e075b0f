// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/novelforge/novelforge/internal/platform/config"
	"github.com/novelforge/novelforge/internal/platform/constants"
	"github.com/novelforge/novelforge/internal/platform/middleware"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
//
// # Usage
//
// New endpoints add a field here — no other change to server.go is required.
type Handlers struct {
	// Health is the /health handler — reports source health and cache/task metrics.
	Health http.HandlerFunc

	// Sources is the /sources handler — lists every loaded rule's summary.
	Sources http.HandlerFunc

	// CacheClear is the /cache/clear handler.
	CacheClear http.HandlerFunc

	// Novel handles search, detail, TOC, and the download endpoint family.
	Novel *NovelHandler
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger, h Handlers) *Server {
	rte := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	rte.Use(middleware.RequestID())
	rte.Use(middleware.StructuredLogger(log))
	rte.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	rte.Use(middleware.RateLimit(ctx))
	rte.Use(middleware.PanicRecovery(log))
	rte.Use(middleware.CORS(cfg))
	rte.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	rte.Get("/health", h.Health)
	rte.Get("/sources", h.Sources)
	rte.Post("/cache/clear", h.CacheClear)

	// # Application API
	// There is no versioned prefix: this engine has exactly one consumer
	// surface (spec.md §6), not a multi-tenant public API evolving
	// independently of its own clients.
	rte.Get("/search", h.Novel.Search)
	rte.Get("/detail", h.Novel.Detail)
	rte.Get("/toc", h.Novel.TOC)
	rte.Get("/download", h.Novel.Download)
	rte.Post("/download/start", h.Novel.DownloadStart)
	rte.Get("/download/progress", h.Novel.DownloadProgress)
	rte.Get("/download/result", h.Novel.DownloadResult)

	return &Server{
		router: rte,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           rte,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
