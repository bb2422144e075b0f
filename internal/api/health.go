// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package api implements the observability endpoint for the aggregation
engine.

Architecture:

  - Health: Reports an overall health_score derived from the fraction of
    configured sources currently below their consecutive-failure
    threshold, alongside cache and task-registry metrics.

There is no readiness probe distinct from liveness: the engine has no
external dependency (database, message broker) to separately confirm
connectivity to — every dependency it has (rule files, disk cache) is
loaded once at startup and fails the process outright if unavailable.
*/
package api

import (
	"net/http"

	"github.com/novelforge/novelforge/internal/platform/cache"
	"github.com/novelforge/novelforge/internal/platform/constants"
	"github.com/novelforge/novelforge/internal/platform/respond"
	"github.com/novelforge/novelforge/internal/task"
)

// # Data Structures

// healthHandler orchestrates the health snapshot.
type healthHandler struct {
	registry *SourceRegistry
	cache    *cache.Cache
	tasks    *task.Registry
}

// NewHealthHandler constructs the /health [http.HandlerFunc].
func NewHealthHandler(registry *SourceRegistry, c *cache.Cache, tasks *task.Registry) http.HandlerFunc {
	handler := &healthHandler{registry: registry, cache: c, tasks: tasks}
	return handler.health
}

// # Handler

// health handles GET /health.
//
// health_score is healthySources / totalSources, 1.0 when there are no
// configured sources at all (nothing to be unhealthy about).
func (handler *healthHandler) health(writer http.ResponseWriter, _ *http.Request) {
	summaries := handler.registry.Summaries()

	healthyCount := 0
	for _, s := range summaries {
		if s.Healthy {
			healthyCount++
		}
	}

	healthScore := 1.0
	if len(summaries) > 0 {
		healthScore = float64(healthyCount) / float64(len(summaries))
	}

	status := "ok"
	if healthScore < 1.0 {
		status = "degraded"
	}

	respond.OK(writer, map[string]any{
		constants.FieldStatus: status,
		"health_score":        healthScore,
		"metrics": map[string]any{
			"totalSources":   len(summaries),
			"healthySources": healthyCount,
			"cacheSize":      handler.cache.Size(),
			"activeTasks":    handler.tasks.ActiveCount(),
			constants.FieldApp:     constants.AppName,
			constants.FieldVersion: constants.AppVersion,
		},
		"sources": summaries,
	})
}
