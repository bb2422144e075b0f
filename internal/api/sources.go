// Copyright (c) 2026 Novelforge. All rights reserved.

package api

import (
	"net/http"

	"github.com/novelforge/novelforge/internal/platform/respond"
)

// SourcesHandler handles GET /sources.
func (reg *SourceRegistry) SourcesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond.OK(w, reg.Summaries())
	}
}
