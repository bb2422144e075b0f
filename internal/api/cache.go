// Copyright (c) 2026 Novelforge. All rights reserved.

package api

import (
	"net/http"

	"github.com/novelforge/novelforge/internal/platform/cache"
	"github.com/novelforge/novelforge/internal/platform/respond"
)

// cacheHandler implements the cache maintenance endpoint.
type cacheHandler struct {
	cache *cache.Cache
}

// NewCacheHandler constructs the POST /cache/clear [http.HandlerFunc].
func NewCacheHandler(c *cache.Cache) http.HandlerFunc {
	handler := &cacheHandler{cache: c}
	return handler.clear
}

// clear handles POST /cache/clear. It reports the in-memory entry
// count cleared; the on-disk tier is wiped unconditionally alongside it.
func (h *cacheHandler) clear(w http.ResponseWriter, r *http.Request) {
	cleared := h.cache.Size()
	if err := h.cache.Clear(); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]int{"cleared": cleared})
}
