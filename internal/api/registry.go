// Copyright (c) 2026 Novelforge. All rights reserved.

package api

import (
	"sort"
	"sync"

	"github.com/novelforge/novelforge/internal/platform/apperr"
	"github.com/novelforge/novelforge/internal/platform/cache"
	"github.com/novelforge/novelforge/internal/platform/httpclient"
	"github.com/novelforge/novelforge/internal/rule"
	"github.com/novelforge/novelforge/internal/source"
)

// SourceRegistry binds every loaded rule to a [source.Adapter] sharing
// one HTTP Client Pool and cache, and implements
// [github.com/novelforge/novelforge/internal/aggregator.Registry].
type SourceRegistry struct {
	mu       sync.RWMutex
	byID     map[int]*source.Adapter
	adapters []*source.Adapter
}

// NewSourceRegistry builds one [source.Adapter] per rule in repo.
func NewSourceRegistry(repo rule.Repository, client *httpclient.Pool, c *cache.Cache) *SourceRegistry {
	rules := repo.All()
	reg := &SourceRegistry{
		byID:     make(map[int]*source.Adapter, len(rules)),
		adapters: make([]*source.Adapter, 0, len(rules)),
	}
	for _, r := range rules {
		adapter := source.New(r, client, c)
		reg.byID[r.ID] = adapter
		reg.adapters = append(reg.adapters, adapter)
	}
	return reg
}

// Adapters implements aggregator.Registry.
func (reg *SourceRegistry) Adapters() []*source.Adapter {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.adapters
}

// Get returns the adapter bound to sourceID, or [apperr.SourceUnknown]
// if no rule with that id was loaded.
func (reg *SourceRegistry) Get(sourceID int) (*source.Adapter, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	adapter, ok := reg.byID[sourceID]
	if !ok {
		return nil, apperr.SourceUnknown("unknown sourceId")
	}
	return adapter, nil
}

// SourceSummary is one entry of the /sources listing.
type SourceSummary struct {
	ID                  int    `json:"id"`
	Name                string `json:"name"`
	Enabled             bool   `json:"enabled"`
	Healthy             bool   `json:"healthy"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
}

// Summaries lists every loaded source, sorted by id, for the /sources
// and /health endpoints.
func (reg *SourceRegistry) Summaries() []SourceSummary {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	summaries := make([]SourceSummary, 0, len(reg.adapters))
	for _, adapter := range reg.adapters {
		healthy, failures, _ := adapter.Healthy()
		r := adapter.Rule()
		summaries = append(summaries, SourceSummary{
			ID:                  r.ID,
			Name:                r.Name,
			Enabled:             r.Enabled,
			Healthy:             healthy,
			ConsecutiveFailures: failures,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries
}
