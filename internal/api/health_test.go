// Copyright (c) 2026 Novelforge. All rights reserved.

package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/internal/api"
	"github.com/novelforge/novelforge/internal/platform/cache"
	"github.com/novelforge/novelforge/internal/task"
)

func TestHealthHandler_AllSourcesHealthyReportsOK(t *testing.T) {
	reg := newTestSourceRegistry(t)
	c, err := cache.New(t.TempDir(), 16)
	require.NoError(t, err)
	tasks := task.New(testLogger())

	handler := api.NewHealthHandler(reg, c, tasks)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHealthHandler_NoSourcesStillReportsOK(t *testing.T) {
	reg := newSourceRegistryFromRules(t, nil)
	c, err := cache.New(t.TempDir(), 16)
	require.NoError(t, err)
	tasks := task.New(testLogger())

	handler := api.NewHealthHandler(reg, c, tasks)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
