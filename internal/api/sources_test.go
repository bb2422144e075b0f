// Copyright (c) 2026 Novelforge. All rights reserved.

package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourcesHandler_ListsLoadedRules(t *testing.T) {
	reg := newTestSourceRegistry(t)
	handler := reg.SourcesHandler()

	req := httptest.NewRequest(http.MethodGet, "/sources", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source-a"`)
	assert.Contains(t, rec.Body.String(), `"source-b"`)
}
