// Copyright (c) 2026 Novelforge. All rights reserved.

package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/internal/api"
	"github.com/novelforge/novelforge/internal/platform/cache"
)

func TestCacheHandler_ClearReportsPreviousSize(t *testing.T) {
	c, err := cache.New(t.TempDir(), 16)
	require.NoError(t, err)
	require.NoError(t, c.Put("search:foo", []byte("bar"), time.Minute))

	handler := api.NewCacheHandler(c)

	req := httptest.NewRequest(http.MethodPost, "/cache/clear", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cleared":1`)
	assert.Equal(t, 0, c.Size())
}
