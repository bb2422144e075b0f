// Copyright (c) 2026 Novelforge. All rights reserved.

package cache_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/internal/platform/cache"
)

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New(t.TempDir(), 16)
	require.NoError(t, err)
	return c
}

func TestCache_PutGet(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Put("key", []byte("value"), time.Minute))

	value, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, "value", string(value))
}

func TestCache_ExpiredEntryIsMiss(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Put("key", []byte("value"), -time.Second))

	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestCache_DiskTierSurvivesMemoryEviction(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Put("persisted", []byte("value"), time.Minute))

	// Push enough new entries through to evict "persisted" from the
	// memory tier's LRU, but the disk tier should still answer Get.
	for i := 0; i < 32; i++ {
		require.NoError(t, c.Put(string(rune('a'+i%26)), []byte("x"), time.Minute))
	}

	value, ok := c.Get("persisted")
	require.True(t, ok)
	assert.Equal(t, "value", string(value))
}

func TestCache_GetOrLoad_CoalescesConcurrentMisses(t *testing.T) {
	c := newTestCache(t)

	var loadCount int64
	load := func() ([]byte, error) {
		atomic.AddInt64(&loadCount, 1)
		time.Sleep(10 * time.Millisecond)
		return []byte("loaded"), nil
	}

	results := make(chan []byte, 8)
	for i := 0; i < 8; i++ {
		go func() {
			value, err := c.GetOrLoad("shared", time.Minute, load)
			require.NoError(t, err)
			results <- value
		}()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, "loaded", string(<-results))
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&loadCount))
}

func TestCache_GetOrLoad_PropagatesLoaderError(t *testing.T) {
	c := newTestCache(t)

	boom := errors.New("boom")
	_, err := c.GetOrLoad("key", time.Minute, func() ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestCache_Clear(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Put("key", []byte("value"), time.Minute))
	require.NoError(t, c.Clear())

	_, ok := c.Get("key")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}
