// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package cache is the two-tier TTL cache (spec.md §4.3): an in-process
LRU tier backed by a content-addressed on-disk tier, with singleflight
coalescing of concurrent misses for the same key.

A get first checks the memory tier, then the disk tier (promoting a hit
back into memory), and is unexpired in both before it is returned; a
stale entry is lazily evicted rather than actively swept. A put writes
through both tiers. The disk tier stores each entry as a pair of files,
cache/{sha1(key)} holding the raw value and cache/{sha1(key)}.meta
holding its expiry, so a cached value is never round-tripped through an
encoding it didn't arrive in. [Cache.GetOrLoad] additionally coalesces
concurrent misses for the same key behind a single in-flight load, so a
cold cache under a burst of identical requests issues exactly one
upstream fetch.
*/
package cache

import (
	"container/list"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/novelforge/novelforge/internal/platform/constants"
	"github.com/novelforge/novelforge/internal/platform/hashutil"
)

// Cache is a two-tier TTL cache keyed by arbitrary strings.
type Cache struct {
	dir   string
	group singleflight.Group

	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	capacity int
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// diskMeta is the sidecar written alongside the raw value at
// cache/{sha1(key)}.meta (spec.md §6): it carries only the expiry so a
// disk read for the value itself never has to round-trip through JSON.
type diskMeta struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

// New constructs a [Cache] persisting its disk tier under dir, with a
// memory tier capped at capacity entries. dir is created if missing.
func New(dir string, capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = constants.MemoryCacheCapacity
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir %q: %w", dir, err)
	}
	return &Cache{
		dir:      dir,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}, nil
}

// Get returns the cached value for key, if present and unexpired in
// either tier.
func (c *Cache) Get(key string) ([]byte, bool) {
	if value, ok := c.getMemory(key); ok {
		return value, true
	}
	value, ok := c.getDisk(key)
	if !ok {
		return nil, false
	}
	c.putMemory(key, value, c.diskExpiry(key))
	return value, true
}

// Put writes value to both tiers with the given time-to-live.
func (c *Cache) Put(key string, value []byte, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl)
	c.putMemory(key, value, expiresAt)
	return c.putDisk(key, value, expiresAt)
}

// Loader produces a fresh value on a cache miss.
type Loader func() ([]byte, error)

// GetOrLoad returns the cached value for key, or calls load exactly
// once across any concurrently racing callers for the same key, caching
// its result with ttl before returning it.
func (c *Cache) GetOrLoad(key string, ttl time.Duration, load Loader) ([]byte, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		if value, ok := c.Get(key); ok {
			return value, nil
		}
		loaded, err := load()
		if err != nil {
			return nil, err
		}
		if err := c.Put(key, loaded, ttl); err != nil {
			return nil, err
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]byte), nil
}

// Clear empties the memory tier and removes every on-disk entry,
// implementing the administrative cache-clear operation (spec.md §6).
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("cache: read dir %q: %w", c.dir, err)
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return fmt.Errorf("cache: remove %q: %w", e.Name(), err)
		}
	}
	return nil
}

// Flush is a no-op hook reserved for the shutdown sequence (spec.md §9,
// "disk cache flushes"); entries are written synchronously on Put, so
// there is nothing buffered to force to disk.
func (c *Cache) Flush() error { return nil }

// Size returns the number of entries currently held in the memory tier,
// exposed for the health endpoint (spec.md §4).
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// # Memory tier (LRU)

func (c *Cache) getMemory(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.order.Remove(elem)
		delete(c.items, key)
		return nil, false
	}
	c.order.MoveToFront(elem)
	return e.value, true
}

func (c *Cache) putMemory(key string, value []byte, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value = &entry{key: key, value: value, expiresAt: expiresAt}
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
	}
}

// # Disk tier (content-addressed)

// diskPath returns cache/{sha1(key)}, holding the raw cached value.
func (c *Cache) diskPath(key string) string {
	return filepath.Join(c.dir, hashutil.CacheKey(key))
}

// metaPath returns cache/{sha1(key)}.meta, the expiry sidecar for the
// entry at diskPath(key).
func (c *Cache) metaPath(key string) string {
	return c.diskPath(key) + ".meta"
}

func (c *Cache) readMeta(key string) (diskMeta, bool) {
	raw, err := os.ReadFile(c.metaPath(key))
	if err != nil {
		return diskMeta{}, false
	}
	var meta diskMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return diskMeta{}, false
	}
	return meta, true
}

func (c *Cache) getDisk(key string) ([]byte, bool) {
	meta, ok := c.readMeta(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(meta.ExpiresAt) {
		_ = os.Remove(c.diskPath(key))
		_ = os.Remove(c.metaPath(key))
		return nil, false
	}
	value, err := os.ReadFile(c.diskPath(key))
	if err != nil {
		return nil, false
	}
	return value, true
}

func (c *Cache) diskExpiry(key string) time.Time {
	meta, ok := c.readMeta(key)
	if !ok {
		return time.Now()
	}
	return meta.ExpiresAt
}

func (c *Cache) putDisk(key string, value []byte, expiresAt time.Time) error {
	path := c.diskPath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("cache: write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("cache: rename %q: %w", tmp, err)
	}

	meta, err := json.Marshal(diskMeta{ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("cache: marshal meta: %w", err)
	}
	metaTmp := c.metaPath(key) + ".tmp"
	if err := os.WriteFile(metaTmp, meta, 0o644); err != nil {
		return fmt.Errorf("cache: write %q: %w", metaTmp, err)
	}
	if err := os.Rename(metaTmp, c.metaPath(key)); err != nil {
		return fmt.Errorf("cache: rename %q: %w", metaTmp, err)
	}
	return nil
}
