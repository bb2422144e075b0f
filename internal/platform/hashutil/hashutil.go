// Copyright (c) 2026 Novelforge. All rights reserved.

// Package hashutil provides content-addressing helpers for the cache layer.
package hashutil

import (
	"crypto/sha1"
	"encoding/hex"
)

// CacheKey returns the hex SHA-1 digest of a logical cache key.
//
// Used to derive the on-disk filename for a cache entry
// ("cache/{sha1(key)}") so arbitrary keys (URLs, keyword+sourceId
// pairs) map to filesystem-safe names.
func CacheKey(key string) string {
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}
