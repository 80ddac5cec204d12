// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compress

import (
	"context"
	"fmt"
	"sync"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
)

// DefaultCacheCapacity bounds the embedding cache when the caller does
// not choose a size. At 512 float32 dims an entry is about 2KB, so the
// default caps the cache near 8MB.
const DefaultCacheCapacity = 4096

// CacheStats is a point-in-time snapshot of cache activity.
type CacheStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`
}

// cacheKey identifies one cached embedding. Both halves matter: the
// same graph under a newly published parameter set is a different
// result, and the stale entry ages out through capacity eviction.
type cacheKey struct {
	graphHash string
	version   string
}

// CachingCompressor wraps a Compressor with a bounded in-memory result
// cache keyed by (graph content hash, parameter version).
//
// # Description
//
// Compression is deterministic for a fixed graph and parameter set, so
// a cached vector is exactly the vector a fresh call would produce.
// When the cache is full an arbitrary entry is evicted; map iteration
// order makes the choice effectively random, which is enough here
// because entries carry no recency signal worth preserving.
//
// # Thread Safety
//
// Safe for concurrent use. The lock covers only map access; the
// forward pass on a miss runs unlocked, so concurrent misses for the
// same key may each compute the vector and the last writer wins. That
// is benign: every computed vector for one key is identical.
type CachingCompressor struct {
	inner *Compressor

	mu        sync.Mutex
	entries   map[cacheKey]Embedding
	capacity  int
	hits      uint64
	misses    uint64
	evictions uint64
}

// NewCachingCompressor wraps inner with a cache holding up to capacity
// embeddings. Pass capacity 0 for the default.
func NewCachingCompressor(inner *Compressor, capacity int) (*CachingCompressor, error) {
	if inner == nil {
		return nil, fmt.Errorf("compress: inner compressor must not be nil")
	}
	if capacity == 0 {
		capacity = DefaultCacheCapacity
	}
	if capacity < 0 {
		return nil, fmt.Errorf("compress: cache capacity must be positive, got %d", capacity)
	}
	return &CachingCompressor{
		inner:    inner,
		entries:  make(map[cacheKey]Embedding, capacity),
		capacity: capacity,
	}, nil
}

// Compress returns the cached vector for g under the live parameter
// version, computing and caching it on a miss. Interrupted or failed
// compressions are never cached.
func (c *CachingCompressor) Compress(ctx context.Context, g *graph.Graph) (Embedding, error) {
	pub := c.inner.pub.Current()
	if pub == nil {
		recordCompression(compressError, 0)
		return nil, ErrNoParameters
	}
	if g == nil {
		return nil, fmt.Errorf("compress: graph must not be nil")
	}

	key := cacheKey{graphHash: g.Hash(), version: pub.Snapshot.Version}

	c.mu.Lock()
	if vec, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		recordCacheEvent(cacheHit)
		return vec.Clone(), nil
	}
	c.misses++
	c.mu.Unlock()
	recordCacheEvent(cacheMiss)

	vec, err := c.inner.CompressWith(ctx, g, pub)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		for victim := range c.entries {
			delete(c.entries, victim)
			c.evictions++
			recordCacheEvent(cacheEviction)
			break
		}
	}
	c.entries[key] = vec.Clone()
	c.mu.Unlock()

	return vec, nil
}

// Stats returns current cache counters.
func (c *CachingCompressor) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
		Capacity:  c.capacity,
	}
}

// Inner exposes the wrapped compressor for callers that need an
// uncached path.
func (c *CachingCompressor) Inner() *Compressor { return c.inner }
