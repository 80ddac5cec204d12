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
	"sort"
	"sync"
)

// searchCheckInterval is how many entries a scan visits between
// context checks. Small enough that cancellation lands promptly, large
// enough that the check is free next to the dot products.
const searchCheckInterval = 512

// Match is one similarity search result.
type Match struct {
	ID    string            `json:"id"`
	Score float64           `json:"score"`
	Meta  map[string]string `json:"meta,omitempty"`
}

type indexEntry struct {
	vec  Embedding
	meta map[string]string
}

// Index is an exact-scan similarity index over unit-length embeddings.
//
// # Description
//
// Entries are scored by dot product, which equals cosine similarity
// because the encoder L2-normalizes every vector it emits. The scan
// visits every entry; at the scale this service indexes (one entry per
// compiled unit, thousands rather than millions) a linear pass with
// float64 accumulation beats an approximate structure on both accuracy
// and code weight.
//
// Results order by score descending, then ID ascending, so equal-score
// ties break the same way on every call.
//
// # Thread Safety
//
// Safe for concurrent use. Reads take the read lock, so searches run
// in parallel with each other and block only during Add/Remove.
type Index struct {
	mu      sync.RWMutex
	dim     int
	entries map[string]indexEntry
}

// NewIndex creates an empty index for vectors of the given width.
func NewIndex(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("compress: index dim must be positive, got %d", dim)
	}
	return &Index{dim: dim, entries: make(map[string]indexEntry)}, nil
}

// Dim returns the vector width this index accepts.
func (ix *Index) Dim() int { return ix.dim }

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Add indexes vec under id, replacing any previous entry for the same
// id. The vector and metadata are copied; the caller keeps ownership
// of its slices and maps.
func (ix *Index) Add(id string, vec Embedding, meta map[string]string) error {
	if id == "" {
		return fmt.Errorf("compress: index id must not be empty")
	}
	if len(vec) != ix.dim {
		return fmt.Errorf("compress: index holds %d-dim vectors, got %d", ix.dim, len(vec))
	}

	var metaCopy map[string]string
	if len(meta) > 0 {
		metaCopy = make(map[string]string, len(meta))
		for k, v := range meta {
			metaCopy[k] = v
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries[id] = indexEntry{vec: vec.Clone(), meta: metaCopy}
	return nil
}

// Remove drops the entry for id, reporting whether it existed.
func (ix *Index) Remove(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.entries[id]; !ok {
		return false
	}
	delete(ix.entries, id)
	return true
}

// Search returns the k entries most similar to query, ordered by score
// descending with ID ascending as the tiebreak. Fewer than k results
// come back when the index is smaller than k. Long scans poll ctx and
// return its error if it fires.
func (ix *Index) Search(ctx context.Context, query Embedding, k int) ([]Match, error) {
	if ctx == nil {
		return nil, fmt.Errorf("compress: ctx must not be nil")
	}
	if k <= 0 {
		return nil, fmt.Errorf("compress: k must be positive, got %d", k)
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("compress: index holds %d-dim vectors, query has %d", ix.dim, len(query))
	}
	recordIndexSearch()

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	matches := make([]Match, 0, len(ix.entries))
	visited := 0
	for id, entry := range ix.entries {
		if visited%searchCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		visited++
		matches = append(matches, Match{
			ID:    id,
			Score: dotProduct(query, entry.vec),
			Meta:  entry.meta,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// dotProduct computes the dot product of two equal-length vectors with
// float64 accumulation. For unit vectors this is cosine similarity.
func dotProduct(a, b Embedding) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
