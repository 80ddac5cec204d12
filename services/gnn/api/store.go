// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"fmt"
	"sync"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
)

// DefaultGraphCapacity bounds the in-memory graph store.
const DefaultGraphCapacity = 256

// GraphStore holds built graphs keyed by content hash.
//
// Description:
//
//	Graphs are ephemeral service state: clients build them, then
//	reference them by ID in compress, route, similar, and training
//	requests. At capacity the oldest graph is evicted; clients that
//	hit GRAPH_NOT_FOUND rebuild.
//
// Thread Safety: Safe for concurrent use.
type GraphStore struct {
	mu       sync.RWMutex
	capacity int
	graphs   map[string]*graph.Graph
	order    []string
}

// NewGraphStore creates a store bounded to capacity graphs. Zero
// selects DefaultGraphCapacity.
func NewGraphStore(capacity int) (*GraphStore, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("api: graph capacity must not be negative, got %d", capacity)
	}
	if capacity == 0 {
		capacity = DefaultGraphCapacity
	}
	return &GraphStore{
		capacity: capacity,
		graphs:   make(map[string]*graph.Graph, capacity),
	}, nil
}

// Put stores a frozen graph under its content hash and returns the
// ID, plus the ID of any graph evicted to make room. Re-storing an
// identical graph is a no-op.
func (s *GraphStore) Put(g *graph.Graph) (id string, evicted string, err error) {
	if g == nil {
		return "", "", fmt.Errorf("api: graph must not be nil")
	}
	if !g.Frozen() {
		return "", "", fmt.Errorf("api: graph must be frozen")
	}

	id = g.Hash()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.graphs[id]; ok {
		return id, "", nil
	}

	if len(s.graphs) >= s.capacity {
		evicted = s.order[0]
		s.order = s.order[1:]
		delete(s.graphs, evicted)
	}

	s.graphs[id] = g
	s.order = append(s.order, id)
	return id, evicted, nil
}

// Get returns the graph stored under id.
func (s *GraphStore) Get(id string) (*graph.Graph, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.graphs[id]
	return g, ok
}

// All returns the stored graphs in insertion order.
func (s *GraphStore) All() []*graph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*graph.Graph, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.graphs[id])
	}
	return out
}

// Len returns the stored graph count.
func (s *GraphStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.graphs)
}
