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
	"testing"
)

func TestGraphStore_PutAndGet(t *testing.T) {
	s, err := NewGraphStore(4)
	if err != nil {
		t.Fatalf("NewGraphStore: %v", err)
	}

	g := testGraph(t, "a", 3)
	id, evicted, err := s.Put(g)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if id != g.Hash() {
		t.Fatalf("id = %s, want the graph hash %s", id, g.Hash())
	}
	if evicted != "" {
		t.Fatalf("evicted = %q, want none", evicted)
	}

	got, ok := s.Get(id)
	if !ok || got != g {
		t.Fatal("Get did not return the stored graph")
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestGraphStore_DuplicatePutIsNoOp(t *testing.T) {
	s, _ := NewGraphStore(4)
	g := testGraph(t, "a", 3)

	first, _, _ := s.Put(g)
	second, evicted, err := s.Put(g)
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if first != second || evicted != "" || s.Len() != 1 {
		t.Fatalf("duplicate Put changed state: id %s vs %s, evicted %q, len %d",
			first, second, evicted, s.Len())
	}
}

func TestGraphStore_EvictsOldestAtCapacity(t *testing.T) {
	s, _ := NewGraphStore(2)

	idA, _, _ := s.Put(testGraph(t, "a", 3))
	idB, _, _ := s.Put(testGraph(t, "b", 3))
	idC, evicted, err := s.Put(testGraph(t, "c", 3))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if evicted != idA {
		t.Fatalf("evicted = %s, want the oldest %s", evicted, idA)
	}
	if _, ok := s.Get(idA); ok {
		t.Fatal("evicted graph still retrievable")
	}
	for _, id := range []string{idB, idC} {
		if _, ok := s.Get(id); !ok {
			t.Fatalf("graph %s missing after eviction", id)
		}
	}
}

func TestGraphStore_AllPreservesInsertionOrder(t *testing.T) {
	s, _ := NewGraphStore(4)
	ga := testGraph(t, "a", 3)
	gb := testGraph(t, "b", 4)
	s.Put(ga)
	s.Put(gb)

	all := s.All()
	if len(all) != 2 || all[0] != ga || all[1] != gb {
		t.Fatalf("All returned %d graphs out of order", len(all))
	}
}

func TestGraphStore_RejectsBadInput(t *testing.T) {
	s, _ := NewGraphStore(2)

	if _, _, err := s.Put(nil); err == nil {
		t.Error("expected error for nil graph")
	}

	unfrozen := testGraphUnfrozen(t, "u", 2)
	if _, _, err := s.Put(unfrozen); err == nil {
		t.Error("expected error for unfrozen graph")
	}

	if _, err := NewGraphStore(-1); err == nil {
		t.Error("expected error for negative capacity")
	}
}
