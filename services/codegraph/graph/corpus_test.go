// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/ast"
)

func TestBuildCorpus_PartialFailureIsolation(t *testing.T) {
	registry := ast.NewDefaultRegistry()
	builder := NewBuilder(WithWorkerCount(4))
	ctx := context.Background()

	// 100 files, 5 of them malformed (invalid UTF-8). The malformed
	// files must produce diagnostics without costing any valid graph.
	var sources []Source
	for i := 0; i < 100; i++ {
		path := fmt.Sprintf("pkg/file%03d.go", i)
		if i%20 == 19 {
			sources = append(sources, Source{
				Path:    path,
				Content: []byte{0xff, 0xfe, 'p', 'k', 'g'},
			})
			continue
		}
		sources = append(sources, Source{
			Path:    path,
			Content: []byte(fmt.Sprintf("package pkg\n\nfunc F%d() {}\n", i)),
		})
	}

	result, err := builder.BuildCorpus(ctx, registry, sources)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Graphs) != 95 {
		t.Errorf("expected 95 graphs, got %d", len(result.Graphs))
	}
	if len(result.Failures) != 5 {
		t.Errorf("expected 5 failures, got %d", len(result.Failures))
	}
	if result.Stats.FilesTotal != 100 {
		t.Errorf("expected FilesTotal=100, got %d", result.Stats.FilesTotal)
	}
	if result.Stats.FilesSucceeded != 95 {
		t.Errorf("expected FilesSucceeded=95, got %d", result.Stats.FilesSucceeded)
	}
	if result.Stats.FilesFailed != 5 {
		t.Errorf("expected FilesFailed=5, got %d", result.Stats.FilesFailed)
	}
	if result.Incomplete {
		t.Error("expected Incomplete=false for isolated per-file failures")
	}

	// Every failure is a structured diagnostic naming the file.
	for _, f := range result.Failures {
		var malformed *MalformedSourceError
		if !errors.As(f.Err, &malformed) {
			t.Errorf("failure for %s: expected MalformedSourceError, got %T", f.FilePath, f.Err)
			continue
		}
		if !errors.Is(f.Err, ast.ErrInvalidContent) {
			t.Errorf("failure for %s should wrap the parser error, got: %v", f.FilePath, f.Err)
		}
	}

	// Graphs come back frozen, non-empty, in input order.
	if result.Graphs[0].Unit != "pkg/file000.go" {
		t.Errorf("expected first graph for pkg/file000.go, got %s", result.Graphs[0].Unit)
	}
	for _, g := range result.Graphs {
		if !g.Frozen() {
			t.Fatalf("graph %s not frozen", g.Unit)
		}
		if g.NodeCount() == 0 {
			t.Fatalf("graph %s has no nodes", g.Unit)
		}
	}
	if result.Stats.NodesTotal == 0 || result.Stats.EdgesTotal == 0 {
		t.Error("expected aggregate node and edge counts")
	}
}

func TestBuildCorpus_NilRegistry(t *testing.T) {
	builder := NewBuilder()
	_, err := builder.BuildCorpus(context.Background(), nil, []Source{
		{Path: "a.go", Content: []byte("package a\n")},
	})
	if err == nil {
		t.Fatal("expected error for nil registry")
	}
}

func TestBuildCorpus_Cancellation(t *testing.T) {
	registry := ast.NewDefaultRegistry()
	builder := NewBuilder(WithWorkerCount(2))

	var sources []Source
	for i := 0; i < 50; i++ {
		sources = append(sources, Source{
			Path:    fmt.Sprintf("file%02d.go", i),
			Content: []byte(fmt.Sprintf("package p\n\nfunc F%d() {}\n", i)),
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := builder.BuildCorpus(ctx, registry, sources)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if result == nil {
		t.Fatal("expected partial result on cancellation")
	}
	if !result.Incomplete {
		t.Error("expected Incomplete=true on cancellation")
	}
}

func TestBuildCorpus_EmptySources(t *testing.T) {
	registry := ast.NewDefaultRegistry()
	builder := NewBuilder()

	result, err := builder.BuildCorpus(context.Background(), registry, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Graphs) != 0 || len(result.Failures) != 0 {
		t.Error("expected empty result for empty sources")
	}
	if result.Stats.FilesTotal != 0 {
		t.Errorf("expected FilesTotal=0, got %d", result.Stats.FilesTotal)
	}
}

func TestBuildUnit_CrossFileGraph(t *testing.T) {
	registry := ast.NewDefaultRegistry()
	builder := NewBuilder(WithUnit("/unit"))
	ctx := context.Background()

	sources := []Source{
		{Path: "helper.go", Content: []byte("package p\n\nfunc Helper() {}\n")},
		{Path: "caller.go", Content: []byte("package p\n\nfunc Caller() {\n\tHelper()\n}\n")},
	}

	result, err := builder.BuildUnit(ctx, registry, sources)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected successful unit build, got errors: %v", result.FileErrors)
	}

	callers := result.Graph.NodesByName("Caller")
	helpers := result.Graph.NodesByName("Helper")
	if len(callers) != 1 || len(helpers) != 1 {
		t.Fatalf("expected Caller and Helper nodes, got %d and %d", len(callers), len(helpers))
	}

	// The unit graph carries the cross-file call edge.
	if !hasEdge(t, result.Graph, callers[0].ID(), helpers[0].ID(), EdgeTypeCalls) {
		t.Error("expected calls edge from Caller to Helper across files")
	}
	if result.Graph.Unit != "/unit" {
		t.Errorf("expected unit /unit, got %s", result.Graph.Unit)
	}
}

func TestBuildUnit_ParseFailureDegrades(t *testing.T) {
	registry := ast.NewDefaultRegistry()
	builder := NewBuilder(WithUnit("/unit"))
	ctx := context.Background()

	sources := []Source{
		{Path: "good.go", Content: []byte("package p\n\nfunc Good() {}\n")},
		{Path: "bad.go", Content: []byte{0xff, 0xfe}},
	}

	result, err := builder.BuildUnit(ctx, registry, sources)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The good file still forms a graph; the bad one is a diagnostic.
	if len(result.Graph.NodesByName("Good")) != 1 {
		t.Error("expected Good node in unit graph")
	}
	if len(result.FileErrors) != 1 {
		t.Fatalf("expected 1 FileError, got %d", len(result.FileErrors))
	}
	var malformed *MalformedSourceError
	if !errors.As(result.FileErrors[0].Err, &malformed) {
		t.Errorf("expected MalformedSourceError, got %T", result.FileErrors[0].Err)
	}
	if result.Stats.FilesFailed != 1 {
		t.Errorf("expected FilesFailed=1, got %d", result.Stats.FilesFailed)
	}
	if result.Incomplete {
		t.Error("expected Incomplete=false for per-file parse failure")
	}
}
