// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package features

import (
	"testing"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/ast"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
)

func featSymbol(name string, kind ast.SymbolKind, line int) *ast.Symbol {
	return &ast.Symbol{
		ID:        ast.GenerateID("feat.go", line, name),
		Name:      name,
		Kind:      kind,
		FilePath:  "feat.go",
		Language:  "go",
		StartLine: line,
		EndLine:   line + 9,
	}
}

// buildFeatureGraph constructs a small frozen graph:
// Process calls Helper, Process reads Config.
func buildFeatureGraph(t *testing.T) *graph.Graph {
	t.Helper()

	g := graph.NewGraph("/feat")

	process := featSymbol("Process", ast.SymbolKindFunction, 10)
	process.Exported = true
	helper := featSymbol("helper", ast.SymbolKindFunction, 30)
	config := featSymbol("config", ast.SymbolKindVariable, 5)

	for _, sym := range []*ast.Symbol{process, helper, config} {
		if _, err := g.AddNode(sym); err != nil {
			t.Fatalf("AddNode(%s) failed: %v", sym.Name, err)
		}
	}
	if err := g.AddEdge(process.ID, helper.ID, graph.EdgeTypeCalls, 12); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}
	if err := g.AddEdge(process.ID, config.ID, graph.EdgeTypeReads, 14); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}
	g.Freeze()
	return g
}

func TestMatrix_Shape(t *testing.T) {
	g := buildFeatureGraph(t)

	m := Matrix(g)
	if want := g.NodeCount() * Dim; len(m) != want {
		t.Fatalf("Matrix length = %d, want %d", len(m), want)
	}
}

func TestMatrix_EmptyGraph(t *testing.T) {
	g := graph.NewGraph("/empty")
	g.Freeze()

	if m := Matrix(g); len(m) != 0 {
		t.Errorf("Matrix of empty graph has length %d, want 0", len(m))
	}
}

func TestMatrix_Deterministic(t *testing.T) {
	a := Matrix(buildFeatureGraph(t))
	b := Matrix(buildFeatureGraph(t))

	if len(a) != len(b) {
		t.Fatalf("matrix lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("matrices differ at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestNodeVector_KindBlock(t *testing.T) {
	g := buildFeatureGraph(t)

	node, ok := g.GetNode(ast.GenerateID("feat.go", 10, "Process"))
	if !ok {
		t.Fatal("Process node not found")
	}
	vec := NodeVector(g, node)

	// Exactly one slot in the kind block, at the kind's fixed index.
	kindIdx := ast.SymbolKindFunction.Index()
	for i := 0; i < 40; i++ {
		want := float32(0)
		if i == kindIdx {
			want = 1
		}
		if vec[i] != want {
			t.Errorf("kind block slot %d = %v, want %v", i, vec[i], want)
		}
	}
}

func TestNodeVector_LanguageBlock(t *testing.T) {
	g := buildFeatureGraph(t)

	node, ok := g.GetNode(ast.GenerateID("feat.go", 10, "Process"))
	if !ok {
		t.Fatal("Process node not found")
	}
	vec := NodeVector(g, node)

	// "go" occupies the first language slot.
	if vec[40] != 1 {
		t.Errorf("go language slot = %v, want 1", vec[40])
	}
	for i := 41; i < 48; i++ {
		if vec[i] != 0 {
			t.Errorf("language slot %d = %v, want 0", i, vec[i])
		}
	}
}

func TestNodeVector_UnknownLanguage(t *testing.T) {
	g := graph.NewGraph("/feat")
	sym := featSymbol("main", ast.SymbolKindFunction, 1)
	sym.Language = "rust"
	if _, err := g.AddNode(sym); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	g.Freeze()

	vec := NodeVector(g, g.NodeAt(0))
	if vec[45] != 1 {
		t.Errorf("other language slot = %v, want 1", vec[45])
	}
	if vec[40] != 0 {
		t.Errorf("go language slot = %v, want 0 for rust symbol", vec[40])
	}
}

func TestNodeVector_DegreeScalars(t *testing.T) {
	g := buildFeatureGraph(t)

	process, _ := g.GetNode(ast.GenerateID("feat.go", 10, "Process"))
	helper, _ := g.GetNode(ast.GenerateID("feat.go", 30, "helper"))
	if process == nil || helper == nil {
		t.Fatal("fixture nodes not found")
	}

	pv := NodeVector(g, process)
	hv := NodeVector(g, helper)

	// Process has two outgoing edges and none incoming.
	if pv[48] <= 0 {
		t.Errorf("out-degree scalar = %v, want > 0", pv[48])
	}
	if pv[49] != 0 {
		t.Errorf("in-degree scalar = %v, want 0", pv[49])
	}
	// helper is the reverse.
	if hv[48] != 0 {
		t.Errorf("helper out-degree scalar = %v, want 0", hv[48])
	}
	if hv[49] <= 0 {
		t.Errorf("helper in-degree scalar = %v, want > 0", hv[49])
	}
	// Total degree exceeds either direction alone for Process.
	if pv[50] < pv[48] {
		t.Errorf("total degree %v < out degree %v", pv[50], pv[48])
	}
}

func TestNodeVector_ExportedFlag(t *testing.T) {
	g := buildFeatureGraph(t)

	process, _ := g.GetNode(ast.GenerateID("feat.go", 10, "Process"))
	helper, _ := g.GetNode(ast.GenerateID("feat.go", 30, "helper"))
	if process == nil || helper == nil {
		t.Fatal("fixture nodes not found")
	}

	if v := NodeVector(g, process)[52]; v != 1 {
		t.Errorf("exported flag for Process = %v, want 1", v)
	}
	if v := NodeVector(g, helper)[52]; v != 0 {
		t.Errorf("exported flag for helper = %v, want 0", v)
	}
}

func TestNodeVector_PlaceholderFlag(t *testing.T) {
	g := graph.NewGraph("/feat")
	ext := &ast.Symbol{
		ID:       "external:fmt:fmt",
		Name:     "fmt",
		Kind:     ast.SymbolKindExternal,
		FilePath: "external",
		Language: "external",
	}
	if _, err := g.AddNode(ext); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	g.Freeze()

	vec := NodeVector(g, g.NodeAt(0))
	if vec[55] != 1 {
		t.Errorf("placeholder flag = %v, want 1", vec[55])
	}
	if vec[44] != 1 {
		t.Errorf("external language slot = %v, want 1", vec[44])
	}
}

func TestNodeVector_NameBucket(t *testing.T) {
	g := buildFeatureGraph(t)

	node, ok := g.GetNode(ast.GenerateID("feat.go", 10, "Process"))
	if !ok {
		t.Fatal("Process node not found")
	}
	vec := NodeVector(g, node)

	set := 0
	for i := 56; i < Dim; i++ {
		if vec[i] == 1 {
			set++
		} else if vec[i] != 0 {
			t.Errorf("name bucket %d = %v, want 0 or 1", i, vec[i])
		}
	}
	if set != 1 {
		t.Errorf("name block has %d set buckets, want exactly 1", set)
	}

	// Same name always lands in the same bucket.
	if a, b := nameBucket("Process"), nameBucket("Process"); a != b {
		t.Errorf("nameBucket not deterministic: %d vs %d", a, b)
	}
	if nameBucket("Process") == nameBucket("helper") {
		t.Log("Process and helper share a bucket (hash collision, allowed)")
	}
}

func TestLogScale(t *testing.T) {
	if v := logScale(0); v != 0 {
		t.Errorf("logScale(0) = %v, want 0", v)
	}
	if v := logScale(-3); v != 0 {
		t.Errorf("logScale(-3) = %v, want 0", v)
	}
	if a, b := logScale(10), logScale(10000); a >= b {
		t.Errorf("logScale not monotonic: %v >= %v", a, b)
	}
	if b := logScale(10000); b > 10 {
		t.Errorf("logScale(10000) = %v, want compressed below 10", b)
	}
}
