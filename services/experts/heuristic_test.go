// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package experts

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/ast"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
)

func goDetector() *HeuristicDetector {
	return NewHeuristicDetector(DefaultHeuristicConfig("go"))
}

// findByPattern returns the findings carrying the pattern.
func findByPattern(findings []Finding, pattern string) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Pattern == pattern {
			out = append(out, f)
		}
	}
	return out
}

func analyze(t *testing.T, d *HeuristicDetector, g *graph.Graph) []Finding {
	t.Helper()
	findings, err := d.Analyze(context.Background(), nil, g)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return findings
}

func TestHeuristic_HighFanOut(t *testing.T) {
	g := graph.NewGraph("/fanout")
	caller := addSym(t, g, "dispatch", ast.SymbolKindFunction, "go", "d.go", 10, 40)
	for i := 0; i < defaultMaxFanOut; i++ {
		callee := addSym(t, g, fmt.Sprintf("target%d", i), ast.SymbolKindFunction, "go", "t.go", 10*(i+1), 10*(i+1)+3)
		if err := g.AddEdge(caller.ID, callee.ID, graph.EdgeTypeCalls, 12+i); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	g.Freeze()

	hits := findByPattern(analyze(t, goDetector(), g), "go.high_fan_out")
	if len(hits) != 1 {
		t.Fatalf("got %d high_fan_out findings, want 1", len(hits))
	}
	f := hits[0]
	if f.Category != CategoryBugRisk || f.Severity != SeverityMedium {
		t.Fatalf("finding = %+v", f)
	}
	if f.File != "d.go" || f.Line != 10 {
		t.Fatalf("location = %s:%d, want d.go:10", f.File, f.Line)
	}
	// Exactly at the threshold there is no excess, so confidence sits
	// at the base 0.5.
	if f.Confidence != 0.5 {
		t.Fatalf("confidence = %v, want 0.5", f.Confidence)
	}
}

func TestHeuristic_LongFunction(t *testing.T) {
	g := graph.NewGraph("/long")
	addSym(t, g, "megaHandler", ast.SymbolKindFunction, "go", "h.go", 1, defaultMaxFunctionSpan)
	addSym(t, g, "small", ast.SymbolKindFunction, "go", "h.go", 400, 410)
	g.Freeze()

	hits := findByPattern(analyze(t, goDetector(), g), "go.long_function")
	if len(hits) != 1 {
		t.Fatalf("got %d long_function findings, want 1", len(hits))
	}
	if hits[0].Category != CategoryStyle || hits[0].Severity != SeverityLow {
		t.Fatalf("finding = %+v", hits[0])
	}
}

func TestHeuristic_CredentialName(t *testing.T) {
	g := graph.NewGraph("/cred")
	addSym(t, g, "dbPassword", ast.SymbolKindVariable, "go", "cfg.go", 12, 12)
	addSym(t, g, "awsSecretKey", ast.SymbolKindConstant, "go", "cfg.go", 14, 14)
	addSym(t, g, "dbHost", ast.SymbolKindVariable, "go", "cfg.go", 16, 16)
	g.Freeze()

	hits := findByPattern(analyze(t, goDetector(), g), "go.hardcoded_credential")
	if len(hits) != 2 {
		t.Fatalf("got %d credential findings, want 2: %+v", len(hits), hits)
	}
	for _, f := range hits {
		if f.Category != CategorySecurity || f.Severity != SeverityMedium {
			t.Fatalf("finding = %+v", f)
		}
		if f.Suggestion == "" {
			t.Fatal("credential finding should carry a fix suggestion")
		}
	}
}

func TestHeuristic_DirectRecursion(t *testing.T) {
	g := graph.NewGraph("/rec")
	walker := addSym(t, g, "walk", ast.SymbolKindFunction, "go", "w.go", 5, 30)
	if err := g.AddEdge(walker.ID, walker.ID, graph.EdgeTypeCalls, 18); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	g.Freeze()

	hits := findByPattern(analyze(t, goDetector(), g), "go.direct_recursion")
	if len(hits) != 1 {
		t.Fatalf("got %d recursion findings, want 1", len(hits))
	}
	if hits[0].Category != CategoryPerformance {
		t.Fatalf("category = %v, want performance", hits[0].Category)
	}
}

func TestHeuristic_DeadSymbol(t *testing.T) {
	g := graph.NewGraph("/dead")

	orphan := addSym(t, g, "unusedHelper", ast.SymbolKindFunction, "go", "a.go", 5, 9)
	_ = orphan

	exported := addSym(t, g, "PublicAPI", ast.SymbolKindFunction, "go", "a.go", 20, 24)
	exported.Exported = true

	addSym(t, g, "main", ast.SymbolKindFunction, "go", "main.go", 1, 40)

	caller := addSym(t, g, "caller", ast.SymbolKindFunction, "go", "b.go", 5, 9)
	called := addSym(t, g, "calledHelper", ast.SymbolKindFunction, "go", "b.go", 15, 19)
	if err := g.AddEdge(caller.ID, called.ID, graph.EdgeTypeCalls, 7); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	g.Freeze()

	hits := findByPattern(analyze(t, goDetector(), g), "go.dead_symbol")

	names := map[string]bool{}
	for _, f := range hits {
		names[f.Message] = true
	}
	// unusedHelper and caller are private and never called; the
	// exported function, the entrypoint, and the called helper are not
	// flagged.
	if len(hits) != 2 {
		t.Fatalf("got %d dead_symbol findings, want 2: %v", len(hits), names)
	}
	for _, f := range hits {
		if f.Severity != SeverityInfo || f.Category != CategoryIdiom {
			t.Fatalf("finding = %+v", f)
		}
	}
}

func TestHeuristic_GodType(t *testing.T) {
	g := graph.NewGraph("/god")
	store := addSym(t, g, "MegaStore", ast.SymbolKindStruct, "go", "s.go", 1, 400)
	for i := 0; i < defaultMaxTypeMembers; i++ {
		field := addSym(t, g, fmt.Sprintf("field%d", i), ast.SymbolKindField, "go", "s.go", 2+i, 2+i)
		if err := g.AddEdge(store.ID, field.ID, graph.EdgeTypeContains, 2+i); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	g.Freeze()

	hits := findByPattern(analyze(t, goDetector(), g), "go.god_type")
	if len(hits) != 1 {
		t.Fatalf("got %d god_type findings, want 1", len(hits))
	}
	if hits[0].Category != CategoryIdiom {
		t.Fatalf("category = %v, want idiom", hits[0].Category)
	}
}

func TestHeuristic_UnresolvedDensity(t *testing.T) {
	g := graph.NewGraph("/unresolved")
	fn := addSym(t, g, "orchestrate", ast.SymbolKindFunction, "go", "o.go", 1, 60)
	for i := 0; i < defaultMinUnresolved; i++ {
		ext := &ast.Symbol{
			ID:       fmt.Sprintf("external:mystery%d", i),
			Name:     fmt.Sprintf("mystery%d", i),
			Kind:     ast.SymbolKindExternal,
			Language: "go",
		}
		if _, err := g.AddNode(ext); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
		if err := g.AddEdge(fn.ID, ext.ID, graph.EdgeTypeUnresolved, 10+i); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	g.Freeze()

	hits := findByPattern(analyze(t, goDetector(), g), "go.unresolved_references")
	if len(hits) != 1 {
		t.Fatalf("got %d unresolved findings, want 1", len(hits))
	}
	f := hits[0]
	if f.File != "" || f.Line != 0 {
		t.Fatalf("graph-level finding should have no location, got %s:%d", f.File, f.Line)
	}
	if f.Category != CategoryBugRisk {
		t.Fatalf("category = %v, want bug_risk", f.Category)
	}
}

func TestHeuristic_ResolvedGraphHasNoDensityFinding(t *testing.T) {
	g := graph.NewGraph("/resolved")
	fns := addFuncs(t, g, "go", 10)
	for i := 0; i+1 < len(fns); i++ {
		if err := g.AddEdge(fns[i].ID, fns[i+1].ID, graph.EdgeTypeCalls, 11); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	g.Freeze()

	hits := findByPattern(analyze(t, goDetector(), g), "go.unresolved_references")
	if len(hits) != 0 {
		t.Fatalf("got %d unresolved findings on a resolved graph, want 0", len(hits))
	}
}

func TestHeuristic_IgnoresOtherLanguages(t *testing.T) {
	g := graph.NewGraph("/mixed")
	addSym(t, g, "pyPassword", ast.SymbolKindVariable, "python", "cfg.py", 3, 3)
	addSym(t, g, "goThing", ast.SymbolKindVariable, "go", "t.go", 3, 3)
	g.Freeze()

	findings := analyze(t, goDetector(), g)
	for _, f := range findings {
		if f.Language != "go" {
			t.Fatalf("go detector reported %q finding: %+v", f.Language, f)
		}
	}
	if len(findByPattern(findings, "go.hardcoded_credential")) != 0 {
		t.Fatal("python credential attributed to go")
	}
}

func TestHeuristic_RejectsBadInput(t *testing.T) {
	d := goDetector()

	if _, err := d.Analyze(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil graph")
	}

	building := graph.NewGraph("/building")
	addFuncs(t, building, "go", 1)
	if _, err := d.Analyze(context.Background(), nil, building); err == nil {
		t.Fatal("expected error for unfrozen graph")
	}

	frozen := graph.NewGraph("/frozen")
	addFuncs(t, frozen, "go", 1)
	frozen.Freeze()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Analyze(ctx, nil, frozen); !errors.Is(err, context.Canceled) {
		t.Fatal("expected context error")
	}
}

func TestDefaultHeuristicConfig_PerLanguageTuning(t *testing.T) {
	py := DefaultHeuristicConfig("python")
	if py.MaxFunctionSpan >= DefaultHeuristicConfig("go").MaxFunctionSpan {
		t.Fatal("python span threshold should be tighter than go's")
	}
	js := DefaultHeuristicConfig("javascript")
	if js.MaxFanOut <= DefaultHeuristicConfig("go").MaxFanOut {
		t.Fatal("javascript fan-out threshold should be looser than go's")
	}
	if NewHeuristicDetector(py).Name() != "python.heuristics" {
		t.Fatalf("name = %s", NewHeuristicDetector(py).Name())
	}
}
