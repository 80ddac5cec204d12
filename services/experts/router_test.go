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
	"log/slog"
	"math"
	"os"
	"testing"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/ast"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/compress"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// addSym adds one symbol and returns it for edge wiring.
func addSym(t *testing.T, g *graph.Graph, name string, kind ast.SymbolKind, lang, file string, start, end int) *ast.Symbol {
	t.Helper()
	sym := &ast.Symbol{
		ID:        ast.GenerateID(file, start, name),
		Name:      name,
		Kind:      kind,
		FilePath:  file,
		Language:  lang,
		StartLine: start,
		EndLine:   end,
	}
	if _, err := g.AddNode(sym); err != nil {
		t.Fatalf("AddNode(%s): %v", name, err)
	}
	return sym
}

// addFuncs adds n function symbols for one language and returns them.
func addFuncs(t *testing.T, g *graph.Graph, lang string, n int) []*ast.Symbol {
	t.Helper()
	file := lang + "_funcs." + lang
	syms := make([]*ast.Symbol, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%sFn%d", lang, i)
		syms[i] = addSym(t, g, name, ast.SymbolKindFunction, lang, file, 10*(i+1), 10*(i+1)+4)
	}
	return syms
}

func newTestRouter(t *testing.T, reg *Registry) *Router {
	t.Helper()
	if reg == nil {
		reg = NewRegistry()
	}
	r, err := NewRouter(reg, testLogger(), 2)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return r
}

func TestRoute_SingleLanguage(t *testing.T) {
	g := graph.NewGraph("/single")
	addFuncs(t, g, "go", 3)
	g.Freeze()

	r := newTestRouter(t, nil)
	assignments, err := r.Route(nil, g)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(assignments) != 1 {
		t.Fatalf("got %d assignments, want 1", len(assignments))
	}
	if assignments[0].Language != "go" {
		t.Fatalf("language = %s, want go", assignments[0].Language)
	}
	if math.Abs(assignments[0].Weight-1) > 1e-12 {
		t.Fatalf("weight = %v, want 1", assignments[0].Weight)
	}
}

func TestRoute_WeightsFollowNodeShares(t *testing.T) {
	g := graph.NewGraph("/shares")
	addFuncs(t, g, "go", 3)
	addFuncs(t, g, "python", 1)
	g.Freeze()

	r := newTestRouter(t, nil)
	assignments, err := r.Route(nil, g)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("got %d assignments, want 2", len(assignments))
	}

	// Only the node term is present, so the normalized weights are the
	// plain node shares: 3/4 and 1/4.
	if assignments[0].Language != "go" || math.Abs(assignments[0].Weight-0.75) > 1e-12 {
		t.Fatalf("top = %+v, want go at 0.75", assignments[0])
	}
	if assignments[1].Language != "python" || math.Abs(assignments[1].Weight-0.25) > 1e-12 {
		t.Fatalf("second = %+v, want python at 0.25", assignments[1])
	}
}

func TestRoute_CompositeTermsShiftWeights(t *testing.T) {
	g := graph.NewGraph("/composite")
	goFns := addFuncs(t, g, "go", 2)
	addSym(t, g, "GoStore", ast.SymbolKindStruct, "go", "store.go", 5, 40)
	addFuncs(t, g, "python", 3)
	if err := g.AddEdge(goFns[0].ID, goFns[1].ID, graph.EdgeTypeCalls, 12); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := g.AddEdge(goFns[1].ID, goFns[0].ID, graph.EdgeTypeCalls, 22); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	g.Freeze()

	r := newTestRouter(t, nil)
	assignments, err := r.Route(nil, g)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	// go: node 3/6, all call edges, the only structural node.
	// python: node 3/6, nothing else.
	wantGo := (0.5*0.5 + 0.2 + 0.2) / (0.5*0.5 + 0.2 + 0.2 + 0.5*0.5)
	wantPy := (0.5 * 0.5) / (0.5*0.5 + 0.2 + 0.2 + 0.5*0.5)

	if assignments[0].Language != "go" || math.Abs(assignments[0].Weight-wantGo) > 1e-9 {
		t.Fatalf("top = %+v, want go at %v", assignments[0], wantGo)
	}
	if assignments[1].Language != "python" || math.Abs(assignments[1].Weight-wantPy) > 1e-9 {
		t.Fatalf("second = %+v, want python at %v", assignments[1], wantPy)
	}
}

func TestRoute_FloorKeepsMinorLanguage(t *testing.T) {
	g := graph.NewGraph("/floor")
	addFuncs(t, g, "go", 99)
	addFuncs(t, g, "python", 1)
	g.Freeze()

	r := newTestRouter(t, nil)
	assignments, err := r.Route(nil, g)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	var sum, pyWeight float64
	for _, a := range assignments {
		sum += a.Weight
		if a.Language == "python" {
			pyWeight = a.Weight
		}
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("weights sum to %v, want 1", sum)
	}
	// Raw python score 0.005 gets floored to 0.05 before normalizing,
	// so the tiny language still routes with a meaningful share.
	if pyWeight < 0.05 {
		t.Fatalf("python weight = %v, want at least 0.05", pyWeight)
	}
}

func TestRoute_EqualWeightsBreakTiesByName(t *testing.T) {
	g := graph.NewGraph("/tie")
	addFuncs(t, g, "python", 2)
	addFuncs(t, g, "javascript", 2)
	g.Freeze()

	r := newTestRouter(t, nil)
	assignments, err := r.Route(nil, g)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if assignments[0].Language != "javascript" || assignments[1].Language != "python" {
		t.Fatalf("order = [%s, %s], want alphabetical on equal weights",
			assignments[0].Language, assignments[1].Language)
	}
	if assignments[0].Weight != assignments[1].Weight {
		t.Fatalf("weights differ: %v vs %v", assignments[0].Weight, assignments[1].Weight)
	}
}

func TestRoute_RejectsBadGraphs(t *testing.T) {
	r := newTestRouter(t, nil)

	if _, err := r.Route(nil, nil); err == nil {
		t.Fatal("expected error for nil graph")
	}

	building := graph.NewGraph("/building")
	addFuncs(t, building, "go", 1)
	if _, err := r.Route(nil, building); err == nil {
		t.Fatal("expected error for unfrozen graph")
	}

	empty := graph.NewGraph("/empty")
	empty.Freeze()
	if _, err := r.Route(nil, empty); err == nil {
		t.Fatal("expected error for graph with no routable languages")
	}
}

// stubDetector returns fixed findings or a fixed error.
type stubDetector struct {
	name     string
	findings []Finding
	err      error
}

func (s *stubDetector) Analyze(context.Context, compress.Embedding, *graph.Graph) ([]Finding, error) {
	return s.findings, s.err
}

func (s *stubDetector) Name() string { return s.name }

func TestAnalyze_ScalesConfidenceByWeight(t *testing.T) {
	g := graph.NewGraph("/scale")
	addFuncs(t, g, "go", 3)
	addFuncs(t, g, "python", 1)
	g.Freeze()

	reg := NewRegistry()
	mustRegister(t, reg, "go", &stubDetector{name: "go.stub", findings: []Finding{{
		Pattern: "go.thing", Category: CategoryBugRisk, Severity: SeverityMedium,
		Confidence: 0.8, File: "a.go", Line: 3, Message: "m",
	}}})
	mustRegister(t, reg, "python", &stubDetector{name: "py.stub", findings: []Finding{{
		Pattern: "python.thing", Category: CategoryBugRisk, Severity: SeverityMedium,
		Confidence: 0.8, File: "b.py", Line: 7, Message: "m",
	}}})

	r := newTestRouter(t, reg)
	report, err := r.Analyze(context.Background(), nil, g)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(report.Findings) != 2 {
		t.Fatalf("got %d findings, want 2", len(report.Findings))
	}

	byPattern := map[string]Finding{}
	for _, f := range report.Findings {
		byPattern[f.Pattern] = f
	}
	// Weights are 0.75/0.25 (node shares), so 0.8 scales to 0.6 and 0.2.
	if got := byPattern["go.thing"].Confidence; math.Abs(got-0.6) > 1e-12 {
		t.Fatalf("go confidence = %v, want 0.6", got)
	}
	if got := byPattern["python.thing"].Confidence; math.Abs(got-0.2) > 1e-12 {
		t.Fatalf("python confidence = %v, want 0.2", got)
	}
	// Language backfilled from the assignment when the detector left it
	// empty.
	if byPattern["go.thing"].Language != "go" {
		t.Fatalf("language = %q, want go", byPattern["go.thing"].Language)
	}
}

func TestAnalyze_DetectorFailureDoesNotAbortSiblings(t *testing.T) {
	g := graph.NewGraph("/isolate")
	addFuncs(t, g, "go", 2)
	addFuncs(t, g, "python", 2)
	g.Freeze()

	reg := NewRegistry()
	mustRegister(t, reg, "go", &stubDetector{name: "go.broken", err: errors.New("model unavailable")})
	mustRegister(t, reg, "python", &stubDetector{name: "py.ok", findings: []Finding{{
		Pattern: "python.thing", Category: CategoryStyle, Severity: SeverityLow,
		Confidence: 0.5, File: "b.py", Line: 1, Message: "m",
	}}})

	r := newTestRouter(t, reg)
	report, err := r.Analyze(context.Background(), nil, g)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(report.Findings) != 1 || report.Findings[0].Pattern != "python.thing" {
		t.Fatalf("findings = %+v, want the python finding alone", report.Findings)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("failures = %+v, want exactly one", report.Failures)
	}
	fail := report.Failures[0]
	if fail.Detector != "go.broken" || fail.Language != "go" || fail.Reason != "model unavailable" {
		t.Fatalf("failure = %+v", fail)
	}
}

func TestAnalyze_MergesAcrossDetectors(t *testing.T) {
	g := graph.NewGraph("/merge")
	addFuncs(t, g, "go", 2)
	g.Freeze()

	shared := Finding{
		Pattern: "go.thing", Category: CategoryBugRisk,
		File: "a.go", Line: 3, Message: "m",
	}
	low := shared
	low.Severity = SeverityLow
	low.Confidence = 0.9
	high := shared
	high.Severity = SeverityHigh
	high.Confidence = 0.4

	reg := NewRegistry()
	mustRegister(t, reg, "go", &stubDetector{name: "go.first", findings: []Finding{low}})
	mustRegister(t, reg, "go", &stubDetector{name: "go.second", findings: []Finding{high}})

	r := newTestRouter(t, reg)
	report, err := r.Analyze(context.Background(), nil, g)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(report.Findings) != 1 {
		t.Fatalf("got %d findings, want 1 after merge", len(report.Findings))
	}
	if report.Findings[0].Severity != SeverityHigh {
		t.Fatalf("severity = %v, want the higher one", report.Findings[0].Severity)
	}
}

func TestAnalyze_EmptyRegistryStillRoutes(t *testing.T) {
	g := graph.NewGraph("/noexperts")
	addFuncs(t, g, "go", 2)
	g.Freeze()

	r := newTestRouter(t, NewRegistry())
	report, err := r.Analyze(context.Background(), nil, g)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(report.Assignments) != 1 {
		t.Fatalf("assignments = %+v", report.Assignments)
	}
	if len(report.Findings) != 0 || len(report.Failures) != 0 {
		t.Fatalf("expected empty findings and failures, got %+v", report)
	}
}

func TestAnalyze_CancelledContext(t *testing.T) {
	g := graph.NewGraph("/cancel")
	addFuncs(t, g, "go", 2)
	g.Freeze()

	reg := NewRegistry()
	mustRegister(t, reg, "go", &stubDetector{name: "go.stub"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRouter(t, reg)
	if _, err := r.Analyze(ctx, nil, g); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestNewRouter_Validation(t *testing.T) {
	if _, err := NewRouter(nil, testLogger(), 0); err == nil {
		t.Fatal("expected error for nil registry")
	}
	if _, err := NewRouter(NewRegistry(), testLogger(), -1); err == nil {
		t.Fatal("expected error for negative workers")
	}
	r, err := NewRouter(NewRegistry(), nil, 0)
	if err != nil {
		t.Fatalf("NewRouter with defaults: %v", err)
	}
	if r.workers < 1 {
		t.Fatalf("workers = %d, want at least 1", r.workers)
	}
}

func mustRegister(t *testing.T, reg *Registry, lang string, d Detector) {
	t.Helper()
	if err := reg.Register(lang, d); err != nil {
		t.Fatalf("Register(%s, %s): %v", lang, d.Name(), err)
	}
}
