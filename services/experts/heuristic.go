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
	"fmt"
	"strings"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/ast"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/compress"
)

// Default heuristic thresholds. Per-language configs adjust these
// where a language's idiom differs.
const (
	defaultMaxFanOut       = 12
	defaultMaxFunctionSpan = 300
	defaultMaxTypeMembers  = 20
	defaultMinUnresolved   = 8

	// heuristicCheckInterval is how many nodes the scan visits between
	// context checks.
	heuristicCheckInterval = 2048
)

// credentialTokens are name fragments that suggest an embedded secret.
var credentialTokens = []string{
	"password", "passwd", "secret", "apikey", "api_key",
	"private_key", "credential", "auth_token", "access_token",
}

// HeuristicConfig tunes the reference detector for one language.
type HeuristicConfig struct {
	// Language is the tag this detector reports on. Required.
	Language string

	// MaxFanOut is the call out-degree at which a function is flagged.
	MaxFanOut int

	// MaxFunctionSpan is the line span at which a function is flagged.
	MaxFunctionSpan int

	// MaxTypeMembers is the contained-member count at which a type is
	// flagged.
	MaxTypeMembers int

	// MinUnresolved is the minimum count of unresolved outgoing
	// references before the graph-level density finding fires.
	MinUnresolved int

	// EntryPoints are function names exempt from the dead-symbol
	// check: the runtime or framework calls them, not the graph.
	EntryPoints []string
}

// DefaultHeuristicConfig returns the tuned config for a built-in
// language.
func DefaultHeuristicConfig(language string) HeuristicConfig {
	cfg := HeuristicConfig{
		Language:        strings.ToLower(language),
		MaxFanOut:       defaultMaxFanOut,
		MaxFunctionSpan: defaultMaxFunctionSpan,
		MaxTypeMembers:  defaultMaxTypeMembers,
		MinUnresolved:   defaultMinUnresolved,
	}
	switch cfg.Language {
	case "go":
		cfg.EntryPoints = []string{"main", "init", "TestMain"}
	case "python":
		cfg.MaxFunctionSpan = 200
		cfg.EntryPoints = []string{"main", "__main__", "__init__"}
	case "javascript", "typescript":
		cfg.MaxFanOut = 15
		cfg.EntryPoints = []string{"main", "default", "handler"}
	}
	return cfg
}

// HeuristicDetector is the reference language expert: pure structural
// heuristics over the graph, no model and no I/O.
//
// # Description
//
// One pass over the edges builds per-node degree counts, then one pass
// over the nodes of the detector's language emits findings: embedded
// credential names (security), direct recursion (performance), high
// call fan-out (bug risk), oversized functions (style), god types
// (idiom), uncalled private functions (idiom), and a graph-level
// unresolved-reference density flag (bug risk). Findings come back in
// node index order, so output is deterministic for a frozen graph.
//
// # Thread Safety
//
// Stateless. Safe for concurrent use.
type HeuristicDetector struct {
	cfg     HeuristicConfig
	entries map[string]bool
}

// NewHeuristicDetector creates the reference detector for cfg's
// language. Zero thresholds fall back to the defaults.
func NewHeuristicDetector(cfg HeuristicConfig) *HeuristicDetector {
	if cfg.Language == "" {
		panic("experts: heuristic detector requires a language")
	}
	cfg.Language = strings.ToLower(cfg.Language)
	if cfg.MaxFanOut <= 0 {
		cfg.MaxFanOut = defaultMaxFanOut
	}
	if cfg.MaxFunctionSpan <= 0 {
		cfg.MaxFunctionSpan = defaultMaxFunctionSpan
	}
	if cfg.MaxTypeMembers <= 0 {
		cfg.MaxTypeMembers = defaultMaxTypeMembers
	}
	if cfg.MinUnresolved <= 0 {
		cfg.MinUnresolved = defaultMinUnresolved
	}

	entries := make(map[string]bool, len(cfg.EntryPoints))
	for _, name := range cfg.EntryPoints {
		entries[name] = true
	}
	return &HeuristicDetector{cfg: cfg, entries: entries}
}

// Name identifies the detector in reports and logs.
func (d *HeuristicDetector) Name() string {
	return d.cfg.Language + ".heuristics"
}

// nodeCounts carries the per-node degrees one edge pass produces.
type nodeCounts struct {
	callOut     []int
	containsOut []int
	callIn      []int
	unresolved  []int
	recursive   []bool
}

// Analyze runs all heuristic checks for the detector's language.
func (d *HeuristicDetector) Analyze(ctx context.Context, _ compress.Embedding, g *graph.Graph) ([]Finding, error) {
	if g == nil {
		return nil, fmt.Errorf("experts: graph must not be nil")
	}
	if !g.Frozen() {
		return nil, fmt.Errorf("experts: graph must be frozen before analysis")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nodes := g.Nodes()
	counts := countDegrees(g, nodes)

	var findings []Finding
	langCalls, langUnresolved := 0, 0

	for i, node := range nodes {
		if i%heuristicCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		sym := node.Symbol
		if sym.Language != d.cfg.Language || sym.Kind == ast.SymbolKindExternal {
			continue
		}
		langCalls += counts.callOut[i]
		langUnresolved += counts.unresolved[i]

		findings = append(findings, d.checkNode(node, counts)...)
	}

	if f, ok := d.checkUnresolvedDensity(langCalls, langUnresolved); ok {
		findings = append(findings, f)
	}
	return findings, nil
}

// countDegrees tallies per-node degrees in one pass over the edges.
func countDegrees(g *graph.Graph, nodes []*graph.Node) nodeCounts {
	n := len(nodes)
	counts := nodeCounts{
		callOut:     make([]int, n),
		containsOut: make([]int, n),
		callIn:      make([]int, n),
		unresolved:  make([]int, n),
		recursive:   make([]bool, n),
	}
	for _, e := range g.Edges() {
		switch e.Type {
		case graph.EdgeTypeCalls, graph.EdgeTypeInstantiates:
			counts.callOut[e.From]++
			counts.callIn[e.To]++
			if e.From == e.To {
				counts.recursive[e.From] = true
			}
		case graph.EdgeTypeReferences:
			counts.callIn[e.To]++
		case graph.EdgeTypeContains:
			counts.containsOut[e.From]++
		case graph.EdgeTypeUnresolved:
			counts.unresolved[e.From]++
		}
	}
	return counts
}

// checkNode emits every node-local finding for one symbol.
func (d *HeuristicDetector) checkNode(node *graph.Node, counts nodeCounts) []Finding {
	sym := node.Symbol
	idx := node.Index
	var out []Finding

	if isValueKind(sym.Kind) && credentialName(sym.Name) {
		out = append(out, Finding{
			Pattern:    d.cfg.Language + ".hardcoded_credential",
			Category:   CategorySecurity,
			Severity:   SeverityMedium,
			Confidence: 0.4,
			Language:   d.cfg.Language,
			File:       sym.FilePath,
			Line:       sym.StartLine,
			Message:    fmt.Sprintf("%s %q looks like an embedded credential", sym.Kind, sym.Name),
			Suggestion: "load the value from configuration or a secret store",
		})
	}

	if !isCallableKind(sym.Kind) {
		if isStructuralKind(sym.Kind) && counts.containsOut[idx] >= d.cfg.MaxTypeMembers {
			out = append(out, Finding{
				Pattern:    d.cfg.Language + ".god_type",
				Category:   CategoryIdiom,
				Severity:   SeverityLow,
				Confidence: 0.55,
				Language:   d.cfg.Language,
				File:       sym.FilePath,
				Line:       sym.StartLine,
				Message:    fmt.Sprintf("%s %q has %d members", sym.Kind, sym.Name, counts.containsOut[idx]),
				Suggestion: "split the type along its member clusters",
			})
		}
		return out
	}

	if counts.recursive[idx] {
		out = append(out, Finding{
			Pattern:    d.cfg.Language + ".direct_recursion",
			Category:   CategoryPerformance,
			Severity:   SeverityInfo,
			Confidence: 0.6,
			Language:   d.cfg.Language,
			File:       sym.FilePath,
			Line:       sym.StartLine,
			Message:    fmt.Sprintf("%q calls itself directly", sym.Name),
			Suggestion: "confirm the recursion depth is bounded",
		})
	}

	if fanOut := counts.callOut[idx]; fanOut >= d.cfg.MaxFanOut {
		excess := fanOut - d.cfg.MaxFanOut
		out = append(out, Finding{
			Pattern:    d.cfg.Language + ".high_fan_out",
			Category:   CategoryBugRisk,
			Severity:   SeverityMedium,
			Confidence: minf(0.9, 0.5+0.02*float64(excess)),
			Language:   d.cfg.Language,
			File:       sym.FilePath,
			Line:       sym.StartLine,
			Message:    fmt.Sprintf("%q calls %d distinct targets", sym.Name, fanOut),
			Suggestion: "split the function along its call clusters",
		})
	}

	if span := sym.LineCount(); span >= d.cfg.MaxFunctionSpan {
		out = append(out, Finding{
			Pattern:    d.cfg.Language + ".long_function",
			Category:   CategoryStyle,
			Severity:   SeverityLow,
			Confidence: 0.6,
			Language:   d.cfg.Language,
			File:       sym.FilePath,
			Line:       sym.StartLine,
			Message:    fmt.Sprintf("%q spans %d lines", sym.Name, span),
		})
	}

	if sym.Kind == ast.SymbolKindFunction &&
		counts.callIn[idx] == 0 &&
		!sym.Exported &&
		!d.entries[sym.Name] {
		out = append(out, Finding{
			Pattern:    d.cfg.Language + ".dead_symbol",
			Category:   CategoryIdiom,
			Severity:   SeverityInfo,
			Confidence: 0.3,
			Language:   d.cfg.Language,
			File:       sym.FilePath,
			Line:       sym.StartLine,
			Message:    fmt.Sprintf("private function %q is never referenced in the graph", sym.Name),
			Suggestion: "remove it or wire it to a caller",
		})
	}

	return out
}

// checkUnresolvedDensity emits the graph-level finding when at least
// half of the language's outgoing call-shaped references failed to
// resolve.
func (d *HeuristicDetector) checkUnresolvedDensity(calls, unresolved int) (Finding, bool) {
	total := calls + unresolved
	if unresolved < d.cfg.MinUnresolved || unresolved*2 < total {
		return Finding{}, false
	}
	return Finding{
		Pattern:    d.cfg.Language + ".unresolved_references",
		Category:   CategoryBugRisk,
		Severity:   SeverityLow,
		Confidence: 0.5,
		Language:   d.cfg.Language,
		Message:    fmt.Sprintf("%d of %d outgoing references did not resolve", unresolved, total),
		Suggestion: "build the graph with dependency sources present",
	}, true
}

func isValueKind(k ast.SymbolKind) bool {
	switch k {
	case ast.SymbolKindVariable, ast.SymbolKindConstant, ast.SymbolKindField:
		return true
	}
	return false
}

func isCallableKind(k ast.SymbolKind) bool {
	switch k {
	case ast.SymbolKindFunction, ast.SymbolKindMethod, ast.SymbolKindClosure, ast.SymbolKindLambda:
		return true
	}
	return false
}

func isStructuralKind(k ast.SymbolKind) bool {
	switch k {
	case ast.SymbolKindStruct, ast.SymbolKindClass, ast.SymbolKindInterface,
		ast.SymbolKindTrait, ast.SymbolKindEnum, ast.SymbolKindModule:
		return true
	}
	return false
}

// credentialName reports whether a symbol name contains a fragment
// that suggests an embedded secret.
func credentialName(name string) bool {
	lower := strings.ToLower(name)
	for _, tok := range credentialTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
