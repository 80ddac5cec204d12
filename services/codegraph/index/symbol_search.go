// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index provides relevance-ranked symbol search over frozen
// code graphs.
//
// The graph itself answers exact-name and kind lookups in O(1); this
// package adds the query surface on top: scored matching with exact,
// prefix, word-boundary, substring, and edit-distance classes, with
// deterministic result ordering.
package index

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/ast"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
)

var searchTracer = otel.Tracer("gnn.codegraph.index")

const (
	// DefaultLimit bounds result counts when the caller passes none.
	DefaultLimit = 50

	// cancelCheckInterval is how many nodes are scored between context
	// cancellation checks.
	cancelCheckInterval = 1024
)

// Match classes, best to worst.
const (
	MatchExact     = "exact"
	MatchPrefix    = "prefix"
	MatchWord      = "word"
	MatchSubstring = "substring"
	MatchFuzzy     = "fuzzy"
)

// Match pairs a graph node with its search relevance.
type Match struct {
	// Node is the matched graph node.
	Node *graph.Node

	// Score ranks the match; lower is better.
	Score int

	// Class names the match type, one of the Match* constants.
	Class string
}

// SymbolSearch answers ranked name queries over one frozen graph.
//
// Thread Safety: safe for concurrent use. The graph is immutable and
// the search holds no mutable state.
type SymbolSearch struct {
	nodes []*graph.Node
}

// New builds a search over the graph's named nodes.
//
// External placeholders are excluded: they mirror unresolved
// references, not declarations.
func New(g *graph.Graph) (*SymbolSearch, error) {
	if g == nil {
		return nil, errors.New("index: graph must not be nil")
	}
	if !g.Frozen() {
		return nil, errors.New("index: graph must be frozen")
	}

	all := g.Nodes()
	nodes := make([]*graph.Node, 0, len(all))
	for _, n := range all {
		if n.Symbol.Kind == ast.SymbolKindExternal || n.Symbol.Name == "" {
			continue
		}
		nodes = append(nodes, n)
	}
	return &SymbolSearch{nodes: nodes}, nil
}

// Len reports how many nodes the search covers.
func (s *SymbolSearch) Len() int {
	return len(s.nodes)
}

// Search scores every covered node against the query and returns the
// best matches.
//
// Results order by score ascending, then name, then node ID, so equal
// inputs always produce equal output. A non-positive limit selects
// DefaultLimit. The context is checked periodically during the scan.
func (s *SymbolSearch) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	ctx, span := searchTracer.Start(ctx, "index.Search")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("index: query must not be empty")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	queryLower := strings.ToLower(query)
	matches := make([]Match, 0, 16)
	for i, n := range s.nodes {
		if (i+1)%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		score, class := scoreName(query, queryLower, n.Symbol)
		if score < 0 {
			continue
		}
		matches = append(matches, Match{Node: n, Score: score, Class: class})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score < matches[j].Score
		}
		ni, nj := matches[i].Node.Symbol.Name, matches[j].Node.Symbol.Name
		if ni != nj {
			return ni < nj
		}
		return matches[i].Node.ID() < matches[j].Node.ID()
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	span.SetAttributes(
		attribute.String("index.query", query),
		attribute.Int("index.candidates", len(s.nodes)),
		attribute.Int("index.matches", len(matches)),
	)
	return matches, nil
}

// scoreName computes the composite relevance of one symbol:
//
//	score = contextPenalty +
//	        class*10000 + positionPenalty*100 + lengthPenalty*10 + kindRank
//
// Lower is better. A negative score means no match. The class term
// dominates within a context, so an exact match always outranks a
// prefix match and so on. The context penalty dominates the class
// term: a fuzzy match in production source still outranks an exact
// match in a test file.
func scoreName(query, queryLower string, sym *ast.Symbol) (int, string) {
	name := sym.Name
	nameLower := strings.ToLower(name)
	base := contextPenalty(sym)

	if nameLower == queryLower {
		return base + kindRank(sym.Kind), MatchExact
	}

	var class, pos int
	var className string
	if strings.HasPrefix(nameLower, queryLower) {
		class, className, pos = 1, MatchPrefix, 0
	} else if p := wordBoundaryMatch(name, query); p >= 0 {
		class, className, pos = 2, MatchWord, p
	} else if p := strings.Index(nameLower, queryLower); p >= 0 {
		class, className, pos = 3, MatchSubstring, p
	} else {
		// Threshold scales with query length: 30% error rate, floor 2.
		threshold := max(2, len(queryLower)/3)
		if editDistance(nameLower, queryLower) <= threshold {
			class, className, pos = 4, MatchFuzzy, 0
		} else {
			return -1, ""
		}
	}

	posPenalty := 0
	if len(name) > 0 && pos > 0 {
		posPenalty = min(99, pos*100/len(name))
	}
	lengthPenalty := min(99, abs(len(name)-len(query)))

	score := base +
		class*10000 + posPenalty*100 + lengthPenalty*10 + kindRank(sym.Kind)
	return score, className
}

// Context penalty weights. The test-file weight exceeds the whole
// class span (49999), so production-source matches of any class rank
// ahead of test-file matches.
const (
	testFilePenalty   = 50000
	unexportedPenalty = 20000
	underscorePenalty = 10000
	depthPenaltyStep  = 1000
	depthFreeLevels   = 2
)

// contextPenalty downranks symbols a caller is unlikely to be looking
// for: test code, unexported names, underscore-prefixed names, and
// deeply nested files.
func contextPenalty(sym *ast.Symbol) int {
	p := 0
	if isTestFile(sym.FilePath) {
		p += testFilePenalty
	}
	if !sym.Exported {
		p += unexportedPenalty
	}
	if strings.HasPrefix(sym.Name, "_") {
		p += underscorePenalty
	}
	depth := strings.Count(sym.FilePath, "/")
	if depth > depthFreeLevels {
		p += (depth - depthFreeLevels) * depthPenaltyStep
	}
	return p
}

// isTestFile reports whether the path names test code in any of the
// supported languages, by filename convention or directory.
func isTestFile(path string) bool {
	if path == "" {
		return false
	}
	lower := strings.ToLower(path)

	parts := strings.Split(lower, "/")
	for _, dir := range parts[:len(parts)-1] {
		switch dir {
		case "test", "tests", "testing", "__tests__":
			return true
		}
	}

	base := parts[len(parts)-1]
	switch {
	case strings.HasSuffix(base, "_test.go"):
		return true
	case base == "conftest.py":
		return true
	case strings.HasSuffix(base, ".py") && (strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.py")):
		return true
	case strings.Contains(base, ".test.") || strings.Contains(base, ".spec."):
		return true
	}
	return false
}

// kindRank orders symbol kinds within a match class: callables before
// type declarations before data symbols.
func kindRank(kind ast.SymbolKind) int {
	switch kind {
	case ast.SymbolKindFunction, ast.SymbolKindMethod:
		return 0
	case ast.SymbolKindStruct, ast.SymbolKindClass, ast.SymbolKindInterface,
		ast.SymbolKindTrait, ast.SymbolKindEnum, ast.SymbolKindTypeAlias:
		return 1
	case ast.SymbolKindVariable, ast.SymbolKindConstant:
		return 2
	case ast.SymbolKindField, ast.SymbolKindParameter:
		return 3
	default:
		return 5
	}
}

// wordBoundaryMatch reports the position where the query starts on a
// word boundary of a camelCase, PascalCase, or snake_case name, -1
// when it never does. The match must also end on a boundary, so
// "process" matches "process_data" and "getDatesToProcess" but not
// "Unprocessed".
func wordBoundaryMatch(name, query string) int {
	if len(query) == 0 || len(name) == 0 || len(query) > len(name) {
		return -1
	}
	queryLower := strings.ToLower(query)

	for i := 0; i+len(query) <= len(name); i++ {
		boundary := i == 0 ||
			name[i-1] == '_' ||
			(isUpper(name[i]) && !isUpper(name[i-1]))
		if !boundary || name[i] == '_' {
			continue
		}
		if strings.ToLower(name[i:i+len(query)]) != queryLower {
			continue
		}
		end := i + len(query)
		if end == len(name) || isUpper(name[end]) || !isLetter(name[end]) {
			return i
		}
	}
	return -1
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// editDistance is the Levenshtein distance over bytes, computed with
// two rows instead of the full matrix.
func editDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
