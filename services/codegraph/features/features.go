// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package features computes initial node feature vectors for code graphs.
//
// Feature extraction is fully deterministic: the same frozen graph always
// produces the same matrix, bit for bit. No randomness, no learned state.
// The vector layout is fixed and versioned with the graph schema:
//
//	[  0,  40)  symbol kind one-hot (ast.SymbolKind fixed ordering)
//	[ 40,  48)  language one-hot (go, python, javascript, typescript,
//	            external, other; two slots reserved)
//	[ 48,  56)  structural scalars (log-scaled degrees, span, flags)
//	[ 56, 512)  hashed symbol-name buckets (FNV-64a mod 456)
//
// Downstream layers treat the vector as opaque; the layout here only
// matters for reproducibility across releases.
package features

import (
	"hash/fnv"
	"math"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/ast"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
)

// Dim is the length of every node feature vector.
const Dim = 512

// Block boundaries of the feature layout. Offsets are part of the
// serialized-model contract and must not change between releases.
const (
	kindOffset = 0
	kindBlock  = 40

	langOffset = kindOffset + kindBlock
	langBlock  = 8

	scalarOffset = langOffset + langBlock
	scalarBlock  = 8

	nameOffset = scalarOffset + scalarBlock
	nameBlock  = Dim - nameOffset
)

// Scalar slot assignments within the scalar block.
const (
	scalarOutDegree = iota
	scalarInDegree
	scalarDegree
	scalarSpan
	scalarExported
	scalarCalls
	scalarChildren
	scalarPlaceholder
)

// languageIndex maps canonical language names to their one-hot slot.
// Unknown languages share the trailing "other" slot.
var languageIndex = map[string]int{
	"go":         0,
	"python":     1,
	"javascript": 2,
	"typescript": 3,
	"external":   4,
}

const languageOtherSlot = 5

// Matrix computes the node feature matrix for a frozen graph.
//
// Description:
//
//	Returns row-major data of shape [NodeCount, Dim]; row i is the
//	feature vector of the node at arena index i. Because Freeze
//	canonicalizes node order, the matrix is identical across rebuilds
//	of identical sources.
//
// Inputs:
//   - g: The graph to featurize. Must be frozen; degree features read
//     the adjacency lists built at Freeze.
//
// Outputs:
//   - []float32: Row-major [NodeCount * Dim] data. Empty for an empty
//     graph.
//
// Complexity: O(V * Dim).
func Matrix(g *graph.Graph) []float32 {
	nodes := g.Nodes()
	out := make([]float32, len(nodes)*Dim)
	for i, node := range nodes {
		vectorInto(out[i*Dim:(i+1)*Dim], g, node)
	}
	return out
}

// NodeVector computes the feature vector for a single node.
func NodeVector(g *graph.Graph, node *graph.Node) []float32 {
	out := make([]float32, Dim)
	vectorInto(out, g, node)
	return out
}

// vectorInto fills dst (length Dim, zeroed) with the node's features.
func vectorInto(dst []float32, g *graph.Graph, node *graph.Node) {
	sym := node.Symbol

	// Kind one-hot.
	kindIdx := sym.Kind.Index()
	if kindIdx < kindBlock {
		dst[kindOffset+kindIdx] = 1
	}

	// Language one-hot.
	langSlot, ok := languageIndex[sym.Language]
	if !ok {
		langSlot = languageOtherSlot
	}
	dst[langOffset+langSlot] = 1

	// Structural scalars. Degrees are log-compressed: raw counts span
	// four orders of magnitude between leaf constants and hub packages,
	// which would dominate every other signal.
	outDeg := len(g.OutEdges(node.Index))
	inDeg := len(g.InEdges(node.Index))
	dst[scalarOffset+scalarOutDegree] = logScale(outDeg)
	dst[scalarOffset+scalarInDegree] = logScale(inDeg)
	dst[scalarOffset+scalarDegree] = logScale(outDeg + inDeg)
	dst[scalarOffset+scalarSpan] = logScale(sym.LineCount())
	if sym.Exported {
		dst[scalarOffset+scalarExported] = 1
	}
	dst[scalarOffset+scalarCalls] = logScale(len(sym.Calls))
	dst[scalarOffset+scalarChildren] = logScale(len(sym.Children))
	if sym.Kind == ast.SymbolKindExternal {
		dst[scalarOffset+scalarPlaceholder] = 1
	}

	// Hashed-name bucket.
	if sym.Name != "" {
		dst[nameOffset+nameBucket(sym.Name)] = 1
	}
}

// nameBucket maps a symbol name to its hash bucket.
func nameBucket(name string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int(h.Sum64() % uint64(nameBlock))
}

// logScale compresses a non-negative count to a small positive float.
func logScale(n int) float32 {
	if n <= 0 {
		return 0
	}
	return float32(math.Log1p(float64(n)))
}
