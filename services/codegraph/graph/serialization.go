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
	"fmt"
	"sort"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/ast"
)

// GraphSchemaVersion is the version of the serialization schema.
// Increment when the serialization format changes in a breaking way.
const GraphSchemaVersion = "1.0"

// SerializableGraph is the JSON-serializable representation of a Graph.
//
// Description:
//
//	Contains all data needed to reconstruct a Graph from JSON. Nodes
//	are sorted by symbol ID and edges by (from, to, type), so encoding
//	the same graph twice yields byte-identical output, enabling
//	reliable diffing and content hashing.
//
// Thread Safety: SerializableGraph is a value type with no internal state.
type SerializableGraph struct {
	// SchemaVersion identifies the serialization format version.
	SchemaVersion string `json:"schema_version"`

	// Unit is the repository unit the graph covers.
	Unit string `json:"unit"`

	// Language is the dominant language computed at Freeze.
	Language string `json:"language"`

	// BuiltAtMilli is the Unix timestamp in milliseconds when the graph
	// was frozen.
	BuiltAtMilli int64 `json:"built_at_milli"`

	// GraphHash is the deterministic hash of the graph structure.
	GraphHash string `json:"graph_hash"`

	// Nodes contains all nodes in the graph, sorted by ID.
	Nodes []SerializableNode `json:"nodes"`

	// Edges contains all edges in the graph, sorted.
	Edges []SerializableEdge `json:"edges"`
}

// SerializableNode is the JSON-serializable representation of a Node.
type SerializableNode struct {
	// ID is the unique node identifier (same as Symbol.ID).
	ID string `json:"id"`

	// Symbol is the underlying AST symbol. ast.Symbol already has JSON
	// tags.
	Symbol *ast.Symbol `json:"symbol"`
}

// SerializableEdge is the JSON-serializable representation of an Edge.
type SerializableEdge struct {
	// FromID is the ID of the source node.
	FromID string `json:"from_id"`

	// ToID is the ID of the target node.
	ToID string `json:"to_id"`

	// Type is the human-readable edge type string (e.g., "calls").
	Type string `json:"type"`

	// TypeCode is the integer edge type for exact reconstruction.
	TypeCode EdgeType `json:"type_code"`

	// Line is the source line where the relationship is expressed.
	Line int `json:"line"`
}

// ToSerializable converts a Graph to its JSON-serializable representation.
//
// Description:
//
//	Iterates all nodes (sorted by ID for deterministic output) and all
//	edges to produce a SerializableGraph suitable for JSON encoding.
//	The resulting structure contains all data needed to reconstruct
//	the graph.
//
// Outputs:
//
//	*SerializableGraph - The serializable representation. Never nil.
//
// Complexity:
//
//	O(V log V + E log E) where V is node count and E is edge count.
//
// Thread Safety:
//
//	Safe for concurrent use on frozen graphs.
func (g *Graph) ToSerializable() *SerializableGraph {
	if g == nil {
		return &SerializableGraph{
			SchemaVersion: GraphSchemaVersion,
			Nodes:         []SerializableNode{},
			Edges:         []SerializableEdge{},
		}
	}

	arena := g.Nodes()
	rawEdges := g.Edges()

	nodes := make([]SerializableNode, 0, len(arena))
	for _, node := range arena {
		nodes = append(nodes, SerializableNode{
			ID:     node.ID(),
			Symbol: node.Symbol,
		})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	edges := make([]SerializableEdge, 0, len(rawEdges))
	for _, edge := range rawEdges {
		edges = append(edges, SerializableEdge{
			FromID:   arena[edge.From].ID(),
			ToID:     arena[edge.To].ID(),
			Type:     edge.Type.String(),
			TypeCode: edge.Type,
			Line:     edge.Line,
		})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].FromID != edges[j].FromID {
			return edges[i].FromID < edges[j].FromID
		}
		if edges[i].ToID != edges[j].ToID {
			return edges[i].ToID < edges[j].ToID
		}
		return edges[i].TypeCode < edges[j].TypeCode
	})

	return &SerializableGraph{
		SchemaVersion: GraphSchemaVersion,
		Unit:          g.Unit,
		Language:      g.Language,
		BuiltAtMilli:  g.BuiltAtMilli,
		GraphHash:     g.Hash(),
		Nodes:         nodes,
		Edges:         edges,
	}
}

// FromSerializable reconstructs a Graph from its serializable
// representation.
//
// Description:
//
//	Creates a new Graph in building state, calls AddNode() and
//	AddEdge() for each entry to correctly build all secondary indexes,
//	then calls Freeze(). Reusing the construction code path guarantees
//	index consistency; Freeze's canonical ordering guarantees the
//	round-tripped graph is index-identical to the original.
//
// Inputs:
//
//	sg - The serializable graph to reconstruct. Must not be nil.
//	opts - Optional GraphOption values (e.g., WithMaxNodes).
//
// Outputs:
//
//	*Graph - The reconstructed graph in read-only state.
//	error - Non-nil if sg is nil, the schema version is unsupported, a
//	node has a nil symbol, or AddNode/AddEdge fails.
//
// Complexity:
//
//	O(V log V + E log E) dominated by Freeze.
func FromSerializable(sg *SerializableGraph, opts ...GraphOption) (*Graph, error) {
	if sg == nil {
		return nil, fmt.Errorf("serializable graph must not be nil")
	}
	if sg.SchemaVersion != GraphSchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %q (expected %q)", sg.SchemaVersion, GraphSchemaVersion)
	}

	g := NewGraph(sg.Unit, opts...)

	for i, sn := range sg.Nodes {
		if sn.Symbol == nil {
			return nil, fmt.Errorf("node at index %d has nil symbol (id=%s)", i, sn.ID)
		}
		if _, err := g.AddNode(sn.Symbol); err != nil {
			return nil, fmt.Errorf("adding node %s: %w", sn.ID, err)
		}
	}

	for i, se := range sg.Edges {
		if err := g.AddEdge(se.FromID, se.ToID, se.TypeCode, se.Line); err != nil {
			return nil, fmt.Errorf("adding edge %d (%s -> %s): %w", i, se.FromID, se.ToID, err)
		}
	}

	// Freeze and restore the original build timestamp.
	g.Freeze()
	g.BuiltAtMilli = sg.BuiltAtMilli

	return g, nil
}
