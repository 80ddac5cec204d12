// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds and holds canonical code graphs.
//
// A Graph is a directed, typed, attributed multigraph over the symbols of
// one repository unit. Nodes wrap ast.Symbol values; edges carry one of a
// fixed enumeration of relationship kinds. Graphs are built through a
// mutable phase (AddNode/AddEdge) and then frozen; frozen graphs are
// immutable and safe for concurrent reads, which is what the learning and
// inference layers require.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/ast"
)

// Default graph capacity limits.
const (
	// DefaultMaxNodes is the default maximum node count per graph.
	DefaultMaxNodes = 1_000_000

	// DefaultMaxEdges is the default maximum edge count per graph.
	DefaultMaxEdges = 5_000_000
)

// Sentinel errors returned by graph mutation methods.
var (
	// ErrGraphFrozen indicates a mutation was attempted after Freeze.
	ErrGraphFrozen = errors.New("graph is frozen")

	// ErrNodeCapacity indicates the node limit was reached.
	ErrNodeCapacity = errors.New("node capacity exceeded")

	// ErrEdgeCapacity indicates the edge limit was reached.
	ErrEdgeCapacity = errors.New("edge capacity exceeded")
)

// ===== Edge Types =====

// EdgeType classifies a relationship between two nodes.
//
// The enumeration is fixed and ordered: the integer values are part of
// the serialization format and of the edge feature layout, and must not
// change between releases. New types append at the end, before
// EdgeTypeUnresolved stays meaningful only while it remains the marker
// for failed resolution.
type EdgeType int

// Canonical edge types.
const (
	// EdgeTypeCalls connects a callable to a resolved call target.
	EdgeTypeCalls EdgeType = iota

	// EdgeTypeContains connects a container to a contained symbol
	// (package to file, file to declaration, type to member). The
	// containment relation must stay acyclic; AddEdge enforces this.
	EdgeTypeContains

	// EdgeTypeImplements connects a type to an interface or protocol it
	// satisfies.
	EdgeTypeImplements

	// EdgeTypeInherits connects a type to its parent class or embedded
	// base.
	EdgeTypeInherits

	// EdgeTypeImports connects a file to an imported module or package.
	EdgeTypeImports

	// EdgeTypeExports connects a file to a symbol it exports.
	EdgeTypeExports

	// EdgeTypeReads connects a callable to a variable or constant it
	// reads.
	EdgeTypeReads

	// EdgeTypeWrites connects a callable to a variable it assigns.
	EdgeTypeWrites

	// EdgeTypeReturns connects a callable to a named return type.
	EdgeTypeReturns

	// EdgeTypeThrows connects a callable to an exception or error type
	// raised in its body.
	EdgeTypeThrows

	// EdgeTypeDependsOn connects a package to another package it uses.
	EdgeTypeDependsOn

	// EdgeTypeReferences connects a symbol to a type or function it
	// mentions without calling (parameters, decorators, annotations).
	EdgeTypeReferences

	// EdgeTypeInstantiates connects a callable to a type it constructs.
	EdgeTypeInstantiates

	// EdgeTypeUnresolved marks a reference whose target could not be
	// resolved against the symbol table. The reference is preserved,
	// pointing at a placeholder node, rather than dropped.
	EdgeTypeUnresolved
)

var edgeTypeNames = [...]string{
	EdgeTypeCalls:        "calls",
	EdgeTypeContains:     "contains",
	EdgeTypeImplements:   "implements",
	EdgeTypeInherits:     "inherits",
	EdgeTypeImports:      "imports",
	EdgeTypeExports:      "exports",
	EdgeTypeReads:        "reads",
	EdgeTypeWrites:       "writes",
	EdgeTypeReturns:      "returns",
	EdgeTypeThrows:       "throws",
	EdgeTypeDependsOn:    "depends_on",
	EdgeTypeReferences:   "references",
	EdgeTypeInstantiates: "instantiates",
	EdgeTypeUnresolved:   "unresolved",
}

// String returns the lowercase name of the edge type.
func (t EdgeType) String() string {
	if t >= 0 && int(t) < len(edgeTypeNames) {
		return edgeTypeNames[t]
	}
	return "unknown"
}

// Valid reports whether the edge type belongs to the enumeration.
func (t EdgeType) Valid() bool {
	return t >= 0 && int(t) < len(edgeTypeNames)
}

// EdgeTypeCount is the number of canonical edge types.
func EdgeTypeCount() int {
	return len(edgeTypeNames)
}

// ===== Nodes and Edges =====

// NodeID is a dense index into a graph's node arena. IDs are assigned in
// insertion order during building and remapped to canonical (symbol-ID
// sorted) order by Freeze, so a frozen graph's indices are deterministic
// for a given node set regardless of build order.
type NodeID int32

// Node is one vertex of a code graph.
type Node struct {
	// Index is the node's position in the graph arena.
	Index NodeID

	// Symbol is the underlying AST symbol. Never nil.
	Symbol *ast.Symbol
}

// ID returns the stable symbol identifier of the node.
func (n *Node) ID() string {
	return n.Symbol.ID
}

// Edge is one directed, typed edge of a code graph.
type Edge struct {
	// From and To index the source and target nodes in the arena.
	From NodeID
	To   NodeID

	// Type is the relationship kind.
	Type EdgeType

	// Line is the 1-based source line where the relationship is
	// expressed, 0 when synthesized.
	Line int
}

// edgeKey identifies an edge for duplicate suppression. Line is excluded:
// repeating the same typed relationship between the same pair adds no
// structure, so only the first occurrence is kept.
type edgeKey struct {
	from NodeID
	to   NodeID
	typ  EdgeType
}

// LanguageStat aggregates per-language structure counts used by the
// expert routing layer to compute language shares.
type LanguageStat struct {
	// Nodes is the number of non-placeholder nodes in the language.
	Nodes int

	// Lines is the total line count of the language's files.
	Lines int

	// CallEdges is the number of call and instantiation edges whose
	// source node belongs to the language.
	CallEdges int

	// StructuralNodes counts type-shaped nodes (struct, class,
	// interface, trait, enum, module) in the language.
	StructuralNodes int
}

// ===== Graph =====

// Graph is a directed, typed multigraph over the code of one repository
// unit.
//
// Description:
//
//	Nodes live in a dense arena indexed by NodeID; secondary indexes map
//	symbol IDs, names, and kinds back to arena positions. A graph starts
//	in building state, accepting AddNode/AddEdge, and becomes immutable
//	after Freeze. Freeze also canonicalizes node order by symbol ID so
//	that two builds of the same sources produce index-identical graphs.
//
// Thread Safety:
//
//	Mutation methods are serialized by an internal mutex. After Freeze
//	the graph is immutable and all read methods are safe for unlimited
//	concurrent use.
type Graph struct {
	// Unit is the repository unit the graph covers (project root or
	// single file path).
	Unit string

	// Language is the dominant language of the graph's nodes, computed
	// at Freeze. Placeholder nodes do not vote.
	Language string

	// BuiltAtMilli is the Unix timestamp in milliseconds when the graph
	// was frozen.
	BuiltAtMilli int64

	mu     sync.RWMutex
	frozen bool

	nodes     []*Node
	nodesByID map[string]NodeID

	nodesByName map[string][]NodeID
	nodesByKind map[ast.SymbolKind][]NodeID

	edges   []Edge
	edgeSet map[edgeKey]struct{}

	// containsParent tracks the primary containment parent per node for
	// cycle rejection in AddEdge.
	containsParent map[NodeID]NodeID

	outEdges [][]int32
	inEdges  [][]int32

	langStats map[string]LanguageStat

	maxNodes int
	maxEdges int
}

// GraphOption is a functional option for configuring a Graph.
type GraphOption func(*Graph)

// WithMaxNodes sets the maximum number of nodes.
func WithMaxNodes(n int) GraphOption {
	return func(g *Graph) {
		if n > 0 {
			g.maxNodes = n
		}
	}
}

// WithMaxEdges sets the maximum number of edges.
func WithMaxEdges(n int) GraphOption {
	return func(g *Graph) {
		if n > 0 {
			g.maxEdges = n
		}
	}
}

// NewGraph creates an empty graph in building state for the given
// repository unit.
func NewGraph(unit string, opts ...GraphOption) *Graph {
	g := &Graph{
		Unit:           unit,
		nodesByID:      make(map[string]NodeID),
		nodesByName:    make(map[string][]NodeID),
		nodesByKind:    make(map[ast.SymbolKind][]NodeID),
		edgeSet:        make(map[edgeKey]struct{}),
		containsParent: make(map[NodeID]NodeID),
		maxNodes:       DefaultMaxNodes,
		maxEdges:       DefaultMaxEdges,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddNode adds a symbol as a new node.
//
// Inputs:
//   - sym: The symbol to wrap. Must not be nil and must carry an ID.
//
// Outputs:
//   - *Node: The created node with its arena index.
//   - error: Non-nil if the graph is frozen, the symbol is invalid, the
//     ID already exists, or capacity is exceeded.
func (g *Graph) AddNode(sym *ast.Symbol) (*Node, error) {
	if sym == nil {
		return nil, fmt.Errorf("symbol must not be nil")
	}
	if sym.ID == "" {
		return nil, fmt.Errorf("symbol %q has empty ID", sym.Name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return nil, fmt.Errorf("add node %s: %w", sym.ID, ErrGraphFrozen)
	}
	if _, exists := g.nodesByID[sym.ID]; exists {
		return nil, fmt.Errorf("node %s already exists", sym.ID)
	}
	if len(g.nodes) >= g.maxNodes {
		return nil, fmt.Errorf("add node %s: %w (limit %d)", sym.ID, ErrNodeCapacity, g.maxNodes)
	}

	node := &Node{
		Index:  NodeID(len(g.nodes)),
		Symbol: sym,
	}
	g.nodes = append(g.nodes, node)
	g.nodesByID[sym.ID] = node.Index
	g.nodesByName[sym.Name] = append(g.nodesByName[sym.Name], node.Index)
	kind := sym.Kind.Canonical()
	g.nodesByKind[kind] = append(g.nodesByKind[kind], node.Index)

	return node, nil
}

// AddEdge adds a typed edge between two existing nodes, identified by
// their symbol IDs.
//
// Description:
//
//	Duplicate (from, to, type) triples are rejected with an error whose
//	text contains "already exists" so callers can treat them as benign.
//	Containment edges are checked for cycles: the contains relation must
//	form a forest, while call edges may cycle freely (recursion).
//
// Outputs:
//   - error: Non-nil if the graph is frozen, either endpoint is unknown,
//     the type is invalid, the edge is a duplicate, capacity is
//     exceeded, or a containment cycle would result.
func (g *Graph) AddEdge(fromID, toID string, t EdgeType, line int) error {
	if !t.Valid() {
		return fmt.Errorf("invalid edge type %d", int(t))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return fmt.Errorf("add edge %s -> %s: %w", fromID, toID, ErrGraphFrozen)
	}

	from, ok := g.nodesByID[fromID]
	if !ok {
		return fmt.Errorf("edge source %s: unknown node", fromID)
	}
	to, ok := g.nodesByID[toID]
	if !ok {
		return fmt.Errorf("edge target %s: unknown node", toID)
	}

	key := edgeKey{from: from, to: to, typ: t}
	if _, exists := g.edgeSet[key]; exists {
		return fmt.Errorf("edge %s -> %s (%s) already exists", fromID, toID, t)
	}
	if len(g.edges) >= g.maxEdges {
		return fmt.Errorf("add edge %s -> %s: %w (limit %d)", fromID, toID, ErrEdgeCapacity, g.maxEdges)
	}

	if t == EdgeTypeContains {
		if err := g.checkContainment(from, to); err != nil {
			return err
		}
	}

	g.edges = append(g.edges, Edge{From: from, To: to, Type: t, Line: line})
	g.edgeSet[key] = struct{}{}

	if t == EdgeTypeContains {
		if _, has := g.containsParent[to]; !has {
			g.containsParent[to] = from
		}
	}

	return nil
}

// checkContainment rejects a contains edge that would close a cycle.
// Caller holds g.mu.
func (g *Graph) checkContainment(from, to NodeID) error {
	if from == to {
		return fmt.Errorf("containment cycle: node %s would contain itself", g.nodes[from].ID())
	}
	// Walk the ancestors of from. If to already contains from
	// (transitively), adding from -> to closes a cycle.
	seen := 0
	cur := from
	for {
		parent, ok := g.containsParent[cur]
		if !ok {
			return nil
		}
		if parent == to {
			return fmt.Errorf("containment cycle: %s -> %s", g.nodes[from].ID(), g.nodes[to].ID())
		}
		cur = parent
		seen++
		if seen > len(g.nodes) {
			// containsParent must stay a forest; a chain longer than the
			// node count means it no longer is.
			return fmt.Errorf("containment chain exceeded node count at %s", g.nodes[from].ID())
		}
	}
}

// Freeze transitions the graph to its immutable state.
//
// Description:
//
//	Sorts the node arena by symbol ID, remaps all edge endpoints and
//	secondary indexes, sorts edges, builds adjacency lists, and computes
//	the dominant language and per-language statistics. After Freeze all
//	mutation methods fail and all read methods are lock-free safe.
//
//	Canonical ordering is what makes downstream numeric results
//	reproducible: two graphs over identical sources are index-identical,
//	so feature matrices, message passing, and readout see the same rows
//	in the same order.
//
// Complexity: O(V log V + E log E).
func (g *Graph) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return
	}

	// Canonical node order: sort by symbol ID and remap.
	order := make([]NodeID, len(g.nodes))
	for i := range order {
		order[i] = NodeID(i)
	}
	sort.Slice(order, func(i, j int) bool {
		return g.nodes[order[i]].ID() < g.nodes[order[j]].ID()
	})

	remap := make([]NodeID, len(g.nodes))
	sorted := make([]*Node, len(g.nodes))
	for newIdx, oldIdx := range order {
		node := g.nodes[oldIdx]
		node.Index = NodeID(newIdx)
		sorted[newIdx] = node
		remap[oldIdx] = NodeID(newIdx)
	}
	g.nodes = sorted

	for id, oldIdx := range g.nodesByID {
		g.nodesByID[id] = remap[oldIdx]
	}
	for name, ids := range g.nodesByName {
		for i, oldIdx := range ids {
			ids[i] = remap[oldIdx]
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		g.nodesByName[name] = ids
	}
	for kind, ids := range g.nodesByKind {
		for i, oldIdx := range ids {
			ids[i] = remap[oldIdx]
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		g.nodesByKind[kind] = ids
	}

	remappedParents := make(map[NodeID]NodeID, len(g.containsParent))
	for child, parent := range g.containsParent {
		remappedParents[remap[child]] = remap[parent]
	}
	g.containsParent = remappedParents

	for i := range g.edges {
		g.edges[i].From = remap[g.edges[i].From]
		g.edges[i].To = remap[g.edges[i].To]
	}
	sort.Slice(g.edges, func(i, j int) bool {
		a, b := g.edges[i], g.edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Type < b.Type
	})
	// edgeSet keys are stale after remapping and unused once frozen.
	g.edgeSet = nil

	g.buildAdjacency()
	g.computeLanguageStats()

	g.BuiltAtMilli = time.Now().UnixMilli()
	g.frozen = true
}

// buildAdjacency constructs per-node out/in edge index lists.
// Caller holds g.mu; edges are already sorted.
func (g *Graph) buildAdjacency() {
	g.outEdges = make([][]int32, len(g.nodes))
	g.inEdges = make([][]int32, len(g.nodes))
	for i, e := range g.edges {
		g.outEdges[e.From] = append(g.outEdges[e.From], int32(i))
		g.inEdges[e.To] = append(g.inEdges[e.To], int32(i))
	}
}

// computeLanguageStats tallies per-language node, line, call, and
// structural counts, and elects the dominant language.
// Caller holds g.mu.
func (g *Graph) computeLanguageStats() {
	stats := make(map[string]LanguageStat)

	for _, node := range g.nodes {
		sym := node.Symbol
		if sym.Kind == ast.SymbolKindExternal {
			continue
		}
		s := stats[sym.Language]
		s.Nodes++
		if sym.Kind == ast.SymbolKindFile {
			s.Lines += sym.LineCount()
		}
		switch sym.Kind {
		case ast.SymbolKindStruct, ast.SymbolKindClass, ast.SymbolKindInterface,
			ast.SymbolKindTrait, ast.SymbolKindEnum, ast.SymbolKindModule:
			s.StructuralNodes++
		}
		stats[sym.Language] = s
	}

	for _, e := range g.edges {
		if e.Type != EdgeTypeCalls && e.Type != EdgeTypeInstantiates {
			continue
		}
		lang := g.nodes[e.From].Symbol.Language
		s := stats[lang]
		s.CallEdges++
		stats[lang] = s
	}

	g.langStats = stats

	dominant := ""
	best := -1
	for lang, s := range stats {
		if s.Nodes > best || (s.Nodes == best && lang < dominant) {
			dominant = lang
			best = s.Nodes
		}
	}
	g.Language = dominant
}

// Frozen reports whether Freeze has been called.
func (g *Graph) Frozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frozen
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// GetNode returns the node with the given symbol ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.nodesByID[id]
	if !ok {
		return nil, false
	}
	return g.nodes[idx], true
}

// NodeAt returns the node at the given arena index, or nil when out of
// range.
func (g *Graph) NodeAt(idx NodeID) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if idx < 0 || int(idx) >= len(g.nodes) {
		return nil
	}
	return g.nodes[idx]
}

// Nodes returns the node arena in index order. The returned slice is the
// graph's backing storage and must not be modified.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes
}

// Edges returns all edges in canonical order (sorted after Freeze). The
// returned slice is the graph's backing storage and must not be modified.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges
}

// NodesByName returns the nodes whose symbol name matches exactly.
func (g *Graph) NodesByName(name string) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.nodesByName[name]
	out := make([]*Node, len(ids))
	for i, idx := range ids {
		out[i] = g.nodes[idx]
	}
	return out
}

// NodesByKind returns the nodes of the given canonical kind.
func (g *Graph) NodesByKind(kind ast.SymbolKind) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.nodesByKind[kind.Canonical()]
	out := make([]*Node, len(ids))
	for i, idx := range ids {
		out[i] = g.nodes[idx]
	}
	return out
}

// OutEdges returns the indices into Edges() of the node's outgoing
// edges. Valid only after Freeze; returns nil on a building graph.
func (g *Graph) OutEdges(idx NodeID) []int32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.outEdges == nil || idx < 0 || int(idx) >= len(g.outEdges) {
		return nil
	}
	return g.outEdges[idx]
}

// InEdges returns the indices into Edges() of the node's incoming edges.
// Valid only after Freeze; returns nil on a building graph.
func (g *Graph) InEdges(idx NodeID) []int32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.inEdges == nil || idx < 0 || int(idx) >= len(g.inEdges) {
		return nil
	}
	return g.inEdges[idx]
}

// LanguageStats returns per-language structure counts. Valid only after
// Freeze; returns nil on a building graph.
func (g *Graph) LanguageStats() map[string]LanguageStat {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.langStats
}

// Hash returns a deterministic hex digest of the graph structure.
//
// Description:
//
//	Hashes the sorted symbol IDs and the sorted (from, to, type) edge
//	triples, expressed in symbol-ID terms so the digest is independent
//	of arena ordering. Two graphs over identical sources hash equally;
//	any added, removed, or retyped node or edge changes the digest.
//
// Complexity: O(V log V + E log E).
func (g *Graph) Hash() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.ID()
	}
	sort.Strings(ids)

	lines := make([]string, len(g.edges))
	for i, e := range g.edges {
		lines[i] = g.nodes[e.From].ID() + ">" + g.nodes[e.To].ID() + "#" + strconv.Itoa(int(e.Type))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{'\n'})
	}
	h.Write([]byte{0})
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
