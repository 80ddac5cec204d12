// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tensor

import "fmt"

// GraphData is the numeric form of one graph, ready for batching.
// EdgeSrc[i] -> EdgeDst[i] is the i-th edge with kind EdgeKind[i];
// indices are local to this graph.
type GraphData struct {
	// Features is row-major [Nodes x FeatureDim] node feature data.
	Features   []float32
	FeatureDim int

	EdgeSrc  []int32
	EdgeDst  []int32
	EdgeKind []int32
}

// Nodes returns the node count implied by the feature data.
func (d GraphData) Nodes() int {
	if d.FeatureDim == 0 {
		return 0
	}
	return len(d.Features) / d.FeatureDim
}

// KindEdges lists the endpoints of every edge of one kind, in batch
// edge order.
type KindEdges struct {
	Src []int32
	Dst []int32
}

// Batch is a ragged batch of graphs: node feature rows concatenated,
// edge endpoints shifted by per-graph node offsets, no padding.
//
// # Description
//
// Nodes of graph g occupy the contiguous row range
// [offsets[g], offsets[g]+NodeCounts[g]); GraphIndex maps each node row
// back to its graph for per-graph pooling. Edges are additionally
// partitioned by kind so layers can aggregate messages per edge kind
// without rescanning.
type Batch struct {
	// Features is the [TotalNodes x FeatureDim] concatenated matrix.
	Features *Tensor

	// EdgeSrc/EdgeDst/EdgeKind describe all edges in batch order with
	// offset-adjusted endpoints.
	EdgeSrc  []int32
	EdgeDst  []int32
	EdgeKind []int32

	// GraphIndex holds, per node row, the index of its source graph.
	GraphIndex []int32

	// NodeCounts holds the node count of each graph.
	NodeCounts []int32

	// KindCount is the number of edge kinds the partition covers.
	KindCount int

	offsets []int32
	byKind  []KindEdges
}

// NewBatch concatenates graphs into one ragged batch. All graphs must
// share a feature dimension; edge endpoints must be in range and edge
// kinds in [0, kindCount).
func NewBatch(kindCount int, graphs ...GraphData) (*Batch, error) {
	if kindCount <= 0 {
		return nil, fmt.Errorf("batch: kind count must be positive, got %d", kindCount)
	}
	if len(graphs) == 0 {
		return nil, fmt.Errorf("batch: no graphs")
	}

	featDim := graphs[0].FeatureDim
	totalNodes, totalEdges := 0, 0
	for gi, g := range graphs {
		if g.FeatureDim != featDim {
			return nil, fmt.Errorf("batch: graph %d feature dim %d, want %d", gi, g.FeatureDim, featDim)
		}
		if featDim == 0 || len(g.Features)%featDim != 0 {
			return nil, fmt.Errorf("batch: graph %d feature data length %d not divisible by dim %d", gi, len(g.Features), featDim)
		}
		if len(g.EdgeSrc) != len(g.EdgeDst) || len(g.EdgeSrc) != len(g.EdgeKind) {
			return nil, fmt.Errorf("batch: graph %d edge slices disagree (%d src, %d dst, %d kind)",
				gi, len(g.EdgeSrc), len(g.EdgeDst), len(g.EdgeKind))
		}
		totalNodes += g.Nodes()
		totalEdges += len(g.EdgeSrc)
	}

	b := &Batch{
		Features:   New(totalNodes, featDim),
		EdgeSrc:    make([]int32, 0, totalEdges),
		EdgeDst:    make([]int32, 0, totalEdges),
		EdgeKind:   make([]int32, 0, totalEdges),
		GraphIndex: make([]int32, 0, totalNodes),
		NodeCounts: make([]int32, 0, len(graphs)),
		KindCount:  kindCount,
		offsets:    make([]int32, 0, len(graphs)),
	}

	offset := int32(0)
	for gi, g := range graphs {
		n := int32(g.Nodes())
		b.offsets = append(b.offsets, offset)
		b.NodeCounts = append(b.NodeCounts, n)
		copy(b.Features.data[int(offset)*featDim:], g.Features)
		for i := int32(0); i < n; i++ {
			b.GraphIndex = append(b.GraphIndex, int32(gi))
		}
		for i := range g.EdgeSrc {
			src, dst, kind := g.EdgeSrc[i], g.EdgeDst[i], g.EdgeKind[i]
			if src < 0 || src >= n || dst < 0 || dst >= n {
				return nil, fmt.Errorf("batch: graph %d edge %d endpoints (%d,%d) out of range [0,%d)", gi, i, src, dst, n)
			}
			if kind < 0 || int(kind) >= kindCount {
				return nil, fmt.Errorf("batch: graph %d edge %d kind %d out of range [0,%d)", gi, i, kind, kindCount)
			}
			b.EdgeSrc = append(b.EdgeSrc, src+offset)
			b.EdgeDst = append(b.EdgeDst, dst+offset)
			b.EdgeKind = append(b.EdgeKind, kind)
		}
		offset += n
	}

	b.byKind = make([]KindEdges, kindCount)
	for i, kind := range b.EdgeKind {
		ke := &b.byKind[kind]
		ke.Src = append(ke.Src, b.EdgeSrc[i])
		ke.Dst = append(ke.Dst, b.EdgeDst[i])
	}
	return b, nil
}

// NumGraphs returns the number of graphs in the batch.
func (b *Batch) NumGraphs() int { return len(b.NodeCounts) }

// NumNodes returns the total node count.
func (b *Batch) NumNodes() int { return b.Features.Rows() }

// NumEdges returns the total edge count.
func (b *Batch) NumEdges() int { return len(b.EdgeSrc) }

// GraphRows returns the [start, end) node-row range of graph g.
func (b *Batch) GraphRows(g int) (start, end int) {
	start = int(b.offsets[g])
	return start, start + int(b.NodeCounts[g])
}

// EdgesOfKind returns the endpoints of every edge of the given kind,
// in batch edge order.
func (b *Batch) EdgesOfKind(kind int) KindEdges {
	return b.byKind[kind]
}
