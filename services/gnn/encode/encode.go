// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package encode turns code graphs into the dense tensors the network
// consumes.
//
// A frozen graph maps to one tensor.GraphData: its feature matrix from
// the features package, its edge endpoints as node indices, and its
// edge types as the network's edge kinds. Freezing matters because it
// is what makes node indices canonical; encoding an unfrozen graph
// would produce batches that depend on build order.
package encode

import (
	"fmt"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/features"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/tensor"
)

// KindCount returns the number of edge kinds the network distinguishes.
// It equals the graph package's edge type count, so every typed edge a
// builder can produce has a message-passing slot.
func KindCount() int {
	return graph.EdgeTypeCount()
}

// Data converts one frozen graph into its tensor form.
func Data(g *graph.Graph) (tensor.GraphData, error) {
	if g == nil {
		return tensor.GraphData{}, fmt.Errorf("graph must not be nil")
	}
	if !g.Frozen() {
		return tensor.GraphData{}, fmt.Errorf("graph must be frozen before encoding")
	}
	if g.NodeCount() == 0 {
		return tensor.GraphData{}, fmt.Errorf("graph has no nodes")
	}

	edges := g.Edges()
	src := make([]int32, len(edges))
	dst := make([]int32, len(edges))
	kind := make([]int32, len(edges))
	for i, e := range edges {
		src[i] = int32(e.From)
		dst[i] = int32(e.To)
		kind[i] = int32(e.Type)
	}

	return tensor.GraphData{
		Features:   features.Matrix(g),
		FeatureDim: features.Dim,
		EdgeSrc:    src,
		EdgeDst:    dst,
		EdgeKind:   kind,
	}, nil
}

// BatchOf converts one or more frozen graphs into a single batch for
// the encoder. Graph order is preserved, so row g of the embedding
// output corresponds to graphs[g].
func BatchOf(graphs ...*graph.Graph) (*tensor.Batch, error) {
	if len(graphs) == 0 {
		return nil, fmt.Errorf("at least one graph is required")
	}

	data := make([]tensor.GraphData, len(graphs))
	for i, g := range graphs {
		d, err := Data(g)
		if err != nil {
			return nil, fmt.Errorf("graph %d: %w", i, err)
		}
		data[i] = d
	}
	return tensor.NewBatch(KindCount(), data...)
}
