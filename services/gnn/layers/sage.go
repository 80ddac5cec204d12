// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layers

import (
	"fmt"
	"math/rand"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/tensor"
)

// SAGELayer is a relational GraphSAGE step.
//
// # Description
//
// Per edge kind, neighbor features flowing along that kind are
// aggregated (mean or sum) into each destination node and passed
// through the kind's linear map; the kind summaries are summed, the
// result is concatenated with the node's own features, and a final
// linear map plus ReLU produces the output. Aggregation precedes the
// per-kind map; the two commute for a linear map. Cost is O(|E|) plus
// the dense transforms.
type SAGELayer struct {
	in, out int
	agg     Aggregation

	wNeigh []*tensor.Tensor // per kind, [in, out]
	wComb  *tensor.Tensor   // [in+out, out]
	bias   *tensor.Tensor   // [1, out]
}

// NewSAGELayer builds a SAGE layer with Xavier-initialized weights
// drawn from rng.
func NewSAGELayer(in, out, kinds int, agg Aggregation, rng *rand.Rand) *SAGELayer {
	l := &SAGELayer{
		in:     in,
		out:    out,
		agg:    agg,
		wNeigh: make([]*tensor.Tensor, kinds),
		wComb:  tensor.XavierUniform(rng, in+out, out),
		bias:   tensor.New(1, out),
	}
	for k := range l.wNeigh {
		l.wNeigh[k] = tensor.XavierUniform(rng, in, out)
	}
	return l
}

// OutDim returns the layer's output width.
func (l *SAGELayer) OutDim() int { return l.out }

// Params returns the layer's parameters in stable order.
func (l *SAGELayer) Params() []NamedTensor {
	out := make([]NamedTensor, 0, len(l.wNeigh)+2)
	for k, w := range l.wNeigh {
		out = append(out, NamedTensor{Name: fmt.Sprintf("neigh_w%02d", k), Tensor: w})
	}
	out = append(out,
		NamedTensor{Name: "combine_w", Tensor: l.wComb},
		NamedTensor{Name: "bias", Tensor: l.bias},
	)
	return out
}

// Forward computes one SAGE step over the batch.
func (l *SAGELayer) Forward(bd *Binding, h *tensor.Value, b *tensor.Batch) *tensor.Value {
	tp := bd.Tape()
	n := b.NumNodes()

	var neigh *tensor.Value
	for k := 0; k < b.KindCount && k < len(l.wNeigh); k++ {
		edges := b.EdgesOfKind(k)
		if len(edges.Src) == 0 {
			continue
		}

		msgs := tp.RowGather(h, edges.Src)
		summed := tp.RowScatterAdd(msgs, edges.Dst, n)
		if l.agg == AggregationMean {
			summed = tp.ScaleRows(summed, tp.Input(inverseDegrees(edges.Dst, n)))
		}
		kindOut := tp.MatMul(summed, bd.Param(l.wNeigh[k]))

		if neigh == nil {
			neigh = kindOut
		} else {
			neigh = tp.Add(neigh, kindOut)
		}
	}
	if neigh == nil {
		// Edge-free batch: the neighbor summary is all zeros.
		neigh = tp.Input(tensor.New(n, l.out))
	}

	combined := tp.Concat(h, neigh)
	return tp.ReLU(tp.Add(tp.MatMul(combined, bd.Param(l.wComb)), bd.Param(l.bias)))
}

// inverseDegrees returns an n x 1 column of 1/deg for each destination
// node, 0 for nodes without incoming edges of this kind.
func inverseDegrees(dst []int32, n int) *tensor.Tensor {
	deg := make([]int32, n)
	for _, d := range dst {
		deg[d]++
	}
	inv := tensor.New(n, 1)
	for i, d := range deg {
		if d > 0 {
			inv.Data()[i] = 1 / float32(d)
		}
	}
	return inv
}
