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

// attnSlope is the LeakyReLU slope applied to raw attention scores.
const attnSlope = 0.2

// GATLayer is a multi-head graph attention step.
//
// # Description
//
// Each head projects node features with its own weight, scores every
// edge as LeakyReLU(aSrc · Wh_src + aDst · Wh_dst) with kind-specific
// attention vectors, softmaxes scores over each node's incoming edges
// of that kind, and aggregates the attention-weighted source
// projections. The node's own projection is added to the weighted
// neighbor sum, so nodes without incoming edges keep their signal.
// Hidden layers concatenate head outputs; the final layer averages
// them. ELU finishes the step.
type GATLayer struct {
	in, out, heads int
	headDim        int
	concatHeads    bool
	kinds          int

	wHead   []*tensor.Tensor // per head, [in, headDim]
	attnSrc []*tensor.Tensor // per head and kind, [headDim, 1]
	attnDst []*tensor.Tensor // per head and kind, [headDim, 1]
	bias    *tensor.Tensor   // [1, out]
}

// NewGATLayer builds a GAT layer with Xavier-initialized weights.
// With concatHeads, out must be divisible by heads and each head emits
// out/heads dims; otherwise each head emits the full out dims and the
// head outputs are averaged.
func NewGATLayer(in, out, heads, kinds int, concatHeads bool, rng *rand.Rand) *GATLayer {
	headDim := out
	if concatHeads {
		if out%heads != 0 {
			panic(fmt.Sprintf("layers: out dim %d not divisible by %d heads", out, heads))
		}
		headDim = out / heads
	}

	l := &GATLayer{
		in:          in,
		out:         out,
		heads:       heads,
		headDim:     headDim,
		concatHeads: concatHeads,
		kinds:       kinds,
		wHead:       make([]*tensor.Tensor, heads),
		attnSrc:     make([]*tensor.Tensor, heads*kinds),
		attnDst:     make([]*tensor.Tensor, heads*kinds),
		bias:        tensor.New(1, out),
	}
	for h := 0; h < heads; h++ {
		l.wHead[h] = tensor.XavierUniform(rng, in, headDim)
		for k := 0; k < kinds; k++ {
			l.attnSrc[h*kinds+k] = tensor.XavierUniform(rng, headDim, 1)
			l.attnDst[h*kinds+k] = tensor.XavierUniform(rng, headDim, 1)
		}
	}
	return l
}

// OutDim returns the layer's output width.
func (l *GATLayer) OutDim() int { return l.out }

// Params returns the layer's parameters in stable order.
func (l *GATLayer) Params() []NamedTensor {
	out := make([]NamedTensor, 0, len(l.wHead)+len(l.attnSrc)+len(l.attnDst)+1)
	for h, w := range l.wHead {
		out = append(out, NamedTensor{Name: fmt.Sprintf("head%02d.w", h), Tensor: w})
		for k := 0; k < l.kinds; k++ {
			out = append(out,
				NamedTensor{Name: fmt.Sprintf("head%02d.kind%02d.attn_src", h, k), Tensor: l.attnSrc[h*l.kinds+k]},
				NamedTensor{Name: fmt.Sprintf("head%02d.kind%02d.attn_dst", h, k), Tensor: l.attnDst[h*l.kinds+k]},
			)
		}
	}
	return append(out, NamedTensor{Name: "bias", Tensor: l.bias})
}

// Forward computes one attention step over the batch.
func (l *GATLayer) Forward(bd *Binding, h *tensor.Value, b *tensor.Batch) *tensor.Value {
	tp := bd.Tape()
	n := b.NumNodes()

	headOuts := make([]*tensor.Value, l.heads)
	for hi := 0; hi < l.heads; hi++ {
		wh := tp.MatMul(h, bd.Param(l.wHead[hi]))
		agg := wh // self projection

		for k := 0; k < b.KindCount && k < l.kinds; k++ {
			edges := b.EdgesOfKind(k)
			if len(edges.Src) == 0 {
				continue
			}

			srcScore := tp.MatMul(wh, bd.Param(l.attnSrc[hi*l.kinds+k]))
			dstScore := tp.MatMul(wh, bd.Param(l.attnDst[hi*l.kinds+k]))
			raw := tp.LeakyReLU(
				tp.Add(tp.RowGather(srcScore, edges.Src), tp.RowGather(dstScore, edges.Dst)),
				attnSlope,
			)
			alpha := tp.SegmentSoftmax(raw, edges.Dst, n)

			msgs := tp.ScaleRows(tp.RowGather(wh, edges.Src), alpha)
			agg = tp.Add(agg, tp.RowScatterAdd(msgs, edges.Dst, n))
		}
		headOuts[hi] = agg
	}

	var combined *tensor.Value
	if l.concatHeads {
		combined = tp.Concat(headOuts...)
	} else {
		combined = headOuts[0]
		for _, ho := range headOuts[1:] {
			combined = tp.Add(combined, ho)
		}
		combined = tp.Scale(combined, 1/float32(l.heads))
	}

	return tp.ELU(tp.Add(combined, bd.Param(l.bias)), 1)
}
