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
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/tensor"
)

// Readout pools per-node representations into one vector per graph.
// Implementations must be permutation-invariant over each graph's
// nodes.
type Readout interface {
	// Apply pools h ([NumNodes, dim]) into [NumGraphs, dim].
	Apply(bd *Binding, h *tensor.Value, b *tensor.Batch) *tensor.Value

	// Params returns learned readout parameters, if any.
	Params() []NamedTensor

	// Name returns the registry name.
	Name() string
}

// DefaultReadout is the strategy used when none is configured.
const DefaultReadout = "attention"

// ReadoutFactory builds a readout for node representations of the
// given width, drawing any learned parameters from rng.
type ReadoutFactory func(dim int, rng *rand.Rand) Readout

var (
	readoutMu       sync.RWMutex
	readoutRegistry = map[string]ReadoutFactory{
		"mean": func(int, *rand.Rand) Readout { return meanReadout{} },
		"max":  func(int, *rand.Rand) Readout { return maxReadout{} },
		"sum":  func(int, *rand.Rand) Readout { return sumReadout{} },
		"attention": func(dim int, rng *rand.Rand) Readout {
			return &attentionReadout{query: tensor.XavierUniform(rng, dim, 1), dim: dim}
		},
	}
)

// RegisterReadout adds a strategy to the registry. Registering a
// duplicate name is an error.
func RegisterReadout(name string, f ReadoutFactory) error {
	readoutMu.Lock()
	defer readoutMu.Unlock()
	if _, ok := readoutRegistry[name]; ok {
		return fmt.Errorf("layers: readout %q already registered", name)
	}
	readoutRegistry[name] = f
	return nil
}

// NewReadout builds the named strategy for the given width.
func NewReadout(name string, dim int, rng *rand.Rand) (Readout, error) {
	readoutMu.RLock()
	f, ok := readoutRegistry[name]
	readoutMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("layers: unknown readout %q (have %v)", name, ReadoutNames())
	}
	return f(dim, rng), nil
}

// ReadoutNames returns the registered strategy names, sorted.
func ReadoutNames() []string {
	readoutMu.RLock()
	defer readoutMu.RUnlock()
	names := make([]string, 0, len(readoutRegistry))
	for name := range readoutRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sumReadout sums node vectors per graph.
type sumReadout struct{}

func (sumReadout) Name() string         { return "sum" }
func (sumReadout) Params() []NamedTensor { return nil }

func (sumReadout) Apply(bd *Binding, h *tensor.Value, b *tensor.Batch) *tensor.Value {
	return bd.Tape().RowScatterAdd(h, b.GraphIndex, b.NumGraphs())
}

// meanReadout averages node vectors per graph.
type meanReadout struct{}

func (meanReadout) Name() string         { return "mean" }
func (meanReadout) Params() []NamedTensor { return nil }

func (meanReadout) Apply(bd *Binding, h *tensor.Value, b *tensor.Batch) *tensor.Value {
	tp := bd.Tape()
	sum := tp.RowScatterAdd(h, b.GraphIndex, b.NumGraphs())

	inv := tensor.New(b.NumGraphs(), 1)
	for g, n := range b.NodeCounts {
		if n > 0 {
			inv.Data()[g] = 1 / float32(n)
		}
	}
	return tp.ScaleRows(sum, tp.Input(inv))
}

// maxReadout takes the column-wise maximum per graph.
type maxReadout struct{}

func (maxReadout) Name() string         { return "max" }
func (maxReadout) Params() []NamedTensor { return nil }

func (maxReadout) Apply(bd *Binding, h *tensor.Value, b *tensor.Batch) *tensor.Value {
	tp := bd.Tape()
	parts := make([]*tensor.Value, b.NumGraphs())
	for g := range parts {
		start, end := b.GraphRows(g)
		idx := make([]int32, end-start)
		for i := range idx {
			idx[i] = int32(start + i)
		}
		parts[g] = tp.MaxRows(tp.RowGather(h, idx))
	}
	return tp.StackRows(parts...)
}

// attentionReadout pools with a learned query: each node's score is
// (h_v · q) / sqrt(dim), softmaxed over its graph's nodes, and the
// pooled vector is the score-weighted sum.
type attentionReadout struct {
	query *tensor.Tensor // [dim, 1]
	dim   int
}

func (*attentionReadout) Name() string { return "attention" }

func (r *attentionReadout) Params() []NamedTensor {
	return []NamedTensor{{Name: "query", Tensor: r.query}}
}

func (r *attentionReadout) Apply(bd *Binding, h *tensor.Value, b *tensor.Batch) *tensor.Value {
	tp := bd.Tape()
	scores := tp.Scale(tp.MatMul(h, bd.Param(r.query)), 1/float32(math.Sqrt(float64(r.dim))))
	alpha := tp.SegmentSoftmax(scores, b.GraphIndex, b.NumGraphs())
	return tp.RowScatterAdd(tp.ScaleRows(h, alpha), b.GraphIndex, b.NumGraphs())
}
