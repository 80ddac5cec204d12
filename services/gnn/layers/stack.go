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

// Stack is an ordered sequence of message-passing layers built from a
// Config. Weights are created once at construction; Forward is safe to
// run concurrently as long as no optimizer is mutating the weights.
type Stack struct {
	cfg    Config
	layers []Layer
}

// NewStack validates cfg and builds its layers with weights drawn from
// rng. A given seed always yields identical initial weights.
func NewStack(cfg Config, rng *rand.Rand) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Stack{cfg: cfg, layers: make([]Layer, 0, len(cfg.HiddenDims))}
	in := cfg.InputDim
	for i, dim := range cfg.HiddenDims {
		switch cfg.LayerArchitecture(i) {
		case ArchitectureSAGE:
			s.layers = append(s.layers, NewSAGELayer(in, dim, cfg.EdgeKinds, cfg.Aggregation, rng))
		case ArchitectureGAT:
			concat := i < len(cfg.HiddenDims)-1
			s.layers = append(s.layers, NewGATLayer(in, dim, cfg.Heads, cfg.EdgeKinds, concat, rng))
		default:
			return nil, fmt.Errorf("layers: layer %d has unbuildable architecture %q", i, cfg.LayerArchitecture(i))
		}
		in = dim
	}
	return s, nil
}

// Config returns the stack's configuration.
func (s *Stack) Config() Config { return s.cfg }

// Depth returns the number of layers.
func (s *Stack) Depth() int { return len(s.layers) }

// OutputDim returns the node representation width after the last layer.
func (s *Stack) OutputDim() int {
	return s.layers[len(s.layers)-1].OutDim()
}

// Params returns every layer's parameters with layerNN. name prefixes,
// in stack order.
func (s *Stack) Params() []NamedTensor {
	var out []NamedTensor
	for i, l := range s.layers {
		for _, nt := range l.Params() {
			out = append(out, NamedTensor{
				Name:   fmt.Sprintf("layer%02d.%s", i, nt.Name),
				Tensor: nt.Tensor,
			})
		}
	}
	return out
}

// Forward runs all layers over the batch and returns the final node
// representations [NumNodes, OutputDim]. Dropout applies between
// layers when opts.Training is set and the configured rate is positive.
func (s *Stack) Forward(bd *Binding, b *tensor.Batch, opts ForwardOpts) *tensor.Value {
	tp := bd.Tape()
	h := tp.Input(b.Features)
	for i, l := range s.layers {
		h = l.Forward(bd, h, b)
		if opts.Training && s.cfg.Dropout > 0 && i < len(s.layers)-1 {
			h = tp.Dropout(h, s.cfg.Dropout, opts.Rng)
		}
	}
	return h
}
