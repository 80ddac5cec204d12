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

// Encoder is the full embedding model: the layer stack, a readout, and
// a linear projection to the embedding width, L2-normalized.
//
// # Thread Safety
//
// Embed is safe to run concurrently with itself. It is not safe to run
// concurrently with anything that mutates the weights; training works
// on a private copy and publishes immutable snapshots.
type Encoder struct {
	stack       *Stack
	readout     Readout
	readoutName string

	projW *tensor.Tensor // [stack out, embedDim]
	projB *tensor.Tensor // [1, embedDim]

	embedDim int
}

// NewEncoder builds an encoder with weights drawn from rng. The same
// configuration and seed always produce identical weights; parameter
// creation order is fixed.
func NewEncoder(cfg Config, readoutName string, embedDim int, rng *rand.Rand) (*Encoder, error) {
	if embedDim <= 0 {
		return nil, fmt.Errorf("layers: embedding dim must be positive, got %d", embedDim)
	}
	if readoutName == "" {
		readoutName = DefaultReadout
	}

	stack, err := NewStack(cfg, rng)
	if err != nil {
		return nil, err
	}
	readout, err := NewReadout(readoutName, stack.OutputDim(), rng)
	if err != nil {
		return nil, err
	}

	return &Encoder{
		stack:       stack,
		readout:     readout,
		readoutName: readoutName,
		projW:       tensor.XavierUniform(rng, stack.OutputDim(), embedDim),
		projB:       tensor.New(1, embedDim),
		embedDim:    embedDim,
	}, nil
}

// Embed encodes every graph in the batch into a unit-length embedding
// row: [NumGraphs, EmbedDim].
func (e *Encoder) Embed(bd *Binding, b *tensor.Batch, opts ForwardOpts) *tensor.Value {
	tp := bd.Tape()
	h := e.stack.Forward(bd, b, opts)
	pooled := e.readout.Apply(bd, h, b)
	z := tp.Add(tp.MatMul(pooled, bd.Param(e.projW)), bd.Param(e.projB))
	return tp.NormalizeRows(z)
}

// EmbedDim returns the embedding width.
func (e *Encoder) EmbedDim() int { return e.embedDim }

// Config returns the stack configuration.
func (e *Encoder) Config() Config { return e.stack.Config() }

// ReadoutName returns the pooling strategy name.
func (e *Encoder) ReadoutName() string { return e.readoutName }

// Params returns all model parameters in stable order: stack layers,
// then readout, then the projection.
func (e *Encoder) Params() []NamedTensor {
	out := e.stack.Params()
	for _, nt := range e.readout.Params() {
		out = append(out, NamedTensor{Name: "readout." + nt.Name, Tensor: nt.Tensor})
	}
	return append(out,
		NamedTensor{Name: "projection.w", Tensor: e.projW},
		NamedTensor{Name: "projection.b", Tensor: e.projB},
	)
}
