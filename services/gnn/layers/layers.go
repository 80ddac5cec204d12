// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package layers implements the message-passing layers of the code
// graph network: relational GraphSAGE, multi-head graph attention, the
// configurable layer stack, graph readout strategies, and the encoder
// that ties them into one embedding model.
//
// Layers hold their weights as plain tensors. Each forward pass binds
// those tensors to the caller's autodiff tape through a Binding, so the
// same weights can serve concurrent inference passes while a training
// loop owns a private copy.
package layers

import (
	"fmt"
	"math/rand"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/tensor"
)

// Architecture selects the layer types of a stack.
type Architecture string

const (
	// ArchitectureSAGE stacks relational GraphSAGE layers.
	ArchitectureSAGE Architecture = "sage"
	// ArchitectureGAT stacks multi-head attention layers.
	ArchitectureGAT Architecture = "gat"
	// ArchitectureHybrid alternates SAGE and GAT, starting with SAGE.
	ArchitectureHybrid Architecture = "hybrid"
)

// Valid reports whether a is a known architecture.
func (a Architecture) Valid() bool {
	switch a {
	case ArchitectureSAGE, ArchitectureGAT, ArchitectureHybrid:
		return true
	}
	return false
}

// Aggregation selects how SAGE combines neighbor features.
type Aggregation string

const (
	// AggregationMean averages neighbor features per edge kind.
	AggregationMean Aggregation = "mean"
	// AggregationSum sums neighbor features per edge kind.
	AggregationSum Aggregation = "sum"
)

// Valid reports whether a is a known aggregation.
func (a Aggregation) Valid() bool {
	return a == AggregationMean || a == AggregationSum
}

// maxDepth bounds the layer stack. Two to four layers is the working
// range for code graphs; beyond eight, message passing oversmooths.
const maxDepth = 8

// Config describes a layer stack.
type Config struct {
	// Architecture picks the layer types.
	Architecture Architecture `json:"architecture" yaml:"architecture"`

	// InputDim is the node feature width entering the first layer.
	InputDim int `json:"input_dim" yaml:"input_dim"`

	// HiddenDims lists each layer's output width, in order.
	HiddenDims []int `json:"hidden_dims" yaml:"hidden_dims"`

	// Heads is the attention head count for GAT layers.
	Heads int `json:"heads" yaml:"heads"`

	// Aggregation is the SAGE neighbor aggregation.
	Aggregation Aggregation `json:"aggregation" yaml:"aggregation"`

	// Dropout is applied between layers during training only.
	Dropout float32 `json:"dropout" yaml:"dropout"`

	// EdgeKinds is the number of edge kinds in the adjacency partition.
	EdgeKinds int `json:"edge_kinds" yaml:"edge_kinds"`
}

// LayerArchitecture returns the architecture of layer i under the
// stack's configuration. Hybrid alternates SAGE then GAT.
func (c Config) LayerArchitecture(i int) Architecture {
	if c.Architecture != ArchitectureHybrid {
		return c.Architecture
	}
	if i%2 == 0 {
		return ArchitectureSAGE
	}
	return ArchitectureGAT
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !c.Architecture.Valid() {
		return fmt.Errorf("layers: unknown architecture %q", c.Architecture)
	}
	if c.InputDim <= 0 {
		return fmt.Errorf("layers: input dim must be positive, got %d", c.InputDim)
	}
	if len(c.HiddenDims) == 0 || len(c.HiddenDims) > maxDepth {
		return fmt.Errorf("layers: depth %d outside [1,%d]", len(c.HiddenDims), maxDepth)
	}
	if c.EdgeKinds <= 0 {
		return fmt.Errorf("layers: edge kinds must be positive, got %d", c.EdgeKinds)
	}
	if !c.Aggregation.Valid() {
		return fmt.Errorf("layers: unknown aggregation %q", c.Aggregation)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("layers: dropout %v outside [0,1)", c.Dropout)
	}

	for i, dim := range c.HiddenDims {
		if dim <= 0 {
			return fmt.Errorf("layers: hidden dim %d must be positive, got %d", i, dim)
		}
		if c.LayerArchitecture(i) != ArchitectureGAT {
			continue
		}
		if c.Heads <= 0 {
			return fmt.Errorf("layers: attention layers need a positive head count, got %d", c.Heads)
		}
		// Hidden attention layers concatenate their heads; the final
		// layer averages them and is exempt.
		if i < len(c.HiddenDims)-1 && dim%c.Heads != 0 {
			return fmt.Errorf("layers: hidden dim %d (%d) not divisible by %d heads", i, dim, c.Heads)
		}
	}
	return nil
}

// NamedTensor pairs a parameter tensor with its stable name. Names are
// the unit of parameter serialization; they must not change between
// releases or stored snapshots stop loading.
type NamedTensor struct {
	Name   string
	Tensor *tensor.Tensor
}

// Layer is one message-passing step over a batch.
type Layer interface {
	// Forward computes the next node representation from h ([N, InDim]).
	Forward(bd *Binding, h *tensor.Value, b *tensor.Batch) *tensor.Value

	// Params returns the layer's parameters in stable order.
	Params() []NamedTensor

	// OutDim is the width of Forward's result.
	OutDim() int
}

// ForwardOpts carries per-pass switches.
type ForwardOpts struct {
	// Training enables dropout. Rng must be set when the stack's
	// dropout rate is positive.
	Training bool
	Rng      *rand.Rand
}

// Binding memoizes tape values for parameter tensors during one pass.
//
// # Description
//
// A tensor bound twice must map to one tape value, otherwise its
// gradient contributions split across copies and the optimizer sees
// only a fraction. The binding guarantees that and gives the optimizer
// gradient access after Backward.
type Binding struct {
	tp   *tensor.Tape
	vals map[*tensor.Tensor]*tensor.Value
}

// NewBinding wraps a tape for one forward/backward pass.
func NewBinding(tp *tensor.Tape) *Binding {
	return &Binding{tp: tp, vals: make(map[*tensor.Tensor]*tensor.Value)}
}

// Tape returns the underlying tape.
func (bd *Binding) Tape() *tensor.Tape { return bd.tp }

// Param returns the memoized tape value for t, creating it on first use.
func (bd *Binding) Param(t *tensor.Tensor) *tensor.Value {
	if v, ok := bd.vals[t]; ok {
		return v
	}
	v := bd.tp.Param(t)
	bd.vals[t] = v
	return v
}

// GradOf returns the accumulated gradient of a bound parameter, or nil
// if the parameter never participated in this pass.
func (bd *Binding) GradOf(t *tensor.Tensor) *tensor.Tensor {
	v, ok := bd.vals[t]
	if !ok {
		return nil
	}
	return v.Grad()
}
