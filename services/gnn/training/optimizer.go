// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package training

import (
	"fmt"
	"math"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/layers"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/tensor"
)

// =============================================================================
// Optimizers
// =============================================================================

// Optimizer kinds selectable by name.
const (
	OptimizerSGD  = "sgd"
	OptimizerAdam = "adam"
)

// Adam moment decay and stability constants.
const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

// Optimizer applies one gradient step to the model parameters. The
// grads slice is aligned with params; a nil entry means no gradient
// reached that parameter this batch and it is left unchanged. State
// (momentum, moments) is keyed by position, so the same params slice
// must be passed on every step.
type Optimizer interface {
	Step(params []layers.NamedTensor, grads []*tensor.Tensor) error

	// SetLR changes the learning rate for subsequent steps. Schedulers
	// call this between epochs.
	SetLR(lr float32)

	Name() string
}

// NewOptimizer builds an optimizer by kind. An empty kind selects Adam.
func NewOptimizer(kind string, lr, weightDecay, momentum float32) (Optimizer, error) {
	switch kind {
	case "", OptimizerAdam:
		return NewAdam(lr, weightDecay)
	case OptimizerSGD:
		return NewSGD(lr, weightDecay, momentum)
	default:
		return nil, fmt.Errorf("unknown optimizer kind %q", kind)
	}
}

// ClipGradients rescales all gradients in place so their global L2
// norm does not exceed maxNorm, and returns the pre-clip norm. A
// non-positive maxNorm disables clipping; nil entries are skipped.
func ClipGradients(grads []*tensor.Tensor, maxNorm float32) float64 {
	var sum float64
	for _, g := range grads {
		if g == nil {
			continue
		}
		for _, v := range g.Data() {
			sum += float64(v) * float64(v)
		}
	}
	norm := math.Sqrt(sum)
	if maxNorm <= 0 || norm <= float64(maxNorm) {
		return norm
	}

	scale := float32(float64(maxNorm) / norm)
	for _, g := range grads {
		if g == nil {
			continue
		}
		d := g.Data()
		for i := range d {
			d[i] *= scale
		}
	}
	return norm
}

// SGD is stochastic gradient descent with optional classical momentum
// and L2 weight decay folded into the gradient.
type SGD struct {
	lr          float32
	weightDecay float32
	momentum    float32
	velocity    [][]float32
}

// NewSGD creates an SGD optimizer. Momentum 0 is plain descent.
func NewSGD(lr, weightDecay, momentum float32) (*SGD, error) {
	if lr <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %v", lr)
	}
	if weightDecay < 0 {
		return nil, fmt.Errorf("weight decay must not be negative, got %v", weightDecay)
	}
	if momentum < 0 || momentum >= 1 {
		return nil, fmt.Errorf("momentum must be in [0, 1), got %v", momentum)
	}
	return &SGD{lr: lr, weightDecay: weightDecay, momentum: momentum}, nil
}

func (o *SGD) Name() string { return OptimizerSGD }

func (o *SGD) SetLR(lr float32) { o.lr = lr }

func (o *SGD) Step(params []layers.NamedTensor, grads []*tensor.Tensor) error {
	if err := checkStep(params, grads, &o.velocity); err != nil {
		return err
	}

	for i, nt := range params {
		if grads[i] == nil {
			continue
		}
		w := nt.Tensor.Data()
		g := grads[i].Data()
		v := o.velocity[i]
		for j := range w {
			gj := g[j] + o.weightDecay*w[j]
			if o.momentum > 0 {
				v[j] = o.momentum*v[j] + gj
				gj = v[j]
			}
			w[j] -= o.lr * gj
		}
	}
	return nil
}

// Adam keeps per-parameter first and second moment estimates with
// bias correction. Weight decay is folded into the gradient the same
// way SGD does it.
type Adam struct {
	lr          float32
	weightDecay float32
	step        int
	m           [][]float32
	v           [][]float32
}

// NewAdam creates an Adam optimizer with the standard moment decays.
func NewAdam(lr, weightDecay float32) (*Adam, error) {
	if lr <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %v", lr)
	}
	if weightDecay < 0 {
		return nil, fmt.Errorf("weight decay must not be negative, got %v", weightDecay)
	}
	return &Adam{lr: lr, weightDecay: weightDecay}, nil
}

func (o *Adam) Name() string { return OptimizerAdam }

func (o *Adam) SetLR(lr float32) { o.lr = lr }

func (o *Adam) Step(params []layers.NamedTensor, grads []*tensor.Tensor) error {
	if err := checkStep(params, grads, &o.m); err != nil {
		return err
	}
	if err := checkStep(params, grads, &o.v); err != nil {
		return err
	}

	o.step++
	c1 := 1 - math.Pow(adamBeta1, float64(o.step))
	c2 := 1 - math.Pow(adamBeta2, float64(o.step))

	for i, nt := range params {
		if grads[i] == nil {
			continue
		}
		w := nt.Tensor.Data()
		g := grads[i].Data()
		m, v := o.m[i], o.v[i]
		for j := range w {
			gj := float64(g[j]) + float64(o.weightDecay)*float64(w[j])
			mj := adamBeta1*float64(m[j]) + (1-adamBeta1)*gj
			vj := adamBeta2*float64(v[j]) + (1-adamBeta2)*gj*gj
			m[j], v[j] = float32(mj), float32(vj)

			update := (mj / c1) / (math.Sqrt(vj/c2) + adamEps)
			w[j] -= o.lr * float32(update)
		}
	}
	return nil
}

// checkStep validates the params/grads alignment and sizes the
// optimizer state slices on first use.
func checkStep(params []layers.NamedTensor, grads []*tensor.Tensor, state *[][]float32) error {
	if len(params) != len(grads) {
		return fmt.Errorf("got %d gradients for %d parameters", len(grads), len(params))
	}
	if *state == nil {
		*state = make([][]float32, len(params))
		for i, nt := range params {
			(*state)[i] = make([]float32, nt.Tensor.Len())
		}
	}
	if len(*state) != len(params) {
		return fmt.Errorf("optimizer state tracks %d parameters, got %d", len(*state), len(params))
	}
	for i, nt := range params {
		if grads[i] == nil {
			continue
		}
		if grads[i].Len() != nt.Tensor.Len() {
			return fmt.Errorf("gradient %d has %d values, parameter %q has %d",
				i, grads[i].Len(), nt.Name, nt.Tensor.Len())
		}
		if len((*state)[i]) != nt.Tensor.Len() {
			return fmt.Errorf("optimizer state %d has %d values, parameter %q has %d",
				i, len((*state)[i]), nt.Name, nt.Tensor.Len())
		}
	}
	return nil
}
