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

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/tensor"
)

// =============================================================================
// Contrastive Losses
// =============================================================================

// Loss kinds selectable by name.
const (
	LossInfoNCE = "infonce"
	LossMargin  = "margin"
)

// Default loss hyperparameters.
const (
	DefaultTemperature float32 = 0.07
	DefaultMargin      float32 = 1.0
)

// Loss scores a batch of paired views. Row i of anchors and row i of
// positives are two views of the same unit; every other row pairing is
// a negative. Both inputs are [B, D] with B >= 2, so each positive has
// at least one negative and the batch cannot collapse.
type Loss interface {
	// Compute records the loss on the tape and returns it as a 1x1
	// value.
	Compute(tp *tensor.Tape, anchors, positives *tensor.Value) (*tensor.Value, error)

	// Name returns the loss kind.
	Name() string
}

// NewLoss builds a loss by kind. Zero hyperparameters select the
// defaults; an empty kind selects InfoNCE.
func NewLoss(kind string, temperature, margin float32) (Loss, error) {
	switch kind {
	case "", LossInfoNCE:
		if temperature == 0 {
			temperature = DefaultTemperature
		}
		if temperature <= 0 {
			return nil, fmt.Errorf("temperature must be positive, got %v", temperature)
		}
		return &InfoNCE{Temperature: temperature}, nil
	case LossMargin:
		if margin == 0 {
			margin = DefaultMargin
		}
		if margin <= 0 {
			return nil, fmt.Errorf("margin must be positive, got %v", margin)
		}
		return &Margin{Margin: margin}, nil
	default:
		return nil, fmt.Errorf("unknown loss kind %q", kind)
	}
}

// checkPairs validates the paired-view shape contract shared by both
// losses.
func checkPairs(anchors, positives *tensor.Value) (batch int, err error) {
	if anchors == nil || positives == nil {
		return 0, fmt.Errorf("anchors and positives must not be nil")
	}
	if anchors.T.Rows() != positives.T.Rows() || anchors.T.Cols() != positives.T.Cols() {
		return 0, fmt.Errorf("anchors are %dx%d, positives are %dx%d",
			anchors.T.Rows(), anchors.T.Cols(), positives.T.Rows(), positives.T.Cols())
	}
	if anchors.T.Rows() < 2 {
		return 0, fmt.Errorf("contrastive loss needs at least 2 units per batch, got %d", anchors.T.Rows())
	}
	return anchors.T.Rows(), nil
}

// identity returns the BxB identity matrix.
func identity(n int) *tensor.Tensor {
	t := tensor.New(n, n)
	for i := 0; i < n; i++ {
		t.Set(i, i, 1)
	}
	return t
}

// InfoNCE is temperature-scaled cross-entropy over in-batch
// similarities. For each anchor, its own positive is the target class
// among all B positives; the symmetric direction treats each positive
// as an anchor over all B anchors. Embeddings arrive L2-normalized, so
// the similarity matrix is cosine.
type InfoNCE struct {
	Temperature float32
}

func (l *InfoNCE) Name() string { return LossInfoNCE }

func (l *InfoNCE) Compute(tp *tensor.Tape, anchors, positives *tensor.Value) (*tensor.Value, error) {
	b, err := checkPairs(anchors, positives)
	if err != nil {
		return nil, err
	}

	logits := tp.Scale(tp.MatMul(anchors, tp.Transpose(positives)), 1/l.Temperature)
	eye := tp.Input(identity(b))

	// log-probability of the matched pair, both directions.
	fwd := tp.SumAll(tp.Mul(tp.LogSoftmax(logits), eye))
	rev := tp.SumAll(tp.Mul(tp.LogSoftmax(tp.Transpose(logits)), eye))

	return tp.Scale(tp.Add(fwd, rev), -1/float32(2*b)), nil
}

// Margin is a hinge loss over similarity gaps. Each anchor's positive
// similarity must beat the similarity to the next unit's positive by
// the margin; shortfalls contribute linearly.
type Margin struct {
	Margin float32
}

func (l *Margin) Name() string { return LossMargin }

func (l *Margin) Compute(tp *tensor.Tape, anchors, positives *tensor.Value) (*tensor.Value, error) {
	b, err := checkPairs(anchors, positives)
	if err != nil {
		return nil, err
	}

	sims := tp.MatMul(anchors, tp.Transpose(positives))

	// Mask out the positive diagonal and the shifted negative, anchor i
	// against positive (i+1) mod B.
	shift := tensor.New(b, b)
	for i := 0; i < b; i++ {
		shift.Set(i, (i+1)%b, 1)
	}
	pos := tp.SumCols(tp.Mul(sims, tp.Input(identity(b))))
	neg := tp.SumCols(tp.Mul(sims, tp.Input(shift)))

	marginT := tensor.New(1, 1)
	marginT.Fill(l.Margin)
	hinge := tp.ReLU(tp.Add(tp.Sub(neg, pos), tp.Input(marginT)))

	return tp.MeanAll(hinge), nil
}
