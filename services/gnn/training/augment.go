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
	"math/rand"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/tensor"
)

// Default augmentation strengths.
const (
	defaultEdgeDropRate float32 = 0.1
	defaultFeatureNoise float32 = 0.01
)

// Augmentor derives stochastic views of a graph for contrastive
// training. A view keeps every node but perturbs features with
// Gaussian noise and drops each edge independently, so two views of
// one unit stay structurally close while never being identical.
//
// The zero Augmentor is a no-op and returns the input unchanged in
// structure (features are still copied).
type Augmentor struct {
	// EdgeDropRate is the per-edge drop probability, in [0, 1).
	EdgeDropRate float32 `json:"edge_drop_rate" yaml:"edge_drop_rate"`

	// FeatureNoise is the standard deviation of the additive noise.
	FeatureNoise float32 `json:"feature_noise" yaml:"feature_noise"`
}

// DefaultAugmentor returns the strengths used when a training config
// does not set its own.
func DefaultAugmentor() Augmentor {
	return Augmentor{EdgeDropRate: defaultEdgeDropRate, FeatureNoise: defaultFeatureNoise}
}

// Validate checks the augmentation strengths.
func (a Augmentor) Validate() error {
	if a.EdgeDropRate < 0 || a.EdgeDropRate >= 1 {
		return fmt.Errorf("edge drop rate must be in [0, 1), got %v", a.EdgeDropRate)
	}
	if a.FeatureNoise < 0 {
		return fmt.Errorf("feature noise must not be negative, got %v", a.FeatureNoise)
	}
	return nil
}

// View produces one augmented view of d. The input is never modified.
// The draw order is fixed (features first, then edges), so a view is
// fully determined by the rng seed.
func (a Augmentor) View(d tensor.GraphData, rng *rand.Rand) tensor.GraphData {
	out := tensor.GraphData{
		Features:   make([]float32, len(d.Features)),
		FeatureDim: d.FeatureDim,
	}
	copy(out.Features, d.Features)
	if a.FeatureNoise > 0 {
		for i := range out.Features {
			out.Features[i] += float32(rng.NormFloat64()) * a.FeatureNoise
		}
	}

	if a.EdgeDropRate <= 0 {
		out.EdgeSrc = append([]int32(nil), d.EdgeSrc...)
		out.EdgeDst = append([]int32(nil), d.EdgeDst...)
		out.EdgeKind = append([]int32(nil), d.EdgeKind...)
		return out
	}

	out.EdgeSrc = make([]int32, 0, len(d.EdgeSrc))
	out.EdgeDst = make([]int32, 0, len(d.EdgeDst))
	out.EdgeKind = make([]int32, 0, len(d.EdgeKind))
	for i := range d.EdgeSrc {
		if rng.Float32() < a.EdgeDropRate {
			continue
		}
		out.EdgeSrc = append(out.EdgeSrc, d.EdgeSrc[i])
		out.EdgeDst = append(out.EdgeDst, d.EdgeDst[i])
		out.EdgeKind = append(out.EdgeKind, d.EdgeKind[i])
	}
	return out
}
