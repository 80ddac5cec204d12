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
	"math/rand"
	"testing"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/tensor"
)

func sampleGraphData() tensor.GraphData {
	return tensor.GraphData{
		Features:   []float32{1, 2, 3, 4, 5, 6},
		FeatureDim: 2,
		EdgeSrc:    []int32{0, 1, 2, 0},
		EdgeDst:    []int32{1, 2, 0, 2},
		EdgeKind:   []int32{0, 0, 1, 1},
	}
}

func TestAugmentor_ZeroIsIdentity(t *testing.T) {
	d := sampleGraphData()
	v := Augmentor{}.View(d, rand.New(rand.NewSource(1)))

	for i := range d.Features {
		if v.Features[i] != d.Features[i] {
			t.Fatalf("feature %d changed: %v != %v", i, v.Features[i], d.Features[i])
		}
	}
	if len(v.EdgeSrc) != len(d.EdgeSrc) {
		t.Fatalf("edge count changed: %d != %d", len(v.EdgeSrc), len(d.EdgeSrc))
	}

	// The input must stay untouched even through the copies.
	v.Features[0] = 99
	v.EdgeSrc[0] = 99
	if d.Features[0] != 1 || d.EdgeSrc[0] != 0 {
		t.Error("view shares storage with the input")
	}
}

func TestAugmentor_DeterministicPerSeed(t *testing.T) {
	d := sampleGraphData()
	a := Augmentor{EdgeDropRate: 0.5, FeatureNoise: 0.1}

	v1 := a.View(d, rand.New(rand.NewSource(7)))
	v2 := a.View(d, rand.New(rand.NewSource(7)))

	if len(v1.EdgeSrc) != len(v2.EdgeSrc) {
		t.Fatalf("same seed produced %d and %d edges", len(v1.EdgeSrc), len(v2.EdgeSrc))
	}
	for i := range v1.Features {
		if v1.Features[i] != v2.Features[i] {
			t.Fatalf("same seed produced different features at %d", i)
		}
	}
	for i := range v1.EdgeSrc {
		if v1.EdgeSrc[i] != v2.EdgeSrc[i] || v1.EdgeKind[i] != v2.EdgeKind[i] {
			t.Fatalf("same seed produced different edges at %d", i)
		}
	}
}

func TestAugmentor_NoisePerturbsFeatures(t *testing.T) {
	d := sampleGraphData()
	v := Augmentor{FeatureNoise: 0.1}.View(d, rand.New(rand.NewSource(3)))

	var changed int
	for i := range d.Features {
		if v.Features[i] != d.Features[i] {
			changed++
		}
	}
	if changed == 0 {
		t.Error("noise left every feature unchanged")
	}
}

func TestAugmentor_DropKeepsEdgeSubset(t *testing.T) {
	d := sampleGraphData()
	v := Augmentor{EdgeDropRate: 0.5}.View(d, rand.New(rand.NewSource(11)))

	if len(v.EdgeSrc) > len(d.EdgeSrc) {
		t.Fatalf("view has %d edges, input has %d", len(v.EdgeSrc), len(d.EdgeSrc))
	}
	if len(v.EdgeSrc) != len(v.EdgeDst) || len(v.EdgeSrc) != len(v.EdgeKind) {
		t.Fatal("edge slices are ragged after augmentation")
	}

	// Every surviving edge must exist in the input.
	type edge struct{ s, d, k int32 }
	have := map[edge]bool{}
	for i := range d.EdgeSrc {
		have[edge{d.EdgeSrc[i], d.EdgeDst[i], d.EdgeKind[i]}] = true
	}
	for i := range v.EdgeSrc {
		if !have[edge{v.EdgeSrc[i], v.EdgeDst[i], v.EdgeKind[i]}] {
			t.Fatalf("edge %d of the view does not exist in the input", i)
		}
	}
}

func TestAugmentor_Validate(t *testing.T) {
	if err := (Augmentor{EdgeDropRate: 1}).Validate(); err == nil {
		t.Error("expected error for drop rate 1")
	}
	if err := (Augmentor{EdgeDropRate: -0.1}).Validate(); err == nil {
		t.Error("expected error for negative drop rate")
	}
	if err := (Augmentor{FeatureNoise: -1}).Validate(); err == nil {
		t.Error("expected error for negative noise")
	}
	if err := DefaultAugmentor().Validate(); err != nil {
		t.Errorf("default augmentor invalid: %v", err)
	}
}
