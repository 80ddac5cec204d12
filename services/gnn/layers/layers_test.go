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
	"math"
	"math/rand"
	"testing"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/tensor"
)

// testConfig is a small two-layer setup shared across tests.
func testConfig(arch Architecture) Config {
	return Config{
		Architecture: arch,
		InputDim:     4,
		HiddenDims:   []int{8, 6},
		Heads:        2,
		Aggregation:  AggregationMean,
		Dropout:      0,
		EdgeKinds:    3,
	}
}

// testBatch builds two graphs (3 and 2 nodes, feature dim 4) with
// edges across two of the three kinds.
func testBatch(t *testing.T) *tensor.Batch {
	t.Helper()
	g0 := tensor.GraphData{
		Features: []float32{
			0.5, 0.2, 0.8, 0.1,
			0.3, 0.9, 0.4, 0.6,
			0.7, 0.1, 0.5, 0.3,
		},
		FeatureDim: 4,
		EdgeSrc:    []int32{0, 1, 2},
		EdgeDst:    []int32{1, 2, 0},
		EdgeKind:   []int32{0, 1, 0},
	}
	g1 := tensor.GraphData{
		Features: []float32{
			0.4, 0.6, 0.2, 0.9,
			0.8, 0.3, 0.7, 0.5,
		},
		FeatureDim: 4,
		EdgeSrc:    []int32{0},
		EdgeDst:    []int32{1},
		EdgeKind:   []int32{1},
	}
	b, err := tensor.NewBatch(3, g0, g1)
	if err != nil {
		t.Fatalf("NewBatch failed: %v", err)
	}
	return b
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid_sage", func(c *Config) {}, false},
		{"valid_gat", func(c *Config) { c.Architecture = ArchitectureGAT }, false},
		{"valid_hybrid", func(c *Config) { c.Architecture = ArchitectureHybrid }, false},
		{"unknown_architecture", func(c *Config) { c.Architecture = "transformer" }, true},
		{"zero_input_dim", func(c *Config) { c.InputDim = 0 }, true},
		{"no_layers", func(c *Config) { c.HiddenDims = nil }, true},
		{"too_deep", func(c *Config) { c.HiddenDims = make([]int, 9) }, true},
		{"zero_hidden_dim", func(c *Config) { c.HiddenDims = []int{8, 0} }, true},
		{"zero_edge_kinds", func(c *Config) { c.EdgeKinds = 0 }, true},
		{"unknown_aggregation", func(c *Config) { c.Aggregation = "median" }, true},
		{"dropout_one", func(c *Config) { c.Dropout = 1 }, true},
		{"gat_zero_heads", func(c *Config) {
			c.Architecture = ArchitectureGAT
			c.Heads = 0
		}, true},
		{"gat_indivisible_hidden", func(c *Config) {
			c.Architecture = ArchitectureGAT
			c.HiddenDims = []int{7, 6}
		}, true},
		{"gat_final_layer_exempt_from_divisibility", func(c *Config) {
			c.Architecture = ArchitectureGAT
			c.HiddenDims = []int{8, 7}
		}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(ArchitectureSAGE)
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfig_HybridAlternation(t *testing.T) {
	cfg := testConfig(ArchitectureHybrid)
	wants := []Architecture{ArchitectureSAGE, ArchitectureGAT, ArchitectureSAGE, ArchitectureGAT}
	for i, want := range wants {
		if got := cfg.LayerArchitecture(i); got != want {
			t.Errorf("layer %d architecture = %q, want %q", i, got, want)
		}
	}
}

func TestSAGELayer_Forward(t *testing.T) {
	b := testBatch(t)
	l := NewSAGELayer(4, 8, 3, AggregationMean, rand.New(rand.NewSource(1)))

	tp := tensor.NewTape()
	bd := NewBinding(tp)
	out := l.Forward(bd, tp.Input(b.Features), b)

	if out.T.Rows() != b.NumNodes() || out.T.Cols() != 8 {
		t.Fatalf("output shape = %dx%d, want %dx8", out.T.Rows(), out.T.Cols(), b.NumNodes())
	}
	for i, v := range out.T.Data() {
		if v < 0 {
			t.Fatalf("ReLU output element %d negative: %v", i, v)
		}
		if math.IsNaN(float64(v)) {
			t.Fatalf("output element %d is NaN", i)
		}
	}
}

func TestSAGELayer_DeterministicInit(t *testing.T) {
	a := NewSAGELayer(4, 8, 3, AggregationMean, rand.New(rand.NewSource(5)))
	b := NewSAGELayer(4, 8, 3, AggregationMean, rand.New(rand.NewSource(5)))

	pa, pb := a.Params(), b.Params()
	if len(pa) != len(pb) {
		t.Fatalf("param counts differ: %d vs %d", len(pa), len(pb))
	}
	for i := range pa {
		if pa[i].Name != pb[i].Name {
			t.Fatalf("param %d name %q vs %q", i, pa[i].Name, pb[i].Name)
		}
		for j := range pa[i].Tensor.Data() {
			if pa[i].Tensor.Data()[j] != pb[i].Tensor.Data()[j] {
				t.Fatalf("param %q differs at %d with the same seed", pa[i].Name, j)
			}
		}
	}
}

func TestSAGELayer_GradientFlows(t *testing.T) {
	b := testBatch(t)
	l := NewSAGELayer(4, 8, 3, AggregationSum, rand.New(rand.NewSource(2)))

	tp := tensor.NewTape()
	bd := NewBinding(tp)
	out := l.Forward(bd, tp.Input(b.Features), b)
	if err := tp.Backward(tp.SumAll(out)); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	g := bd.GradOf(l.wComb)
	if g == nil {
		t.Fatal("combine weight has no gradient")
	}
	nonZero := false
	for _, v := range g.Data() {
		if v != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Error("combine weight gradient is all zeros")
	}
}

func TestGATLayer_ForwardShapes(t *testing.T) {
	b := testBatch(t)

	t.Run("concat_heads", func(t *testing.T) {
		l := NewGATLayer(4, 8, 2, 3, true, rand.New(rand.NewSource(3)))
		tp := tensor.NewTape()
		out := l.Forward(NewBinding(tp), tp.Input(b.Features), b)
		if out.T.Rows() != b.NumNodes() || out.T.Cols() != 8 {
			t.Errorf("output shape = %dx%d, want %dx8", out.T.Rows(), out.T.Cols(), b.NumNodes())
		}
	})

	t.Run("averaged_heads", func(t *testing.T) {
		l := NewGATLayer(4, 7, 2, 3, false, rand.New(rand.NewSource(3)))
		tp := tensor.NewTape()
		out := l.Forward(NewBinding(tp), tp.Input(b.Features), b)
		if out.T.Rows() != b.NumNodes() || out.T.Cols() != 7 {
			t.Errorf("output shape = %dx%d, want %dx7", out.T.Rows(), out.T.Cols(), b.NumNodes())
		}
	})
}

func TestGATLayer_OutputFinite(t *testing.T) {
	b := testBatch(t)
	l := NewGATLayer(4, 8, 2, 3, true, rand.New(rand.NewSource(4)))

	tp := tensor.NewTape()
	out := l.Forward(NewBinding(tp), tp.Input(b.Features), b)
	for i, v := range out.T.Data() {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("output element %d non-finite: %v", i, v)
		}
		// ELU floor.
		if v < -1 {
			t.Fatalf("ELU output element %d below -1: %v", i, v)
		}
	}
}

func TestGATLayer_IndivisiblePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for out dim not divisible by heads")
		}
	}()
	NewGATLayer(4, 7, 2, 3, true, rand.New(rand.NewSource(1)))
}

func TestStack_Composition(t *testing.T) {
	cfg := testConfig(ArchitectureHybrid)
	s, err := NewStack(cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewStack failed: %v", err)
	}

	if s.Depth() != 2 {
		t.Errorf("Depth = %d, want 2", s.Depth())
	}
	if s.OutputDim() != 6 {
		t.Errorf("OutputDim = %d, want 6", s.OutputDim())
	}
	if _, ok := s.layers[0].(*SAGELayer); !ok {
		t.Errorf("layer 0 is %T, want *SAGELayer", s.layers[0])
	}
	if _, ok := s.layers[1].(*GATLayer); !ok {
		t.Errorf("layer 1 is %T, want *GATLayer", s.layers[1])
	}

	params := s.Params()
	if len(params) == 0 {
		t.Fatal("stack has no parameters")
	}
	if params[0].Name != "layer00.neigh_w00" {
		t.Errorf("first param name = %q, want layer00.neigh_w00", params[0].Name)
	}
}

func TestStack_InvalidConfigRejected(t *testing.T) {
	cfg := testConfig(ArchitectureSAGE)
	cfg.InputDim = -1
	if _, err := NewStack(cfg, rand.New(rand.NewSource(1))); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestStack_ForwardDeterministic(t *testing.T) {
	cfg := testConfig(ArchitectureSAGE)
	s, err := NewStack(cfg, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatalf("NewStack failed: %v", err)
	}
	b := testBatch(t)

	run := func() []float32 {
		tp := tensor.NewTape()
		out := s.Forward(NewBinding(tp), b, ForwardOpts{})
		return append([]float32(nil), out.T.Data()...)
	}
	a, c := run(), run()
	for i := range a {
		if a[i] != c[i] {
			t.Fatalf("repeated forward differs at %d: %v vs %v", i, a[i], c[i])
		}
	}
}

func TestStack_DropoutOnlyDuringTraining(t *testing.T) {
	cfg := testConfig(ArchitectureSAGE)
	cfg.Dropout = 0.5
	s, err := NewStack(cfg, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatalf("NewStack failed: %v", err)
	}
	b := testBatch(t)

	tp := tensor.NewTape()
	eval := s.Forward(NewBinding(tp), b, ForwardOpts{})

	tp2 := tensor.NewTape()
	eval2 := s.Forward(NewBinding(tp2), b, ForwardOpts{})
	for i := range eval.T.Data() {
		if eval.T.Data()[i] != eval2.T.Data()[i] {
			t.Fatal("evaluation passes differ; dropout leaked outside training")
		}
	}

	tp3 := tensor.NewTape()
	train := s.Forward(NewBinding(tp3), b, ForwardOpts{Training: true, Rng: rand.New(rand.NewSource(1))})
	differs := false
	for i := range eval.T.Data() {
		if eval.T.Data()[i] != train.T.Data()[i] {
			differs = true
			break
		}
	}
	if !differs {
		t.Error("training pass with dropout 0.5 matched evaluation pass")
	}
}

func TestBinding_MemoizesParams(t *testing.T) {
	tp := tensor.NewTape()
	bd := NewBinding(tp)
	w := tensor.New(2, 2)

	a, b := bd.Param(w), bd.Param(w)
	if a != b {
		t.Error("binding created two values for one tensor")
	}
	if bd.GradOf(tensor.New(2, 2)) != nil {
		t.Error("GradOf returned a gradient for an unbound tensor")
	}
}

func TestReadout_Registry(t *testing.T) {
	names := ReadoutNames()
	want := []string{"attention", "max", "mean", "sum"}
	for _, w := range want {
		found := false
		for _, n := range names {
			if n == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("registry missing %q (have %v)", w, names)
		}
	}

	if _, err := NewReadout("median", 4, rand.New(rand.NewSource(1))); err == nil {
		t.Error("expected error for unknown readout")
	}
	if err := RegisterReadout("mean", nil); err == nil {
		t.Error("expected error registering a duplicate name")
	}
}

func TestReadout_PoolingValues(t *testing.T) {
	// Two graphs: rows {0,1} and row {2}, feature dim 2.
	b, err := tensor.NewBatch(1,
		tensor.GraphData{Features: []float32{1, 2, 3, 4}, FeatureDim: 2},
		tensor.GraphData{Features: []float32{5, 6}, FeatureDim: 2},
	)
	if err != nil {
		t.Fatalf("NewBatch failed: %v", err)
	}

	apply := func(name string) *tensor.Tensor {
		r, err := NewReadout(name, 2, rand.New(rand.NewSource(1)))
		if err != nil {
			t.Fatalf("NewReadout(%s) failed: %v", name, err)
		}
		tp := tensor.NewTape()
		bd := NewBinding(tp)
		return r.Apply(bd, tp.Input(b.Features), b).T
	}

	mean := apply("mean")
	if mean.At(0, 0) != 2 || mean.At(0, 1) != 3 || mean.At(1, 0) != 5 || mean.At(1, 1) != 6 {
		t.Errorf("mean pooled = %v, want [[2 3] [5 6]]", mean.Data())
	}
	sum := apply("sum")
	if sum.At(0, 0) != 4 || sum.At(0, 1) != 6 || sum.At(1, 0) != 5 {
		t.Errorf("sum pooled = %v, want [[4 6] [5 6]]", sum.Data())
	}
	max := apply("max")
	if max.At(0, 0) != 3 || max.At(0, 1) != 4 || max.At(1, 0) != 5 {
		t.Errorf("max pooled = %v, want [[3 4] [5 6]]", max.Data())
	}

	attn := apply("attention")
	if attn.Rows() != 2 || attn.Cols() != 2 {
		t.Fatalf("attention pooled shape = %dx%d, want 2x2", attn.Rows(), attn.Cols())
	}
	// Attention over a single-node graph is that node's vector.
	if attn.At(1, 0) != 5 || attn.At(1, 1) != 6 {
		t.Errorf("single-node attention pool = [%v %v], want [5 6]", attn.At(1, 0), attn.At(1, 1))
	}
}

func TestEncoder_EmbedUnitNorm(t *testing.T) {
	cfg := testConfig(ArchitectureHybrid)
	enc, err := NewEncoder(cfg, "attention", 16, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	b := testBatch(t)

	tp := tensor.NewTape()
	z := enc.Embed(NewBinding(tp), b, ForwardOpts{})

	if z.T.Rows() != 2 || z.T.Cols() != 16 {
		t.Fatalf("embedding shape = %dx%d, want 2x16", z.T.Rows(), z.T.Cols())
	}
	for i := 0; i < z.T.Rows(); i++ {
		var norm float64
		for _, v := range z.T.Row(i) {
			norm += float64(v) * float64(v)
		}
		if math.Abs(math.Sqrt(norm)-1) > 1e-5 {
			t.Errorf("row %d norm = %v, want 1", i, math.Sqrt(norm))
		}
	}
}

func TestEncoder_ParamOrderStable(t *testing.T) {
	cfg := testConfig(ArchitectureSAGE)
	a, err := NewEncoder(cfg, "attention", 16, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	b, err := NewEncoder(cfg, "attention", 16, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	pa, pb := a.Params(), b.Params()
	if len(pa) != len(pb) {
		t.Fatalf("param counts differ: %d vs %d", len(pa), len(pb))
	}
	seen := map[string]bool{}
	for i := range pa {
		if pa[i].Name != pb[i].Name {
			t.Fatalf("param %d name %q vs %q", i, pa[i].Name, pb[i].Name)
		}
		if seen[pa[i].Name] {
			t.Fatalf("duplicate param name %q", pa[i].Name)
		}
		seen[pa[i].Name] = true
	}
	if !seen["projection.w"] || !seen["readout.query"] {
		t.Error("expected projection.w and readout.query among params")
	}
}

func TestEncoder_IsomorphicGraphsEmbedAlike(t *testing.T) {
	cfg := testConfig(ArchitectureSAGE)
	enc, err := NewEncoder(cfg, "mean", 16, rand.New(rand.NewSource(11)))
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	// The same 3-node graph with nodes listed in two different orders.
	g := tensor.GraphData{
		Features: []float32{
			0.5, 0.2, 0.8, 0.1,
			0.3, 0.9, 0.4, 0.6,
			0.7, 0.1, 0.5, 0.3,
		},
		FeatureDim: 4,
		EdgeSrc:    []int32{0, 1},
		EdgeDst:    []int32{1, 2},
		EdgeKind:   []int32{0, 1},
	}
	// Permutation 0->2, 1->0, 2->1.
	gPerm := tensor.GraphData{
		Features: []float32{
			0.3, 0.9, 0.4, 0.6,
			0.7, 0.1, 0.5, 0.3,
			0.5, 0.2, 0.8, 0.1,
		},
		FeatureDim: 4,
		EdgeSrc:    []int32{2, 0},
		EdgeDst:    []int32{0, 1},
		EdgeKind:   []int32{0, 1},
	}

	embed := func(gd tensor.GraphData) []float32 {
		b, err := tensor.NewBatch(3, gd)
		if err != nil {
			t.Fatalf("NewBatch failed: %v", err)
		}
		tp := tensor.NewTape()
		z := enc.Embed(NewBinding(tp), b, ForwardOpts{})
		return append([]float32(nil), z.T.Row(0)...)
	}

	za, zb := embed(g), embed(gPerm)
	var dot float64
	for i := range za {
		dot += float64(za[i]) * float64(zb[i])
	}
	if dot < 0.999 {
		t.Errorf("isomorphic graphs embed with cosine %v, want > 0.999", dot)
	}
}
