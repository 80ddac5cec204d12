// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tensor

import (
	"math"
	"math/rand"
	"testing"
)

func TestTensor_Basics(t *testing.T) {
	m := New(2, 3)
	if m.Rows() != 2 || m.Cols() != 3 || m.Len() != 6 {
		t.Fatalf("shape = %dx%d len %d, want 2x3 len 6", m.Rows(), m.Cols(), m.Len())
	}

	m.Set(1, 2, 7)
	if got := m.At(1, 2); got != 7 {
		t.Errorf("At(1,2) = %v, want 7", got)
	}
	if got := m.Row(1)[2]; got != 7 {
		t.Errorf("Row(1)[2] = %v, want 7", got)
	}

	c := m.Clone()
	c.Set(0, 0, 5)
	if m.At(0, 0) != 0 {
		t.Error("Clone shares backing data with original")
	}

	m.Fill(3)
	for i, v := range m.Data() {
		if v != 3 {
			t.Fatalf("Fill: element %d = %v, want 3", i, v)
		}
	}
	m.Zero()
	for i, v := range m.Data() {
		if v != 0 {
			t.Fatalf("Zero: element %d = %v, want 0", i, v)
		}
	}
}

func TestFromSlice_LengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("FromSlice with wrong length did not panic")
		}
	}()
	FromSlice(2, 3, make([]float32, 5))
}

func TestMatMul_Known(t *testing.T) {
	a := FromSlice(2, 3, []float32{1, 2, 3, 4, 5, 6})
	b := FromSlice(3, 2, []float32{7, 8, 9, 10, 11, 12})

	got := matMul(a, b, false, false)
	want := []float32{58, 64, 139, 154}
	for i, v := range want {
		if got.Data()[i] != v {
			t.Errorf("matmul element %d = %v, want %v", i, got.Data()[i], v)
		}
	}
}

func TestMatMul_Transposed(t *testing.T) {
	a := FromSlice(2, 3, []float32{1, 2, 3, 4, 5, 6})

	// a @ a^T is symmetric with known diagonal.
	got := matMul(a, a, false, true)
	if got.Rows() != 2 || got.Cols() != 2 {
		t.Fatalf("a @ a^T shape = %dx%d, want 2x2", got.Rows(), got.Cols())
	}
	if got.At(0, 0) != 14 || got.At(1, 1) != 77 {
		t.Errorf("diagonal = %v, %v, want 14, 77", got.At(0, 0), got.At(1, 1))
	}
	if got.At(0, 1) != got.At(1, 0) {
		t.Errorf("a @ a^T not symmetric: %v vs %v", got.At(0, 1), got.At(1, 0))
	}

	// a^T @ a is 3x3.
	gotT := matMul(a, a, true, false)
	if gotT.Rows() != 3 || gotT.Cols() != 3 {
		t.Fatalf("a^T @ a shape = %dx%d, want 3x3", gotT.Rows(), gotT.Cols())
	}
	if gotT.At(0, 0) != 17 {
		t.Errorf("a^T @ a [0][0] = %v, want 17", gotT.At(0, 0))
	}
}

func TestMatMul_ShapeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("mismatched matmul did not panic")
		}
	}()
	matMul(New(2, 3), New(4, 2), false, false)
}

func TestXavierUniform_DeterministicAndBounded(t *testing.T) {
	a := XavierUniform(rand.New(rand.NewSource(42)), 8, 16)
	b := XavierUniform(rand.New(rand.NewSource(42)), 8, 16)

	limit := float32(math.Sqrt(6.0 / 24.0))
	nonZero := 0
	for i := range a.Data() {
		if a.Data()[i] != b.Data()[i] {
			t.Fatalf("same seed produced different weights at %d", i)
		}
		if v := a.Data()[i]; v < -limit || v > limit {
			t.Fatalf("weight %v outside [-%v, %v]", v, limit, limit)
		}
		if a.Data()[i] != 0 {
			nonZero++
		}
	}
	if nonZero == 0 {
		t.Error("all weights are zero")
	}

	c := XavierUniform(rand.New(rand.NewSource(43)), 8, 16)
	same := true
	for i := range a.Data() {
		if a.Data()[i] != c.Data()[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical weights")
	}
}

func TestOnes(t *testing.T) {
	m := Ones(1, 4)
	for i, v := range m.Data() {
		if v != 1 {
			t.Fatalf("element %d = %v, want 1", i, v)
		}
	}
}
