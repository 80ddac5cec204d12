// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tensor implements the dense math underneath the graph network:
// a row-major float32 matrix type, a reverse-mode autodiff tape, ragged
// graph batching, and seeded weight initialization.
//
// Two conventions hold everywhere in this package:
//
//   - Storage is float32, accumulation is float64. Reductions (matmul
//     inner products, softmax denominators, norms, means) sum in float64
//     and round once at the end, so results do not drift with row length.
//   - Everything is deterministic. Iteration is index-ordered, never
//     map-ordered; the only randomness (dropout, init) comes from a
//     caller-seeded *rand.Rand.
//
// Shape mismatches panic. Shapes are static wiring decided by the layer
// configuration, so a mismatch is a programming error, not an input
// error, and panicking at the call site beats propagating a corrupted
// gradient.
package tensor

import "fmt"

// Tensor is a dense row-major float32 matrix.
//
// A Tensor is not safe for concurrent mutation. Concurrent reads are
// fine; the training loop gives each goroutine its own tensors.
type Tensor struct {
	rows int
	cols int
	data []float32
}

// New returns a zeroed rows x cols tensor.
func New(rows, cols int) *Tensor {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("tensor: negative shape %dx%d", rows, cols))
	}
	return &Tensor{rows: rows, cols: cols, data: make([]float32, rows*cols)}
}

// FromSlice wraps an existing row-major slice as a rows x cols tensor.
// The tensor takes ownership of data; it is not copied.
func FromSlice(rows, cols int, data []float32) *Tensor {
	if len(data) != rows*cols {
		panic(fmt.Sprintf("tensor: data length %d does not match shape %dx%d", len(data), rows, cols))
	}
	return &Tensor{rows: rows, cols: cols, data: data}
}

// Rows returns the row count.
func (t *Tensor) Rows() int { return t.rows }

// Cols returns the column count.
func (t *Tensor) Cols() int { return t.cols }

// Len returns the total element count.
func (t *Tensor) Len() int { return len(t.data) }

// Data returns the backing slice. Mutating it mutates the tensor.
func (t *Tensor) Data() []float32 { return t.data }

// At returns the element at row r, column c.
func (t *Tensor) At(r, c int) float32 {
	return t.data[r*t.cols+c]
}

// Set stores v at row r, column c.
func (t *Tensor) Set(r, c int, v float32) {
	t.data[r*t.cols+c] = v
}

// Row returns row r as a subslice of the backing data.
func (t *Tensor) Row(r int) []float32 {
	return t.data[r*t.cols : (r+1)*t.cols]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	out := New(t.rows, t.cols)
	copy(out.data, t.data)
	return out
}

// Zero resets every element to 0.
func (t *Tensor) Zero() {
	for i := range t.data {
		t.data[i] = 0
	}
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float32) {
	for i := range t.data {
		t.data[i] = v
	}
}

// sameShape panics unless a and b have identical shapes.
func sameShape(op string, a, b *Tensor) {
	if a.rows != b.rows || a.cols != b.cols {
		panic(fmt.Sprintf("tensor: %s shape mismatch %dx%d vs %dx%d", op, a.rows, a.cols, b.rows, b.cols))
	}
}

// effectiveShape returns the logical shape of t under optional transpose.
func effectiveShape(t *Tensor, trans bool) (rows, cols int) {
	if trans {
		return t.cols, t.rows
	}
	return t.rows, t.cols
}

// matMulInto computes dst (+)= op(a) @ op(b), where op is identity or
// transpose per the flags. When accumulate is false dst is overwritten.
// Inner products accumulate in float64.
//
// dst must be preallocated to the result shape and must not alias a or b.
func matMulInto(dst, a, b *Tensor, transA, transB, accumulate bool) {
	m, k := effectiveShape(a, transA)
	k2, n := effectiveShape(b, transB)
	if k != k2 {
		panic(fmt.Sprintf("tensor: matmul inner dimension mismatch %d vs %d", k, k2))
	}
	if dst.rows != m || dst.cols != n {
		panic(fmt.Sprintf("tensor: matmul dst shape %dx%d, want %dx%d", dst.rows, dst.cols, m, n))
	}

	for i := 0; i < m; i++ {
		dstRow := dst.Row(i)
		for j := 0; j < n; j++ {
			var sum float64
			for p := 0; p < k; p++ {
				var av, bv float32
				if transA {
					av = a.data[p*a.cols+i]
				} else {
					av = a.data[i*a.cols+p]
				}
				if transB {
					bv = b.data[j*b.cols+p]
				} else {
					bv = b.data[p*b.cols+j]
				}
				sum += float64(av) * float64(bv)
			}
			if accumulate {
				dstRow[j] += float32(sum)
			} else {
				dstRow[j] = float32(sum)
			}
		}
	}
}

// matMul allocates and computes op(a) @ op(b).
func matMul(a, b *Tensor, transA, transB bool) *Tensor {
	m, _ := effectiveShape(a, transA)
	_, n := effectiveShape(b, transB)
	dst := New(m, n)
	matMulInto(dst, a, b, transA, transB, false)
	return dst
}
