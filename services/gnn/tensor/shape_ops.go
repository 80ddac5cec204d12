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
	"fmt"
	"math"
	"math/rand"
)

// =============================================================================
// Shape and indexing ops
// =============================================================================

// Concat joins values column-wise: [r,c1] ‖ [r,c2] ‖ ... -> [r, Σci].
// All operands must have the same row count.
func (tp *Tape) Concat(vs ...*Value) *Value {
	if len(vs) == 0 {
		panic("tensor: concat of zero values")
	}
	rows := vs[0].T.rows
	cols := 0
	needs := false
	for _, v := range vs {
		if v.T.rows != rows {
			panic(fmt.Sprintf("tensor: concat row mismatch %d vs %d", v.T.rows, rows))
		}
		cols += v.T.cols
		needs = needs || v.needsGrad
	}

	res := New(rows, cols)
	for i := 0; i < rows; i++ {
		oRow := res.Row(i)
		off := 0
		for _, v := range vs {
			copy(oRow[off:], v.T.Row(i))
			off += v.T.cols
		}
	}

	return tp.output(res, needs, func(out *Value) {
		g := out.Grad()
		for i := 0; i < rows; i++ {
			gRow := g.Row(i)
			off := 0
			for _, v := range vs {
				if v.needsGrad {
					vg := v.Grad().Row(i)
					for j := range vg {
						vg[j] += gRow[off+j]
					}
				}
				off += v.T.cols
			}
		}
	})
}

// Transpose computes a^T.
func (tp *Tape) Transpose(a *Value) *Value {
	res := New(a.T.cols, a.T.rows)
	for i := 0; i < a.T.rows; i++ {
		aRow := a.T.Row(i)
		for j, v := range aRow {
			res.data[j*res.cols+i] = v
		}
	}
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad()
		ag := a.Grad()
		for i := 0; i < g.rows; i++ {
			gRow := g.Row(i)
			for j, v := range gRow {
				ag.data[j*ag.cols+i] += v
			}
		}
	})
}

// RowGather selects rows of a by index: out[i] = a[idx[i]]. Indices may
// repeat; the backward pass scatter-adds in index order, so repeated
// sources accumulate deterministically.
func (tp *Tape) RowGather(a *Value, idx []int32) *Value {
	res := New(len(idx), a.T.cols)
	for i, id := range idx {
		if id < 0 || int(id) >= a.T.rows {
			panic(fmt.Sprintf("tensor: gather index %d out of range [0,%d)", id, a.T.rows))
		}
		copy(res.Row(i), a.T.Row(int(id)))
	}
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad()
		ag := a.Grad()
		for i, id := range idx {
			gRow := g.Row(i)
			agRow := ag.Row(int(id))
			for j, v := range gRow {
				agRow[j] += v
			}
		}
	})
}

// RowScatterAdd sums rows of a into a rows-tall zero matrix:
// out[idx[i]] += a[i]. This is the message-passing aggregation
// primitive; RowGather and RowScatterAdd are adjoint.
func (tp *Tape) RowScatterAdd(a *Value, idx []int32, rows int) *Value {
	if len(idx) != a.T.rows {
		panic(fmt.Sprintf("tensor: scatter index count %d does not match %d rows", len(idx), a.T.rows))
	}
	res := New(rows, a.T.cols)
	for i, id := range idx {
		if id < 0 || int(id) >= rows {
			panic(fmt.Sprintf("tensor: scatter index %d out of range [0,%d)", id, rows))
		}
		oRow := res.Row(int(id))
		aRow := a.T.Row(i)
		for j, v := range aRow {
			oRow[j] += v
		}
	}
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad()
		ag := a.Grad()
		for i, id := range idx {
			gRow := g.Row(int(id))
			agRow := ag.Row(i)
			for j, v := range gRow {
				agRow[j] += v
			}
		}
	})
}

// ScaleRows multiplies each row of a by the matching entry of the
// r x 1 column vector s: out[i][j] = a[i][j] * s[i][0]. The gradient
// into s accumulates each row's dot product in float64.
func (tp *Tape) ScaleRows(a, s *Value) *Value {
	if s.T.rows != a.T.rows || s.T.cols != 1 {
		panic(fmt.Sprintf("tensor: scalerows wants %dx1 scales, got %dx%d", a.T.rows, s.T.rows, s.T.cols))
	}
	res := New(a.T.rows, a.T.cols)
	for i := 0; i < a.T.rows; i++ {
		sv := s.T.data[i]
		aRow := a.T.Row(i)
		oRow := res.Row(i)
		for j, v := range aRow {
			oRow[j] = v * sv
		}
	}
	return tp.output(res, a.needsGrad || s.needsGrad, func(out *Value) {
		g := out.Grad()
		if a.needsGrad {
			ag := a.Grad()
			for i := 0; i < ag.rows; i++ {
				sv := s.T.data[i]
				gRow := g.Row(i)
				agRow := ag.Row(i)
				for j, v := range gRow {
					agRow[j] += v * sv
				}
			}
		}
		if s.needsGrad {
			sg := s.Grad()
			for i := 0; i < a.T.rows; i++ {
				gRow := g.Row(i)
				aRow := a.T.Row(i)
				var dot float64
				for j := range gRow {
					dot += float64(gRow[j]) * float64(aRow[j])
				}
				sg.data[i] += float32(dot)
			}
		}
	})
}

// SegmentSoftmax normalizes the r x 1 score column within segments:
// out[i] = exp(s[i]) / Σ_{j: seg[j]==seg[i]} exp(s[j]), max-shifted per
// segment. Segments need not be contiguous. Entries of empty segments
// do not exist by construction; every row belongs to exactly one
// segment in [0, nSeg).
func (tp *Tape) SegmentSoftmax(a *Value, seg []int32, nSeg int) *Value {
	if a.T.cols != 1 {
		panic(fmt.Sprintf("tensor: segment softmax wants a column vector, got %dx%d", a.T.rows, a.T.cols))
	}
	if len(seg) != a.T.rows {
		panic(fmt.Sprintf("tensor: segment count %d does not match %d rows", len(seg), a.T.rows))
	}

	maxes := make([]float64, nSeg)
	for i := range maxes {
		maxes[i] = math.Inf(-1)
	}
	for i, s := range seg {
		if s < 0 || int(s) >= nSeg {
			panic(fmt.Sprintf("tensor: segment id %d out of range [0,%d)", s, nSeg))
		}
		if v := float64(a.T.data[i]); v > maxes[s] {
			maxes[s] = v
		}
	}

	res := New(a.T.rows, 1)
	denoms := make([]float64, nSeg)
	for i, s := range seg {
		e := math.Exp(float64(a.T.data[i]) - maxes[s])
		res.data[i] = float32(e)
		denoms[s] += e
	}
	for i, s := range seg {
		res.data[i] = float32(float64(res.data[i]) / denoms[s])
	}

	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad()
		ag := a.Grad()
		dots := make([]float64, nSeg)
		for i, s := range seg {
			dots[s] += float64(g.data[i]) * float64(res.data[i])
		}
		for i, s := range seg {
			ag.data[i] += res.data[i] * (g.data[i] - float32(dots[s]))
		}
	})
}

// StackRows joins values row-wise: [r1,c] over [r2,c] ... -> [Σri, c].
// All operands must share a column count.
func (tp *Tape) StackRows(vs ...*Value) *Value {
	if len(vs) == 0 {
		panic("tensor: stack of zero values")
	}
	cols := vs[0].T.cols
	rows := 0
	needs := false
	for _, v := range vs {
		if v.T.cols != cols {
			panic(fmt.Sprintf("tensor: stack column mismatch %d vs %d", v.T.cols, cols))
		}
		rows += v.T.rows
		needs = needs || v.needsGrad
	}

	res := New(rows, cols)
	off := 0
	for _, v := range vs {
		copy(res.data[off:], v.T.data)
		off += v.T.Len()
	}

	return tp.output(res, needs, func(out *Value) {
		g := out.Grad()
		off := 0
		for _, v := range vs {
			if v.needsGrad {
				vg := v.Grad()
				for i := range vg.data {
					vg.data[i] += g.data[off+i]
				}
			}
			off += v.T.Len()
		}
	})
}

// normalizeEps leaves all-zero rows untouched instead of dividing by a
// vanishing norm.
const normalizeEps = 1e-12

// NormalizeRows scales each row to unit L2 norm. Rows with norm below
// normalizeEps pass through unchanged with zero gradient.
func (tp *Tape) NormalizeRows(a *Value) *Value {
	res := New(a.T.rows, a.T.cols)
	invNorm := make([]float64, a.T.rows)
	for i := 0; i < a.T.rows; i++ {
		aRow := a.T.Row(i)
		var sum float64
		for _, v := range aRow {
			sum += float64(v) * float64(v)
		}
		norm := math.Sqrt(sum)
		if norm < normalizeEps {
			copy(res.Row(i), aRow)
			continue
		}
		invNorm[i] = 1 / norm
		oRow := res.Row(i)
		for j, v := range aRow {
			oRow[j] = float32(float64(v) * invNorm[i])
		}
	}
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad()
		ag := a.Grad()
		for i := 0; i < res.rows; i++ {
			if invNorm[i] == 0 {
				continue
			}
			gRow := g.Row(i)
			oRow := res.Row(i)
			agRow := ag.Row(i)
			var dot float64
			for j := range gRow {
				dot += float64(gRow[j]) * float64(oRow[j])
			}
			// d(x/||x||) = (dOut - y*(dOut·y)) / ||x||
			for j := range gRow {
				agRow[j] += float32((float64(gRow[j]) - dot*float64(oRow[j])) * invNorm[i])
			}
		}
	})
}

// Dropout zeroes each element with probability rate and scales the
// survivors by 1/(1-rate) (inverted dropout), using the caller's seeded
// source. rate 0 is the identity. Panics for rate outside [0, 1).
func (tp *Tape) Dropout(a *Value, rate float32, rng *rand.Rand) *Value {
	if rate < 0 || rate >= 1 {
		panic(fmt.Sprintf("tensor: dropout rate %v outside [0,1)", rate))
	}
	if rate == 0 {
		return a
	}

	keepInv := 1 / (1 - rate)
	mask := make([]float32, a.T.Len())
	res := New(a.T.rows, a.T.cols)
	for i := range mask {
		if rng.Float32() >= rate {
			mask[i] = keepInv
			res.data[i] = a.T.data[i] * keepInv
		}
	}
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad()
		ag := a.Grad()
		for i := range ag.data {
			ag.data[i] += g.data[i] * mask[i]
		}
	})
}
