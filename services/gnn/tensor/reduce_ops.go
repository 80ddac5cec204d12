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

// =============================================================================
// Reductions
// =============================================================================
//
// Row reductions collapse [r,c] down the rows to [1,c] (the graph
// readout direction); SumCols collapses across columns to [r,1] (the
// per-row distance direction). All sums accumulate in float64.

// SumRows sums across rows: out[0][j] = Σi a[i][j].
func (tp *Tape) SumRows(a *Value) *Value {
	res := New(1, a.T.cols)
	colSumsInto(res.Row(0), a.T, 1)
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad().Row(0)
		ag := a.Grad()
		for i := 0; i < ag.rows; i++ {
			agRow := ag.Row(i)
			for j, v := range g {
				agRow[j] += v
			}
		}
	})
}

// MeanRows averages across rows: out[0][j] = (1/r) Σi a[i][j].
// Panics on an empty tensor; callers batch at least one node per graph.
func (tp *Tape) MeanRows(a *Value) *Value {
	if a.T.rows == 0 {
		panic("tensor: meanrows of empty tensor")
	}
	res := New(1, a.T.cols)
	colSumsInto(res.Row(0), a.T, 1/float64(a.T.rows))
	inv := float32(1 / float64(a.T.rows))
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad().Row(0)
		ag := a.Grad()
		for i := 0; i < ag.rows; i++ {
			agRow := ag.Row(i)
			for j, v := range g {
				agRow[j] += v * inv
			}
		}
	})
}

// MaxRows takes the column-wise maximum across rows. Gradient flows to
// the first row attaining each maximum, so ties stay deterministic.
func (tp *Tape) MaxRows(a *Value) *Value {
	if a.T.rows == 0 {
		panic("tensor: maxrows of empty tensor")
	}
	res := New(1, a.T.cols)
	argmax := make([]int, a.T.cols)
	copy(res.Row(0), a.T.Row(0))
	for i := 1; i < a.T.rows; i++ {
		aRow := a.T.Row(i)
		oRow := res.Row(0)
		for j, v := range aRow {
			if v > oRow[j] {
				oRow[j] = v
				argmax[j] = i
			}
		}
	}
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad().Row(0)
		ag := a.Grad()
		for j, v := range g {
			ag.data[argmax[j]*ag.cols+j] += v
		}
	})
}

// SumCols sums each row: out[i][0] = Σj a[i][j].
func (tp *Tape) SumCols(a *Value) *Value {
	res := New(a.T.rows, 1)
	for i := 0; i < a.T.rows; i++ {
		var sum float64
		for _, v := range a.T.Row(i) {
			sum += float64(v)
		}
		res.data[i] = float32(sum)
	}
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad()
		ag := a.Grad()
		for i := 0; i < ag.rows; i++ {
			gi := g.data[i]
			agRow := ag.Row(i)
			for j := range agRow {
				agRow[j] += gi
			}
		}
	})
}

// SumAll sums every element into a 1x1 scalar.
func (tp *Tape) SumAll(a *Value) *Value {
	res := New(1, 1)
	var sum float64
	for _, v := range a.T.data {
		sum += float64(v)
	}
	res.data[0] = float32(sum)
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad().data[0]
		ag := a.Grad()
		for i := range ag.data {
			ag.data[i] += g
		}
	})
}

// MeanAll averages every element into a 1x1 scalar.
func (tp *Tape) MeanAll(a *Value) *Value {
	if a.T.Len() == 0 {
		panic("tensor: meanall of empty tensor")
	}
	res := New(1, 1)
	var sum float64
	for _, v := range a.T.data {
		sum += float64(v)
	}
	inv := 1 / float64(a.T.Len())
	res.data[0] = float32(sum * inv)
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := float64(out.Grad().data[0]) * inv
		ag := a.Grad()
		for i := range ag.data {
			ag.data[i] += float32(g)
		}
	})
}

// colSumsInto writes scale * column sums of t into dst (length cols),
// accumulating each column in float64.
func colSumsInto(dst []float32, t *Tensor, scale float64) {
	sums := make([]float64, t.cols)
	for i := 0; i < t.rows; i++ {
		row := t.Row(i)
		for j, v := range row {
			sums[j] += float64(v)
		}
	}
	for j, s := range sums {
		dst[j] = float32(s * scale)
	}
}
