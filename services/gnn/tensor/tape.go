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
)

// =============================================================================
// Autodiff tape
// =============================================================================

// Value is a tensor tracked by a Tape.
//
// # Description
//
// Forward math reads Value.T; Backward accumulates into the gradient
// tensor. Leaves enter the tape through Param (gradient tracked) or
// Input (constant, no gradient); every op output tracks gradients iff
// at least one operand does, so constant subgraphs cost nothing on the
// backward pass.
type Value struct {
	// T holds the forward result.
	T *Tensor

	grad      *Tensor
	needsGrad bool
}

// Grad returns the accumulated gradient, allocating a zeroed tensor on
// first use. Returns nil for values that do not track gradients.
func (v *Value) Grad() *Tensor {
	if !v.needsGrad {
		return nil
	}
	if v.grad == nil {
		v.grad = New(v.T.rows, v.T.cols)
	}
	return v.grad
}

// Tape records forward operations and replays their backward rules in
// reverse. One tape serves one forward/backward pass; tapes are cheap,
// allocate a fresh one per batch. A Tape is not safe for concurrent use.
type Tape struct {
	steps []func()
}

// NewTape returns an empty tape.
func NewTape() *Tape {
	return &Tape{}
}

// Param registers a leaf whose gradient will be accumulated. The tensor
// is shared, not copied; the optimizer reads the gradient through the
// returned Value after Backward.
func (tp *Tape) Param(t *Tensor) *Value {
	return &Value{T: t, needsGrad: true}
}

// Input registers a constant leaf. No gradient flows into it.
func (tp *Tape) Input(t *Tensor) *Value {
	return &Value{T: t}
}

// output builds the op result and records its backward closure. The
// closure receives the output value so it can read the incoming
// gradient. It is recorded only when some operand tracks gradients.
func (tp *Tape) output(t *Tensor, needsGrad bool, back func(out *Value)) *Value {
	v := &Value{T: t, needsGrad: needsGrad}
	if needsGrad {
		tp.steps = append(tp.steps, func() { back(v) })
	}
	return v
}

// Backward seeds the scalar loss gradient with 1 and replays all
// recorded backward rules in reverse order. Because ops are recorded in
// execution order, the reversal is a valid reverse topological order.
//
// Returns an error if loss is not a gradient-tracking 1x1 value.
func (tp *Tape) Backward(loss *Value) error {
	if loss.T.rows != 1 || loss.T.cols != 1 {
		return fmt.Errorf("backward: loss must be 1x1, got %dx%d", loss.T.rows, loss.T.cols)
	}
	if !loss.needsGrad {
		return fmt.Errorf("backward: loss does not depend on any parameter")
	}
	loss.Grad().data[0] = 1
	tp.replay()
	return nil
}

// BackwardFrom seeds v's gradient with an externally computed tensor
// and replays the tape. This is the data-parallel entry point: a loss
// computed on a separate tape over several tapes' outputs hands each
// tape the gradient of its own output here.
func (tp *Tape) BackwardFrom(v *Value, seed *Tensor) error {
	if v == nil || seed == nil {
		return fmt.Errorf("backward from: value and seed must not be nil")
	}
	if !v.needsGrad {
		return fmt.Errorf("backward from: value does not depend on any parameter")
	}
	if v.T.rows != seed.rows || v.T.cols != seed.cols {
		return fmt.Errorf("backward from: seed is %dx%d, value is %dx%d",
			seed.rows, seed.cols, v.T.rows, v.T.cols)
	}
	copy(v.Grad().data, seed.data)
	tp.replay()
	return nil
}

func (tp *Tape) replay() {
	for i := len(tp.steps) - 1; i >= 0; i-- {
		tp.steps[i]()
	}
}

// =============================================================================
// Arithmetic
// =============================================================================

// MatMul computes a @ b.
func (tp *Tape) MatMul(a, b *Value) *Value {
	res := matMul(a.T, b.T, false, false)
	return tp.output(res, a.needsGrad || b.needsGrad, func(out *Value) {
		g := out.Grad()
		if a.needsGrad {
			matMulInto(a.Grad(), g, b.T, false, true, true)
		}
		if b.needsGrad {
			matMulInto(b.Grad(), a.T, g, true, false, true)
		}
	})
}

// Add computes a + b. b may either match a's shape or be a 1 x cols row
// vector, which is broadcast across a's rows (the bias case). Broadcast
// gradients are column sums accumulated in float64.
func (tp *Tape) Add(a, b *Value) *Value {
	return tp.addSub(a, b, 1)
}

// Sub computes a - b with the same broadcast rule as Add.
func (tp *Tape) Sub(a, b *Value) *Value {
	return tp.addSub(a, b, -1)
}

func (tp *Tape) addSub(a, b *Value, sign float32) *Value {
	broadcast := b.T.rows == 1 && a.T.rows != 1 && b.T.cols == a.T.cols
	if !broadcast {
		sameShape("add", a.T, b.T)
	}

	res := New(a.T.rows, a.T.cols)
	for i := 0; i < a.T.rows; i++ {
		bRow := b.T.Row(0)
		if !broadcast {
			bRow = b.T.Row(i)
		}
		aRow := a.T.Row(i)
		oRow := res.Row(i)
		for j := range oRow {
			oRow[j] = aRow[j] + sign*bRow[j]
		}
	}

	return tp.output(res, a.needsGrad || b.needsGrad, func(out *Value) {
		g := out.Grad()
		if a.needsGrad {
			ag := a.Grad()
			for i := range ag.data {
				ag.data[i] += g.data[i]
			}
		}
		if b.needsGrad {
			bg := b.Grad()
			if broadcast {
				for j := 0; j < g.cols; j++ {
					var sum float64
					for i := 0; i < g.rows; i++ {
						sum += float64(g.data[i*g.cols+j])
					}
					bg.data[j] += sign * float32(sum)
				}
			} else {
				for i := range bg.data {
					bg.data[i] += sign * g.data[i]
				}
			}
		}
	})
}

// Mul computes the elementwise (Hadamard) product. Shapes must match.
func (tp *Tape) Mul(a, b *Value) *Value {
	sameShape("mul", a.T, b.T)
	res := New(a.T.rows, a.T.cols)
	for i := range res.data {
		res.data[i] = a.T.data[i] * b.T.data[i]
	}

	return tp.output(res, a.needsGrad || b.needsGrad, func(out *Value) {
		g := out.Grad()
		if a.needsGrad {
			ag := a.Grad()
			for i := range ag.data {
				ag.data[i] += g.data[i] * b.T.data[i]
			}
		}
		if b.needsGrad {
			bg := b.Grad()
			for i := range bg.data {
				bg.data[i] += g.data[i] * a.T.data[i]
			}
		}
	})
}

// Scale computes s * a for a scalar constant s.
func (tp *Tape) Scale(a *Value, s float32) *Value {
	res := New(a.T.rows, a.T.cols)
	for i := range res.data {
		res.data[i] = s * a.T.data[i]
	}
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad()
		ag := a.Grad()
		for i := range ag.data {
			ag.data[i] += s * g.data[i]
		}
	})
}

// =============================================================================
// Activations
// =============================================================================

// ReLU computes max(0, x) elementwise.
func (tp *Tape) ReLU(a *Value) *Value {
	res := New(a.T.rows, a.T.cols)
	for i, x := range a.T.data {
		if x > 0 {
			res.data[i] = x
		}
	}
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad()
		ag := a.Grad()
		for i := range ag.data {
			if res.data[i] > 0 {
				ag.data[i] += g.data[i]
			}
		}
	})
}

// LeakyReLU computes x for x > 0, slope*x otherwise.
func (tp *Tape) LeakyReLU(a *Value, slope float32) *Value {
	res := New(a.T.rows, a.T.cols)
	for i, x := range a.T.data {
		if x > 0 {
			res.data[i] = x
		} else {
			res.data[i] = slope * x
		}
	}
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad()
		ag := a.Grad()
		for i := range ag.data {
			if a.T.data[i] > 0 {
				ag.data[i] += g.data[i]
			} else {
				ag.data[i] += slope * g.data[i]
			}
		}
	})
}

// ELU computes x for x > 0, alpha*(e^x - 1) otherwise.
func (tp *Tape) ELU(a *Value, alpha float32) *Value {
	res := New(a.T.rows, a.T.cols)
	for i, x := range a.T.data {
		if x > 0 {
			res.data[i] = x
		} else {
			res.data[i] = alpha * float32(math.Expm1(float64(x)))
		}
	}
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad()
		ag := a.Grad()
		for i := range ag.data {
			if a.T.data[i] > 0 {
				ag.data[i] += g.data[i]
			} else {
				// d/dx alpha*(e^x - 1) = alpha*e^x = res + alpha
				ag.data[i] += g.data[i] * (res.data[i] + alpha)
			}
		}
	})
}

// Sigmoid computes 1 / (1 + e^-x) elementwise.
func (tp *Tape) Sigmoid(a *Value) *Value {
	res := New(a.T.rows, a.T.cols)
	for i, x := range a.T.data {
		res.data[i] = float32(1 / (1 + math.Exp(-float64(x))))
	}
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad()
		ag := a.Grad()
		for i := range ag.data {
			s := res.data[i]
			ag.data[i] += g.data[i] * s * (1 - s)
		}
	})
}

// Tanh computes tanh(x) elementwise.
func (tp *Tape) Tanh(a *Value) *Value {
	res := New(a.T.rows, a.T.cols)
	for i, x := range a.T.data {
		res.data[i] = float32(math.Tanh(float64(x)))
	}
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad()
		ag := a.Grad()
		for i := range ag.data {
			th := res.data[i]
			ag.data[i] += g.data[i] * (1 - th*th)
		}
	})
}

// =============================================================================
// Row-wise normalizers
// =============================================================================

// Softmax computes a row-wise softmax. Each row is shifted by its max
// before exponentiation; the denominator accumulates in float64.
func (tp *Tape) Softmax(a *Value) *Value {
	res := New(a.T.rows, a.T.cols)
	for i := 0; i < a.T.rows; i++ {
		softmaxRow(res.Row(i), a.T.Row(i))
	}
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad()
		ag := a.Grad()
		for i := 0; i < res.rows; i++ {
			oRow := res.Row(i)
			gRow := g.Row(i)
			agRow := ag.Row(i)
			var dot float64
			for j := range oRow {
				dot += float64(gRow[j]) * float64(oRow[j])
			}
			for j := range oRow {
				agRow[j] += oRow[j] * (gRow[j] - float32(dot))
			}
		}
	})
}

// LogSoftmax computes a row-wise log softmax. Numerically stable form
// of log(softmax(x)); backward is dX = dOut - softmax * sum(dOut).
func (tp *Tape) LogSoftmax(a *Value) *Value {
	res := New(a.T.rows, a.T.cols)
	soft := New(a.T.rows, a.T.cols)
	for i := 0; i < a.T.rows; i++ {
		sRow := soft.Row(i)
		softmaxRow(sRow, a.T.Row(i))
		oRow := res.Row(i)
		for j, s := range sRow {
			oRow[j] = float32(math.Log(float64(s)))
		}
	}
	return tp.output(res, a.needsGrad, func(out *Value) {
		g := out.Grad()
		ag := a.Grad()
		for i := 0; i < res.rows; i++ {
			gRow := g.Row(i)
			sRow := soft.Row(i)
			agRow := ag.Row(i)
			var sum float64
			for j := range gRow {
				sum += float64(gRow[j])
			}
			for j := range gRow {
				agRow[j] += gRow[j] - sRow[j]*float32(sum)
			}
		}
	})
}

// softmaxRow writes softmax(src) into dst with max-shift and float64
// denominator accumulation.
func softmaxRow(dst, src []float32) {
	maxV := src[0]
	for _, v := range src[1:] {
		if v > maxV {
			maxV = v
		}
	}
	var denom float64
	for j, v := range src {
		e := math.Exp(float64(v - maxV))
		dst[j] = float32(e)
		denom += e
	}
	inv := float32(1 / denom)
	for j := range dst {
		dst[j] *= inv
	}
}

// layerNormEps keeps the variance denominator away from zero.
const layerNormEps = 1e-5

// LayerNorm normalizes each row of a to zero mean and unit variance,
// then applies the learned 1 x cols gain and bias.
func (tp *Tape) LayerNorm(a, gain, bias *Value) *Value {
	cols := a.T.cols
	if gain.T.rows != 1 || gain.T.cols != cols || bias.T.rows != 1 || bias.T.cols != cols {
		panic(fmt.Sprintf("tensor: layernorm gain/bias must be 1x%d", cols))
	}

	res := New(a.T.rows, cols)
	normed := New(a.T.rows, cols) // (x - mean) / stddev, kept for backward
	invStd := make([]float64, a.T.rows)

	for i := 0; i < a.T.rows; i++ {
		aRow := a.T.Row(i)
		var mean float64
		for _, v := range aRow {
			mean += float64(v)
		}
		mean /= float64(cols)

		var variance float64
		for _, v := range aRow {
			d := float64(v) - mean
			variance += d * d
		}
		variance /= float64(cols)
		inv := 1 / math.Sqrt(variance+layerNormEps)
		invStd[i] = inv

		nRow := normed.Row(i)
		oRow := res.Row(i)
		gRow := gain.T.Row(0)
		bRow := bias.T.Row(0)
		for j, v := range aRow {
			n := float32((float64(v) - mean) * inv)
			nRow[j] = n
			oRow[j] = gRow[j]*n + bRow[j]
		}
	}

	needs := a.needsGrad || gain.needsGrad || bias.needsGrad
	return tp.output(res, needs, func(out *Value) {
		g := out.Grad()
		for i := 0; i < res.rows; i++ {
			gRow := g.Row(i)
			nRow := normed.Row(i)
			gainRow := gain.T.Row(0)

			if gain.needsGrad {
				gg := gain.Grad().Row(0)
				for j := range gRow {
					gg[j] += gRow[j] * nRow[j]
				}
			}
			if bias.needsGrad {
				bg := bias.Grad().Row(0)
				for j := range gRow {
					bg[j] += gRow[j]
				}
			}
			if a.needsGrad {
				// Gradient wrt the normalized row, then the standard
				// per-row layernorm backward in float64.
				var sumG, sumGN float64
				for j := range gRow {
					h := float64(gRow[j]) * float64(gainRow[j])
					sumG += h
					sumGN += h * float64(nRow[j])
				}
				n := float64(res.cols)
				agRow := a.Grad().Row(i)
				for j := range gRow {
					h := float64(gRow[j]) * float64(gainRow[j])
					agRow[j] += float32(invStd[i] * (h - sumG/n - float64(nRow[j])*sumGN/n))
				}
			}
		}
	})
}
