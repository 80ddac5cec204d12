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
)

// XavierUniform returns a rows x cols tensor drawn from
// U(-limit, limit) with limit = sqrt(6 / (fanIn + fanOut)).
//
// Weights are used as x @ W with x [n, fanIn], so rows is the fan-in
// and cols the fan-out. The caller owns the seed; the same source
// state always yields the same tensor.
func XavierUniform(rng *rand.Rand, rows, cols int) *Tensor {
	t := New(rows, cols)
	limit := float32(math.Sqrt(6 / float64(rows+cols)))
	for i := range t.data {
		t.data[i] = (2*rng.Float32() - 1) * limit
	}
	return t
}

// Ones returns a rows x cols tensor of ones (layer-norm gain init).
func Ones(rows, cols int) *Tensor {
	t := New(rows, cols)
	t.Fill(1)
	return t
}
