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
	"math"
	"testing"
)

func TestSchedulers_EpochZeroIsBase(t *testing.T) {
	for _, kind := range []string{SchedulerConstant, SchedulerStep, SchedulerExponential, SchedulerCosine} {
		s, err := NewScheduler(kind, 100)
		if err != nil {
			t.Fatalf("NewScheduler(%s) failed: %v", kind, err)
		}
		if got := s.LR(0, 0.01); got != 0.01 {
			t.Errorf("%s LR(0) = %v, want base 0.01", kind, got)
		}
	}
}

func TestStepDecay(t *testing.T) {
	s := &StepDecay{Size: 10, Gamma: 0.95}

	if got := s.LR(9, 1); got != 1 {
		t.Errorf("LR(9) = %v, want 1 before the first step", got)
	}
	if got := s.LR(10, 1); math.Abs(float64(got)-0.95) > 1e-6 {
		t.Errorf("LR(10) = %v, want 0.95", got)
	}
	if got := s.LR(20, 1); math.Abs(float64(got)-0.9025) > 1e-6 {
		t.Errorf("LR(20) = %v, want 0.9025", got)
	}
}

func TestExponentialDecay(t *testing.T) {
	s := &ExponentialDecay{Gamma: 0.9}

	if got := s.LR(1, 1); math.Abs(float64(got)-0.9) > 1e-6 {
		t.Errorf("LR(1) = %v, want 0.9", got)
	}
	if got := s.LR(3, 1); math.Abs(float64(got)-0.729) > 1e-6 {
		t.Errorf("LR(3) = %v, want 0.729", got)
	}
}

func TestCosineAnnealing(t *testing.T) {
	s := &CosineAnnealing{TotalEpochs: 100, MinLR: 0.001}

	if got := s.LR(50, 0.1); math.Abs(float64(got)-0.0505) > 1e-5 {
		t.Errorf("LR(midpoint) = %v, want 0.0505", got)
	}
	if got := s.LR(100, 0.1); got != 0.001 {
		t.Errorf("LR(total) = %v, want MinLR", got)
	}
	if got := s.LR(500, 0.1); got != 0.001 {
		t.Errorf("LR(past total) = %v, want MinLR", got)
	}
}

func TestNewScheduler_Validation(t *testing.T) {
	if _, err := NewScheduler("warmup", 10); err == nil {
		t.Error("expected error for unknown scheduler")
	}
	if _, err := NewScheduler(SchedulerCosine, 0); err == nil {
		t.Error("expected error for cosine without an epoch budget")
	}
}
