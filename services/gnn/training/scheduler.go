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
	"math"
)

// =============================================================================
// Learning Rate Schedules
// =============================================================================

// Scheduler kinds selectable by name.
const (
	SchedulerConstant    = "constant"
	SchedulerStep        = "step"
	SchedulerExponential = "exponential"
	SchedulerCosine      = "cosine"
)

// Default schedule shape parameters.
const (
	defaultStepSize  = 10
	defaultStepGamma = 0.95
	defaultExpGamma  = 0.95
)

// Scheduler maps an epoch index to a learning rate derived from the
// base rate. Epoch 0 always returns the base rate.
type Scheduler interface {
	LR(epoch int, base float32) float32
	Name() string
}

// NewScheduler builds a scheduler by kind. An empty kind selects the
// constant schedule. totalEpochs bounds the cosine schedule's period.
func NewScheduler(kind string, totalEpochs int) (Scheduler, error) {
	switch kind {
	case "", SchedulerConstant:
		return constantLR{}, nil
	case SchedulerStep:
		return &StepDecay{Size: defaultStepSize, Gamma: defaultStepGamma}, nil
	case SchedulerExponential:
		return &ExponentialDecay{Gamma: defaultExpGamma}, nil
	case SchedulerCosine:
		if totalEpochs <= 0 {
			return nil, fmt.Errorf("cosine schedule needs a positive epoch budget, got %d", totalEpochs)
		}
		return &CosineAnnealing{TotalEpochs: totalEpochs}, nil
	default:
		return nil, fmt.Errorf("unknown scheduler kind %q", kind)
	}
}

type constantLR struct{}

func (constantLR) Name() string { return SchedulerConstant }

func (constantLR) LR(_ int, base float32) float32 { return base }

// StepDecay multiplies the rate by Gamma every Size epochs.
type StepDecay struct {
	Size  int
	Gamma float32
}

func (s *StepDecay) Name() string { return SchedulerStep }

func (s *StepDecay) LR(epoch int, base float32) float32 {
	if epoch <= 0 || s.Size <= 0 {
		return base
	}
	return base * float32(math.Pow(float64(s.Gamma), float64(epoch/s.Size)))
}

// ExponentialDecay multiplies the rate by Gamma every epoch.
type ExponentialDecay struct {
	Gamma float32
}

func (s *ExponentialDecay) Name() string { return SchedulerExponential }

func (s *ExponentialDecay) LR(epoch int, base float32) float32 {
	if epoch <= 0 {
		return base
	}
	return base * float32(math.Pow(float64(s.Gamma), float64(epoch)))
}

// CosineAnnealing follows half a cosine period from the base rate down
// to MinLR across the epoch budget.
type CosineAnnealing struct {
	TotalEpochs int
	MinLR       float32
}

func (s *CosineAnnealing) Name() string { return SchedulerCosine }

func (s *CosineAnnealing) LR(epoch int, base float32) float32 {
	if epoch <= 0 {
		return base
	}
	if epoch >= s.TotalEpochs {
		return s.MinLR
	}
	progress := float64(epoch) / float64(s.TotalEpochs)
	return s.MinLR + (base-s.MinLR)*float32(0.5*(1+math.Cos(math.Pi*progress)))
}
