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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Training Runs
// =============================================================================

var (
	// trainingBatchesTotal counts processed batches by result.
	// Labels: result (updated, skipped_divergent, skipped_error)
	trainingBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gnn",
		Subsystem: "training",
		Name:      "batches_total",
		Help:      "Total training batches by result",
	}, []string{"result"})

	// trainingEpochsTotal counts completed epochs.
	trainingEpochsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gnn",
		Subsystem: "training",
		Name:      "epochs_total",
		Help:      "Total completed training epochs",
	})

	// trainingRunsTotal counts finished runs by outcome.
	// Labels: outcome (converged, budget_exhausted, cancelled, failed)
	trainingRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gnn",
		Subsystem: "training",
		Name:      "runs_total",
		Help:      "Total training runs by outcome",
	}, []string{"outcome"})

	// trainingLoss tracks the most recent batch loss.
	trainingLoss = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gnn",
		Subsystem: "training",
		Name:      "loss",
		Help:      "Most recent batch loss",
	})

	// trainingLearningRate tracks the current learning rate.
	trainingLearningRate = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gnn",
		Subsystem: "training",
		Name:      "learning_rate",
		Help:      "Current learning rate",
	})

	// trainingGradientNorm observes pre-clip global gradient norms.
	trainingGradientNorm = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gnn",
		Subsystem: "training",
		Name:      "gradient_norm",
		Help:      "Global L2 gradient norm before clipping",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 50, 100},
	})
)

// recordBatchUpdated records a batch whose update was applied.
func recordBatchUpdated(loss, gradNorm float64) {
	trainingBatchesTotal.WithLabelValues("updated").Inc()
	trainingLoss.Set(loss)
	trainingGradientNorm.Observe(gradNorm)
}

// recordBatchSkipped records a batch skipped for the given reason.
func recordBatchSkipped(reason string) {
	trainingBatchesTotal.WithLabelValues("skipped_" + reason).Inc()
}

// recordRunOutcome records how a run ended.
func recordRunOutcome(outcome string) {
	trainingRunsTotal.WithLabelValues(outcome).Inc()
}
