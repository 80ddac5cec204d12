// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package experts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gnn",
			Subsystem: "experts",
			Name:      "analyses_total",
			Help:      "Completed expert analyses.",
		},
	)

	findingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gnn",
			Subsystem: "experts",
			Name:      "findings_total",
			Help:      "Merged findings by language and category.",
		},
		[]string{"language", "category"},
	)

	detectorFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gnn",
			Subsystem: "experts",
			Name:      "detector_failures_total",
			Help:      "Detector errors absorbed without aborting analysis.",
		},
		[]string{"detector"},
	)

	routedLanguages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gnn",
			Subsystem: "experts",
			Name:      "routed_languages",
			Help:      "Languages assigned per routed graph.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8},
		},
	)
)

// recordAnalysis counts one completed analysis and its findings.
func recordAnalysis(assignments []ExpertAssignment, findings []Finding) {
	analysesTotal.Inc()
	routedLanguages.Observe(float64(len(assignments)))
	for _, f := range findings {
		findingsTotal.WithLabelValues(f.Language, string(f.Category)).Inc()
	}
}

// recordDetectorFailure counts one absorbed detector error.
func recordDetectorFailure(detector string) {
	detectorFailuresTotal.WithLabelValues(detector).Inc()
}
