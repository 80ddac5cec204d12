// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Graph Construction
// =============================================================================

var (
	// buildTotal counts graph builds by outcome.
	// Labels: status (ok, incomplete)
	buildTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gnn",
		Subsystem: "graph",
		Name:      "build_total",
		Help:      "Total graph builds by outcome",
	}, []string{"status"})

	// buildDurationSeconds measures wall time per graph build.
	buildDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gnn",
		Subsystem: "graph",
		Name:      "build_duration_seconds",
		Help:      "Graph build wall time",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	})

	// buildNodesTotal counts nodes created across all builds.
	buildNodesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gnn",
		Subsystem: "graph",
		Name:      "build_nodes_total",
		Help:      "Total nodes created across builds",
	})

	// buildEdgesTotal counts edges created across all builds.
	buildEdgesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gnn",
		Subsystem: "graph",
		Name:      "build_edges_total",
		Help:      "Total edges created across builds",
	})

	// callResolutionTotal counts call-site resolutions by outcome.
	// Labels: outcome (resolved, unresolved)
	callResolutionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gnn",
		Subsystem: "graph",
		Name:      "call_resolution_total",
		Help:      "Call-site resolution outcomes",
	}, []string{"outcome"})

	// importEdgesTotal counts import edge creation by outcome.
	// Labels: outcome (created, failed)
	importEdgesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gnn",
		Subsystem: "graph",
		Name:      "import_edges_total",
		Help:      "Import edge creation outcomes",
	}, []string{"outcome"})

	// corpusFilesTotal counts per-file corpus build outcomes.
	// Labels: status (ok, failed)
	corpusFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gnn",
		Subsystem: "graph",
		Name:      "corpus_files_total",
		Help:      "Corpus build per-file outcomes",
	}, []string{"status"})

	// corpusDurationSeconds measures wall time per corpus build.
	corpusDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gnn",
		Subsystem: "graph",
		Name:      "corpus_duration_seconds",
		Help:      "Corpus build wall time",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})
)

// recordBuildMetrics records counters for one completed build.
func recordBuildMetrics(_ context.Context, duration time.Duration, nodes, edges int, ok bool) {
	status := "ok"
	if !ok {
		status = "incomplete"
	}
	buildTotal.WithLabelValues(status).Inc()
	buildDurationSeconds.Observe(duration.Seconds())
	buildNodesTotal.Add(float64(nodes))
	buildEdgesTotal.Add(float64(edges))
}

// recordCallEdgeMetrics records call resolution outcomes for one build.
func recordCallEdgeMetrics(_ context.Context, resolved, unresolved int) {
	callResolutionTotal.WithLabelValues("resolved").Add(float64(resolved))
	callResolutionTotal.WithLabelValues("unresolved").Add(float64(unresolved))
}

// recordImportEdgeMetrics records import edge outcomes for one file.
func recordImportEdgeMetrics(_ context.Context, created, failed int) {
	importEdgesTotal.WithLabelValues("created").Add(float64(created))
	importEdgesTotal.WithLabelValues("failed").Add(float64(failed))
}

// recordCorpusMetrics records per-file outcomes for one corpus build.
func recordCorpusMetrics(_ context.Context, succeeded, failed int, duration time.Duration) {
	corpusFilesTotal.WithLabelValues("ok").Add(float64(succeeded))
	corpusFilesTotal.WithLabelValues("failed").Add(float64(failed))
	corpusDurationSeconds.Observe(duration.Seconds())
}
