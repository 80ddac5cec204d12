// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for AST Adapters
// =============================================================================

var (
	// parseTotal counts Parse calls by language and status.
	// Labels: language, status (ok, error)
	parseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gnn",
		Subsystem: "ast",
		Name:      "parse_total",
		Help:      "Total Parse calls by language and status",
	}, []string{"language", "status"})

	// parseSymbolsTotal counts extracted symbols by language.
	// Labels: language
	parseSymbolsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gnn",
		Subsystem: "ast",
		Name:      "symbols_total",
		Help:      "Total symbols extracted by language",
	}, []string{"language"})

	// parseDurationSeconds measures Parse latency by language.
	// Labels: language
	parseDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gnn",
		Subsystem: "ast",
		Name:      "parse_duration_seconds",
		Help:      "Parse latency by language",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"language"})
)

// recordParseMetrics records one Parse call outcome.
func recordParseMetrics(_ context.Context, language string, duration time.Duration, symbolCount int, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	parseTotal.WithLabelValues(language, status).Inc()
	if symbolCount > 0 {
		parseSymbolsTotal.WithLabelValues(language).Add(float64(symbolCount))
	}
	parseDurationSeconds.WithLabelValues(language).Observe(duration.Seconds())
}
