// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compress

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels for gnn_inference_compressions_total.
const (
	compressOK        = "ok"
	compressError     = "error"
	compressTimeout   = "timeout"
	compressCancelled = "cancelled"
)

// Event labels for gnn_inference_cache_events_total.
const (
	cacheHit      = "hit"
	cacheMiss     = "miss"
	cacheEviction = "eviction"
)

var (
	compressionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gnn",
			Subsystem: "inference",
			Name:      "compressions_total",
			Help:      "Compression calls by result (ok, error, timeout, cancelled).",
		},
		[]string{"result"},
	)

	compressSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gnn",
			Subsystem: "inference",
			Name:      "compress_seconds",
			Help:      "Wall time of a single successful graph compression.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	cacheEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gnn",
			Subsystem: "inference",
			Name:      "cache_events_total",
			Help:      "Embedding cache activity (hit, miss, eviction).",
		},
		[]string{"event"},
	)

	indexSearchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gnn",
			Subsystem: "inference",
			Name:      "index_searches_total",
			Help:      "Similarity searches served by the embedding index.",
		},
	)
)

// recordCompression counts one compression outcome and, when it
// succeeded, observes its latency.
func recordCompression(result string, elapsed time.Duration) {
	compressionsTotal.WithLabelValues(result).Inc()
	if result == compressOK {
		compressSeconds.Observe(elapsed.Seconds())
	}
}

// recordCacheEvent counts one cache hit, miss, or eviction.
func recordCacheEvent(event string) {
	cacheEventsTotal.WithLabelValues(event).Inc()
}

// recordIndexSearch counts one similarity search.
func recordIndexSearch() {
	indexSearchesTotal.Inc()
}
