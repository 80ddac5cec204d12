// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// graphsBuiltTotal counts graphs built through the API.
	graphsBuiltTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gnn",
		Subsystem: "api",
		Name:      "graphs_built_total",
		Help:      "Graphs built through POST /v1/graphs.",
	})

	// graphNodes observes the node count of built graphs.
	graphNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gnn",
		Subsystem: "api",
		Name:      "graph_nodes",
		Help:      "Node counts of built graphs.",
		Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
	})

	// graphEdges observes the edge count of built graphs.
	graphEdges = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gnn",
		Subsystem: "api",
		Name:      "graph_edges",
		Help:      "Edge counts of built graphs.",
		Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
	})

	// storeEvictionsTotal counts graphs evicted from the store.
	storeEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gnn",
		Subsystem: "api",
		Name:      "store_evictions_total",
		Help:      "Graphs evicted from the in-memory store at capacity.",
	})
)

// recordGraphBuilt updates the build metrics.
func recordGraphBuilt(nodes, edges int, evicted bool) {
	graphsBuiltTotal.Inc()
	graphNodes.Observe(float64(nodes))
	graphEdges.Observe(float64(edges))
	if evicted {
		storeEvictionsTotal.Inc()
	}
}
