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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all service routes with the engine.
//
// Description:
//
//	Registers the /v1 API group plus the root-level health, readiness,
//	and metrics endpoints. The engine should already have recovery and
//	tracing middleware applied.
//
// Inputs:
//
//	r - Gin engine
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/graphs - Build a graph from sources
//	GET  /v1/graphs/:id - Export a stored graph
//	GET  /v1/graphs/:id/symbols - Ranked symbol search in a graph
//	POST /v1/compress - Compress a graph to its embedding
//	POST /v1/route - Analyze a graph through expert detectors
//	POST /v1/similar - Find the nearest indexed graphs
//	GET  /v1/training/status - Observe the trainer
//	POST /v1/training/start - Start a training run
//	POST /v1/training/cancel - Cancel the active run
//	GET  /health - Liveness and component counters
//	GET  /ready - Ready once parameters are published
//	GET  /metrics - Prometheus metrics
//
// Example:
//
//	handlers, err := api.NewHandlers(cfg, encoder, publisher, logger)
//	if err != nil { ... }
//	api.RegisterRoutes(router, handlers)
func RegisterRoutes(r *gin.Engine, handlers *Handlers) {
	v1 := r.Group("/v1")
	{
		// Graph lifecycle
		v1.POST("/graphs", handlers.HandleBuildGraph)
		v1.GET("/graphs/:id", handlers.HandleExportGraph)
		v1.GET("/graphs/:id/symbols", handlers.HandleSymbols)

		// Inference
		v1.POST("/compress", handlers.HandleCompress)
		v1.POST("/route", handlers.HandleRoute)
		v1.POST("/similar", handlers.HandleSimilar)

		// Training control
		train := v1.Group("/training")
		{
			train.GET("/status", handlers.HandleTrainingStatus)
			train.POST("/start", handlers.HandleTrainingStart)
			train.POST("/cancel", handlers.HandleTrainingCancel)
		}
	}

	r.GET("/health", handlers.HandleHealth)
	r.GET("/ready", handlers.HandleReady)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
