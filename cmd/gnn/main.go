// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command gnn starts the GNN code intelligence server.
//
// The server builds language-agnostic code graphs from submitted
// source files, compresses them into fixed-width embeddings with a
// graph neural network, routes graphs to per-language analysis
// experts, and answers similarity queries over indexed embeddings.
// Training runs execute against stored graphs and publish parameter
// snapshots atomically; snapshots persist in BadgerDB and are
// restored on the next start.
//
// Usage:
//
//	go run ./cmd/gnn
//	go run ./cmd/gnn -config ./gnn.yaml
//	GNN_ADDR=:9090 GNN_STORE_DIR=/var/lib/gnn go run ./cmd/gnn
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8090/health
//
//	# Build a graph from source files
//	curl -X POST http://localhost:8090/v1/graphs \
//	  -H "Content-Type: application/json" \
//	  -d '{"unit": "demo", "files": [{"path": "main.go", "content": "package main\n\nfunc main() {}\n"}]}'
//
//	# Train on every stored graph
//	curl -X POST http://localhost:8090/v1/training/start
//
//	# Compress a stored graph into an embedding and index it
//	curl -X POST http://localhost:8090/v1/compress \
//	  -H "Content-Type: application/json" \
//	  -d '{"graph_id": "<id from build>", "index": true}'
//
//	# Route a graph to its language experts
//	curl -X POST http://localhost:8090/v1/route \
//	  -H "Content-Type: application/json" \
//	  -d '{"graph_id": "<id from build>"}'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/config"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/api"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/layers"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/params"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional, env and defaults apply without one)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	// Set Gin mode
	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	// I-3: Set up W3C TraceContext propagator for distributed tracing.
	// Trace context flows from incoming HTTP headers through all
	// handlers and middleware.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Open the snapshot store. An empty directory selects an in-memory
	// database for throwaway runs.
	var opts badger.Options
	if cfg.Store.Dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
		slog.Info("Snapshot store running in memory, parameters will not survive a restart")
	} else {
		opts = badger.DefaultOptions(cfg.Store.Dir)
	}
	opts = opts.WithLogger(nil) // suppress BadgerDB internal logs
	db, err := badger.Open(opts)
	if err != nil {
		slog.Error("Failed to open snapshot store",
			slog.String("dir", cfg.Store.Dir),
			slog.Any("error", err))
		os.Exit(1)
	}

	paramsStore, err := params.NewStore(db, logger)
	if err != nil {
		slog.Error("Failed to create snapshot store", slog.Any("error", err))
		os.Exit(1)
	}

	publisher := params.NewPublisher()
	encoder, err := bootEncoder(ctx, cfg, paramsStore, publisher)
	if err != nil {
		slog.Error("Failed to initialize encoder", slog.Any("error", err))
		os.Exit(1)
	}

	handlers, err := api.NewHandlers(cfg, encoder, publisher, logger,
		api.WithParamsStore(paramsStore))
	if err != nil {
		slog.Error("Failed to build handlers", slog.Any("error", err))
		os.Exit(1)
	}

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	// I-3: OTel middleware extracts trace context from W3C TraceContext
	// headers and propagates it through the request context.
	router.Use(otelgin.Middleware("gnn"))
	if *debug {
		router.Use(gin.Logger())
	}
	api.RegisterRoutes(router, handlers)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
	}

	printBanner(cfg.Server.Addr, publisher.Version())

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("Starting GNN server", slog.String("address", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("Shutting down GNN server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Forced shutdown", slog.Any("error", err))
	}
	if err := db.Close(); err != nil {
		slog.Warn("Failed to close snapshot store", slog.Any("error", err))
	}
	slog.Info("Server stopped")
}

// newLogger builds the process logger from the log configuration.
func newLogger(cfg config.LogConfig) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, hopts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, hopts)
	}
	return slog.New(handler)
}

// bootEncoder restores the latest persisted snapshot or seeds a fresh
// encoder from the model configuration.
//
// Description:
//
//	A restored snapshot is also published, so compression works
//	immediately after a restart. A fresh encoder stays unpublished
//	until the first training run completes; until then compression
//	endpoints return 503.
//
// Inputs:
//
//	ctx - Context for the store read.
//	cfg - Validated service configuration.
//	store - The snapshot store to restore from.
//	pub - The publisher that inference reads from.
//
// Outputs:
//
//	*layers.Encoder - The live training target.
//	error - Non-nil if the store read or the restore fails.
func bootEncoder(ctx context.Context, cfg *config.Config, store *params.Store, pub *params.Publisher) (*layers.Encoder, error) {
	snap, meta, err := store.LoadLatest(ctx)
	switch {
	case err == nil:
		enc, restoreErr := snap.Restore()
		if restoreErr != nil {
			return nil, fmt.Errorf("restoring snapshot %s: %w", snap.Version, restoreErr)
		}
		if pubErr := pub.Publish(snap); pubErr != nil {
			return nil, fmt.Errorf("publishing restored snapshot: %w", pubErr)
		}
		if meta.EmbedDim != cfg.Model.EmbedDim {
			slog.Warn("Stored snapshot overrides configured model",
				slog.Int("stored_embed_dim", meta.EmbedDim),
				slog.Int("configured_embed_dim", cfg.Model.EmbedDim))
		}
		slog.Info("Restored parameter snapshot",
			slog.String("version", meta.Version),
			slog.String("run_id", meta.RunID),
			slog.Int("params", meta.ParamCount),
		)
		return enc, nil

	case errors.Is(err, params.ErrNotFound):
		rng := rand.New(rand.NewSource(cfg.Model.Seed))
		enc, newErr := layers.NewEncoder(cfg.Model.LayerConfig(), cfg.Model.Readout, cfg.Model.EmbedDim, rng)
		if newErr != nil {
			return nil, fmt.Errorf("building encoder: %w", newErr)
		}
		slog.Info("No stored snapshot, starting with fresh parameters",
			slog.String("architecture", cfg.Model.Architecture),
			slog.Int("embed_dim", cfg.Model.EmbedDim),
		)
		return enc, nil

	default:
		return nil, fmt.Errorf("loading latest snapshot: %w", err)
	}
}

func printBanner(addr, paramsVersion string) {
	host := addr
	if len(host) > 0 && host[0] == ':' {
		host = "localhost" + host
	}
	paramsStatus := "FRESH (train to publish parameters)"
	if paramsVersion != "" {
		paramsStatus = "RESTORED (" + paramsVersion + ")"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                    GNN CODE INTELLIGENCE SERVER                   ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Code graphs, GNN embeddings, and per-language expert routing.    ║
║  Parameters: %-50s   ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://%s/health                              │  ║
║  │                                                             │  ║
║  │ # Build a graph (required first!)                           │  ║
║  │ curl -X POST http://%s/v1/graphs \                 │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"unit": "demo", "files": [...]}'                     │  ║
║  │                                                             │  ║
║  │ # Train on stored graphs, then compress and route           │  ║
║  │ curl -X POST http://%s/v1/training/start           │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── Graphs: POST /v1/graphs, GET /v1/graphs/:id                  ║
║  ├── Inference: /v1/compress, /v1/route, /v1/similar              ║
║  ├── Training: /v1/training/{start,status,cancel}                 ║
║  └── Ops: /health, /ready, /metrics                               ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, paramsStatus, host, host, host)
}
