// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api serves the code intelligence endpoints.
//
// The service holds built graphs in a bounded in-memory store and
// exposes the pipeline over them: compression to fixed-length
// embeddings, expert routing and analysis, similarity search, and
// training run control. Compression reads whatever parameter snapshot
// is published when the request arrives; training publishes new
// snapshots without interrupting in-flight requests.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/ast"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/index"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/config"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/experts"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/compress"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/layers"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/params"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/training"
)

// MaxSourceFiles bounds a single build request.
const MaxSourceFiles = 512

// MaxSourceBytes bounds one file's content in a build request.
const MaxSourceBytes = 2 << 20

// Handlers serves the GNN service endpoints.
//
// Thread Safety: All handler methods are safe for concurrent use.
type Handlers struct {
	logger    *slog.Logger
	parsers   *ast.ParserRegistry
	detectors *experts.Registry
	store     *GraphStore

	compressor *compress.CachingCompressor
	router     *experts.Router
	index      *compress.Index
	encoder    *layers.Encoder
	publisher  *params.Publisher

	compressTimeout time.Duration
	similarK        int
	trainDefaults   training.Config

	// paramsStore, when set, receives the published snapshot after each
	// successful training run.
	paramsStore *params.Store

	trainMu     sync.Mutex
	trainer     *training.Trainer
	trainCancel context.CancelFunc
}

// Option customizes handler construction.
type Option func(*Handlers)

// WithParserRegistry substitutes the parser registry.
func WithParserRegistry(r *ast.ParserRegistry) Option {
	return func(h *Handlers) { h.parsers = r }
}

// WithDetectorRegistry substitutes the expert detector registry.
func WithDetectorRegistry(r *experts.Registry) Option {
	return func(h *Handlers) { h.detectors = r }
}

// WithGraphStore substitutes the graph store.
func WithGraphStore(s *GraphStore) Option {
	return func(h *Handlers) { h.store = s }
}

// WithParamsStore enables snapshot persistence after training runs.
func WithParamsStore(s *params.Store) Option {
	return func(h *Handlers) { h.paramsStore = s }
}

// NewHandlers wires the service pipeline.
//
// Description:
//
//	Builds the parser registry, graph store, caching compressor,
//	expert router, and similarity index from the configuration. The
//	encoder is the live training target; the publisher carries the
//	snapshots inference reads.
//
// Inputs:
//
//	cfg - Validated service configuration. Must not be nil.
//	enc - The encoder trained by training runs. Must not be nil.
//	pub - The snapshot publisher. Must not be nil.
//	logger - Structured logger. Nil selects slog.Default().
//	opts - Optional substitutions, used by tests.
//
// Outputs:
//
//	*Handlers - Ready to register. Never nil on success.
//	error - Non-nil if any component rejects its configuration.
func NewHandlers(cfg *config.Config, enc *layers.Encoder, pub *params.Publisher, logger *slog.Logger, opts ...Option) (*Handlers, error) {
	if cfg == nil {
		return nil, errors.New("api: cfg must not be nil")
	}
	if enc == nil {
		return nil, errors.New("api: encoder must not be nil")
	}
	if pub == nil {
		return nil, errors.New("api: publisher must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handlers{
		logger:          logger,
		encoder:         enc,
		publisher:       pub,
		compressTimeout: cfg.Inference.CompressTimeout(),
		similarK:        cfg.Inference.SimilarK,
		trainDefaults:   cfg.Training,
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.parsers == nil {
		h.parsers = ast.NewDefaultRegistry()
	}
	if h.detectors == nil {
		h.detectors = experts.NewDefaultRegistry()
	}
	if h.store == nil {
		store, err := NewGraphStore(0)
		if err != nil {
			return nil, err
		}
		h.store = store
	}

	base, err := compress.NewCompressor(pub, logger)
	if err != nil {
		return nil, err
	}
	h.compressor, err = compress.NewCachingCompressor(base, cfg.Inference.CacheCapacity)
	if err != nil {
		return nil, err
	}
	h.router, err = experts.NewRouter(h.detectors, logger, cfg.Experts.Workers)
	if err != nil {
		return nil, err
	}
	h.index, err = compress.NewIndex(enc.EmbedDim())
	if err != nil {
		return nil, err
	}

	return h, nil
}

// getOrCreateRequestID returns the client's X-Request-ID or mints one,
// echoing it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Header("X-Request-ID", id)
	return id
}

// resolveGraph returns the graph a request references, writing the
// error response itself when resolution fails.
func (h *Handlers) resolveGraph(c *gin.Context, ref GraphRef) (*graph.Graph, string, bool) {
	if ref.GraphID != "" {
		g, ok := h.store.Get(ref.GraphID)
		if !ok {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "graph " + ref.GraphID + " not found",
				Code:  CodeGraphNotFound,
			})
			return nil, "", false
		}
		return g, ref.GraphID, true
	}

	if ref.Graph != nil {
		g, err := graph.FromSerializable(ref.Graph)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "invalid inline graph: " + err.Error(),
				Code:  CodeInvalidRequest,
			})
			return nil, "", false
		}
		return g, g.Hash(), true
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: "graph_id or graph is required",
		Code:  CodeInvalidRequest,
	})
	return nil, "", false
}

// compressGraph runs one bounded compression, writing the error
// response itself on failure. The timeout is the service's per-call
// inference budget, independent of the client's patience.
func (h *Handlers) compressGraph(c *gin.Context, logger *slog.Logger, g *graph.Graph, id string) (compress.Embedding, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.compressTimeout)
	defer cancel()

	vec, err := h.compressor.Compress(ctx, g)
	if err == nil {
		return vec, true
	}

	var timeout *compress.TimeoutError
	switch {
	case errors.Is(err, compress.ErrNoParameters):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "no parameters published; train or restore a snapshot first",
			Code:  CodeNoParameters,
		})
	case errors.As(err, &timeout):
		logger.Warn("compression timed out",
			slog.String("graph_id", id),
			slog.Duration("elapsed", timeout.Elapsed),
		)
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{
			Error: err.Error(),
			Code:  CodeCompressTimeout,
		})
	default:
		logger.Error("compression failed",
			slog.String("graph_id", id),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  CodeCompressFailed,
		})
	}
	return nil, false
}

// HandleBuildGraph handles POST /v1/graphs.
//
// Description:
//
//	Parses the submitted sources into one frozen unit graph and stores
//	it under its content hash. Unparseable files degrade to per-file
//	failures; the remaining files still form the graph.
//
// Response:
//
//	200 OK: BuildGraphResponse
//	400 Bad Request: Malformed request or no file produced symbols
//	500 Internal Server Error: Build aborted
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleBuildGraph(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleBuildGraph")

	var req BuildGraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  CodeInvalidRequest,
		})
		return
	}
	if req.Unit == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "unit is required",
			Code:  CodeInvalidRequest,
		})
		return
	}
	if len(req.Files) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "files must not be empty",
			Code:  CodeInvalidRequest,
		})
		return
	}
	if len(req.Files) > MaxSourceFiles {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "too many files in one request",
			Code:  CodeInvalidRequest,
		})
		return
	}

	sources := make([]graph.Source, len(req.Files))
	for i, f := range req.Files {
		if f.Path == "" {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "every file needs a path",
				Code:  CodeInvalidRequest,
			})
			return
		}
		if len(f.Content) > MaxSourceBytes {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: f.Path + " exceeds the per-file size limit",
				Code:  CodeInvalidRequest,
			})
			return
		}
		sources[i] = graph.Source{Path: f.Path, Content: []byte(f.Content)}
	}

	builder := graph.NewBuilder(graph.WithUnit(req.Unit))
	res, err := builder.BuildUnit(c.Request.Context(), h.parsers, sources)
	if err != nil {
		logger.Error("unit build failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "build failed: " + err.Error(),
			Code:  CodeBuildFailed,
		})
		return
	}

	failures := make([]FileFailure, 0, len(res.FileErrors))
	for _, fe := range res.FileErrors {
		failures = append(failures, FileFailure{File: fe.FilePath, Reason: fe.Err.Error()})
	}

	if res.Incomplete {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "build interrupted before completion",
			Code:  CodeBuildFailed,
		})
		return
	}
	if res.Graph.NodeCount() == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "no file produced symbols",
			Code:  CodeBuildFailed,
		})
		return
	}

	id, evicted, err := h.store.Put(res.Graph)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  CodeBuildFailed,
		})
		return
	}
	recordGraphBuilt(res.Graph.NodeCount(), res.Graph.EdgeCount(), evicted != "")

	logger.Info("graph built",
		slog.String("graph_id", id),
		slog.String("unit", req.Unit),
		slog.Int("nodes", res.Graph.NodeCount()),
		slog.Int("edges", res.Graph.EdgeCount()),
		slog.Int("failures", len(failures)),
	)

	c.JSON(http.StatusOK, BuildGraphResponse{
		GraphID:  id,
		Unit:     req.Unit,
		Nodes:    res.Graph.NodeCount(),
		Edges:    res.Graph.EdgeCount(),
		Failures: failures,
		Evicted:  evicted,
	})
}

// HandleExportGraph handles GET /v1/graphs/:id.
//
// Description:
//
//	Exports a stored graph in its serialized form. The export
//	round-trips: submitting it inline to compress or route yields the
//	same graph ID.
//
// Response:
//
//	200 OK: graph.SerializableGraph
//	404 Not Found: Unknown graph ID
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleExportGraph(c *gin.Context) {
	id := c.Param("id")
	g, ok := h.store.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "graph " + id + " not found",
			Code:  CodeGraphNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, g.ToSerializable())
}

// HandleSymbols handles GET /v1/graphs/:id/symbols.
//
// Description:
//
//	Relevance-ranked symbol search over one stored graph. Matches
//	order by class (exact, prefix, word, substring, fuzzy), then
//	position, length, and kind, with test-file and unexported symbols
//	downranked.
//
// Query Parameters:
//
//	q - The search query. Required.
//	limit - Maximum results. Optional, service default when absent.
//
// Response:
//
//	200 OK: SymbolSearchResponse
//	400 Bad Request: Missing query or malformed limit
//	404 Not Found: Unknown graph ID
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleSymbols(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleSymbols")

	id := c.Param("id")
	g, ok := h.store.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "graph " + id + " not found",
			Code:  CodeGraphNotFound,
		})
		return
	}

	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query parameter q is required",
			Code:  CodeInvalidRequest,
		})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be a non-negative integer",
				Code:  CodeInvalidRequest,
			})
			return
		}
		limit = n
	}

	search, err := index.New(g)
	if err != nil {
		logger.Error("symbol search construction failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  CodeSearchFailed,
		})
		return
	}
	found, err := search.Search(c.Request.Context(), query, limit)
	if err != nil {
		logger.Error("symbol search failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  CodeSearchFailed,
		})
		return
	}

	matches := make([]SymbolMatch, len(found))
	for i, m := range found {
		sym := m.Node.Symbol
		matches[i] = SymbolMatch{
			ID:       sym.ID,
			Name:     sym.Name,
			Kind:     string(sym.Kind),
			File:     sym.FilePath,
			Line:     sym.StartLine,
			Language: sym.Language,
			Score:    m.Score,
			Class:    m.Class,
		}
	}
	c.JSON(http.StatusOK, SymbolSearchResponse{
		GraphID: id,
		Query:   query,
		Matches: matches,
	})
}

// HandleCompress handles POST /v1/compress.
//
// Description:
//
//	Compresses the referenced graph to its fixed-length embedding
//	under the currently published parameters. With index set, the
//	embedding joins the similarity index under the graph's ID.
//
// Response:
//
//	200 OK: CompressResponse
//	400 Bad Request: Malformed request
//	404 Not Found: Unknown graph ID
//	503 Service Unavailable: No parameters published
//	504 Gateway Timeout: Compression exceeded its budget
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleCompress(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleCompress")

	var req CompressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  CodeInvalidRequest,
		})
		return
	}

	g, id, ok := h.resolveGraph(c, req.GraphRef)
	if !ok {
		return
	}

	vec, ok := h.compressGraph(c, logger, g, id)
	if !ok {
		return
	}

	indexed := false
	if req.Index {
		if err := h.index.Add(id, vec, map[string]string{"unit": g.Unit}); err != nil {
			logger.Warn("index add failed", slog.String("graph_id", id), slog.Any("error", err))
		} else {
			indexed = true
		}
	}

	c.JSON(http.StatusOK, CompressResponse{
		GraphID:       id,
		ParamsVersion: h.publisher.Version(),
		Dim:           len(vec),
		Embedding:     vec,
		Indexed:       indexed,
	})
}

// HandleRoute handles POST /v1/route.
//
// Description:
//
//	Compresses the referenced graph, routes its languages to expert
//	detectors, and returns the weighted, merged findings. Individual
//	detector failures appear in the report without aborting the rest.
//
// Response:
//
//	200 OK: RouteResponse
//	400 Bad Request: Malformed request
//	404 Not Found: Unknown graph ID
//	503 Service Unavailable: No parameters published
//	504 Gateway Timeout: Compression exceeded its budget
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleRoute(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleRoute")

	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  CodeInvalidRequest,
		})
		return
	}

	g, id, ok := h.resolveGraph(c, req.GraphRef)
	if !ok {
		return
	}

	vec, ok := h.compressGraph(c, logger, g, id)
	if !ok {
		return
	}

	report, err := h.router.Analyze(c.Request.Context(), vec, g)
	if err != nil {
		logger.Error("analysis failed", slog.String("graph_id", id), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  CodeAnalysisFailed,
		})
		return
	}

	logger.Info("graph analyzed",
		slog.String("graph_id", id),
		slog.Int("assignments", len(report.Assignments)),
		slog.Int("findings", len(report.Findings)),
		slog.Int("failures", len(report.Failures)),
	)

	c.JSON(http.StatusOK, RouteResponse{GraphID: id, Report: *report})
}

// HandleSimilar handles POST /v1/similar.
//
// Description:
//
//	Compresses the referenced graph and returns the nearest indexed
//	embeddings by cosine similarity. Only graphs compressed with
//	index set are searchable.
//
// Response:
//
//	200 OK: SimilarResponse
//	400 Bad Request: Malformed request
//	404 Not Found: Unknown graph ID
//	503 Service Unavailable: No parameters published
//	504 Gateway Timeout: Compression exceeded its budget
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleSimilar(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleSimilar")

	var req SimilarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  CodeInvalidRequest,
		})
		return
	}

	k := req.K
	if k <= 0 {
		k = h.similarK
	}

	g, id, ok := h.resolveGraph(c, req.GraphRef)
	if !ok {
		return
	}

	vec, ok := h.compressGraph(c, logger, g, id)
	if !ok {
		return
	}

	matches, err := h.index.Search(c.Request.Context(), vec, k)
	if err != nil {
		logger.Error("similarity search failed", slog.String("graph_id", id), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  CodeSearchFailed,
		})
		return
	}
	if matches == nil {
		matches = make([]compress.Match, 0)
	}

	c.JSON(http.StatusOK, SimilarResponse{GraphID: id, Matches: matches})
}

// HandleHealth handles GET /health.
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleHealth(c *gin.Context) {
	detectors := make(map[string][]string)
	for _, lang := range h.detectors.Languages() {
		for _, d := range h.detectors.ForLanguage(lang) {
			detectors[lang] = append(detectors[lang], d.Name())
		}
	}

	resp := HealthResponse{
		Status:    "ok",
		Graphs:    h.store.Len(),
		Indexed:   h.index.Len(),
		Cache:     h.compressor.Stats(),
		Training:  h.trainingState(),
		Languages: h.parsers.Languages(),
		Detectors: detectors,
	}
	if pub := h.publisher.Current(); pub != nil {
		resp.ParamsVersion = pub.Snapshot.Version
	}

	c.JSON(http.StatusOK, resp)
}

// HandleReady handles GET /ready.
//
// Description:
//
//	Reports 200 once parameters are published and inference can serve.
//	Before that, compress, route, and similar all return 503, so
//	readiness follows them.
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleReady(c *gin.Context) {
	pub := h.publisher.Current()
	if pub == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "no parameters published",
			Code:  CodeNoParameters,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "ready",
		"params_version": pub.Snapshot.Version,
	})
}
