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
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/experts"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/compress"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/training"
)

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	// Error is a human-readable description.
	Error string `json:"error"`

	// Code is a stable machine-readable identifier.
	Code string `json:"code"`
}

// Error codes returned by the handlers.
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeGraphNotFound   = "GRAPH_NOT_FOUND"
	CodeNoParameters    = "NO_PARAMETERS"
	CodeCompressTimeout = "COMPRESS_TIMEOUT"
	CodeCompressFailed  = "COMPRESS_FAILED"
	CodeBuildFailed     = "BUILD_FAILED"
	CodeAnalysisFailed  = "ANALYSIS_FAILED"
	CodeSearchFailed    = "SEARCH_FAILED"
	CodeRunInProgress   = "RUN_IN_PROGRESS"
	CodeNoActiveRun     = "NO_ACTIVE_RUN"
	CodeNoUnits         = "NO_UNITS"
)

// SourceFile is one file of a build request.
type SourceFile struct {
	// Path is the file path; its extension selects the parser.
	Path string `json:"path"`

	// Content is the file text.
	Content string `json:"content"`
}

// BuildGraphRequest asks the service to parse sources into one graph.
type BuildGraphRequest struct {
	// Unit names the repository unit the files belong to.
	Unit string `json:"unit"`

	// Files are the sources to parse. Unparseable files degrade to
	// per-file failures; the rest still form the graph.
	Files []SourceFile `json:"files"`
}

// FileFailure reports one file that contributed no symbols.
type FileFailure struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// BuildGraphResponse describes the built graph.
type BuildGraphResponse struct {
	// GraphID is the graph's content hash. Subsequent compress, route,
	// and similar requests reference it.
	GraphID string `json:"graph_id"`

	Unit     string        `json:"unit"`
	Nodes    int           `json:"nodes"`
	Edges    int           `json:"edges"`
	Failures []FileFailure `json:"failures,omitempty"`

	// Evicted is the ID of the graph dropped to make room, if any.
	Evicted string `json:"evicted,omitempty"`
}

// GraphRef selects the graph a request operates on: a stored graph by
// ID, or an inline serialized graph.
type GraphRef struct {
	// GraphID references a graph built by POST /v1/graphs.
	GraphID string `json:"graph_id,omitempty"`

	// Graph is an inline serialized graph, as exported by
	// GET /v1/graphs/:id. Used when the caller holds the graph.
	Graph *graph.SerializableGraph `json:"graph,omitempty"`
}

// CompressRequest asks for the fixed-length embedding of a graph.
type CompressRequest struct {
	GraphRef

	// Index adds the embedding to the similarity index on success.
	Index bool `json:"index,omitempty"`
}

// CompressResponse carries the embedding.
type CompressResponse struct {
	GraphID       string    `json:"graph_id"`
	ParamsVersion string    `json:"params_version"`
	Dim           int       `json:"dim"`
	Embedding     []float32 `json:"embedding"`
	Indexed       bool      `json:"indexed,omitempty"`
}

// RouteRequest asks for expert analysis of a graph.
type RouteRequest struct {
	GraphRef
}

// RouteResponse carries the analysis report: language assignments,
// merged findings, and any detector failures.
type RouteResponse struct {
	GraphID string `json:"graph_id"`
	experts.Report
}

// SimilarRequest asks for the nearest indexed graphs.
type SimilarRequest struct {
	GraphRef

	// K bounds the match count. Zero selects the configured default.
	K int `json:"k,omitempty"`
}

// SimilarResponse lists matches by descending cosine similarity.
type SimilarResponse struct {
	GraphID string           `json:"graph_id"`
	Matches []compress.Match `json:"matches"`
}

// TrainStartRequest configures a training run over stored graphs.
type TrainStartRequest struct {
	// Config overrides the service's training defaults. Zero fields
	// keep the trainer's own defaults.
	Config *training.Config `json:"config,omitempty"`

	// GraphIDs selects the training units. Empty trains on every
	// stored graph.
	GraphIDs []string `json:"graph_ids,omitempty"`
}

// TrainStartResponse acknowledges an accepted run.
type TrainStartResponse struct {
	// Units is the number of graphs the run trains on.
	Units int `json:"units"`

	// Config is the fully defaulted run configuration.
	Config training.Config `json:"config"`
}

// HealthResponse reports service readiness.
type HealthResponse struct {
	Status        string              `json:"status"`
	ParamsVersion string              `json:"params_version,omitempty"`
	Graphs        int                 `json:"graphs"`
	Indexed       int                 `json:"indexed"`
	Cache         compress.CacheStats `json:"cache"`
	Training      training.State      `json:"training"`
	Languages     []string            `json:"languages"`
	Detectors     map[string][]string `json:"detectors,omitempty"`
}

// SymbolMatch is one ranked symbol search result.
type SymbolMatch struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Language string `json:"language"`

	// Score ranks the match; lower is better.
	Score int `json:"score"`

	// Class names the match type (exact, prefix, word, substring,
	// fuzzy).
	Class string `json:"class"`
}

// SymbolSearchResponse is the GET /v1/graphs/:id/symbols response.
type SymbolSearchResponse struct {
	GraphID string        `json:"graph_id"`
	Query   string        `json:"query"`
	Matches []SymbolMatch `json:"matches"`
}
