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
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/compress"
)

var expertsTracer = otel.Tracer("gnn.experts")

// Weight composition for a language's relevance. Node share dominates;
// line share is discounted because generated files inflate it;
// call-edge and structural shares reward languages that carry the
// codebase's actual logic and type structure.
const (
	weightNodeShare       = 0.5
	weightLineShare       = 0.1
	weightComplexityShare = 0.2
	weightStructuralShare = 0.2

	// minLanguageWeight keeps every present language routable; without
	// the floor a 20-line helper script would round to zero and its
	// expert would never run.
	minLanguageWeight = 0.05
)

// ExpertAssignment is one language expert with its relevance weight.
// Weights across a routing sum to 1.
type ExpertAssignment struct {
	Language string  `json:"language"`
	Weight   float64 `json:"weight"`
}

// DetectorFailure records one detector that errored during analysis.
// Failures never abort sibling detectors.
type DetectorFailure struct {
	Detector string `json:"detector"`
	Language string `json:"language"`
	Reason   string `json:"reason"`
}

// Report is the merged output of one analysis.
type Report struct {
	Assignments []ExpertAssignment `json:"assignments"`
	Findings    []Finding          `json:"findings"`
	Failures    []DetectorFailure  `json:"failures,omitempty"`
}

// Router maps an embedding and its graph to weighted language experts
// and runs their detectors.
//
// # Thread Safety
//
// Safe for concurrent use; routing reads only frozen graph state and
// the registry handles its own locking.
type Router struct {
	registry *Registry
	logger   *slog.Logger
	workers  int
}

// NewRouter creates a router over the given detector registry. Workers
// caps concurrent detector runs; pass 0 for GOMAXPROCS.
func NewRouter(registry *Registry, logger *slog.Logger, workers int) (*Router, error) {
	if registry == nil {
		return nil, fmt.Errorf("experts: registry must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		return nil, fmt.Errorf("experts: workers must be positive, got %d", workers)
	}
	return &Router{registry: registry, logger: logger, workers: workers}, nil
}

// Route computes the ordered expert assignments for a graph.
//
// # Description
//
// Each language present in the graph scores
//
//	nodeShare*0.5 + lineShare*0.1 + callEdgeShare*0.2 + structuralShare*0.2
//
// where each share is that language's fraction of the graph-wide
// total; a term whose total is zero contributes nothing. Scores are
// floored at 0.05 and normalized to sum 1. Assignments order by weight
// descending, language name ascending on ties.
//
// The embedding is part of the contract so routing policy can evolve
// to learned dispatch; the current policy reads language structure
// only and accepts a nil embedding.
func (r *Router) Route(emb compress.Embedding, g *graph.Graph) ([]ExpertAssignment, error) {
	if g == nil {
		return nil, fmt.Errorf("experts: graph must not be nil")
	}
	if !g.Frozen() {
		return nil, fmt.Errorf("experts: graph must be frozen before routing")
	}

	stats := g.LanguageStats()
	weights := languageWeights(stats)
	if len(weights) == 0 {
		return nil, fmt.Errorf("experts: graph has no language-tagged nodes to route")
	}

	assignments := make([]ExpertAssignment, 0, len(weights))
	for lang, w := range weights {
		assignments = append(assignments, ExpertAssignment{Language: lang, Weight: w})
	}
	sort.Slice(assignments, func(i, j int) bool {
		if assignments[i].Weight != assignments[j].Weight {
			return assignments[i].Weight > assignments[j].Weight
		}
		return assignments[i].Language < assignments[j].Language
	})
	return assignments, nil
}

// languageWeights turns per-language structure counts into normalized
// relevance weights. Languages with no nodes (or an empty tag) do not
// route.
func languageWeights(stats map[string]graph.LanguageStat) map[string]float64 {
	var totNodes, totLines, totCalls, totStruct int
	for lang, s := range stats {
		if lang == "" {
			continue
		}
		totNodes += s.Nodes
		totLines += s.Lines
		totCalls += s.CallEdges
		totStruct += s.StructuralNodes
	}

	weights := make(map[string]float64, len(stats))
	var sum float64
	for lang, s := range stats {
		if lang == "" || s.Nodes == 0 {
			continue
		}
		var w float64
		if totNodes > 0 {
			w += weightNodeShare * float64(s.Nodes) / float64(totNodes)
		}
		if totLines > 0 {
			w += weightLineShare * float64(s.Lines) / float64(totLines)
		}
		if totCalls > 0 {
			w += weightComplexityShare * float64(s.CallEdges) / float64(totCalls)
		}
		if totStruct > 0 {
			w += weightStructuralShare * float64(s.StructuralNodes) / float64(totStruct)
		}
		if w < minLanguageWeight {
			w = minLanguageWeight
		}
		weights[lang] = w
		sum += w
	}

	for lang := range weights {
		weights[lang] /= sum
	}
	return weights
}

// Analyze routes the graph and runs every registered detector for the
// assigned languages, in parallel, then weights and merges their
// findings.
//
// # Description
//
// A detector error is recorded as a DetectorFailure and its language's
// other detectors still run; only a fired ctx aborts the whole call.
// Finding confidences are scaled by the language's weight before
// merging, so a pattern reported in a 5% language ranks below the same
// pattern in the dominant one. The merged findings are deduplicated
// and ordered by severity, then confidence.
func (r *Router) Analyze(ctx context.Context, emb compress.Embedding, g *graph.Graph) (*Report, error) {
	if ctx == nil {
		return nil, fmt.Errorf("experts: ctx must not be nil")
	}

	assignments, err := r.Route(emb, g)
	if err != nil {
		return nil, err
	}

	type task struct {
		language string
		weight   float64
		detector Detector
	}
	var tasks []task
	for _, a := range assignments {
		for _, d := range r.registry.ForLanguage(a.Language) {
			tasks = append(tasks, task{language: a.Language, weight: a.Weight, detector: d})
		}
	}

	ctx, span := expertsTracer.Start(ctx, "experts.analyze",
		trace.WithAttributes(
			attribute.Int("languages", len(assignments)),
			attribute.Int("detectors", len(tasks)),
			attribute.Int("graph.nodes", g.NodeCount()),
		))
	defer span.End()

	results := make([][]Finding, len(tasks))
	taskErrs := make([]error, len(tasks))

	var eg errgroup.Group
	sem := make(chan struct{}, r.workers)
	for i, tk := range tasks {
		i, tk := i, tk
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i], taskErrs[i] = tk.detector.Analyze(ctx, emb, g)
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []Finding
	var failures []DetectorFailure
	for i, tk := range tasks {
		if taskErrs[i] != nil {
			recordDetectorFailure(tk.detector.Name())
			r.logger.Warn("detector failed, continuing with siblings",
				slog.String("detector", tk.detector.Name()),
				slog.String("language", tk.language),
				slog.String("error", taskErrs[i].Error()),
			)
			failures = append(failures, DetectorFailure{
				Detector: tk.detector.Name(),
				Language: tk.language,
				Reason:   taskErrs[i].Error(),
			})
			continue
		}
		for _, f := range results[i] {
			if f.Language == "" {
				f.Language = tk.language
			}
			f.Confidence = clamp01(f.Confidence * tk.weight)
			all = append(all, f)
		}
	}

	merged := MergeFindings(all)
	recordAnalysis(assignments, merged)
	span.SetAttributes(
		attribute.Int("findings", len(merged)),
		attribute.Int("failures", len(failures)),
	)

	return &Report{Assignments: assignments, Findings: merged, Failures: failures}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
