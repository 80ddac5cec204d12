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
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/ast"
)

// Source is one raw input file for corpus building.
type Source struct {
	// Path is the file path, forward slashes, unique per corpus.
	Path string

	// Content is the raw file bytes.
	Content []byte
}

// CorpusStats aggregates counters from one corpus build.
type CorpusStats struct {
	// FilesTotal is the number of input sources.
	FilesTotal int

	// FilesSucceeded is the number of sources that produced a graph.
	FilesSucceeded int

	// FilesFailed is the number of sources that produced only a
	// diagnostic.
	FilesFailed int

	// NodesTotal and EdgesTotal sum over all produced graphs.
	NodesTotal int
	EdgesTotal int

	// DurationMilli is the wall time of the corpus build.
	DurationMilli int64
}

// CorpusResult is the outcome of one BuildCorpus call.
type CorpusResult struct {
	// Graphs holds one frozen graph per successfully processed source,
	// in input order.
	Graphs []*Graph

	// Failures lists per-file diagnostics for sources that produced no
	// graph, plus partial-parse diagnostics for sources that did.
	Failures []FileError

	// Incomplete is true when the build was cancelled before finishing.
	Incomplete bool

	// Stats carries corpus counters.
	Stats CorpusStats
}

// BuildCorpus parses each source and builds one graph per file,
// in parallel.
//
// Description:
//
//	The workhorse of training-set preparation. Each source is parsed
//	and built independently: a file that fails to parse contributes a
//	FileError and nothing else, while every other file still produces
//	its graph. Feeding 100 files where 5 are malformed yields 95
//	graphs and 5 diagnostics, never an aborted corpus.
//
//	Files whose parse succeeds with syntax errors still produce a
//	graph over the parseable prefix; their diagnostics are appended to
//	Failures alongside the hard failures.
//
// Inputs:
//
//	ctx - Context for cancellation, checked between files.
//	registry - Parser registry used to select per-language adapters.
//	sources - Input files. Order is preserved in the output.
//
// Outputs:
//
//	*CorpusResult - Graphs, diagnostics, and counters. Never nil.
//	error - Non-nil only when ctx is cancelled; the partial result is
//	still returned with Incomplete set.
//
// Thread Safety:
//
//	Safe for concurrent use; each call owns its state. Parallelism is
//	bounded by the builder's WorkerCount.
func (b *Builder) BuildCorpus(ctx context.Context, registry *ast.ParserRegistry, sources []Source) (*CorpusResult, error) {
	ctx, span := startCorpusSpan(ctx, len(sources))
	defer span.End()

	start := time.Now()
	result := &CorpusResult{
		Stats: CorpusStats{FilesTotal: len(sources)},
	}
	if registry == nil {
		return result, fmt.Errorf("registry must not be nil")
	}

	graphs := make([]*Graph, len(sources))
	failures := make([][]FileError, len(sources))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.options.WorkerCount)

	for i, src := range sources {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			// Workers write disjoint slots; no shared state.
			graphs[i], failures[i] = b.buildFileGraph(egCtx, registry, src)
			return nil
		})
	}

	err := eg.Wait()

	for i := range sources {
		if graphs[i] != nil {
			result.Graphs = append(result.Graphs, graphs[i])
			result.Stats.FilesSucceeded++
			result.Stats.NodesTotal += graphs[i].NodeCount()
			result.Stats.EdgesTotal += graphs[i].EdgeCount()
		} else {
			result.Stats.FilesFailed++
		}
		result.Failures = append(result.Failures, failures[i]...)
	}

	result.Stats.DurationMilli = time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.Int("corpus.succeeded", result.Stats.FilesSucceeded),
		attribute.Int("corpus.failed", result.Stats.FilesFailed),
	)
	recordCorpusMetrics(ctx, result.Stats.FilesSucceeded, result.Stats.FilesFailed, time.Since(start))

	if err != nil {
		result.Incomplete = true
		slog.Warn("corpus build cancelled",
			slog.Int("succeeded", result.Stats.FilesSucceeded),
			slog.Int("total", len(sources)),
		)
		return result, err
	}

	slog.Info("corpus build complete",
		slog.Int("files", len(sources)),
		slog.Int("graphs", result.Stats.FilesSucceeded),
		slog.Int("failures", result.Stats.FilesFailed),
		slog.Int("nodes", result.Stats.NodesTotal),
		slog.Int("edges", result.Stats.EdgesTotal),
	)

	return result, nil
}

// buildFileGraph parses one source and builds its single-file graph.
// A nil graph means the file contributed nothing but diagnostics.
func (b *Builder) buildFileGraph(ctx context.Context, registry *ast.ParserRegistry, src Source) (*Graph, []FileError) {
	parseResult, err := registry.Parse(ctx, src.Content, src.Path)
	if err != nil {
		return nil, []FileError{{
			FilePath: src.Path,
			Err: &MalformedSourceError{
				FilePath: src.Path,
				Reason:   "parse failed",
				Err:      err,
			},
		}}
	}

	fileBuilder := &Builder{options: b.options}
	fileBuilder.options.Unit = src.Path
	// Progress callbacks are per-build; corpus builds report at the
	// corpus level instead.
	fileBuilder.options.ProgressCallback = nil

	buildResult, err := fileBuilder.Build(ctx, []*ast.ParseResult{parseResult})
	if err != nil {
		return nil, []FileError{{FilePath: src.Path, Err: err}}
	}
	if buildResult.Incomplete || buildResult.Graph == nil || buildResult.Graph.NodeCount() == 0 {
		failures := buildResult.FileErrors
		if len(failures) == 0 {
			failures = []FileError{{
				FilePath: src.Path,
				Err: &MalformedSourceError{
					FilePath: src.Path,
					Reason:   "no graph structure produced",
				},
			}}
		}
		return nil, failures
	}

	return buildResult.Graph, buildResult.FileErrors
}

// BuildUnit parses all sources and builds one project-level graph
// spanning them.
//
// Description:
//
//	The online (inference) entry point: a whole repository unit becomes
//	a single graph whose edges may cross files. Parse failures degrade
//	to per-file diagnostics exactly as in BuildCorpus; the remaining
//	files still form the graph.
//
// Outputs:
//
//	*BuildResult - The unit graph plus diagnostics. Never nil on nil
//	error.
//	error - Non-nil when ctx is cancelled or the registry is nil.
func (b *Builder) BuildUnit(ctx context.Context, registry *ast.ParserRegistry, sources []Source) (*BuildResult, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry must not be nil")
	}

	parsed := make([]*ast.ParseResult, len(sources))
	parseErrors := make([][]FileError, len(sources))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.options.WorkerCount)

	for i, src := range sources {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			r, err := registry.Parse(egCtx, src.Content, src.Path)
			if err != nil {
				parseErrors[i] = []FileError{{
					FilePath: src.Path,
					Err: &MalformedSourceError{
						FilePath: src.Path,
						Reason:   "parse failed",
						Err:      err,
					},
				}}
				return nil
			}
			parsed[i] = r
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	results := make([]*ast.ParseResult, 0, len(parsed))
	var failures []FileError
	for i := range parsed {
		if parsed[i] != nil {
			results = append(results, parsed[i])
		}
		failures = append(failures, parseErrors[i]...)
	}

	buildResult, err := b.Build(ctx, results)
	if err != nil {
		return nil, err
	}
	buildResult.FileErrors = append(failures, buildResult.FileErrors...)
	buildResult.Stats.FilesFailed += len(failures)
	return buildResult, nil
}
