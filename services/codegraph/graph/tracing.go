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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the package-level tracer for graph construction.
var tracer = otel.Tracer("aleutian.codegraph.graph")

// startBuildSpan starts a span for a single-unit build.
func startBuildSpan(ctx context.Context, unit string, fileCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Builder.Build",
		trace.WithAttributes(
			attribute.String("build.unit", unit),
			attribute.Int("build.file_count", fileCount),
		),
	)
}

// setBuildSpanResult records the outcome attributes on a build span.
func setBuildSpanResult(span trace.Span, nodes, edges int, incomplete bool) {
	span.SetAttributes(
		attribute.Int("build.nodes", nodes),
		attribute.Int("build.edges", edges),
		attribute.Bool("build.incomplete", incomplete),
	)
}

// startCorpusSpan starts a span for a per-file corpus build.
func startCorpusSpan(ctx context.Context, fileCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Builder.BuildCorpus",
		trace.WithAttributes(
			attribute.Int("corpus.file_count", fileCount),
		),
	)
}
