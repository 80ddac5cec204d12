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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// astTracer is the package-level tracer for adapter operations.
var astTracer = otel.Tracer("aleutian.codegraph.ast")

// startParseSpan begins a span for one Parse call.
func startParseSpan(ctx context.Context, language, filePath string, sizeBytes int) (context.Context, trace.Span) {
	return astTracer.Start(ctx, "ast.parse",
		trace.WithAttributes(
			attribute.String("language", language),
			attribute.String("file_path", filePath),
			attribute.Int("size_bytes", sizeBytes),
		),
	)
}

// setParseSpanResult attaches result counts to a parse span.
func setParseSpanResult(span trace.Span, symbolCount, errorCount int) {
	span.SetAttributes(
		attribute.Int("symbol_count", symbolCount),
		attribute.Int("error_count", errorCount),
	)
}
