// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compress turns frozen code graphs into fixed-width embedding
// vectors using the currently published parameter set.
//
// # Description
//
// The Compressor is the inference half of the model lifecycle: training
// publishes immutable parameter snapshots through a params.Publisher,
// and every Compress call pins the snapshot that is live at entry. A
// publish that lands mid-call never affects the in-flight computation,
// and two calls over the same graph under the same snapshot produce
// identical vectors.
//
// The package also provides a bounded result cache keyed by (graph
// content hash, parameter version) and an in-memory similarity index
// over the produced embeddings.
package compress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/encode"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/layers"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/params"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/tensor"
)

var compressTracer = otel.Tracer("gnn.compress")

// ErrNoParameters reports a compression attempted before any parameter
// set has been published.
var ErrNoParameters = errors.New("compress: no parameters published")

// Embedding is a unit-length vector produced by the encoder. Treat it
// as immutable once returned; Clone before mutating.
type Embedding []float32

// Clone returns an independent copy.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// TimeoutError reports a compression abandoned because its context
// deadline expired. The caller receives no vector; the shared parameter
// set is read-only during inference, so an abandoned call leaves no
// partial state behind.
type TimeoutError struct {
	// GraphHash identifies the graph whose compression timed out.
	GraphHash string

	// Elapsed is the wall time spent before the deadline fired.
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("compress: deadline exceeded after %s (graph %s)", e.Elapsed, shortHash(e.GraphHash))
}

// Unwrap lets errors.Is match context.DeadlineExceeded.
func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// Compressor embeds single graphs with the live published parameters.
//
// # Thread Safety
//
// Safe for concurrent use. Each call builds its own tape and binding;
// the encoder weights are read-only, and the publisher hands out the
// parameter set through an atomic pointer, so a concurrent publish
// never disturbs an in-flight call.
type Compressor struct {
	pub    *params.Publisher
	logger *slog.Logger
}

// NewCompressor creates a compressor reading parameters from pub.
func NewCompressor(pub *params.Publisher, logger *slog.Logger) (*Compressor, error) {
	if pub == nil {
		return nil, fmt.Errorf("compress: publisher must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compressor{pub: pub, logger: logger}, nil
}

// Publisher returns the parameter source this compressor reads from.
func (c *Compressor) Publisher() *params.Publisher { return c.pub }

// Compress embeds g with the parameter set live at the moment of the
// call. Returns ErrNoParameters before the first publish, a
// *TimeoutError if ctx's deadline expires mid-computation, and ctx.Err()
// if ctx is cancelled outright.
func (c *Compressor) Compress(ctx context.Context, g *graph.Graph) (Embedding, error) {
	pub := c.pub.Current()
	if pub == nil {
		recordCompression(compressError, 0)
		return nil, ErrNoParameters
	}
	return c.CompressWith(ctx, g, pub)
}

// CompressWith embeds g with an explicitly pinned parameter set. A
// caller that needs several embeddings from the same version holds one
// *params.Published and passes it here; publishes that happen in the
// meantime do not shift the ground under it.
func (c *Compressor) CompressWith(ctx context.Context, g *graph.Graph, pub *params.Published) (Embedding, error) {
	if ctx == nil {
		return nil, fmt.Errorf("compress: ctx must not be nil")
	}
	if pub == nil || pub.Encoder == nil || pub.Snapshot == nil {
		return nil, ErrNoParameters
	}

	b, err := encode.BatchOf(g)
	if err != nil {
		recordCompression(compressError, 0)
		return nil, err
	}
	if got, want := b.Features.Cols(), pub.Encoder.Config().InputDim; got != want {
		recordCompression(compressError, 0)
		return nil, fmt.Errorf("compress: parameter set %s expects %d-dim features, graph encodes %d",
			pub.Snapshot.Version, want, got)
	}

	hash := g.Hash()
	ctx, span := compressTracer.Start(ctx, "gnn.compress",
		trace.WithAttributes(
			attribute.String("params.version", pub.Snapshot.Version),
			attribute.String("graph.hash", shortHash(hash)),
			attribute.Int("graph.nodes", b.NumNodes()),
			attribute.Int("graph.edges", b.NumEdges()),
		))
	defer span.End()

	if err := ctx.Err(); err != nil {
		recordCompression(interruptLabel(ctx), 0)
		span.SetAttributes(attribute.Bool("interrupted", true))
		return nil, interrupted(ctx, hash, 0)
	}

	start := time.Now()
	done := make(chan embedResult, 1)
	go func() { done <- runEmbed(pub.Encoder, b) }()

	select {
	case <-ctx.Done():
		elapsed := time.Since(start)
		recordCompression(interruptLabel(ctx), elapsed)
		span.SetAttributes(attribute.Bool("interrupted", true))
		c.logger.Warn("compression abandoned at deadline",
			slog.String("graph", shortHash(hash)),
			slog.Duration("elapsed", elapsed),
		)
		return nil, interrupted(ctx, hash, elapsed)
	case r := <-done:
		if r.err != nil {
			recordCompression(compressError, time.Since(start))
			return nil, r.err
		}
		recordCompression(compressOK, time.Since(start))
		return r.vec, nil
	}
}

type embedResult struct {
	vec Embedding
	err error
}

// runEmbed executes one forward pass on a private tape. It runs in its
// own goroutine so the caller can abandon it at the deadline; the tape
// and binding are local, so an abandoned pass leaks nothing.
func runEmbed(enc *layers.Encoder, b *tensor.Batch) embedResult {
	tp := tensor.NewTape()
	bd := layers.NewBinding(tp)
	out := enc.Embed(bd, b, layers.ForwardOpts{})

	dim := out.T.Cols()
	vec := make(Embedding, dim)
	copy(vec, out.T.Data()[:dim])
	return embedResult{vec: vec}
}

// interrupted maps a fired context to the right error: a deadline
// becomes *TimeoutError, a plain cancellation passes through.
func interrupted(ctx context.Context, hash string, elapsed time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{GraphHash: hash, Elapsed: elapsed}
	}
	return ctx.Err()
}

// interruptLabel picks the metric label for a fired context.
func interruptLabel(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return compressTimeout
	}
	return compressCancelled
}

// shortHash returns the first 8 characters of a hash for log display.
func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8] + "..."
	}
	return h
}
