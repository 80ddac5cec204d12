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

import "fmt"

// MalformedSourceError reports a source file the builder could not fully
// turn into graph structure.
//
// Description:
//
//	Carried inside BuildResult.FileErrors rather than aborting the
//	build: a malformed file yields whatever partial structure its
//	parseable prefix allowed, plus this diagnostic. Callers that need
//	the distinction can errors.As against the wrapped FileError chain.
//
// Thread Safety: Immutable after creation.
type MalformedSourceError struct {
	// FilePath is the offending file.
	FilePath string

	// Line is the first affected line, 0 when unknown.
	Line int

	// Reason is a short human-readable cause ("syntax errors",
	// "invalid content").
	Reason string

	// Err is the underlying error, may be nil.
	Err error
}

// Error implements the error interface.
func (e *MalformedSourceError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed source %s:%d: %s", e.FilePath, e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed source %s: %s", e.FilePath, e.Reason)
}

// Unwrap returns the underlying error.
func (e *MalformedSourceError) Unwrap() error {
	return e.Err
}

// FileError associates a build-time error with the file that caused it.
type FileError struct {
	// FilePath is the file the error belongs to.
	FilePath string

	// Err is the error. Often a *MalformedSourceError.
	Err error
}

// Error implements the error interface.
func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.FilePath, e.Err)
}

// Unwrap returns the underlying error.
func (e FileError) Unwrap() error {
	return e.Err
}

// EdgeError records an edge that could not be created.
type EdgeError struct {
	// FromID and ToID are the endpoint symbol IDs.
	FromID string
	ToID   string

	// EdgeType is the attempted relationship kind.
	EdgeType EdgeType

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e EdgeError) Error() string {
	return fmt.Sprintf("edge %s -> %s (%s): %v", e.FromID, e.ToID, e.EdgeType, e.Err)
}

// Unwrap returns the underlying error.
func (e EdgeError) Unwrap() error {
	return e.Err
}

// BuildStats aggregates counters from one build.
type BuildStats struct {
	// FilesProcessed is the number of parse results turned into nodes.
	FilesProcessed int

	// FilesFailed is the number of parse results rejected outright.
	FilesFailed int

	// NodesCreated and EdgesCreated count successful insertions.
	NodesCreated int
	EdgesCreated int

	// PlaceholderNodes counts synthesized external/unresolved targets.
	PlaceholderNodes int

	// CallEdgesResolved and CallEdgesUnresolved split call-sites by
	// resolution outcome. Unresolved call-sites still produce edges
	// (EdgeTypeUnresolved to a placeholder), never silent drops.
	CallEdgesResolved   int
	CallEdgesUnresolved int

	// AmbiguousResolves counts resolutions with more than one candidate
	// after all tie-breaks.
	AmbiguousResolves int

	// DurationMilli and DurationMicro measure the build wall time.
	DurationMilli int64
	DurationMicro int64
}

// BuildResult is the outcome of one Builder.Build call.
//
// The graph is always present, possibly partial: per-file failures are
// isolated into FileErrors and never abort the rest of the build.
type BuildResult struct {
	// Graph is the built graph, frozen unless Incomplete.
	Graph *Graph

	// FileErrors lists per-file diagnostics.
	FileErrors []FileError

	// EdgeErrors lists edges that could not be created.
	EdgeErrors []EdgeError

	// Incomplete is true when the build stopped early (cancellation).
	Incomplete bool

	// Stats carries build counters.
	Stats BuildStats
}

// Success reports a complete build with no per-file failures.
func (r *BuildResult) Success() bool {
	return !r.Incomplete && len(r.FileErrors) == 0
}
