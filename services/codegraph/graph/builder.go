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
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/ast"
)

// Default builder configuration values.
const (
	// DefaultWorkerCount is the default number of parallel workers for
	// corpus builds. Set to 0 to use runtime.NumCPU().
	DefaultWorkerCount = 0

	// maxInheritanceDepth bounds inheritance chain walks. Prevents
	// infinite loops on circular extends declarations; 10 is generous
	// for any realistic class hierarchy.
	maxInheritanceDepth = 10
)

// ProgressPhase indicates which phase of building is in progress.
type ProgressPhase int

const (
	// ProgressPhaseCollecting indicates symbols are being collected as nodes.
	ProgressPhaseCollecting ProgressPhase = iota

	// ProgressPhaseExtractingEdges indicates edges are being extracted.
	ProgressPhaseExtractingEdges

	// ProgressPhaseFinalizing indicates the graph is being finalized.
	ProgressPhaseFinalizing
)

// String returns the string representation of the ProgressPhase.
func (p ProgressPhase) String() string {
	switch p {
	case ProgressPhaseCollecting:
		return "collecting"
	case ProgressPhaseExtractingEdges:
		return "extracting_edges"
	case ProgressPhaseFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// BuildProgress contains progress information during a build.
type BuildProgress struct {
	// Phase is the current build phase.
	Phase ProgressPhase

	// FilesTotal is the total number of files to process.
	FilesTotal int

	// FilesProcessed is the number of files processed so far.
	FilesProcessed int

	// NodesCreated is the number of nodes created so far.
	NodesCreated int

	// EdgesCreated is the number of edges created so far.
	EdgesCreated int
}

// ProgressFunc is a callback function for build progress updates.
type ProgressFunc func(progress BuildProgress)

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// Unit names the repository unit being built (project root or file
	// path). Becomes Graph.Unit.
	Unit string

	// WorkerCount is the number of parallel workers for corpus builds.
	// Default: runtime.NumCPU()
	WorkerCount int

	// ProgressCallback is called periodically with build progress.
	// May be nil.
	ProgressCallback ProgressFunc

	// MaxNodes is the maximum number of nodes (passed to Graph).
	MaxNodes int

	// MaxEdges is the maximum number of edges (passed to Graph).
	MaxEdges int
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		WorkerCount: runtime.NumCPU(),
		MaxNodes:    DefaultMaxNodes,
		MaxEdges:    DefaultMaxEdges,
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithUnit sets the repository unit name.
func WithUnit(unit string) BuilderOption {
	return func(o *BuilderOptions) {
		o.Unit = unit
	}
}

// WithWorkerCount sets the number of parallel workers.
func WithWorkerCount(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.WorkerCount = n
	}
}

// WithProgressCallback sets the progress callback function.
func WithProgressCallback(fn ProgressFunc) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProgressCallback = fn
	}
}

// WithBuilderMaxNodes sets the maximum number of nodes.
func WithBuilderMaxNodes(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxNodes = n
	}
}

// WithBuilderMaxEdges sets the maximum number of edges.
func WithBuilderMaxEdges(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxEdges = n
	}
}

// Builder constructs code graphs from parsed AST results.
//
// The builder is stateless and can be reused across multiple builds.
// Each Build() call creates a new graph.
//
// Thread Safety:
//
//	Builder is safe for concurrent use. Each Build() call operates
//	independently with its own internal state.
type Builder struct {
	options BuilderOptions
}

// NewBuilder creates a new Builder with the given options.
//
// Example:
//
//	builder := NewBuilder(
//	    WithUnit("/path/to/project"),
//	    WithWorkerCount(8),
//	)
func NewBuilder(opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if options.WorkerCount <= 0 {
		options.WorkerCount = runtime.NumCPU()
	}

	return &Builder{
		options: options,
	}
}

// buildState holds mutable state during a single build operation.
type buildState struct {
	graph         *Graph
	result        *BuildResult
	symbolsByID   map[string]*ast.Symbol
	symbolsByName map[string][]*ast.Symbol
	fileImports   map[string][]ast.Import // filePath -> imports
	placeholders  map[string]*Node        // external ID -> placeholder node
	mu            sync.Mutex              // protects placeholders
	startTime     time.Time

	// fileNodes maps a file path to its synthesized file symbol ID.
	// Import, export, and top-level containment edges hang off these.
	fileNodes map[string]string

	// packageNodes maps a package key (language:dir:name) to the
	// synthesized package symbol ID. Only Go gets package nodes; other
	// languages treat the file as the module boundary.
	packageNodes map[string]string

	// filePackage maps a file path to its package node ID, if any.
	filePackage map[string]string

	// symbolParent maps a child symbol ID to its parent symbol ID.
	// Built during collectPhase to enable O(1) method -> owning class
	// lookup during this/self call resolution.
	symbolParent map[string]string

	// classExtends maps a class/struct name to its parent class name.
	// Built from Metadata.Extends during collectPhase.
	classExtends map[string]string

	// importNameMap maps filePath -> localName -> importEntry. Built
	// from fileImports after collectPhase. Enables import-aware call
	// resolution for from-style and named imports.
	importNameMap map[string]map[string]importEntry

	// moduleAliasMap maps filePath -> local module alias -> module
	// path. Covers "import numpy as np" and Go package identifiers so
	// receiver-qualified calls resolve across files.
	moduleAliasMap map[string]map[string]string
}

// importEntry represents a single imported name with its source module
// path and original name (for aliased imports).
//
// For `from pandas.core import merge as pd_merge`:
//   - ModulePath: "pandas.core"
//   - OriginalName: "merge"
//
// The importNameMap key would be "pd_merge" (the local name used in code).
type importEntry struct {
	ModulePath   string
	OriginalName string
}

// Build constructs a graph from the given parse results.
//
// Description:
//
//	Two-pass construction. Pass 1 (collect) validates results and adds
//	every declared symbol as a node, together with synthesized file and
//	package nodes. Pass 2 (extract) resolves call-sites, references,
//	imports, and type relations against the collected symbol table and
//	adds typed edges; references that fail resolution produce
//	placeholder nodes and unresolved edges rather than disappearing.
//
//	The build is resilient to individual file failures: a malformed
//	file contributes whatever its parseable prefix declared plus a
//	FileError diagnostic, and never aborts the rest of the corpus.
//
// Inputs:
//
//	ctx - Context for cancellation. Build checks context per file.
//	results - Parse results from AST parsing. Nil entries are reported.
//
// Outputs:
//
//	*BuildResult - Contains the graph, any errors, and build statistics.
//	error - Non-nil only for fatal errors (cancellation returns a
//	partial result with Incomplete set).
func (b *Builder) Build(ctx context.Context, results []*ast.ParseResult) (*BuildResult, error) {
	ctx, span := startBuildSpan(ctx, b.options.Unit, len(results))
	defer span.End()

	state := &buildState{
		graph: NewGraph(b.options.Unit,
			WithMaxNodes(b.options.MaxNodes),
			WithMaxEdges(b.options.MaxEdges),
		),
		result: &BuildResult{
			FileErrors: make([]FileError, 0),
			EdgeErrors: make([]EdgeError, 0),
		},
		symbolsByID:    make(map[string]*ast.Symbol),
		symbolsByName:  make(map[string][]*ast.Symbol),
		fileImports:    make(map[string][]ast.Import),
		placeholders:   make(map[string]*Node),
		fileNodes:      make(map[string]string),
		packageNodes:   make(map[string]string),
		filePackage:    make(map[string]string),
		symbolParent:   make(map[string]string),
		classExtends:   make(map[string]string),
		importNameMap:  make(map[string]map[string]importEntry),
		moduleAliasMap: make(map[string]map[string]string),
		startTime:      time.Now(),
	}
	state.result.Graph = state.graph

	// Phase 1: Collect symbols as nodes
	if err := b.collectPhase(ctx, state, results); err != nil {
		return b.finishIncomplete(ctx, span, state), nil
	}

	b.buildImportNameMap(state)

	// Phase 2: Extract edges
	if err := b.extractEdgesPhase(ctx, state, results); err != nil {
		return b.finishIncomplete(ctx, span, state), nil
	}

	// Phase 3: Finalize
	state.graph.Freeze()
	duration := time.Since(state.startTime)
	state.result.Stats.DurationMilli = duration.Milliseconds()
	state.result.Stats.DurationMicro = duration.Microseconds()

	b.reportProgress(state, ProgressPhaseFinalizing, len(results), len(results))

	setBuildSpanResult(span, state.result.Stats.NodesCreated, state.result.Stats.EdgesCreated, false)
	recordBuildMetrics(ctx, duration, state.result.Stats.NodesCreated, state.result.Stats.EdgesCreated, true)
	recordCallEdgeMetrics(ctx,
		state.result.Stats.CallEdgesResolved,
		state.result.Stats.CallEdgesUnresolved,
	)

	return state.result, nil
}

// finishIncomplete stamps a cancelled build and records failure metrics.
func (b *Builder) finishIncomplete(ctx context.Context, span trace.Span, state *buildState) *BuildResult {
	state.result.Incomplete = true
	duration := time.Since(state.startTime)
	state.result.Stats.DurationMilli = duration.Milliseconds()
	state.result.Stats.DurationMicro = duration.Microseconds()
	setBuildSpanResult(span, state.result.Stats.NodesCreated, state.result.Stats.EdgesCreated, true)
	recordBuildMetrics(ctx, duration, state.result.Stats.NodesCreated, state.result.Stats.EdgesCreated, false)
	return state.result
}

// collectPhase validates parse results and adds symbols as nodes.
//
// Each accepted file gets a synthesized file node; Go files also get a
// per-directory package node. A parse result carrying syntax errors is
// still collected (partial graph) but contributes a MalformedSourceError
// diagnostic.
func (b *Builder) collectPhase(ctx context.Context, state *buildState, results []*ast.ParseResult) error {
	for i, r := range results {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := b.validateParseResult(r); err != nil {
			filePath := fmt.Sprintf("result[%d]", i)
			if r != nil && r.FilePath != "" {
				filePath = r.FilePath
			}
			state.result.FileErrors = append(state.result.FileErrors, FileError{
				FilePath: filePath,
				Err: &MalformedSourceError{
					FilePath: filePath,
					Reason:   "rejected parse result",
					Err:      err,
				},
			})
			state.result.Stats.FilesFailed++
			continue
		}

		// Syntax errors degrade to a diagnostic; the parseable prefix
		// still contributes structure.
		if len(r.Errors) > 0 {
			state.result.FileErrors = append(state.result.FileErrors, FileError{
				FilePath: r.FilePath,
				Err: &MalformedSourceError{
					FilePath: r.FilePath,
					Reason:   fmt.Sprintf("syntax errors (%d), partial symbols only", len(r.Errors)),
				},
			})
		}

		state.fileImports[r.FilePath] = r.Imports

		b.addFileNode(state, r)

		for _, sym := range r.Symbols {
			if sym == nil {
				continue
			}

			if err := b.addSymbolNode(state, sym); err != nil {
				state.result.FileErrors = append(state.result.FileErrors, FileError{
					FilePath: r.FilePath,
					Err:      fmt.Errorf("add node %s: %w", sym.ID, err),
				})
				continue
			}

			b.addChildSymbols(state, sym.Children, sym.ID)
		}

		state.result.Stats.FilesProcessed++
		b.reportProgress(state, ProgressPhaseCollecting, len(results), i+1)
	}

	return nil
}

// addFileNode synthesizes the file node and, for Go, the package node.
func (b *Builder) addFileNode(state *buildState, r *ast.ParseResult) {
	lineCount := r.LineCount
	if lineCount < 1 {
		lineCount = 1
	}

	pkgName := ""
	for _, sym := range r.Symbols {
		if sym != nil && sym.Package != "" {
			pkgName = sym.Package
			break
		}
	}

	fileSym := &ast.Symbol{
		ID:        ast.GenerateID(r.FilePath, 0, r.FilePath),
		Name:      baseName(r.FilePath),
		Kind:      ast.SymbolKindFile,
		FilePath:  r.FilePath,
		Language:  r.Language,
		Package:   pkgName,
		StartLine: 1,
		EndLine:   lineCount,
	}
	if _, err := state.graph.AddNode(fileSym); err != nil {
		slog.Warn("file node rejected",
			slog.String("file", r.FilePath),
			slog.String("error", err.Error()),
		)
		return
	}
	state.symbolsByID[fileSym.ID] = fileSym
	state.fileNodes[r.FilePath] = fileSym.ID
	state.result.Stats.NodesCreated++

	// Go packages span directories; one node per (dir, name).
	if r.Language == "go" && pkgName != "" {
		dir := extractDir(r.FilePath)
		key := "go:" + dir + ":" + pkgName
		pkgID, exists := state.packageNodes[key]
		if !exists {
			pkgSym := &ast.Symbol{
				ID:        ast.GenerateID(dir, 0, "package:"+pkgName),
				Name:      pkgName,
				Kind:      ast.SymbolKindPackage,
				FilePath:  dir,
				Language:  r.Language,
				Package:   pkgName,
				StartLine: 1,
				EndLine:   1,
			}
			if _, err := state.graph.AddNode(pkgSym); err == nil {
				state.symbolsByID[pkgSym.ID] = pkgSym
				state.packageNodes[key] = pkgSym.ID
				pkgID = pkgSym.ID
				state.result.Stats.NodesCreated++
			}
		}
		if pkgID != "" {
			state.filePackage[r.FilePath] = pkgID
		}
	}
}

// addSymbolNode adds one symbol to the graph and all resolution indexes.
func (b *Builder) addSymbolNode(state *buildState, sym *ast.Symbol) error {
	if _, err := state.graph.AddNode(sym); err != nil {
		return err
	}

	state.symbolsByID[sym.ID] = sym
	state.symbolsByName[sym.Name] = append(state.symbolsByName[sym.Name], sym)
	state.result.Stats.NodesCreated++

	if sym.Metadata != nil && sym.Metadata.Extends != "" {
		state.classExtends[sym.Name] = sym.Metadata.Extends
	}

	return nil
}

// addChildSymbols recursively adds child symbols to the graph.
// parentID tracks the owning symbol for reverse parent lookup.
func (b *Builder) addChildSymbols(state *buildState, children []*ast.Symbol, parentID string) {
	for _, child := range children {
		if child == nil {
			continue
		}

		if err := b.addSymbolNode(state, child); err != nil {
			// Child nodes are optional; keep going.
			continue
		}

		if parentID != "" {
			state.symbolParent[child.ID] = parentID
		}

		b.addChildSymbols(state, child.Children, child.ID)
	}
}

// ===== Edge Extraction =====

// extractEdgesPhase creates edges for all symbol relationships.
func (b *Builder) extractEdgesPhase(ctx context.Context, state *buildState, results []*ast.ParseResult) error {
	for i, r := range results {
		if err := ctx.Err(); err != nil {
			return err
		}

		if r == nil || state.fileNodes[r.FilePath] == "" {
			continue
		}

		b.extractFileEdges(ctx, state, r)

		b.reportProgress(state, ProgressPhaseExtractingEdges, len(results), i+1)
	}

	return nil
}

// extractFileEdges extracts all edge types from a single file's parse
// result: containment, imports, exports, then per-symbol relations.
func (b *Builder) extractFileEdges(ctx context.Context, state *buildState, r *ast.ParseResult) {
	fileID := state.fileNodes[r.FilePath]

	// Package -> file containment (Go).
	if pkgID := state.filePackage[r.FilePath]; pkgID != "" {
		b.addEdge(state, pkgID, fileID, EdgeTypeContains, 0)
	}

	b.extractImportEdges(ctx, state, r, fileID)

	for _, sym := range r.Symbols {
		if sym == nil {
			continue
		}

		// File -> top-level symbol containment.
		b.addEdge(state, fileID, sym.ID, EdgeTypeContains, sym.StartLine)

		// File -> symbol export marker for module-scoped languages.
		if sym.Exported && (r.Language == "javascript" || r.Language == "typescript") {
			b.addEdge(state, fileID, sym.ID, EdgeTypeExports, sym.StartLine)
		}

		b.extractSymbolEdges(ctx, state, sym)
		b.extractChildEdges(ctx, state, sym)
	}
}

// extractChildEdges recursively extracts containment and relation edges
// from child symbols.
func (b *Builder) extractChildEdges(ctx context.Context, state *buildState, parent *ast.Symbol) {
	for _, child := range parent.Children {
		if child == nil {
			continue
		}
		b.addEdge(state, parent.ID, child.ID, EdgeTypeContains, child.StartLine)
		b.extractSymbolEdges(ctx, state, child)
		b.extractChildEdges(ctx, state, child)
	}
}

// extractImportEdges creates IMPORTS edges from the file node to each
// imported module, resolving project-internal targets where possible.
//
// Description:
//
//	An import of a module that exists in the corpus resolves to that
//	module's package or file node; anything else gets a placeholder
//	node. Either way the reference is preserved. Go imports that
//	resolve internally additionally produce a package-to-package
//	DEPENDS_ON edge.
func (b *Builder) extractImportEdges(ctx context.Context, state *buildState, r *ast.ParseResult, fileID string) {
	if len(r.Imports) == 0 {
		return
	}

	_, span := tracer.Start(ctx, "Builder.extractImportEdges",
		trace.WithAttributes(
			attribute.String("file", r.FilePath),
			attribute.Int("import_count", len(r.Imports)),
		),
	)
	defer span.End()

	edgesCreated := 0
	edgesFailed := 0

	for i, imp := range r.Imports {
		// Check cancellation every 10 imports for responsiveness.
		if i > 0 && i%10 == 0 && ctx.Err() != nil {
			span.SetAttributes(
				attribute.Bool("cancelled", true),
				attribute.Int("processed_before_cancel", i),
			)
			recordImportEdgeMetrics(ctx, edgesCreated, edgesFailed)
			return
		}

		targetID := b.resolveImportTarget(state, r, imp)
		if targetID == "" {
			name := lastPathSegment(imp.Path)
			if name == "" {
				name = imp.Path
			}
			targetID = b.getOrCreatePlaceholder(state, imp.Path, name)
		}

		if b.addEdgeReporting(state, fileID, targetID, EdgeTypeImports, imp.Line) {
			edgesCreated++
		} else {
			edgesFailed++
		}

		// Go package dependency aggregate.
		if r.Language == "go" {
			srcPkg := state.filePackage[r.FilePath]
			if srcPkg != "" {
				if targetSym := state.symbolsByID[targetID]; targetSym != nil && targetSym.Kind == ast.SymbolKindPackage {
					b.addEdge(state, srcPkg, targetID, EdgeTypeDependsOn, imp.Line)
				}
			}
		}
	}

	span.SetAttributes(
		attribute.Int("edges_created", edgesCreated),
		attribute.Int("edges_failed", edgesFailed),
	)
	recordImportEdgeMetrics(ctx, edgesCreated, edgesFailed)
}

// resolveImportTarget maps an import path to a project-internal node ID,
// or empty when the import is external to the corpus.
func (b *Builder) resolveImportTarget(state *buildState, r *ast.ParseResult, imp ast.Import) string {
	switch r.Language {
	case "go":
		// Internal Go imports resolve when the importing corpus carries
		// a package whose directory is a suffix of the import path. The
		// module prefix is unknown here, so this is a suffix heuristic;
		// it holds for corpus-relative file paths.
		slash := strings.LastIndex(imp.Path, "/")
		pkgName := imp.Path
		if slash >= 0 {
			pkgName = imp.Path[slash+1:]
		}
		for key, id := range state.packageNodes {
			suffix := ":" + pkgName
			if !strings.HasSuffix(key, suffix) {
				continue
			}
			dir := strings.TrimPrefix(strings.TrimSuffix(key, suffix), "go:")
			if dir == imp.Path || strings.HasSuffix(imp.Path, "/"+dir) || dir == pkgName {
				return id
			}
		}
		return ""

	case "python":
		fragment := strings.ReplaceAll(strings.TrimLeft(imp.Path, "."), ".", "/")
		if fragment == "" {
			return ""
		}
		for filePath, id := range state.fileNodes {
			if matchesModulePath(filePath, fragment) {
				return id
			}
		}
		return ""

	case "javascript", "typescript":
		if !imp.IsRelative {
			return ""
		}
		resolved := joinRelative(extractDir(r.FilePath), imp.Path)
		for _, ext := range []string{"", ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", "/index.ts", "/index.js"} {
			if id, ok := state.fileNodes[resolved+ext]; ok {
				return id
			}
		}
		return ""
	}

	return ""
}

// extractSymbolEdges extracts relation edges for a single symbol.
func (b *Builder) extractSymbolEdges(ctx context.Context, state *buildState, sym *ast.Symbol) {
	switch sym.Kind {
	case ast.SymbolKindMethod:
		// Go methods are parsed at top level with a Receiver; attach
		// them to their type so the containment tree matches nested
		// languages.
		if sym.Receiver != "" && state.symbolParent[sym.ID] == "" {
			b.extractReceiverContainment(state, sym)
		}
		b.extractBodyEdges(ctx, state, sym)

	case ast.SymbolKindFunction, ast.SymbolKindTest, ast.SymbolKindClosure, ast.SymbolKindLambda:
		b.extractBodyEdges(ctx, state, sym)

	case ast.SymbolKindStruct, ast.SymbolKindClass:
		b.extractTypeRelationEdges(state, sym)

	case ast.SymbolKindInterface, ast.SymbolKindTrait:
		b.extractInterfaceExtensionEdges(state, sym)
	}

	b.extractReferenceEdges(state, sym)
}

// extractReceiverContainment creates a CONTAINS edge from a method's
// receiver type to the method, resolving the type across files.
func (b *Builder) extractReceiverContainment(state *buildState, sym *ast.Symbol) {
	receiverName := strings.TrimPrefix(sym.Receiver, "*")
	targets := b.resolveSymbolByName(state, receiverName, sym.FilePath)

	var typeID string
	for _, id := range targets {
		if owner := state.symbolsByID[id]; owner != nil {
			switch owner.Kind {
			case ast.SymbolKindStruct, ast.SymbolKindClass, ast.SymbolKindInterface, ast.SymbolKindTypeAlias:
				typeID = id
			}
		}
		if typeID != "" {
			break
		}
	}
	if typeID == "" {
		typeID = b.getOrCreatePlaceholder(state, sym.Package, receiverName)
	}

	b.addEdgeReporting(state, typeID, sym.ID, EdgeTypeContains, sym.StartLine)

	if len(targets) > 1 {
		state.result.Stats.AmbiguousResolves++
	}
}

// extractBodyEdges creates edges for everything recorded inside a
// callable's body: calls, instantiations, reads/writes, returns, throws.
func (b *Builder) extractBodyEdges(ctx context.Context, state *buildState, sym *ast.Symbol) {
	if len(sym.Calls) > 0 {
		b.extractCallEdges(ctx, state, sym)
	}
	if len(sym.Refs) > 0 {
		b.extractRefEdges(state, sym)
	}
	if sym.Metadata == nil {
		return
	}
	b.extractNamedTargets(state, sym, sym.Metadata.ReturnTypes, EdgeTypeReturns, true)
	b.extractNamedTargets(state, sym, sym.Metadata.Throws, EdgeTypeThrows, true)
	b.extractInstantiationEdges(state, sym)
}

// extractCallEdges creates CALLS edges for each recorded call-site.
//
// Description:
//
//	Resolved targets of type-like kind produce INSTANTIATES edges
//	(constructor calls); resolved callables produce CALLS. A call-site
//	whose target cannot be resolved is never dropped: it produces a
//	placeholder node and an UNRESOLVED edge so downstream layers see
//	every outgoing reference.
func (b *Builder) extractCallEdges(ctx context.Context, state *buildState, sym *ast.Symbol) {
	_, span := tracer.Start(ctx, "Builder.extractCallEdges",
		trace.WithAttributes(
			attribute.String("symbol.id", sym.ID),
			attribute.String("symbol.name", sym.Name),
			attribute.Int("call_sites.count", len(sym.Calls)),
		),
	)
	defer span.End()

	callsResolved := 0
	callsUnresolved := 0

	for _, call := range sym.Calls {
		if call.Callee == "" {
			continue
		}

		targetID := b.resolveCallTarget(state, call, sym)

		// Recursive self-calls carry no extra structure.
		if targetID == sym.ID {
			continue
		}

		if targetID == "" {
			name := call.Callee
			if call.Receiver != "" {
				name = call.Receiver + "." + call.Callee
			}
			placeholderID := b.getOrCreatePlaceholder(state, "", name)
			b.addEdgeReporting(state, sym.ID, placeholderID, EdgeTypeUnresolved, call.Line)
			callsUnresolved++
			continue
		}

		edgeType := EdgeTypeCalls
		if target := state.symbolsByID[targetID]; target != nil {
			switch target.Kind {
			case ast.SymbolKindStruct, ast.SymbolKindClass:
				edgeType = EdgeTypeInstantiates
			}
		}

		if !b.validateEdgeType(state, sym.ID, targetID, edgeType) {
			continue
		}

		b.addEdgeReporting(state, sym.ID, targetID, edgeType, call.Line)
		callsResolved++
	}

	state.result.Stats.CallEdgesResolved += callsResolved
	state.result.Stats.CallEdgesUnresolved += callsUnresolved

	span.SetAttributes(
		attribute.Int("calls.resolved", callsResolved),
		attribute.Int("calls.unresolved", callsUnresolved),
	)
}

// extractRefEdges creates READS/WRITES edges for recorded variable
// references.
//
// Adapters over-collect: most recorded names are locals. A reference
// only becomes an edge when it resolves to a declared variable,
// constant, or field in the same file or package; everything else is
// discarded as local noise.
func (b *Builder) extractRefEdges(state *buildState, sym *ast.Symbol) {
	for _, ref := range sym.Refs {
		if ref.Name == "" {
			continue
		}

		var targetID string
		for _, id := range b.resolveSymbolByName(state, ref.Name, sym.FilePath) {
			target := state.symbolsByID[id]
			if target == nil || id == sym.ID {
				continue
			}
			switch target.Kind {
			case ast.SymbolKindVariable, ast.SymbolKindField:
				targetID = id
			case ast.SymbolKindConstant:
				if !ref.Write {
					targetID = id
				}
			}
			if targetID != "" {
				break
			}
		}
		if targetID == "" {
			continue
		}

		edgeType := EdgeTypeReads
		if ref.Write {
			edgeType = EdgeTypeWrites
		}
		b.addEdgeReporting(state, sym.ID, targetID, edgeType, ref.Line)
	}
}

// extractInstantiationEdges creates INSTANTIATES edges for types named
// in the symbol's metadata (composite literals, new expressions).
func (b *Builder) extractInstantiationEdges(state *buildState, sym *ast.Symbol) {
	for _, name := range sym.Metadata.Instantiates {
		typeName := bareTargetName(name)
		if typeName == "" || isBuiltinType(sym.Language, typeName) {
			continue
		}

		targets := b.resolveSymbolByName(state, typeName, sym.FilePath)
		if len(targets) == 0 {
			placeholderID := b.getOrCreatePlaceholder(state, "", typeName)
			b.addEdgeReporting(state, sym.ID, placeholderID, EdgeTypeUnresolved, sym.StartLine)
			continue
		}

		b.addEdgeReporting(state, sym.ID, targets[0], EdgeTypeInstantiates, sym.StartLine)
		if len(targets) > 1 {
			state.result.Stats.AmbiguousResolves++
		}
	}
}

// extractNamedTargets resolves a list of metadata type names into edges
// of the given kind. With placeholderFallback, unresolved names still
// produce edges to placeholder nodes; otherwise they are skipped.
func (b *Builder) extractNamedTargets(state *buildState, sym *ast.Symbol, names []string, edgeType EdgeType, placeholderFallback bool) {
	for _, name := range names {
		typeName := bareTargetName(name)
		if typeName == "" || isBuiltinType(sym.Language, typeName) {
			continue
		}

		targets := b.resolveSymbolByName(state, typeName, sym.FilePath)
		targets = filterOutID(targets, sym.ID)
		if len(targets) == 0 {
			if !placeholderFallback {
				continue
			}
			targets = []string{b.getOrCreatePlaceholder(state, "", typeName)}
		}

		b.addEdgeReporting(state, sym.ID, targets[0], edgeType, sym.StartLine)
		if len(targets) > 1 {
			state.result.Stats.AmbiguousResolves++
		}
	}
}

// extractTypeRelationEdges creates INHERITS and IMPLEMENTS edges for a
// struct or class.
//
// Description:
//
//	Metadata.Extends always produces INHERITS. Entries in
//	Metadata.Implements split by what they resolve to: interfaces and
//	traits produce IMPLEMENTS, concrete types produce INHERITS (Go
//	struct embedding, additional Python bases), and unknown targets
//	default to IMPLEMENTS against a placeholder.
func (b *Builder) extractTypeRelationEdges(state *buildState, sym *ast.Symbol) {
	if sym.Metadata == nil {
		return
	}

	if sym.Metadata.Extends != "" {
		base := bareTargetName(sym.Metadata.Extends)
		if base != "" && !isBuiltinType(sym.Language, base) {
			targets := b.resolveSymbolByName(state, base, sym.FilePath)
			targets = filterOutID(targets, sym.ID)
			if len(targets) == 0 {
				targets = []string{b.getOrCreatePlaceholder(state, "", base)}
			}
			b.addEdgeReporting(state, sym.ID, targets[0], EdgeTypeInherits, sym.StartLine)
			if len(targets) > 1 {
				state.result.Stats.AmbiguousResolves++
			}
		}
	}

	for _, ifaceName := range sym.Metadata.Implements {
		name := bareTargetName(ifaceName)
		if name == "" || isBuiltinType(sym.Language, name) {
			continue
		}

		targets := b.resolveSymbolByName(state, name, sym.FilePath)
		targets = filterOutID(targets, sym.ID)

		edgeType := EdgeTypeImplements
		targetID := ""
		for _, id := range targets {
			target := state.symbolsByID[id]
			if target == nil {
				continue
			}
			switch target.Kind {
			case ast.SymbolKindInterface, ast.SymbolKindTrait:
				targetID = id
				edgeType = EdgeTypeImplements
			case ast.SymbolKindStruct, ast.SymbolKindClass, ast.SymbolKindTypeAlias:
				targetID = id
				edgeType = EdgeTypeInherits
			default:
				continue
			}
			break
		}
		if targetID == "" {
			targetID = b.getOrCreatePlaceholder(state, "", name)
			edgeType = EdgeTypeImplements
		}

		if !b.validateEdgeType(state, sym.ID, targetID, edgeType) {
			continue
		}
		b.addEdgeReporting(state, sym.ID, targetID, edgeType, sym.StartLine)
		if len(targets) > 1 {
			state.result.Stats.AmbiguousResolves++
		}
	}
}

// extractInterfaceExtensionEdges creates INHERITS edges for interface
// extension and embedding.
func (b *Builder) extractInterfaceExtensionEdges(state *buildState, sym *ast.Symbol) {
	if sym.Metadata == nil {
		return
	}

	names := make([]string, 0, len(sym.Metadata.Implements)+1)
	if sym.Metadata.Extends != "" {
		names = append(names, sym.Metadata.Extends)
	}
	names = append(names, sym.Metadata.Implements...)

	for _, raw := range names {
		name := bareTargetName(raw)
		if name == "" || isBuiltinType(sym.Language, name) {
			continue
		}

		targets := b.resolveSymbolByName(state, name, sym.FilePath)
		targets = filterOutID(targets, sym.ID)
		if len(targets) == 0 {
			targets = []string{b.getOrCreatePlaceholder(state, "", name)}
		}
		b.addEdgeReporting(state, sym.ID, targets[0], EdgeTypeInherits, sym.StartLine)
	}
}

// extractReferenceEdges creates REFERENCES edges for types and
// decorators the symbol mentions without calling. Resolution-only: a
// mention of an external name is not evidence of project structure, so
// no placeholders are created here.
func (b *Builder) extractReferenceEdges(state *buildState, sym *ast.Symbol) {
	if sym.Metadata == nil {
		return
	}

	names := make([]string, 0, len(sym.Metadata.TypeRefs)+len(sym.Metadata.Decorators))
	names = append(names, sym.Metadata.TypeRefs...)
	names = append(names, sym.Metadata.Decorators...)

	for _, raw := range names {
		name := bareTargetName(raw)
		if name == "" || isBuiltinType(sym.Language, name) {
			continue
		}

		targets := b.resolveSymbolByName(state, name, sym.FilePath)
		targets = filterOutID(targets, sym.ID)
		if len(targets) == 0 {
			continue
		}
		b.addEdgeReporting(state, sym.ID, targets[0], EdgeTypeReferences, sym.StartLine)
	}
}

// ===== Resolution =====

// resolveCallTarget attempts to find the symbol ID for a call-site.
//
// Description:
//
//	Resolution strategies, in order:
//	1. Bare calls: same-file, then same-package, then imported-file
//	   candidates, with import-map disambiguation.
//	2. this/self/cls receivers: the caller's owning class and its
//	   inheritance chain.
//	3. Other receivers: case-insensitive receiver matching (Go naming
//	   convention), then module-alias lookup for package-qualified
//	   calls, then the first method candidate.
//
//	Ties inside a tier break by smallest qualified name, keeping
//	resolution deterministic across builds.
//
// Outputs:
//   - string: The resolved symbol ID, or empty string if unresolved.
func (b *Builder) resolveCallTarget(state *buildState, call ast.CallSite, caller *ast.Symbol) string {
	target := call.Callee

	if call.Receiver == "" {
		candidates := b.resolveSymbolByName(state, target, caller.FilePath)
		// Filter the caller itself so bare recursive names fall through
		// to cross-file candidates instead of dead-ending.
		candidates = filterOutID(candidates, caller.ID)

		if len(candidates) == 0 {
			candidates = filterOutID(b.resolveAllSymbolsByName(state, target), caller.ID)
		}

		if len(candidates) > 0 {
			if resolved := b.resolveViaImportMap(state, target, caller.FilePath); resolved != "" {
				return resolved
			}
			// Prefer callables, then constructable types.
			for _, id := range candidates {
				if sym, ok := state.symbolsByID[id]; ok {
					switch sym.Kind {
					case ast.SymbolKindFunction, ast.SymbolKindMethod, ast.SymbolKindTest:
						return id
					}
				}
			}
			for _, id := range candidates {
				if sym, ok := state.symbolsByID[id]; ok {
					switch sym.Kind {
					case ast.SymbolKindStruct, ast.SymbolKindClass:
						return id
					}
				}
			}
			return candidates[0]
		}

		// Aliased imports: the local name may match no symbol at all.
		return b.resolveViaImportMap(state, target, caller.FilePath)
	}

	candidates := b.resolveSymbolByName(state, target, caller.FilePath)

	if call.Receiver == "this" || call.Receiver == "self" || call.Receiver == "cls" {
		if resolved := b.resolveThisSelfCall(state, candidates, caller); resolved != "" {
			return resolved
		}
	} else {
		if resolved := b.resolveReceiverCaseInsensitive(state, candidates, call.Receiver); resolved != "" {
			return resolved
		}

		// Receiver matching failed on the preferred candidates; widen
		// to every file before giving up.
		allCandidates := b.resolveAllSymbolsByName(state, target)
		if len(allCandidates) > len(candidates) {
			if resolved := b.resolveReceiverCaseInsensitive(state, allCandidates, call.Receiver); resolved != "" {
				return resolved
			}
		}

		// Package-qualified call through a module alias (np.array,
		// pkg.Fn).
		if resolved := b.resolveViaModuleAlias(state, call, caller.FilePath); resolved != "" {
			return resolved
		}
	}

	for _, id := range candidates {
		if sym, ok := state.symbolsByID[id]; ok {
			if sym.Kind == ast.SymbolKindMethod {
				return id
			}
		}
	}

	return ""
}

// resolveThisSelfCall resolves method calls on this/self/cls to the
// caller's owning class, walking the inheritance chain when the class
// itself has no match.
func (b *Builder) resolveThisSelfCall(state *buildState, candidates []string, caller *ast.Symbol) string {
	ownerClassName := b.findOwnerClassName(state, caller)
	if ownerClassName == "" {
		return ""
	}

	classChain := b.buildInheritanceChain(state, ownerClassName)

	for _, className := range classChain {
		for _, id := range candidates {
			sym, ok := state.symbolsByID[id]
			if !ok {
				continue
			}
			if sym.Kind != ast.SymbolKindMethod && sym.Kind != ast.SymbolKindFunction {
				continue
			}

			if sym.Receiver == className {
				return id
			}

			if parentID, hasParent := state.symbolParent[id]; hasParent {
				if parentSym, ok := state.symbolsByID[parentID]; ok && parentSym.Name == className {
					return id
				}
			}
		}
	}

	return ""
}

// resolveReceiverCaseInsensitive matches a call receiver to a method's
// declared receiver type. Go receiver variables are conventionally
// lowercase abbreviations of their types (txn -> Txn, ctx -> Context),
// so the comparison is case-insensitive.
func (b *Builder) resolveReceiverCaseInsensitive(state *buildState, candidates []string, callReceiver string) string {
	for _, id := range candidates {
		sym, ok := state.symbolsByID[id]
		if !ok {
			continue
		}
		if sym.Kind != ast.SymbolKindMethod {
			continue
		}
		if sym.Receiver != "" && strings.EqualFold(callReceiver, strings.TrimPrefix(sym.Receiver, "*")) {
			return id
		}
	}
	return ""
}

// resolveViaModuleAlias resolves receiver-qualified calls through module
// aliases: "np.array()" where the file imported numpy as np, or Go
// "params.Load()" where params is an imported package identifier.
func (b *Builder) resolveViaModuleAlias(state *buildState, call ast.CallSite, callerFile string) string {
	aliases := state.moduleAliasMap[callerFile]
	if aliases == nil {
		return ""
	}
	modulePath, ok := aliases[call.Receiver]
	if !ok {
		return ""
	}

	fragment := strings.ReplaceAll(strings.TrimLeft(modulePath, "."), ".", "/")
	for _, id := range b.resolveAllSymbolsByName(state, call.Callee) {
		sym := state.symbolsByID[id]
		if sym == nil {
			continue
		}
		if matchesModulePath(sym.FilePath, fragment) || strings.HasSuffix(extractDir(sym.FilePath), "/"+lastPathSegment(modulePath)) {
			return id
		}
	}
	return ""
}

// findOwnerClassName finds the class/struct name that owns the given
// method, via the Receiver field (Go, JS) or the parent index (Python,
// TS).
func (b *Builder) findOwnerClassName(state *buildState, method *ast.Symbol) string {
	if method.Receiver != "" {
		return strings.TrimPrefix(method.Receiver, "*")
	}

	if parentID, ok := state.symbolParent[method.ID]; ok {
		if parent, exists := state.symbolsByID[parentID]; exists {
			if parent.Kind == ast.SymbolKindClass || parent.Kind == ast.SymbolKindStruct {
				return parent.Name
			}
		}
	}

	return ""
}

// buildInheritanceChain walks classExtends to build
// [className, parentName, grandparentName, ...], capped at
// maxInheritanceDepth to survive circular declarations.
func (b *Builder) buildInheritanceChain(state *buildState, className string) []string {
	chain := []string{className}
	current := className

	for depth := 0; depth < maxInheritanceDepth; depth++ {
		parent, ok := state.classExtends[current]
		if !ok || parent == "" || parent == current {
			break
		}
		chain = append(chain, parent)
		current = parent
	}

	return chain
}

// resolveSymbolByName returns candidate symbol IDs for a name, in
// priority tiers: same file, then same package, then files imported by
// the current file, then everything else. Each tier is ordered by
// qualified name so resolution is deterministic.
func (b *Builder) resolveSymbolByName(state *buildState, name string, currentFile string) []string {
	candidates := state.symbolsByName[name]
	if len(candidates) == 0 {
		return nil
	}

	var sameFile, samePkg, imported, other []*ast.Symbol

	for _, sym := range candidates {
		switch {
		case sym.FilePath == currentFile:
			sameFile = append(sameFile, sym)
		case samePackage(sym.FilePath, currentFile):
			samePkg = append(samePkg, sym)
		case b.fileImportsTarget(state, currentFile, sym.FilePath):
			imported = append(imported, sym)
		default:
			other = append(other, sym)
		}
	}

	pick := sameFile
	if len(pick) == 0 {
		pick = samePkg
	}
	if len(pick) == 0 {
		pick = imported
	}
	if len(pick) == 0 {
		pick = other
	}

	sort.Slice(pick, func(i, j int) bool {
		qi, qj := pick[i].QualifiedName(), pick[j].QualifiedName()
		if qi != qj {
			return qi < qj
		}
		return pick[i].ID < pick[j].ID
	})

	ids := make([]string, len(pick))
	for i, sym := range pick {
		ids[i] = sym.ID
	}
	return ids
}

// fileImportsTarget reports whether currentFile imports the module that
// targetFile defines, via the module alias map.
func (b *Builder) fileImportsTarget(state *buildState, currentFile, targetFile string) bool {
	aliases := state.moduleAliasMap[currentFile]
	if aliases == nil {
		return false
	}
	for _, modulePath := range aliases {
		fragment := strings.ReplaceAll(strings.TrimLeft(modulePath, "."), ".", "/")
		if fragment != "" && matchesModulePath(targetFile, fragment) {
			return true
		}
	}
	return false
}

// resolveAllSymbolsByName returns every symbol ID matching a name across
// all files, ordered by qualified name.
func (b *Builder) resolveAllSymbolsByName(state *buildState, name string) []string {
	candidates := state.symbolsByName[name]
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]*ast.Symbol, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		qi, qj := sorted[i].QualifiedName(), sorted[j].QualifiedName()
		if qi != qj {
			return qi < qj
		}
		return sorted[i].ID < sorted[j].ID
	})

	ids := make([]string, len(sorted))
	for i, sym := range sorted {
		ids[i] = sym.ID
	}
	return ids
}

// buildImportNameMap builds the name and module-alias lookup tables from
// fileImports. Must run after collectPhase and before edge extraction.
func (b *Builder) buildImportNameMap(state *buildState) {
	entries := 0
	for filePath, imports := range state.fileImports {
		for _, imp := range imports {
			if imp.Path == "" {
				continue
			}

			// Module alias: explicit alias or last path segment.
			alias := imp.Alias
			if alias == "" {
				alias = lastPathSegment(imp.Path)
			}
			if alias != "" && !imp.IsWildcard {
				if state.moduleAliasMap[filePath] == nil {
					state.moduleAliasMap[filePath] = make(map[string]string)
				}
				state.moduleAliasMap[filePath][alias] = imp.Path
			}

			// Named imports: from X import a, b as c.
			if len(imp.Names) == 0 {
				continue
			}
			if state.importNameMap[filePath] == nil {
				state.importNameMap[filePath] = make(map[string]importEntry)
			}
			for _, name := range imp.Names {
				localName, originalName := parseAliasedName(name)
				state.importNameMap[filePath][localName] = importEntry{
					ModulePath:   imp.Path,
					OriginalName: originalName,
				}
				entries++
			}
		}
	}

	if entries > 0 {
		slog.Debug("import name map built",
			slog.Int("entries", entries),
			slog.Int("files", len(state.importNameMap)),
		)
	}
}

// resolveViaImportMap attempts to resolve a bare call target using the
// caller file's named imports.
func (b *Builder) resolveViaImportMap(state *buildState, target string, callerFile string) string {
	fileMap := state.importNameMap[callerFile]
	if fileMap == nil {
		return ""
	}

	entry, ok := fileMap[target]
	if !ok {
		return ""
	}

	fragment := strings.ReplaceAll(strings.TrimLeft(entry.ModulePath, "."), ".", "/")
	for _, id := range b.resolveAllSymbolsByName(state, entry.OriginalName) {
		sym := state.symbolsByID[id]
		if sym != nil && matchesModulePath(sym.FilePath, fragment) {
			return id
		}
	}

	return ""
}

// ===== Placeholders and Validation =====

// getOrCreatePlaceholder returns an existing placeholder node ID or
// creates a new one for an external or unresolved reference.
func (b *Builder) getOrCreatePlaceholder(state *buildState, pkg, name string) string {
	var id string
	if pkg != "" {
		id = fmt.Sprintf("external:%s:%s", pkg, name)
	} else {
		id = fmt.Sprintf("external::%s", name)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if node, exists := state.placeholders[id]; exists {
		return node.ID()
	}

	placeholder := &ast.Symbol{
		ID:       id,
		Name:     name,
		Kind:     ast.SymbolKindExternal,
		Package:  pkg,
		Language: "external",
	}

	node, err := state.graph.AddNode(placeholder)
	if err != nil {
		// Node may already exist from a previous build path.
		return id
	}

	state.symbolsByID[id] = placeholder
	state.placeholders[id] = node
	state.result.Stats.PlaceholderNodes++
	state.result.Stats.NodesCreated++
	return id
}

// validateEdgeType checks if an edge type is plausible for the given
// endpoints. Unknown endpoints pass; only clearly contradictory
// kind combinations are rejected.
func (b *Builder) validateEdgeType(state *buildState, fromID, toID string, edgeType EdgeType) bool {
	fromSym := state.symbolsByID[fromID]
	toSym := state.symbolsByID[toID]

	if fromSym == nil || toSym == nil {
		return true
	}

	switch edgeType {
	case EdgeTypeCalls:
		return isCallable(fromSym.Kind) && isCallTarget(toSym.Kind)
	case EdgeTypeImplements:
		return toSym.Kind == ast.SymbolKindInterface ||
			toSym.Kind == ast.SymbolKindTrait ||
			toSym.Kind == ast.SymbolKindExternal
	case EdgeTypeInherits:
		return fromSym.Kind != ast.SymbolKindFile && fromSym.Kind != ast.SymbolKindPackage
	default:
		return true
	}
}

// isCallable returns true if the kind can be the source of a call edge.
func isCallable(kind ast.SymbolKind) bool {
	switch kind {
	case ast.SymbolKindFunction, ast.SymbolKindMethod, ast.SymbolKindTest,
		ast.SymbolKindClosure, ast.SymbolKindLambda, ast.SymbolKindExternal:
		return true
	}
	return false
}

// isCallTarget returns true if the kind can be the target of a call
// edge. Superset of isCallable: constructor calls target classes,
// structs, and enums.
func isCallTarget(kind ast.SymbolKind) bool {
	if isCallable(kind) {
		return true
	}
	switch kind {
	case ast.SymbolKindClass, ast.SymbolKindStruct, ast.SymbolKindEnum:
		return true
	}
	return false
}

// validateParseResult checks if a ParseResult is usable for building.
// Nil symbols inside a valid result are allowed and skipped.
func (b *Builder) validateParseResult(r *ast.ParseResult) error {
	if r == nil {
		return fmt.Errorf("nil ParseResult")
	}

	if r.FilePath == "" {
		return fmt.Errorf("empty FilePath")
	}

	if strings.Contains(r.FilePath, "..") {
		return fmt.Errorf("FilePath contains path traversal")
	}

	if r.Language == "" {
		return fmt.Errorf("empty Language")
	}

	for i, sym := range r.Symbols {
		if sym == nil {
			continue
		}
		if err := sym.Validate(); err != nil {
			return fmt.Errorf("symbol[%d] (%s): %w", i, sym.Name, err)
		}
	}

	return nil
}

// reportProgress calls the progress callback if configured.
func (b *Builder) reportProgress(state *buildState, phase ProgressPhase, total, processed int) {
	if b.options.ProgressCallback == nil {
		return
	}

	b.options.ProgressCallback(BuildProgress{
		Phase:          phase,
		FilesTotal:     total,
		FilesProcessed: processed,
		NodesCreated:   state.result.Stats.NodesCreated,
		EdgesCreated:   state.result.Stats.EdgesCreated,
	})
}

// addEdge adds an edge, swallowing benign duplicates and recording
// anything else as an EdgeError.
func (b *Builder) addEdge(state *buildState, fromID, toID string, edgeType EdgeType, line int) {
	b.addEdgeReporting(state, fromID, toID, edgeType, line)
}

// addEdgeReporting adds an edge and reports whether a new edge was
// created. Duplicate edges are benign; other failures append to
// EdgeErrors.
func (b *Builder) addEdgeReporting(state *buildState, fromID, toID string, edgeType EdgeType, line int) bool {
	err := state.graph.AddEdge(fromID, toID, edgeType, line)
	if err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			state.result.EdgeErrors = append(state.result.EdgeErrors, EdgeError{
				FromID:   fromID,
				ToID:     toID,
				EdgeType: edgeType,
				Err:      err,
			})
		}
		return false
	}
	state.result.Stats.EdgesCreated++
	return true
}

// ===== Path and Name Helpers =====

// samePackage checks if two files are in the same package, by directory.
func samePackage(file1, file2 string) bool {
	return extractDir(file1) == extractDir(file2)
}

// extractDir extracts the directory from a file path.
func extractDir(path string) string {
	lastSlash := strings.LastIndex(path, "/")
	if lastSlash < 0 {
		return ""
	}
	return path[:lastSlash]
}

// baseName returns the final path segment of a file path.
func baseName(path string) string {
	lastSlash := strings.LastIndex(path, "/")
	if lastSlash < 0 {
		return path
	}
	return path[lastSlash+1:]
}

// lastPathSegment returns the final segment of a slash- or dot-separated
// module path.
func lastPathSegment(path string) string {
	path = strings.TrimRight(path, "/.")
	if i := strings.LastIndexAny(path, "/."); i >= 0 {
		return path[i+1:]
	}
	return path
}

// joinRelative resolves a relative import path against a directory.
func joinRelative(dir, rel string) string {
	rel = strings.TrimPrefix(rel, "./")
	for strings.HasPrefix(rel, "../") {
		rel = strings.TrimPrefix(rel, "../")
		dir = extractDir(dir)
	}
	if dir == "" {
		return rel
	}
	return dir + "/" + rel
}

// matchesModulePath checks if a file path corresponds to a module path
// fragment ("pandas/core/merge" matches ".../pandas/core/merge.py" and
// ".../pandas/core/merge/__init__.py"). Matches at path boundaries only.
func matchesModulePath(filePath string, fragment string) bool {
	if fragment == "" {
		return false
	}
	normalized := filePath
	for _, ext := range []string{".py", ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".go"} {
		normalized = strings.TrimSuffix(normalized, ext)
	}
	normalized = strings.TrimSuffix(normalized, "/__init__")
	normalized = strings.TrimSuffix(normalized, "/index")
	if normalized == fragment {
		return true
	}
	return strings.HasSuffix(normalized, "/"+fragment)
}

// filterOutID returns a copy of ids with the specified id removed.
func filterOutID(ids []string, exclude string) []string {
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			result = append(result, id)
		}
	}
	return result
}

// parseAliasedName splits an import name that may carry an "as" alias.
// For "concat as pd_concat", returns ("pd_concat", "concat"). For
// "merge" (no alias), returns ("merge", "merge").
func parseAliasedName(name string) (localName, originalName string) {
	parts := strings.SplitN(name, " as ", 2)
	originalName = strings.TrimSpace(parts[0])
	localName = originalName
	if len(parts) == 2 {
		localName = strings.TrimSpace(parts[1])
	}
	return localName, originalName
}

// bareTargetName reduces a type expression to a resolvable name:
// strips pointers, slices, generics, and qualification.
func bareTargetName(expr string) string {
	expr = strings.TrimSpace(expr)
	expr = strings.TrimPrefix(expr, "*")
	expr = strings.TrimPrefix(expr, "&")
	for strings.HasPrefix(expr, "[]") {
		expr = expr[2:]
	}
	if strings.HasPrefix(expr, "map[") {
		if close := strings.Index(expr, "]"); close > 0 && close < len(expr)-1 {
			expr = expr[close+1:]
		}
	}
	expr = strings.TrimPrefix(expr, "chan ")
	expr = strings.TrimPrefix(expr, "*")
	if i := strings.IndexAny(expr, "[(<"); i > 0 {
		expr = expr[:i]
	}
	if i := strings.LastIndex(expr, "."); i >= 0 {
		expr = expr[i+1:]
	}
	if strings.ContainsAny(expr, "{}&|, ") {
		return ""
	}
	return expr
}

// isBuiltinType reports whether a name is a language builtin that should
// never become a graph node.
func isBuiltinType(language, name string) bool {
	switch language {
	case "go":
		return goBuiltins[name]
	case "python":
		return pythonBuiltins[name]
	case "javascript", "typescript":
		return jsBuiltins[name]
	}
	return false
}

var goBuiltins = map[string]bool{
	"string": true, "int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"float32": true, "float64": true, "complex64": true, "complex128": true,
	"bool": true, "byte": true, "rune": true, "error": true, "any": true,
}

var pythonBuiltins = map[string]bool{
	"str": true, "int": true, "float": true, "bool": true, "bytes": true,
	"list": true, "dict": true, "set": true, "tuple": true, "frozenset": true,
	"None": true, "object": true, "type": true, "Exception": true, "BaseException": true,
	"ValueError": true, "TypeError": true, "KeyError": true, "IndexError": true,
	"RuntimeError": true, "StopIteration": true, "NotImplementedError": true,
}

var jsBuiltins = map[string]bool{
	"string": true, "number": true, "boolean": true, "object": true, "symbol": true,
	"undefined": true, "null": true, "void": true, "any": true, "unknown": true, "never": true,
	"String": true, "Number": true, "Boolean": true, "Object": true, "Array": true,
	"Promise": true, "Map": true, "Set": true, "Error": true, "TypeError": true,
	"RangeError": true, "Date": true, "RegExp": true, "Function": true,
}
