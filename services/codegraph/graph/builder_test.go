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
	"errors"
	"testing"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/ast"
)

// testSymbol creates a minimal valid symbol for testing.
func testSymbol(name string, kind ast.SymbolKind, filePath string, line int) *ast.Symbol {
	return &ast.Symbol{
		ID:        ast.GenerateID(filePath, line, name),
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		Language:  "go",
		StartLine: line,
		EndLine:   line + 5,
	}
}

// testParseResult creates a parse result wrapping the given symbols.
func testParseResult(filePath string, symbols []*ast.Symbol, imports []ast.Import) *ast.ParseResult {
	return &ast.ParseResult{
		FilePath:  filePath,
		Language:  "go",
		Symbols:   symbols,
		Imports:   imports,
		LineCount: 100,
	}
}

// hasEdge reports whether the frozen graph contains an edge of the given
// type between the two symbol IDs.
func hasEdge(t *testing.T, g *Graph, fromID, toID string, et EdgeType) bool {
	t.Helper()
	from, ok := g.GetNode(fromID)
	if !ok {
		return false
	}
	for _, ei := range g.OutEdges(from.Index) {
		e := g.Edges()[ei]
		if e.Type == et && g.NodeAt(e.To).ID() == toID {
			return true
		}
	}
	return false
}

func TestNewBuilder_Defaults(t *testing.T) {
	builder := NewBuilder()
	if builder.options.WorkerCount <= 0 {
		t.Error("expected positive default worker count")
	}
	if builder.options.MaxNodes != DefaultMaxNodes {
		t.Errorf("expected MaxNodes=%d, got %d", DefaultMaxNodes, builder.options.MaxNodes)
	}
	if builder.options.MaxEdges != DefaultMaxEdges {
		t.Errorf("expected MaxEdges=%d, got %d", DefaultMaxEdges, builder.options.MaxEdges)
	}
}

func TestBuilder_Build_Basic(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	symbols := []*ast.Symbol{
		testSymbol("main", ast.SymbolKindFunction, "main.go", 1),
		testSymbol("helper", ast.SymbolKindFunction, "main.go", 15),
		testSymbol("Config", ast.SymbolKindStruct, "main.go", 30),
	}

	parseResult := testParseResult("main.go", symbols, nil)
	result, err := builder.Build(ctx, []*ast.ParseResult{parseResult})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected successful build, got errors: %v", result.FileErrors)
	}

	// Three symbols plus the synthesized file node.
	if result.Graph.NodeCount() != 4 {
		t.Errorf("expected 4 nodes, got %d", result.Graph.NodeCount())
	}

	// Verify all symbols are in the graph
	for _, sym := range symbols {
		node, ok := result.Graph.GetNode(sym.ID)
		if !ok {
			t.Errorf("symbol %s not found in graph", sym.ID)
			continue
		}
		if node.Symbol.Name != sym.Name {
			t.Errorf("expected symbol name %s, got %s", sym.Name, node.Symbol.Name)
		}
	}

	// The file node contains each top-level symbol.
	fileID := ast.GenerateID("main.go", 0, "main.go")
	for _, sym := range symbols {
		if !hasEdge(t, result.Graph, fileID, sym.ID, EdgeTypeContains) {
			t.Errorf("expected contains edge from file to %s", sym.Name)
		}
	}

	if result.Stats.NodesCreated != 4 {
		t.Errorf("expected NodesCreated=4, got %d", result.Stats.NodesCreated)
	}
	if result.Stats.FilesProcessed != 1 {
		t.Errorf("expected FilesProcessed=1, got %d", result.Stats.FilesProcessed)
	}
}

func TestBuilder_Build_GoPackageNode(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	fn := testSymbol("Reverse", ast.SymbolKindFunction, "util/strings.go", 5)
	fn.Package = "util"

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("util/strings.go", []*ast.Symbol{fn}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pkgNodes := result.Graph.NodesByKind(ast.SymbolKindPackage)
	if len(pkgNodes) != 1 {
		t.Fatalf("expected 1 package node, got %d", len(pkgNodes))
	}
	if pkgNodes[0].Symbol.Name != "util" {
		t.Errorf("expected package node named util, got %s", pkgNodes[0].Symbol.Name)
	}

	// Package contains file, file contains function.
	fileID := ast.GenerateID("util/strings.go", 0, "util/strings.go")
	if !hasEdge(t, result.Graph, pkgNodes[0].ID(), fileID, EdgeTypeContains) {
		t.Error("expected contains edge from package to file")
	}
	if !hasEdge(t, result.Graph, fileID, fn.ID, EdgeTypeContains) {
		t.Error("expected contains edge from file to function")
	}
}

func TestBuilder_Build_WithImports(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	symbols := []*ast.Symbol{
		testSymbol("main", ast.SymbolKindFunction, "main.go", 1),
	}
	imports := []ast.Import{
		{Path: "fmt", Alias: "fmt", Line: 3},
		{Path: "github.com/pkg/errors", Alias: "errors", Line: 4},
	}

	parseResult := testParseResult("main.go", symbols, imports)
	result, err := builder.Build(ctx, []*ast.ParseResult{parseResult})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should have placeholder nodes for external imports
	if result.Stats.PlaceholderNodes != 2 {
		t.Errorf("expected 2 placeholder nodes for imports, got %d", result.Stats.PlaceholderNodes)
	}

	fmtPlaceholder, ok := result.Graph.GetNode("external:fmt:fmt")
	if !ok {
		t.Fatal("expected placeholder node for fmt import")
	}
	if fmtPlaceholder.Symbol.Kind != ast.SymbolKindExternal {
		t.Errorf("expected external kind, got %s", fmtPlaceholder.Symbol.Kind)
	}

	fileID := ast.GenerateID("main.go", 0, "main.go")
	if !hasEdge(t, result.Graph, fileID, "external:fmt:fmt", EdgeTypeImports) {
		t.Error("expected imports edge from file to fmt placeholder")
	}
	if !hasEdge(t, result.Graph, fileID, "external:github.com/pkg/errors:errors", EdgeTypeImports) {
		t.Error("expected imports edge from file to errors placeholder")
	}
}

func TestBuilder_Build_PlaceholderDeduplication(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	// Multiple files importing the same package
	parseResults := []*ast.ParseResult{
		testParseResult("a.go", []*ast.Symbol{testSymbol("A", ast.SymbolKindFunction, "a.go", 1)}, []ast.Import{
			{Path: "fmt", Alias: "fmt", Line: 1},
		}),
		testParseResult("b.go", []*ast.Symbol{testSymbol("B", ast.SymbolKindFunction, "b.go", 1)}, []ast.Import{
			{Path: "fmt", Alias: "fmt", Line: 1},
		}),
		testParseResult("c.go", []*ast.Symbol{testSymbol("C", ast.SymbolKindFunction, "c.go", 1)}, []ast.Import{
			{Path: "fmt", Alias: "fmt", Line: 1},
		}),
	}

	result, err := builder.Build(ctx, parseResults)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should only have ONE placeholder for fmt despite 3 imports
	if result.Stats.PlaceholderNodes != 1 {
		t.Errorf("expected 1 placeholder (fmt deduplicated), got %d", result.Stats.PlaceholderNodes)
	}
	if _, ok := result.Graph.GetNode("external:fmt:fmt"); !ok {
		t.Error("expected fmt placeholder node")
	}
}

func TestBuilder_Build_CallResolution(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	caller := testSymbol("main", ast.SymbolKindFunction, "main.go", 1)
	caller.Calls = []ast.CallSite{{Callee: "helper", Line: 3}}
	callee := testSymbol("helper", ast.SymbolKindFunction, "main.go", 15)

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("main.go", []*ast.Symbol{caller, callee}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !hasEdge(t, result.Graph, caller.ID, callee.ID, EdgeTypeCalls) {
		t.Error("expected calls edge from main to helper")
	}
	if result.Stats.CallEdgesResolved != 1 {
		t.Errorf("expected CallEdgesResolved=1, got %d", result.Stats.CallEdgesResolved)
	}
	if result.Stats.CallEdgesUnresolved != 0 {
		t.Errorf("expected CallEdgesUnresolved=0, got %d", result.Stats.CallEdgesUnresolved)
	}
}

func TestBuilder_Build_CrossFileCall(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	caller := testSymbol("Run", ast.SymbolKindFunction, "a.go", 1)
	caller.Calls = []ast.CallSite{{Callee: "Helper", Line: 4}}
	callee := testSymbol("Helper", ast.SymbolKindFunction, "b.go", 10)

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("a.go", []*ast.Symbol{caller}, nil),
		testParseResult("b.go", []*ast.Symbol{callee}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !hasEdge(t, result.Graph, caller.ID, callee.ID, EdgeTypeCalls) {
		t.Error("expected calls edge across files within the same package")
	}
}

func TestBuilder_Build_ConstructorInstantiates(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	caller := testSymbol("main", ast.SymbolKindFunction, "main.go", 1)
	caller.Calls = []ast.CallSite{{Callee: "Config", Line: 5}}
	typeSym := testSymbol("Config", ast.SymbolKindStruct, "main.go", 30)

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("main.go", []*ast.Symbol{caller, typeSym}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Calling a type is construction, not a plain call.
	if !hasEdge(t, result.Graph, caller.ID, typeSym.ID, EdgeTypeInstantiates) {
		t.Error("expected instantiates edge from main to Config")
	}
	if hasEdge(t, result.Graph, caller.ID, typeSym.ID, EdgeTypeCalls) {
		t.Error("constructor call should not produce a calls edge")
	}
}

func TestBuilder_Build_UnresolvedCall(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	caller := testSymbol("main", ast.SymbolKindFunction, "main.go", 1)
	caller.Calls = []ast.CallSite{
		{Callee: "missingFn", Line: 3},
		{Callee: "Get", Receiver: "client", Line: 9},
	}

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("main.go", []*ast.Symbol{caller}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Unresolved calls are preserved as placeholder targets, never dropped.
	if result.Stats.CallEdgesUnresolved != 2 {
		t.Errorf("expected CallEdgesUnresolved=2, got %d", result.Stats.CallEdgesUnresolved)
	}
	if !hasEdge(t, result.Graph, caller.ID, "external::missingFn", EdgeTypeUnresolved) {
		t.Error("expected unresolved edge to missingFn placeholder")
	}
	if !hasEdge(t, result.Graph, caller.ID, "external::client.Get", EdgeTypeUnresolved) {
		t.Error("expected unresolved edge to client.Get placeholder")
	}

	node, ok := result.Graph.GetNode("external::missingFn")
	if !ok {
		t.Fatal("expected missingFn placeholder node")
	}
	if node.Symbol.Kind != ast.SymbolKindExternal {
		t.Errorf("expected external kind, got %s", node.Symbol.Kind)
	}
}

func TestBuilder_Build_SelfCallSkipped(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	fn := testSymbol("fib", ast.SymbolKindFunction, "main.go", 1)
	fn.Calls = []ast.CallSite{{Callee: "fib", Line: 4}}

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("main.go", []*ast.Symbol{fn}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Recursion adds no structure: no self edge, no placeholder.
	if hasEdge(t, result.Graph, fn.ID, fn.ID, EdgeTypeCalls) {
		t.Error("recursive self-call should not produce an edge")
	}
	if result.Stats.PlaceholderNodes != 0 {
		t.Errorf("expected no placeholders, got %d", result.Stats.PlaceholderNodes)
	}
}

func TestBuilder_Build_WithReceiver(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	structSym := testSymbol("UserService", ast.SymbolKindStruct, "service.go", 10)
	methodSym := testSymbol("Create", ast.SymbolKindMethod, "service.go", 20)
	methodSym.Receiver = "*UserService"

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("service.go", []*ast.Symbol{structSym, methodSym}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The receiver type contains its methods.
	if !hasEdge(t, result.Graph, structSym.ID, methodSym.ID, EdgeTypeContains) {
		t.Error("expected contains edge from receiver type to method")
	}
}

func TestBuilder_Build_ReceiverCall(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	structSym := testSymbol("Txn", ast.SymbolKindStruct, "txn.go", 5)
	methodSym := testSymbol("Commit", ast.SymbolKindMethod, "txn.go", 20)
	methodSym.Receiver = "*Txn"

	caller := testSymbol("process", ast.SymbolKindFunction, "main.go", 1)
	caller.Calls = []ast.CallSite{{Callee: "Commit", Receiver: "txn", Line: 7}}

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("txn.go", []*ast.Symbol{structSym, methodSym}, nil),
		testParseResult("main.go", []*ast.Symbol{caller}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Receiver variable "txn" matches receiver type "*Txn" case-insensitively.
	if !hasEdge(t, result.Graph, caller.ID, methodSym.ID, EdgeTypeCalls) {
		t.Error("expected calls edge from process to Txn.Commit")
	}
}

func TestBuilder_Build_SelfMethodCall(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	helper := testSymbol("helper", ast.SymbolKindMethod, "service.py", 12)
	helper.Language = "python"
	run := testSymbol("run", ast.SymbolKindMethod, "service.py", 20)
	run.Language = "python"
	run.Calls = []ast.CallSite{{Callee: "helper", Receiver: "self", Line: 22}}

	class := testSymbol("Service", ast.SymbolKindClass, "service.py", 1)
	class.Language = "python"
	class.Children = []*ast.Symbol{helper, run}

	pr := testParseResult("service.py", []*ast.Symbol{class}, nil)
	pr.Language = "python"

	result, err := builder.Build(ctx, []*ast.ParseResult{pr})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// self.helper() resolves through the owning class.
	if !hasEdge(t, result.Graph, run.ID, helper.ID, EdgeTypeCalls) {
		t.Error("expected calls edge from run to helper via self receiver")
	}

	// Class contains both methods.
	if !hasEdge(t, result.Graph, class.ID, helper.ID, EdgeTypeContains) {
		t.Error("expected contains edge from class to helper")
	}
	if !hasEdge(t, result.Graph, class.ID, run.ID, EdgeTypeContains) {
		t.Error("expected contains edge from class to run")
	}
}

func TestBuilder_Build_InheritedSelfCall(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	baseHelper := testSymbol("helper", ast.SymbolKindMethod, "base.py", 5)
	baseHelper.Language = "python"
	base := testSymbol("Base", ast.SymbolKindClass, "base.py", 1)
	base.Language = "python"
	base.Children = []*ast.Symbol{baseHelper}

	run := testSymbol("run", ast.SymbolKindMethod, "child.py", 4)
	run.Language = "python"
	run.Calls = []ast.CallSite{{Callee: "helper", Receiver: "self", Line: 6}}
	child := testSymbol("Child", ast.SymbolKindClass, "child.py", 1)
	child.Language = "python"
	child.Metadata = &ast.SymbolMetadata{Extends: "Base"}
	child.Children = []*ast.Symbol{run}

	basePR := testParseResult("base.py", []*ast.Symbol{base}, nil)
	basePR.Language = "python"
	childPR := testParseResult("child.py", []*ast.Symbol{child}, nil)
	childPR.Language = "python"

	result, err := builder.Build(ctx, []*ast.ParseResult{basePR, childPR})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// self.helper() falls through to the parent class.
	if !hasEdge(t, result.Graph, run.ID, baseHelper.ID, EdgeTypeCalls) {
		t.Error("expected calls edge from Child.run to Base.helper")
	}
	// Child inherits Base.
	if !hasEdge(t, result.Graph, child.ID, base.ID, EdgeTypeInherits) {
		t.Error("expected inherits edge from Child to Base")
	}
}

func TestBuilder_Build_WithImplements(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	ifaceSym := testSymbol("Reader", ast.SymbolKindInterface, "types.go", 5)
	structSym := testSymbol("FileReader", ast.SymbolKindStruct, "types.go", 15)
	structSym.Metadata = &ast.SymbolMetadata{
		Implements: []string{"Reader"},
	}

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("types.go", []*ast.Symbol{ifaceSym, structSym}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !hasEdge(t, result.Graph, structSym.ID, ifaceSym.ID, EdgeTypeImplements) {
		t.Error("expected implements edge from FileReader to Reader")
	}
}

func TestBuilder_Build_EmbeddedStructBecomesInherits(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	baseSym := testSymbol("BaseService", ast.SymbolKindStruct, "base.go", 5)
	childSym := testSymbol("UserService", ast.SymbolKindStruct, "user.go", 10)
	childSym.Metadata = &ast.SymbolMetadata{
		Implements: []string{"BaseService"},
	}

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("base.go", []*ast.Symbol{baseSym}, nil),
		testParseResult("user.go", []*ast.Symbol{childSym}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Embedding a concrete type is inheritance, not interface satisfaction.
	if !hasEdge(t, result.Graph, childSym.ID, baseSym.ID, EdgeTypeInherits) {
		t.Error("expected inherits edge from UserService to BaseService")
	}
	if hasEdge(t, result.Graph, childSym.ID, baseSym.ID, EdgeTypeImplements) {
		t.Error("concrete embed should not produce an implements edge")
	}
}

func TestBuilder_Build_UnknownImplementsPlaceholder(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	structSym := testSymbol("Handler", ast.SymbolKindStruct, "h.go", 5)
	structSym.Metadata = &ast.SymbolMetadata{
		Implements: []string{"http.Handler"},
	}

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("h.go", []*ast.Symbol{structSym}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Unknown interface names keep the relation via a placeholder.
	if !hasEdge(t, result.Graph, structSym.ID, "external::Handler", EdgeTypeImplements) {
		t.Error("expected implements edge to Handler placeholder")
	}
}

func TestBuilder_Build_InterfaceExtension(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	readerSym := testSymbol("Reader", ast.SymbolKindInterface, "io.go", 5)
	rwSym := testSymbol("ReadWriter", ast.SymbolKindInterface, "io.go", 15)
	rwSym.Metadata = &ast.SymbolMetadata{
		Implements: []string{"Reader"},
	}

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("io.go", []*ast.Symbol{readerSym, rwSym}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !hasEdge(t, result.Graph, rwSym.ID, readerSym.ID, EdgeTypeInherits) {
		t.Error("expected inherits edge from ReadWriter to Reader")
	}
}

func TestBuilder_Build_ReadsWrites(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	counter := testSymbol("counter", ast.SymbolKindVariable, "state.go", 3)
	maxSize := testSymbol("MaxSize", ast.SymbolKindConstant, "state.go", 4)
	update := testSymbol("update", ast.SymbolKindFunction, "state.go", 10)
	update.Refs = []ast.VarRef{
		{Name: "counter", Line: 12, Write: true},
		{Name: "counter", Line: 13, Write: false},
		{Name: "MaxSize", Line: 14, Write: false},
		{Name: "MaxSize", Line: 15, Write: true},
		{Name: "localTmp", Line: 16, Write: true},
	}

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("state.go", []*ast.Symbol{counter, maxSize, update}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !hasEdge(t, result.Graph, update.ID, counter.ID, EdgeTypeWrites) {
		t.Error("expected writes edge from update to counter")
	}
	if !hasEdge(t, result.Graph, update.ID, counter.ID, EdgeTypeReads) {
		t.Error("expected reads edge from update to counter")
	}
	if !hasEdge(t, result.Graph, update.ID, maxSize.ID, EdgeTypeReads) {
		t.Error("expected reads edge from update to MaxSize")
	}
	// Constants are never write targets; locals resolve to nothing and drop.
	if hasEdge(t, result.Graph, update.ID, maxSize.ID, EdgeTypeWrites) {
		t.Error("write to a constant should not produce an edge")
	}
	if _, ok := result.Graph.GetNode("external::localTmp"); ok {
		t.Error("unresolved variable refs should not create placeholders")
	}
}

func TestBuilder_Build_ReturnsAndThrows(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	cfg := testSymbol("Config", ast.SymbolKindStruct, "main.go", 30)
	load := testSymbol("load", ast.SymbolKindFunction, "main.go", 1)
	load.Metadata = &ast.SymbolMetadata{
		ReturnTypes: []string{"*Config", "error"},
		Throws:      []string{"ValidationError"},
	}

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("main.go", []*ast.Symbol{cfg, load}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !hasEdge(t, result.Graph, load.ID, cfg.ID, EdgeTypeReturns) {
		t.Error("expected returns edge from load to Config")
	}
	// Builtin return types are filtered.
	if _, ok := result.Graph.GetNode("external::error"); ok {
		t.Error("builtin error type should not become a node")
	}
	// Unknown throw targets keep the relation via a placeholder.
	if !hasEdge(t, result.Graph, load.ID, "external::ValidationError", EdgeTypeThrows) {
		t.Error("expected throws edge to ValidationError placeholder")
	}
}

func TestBuilder_Build_TypeRefsResolvedOnly(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	cfg := testSymbol("Config", ast.SymbolKindStruct, "main.go", 30)
	serve := testSymbol("serve", ast.SymbolKindFunction, "main.go", 1)
	serve.Metadata = &ast.SymbolMetadata{
		TypeRefs: []string{"*Config", "context.Context"},
	}

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("main.go", []*ast.Symbol{cfg, serve}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !hasEdge(t, result.Graph, serve.ID, cfg.ID, EdgeTypeReferences) {
		t.Error("expected references edge from serve to Config")
	}
	// Type mentions do not fabricate placeholders.
	if _, ok := result.Graph.GetNode("external::Context"); ok {
		t.Error("unresolved type ref should not create a placeholder")
	}
}

func TestBuilder_Build_ImportNameResolution(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	fetch := testSymbol("fetch_data", ast.SymbolKindFunction, "lib/utils.py", 5)
	fetch.Language = "python"
	utilsPR := testParseResult("lib/utils.py", []*ast.Symbol{fetch}, nil)
	utilsPR.Language = "python"

	main := testSymbol("main", ast.SymbolKindFunction, "src/app.py", 4)
	main.Language = "python"
	main.Calls = []ast.CallSite{{Callee: "fd", Line: 8}}
	appPR := testParseResult("src/app.py", []*ast.Symbol{main}, []ast.Import{
		{Path: "lib.utils", Names: []string{"fetch_data as fd"}, Line: 1},
	})
	appPR.Language = "python"

	result, err := builder.Build(ctx, []*ast.ParseResult{utilsPR, appPR})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The aliased local name resolves back to the imported function.
	if !hasEdge(t, result.Graph, main.ID, fetch.ID, EdgeTypeCalls) {
		t.Error("expected calls edge from main to fetch_data via import alias")
	}
	if result.Stats.CallEdgesUnresolved != 0 {
		t.Errorf("expected no unresolved calls, got %d", result.Stats.CallEdgesUnresolved)
	}
}

func TestBuilder_Build_ModuleAliasReceiverCall(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	fetch := testSymbol("fetch_data", ast.SymbolKindFunction, "lib/utils.py", 5)
	fetch.Language = "python"
	utilsPR := testParseResult("lib/utils.py", []*ast.Symbol{fetch}, nil)
	utilsPR.Language = "python"

	main := testSymbol("main", ast.SymbolKindFunction, "src/app.py", 4)
	main.Language = "python"
	main.Calls = []ast.CallSite{{Callee: "fetch_data", Receiver: "u", Line: 9}}
	appPR := testParseResult("src/app.py", []*ast.Symbol{main}, []ast.Import{
		{Path: "lib.utils", Alias: "u", Line: 1},
	})
	appPR.Language = "python"

	result, err := builder.Build(ctx, []*ast.ParseResult{utilsPR, appPR})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// u.fetch_data() resolves through the module alias.
	if !hasEdge(t, result.Graph, main.ID, fetch.ID, EdgeTypeCalls) {
		t.Error("expected calls edge from main to fetch_data via module alias")
	}
}

func TestBuilder_Build_GoInternalImport(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	reverse := testSymbol("Reverse", ast.SymbolKindFunction, "util/strings.go", 5)
	reverse.Package = "util"
	utilPR := testParseResult("util/strings.go", []*ast.Symbol{reverse}, nil)

	mainFn := testSymbol("main", ast.SymbolKindFunction, "cmd/main.go", 5)
	mainFn.Package = "main"
	mainPR := testParseResult("cmd/main.go", []*ast.Symbol{mainFn}, []ast.Import{
		{Path: "example.com/proj/util", Line: 3},
	})

	result, err := builder.Build(ctx, []*ast.ParseResult{utilPR, mainPR})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The import resolves to the internal package node, not a placeholder.
	if result.Stats.PlaceholderNodes != 0 {
		t.Errorf("expected no placeholders for internal import, got %d", result.Stats.PlaceholderNodes)
	}

	var utilPkg, mainPkg *Node
	for _, n := range result.Graph.NodesByKind(ast.SymbolKindPackage) {
		switch n.Symbol.Name {
		case "util":
			utilPkg = n
		case "main":
			mainPkg = n
		}
	}
	if utilPkg == nil || mainPkg == nil {
		t.Fatal("expected package nodes for util and main")
	}

	fileID := ast.GenerateID("cmd/main.go", 0, "cmd/main.go")
	if !hasEdge(t, result.Graph, fileID, utilPkg.ID(), EdgeTypeImports) {
		t.Error("expected imports edge from main.go to util package")
	}
	if !hasEdge(t, result.Graph, mainPkg.ID(), utilPkg.ID(), EdgeTypeDependsOn) {
		t.Error("expected depends_on edge from main package to util package")
	}
}

func TestBuilder_Build_RelativeImportResolved(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	helper := testSymbol("format", ast.SymbolKindFunction, "src/util.ts", 2)
	helper.Language = "typescript"
	utilPR := testParseResult("src/util.ts", []*ast.Symbol{helper}, nil)
	utilPR.Language = "typescript"

	app := testSymbol("render", ast.SymbolKindFunction, "src/app.ts", 5)
	app.Language = "typescript"
	appPR := testParseResult("src/app.ts", []*ast.Symbol{app}, []ast.Import{
		{Path: "./util", IsRelative: true, Line: 1},
	})
	appPR.Language = "typescript"

	result, err := builder.Build(ctx, []*ast.ParseResult{utilPR, appPR})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Stats.PlaceholderNodes != 0 {
		t.Errorf("expected no placeholders for relative import, got %d", result.Stats.PlaceholderNodes)
	}
	appFileID := ast.GenerateID("src/app.ts", 0, "src/app.ts")
	utilFileID := ast.GenerateID("src/util.ts", 0, "src/util.ts")
	if !hasEdge(t, result.Graph, appFileID, utilFileID, EdgeTypeImports) {
		t.Error("expected imports edge from app.ts to util.ts")
	}
}

func TestBuilder_Build_ExportedSymbols(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	pub := testSymbol("render", ast.SymbolKindFunction, "src/app.ts", 5)
	pub.Language = "typescript"
	pub.Exported = true
	priv := testSymbol("helper", ast.SymbolKindFunction, "src/app.ts", 20)
	priv.Language = "typescript"

	pr := testParseResult("src/app.ts", []*ast.Symbol{pub, priv}, nil)
	pr.Language = "typescript"

	result, err := builder.Build(ctx, []*ast.ParseResult{pr})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fileID := ast.GenerateID("src/app.ts", 0, "src/app.ts")
	if !hasEdge(t, result.Graph, fileID, pub.ID, EdgeTypeExports) {
		t.Error("expected exports edge for exported symbol")
	}
	if hasEdge(t, result.Graph, fileID, priv.ID, EdgeTypeExports) {
		t.Error("unexported symbol should not get an exports edge")
	}
}

func TestBuilder_Build_NilParseResult(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	validResult1 := testParseResult("valid1.go", []*ast.Symbol{
		testSymbol("Valid1", ast.SymbolKindFunction, "valid1.go", 1),
	}, nil)
	validResult2 := testParseResult("valid2.go", []*ast.Symbol{
		testSymbol("Valid2", ast.SymbolKindFunction, "valid2.go", 1),
	}, nil)

	// Mix of valid and nil results
	parseResults := []*ast.ParseResult{
		validResult1,
		nil,
		validResult2,
	}

	result, err := builder.Build(ctx, parseResults)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Stats.FilesProcessed != 2 {
		t.Errorf("expected 2 files processed, got %d", result.Stats.FilesProcessed)
	}
	if result.Stats.FilesFailed != 1 {
		t.Errorf("expected 1 file failed, got %d", result.Stats.FilesFailed)
	}
	if len(result.FileErrors) != 1 {
		t.Fatalf("expected 1 FileError, got %d", len(result.FileErrors))
	}

	var malformed *MalformedSourceError
	if !errors.As(result.FileErrors[0].Err, &malformed) {
		t.Errorf("expected MalformedSourceError, got %T", result.FileErrors[0].Err)
	}

	// Build should not be marked incomplete for non-fatal errors
	if result.Incomplete {
		t.Error("expected Incomplete=false for non-fatal file errors")
	}
}

func TestBuilder_Build_NilSymbol(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	sym1 := testSymbol("Valid", ast.SymbolKindFunction, "test.go", 1)
	sym2 := testSymbol("AlsoValid", ast.SymbolKindFunction, "test.go", 20)

	symbols := []*ast.Symbol{
		sym1,
		nil, // skipped
		sym2,
	}

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("test.go", symbols, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Two symbols plus the file node; the nil entry is skipped.
	if result.Graph.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", result.Graph.NodeCount())
	}
	if _, ok := result.Graph.GetNode(sym1.ID); !ok {
		t.Errorf("expected symbol %s in graph", sym1.ID)
	}
	if _, ok := result.Graph.GetNode(sym2.ID); !ok {
		t.Errorf("expected symbol %s in graph", sym2.ID)
	}
}

func TestBuilder_Build_InvalidFilePath(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	// Path traversal attempt
	parseResult := &ast.ParseResult{
		FilePath: "../etc/passwd",
		Language: "go",
		Symbols:  []*ast.Symbol{testSymbol("Evil", ast.SymbolKindFunction, "../etc/passwd", 1)},
	}

	result, err := builder.Build(ctx, []*ast.ParseResult{parseResult})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.FileErrors) == 0 {
		t.Error("expected FileError for path traversal attempt")
	}
	if result.Stats.FilesFailed != 1 {
		t.Errorf("expected 1 file failed, got %d", result.Stats.FilesFailed)
	}
	if result.Graph.NodeCount() != 0 {
		t.Errorf("rejected file should contribute no nodes, got %d", result.Graph.NodeCount())
	}
}

func TestBuilder_Build_SyntaxErrorDiagnostic(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	sym := testSymbol("partial", ast.SymbolKindFunction, "broken.go", 1)
	pr := testParseResult("broken.go", []*ast.Symbol{sym}, nil)
	pr.Errors = []string{"unexpected token at line 7"}

	result, err := builder.Build(ctx, []*ast.ParseResult{pr})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The parseable prefix still contributes structure.
	if result.Stats.FilesProcessed != 1 {
		t.Errorf("expected 1 file processed, got %d", result.Stats.FilesProcessed)
	}
	if _, ok := result.Graph.GetNode(sym.ID); !ok {
		t.Error("expected partial symbol in graph despite syntax errors")
	}

	// But the file is flagged with a diagnostic.
	if len(result.FileErrors) != 1 {
		t.Fatalf("expected 1 FileError diagnostic, got %d", len(result.FileErrors))
	}
	var malformed *MalformedSourceError
	if !errors.As(result.FileErrors[0].Err, &malformed) {
		t.Fatalf("expected MalformedSourceError, got %T", result.FileErrors[0].Err)
	}
	if result.Success() {
		t.Error("build with diagnostics should not report success")
	}
}

func TestBuilder_Build_ContextCancellation(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))

	var parseResults []*ast.ParseResult
	for i := 0; i < 100; i++ {
		parseResults = append(parseResults, testParseResult(
			"file"+string(rune('a'+i%26))+".go",
			[]*ast.Symbol{testSymbol("Func", ast.SymbolKindFunction, "file.go", i+1)},
			nil,
		))
	}

	// Cancel context immediately
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := builder.Build(ctx, parseResults)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Incomplete {
		t.Error("expected Incomplete=true when context cancelled")
	}
	if result.Graph == nil {
		t.Error("expected non-nil graph even with cancellation")
	}
	if result.Success() {
		t.Error("cancelled build should not report success")
	}
}

func TestBuilder_Build_ProgressCallback(t *testing.T) {
	var progressUpdates []BuildProgress

	builder := NewBuilder(
		WithUnit("/test"),
		WithProgressCallback(func(p BuildProgress) {
			progressUpdates = append(progressUpdates, p)
		}),
	)

	parseResults := []*ast.ParseResult{
		testParseResult("a.go", []*ast.Symbol{testSymbol("A", ast.SymbolKindFunction, "a.go", 1)}, nil),
		testParseResult("b.go", []*ast.Symbol{testSymbol("B", ast.SymbolKindFunction, "b.go", 1)}, nil),
	}

	ctx := context.Background()
	if _, err := builder.Build(ctx, parseResults); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(progressUpdates) == 0 {
		t.Fatal("expected progress updates")
	}

	hasCollecting := false
	hasExtracting := false
	hasFinalizing := false
	for _, p := range progressUpdates {
		switch p.Phase {
		case ProgressPhaseCollecting:
			hasCollecting = true
		case ProgressPhaseExtractingEdges:
			hasExtracting = true
		case ProgressPhaseFinalizing:
			hasFinalizing = true
		}
	}

	if !hasCollecting {
		t.Error("expected collecting phase progress")
	}
	if !hasExtracting {
		t.Error("expected extracting edges phase progress")
	}
	if !hasFinalizing {
		t.Error("expected finalizing phase progress")
	}
}

func TestBuilder_Build_GraphIsFrozen(t *testing.T) {
	builder := NewBuilder(WithUnit("/test"))
	ctx := context.Background()

	result, err := builder.Build(ctx, []*ast.ParseResult{
		testParseResult("test.go", []*ast.Symbol{
			testSymbol("Test", ast.SymbolKindFunction, "test.go", 1),
		}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Graph.Frozen() {
		t.Error("expected graph to be frozen after build")
	}
	if _, err := result.Graph.AddNode(testSymbol("Late", ast.SymbolKindFunction, "test.go", 50)); !errors.Is(err, ErrGraphFrozen) {
		t.Errorf("expected ErrGraphFrozen, got: %v", err)
	}
}

func TestBuilder_Build_DeterministicHash(t *testing.T) {
	ctx := context.Background()

	makeResults := func() []*ast.ParseResult {
		caller := testSymbol("main", ast.SymbolKindFunction, "main.go", 1)
		caller.Calls = []ast.CallSite{{Callee: "Helper", Line: 3}, {Callee: "missing", Line: 4}}
		helper := testSymbol("Helper", ast.SymbolKindFunction, "util.go", 10)
		return []*ast.ParseResult{
			testParseResult("main.go", []*ast.Symbol{caller}, []ast.Import{{Path: "fmt", Line: 1}}),
			testParseResult("util.go", []*ast.Symbol{helper}, nil),
		}
	}

	builder := NewBuilder(WithUnit("/test"))

	first, err := builder.Build(ctx, makeResults())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same sources presented in reverse order.
	reversed := makeResults()
	reversed[0], reversed[1] = reversed[1], reversed[0]
	second, err := builder.Build(ctx, reversed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Graph.Hash() != second.Graph.Hash() {
		t.Error("identical sources should produce identical graph hashes regardless of input order")
	}

	// Canonical ordering also makes arena indices identical.
	n1 := first.Graph.Nodes()
	n2 := second.Graph.Nodes()
	if len(n1) != len(n2) {
		t.Fatalf("node counts differ: %d vs %d", len(n1), len(n2))
	}
	for i := range n1 {
		if n1[i].ID() != n2[i].ID() {
			t.Errorf("index %d: node IDs differ: %s vs %s", i, n1[i].ID(), n2[i].ID())
		}
	}
}
