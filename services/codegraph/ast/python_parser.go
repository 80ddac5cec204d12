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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonParserOption configures a PythonParser instance.
type PythonParserOption func(*PythonParser)

// WithPythonMaxFileSize sets the maximum file size the parser will accept.
func WithPythonMaxFileSize(bytes int64) PythonParserOption {
	return func(p *PythonParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithPythonParseOptions applies the given ParseOptions to the parser.
func WithPythonParseOptions(opts ParseOptions) PythonParserOption {
	return func(p *PythonParser) {
		p.parseOptions = opts
	}
}

// PythonParser implements the Parser interface for Python source code.
//
// Description:
//
//	PythonParser extracts classes with their method sets, top-level
//	functions, module variables, imports, call-sites, and raised
//	exception names. Classes whose bases include Protocol are classified
//	as interfaces; ALL_CAPS module assignments as constants.
//
// Thread Safety:
//
//	PythonParser instances are safe for concurrent use. Each Parse call
//	creates its own tree-sitter parser instance internally.
type PythonParser struct {
	maxFileSize  int64
	parseOptions ParseOptions
}

// NewPythonParser creates a new PythonParser with the given options.
func NewPythonParser(opts ...PythonParserOption) *PythonParser {
	p := &PythonParser{
		maxFileSize:  DefaultMaxFileSize,
		parseOptions: DefaultParseOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns the canonical language name for this parser.
func (p *PythonParser) Language() string {
	return "python"
}

// Extensions returns the file extensions this parser handles.
func (p *PythonParser) Extensions() []string {
	return []string{".py", ".pyi"}
}

// Parse extracts symbols from Python source code.
//
// Description:
//
//	Parse is error-tolerant and returns partial results with diagnostics
//	for syntactically invalid code.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *PythonParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "python", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}
	if !utf8.Valid(content) {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "python",
		Hash:          hex.EncodeToString(hash[:]),
		ParsedAtMilli: time.Now().UnixMilli(),
		Symbols:       make([]*Symbol, 0),
		Imports:       make([]Import, 0),
		Errors:        make([]string, 0),
		LineCount:     countLines(content),
	}

	root := tree.RootNode()
	if root == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		return result, nil
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	moduleName := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	p.extractTopLevel(root, content, filePath, moduleName, result)

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), len(result.Symbols), false)
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}

	setParseSpanResult(span, len(result.Symbols), len(result.Errors))
	recordParseMetrics(ctx, "python", time.Since(start), len(result.Symbols), true)

	return result, nil
}

// extractTopLevel walks module statements and dispatches per node type.
func (p *PythonParser) extractTopLevel(root *sitter.Node, content []byte, filePath, moduleName string, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "import_statement", "import_from_statement":
			p.extractImport(child, content, result)
		case "class_definition":
			if sym := p.processClass(child, content, filePath, moduleName, nil); sym != nil {
				result.Symbols = append(result.Symbols, sym)
			}
		case "function_definition":
			if sym := p.processFunction(child, content, filePath, moduleName, "", nil); sym != nil {
				result.Symbols = append(result.Symbols, sym)
			}
		case "decorated_definition":
			p.processDecorated(child, content, filePath, moduleName, result)
		case "expression_statement":
			p.processModuleAssignment(child, content, filePath, moduleName, result)
		}
	}
}

// extractImport records import and from-import statements.
func (p *PythonParser) extractImport(node *sitter.Node, content []byte, result *ParseResult) {
	line := int(node.StartPoint().Row + 1)

	if node.Type() == "import_statement" {
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			switch child.Type() {
			case "dotted_name":
				result.Imports = append(result.Imports, Import{
					Path: nodeText(child, content),
					Line: line,
				})
			case "aliased_import":
				imp := Import{Line: line}
				if nameNode := child.ChildByFieldName("name"); nameNode != nil {
					imp.Path = nodeText(nameNode, content)
				}
				if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
					imp.Alias = nodeText(aliasNode, content)
				}
				if imp.Path != "" {
					result.Imports = append(result.Imports, imp)
				}
			}
		}
		return
	}

	// import_from_statement
	imp := Import{Line: line}
	if moduleNode := node.ChildByFieldName("module_name"); moduleNode != nil {
		imp.Path = nodeText(moduleNode, content)
		imp.IsRelative = strings.HasPrefix(imp.Path, ".")
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			name := nodeText(child, content)
			if name != imp.Path {
				imp.Names = append(imp.Names, name)
			}
		case "aliased_import":
			// Keep "orig as alias" so resolution can map local names back.
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				name := nodeText(nameNode, content)
				if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
					name += " as " + nodeText(aliasNode, content)
				}
				imp.Names = append(imp.Names, name)
			}
		case "wildcard_import":
			imp.IsWildcard = true
		}
	}
	if imp.Path != "" {
		result.Imports = append(result.Imports, imp)
	}
}

// processDecorated unwraps a decorated definition, capturing decorators.
func (p *PythonParser) processDecorated(node *sitter.Node, content []byte, filePath, moduleName string, result *ParseResult) {
	var decorators []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "decorator" {
			text := strings.TrimPrefix(nodeText(child, content), "@")
			if idx := strings.IndexByte(text, '('); idx >= 0 {
				text = text[:idx]
			}
			decorators = append(decorators, strings.TrimSpace(text))
		}
	}
	def := node.ChildByFieldName("definition")
	if def == nil {
		return
	}
	switch def.Type() {
	case "class_definition":
		if sym := p.processClass(def, content, filePath, moduleName, decorators); sym != nil {
			result.Symbols = append(result.Symbols, sym)
		}
	case "function_definition":
		if sym := p.processFunction(def, content, filePath, moduleName, "", decorators); sym != nil {
			result.Symbols = append(result.Symbols, sym)
		}
	}
}

// processClass extracts a class definition with bases, docstring,
// methods, and class variables.
func (p *PythonParser) processClass(node *sitter.Node, content []byte, filePath, moduleName string, decorators []string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)
	exported := !strings.HasPrefix(name, "_")
	if !p.parseOptions.IncludePrivate && !exported {
		return nil
	}

	var bases []string
	if super := node.ChildByFieldName("superclasses"); super != nil {
		for i := 0; i < int(super.ChildCount()); i++ {
			arg := super.Child(i)
			switch arg.Type() {
			case "identifier", "attribute":
				bases = append(bases, bareTypeName(nodeText(arg, content)))
			case "subscript":
				if val := arg.ChildByFieldName("value"); val != nil {
					bases = append(bases, bareTypeName(nodeText(val, content)))
				}
			}
		}
	}

	kind := SymbolKindClass
	for _, b := range bases {
		if b == "Protocol" {
			kind = SymbolKindInterface
			break
		}
	}

	sym := &Symbol{
		ID:        GenerateID(filePath, int(node.StartPoint().Row+1), name),
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		Language:  "python",
		Package:   moduleName,
		Exported:  exported,
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		StartCol:  int(node.StartPoint().Column),
		EndCol:    int(node.EndPoint().Column),
	}

	body := node.ChildByFieldName("body")
	if p.parseOptions.IncludeDocComments && body != nil {
		sym.DocComment = pythonDocstring(body, content)
	}

	if len(decorators) > 0 || len(bases) > 0 {
		sym.Metadata = &SymbolMetadata{Decorators: decorators}
		if len(bases) > 0 {
			sym.Metadata.Extends = bases[0]
			if len(bases) > 1 {
				sym.Metadata.Implements = bases[1:]
			}
		}
	}

	if body != nil {
		p.extractClassMembers(body, content, filePath, moduleName, sym)
	}
	return sym
}

// extractClassMembers extracts methods and class variables into children.
func (p *PythonParser) extractClassMembers(body *sitter.Node, content []byte, filePath, moduleName string, parent *Symbol) {
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "function_definition":
			if m := p.processFunction(child, content, filePath, moduleName, parent.Name, nil); m != nil {
				parent.Children = append(parent.Children, m)
			}
		case "decorated_definition":
			var decorators []string
			for j := 0; j < int(child.ChildCount()); j++ {
				if child.Child(j).Type() == "decorator" {
					text := strings.TrimPrefix(nodeText(child.Child(j), content), "@")
					if idx := strings.IndexByte(text, '('); idx >= 0 {
						text = text[:idx]
					}
					decorators = append(decorators, strings.TrimSpace(text))
				}
			}
			if def := child.ChildByFieldName("definition"); def != nil && def.Type() == "function_definition" {
				if m := p.processFunction(def, content, filePath, moduleName, parent.Name, decorators); m != nil {
					parent.Children = append(parent.Children, m)
				}
			}
		case "expression_statement":
			if v := p.classVariable(child, content, filePath, moduleName, parent.Name); v != nil {
				parent.Children = append(parent.Children, v)
			}
		}
	}
}

// classVariable extracts a class-level assignment as a field symbol.
func (p *PythonParser) classVariable(stmt *sitter.Node, content []byte, filePath, moduleName, className string) *Symbol {
	if stmt.ChildCount() == 0 {
		return nil
	}
	assign := stmt.Child(0)
	if assign.Type() != "assignment" {
		return nil
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return nil
	}
	name := nodeText(left, content)
	exported := !strings.HasPrefix(name, "_")
	if !p.parseOptions.IncludePrivate && !exported {
		return nil
	}
	return &Symbol{
		ID:        GenerateID(filePath, int(assign.StartPoint().Row+1), className+"."+name),
		Name:      name,
		Kind:      SymbolKindField,
		FilePath:  filePath,
		Language:  "python",
		Package:   moduleName,
		Receiver:  className,
		Exported:  exported,
		StartLine: int(assign.StartPoint().Row + 1),
		EndLine:   int(assign.EndPoint().Row + 1),
		StartCol:  int(assign.StartPoint().Column),
		EndCol:    int(assign.EndPoint().Column),
	}
}

// processFunction extracts a function or method definition.
func (p *PythonParser) processFunction(node *sitter.Node, content []byte, filePath, moduleName, receiver string, decorators []string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)
	exported := !strings.HasPrefix(name, "_")
	if !p.parseOptions.IncludePrivate && !exported {
		return nil
	}

	kind := SymbolKindFunction
	switch {
	case receiver != "":
		kind = SymbolKindMethod
	case strings.HasPrefix(name, "test_"):
		kind = SymbolKindTest
	}

	sym := &Symbol{
		ID:        GenerateID(filePath, int(node.StartPoint().Row+1), name),
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		Language:  "python",
		Package:   moduleName,
		Receiver:  receiver,
		Exported:  exported,
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		StartCol:  int(node.StartPoint().Column),
		EndCol:    int(node.EndPoint().Column),
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		sym.Signature = name + nodeText(params, content)
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		if t := bareTypeName(nodeText(ret, content)); t != "" {
			sym.Metadata = &SymbolMetadata{ReturnTypes: []string{t}}
		}
	}
	if len(decorators) > 0 {
		if sym.Metadata == nil {
			sym.Metadata = &SymbolMetadata{}
		}
		sym.Metadata.Decorators = decorators
	}

	body := node.ChildByFieldName("body")
	if p.parseOptions.IncludeDocComments && body != nil {
		sym.DocComment = pythonDocstring(body, content)
	}
	if body != nil {
		p.walkBody(body, content, sym)
	}
	return sym
}

// processModuleAssignment extracts module-level variables and constants.
func (p *PythonParser) processModuleAssignment(stmt *sitter.Node, content []byte, filePath, moduleName string, result *ParseResult) {
	if stmt.ChildCount() == 0 {
		return
	}
	assign := stmt.Child(0)
	if assign.Type() != "assignment" {
		return
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return
	}
	name := nodeText(left, content)
	exported := !strings.HasPrefix(name, "_")
	if !p.parseOptions.IncludePrivate && !exported {
		return
	}

	kind := SymbolKindVariable
	if name == strings.ToUpper(name) && strings.ContainsAny(name, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		kind = SymbolKindConstant
	}

	result.Symbols = append(result.Symbols, &Symbol{
		ID:        GenerateID(filePath, int(assign.StartPoint().Row+1), name),
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		Language:  "python",
		Package:   moduleName,
		Exported:  exported,
		StartLine: int(assign.StartPoint().Row + 1),
		EndLine:   int(assign.EndPoint().Row + 1),
		StartCol:  int(assign.StartPoint().Column),
		EndCol:    int(assign.EndPoint().Column),
	})
}

// walkBody collects call-sites, raised exceptions, lambdas, and variable
// writes from a function body.
func (p *PythonParser) walkBody(body *sitter.Node, content []byte, sym *Symbol) {
	seenRefs := make(map[string]bool)

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			switch child.Type() {
			case "call":
				if p.parseOptions.IncludeCallSites {
					p.recordCall(child, content, sym)
				}
				walk(child)
			case "raise_statement":
				p.recordRaise(child, content, sym)
				walk(child)
			case "lambda":
				sym.Children = append(sym.Children, &Symbol{
					ID:        GenerateID(sym.FilePath, int(child.StartPoint().Row+1), sym.Name+"@lambda"),
					Name:      sym.Name + "@lambda",
					Kind:      SymbolKindLambda,
					FilePath:  sym.FilePath,
					Language:  "python",
					Package:   sym.Package,
					StartLine: int(child.StartPoint().Row + 1),
					EndLine:   int(child.EndPoint().Row + 1),
					StartCol:  int(child.StartPoint().Column),
					EndCol:    int(child.EndPoint().Column),
				})
				walk(child)
			case "assignment", "augmented_assignment":
				if p.parseOptions.IncludeVarRefs {
					if left := child.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
						name := nodeText(left, content)
						if name != "" && !seenRefs[name+":w"] {
							seenRefs[name+":w"] = true
							sym.Refs = append(sym.Refs, VarRef{
								Name:  name,
								Line:  int(left.StartPoint().Row + 1),
								Write: true,
							})
						}
					}
				}
				walk(child)
			case "function_definition", "class_definition":
				// Nested definitions are structural: record the nested
				// function as a closure child, do not descend further.
				if child.Type() == "function_definition" {
					if nested := p.processFunction(child, content, sym.FilePath, sym.Package, "", nil); nested != nil {
						nested.Kind = SymbolKindClosure
						sym.Children = append(sym.Children, nested)
					}
				}
			default:
				if child.ChildCount() > 0 {
					walk(child)
				}
			}
		}
	}
	walk(body)
}

// recordCall appends a CallSite for one call node.
func (p *PythonParser) recordCall(call *sitter.Node, content []byte, sym *Symbol) {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return
	}
	switch fn.Type() {
	case "identifier":
		sym.Calls = append(sym.Calls, CallSite{
			Callee: nodeText(fn, content),
			Line:   int(call.StartPoint().Row + 1),
			Col:    int(call.StartPoint().Column),
		})
	case "attribute":
		attr := fn.ChildByFieldName("attribute")
		obj := fn.ChildByFieldName("object")
		if attr == nil {
			return
		}
		receiver := ""
		if obj != nil {
			receiver = nodeText(obj, content)
		}
		sym.Calls = append(sym.Calls, CallSite{
			Callee:   nodeText(attr, content),
			Receiver: receiver,
			Line:     int(call.StartPoint().Row + 1),
			Col:      int(call.StartPoint().Column),
		})
	}
}

// recordRaise records the raised exception type name.
func (p *PythonParser) recordRaise(stmt *sitter.Node, content []byte, sym *Symbol) {
	for i := 0; i < int(stmt.ChildCount()); i++ {
		child := stmt.Child(i)
		var name string
		switch child.Type() {
		case "call":
			if fn := child.ChildByFieldName("function"); fn != nil {
				name = bareTypeName(nodeText(fn, content))
			}
		case "identifier":
			name = nodeText(child, content)
		}
		if name != "" {
			if sym.Metadata == nil {
				sym.Metadata = &SymbolMetadata{}
			}
			sym.Metadata.Throws = appendUnique(sym.Metadata.Throws, name)
			return
		}
	}
}

// pythonDocstring extracts the leading docstring of a block.
func pythonDocstring(body *sitter.Node, content []byte) string {
	if body.ChildCount() == 0 {
		return ""
	}
	first := body.Child(0)
	if first.Type() != "expression_statement" || first.ChildCount() == 0 {
		return ""
	}
	str := first.Child(0)
	if str.Type() != "string" {
		return ""
	}
	text := nodeText(str, content)
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 2*len(q) {
			return strings.TrimSpace(text[len(q) : len(text)-len(q)])
		}
	}
	return strings.TrimSpace(text)
}
