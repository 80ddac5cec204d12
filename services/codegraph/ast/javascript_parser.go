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
	"github.com/smacker/go-tree-sitter/javascript"
)

// JavaScriptParserOption configures a JavaScriptParser instance.
type JavaScriptParserOption func(*JavaScriptParser)

// WithJavaScriptMaxFileSize sets the maximum file size the parser will accept.
func WithJavaScriptMaxFileSize(bytes int64) JavaScriptParserOption {
	return func(p *JavaScriptParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithJavaScriptParseOptions applies the given ParseOptions to the parser.
func WithJavaScriptParseOptions(opts ParseOptions) JavaScriptParserOption {
	return func(p *JavaScriptParser) {
		p.parseOptions = opts
	}
}

// JavaScriptParser implements the Parser interface for JavaScript.
//
// Description:
//
//	JavaScriptParser extracts classes with method sets, functions
//	(declarations and arrow/function expressions bound to names),
//	module variables, ES module imports, call-sites, thrown error
//	types, and constructed types. In JavaScript, Exported means the
//	symbol appears in an export statement.
//
// Thread Safety:
//
//	JavaScriptParser instances are safe for concurrent use. Each Parse
//	call creates its own tree-sitter parser instance internally.
type JavaScriptParser struct {
	maxFileSize  int64
	parseOptions ParseOptions
}

// NewJavaScriptParser creates a new JavaScriptParser with the given options.
func NewJavaScriptParser(opts ...JavaScriptParserOption) *JavaScriptParser {
	p := &JavaScriptParser{
		maxFileSize:  DefaultMaxFileSize,
		parseOptions: DefaultParseOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns the canonical language name for this parser.
func (p *JavaScriptParser) Language() string {
	return "javascript"
}

// Extensions returns the file extensions this parser handles.
func (p *JavaScriptParser) Extensions() []string {
	return []string{".js", ".mjs", ".cjs", ".jsx"}
}

// Parse extracts symbols from JavaScript source code.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *JavaScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "javascript", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}
	if !utf8.Valid(content) {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "javascript",
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
	walkJSTopLevel(root, content, filePath, moduleName, "javascript", p.parseOptions, result)

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), len(result.Symbols), false)
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}

	setParseSpanResult(span, len(result.Symbols), len(result.Errors))
	recordParseMetrics(ctx, "javascript", time.Since(start), len(result.Symbols), true)

	return result, nil
}

// walkJSTopLevel dispatches top-level statements shared by the
// JavaScript and TypeScript grammars.
func walkJSTopLevel(root *sitter.Node, content []byte, filePath, moduleName, language string, opts ParseOptions, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		jsDispatchStatement(child, content, filePath, moduleName, language, opts, result, false)
	}
}

// jsDispatchStatement handles one top-level statement, optionally inside
// an export wrapper.
func jsDispatchStatement(node *sitter.Node, content []byte, filePath, moduleName, language string, opts ParseOptions, result *ParseResult, exported bool) {
	switch node.Type() {
	case "import_statement":
		jsExtractImport(node, content, result)
	case "export_statement":
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			switch child.Type() {
			case "function_declaration", "generator_function_declaration",
				"class_declaration", "lexical_declaration", "variable_declaration",
				"interface_declaration", "type_alias_declaration", "enum_declaration",
				"abstract_class_declaration":
				jsDispatchStatement(child, content, filePath, moduleName, language, opts, result, true)
			}
		}
	case "function_declaration", "generator_function_declaration":
		if sym := jsProcessFunction(node, content, filePath, moduleName, language, opts, exported); sym != nil {
			result.Symbols = append(result.Symbols, sym)
		}
	case "class_declaration", "abstract_class_declaration":
		if sym := jsProcessClass(node, content, filePath, moduleName, language, opts, exported); sym != nil {
			result.Symbols = append(result.Symbols, sym)
		}
	case "lexical_declaration", "variable_declaration":
		jsProcessVariables(node, content, filePath, moduleName, language, opts, result, exported)
	case "interface_declaration":
		if sym := tsProcessInterface(node, content, filePath, moduleName, language, opts, exported); sym != nil {
			result.Symbols = append(result.Symbols, sym)
		}
	case "type_alias_declaration":
		if sym := tsProcessTypeAlias(node, content, filePath, moduleName, language, opts, exported); sym != nil {
			result.Symbols = append(result.Symbols, sym)
		}
	case "enum_declaration":
		if sym := tsProcessEnum(node, content, filePath, moduleName, language, opts, exported); sym != nil {
			result.Symbols = append(result.Symbols, sym)
		}
	}
}

// jsExtractImport records an ES module import statement.
func jsExtractImport(node *sitter.Node, content []byte, result *ParseResult) {
	imp := Import{Line: int(node.StartPoint().Row + 1)}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "string":
			imp.Path = strings.Trim(nodeText(child, content), `"'`)
		case "import_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				clause := child.Child(j)
				switch clause.Type() {
				case "identifier":
					imp.Alias = nodeText(clause, content)
				case "namespace_import":
					for k := 0; k < int(clause.ChildCount()); k++ {
						if clause.Child(k).Type() == "identifier" {
							imp.Alias = nodeText(clause.Child(k), content)
							imp.IsWildcard = true
						}
					}
				case "named_imports":
					for k := 0; k < int(clause.ChildCount()); k++ {
						spec := clause.Child(k)
						if spec.Type() != "import_specifier" {
							continue
						}
						if nameNode := spec.ChildByFieldName("name"); nameNode != nil {
							name := nodeText(nameNode, content)
							if aliasNode := spec.ChildByFieldName("alias"); aliasNode != nil {
								name += " as " + nodeText(aliasNode, content)
							}
							imp.Names = append(imp.Names, name)
						}
					}
				}
			}
		}
	}
	if imp.Path != "" {
		imp.IsRelative = strings.HasPrefix(imp.Path, ".")
		result.Imports = append(result.Imports, imp)
	}
}

// jsProcessFunction extracts a function declaration.
func jsProcessFunction(node *sitter.Node, content []byte, filePath, moduleName, language string, opts ParseOptions, exported bool) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)

	sym := &Symbol{
		ID:        GenerateID(filePath, int(node.StartPoint().Row+1), name),
		Name:      name,
		Kind:      SymbolKindFunction,
		FilePath:  filePath,
		Language:  language,
		Package:   moduleName,
		Exported:  exported,
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		StartCol:  int(node.StartPoint().Column),
		EndCol:    int(node.EndPoint().Column),
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		sym.Signature = name + nodeText(params, content)
	}
	if opts.IncludeDocComments {
		sym.DocComment = precedingComment(node, content)
	}
	jsWalkBody(node.ChildByFieldName("body"), content, opts, sym)
	return sym
}

// jsProcessClass extracts a class declaration with heritage and members.
func jsProcessClass(node *sitter.Node, content []byte, filePath, moduleName, language string, opts ParseOptions, exported bool) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)

	sym := &Symbol{
		ID:        GenerateID(filePath, int(node.StartPoint().Row+1), name),
		Name:      name,
		Kind:      SymbolKindClass,
		FilePath:  filePath,
		Language:  language,
		Package:   moduleName,
		Exported:  exported,
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		StartCol:  int(node.StartPoint().Column),
		EndCol:    int(node.EndPoint().Column),
	}
	if opts.IncludeDocComments {
		sym.DocComment = precedingComment(node, content)
	}

	var body *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "class_heritage":
			jsExtractHeritage(child, content, sym)
		case "class_body":
			body = child
		}
	}

	if body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			member := body.Child(i)
			switch member.Type() {
			case "method_definition":
				if m := jsProcessMethod(member, content, filePath, moduleName, language, opts, sym.Name); m != nil {
					sym.Children = append(sym.Children, m)
				}
			case "field_definition", "public_field_definition":
				if f := jsProcessField(member, content, filePath, moduleName, language, sym.Name); f != nil {
					sym.Children = append(sym.Children, f)
				}
			}
		}
	}
	return sym
}

// jsExtractHeritage records extends/implements clauses on a class symbol.
func jsExtractHeritage(heritage *sitter.Node, content []byte, sym *Symbol) {
	ensure := func() *SymbolMetadata {
		if sym.Metadata == nil {
			sym.Metadata = &SymbolMetadata{}
		}
		return sym.Metadata
	}

	for i := 0; i < int(heritage.ChildCount()); i++ {
		child := heritage.Child(i)
		switch child.Type() {
		case "extends_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				inner := child.Child(j)
				if inner.Type() == "identifier" || inner.Type() == "type_identifier" || inner.Type() == "member_expression" {
					ensure().Extends = bareTypeName(nodeText(inner, content))
				}
			}
		case "implements_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				inner := child.Child(j)
				if inner.Type() == "type_identifier" || inner.Type() == "identifier" || inner.Type() == "generic_type" {
					ensure().Implements = appendUnique(ensure().Implements, bareTypeName(nodeText(inner, content)))
				}
			}
		case "identifier", "member_expression":
			// Plain JavaScript grammar: `class A extends B` puts B
			// directly under class_heritage.
			if ensure().Extends == "" {
				ensure().Extends = bareTypeName(nodeText(child, content))
			}
		}
	}
}

// jsProcessMethod extracts a method definition inside a class body.
func jsProcessMethod(node *sitter.Node, content []byte, filePath, moduleName, language string, opts ParseOptions, className string) *Symbol {
	var name string
	private := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "property_identifier":
			name = nodeText(child, content)
		case "private_property_identifier":
			name = nodeText(child, content)
			private = true
		case "accessibility_modifier":
			if nodeText(child, content) == "private" {
				private = true
			}
		}
	}
	if name == "" {
		return nil
	}
	if private && !opts.IncludePrivate {
		return nil
	}

	sym := &Symbol{
		ID:        GenerateID(filePath, int(node.StartPoint().Row+1), className+"."+name),
		Name:      name,
		Kind:      SymbolKindMethod,
		FilePath:  filePath,
		Language:  language,
		Package:   moduleName,
		Receiver:  className,
		Exported:  !private,
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		StartCol:  int(node.StartPoint().Column),
		EndCol:    int(node.EndPoint().Column),
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		sym.Signature = name + nodeText(params, content)
	}
	jsWalkBody(node.ChildByFieldName("body"), content, opts, sym)
	return sym
}

// jsProcessField extracts a class field definition.
func jsProcessField(node *sitter.Node, content []byte, filePath, moduleName, language, className string) *Symbol {
	var name string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "property_identifier" || child.Type() == "private_property_identifier" {
			name = nodeText(child, content)
			break
		}
	}
	if name == "" {
		return nil
	}
	return &Symbol{
		ID:        GenerateID(filePath, int(node.StartPoint().Row+1), className+"."+name),
		Name:      name,
		Kind:      SymbolKindField,
		FilePath:  filePath,
		Language:  language,
		Package:   moduleName,
		Receiver:  className,
		Exported:  !strings.HasPrefix(name, "#"),
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		StartCol:  int(node.StartPoint().Column),
		EndCol:    int(node.EndPoint().Column),
	}
}

// jsProcessVariables extracts variable declarators. A declarator whose
// value is an arrow function or function expression is classified as a
// function; a lambda child is additionally recorded for arrow bodies.
func jsProcessVariables(node *sitter.Node, content []byte, filePath, moduleName, language string, opts ParseOptions, result *ParseResult, exported bool) {
	isConst := false
	for i := 0; i < int(node.ChildCount()); i++ {
		if nodeText(node.Child(i), content) == "const" {
			isConst = true
			break
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		decl := node.Child(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != "identifier" {
			continue
		}
		name := nodeText(nameNode, content)

		kind := SymbolKindVariable
		if isConst {
			kind = SymbolKindConstant
		}

		var fnBody *sitter.Node
		if value := decl.ChildByFieldName("value"); value != nil {
			switch value.Type() {
			case "arrow_function", "function_expression", "function", "generator_function":
				kind = SymbolKindFunction
				fnBody = value.ChildByFieldName("body")
			}
		}

		sym := &Symbol{
			ID:        GenerateID(filePath, int(decl.StartPoint().Row+1), name),
			Name:      name,
			Kind:      kind,
			FilePath:  filePath,
			Language:  language,
			Package:   moduleName,
			Exported:  exported,
			StartLine: int(decl.StartPoint().Row + 1),
			EndLine:   int(decl.EndPoint().Row + 1),
			StartCol:  int(decl.StartPoint().Column),
			EndCol:    int(decl.EndPoint().Column),
		}
		if opts.IncludeDocComments {
			sym.DocComment = precedingComment(node, content)
		}
		if fnBody != nil {
			jsWalkBody(fnBody, content, opts, sym)
		}
		result.Symbols = append(result.Symbols, sym)
	}
}

// jsWalkBody collects call-sites, instantiations, thrown types, and
// variable writes from a function body.
func jsWalkBody(body *sitter.Node, content []byte, opts ParseOptions, sym *Symbol) {
	if body == nil {
		return
	}
	seenRefs := make(map[string]bool)

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			switch child.Type() {
			case "call_expression":
				if opts.IncludeCallSites {
					jsRecordCall(child, content, sym)
				}
				walk(child)
			case "new_expression":
				if ctor := child.ChildByFieldName("constructor"); ctor != nil {
					if t := bareTypeName(nodeText(ctor, content)); t != "" {
						if sym.Metadata == nil {
							sym.Metadata = &SymbolMetadata{}
						}
						sym.Metadata.Instantiates = appendUnique(sym.Metadata.Instantiates, t)
					}
				}
				walk(child)
			case "throw_statement":
				jsRecordThrow(child, content, sym)
				walk(child)
			case "assignment_expression", "augmented_assignment_expression":
				if opts.IncludeVarRefs {
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
			default:
				if child.ChildCount() > 0 {
					walk(child)
				}
			}
		}
	}
	walk(body)
}

// jsRecordCall appends a CallSite for one call expression.
func jsRecordCall(call *sitter.Node, content []byte, sym *Symbol) {
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
	case "member_expression":
		prop := fn.ChildByFieldName("property")
		obj := fn.ChildByFieldName("object")
		if prop == nil {
			return
		}
		receiver := ""
		if obj != nil {
			receiver = nodeText(obj, content)
		}
		sym.Calls = append(sym.Calls, CallSite{
			Callee:   nodeText(prop, content),
			Receiver: receiver,
			Line:     int(call.StartPoint().Row + 1),
			Col:      int(call.StartPoint().Column),
		})
	}
}

// jsRecordThrow records the thrown type name when syntactically evident.
func jsRecordThrow(stmt *sitter.Node, content []byte, sym *Symbol) {
	for i := 0; i < int(stmt.ChildCount()); i++ {
		child := stmt.Child(i)
		if child.Type() != "new_expression" {
			continue
		}
		if ctor := child.ChildByFieldName("constructor"); ctor != nil {
			if t := bareTypeName(nodeText(ctor, content)); t != "" {
				if sym.Metadata == nil {
					sym.Metadata = &SymbolMetadata{}
				}
				sym.Metadata.Throws = appendUnique(sym.Metadata.Throws, t)
			}
		}
		return
	}
}
