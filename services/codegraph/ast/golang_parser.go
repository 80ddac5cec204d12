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
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoParserOption configures a GoParser instance.
type GoParserOption func(*GoParser)

// WithGoMaxFileSize sets the maximum file size the parser will accept.
func WithGoMaxFileSize(bytes int64) GoParserOption {
	return func(p *GoParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithGoParseOptions applies the given ParseOptions to the parser.
func WithGoParseOptions(opts ParseOptions) GoParserOption {
	return func(p *GoParser) {
		p.parseOptions = opts
	}
}

// GoParser implements the Parser interface for Go source code.
//
// Description:
//
//	GoParser uses tree-sitter to parse Go source files and extract
//	symbols: functions, methods with receivers, struct/interface/alias
//	types with their fields and method sets, package-level variables and
//	constants, imports, call-sites, and variable references.
//
// Thread Safety:
//
//	GoParser instances are safe for concurrent use. Each Parse call
//	creates its own tree-sitter parser instance internally.
type GoParser struct {
	maxFileSize  int64
	parseOptions ParseOptions
}

// NewGoParser creates a new GoParser with the given options.
func NewGoParser(opts ...GoParserOption) *GoParser {
	p := &GoParser{
		maxFileSize:  DefaultMaxFileSize,
		parseOptions: DefaultParseOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns the canonical language name for this parser.
func (p *GoParser) Language() string {
	return "go"
}

// Extensions returns the file extensions this parser handles.
func (p *GoParser) Extensions() []string {
	return []string{".go"}
}

// Parse extracts symbols from Go source code.
//
// Description:
//
//	Parse is error-tolerant: syntactically invalid code still yields
//	symbols for the parseable prefix, with a diagnostic recorded in
//	ParseResult.Errors.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing.
//   - content: Raw Go source bytes. Must be valid UTF-8.
//   - filePath: Path for ID generation, forward slashes.
//
// Outputs:
//   - *ParseResult: Extracted symbols and metadata. May contain partial
//     results with errors for invalid code.
//   - error: ErrFileTooLarge, ErrInvalidContent, or context errors.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *GoParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "go", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}
	if !utf8.Valid(content) {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "go",
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

	pkgName := p.extractPackageName(root, content)

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "import_declaration":
			p.extractImports(child, content, result)
		case "function_declaration":
			if sym := p.processFunction(child, content, filePath, pkgName); sym != nil {
				result.Symbols = append(result.Symbols, sym)
			}
		case "method_declaration":
			if sym := p.processMethod(child, content, filePath, pkgName); sym != nil {
				result.Symbols = append(result.Symbols, sym)
			}
		case "type_declaration":
			p.processTypeDeclaration(child, content, filePath, pkgName, result)
		case "var_declaration":
			p.processValueDeclaration(child, "var_spec", SymbolKindVariable, content, filePath, pkgName, result)
		case "const_declaration":
			p.processValueDeclaration(child, "const_spec", SymbolKindConstant, content, filePath, pkgName, result)
		}
	}

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), len(result.Symbols), false)
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}

	setParseSpanResult(span, len(result.Symbols), len(result.Errors))
	recordParseMetrics(ctx, "go", time.Since(start), len(result.Symbols), true)

	return result, nil
}

// extractPackageName reads the package clause identifier.
func (p *GoParser) extractPackageName(root *sitter.Node, content []byte) string {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "package_clause" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			if child.Child(j).Type() == "package_identifier" {
				return nodeText(child.Child(j), content)
			}
		}
	}
	return ""
}

// extractImports collects import specs from an import declaration.
func (p *GoParser) extractImports(node *sitter.Node, content []byte, result *ParseResult) {
	var specs []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.Type() == "import_spec" {
				specs = append(specs, child)
			} else if child.Type() == "import_spec_list" {
				walk(child)
			}
		}
	}
	walk(node)

	for _, spec := range specs {
		var path, alias string
		if pathNode := spec.ChildByFieldName("path"); pathNode != nil {
			path = strings.Trim(nodeText(pathNode, content), `"`)
		}
		if nameNode := spec.ChildByFieldName("name"); nameNode != nil {
			alias = nodeText(nameNode, content)
		}
		if path == "" {
			continue
		}
		result.Imports = append(result.Imports, Import{
			Path:  path,
			Alias: alias,
			Line:  int(spec.StartPoint().Row + 1),
		})
	}
}

// processFunction extracts a top-level function declaration.
func (p *GoParser) processFunction(node *sitter.Node, content []byte, filePath, pkgName string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)
	exported := isGoExported(name)
	if !p.parseOptions.IncludePrivate && !exported {
		return nil
	}

	kind := SymbolKindFunction
	if strings.HasSuffix(filePath, "_test.go") &&
		(strings.HasPrefix(name, "Test") || strings.HasPrefix(name, "Benchmark") || strings.HasPrefix(name, "Fuzz")) {
		kind = SymbolKindTest
	}

	sym := &Symbol{
		ID:        GenerateID(filePath, int(node.StartPoint().Row+1), name),
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		Language:  "go",
		Package:   pkgName,
		Exported:  exported,
		Signature: goSignature(node, content),
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		StartCol:  int(node.StartPoint().Column),
		EndCol:    int(node.EndPoint().Column),
	}
	if p.parseOptions.IncludeDocComments {
		sym.DocComment = precedingComment(node, content)
	}
	p.attachTypeMetadata(node, content, sym)
	p.walkBody(node.ChildByFieldName("body"), content, filePath, pkgName, sym)
	return sym
}

// processMethod extracts a method declaration with its receiver type.
func (p *GoParser) processMethod(node *sitter.Node, content []byte, filePath, pkgName string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)
	exported := isGoExported(name)
	if !p.parseOptions.IncludePrivate && !exported {
		return nil
	}

	sym := &Symbol{
		ID:        GenerateID(filePath, int(node.StartPoint().Row+1), name),
		Name:      name,
		Kind:      SymbolKindMethod,
		FilePath:  filePath,
		Language:  "go",
		Package:   pkgName,
		Receiver:  goReceiverType(node, content),
		Exported:  exported,
		Signature: goSignature(node, content),
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		StartCol:  int(node.StartPoint().Column),
		EndCol:    int(node.EndPoint().Column),
	}
	if p.parseOptions.IncludeDocComments {
		sym.DocComment = precedingComment(node, content)
	}
	p.attachTypeMetadata(node, content, sym)
	p.walkBody(node.ChildByFieldName("body"), content, filePath, pkgName, sym)
	return sym
}

// processTypeDeclaration extracts type specs: structs, interfaces, aliases.
func (p *GoParser) processTypeDeclaration(node *sitter.Node, content []byte, filePath, pkgName string, result *ParseResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec.Type() != "type_spec" && spec.Type() != "type_alias" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nodeText(nameNode, content)
		exported := isGoExported(name)
		if !p.parseOptions.IncludePrivate && !exported {
			continue
		}

		kind := SymbolKindTypeAlias
		typeNode := spec.ChildByFieldName("type")
		if spec.Type() == "type_spec" && typeNode != nil {
			switch typeNode.Type() {
			case "struct_type":
				kind = SymbolKindStruct
			case "interface_type":
				kind = SymbolKindInterface
			}
		}

		sym := &Symbol{
			ID:        GenerateID(filePath, int(spec.StartPoint().Row+1), name),
			Name:      name,
			Kind:      kind,
			FilePath:  filePath,
			Language:  "go",
			Package:   pkgName,
			Exported:  exported,
			StartLine: int(spec.StartPoint().Row + 1),
			EndLine:   int(spec.EndPoint().Row + 1),
			StartCol:  int(spec.StartPoint().Column),
			EndCol:    int(spec.EndPoint().Column),
		}
		if p.parseOptions.IncludeDocComments {
			doc := precedingComment(spec, content)
			if doc == "" && node.ChildCount() > 0 {
				doc = precedingComment(node, content)
			}
			sym.DocComment = doc
		}

		switch kind {
		case SymbolKindStruct:
			p.extractStructMembers(typeNode, content, filePath, pkgName, sym)
		case SymbolKindInterface:
			p.extractInterfaceMembers(typeNode, content, filePath, pkgName, sym)
		}

		result.Symbols = append(result.Symbols, sym)
	}
}

// extractStructMembers adds field children and embed metadata to a struct.
func (p *GoParser) extractStructMembers(structType *sitter.Node, content []byte, filePath, pkgName string, parent *Symbol) {
	var fieldList *sitter.Node
	for i := 0; i < int(structType.ChildCount()); i++ {
		if structType.Child(i).Type() == "field_declaration_list" {
			fieldList = structType.Child(i)
			break
		}
	}
	if fieldList == nil {
		return
	}

	for i := 0; i < int(fieldList.ChildCount()); i++ {
		field := fieldList.Child(i)
		if field.Type() != "field_declaration" {
			continue
		}

		typeNode := field.ChildByFieldName("type")
		typeName := ""
		if typeNode != nil {
			typeName = bareTypeName(nodeText(typeNode, content))
		}

		var names []string
		for j := 0; j < int(field.ChildCount()); j++ {
			if field.Child(j).Type() == "field_identifier" {
				names = append(names, nodeText(field.Child(j), content))
			}
		}

		// A field declaration with no field identifiers is an embedded
		// type: record it as Extends/Implements metadata instead of a
		// named child.
		if len(names) == 0 && typeName != "" {
			if parent.Metadata == nil {
				parent.Metadata = &SymbolMetadata{}
			}
			if parent.Metadata.Extends == "" {
				parent.Metadata.Extends = typeName
			} else {
				parent.Metadata.Implements = append(parent.Metadata.Implements, typeName)
			}
			continue
		}

		for _, fieldName := range names {
			child := &Symbol{
				ID:        GenerateID(filePath, int(field.StartPoint().Row+1), parent.Name+"."+fieldName),
				Name:      fieldName,
				Kind:      SymbolKindField,
				FilePath:  filePath,
				Language:  "go",
				Package:   pkgName,
				Receiver:  parent.Name,
				Exported:  isGoExported(fieldName),
				StartLine: int(field.StartPoint().Row + 1),
				EndLine:   int(field.EndPoint().Row + 1),
				StartCol:  int(field.StartPoint().Column),
				EndCol:    int(field.EndPoint().Column),
			}
			if typeName != "" {
				child.Metadata = &SymbolMetadata{TypeRefs: []string{typeName}}
			}
			parent.Children = append(parent.Children, child)
		}
	}
}

// extractInterfaceMembers adds method-spec children to an interface.
// Both method_spec (older grammars) and method_elem (newer grammars)
// node types are accepted.
func (p *GoParser) extractInterfaceMembers(ifaceType *sitter.Node, content []byte, filePath, pkgName string, parent *Symbol) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			switch child.Type() {
			case "method_spec", "method_elem":
				nameNode := child.ChildByFieldName("name")
				if nameNode == nil {
					continue
				}
				methodName := nodeText(nameNode, content)
				parent.Children = append(parent.Children, &Symbol{
					ID:        GenerateID(filePath, int(child.StartPoint().Row+1), parent.Name+"."+methodName),
					Name:      methodName,
					Kind:      SymbolKindMethod,
					FilePath:  filePath,
					Language:  "go",
					Package:   pkgName,
					Receiver:  parent.Name,
					Exported:  isGoExported(methodName),
					Signature: strings.TrimSpace(nodeText(child, content)),
					StartLine: int(child.StartPoint().Row + 1),
					EndLine:   int(child.EndPoint().Row + 1),
					StartCol:  int(child.StartPoint().Column),
					EndCol:    int(child.EndPoint().Column),
				})
			case "method_spec_list":
				walk(child)
			case "type_identifier", "qualified_type":
				// Embedded interface.
				if parent.Metadata == nil {
					parent.Metadata = &SymbolMetadata{}
				}
				embedded := bareTypeName(nodeText(child, content))
				if parent.Metadata.Extends == "" {
					parent.Metadata.Extends = embedded
				} else {
					parent.Metadata.Implements = append(parent.Metadata.Implements, embedded)
				}
			}
		}
	}
	walk(ifaceType)
}

// processValueDeclaration extracts package-level var/const specs.
func (p *GoParser) processValueDeclaration(node *sitter.Node, specType string, kind SymbolKind, content []byte, filePath, pkgName string, result *ParseResult) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.Type() != specType {
				if child.ChildCount() > 0 {
					walk(child)
				}
				continue
			}
			for j := 0; j < int(child.ChildCount()); j++ {
				nameNode := child.Child(j)
				if nameNode.Type() != "identifier" {
					continue
				}
				name := nodeText(nameNode, content)
				if name == "_" {
					continue
				}
				exported := isGoExported(name)
				if !p.parseOptions.IncludePrivate && !exported {
					continue
				}
				result.Symbols = append(result.Symbols, &Symbol{
					ID:        GenerateID(filePath, int(child.StartPoint().Row+1), name),
					Name:      name,
					Kind:      kind,
					FilePath:  filePath,
					Language:  "go",
					Package:   pkgName,
					Exported:  exported,
					StartLine: int(child.StartPoint().Row + 1),
					EndLine:   int(child.EndPoint().Row + 1),
					StartCol:  int(child.StartPoint().Column),
					EndCol:    int(child.EndPoint().Column),
				})
			}
		}
	}
	walk(node)
}

// attachTypeMetadata records parameter/return type references on a
// function or method symbol.
func (p *GoParser) attachTypeMetadata(node *sitter.Node, content []byte, sym *Symbol) {
	meta := &SymbolMetadata{}

	if params := node.ChildByFieldName("parameters"); params != nil {
		for _, t := range goParameterTypes(params, content) {
			meta.TypeRefs = appendUnique(meta.TypeRefs, t)
		}
	}
	if res := node.ChildByFieldName("result"); res != nil {
		switch res.Type() {
		case "parameter_list":
			for _, t := range goParameterTypes(res, content) {
				meta.ReturnTypes = appendUnique(meta.ReturnTypes, t)
			}
		default:
			if t := bareTypeName(nodeText(res, content)); t != "" {
				meta.ReturnTypes = appendUnique(meta.ReturnTypes, t)
			}
		}
	}

	if len(meta.TypeRefs) > 0 || len(meta.ReturnTypes) > 0 {
		sym.Metadata = meta
	}
}

// walkBody collects call-sites, variable references, instantiations, and
// nested closures from a function body.
func (p *GoParser) walkBody(body *sitter.Node, content []byte, filePath, pkgName string, sym *Symbol) {
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
				if p.parseOptions.IncludeCallSites {
					p.recordCall(child, content, sym)
				}
				walk(child)
			case "composite_literal":
				if typeNode := child.ChildByFieldName("type"); typeNode != nil {
					if t := bareTypeName(nodeText(typeNode, content)); t != "" && isGoTypeName(t) {
						if sym.Metadata == nil {
							sym.Metadata = &SymbolMetadata{}
						}
						sym.Metadata.Instantiates = appendUnique(sym.Metadata.Instantiates, t)
					}
				}
				walk(child)
			case "assignment_statement", "inc_dec_statement":
				if p.parseOptions.IncludeVarRefs {
					p.recordWrites(child, content, sym, seenRefs)
				}
				walk(child)
			case "func_literal":
				closure := &Symbol{
					ID:        GenerateID(filePath, int(child.StartPoint().Row+1), sym.Name+"@closure"),
					Name:      sym.Name + "@closure",
					Kind:      SymbolKindClosure,
					FilePath:  filePath,
					Language:  "go",
					Package:   pkgName,
					Exported:  false,
					StartLine: int(child.StartPoint().Row + 1),
					EndLine:   int(child.EndPoint().Row + 1),
					StartCol:  int(child.StartPoint().Column),
					EndCol:    int(child.EndPoint().Column),
				}
				p.walkBody(child.ChildByFieldName("body"), content, filePath, pkgName, closure)
				sym.Children = append(sym.Children, closure)
			case "return_statement":
				if p.parseOptions.IncludeVarRefs {
					p.recordReads(child, content, sym, seenRefs)
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

// recordCall appends a CallSite for one call expression.
func (p *GoParser) recordCall(call *sitter.Node, content []byte, sym *Symbol) {
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
	case "selector_expression":
		field := fn.ChildByFieldName("field")
		operand := fn.ChildByFieldName("operand")
		if field == nil {
			return
		}
		receiver := ""
		if operand != nil {
			receiver = nodeText(operand, content)
		}
		sym.Calls = append(sym.Calls, CallSite{
			Callee:   nodeText(field, content),
			Receiver: receiver,
			Line:     int(call.StartPoint().Row + 1),
			Col:      int(call.StartPoint().Column),
		})
	}
}

// recordWrites records identifiers written by an assignment statement.
func (p *GoParser) recordWrites(stmt *sitter.Node, content []byte, sym *Symbol, seen map[string]bool) {
	appendRef := func(name string, line int) {
		if name == "" || name == "_" {
			return
		}
		key := name + ":w"
		if seen[key] {
			return
		}
		seen[key] = true
		sym.Refs = append(sym.Refs, VarRef{Name: name, Line: line, Write: true})
	}

	if stmt.Type() == "inc_dec_statement" && stmt.ChildCount() > 0 {
		target := stmt.Child(0)
		if target.Type() == "identifier" {
			appendRef(nodeText(target, content), int(stmt.StartPoint().Row+1))
		}
		return
	}

	left := stmt.ChildByFieldName("left")
	if left == nil {
		return
	}
	for i := 0; i < int(left.ChildCount()); i++ {
		child := left.Child(i)
		if child.Type() == "identifier" {
			appendRef(nodeText(child, content), int(child.StartPoint().Row+1))
		}
	}
	if left.Type() == "identifier" {
		appendRef(nodeText(left, content), int(left.StartPoint().Row+1))
	}
}

// recordReads records plain identifiers read by a return statement.
func (p *GoParser) recordReads(stmt *sitter.Node, content []byte, sym *Symbol, seen map[string]bool) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.Type() == "identifier" {
				name := nodeText(child, content)
				key := name + ":r"
				if name != "" && name != "_" && !seen[key] {
					seen[key] = true
					sym.Refs = append(sym.Refs, VarRef{Name: name, Line: int(child.StartPoint().Row + 1)})
				}
			} else if child.ChildCount() > 0 && child.Type() != "call_expression" {
				walk(child)
			}
		}
	}
	walk(stmt)
}

// goReceiverType extracts the bare receiver type name of a method.
func goReceiverType(method *sitter.Node, content []byte) string {
	recv := method.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for i := 0; i < int(recv.ChildCount()); i++ {
		decl := recv.Child(i)
		if decl.Type() != "parameter_declaration" {
			continue
		}
		typeNode := decl.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		return bareTypeName(nodeText(typeNode, content))
	}
	return ""
}

// goSignature returns the declaration text up to the body.
func goSignature(node *sitter.Node, content []byte) string {
	body := node.ChildByFieldName("body")
	end := node.EndByte()
	if body != nil {
		end = body.StartByte()
	}
	start := node.StartByte()
	if int(end) > len(content) || start >= end {
		return ""
	}
	return strings.TrimSpace(string(content[start:end]))
}

// goParameterTypes lists bare named types in a parameter list.
func goParameterTypes(params *sitter.Node, content []byte) []string {
	var types []string
	for i := 0; i < int(params.ChildCount()); i++ {
		decl := params.Child(i)
		if decl.Type() != "parameter_declaration" && decl.Type() != "variadic_parameter_declaration" {
			continue
		}
		typeNode := decl.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		if t := bareTypeName(nodeText(typeNode, content)); t != "" && isGoTypeName(t) {
			types = append(types, t)
		}
	}
	return types
}

// isGoExported reports whether a Go identifier is exported.
func isGoExported(name string) bool {
	if name == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// isGoTypeName filters out builtins and primitives from type references.
func isGoTypeName(name string) bool {
	switch name {
	case "bool", "string", "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
		"byte", "rune", "float32", "float64", "complex64", "complex128",
		"error", "any":
		return false
	}
	return name != ""
}
