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
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TypeScriptParserOption configures a TypeScriptParser instance.
type TypeScriptParserOption func(*TypeScriptParser)

// WithTypeScriptMaxFileSize sets the maximum file size the parser will accept.
func WithTypeScriptMaxFileSize(bytes int64) TypeScriptParserOption {
	return func(p *TypeScriptParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithTypeScriptParseOptions applies the given ParseOptions to the parser.
func WithTypeScriptParseOptions(opts ParseOptions) TypeScriptParserOption {
	return func(p *TypeScriptParser) {
		p.parseOptions = opts
	}
}

// TypeScriptParser implements the Parser interface for TypeScript.
//
// Description:
//
//	TypeScriptParser extends the JavaScript extraction with interfaces,
//	type aliases, enums, and abstract classes. The .tsx extension
//	selects the TSX grammar; all other extensions use the TypeScript
//	grammar.
//
// Thread Safety:
//
//	TypeScriptParser instances are safe for concurrent use. Each Parse
//	call creates its own tree-sitter parser instance internally.
type TypeScriptParser struct {
	maxFileSize  int64
	parseOptions ParseOptions
}

// NewTypeScriptParser creates a new TypeScriptParser with the given options.
func NewTypeScriptParser(opts ...TypeScriptParserOption) *TypeScriptParser {
	p := &TypeScriptParser{
		maxFileSize:  DefaultMaxFileSize,
		parseOptions: DefaultParseOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns the canonical language name for this parser.
func (p *TypeScriptParser) Language() string {
	return "typescript"
}

// Extensions returns the file extensions this parser handles.
func (p *TypeScriptParser) Extensions() []string {
	return []string{".ts", ".tsx", ".mts", ".cts"}
}

// Parse extracts symbols from TypeScript source code.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *TypeScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "typescript", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}
	if !utf8.Valid(content) {
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	// Use the TSX grammar for .tsx files, TypeScript grammar otherwise.
	if strings.HasSuffix(filePath, ".tsx") {
		parser.SetLanguage(tsx.GetLanguage())
	} else {
		parser.SetLanguage(typescript.GetLanguage())
	}

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "typescript",
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
	walkJSTopLevel(root, content, filePath, moduleName, "typescript", p.parseOptions, result)

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(start), len(result.Symbols), false)
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}

	setParseSpanResult(span, len(result.Symbols), len(result.Errors))
	recordParseMetrics(ctx, "typescript", time.Since(start), len(result.Symbols), true)

	return result, nil
}

// tsProcessInterface extracts an interface declaration with its method
// and property members as children.
func tsProcessInterface(node *sitter.Node, content []byte, filePath, moduleName, language string, opts ParseOptions, exported bool) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)

	sym := &Symbol{
		ID:        GenerateID(filePath, int(node.StartPoint().Row+1), name),
		Name:      name,
		Kind:      SymbolKindInterface,
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

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "extends_type_clause", "extends_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				inner := child.Child(j)
				if inner.Type() == "type_identifier" || inner.Type() == "identifier" || inner.Type() == "generic_type" {
					if sym.Metadata == nil {
						sym.Metadata = &SymbolMetadata{}
					}
					base := bareTypeName(nodeText(inner, content))
					if sym.Metadata.Extends == "" {
						sym.Metadata.Extends = base
					} else {
						sym.Metadata.Implements = appendUnique(sym.Metadata.Implements, base)
					}
				}
			}
		case "interface_body", "object_type":
			tsExtractInterfaceMembers(child, content, filePath, moduleName, language, sym)
		}
	}
	return sym
}

// tsExtractInterfaceMembers extracts method and property signatures.
func tsExtractInterfaceMembers(body *sitter.Node, content []byte, filePath, moduleName, language string, parent *Symbol) {
	for i := 0; i < int(body.ChildCount()); i++ {
		member := body.Child(i)
		var name string
		var kind SymbolKind
		switch member.Type() {
		case "method_signature":
			kind = SymbolKindMethod
		case "property_signature":
			kind = SymbolKindField
		default:
			continue
		}
		if nameNode := member.ChildByFieldName("name"); nameNode != nil {
			name = nodeText(nameNode, content)
		}
		if name == "" {
			continue
		}
		parent.Children = append(parent.Children, &Symbol{
			ID:        GenerateID(filePath, int(member.StartPoint().Row+1), parent.Name+"."+name),
			Name:      name,
			Kind:      kind,
			FilePath:  filePath,
			Language:  language,
			Package:   moduleName,
			Receiver:  parent.Name,
			Exported:  true,
			Signature: strings.TrimSpace(strings.TrimSuffix(nodeText(member, content), ";")),
			StartLine: int(member.StartPoint().Row + 1),
			EndLine:   int(member.EndPoint().Row + 1),
			StartCol:  int(member.StartPoint().Column),
			EndCol:    int(member.EndPoint().Column),
		})
	}
}

// tsProcessTypeAlias extracts a type alias declaration.
func tsProcessTypeAlias(node *sitter.Node, content []byte, filePath, moduleName, language string, opts ParseOptions, exported bool) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)

	sym := &Symbol{
		ID:        GenerateID(filePath, int(node.StartPoint().Row+1), name),
		Name:      name,
		Kind:      SymbolKindTypeAlias,
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
	if value := node.ChildByFieldName("value"); value != nil {
		if t := bareTypeName(nodeText(value, content)); t != "" {
			sym.Metadata = &SymbolMetadata{TypeRefs: []string{t}}
		}
	}
	return sym
}

// tsProcessEnum extracts an enum declaration with member children.
func tsProcessEnum(node *sitter.Node, content []byte, filePath, moduleName, language string, opts ParseOptions, exported bool) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)

	sym := &Symbol{
		ID:        GenerateID(filePath, int(node.StartPoint().Row+1), name),
		Name:      name,
		Kind:      SymbolKindEnum,
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

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			member := body.Child(i)
			if member.Type() != "enum_assignment" && member.Type() != "property_identifier" {
				continue
			}
			memberName := ""
			if member.Type() == "property_identifier" {
				memberName = nodeText(member, content)
			} else if nameNode := member.ChildByFieldName("name"); nameNode != nil {
				memberName = nodeText(nameNode, content)
			}
			if memberName == "" {
				continue
			}
			sym.Children = append(sym.Children, &Symbol{
				ID:        GenerateID(filePath, int(member.StartPoint().Row+1), name+"."+memberName),
				Name:      memberName,
				Kind:      SymbolKindConstant,
				FilePath:  filePath,
				Language:  language,
				Package:   moduleName,
				Receiver:  name,
				Exported:  true,
				StartLine: int(member.StartPoint().Row + 1),
				EndLine:   int(member.EndPoint().Row + 1),
				StartCol:  int(member.StartPoint().Column),
				EndCol:    int(member.EndPoint().Column),
			})
		}
	}
	return sym
}
