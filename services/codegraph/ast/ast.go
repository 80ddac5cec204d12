// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast provides per-language source adapters that normalize
// tree-sitter parse trees into a language-neutral symbol stream.
//
// Each adapter implements the Parser interface and emits Symbols,
// Imports, and recorded call-sites/references for one language. The
// graph package consumes these streams to build canonical code graphs;
// adapters never resolve cross-file references themselves.
package ast

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// File size limits shared by all adapters.
const (
	// DefaultMaxFileSize is the largest file an adapter will accept (2MB).
	DefaultMaxFileSize = int64(2 * 1024 * 1024)

	// WarnFileSize triggers a slog warning for unusually large inputs (512KB).
	WarnFileSize = 512 * 1024
)

// Sentinel errors returned by Parse implementations.
var (
	// ErrFileTooLarge indicates the content exceeds the adapter's size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent indicates the content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrUnsupportedLanguage indicates no adapter is registered for the input.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// SymbolKind classifies a symbol into the canonical node-kind enumeration.
//
// The enumeration is fixed: adapters map language constructs onto these
// kinds, and anything without a mapping becomes SymbolKindOther rather
// than being dropped, so graph connectivity survives unknown syntax.
type SymbolKind string

// Canonical symbol kinds. Not every language emits every kind.
const (
	SymbolKindFunction    SymbolKind = "function"
	SymbolKindMethod      SymbolKind = "method"
	SymbolKindClosure     SymbolKind = "closure"
	SymbolKindStruct      SymbolKind = "struct"
	SymbolKindClass       SymbolKind = "class"
	SymbolKindEnum        SymbolKind = "enum"
	SymbolKindInterface   SymbolKind = "interface"
	SymbolKindTrait       SymbolKind = "trait"
	SymbolKindTypeAlias   SymbolKind = "type_alias"
	SymbolKindModule      SymbolKind = "module"
	SymbolKindPackage     SymbolKind = "package"
	SymbolKindFile        SymbolKind = "file"
	SymbolKindVariable    SymbolKind = "variable"
	SymbolKindConstant    SymbolKind = "constant"
	SymbolKindField       SymbolKind = "field"
	SymbolKindParameter   SymbolKind = "parameter"
	SymbolKindImport      SymbolKind = "import"
	SymbolKindExport      SymbolKind = "export"
	SymbolKindCall        SymbolKind = "call"
	SymbolKindLoop        SymbolKind = "loop"
	SymbolKindConditional SymbolKind = "conditional"
	SymbolKindReturn      SymbolKind = "return"
	SymbolKindAssignment  SymbolKind = "assignment"
	SymbolKindLiteral     SymbolKind = "literal"
	SymbolKindComment     SymbolKind = "comment"
	SymbolKindAttribute   SymbolKind = "attribute"
	SymbolKindMacro       SymbolKind = "macro"
	SymbolKindTest        SymbolKind = "test"
	SymbolKindLambda      SymbolKind = "lambda"
	SymbolKindBlock       SymbolKind = "block"
	SymbolKindGeneric     SymbolKind = "generic"
	SymbolKindExternal    SymbolKind = "external"
	SymbolKindOther       SymbolKind = "other"
)

// allSymbolKinds lists every kind in a fixed order. The order is part of
// the feature-vector layout and must not change between releases.
var allSymbolKinds = []SymbolKind{
	SymbolKindFunction, SymbolKindMethod, SymbolKindClosure,
	SymbolKindStruct, SymbolKindClass, SymbolKindEnum,
	SymbolKindInterface, SymbolKindTrait, SymbolKindTypeAlias,
	SymbolKindModule, SymbolKindPackage, SymbolKindFile,
	SymbolKindVariable, SymbolKindConstant, SymbolKindField,
	SymbolKindParameter, SymbolKindImport, SymbolKindExport,
	SymbolKindCall, SymbolKindLoop, SymbolKindConditional,
	SymbolKindReturn, SymbolKindAssignment, SymbolKindLiteral,
	SymbolKindComment, SymbolKindAttribute, SymbolKindMacro,
	SymbolKindTest, SymbolKindLambda, SymbolKindBlock,
	SymbolKindGeneric, SymbolKindExternal, SymbolKindOther,
}

var symbolKindIndex = func() map[SymbolKind]int {
	m := make(map[SymbolKind]int, len(allSymbolKinds))
	for i, k := range allSymbolKinds {
		m[k] = i
	}
	return m
}()

// AllSymbolKinds returns the canonical kind enumeration in fixed order.
// The returned slice must not be modified.
func AllSymbolKinds() []SymbolKind {
	return allSymbolKinds
}

// SymbolKindCount is the number of canonical symbol kinds.
func SymbolKindCount() int {
	return len(allSymbolKinds)
}

// Index returns the fixed ordinal of the kind, or the ordinal of
// SymbolKindOther for kinds outside the enumeration.
func (k SymbolKind) Index() int {
	if i, ok := symbolKindIndex[k]; ok {
		return i
	}
	return symbolKindIndex[SymbolKindOther]
}

// Valid reports whether the kind belongs to the canonical enumeration.
func (k SymbolKind) Valid() bool {
	_, ok := symbolKindIndex[k]
	return ok
}

// Canonical returns the kind itself when valid, SymbolKindOther otherwise.
func (k SymbolKind) Canonical() SymbolKind {
	if k.Valid() {
		return k
	}
	return SymbolKindOther
}

// CallSite records one call expression found inside a symbol's body.
//
// Callee is the bare called name ("parse"), Receiver the expression the
// call was made on when syntactically present ("p" in p.parse()).
// Resolution against declared symbols happens later in the graph builder.
type CallSite struct {
	// Callee is the called function or method name.
	Callee string `json:"callee"`

	// Receiver is the receiver expression text, empty for plain calls.
	Receiver string `json:"receiver,omitempty"`

	// Line is the 1-based line of the call expression.
	Line int `json:"line"`

	// Col is the 0-based column of the call expression.
	Col int `json:"col"`
}

// VarRef records a read or write of a named variable inside a symbol's
// body. Only references that may target file- or package-level symbols
// are recorded; local shadowing is resolved away by the graph builder.
type VarRef struct {
	// Name is the referenced identifier.
	Name string `json:"name"`

	// Line is the 1-based line of the reference.
	Line int `json:"line"`

	// Write is true for assignments, false for reads.
	Write bool `json:"write,omitempty"`
}

// Import records one import declaration in a file.
type Import struct {
	// Path is the imported module or package path.
	Path string `json:"path"`

	// Alias is the local alias, empty when the default name is used.
	Alias string `json:"alias,omitempty"`

	// Names lists individually imported names (from X import a, b).
	Names []string `json:"names,omitempty"`

	// IsWildcard is true for star imports.
	IsWildcard bool `json:"is_wildcard,omitempty"`

	// IsRelative is true for relative imports (leading dots).
	IsRelative bool `json:"is_relative,omitempty"`

	// Line is the 1-based line of the import declaration.
	Line int `json:"line"`
}

// SymbolMetadata carries optional language-specific facts about a symbol
// that the graph builder turns into typed edges.
type SymbolMetadata struct {
	// Extends is the parent class or embedded base, empty if none.
	Extends string `json:"extends,omitempty"`

	// Implements lists explicitly implemented interfaces or protocols.
	Implements []string `json:"implements,omitempty"`

	// Decorators lists decorator or annotation names.
	Decorators []string `json:"decorators,omitempty"`

	// ReturnTypes lists named return types of a function or method.
	ReturnTypes []string `json:"return_types,omitempty"`

	// TypeRefs lists named types referenced in parameters and fields.
	TypeRefs []string `json:"type_refs,omitempty"`

	// Instantiates lists named types constructed in the symbol's body
	// (composite literals, new expressions).
	Instantiates []string `json:"instantiates,omitempty"`

	// Throws lists exception or error type names raised in the body.
	Throws []string `json:"throws,omitempty"`
}

// Symbol is one declared entity extracted from a source file.
//
// Description:
//
//	Symbols form a tree per file via Children (methods under their type,
//	fields under their struct). IDs are content-derived and stable: the
//	same file path, line, and name always produce the same ID, so graphs
//	rebuilt from unchanged sources carry identical node identities.
//
// Thread Safety: Symbols are written once by an adapter and read-only
// afterwards.
type Symbol struct {
	// ID uniquely identifies the symbol. See GenerateID.
	ID string `json:"id"`

	// Name is the declared name.
	Name string `json:"name"`

	// Kind is the canonical symbol kind.
	Kind SymbolKind `json:"kind"`

	// FilePath is the path of the declaring file, forward slashes.
	FilePath string `json:"file_path"`

	// Language is the canonical language name ("go", "python", ...).
	Language string `json:"language"`

	// Package is the declaring package or module name, if known.
	Package string `json:"package,omitempty"`

	// Receiver is the receiver type name for methods, empty otherwise.
	Receiver string `json:"receiver,omitempty"`

	// Signature is the declaration signature text, if captured.
	Signature string `json:"signature,omitempty"`

	// Exported reports whether the symbol is visible outside its unit.
	Exported bool `json:"exported"`

	// DocComment is the attached documentation text, if any.
	DocComment string `json:"doc_comment,omitempty"`

	// StartLine and EndLine delimit the declaration, 1-based inclusive.
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`

	// StartCol and EndCol are 0-based columns on the start and end lines.
	StartCol int `json:"start_col"`
	EndCol   int `json:"end_col"`

	// Children are nested symbols (methods, fields, inner functions).
	Children []*Symbol `json:"children,omitempty"`

	// Calls are call-sites found in the symbol's body.
	Calls []CallSite `json:"calls,omitempty"`

	// Refs are variable reads/writes found in the symbol's body.
	Refs []VarRef `json:"refs,omitempty"`

	// Metadata holds optional language-specific facts.
	Metadata *SymbolMetadata `json:"metadata,omitempty"`
}

// Validate checks structural invariants of the symbol tree.
//
// Outputs:
//
//	error - Non-nil if the symbol or any descendant has an empty ID,
//	an empty name with a non-Other kind, or an inverted line range.
func (s *Symbol) Validate() error {
	if s == nil {
		return fmt.Errorf("symbol must not be nil")
	}
	if s.ID == "" {
		return fmt.Errorf("symbol %q has empty ID", s.Name)
	}
	if s.Name == "" && s.Kind != SymbolKindOther {
		return fmt.Errorf("symbol %s (kind %s) has empty name", s.ID, s.Kind)
	}
	if s.EndLine < s.StartLine {
		return fmt.Errorf("symbol %s has end line %d before start line %d", s.ID, s.EndLine, s.StartLine)
	}
	for _, c := range s.Children {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// QualifiedName returns the resolution key for the symbol:
// package.receiver.name when both are present, degrading gracefully.
func (s *Symbol) QualifiedName() string {
	switch {
	case s.Package != "" && s.Receiver != "":
		return s.Package + "." + s.Receiver + "." + s.Name
	case s.Package != "":
		return s.Package + "." + s.Name
	case s.Receiver != "":
		return s.Receiver + "." + s.Name
	default:
		return s.Name
	}
}

// LineCount returns the number of source lines the symbol spans.
func (s *Symbol) LineCount() int {
	if s.EndLine < s.StartLine {
		return 0
	}
	return s.EndLine - s.StartLine + 1
}

// ParseResult is the output of one adapter Parse call.
type ParseResult struct {
	// FilePath is the parsed file's path, forward slashes.
	FilePath string `json:"file_path"`

	// Language is the canonical language name.
	Language string `json:"language"`

	// Hash is the SHA256 hex digest of the parsed content.
	Hash string `json:"hash"`

	// ParsedAtMilli is when parsing finished (Unix milliseconds).
	ParsedAtMilli int64 `json:"parsed_at_milli"`

	// Symbols are the top-level symbols of the file.
	Symbols []*Symbol `json:"symbols"`

	// Imports are the file's import declarations.
	Imports []Import `json:"imports"`

	// Errors lists non-fatal parse diagnostics (syntax errors, skipped
	// constructs). A non-empty list still yields usable symbols.
	Errors []string `json:"errors"`

	// LineCount is the number of lines in the parsed file.
	LineCount int `json:"line_count"`
}

// Validate checks the result and all contained symbols.
func (r *ParseResult) Validate() error {
	if r == nil {
		return fmt.Errorf("parse result must not be nil")
	}
	if r.FilePath == "" {
		return fmt.Errorf("parse result has empty file path")
	}
	if r.Language == "" {
		return fmt.Errorf("parse result for %s has empty language", r.FilePath)
	}
	for _, s := range r.Symbols {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("in %s: %w", r.FilePath, err)
		}
	}
	return nil
}

// SymbolCount returns the total number of symbols including children.
func (r *ParseResult) SymbolCount() int {
	n := 0
	var walk func(syms []*Symbol)
	walk = func(syms []*Symbol) {
		for _, s := range syms {
			n++
			walk(s.Children)
		}
	}
	walk(r.Symbols)
	return n
}

// ParseOptions controls adapter behavior shared across languages.
type ParseOptions struct {
	// IncludePrivate includes unexported/private symbols. Default true:
	// structural learning needs the full graph, not the public surface.
	IncludePrivate bool

	// IncludeDocComments attaches doc text to symbols.
	IncludeDocComments bool

	// IncludeCallSites records call expressions inside bodies.
	IncludeCallSites bool

	// IncludeVarRefs records reads/writes of non-local identifiers.
	IncludeVarRefs bool
}

// DefaultParseOptions returns the options used when none are provided.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		IncludePrivate:     true,
		IncludeDocComments: true,
		IncludeCallSites:   true,
		IncludeVarRefs:     true,
	}
}

// GenerateID derives a stable symbol ID from file path, line, and name.
//
// The ID is the first 16 hex characters of SHA256(filePath:line:name),
// so identical declarations in unchanged files keep their identity
// across rebuilds while distinct declarations collide with negligible
// probability at code-graph scale.
func GenerateID(filePath string, line int, name string) string {
	h := sha256.Sum256([]byte(filePath + ":" + strconv.Itoa(line) + ":" + name))
	return hex.EncodeToString(h[:])[:16]
}
