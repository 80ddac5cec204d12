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
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Parser is the adapter contract: one implementation per language.
//
// Description:
//
//	Parse extracts the file's symbol stream. Implementations must be
//	stateless and safe for concurrent use; each call creates its own
//	tree-sitter parser instance internally.
type Parser interface {
	// Parse extracts symbols from source content.
	Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error)

	// Language returns the canonical language name.
	Language() string

	// Extensions returns the file extensions this parser handles,
	// including the leading dot.
	Extensions() []string
}

// ParserRegistry maps languages and file extensions to adapters.
//
// Description:
//
//	The registry is the single dispatch point for parser selection.
//	Adding a language means registering an adapter; nothing downstream
//	changes. Lookups are case-insensitive on both language names and
//	extensions.
//
// Thread Safety:
//
//	Safe for concurrent use. Registration and lookup may interleave.
type ParserRegistry struct {
	mu         sync.RWMutex
	byLanguage map[string]Parser
	byExt      map[string]Parser
}

// NewParserRegistry creates an empty registry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{
		byLanguage: make(map[string]Parser),
		byExt:      make(map[string]Parser),
	}
}

// NewDefaultRegistry creates a registry with all built-in adapters
// registered: Go, Python, JavaScript, TypeScript.
func NewDefaultRegistry(opts ...ParseOptions) *ParserRegistry {
	parseOpts := DefaultParseOptions()
	if len(opts) > 0 {
		parseOpts = opts[0]
	}
	r := NewParserRegistry()
	// Registration of built-ins cannot fail: languages and extensions
	// are distinct by construction.
	_ = r.Register(NewGoParser(WithGoParseOptions(parseOpts)))
	_ = r.Register(NewPythonParser(WithPythonParseOptions(parseOpts)))
	_ = r.Register(NewJavaScriptParser(WithJavaScriptParseOptions(parseOpts)))
	_ = r.Register(NewTypeScriptParser(WithTypeScriptParseOptions(parseOpts)))
	return r
}

// Register adds a parser to the registry.
//
// Outputs:
//
//	error - Non-nil if p is nil, its language is empty, or its language
//	or any extension is already registered.
func (r *ParserRegistry) Register(p Parser) error {
	if p == nil {
		return fmt.Errorf("parser must not be nil")
	}
	lang := strings.ToLower(p.Language())
	if lang == "" {
		return fmt.Errorf("parser language must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byLanguage[lang]; exists {
		return fmt.Errorf("language %q already registered", lang)
	}
	for _, ext := range p.Extensions() {
		if _, exists := r.byExt[strings.ToLower(ext)]; exists {
			return fmt.Errorf("extension %q already registered", ext)
		}
	}

	r.byLanguage[lang] = p
	for _, ext := range p.Extensions() {
		r.byExt[strings.ToLower(ext)] = p
	}
	return nil
}

// ForLanguage returns the parser for a canonical language name.
func (r *ParserRegistry) ForLanguage(language string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byLanguage[strings.ToLower(language)]
	return p, ok
}

// ForFile returns the parser responsible for a file path, selected by
// extension.
func (r *ParserRegistry) ForFile(path string) (Parser, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byExt[ext]
	return p, ok
}

// Languages returns the registered language names, sorted.
func (r *ParserRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Parse dispatches to the parser for the file's extension.
//
// Outputs:
//
//	*ParseResult - The adapter output for supported files.
//	error - ErrUnsupportedLanguage (wrapped) when no parser matches,
//	or the adapter's own error.
func (r *ParserRegistry) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	p, ok := r.ForFile(filePath)
	if !ok {
		return nil, fmt.Errorf("%w: no parser for %q", ErrUnsupportedLanguage, filepath.Ext(filePath))
	}
	return p.Parse(ctx, content, filePath)
}
