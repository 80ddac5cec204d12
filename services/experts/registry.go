// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package experts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/graph"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/compress"
)

// Detector is the language expert contract.
//
// # Description
//
// Analyze receives the whole-graph embedding and the graph itself and
// reports findings for its language. Implementations must be stateless
// and safe for concurrent use; the router runs detectors for different
// languages in parallel against the same immutable graph. Confidence
// values are the detector's own certainty; the router applies language
// weighting afterwards.
type Detector interface {
	// Analyze reports findings. Long scans should poll ctx.
	Analyze(ctx context.Context, emb compress.Embedding, g *graph.Graph) ([]Finding, error)

	// Name identifies the detector in reports and logs.
	Name() string
}

// Registry maps language tags to ordered detector lists.
//
// # Description
//
// The registry is the single dispatch point for expert selection.
// Adding a language means registering a detector; the router never
// changes. Detectors for one language run in registration order, so a
// cheap pre-filter detector can be registered ahead of an expensive
// one. Language lookups are case-insensitive.
//
// # Thread Safety
//
// Safe for concurrent use. Registration and lookup may interleave.
type Registry struct {
	mu         sync.RWMutex
	byLanguage map[string][]Detector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byLanguage: make(map[string][]Detector)}
}

// Register appends a detector to a language's list.
//
// Outputs:
//
//	error - Non-nil if d is nil, language is empty, or a detector with
//	the same name is already registered for the language.
func (r *Registry) Register(language string, d Detector) error {
	if d == nil {
		return fmt.Errorf("experts: detector must not be nil")
	}
	lang := strings.ToLower(language)
	if lang == "" {
		return fmt.Errorf("experts: language must not be empty")
	}
	if d.Name() == "" {
		return fmt.Errorf("experts: detector name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byLanguage[lang] {
		if existing.Name() == d.Name() {
			return fmt.Errorf("experts: detector %q already registered for %q", d.Name(), lang)
		}
	}
	r.byLanguage[lang] = append(r.byLanguage[lang], d)
	return nil
}

// ForLanguage returns the language's detectors in registration order.
// The returned slice is a copy.
func (r *Registry) ForLanguage(language string) []Detector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds := r.byLanguage[strings.ToLower(language)]
	if len(ds) == 0 {
		return nil
	}
	out := make([]Detector, len(ds))
	copy(out, ds)
	return out
}

// Languages returns the registered language names, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// NewDefaultRegistry creates a registry with the reference heuristic
// detector registered for every built-in language: Go, Python,
// JavaScript, TypeScript.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	// Registration of built-ins cannot fail: languages and names are
	// distinct by construction.
	for _, lang := range []string{"go", "python", "javascript", "typescript"} {
		_ = r.Register(lang, NewHeuristicDetector(DefaultHeuristicConfig(lang)))
	}
	return r
}
