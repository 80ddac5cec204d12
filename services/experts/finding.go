// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package experts routes a compressed graph embedding to language
// expert detectors and merges their findings.
//
// # Description
//
// The router computes per-language relevance weights from the graph's
// language structure, fans the analysis out to every detector
// registered for those languages, scales each finding's confidence by
// its language's weight, and merges the results into one deduplicated,
// severity-ordered report. Detectors are collaborators behind a narrow
// interface; adding a language means registering a detector, never
// touching the router.
package experts

import (
	"encoding/json"
	"fmt"
)

// Severity ranks how urgent a finding is. The zero value is the least
// urgent; comparisons on the ordinal are meaningful.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityInfo:     "info",
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

// String returns the lowercase wire name.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity maps a wire name back to its ordinal.
func ParseSeverity(name string) (Severity, error) {
	for s, n := range severityNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("experts: unknown severity %q", name)
}

// MarshalJSON emits the wire name rather than the ordinal so reports
// stay readable and the ordinal stays free to reorder internally.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses the wire name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Category classifies what aspect of the code a pattern speaks to.
type Category string

const (
	CategorySecurity    Category = "security"
	CategoryPerformance Category = "performance"
	CategoryIdiom       Category = "idiom"
	CategoryBugRisk     Category = "bug_risk"
	CategoryStyle       Category = "style"
)

// Finding is one detector observation about one location.
type Finding struct {
	// Pattern identifies the detected pattern, prefixed with the
	// language it belongs to (for example "go.high_fan_out").
	Pattern string `json:"pattern"`

	// Category classifies the pattern.
	Category Category `json:"category"`

	// Severity ranks urgency.
	Severity Severity `json:"severity"`

	// Confidence is the detector's certainty in [0,1]. The router
	// scales it by the language's relevance weight before merging.
	Confidence float64 `json:"confidence"`

	// Language is the language expert that produced the finding.
	Language string `json:"language"`

	// File and Line locate the finding. Graph-level findings leave
	// both zero.
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`

	// Message describes what was found.
	Message string `json:"message"`

	// Suggestion optionally proposes a fix.
	Suggestion string `json:"suggestion,omitempty"`
}
