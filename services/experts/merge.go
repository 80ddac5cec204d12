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

import "sort"

// mergeKey identifies one reported location. Two detectors flagging
// the same pattern at the same place are one finding.
type mergeKey struct {
	pattern string
	file    string
	line    int
}

// MergeFindings deduplicates and orders findings from several experts.
//
// # Description
//
// Findings sharing (pattern, file, line) collapse to one: the higher
// severity wins, and at equal severity the higher confidence wins. The
// merged list orders by severity descending, confidence descending,
// then pattern, file, and line ascending so equal reports always come
// back in the same order. The input is not modified.
func MergeFindings(findings []Finding) []Finding {
	if len(findings) == 0 {
		return nil
	}

	best := make(map[mergeKey]Finding, len(findings))
	for _, f := range findings {
		key := mergeKey{pattern: f.Pattern, file: f.File, line: f.Line}
		cur, seen := best[key]
		if !seen || outranks(f, cur) {
			best[key] = f
		}
	}

	merged := make([]Finding, 0, len(best))
	for _, f := range best {
		merged = append(merged, f)
	}
	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Pattern != b.Pattern {
			return a.Pattern < b.Pattern
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
	return merged
}

// outranks reports whether a should replace b for the same location.
func outranks(a, b Finding) bool {
	if a.Severity != b.Severity {
		return a.Severity > b.Severity
	}
	return a.Confidence > b.Confidence
}
