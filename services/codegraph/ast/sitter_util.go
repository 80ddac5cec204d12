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
	"bytes"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// nodeText returns the source text covered by a node.
func nodeText(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if int(end) > len(content) || start > end {
		return ""
	}
	return string(content[start:end])
}

// bareTypeName strips pointers, slices, maps, generics, and qualifiers
// down to the rightmost bare type identifier. "[]*pkg.Foo" becomes "Foo".
func bareTypeName(typeText string) string {
	t := strings.TrimSpace(typeText)
	for {
		switch {
		case strings.HasPrefix(t, "*"):
			t = t[1:]
		case strings.HasPrefix(t, "[]"):
			t = t[2:]
		case strings.HasPrefix(t, "..."):
			t = t[3:]
		case strings.HasPrefix(t, "map["):
			// Use the value type of a map.
			depth := 0
			idx := -1
			for i := 3; i < len(t); i++ {
				if t[i] == '[' {
					depth++
				} else if t[i] == ']' {
					depth--
					if depth == 0 {
						idx = i
						break
					}
				}
			}
			if idx < 0 {
				return ""
			}
			t = t[idx+1:]
		default:
			goto stripped
		}
	}
stripped:
	// Drop generic arguments and function signatures.
	if i := strings.IndexAny(t, "[(<"); i >= 0 {
		t = t[:i]
	}
	// Keep the rightmost segment of a qualified name.
	if i := strings.LastIndex(t, "."); i >= 0 {
		t = t[i+1:]
	}
	t = strings.TrimSpace(t)
	if t == "" || strings.ContainsAny(t, "{}&|,") {
		return ""
	}
	return t
}

// precedingComment joins the comment block immediately above a node.
// Comment markers are stripped; interior blank lines end the block.
func precedingComment(n *sitter.Node, content []byte) string {
	var lines []string
	prev := n.PrevNamedSibling()
	expectedEnd := int(n.StartPoint().Row) - 1

	for prev != nil && prev.Type() == "comment" {
		if int(prev.EndPoint().Row) != expectedEnd {
			break
		}
		text := nodeText(prev, content)
		lines = append([]string{cleanCommentText(text)}, lines...)
		expectedEnd = int(prev.StartPoint().Row) - 1
		prev = prev.PrevNamedSibling()
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// cleanCommentText strips //, /* */, and leading * decoration.
func cleanCommentText(text string) string {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, "//"):
		return strings.TrimSpace(strings.TrimPrefix(text, "//"))
	case strings.HasPrefix(text, "/*"):
		text = strings.TrimPrefix(text, "/*")
		text = strings.TrimSuffix(text, "*/")
		var cleaned []string
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			line = strings.TrimPrefix(line, "*")
			cleaned = append(cleaned, strings.TrimSpace(line))
		}
		return strings.TrimSpace(strings.Join(cleaned, "\n"))
	case strings.HasPrefix(text, "#"):
		return strings.TrimSpace(strings.TrimPrefix(text, "#"))
	default:
		return text
	}
}

// countLines counts source lines (newline count plus one for non-empty
// content without a trailing newline).
func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

// appendUnique appends s to list if not already present.
func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
