// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package diag

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// FormatWithContext returns the diagnostic with the offending source line
// and a caret under the reported column.
func FormatWithContext(d Diagnostic, source string) string {
	if source == "" || !d.Pos.IsValid() {
		return d.String()
	}

	lines := strings.Split(source, "\n")
	lineNum := d.Pos.Line
	if lineNum > len(lines) {
		return d.String()
	}

	line := strings.TrimRight(lines[lineNum-1], "\r")
	col := d.Pos.Column
	if col < 1 {
		col = 1
	}
	if col > len(line)+1 {
		col = len(line) + 1
	}

	// Tabs keep their width so the caret lines up under the same byte.
	prefix := line[:col-1]
	var pad strings.Builder
	for _, r := range prefix {
		if r == '\t' {
			pad.WriteByte('\t')
			continue
		}
		pad.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", d.String())
	sb.WriteString("   |\n")
	fmt.Fprintf(&sb, "%3d| %s\n", lineNum, line)
	fmt.Fprintf(&sb, "   | %s^\n", pad.String())
	return sb.String()
}

// FormatAll formats every diagnostic with context, separated by blank lines.
func FormatAll(ds []Diagnostic, source string) string {
	var sb strings.Builder
	for i, d := range ds {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(FormatWithContext(d, source))
	}
	return sb.String()
}
