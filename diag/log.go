// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package diag

import "strings"

// Log is an ordered, append-only collection of diagnostics.
// The zero value is ready to use.
type Log struct {
	items []Diagnostic
}

// Add appends diagnostics in order.
func (l *Log) Add(ds ...Diagnostic) {
	l.items = append(l.items, ds...)
}

// Len returns the number of diagnostics.
func (l *Log) Len() int {
	return len(l.items)
}

// Items returns the diagnostics in insertion order.
// The returned slice must not be modified.
func (l *Log) Items() []Diagnostic {
	return l.items
}

// HasErrors reports whether any diagnostic has error severity.
func (l *Log) HasErrors() bool {
	for i := range l.items {
		if l.items[i].IsError() {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics.
func (l *Log) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range l.items {
		if d.IsError() {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only the warning diagnostics.
func (l *Log) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range l.items {
		if !d.IsError() {
			out = append(out, d)
		}
	}
	return out
}

// String joins all diagnostics with newlines, one per line.
func (l *Log) String() string {
	if len(l.items) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, d := range l.items {
		sb.WriteString(d.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// HasErrors reports whether the slice contains an error-severity diagnostic.
func HasErrors(ds []Diagnostic) bool {
	for i := range ds {
		if ds[i].IsError() {
			return true
		}
	}
	return false
}
