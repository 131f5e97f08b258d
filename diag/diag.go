// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package diag defines compiler diagnostics and the ordered log that
// collects them during a compilation.
//
// Diagnostics are never reordered: the insertion order is the order in
// which they appear in the user-visible log.
package diag

import "fmt"

// Position is a 1-based line/column location in shader source.
// The zero value means "no position".
type Position struct {
	Line   int
	Column int
}

// IsValid reports whether the position refers to a source location.
func (p Position) IsValid() bool {
	return p.Line > 0
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	SevWarning Severity = iota
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}

// Kind classifies where a diagnostic came from.
type Kind uint8

const (
	// KindSyntax is a preprocessor, lexer or parser error.
	KindSyntax Kind = iota
	// KindSemantic is an analyzer error (undeclared identifier, type mismatch, qualifier violation).
	KindSemantic
	// KindWarning is a non-fatal note (unused variable, profile substitution).
	KindWarning
	// KindInternal is a compiler defect, such as a pass breaking an IR invariant.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindSemantic:
		return "semantic"
	case KindWarning:
		return "warning"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Severity returns the severity implied by the kind.
func (k Kind) Severity() Severity {
	if k == KindWarning {
		return SevWarning
	}
	return SevError
}

// Diagnostic is a single reported issue.
type Diagnostic struct {
	Kind    Kind
	Message string
	Pos     Position
}

// Severity returns the diagnostic's severity.
func (d Diagnostic) Severity() Severity {
	return d.Kind.Severity()
}

// IsError reports whether the diagnostic fails the compilation.
func (d Diagnostic) IsError() bool {
	return d.Severity() == SevError
}

// String formats the diagnostic as a log line: "0:LINE(COL): error: message".
// The leading 0 is the source string index; a shader has exactly one.
func (d Diagnostic) String() string {
	label := d.Severity().String()
	if d.Kind == KindInternal {
		label = "internal error"
	}
	return fmt.Sprintf("0:%d(%d): %s: %s", d.Pos.Line, d.Pos.Column, label, d.Message)
}

// Error implements the error interface so a diagnostic can be wrapped.
func (d Diagnostic) Error() string {
	return d.String()
}

// Errorf creates an error-severity diagnostic of the given kind.
func Errorf(kind Kind, pos Position, format string, args ...any) Diagnostic {
	return Diagnostic{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// Warnf creates a warning diagnostic.
func Warnf(pos Position, format string, args ...any) Diagnostic {
	return Diagnostic{Kind: KindWarning, Pos: pos, Message: fmt.Sprintf(format, args...)}
}
