// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package glsl provides GLSL 1.10/1.20 and GLSL ES 1.00 parsing.
//
// # Components
//
// The glsl package consists of several components:
//
//   - Preprocessor: expands directives and macros, keeping line numbers
//   - Lexer: Tokenizes preprocessed source into tokens
//   - Parser: Parses tokens into an AST (Abstract Syntax Tree)
//   - AST: Type definitions for the abstract syntax tree
//
// # Usage
//
// To parse a fragment shader:
//
//	source := `
//	uniform vec4 color;
//	void main() {
//	    gl_FragColor = color;
//	}
//	`
//
//	tu, diags := glsl.Parse(source, glsl.Options{})
//	if diag.HasErrors(diags) {
//	    log.Fatal(diags[0])
//	}
//
// The parser stops at the first syntax error. The returned translation
// unit still holds every declaration parsed before it.
//
// Identifier resolution and types are filled into the AST by package sema.
package glsl
