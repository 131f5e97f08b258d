// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package codegen writes GLSL source code.
//
// Two generators share the profile rules:
//
//   - Raw reprints an analyzed translation unit, keeping its structure.
//   - Optimized writes an IR module after the optimizer has run.
//
// # Basic Usage
//
//	source, diags := codegen.Optimized(module, codegen.Options{Embedded: true})
//
// # Profiles
//
// The embedded profile (GLSL ES 1.00) keeps precision qualifiers and adds
// a default float precision to fragment shaders that lack one. The
// desktop profile (GLSL 1.20) drops them. Lookups and builtins that the
// embedded profile only has as extensions are renamed, and the extension
// is enabled with a warning.
//
// # Temporaries
//
// Expressions are printed at their use when that keeps their meaning.
// Shared expressions, and expressions a later store, call or branch
// would change, are written to temporaries named _eN.
package codegen
