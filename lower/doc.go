// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package lower converts an analyzed GLSL translation unit to IR.
//
// Lowering resolves every identifier to a variable, argument or builtin
// global, expands const variables at each use, and rewrites control flow
// to the IR's loop form:
//
//	for (init; cond; post) body
//
// becomes
//
//	init; loop { if (!cond) break; body; continuing { post } }
//
// Expressions with side effects are sequenced through Store and Call
// statements; short-circuit operators and conditionals whose operands
// have side effects go through compiler temporaries named tmp_N.
package lower
