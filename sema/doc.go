// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package sema type-checks a parsed shader and annotates its AST.
//
// Analysis runs in two passes. The first collects struct types and
// function signatures, so functions may be called before they are
// defined. The second walks declarations and function bodies in source
// order with a scope stack, resolving every identifier and call and
// recording expression types, implicit int to float promotions and
// scalar constant values.
//
// Errors do not stop analysis. An expression that fails to type-check is
// given types.Invalid, and operations on it report nothing further.
//
//	tu, diags := glsl.Parse(source, glsl.Options{})
//	res := sema.Analyze(tu, sema.Options{Stage: sema.StageFragment})
//	if res.HasErrors() {
//	    ...
//	}
package sema
