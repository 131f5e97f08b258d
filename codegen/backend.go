// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"fmt"

	"github.com/gogpu/glslopt/diag"
	"github.com/gogpu/glslopt/ir"
)

// Options configures code generation.
type Options struct {
	// Embedded selects the GLSL ES profile: precision qualifiers are kept
	// and desktop-only features are replaced by their extension forms.
	Embedded bool

	// Stage is the shader stage of a translation unit printed by Raw.
	// Optimized takes the stage from the module.
	Stage ir.ShaderStage
}

// Optimized generates GLSL source code from an IR module. The returned
// diagnostics hold the warnings for profile substitutions and, if the
// module could not be written, an internal error; the source is empty
// in that case.
func Optimized(module *ir.Module, options Options) (string, []diag.Diagnostic) {
	w := newWriter(module, options)
	if err := generate(w.writeModule); err != nil {
		return "", append(w.profile.diags, diag.Errorf(diag.KindInternal, noPos, "code generation: %v", err))
	}
	return w.String(), w.profile.diags
}

// generate runs fn and turns a panic into an error. Malformed input must
// not take down the caller.
func generate(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
