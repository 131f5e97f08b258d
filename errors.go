// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glslopt

import "errors"

// Usage errors of the session API. Shader problems are never returned as
// errors; they are reported in the shader's log.
var (
	// ErrDisposed is returned by every operation on a disposed compiler
	// or shader.
	ErrDisposed = errors.New("glslopt: object has been disposed")

	// ErrCompilerInUse is returned when a compiler is disposed while
	// shaders created from it are still alive.
	ErrCompilerInUse = errors.New("glslopt: compiler still has live shaders")

	// ErrInvalidStage is returned for a stage other than VertexShader or
	// FragmentShader.
	ErrInvalidStage = errors.New("glslopt: invalid shader stage")

	// ErrNilCompiler is returned when a shader is created without a
	// compiler.
	ErrNilCompiler = errors.New("glslopt: nil compiler")

	// ErrInvalidOptions wraps every problem found by Options.Validate.
	ErrInvalidOptions = errors.New("glslopt: invalid options")
)
