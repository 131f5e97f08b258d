// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package glslopt compiles and optimizes GLSL shaders for desktop GLSL
// 1.20 and GLSL ES 1.00.
//
// A Compiler holds a frozen profile and options. Each Shader is one
// compilation: it parses, analyzes, optimizes and regenerates its source
// once, on creation, and then answers queries.
//
// # Basic Usage
//
//	c := glslopt.NewCompiler(true)
//	defer c.Dispose()
//
//	sh, err := glslopt.NewShader(c, glslopt.FragmentShader, source)
//	if err != nil {
//	    log.Fatal(err) // usage error, not a shader error
//	}
//	defer sh.Dispose()
//
//	if ok, _ := sh.Compiled(); !ok {
//	    log, _ := sh.Log()
//	    fmt.Print(log)
//	}
//	out, _ := sh.Output()
//
// # Pipeline
//
// Source flows through five phases:
//
//   - parse: preprocessing, lexing and parsing (package glsl)
//   - analyze: scopes, types, qualifiers and builtins (package sema)
//   - lower: translation to the IR (package lower)
//   - optimize: constant folding, dead code elimination, common
//     subexpression elimination and inlining to a fixed point, then
//     optional renaming (package opt)
//   - generate: GLSL text for the target profile (package codegen)
//
// Any error stops the pipeline after analysis. The raw output and the log
// remain available.
//
// # Concurrency
//
// A Compiler may be shared by goroutines. A Shader must not be used
// concurrently with its own Dispose.
package glslopt

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/glslopt/codegen"
	"github.com/gogpu/glslopt/ir"
	"github.com/gogpu/glslopt/opt"
	"github.com/gogpu/glslopt/sema"
)

// Stage is the pipeline stage a shader runs in.
type Stage int

const (
	VertexShader   Stage = 0
	FragmentShader Stage = 1
)

func (s Stage) String() string {
	switch s {
	case VertexShader:
		return "vertex"
	case FragmentShader:
		return "fragment"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

func (s Stage) valid() bool {
	return s == VertexShader || s == FragmentShader
}

func (s Stage) sema() sema.Stage {
	if s == FragmentShader {
		return sema.StageFragment
	}
	return sema.StageVertex
}

func (s Stage) ir() ir.ShaderStage {
	if s == FragmentShader {
		return ir.StageFragment
	}
	return ir.StageVertex
}

// Compiler is a compilation context for one target profile.
type Compiler struct {
	opts     Options
	pipeline opt.Options
	logger   *slog.Logger

	mu       sync.Mutex
	live     int
	disposed bool
}

// NewCompiler returns a compiler with default options for the embedded
// (GLSL ES 1.00) or desktop (GLSL 1.20) profile.
func NewCompiler(embedded bool) *Compiler {
	opts := DefaultOptions()
	opts.Embedded = embedded
	c, err := NewCompilerWithOptions(opts)
	if err != nil {
		panic(fmt.Sprintf("glslopt: default options rejected: %v", err))
	}
	return c
}

// NewCompilerWithOptions returns a compiler configured by opts.
func NewCompilerWithOptions(opts Options) (*Compiler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	embedded := opts.Embedded
	po := opts.pipelineOptions()
	po.Logger = logger
	po.Reserved = func(name string) bool {
		return codegen.IsKeyword(name, embedded) || sema.IsBuiltinFunction(name)
	}
	return &Compiler{opts: opts, pipeline: po, logger: logger}, nil
}

// Options returns the options the compiler was created with.
func (c *Compiler) Options() Options {
	return c.opts
}

// Embedded reports whether the compiler targets GLSL ES 1.00.
func (c *Compiler) Embedded() bool {
	return c.opts.Embedded
}

// Dispose releases the compiler. It fails with ErrCompilerInUse while
// shaders created from it are alive.
func (c *Compiler) Dispose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	if c.live > 0 {
		return ErrCompilerInUse
	}
	c.disposed = true
	return nil
}

func (c *Compiler) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	c.live++
	return nil
}

func (c *Compiler) release() {
	c.mu.Lock()
	c.live--
	c.mu.Unlock()
}
