// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glslopt

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/gogpu/glslopt/codegen"
	"github.com/gogpu/glslopt/diag"
	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/ir"
	"github.com/gogpu/glslopt/lower"
	"github.com/gogpu/glslopt/opt"
	"github.com/gogpu/glslopt/sema"
)

// State is the lifecycle position of a shader.
type State uint8

const (
	StateCreated State = iota
	StateParsing
	StateAnalyzing
	StateOptimizing
	StateGenerating
	StateDone
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateParsing:
		return "parsing"
	case StateAnalyzing:
		return "analyzing"
	case StateOptimizing:
		return "optimizing"
	case StateGenerating:
		return "generating"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Shader is one compiled shader. Compilation happens in NewShader; the
// shader is immutable afterwards.
type Shader struct {
	compiler *Compiler
	stage    Stage
	source   string

	state     State
	log       diag.Log
	raw       string
	optimized string
	optOK     bool
	rounds    int
	timer     timer

	disposed atomic.Bool
}

// NewShader compiles source for stage. The returned error only reports
// usage errors; compile errors are in the shader's log.
func NewShader(c *Compiler, stage Stage, source string) (*Shader, error) {
	if c == nil {
		return nil, ErrNilCompiler
	}
	if !stage.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStage, int(stage))
	}
	if err := c.acquire(); err != nil {
		return nil, err
	}
	s := &Shader{compiler: c, stage: stage, source: source}
	s.compile(context.Background())
	return s, nil
}

func (s *Shader) compile(ctx context.Context) {
	c := s.compiler
	logger := c.logger.With("stage", s.stage.String())
	defer func() {
		if r := recover(); r != nil {
			s.log.Add(diag.Errorf(diag.KindInternal, diag.Position{}, "panic during %s: %v", s.state, r))
			s.optOK = false
			s.state = StateDone
			logger.Debug("compilation panicked", "panic", r)
		}
	}()

	s.state = StateParsing
	idx := s.timer.begin("parse")
	tu, diags := glsl.Parse(s.source, glsl.Options{Embedded: c.opts.Embedded, Defines: c.opts.Defines})
	s.log.Add(diags...)
	s.timer.end(idx, "")
	logger.Debug("parsed", "diagnostics", len(diags))

	if tu != nil && !s.log.HasErrors() {
		s.state = StateAnalyzing
		idx = s.timer.begin("analyze")
		res := sema.Analyze(tu, sema.Options{Stage: s.stage.sema(), Embedded: c.opts.Embedded})
		s.log.Add(res.Diagnostics...)
		s.timer.end(idx, "")
		logger.Debug("analyzed", "diagnostics", len(res.Diagnostics))
	}

	var module *ir.Module
	if tu != nil && !s.log.HasErrors() && c.opts.Optimize {
		s.state = StateOptimizing
		module = s.optimize(ctx, tu)
	}

	s.state = StateGenerating
	idx = s.timer.begin("generate")
	if tu != nil {
		raw, rawDiags := codegen.Raw(tu, codegen.Options{Embedded: c.opts.Embedded, Stage: s.stage.ir()})
		s.raw = raw
		if module == nil && !s.log.HasErrors() {
			s.log.Add(rawDiags...)
		}
	}
	if module != nil {
		out, genDiags := codegen.Optimized(module, codegen.Options{Embedded: c.opts.Embedded})
		s.log.Add(genDiags...)
		if !diag.HasErrors(genDiags) {
			s.optimized = out
			s.optOK = true
		}
	}
	s.timer.end(idx, "")
	s.state = StateDone
	logger.Debug("compiled", "ok", !s.log.HasErrors(), "optimized", s.optOK, "rounds", s.rounds)
}

// optimize lowers and optimizes tu. It returns nil after logging an
// internal error.
func (s *Shader) optimize(ctx context.Context, tu *glsl.TranslationUnit) *ir.Module {
	c := s.compiler
	idx := s.timer.begin("lower")
	module, err := lower.Lower(tu, lower.Options{Stage: s.stage.ir()})
	if err == nil {
		var errs []ir.ValidationError
		errs, err = ir.Validate(module)
		if err == nil && len(errs) > 0 {
			err = fmt.Errorf("invalid module: %w", errs[0])
		}
	}
	s.timer.end(idx, "")
	if err != nil {
		s.log.Add(diag.Errorf(diag.KindInternal, diag.Position{}, "lowering: %v", err))
		return nil
	}

	pipeline, err := opt.NewPipeline(c.pipeline)
	if err != nil {
		s.log.Add(diag.Errorf(diag.KindInternal, diag.Position{}, "%v", err))
		return nil
	}
	idx = s.timer.begin("optimize")
	rounds, err := pipeline.Run(ctx, module)
	s.rounds = rounds
	s.timer.end(idx, fmt.Sprintf("%d rounds", rounds))
	if err != nil {
		var ie *opt.InternalError
		if errors.As(err, &ie) {
			s.log.Add(diag.Errorf(diag.KindInternal, diag.Position{}, "%v", ie))
		} else {
			s.log.Add(diag.Errorf(diag.KindInternal, diag.Position{}, "optimization: %v", err))
		}
		return nil
	}
	return module
}

// Stage returns the stage the shader was compiled for.
func (s *Shader) Stage() (Stage, error) {
	if s.disposed.Load() {
		return 0, ErrDisposed
	}
	return s.stage, nil
}

// State returns the lifecycle state. It is StateDone once NewShader has
// returned.
func (s *Shader) State() (State, error) {
	if s.disposed.Load() {
		return 0, ErrDisposed
	}
	return s.state, nil
}

// Compiled reports whether compilation finished without errors.
func (s *Shader) Compiled() (bool, error) {
	if s.disposed.Load() {
		return false, ErrDisposed
	}
	return !s.log.HasErrors(), nil
}

// RawOutput returns the source reprinted from the syntax tree without
// optimization. It is available even when analysis failed.
func (s *Shader) RawOutput() (string, error) {
	if s.disposed.Load() {
		return "", ErrDisposed
	}
	return s.raw, nil
}

// Output returns the optimized source, or the raw output when the
// optimizer did not run or failed.
func (s *Shader) Output() (string, error) {
	if s.disposed.Load() {
		return "", ErrDisposed
	}
	if s.optOK && !s.log.HasErrors() {
		return s.optimized, nil
	}
	return s.raw, nil
}

// Optimized reports whether Output comes from the optimizer.
func (s *Shader) Optimized() (bool, error) {
	if s.disposed.Load() {
		return false, ErrDisposed
	}
	return s.optOK && !s.log.HasErrors(), nil
}

// Log returns the diagnostics as "0:LINE(COL): error: message" lines.
func (s *Shader) Log() (string, error) {
	if s.disposed.Load() {
		return "", ErrDisposed
	}
	return s.log.String(), nil
}

// Diagnostics returns a copy of the diagnostics in report order.
func (s *Shader) Diagnostics() ([]diag.Diagnostic, error) {
	if s.disposed.Load() {
		return nil, ErrDisposed
	}
	return slices.Clone(s.log.Items()), nil
}

// Rounds returns how many fixed-point rounds the optimizer took.
func (s *Shader) Rounds() (int, error) {
	if s.disposed.Load() {
		return 0, ErrDisposed
	}
	return s.rounds, nil
}

// Timings returns the duration of each phase that ran.
func (s *Shader) Timings() ([]Phase, error) {
	if s.disposed.Load() {
		return nil, ErrDisposed
	}
	return slices.Clone(s.timer.phases), nil
}

// Dispose releases the shader and its compiler reference, and drops the
// source, outputs and log.
func (s *Shader) Dispose() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return ErrDisposed
	}
	s.source = ""
	s.raw = ""
	s.optimized = ""
	s.optOK = false
	s.log = diag.Log{}
	s.timer = timer{}
	s.compiler.release()
	return nil
}
