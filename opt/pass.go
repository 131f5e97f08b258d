// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package opt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gogpu/glslopt/ir"
)

// Pass is a semantics-preserving module transformation.
type Pass interface {
	Name() string
	// Run transforms m in place and reports whether anything changed.
	Run(m *ir.Module) (bool, error)
}

// Pass names accepted by Options.Passes.
const (
	PassConstFold = "constfold"
	PassDCE       = "dce"
	PassCSE       = "cse"
	PassInline    = "inline"
	PassMinify    = "minify"
)

// DefaultPasses is the default order of the fixed-point loop.
var DefaultPasses = []string{PassConstFold, PassDCE, PassCSE, PassInline}

// Options configures a Pipeline.
type Options struct {
	// Passes lists the passes of the fixed-point loop in order. Nil means
	// DefaultPasses.
	Passes []string
	// MaxRounds caps the fixed-point loop.
	MaxRounds int
	// InlineThreshold is the largest callee, in expressions, that is
	// inlined regardless of its number of call sites.
	InlineThreshold int
	// MaxInlineDepth bounds how deeply inlined bodies may nest.
	MaxInlineDepth int
	// Minify runs the minify pass once after the loop.
	Minify bool
	// Reserved reports names minify must not produce. May be nil.
	Reserved func(name string) bool
	// Logger receives per-pass debug records. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns the default pipeline configuration.
func DefaultOptions() Options {
	return Options{
		Passes:          append([]string(nil), DefaultPasses...),
		MaxRounds:       8,
		InlineThreshold: 32,
		MaxInlineDepth:  4,
	}
}

// InternalError reports a pass that broke an IR invariant or panicked.
// It aborts optimization of the current shader only.
type InternalError struct {
	Pass string
	Err  error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("pass %s: %v", e.Pass, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// Pipeline runs passes to a fixed point.
type Pipeline struct {
	passes    []Pass
	minify    Pass
	maxRounds int
	logger    *slog.Logger
}

// NewPipeline builds a pipeline from opts. Unknown pass names are an
// error.
func NewPipeline(opts Options) (*Pipeline, error) {
	names := opts.Passes
	if names == nil {
		names = DefaultPasses
	}
	p := &Pipeline{
		maxRounds: opts.MaxRounds,
		logger:    opts.Logger,
	}
	if p.maxRounds <= 0 {
		p.maxRounds = DefaultOptions().MaxRounds
	}
	if p.logger == nil {
		p.logger = discardLogger()
	}
	for _, name := range names {
		switch strings.ToLower(name) {
		case PassConstFold:
			p.passes = append(p.passes, &ConstFold{})
		case PassDCE:
			p.passes = append(p.passes, &DCE{})
		case PassCSE:
			p.passes = append(p.passes, &CSE{})
		case PassInline:
			p.passes = append(p.passes, NewInline(opts.InlineThreshold, opts.MaxInlineDepth))
		case PassMinify:
			// Minify only runs after the loop.
			p.minify = &Minify{Reserved: opts.Reserved}
		default:
			return nil, fmt.Errorf("unknown pass %q", name)
		}
	}
	if opts.Minify && p.minify == nil {
		p.minify = &Minify{Reserved: opts.Reserved}
	}
	return p, nil
}

// Passes returns the names of the loop passes in order.
func (p *Pipeline) Passes() []string {
	out := make([]string, len(p.passes))
	for i, pass := range p.passes {
		out[i] = pass.Name()
	}
	return out
}

// Run optimizes m and returns the number of rounds the loop took. The
// module must be valid on entry. A returned *InternalError leaves m in an
// unspecified state.
func (p *Pipeline) Run(ctx context.Context, m *ir.Module) (int, error) {
	rounds := 0
	for rounds < p.maxRounds {
		if err := ctx.Err(); err != nil {
			return rounds, err
		}
		rounds++
		changed := false
		for _, pass := range p.passes {
			c, err := p.runPass(pass, m)
			if err != nil {
				return rounds, err
			}
			changed = changed || c
		}
		if !changed {
			break
		}
	}
	if p.minify != nil {
		if _, err := p.runPass(p.minify, m); err != nil {
			return rounds, err
		}
	}
	p.logger.Debug("optimization finished", "rounds", rounds)
	return rounds, nil
}

func (p *Pipeline) runPass(pass Pass, m *ir.Module) (changed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			changed, err = false, &InternalError{Pass: pass.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	changed, err = pass.Run(m)
	if err != nil {
		return false, &InternalError{Pass: pass.Name(), Err: err}
	}
	if !changed {
		return false, nil
	}
	ir.Renumber(m)
	errs, err := ir.Validate(m)
	if err != nil {
		return false, &InternalError{Pass: pass.Name(), Err: err}
	}
	if len(errs) > 0 {
		return false, &InternalError{Pass: pass.Name(), Err: fmt.Errorf("invalid module: %w", errs[0])}
	}
	p.logger.Debug("pass changed module", "pass", pass.Name())
	return true, nil
}
