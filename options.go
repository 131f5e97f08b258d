// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glslopt

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/glslopt/opt"
)

// Options configures a Compiler. Options are frozen when the compiler is
// created.
type Options struct {
	// Embedded selects the GLSL ES 1.00 profile instead of desktop GLSL.
	Embedded bool `toml:"embedded"`

	// Optimize enables lowering and the optimization pipeline. Without
	// it the output is the raw reprint.
	Optimize bool `toml:"optimize"`

	// Passes lists the fixed-point passes in order. Nil selects the
	// default order; an empty list runs none.
	Passes []string `toml:"passes"`

	// Minify renames locals, arguments and helper functions.
	Minify bool `toml:"minify"`

	// MaxRounds caps the fixed-point loop.
	MaxRounds int `toml:"max_rounds"`

	// InlineThreshold is the largest callee, in expressions, inlined at
	// every call site.
	InlineThreshold int `toml:"inline_threshold"`

	// MaxInlineDepth bounds nested inlining.
	MaxInlineDepth int `toml:"max_inline_depth"`

	// Defines are predefined object-like macros.
	Defines map[string]string `toml:"defines"`

	// Logger receives debug records for phases and passes. Nil discards
	// them.
	Logger *slog.Logger `toml:"-"`
}

// DefaultOptions returns the default configuration: desktop profile with
// every optimization pass enabled.
func DefaultOptions() Options {
	o := opt.DefaultOptions()
	return Options{
		Optimize:        true,
		Passes:          o.Passes,
		MaxRounds:       o.MaxRounds,
		InlineThreshold: o.InlineThreshold,
		MaxInlineDepth:  o.MaxInlineDepth,
	}
}

// LoadOptions reads options from a TOML file. Keys the file leaves out
// keep their DefaultOptions values; unknown keys are an error.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	meta, err := toml.DecodeFile(path, &opts)
	if err != nil {
		return Options{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Options{}, fmt.Errorf("%s: %w: unknown keys %s", path, ErrInvalidOptions, strings.Join(keys, ", "))
	}
	if meta.IsDefined("passes") && opts.Passes == nil {
		opts.Passes = []string{}
	}
	if err := opts.Validate(); err != nil {
		return Options{}, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// Validate checks pass names and limits.
func (o Options) Validate() error {
	switch {
	case o.MaxRounds < 1:
		return fmt.Errorf("%w: max_rounds must be at least 1, got %d", ErrInvalidOptions, o.MaxRounds)
	case o.InlineThreshold < 0:
		return fmt.Errorf("%w: inline_threshold must not be negative, got %d", ErrInvalidOptions, o.InlineThreshold)
	case o.MaxInlineDepth < 0:
		return fmt.Errorf("%w: max_inline_depth must not be negative, got %d", ErrInvalidOptions, o.MaxInlineDepth)
	}
	if _, err := opt.NewPipeline(o.pipelineOptions()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

func (o Options) pipelineOptions() opt.Options {
	return opt.Options{
		Passes:          o.Passes,
		MaxRounds:       o.MaxRounds,
		InlineThreshold: o.InlineThreshold,
		MaxInlineDepth:  o.MaxInlineDepth,
		Minify:          o.Minify,
		Logger:          o.Logger,
	}
}

// Fingerprint returns a canonical description of every option that
// affects compiler output. Equal fingerprints compile equally.
func (o Options) Fingerprint() string {
	var sb strings.Builder
	sb.WriteString("embedded=" + strconv.FormatBool(o.Embedded))
	sb.WriteString(";optimize=" + strconv.FormatBool(o.Optimize))
	if o.Passes == nil {
		sb.WriteString(";passes=default")
	} else {
		sb.WriteString(";passes=" + strings.Join(o.Passes, ","))
	}
	sb.WriteString(";minify=" + strconv.FormatBool(o.Minify))
	fmt.Fprintf(&sb, ";rounds=%d;inline=%d;depth=%d", o.MaxRounds, o.InlineThreshold, o.MaxInlineDepth)
	for _, k := range slices.Sorted(maps.Keys(o.Defines)) {
		fmt.Fprintf(&sb, ";D%s=%s", k, o.Defines[k])
	}
	return sb.String()
}
