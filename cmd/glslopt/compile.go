// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/glslopt"
	"github.com/gogpu/glslopt/cache"
	"github.com/gogpu/glslopt/diag"
)

type compileFlags struct {
	embedded bool
	stage    string
	config   string
	raw      bool
	outDir   string
	jobs     int
	cacheDir string
	noCache  bool
	timings  bool
}

// compileResult is the outcome for one input. Results are printed in
// input order once every job has finished.
type compileResult struct {
	path     string
	source   string
	compiled bool
	output   string
	diags    []diag.Diagnostic
	timings  []glslopt.Phase
	cached   bool
}

func newCompileCmd() *cobra.Command {
	var f compileFlags
	cmd := &cobra.Command{
		Use:   "compile [flags] <files...>",
		Short: "Compile and optimize shaders",
		Long: `Compile parses, checks and optimizes each shader and writes the result.

The stage is taken from the file extension (.vert, .vs, .frag, .fs) unless
--stage is given. A single "-" reads the shader from standard input.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, f, args)
		},
	}
	fs := cmd.Flags()
	fs.BoolVar(&f.embedded, "es", false, "target GLSL ES 1.00 instead of desktop GLSL")
	fs.StringVar(&f.stage, "stage", "auto", "shader stage (auto|vertex|fragment)")
	fs.StringVar(&f.config, "config", "", "TOML options file")
	fs.BoolVar(&f.raw, "raw", false, "skip optimization and reprint the source")
	fs.StringVar(&f.outDir, "out-dir", "", "write each result to this directory instead of stdout")
	fs.IntVarP(&f.jobs, "jobs", "j", 0, "number of parallel jobs (0 = GOMAXPROCS)")
	fs.StringVar(&f.cacheDir, "cache-dir", "", "result cache directory (default: user cache dir)")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable the result cache")
	fs.BoolVar(&f.timings, "timings", false, "print per-phase timings")
	return cmd
}

func runCompile(cmd *cobra.Command, f compileFlags, files []string) error {
	opts, err := compilerOptions(cmd, f)
	if err != nil {
		return err
	}
	compiler, err := glslopt.NewCompilerWithOptions(opts)
	if err != nil {
		return err
	}
	defer compiler.Dispose()

	var store *cache.Cache
	if !f.noCache {
		store, err = cache.Open(f.cacheDir)
		if err != nil {
			return err
		}
	}
	if f.outDir != "" {
		if err := os.MkdirAll(f.outDir, 0o755); err != nil {
			return err
		}
	}

	stages := make([]glslopt.Stage, len(files))
	for i, path := range files {
		stages[i], err = resolveStage(f.stage, path)
		if err != nil {
			return err
		}
	}

	jobs := f.jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results := make([]compileResult, len(files))
	g, gctx := errgroup.WithContext(context.Background())
	g.SetLimit(min(jobs, len(files)))
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := compileFile(compiler, store, opts.Fingerprint(), stages[i], path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	colored := useColor(cmd, os.Stderr)
	failed := 0
	for _, res := range results {
		printDiagnostics(stderr, res, colored)
		if f.timings && !res.cached {
			fmt.Fprintf(stderr, "%s:\n%s", res.path, glslopt.FormatTimings(res.timings))
		}
		if !res.compiled {
			failed++
			continue
		}
		if err := writeResult(cmd.OutOrStdout(), f.outDir, res); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d shaders failed to compile", failed, len(files))
	}
	return nil
}

func compilerOptions(cmd *cobra.Command, f compileFlags) (glslopt.Options, error) {
	opts := glslopt.DefaultOptions()
	if f.config != "" {
		var err error
		if opts, err = glslopt.LoadOptions(f.config); err != nil {
			return glslopt.Options{}, err
		}
	}
	if cmd.Flags().Changed("es") {
		opts.Embedded = f.embedded
	}
	if f.raw {
		opts.Optimize = false
	}
	return opts, nil
}

// resolveStage picks the stage from the flag, or from the file extension
// when the flag is auto.
func resolveStage(flag, path string) (glslopt.Stage, error) {
	switch strings.ToLower(flag) {
	case "vertex", "vert", "vs":
		return glslopt.VertexShader, nil
	case "fragment", "frag", "fs":
		return glslopt.FragmentShader, nil
	case "auto", "":
	default:
		return 0, fmt.Errorf("unknown stage %q", flag)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vert", ".vs":
		return glslopt.VertexShader, nil
	case ".frag", ".fs":
		return glslopt.FragmentShader, nil
	}
	return 0, fmt.Errorf("%s: cannot infer the shader stage; use --stage", path)
}

func compileFile(c *glslopt.Compiler, store *cache.Cache, settings string, stage glslopt.Stage, path string, stdin io.Reader) (compileResult, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return compileResult{}, err
	}
	source := string(data)
	res := compileResult{path: path, source: source}

	key := cache.NewKey(source, uint8(stage), settings)
	if e, ok, err := store.Get(key); err == nil && ok {
		res.compiled = e.Compiled
		res.output = e.Output
		res.diags = e.Diagnostics
		res.cached = true
		return res, nil
	}

	sh, err := glslopt.NewShader(c, stage, source)
	if err != nil {
		return compileResult{}, err
	}
	defer sh.Dispose()
	if res.compiled, err = sh.Compiled(); err != nil {
		return compileResult{}, err
	}
	if res.output, err = sh.Output(); err != nil {
		return compileResult{}, err
	}
	if res.diags, err = sh.Diagnostics(); err != nil {
		return compileResult{}, err
	}
	if res.timings, err = sh.Timings(); err != nil {
		return compileResult{}, err
	}

	raw, _ := sh.RawOutput()
	if err := store.Put(key, &cache.Entry{
		Compiled:    res.compiled,
		Output:      res.output,
		RawOutput:   raw,
		Diagnostics: res.diags,
	}); err != nil {
		return compileResult{}, err
	}
	return res, nil
}

func printDiagnostics(w io.Writer, res compileResult, colored bool) {
	errColor := color.New(color.FgRed, color.Bold)
	warnColor := color.New(color.FgYellow)
	for _, c := range []*color.Color{errColor, warnColor} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	for _, d := range res.diags {
		text := diag.FormatWithContext(d, res.source)
		first, rest, _ := strings.Cut(text, "\n")
		if d.IsError() {
			first = errColor.Sprint(first)
		} else {
			first = warnColor.Sprint(first)
		}
		fmt.Fprintf(w, "%s: %s\n", res.path, first)
		if rest != "" {
			fmt.Fprint(w, rest)
		}
	}
}

func writeResult(stdout io.Writer, outDir string, res compileResult) error {
	if res.output == "" {
		return nil
	}
	if outDir == "" || res.path == "-" {
		_, err := io.WriteString(stdout, res.output)
		return err
	}
	return os.WriteFile(filepath.Join(outDir, filepath.Base(res.path)), []byte(res.output), 0o644)
}
