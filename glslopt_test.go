// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glslopt

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/glslopt/diag"
)

const whiteFragment = `void main() { gl_FragColor = vec4(1.0); }`

func mustShader(t *testing.T, c *Compiler, stage Stage, source string) *Shader {
	t.Helper()
	sh, err := NewShader(c, stage, source)
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	t.Cleanup(func() { _ = sh.Dispose() })
	return sh
}

func TestCompileWhiteFragment(t *testing.T) {
	for _, embedded := range []bool{false, true} {
		c := NewCompiler(embedded)
		sh := mustShader(t, c, FragmentShader, whiteFragment)
		ok, err := sh.Compiled()
		if err != nil || !ok {
			log, _ := sh.Log()
			t.Fatalf("embedded=%v: compiled=%v err=%v\n%s", embedded, ok, err, log)
		}
		out, _ := sh.Output()
		if !strings.Contains(out, "gl_FragColor = vec4(1.0);") {
			t.Errorf("embedded=%v: output:\n%s", embedded, out)
		}
		if got := strings.Contains(out, "precision mediump float;"); got != embedded {
			t.Errorf("embedded=%v: precision line present=%v\n%s", embedded, got, out)
		}
		if state, err := sh.State(); err != nil || state != StateDone {
			t.Errorf("state = %v, %v, want done", state, err)
		}
	}
}

func TestSyntaxErrorIsReported(t *testing.T) {
	c := NewCompiler(false)
	sh := mustShader(t, c, FragmentShader, "void main() { float x = ; }")
	ok, err := sh.Compiled()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("malformed shader compiled")
	}
	log, _ := sh.Log()
	if !strings.HasPrefix(log, "0:1(") || !strings.Contains(log, ": error: ") {
		t.Errorf("log = %q", log)
	}
	if opt, _ := sh.Optimized(); opt {
		t.Error("optimized output reported after a syntax error")
	}
	phases, _ := sh.Timings()
	if names := phaseNames(phases); !cmp.Equal(names, []string{"parse", "generate"}) {
		t.Errorf("phases = %v", names)
	}
}

func TestSemanticErrorFallsBackToRaw(t *testing.T) {
	c := NewCompiler(false)
	sh := mustShader(t, c, FragmentShader, "void main() { gl_FragColor = vec4(missing); }")
	if ok, _ := sh.Compiled(); ok {
		t.Fatal("shader with undeclared identifier compiled")
	}
	raw, _ := sh.RawOutput()
	out, _ := sh.Output()
	if raw == "" || out != raw {
		t.Errorf("output %q, raw %q", out, raw)
	}
	ds, _ := sh.Diagnostics()
	if !diag.HasErrors(ds) || ds[0].Kind != diag.KindSemantic {
		t.Errorf("diagnostics = %v", ds)
	}
}

func TestOptimizationFoldsConstants(t *testing.T) {
	c := NewCompiler(false)
	sh := mustShader(t, c, FragmentShader, `
uniform float u;
float scale(float x) { return x * 2.0; }
void main() {
    float k = 2.0 + 3.0;
    gl_FragColor = vec4(scale(u) * k);
}`)
	if ok, _ := sh.Compiled(); !ok {
		log, _ := sh.Log()
		t.Fatalf("not compiled:\n%s", log)
	}
	out, _ := sh.Output()
	if !strings.Contains(out, "5.0") || strings.Contains(out, "2.0 + 3.0") {
		t.Errorf("output:\n%s", out)
	}
	raw, _ := sh.RawOutput()
	if !strings.Contains(raw, "2.0 + 3.0") {
		t.Errorf("raw output:\n%s", raw)
	}
	if rounds, err := sh.Rounds(); err != nil || rounds < 1 {
		t.Errorf("rounds = %d, %v", rounds, err)
	}
}

func TestMinifyKeepsInterface(t *testing.T) {
	opts := DefaultOptions()
	opts.Minify = true
	c, err := NewCompilerWithOptions(opts)
	if err != nil {
		t.Fatal(err)
	}
	sh := mustShader(t, c, FragmentShader, `
uniform vec4 myColor;
varying vec2 texCoord;
void main() {
    vec4 longLocalName = myColor * texCoord.x;
    gl_FragColor = longLocalName + longLocalName.yxzw;
}`)
	out, _ := sh.Output()
	for _, name := range []string{"myColor", "texCoord", "gl_FragColor"} {
		if !strings.Contains(out, name) {
			t.Errorf("output lost %s:\n%s", name, out)
		}
	}
	if strings.Contains(out, "longLocalName") {
		t.Errorf("local was not renamed:\n%s", out)
	}
}

func TestOptimizeDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.Optimize = false
	c, err := NewCompilerWithOptions(opts)
	if err != nil {
		t.Fatal(err)
	}
	sh := mustShader(t, c, FragmentShader, `void main() { gl_FragColor = vec4(2.0 + 3.0); }`)
	out, _ := sh.Output()
	raw, _ := sh.RawOutput()
	if out != raw {
		t.Errorf("output differs from raw:\n%s\n%s", out, raw)
	}
	if opt, _ := sh.Optimized(); opt {
		t.Error("optimizer reported as run")
	}
}

func TestOutputIsStable(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"loop", `
uniform float u;
varying vec2 uv;
void main() {
    float c = 0.0;
    for (int i = 0; i < 4; i++) {
        c += u * uv.x;
    }
    gl_FragColor = vec4(c);
}`},
		{"call result", `
uniform float u;
float f(float x) { if (x > 0.0) return 1.0; return 2.0; }
void main() { gl_FragColor = vec4(f(u)); }`},
		{"shared value", `
uniform vec3 v;
void main() {
    vec3 n = normalize(v);
    gl_FragColor = vec4(n * n.x, n.y);
}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompiler(false)
			first := mustShader(t, c, FragmentShader, tt.source)
			out1, _ := first.Output()
			second := mustShader(t, c, FragmentShader, out1)
			if ok, _ := second.Compiled(); !ok {
				log, _ := second.Log()
				t.Fatalf("output does not recompile:\n%s\n%s", out1, log)
			}
			out2, _ := second.Output()
			if diff := cmp.Diff(out1, out2); diff != "" {
				t.Errorf("second pass changed output (-first +second):\n%s", diff)
			}
		})
	}
}

func TestProfileWarningsCarryPositions(t *testing.T) {
	c := NewCompiler(true)
	sh := mustShader(t, c, FragmentShader, `precision mediump float;
uniform sampler2D tex;
varying vec2 uv;
void main() {
    gl_FragColor = texture2DLod(tex, uv, 0.0) + vec4(dFdx(uv.x));
}`)
	if opt, _ := sh.Optimized(); !opt {
		log, _ := sh.Log()
		t.Fatalf("optimizer did not run:\n%s", log)
	}
	diags, err := sh.Diagnostics()
	if err != nil {
		t.Fatal(err)
	}
	var warnings int
	for _, d := range diags {
		if d.Severity() != diag.SevWarning {
			continue
		}
		warnings++
		if d.Pos.Line != 5 || d.Pos.Column < 1 {
			t.Errorf("warning %q at %d:%d, want line 5", d.Message, d.Pos.Line, d.Pos.Column)
		}
	}
	if warnings != 2 {
		t.Errorf("got %d warnings, want 2: %v", warnings, diags)
	}
}

func TestUsageErrors(t *testing.T) {
	if _, err := NewShader(nil, VertexShader, whiteFragment); !errors.Is(err, ErrNilCompiler) {
		t.Errorf("nil compiler: %v", err)
	}
	c := NewCompiler(false)
	if _, err := NewShader(c, Stage(7), whiteFragment); !errors.Is(err, ErrInvalidStage) {
		t.Errorf("bad stage: %v", err)
	}
	if err := c.Dispose(); err != nil {
		t.Fatal(err)
	}
	if _, err := NewShader(c, FragmentShader, whiteFragment); !errors.Is(err, ErrDisposed) {
		t.Errorf("disposed compiler: %v", err)
	}
	if err := c.Dispose(); !errors.Is(err, ErrDisposed) {
		t.Errorf("second dispose: %v", err)
	}
}

func TestDisposeLifecycle(t *testing.T) {
	c := NewCompiler(true)
	sh, err := NewShader(c, FragmentShader, whiteFragment)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Dispose(); !errors.Is(err, ErrCompilerInUse) {
		t.Fatalf("dispose with live shader: %v", err)
	}
	if err := sh.Dispose(); err != nil {
		t.Fatal(err)
	}
	if _, err := sh.Output(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Output after dispose: %v", err)
	}
	if _, err := sh.Log(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Log after dispose: %v", err)
	}
	if _, err := sh.Compiled(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Compiled after dispose: %v", err)
	}
	if _, err := sh.State(); !errors.Is(err, ErrDisposed) {
		t.Errorf("State after dispose: %v", err)
	}
	if _, err := sh.Stage(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Stage after dispose: %v", err)
	}
	if _, err := sh.Rounds(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Rounds after dispose: %v", err)
	}
	if _, err := sh.Timings(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Timings after dispose: %v", err)
	}
	if sh.source != "" || sh.raw != "" || sh.optimized != "" || len(sh.log.Items()) != 0 {
		t.Error("dispose kept the shader text")
	}
	if err := sh.Dispose(); !errors.Is(err, ErrDisposed) {
		t.Errorf("second shader dispose: %v", err)
	}
	if err := c.Dispose(); err != nil {
		t.Errorf("dispose after shaders released: %v", err)
	}
}

func TestConcurrentShaders(t *testing.T) {
	c := NewCompiler(true)
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		stage := Stage(i % 2)
		src := whiteFragment
		if stage == VertexShader {
			src = "attribute vec4 p; void main() { gl_Position = p; }"
		}
		g.Go(func() error {
			sh, err := NewShader(c, stage, src)
			if err != nil {
				return err
			}
			defer sh.Dispose()
			if ok, _ := sh.Compiled(); !ok {
				log, _ := sh.Log()
				return errors.New(log)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if err := c.Dispose(); err != nil {
		t.Errorf("dispose: %v", err)
	}
}

// TestDisposeInUseKeepsCompilerUsable checks that a refused Dispose never
// makes concurrent NewShader calls fail.
func TestDisposeInUseKeepsCompilerUsable(t *testing.T) {
	c := NewCompiler(false)
	held := mustShader(t, c, FragmentShader, whiteFragment)
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for j := 0; j < 20; j++ {
				sh, err := NewShader(c, FragmentShader, whiteFragment)
				if err != nil {
					return err
				}
				if err := sh.Dispose(); err != nil {
					return err
				}
			}
			return nil
		})
	}
	for i := 0; i < 200; i++ {
		if err := c.Dispose(); !errors.Is(err, ErrCompilerInUse) {
			t.Fatalf("dispose with live shader: %v", err)
		}
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("NewShader during refused dispose: %v", err)
	}
	if err := held.Dispose(); err != nil {
		t.Fatal(err)
	}
	if err := c.Dispose(); err != nil {
		t.Errorf("dispose after shaders released: %v", err)
	}
}

func TestNewCompilerRejectsUnknownPass(t *testing.T) {
	opts := DefaultOptions()
	opts.Passes = []string{"constfold", "unroll"}
	if _, err := NewCompilerWithOptions(opts); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("err = %v", err)
	}
}

func TestLoadOptions(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	got, err := LoadOptions(write("ok.toml", `
embedded = true
minify = true
passes = ["constfold", "dce"]
inline_threshold = 10
`))
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultOptions()
	want.Embedded = true
	want.Minify = true
	want.Passes = []string{"constfold", "dce"}
	want.InlineThreshold = 10
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}

	empty, err := LoadOptions(write("empty.toml", "passes = []\n"))
	if err != nil {
		t.Fatal(err)
	}
	if empty.Passes == nil || len(empty.Passes) != 0 {
		t.Errorf("passes = %#v, want empty", empty.Passes)
	}

	if _, err := LoadOptions(write("unknown.toml", "unroll = true\n")); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("unknown key: %v", err)
	}
	if _, err := LoadOptions(write("rounds.toml", "max_rounds = 0\n")); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("zero rounds: %v", err)
	}
	if _, err := LoadOptions(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestFingerprint(t *testing.T) {
	a := DefaultOptions()
	b := DefaultOptions()
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("equal options differ")
	}
	b.Minify = true
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("minify not in fingerprint")
	}
	b = DefaultOptions()
	b.Passes = []string{}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("empty pass list matches default")
	}
}

func TestFormatTimings(t *testing.T) {
	c := NewCompiler(false)
	sh := mustShader(t, c, FragmentShader, whiteFragment)
	phases, err := sh.Timings()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"parse", "analyze", "lower", "optimize", "generate"}, phaseNames(phases)); diff != "" {
		t.Errorf("phases (-want +got):\n%s", diff)
	}
	out := FormatTimings(phases)
	if !strings.Contains(out, "total") || !strings.Contains(out, "rounds") {
		t.Errorf("timings:\n%s", out)
	}
}

func phaseNames(ps []Phase) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}
