// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/glslopt/diag"
	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/ir"
	"github.com/gogpu/glslopt/lower"
	"github.com/gogpu/glslopt/opt"
	"github.com/gogpu/glslopt/sema"
)

type profileCase struct {
	stage    ir.ShaderStage
	embedded bool
}

var (
	desktopFragment  = profileCase{stage: ir.StageFragment}
	embeddedFragment = profileCase{stage: ir.StageFragment, embedded: true}
	embeddedVertex   = profileCase{stage: ir.StageVertex, embedded: true}
)

func analyze(t *testing.T, source string, p profileCase) *glsl.TranslationUnit {
	t.Helper()
	tu, diags := glsl.Parse(source, glsl.Options{Embedded: p.embedded})
	if diag.HasErrors(diags) {
		t.Fatalf("parse errors: %v", diags)
	}
	stage := sema.StageVertex
	if p.stage == ir.StageFragment {
		stage = sema.StageFragment
	}
	if res := sema.Analyze(tu, sema.Options{Stage: stage, Embedded: p.embedded}); res.HasErrors() {
		t.Fatalf("analysis errors: %v", res.Diagnostics)
	}
	return tu
}

// optimize compiles source to optimized output. passes nil runs the
// default pipeline; an empty slice runs none.
func optimize(t *testing.T, source string, p profileCase, passes []string) (string, []diag.Diagnostic) {
	t.Helper()
	tu := analyze(t, source, p)
	m, err := lower.Lower(tu, lower.Options{Stage: p.stage})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	opts := opt.DefaultOptions()
	opts.Passes = passes
	pipeline, err := opt.NewPipeline(opts)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if _, err := pipeline.Run(context.Background(), m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out, diags := Optimized(m, Options{Embedded: p.embedded})
	for _, d := range diags {
		if d.Kind == diag.KindInternal {
			t.Fatalf("internal error: %v\n%s", d, out)
		}
	}
	return out, diags
}

func TestOptimizedOutput(t *testing.T) {
	noPasses := []string{}
	tests := []struct {
		name    string
		profile profileCase
		passes  []string
		source  string
		want    []string
		absent  []string
	}{
		{
			name:    "white fragment",
			profile: desktopFragment,
			source:  `void main() { gl_FragColor = vec4(1.0, 1.0, 1.0, 1.0); }`,
			want:    []string{"void main() {", "gl_FragColor = vec4(1.0);"},
			absent:  []string{"precision"},
		},
		{
			name:    "constant folding",
			profile: desktopFragment,
			source:  `uniform float u; void main() { gl_FragColor = vec4(u * (2.0 + 3.0)); }`,
			want:    []string{"uniform float u;", "5.0"},
			absent:  []string{"2.0 + 3.0"},
		},
		{
			name:    "division by zero folds to infinity",
			profile: desktopFragment,
			source:  `void main() { gl_FragColor = vec4(1.0 / 0.0); }`,
			want:    []string{"(1.0/0.0)"},
		},
		{
			name:    "embedded fragment default precision",
			profile: embeddedFragment,
			source:  `void main() { gl_FragColor = vec4(0.5); }`,
			want:    []string{"precision mediump float;\n"},
		},
		{
			name:    "embedded fragment keeps stated precision",
			profile: embeddedFragment,
			source:  "precision highp float;\nvoid main() { gl_FragColor = vec4(0.5); }",
			want:    []string{"precision highp float;\n"},
			absent:  []string{"mediump float"},
		},
		{
			name:    "embedded vertex has no default precision",
			profile: embeddedVertex,
			source:  `attribute vec4 pos; void main() { gl_Position = pos; }`,
			want:    []string{"attribute vec4 pos;", "gl_Position = pos;"},
			absent:  []string{"precision mediump float;"},
		},
		{
			name:    "desktop drops precision qualifiers",
			profile: desktopFragment,
			passes:  noPasses,
			source:  `uniform mediump float u; void main() { gl_FragColor = vec4(u); }`,
			want:    []string{"uniform float u;"},
			absent:  []string{"mediump"},
		},
		{
			name:    "embedded keeps precision qualifiers",
			profile: embeddedFragment,
			passes:  noPasses,
			source:  `uniform lowp float u; void main() { gl_FragColor = vec4(u); }`,
			want:    []string{"uniform lowp float u;"},
		},
		{
			name:    "explicit lod lookup in embedded fragment",
			profile: embeddedFragment,
			source: `
uniform sampler2D t;
varying vec2 uv;
void main() { gl_FragColor = texture2DLod(t, uv, 0.0); }`,
			want: []string{"#extension GL_EXT_shader_texture_lod : enable\n", "texture2DLodEXT(t, uv, 0.0)"},
		},
		{
			name:    "explicit lod lookup in vertex shader is unchanged",
			profile: embeddedVertex,
			source: `
uniform sampler2D t;
attribute vec2 uv;
varying vec4 c;
void main() { c = texture2DLod(t, uv, 0.0); gl_Position = vec4(0.0); }`,
			want:   []string{"texture2DLod(t, uv, 0.0)"},
			absent: []string{"#extension", "LodEXT"},
		},
		{
			name:    "derivatives need an extension",
			profile: embeddedFragment,
			source:  `varying vec2 uv; void main() { gl_FragColor = vec4(dFdx(uv.x)); }`,
			want:    []string{"#extension GL_OES_standard_derivatives : enable\n", "dFdx(uv.x)"},
		},
		{
			name:    "fragment depth in embedded profile",
			profile: embeddedFragment,
			source:  `void main() { gl_FragColor = vec4(1.0); gl_FragDepth = 0.5; }`,
			want:    []string{"#extension GL_EXT_frag_depth : enable\n", "gl_FragDepthEXT = 0.5;"},
		},
		{
			name:    "fragment depth on desktop",
			profile: desktopFragment,
			source:  `void main() { gl_FragColor = vec4(1.0); gl_FragDepth = 0.5; }`,
			want:    []string{"gl_FragDepth = 0.5;"},
			absent:  []string{"#extension"},
		},
		{
			name:    "while loop",
			profile: desktopFragment,
			passes:  noPasses,
			source: `
uniform int n;
void main() {
    int j = 0;
    while (j < n) { j++; }
    gl_FragColor = vec4(float(j));
}`,
			want: []string{"while (j < n) {", "j++;"},
		},
		{
			name:    "for loop",
			profile: desktopFragment,
			passes:  noPasses,
			source: `
uniform float x;
void main() {
    float acc = 0.0;
    for (int i = 0; i < 4; i++) { acc += x; }
    gl_FragColor = vec4(acc);
}`,
			want: []string{"for (; i < 4; i++) {", "acc += x;"},
		},
		{
			name:    "do while loop",
			profile: desktopFragment,
			passes:  noPasses,
			source: `
uniform float x;
void main() {
    float acc = x;
    do { acc *= 0.5; } while (acc > 1.0);
    gl_FragColor = vec4(acc);
}`,
			want: []string{"do {", "acc *= 0.5;", "} while (acc > 1.0);"},
		},
		{
			name:    "else if chain",
			profile: desktopFragment,
			passes:  noPasses,
			source: `
uniform float u;
void main() {
    float c;
    if (u < 0.0) { c = 1.0; } else if (u < 1.0) { c = 2.0; } else { c = 3.0; }
    gl_FragColor = vec4(c);
}`,
			want: []string{"if (u < 0.0) {", "} else if (u < 1.0) {", "} else {"},
		},
		{
			name:    "desktop-only keyword is a plain name in embedded profile",
			profile: embeddedFragment,
			passes:  noPasses,
			source:  `uniform float centroid; void main() { gl_FragColor = vec4(centroid); }`,
			want:    []string{"uniform float centroid;"},
		},
		{
			name:    "struct declarations",
			profile: desktopFragment,
			passes:  noPasses,
			source: `
struct Light { vec3 color; float power; };
uniform Light light;
void main() { gl_FragColor = vec4(light.color * light.power, 1.0); }`,
			want: []string{"struct Light {", "vec3 color;", "uniform Light light;", "light.color", "light.power"},
		},
		{
			name:    "helper functions precede main",
			profile: desktopFragment,
			passes:  noPasses,
			source: `
float half_of(float v);
void main() { gl_FragColor = vec4(half_of(1.0)); }
float half_of(float v) { return v * 0.5; }`,
			want: []string{"float half_of(float v) {", "return v * 0.5;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := optimize(t, tt.source, tt.profile, tt.passes)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output missing %q:\n%s", w, got)
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(got, a) {
					t.Errorf("output contains %q:\n%s", a, got)
				}
			}
		})
	}
}

func TestOptimizedHelperOrder(t *testing.T) {
	got, _ := optimize(t, `
float half_of(float v);
void main() { gl_FragColor = vec4(half_of(1.0)); }
float half_of(float v) { return v * 0.5; }`, desktopFragment, []string{})
	helper := strings.Index(got, "half_of(float v)")
	main := strings.Index(got, "void main()")
	if helper < 0 || main < 0 || helper > main {
		t.Errorf("helper must be defined before main:\n%s", got)
	}
}

func TestOptimizedSubstitutionWarnings(t *testing.T) {
	_, diags := optimize(t, `
uniform sampler2D t;
varying vec2 uv;
void main() {
    gl_FragColor = texture2DLod(t, uv, 0.0) + texture2DLod(t, uv, 1.0) + vec4(dFdx(uv.x));
}`, embeddedFragment, nil)

	var got []string
	for _, d := range diags {
		if d.Kind != diag.KindWarning {
			t.Errorf("unexpected diagnostic kind %v: %v", d.Kind, d)
		}
		got = append(got, d.Message)
	}
	// Each extension is reported once.
	want := []string{
		"texture2DLod is not available in fragment shaders, using texture2DLodEXT, enabling GL_EXT_shader_texture_lod",
		"dFdx is an extension function, enabling GL_OES_standard_derivatives",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestOptimizedSourceExtensionsAreKept(t *testing.T) {
	got, diags := optimize(t, `
#extension GL_OES_standard_derivatives : enable
varying vec2 uv;
void main() { gl_FragColor = vec4(fwidth(uv.x)); }`, embeddedFragment, nil)
	if n := strings.Count(got, "GL_OES_standard_derivatives"); n != 1 {
		t.Errorf("extension appears %d times:\n%s", n, got)
	}
	if len(diags) != 0 {
		t.Errorf("no warning expected for an enabled extension, got %v", diags)
	}
}

// TestBakeBeforeStore checks that a load emitted before a store to the
// same variable keeps the old value.
func TestBakeBeforeStore(t *testing.T) {
	m := &ir.Module{
		Types: []ir.Type{{Inner: ir.ScalarType{Kind: ir.ScalarFloat}}},
		Functions: []ir.Function{{
			Name:      "main",
			LocalVars: []ir.LocalVariable{{Name: "a"}, {Name: "b"}},
			Expressions: []ir.Expression{
				{Kind: ir.ExprLocalVariable{Variable: 0}},
				{Kind: ir.ExprLocalVariable{Variable: 1}},
				{Kind: ir.ExprLoad{Pointer: 0}},
				{Kind: ir.Literal{Value: ir.LiteralF32(2)}},
			},
			ExpressionTypes: []ir.TypeHandle{0, 0, 0, 0},
			Body: ir.Block{
				{Kind: ir.StmtEmit{Range: ir.Range{Start: 2, End: 3}}},
				{Kind: ir.StmtStore{Pointer: 0, Value: 3}},
				{Kind: ir.StmtStore{Pointer: 1, Value: 2}},
			},
		}},
		Stage: ir.StageFragment,
	}

	got, diags := Optimized(m, Options{})
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	want := `void main() {
    float a;
    float b;
    float _e0 = a;
    a = 2.0;
    b = _e0;
}

`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

// TestSharedExpressionIsBaked checks that an expression used twice is
// evaluated once.
func TestSharedExpressionIsBaked(t *testing.T) {
	m := &ir.Module{
		Types: []ir.Type{{Inner: ir.ScalarType{Kind: ir.ScalarFloat}}},
		GlobalVariables: []ir.GlobalVariable{
			{Name: "u", Space: ir.SpaceUniform},
		},
		Functions: []ir.Function{{
			Name:      "main",
			LocalVars: []ir.LocalVariable{{Name: "x"}},
			Expressions: []ir.Expression{
				{Kind: ir.ExprGlobalVariable{Variable: 0}},
				{Kind: ir.ExprLoad{Pointer: 0}},
				{Kind: ir.ExprMath{Fun: ir.MathSin, Arg: 1}},
				{Kind: ir.ExprBinary{Op: ir.BinaryMultiply, Left: 2, Right: 2}},
				{Kind: ir.ExprLocalVariable{Variable: 0}},
			},
			ExpressionTypes: []ir.TypeHandle{0, 0, 0, 0, 0},
			Body: ir.Block{
				{Kind: ir.StmtEmit{Range: ir.Range{Start: 1, End: 4}}},
				{Kind: ir.StmtStore{Pointer: 4, Value: 3}},
			},
		}},
		Stage: ir.StageFragment,
	}

	got, _ := Optimized(m, Options{})
	for _, w := range []string{"float _e0 = sin(u);", "x = _e0 * _e0;"} {
		if !strings.Contains(got, w) {
			t.Errorf("output missing %q:\n%s", w, got)
		}
	}
}

func TestOptimizedReportsInternalError(t *testing.T) {
	m := &ir.Module{
		Functions: []ir.Function{{
			Name:            "main",
			Expressions:     []ir.Expression{{Kind: ir.ExprCallResult{Function: 0}}},
			ExpressionTypes: []ir.TypeHandle{0},
			Body: ir.Block{
				{Kind: ir.StmtEmit{Range: ir.Range{Start: 0, End: 1}}},
				{Kind: ir.StmtReturn{Value: new(ir.ExpressionHandle)}},
			},
		}},
	}
	got, diags := Optimized(m, Options{})
	if got != "" {
		t.Errorf("expected no output, got:\n%s", got)
	}
	if len(diags) != 1 || diags[0].Kind != diag.KindInternal {
		t.Errorf("expected one internal error, got %v", diags)
	}
}
