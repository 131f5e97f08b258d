// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package lower

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/glslopt/diag"
	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/ir"
	"github.com/gogpu/glslopt/sema"
)

func lowerSource(t *testing.T, source string, stage ir.ShaderStage) *ir.Module {
	t.Helper()
	tu, diags := glsl.Parse(source, glsl.Options{})
	if diag.HasErrors(diags) {
		t.Fatalf("parse errors: %v", diags)
	}
	semaStage := sema.StageFragment
	if stage == ir.StageVertex {
		semaStage = sema.StageVertex
	}
	if res := sema.Analyze(tu, sema.Options{Stage: semaStage}); res.HasErrors() {
		t.Fatalf("analysis errors: %v", res.Diagnostics)
	}
	m, err := Lower(tu, Options{Stage: stage})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	errs, err := ir.Validate(m)
	if err != nil || len(errs) > 0 {
		t.Fatalf("lowered module is invalid: %v %v", err, errs)
	}
	return m
}

func TestLowerValidShaders(t *testing.T) {
	tests := []struct {
		name   string
		stage  ir.ShaderStage
		source string
	}{
		{"passthrough vertex", ir.StageVertex, `
attribute vec4 pos;
uniform mat4 mvp;
varying vec2 uv;
void main() {
    uv = pos.xy;
    gl_Position = mvp * pos;
}`},
		{"texture lookups", ir.StageFragment, `
uniform sampler2D tex;
uniform samplerCube env;
varying vec2 uv;
void main() {
    vec4 a = texture2D(tex, uv);
    vec4 b = texture2DProj(tex, vec3(uv, 2.0), 0.5);
    gl_FragColor = a + b + textureCube(env, vec3(uv, 1.0));
}`},
		{"loops", ir.StageFragment, `
uniform int n;
void main() {
    float acc = 0.0;
    for (int i = 0; i < 4; i++) {
        if (i == n) continue;
        acc += float(i);
    }
    int j = 0;
    while (j < n) { j++; }
    do { acc *= 0.5; } while (acc > 1.0);
    gl_FragColor = vec4(acc);
}`},
		{"short circuit with side effects", ir.StageFragment, `
int counter;
bool bump() { counter++; return counter > 2; }
void main() {
    bool a = counter > 0 && bump();
    bool b = counter > 5 || bump();
    gl_FragColor = vec4(float(a), float(b), 0.0, 1.0);
}`},
		{"conditional with side effects", ir.StageFragment, `
uniform float k;
void main() {
    float x = 1.0;
    float y = k > 0.5 ? x++ : x--;
    gl_FragColor = vec4(x, y, k > 0.0 ? 1.0 : 0.0, 1.0);
}`},
		{"out and inout parameters", ir.StageFragment, `
void split(in vec4 v, out vec2 lo, inout vec2 hi) {
    lo = v.xy;
    hi += v.zw;
}
void main() {
    vec2 a;
    vec2 b = vec2(1.0);
    split(vec4(1.0, 2.0, 3.0, 4.0), a, b);
    gl_FragColor = vec4(a, b);
}`},
		{"structs and arrays", ir.StageFragment, `
struct Light { vec3 dir; float power; };
uniform Light lights[2];
void main() {
    vec3 sum = vec3(0.0);
    for (int i = 0; i < 2; i++) {
        sum += lights[i].dir * lights[i].power;
    }
    Light l = Light(vec3(1.0), 2.0);
    sum.xz += l.dir.yx;
    gl_FragColor = vec4(sum, 1.0);
}`},
		{"global initializer", ir.StageFragment, `
uniform float base;
float scale = base * 2.0;
void main() {
    gl_FragColor = vec4(scale);
}`},
		{"discard and derivatives", ir.StageFragment, `
varying float v;
void main() {
    if (fwidth(v) > 0.1) discard;
    gl_FragColor = vec4(dFdx(v), dFdy(v), 0.0, 1.0);
}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lowerSource(t, tt.source, tt.stage)
		})
	}
}

func TestLowerConstantsAreExpanded(t *testing.T) {
	m := lowerSource(t, `
const float h = 0.5;
const vec2 offs = vec2(h, 1.0);
void main() {
    gl_FragColor = vec4(offs, h, 1.0);
}`, ir.StageFragment)
	for _, g := range m.GlobalVariables {
		if g.Name == "h" || g.Name == "offs" {
			t.Errorf("constant %s lowered to a global", g.Name)
		}
	}
}

func TestLowerKeepsConstantExpressions(t *testing.T) {
	m := lowerSource(t, `
const float h = 0.5;
void main() {
    gl_FragColor = vec4(2.0 + 3.0, h, 0.0, 1.0);
}`, ir.StageFragment)
	f := &m.Functions[m.EntryPoint]
	var adds, halves int
	for _, e := range f.Expressions {
		switch k := e.Kind.(type) {
		case ir.ExprBinary:
			if k.Op == ir.BinaryAdd {
				adds++
			}
		case ir.Literal:
			if k.Value == ir.LiteralF32(0.5) {
				halves++
			}
		}
	}
	if adds != 1 {
		t.Errorf("got %d additions, want the sum kept", adds)
	}
	if halves != 1 {
		t.Errorf("constant h lowered to %d literals, want 1", halves)
	}
}

func TestLowerExpressionSpans(t *testing.T) {
	m := lowerSource(t, `uniform vec2 uv;
void main() {
    gl_FragColor = vec4(dFdx(uv.x));
}`, ir.StageFragment)
	f := &m.Functions[m.EntryPoint]
	for _, e := range f.Expressions {
		if _, ok := e.Kind.(ir.ExprDerivative); ok {
			if e.Span.Line != 3 {
				t.Errorf("derivative span = %+v, want line 3", e.Span)
			}
			return
		}
	}
	t.Fatal("no derivative lowered")
}

func TestLowerBuiltinVariables(t *testing.T) {
	m := lowerSource(t, `
void main() {
    gl_FragColor = gl_FragCoord;
}`, ir.StageFragment)
	got := map[string]ir.AddressSpace{}
	for _, g := range m.GlobalVariables {
		if !g.Builtin {
			t.Errorf("global %s is not marked builtin", g.Name)
		}
		got[g.Name] = g.Space
	}
	want := map[string]ir.AddressSpace{
		"gl_FragColor": ir.SpaceOutput,
		"gl_FragCoord": ir.SpaceInput,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("builtin globals (-want +got):\n%s", diff)
	}
}

func TestLowerForLoopShape(t *testing.T) {
	m := lowerSource(t, `
void main() {
    float acc = 0.0;
    for (int i = 0; i < 3; i++) acc += 1.0;
    gl_FragColor = vec4(acc);
}`, ir.StageFragment)
	main := m.Functions[m.EntryPoint]
	var loop *ir.StmtLoop
	ir.WalkBlock(main.Body, func(k ir.StatementKind) {
		if l, ok := k.(ir.StmtLoop); ok && loop == nil {
			loop = &l
		}
	})
	if loop == nil {
		t.Fatal("no loop in main")
	}
	var head *ir.StmtIf
	for _, st := range loop.Body {
		if s, ok := st.Kind.(ir.StmtIf); ok {
			head = &s
			break
		}
	}
	if head == nil || len(head.Accept) != 1 {
		t.Fatalf("loop body does not start with a break test: %+v", loop.Body)
	}
	if _, ok := head.Accept[0].Kind.(ir.StmtBreak); !ok {
		t.Errorf("loop test accept = %T, want break", head.Accept[0].Kind)
	}
	if len(loop.Continuing) == 0 {
		t.Error("increment missing from continuing block")
	}
}

func TestLowerGlobalInitializerRunsFirst(t *testing.T) {
	m := lowerSource(t, `
uniform float base;
float scale = base;
void main() {
    gl_FragColor = vec4(scale);
}`, ir.StageFragment)
	main := m.Functions[m.EntryPoint]
	for _, st := range main.Body {
		if _, ok := st.Kind.(ir.StmtEmit); ok {
			continue
		}
		store, ok := st.Kind.(ir.StmtStore)
		if !ok {
			t.Fatalf("first statement = %T, want store", st.Kind)
		}
		gv, ok := main.Expressions[store.Pointer].Kind.(ir.ExprGlobalVariable)
		if !ok || m.GlobalVariables[gv.Variable].Name != "scale" {
			t.Errorf("first store targets %+v, want scale", main.Expressions[store.Pointer].Kind)
		}
		return
	}
	t.Fatal("main body is empty")
}

func TestLowerUserCallArguments(t *testing.T) {
	m := lowerSource(t, `
void get(out float v) { v = 1.0; }
void main() {
    float x;
    get(x);
    gl_FragColor = vec4(x);
}`, ir.StageFragment)
	main := m.Functions[m.EntryPoint]
	found := false
	ir.WalkBlock(main.Body, func(k ir.StatementKind) {
		call, ok := k.(ir.StmtCall)
		if !ok {
			return
		}
		found = true
		if !ir.IsPointer(&main, call.Arguments[0]) {
			t.Error("out argument is not passed as a pointer")
		}
		if call.Result != nil {
			t.Error("void call has a result")
		}
	})
	if !found {
		t.Fatal("no call statement in main")
	}
}

func TestLowerMissingMain(t *testing.T) {
	tu, diags := glsl.Parse("float f(float x) { return x; }", glsl.Options{})
	if diag.HasErrors(diags) {
		t.Fatalf("parse errors: %v", diags)
	}
	sema.Analyze(tu, sema.Options{Stage: sema.StageFragment})
	_, err := Lower(tu, Options{Stage: ir.StageFragment})
	if err == nil || !strings.Contains(err.Error(), "main") {
		t.Errorf("Lower error = %v, want missing main", err)
	}
}
