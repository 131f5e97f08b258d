// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package sema

import (
	"strings"
	"testing"

	"github.com/gogpu/glslopt/diag"
	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/types"
)

func analyze(t *testing.T, source string, opts Options) (*glsl.TranslationUnit, *Result) {
	t.Helper()
	tu, diags := glsl.Parse(source, glsl.Options{Embedded: opts.Embedded})
	if diag.HasErrors(diags) {
		t.Fatalf("parse errors: %v", diags)
	}
	return tu, Analyze(tu, opts)
}

func mustAnalyze(t *testing.T, source string, opts Options) (*glsl.TranslationUnit, *Result) {
	t.Helper()
	tu, res := analyze(t, source, opts)
	if res.HasErrors() {
		t.Fatalf("unexpected errors: %v", res.Diagnostics)
	}
	return tu, res
}

func errorMessages(res *Result) []string {
	var out []string
	for _, d := range res.Diagnostics {
		if d.IsError() {
			out = append(out, d.Message)
		}
	}
	return out
}

var fragment = Options{Stage: StageFragment}

func TestAnalyzeValidShaders(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		source string
	}{
		{"passthrough vertex", Options{Stage: StageVertex}, `
attribute vec4 pos;
uniform mat4 mvp;
varying vec2 uv;
void main() {
    uv = pos.xy;
    gl_Position = mvp * pos;
}`},
		{"forward call", fragment, `
float helper(float x);
void main() { gl_FragColor = vec4(helper(1.0)); }
float helper(float x) { return x * 2.0; }`},
		{"overloads", fragment, `
float f(float x) { return x; }
vec2 f(vec2 x) { return x; }
void main() { gl_FragColor = vec4(f(vec2(1.0)), f(2.0), 1.0); }`},
		{"struct constructor and member", fragment, `
struct Light { vec3 dir; float power; };
uniform Light light;
void main() {
    Light l = Light(vec3(0.0, 1.0, 0.0), 2.0);
    gl_FragColor = vec4(l.dir * light.power, 1.0);
}`},
		{"int promotion", fragment, `
void main() {
    float x = 1;
    vec2 v = vec2(1.0) * 2;
    gl_FragColor = vec4(x + v.x);
}`},
		{"matrix algebra", Options{Stage: StageVertex}, `
uniform mat4 m;
attribute vec4 p;
void main() {
    mat3 n = mat3(1.0);
    vec3 a = n * p.xyz;
    vec4 b = p * m;
    gl_Position = m * m * p + vec4(a, 0.0) + b;
}`},
		{"loops and control flow", fragment, `
uniform int count;
void main() {
    vec4 acc = vec4(0.0);
    for (int i = 0; i < 4; i++) {
        if (i == count) { break; }
        acc += vec4(float(i));
    }
    int j = 0;
    while (j < 2) { j++; }
    do { j--; } while (j > 0);
    gl_FragColor = acc;
}`},
		{"const arrays sizes", fragment, `
const int N = 2 + 1;
uniform vec4 colors[N * 2];
void main() { gl_FragColor = colors[N]; }`},
		{"texture sampling", fragment, `
uniform sampler2D tex;
varying vec2 uv;
void main() { gl_FragColor = texture2D(tex, uv) + texture2D(tex, uv, 0.5); }`},
		{"embedded with precision", Options{Stage: StageFragment, Embedded: true}, `
precision mediump float;
uniform sampler2D tex;
varying vec2 uv;
void main() { gl_FragColor = texture2D(tex, uv); }`},
		{"out parameter", fragment, `
void split(in vec4 v, out vec2 a, inout float b) { a = v.xy; b += v.z; }
void main() {
    vec2 a;
    float b = 0.0;
    split(vec4(1.0), a, b);
    gl_FragColor = vec4(a, b, 1.0);
}`},
		{"swizzle assignment", fragment, `
void main() {
    vec4 c = vec4(0.0);
    c.zx = vec2(1.0, 2.0);
    c.a = 1.0;
    gl_FragColor = c.bgra;
}`},
		{"invariant builtin input", fragment, `
invariant gl_FragCoord;
void main() { gl_FragColor = gl_FragCoord; }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, res := mustAnalyze(t, tt.source, tt.opts)
			if res.Main == nil {
				t.Error("Main not set")
			}
		})
	}
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		source string
		want   string
	}{
		{"undeclared", fragment, `void main() { gl_FragColor = vec4(x); }`, "'x' undeclared"},
		{"missing main", fragment, `void f() {}`, "missing main function"},
		{"main signature", fragment, `int main() { return 0; }`, "main() must have the signature 'void main()'"},
		{"assign const", fragment, `const float k = 1.0; void main() { k = 2.0; }`,
			"assignment to read-only variable 'k'"},
		{"assign uniform", fragment, `uniform float u; void main() { u = 2.0; }`,
			"assignment to read-only variable 'u'"},
		{"assign varying in fragment", fragment, `varying float v; void main() { v = 2.0; }`,
			"assignment to read-only variable 'v'"},
		{"narrowing", fragment, `void main() { int i = 1.5; }`,
			"initializer of type 'float' cannot be assigned to variable 'i' of type 'int'"},
		{"bad operands", fragment, `void main() { vec3 a = vec3(1.0) + vec2(1.0); }`,
			"wrong operand types: no operation '+' exists that takes a left-hand operand of type 'vec3' and a right operand of type 'vec2'"},
		{"no overload", fragment, `float f(float x) { return x; } void main() { f(true); }`,
			"no matching function for call to 'f(bool)'"},
		{"builtin overload", fragment, `void main() { float x = dot(vec2(1.0), vec3(1.0)); }`,
			"no matching function for call to 'dot(vec2, vec3)'"},
		{"unknown function", fragment, `void main() { frob(1.0); }`, "function 'frob' undeclared"},
		{"recursion", fragment, `
float a(float x);
float b(float x) { return a(x); }
float a(float x) { return b(x); }
void main() { gl_FragColor = vec4(a(1.0)); }`, "function 'b' has static recursion"},
		{"self recursion", fragment, `float f(float x) { return f(x); } void main() { f(1.0); }`,
			"function 'f' has static recursion"},
		{"no definition", fragment, `float f(float x); void main() { f(1.0); }`, "function 'f' has no definition"},
		{"break outside loop", fragment, `void main() { break; }`, "'break' may only appear in a loop"},
		{"discard in vertex", Options{Stage: StageVertex}, `void main() { discard; }`,
			"'discard' may only appear in a fragment shader"},
		{"attribute in fragment", fragment, `attribute vec4 p; void main() {}`,
			"'attribute' variables are only allowed in vertex shaders"},
		{"non-bool condition", fragment, `void main() { if (1.0) {} }`,
			"if condition must be a scalar boolean expression, not 'float'"},
		{"return mismatch", fragment, `vec2 f() { return 1.0; } void main() {}`,
			"return type mismatch: function 'f' returns 'vec2', not 'float'"},
		{"void return value", fragment, `void main() { return 1.0; }`,
			"'return' with a value in function 'main' returning void"},
		{"array size", fragment, `uniform float a[0]; void main() {}`, "array size must be greater than zero"},
		{"array size not constant", fragment, `uniform int n; uniform float a[n]; void main() {}`,
			"array size must be a constant integer expression"},
		{"index out of range", fragment, `uniform vec4 a[2]; void main() { gl_FragColor = a[2]; }`,
			"index 2 is out of range for 'vec4[2]'"},
		{"bad swizzle", fragment, `void main() { vec2 v = vec2(1.0); float f = v.z; }`,
			"invalid swizzle '.z' on 'vec2'"},
		{"mixed swizzle sets", fragment, `void main() { vec4 v = vec4(1.0); vec2 f = v.xg; }`,
			"invalid swizzle '.xg' on 'vec4'"},
		{"repeated swizzle lvalue", fragment, `void main() { vec4 v; v.xx = vec2(1.0); }`,
			"swizzle with repeated components cannot be an l-value"},
		{"no member", fragment, `struct S { float a; }; void main() { S s = S(1.0); float b = s.b; }`,
			"'struct S' has no member named 'b'"},
		{"constructor too few", fragment, `void main() { vec4 v = vec4(1.0, 2.0); }`,
			"not enough data provided to constructor of 'vec4'"},
		{"constructor too many", fragment, `void main() { vec2 v = vec2(1.0, 2.0, 3.0); }`,
			"too many arguments to constructor of 'vec2'"},
		{"sampler construct", fragment, `void main() { sampler2D s = sampler2D(1); }`,
			"cannot construct a value of type 'sampler2D'"},
		{"redefinition", fragment, `void main() { float a; float a; }`, "redefinition of 'a'"},
		{"reserved prefix", fragment, `float gl_thing; void main() {}`,
			"identifier 'gl_thing' uses reserved prefix 'gl_'"},
		{"write both outputs", fragment, `void main() { gl_FragColor = vec4(1.0); gl_FragData[0] = vec4(1.0); }`,
			"a fragment shader cannot write to both gl_FragColor and gl_FragData"},
		{"stage builtin", Options{Stage: StageVertex}, `void main() { float d = dFdx(1.0); }`,
			"built-in function 'dFdx' is not available in vertex shaders"},
		{"embedded non-square", Options{Stage: StageVertex, Embedded: true}, `uniform mat2x3 m; void main() {}`,
			"non-square matrix type 'mat2x3' is not available in GLSL ES"},
		{"out argument not lvalue", fragment, `void f(out float x) { x = 1.0; } void main() { f(2.0); }`,
			"'out' argument requires an l-value"},
		{"increment const", fragment, `void main() { const int i = 0; i++; }`,
			"'++' to read-only variable 'i'"},
		{"sampler local", fragment, `uniform sampler2D t; void main() { sampler2D s; }`,
			"sampler variable 's' must be a uniform or a function parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, res := analyze(t, tt.source, tt.opts)
			msgs := errorMessages(res)
			for _, m := range msgs {
				if m == tt.want {
					return
				}
			}
			t.Errorf("missing error %q; got %q", tt.want, msgs)
		})
	}
}

func TestAnalyzeErrorRecovery(t *testing.T) {
	// One bad identifier must not cascade into errors on its users.
	_, res := analyze(t, `
void main() {
    vec4 c = missing * 2.0 + vec4(1.0);
    gl_FragColor = c;
}`, fragment)
	msgs := errorMessages(res)
	if len(msgs) != 1 || msgs[0] != "'missing' undeclared" {
		t.Errorf("errors = %q", msgs)
	}
}

func TestAnalyzeContinuesAfterErrors(t *testing.T) {
	_, res := analyze(t, `
void main() {
    a = 1.0;
    b = 2.0;
}`, fragment)
	if got := len(errorMessages(res)); got != 2 {
		t.Errorf("expected 2 errors, got %d: %v", got, res.Diagnostics)
	}
}

func TestAnalyzeUnusedVariableWarning(t *testing.T) {
	_, res := mustAnalyze(t, `
void main() {
    float unused = 1.0;
    float used = 2.0;
    gl_FragColor = vec4(used);
}`, fragment)
	var warnings []string
	for _, d := range res.Diagnostics {
		if !d.IsError() {
			warnings = append(warnings, d.Message)
		}
	}
	if len(warnings) != 1 || warnings[0] != "unused variable 'unused'" {
		t.Errorf("warnings = %q", warnings)
	}
}

func TestAnalyzePrecisionWarning(t *testing.T) {
	_, res := mustAnalyze(t, `
varying vec2 uv;
void main() { gl_FragColor = vec4(uv, 0.0, 1.0); }`, Options{Stage: StageFragment, Embedded: true})
	found := 0
	for _, d := range res.Diagnostics {
		if strings.HasPrefix(d.Message, "no default precision specified for float") {
			found++
		}
	}
	if found != 1 {
		t.Errorf("expected one precision warning, got %d", found)
	}
}

func TestAnalyzeAnnotations(t *testing.T) {
	tu, res := mustAnalyze(t, `
uniform float scale;
float twice(float x) { return x * 2.0; }
void main() {
    float a = 3;
    gl_FragColor = vec4(twice(a) * scale);
}`, fragment)

	main := res.Main
	decl := main.Body.Stmts[0].(*glsl.DeclStmt).Decl.Vars[0]
	if !types.Equal(decl.Type, types.FloatType) {
		t.Errorf("a has type %s", decl.Type)
	}
	lit := decl.Init.Annotation()
	if !types.Equal(lit.Type, types.IntType) || !types.Equal(lit.Convert, types.FloatType) {
		t.Errorf("initializer annotation = %+v", lit)
	}

	assign := main.Body.Stmts[1].(*glsl.ExprStmt).X.(*glsl.AssignExpr)
	lhs := assign.LHS.(*glsl.Ident)
	if lhs.Ref.Kind != glsl.RefBuiltin || lhs.Ref.Builtin != "gl_FragColor" || !lhs.Ref.Output {
		t.Errorf("gl_FragColor ref = %+v", lhs.Ref)
	}

	ctor := assign.RHS.(*glsl.CallExpr)
	if ctor.Target.Kind != glsl.CallConstructor {
		t.Errorf("vec4(...) target = %+v", ctor.Target)
	}
	mul := ctor.Args[0].(*glsl.BinaryExpr)
	call := mul.X.(*glsl.CallExpr)
	twice := tu.Decls[1].(*glsl.FuncDecl)
	if call.Target.Kind != glsl.CallUser || call.Target.Func != twice.ID {
		t.Errorf("twice() target = %+v, want func %d", call.Target, twice.ID)
	}
	if res.Functions[twice.ID] != twice {
		t.Error("twice definition not recorded")
	}
	scale := mul.Y.(*glsl.Ident)
	if scale.Ref.Kind != glsl.RefGlobal || scale.Ref.Storage != glsl.StorageUniform {
		t.Errorf("scale ref = %+v", scale.Ref)
	}
}

func TestAnalyzeConstantValues(t *testing.T) {
	_, res := mustAnalyze(t, `
const int a = 6;
const int b = a / 2 - 1;
const float c = float(b) * 0.5;
const bool d = c < 2.0 && !(a == 0);
void main() {
    int x = b;
    gl_FragColor = vec4(c, float(x), d ? 1.0 : 0.0, 1.0);
}`, fragment)

	x := res.Main.Body.Stmts[0].(*glsl.DeclStmt).Decl.Vars[0]
	c := x.Init.Annotation().Const
	if c == nil || c.Kind != types.Int || c.Int != 2 {
		t.Fatalf("b = %+v, want 2", c)
	}
	ctor := res.Main.Body.Stmts[1].(*glsl.ExprStmt).X.(*glsl.AssignExpr).RHS.(*glsl.CallExpr)
	if c := ctor.Args[0].Annotation().Const; c == nil || c.Float != 1 {
		t.Errorf("c = %+v, want 1.0", c)
	}
	if c := ctor.Args[2].Annotation().Const; c == nil || c.Float != 1 {
		t.Errorf("d ? 1.0 : 0.0 = %+v, want 1.0", c)
	}
}

func TestAnalyzeBuiltinConstants(t *testing.T) {
	mustAnalyze(t, `
uniform vec4 lights[gl_MaxLights];
void main() { gl_FragColor = lights[0] + gl_TexCoord[0]; }`, fragment)

	_, res := analyze(t, `
uniform vec4 lights[gl_MaxLights];
void main() { gl_FragColor = lights[0]; }`, Options{Stage: StageFragment, Embedded: true})
	if !res.HasErrors() {
		t.Error("gl_MaxLights must not exist in GLSL ES")
	}
}

func TestAnalyzeShadowing(t *testing.T) {
	_, res := mustAnalyze(t, `
float x = 1.0;
void main() {
    float y = x;
    {
        float x = 2.0;
        y += x;
    }
    gl_FragColor = vec4(y);
}`, fragment)
	block := res.Main.Body.Stmts[1].(*glsl.BlockStmt)
	inner := block.Stmts[1].(*glsl.ExprStmt).X.(*glsl.AssignExpr).RHS.(*glsl.Ident)
	if inner.Ref.Kind != glsl.RefLocal {
		t.Errorf("inner x resolved to %+v, want the local", inner.Ref)
	}
	outer := res.Main.Body.Stmts[0].(*glsl.DeclStmt).Decl.Vars[0].Init.(*glsl.Ident)
	if outer.Ref.Kind != glsl.RefGlobal {
		t.Errorf("outer x resolved to %+v, want the global", outer.Ref)
	}
}

func TestParseSwizzle(t *testing.T) {
	tests := []struct {
		name string
		size int
		want []int
		ok   bool
	}{
		{"x", 2, []int{0}, true},
		{"wzyx", 4, []int{3, 2, 1, 0}, true},
		{"rgb", 3, []int{0, 1, 2}, true},
		{"stpq", 4, []int{0, 1, 2, 3}, true},
		{"xxxx", 2, []int{0, 0, 0, 0}, true},
		{"z", 2, nil, false},
		{"xr", 4, nil, false},
		{"xyzwx", 4, nil, false},
		{"", 4, nil, false},
		{"q", 3, nil, false},
	}
	for _, tt := range tests {
		got, ok := ParseSwizzle(tt.name, tt.size)
		if ok != tt.ok {
			t.Errorf("ParseSwizzle(%q, %d) ok = %v", tt.name, tt.size, ok)
			continue
		}
		if !ok {
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("ParseSwizzle(%q) = %v, want %v", tt.name, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseSwizzle(%q) = %v, want %v", tt.name, got, tt.want)
				break
			}
		}
	}
}

func TestArithmeticType(t *testing.T) {
	vec2, vec3, vec4 := types.Vec(types.Float, 2), types.Vec(types.Float, 3), types.Vec(types.Float, 4)
	tests := []struct {
		name   string
		op     glsl.BinaryOp
		lt, rt *types.Type
		want   *types.Type
	}{
		{"scalar", glsl.OpAdd, types.FloatType, types.FloatType, types.FloatType},
		{"promoted scalar", glsl.OpMul, types.IntType, types.FloatType, types.FloatType},
		{"scalar times vector", glsl.OpMul, types.FloatType, vec3, vec3},
		{"vector minus scalar", glsl.OpSub, vec4, types.IntType, vec4},
		{"vector size mismatch", glsl.OpAdd, vec2, vec3, nil},
		{"mat times vec", glsl.OpMul, types.Mat(3, 4), vec3, vec4},
		{"vec times mat", glsl.OpMul, vec4, types.Mat(3, 4), vec3},
		{"mat times mat", glsl.OpMul, types.Mat(2, 3), types.Mat(4, 2), types.Mat(4, 3)},
		{"mat plus mat mismatch", glsl.OpAdd, types.Mat(2, 2), types.Mat(3, 3), nil},
		{"vec plus mat", glsl.OpAdd, vec2, types.Mat(2, 2), nil},
		{"bool", glsl.OpAdd, types.BoolType, types.BoolType, nil},
	}
	for _, tt := range tests {
		got, _, _ := arithmeticType(tt.op, tt.lt, tt.rt)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("%s: got %s, want no operation", tt.name, got)
		case tt.want != nil && !types.Equal(got, tt.want):
			t.Errorf("%s: got %v, want %s", tt.name, got, tt.want)
		}
	}
}
