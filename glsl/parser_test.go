// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gogpu/glslopt/diag"
)

// parseSource parses source and fails the test on any error.
func parseSource(t *testing.T, source string) *TranslationUnit {
	t.Helper()
	tu, diags := Parse(source, Options{})
	if diag.HasErrors(diags) {
		t.Fatalf("parse errors: %v", diags)
	}
	return tu
}

// firstBodyStmt returns the first statement of the last function.
func firstBodyStmt(t *testing.T, tu *TranslationUnit) Stmt {
	t.Helper()
	fn, ok := tu.Decls[len(tu.Decls)-1].(*FuncDecl)
	if !ok || fn.Body == nil || len(fn.Body.Stmts) == 0 {
		t.Fatal("expected a function with a non-empty body")
	}
	return fn.Body.Stmts[0]
}

func TestParseGlobalDeclarations(t *testing.T) {
	tu := parseSource(t, `
uniform highp vec4 a, b[2];
attribute vec3 pos;
invariant varying vec2 uv;
const float k = 1.0;
`)
	if len(tu.Decls) != 4 {
		t.Fatalf("expected 4 declarations, got %d", len(tu.Decls))
	}

	list := tu.Decls[0].(*VarDeclList)
	if list.Qual.Storage != StorageUniform || list.Qual.Precision != PrecisionHigh {
		t.Errorf("qualifiers = %+v", list.Qual)
	}
	if list.Type.Name != "vec4" || len(list.Vars) != 2 {
		t.Fatalf("got type %q with %d vars", list.Type.Name, len(list.Vars))
	}
	if list.Vars[0].IsArray || !list.Vars[1].IsArray {
		t.Error("only b should be an array")
	}
	if list.Vars[0].ID == list.Vars[1].ID {
		t.Error("declarators must get distinct ids")
	}

	if q := tu.Decls[2].(*VarDeclList).Qual; !q.Invariant || q.Storage != StorageVarying {
		t.Errorf("uv qualifiers = %+v", q)
	}
	if v := tu.Decls[3].(*VarDeclList).Vars[0]; v.Init == nil {
		t.Error("k should have an initializer")
	}
}

func TestParseFunctions(t *testing.T) {
	tu := parseSource(t, `
float scale(in float x, out vec2 y, inout int z, const in float w);
float scale(float x, out vec2 y, inout int z, const float w) { return x * w; }
void main(void) {}
`)
	if len(tu.Decls) != 3 {
		t.Fatalf("expected 3 declarations, got %d", len(tu.Decls))
	}

	proto := tu.Decls[0].(*FuncDecl)
	if proto.Body != nil {
		t.Error("prototype should have no body")
	}
	if len(proto.Params) != 4 {
		t.Fatalf("expected 4 params, got %d", len(proto.Params))
	}
	want := []Storage{StorageIn, StorageOut, StorageInOut, StorageIn}
	for i, p := range proto.Params {
		if p.Qual.Storage != want[i] {
			t.Errorf("param %d storage = %v, want %v", i, p.Qual.Storage, want[i])
		}
	}
	if !proto.Params[3].Qual.Const {
		t.Error("w should be const")
	}

	main := tu.Decls[2].(*FuncDecl)
	if main.Name != "main" || len(main.Params) != 0 || main.Body == nil {
		t.Errorf("main = %+v", main)
	}
}

func TestParseStructs(t *testing.T) {
	tu := parseSource(t, `
struct Light { vec3 pos; float power, radius[2]; } lights[2];
struct S { float x; };
S s;
void main() {
    S t = S(1.0);
    t.x = s.x;
}
`)
	list := tu.Decls[0].(*VarDeclList)
	if list.Type.Struct == nil || list.Type.Struct.Name != "Light" {
		t.Fatal("expected Light struct definition")
	}
	if n := len(list.Type.Struct.Fields); n != 2 {
		t.Errorf("got %d field declarations, want 2", n)
	}
	if len(list.Vars) != 1 || !list.Vars[0].IsArray {
		t.Error("expected lights[2] declarator")
	}

	plain := tu.Decls[1].(*VarDeclList)
	if plain.Type.Struct == nil || len(plain.Vars) != 0 {
		t.Error("expected a plain struct declaration")
	}

	decl, ok := firstBodyStmt(t, tu).(*DeclStmt)
	if !ok {
		t.Fatal("S t = S(1.0) should parse as a declaration")
	}
	call, ok := decl.Decl.Vars[0].Init.(*CallExpr)
	if !ok || call.Type == nil || call.Type.Name != "S" {
		t.Errorf("initializer should be a struct constructor, got %T", decl.Decl.Vars[0].Init)
	}
}

func TestParsePrecedence(t *testing.T) {
	tu := parseSource(t, "void main() { x = a + b * c - d; }")
	stmt := firstBodyStmt(t, tu).(*ExprStmt)
	assign := stmt.X.(*AssignExpr)

	sub := assign.RHS.(*BinaryExpr)
	if sub.Op != OpSub {
		t.Fatalf("top operator = %v, want sub", sub.Op)
	}
	add := sub.X.(*BinaryExpr)
	if add.Op != OpAdd {
		t.Fatalf("left operator = %v, want add", add.Op)
	}
	if mul := add.Y.(*BinaryExpr); mul.Op != OpMul {
		t.Errorf("inner operator = %v, want mul", mul.Op)
	}
}

func TestParseExpressions(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		check func(t *testing.T, e Expr)
	}{
		{"ternary", "c ? a : b", func(t *testing.T, e Expr) {
			if _, ok := e.(*CondExpr); !ok {
				t.Errorf("got %T, want *CondExpr", e)
			}
		}},
		{"comma", "a, b", func(t *testing.T, e Expr) {
			if b, ok := e.(*BinaryExpr); !ok || b.Op != OpComma {
				t.Errorf("got %T, want comma", e)
			}
		}},
		{"logical", "a || b && c", func(t *testing.T, e Expr) {
			if b, ok := e.(*BinaryExpr); !ok || b.Op != OpOr {
				t.Errorf("got %T, want ||", e)
			}
		}},
		{"xor", "a ^^ b", func(t *testing.T, e Expr) {
			if b, ok := e.(*BinaryExpr); !ok || b.Op != OpXor {
				t.Errorf("got %T, want ^^", e)
			}
		}},
		{"postfix chain", "v[i].xy++", func(t *testing.T, e Expr) {
			u, ok := e.(*UnaryExpr)
			if !ok || u.Op != OpPostInc {
				t.Fatalf("got %T, want postfix ++", e)
			}
			f, ok := u.X.(*FieldExpr)
			if !ok || f.Name != "xy" {
				t.Fatalf("got %T, want .xy", u.X)
			}
			if _, ok := f.X.(*IndexExpr); !ok {
				t.Errorf("got %T, want index", f.X)
			}
		}},
		{"prefix", "-!x", func(t *testing.T, e Expr) {
			u := e.(*UnaryExpr)
			if u.Op != OpNeg || u.X.(*UnaryExpr).Op != OpNot {
				t.Error("expected -(!x)")
			}
		}},
		{"constructor", "vec4(1.0, 2, true, x)", func(t *testing.T, e Expr) {
			c, ok := e.(*CallExpr)
			if !ok || c.Type == nil || c.Type.Name != "vec4" || len(c.Args) != 4 {
				t.Errorf("got %#v", e)
			}
		}},
		{"compound assign", "x *= 2.0", func(t *testing.T, e Expr) {
			if a, ok := e.(*AssignExpr); !ok || a.Op != AssignMul {
				t.Errorf("got %T, want *=", e)
			}
		}},
		{"right assoc assign", "a = b = c", func(t *testing.T, e Expr) {
			a := e.(*AssignExpr)
			if _, ok := a.RHS.(*AssignExpr); !ok {
				t.Error("assignment should be right associative")
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tu := parseSource(t, "void main() { "+tt.expr+"; }")
			tt.check(t, firstBodyStmt(t, tu).(*ExprStmt).X)
		})
	}
}

func TestParseStatements(t *testing.T) {
	tu := parseSource(t, `
void main() {
    for (int i = 0; i < 4; i++) { if (i == 2) continue; else break; }
    while (x > 0.0) x -= 1.0;
    do { x += 1.0; } while (x < 1.0);
    for (;;) { discard; }
    ;
    return;
}
`)
	fn := tu.Decls[0].(*FuncDecl)
	want := []string{"*glsl.ForStmt", "*glsl.WhileStmt", "*glsl.DoStmt", "*glsl.ForStmt", "*glsl.EmptyStmt", "*glsl.ReturnStmt"}
	if len(fn.Body.Stmts) != len(want) {
		t.Fatalf("got %d statements, want %d", len(fn.Body.Stmts), len(want))
	}
	for i, s := range fn.Body.Stmts {
		if got := fmt.Sprintf("%T", s); got != want[i] {
			t.Errorf("statement %d = %s, want %s", i, got, want[i])
		}
	}

	loop := fn.Body.Stmts[0].(*ForStmt)
	if _, ok := loop.Init.(*DeclStmt); !ok {
		t.Errorf("for init = %T, want declaration", loop.Init)
	}
	empty := fn.Body.Stmts[3].(*ForStmt)
	if empty.Cond != nil || empty.Post != nil {
		t.Error("for(;;) should have no condition or post expression")
	}
}

func TestParseForClauses(t *testing.T) {
	tu := parseSource(t, `
void main() {
    int i;
    for (i = 0; i < 4; i += 2) {}
    for (; i > 0;) i--;
}
`)
	fn := tu.Decls[0].(*FuncDecl)
	withExpr := fn.Body.Stmts[1].(*ForStmt)
	if _, ok := withExpr.Init.(*ExprStmt); !ok {
		t.Errorf("for init = %T, want expression statement", withExpr.Init)
	}
	if withExpr.Cond == nil || withExpr.Post == nil {
		t.Error("condition and post expression should be parsed")
	}
	condOnly := fn.Body.Stmts[2].(*ForStmt)
	if _, ok := condOnly.Init.(*EmptyStmt); !ok {
		t.Errorf("for init = %T, want empty statement", condOnly.Init)
	}
	if condOnly.Cond == nil || condOnly.Post != nil {
		t.Error("only the condition should be present")
	}
}

func TestParseVersionAndPrecision(t *testing.T) {
	tu, diags := Parse("#version 100\nprecision mediump float;\nvoid main() {}", Options{Embedded: true})
	if diag.HasErrors(diags) {
		t.Fatalf("parse errors: %v", diags)
	}
	if tu.Version != 100 {
		t.Errorf("Version = %d, want 100", tu.Version)
	}
	prec, ok := tu.Decls[0].(*PrecisionDecl)
	if !ok || prec.Precision != PrecisionMedium || prec.Type.Name != "float" {
		t.Errorf("first declaration = %#v", tu.Decls[0])
	}
	if prec.Loc.Line != 2 {
		t.Errorf("precision line = %d, want 2", prec.Loc.Line)
	}
}

func TestParseInvariantRedeclaration(t *testing.T) {
	tu := parseSource(t, "varying vec4 color;\ninvariant color, gl_Position;")
	inv, ok := tu.Decls[1].(*InvariantDecl)
	if !ok || len(inv.Names) != 2 {
		t.Fatalf("got %#v", tu.Decls[1])
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		contains string
		line     int
	}{
		{"missing expression", "void main(){ float x = ; }", "unexpected ';'", 1},
		{"missing semicolon", "void main() {\n  float x = 1.0\n}", "unexpected '}'", 3},
		{"reserved operator", "void main() { int a = 1 % 2; }", "reserved", 1},
		{"reserved word", "float goto;", "reserved word 'goto'", 1},
		{"unterminated block", "void main() {", "end of file", 1},
		{"local uniform", "void main() { uniform float u; }", "not allowed on local", 1},
		{"qualified return", "uniform float f() { return 1.0; }", "return types", 1},
		{"empty struct", "struct S {};", "at least one member", 1},
		{"missing for condition operand", "void main() {\n  for (int i = 0; i < ; i++) {}\n}", "unexpected ';'", 2},
		{"unclosed for header", "void main() { for (;; ) ", "end of file", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := Parse(tt.source, Options{})
			if len(diags) != 1 {
				t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags)
			}
			d := diags[0]
			if d.Kind != diag.KindSyntax {
				t.Errorf("kind = %v, want syntax", d.Kind)
			}
			if !strings.Contains(d.Message, tt.contains) {
				t.Errorf("message %q does not contain %q", d.Message, tt.contains)
			}
			if d.Pos.Line != tt.line {
				t.Errorf("line = %d, want %d", d.Pos.Line, tt.line)
			}
		})
	}
}

func TestParseKeepsDeclarationsBeforeError(t *testing.T) {
	tu, diags := Parse("uniform float a;\nvoid main() { a = ; }", Options{})
	if !diag.HasErrors(diags) {
		t.Fatal("expected an error")
	}
	if len(tu.Decls) != 1 {
		t.Errorf("got %d declarations, want 1", len(tu.Decls))
	}
}

func TestParseNeverPanics(t *testing.T) {
	inputs := []string{
		"", "{", "}", "(", "void", "void main(", "struct", "struct S {",
		"float x = (1.0", "void main() { for (", "void main() { x[", "a.b.c",
		"#if", "#define F(", "vec3(", "uniform", "precision", "invariant",
	}
	for _, src := range inputs {
		tu, _ := Parse(src, Options{})
		if tu == nil {
			t.Errorf("Parse(%q) returned a nil unit", src)
		}
	}
}
