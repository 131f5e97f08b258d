// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/glslopt/diag"
	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/ir"
	"github.com/gogpu/glslopt/types"
)

// Raw reprints an analyzed translation unit. The structure of the source
// is kept; implicit int to float promotions become explicit conversions
// and the profile's substitutions are applied. A unit with errors is
// printed as far as it was parsed.
func Raw(tu *glsl.TranslationUnit, options Options) (string, []diag.Diagnostic) {
	r := &rawWriter{
		options: options,
		profile: newProfile(options.Embedded, options.Stage, rawExtensions(tu.Extensions)),
	}
	if err := generate(func() error { return r.writeUnit(tu) }); err != nil {
		return "", append(r.profile.diags, diag.Errorf(diag.KindInternal, noPos, "raw output: %v", err))
	}
	return r.out.String(), r.profile.diags
}

func rawExtensions(exts []glsl.Extension) []ir.Extension {
	out := make([]ir.Extension, len(exts))
	for i, e := range exts {
		out[i] = ir.Extension{Name: e.Name, Behavior: e.Behavior}
	}
	return out
}

// rawWriter prints AST nodes.
type rawWriter struct {
	options Options
	profile *profile
	out     strings.Builder
	indent  int
}

func (r *rawWriter) writeUnit(tu *glsl.TranslationUnit) error {
	for _, d := range tu.Decls {
		if pd, ok := d.(*glsl.PrecisionDecl); ok && pd.Type != nil && pd.Type.Name == "float" {
			r.profile.sourcePrecision = true
		}
	}
	for _, d := range tu.Decls {
		if err := r.writeDecl(d); err != nil {
			return err
		}
	}
	body := r.out.String()
	r.out.Reset()
	r.profile.writeHeader(&r.out, tu.Version, rawExtensions(tu.Extensions), ir.PrecisionNone)
	r.out.WriteString(body)
	return nil
}

func (r *rawWriter) writeDecl(d glsl.Decl) error {
	switch d := d.(type) {
	case *glsl.VarDeclList:
		r.line(r.varDeclList(d) + ";")
	case *glsl.FuncDecl:
		return r.writeFunc(d)
	case *glsl.PrecisionDecl:
		if r.options.Embedded {
			r.line(fmt.Sprintf("precision %s %s;", d.Precision, d.Type.Name))
		}
	case *glsl.InvariantDecl:
		names := make([]string, len(d.Names))
		for i, n := range d.Names {
			names[i] = r.profile.variable(n.Name, n.Pos())
		}
		r.line("invariant " + strings.Join(names, ", ") + ";")
	default:
		return fmt.Errorf("unsupported declaration %T", d)
	}
	return nil
}

func (r *rawWriter) precision(p glsl.Precision) string {
	if !r.options.Embedded {
		return ""
	}
	return p.String()
}

// typeSpec prints a type with its precision. Inline struct definitions
// are printed in full.
func (r *rawWriter) typeSpec(t *glsl.TypeSpec) string {
	if t == nil {
		return "void"
	}
	var sb strings.Builder
	if p := r.precision(t.Precision); p != "" {
		sb.WriteString(p + " ")
	}
	if t.Struct == nil {
		sb.WriteString(t.Name)
		return sb.String()
	}
	sb.WriteString("struct ")
	if t.Struct.Name != "" {
		sb.WriteString(t.Struct.Name + " ")
	}
	sb.WriteString("{\n")
	r.indent++
	for _, f := range t.Struct.Fields {
		members := make([]string, len(f.Members))
		for i, m := range f.Members {
			members[i] = m.Name + r.arraySuffix(m.IsArray, m.ArrayLen)
		}
		sb.WriteString(r.indentText() + r.typeSpec(f.Type) + " " + strings.Join(members, ", ") + ";\n")
	}
	r.indent--
	sb.WriteString(r.indentText() + "}")
	return sb.String()
}

func (r *rawWriter) arraySuffix(isArray bool, n glsl.Expr) string {
	if !isArray {
		return ""
	}
	if n == nil {
		return "[]"
	}
	return "[" + r.expr(n).text + "]"
}

func (r *rawWriter) varDeclList(d *glsl.VarDeclList) string {
	var quals []string
	if d.Qual.Invariant {
		quals = append(quals, "invariant")
	}
	if s := d.Qual.Storage.String(); s != "" {
		quals = append(quals, s)
	}
	quals = append(quals, r.typeSpec(d.Type))
	decl := strings.Join(quals, " ")
	if len(d.Vars) == 0 {
		return decl
	}
	vars := make([]string, len(d.Vars))
	for i, v := range d.Vars {
		vars[i] = v.Name + r.arraySuffix(v.IsArray, v.ArrayLen)
		if v.Init != nil {
			vars[i] += " = " + r.expr(v.Init).wrap(precAssign)
		}
	}
	return decl + " " + strings.Join(vars, ", ")
}

func (r *rawWriter) writeFunc(fn *glsl.FuncDecl) error {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		var quals []string
		if p.Qual.Const {
			quals = append(quals, "const")
		}
		if s := p.Qual.Storage.String(); s != "" {
			quals = append(quals, s)
		}
		quals = append(quals, r.typeSpec(p.Type))
		if p.Name != "" {
			quals = append(quals, p.Name+r.arraySuffix(p.IsArray, p.ArrayLen))
		}
		params[i] = strings.Join(quals, " ")
	}
	head := fmt.Sprintf("%s %s(%s)", r.typeSpec(fn.Return), fn.Name, strings.Join(params, ", "))
	if fn.Body == nil {
		r.line(head + ";")
		return nil
	}
	r.line(head + " {")
	if err := r.writeStmts(fn.Body.Stmts); err != nil {
		return err
	}
	r.line("}")
	r.line("")
	return nil
}

func (r *rawWriter) writeStmts(stmts []glsl.Stmt) error {
	r.indent++
	defer func() { r.indent-- }()
	for _, s := range stmts {
		if err := r.writeStmt(s); err != nil {
			return err
		}
	}
	return nil
}

// writeBody writes the body of a control statement, braced.
func (r *rawWriter) writeBody(s glsl.Stmt) error {
	if b, ok := s.(*glsl.BlockStmt); ok {
		return r.writeStmts(b.Stmts)
	}
	if s == nil {
		return nil
	}
	return r.writeStmts([]glsl.Stmt{s})
}

//nolint:gocyclo,cyclop
func (r *rawWriter) writeStmt(s glsl.Stmt) error {
	switch s := s.(type) {
	case *glsl.BlockStmt:
		r.line("{")
		if err := r.writeStmts(s.Stmts); err != nil {
			return err
		}
		r.line("}")
	case *glsl.DeclStmt:
		r.line(r.varDeclList(s.Decl) + ";")
	case *glsl.ExprStmt:
		r.line(r.expr(s.X).text + ";")
	case *glsl.IfStmt:
		r.line("if (" + r.expr(s.Cond).text + ") {")
		for {
			if err := r.writeBody(s.Then); err != nil {
				return err
			}
			next, ok := s.Else.(*glsl.IfStmt)
			if !ok {
				break
			}
			r.line("} else if (" + r.expr(next.Cond).text + ") {")
			s = next
		}
		if s.Else != nil {
			r.line("} else {")
			if err := r.writeBody(s.Else); err != nil {
				return err
			}
		}
		r.line("}")
	case *glsl.ForStmt:
		var init, cond, post string
		switch i := s.Init.(type) {
		case *glsl.DeclStmt:
			init = r.varDeclList(i.Decl)
		case *glsl.ExprStmt:
			init = r.expr(i.X).text
		}
		if s.Cond != nil {
			cond = " " + r.expr(s.Cond).text
		}
		if s.Post != nil {
			post = " " + r.expr(s.Post).text
		}
		r.line("for (" + init + ";" + cond + ";" + post + ") {")
		if err := r.writeBody(s.Body); err != nil {
			return err
		}
		r.line("}")
	case *glsl.WhileStmt:
		r.line("while (" + r.expr(s.Cond).text + ") {")
		if err := r.writeBody(s.Body); err != nil {
			return err
		}
		r.line("}")
	case *glsl.DoStmt:
		r.line("do {")
		if err := r.writeBody(s.Body); err != nil {
			return err
		}
		r.line("} while (" + r.expr(s.Cond).text + ");")
	case *glsl.ReturnStmt:
		if s.Value == nil {
			r.line("return;")
		} else {
			r.line("return " + r.expr(s.Value).text + ";")
		}
	case *glsl.BreakStmt:
		r.line("break;")
	case *glsl.ContinueStmt:
		r.line("continue;")
	case *glsl.DiscardStmt:
		r.line("discard;")
	case *glsl.EmptyStmt:
		r.line(";")
	default:
		return fmt.Errorf("unsupported statement %T", s)
	}
	return nil
}

// expr prints an expression, wrapping it in a conversion when the
// analyzer promoted it.
func (r *rawWriter) expr(e glsl.Expr) operand {
	if e == nil {
		return primary("")
	}
	o := r.exprKind(e)
	conv := e.Annotation().Convert
	if conv == nil || conv.IsError() {
		return o
	}
	if lit, ok := e.(*glsl.IntLit); ok && conv.Kind == types.Float {
		return number(formatFloat(float32(lit.Value)))
	}
	return operand{text: conv.String() + "(" + o.text + ")", prec: precPostfix}
}

//nolint:gocyclo,cyclop
func (r *rawWriter) exprKind(e glsl.Expr) operand {
	switch e := e.(type) {
	case *glsl.Ident:
		if e.Ref.Kind == glsl.RefBuiltin {
			return primary(r.profile.variable(e.Name, e.Pos()))
		}
		return primary(e.Name)
	case *glsl.IntLit:
		return number(strconv.FormatInt(int64(e.Value), 10))
	case *glsl.FloatLit:
		return number(formatFloat(e.Value))
	case *glsl.BoolLit:
		return primary(strconv.FormatBool(e.Value))
	case *glsl.UnaryExpr:
		x := r.expr(e.X)
		if e.Op.IsPostfix() {
			return operand{text: x.wrap(precPostfix) + e.Op.String(), prec: precPostfix}
		}
		return prefix(e.Op.String(), x)
	case *glsl.BinaryExpr:
		prec := rawBinaryPrec[e.Op]
		x, y := r.expr(e.X), r.expr(e.Y)
		if e.Op == glsl.OpComma {
			return operand{text: x.wrap(prec) + ", " + y.wrap(prec+1), prec: prec}
		}
		if prec == precEquality || prec == precRelational {
			return operand{text: x.wrap(prec+1) + " " + e.Op.String() + " " + y.wrap(prec+1), prec: prec}
		}
		return infix(x, e.Op.String(), y, prec)
	case *glsl.AssignExpr:
		lhs, rhs := r.expr(e.LHS), r.expr(e.RHS)
		return operand{text: lhs.wrap(precUnary) + " " + e.Op.String() + " " + rhs.wrap(precAssign), prec: precAssign}
	case *glsl.CondExpr:
		c, t, f := r.expr(e.Cond), r.expr(e.Then), r.expr(e.Else)
		return operand{text: c.wrap(precLogicalOr) + " ? " + t.wrap(precAssign) + " : " + f.wrap(precSelect), prec: precSelect}
	case *glsl.CallExpr:
		return r.call(e)
	case *glsl.IndexExpr:
		x, i := r.expr(e.X), r.expr(e.Index)
		return operand{text: x.wrap(precPostfix) + "[" + i.text + "]", prec: precPostfix}
	case *glsl.FieldExpr:
		x := r.expr(e.X)
		return operand{text: swizzleBase(x.wrap(precPostfix), x) + "." + e.Name, prec: precPostfix}
	}
	return primary("")
}

var rawBinaryPrec = [...]int{
	glsl.OpAdd:       precAdditive,
	glsl.OpSub:       precAdditive,
	glsl.OpMul:       precMultiplicative,
	glsl.OpDiv:       precMultiplicative,
	glsl.OpLess:      precRelational,
	glsl.OpGreater:   precRelational,
	glsl.OpLessEq:    precRelational,
	glsl.OpGreaterEq: precRelational,
	glsl.OpEq:        precEquality,
	glsl.OpNotEq:     precEquality,
	glsl.OpAnd:       precLogicalAnd,
	glsl.OpOr:        precLogicalOr,
	glsl.OpXor:       precLogicalXor,
	glsl.OpComma:     precSequence,
}

func (r *rawWriter) call(e *glsl.CallExpr) operand {
	name := e.Name
	if e.Type != nil {
		name = e.Type.Name
		if e.Type.Struct != nil {
			name = e.Type.Struct.Name
		}
	}
	if e.Target.Kind == glsl.CallBuiltin {
		if _, ok := ir.DerivativeByName(e.Target.Builtin); ok {
			r.profile.derivative(name, e.Pos())
		} else if strings.HasPrefix(name, "texture") || strings.HasPrefix(name, "shadow") {
			name = r.profile.textureFunction(name, e.Pos())
		}
	}
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = r.expr(a).wrap(precAssign)
	}
	return operand{text: name + "(" + strings.Join(args, ", ") + ")", prec: precPostfix}
}

func (r *rawWriter) indentText() string {
	return strings.Repeat("    ", r.indent)
}

func (r *rawWriter) line(text string) {
	if text == "" {
		r.out.WriteByte('\n')
		return
	}
	r.out.WriteString(r.indentText())
	r.out.WriteString(text)
	r.out.WriteByte('\n')
}
