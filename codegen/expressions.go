// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/glslopt/diag"
	"github.com/gogpu/glslopt/ir"
)

// expr prints an expression and consumes one of its uses. Baked
// expressions print as their temporary.
func (w *Writer) expr(h ir.ExpressionHandle) (operand, error) {
	if w.fn == nil {
		return operand{}, fmt.Errorf("no current function context")
	}
	if int(h) >= len(w.fn.Expressions) {
		return operand{}, fmt.Errorf("invalid expression handle: %d", h)
	}
	w.uses[h]--
	if name, ok := w.named[h]; ok {
		return primary(name), nil
	}
	return w.writeExpressionKind(h, w.fn.Expressions[h].Kind)
}

// pos returns the source position h was lowered from.
func (w *Writer) pos(h ir.ExpressionHandle) diag.Position {
	s := w.fn.Expressions[h].Span
	return diag.Position{Line: s.Line, Column: s.Column}
}

// writeExpressionKind prints the expression based on its kind.
//
//nolint:gocyclo,cyclop
func (w *Writer) writeExpressionKind(h ir.ExpressionHandle, kind ir.ExpressionKind) (operand, error) {
	switch e := kind.(type) {
	case ir.Literal:
		return writeLiteral(e.Value), nil
	case ir.ExprConstant:
		return w.writeConstant(e), nil
	case ir.ExprCompose:
		return w.writeCompose(e)
	case ir.ExprAccess:
		return w.writeAccess(e)
	case ir.ExprAccessIndex:
		return w.writeAccessIndex(e)
	case ir.ExprSwizzle:
		return w.writeSwizzle(e)
	case ir.ExprFunctionArgument:
		if int(e.Index) >= len(w.argNames) {
			return operand{}, fmt.Errorf("invalid argument index: %d", e.Index)
		}
		return primary(w.argNames[e.Index]), nil
	case ir.ExprGlobalVariable:
		if int(e.Variable) >= len(w.globalNames) {
			return operand{}, fmt.Errorf("invalid global variable: %d", e.Variable)
		}
		name := w.globalNames[e.Variable]
		if w.module.GlobalVariables[e.Variable].Builtin {
			name = w.profile.variable(name, w.pos(h))
		}
		return primary(name), nil
	case ir.ExprLocalVariable:
		if int(e.Variable) >= len(w.localNames) {
			return operand{}, fmt.Errorf("invalid local variable: %d", e.Variable)
		}
		return primary(w.localNames[e.Variable]), nil
	case ir.ExprLoad:
		return w.expr(e.Pointer)
	case ir.ExprImageSample:
		return w.writeImageSample(h, e)
	case ir.ExprUnary:
		return w.writeUnary(e)
	case ir.ExprBinary:
		return w.writeBinary(e)
	case ir.ExprSelect:
		return w.writeSelect(e)
	case ir.ExprDerivative:
		name := e.Axis.String()
		w.profile.derivative(name, w.pos(h))
		return w.call(name, e.Expr)
	case ir.ExprRelational:
		args := []ir.ExpressionHandle{e.Argument}
		if e.Arg1 != nil {
			args = append(args, *e.Arg1)
		}
		return w.call(e.Fun.String(), args...)
	case ir.ExprMath:
		args := []ir.ExpressionHandle{e.Arg}
		for _, a := range []*ir.ExpressionHandle{e.Arg1, e.Arg2} {
			if a != nil {
				args = append(args, *a)
			}
		}
		return w.call(e.Fun.String(), args...)
	case ir.ExprFTransform:
		return primary("ftransform()"), nil
	case ir.ExprAs:
		return w.call(w.typeName(w.fn.ExpressionTypes[h]), e.Expr)
	case ir.ExprCallResult:
		return operand{}, fmt.Errorf("call result %d used before its call", h)
	default:
		return operand{}, fmt.Errorf("unsupported expression kind: %T", kind)
	}
}

func writeLiteral(v ir.LiteralValue) operand {
	switch l := v.(type) {
	case ir.LiteralBool:
		if l {
			return primary("true")
		}
		return primary("false")
	case ir.LiteralI32:
		return number(strconv.FormatInt(int64(l), 10))
	case ir.LiteralF32:
		s := formatFloat(float32(l))
		if strings.HasPrefix(s, "(") {
			return primary(s)
		}
		return number(s)
	}
	return primary("0")
}

// writeConstant prints a folded vector or matrix. Repeated components
// use the single-argument constructor forms.
func (w *Writer) writeConstant(c ir.ExprConstant) operand {
	name := w.typeName(c.Type)
	if len(c.Components) == 0 {
		return primary(name + "()")
	}
	first := writeLiteral(c.Components[0]).text
	parts := make([]string, len(c.Components))
	splat := true
	for i, v := range c.Components {
		parts[i] = writeLiteral(v).text
		if parts[i] != first {
			splat = false
		}
	}
	if splat {
		return primary(name + "(" + first + ")")
	}
	if d, ok := w.diagonal(c); ok {
		return primary(name + "(" + d + ")")
	}
	return primary(name + "(" + strings.Join(parts, ", ") + ")")
}

// diagonal returns the common diagonal of a square matrix constant whose
// other components are zero.
func (w *Writer) diagonal(c ir.ExprConstant) (string, bool) {
	mat, ok := w.module.Types[c.Type].Inner.(ir.MatrixType)
	if !ok || mat.Columns != mat.Rows {
		return "", false
	}
	n := int(mat.Rows)
	var d string
	for i, v := range c.Components {
		text := writeLiteral(v).text
		if i/n == i%n {
			if d == "" {
				d = text
			} else if text != d {
				return "", false
			}
			continue
		}
		if f, ok := v.(ir.LiteralF32); !ok || f != 0 {
			return "", false
		}
	}
	return d, d != ""
}

func (w *Writer) writeCompose(c ir.ExprCompose) (operand, error) {
	name := w.typeName(c.Type) + w.arraySuffix(c.Type)
	return w.call(name, c.Components...)
}

// call prints a function-call form with the given arguments.
func (w *Writer) call(name string, args ...ir.ExpressionHandle) (operand, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		o, err := w.expr(a)
		if err != nil {
			return operand{}, err
		}
		parts[i] = o.wrap(precAssign)
	}
	return operand{text: name + "(" + strings.Join(parts, ", ") + ")", prec: precPostfix}, nil
}

func (w *Writer) writeAccess(a ir.ExprAccess) (operand, error) {
	base, err := w.expr(a.Base)
	if err != nil {
		return operand{}, err
	}
	index, err := w.expr(a.Index)
	if err != nil {
		return operand{}, err
	}
	return operand{text: base.wrap(precPostfix) + "[" + index.text + "]", prec: precPostfix}, nil
}

var componentNames = [4]string{"x", "y", "z", "w"}

func (w *Writer) writeAccessIndex(a ir.ExprAccessIndex) (operand, error) {
	base, err := w.expr(a.Base)
	if err != nil {
		return operand{}, err
	}
	text := base.wrap(precPostfix)
	ty := w.fn.ExpressionTypes[a.Base]
	switch t := w.module.Types[ty].Inner.(type) {
	case ir.VectorType:
		if a.Index >= 4 {
			return operand{}, fmt.Errorf("vector component %d out of range", a.Index)
		}
		text = swizzleBase(text, base) + "." + componentNames[a.Index]
	case ir.StructType:
		if int(a.Index) >= len(t.Members) {
			return operand{}, fmt.Errorf("struct member %d out of range", a.Index)
		}
		text += "." + w.memberNames[ty][a.Index]
	default:
		text += fmt.Sprintf("[%d]", a.Index)
	}
	return operand{text: text, prec: precPostfix}, nil
}

func (w *Writer) writeSwizzle(s ir.ExprSwizzle) (operand, error) {
	base, err := w.expr(s.Vector)
	if err != nil {
		return operand{}, err
	}
	var sb strings.Builder
	sb.WriteString(swizzleBase(base.wrap(precPostfix), base))
	sb.WriteByte('.')
	for i := range int(s.Size) {
		sb.WriteString(componentNames[s.Pattern[i]&3])
	}
	return operand{text: sb.String(), prec: precPostfix}, nil
}

// swizzleBase parenthesizes numeric literals, which would otherwise
// absorb the dot.
func swizzleBase(text string, base operand) string {
	if base.prec == precPrimary && text != "" && text[0] >= '0' && text[0] <= '9' {
		return "(" + text + ")"
	}
	return text
}

// writeImageSample prints a texture lookup. The function name follows
// from the sampler type and the lookup's projection and level.
func (w *Writer) writeImageSample(h ir.ExpressionHandle, s ir.ExprImageSample) (operand, error) {
	st, ok := w.module.Types[w.fn.ExpressionTypes[s.Sampler]].Inner.(ir.SamplerType)
	if !ok {
		return operand{}, fmt.Errorf("texture lookup on a non-sampler value")
	}
	name := textureName(st, s.Project, s.Level)
	name = w.profile.textureFunction(name, w.pos(h))
	args := []ir.ExpressionHandle{s.Sampler, s.Coordinate}
	switch l := s.Level.(type) {
	case ir.SampleLevelExact:
		args = append(args, l.Level)
	case ir.SampleLevelBias:
		args = append(args, l.Bias)
	}
	return w.call(name, args...)
}

func textureName(st ir.SamplerType, project bool, level ir.SampleLevel) string {
	name := "texture"
	if st.Shadow {
		name = "shadow"
	}
	switch st.Dim {
	case ir.Dim1D:
		name += "1D"
	case ir.Dim3D:
		name += "3D"
	case ir.DimCube:
		name += "Cube"
	default:
		name += "2D"
	}
	if project {
		name += "Proj"
	}
	if _, ok := level.(ir.SampleLevelExact); ok {
		name += "Lod"
	}
	return name
}

func (w *Writer) writeUnary(u ir.ExprUnary) (operand, error) {
	o, err := w.expr(u.Expr)
	if err != nil {
		return operand{}, err
	}
	switch u.Op {
	case ir.UnaryNegate:
		return prefix("-", o), nil
	case ir.UnaryLogicalNot:
		return prefix("!", o), nil
	}
	return operand{}, fmt.Errorf("unsupported unary operator: %d", u.Op)
}

var binaryOps = [...]struct {
	text string
	prec int
}{
	ir.BinaryAdd:          {"+", precAdditive},
	ir.BinarySubtract:     {"-", precAdditive},
	ir.BinaryMultiply:     {"*", precMultiplicative},
	ir.BinaryDivide:       {"/", precMultiplicative},
	ir.BinaryEqual:        {"==", precEquality},
	ir.BinaryNotEqual:     {"!=", precEquality},
	ir.BinaryLess:         {"<", precRelational},
	ir.BinaryLessEqual:    {"<=", precRelational},
	ir.BinaryGreater:      {">", precRelational},
	ir.BinaryGreaterEqual: {">=", precRelational},
	ir.BinaryLogicalAnd:   {"&&", precLogicalAnd},
	ir.BinaryLogicalOr:    {"||", precLogicalOr},
	ir.BinaryLogicalXor:   {"^^", precLogicalXor},
}

func (w *Writer) writeBinary(b ir.ExprBinary) (operand, error) {
	if int(b.Op) >= len(binaryOps) {
		return operand{}, fmt.Errorf("unsupported binary operator: %d", b.Op)
	}
	op := binaryOps[b.Op]
	left, err := w.expr(b.Left)
	if err != nil {
		return operand{}, err
	}
	right, err := w.expr(b.Right)
	if err != nil {
		return operand{}, err
	}
	// Comparisons do not chain.
	if op.prec == precEquality || op.prec == precRelational {
		return operand{text: left.wrap(op.prec+1) + " " + op.text + " " + right.wrap(op.prec+1), prec: op.prec}, nil
	}
	return infix(left, op.text, right, op.prec), nil
}

func (w *Writer) writeSelect(s ir.ExprSelect) (operand, error) {
	condition, err := w.expr(s.Condition)
	if err != nil {
		return operand{}, err
	}
	accept, err := w.expr(s.Accept)
	if err != nil {
		return operand{}, err
	}
	reject, err := w.expr(s.Reject)
	if err != nil {
		return operand{}, err
	}
	text := condition.wrap(precLogicalOr) + " ? " + accept.wrap(precAssign) + " : " + reject.wrap(precSelect)
	return operand{text: text, prec: precSelect}, nil
}
