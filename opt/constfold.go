// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package opt

import "github.com/gogpu/glslopt/ir"

// ConstFold evaluates expressions whose operands are literals, using
// float32 IEEE-754 arithmetic. Integer division by zero is left for the
// driver. It also forwards locals written once with a constant and
// resolves If statements with literal conditions.
type ConstFold struct{}

func (*ConstFold) Name() string { return PassConstFold }

func (*ConstFold) Run(m *ir.Module) (bool, error) {
	changed := false
	for i := range m.Functions {
		fd := &folder{m: m, f: &m.Functions[i], alias: aliases{}}
		fd.foldExpressions()
		if fd.propagateLocals() {
			fd.foldExpressions()
		}
		fd.alias.apply(fd.f)
		fd.f.Body = fd.foldBlock(fd.f.Body)
		changed = changed || fd.changed
	}
	return changed, nil
}

type folder struct {
	m       *ir.Module
	f       *ir.Function
	consts  []*constant
	alias   aliases
	changed bool
}

func (fd *folder) foldExpressions() {
	fd.consts = make([]*constant, len(fd.f.Expressions))
	for i := range fd.f.Expressions {
		h := ir.ExpressionHandle(ir.Index(i))
		kind := fd.f.Expressions[h].Kind
		if len(fd.alias) > 0 {
			kind = ir.MapOperands(kind, fd.alias.resolve)
			fd.f.Expressions[h].Kind = kind
		}
		ty := fd.f.ExpressionTypes[h]
		switch k := kind.(type) {
		case ir.Literal:
			if s, ok := shapeOf(fd.m, ty); ok {
				fd.consts[h] = &constant{ty: ty, shape: s, comps: []ir.LiteralValue{k.Value}}
			}
			continue
		case ir.ExprConstant:
			if s, ok := shapeOf(fd.m, ty); ok && len(k.Components) == s.components() {
				fd.consts[h] = &constant{ty: ty, shape: s, comps: k.Components}
			}
			continue
		}
		if to, ok := fd.simplify(kind); ok {
			fd.alias[h] = to
			fd.changed = true
			continue
		}
		s, ok := shapeOf(fd.m, ty)
		if !ok {
			continue
		}
		comps := fd.eval(kind, s)
		if comps == nil || len(comps) != s.components() {
			continue
		}
		c := &constant{ty: ty, shape: s, comps: comps}
		fd.consts[h] = c
		fd.f.Expressions[h].Kind = c.kind()
		fd.changed = true
	}
}

// simplify returns an existing expression equal to kind.
func (fd *folder) simplify(kind ir.ExpressionKind) (ir.ExpressionHandle, bool) {
	switch e := kind.(type) {
	case ir.ExprSelect:
		if c := fd.consts[e.Condition]; c != nil && c.shape.scalar() {
			if asBool(c.comps[0]) {
				return e.Accept, true
			}
			return e.Reject, true
		}
	case ir.ExprAs:
		if s, ok := shapeOf(fd.m, fd.f.ExpressionTypes[e.Expr]); ok && s.kind == e.Kind && !ir.IsPointer(fd.f, e.Expr) {
			return e.Expr, true
		}
	}
	return 0, false
}

// args returns the constants of hs, or nil if any is not constant.
func (fd *folder) args(hs ...ir.ExpressionHandle) []*constant {
	out := make([]*constant, len(hs))
	for i, h := range hs {
		if out[i] = fd.consts[h]; out[i] == nil {
			return nil
		}
	}
	return out
}

// eval computes the components of kind, or nil if it is not constant.
func (fd *folder) eval(kind ir.ExpressionKind, s shape) []ir.LiteralValue {
	switch e := kind.(type) {
	case ir.ExprCompose:
		if args := fd.args(e.Components...); args != nil {
			return compose(s, args)
		}
	case ir.ExprAs:
		if args := fd.args(e.Expr); args != nil {
			out := make([]ir.LiteralValue, len(args[0].comps))
			for i, v := range args[0].comps {
				out[i] = convert(v, e.Kind)
			}
			return out
		}
	case ir.ExprUnary:
		if args := fd.args(e.Expr); args != nil {
			out := make([]ir.LiteralValue, len(args[0].comps))
			for i, v := range args[0].comps {
				switch x := v.(type) {
				case ir.LiteralF32:
					out[i] = -x
				case ir.LiteralI32:
					out[i] = -x
				case ir.LiteralBool:
					out[i] = !x
				}
			}
			return out
		}
	case ir.ExprBinary:
		if args := fd.args(e.Left, e.Right); args != nil {
			return foldBinary(e.Op, args[0], args[1], s)
		}
	case ir.ExprSwizzle:
		if args := fd.args(e.Vector); args != nil {
			out := make([]ir.LiteralValue, e.Size)
			for i := range out {
				out[i] = args[0].at(int(e.Pattern[i]))
			}
			return out
		}
	case ir.ExprAccessIndex:
		if args := fd.args(e.Base); args != nil {
			return element(args[0], int(e.Index))
		}
	case ir.ExprAccess:
		if args := fd.args(e.Base, e.Index); args != nil && args[1].shape.scalar() {
			return element(args[0], int(asInt(args[1].comps[0])))
		}
	case ir.ExprSelect:
		if args := fd.args(e.Condition, e.Accept, e.Reject); args != nil {
			if asBool(args[0].comps[0]) {
				return args[1].comps
			}
			return args[2].comps
		}
	case ir.ExprDerivative:
		if args := fd.args(e.Expr); args != nil {
			out := make([]ir.LiteralValue, s.components())
			for i := range out {
				out[i] = zero(s.kind)
			}
			return out
		}
	case ir.ExprRelational:
		hs := []ir.ExpressionHandle{e.Argument}
		if e.Arg1 != nil {
			hs = append(hs, *e.Arg1)
		}
		if args := fd.args(hs...); args != nil {
			return relational(e.Fun, args)
		}
	case ir.ExprMath:
		hs := []ir.ExpressionHandle{e.Arg}
		if e.Arg1 != nil {
			hs = append(hs, *e.Arg1)
		}
		if e.Arg2 != nil {
			hs = append(hs, *e.Arg2)
		}
		if args := fd.args(hs...); args != nil {
			return mathFunction(e.Fun, args, s)
		}
	}
	return nil
}

// compose follows constructor rules: a lone scalar fills a vector or a
// matrix diagonal, a lone matrix is resized with identity fill, and
// otherwise components are consumed in order.
func compose(s shape, args []*constant) []ir.LiteralValue {
	n := s.components()
	out := make([]ir.LiteralValue, 0, n)
	if len(args) == 1 && args[0].shape.scalar() && !s.scalar() {
		v := convert(args[0].comps[0], s.kind)
		for c := 0; c < s.columns; c++ {
			for r := 0; r < s.rows; r++ {
				if s.matrix && c != r {
					out = append(out, zero(s.kind))
				} else {
					out = append(out, v)
				}
			}
		}
		return out
	}
	if len(args) == 1 && args[0].shape.matrix && s.matrix {
		src := args[0]
		for c := 0; c < s.columns; c++ {
			for r := 0; r < s.rows; r++ {
				switch {
				case c < src.shape.columns && r < src.shape.rows:
					out = append(out, src.comps[c*src.shape.rows+r])
				case c == r:
					out = append(out, one(s.kind))
				default:
					out = append(out, zero(s.kind))
				}
			}
		}
		return out
	}
	for _, a := range args {
		for _, v := range a.comps {
			if len(out) == n {
				return out
			}
			out = append(out, convert(v, s.kind))
		}
	}
	if len(out) < n {
		return nil
	}
	return out
}

// element selects a vector component or a matrix column.
func element(c *constant, i int) []ir.LiteralValue {
	switch {
	case c.shape.matrix:
		if i < 0 || i >= c.shape.columns {
			return nil
		}
		return c.comps[i*c.shape.rows : (i+1)*c.shape.rows]
	case c.shape.vector:
		if i < 0 || i >= c.shape.rows {
			return nil
		}
		return []ir.LiteralValue{c.comps[i]}
	}
	return nil
}

func foldBinary(op ir.BinaryOperator, a, b *constant, s shape) []ir.LiteralValue {
	switch op {
	case ir.BinaryEqual, ir.BinaryNotEqual:
		if len(a.comps) != len(b.comps) {
			return nil
		}
		eq := true
		for i := range a.comps {
			if !literalsEqual(a.comps[i], b.comps[i]) {
				eq = false
			}
		}
		return []ir.LiteralValue{ir.LiteralBool(eq == (op == ir.BinaryEqual))}
	case ir.BinaryLess, ir.BinaryLessEqual, ir.BinaryGreater, ir.BinaryGreaterEqual:
		return []ir.LiteralValue{ir.LiteralBool(compare(op, a.comps[0], b.comps[0]))}
	case ir.BinaryLogicalAnd:
		return []ir.LiteralValue{ir.LiteralBool(asBool(a.comps[0]) && asBool(b.comps[0]))}
	case ir.BinaryLogicalOr:
		return []ir.LiteralValue{ir.LiteralBool(asBool(a.comps[0]) || asBool(b.comps[0]))}
	case ir.BinaryLogicalXor:
		return []ir.LiteralValue{ir.LiteralBool(asBool(a.comps[0]) != asBool(b.comps[0]))}
	}
	if op == ir.BinaryMultiply && (a.shape.matrix || b.shape.matrix) &&
		!a.shape.scalar() && !b.shape.scalar() {
		return linear(a, b)
	}
	n := max(len(a.comps), len(b.comps))
	out := make([]ir.LiteralValue, n)
	for i := range out {
		v, ok := arith(op, a.at(i), b.at(i))
		if !ok {
			return nil
		}
		out[i] = v
	}
	return out
}

// linear multiplies matrices and vectors in the linear algebra sense.
// A vector on the left is a row vector.
func linear(a, b *constant) []ir.LiteralValue {
	// Treat a left vector as a 1-row matrix and a right vector as a
	// 1-column matrix.
	aRows, aCols := a.shape.rows, a.shape.columns
	if a.shape.vector {
		aRows, aCols = 1, a.shape.rows
	}
	bRows, bCols := b.shape.rows, b.shape.columns
	if aCols != bRows {
		return nil
	}
	x, y := floats(a), floats(b)
	out := make([]float64, aRows*bCols)
	for c := 0; c < bCols; c++ {
		for r := 0; r < aRows; r++ {
			var sum float64
			for k := 0; k < aCols; k++ {
				var av float64
				if a.shape.vector {
					av = x[k]
				} else {
					av = x[k*aRows+r]
				}
				sum += av * y[c*bRows+k]
			}
			out[c*aRows+r] = float64(float32(sum))
		}
	}
	return fromFloats(out)
}

func relational(fun ir.RelationalFunction, args []*constant) []ir.LiteralValue {
	a := args[0]
	switch fun {
	case ir.RelationalAll, ir.RelationalAny:
		every, some := true, false
		for _, v := range a.comps {
			b := asBool(v)
			every = every && b
			some = some || b
		}
		if fun == ir.RelationalAll {
			return []ir.LiteralValue{ir.LiteralBool(every)}
		}
		return []ir.LiteralValue{ir.LiteralBool(some)}
	case ir.RelationalNot:
		out := make([]ir.LiteralValue, len(a.comps))
		for i, v := range a.comps {
			out[i] = ir.LiteralBool(!asBool(v))
		}
		return out
	}
	if len(args) < 2 || len(args[1].comps) != len(a.comps) {
		return nil
	}
	b := args[1]
	out := make([]ir.LiteralValue, len(a.comps))
	for i := range a.comps {
		var r bool
		switch fun {
		case ir.RelationalLessThan:
			r = compare(ir.BinaryLess, a.comps[i], b.comps[i])
		case ir.RelationalLessThanEqual:
			r = compare(ir.BinaryLessEqual, a.comps[i], b.comps[i])
		case ir.RelationalGreaterThan:
			r = compare(ir.BinaryGreater, a.comps[i], b.comps[i])
		case ir.RelationalGreaterThanEqual:
			r = compare(ir.BinaryGreaterEqual, a.comps[i], b.comps[i])
		case ir.RelationalEqual:
			r = literalsEqual(a.comps[i], b.comps[i])
		case ir.RelationalNotEqual:
			r = !literalsEqual(a.comps[i], b.comps[i])
		}
		out[i] = ir.LiteralBool(r)
	}
	return out
}

func mathFunction(fun ir.MathFunction, args []*constant, s shape) []ir.LiteralValue {
	for _, a := range args {
		if a.shape.kind != ir.ScalarFloat {
			return nil
		}
	}
	n := s.components()
	if fn, ok := unaryMath[fun]; ok && len(args) == 1 {
		out := make([]ir.LiteralValue, n)
		for i := range out {
			out[i] = f32(fn(float64(asFloat(args[0].at(i)))))
		}
		return out
	}
	if fn, ok := binaryMath[fun]; ok && len(args) == 2 {
		out := make([]ir.LiteralValue, n)
		for i := range out {
			out[i] = f32(fn(float64(asFloat(args[0].at(i))), float64(asFloat(args[1].at(i)))))
		}
		return out
	}
	if fn, ok := ternaryMath[fun]; ok && len(args) == 3 {
		out := make([]ir.LiteralValue, n)
		for i := range out {
			out[i] = f32(fn(float64(asFloat(args[0].at(i))), float64(asFloat(args[1].at(i))), float64(asFloat(args[2].at(i)))))
		}
		return out
	}
	switch fun {
	case ir.MathMatrixCompMult:
		out := make([]ir.LiteralValue, n)
		for i := range out {
			out[i] = ir.LiteralF32(asFloat(args[0].comps[i]) * asFloat(args[1].comps[i]))
		}
		return out
	case ir.MathTranspose:
		src := args[0]
		out := make([]ir.LiteralValue, 0, n)
		for c := 0; c < s.columns; c++ {
			for r := 0; r < s.rows; r++ {
				out = append(out, src.comps[r*src.shape.rows+c])
			}
		}
		return out
	case ir.MathOuter:
		col, row := args[0], args[1]
		out := make([]ir.LiteralValue, 0, n)
		for c := range row.comps {
			for r := range col.comps {
				out = append(out, ir.LiteralF32(asFloat(col.comps[r])*asFloat(row.comps[c])))
			}
		}
		return out
	}
	return geometric(fun, args)
}

// propagateLocals replaces whole-variable loads of locals that are
// written exactly once, by a top-level store of a constant.
func (fd *folder) propagateLocals() bool {
	f := fd.f
	writes := make([]int, len(f.LocalVars))
	partial := make([]bool, len(f.LocalVars))
	ir.WalkBlock(f.Body, func(k ir.StatementKind) {
		switch s := k.(type) {
		case ir.StmtStore:
			root := ir.PointerRoot(f, s.Pointer)
			if root.Kind != ir.RootLocal {
				return
			}
			writes[root.Index]++
			if _, whole := f.Expressions[s.Pointer].Kind.(ir.ExprLocalVariable); !whole {
				partial[root.Index] = true
			}
		case ir.StmtCall:
			for _, a := range s.Arguments {
				if root := ir.PointerRoot(f, a); root.Kind == ir.RootLocal {
					writes[root.Index]++
					partial[root.Index] = true
				}
			}
		}
	})

	values := map[uint32]*constant{}
	for _, st := range f.Body {
		s, ok := st.Kind.(ir.StmtStore)
		if !ok {
			continue
		}
		lv, ok := f.Expressions[s.Pointer].Kind.(ir.ExprLocalVariable)
		if !ok || writes[lv.Variable] != 1 || partial[lv.Variable] {
			continue
		}
		if c := fd.consts[fd.alias.resolve(s.Value)]; c != nil {
			values[lv.Variable] = c
		}
	}
	if len(values) == 0 {
		return false
	}

	replaced := false
	for i := range f.Expressions {
		load, ok := f.Expressions[i].Kind.(ir.ExprLoad)
		if !ok {
			continue
		}
		lv, ok := f.Expressions[load.Pointer].Kind.(ir.ExprLocalVariable)
		if !ok {
			continue
		}
		if c := values[lv.Variable]; c != nil {
			f.Expressions[i].Kind = c.kind()
			replaced = true
		}
	}
	fd.changed = fd.changed || replaced
	return replaced
}

// foldBlock replaces If statements with literal conditions by the taken
// branch.
func (fd *folder) foldBlock(b ir.Block) ir.Block {
	out := make(ir.Block, 0, len(b))
	for _, st := range b {
		switch s := st.Kind.(type) {
		case ir.StmtIf:
			accept, reject := fd.foldBlock(s.Accept), fd.foldBlock(s.Reject)
			if lit, ok := fd.f.Expressions[s.Condition].Kind.(ir.Literal); ok {
				fd.changed = true
				if asBool(lit.Value) {
					out = append(out, accept...)
				} else {
					out = append(out, reject...)
				}
				continue
			}
			out = append(out, ir.Statement{Kind: ir.StmtIf{Condition: s.Condition, Accept: accept, Reject: reject}})
		case ir.StmtLoop:
			out = append(out, ir.Statement{Kind: ir.StmtLoop{
				Body:       fd.foldBlock(s.Body),
				Continuing: fd.foldBlock(s.Continuing),
				BreakIf:    s.BreakIf,
			}})
		case ir.StmtBlock:
			out = append(out, ir.Statement{Kind: ir.StmtBlock{Block: fd.foldBlock(s.Block)}})
		default:
			out = append(out, st)
		}
	}
	return out
}
