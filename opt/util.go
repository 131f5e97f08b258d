// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package opt

import "github.com/gogpu/glslopt/ir"

// shape describes a numeric or boolean value type. Matrix components are
// stored column-major.
type shape struct {
	kind    ir.ScalarKind
	columns int
	rows    int
	// vector is set for vectors, including those of a single column.
	vector bool
	matrix bool
}

func (s shape) components() int { return s.columns * s.rows }

func (s shape) scalar() bool { return !s.vector && !s.matrix }

// shapeOf returns the shape of a scalar, vector or matrix type.
func shapeOf(m *ir.Module, ty ir.TypeHandle) (shape, bool) {
	if int(ty) >= len(m.Types) {
		return shape{}, false
	}
	switch t := m.Types[ty].Inner.(type) {
	case ir.ScalarType:
		return shape{kind: t.Kind, columns: 1, rows: 1}, true
	case ir.VectorType:
		return shape{kind: t.Scalar.Kind, columns: 1, rows: int(t.Size), vector: true}, true
	case ir.MatrixType:
		return shape{kind: ir.ScalarFloat, columns: int(t.Columns), rows: int(t.Rows), matrix: true}, true
	}
	return shape{}, false
}

// aliases records expressions replaced by other expressions.
type aliases map[ir.ExpressionHandle]ir.ExpressionHandle

func (a aliases) resolve(h ir.ExpressionHandle) ir.ExpressionHandle {
	for {
		to, ok := a[h]
		if !ok {
			return h
		}
		h = to
	}
}

// apply rewrites every use of an aliased expression in f.
func (a aliases) apply(f *ir.Function) {
	if len(a) == 0 {
		return
	}
	for i := range f.Expressions {
		f.Expressions[i].Kind = ir.MapOperands(f.Expressions[i].Kind, a.resolve)
	}
	f.Body = ir.MapBlock(f.Body, a.resolve)
}

// terminates reports whether control never falls through k.
func terminates(k ir.StatementKind) bool {
	switch k.(type) {
	case ir.StmtReturn, ir.StmtBreak, ir.StmtContinue, ir.StmtKill:
		return true
	}
	return false
}

// callSites counts the calls to each function across the module.
func callSites(m *ir.Module) []int {
	counts := make([]int, len(m.Functions))
	for i := range m.Functions {
		ir.WalkBlock(m.Functions[i].Body, func(k ir.StatementKind) {
			if c, ok := k.(ir.StmtCall); ok && int(c.Function) < len(counts) {
				counts[c.Function]++
			}
		})
	}
	return counts
}
