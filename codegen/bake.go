// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"fmt"

	"github.com/gogpu/glslopt/ir"
)

// An emitted expression is evaluated at its Emit, but GLSL evaluates it
// where it is printed. The writer prints an expression at its use unless
// that would observe a later write, move a texture lookup into control
// flow, or evaluate it twice; then it is written to a temporary.

// countUses returns how many times each expression is printed when
// nothing is written to a temporary. Expressions that are always printed
// inline count their operands once per use.
func (w *Writer) countUses(f *ir.Function) []int {
	uses := make([]int, len(f.Expressions))
	ir.WalkBlock(f.Body, func(kind ir.StatementKind) {
		if call, ok := kind.(ir.StmtCall); ok {
			for _, a := range call.Arguments {
				uses[a]++
			}
			return
		}
		ir.VisitStatementOperands(kind, func(h ir.ExpressionHandle) { uses[h]++ })
	})
	// Users have larger handles than their operands.
	for i := len(f.Expressions) - 1; i >= 0; i-- {
		h := ir.ExpressionHandle(ir.Index(i))
		if uses[h] == 0 {
			continue
		}
		weight := 1
		if w.inlined(f, h) {
			weight = uses[h]
		}
		ir.VisitOperands(f.Expressions[h].Kind, func(op ir.ExpressionHandle) { uses[op] += weight })
	}
	return uses
}

// inlined reports whether h is printed at every use rather than baked:
// pointers, loads of whole variables and values that cannot be copied.
func (w *Writer) inlined(f *ir.Function, h ir.ExpressionHandle) bool {
	if ir.IsPointer(f, h) {
		return true
	}
	if load, ok := f.Expressions[h].Kind.(ir.ExprLoad); ok {
		switch f.Expressions[load.Pointer].Kind.(type) {
		case ir.ExprLocalVariable, ir.ExprGlobalVariable, ir.ExprFunctionArgument:
			return true
		}
	}
	return w.isOpaqueOrArray(f.ExpressionTypes[h])
}

// bakeAtEmit reports whether h is used more than once and must be
// evaluated into a temporary at its Emit.
func (w *Writer) bakeAtEmit(h ir.ExpressionHandle) bool {
	return w.uses[h] > 1 && !w.inlined(w.fn, h)
}

// emit handles an Emit statement: shared expressions are baked, the
// rest wait for their use.
func (w *Writer) emit(r ir.Range) error {
	for h := r.Start; h < r.End; h++ {
		if !ir.IsEmittable(w.fn.Expressions[h].Kind) || w.uses[h] <= 0 || ir.IsPointer(w.fn, h) {
			continue
		}
		if w.bakeAtEmit(h) {
			if err := w.bake(h); err != nil {
				return err
			}
			continue
		}
		w.pending = append(w.pending, h)
	}
	return nil
}

// emitsInline reports whether the statements are Emits that bake nothing.
func (w *Writer) emitsInline(stmts ir.Block) bool {
	for _, st := range stmts {
		e, ok := st.Kind.(ir.StmtEmit)
		if !ok {
			return false
		}
		for h := e.Range.Start; h < e.Range.End; h++ {
			if ir.IsEmittable(w.fn.Expressions[h].Kind) && !ir.IsPointer(w.fn, h) && w.bakeAtEmit(h) {
				return false
			}
		}
	}
	return true
}

// bake writes h to a fresh temporary.
func (w *Writer) bake(h ir.ExpressionHandle) error {
	if _, done := w.named[h]; done {
		return nil
	}
	remaining := w.uses[h]
	value, err := w.expr(h)
	if err != nil {
		return err
	}
	w.uses[h] = remaining
	name := w.temp("_e")
	decl := w.typeName(w.fn.ExpressionTypes[h])
	if p := w.precision(w.readPrecision(h)); p != "" {
		decl = p + " " + decl
	}
	w.writeLine("%s %s = %s;", decl, name, value.text)
	w.named[h] = name
	return nil
}

// temp returns a fresh temporary name numbered in writing order.
func (w *Writer) temp(prefix string) string {
	name := w.fnNamer.call(fmt.Sprintf("%s%d", prefix, w.temps))
	w.temps++
	return name
}

// writeSet describes the variables a statement may modify.
type writeSet struct {
	roots map[ir.Root]struct{}
	// globals is set when a call may write any global.
	globals bool
	// control is set when the statement holds nested blocks.
	control bool
}

func (ws *writeSet) empty() bool {
	return len(ws.roots) == 0 && !ws.globals && !ws.control
}

func (w *Writer) writesOf(kind ir.StatementKind) writeSet {
	ws := writeSet{roots: make(map[ir.Root]struct{})}
	ir.WalkBlock(ir.Block{{Kind: kind}}, func(k ir.StatementKind) {
		switch s := k.(type) {
		case ir.StmtStore:
			ws.roots[ir.PointerRoot(w.fn, s.Pointer)] = struct{}{}
		case ir.StmtCall:
			ws.globals = true
			callee := &w.module.Functions[s.Function]
			for i, a := range s.Arguments {
				if i < len(callee.Arguments) && callee.Arguments[i].Qualifier != ir.ArgIn {
					ws.roots[ir.PointerRoot(w.fn, a)] = struct{}{}
				}
			}
		case ir.StmtIf, ir.StmtLoop, ir.StmtBlock:
			ws.control = true
		}
	})
	return ws
}

// reads returns the variables whose loads h depends on, looking through
// expressions that are not yet baked.
func (w *Writer) reads(h ir.ExpressionHandle) []ir.Root {
	var roots []ir.Root
	seen := make(map[ir.ExpressionHandle]bool)
	var visit func(h ir.ExpressionHandle)
	visit = func(h ir.ExpressionHandle) {
		if seen[h] {
			return
		}
		seen[h] = true
		if _, done := w.named[h]; done {
			return
		}
		kind := w.fn.Expressions[h].Kind
		if load, ok := kind.(ir.ExprLoad); ok {
			if root := ir.PointerRoot(w.fn, load.Pointer); root.Kind != ir.RootNone {
				roots = append(roots, root)
			}
		}
		ir.VisitOperands(kind, visit)
	}
	visit(h)
	return roots
}

// readPrecision is the highest precision of the variables h reads.
func (w *Writer) readPrecision(h ir.ExpressionHandle) ir.Precision {
	best := ir.PrecisionNone
	for _, r := range w.reads(h) {
		var p ir.Precision
		switch r.Kind {
		case ir.RootGlobal:
			p = w.module.GlobalVariables[r.Index].Precision
		case ir.RootLocal:
			p = w.fn.LocalVars[r.Index].Precision
		case ir.RootArgument:
			p = w.fn.Arguments[r.Index].Precision
		}
		best = max(best, p)
	}
	return best
}

func (w *Writer) conflicts(h ir.ExpressionHandle, ws *writeSet) bool {
	if ws.control {
		switch w.fn.Expressions[h].Kind.(type) {
		case ir.ExprImageSample, ir.ExprDerivative:
			return true
		}
	}
	for _, r := range w.reads(h) {
		if _, ok := ws.roots[r]; ok {
			return true
		}
		if ws.globals && r.Kind == ir.RootGlobal {
			return true
		}
	}
	return false
}

// consumedBy returns the unbaked expressions a statement prints before
// any of its effects happen.
func (w *Writer) consumedBy(kind ir.StatementKind) map[ir.ExpressionHandle]bool {
	switch kind.(type) {
	case ir.StmtStore, ir.StmtCall, ir.StmtIf:
	default:
		return nil
	}
	set := make(map[ir.ExpressionHandle]bool)
	var visit func(h ir.ExpressionHandle)
	visit = func(h ir.ExpressionHandle) {
		if set[h] {
			return
		}
		if _, done := w.named[h]; done {
			return
		}
		set[h] = true
		ir.VisitOperands(w.fn.Expressions[h].Kind, visit)
	}
	ir.VisitStatementOperands(kind, visit)
	return set
}

// conflicting returns the pending expressions that must be baked before
// kind is written, latest first.
func (w *Writer) conflicting(kind ir.StatementKind) []ir.ExpressionHandle {
	if len(w.pending) == 0 {
		return nil
	}
	ws := w.writesOf(kind)
	if ws.empty() {
		return nil
	}
	consumed := w.consumedBy(kind)
	var out []ir.ExpressionHandle
	for i := len(w.pending) - 1; i >= 0; i-- {
		h := w.pending[i]
		if _, done := w.named[h]; done || w.uses[h] <= 0 {
			continue
		}
		if consumed[h] && w.uses[h] == 1 {
			continue
		}
		if w.conflicts(h, &ws) {
			out = append(out, h)
		}
	}
	return out
}

// bakeConflicts bakes what kind would otherwise invalidate.
func (w *Writer) bakeConflicts(kind ir.StatementKind) error {
	w.prunePending()
	for _, h := range w.conflicting(kind) {
		// An earlier bake may have consumed h.
		if w.uses[h] <= 0 {
			continue
		}
		if err := w.bake(h); err != nil {
			return err
		}
	}
	return nil
}

// prunePending drops expressions that are baked or fully printed.
func (w *Writer) prunePending() {
	kept := w.pending[:0]
	for _, h := range w.pending {
		if _, done := w.named[h]; !done && w.uses[h] > 0 {
			kept = append(kept, h)
		}
	}
	w.pending = kept
}
