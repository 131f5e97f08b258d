// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

const noHandle = ^ExpressionHandle(0)

// Renumber rebuilds the expression arena of every function in evaluation
// order and drops expressions nothing uses. Texture samples and
// derivatives that are emitted stay, even when unused.
//
// Passes may leave operands with larger handles than their users, or
// replace an expression with one that needs a later Emit. Renumber places
// every live expression after its operands and emits an expression that
// a statement uses but no Emit covers right before that statement.
//
// It reports whether any arena changed.
func Renumber(m *Module) bool {
	changed := false
	for i := range m.Functions {
		if renumberFunction(&m.Functions[i]) {
			changed = true
		}
	}
	return changed
}

type renumberer struct {
	f     *Function
	live  []bool
	remap []ExpressionHandle
	order []ExpressionHandle
}

func renumberFunction(f *Function) bool {
	n := len(f.Expressions)
	r := &renumberer{
		f:     f,
		live:  make([]bool, n),
		remap: make([]ExpressionHandle, n),
		order: make([]ExpressionHandle, 0, n),
	}
	for i := range r.remap {
		r.remap[i] = noHandle
	}
	r.markBlock(f.Body)
	body := r.block(f.Body)

	changed := len(r.order) != n
	exprs := make([]Expression, len(r.order))
	types := make([]TypeHandle, len(r.order))
	for i, old := range r.order {
		if old != ExpressionHandle(Index(i)) {
			changed = true
		}
		exprs[i] = Expression{Kind: MapOperands(f.Expressions[old].Kind, r.mapHandle), Span: f.Expressions[old].Span}
		types[i] = f.ExpressionTypes[old]
	}
	f.Expressions = exprs
	f.ExpressionTypes = types
	f.Body = MapBlock(body, r.mapHandle)
	return changed
}

func (r *renumberer) mapHandle(h ExpressionHandle) ExpressionHandle {
	return r.remap[h]
}

func (r *renumberer) mark(h ExpressionHandle) {
	if r.live[h] {
		return
	}
	r.live[h] = true
	VisitOperands(r.f.Expressions[h].Kind, r.mark)
}

func (r *renumberer) markBlock(b Block) {
	WalkBlock(b, func(kind StatementKind) {
		emit, ok := kind.(StmtEmit)
		if !ok {
			VisitStatementOperands(kind, r.mark)
			return
		}
		for h := emit.Range.Start; h < emit.Range.End; h++ {
			switch r.f.Expressions[h].Kind.(type) {
			case ExprImageSample, ExprDerivative:
				r.mark(h)
			}
		}
	})
}

func (r *renumberer) place(h ExpressionHandle) {
	if r.remap[h] != noHandle {
		return
	}
	VisitOperands(r.f.Expressions[h].Kind, r.place)
	r.remap[h] = ExpressionHandle(Index(len(r.order)))
	r.order = append(r.order, h)
}

// emit appends an Emit covering everything placed since start, if any of
// it needs one.
func (r *renumberer) emit(out Block, start int) Block {
	for _, old := range r.order[start:] {
		if IsEmittable(r.f.Expressions[old].Kind) {
			return append(out, Statement{Kind: StmtEmit{Range: Range{
				Start: ExpressionHandle(Index(start)),
				End:   ExpressionHandle(Index(len(r.order))),
			}}})
		}
	}
	return out
}

// block rebuilds b with fresh Emit statements. Other statements keep
// their old operand handles; the caller maps them.
func (r *renumberer) block(b Block) Block {
	out := make(Block, 0, len(b))
	for _, st := range b {
		switch s := st.Kind.(type) {
		case StmtEmit:
			start := len(r.order)
			for h := s.Range.Start; h < s.Range.End; h++ {
				if r.live[h] {
					r.place(h)
				}
			}
			out = r.emit(out, start)
		case StmtBlock:
			out = append(out, Statement{Kind: StmtBlock{Block: r.block(s.Block)}})
		case StmtIf:
			start := len(r.order)
			r.place(s.Condition)
			out = r.emit(out, start)
			accept := r.block(s.Accept)
			reject := r.block(s.Reject)
			out = append(out, Statement{Kind: StmtIf{Condition: s.Condition, Accept: accept, Reject: reject}})
		case StmtLoop:
			body := r.block(s.Body)
			continuing := r.block(s.Continuing)
			if s.BreakIf != nil {
				start := len(r.order)
				r.place(*s.BreakIf)
				continuing = r.emit(continuing, start)
			}
			out = append(out, Statement{Kind: StmtLoop{Body: body, Continuing: continuing, BreakIf: s.BreakIf}})
		default:
			start := len(r.order)
			VisitStatementOperands(st.Kind, r.place)
			out = r.emit(out, start)
			out = append(out, st)
		}
	}
	return out
}
