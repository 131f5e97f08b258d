// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package opt

import "github.com/gogpu/glslopt/ir"

// DCE removes code whose effects are never observed: unused pure
// expressions, stores to variables nobody reads, unreachable statements,
// empty branches, loops that break before doing anything, unused
// variables and functions main never reaches.
//
// Texture samples, calls, discard and stores to shader outputs always
// survive.
type DCE struct{}

func (*DCE) Name() string { return PassDCE }

func (*DCE) Run(m *ir.Module) (bool, error) {
	d := &eliminator{m: m}
	d.removeUnreachableFunctions()
	d.collectReads()
	for i := range m.Functions {
		d.f = &m.Functions[i]
		d.fn = i
		d.f.Body = d.block(d.f.Body)
	}
	if ir.Renumber(m) {
		d.changed = true
	}
	d.removeUnusedLocals()
	d.removeUnusedGlobals()
	return d.changed, nil
}

type eliminator struct {
	m       *ir.Module
	f       *ir.Function
	fn      int
	changed bool

	globalReads []bool
	localReads  [][]bool
	argReads    [][]bool
}

// collectReads records which variables any expression loads from or
// passes by reference.
func (d *eliminator) collectReads() {
	d.globalReads = make([]bool, len(d.m.GlobalVariables))
	d.localReads = make([][]bool, len(d.m.Functions))
	d.argReads = make([][]bool, len(d.m.Functions))
	for i := range d.m.Functions {
		f := &d.m.Functions[i]
		d.localReads[i] = make([]bool, len(f.LocalVars))
		d.argReads[i] = make([]bool, len(f.Arguments))
		mark := func(p ir.ExpressionHandle) {
			root := ir.PointerRoot(f, p)
			switch root.Kind {
			case ir.RootGlobal:
				d.globalReads[root.Index] = true
			case ir.RootLocal:
				d.localReads[i][root.Index] = true
			case ir.RootArgument:
				d.argReads[i][root.Index] = true
			}
		}
		for _, e := range f.Expressions {
			if load, ok := e.Kind.(ir.ExprLoad); ok {
				mark(load.Pointer)
			}
		}
		ir.WalkBlock(f.Body, func(k ir.StatementKind) {
			if c, ok := k.(ir.StmtCall); ok {
				for _, a := range c.Arguments {
					if ir.IsPointer(f, a) {
						mark(a)
					}
				}
			}
		})
	}
}

func (d *eliminator) deadStore(s ir.StmtStore) bool {
	root := ir.PointerRoot(d.f, s.Pointer)
	switch root.Kind {
	case ir.RootLocal:
		return !d.localReads[d.fn][root.Index]
	case ir.RootArgument:
		return d.f.Arguments[root.Index].Qualifier == ir.ArgIn && !d.argReads[d.fn][root.Index]
	case ir.RootGlobal:
		g := &d.m.GlobalVariables[root.Index]
		return g.Space == ir.SpacePrivate && !g.Builtin && !d.globalReads[root.Index]
	}
	return false
}

func onlyEmits(b ir.Block) bool {
	for _, st := range b {
		if _, ok := st.Kind.(ir.StmtEmit); !ok {
			return false
		}
	}
	return true
}

// breaksImmediately reports whether a loop body leaves on its first
// statement.
func breaksImmediately(b ir.Block) bool {
	for _, st := range b {
		switch st.Kind.(type) {
		case ir.StmtEmit:
			continue
		case ir.StmtBreak:
			return true
		}
		return false
	}
	return false
}

func (d *eliminator) block(b ir.Block) ir.Block {
	out := make(ir.Block, 0, len(b))
	for i, st := range b {
		switch s := st.Kind.(type) {
		case ir.StmtBlock:
			out = append(out, d.block(s.Block)...)
			d.changed = true
			continue
		case ir.StmtIf:
			accept, reject := d.block(s.Accept), d.block(s.Reject)
			if onlyEmits(accept) && onlyEmits(reject) {
				d.changed = true
				continue
			}
			out = append(out, ir.Statement{Kind: ir.StmtIf{Condition: s.Condition, Accept: accept, Reject: reject}})
		case ir.StmtLoop:
			body := d.block(s.Body)
			if breaksImmediately(body) {
				d.changed = true
				continue
			}
			out = append(out, ir.Statement{Kind: ir.StmtLoop{Body: body, Continuing: d.block(s.Continuing), BreakIf: s.BreakIf}})
		case ir.StmtStore:
			if d.deadStore(s) {
				d.changed = true
				continue
			}
			out = append(out, st)
		default:
			out = append(out, st)
		}
		if terminates(st.Kind) {
			if i+1 < len(b) {
				d.changed = true
			}
			break
		}
	}
	return out
}

func (d *eliminator) removeUnreachableFunctions() {
	m := d.m
	reachable := make([]bool, len(m.Functions))
	work := []ir.FunctionHandle{m.EntryPoint}
	reachable[m.EntryPoint] = true
	for len(work) > 0 {
		fh := work[len(work)-1]
		work = work[:len(work)-1]
		ir.WalkBlock(m.Functions[fh].Body, func(k ir.StatementKind) {
			if c, ok := k.(ir.StmtCall); ok && !reachable[c.Function] {
				reachable[c.Function] = true
				work = append(work, c.Function)
			}
		})
	}

	remap := make([]ir.FunctionHandle, len(m.Functions))
	kept := m.Functions[:0:0]
	for i, ok := range reachable {
		if ok {
			remap[i] = ir.FunctionHandle(ir.Index(len(kept)))
			kept = append(kept, m.Functions[i])
		}
	}
	if len(kept) == len(m.Functions) {
		return
	}
	d.changed = true
	m.Functions = kept
	m.EntryPoint = remap[m.EntryPoint]
	for i := range m.Functions {
		f := &m.Functions[i]
		for j, e := range f.Expressions {
			if cr, ok := e.Kind.(ir.ExprCallResult); ok {
				f.Expressions[j].Kind = ir.ExprCallResult{Function: remap[cr.Function]}
			}
		}
		f.Body = remapCalls(f.Body, remap)
	}
}

func remapCalls(b ir.Block, remap []ir.FunctionHandle) ir.Block {
	out := make(ir.Block, len(b))
	for i, st := range b {
		switch s := st.Kind.(type) {
		case ir.StmtCall:
			s.Function = remap[s.Function]
			st = ir.Statement{Kind: s}
		case ir.StmtIf:
			st = ir.Statement{Kind: ir.StmtIf{Condition: s.Condition, Accept: remapCalls(s.Accept, remap), Reject: remapCalls(s.Reject, remap)}}
		case ir.StmtLoop:
			st = ir.Statement{Kind: ir.StmtLoop{Body: remapCalls(s.Body, remap), Continuing: remapCalls(s.Continuing, remap), BreakIf: s.BreakIf}}
		case ir.StmtBlock:
			st = ir.Statement{Kind: ir.StmtBlock{Block: remapCalls(s.Block, remap)}}
		}
		out[i] = st
	}
	return out
}

// removeUnusedLocals drops locals no expression refers to. It runs after
// renumbering, so only live references count.
func (d *eliminator) removeUnusedLocals() {
	for i := range d.m.Functions {
		f := &d.m.Functions[i]
		used := make([]bool, len(f.LocalVars))
		for _, e := range f.Expressions {
			if lv, ok := e.Kind.(ir.ExprLocalVariable); ok {
				used[lv.Variable] = true
			}
		}
		remap := make([]uint32, len(f.LocalVars))
		kept := f.LocalVars[:0:0]
		for j, u := range used {
			if u {
				remap[j] = ir.Index(len(kept))
				kept = append(kept, f.LocalVars[j])
			}
		}
		if len(kept) == len(f.LocalVars) {
			continue
		}
		d.changed = true
		f.LocalVars = kept
		for j, e := range f.Expressions {
			if lv, ok := e.Kind.(ir.ExprLocalVariable); ok {
				f.Expressions[j].Kind = ir.ExprLocalVariable{Variable: remap[lv.Variable]}
			}
		}
	}
}

// removeUnusedGlobals drops unreferenced private and builtin globals.
// Uniforms, attributes and varyings are part of the shader interface and
// stay declared.
func (d *eliminator) removeUnusedGlobals() {
	m := d.m
	used := make([]bool, len(m.GlobalVariables))
	for i := range m.Functions {
		for _, e := range m.Functions[i].Expressions {
			if gv, ok := e.Kind.(ir.ExprGlobalVariable); ok {
				used[gv.Variable] = true
			}
		}
	}
	remap := make([]ir.GlobalVariableHandle, len(m.GlobalVariables))
	kept := m.GlobalVariables[:0:0]
	for i, g := range m.GlobalVariables {
		removable := (g.Space == ir.SpacePrivate || g.Builtin) && !g.Invariant
		if used[i] || !removable {
			remap[i] = ir.GlobalVariableHandle(ir.Index(len(kept)))
			kept = append(kept, g)
		}
	}
	if len(kept) == len(m.GlobalVariables) {
		return
	}
	d.changed = true
	m.GlobalVariables = kept
	for i := range m.Functions {
		f := &m.Functions[i]
		for j, e := range f.Expressions {
			if gv, ok := e.Kind.(ir.ExprGlobalVariable); ok {
				f.Expressions[j].Kind = ir.ExprGlobalVariable{Variable: remap[gv.Variable]}
			}
		}
	}
}
