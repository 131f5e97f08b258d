// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package opt

import "github.com/gogpu/glslopt/ir"

// forwardStores replaces loads of a local written by exactly one whole
// store with the stored value. A load is forwarded only when the store
// precedes it in the same block or an enclosing one. Locals holding
// arrays or samplers, locals accessed through a partial pointer, and
// locals passed to out parameters are left alone.
func forwardStores(m *ir.Module, f *ir.Function) aliases {
	fw := &forwarder{
		f:        f,
		excluded: make([]bool, len(f.LocalVars)),
		writes:   make([]int, len(f.LocalVars)),
		active:   make([]bool, len(f.LocalVars)),
		value:    make([]ir.ExpressionHandle, len(f.LocalVars)),
		loads:    make(map[ir.ExpressionHandle]uint32),
		seen:     make(map[ir.ExpressionHandle]bool),
	}
	for i, l := range f.LocalVars {
		fw.excluded[i] = holdsArrayOrSampler(m, l.Type)
	}
	for i, e := range f.Expressions {
		switch k := e.Kind.(type) {
		case ir.ExprAccess:
			fw.exclude(k.Base)
		case ir.ExprAccessIndex:
			fw.exclude(k.Base)
		case ir.ExprSwizzle:
			fw.exclude(k.Vector)
		case ir.ExprLoad:
			if v, ok := fw.local(k.Pointer); ok {
				fw.loads[ir.ExpressionHandle(ir.Index(i))] = v
			}
		}
	}
	ir.WalkBlock(f.Body, func(k ir.StatementKind) {
		switch s := k.(type) {
		case ir.StmtStore:
			if r := ir.PointerRoot(f, s.Pointer); r.Kind == ir.RootLocal {
				fw.writes[r.Index]++
			}
		case ir.StmtCall:
			for _, a := range s.Arguments {
				if !ir.IsPointer(f, a) {
					continue
				}
				if r := ir.PointerRoot(f, a); r.Kind == ir.RootLocal {
					fw.excluded[r.Index] = true
				}
			}
		}
	})
	for v, n := range fw.writes {
		if n != 1 {
			fw.excluded[v] = true
		}
	}
	fw.block(f.Body)

	out := aliases{}
	for h, v := range fw.loads {
		if fw.seen[h] && !fw.excluded[v] {
			out[h] = fw.value[v]
		}
	}
	return out
}

type forwarder struct {
	f        *ir.Function
	excluded []bool
	writes   []int
	// active is set while the single store to a local is in scope.
	active []bool
	value  []ir.ExpressionHandle
	// loads maps whole loads to the local they read.
	loads map[ir.ExpressionHandle]uint32
	seen  map[ir.ExpressionHandle]bool
}

func (fw *forwarder) local(h ir.ExpressionHandle) (uint32, bool) {
	if v, ok := fw.f.Expressions[h].Kind.(ir.ExprLocalVariable); ok {
		return v.Variable, true
	}
	return 0, false
}

func (fw *forwarder) exclude(h ir.ExpressionHandle) {
	if v, ok := fw.local(h); ok {
		fw.excluded[v] = true
	}
}

func (fw *forwarder) block(b ir.Block) {
	var opened []uint32
	for _, st := range b {
		switch s := st.Kind.(type) {
		case ir.StmtEmit:
			for h := s.Range.Start; h < s.Range.End; h++ {
				v, ok := fw.loads[h]
				if !ok {
					continue
				}
				fw.seen[h] = true
				if !fw.active[v] {
					fw.excluded[v] = true
				}
			}
		case ir.StmtBlock:
			fw.block(s.Block)
		case ir.StmtIf:
			fw.block(s.Accept)
			fw.block(s.Reject)
		case ir.StmtLoop:
			fw.block(s.Body)
			fw.block(s.Continuing)
		case ir.StmtStore:
			if v, ok := fw.local(s.Pointer); ok && !fw.excluded[v] {
				fw.active[v] = true
				fw.value[v] = s.Value
				opened = append(opened, v)
			}
		}
	}
	for _, v := range opened {
		fw.active[v] = false
	}
}

// holdsArrayOrSampler reports whether values of the type are arrays or
// samplers, or structs holding either.
func holdsArrayOrSampler(m *ir.Module, ty ir.TypeHandle) bool {
	if int(ty) >= len(m.Types) {
		return true
	}
	switch t := m.Types[ty].Inner.(type) {
	case ir.SamplerType, ir.ArrayType:
		return true
	case ir.StructType:
		for _, mem := range t.Members {
			if holdsArrayOrSampler(m, mem.Type) {
				return true
			}
		}
	}
	return false
}
