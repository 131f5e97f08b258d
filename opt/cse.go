// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package opt

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/gogpu/glslopt/ir"
)

// CSE replaces an expression by an equal one evaluated earlier on every
// path to it. Loads are only merged while nothing can have written the
// variable in between: stores to the same variable, calls, and loops
// that write it all start a new version. Loads of a local written by a
// single whole store in scope are replaced by the stored value first.
type CSE struct{}

func (*CSE) Name() string { return PassCSE }

func (*CSE) Run(m *ir.Module) (bool, error) {
	changed := false
	for i := range m.Functions {
		fwd := forwardStores(m, &m.Functions[i])
		fwd.apply(&m.Functions[i])
		n := newNumberer(&m.Functions[i])
		n.numberInvariants()
		n.block(m.Functions[i].Body)
		n.alias.apply(n.f)
		changed = changed || len(fwd) > 0 || len(n.alias) > 0
	}
	return changed, nil
}

type valueNumberer struct {
	f     *ir.Function
	alias aliases
	enc   [][]byte

	table map[uint64][]ir.ExpressionHandle
	// undo lists the keys added in the current scopes, innermost last.
	undo []uint64

	versions map[ir.Root]uint32
	epoch    uint32
	unique   uint32
}

func newNumberer(f *ir.Function) *valueNumberer {
	return &valueNumberer{
		f:        f,
		alias:    aliases{},
		enc:      make([][]byte, len(f.Expressions)),
		table:    make(map[uint64][]ir.ExpressionHandle),
		versions: make(map[ir.Root]uint32),
	}
}

// numberInvariants merges literals and variable references, which are
// available everywhere.
func (n *valueNumberer) numberInvariants() {
	for i, e := range n.f.Expressions {
		switch e.Kind.(type) {
		case ir.Literal, ir.ExprConstant, ir.ExprGlobalVariable, ir.ExprLocalVariable, ir.ExprFunctionArgument:
			n.number(ir.ExpressionHandle(ir.Index(i)))
		}
	}
	n.undo = n.undo[:0]
}

// number merges h with an equal expression in scope, or records it.
func (n *valueNumberer) number(h ir.ExpressionHandle) {
	kind := ir.MapOperands(n.f.Expressions[h].Kind, n.alias.resolve)
	n.f.Expressions[h].Kind = kind
	enc := n.encode(kind, n.f.ExpressionTypes[h])
	n.enc[h] = enc
	key := xxhash.Sum64(enc)
	for _, cand := range n.table[key] {
		if bytes.Equal(n.enc[cand], enc) {
			n.alias[h] = cand
			return
		}
	}
	n.table[key] = append(n.table[key], h)
	n.undo = append(n.undo, key)
}

func (n *valueNumberer) scope(fn func()) {
	mark := len(n.undo)
	fn()
	for _, key := range n.undo[mark:] {
		entries := n.table[key]
		n.table[key] = entries[:len(entries)-1]
	}
	n.undo = n.undo[:mark]
}

func (n *valueNumberer) block(b ir.Block) {
	for _, st := range b {
		switch s := st.Kind.(type) {
		case ir.StmtEmit:
			for h := s.Range.Start; h < s.Range.End; h++ {
				if ir.IsEmittable(n.f.Expressions[h].Kind) {
					n.number(h)
				}
			}
		case ir.StmtBlock:
			n.scope(func() { n.block(s.Block) })
		case ir.StmtIf:
			n.scope(func() { n.block(s.Accept) })
			n.scope(func() { n.block(s.Reject) })
		case ir.StmtLoop:
			n.invalidateWrites(s.Body)
			n.invalidateWrites(s.Continuing)
			n.scope(func() { n.block(s.Body) })
			n.scope(func() { n.block(s.Continuing) })
		case ir.StmtStore:
			n.versions[ir.PointerRoot(n.f, s.Pointer)]++
		case ir.StmtCall:
			n.epoch++
		}
	}
}

// invalidateWrites starts new versions of everything b may write.
func (n *valueNumberer) invalidateWrites(b ir.Block) {
	ir.WalkBlock(b, func(k ir.StatementKind) {
		switch s := k.(type) {
		case ir.StmtStore:
			n.versions[ir.PointerRoot(n.f, s.Pointer)]++
		case ir.StmtCall:
			n.epoch++
		}
	})
}

func (n *valueNumberer) encode(kind ir.ExpressionKind, ty ir.TypeHandle) []byte {
	buf := make([]byte, 0, 32)
	u32 := func(v uint32) { buf = binary.LittleEndian.AppendUint32(buf, v) }
	h := func(v ir.ExpressionHandle) { u32(uint32(v)) }
	opt := func(v *ir.ExpressionHandle) {
		if v == nil {
			u32(math.MaxUint32)
			return
		}
		h(*v)
	}
	lit := func(v ir.LiteralValue) {
		switch x := v.(type) {
		case ir.LiteralF32:
			buf = append(buf, 'f')
			u32(math.Float32bits(float32(x)))
		case ir.LiteralI32:
			buf = append(buf, 'i')
			u32(uint32(x))
		case ir.LiteralBool:
			buf = append(buf, 'b')
			if x {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		}
	}
	u32(uint32(ty))
	switch e := kind.(type) {
	case ir.Literal:
		buf = append(buf, 1)
		lit(e.Value)
	case ir.ExprConstant:
		buf = append(buf, 2)
		for _, c := range e.Components {
			lit(c)
		}
	case ir.ExprCompose:
		buf = append(buf, 3)
		for _, c := range e.Components {
			h(c)
		}
	case ir.ExprAccess:
		buf = append(buf, 4)
		h(e.Base)
		h(e.Index)
	case ir.ExprAccessIndex:
		buf = append(buf, 5)
		h(e.Base)
		u32(e.Index)
	case ir.ExprSwizzle:
		buf = append(buf, 6, byte(e.Size))
		h(e.Vector)
		for _, p := range e.Pattern[:e.Size] {
			buf = append(buf, byte(p))
		}
	case ir.ExprFunctionArgument:
		buf = append(buf, 7)
		u32(e.Index)
	case ir.ExprGlobalVariable:
		buf = append(buf, 8)
		u32(uint32(e.Variable))
	case ir.ExprLocalVariable:
		buf = append(buf, 9)
		u32(e.Variable)
	case ir.ExprLoad:
		buf = append(buf, 10)
		h(e.Pointer)
		u32(n.versions[ir.PointerRoot(n.f, e.Pointer)])
		u32(n.epoch)
	case ir.ExprImageSample:
		buf = append(buf, 11)
		h(e.Sampler)
		h(e.Coordinate)
		if e.Project {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		switch l := e.Level.(type) {
		case ir.SampleLevelExact:
			buf = append(buf, 'l')
			h(l.Level)
		case ir.SampleLevelBias:
			buf = append(buf, 'b')
			h(l.Bias)
		default:
			buf = append(buf, 'a')
		}
	case ir.ExprUnary:
		buf = append(buf, 12, byte(e.Op))
		h(e.Expr)
	case ir.ExprBinary:
		buf = append(buf, 13, byte(e.Op))
		h(e.Left)
		h(e.Right)
	case ir.ExprSelect:
		buf = append(buf, 14)
		h(e.Condition)
		h(e.Accept)
		h(e.Reject)
	case ir.ExprDerivative:
		buf = append(buf, 15, byte(e.Axis))
		h(e.Expr)
	case ir.ExprRelational:
		buf = append(buf, 16, byte(e.Fun))
		h(e.Argument)
		opt(e.Arg1)
	case ir.ExprMath:
		buf = append(buf, 17, byte(e.Fun))
		h(e.Arg)
		opt(e.Arg1)
		opt(e.Arg2)
	case ir.ExprFTransform:
		buf = append(buf, 18)
	case ir.ExprAs:
		buf = append(buf, 19, byte(e.Kind))
		h(e.Expr)
	default:
		// Never equal to anything else.
		n.unique++
		buf = append(buf, 0xff)
		u32(n.unique)
	}
	return buf
}
