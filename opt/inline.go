// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package opt

import (
	"fmt"
	"strings"

	"github.com/gogpu/glslopt/ir"
)

// Inline replaces calls to small leaf functions by a copy of their body.
// A callee qualifies when it makes no calls, returns only from its last
// statement, and has at most Threshold expressions or a single call site.
// Parameters become locals initialized from the arguments; out and inout
// arguments are copied back after the body.
type Inline struct {
	Threshold int
	MaxDepth  int

	// depth is the deepest nesting of inlined bodies in each function.
	depth map[string]int
}

// NewInline returns an inliner. Non-positive limits take the defaults.
func NewInline(threshold, maxDepth int) *Inline {
	def := DefaultOptions()
	if threshold <= 0 {
		threshold = def.InlineThreshold
	}
	if maxDepth <= 0 {
		maxDepth = def.MaxInlineDepth
	}
	return &Inline{Threshold: threshold, MaxDepth: maxDepth, depth: map[string]int{}}
}

func (*Inline) Name() string { return PassInline }

func (p *Inline) Run(m *ir.Module) (bool, error) {
	sites := callSites(m)
	changed := false
	for i := range m.Functions {
		in := &inliner{pass: p, m: m, caller: &m.Functions[i], sites: sites, alias: aliases{}}
		in.caller.Body = in.block(in.caller.Body)
		in.alias.apply(in.caller)
		changed = changed || in.changed
	}
	return changed, nil
}

// signature identifies a function across passes that renumber handles.
func signature(f *ir.Function) string {
	var b strings.Builder
	b.WriteString(f.Name)
	for _, a := range f.Arguments {
		fmt.Fprintf(&b, ",%d:%d", a.Type, a.Qualifier)
	}
	return b.String()
}

type inliner struct {
	pass    *Inline
	m       *ir.Module
	caller  *ir.Function
	sites   []int
	alias   aliases
	changed bool
}

func (in *inliner) inlinable(fh ir.FunctionHandle) bool {
	if fh == in.m.EntryPoint || int(fh) >= len(in.m.Functions) {
		return false
	}
	callee := &in.m.Functions[fh]
	if callee == in.caller {
		return false
	}
	if len(callee.Expressions) > in.pass.Threshold && in.sites[fh] != 1 {
		return false
	}
	if in.pass.depth[signature(callee)]+1 > in.pass.MaxDepth {
		return false
	}
	leaf := true
	returns := 0
	ir.WalkBlock(callee.Body, func(k ir.StatementKind) {
		switch k.(type) {
		case ir.StmtCall:
			leaf = false
		case ir.StmtReturn:
			returns++
		}
	})
	if !leaf {
		return false
	}
	tail := len(callee.Body) > 0 && isReturn(callee.Body[len(callee.Body)-1].Kind)
	if callee.Result != nil {
		return returns == 1 && tail
	}
	return returns == 0 || (returns == 1 && tail)
}

func isReturn(k ir.StatementKind) bool {
	_, ok := k.(ir.StmtReturn)
	return ok
}

func (in *inliner) block(b ir.Block) ir.Block {
	out := make(ir.Block, 0, len(b))
	for _, st := range b {
		switch s := st.Kind.(type) {
		case ir.StmtCall:
			if in.inlinable(s.Function) {
				out = append(out, in.expand(s)...)
				continue
			}
		case ir.StmtIf:
			st = ir.Statement{Kind: ir.StmtIf{Condition: s.Condition, Accept: in.block(s.Accept), Reject: in.block(s.Reject)}}
		case ir.StmtLoop:
			st = ir.Statement{Kind: ir.StmtLoop{Body: in.block(s.Body), Continuing: in.block(s.Continuing), BreakIf: s.BreakIf}}
		case ir.StmtBlock:
			st = ir.Statement{Kind: ir.StmtBlock{Block: in.block(s.Block)}}
		}
		out = append(out, st)
	}
	return out
}

func (in *inliner) addLocal(name string, ty ir.TypeHandle, prec ir.Precision) uint32 {
	idx := ir.Index(len(in.caller.LocalVars))
	in.caller.LocalVars = append(in.caller.LocalVars, ir.LocalVariable{Name: name, Type: ty, Precision: prec})
	return idx
}

func (in *inliner) localPtr(idx uint32) ir.ExpressionHandle {
	return in.caller.AddExpression(ir.ExprLocalVariable{Variable: idx}, in.caller.LocalVars[idx].Type)
}

func (in *inliner) load(ptr ir.ExpressionHandle) ir.ExpressionHandle {
	return in.caller.AddExpression(ir.ExprLoad{Pointer: ptr}, in.caller.ExpressionTypes[ptr])
}

// expand returns the statements replacing call.
func (in *inliner) expand(call ir.StmtCall) ir.Block {
	callee := &in.m.Functions[call.Function]
	caller := in.caller
	in.changed = true

	localOff := ir.Index(len(caller.LocalVars))
	caller.LocalVars = append(caller.LocalVars, callee.LocalVars...)
	params := make([]uint32, len(callee.Arguments))
	for i, a := range callee.Arguments {
		params[i] = in.addLocal(a.Name, a.Type, a.Precision)
	}

	off := ir.ExpressionHandle(ir.Index(len(caller.Expressions)))
	shift := func(h ir.ExpressionHandle) ir.ExpressionHandle { return h + off }
	for j, e := range callee.Expressions {
		var kind ir.ExpressionKind
		switch k := e.Kind.(type) {
		case ir.ExprFunctionArgument:
			kind = ir.ExprLocalVariable{Variable: params[k.Index]}
		case ir.ExprLocalVariable:
			kind = ir.ExprLocalVariable{Variable: k.Variable + localOff}
		default:
			kind = ir.MapOperands(k, shift)
		}
		h := caller.AddExpression(kind, callee.ExpressionTypes[j])
		caller.Expressions[h].Span = e.Span
	}

	var out ir.Block
	for i, a := range callee.Arguments {
		if a.Qualifier == ir.ArgOut {
			continue
		}
		value := call.Arguments[i]
		if a.Qualifier == ir.ArgInOut {
			value = in.load(value)
		}
		out = append(out, ir.Statement{Kind: ir.StmtStore{Pointer: in.localPtr(params[i]), Value: value}})
	}

	body := shiftBlock(callee.Body, off)
	if n := len(body); n > 0 {
		if ret, ok := body[n-1].Kind.(ir.StmtReturn); ok {
			body = body[:n-1]
			if ret.Value != nil && call.Result != nil {
				result := in.addLocal(callee.Name+"_result", callee.Result.Type, callee.Result.Precision)
				body = append(body, ir.Statement{Kind: ir.StmtStore{Pointer: in.localPtr(result), Value: *ret.Value}})
				in.alias[*call.Result] = in.load(in.localPtr(result))
			}
		}
	}
	out = append(out, body...)

	for i, a := range callee.Arguments {
		if a.Qualifier == ir.ArgIn {
			continue
		}
		value := in.load(in.localPtr(params[i]))
		out = append(out, ir.Statement{Kind: ir.StmtStore{Pointer: call.Arguments[i], Value: value}})
	}

	key := signature(caller)
	in.pass.depth[key] = max(in.pass.depth[key], in.pass.depth[signature(callee)]+1)
	return out
}

// shiftBlock copies b with every expression handle moved by off.
func shiftBlock(b ir.Block, off ir.ExpressionHandle) ir.Block {
	shift := func(h ir.ExpressionHandle) ir.ExpressionHandle { return h + off }
	out := make(ir.Block, 0, len(b))
	for _, st := range b {
		switch s := st.Kind.(type) {
		case ir.StmtEmit:
			out = append(out, ir.Statement{Kind: ir.StmtEmit{Range: ir.Range{Start: s.Range.Start + off, End: s.Range.End + off}}})
		case ir.StmtIf:
			out = append(out, ir.Statement{Kind: ir.StmtIf{
				Condition: shift(s.Condition),
				Accept:    shiftBlock(s.Accept, off),
				Reject:    shiftBlock(s.Reject, off),
			}})
		case ir.StmtLoop:
			loop := ir.StmtLoop{Body: shiftBlock(s.Body, off), Continuing: shiftBlock(s.Continuing, off)}
			if s.BreakIf != nil {
				v := shift(*s.BreakIf)
				loop.BreakIf = &v
			}
			out = append(out, ir.Statement{Kind: loop})
		case ir.StmtBlock:
			out = append(out, ir.Statement{Kind: ir.StmtBlock{Block: shiftBlock(s.Block, off)}})
		default:
			out = append(out, ir.MapBlock(ir.Block{st}, shift)...)
		}
	}
	return out
}
