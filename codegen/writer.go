// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"fmt"
	"strings"

	"github.com/gogpu/glslopt/ir"
)

// Writer generates GLSL source code from IR.
type Writer struct {
	module  *ir.Module
	options Options
	profile *profile

	// Output buffer
	out    strings.Builder
	indent int

	// Module-scope names
	namer       *namer
	typeNames   map[ir.TypeHandle]string
	memberNames map[ir.TypeHandle][]string
	globalNames []string
	funcNames   []string

	// Function context (set during function writing)
	fn         *ir.Function
	fnNamer    *namer
	argNames   []string
	localNames []string
	// named holds expressions written to temporaries.
	named map[ir.ExpressionHandle]string
	// uses counts the remaining textual uses of each expression.
	uses []int
	// pending holds emitted value expressions not yet written to a
	// temporary; they are printed at their uses.
	pending []ir.ExpressionHandle
	// temps numbers the temporaries of the current function.
	temps int
}

// namer generates unique identifiers.
type namer struct {
	embedded  bool
	usedNames map[string]struct{}
}

func newNamer(embedded bool) *namer {
	return &namer{embedded: embedded, usedNames: make(map[string]struct{})}
}

// call generates a unique name based on the given base.
func (n *namer) call(base string) string {
	escaped := escapeKeyword(base, n.embedded)
	if _, used := n.usedNames[escaped]; !used {
		n.usedNames[escaped] = struct{}{}
		return escaped
	}
	sep := "_"
	if strings.HasSuffix(escaped, "_") {
		sep = ""
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s%s%d", escaped, sep, i)
		if _, used := n.usedNames[candidate]; !used {
			n.usedNames[candidate] = struct{}{}
			return candidate
		}
	}
}

// reserve marks name as taken without escaping it.
func (n *namer) reserve(name string) {
	n.usedNames[name] = struct{}{}
}

// fork returns a namer that starts with every name n has handed out.
func (n *namer) fork() *namer {
	c := newNamer(n.embedded)
	for name := range n.usedNames {
		c.usedNames[name] = struct{}{}
	}
	return c
}

func newWriter(module *ir.Module, options Options) *Writer {
	return &Writer{
		module:      module,
		options:     options,
		profile:     newProfile(options.Embedded, module.Stage, module.Extensions),
		namer:       newNamer(options.Embedded),
		typeNames:   make(map[ir.TypeHandle]string),
		memberNames: make(map[ir.TypeHandle][]string),
	}
}

// String returns the generated GLSL source code.
func (w *Writer) String() string {
	return w.out.String()
}

// writeModule generates the whole shader. The header is written last
// because the body decides which extensions are needed.
func (w *Writer) writeModule() error {
	w.registerNames()
	w.writeTypes()
	w.writeGlobalVariables()
	if err := w.writeFunctions(); err != nil {
		return err
	}

	body := w.out.String()
	w.out.Reset()
	w.profile.writeHeader(&w.out, w.module.Version, w.module.Extensions, w.module.DefaultFloatPrecision)
	w.out.WriteString(body)
	return nil
}

// registerNames assigns unique names to module-scope entities. Interface
// variables keep their names; the rest yield on collisions.
func (w *Writer) registerNames() {
	m := w.module
	w.globalNames = make([]string, len(m.GlobalVariables))
	for i, g := range m.GlobalVariables {
		if g.Builtin {
			w.namer.reserve(g.Name)
			w.globalNames[i] = g.Name
		}
	}
	for i, g := range m.GlobalVariables {
		if !g.Builtin && g.Space != ir.SpacePrivate {
			w.globalNames[i] = w.namer.call(g.Name)
		}
	}

	w.funcNames = make([]string, len(m.Functions))
	if int(m.EntryPoint) < len(m.Functions) {
		w.namer.reserve("main")
		w.funcNames[m.EntryPoint] = "main"
	}

	for i, g := range m.GlobalVariables {
		if !g.Builtin && g.Space == ir.SpacePrivate {
			w.globalNames[i] = w.namer.call(g.Name)
		}
	}
	for h, t := range m.Types {
		st, ok := t.Inner.(ir.StructType)
		if !ok {
			continue
		}
		handle := ir.TypeHandle(ir.Index(h))
		w.typeNames[handle] = w.namer.call(t.Name)
		members := make([]string, len(st.Members))
		for i, member := range st.Members {
			members[i] = escapeKeyword(member.Name, w.options.Embedded)
		}
		w.memberNames[handle] = members
	}
	for i, f := range m.Functions {
		if ir.FunctionHandle(ir.Index(i)) != m.EntryPoint {
			w.funcNames[i] = w.namer.call(f.Name)
		}
	}
}

// writeTypes writes the struct definitions the shader uses, in arena
// order so members are defined before their containers.
func (w *Writer) writeTypes() {
	used := usedTypes(w.module)
	wrote := false
	for h, t := range w.module.Types {
		st, ok := t.Inner.(ir.StructType)
		if !ok || !used[h] {
			continue
		}
		handle := ir.TypeHandle(ir.Index(h))
		w.writeLine("struct %s {", w.typeNames[handle])
		w.pushIndent()
		for i, member := range st.Members {
			w.writeLine("%s %s%s;", w.typeName(member.Type), w.memberNames[handle][i], w.arraySuffix(member.Type))
		}
		w.popIndent()
		w.writeLine("};")
		wrote = true
	}
	if wrote {
		w.writeLine("")
	}
}

// writeGlobalVariables declares uniforms, attributes, varyings and plain
// globals. Builtins are only redeclared to make them invariant.
func (w *Writer) writeGlobalVariables() {
	wrote := false
	for i, g := range w.module.GlobalVariables {
		if g.Builtin {
			if g.Invariant {
				w.writeLine("invariant %s;", w.profile.variable(g.Name, noPos))
				wrote = true
			}
			continue
		}
		var quals []string
		if g.Invariant {
			quals = append(quals, "invariant")
		}
		switch g.Space {
		case ir.SpaceUniform:
			quals = append(quals, "uniform")
		case ir.SpaceAttribute:
			quals = append(quals, "attribute")
		case ir.SpaceVarying:
			quals = append(quals, "varying")
		}
		if p := w.precision(g.Precision); p != "" {
			quals = append(quals, p)
		}
		quals = append(quals, w.typeName(g.Type))
		w.writeLine("%s %s%s;", strings.Join(quals, " "), w.globalNames[i], w.arraySuffix(g.Type))
		wrote = true
	}
	if wrote {
		w.writeLine("")
	}
}

// precision returns the qualifier to print, empty on the desktop profile.
func (w *Writer) precision(p ir.Precision) string {
	if !w.options.Embedded {
		return ""
	}
	return precisionName(p)
}

// writeFunctions writes every function after the functions it calls,
// ending with main.
func (w *Writer) writeFunctions() error {
	for _, h := range callOrder(w.module) {
		if err := w.writeFunction(h); err != nil {
			return fmt.Errorf("function %s: %w", w.module.Functions[h].Name, err)
		}
	}
	return nil
}

// callOrder sorts functions so callees precede callers. The language
// forbids recursion, so the call graph is acyclic.
func callOrder(m *ir.Module) []ir.FunctionHandle {
	state := make([]uint8, len(m.Functions))
	order := make([]ir.FunctionHandle, 0, len(m.Functions))
	var visit func(h ir.FunctionHandle)
	visit = func(h ir.FunctionHandle) {
		if state[h] != 0 {
			return
		}
		state[h] = 1
		ir.WalkBlock(m.Functions[h].Body, func(kind ir.StatementKind) {
			if call, ok := kind.(ir.StmtCall); ok && int(call.Function) < len(m.Functions) {
				visit(call.Function)
			}
		})
		state[h] = 2
		order = append(order, h)
	}
	for i := range m.Functions {
		if h := ir.FunctionHandle(ir.Index(i)); h != m.EntryPoint {
			visit(h)
		}
	}
	if int(m.EntryPoint) < len(m.Functions) {
		visit(m.EntryPoint)
	}
	return order
}

func (w *Writer) writeFunction(h ir.FunctionHandle) error {
	f := &w.module.Functions[h]
	w.beginFunction(f)

	params := make([]string, len(f.Arguments))
	for i, a := range f.Arguments {
		var quals []string
		if a.Const {
			quals = append(quals, "const")
		}
		switch a.Qualifier {
		case ir.ArgOut:
			quals = append(quals, "out")
		case ir.ArgInOut:
			quals = append(quals, "inout")
		}
		if p := w.precision(a.Precision); p != "" {
			quals = append(quals, p)
		}
		quals = append(quals, w.typeName(a.Type))
		params[i] = strings.Join(quals, " ") + " " + w.argNames[i] + w.arraySuffix(a.Type)
	}
	result := "void"
	if f.Result != nil {
		result = w.typeName(f.Result.Type)
		if p := w.precision(f.Result.Precision); p != "" {
			result = p + " " + result
		}
	}
	w.writeLine("%s %s(%s) {", result, w.funcNames[h], strings.Join(params, ", "))
	w.pushIndent()
	for i, l := range f.LocalVars {
		decl := w.typeName(l.Type)
		if p := w.precision(l.Precision); p != "" {
			decl = p + " " + decl
		}
		w.writeLine("%s %s%s;", decl, w.localNames[i], w.arraySuffix(l.Type))
	}
	if err := w.writeBlock(f.Body); err != nil {
		return err
	}
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	w.fn = nil
	return nil
}

// beginFunction resets the per-function naming and use tracking.
func (w *Writer) beginFunction(f *ir.Function) {
	w.fn = f
	w.fnNamer = w.namer.fork()
	w.argNames = make([]string, len(f.Arguments))
	for i, a := range f.Arguments {
		w.argNames[i] = w.fnNamer.call(a.Name)
	}
	w.localNames = make([]string, len(f.LocalVars))
	for i, l := range f.LocalVars {
		w.localNames[i] = w.fnNamer.call(l.Name)
	}
	w.named = make(map[ir.ExpressionHandle]string)
	w.uses = w.countUses(f)
	w.pending = w.pending[:0]
	w.temps = 0
}

// Output helpers

// writeLine writes a line with indentation and newline.
//
//nolint:goprintffuncname
func (w *Writer) writeLine(format string, args ...any) {
	if format == "" {
		w.out.WriteByte('\n')
		return
	}
	w.writeIndent()
	if len(args) == 0 {
		w.out.WriteString(format)
	} else {
		fmt.Fprintf(&w.out, format, args...)
	}
	w.out.WriteByte('\n')
}

// writeIndent writes the current indentation.
func (w *Writer) writeIndent() {
	for range w.indent {
		w.out.WriteString("    ")
	}
}

// pushIndent increases indentation.
func (w *Writer) pushIndent() {
	w.indent++
}

// popIndent decreases indentation.
func (w *Writer) popIndent() {
	if w.indent > 0 {
		w.indent--
	}
}
