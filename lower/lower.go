// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package lower

import (
	"fmt"

	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/ir"
	"github.com/gogpu/glslopt/types"
)

// Options configures lowering.
type Options struct {
	Stage ir.ShaderStage
}

// Lowerer converts an analyzed translation unit to IR.
type Lowerer struct {
	opts   Options
	module *ir.Module

	// Type resolution
	registry  *ir.TypeRegistry
	structs   map[*types.Type]ir.TypeHandle
	anonymous int

	// Variable resolution
	globals  map[glsl.DeclID]ir.GlobalVariableHandle
	builtins map[string]ir.GlobalVariableHandle
	// consts holds the initializers of const variables; every use is
	// replaced by the initializer.
	consts      map[glsl.DeclID]glsl.Expr
	globalInits []globalInit

	// Function resolution
	functions map[glsl.DeclID]ir.FunctionHandle

	// Current function context
	currentFunc *ir.Function
	locals      map[glsl.DeclID]uint32
	// emitStart is the first expression not yet covered by an Emit.
	emitStart ir.ExpressionHandle
	temps     int
	// span is the source of the expression being lowered.
	span ir.Span
}

type globalInit struct {
	variable ir.GlobalVariableHandle
	init     glsl.Expr
}

// Lower converts an analyzed translation unit to IR. The unit must have
// passed semantic analysis without errors.
func Lower(tu *glsl.TranslationUnit, opts Options) (*ir.Module, error) {
	module := &ir.Module{
		Stage:   opts.Stage,
		Version: tu.Version,
	}
	for _, ext := range tu.Extensions {
		module.Extensions = append(module.Extensions, ir.Extension{Name: ext.Name, Behavior: ext.Behavior})
	}
	l := &Lowerer{
		opts:      opts,
		module:    module,
		registry:  ir.NewTypeRegistry(module),
		structs:   make(map[*types.Type]ir.TypeHandle),
		globals:   make(map[glsl.DeclID]ir.GlobalVariableHandle),
		builtins:  make(map[string]ir.GlobalVariableHandle),
		consts:    make(map[glsl.DeclID]glsl.Expr),
		functions: make(map[glsl.DeclID]ir.FunctionHandle),
	}

	// Globals and signatures first: function bodies may call functions
	// defined later in the source.
	var defs []*glsl.FuncDecl
	for _, d := range tu.Decls {
		switch d := d.(type) {
		case *glsl.VarDeclList:
			if err := l.lowerGlobalVars(d); err != nil {
				return nil, err
			}
		case *glsl.PrecisionDecl:
			if d.Type.Resolved != nil && d.Type.Resolved.Kind == types.Float {
				module.DefaultFloatPrecision = precision(d.Precision)
			}
		case *glsl.InvariantDecl:
			if err := l.lowerInvariant(d); err != nil {
				return nil, err
			}
		case *glsl.FuncDecl:
			if d.Body == nil {
				continue
			}
			fn, err := l.declareFunction(d)
			if err != nil {
				return nil, err
			}
			l.functions[d.ID] = ir.FunctionHandle(ir.Index(len(module.Functions)))
			module.Functions = append(module.Functions, fn)
			defs = append(defs, d)
		}
	}

	main := -1
	for i, d := range defs {
		if d.Name == "main" {
			main = i
		}
	}
	if main < 0 {
		return nil, fmt.Errorf("no definition of main")
	}
	module.EntryPoint = ir.FunctionHandle(ir.Index(main))

	for i, d := range defs {
		if err := l.lowerFunction(d, &module.Functions[i], i == main); err != nil {
			return nil, fmt.Errorf("function %s: %w", d.Name, err)
		}
	}
	return module, nil
}

// Types

func (l *Lowerer) lowerType(t *types.Type) (ir.TypeHandle, error) {
	switch t.Kind {
	case types.Bool:
		return l.registry.Scalar(ir.ScalarBool), nil
	case types.Int:
		return l.registry.Scalar(ir.ScalarSint), nil
	case types.Float:
		return l.registry.Scalar(ir.ScalarFloat), nil
	case types.Vector:
		return l.registry.Vector(scalarKind(t.Scalar), t.Size), nil
	case types.Matrix:
		return l.registry.GetOrCreate("", ir.MatrixType{
			Columns: ir.VectorSize(ir.Index(t.Size)),
			Rows:    ir.VectorSize(ir.Index(t.Rows)),
		}), nil
	case types.Sampler:
		return l.registry.GetOrCreate("", samplerType(t.Dim)), nil
	case types.Array:
		base, err := l.lowerType(t.Elem)
		if err != nil {
			return 0, err
		}
		return l.registry.GetOrCreate("", ir.ArrayType{Base: base, Size: ir.Index(t.Len)}), nil
	case types.Struct:
		return l.lowerStruct(t)
	}
	return 0, fmt.Errorf("cannot lower type %s", t)
}

func (l *Lowerer) lowerStruct(t *types.Type) (ir.TypeHandle, error) {
	if h, ok := l.structs[t]; ok {
		return h, nil
	}
	members := make([]ir.StructMember, len(t.Fields))
	for i, f := range t.Fields {
		ft, err := l.lowerType(f.Type)
		if err != nil {
			return 0, err
		}
		members[i] = ir.StructMember{Name: f.Name, Type: ft}
	}
	name := t.Name
	if name == "" {
		name = fmt.Sprintf("_anon%d", l.anonymous)
		l.anonymous++
	}
	h := l.registry.GetOrCreate(name, ir.StructType{Members: members})
	l.structs[t] = h
	return h, nil
}

func scalarKind(k types.Kind) ir.ScalarKind {
	switch k {
	case types.Bool:
		return ir.ScalarBool
	case types.Int:
		return ir.ScalarSint
	}
	return ir.ScalarFloat
}

func samplerType(dim types.SamplerDim) ir.SamplerType {
	switch dim {
	case types.Sampler1D:
		return ir.SamplerType{Dim: ir.Dim1D}
	case types.Sampler1DShadow:
		return ir.SamplerType{Dim: ir.Dim1D, Shadow: true}
	case types.Sampler3D:
		return ir.SamplerType{Dim: ir.Dim3D}
	case types.SamplerCube:
		return ir.SamplerType{Dim: ir.DimCube}
	case types.Sampler2DShadow:
		return ir.SamplerType{Dim: ir.Dim2D, Shadow: true}
	}
	return ir.SamplerType{Dim: ir.Dim2D}
}

func precision(p glsl.Precision) ir.Precision {
	switch p {
	case glsl.PrecisionLow:
		return ir.PrecisionLow
	case glsl.PrecisionMedium:
		return ir.PrecisionMedium
	case glsl.PrecisionHigh:
		return ir.PrecisionHigh
	}
	return ir.PrecisionNone
}

// Globals

func (l *Lowerer) lowerGlobalVars(d *glsl.VarDeclList) error {
	if d.Type.Resolved != nil && d.Type.Resolved.Kind == types.Struct {
		// Declares the struct even when no variable uses it.
		if _, err := l.lowerStruct(d.Type.Resolved); err != nil {
			return err
		}
	}
	for _, v := range d.Vars {
		if d.Qual.Storage == glsl.StorageConst {
			l.consts[v.ID] = v.Init
			continue
		}
		ty, err := l.lowerType(v.Type)
		if err != nil {
			return fmt.Errorf("global %s: %w", v.Name, err)
		}
		h := ir.GlobalVariableHandle(ir.Index(len(l.module.GlobalVariables)))
		l.module.GlobalVariables = append(l.module.GlobalVariables, ir.GlobalVariable{
			Name:      v.Name,
			Space:     addressSpace(d.Qual.Storage),
			Type:      ty,
			Precision: precision(d.Qual.Precision),
			Invariant: d.Qual.Invariant,
		})
		l.globals[v.ID] = h
		if v.Init != nil {
			l.globalInits = append(l.globalInits, globalInit{variable: h, init: v.Init})
		}
	}
	return nil
}

func addressSpace(s glsl.Storage) ir.AddressSpace {
	switch s {
	case glsl.StorageUniform:
		return ir.SpaceUniform
	case glsl.StorageAttribute:
		return ir.SpaceAttribute
	case glsl.StorageVarying:
		return ir.SpaceVarying
	}
	return ir.SpacePrivate
}

func (l *Lowerer) lowerInvariant(d *glsl.InvariantDecl) error {
	for _, id := range d.Names {
		switch id.Ref.Kind {
		case glsl.RefGlobal:
			if h, ok := l.globals[id.Ref.ID]; ok {
				l.module.GlobalVariables[h].Invariant = true
			}
		case glsl.RefBuiltin:
			h, err := l.builtinVariable(id)
			if err != nil {
				return err
			}
			l.module.GlobalVariables[h].Invariant = true
		}
	}
	return nil
}

// builtinVariable returns the global standing for a gl_ variable,
// creating it on first use.
func (l *Lowerer) builtinVariable(id *glsl.Ident) (ir.GlobalVariableHandle, error) {
	name := id.Ref.Builtin
	if h, ok := l.builtins[name]; ok {
		return h, nil
	}
	ty, err := l.lowerType(id.Info.Type)
	if err != nil {
		return 0, fmt.Errorf("builtin %s: %w", name, err)
	}
	space := ir.SpaceInput
	switch {
	case id.Ref.Output:
		space = ir.SpaceOutput
	case id.Ref.Storage == glsl.StorageUniform:
		space = ir.SpaceUniform
	case id.Ref.Storage == glsl.StorageAttribute:
		space = ir.SpaceAttribute
	case id.Ref.Storage == glsl.StorageVarying:
		space = ir.SpaceVarying
	}
	h := ir.GlobalVariableHandle(ir.Index(len(l.module.GlobalVariables)))
	l.module.GlobalVariables = append(l.module.GlobalVariables, ir.GlobalVariable{
		Name:    name,
		Space:   space,
		Type:    ty,
		Builtin: true,
	})
	l.builtins[name] = h
	return h, nil
}

// Functions

func (l *Lowerer) declareFunction(d *glsl.FuncDecl) (ir.Function, error) {
	fn := ir.Function{
		Name:      d.Name,
		Arguments: make([]ir.FunctionArgument, len(d.Params)),
	}
	for i, p := range d.Params {
		ty, err := l.lowerType(p.ResolvedType)
		if err != nil {
			return fn, fmt.Errorf("function %s param %s: %w", d.Name, p.Name, err)
		}
		q := ir.ArgIn
		switch p.Qual.Storage {
		case glsl.StorageOut:
			q = ir.ArgOut
		case glsl.StorageInOut:
			q = ir.ArgInOut
		}
		fn.Arguments[i] = ir.FunctionArgument{
			Name:      p.Name,
			Type:      ty,
			Qualifier: q,
			Const:     p.Qual.Const,
			Precision: precision(p.Qual.Precision),
		}
	}
	if ret := d.Return.Resolved; ret != nil && ret.Kind != types.Void {
		ty, err := l.lowerType(ret)
		if err != nil {
			return fn, fmt.Errorf("function %s return type: %w", d.Name, err)
		}
		fn.Result = &ir.FunctionResult{Type: ty, Precision: precision(d.Return.Precision)}
	}
	return fn, nil
}

func (l *Lowerer) lowerFunction(d *glsl.FuncDecl, fn *ir.Function, isMain bool) error {
	l.currentFunc = fn
	l.locals = make(map[glsl.DeclID]uint32)
	l.emitStart = 0
	l.temps = 0

	body := make(ir.Block, 0, len(d.Body.Stmts))
	if isMain {
		// Global initializers run before main's own statements.
		for _, gi := range l.globalInits {
			value, err := l.lowerExpression(gi.init, &body)
			if err != nil {
				return err
			}
			ptr := l.addExpression(ir.ExprGlobalVariable{Variable: gi.variable}, l.module.GlobalVariables[gi.variable].Type)
			l.appendStmt(&body, ir.StmtStore{Pointer: ptr, Value: value})
		}
	}
	for _, s := range d.Body.Stmts {
		if err := l.lowerStatement(s, &body); err != nil {
			return err
		}
	}
	l.flush(&body)
	fn.Body = body
	l.currentFunc = nil
	return nil
}

// Emission

func (l *Lowerer) addExpression(kind ir.ExpressionKind, ty ir.TypeHandle) ir.ExpressionHandle {
	h := l.currentFunc.AddExpression(kind, ty)
	l.currentFunc.Expressions[h].Span = l.span
	return h
}

// at makes e the source of the expressions added until the returned
// function restores the previous one.
func (l *Lowerer) at(e glsl.Expr) func() {
	prev := l.span
	pos := e.Pos()
	l.span = ir.Span{Line: pos.Line, Column: pos.Column}
	return func() { l.span = prev }
}

// flush emits every expression added since the last flush into target.
func (l *Lowerer) flush(target *ir.Block) {
	end := ir.ExpressionHandle(ir.Index(len(l.currentFunc.Expressions)))
	for h := l.emitStart; h < end; h++ {
		if ir.IsEmittable(l.currentFunc.Expressions[h].Kind) {
			*target = append(*target, ir.Statement{Kind: ir.StmtEmit{Range: ir.Range{Start: l.emitStart, End: end}}})
			break
		}
	}
	l.emitStart = end
}

// appendStmt emits pending expressions and appends a statement.
func (l *Lowerer) appendStmt(target *ir.Block, kind ir.StatementKind) {
	l.flush(target)
	*target = append(*target, ir.Statement{Kind: kind})
}

// nested lowers fn into a fresh block after emitting what the enclosing
// block has pending.
func (l *Lowerer) nested(target *ir.Block, fn func(b *ir.Block) error) (ir.Block, error) {
	l.flush(target)
	b := ir.Block{}
	if err := fn(&b); err != nil {
		return nil, err
	}
	l.flush(&b)
	return b, nil
}

// newTemp adds a compiler temporary local.
func (l *Lowerer) newTemp(ty ir.TypeHandle) ir.ExpressionHandle {
	idx := ir.Index(len(l.currentFunc.LocalVars))
	l.currentFunc.LocalVars = append(l.currentFunc.LocalVars, ir.LocalVariable{
		Name: fmt.Sprintf("tmp_%d", l.temps),
		Type: ty,
	})
	l.temps++
	return l.addExpression(ir.ExprLocalVariable{Variable: idx}, ty)
}
