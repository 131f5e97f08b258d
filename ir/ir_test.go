// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	tyFloat TypeHandle = iota
	tyVec4
	tyBool
	tySampler
	tyVec2
)

func testModule() *Module {
	return &Module{
		Types: []Type{
			{Inner: ScalarType{Kind: ScalarFloat}},
			{Inner: VectorType{Size: Vec4, Scalar: ScalarType{Kind: ScalarFloat}}},
			{Inner: ScalarType{Kind: ScalarBool}},
			{Inner: SamplerType{Dim: Dim2D}},
			{Inner: VectorType{Size: Vec2, Scalar: ScalarType{Kind: ScalarFloat}}},
		},
		GlobalVariables: []GlobalVariable{
			{Name: "gl_FragColor", Space: SpaceOutput, Type: tyVec4, Builtin: true},
			{Name: "tex", Space: SpaceUniform, Type: tySampler},
			{Name: "uv", Space: SpaceVarying, Type: tyVec2},
		},
		Stage: StageFragment,
	}
}

func ptr(h ExpressionHandle) *ExpressionHandle { return &h }

func emit(start, end ExpressionHandle) Statement {
	return Statement{Kind: StmtEmit{Range: Range{Start: start, End: end}}}
}

func TestTypeRegistryDeduplication(t *testing.T) {
	m := &Module{}
	r := NewTypeRegistry(m)

	f1 := r.Scalar(ScalarFloat)
	f2 := r.GetOrCreate("", ScalarType{Kind: ScalarFloat})
	if f1 != f2 {
		t.Errorf("float registered twice: %d and %d", f1, f2)
	}
	v := r.Vector(ScalarFloat, 3)
	iv := r.Vector(ScalarSint, 3)
	if v == iv {
		t.Error("vec3 and ivec3 share a handle")
	}
	if got := r.Vector(ScalarFloat, 1); got != f1 {
		t.Errorf("Vector(float, 1) = %d, want the scalar %d", got, f1)
	}

	s1 := r.GetOrCreate("Light", StructType{Members: []StructMember{{Name: "color", Type: v}}})
	s2 := r.GetOrCreate("Other", StructType{Members: []StructMember{{Name: "color", Type: v}}})
	if s1 == s2 {
		t.Error("structs with different names share a handle")
	}
	if r.Count() != 5 {
		t.Errorf("Count() = %d, want 5", r.Count())
	}

	// A second registry sees the existing types.
	if got := m.EnsureType(VectorType{Size: Vec3, Scalar: ScalarType{Kind: ScalarFloat}}); got != v {
		t.Errorf("EnsureType(vec3) = %d, want %d", got, v)
	}
	if len(m.Types) != 5 {
		t.Errorf("EnsureType added a duplicate: %d types", len(m.Types))
	}
}

func TestIndexOverflowPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Index(-1) did not panic")
		}
		if err, ok := r.(error); !ok || !strings.Contains(err.Error(), "overflow") {
			t.Errorf("panic = %v", r)
		}
	}()
	Index(-1)
}

func TestMapOperandsCopies(t *testing.T) {
	orig := ExprCompose{Type: tyVec4, Components: []ExpressionHandle{0, 1}}
	mapped := MapOperands(orig, func(h ExpressionHandle) ExpressionHandle { return h + 10 }).(ExprCompose)
	if diff := cmp.Diff([]ExpressionHandle{10, 11}, mapped.Components); diff != "" {
		t.Errorf("mapped components (-want +got):\n%s", diff)
	}
	if orig.Components[0] != 0 {
		t.Error("MapOperands modified the original slice")
	}

	m := ExprMath{Fun: MathClamp, Arg: 1, Arg1: ptr(2), Arg2: ptr(3)}
	var seen []ExpressionHandle
	VisitOperands(m, func(h ExpressionHandle) { seen = append(seen, h) })
	if diff := cmp.Diff([]ExpressionHandle{1, 2, 3}, seen); diff != "" {
		t.Errorf("visited operands (-want +got):\n%s", diff)
	}
}

func TestPointerRoot(t *testing.T) {
	f := &Function{LocalVars: []LocalVariable{{Name: "v", Type: tyVec4}}}
	local := f.AddExpression(ExprLocalVariable{Variable: 0}, tyVec4)
	idx := f.AddExpression(Literal{Value: LiteralI32(1)}, tyFloat)
	elem := f.AddExpression(ExprAccess{Base: local, Index: idx}, tyFloat)
	load := f.AddExpression(ExprLoad{Pointer: elem}, tyFloat)

	if !IsPointer(f, elem) {
		t.Error("access into a local is not a pointer")
	}
	if IsPointer(f, load) {
		t.Error("load is a pointer")
	}
	if got := PointerRoot(f, elem); got != (Root{Kind: RootLocal, Index: 0}) {
		t.Errorf("PointerRoot = %+v", got)
	}
	if got := PointerRoot(f, load); got.Kind != RootNone {
		t.Errorf("PointerRoot(load) = %+v", got)
	}
}

func TestRenumberOrdersAndDropsDead(t *testing.T) {
	m := testModule()
	m.Functions = []Function{{
		Name:      "main",
		LocalVars: []LocalVariable{{Name: "x", Type: tyVec4}},
		// Expression 1 is unused.
		Expressions: []Expression{
			{Kind: ExprBinary{Op: BinaryAdd, Left: 2, Right: 3}},
			{Kind: Literal{Value: LiteralF32(5)}},
			{Kind: Literal{Value: LiteralF32(1)}},
			{Kind: ExprLoad{Pointer: 4}},
			{Kind: ExprLocalVariable{Variable: 0}},
			{Kind: ExprGlobalVariable{Variable: 0}},
		},
		ExpressionTypes: []TypeHandle{tyVec4, tyFloat, tyFloat, tyVec4, tyVec4, tyVec4},
		Body: Block{
			emit(0, 1),
			{Kind: StmtStore{Pointer: 5, Value: 0}},
		},
	}}

	if !Renumber(m) {
		t.Fatal("Renumber reported no change")
	}
	f := &m.Functions[0]
	wantExprs := []Expression{
		{Kind: Literal{Value: LiteralF32(1)}},
		{Kind: ExprLocalVariable{Variable: 0}},
		{Kind: ExprLoad{Pointer: 1}},
		{Kind: ExprBinary{Op: BinaryAdd, Left: 0, Right: 2}},
		{Kind: ExprGlobalVariable{Variable: 0}},
	}
	if diff := cmp.Diff(wantExprs, f.Expressions); diff != "" {
		t.Errorf("expressions (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]TypeHandle{tyFloat, tyVec4, tyVec4, tyVec4, tyVec4}, f.ExpressionTypes); diff != "" {
		t.Errorf("types (-want +got):\n%s", diff)
	}
	wantBody := Block{
		emit(0, 4),
		{Kind: StmtStore{Pointer: 4, Value: 3}},
	}
	if diff := cmp.Diff(wantBody, f.Body); diff != "" {
		t.Errorf("body (-want +got):\n%s", diff)
	}
	if errs, _ := Validate(m); len(errs) != 0 {
		t.Errorf("renumbered module is invalid: %v", errs)
	}

	if Renumber(m) {
		t.Error("second Renumber reported a change")
	}
}

func TestRenumberKeepsTextureSamples(t *testing.T) {
	m := testModule()
	m.Functions = []Function{{
		Name: "main",
		Expressions: []Expression{
			{Kind: ExprGlobalVariable{Variable: 1}},
			{Kind: ExprLoad{Pointer: 0}},
			{Kind: ExprGlobalVariable{Variable: 2}},
			{Kind: ExprLoad{Pointer: 2}},
			{Kind: ExprImageSample{Sampler: 1, Coordinate: 3, Level: SampleLevelAuto{}}},
			{Kind: ExprUnary{Op: UnaryNegate, Expr: 3}},
		},
		ExpressionTypes: []TypeHandle{tySampler, tySampler, tyVec2, tyVec2, tyVec4, tyVec2},
		Body:            Block{emit(1, 2), emit(3, 6)},
	}}

	Renumber(m)
	f := &m.Functions[0]
	if len(f.Expressions) != 5 {
		t.Fatalf("got %d expressions, want 5 (negation dropped)", len(f.Expressions))
	}
	if _, ok := f.Expressions[4].Kind.(ExprImageSample); !ok {
		t.Errorf("last expression = %T, want the sample", f.Expressions[4].Kind)
	}
	if errs, _ := Validate(m); len(errs) != 0 {
		t.Errorf("renumbered module is invalid: %v", errs)
	}
}

func TestRenumberEmitsUncoveredOperands(t *testing.T) {
	m := testModule()
	m.Functions = []Function{{
		Name: "main",
		Expressions: []Expression{
			{Kind: ExprGlobalVariable{Variable: 0}},
			{Kind: Literal{Value: LiteralF32(1)}},
			{Kind: ExprCompose{Type: tyVec4, Components: []ExpressionHandle{1}}},
		},
		ExpressionTypes: []TypeHandle{tyVec4, tyFloat, tyVec4},
		Body: Block{
			{Kind: StmtStore{Pointer: 0, Value: 2}},
		},
	}}

	if errs, _ := Validate(m); len(errs) == 0 {
		t.Fatal("store of an unemitted value validated")
	}
	Renumber(m)
	f := &m.Functions[0]
	if _, ok := f.Body[0].Kind.(StmtEmit); !ok {
		t.Fatalf("first statement = %T, want an Emit", f.Body[0].Kind)
	}
	if errs, _ := Validate(m); len(errs) != 0 {
		t.Errorf("renumbered module is invalid: %v", errs)
	}
}

func TestRenumberPlacesCallResultAtCall(t *testing.T) {
	m := testModule()
	m.Functions = []Function{
		{
			Name:            "helper",
			Result:          &FunctionResult{Type: tyFloat},
			Expressions:     []Expression{{Kind: Literal{Value: LiteralF32(2)}}},
			ExpressionTypes: []TypeHandle{tyFloat},
			Body:            Block{{Kind: StmtReturn{Value: ptr(0)}}},
		},
		{
			Name: "main",
			Expressions: []Expression{
				{Kind: ExprCompose{Type: tyVec4, Components: []ExpressionHandle{2}}},
				{Kind: ExprGlobalVariable{Variable: 0}},
				{Kind: ExprCallResult{Function: 0}},
			},
			ExpressionTypes: []TypeHandle{tyVec4, tyVec4, tyFloat},
			Body: Block{
				{Kind: StmtCall{Function: 0, Result: ptr(2)}},
				emit(0, 1),
				{Kind: StmtStore{Pointer: 1, Value: 0}},
			},
		},
	}
	m.EntryPoint = 1

	Renumber(m)
	if errs, _ := Validate(m); len(errs) != 0 {
		t.Errorf("renumbered module is invalid: %v", errs)
	}
	f := &m.Functions[1]
	if _, ok := f.Expressions[0].Kind.(ExprCallResult); !ok {
		t.Errorf("expression 0 = %T, want the call result", f.Expressions[0].Kind)
	}
}

func validMain() *Module {
	m := testModule()
	m.Functions = []Function{{
		Name: "main",
		Expressions: []Expression{
			{Kind: Literal{Value: LiteralF32(1)}},
			{Kind: ExprCompose{Type: tyVec4, Components: []ExpressionHandle{0}}},
			{Kind: ExprGlobalVariable{Variable: 0}},
		},
		ExpressionTypes: []TypeHandle{tyFloat, tyVec4, tyVec4},
		Body: Block{
			emit(1, 2),
			{Kind: StmtStore{Pointer: 2, Value: 1}},
		},
	}}
	return m
}

func TestValidateValidModule(t *testing.T) {
	errs, err := Validate(validMain())
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	for _, e := range errs {
		t.Errorf("unexpected validation error: %s", e.Error())
	}
}

func TestValidateNilModule(t *testing.T) {
	if _, err := Validate(nil); err == nil {
		t.Error("expected error for nil module")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(m *Module)
		want   string
	}{
		{
			name: "use before emit",
			modify: func(m *Module) {
				m.Functions[0].Body = m.Functions[0].Body[1:]
			},
			want: "used before it is emitted",
		},
		{
			name: "emitted twice",
			modify: func(m *Module) {
				f := &m.Functions[0]
				f.Body = append(Block{emit(1, 2)}, f.Body...)
			},
			want: "emitted twice",
		},
		{
			name: "operand after user",
			modify: func(m *Module) {
				m.Functions[0].Expressions[1] = Expression{Kind: ExprCompose{Type: tyVec4, Components: []ExpressionHandle{2}}}
			},
			want: "does not precede",
		},
		{
			name: "break outside loop",
			modify: func(m *Module) {
				m.Functions[0].Body = append(m.Functions[0].Body, Statement{Kind: StmtBreak{}})
			},
			want: "break outside of loop",
		},
		{
			name: "continue in continuing",
			modify: func(m *Module) {
				m.Functions[0].Body = append(m.Functions[0].Body, Statement{Kind: StmtLoop{
					Body:       Block{{Kind: StmtBreak{}}},
					Continuing: Block{{Kind: StmtContinue{}}},
				}})
			},
			want: "continue in continuing block",
		},
		{
			name: "return value from void",
			modify: func(m *Module) {
				m.Functions[0].Body = append(m.Functions[0].Body, Statement{Kind: StmtReturn{Value: ptr(0)}})
			},
			want: "return with a value in a void function",
		},
		{
			name: "store to value",
			modify: func(m *Module) {
				m.Functions[0].Body[1] = Statement{Kind: StmtStore{Pointer: 1, Value: 1}}
			},
			want: "store to non-pointer",
		},
		{
			name: "emitted value out of scope",
			modify: func(m *Module) {
				f := &m.Functions[0]
				f.Body = Block{
					{Kind: StmtBlock{Block: Block{emit(1, 2)}}},
					{Kind: StmtStore{Pointer: 2, Value: 1}},
				}
			},
			want: "used before it is emitted",
		},
		{
			name: "condition not bool",
			modify: func(m *Module) {
				f := &m.Functions[0]
				f.Body = append(f.Body, Statement{Kind: StmtIf{Condition: 0}})
			},
			want: "is not a bool",
		},
		{
			name: "entry point with arguments",
			modify: func(m *Module) {
				m.Functions[0].Arguments = []FunctionArgument{{Name: "a", Type: tyFloat}}
			},
			want: "must take no arguments",
		},
		{
			name: "call arity",
			modify: func(m *Module) {
				m.Functions = append(m.Functions, Function{Name: "f", Arguments: []FunctionArgument{{Name: "a", Type: tyFloat}}})
				m.Functions[0].Body = append(m.Functions[0].Body, Statement{Kind: StmtCall{Function: 1}})
			},
			want: "with 0 arguments, expected 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMain()
			tt.modify(m)
			errs, err := Validate(m)
			if err != nil {
				t.Fatalf("Validate returned error: %v", err)
			}
			for _, e := range errs {
				if strings.Contains(e.Error(), tt.want) {
					return
				}
			}
			t.Errorf("no error containing %q in %v", tt.want, errs)
		})
	}
}
