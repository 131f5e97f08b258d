// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"github.com/gogpu/glslopt/diag"
	"github.com/gogpu/glslopt/types"
)

// TranslationUnit is the root of a parsed shader.
type TranslationUnit struct {
	// Version is the #version number, or 0 if the source has none.
	Version    int
	Extensions []Extension
	Decls      []Decl
}

// Extension is a recorded #extension directive.
type Extension struct {
	Name     string
	Behavior string
	Pos      diag.Position
}

// Node is implemented by every AST node.
type Node interface {
	Pos() diag.Position
}

// Decl is a global declaration.
type Decl interface {
	Node
	declNode()
}

// Stmt is a statement.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression. Annotation returns the slot the analyzer fills in.
type Expr interface {
	Node
	exprNode()
	Annotation() *ExprInfo
}

// Storage is a declaration's storage qualifier.
type Storage uint8

const (
	StorageNone Storage = iota
	StorageConst
	StorageAttribute
	StorageVarying
	StorageUniform
	// Parameter qualifiers.
	StorageIn
	StorageOut
	StorageInOut
)

func (s Storage) String() string {
	switch s {
	case StorageConst:
		return "const"
	case StorageAttribute:
		return "attribute"
	case StorageVarying:
		return "varying"
	case StorageUniform:
		return "uniform"
	case StorageIn:
		return "in"
	case StorageOut:
		return "out"
	case StorageInOut:
		return "inout"
	}
	return ""
}

// Precision is a precision qualifier.
type Precision uint8

const (
	PrecisionNone Precision = iota
	PrecisionLow
	PrecisionMedium
	PrecisionHigh
)

func (p Precision) String() string {
	switch p {
	case PrecisionLow:
		return "lowp"
	case PrecisionMedium:
		return "mediump"
	case PrecisionHigh:
		return "highp"
	}
	return ""
}

// Qualifiers groups the qualifiers that may precede a declaration.
type Qualifiers struct {
	Storage   Storage
	Precision Precision
	Invariant bool
	// Const marks `const in` parameters.
	Const bool
}

// TypeSpec is a type as written in source.
type TypeSpec struct {
	Name      string
	Precision Precision
	// Struct is set when the type is an inline struct definition.
	Struct *StructSpec
	Loc    diag.Position

	// Resolved is filled in by the analyzer.
	Resolved *types.Type
}

func (t *TypeSpec) Pos() diag.Position { return t.Loc }

// StructSpec is a struct definition.
type StructSpec struct {
	Name   string
	Fields []*FieldDecl
	Loc    diag.Position
}

// FieldDecl declares one or more struct members of the same type.
type FieldDecl struct {
	Type    *TypeSpec
	Members []*FieldMember
}

// FieldMember is a single struct member declarator.
type FieldMember struct {
	Name     string
	ArrayLen Expr
	IsArray  bool
	Loc      diag.Position
}

// DeclID identifies a variable, parameter or function declaration. IDs
// are unique within a translation unit and assigned by the parser.
type DeclID int

// VarDecl is a single variable declarator.
type VarDecl struct {
	ID       DeclID
	Name     string
	IsArray  bool
	ArrayLen Expr
	Init     Expr
	Loc      diag.Position

	// Filled in by the analyzer.
	Type *types.Type
	Used bool
}

func (v *VarDecl) Pos() diag.Position { return v.Loc }

// VarDeclList declares variables sharing qualifiers and a base type.
// A list with no Vars and a struct TypeSpec is a plain struct declaration.
type VarDeclList struct {
	Qual Qualifiers
	Type *TypeSpec
	Vars []*VarDecl
	Loc  diag.Position
}

func (d *VarDeclList) Pos() diag.Position { return d.Loc }
func (d *VarDeclList) declNode()          {}

// Param is a function parameter.
type Param struct {
	ID       DeclID
	Qual     Qualifiers
	Type     *TypeSpec
	Name     string
	IsArray  bool
	ArrayLen Expr
	Loc      diag.Position

	ResolvedType *types.Type
}

// FuncDecl is a function prototype or definition.
type FuncDecl struct {
	ID     DeclID
	Return *TypeSpec
	Name   string
	Params []*Param
	// Body is nil for a prototype.
	Body *BlockStmt
	Loc  diag.Position
}

func (d *FuncDecl) Pos() diag.Position { return d.Loc }
func (d *FuncDecl) declNode()          {}

// PrecisionDecl is a default precision statement.
type PrecisionDecl struct {
	Precision Precision
	Type      *TypeSpec
	Loc       diag.Position
}

func (d *PrecisionDecl) Pos() diag.Position { return d.Loc }
func (d *PrecisionDecl) declNode()          {}

// InvariantDecl re-declares already declared varyings as invariant.
type InvariantDecl struct {
	Names []*Ident
	Loc   diag.Position
}

func (d *InvariantDecl) Pos() diag.Position { return d.Loc }
func (d *InvariantDecl) declNode()          {}

// Statements

type BlockStmt struct {
	Stmts []Stmt
	Loc   diag.Position
}

type DeclStmt struct {
	Decl *VarDeclList
}

type ExprStmt struct {
	X Expr
}

type IfStmt struct {
	Cond Expr
	Then Stmt
	Else Stmt
	Loc  diag.Position
}

type ForStmt struct {
	Init Stmt
	Cond Expr
	Post Expr
	Body Stmt
	Loc  diag.Position
}

type WhileStmt struct {
	Cond Expr
	Body Stmt
	Loc  diag.Position
}

type DoStmt struct {
	Body Stmt
	Cond Expr
	Loc  diag.Position
}

type ReturnStmt struct {
	Value Expr
	Loc   diag.Position
}

type BreakStmt struct{ Loc diag.Position }

type ContinueStmt struct{ Loc diag.Position }

type DiscardStmt struct{ Loc diag.Position }

type EmptyStmt struct{ Loc diag.Position }

func (s *BlockStmt) Pos() diag.Position    { return s.Loc }
func (s *DeclStmt) Pos() diag.Position     { return s.Decl.Loc }
func (s *ExprStmt) Pos() diag.Position     { return s.X.Pos() }
func (s *IfStmt) Pos() diag.Position       { return s.Loc }
func (s *ForStmt) Pos() diag.Position      { return s.Loc }
func (s *WhileStmt) Pos() diag.Position    { return s.Loc }
func (s *DoStmt) Pos() diag.Position       { return s.Loc }
func (s *ReturnStmt) Pos() diag.Position   { return s.Loc }
func (s *BreakStmt) Pos() diag.Position    { return s.Loc }
func (s *ContinueStmt) Pos() diag.Position { return s.Loc }
func (s *DiscardStmt) Pos() diag.Position  { return s.Loc }
func (s *EmptyStmt) Pos() diag.Position    { return s.Loc }

func (*BlockStmt) stmtNode()    {}
func (*DeclStmt) stmtNode()     {}
func (*ExprStmt) stmtNode()     {}
func (*IfStmt) stmtNode()       {}
func (*ForStmt) stmtNode()      {}
func (*WhileStmt) stmtNode()    {}
func (*DoStmt) stmtNode()       {}
func (*ReturnStmt) stmtNode()   {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*DiscardStmt) stmtNode()  {}
func (*EmptyStmt) stmtNode()    {}

// Expressions

// ExprInfo is the analyzer's annotation on an expression.
type ExprInfo struct {
	Type *types.Type
	// Convert is set when the value is implicitly promoted; it names the
	// type the expression is converted to at its use site.
	Convert *types.Type
	// Const is set when the expression is a compile-time constant.
	Const *ConstValue
}

// ConstValue is a scalar compile-time constant.
type ConstValue struct {
	Kind  types.Kind
	Int   int32
	Float float32
	Bool  bool
}

// RefKind classifies what an identifier refers to.
type RefKind uint8

const (
	RefNone RefKind = iota
	RefGlobal
	RefLocal
	RefParam
	RefBuiltin
)

// Ref is the resolved target of an identifier.
type Ref struct {
	Kind    RefKind
	ID      DeclID
	Storage Storage
	// ParamIndex is the parameter position for RefParam.
	ParamIndex int
	// Builtin is the builtin variable name for RefBuiltin.
	Builtin string
	// Output marks builtin outputs such as gl_Position.
	Output bool
}

// CallKind classifies a call expression's target.
type CallKind uint8

const (
	CallUnresolved CallKind = iota
	CallUser
	CallBuiltin
	CallConstructor
)

// CallTarget is the resolved target of a call.
type CallTarget struct {
	Kind CallKind
	// Func is the defining declaration for user calls.
	Func DeclID
	// Builtin is the builtin function name.
	Builtin string
}

type exprBase struct {
	Loc  diag.Position
	Info ExprInfo
}

func (e *exprBase) Pos() diag.Position    { return e.Loc }
func (e *exprBase) Annotation() *ExprInfo { return &e.Info }
func (*exprBase) exprNode()               {}

// Ident is a variable reference.
type Ident struct {
	exprBase
	Name string
	Ref  Ref
}

type IntLit struct {
	exprBase
	Value int32
}

type FloatLit struct {
	exprBase
	Value float32
}

type BoolLit struct {
	exprBase
	Value bool
}

// UnaryOp is a prefix or postfix operator.
type UnaryOp uint8

const (
	OpPlus UnaryOp = iota
	OpNeg
	OpNot
	OpPreInc
	OpPreDec
	OpPostInc
	OpPostDec
)

var unaryOpNames = [...]string{
	OpPlus: "+", OpNeg: "-", OpNot: "!",
	OpPreInc: "++", OpPreDec: "--", OpPostInc: "++", OpPostDec: "--",
}

func (op UnaryOp) String() string { return unaryOpNames[op] }

// IsPostfix reports whether op is written after its operand.
func (op UnaryOp) IsPostfix() bool { return op == OpPostInc || op == OpPostDec }

type UnaryExpr struct {
	exprBase
	Op UnaryOp
	X  Expr
}

// BinaryOp is a binary operator.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpLess
	OpGreater
	OpLessEq
	OpGreaterEq
	OpEq
	OpNotEq
	OpAnd
	OpOr
	OpXor
	// OpComma is the sequence operator.
	OpComma
)

var binaryOpNames = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
	OpLess: "<", OpGreater: ">", OpLessEq: "<=", OpGreaterEq: ">=",
	OpEq: "==", OpNotEq: "!=", OpAnd: "&&", OpOr: "||", OpXor: "^^", OpComma: ",",
}

func (op BinaryOp) String() string { return binaryOpNames[op] }

type BinaryExpr struct {
	exprBase
	Op   BinaryOp
	X, Y Expr
}

// AssignOp is an assignment operator.
type AssignOp uint8

const (
	AssignSet AssignOp = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
)

var assignOpNames = [...]string{
	AssignSet: "=", AssignAdd: "+=", AssignSub: "-=", AssignMul: "*=", AssignDiv: "/=",
}

func (op AssignOp) String() string { return assignOpNames[op] }

// Binary returns the arithmetic operator of a compound assignment.
func (op AssignOp) Binary() (BinaryOp, bool) {
	switch op {
	case AssignAdd:
		return OpAdd, true
	case AssignSub:
		return OpSub, true
	case AssignMul:
		return OpMul, true
	case AssignDiv:
		return OpDiv, true
	}
	return 0, false
}

type AssignExpr struct {
	exprBase
	Op  AssignOp
	LHS Expr
	RHS Expr
}

type CondExpr struct {
	exprBase
	Cond, Then, Else Expr
}

// CallExpr is a function call or a constructor.
type CallExpr struct {
	exprBase
	Name string
	// Type is set for constructors written with a type keyword or struct name.
	Type   *TypeSpec
	Args   []Expr
	Target CallTarget
}

type IndexExpr struct {
	exprBase
	X     Expr
	Index Expr
}

// FieldExpr is a struct member selection or a vector swizzle.
type FieldExpr struct {
	exprBase
	X    Expr
	Name string

	// Filled in by the analyzer: Swizzle holds component indices for
	// vector selections, Field the member index for structs.
	Swizzle []int
	Field   int
}

// IsLValueRooted reports whether e designates storage: a variable,
// possibly indexed or member-selected.
func IsLValueRooted(e Expr) bool {
	switch x := e.(type) {
	case *Ident:
		return x.Ref.Kind != RefNone && x.Ref.Storage != StorageConst
	case *IndexExpr:
		return IsLValueRooted(x.X)
	case *FieldExpr:
		return IsLValueRooted(x.X)
	}
	return false
}

// RootIdent returns the variable an lvalue expression is rooted at.
func RootIdent(e Expr) *Ident {
	switch x := e.(type) {
	case *Ident:
		return x
	case *IndexExpr:
		return RootIdent(x.X)
	case *FieldExpr:
		return RootIdent(x.X)
	}
	return nil
}
