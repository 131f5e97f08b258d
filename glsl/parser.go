// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"strconv"

	"github.com/gogpu/glslopt/diag"
)

// Parser parses shader tokens into an AST.
type Parser struct {
	tokens  []Token
	current int
	errors  []ParseError

	// structScopes holds the struct type names visible at each block
	// nesting level; a struct name changes how an identifier parses.
	structScopes []map[string]bool
	nextID       DeclID
}

// ParseError represents a parsing error.
type ParseError struct {
	Message string
	Token   Token
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Token.Line, e.Token.Column, e.Message)
}

// Diagnostic converts the error into a syntax diagnostic.
func (e ParseError) Diagnostic() diag.Diagnostic {
	return diag.Errorf(diag.KindSyntax, e.Token.Pos(), "%s", e.Message)
}

// NewParser creates a new parser for the given tokens.
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens:       tokens,
		structScopes: []map[string]bool{{}},
	}
}

// Parse preprocesses, tokenizes and parses source. The returned unit is
// never nil; on a syntax error it holds the declarations parsed before it.
func Parse(source string, opts Options) (tu *TranslationUnit, diags []diag.Diagnostic) {
	tu = &TranslationUnit{}
	defer func() {
		if r := recover(); r != nil {
			diags = append(diags, diag.Errorf(diag.KindInternal, diag.Position{},
				"parser panic: %v", r))
		}
	}()

	pre, ppDiags := Preprocess(source, opts)
	diags = append(diags, ppDiags...)
	tu.Version = pre.Version
	tu.Extensions = pre.Extensions

	tokens, lexDiags := Tokenize(pre.Text, opts.Embedded)
	diags = append(diags, lexDiags...)

	p := NewParser(tokens)
	tu.Decls = p.Parse()
	// Once the input is already known to be broken, a parse error adds
	// noise rather than information.
	if len(p.errors) > 0 && !diag.HasErrors(diags) {
		diags = append(diags, p.errors[0].Diagnostic())
	}
	return tu, diags
}

// Parse parses declarations until the end of input or the first error.
func (p *Parser) Parse() []Decl {
	var decls []Decl
	for !p.isAtEnd() {
		if p.match(TokenSemicolon) {
			continue
		}
		decl, err := p.declaration()
		if err != nil {
			p.errors = append(p.errors, *err)
			break
		}
		decls = append(decls, decl)
	}
	return decls
}

// Errors returns the parse errors recorded so far.
func (p *Parser) Errors() []ParseError {
	return p.errors
}

// declaration parses a top-level declaration.
func (p *Parser) declaration() (Decl, *ParseError) {
	start := p.peek()

	switch {
	case p.check(TokenPrecision):
		return p.precisionDecl()
	case p.check(TokenInvariant) && p.peekAt(1).Kind == TokenIdent:
		return p.invariantDecl()
	}

	qual, err := p.qualifiers()
	if err != nil {
		return nil, err
	}
	typ, err := p.typeSpec()
	if err != nil {
		return nil, err
	}

	// Function prototype or definition.
	if p.check(TokenIdent) && p.peekAt(1).Kind == TokenLeftParen {
		if qual.Storage != StorageNone || qual.Invariant {
			return nil, p.errorAt(start, "qualifiers are not allowed on function return types")
		}
		typ.Precision = qual.Precision
		return p.functionDecl(typ)
	}

	list, err := p.declaratorList(qual, typ, start)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (p *Parser) precisionDecl() (*PrecisionDecl, *ParseError) {
	start := p.advance()
	prec, ok := p.precision()
	if !ok {
		return nil, p.unexpected()
	}
	if !p.check(TokenTypeName) {
		return nil, p.unexpected()
	}
	tok := p.advance()
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return &PrecisionDecl{
		Precision: prec,
		Type:      &TypeSpec{Name: tok.Lexeme, Loc: tok.Pos()},
		Loc:       start.Pos(),
	}, nil
}

func (p *Parser) invariantDecl() (*InvariantDecl, *ParseError) {
	start := p.advance()
	decl := &InvariantDecl{Loc: start.Pos()}
	for {
		tok, err := p.ident()
		if err != nil {
			return nil, err
		}
		decl.Names = append(decl.Names, &Ident{exprBase: exprBase{Loc: tok.Pos()}, Name: tok.Lexeme})
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return decl, nil
}

// qualifiers parses [invariant] [storage] [precision].
func (p *Parser) qualifiers() (Qualifiers, *ParseError) {
	var q Qualifiers
	if p.match(TokenInvariant) {
		q.Invariant = true
	}
	switch {
	case p.match(TokenConst):
		q.Storage = StorageConst
	case p.match(TokenAttribute):
		q.Storage = StorageAttribute
	case p.match(TokenVarying):
		q.Storage = StorageVarying
	case p.match(TokenUniform):
		q.Storage = StorageUniform
	case p.check(TokenIn), p.check(TokenOut), p.check(TokenInOut):
		return q, p.errorAt(p.peek(), fmt.Sprintf("'%s' is only allowed on function parameters", p.peek().Lexeme))
	}
	if q.Invariant && q.Storage != StorageVarying && q.Storage != StorageNone {
		return q, p.errorAt(p.previous(), "'invariant' may only qualify varyings")
	}
	if prec, ok := p.precision(); ok {
		q.Precision = prec
	}
	return q, nil
}

func (p *Parser) precision() (Precision, bool) {
	switch {
	case p.match(TokenLowp):
		return PrecisionLow, true
	case p.match(TokenMediump):
		return PrecisionMedium, true
	case p.match(TokenHighp):
		return PrecisionHigh, true
	}
	return PrecisionNone, false
}

// typeSpec parses a type keyword, a struct name or a struct definition.
func (p *Parser) typeSpec() (*TypeSpec, *ParseError) {
	tok := p.peek()
	switch {
	case p.check(TokenTypeName):
		p.advance()
		return &TypeSpec{Name: tok.Lexeme, Loc: tok.Pos()}, nil
	case p.check(TokenStruct):
		s, err := p.structSpec()
		if err != nil {
			return nil, err
		}
		return &TypeSpec{Name: s.Name, Struct: s, Loc: tok.Pos()}, nil
	case p.check(TokenIdent) && p.isStructName(tok.Lexeme):
		p.advance()
		return &TypeSpec{Name: tok.Lexeme, Loc: tok.Pos()}, nil
	}
	return nil, p.unexpected()
}

func (p *Parser) structSpec() (*StructSpec, *ParseError) {
	start := p.advance()
	s := &StructSpec{Loc: start.Pos()}
	if p.check(TokenIdent) {
		s.Name = p.advance().Lexeme
	} else if p.check(TokenReserved) {
		return nil, p.unexpected()
	}
	if err := p.expectErr(TokenLeftBrace); err != nil {
		return nil, err
	}
	for !p.check(TokenRightBrace) {
		if p.isAtEnd() {
			return nil, p.unexpected()
		}
		field, err := p.fieldDecl()
		if err != nil {
			return nil, err
		}
		s.Fields = append(s.Fields, field)
	}
	p.advance()
	if len(s.Fields) == 0 {
		return nil, p.errorAt(start, "struct must have at least one member")
	}
	if s.Name != "" {
		p.structScopes[len(p.structScopes)-1][s.Name] = true
	}
	return s, nil
}

func (p *Parser) fieldDecl() (*FieldDecl, *ParseError) {
	prec, _ := p.precision()
	typ, err := p.typeSpec()
	if err != nil {
		return nil, err
	}
	if typ.Struct != nil {
		return nil, p.errorAt(p.previous(), "embedded struct definitions are not allowed")
	}
	typ.Precision = prec
	field := &FieldDecl{Type: typ}
	for {
		tok, err := p.ident()
		if err != nil {
			return nil, err
		}
		m := &FieldMember{Name: tok.Lexeme, Loc: tok.Pos()}
		if p.match(TokenLeftBracket) {
			m.IsArray = true
			if m.ArrayLen, err = p.conditional(); err != nil {
				return nil, err
			}
			if err := p.expectErr(TokenRightBracket); err != nil {
				return nil, err
			}
		}
		field.Members = append(field.Members, m)
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return field, nil
}

// declaratorList parses `name [array] [= init] (, ...)* ;` after a type.
func (p *Parser) declaratorList(qual Qualifiers, typ *TypeSpec, start Token) (*VarDeclList, *ParseError) {
	typ.Precision = qual.Precision
	list := &VarDeclList{Qual: qual, Type: typ, Loc: start.Pos()}
	if typ.Struct != nil && p.match(TokenSemicolon) {
		return list, nil
	}

	for {
		tok, err := p.ident()
		if err != nil {
			return nil, err
		}
		v := &VarDecl{ID: p.newID(), Name: tok.Lexeme, Loc: tok.Pos()}
		if p.match(TokenLeftBracket) {
			v.IsArray = true
			if !p.check(TokenRightBracket) {
				if v.ArrayLen, err = p.conditional(); err != nil {
					return nil, err
				}
			}
			if err := p.expectErr(TokenRightBracket); err != nil {
				return nil, err
			}
		}
		if p.match(TokenEqual) {
			if v.Init, err = p.assignment(); err != nil {
				return nil, err
			}
		}
		list.Vars = append(list.Vars, v)
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return list, nil
}

func (p *Parser) functionDecl(ret *TypeSpec) (*FuncDecl, *ParseError) {
	name := p.advance()
	fn := &FuncDecl{ID: p.newID(), Return: ret, Name: name.Lexeme, Loc: name.Pos()}
	p.advance() // (

	// f(void) declares no parameters.
	if p.check(TokenTypeName) && p.peek().Lexeme == "void" && p.peekAt(1).Kind == TokenRightParen {
		p.advance()
	}
	for !p.check(TokenRightParen) {
		param, err := p.parameter()
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, param)
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}

	if p.match(TokenSemicolon) {
		return fn, nil
	}
	if !p.check(TokenLeftBrace) {
		return nil, p.unexpected()
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

func (p *Parser) parameter() (*Param, *ParseError) {
	start := p.peek()
	param := &Param{ID: p.newID(), Loc: start.Pos()}
	if p.match(TokenConst) {
		param.Qual.Const = true
	}
	switch {
	case p.match(TokenIn):
		param.Qual.Storage = StorageIn
	case p.match(TokenOut):
		param.Qual.Storage = StorageOut
	case p.match(TokenInOut):
		param.Qual.Storage = StorageInOut
	}
	if param.Qual.Const && (param.Qual.Storage == StorageOut || param.Qual.Storage == StorageInOut) {
		return nil, p.errorAt(start, "'const' cannot be combined with 'out' or 'inout'")
	}
	param.Qual.Precision, _ = p.precision()

	typ, err := p.typeSpec()
	if err != nil {
		return nil, err
	}
	if typ.Struct != nil {
		return nil, p.errorAt(start, "struct definitions are not allowed in parameter lists")
	}
	typ.Precision = param.Qual.Precision
	param.Type = typ

	if p.check(TokenIdent) {
		tok := p.advance()
		param.Name = tok.Lexeme
		param.Loc = tok.Pos()
	}
	if p.match(TokenLeftBracket) {
		param.IsArray = true
		if param.ArrayLen, err = p.conditional(); err != nil {
			return nil, err
		}
		if err := p.expectErr(TokenRightBracket); err != nil {
			return nil, err
		}
	}
	return param, nil
}

// Statements

func (p *Parser) block() (*BlockStmt, *ParseError) {
	start := p.advance() // {
	blk := &BlockStmt{Loc: start.Pos()}

	p.structScopes = append(p.structScopes, map[string]bool{})
	defer func() { p.structScopes = p.structScopes[:len(p.structScopes)-1] }()

	for !p.check(TokenRightBrace) {
		if p.isAtEnd() {
			return nil, p.unexpected()
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		blk.Stmts = append(blk.Stmts, stmt)
	}
	p.advance()
	return blk, nil
}

func (p *Parser) statement() (Stmt, *ParseError) {
	tok := p.peek()
	switch tok.Kind {
	case TokenLeftBrace:
		return p.block()
	case TokenSemicolon:
		p.advance()
		return &EmptyStmt{Loc: tok.Pos()}, nil
	case TokenIf:
		return p.ifStmt()
	case TokenFor:
		return p.forStmt()
	case TokenWhile:
		return p.whileStmt()
	case TokenDo:
		return p.doStmt()
	case TokenReturn:
		return p.returnStmt()
	case TokenBreak:
		p.advance()
		return &BreakStmt{Loc: tok.Pos()}, p.expectErr(TokenSemicolon)
	case TokenContinue:
		p.advance()
		return &ContinueStmt{Loc: tok.Pos()}, p.expectErr(TokenSemicolon)
	case TokenDiscard:
		p.advance()
		return &DiscardStmt{Loc: tok.Pos()}, p.expectErr(TokenSemicolon)
	}

	if p.startsDeclaration() {
		return p.declStmt()
	}
	return p.exprStmt()
}

// startsDeclaration reports whether the next tokens begin a local
// variable declaration rather than an expression statement.
func (p *Parser) startsDeclaration() bool {
	tok := p.peek()
	switch tok.Kind {
	case TokenConst, TokenLowp, TokenMediump, TokenHighp, TokenStruct,
		TokenAttribute, TokenVarying, TokenUniform, TokenInvariant:
		return true
	case TokenTypeName:
		return p.peekAt(1).Kind != TokenLeftParen
	case TokenIdent:
		return p.isStructName(tok.Lexeme) && p.peekAt(1).Kind == TokenIdent
	}
	return false
}

func (p *Parser) declStmt() (Stmt, *ParseError) {
	start := p.peek()
	qual, err := p.qualifiers()
	if err != nil {
		return nil, err
	}
	if qual.Storage != StorageNone && qual.Storage != StorageConst {
		return nil, p.errorAt(start, fmt.Sprintf("'%s' qualifier is not allowed on local variables", qual.Storage))
	}
	if qual.Invariant {
		return nil, p.errorAt(start, "'invariant' qualifier is not allowed on local variables")
	}
	typ, err := p.typeSpec()
	if err != nil {
		return nil, err
	}
	list, err := p.declaratorList(qual, typ, start)
	if err != nil {
		return nil, err
	}
	return &DeclStmt{Decl: list}, nil
}

func (p *Parser) exprStmt() (Stmt, *ParseError) {
	x, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return &ExprStmt{X: x}, nil
}

func (p *Parser) ifStmt() (*IfStmt, *ParseError) {
	start := p.advance()
	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}
	then, err := p.scopedStatement()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{Cond: cond, Then: then, Loc: start.Pos()}
	if p.match(TokenElse) {
		if stmt.Else, err = p.scopedStatement(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// scopedStatement parses a sub-statement that opens its own scope.
func (p *Parser) scopedStatement() (Stmt, *ParseError) {
	p.structScopes = append(p.structScopes, map[string]bool{})
	defer func() { p.structScopes = p.structScopes[:len(p.structScopes)-1] }()
	return p.statement()
}

func (p *Parser) forStmt() (*ForStmt, *ParseError) {
	start := p.advance()
	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}

	p.structScopes = append(p.structScopes, map[string]bool{})
	defer func() { p.structScopes = p.structScopes[:len(p.structScopes)-1] }()

	stmt := &ForStmt{Loc: start.Pos()}
	var err *ParseError
	switch {
	case p.check(TokenSemicolon):
		semi := p.advance()
		stmt.Init = &EmptyStmt{Loc: semi.Pos()}
	case p.startsDeclaration():
		stmt.Init, err = p.declStmt()
	default:
		stmt.Init, err = p.exprStmt()
	}
	if err != nil {
		return nil, err
	}

	if !p.check(TokenSemicolon) {
		if stmt.Cond, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	if !p.check(TokenRightParen) {
		if stmt.Post, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}
	if stmt.Body, err = p.scopedStatement(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) whileStmt() (*WhileStmt, *ParseError) {
	start := p.advance()
	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}
	body, err := p.scopedStatement()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Cond: cond, Body: body, Loc: start.Pos()}, nil
}

func (p *Parser) doStmt() (*DoStmt, *ParseError) {
	start := p.advance()
	body, err := p.scopedStatement()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenWhile); err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return &DoStmt{Body: body, Cond: cond, Loc: start.Pos()}, nil
}

func (p *Parser) returnStmt() (*ReturnStmt, *ParseError) {
	start := p.advance()
	stmt := &ReturnStmt{Loc: start.Pos()}
	if !p.check(TokenSemicolon) {
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.Value = value
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return stmt, nil
}

// Expressions

// expression parses a comma-separated sequence.
func (p *Parser) expression() (Expr, *ParseError) {
	left, err := p.assignment()
	if err != nil {
		return nil, err
	}
	for p.check(TokenComma) {
		op := p.advance()
		right, err := p.assignment()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{exprBase: exprBase{Loc: op.Pos()}, Op: OpComma, X: left, Y: right}
	}
	return left, nil
}

var assignOps = map[TokenKind]AssignOp{
	TokenEqual:      AssignSet,
	TokenPlusEqual:  AssignAdd,
	TokenMinusEqual: AssignSub,
	TokenStarEqual:  AssignMul,
	TokenSlashEqual: AssignDiv,
}

// reservedOps are operators the language reserves but does not define.
var reservedOps = map[TokenKind]bool{
	TokenPercent: true, TokenAmpersand: true, TokenPipe: true, TokenCaret: true,
	TokenTilde: true, TokenLessLess: true, TokenGreaterGreater: true,
	TokenPercentEqual: true, TokenAmpEqual: true, TokenPipeEqual: true,
	TokenCaretEqual: true, TokenLessLessEqual: true, TokenGreaterGreaterEqual: true,
}

func (p *Parser) assignment() (Expr, *ParseError) {
	left, err := p.conditional()
	if err != nil {
		return nil, err
	}
	if op, ok := assignOps[p.peek().Kind]; ok {
		tok := p.advance()
		right, err := p.assignment()
		if err != nil {
			return nil, err
		}
		return &AssignExpr{exprBase: exprBase{Loc: tok.Pos()}, Op: op, LHS: left, RHS: right}, nil
	}
	if reservedOps[p.peek().Kind] {
		return nil, p.reservedOperator()
	}
	return left, nil
}

func (p *Parser) conditional() (Expr, *ParseError) {
	cond, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	if !p.check(TokenQuestion) {
		return cond, nil
	}
	q := p.advance()
	then, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenColon); err != nil {
		return nil, err
	}
	els, err := p.assignment()
	if err != nil {
		return nil, err
	}
	return &CondExpr{exprBase: exprBase{Loc: q.Pos()}, Cond: cond, Then: then, Else: els}, nil
}

type binaryLevel struct {
	prec int
	op   BinaryOp
}

var binaryOps = map[TokenKind]binaryLevel{
	TokenPipePipe:     {1, OpOr},
	TokenCaretCaret:   {2, OpXor},
	TokenAmpAmp:       {3, OpAnd},
	TokenEqualEqual:   {4, OpEq},
	TokenBangEqual:    {4, OpNotEq},
	TokenLess:         {5, OpLess},
	TokenGreater:      {5, OpGreater},
	TokenLessEqual:    {5, OpLessEq},
	TokenGreaterEqual: {5, OpGreaterEq},
	TokenPlus:         {6, OpAdd},
	TokenMinus:        {6, OpSub},
	TokenStar:         {7, OpMul},
	TokenSlash:        {7, OpDiv},
}

// binary parses left-associative binary operators by precedence climbing.
func (p *Parser) binary(minPrec int) (Expr, *ParseError) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		level, ok := binaryOps[p.peek().Kind]
		if !ok || level.prec <= minPrec {
			if reservedOps[p.peek().Kind] {
				return nil, p.reservedOperator()
			}
			return left, nil
		}
		tok := p.advance()
		right, err := p.binary(level.prec)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{exprBase: exprBase{Loc: tok.Pos()}, Op: level.op, X: left, Y: right}
	}
}

func (p *Parser) unary() (Expr, *ParseError) {
	tok := p.peek()
	var op UnaryOp
	switch tok.Kind {
	case TokenPlus:
		op = OpPlus
	case TokenMinus:
		op = OpNeg
	case TokenBang:
		op = OpNot
	case TokenPlusPlus:
		op = OpPreInc
	case TokenMinusMinus:
		op = OpPreDec
	case TokenTilde:
		return nil, p.reservedOperator()
	default:
		return p.postfix()
	}
	p.advance()
	x, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &UnaryExpr{exprBase: exprBase{Loc: tok.Pos()}, Op: op, X: x}, nil
}

func (p *Parser) postfix() (Expr, *ParseError) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		switch tok.Kind {
		case TokenLeftBracket:
			p.advance()
			index, err := p.expression()
			if err != nil {
				return nil, err
			}
			if err := p.expectErr(TokenRightBracket); err != nil {
				return nil, err
			}
			x = &IndexExpr{exprBase: exprBase{Loc: tok.Pos()}, X: x, Index: index}
		case TokenDot:
			p.advance()
			name, err := p.ident()
			if err != nil {
				return nil, err
			}
			x = &FieldExpr{exprBase: exprBase{Loc: name.Pos()}, X: x, Name: name.Lexeme, Field: -1}
		case TokenPlusPlus:
			p.advance()
			x = &UnaryExpr{exprBase: exprBase{Loc: tok.Pos()}, Op: OpPostInc, X: x}
		case TokenMinusMinus:
			p.advance()
			x = &UnaryExpr{exprBase: exprBase{Loc: tok.Pos()}, Op: OpPostDec, X: x}
		default:
			return x, nil
		}
	}
}

func (p *Parser) primary() (Expr, *ParseError) {
	tok := p.peek()
	base := exprBase{Loc: tok.Pos()}

	switch tok.Kind {
	case TokenIntLiteral:
		p.advance()
		v, err := strconv.ParseInt(tok.Lexeme, 10, 32)
		if err != nil {
			return nil, p.errorAt(tok, fmt.Sprintf("invalid integer constant '%s'", tok.Lexeme))
		}
		return &IntLit{exprBase: base, Value: int32(v)}, nil
	case TokenFloatLiteral:
		p.advance()
		v, err := strconv.ParseFloat(tok.Lexeme, 32)
		if err != nil && !isRangeErr(err) {
			return nil, p.errorAt(tok, fmt.Sprintf("invalid floating-point constant '%s'", tok.Lexeme))
		}
		return &FloatLit{exprBase: base, Value: float32(v)}, nil
	case TokenBoolLiteral:
		p.advance()
		return &BoolLit{exprBase: base, Value: tok.Lexeme == "true"}, nil
	case TokenLeftParen:
		p.advance()
		x, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expectErr(TokenRightParen); err != nil {
			return nil, err
		}
		return x, nil
	case TokenTypeName:
		p.advance()
		if !p.check(TokenLeftParen) {
			return nil, p.unexpected()
		}
		return p.call(tok, &TypeSpec{Name: tok.Lexeme, Loc: tok.Pos()})
	case TokenIdent:
		p.advance()
		if p.check(TokenLeftParen) {
			var spec *TypeSpec
			if p.isStructName(tok.Lexeme) {
				spec = &TypeSpec{Name: tok.Lexeme, Loc: tok.Pos()}
			}
			return p.call(tok, spec)
		}
		return &Ident{exprBase: base, Name: tok.Lexeme}, nil
	case TokenReserved:
		return nil, p.errorAt(tok, fmt.Sprintf("illegal use of reserved word '%s'", tok.Lexeme))
	}
	return nil, p.unexpected()
}

func (p *Parser) call(name Token, spec *TypeSpec) (*CallExpr, *ParseError) {
	p.advance() // (
	call := &CallExpr{exprBase: exprBase{Loc: name.Pos()}, Name: name.Lexeme, Type: spec}

	// f(void) is a call with no arguments.
	if p.check(TokenTypeName) && p.peek().Lexeme == "void" && p.peekAt(1).Kind == TokenRightParen {
		p.advance()
	}
	for !p.check(TokenRightParen) {
		arg, err := p.assignment()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}
	return call, nil
}

// Helpers

func (p *Parser) ident() (Token, *ParseError) {
	tok := p.peek()
	switch tok.Kind {
	case TokenIdent:
		return p.advance(), nil
	case TokenReserved:
		return tok, p.errorAt(tok, fmt.Sprintf("illegal use of reserved word '%s'", tok.Lexeme))
	}
	return tok, p.unexpected()
}

func (p *Parser) isStructName(name string) bool {
	for i := len(p.structScopes) - 1; i >= 0; i-- {
		if p.structScopes[i][name] {
			return true
		}
	}
	return false
}

func (p *Parser) newID() DeclID {
	p.nextID++
	return p.nextID
}

func (p *Parser) advance() Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) peek() Token {
	return p.tokens[p.current]
}

func (p *Parser) peekAt(n int) Token {
	if p.current+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current+n]
}

func (p *Parser) previous() Token {
	if p.current == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.current-1]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Kind == TokenEOF
}

func (p *Parser) check(kind TokenKind) bool {
	return p.peek().Kind == kind
}

func (p *Parser) match(kind TokenKind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectErr(kind TokenKind) *ParseError {
	if p.match(kind) {
		return nil
	}
	return p.unexpected()
}

func (p *Parser) unexpected() *ParseError {
	tok := p.peek()
	if tok.Kind == TokenReserved {
		return p.errorAt(tok, fmt.Sprintf("illegal use of reserved word '%s'", tok.Lexeme))
	}
	return p.errorAt(tok, "syntax error, unexpected "+tok.describe())
}

func (p *Parser) reservedOperator() *ParseError {
	tok := p.peek()
	return p.errorAt(tok, fmt.Sprintf("operator '%s' is reserved", tok.Lexeme))
}

func (p *Parser) errorAt(tok Token, msg string) *ParseError {
	return &ParseError{Message: msg, Token: tok}
}
