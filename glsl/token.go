// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"

	"github.com/gogpu/glslopt/diag"
)

// TokenKind represents the type of token.
type TokenKind uint8

const (
	TokenEOF TokenKind = iota

	// Literals
	TokenIdent
	TokenIntLiteral
	TokenFloatLiteral
	TokenBoolLiteral

	// TokenTypeName is a builtin type keyword (float, vec3, sampler2D, ...).
	TokenTypeName

	// Operators
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenPercent      // %
	TokenAmpersand    // &
	TokenPipe         // |
	TokenCaret        // ^
	TokenTilde        // ~
	TokenBang         // !
	TokenEqual        // =
	TokenLess         // <
	TokenGreater      // >
	TokenDot          // .
	TokenComma        // ,
	TokenColon        // :
	TokenSemicolon    // ;
	TokenQuestion     // ?
	TokenPlusPlus     // ++
	TokenMinusMinus   // --
	TokenEqualEqual   // ==
	TokenBangEqual    // !=
	TokenLessEqual    // <=
	TokenGreaterEqual // >=
	TokenAmpAmp       // &&
	TokenPipePipe     // ||
	TokenCaretCaret   // ^^
	TokenLessLess     // <<
	TokenGreaterGreater
	TokenPlusEqual  // +=
	TokenMinusEqual // -=
	TokenStarEqual  // *=
	TokenSlashEqual // /=
	TokenPercentEqual
	TokenAmpEqual
	TokenPipeEqual
	TokenCaretEqual
	TokenLessLessEqual
	TokenGreaterGreaterEqual

	// Delimiters
	TokenLeftParen    // (
	TokenRightParen   // )
	TokenLeftBrace    // {
	TokenRightBrace   // }
	TokenLeftBracket  // [
	TokenRightBracket // ]

	// Keywords
	TokenAttribute
	TokenConst
	TokenUniform
	TokenVarying
	TokenBreak
	TokenContinue
	TokenDo
	TokenFor
	TokenWhile
	TokenIf
	TokenElse
	TokenIn
	TokenOut
	TokenInOut
	TokenInvariant
	TokenDiscard
	TokenReturn
	TokenStruct
	TokenLowp
	TokenMediump
	TokenHighp
	TokenPrecision

	// TokenReserved is a word reserved for future use; using it is an error.
	TokenReserved
)

var tokenNames = map[TokenKind]string{
	TokenEOF:          "end of file",
	TokenIdent:        "identifier",
	TokenIntLiteral:   "integer constant",
	TokenFloatLiteral: "floating-point constant",
	TokenBoolLiteral:  "boolean constant",
	TokenTypeName:     "type name",
	TokenReserved:     "reserved word",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	for lexeme, kind := range punctuation {
		if kind == k {
			return "'" + lexeme + "'"
		}
	}
	for word, kind := range keywords {
		if kind == k {
			return "'" + word + "'"
		}
	}
	return fmt.Sprintf("token(%d)", uint8(k))
}

// Token is a lexical token. Tokens are immutable once produced.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Line   int
	Column int
}

// Pos returns the token's source position.
func (t Token) Pos() diag.Position {
	return diag.Position{Line: t.Line, Column: t.Column}
}

// describe renders a token for "unexpected X" messages.
func (t Token) describe() string {
	if t.Kind == TokenEOF {
		return "end of file"
	}
	return fmt.Sprintf("'%s'", t.Lexeme)
}

var keywords = map[string]TokenKind{
	"attribute": TokenAttribute,
	"const":     TokenConst,
	"uniform":   TokenUniform,
	"varying":   TokenVarying,
	"break":     TokenBreak,
	"continue":  TokenContinue,
	"do":        TokenDo,
	"for":       TokenFor,
	"while":     TokenWhile,
	"if":        TokenIf,
	"else":      TokenElse,
	"in":        TokenIn,
	"out":       TokenOut,
	"inout":     TokenInOut,
	"invariant": TokenInvariant,
	"discard":   TokenDiscard,
	"return":    TokenReturn,
	"struct":    TokenStruct,
	"lowp":      TokenLowp,
	"mediump":   TokenMediump,
	"highp":     TokenHighp,
	"precision": TokenPrecision,
	"true":      TokenBoolLiteral,
	"false":     TokenBoolLiteral,
}

// reservedWords are reserved for future use in GLSL 1.10/1.20 and GLSL ES 1.00.
var reservedWords = map[string]struct{}{
	"asm": {}, "class": {}, "union": {}, "enum": {}, "typedef": {}, "template": {}, "this": {},
	"packed": {}, "goto": {}, "switch": {}, "default": {}, "inline": {}, "noinline": {},
	"volatile": {}, "public": {}, "static": {}, "extern": {}, "external": {}, "interface": {},
	"flat": {}, "long": {}, "short": {}, "double": {}, "half": {}, "fixed": {}, "unsigned": {},
	"superp": {}, "input": {}, "output": {}, "hvec2": {}, "hvec3": {}, "hvec4": {},
	"dvec2": {}, "dvec3": {}, "dvec4": {}, "fvec2": {}, "fvec3": {}, "fvec4": {},
	"sampler2DRect": {}, "sampler3DRect": {}, "sampler2DRectShadow": {},
	"sizeof": {}, "cast": {}, "namespace": {}, "using": {},
	"smooth": {}, "uint": {}, "case": {}, "layout": {},
}

// desktopReservedWords are reserved on the desktop profile only. GLSL ES
// 1.00 accepts them as identifiers.
var desktopReservedWords = map[string]struct{}{
	"centroid": {},
}

var punctuation = map[string]TokenKind{
	"+": TokenPlus, "-": TokenMinus, "*": TokenStar, "/": TokenSlash, "%": TokenPercent,
	"&": TokenAmpersand, "|": TokenPipe, "^": TokenCaret, "~": TokenTilde, "!": TokenBang,
	"=": TokenEqual, "<": TokenLess, ">": TokenGreater, ".": TokenDot, ",": TokenComma,
	":": TokenColon, ";": TokenSemicolon, "?": TokenQuestion,
	"++": TokenPlusPlus, "--": TokenMinusMinus, "==": TokenEqualEqual, "!=": TokenBangEqual,
	"<=": TokenLessEqual, ">=": TokenGreaterEqual, "&&": TokenAmpAmp, "||": TokenPipePipe,
	"^^": TokenCaretCaret, "<<": TokenLessLess, ">>": TokenGreaterGreater,
	"+=": TokenPlusEqual, "-=": TokenMinusEqual, "*=": TokenStarEqual, "/=": TokenSlashEqual,
	"%=": TokenPercentEqual, "&=": TokenAmpEqual, "|=": TokenPipeEqual, "^=": TokenCaretEqual,
	"<<=": TokenLessLessEqual, ">>=": TokenGreaterGreaterEqual,
	"(": TokenLeftParen, ")": TokenRightParen, "{": TokenLeftBrace, "}": TokenRightBrace,
	"[": TokenLeftBracket, "]": TokenRightBracket,
}
