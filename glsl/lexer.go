// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"errors"
	"strconv"

	"github.com/gogpu/glslopt/diag"
	"github.com/gogpu/glslopt/types"
)

// esReservedTypes are type keywords of desktop GLSL that are reserved in
// the embedded profile.
var esReservedTypes = map[string]struct{}{
	"sampler1D": {}, "sampler1DShadow": {}, "sampler2DShadow": {},
}

// Lexer tokenizes preprocessed shader source.
type Lexer struct {
	source   string
	pos      int
	line     int
	column   int
	start    int
	startCol int
	embedded bool
	tokens   []Token
	diags    []diag.Diagnostic
}

// NewLexer creates a new lexer for the given source.
func NewLexer(source string, embedded bool) *Lexer {
	// Estimate ~1 token per 6 characters of source.
	estTokens := len(source) / 6
	if estTokens < 16 {
		estTokens = 16
	}
	return &Lexer{
		source:   source,
		line:     1,
		column:   1,
		embedded: embedded,
		tokens:   make([]Token, 0, estTokens),
	}
}

// Tokenize lexes preprocessed source. Comments must already be removed.
// Unknown characters are reported and skipped, so the returned token
// stream is always terminated by TokenEOF.
func Tokenize(source string, embedded bool) ([]Token, []diag.Diagnostic) {
	l := NewLexer(source, embedded)
	return l.Tokenize()
}

// Tokenize returns all tokens from the source.
func (l *Lexer) Tokenize() ([]Token, []diag.Diagnostic) {
	for !l.isAtEnd() {
		l.start = l.pos
		l.startCol = l.column
		l.scanToken()
	}

	l.tokens = append(l.tokens, Token{
		Kind:   TokenEOF,
		Line:   l.line,
		Column: l.column,
	})
	return l.tokens, l.diags
}

func (l *Lexer) scanToken() {
	c := l.advance()

	switch c {
	case ' ', '\r', '\t', '\f', '\v':
		return
	case '\n':
		l.line++
		l.column = 1
		return
	}

	if isDigit(c) || (c == '.' && isDigit(l.peek())) {
		l.number()
		return
	}
	if isAlpha(c) || c == '_' {
		l.identifier()
		return
	}

	// Longest punctuation match first.
	for n := 3; n >= 1; n-- {
		end := l.start + n
		if end > len(l.source) {
			continue
		}
		if kind, ok := punctuation[l.source[l.start:end]]; ok {
			for l.pos < end {
				l.advance()
			}
			l.addToken(kind)
			return
		}
	}

	l.errorf("syntax error, unexpected character '%c'", c)
}

func (l *Lexer) identifier() {
	for isAlphaNumeric(l.peek()) {
		l.advance()
	}

	text := l.source[l.start:l.pos]
	if kind, ok := keywords[text]; ok {
		l.addToken(kind)
		return
	}
	if _, ok := types.Lookup(text); ok {
		if _, reserved := esReservedTypes[text]; reserved && l.embedded {
			l.addToken(TokenReserved)
			return
		}
		l.addToken(TokenTypeName)
		return
	}
	if _, ok := reservedWords[text]; ok {
		l.addToken(TokenReserved)
		return
	}
	if _, ok := desktopReservedWords[text]; ok && !l.embedded {
		l.addToken(TokenReserved)
		return
	}
	l.addToken(TokenIdent)
}

func (l *Lexer) number() {
	l.pos = l.start
	l.column = l.startCol

	// Hexadecimal
	if l.peek() == '0' && (l.peekNext() == 'x' || l.peekNext() == 'X') {
		l.advance()
		l.advance()
		for isHexDigit(l.peek()) {
			l.advance()
		}
		l.integer(l.source[l.start+2:l.pos], 16)
		return
	}

	isFloat := false
	for isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' {
		isFloat = true
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		next := l.peekNext()
		if isDigit(next) || ((next == '+' || next == '-') && l.pos+2 < len(l.source) && isDigit(l.source[l.pos+2])) {
			isFloat = true
			l.advance()
			if l.peek() == '+' || l.peek() == '-' {
				l.advance()
			}
			for isDigit(l.peek()) {
				l.advance()
			}
		}
	}

	if isFloat {
		text := l.source[l.start:l.pos]
		if l.peek() == 'f' || l.peek() == 'F' {
			l.advance()
			if l.embedded {
				l.errorf("floating-point suffix is not allowed in GLSL ES")
			}
		}
		v, err := strconv.ParseFloat(text, 32)
		if err != nil && !isRangeErr(err) {
			l.errorf("invalid floating-point constant '%s'", text)
		}
		l.tokens = append(l.tokens, Token{
			Kind:   TokenFloatLiteral,
			Lexeme: strconv.FormatFloat(v, 'g', -1, 32),
			Line:   l.line,
			Column: l.startCol,
		})
		return
	}

	text := l.source[l.start:l.pos]
	if isAlphaNumeric(l.peek()) {
		for isAlphaNumeric(l.peek()) {
			l.advance()
		}
		l.errorf("invalid number '%s'", l.source[l.start:l.pos])
		return
	}
	if len(text) > 1 && text[0] == '0' {
		for _, r := range text {
			if r > '7' {
				l.errorf("invalid digit in octal constant '%s'", text)
				return
			}
		}
		l.integer(text[1:], 8)
		return
	}
	l.integer(text, 10)
}

// integer records an integer literal. Values up to 2^32-1 are accepted and
// wrap to int32 as the language requires.
func (l *Lexer) integer(digits string, base int) {
	text := l.source[l.start:l.pos]
	if digits == "" {
		digits = "0"
		if base == 16 {
			l.errorf("invalid hexadecimal constant '%s'", text)
			return
		}
	}
	v, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		l.errorf("integer constant overflow '%s'", text)
		return
	}
	l.tokens = append(l.tokens, Token{
		Kind:   TokenIntLiteral,
		Lexeme: strconv.FormatInt(int64(int32(uint32(v))), 10),
		Line:   l.line,
		Column: l.startCol,
	})
}

func (l *Lexer) addToken(kind TokenKind) {
	l.tokens = append(l.tokens, Token{
		Kind:   kind,
		Lexeme: l.source[l.start:l.pos],
		Line:   l.line,
		Column: l.startCol,
	})
}

func (l *Lexer) errorf(format string, args ...any) {
	l.diags = append(l.diags, diag.Errorf(diag.KindSyntax,
		diag.Position{Line: l.line, Column: l.startCol}, format, args...))
}

func (l *Lexer) advance() byte {
	c := l.source[l.pos]
	l.pos++
	l.column++
	return c
}

func (l *Lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) isAtEnd() bool {
	return l.pos >= len(l.source)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlphaNumeric(c byte) bool {
	return isAlpha(c) || isDigit(c) || c == '_'
}

func isRangeErr(err error) bool {
	return errors.Is(err, strconv.ErrRange)
}
