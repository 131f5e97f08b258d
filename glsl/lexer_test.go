// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Kind
	}
	return out
}

func TestLexerBasicTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenKind
	}{
		{"+ - * /", []TokenKind{TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenEOF}},
		{"( ) { }", []TokenKind{TokenLeftParen, TokenRightParen, TokenLeftBrace, TokenRightBrace, TokenEOF}},
		{"[ ] , .", []TokenKind{TokenLeftBracket, TokenRightBracket, TokenComma, TokenDot, TokenEOF}},
		{"? : ;", []TokenKind{TokenQuestion, TokenColon, TokenSemicolon, TokenEOF}},
		{"a += b", []TokenKind{TokenIdent, TokenPlusEqual, TokenIdent, TokenEOF}},
		{"x++ --y", []TokenKind{TokenIdent, TokenPlusPlus, TokenMinusMinus, TokenIdent, TokenEOF}},
		{"a<<=b", []TokenKind{TokenIdent, TokenLessLessEqual, TokenIdent, TokenEOF}},
		{"p ^^ q", []TokenKind{TokenIdent, TokenCaretCaret, TokenIdent, TokenEOF}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, diags := Tokenize(tt.input, false)
			if len(diags) != 0 {
				t.Fatalf("unexpected diagnostics: %v", diags)
			}
			if diff := cmp.Diff(tt.expected, kinds(tokens)); diff != "" {
				t.Errorf("token kinds mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLexerKeywordsAndTypes(t *testing.T) {
	tokens, diags := Tokenize("uniform highp vec4 color; bool b = true;", false)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	want := []TokenKind{
		TokenUniform, TokenHighp, TokenTypeName, TokenIdent, TokenSemicolon,
		TokenTypeName, TokenIdent, TokenEqual, TokenBoolLiteral, TokenSemicolon,
		TokenEOF,
	}
	if diff := cmp.Diff(want, kinds(tokens)); diff != "" {
		t.Errorf("token kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input  string
		kind   TokenKind
		lexeme string
	}{
		{"42", TokenIntLiteral, "42"},
		{"0x1F", TokenIntLiteral, "31"},
		{"010", TokenIntLiteral, "8"},
		{"0", TokenIntLiteral, "0"},
		{"4294967295", TokenIntLiteral, "-1"},
		{"1.5", TokenFloatLiteral, "1.5"},
		{".5", TokenFloatLiteral, "0.5"},
		{"2.", TokenFloatLiteral, "2"},
		{"1e3", TokenFloatLiteral, "1000"},
		{"2.5E-1", TokenFloatLiteral, "0.25"},
		{"3.0f", TokenFloatLiteral, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, diags := Tokenize(tt.input, false)
			if len(diags) != 0 {
				t.Fatalf("unexpected diagnostics: %v", diags)
			}
			if tokens[0].Kind != tt.kind || tokens[0].Lexeme != tt.lexeme {
				t.Errorf("got %v %q, want %v %q", tokens[0].Kind, tokens[0].Lexeme, tt.kind, tt.lexeme)
			}
		})
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		embedded bool
		contains string
	}{
		{"unknown character", "a $ b", false, "unexpected character '$'"},
		{"int overflow", "4294967296", false, "overflow"},
		{"bad octal", "09", false, "octal"},
		{"float suffix on ES", "1.0f", true, "suffix"},
		{"bad suffix", "12abc", false, "invalid number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := Tokenize(tt.input, tt.embedded)
			if len(diags) != 1 {
				t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags)
			}
			if !strings.Contains(diags[0].Message, tt.contains) {
				t.Errorf("message %q does not contain %q", diags[0].Message, tt.contains)
			}
		})
	}
}

func TestLexerContinuesAfterError(t *testing.T) {
	tokens, diags := Tokenize("a $ b", false)
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if diags[0].Pos.Column != 3 {
		t.Errorf("error column = %d, want 3", diags[0].Pos.Column)
	}
	want := []TokenKind{TokenIdent, TokenIdent, TokenEOF}
	if diff := cmp.Diff(want, kinds(tokens)); diff != "" {
		t.Errorf("token kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestLexerReservedWords(t *testing.T) {
	tokens, _ := Tokenize("goto sampler2DShadow", true)
	if tokens[0].Kind != TokenReserved {
		t.Errorf("goto = %v, want reserved", tokens[0].Kind)
	}
	if tokens[1].Kind != TokenReserved {
		t.Errorf("sampler2DShadow on ES = %v, want reserved", tokens[1].Kind)
	}

	tokens, _ = Tokenize("sampler2DShadow", false)
	if tokens[0].Kind != TokenTypeName {
		t.Errorf("sampler2DShadow on desktop = %v, want type name", tokens[0].Kind)
	}

	tokens, _ = Tokenize("centroid", false)
	if tokens[0].Kind != TokenReserved {
		t.Errorf("centroid on desktop = %v, want reserved", tokens[0].Kind)
	}
	tokens, _ = Tokenize("centroid", true)
	if tokens[0].Kind != TokenIdent {
		t.Errorf("centroid on ES = %v, want identifier", tokens[0].Kind)
	}
}

func TestLexerPositions(t *testing.T) {
	tokens, _ := Tokenize("float x;\n  x = 1.0;", false)
	// x on line 2
	tok := tokens[3]
	if tok.Lexeme != "x" || tok.Line != 2 || tok.Column != 3 {
		t.Errorf("got %q at %d:%d, want x at 2:3", tok.Lexeme, tok.Line, tok.Column)
	}
}
