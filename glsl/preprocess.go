// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/glslopt/diag"
)

const (
	// MaxMacroDepth bounds nested macro expansion.
	MaxMacroDepth = 64
	// MaxMacroExpansions bounds the total number of macro expansions in one
	// source string, so exponential definitions terminate too.
	MaxMacroExpansions = 1 << 16
	// MaxExpandedTokens bounds the number of tokens macro replacement may
	// produce in one source string, counting argument copies.
	MaxExpandedTokens = 1 << 20
)

// Options configures preprocessing and parsing.
type Options struct {
	// Embedded selects the GLSL ES profile.
	Embedded bool
	// Defines are additional predefined object-like macros.
	Defines map[string]string
}

// Preprocessed is the result of the preprocessing sub-phase.
type Preprocessed struct {
	// Text has every directive line and every comment replaced by blank
	// space, so token positions match the original source.
	Text       string
	Version    int
	Extensions []Extension
}

type macro struct {
	name     string
	params   []string
	function bool
	body     []ppToken
	builtin  bool
}

type condFrame struct {
	active     bool // this branch is being emitted
	taken      bool // some branch of this #if has been emitted
	parentLive bool
	sawElse    bool
	pos        diag.Position
}

type preprocessor struct {
	opts       Options
	macros     map[string]*macro
	conds      []condFrame
	diags      []diag.Diagnostic
	line       int
	version    int
	extensions []Extension
	seenCode   bool
	expansions int
	expanded   int
	exhausted  bool
}

// Preprocess expands directives and macros. Directive lines become blank
// lines so that line numbers in later diagnostics stay exact.
func Preprocess(source string, opts Options) (*Preprocessed, []diag.Diagnostic) {
	pp := &preprocessor{
		opts:   opts,
		macros: make(map[string]*macro),
	}
	pp.predefine()

	lines := splitLines(stripComments(source))
	out := make([]string, len(lines))

	for i, line := range lines {
		pp.line = i + 1
		trimmed := strings.TrimLeft(line, " \t\r\f\v")
		if strings.HasPrefix(trimmed, "#") {
			col := len(line) - len(trimmed) + 1
			pp.directive(trimmed[1:], col)
			continue
		}
		if !pp.live() {
			continue
		}
		if strings.TrimSpace(line) != "" {
			pp.seenCode = true
		}
		out[i] = pp.expandLine(line)
	}

	if len(pp.conds) > 0 {
		top := pp.conds[len(pp.conds)-1]
		pp.diags = append(pp.diags, diag.Errorf(diag.KindSyntax, top.pos, "unterminated #if"))
	}

	return &Preprocessed{
		Text:       strings.Join(out, "\n"),
		Version:    pp.version,
		Extensions: pp.extensions,
	}, pp.diags
}

func (pp *preprocessor) predefine() {
	pp.macros["__LINE__"] = &macro{name: "__LINE__", builtin: true}
	pp.macros["__FILE__"] = &macro{name: "__FILE__", builtin: true}
	pp.macros["__VERSION__"] = &macro{name: "__VERSION__", builtin: true}
	if pp.opts.Embedded {
		pp.defineObject("GL_ES", "1")
		pp.defineObject("GL_FRAGMENT_PRECISION_HIGH", "1")
	}
	for name, value := range pp.opts.Defines {
		pp.defineObject(name, value)
	}
}

func (pp *preprocessor) defineObject(name, value string) {
	pp.macros[name] = &macro{name: name, body: ppTokenize(value)}
}

func (pp *preprocessor) live() bool {
	if len(pp.conds) == 0 {
		return true
	}
	return pp.conds[len(pp.conds)-1].active
}

func (pp *preprocessor) errorf(col int, format string, args ...any) {
	pp.diags = append(pp.diags, diag.Errorf(diag.KindSyntax,
		diag.Position{Line: pp.line, Column: col}, format, args...))
}

func (pp *preprocessor) directive(text string, col int) {
	text = strings.TrimSpace(text)
	name, rest := splitWord(text)
	pos := diag.Position{Line: pp.line, Column: col}

	// Conditionals are processed even inside skipped groups.
	switch name {
	case "if", "ifdef", "ifndef":
		frame := condFrame{parentLive: pp.live(), pos: pos}
		if frame.parentLive {
			var cond bool
			switch name {
			case "if":
				cond = pp.evalCondition(rest, col)
			case "ifdef":
				cond = pp.isDefined(rest, col)
			case "ifndef":
				cond = !pp.isDefined(rest, col)
			}
			frame.active = cond
			frame.taken = cond
		}
		pp.conds = append(pp.conds, frame)
		return
	case "elif":
		top := pp.topCond(name, col)
		if top == nil {
			return
		}
		if top.sawElse {
			pp.errorf(col, "#elif after #else")
		}
		if !top.parentLive || top.taken {
			top.active = false
			return
		}
		top.active = pp.evalCondition(rest, col)
		top.taken = top.active
		return
	case "else":
		top := pp.topCond(name, col)
		if top == nil {
			return
		}
		if top.sawElse {
			pp.errorf(col, "#else after #else")
		}
		top.sawElse = true
		top.active = top.parentLive && !top.taken
		top.taken = true
		return
	case "endif":
		if pp.topCond(name, col) == nil {
			return
		}
		pp.conds = pp.conds[:len(pp.conds)-1]
		return
	}

	if !pp.live() {
		return
	}

	switch name {
	case "":
		// The null directive.
	case "define":
		pp.define(rest, col)
	case "undef":
		macroName, _ := splitWord(rest)
		if m, ok := pp.macros[macroName]; ok && (m.builtin || isReservedMacro(macroName)) {
			pp.errorf(col, "cannot undefine built-in macro '%s'", macroName)
			return
		}
		delete(pp.macros, macroName)
	case "version":
		pp.versionDirective(rest, col)
	case "extension":
		pp.extensionDirective(rest, pos)
	case "error":
		pp.errorf(col, "#error %s", rest)
	case "pragma", "line":
		// #pragma is accepted and ignored. #line is ignored so that
		// reported positions always refer to the physical source.
	default:
		pp.errorf(col, "invalid preprocessor directive '#%s'", name)
	}
	if name != "version" && name != "" {
		pp.seenCode = true
	}
}

func (pp *preprocessor) topCond(name string, col int) *condFrame {
	if len(pp.conds) == 0 {
		pp.errorf(col, "#%s without #if", name)
		return nil
	}
	return &pp.conds[len(pp.conds)-1]
}

func (pp *preprocessor) isDefined(rest string, col int) bool {
	name, _ := splitWord(rest)
	if name == "" {
		pp.errorf(col, "macro name missing")
		return false
	}
	_, ok := pp.macros[name]
	return ok
}

func (pp *preprocessor) define(rest string, col int) {
	name, tail := splitIdent(rest)
	if name == "" {
		pp.errorf(col, "macro name missing in #define")
		return
	}
	if isReservedMacro(name) {
		pp.errorf(col, "macro names starting with \"GL_\" or containing \"__\" are reserved")
		return
	}

	m := &macro{name: name}
	if strings.HasPrefix(tail, "(") {
		closeIdx := strings.IndexByte(tail, ')')
		if closeIdx < 0 {
			pp.errorf(col, "missing ')' in macro parameter list")
			return
		}
		m.function = true
		for _, p := range strings.Split(tail[1:closeIdx], ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if !isIdentifier(p) {
				pp.errorf(col, "invalid macro parameter '%s'", p)
				return
			}
			m.params = append(m.params, p)
		}
		tail = tail[closeIdx+1:]
	}
	m.body = ppTokenize(strings.TrimSpace(tail))

	if prev, ok := pp.macros[name]; ok {
		if prev.builtin || !sameMacro(prev, m) {
			pp.errorf(col, "redefinition of macro '%s'", name)
			return
		}
	}
	pp.macros[name] = m
}

func (pp *preprocessor) versionDirective(rest string, col int) {
	if pp.seenCode || pp.version != 0 {
		pp.errorf(col, "#version must occur before any other statement in the program")
		return
	}
	numText, profile := splitWord(rest)
	n, err := strconv.Atoi(numText)
	if err != nil {
		pp.errorf(col, "invalid #version directive")
		return
	}
	if strings.TrimSpace(profile) != "" {
		pp.errorf(col, "#version profile '%s' is not supported", strings.TrimSpace(profile))
		return
	}
	supported := n == 110 || n == 120
	if pp.opts.Embedded {
		supported = n == 100
	}
	if !supported {
		pp.errorf(col, "GLSL %d is not supported", n)
		return
	}
	pp.version = n
}

func (pp *preprocessor) extensionDirective(rest string, pos diag.Position) {
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		pp.errorf(pos.Column, "invalid #extension directive")
		return
	}
	name := strings.TrimSpace(parts[0])
	behavior := strings.TrimSpace(parts[1])
	switch behavior {
	case "require", "enable", "warn", "disable":
	default:
		pp.errorf(pos.Column, "unknown extension behavior '%s'", behavior)
		return
	}
	if name == "all" && (behavior == "require" || behavior == "enable") {
		pp.errorf(pos.Column, "cannot %s all extensions", behavior)
		return
	}
	pp.extensions = append(pp.extensions, Extension{Name: name, Behavior: behavior, Pos: pos})
	if behavior != "disable" && name != "all" {
		pp.defineObject(name, "1")
	}
}

func isReservedMacro(name string) bool {
	return strings.HasPrefix(name, "GL_") || strings.Contains(name, "__")
}

func sameMacro(a, b *macro) bool {
	if a.function != b.function || len(a.params) != len(b.params) || len(a.body) != len(b.body) {
		return false
	}
	for i := range a.params {
		if a.params[i] != b.params[i] {
			return false
		}
	}
	for i := range a.body {
		if a.body[i].text != b.body[i].text {
			return false
		}
	}
	return true
}

// Macro expansion

type ppKind uint8

const (
	ppIdent ppKind = iota
	ppNumber
	ppPunct
	ppSpace
)

type ppToken struct {
	kind ppKind
	text string
}

// ppTokenize splits a line into preprocessing tokens. Whitespace runs are
// kept so that unexpanded text is reproduced faithfully.
func ppTokenize(s string) []ppToken {
	var toks []ppToken
	for i := 0; i < len(s); {
		c := s[i]
		start := i
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\r' || s[i] == '\f' || s[i] == '\v') {
				i++
			}
			toks = append(toks, ppToken{ppSpace, s[start:i]})
		case isAlpha(c) || c == '_':
			for i < len(s) && isAlphaNumeric(s[i]) {
				i++
			}
			toks = append(toks, ppToken{ppIdent, s[start:i]})
		case isDigit(c) || (c == '.' && i+1 < len(s) && isDigit(s[i+1])):
			for i < len(s) && (isAlphaNumeric(s[i]) || s[i] == '.' ||
				((s[i] == '+' || s[i] == '-') && (s[i-1] == 'e' || s[i-1] == 'E'))) {
				i++
			}
			toks = append(toks, ppToken{ppNumber, s[start:i]})
		default:
			i++
			toks = append(toks, ppToken{ppPunct, s[start:i]})
		}
	}
	return toks
}

func joinTokens(toks []ppToken) string {
	var sb strings.Builder
	for _, t := range toks {
		sb.WriteString(t.text)
	}
	return sb.String()
}

func (pp *preprocessor) expandLine(line string) string {
	toks := pp.expand(ppTokenize(line), nil, 0)
	return joinTokens(toks)
}

// expand macro-expands toks. disabled holds the macros currently being
// expanded; they are not re-expanded, which terminates self reference.
func (pp *preprocessor) expand(toks []ppToken, disabled map[string]bool, depth int) []ppToken {
	if depth > MaxMacroDepth {
		pp.errorf(1, "macro expansion exceeds maximum depth of %d", MaxMacroDepth)
		return toks
	}

	out := make([]ppToken, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.kind != ppIdent || disabled[t.text] || pp.exhausted {
			out = append(out, t)
			continue
		}
		m, ok := pp.macros[t.text]
		if !ok {
			out = append(out, t)
			continue
		}

		if m.builtin {
			out = append(out, pp.builtinMacro(m.name))
			continue
		}

		var replacement []ppToken
		if m.function {
			j := skipSpace(toks, i+1)
			if j >= len(toks) || toks[j].text != "(" {
				out = append(out, t)
				continue
			}
			args, end, ok := collectArgs(toks, j)
			if !ok {
				pp.errorf(1, "unterminated argument list invoking macro '%s'", m.name)
				out = append(out, toks[i:]...)
				return out
			}
			if len(args) == 1 && len(m.params) == 0 && len(trimSpace(args[0])) == 0 {
				args = nil
			}
			if len(args) != len(m.params) {
				pp.errorf(1, "macro '%s' expects %d arguments, got %d", m.name, len(m.params), len(args))
				out = append(out, toks[i:end+1]...)
				i = end
				continue
			}
			expandedArgs := make(map[string][]ppToken, len(args))
			for k, arg := range args {
				expandedArgs[m.params[k]] = pp.expand(trimSpace(arg), disabled, depth+1)
			}
			for _, bt := range m.body {
				if pp.exhausted {
					break
				}
				if bt.kind == ppIdent {
					if arg, ok := expandedArgs[bt.text]; ok {
						if pp.charge(len(arg)) {
							replacement = append(replacement, arg...)
						}
						continue
					}
				}
				replacement = append(replacement, bt)
			}
			i = end
		} else {
			replacement = m.body
		}

		pp.expansions++
		if pp.expansions > MaxMacroExpansions && !pp.exhausted {
			pp.errorf(1, "macro expansion limit of %d exceeded", MaxMacroExpansions)
			pp.exhausted = true
		}
		if !pp.exhausted {
			pp.charge(len(replacement))
		}
		if pp.exhausted {
			out = append(out, t)
			continue
		}

		inner := make(map[string]bool, len(disabled)+1)
		for k := range disabled {
			inner[k] = true
		}
		inner[m.name] = true
		out = append(out, ppToken{ppSpace, " "})
		out = append(out, pp.expand(replacement, inner, depth+1)...)
		out = append(out, ppToken{ppSpace, " "})
	}
	return out
}

// charge adds n tokens to the expansion total. It reports false, once
// with an error, when the total passes MaxExpandedTokens.
func (pp *preprocessor) charge(n int) bool {
	if pp.exhausted {
		return false
	}
	pp.expanded += n
	if pp.expanded > MaxExpandedTokens {
		pp.errorf(1, "macro expansion produces more than %d tokens", MaxExpandedTokens)
		pp.exhausted = true
		return false
	}
	return true
}

func (pp *preprocessor) builtinMacro(name string) ppToken {
	switch name {
	case "__LINE__":
		return ppToken{ppNumber, strconv.Itoa(pp.line)}
	case "__VERSION__":
		v := pp.version
		if v == 0 {
			v = 110
			if pp.opts.Embedded {
				v = 100
			}
		}
		return ppToken{ppNumber, strconv.Itoa(v)}
	}
	return ppToken{ppNumber, "0"}
}

func skipSpace(toks []ppToken, i int) int {
	for i < len(toks) && toks[i].kind == ppSpace {
		i++
	}
	return i
}

func trimSpace(toks []ppToken) []ppToken {
	for len(toks) > 0 && toks[0].kind == ppSpace {
		toks = toks[1:]
	}
	for len(toks) > 0 && toks[len(toks)-1].kind == ppSpace {
		toks = toks[:len(toks)-1]
	}
	return toks
}

// collectArgs splits a parenthesized macro argument list starting at
// toks[open]. It returns the arguments and the index of the closing paren.
func collectArgs(toks []ppToken, open int) ([][]ppToken, int, bool) {
	var args [][]ppToken
	var cur []ppToken
	depth := 0
	for i := open + 1; i < len(toks); i++ {
		t := toks[i]
		switch t.text {
		case "(":
			depth++
		case ")":
			if depth == 0 {
				args = append(args, cur)
				return args, i, true
			}
			depth--
		case ",":
			if depth == 0 {
				args = append(args, cur)
				cur = nil
				continue
			}
		}
		cur = append(cur, t)
	}
	return nil, 0, false
}

// #if expressions

func (pp *preprocessor) evalCondition(expr string, col int) bool {
	toks := trimSpace(ppTokenize(expr))
	if len(toks) == 0 {
		pp.errorf(col, "#if with no expression")
		return false
	}

	// Resolve `defined` before expansion.
	var resolved []ppToken
	for i := 0; i < len(toks); i++ {
		if toks[i].kind == ppIdent && toks[i].text == "defined" {
			j := skipSpace(toks, i+1)
			paren := j < len(toks) && toks[j].text == "("
			if paren {
				j = skipSpace(toks, j+1)
			}
			if j >= len(toks) || toks[j].kind != ppIdent {
				pp.errorf(col, "operator \"defined\" requires an identifier")
				return false
			}
			_, ok := pp.macros[toks[j].text]
			if paren {
				j = skipSpace(toks, j+1)
				if j >= len(toks) || toks[j].text != ")" {
					pp.errorf(col, "missing ')' after \"defined\"")
					return false
				}
			}
			val := "0"
			if ok {
				val = "1"
			}
			resolved = append(resolved, ppToken{ppNumber, val})
			i = j
			continue
		}
		resolved = append(resolved, toks[i])
	}

	expanded := pp.expand(resolved, nil, 0)
	var clean []ppToken
	for _, t := range expanded {
		if t.kind != ppSpace {
			clean = append(clean, t)
		}
	}
	clean = mergeOperators(clean)

	ev := &condEval{toks: clean}
	v, err := ev.parse(0)
	if err == nil && ev.pos < len(ev.toks) {
		err = fmt.Errorf("unexpected '%s'", ev.toks[ev.pos].text)
	}
	if err != nil {
		pp.errorf(col, "invalid #if expression: %v", err)
		return false
	}
	return v != 0
}

// mergeOperators joins single-character punctuation into the two-character
// operators the #if grammar uses.
func mergeOperators(toks []ppToken) []ppToken {
	var out []ppToken
	for i := 0; i < len(toks); i++ {
		if toks[i].kind == ppPunct && i+1 < len(toks) && toks[i+1].kind == ppPunct {
			pair := toks[i].text + toks[i+1].text
			switch pair {
			case "&&", "||", "==", "!=", "<=", ">=", "<<", ">>":
				out = append(out, ppToken{ppPunct, pair})
				i++
				continue
			}
		}
		out = append(out, toks[i])
	}
	return out
}

type condEval struct {
	toks []ppToken
	pos  int
}

var condPrecedence = map[string]int{
	"||": 1, "&&": 2, "|": 3, "^": 4, "&": 5,
	"==": 6, "!=": 6, "<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8, "+": 9, "-": 9, "*": 10, "/": 10, "%": 10,
}

// parse is a precedence-climbing evaluator over integer expressions.
func (e *condEval) parse(minPrec int) (int64, error) {
	lhs, err := e.unary()
	if err != nil {
		return 0, err
	}
	for e.pos < len(e.toks) {
		op := e.toks[e.pos].text
		prec, ok := condPrecedence[op]
		if !ok || prec <= minPrec {
			break
		}
		e.pos++
		rhs, err := e.parse(prec)
		if err != nil {
			return 0, err
		}
		lhs, err = applyCondOp(op, lhs, rhs)
		if err != nil {
			return 0, err
		}
	}
	return lhs, nil
}

func (e *condEval) unary() (int64, error) {
	if e.pos >= len(e.toks) {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	t := e.toks[e.pos]
	e.pos++
	switch {
	case t.text == "(":
		v, err := e.parse(0)
		if err != nil {
			return 0, err
		}
		if e.pos >= len(e.toks) || e.toks[e.pos].text != ")" {
			return 0, fmt.Errorf("missing ')'")
		}
		e.pos++
		return v, nil
	case t.text == "-" || t.text == "+" || t.text == "!" || t.text == "~":
		v, err := e.unary()
		if err != nil {
			return 0, err
		}
		switch t.text {
		case "-":
			return -v, nil
		case "!":
			return boolInt(v == 0), nil
		case "~":
			return ^v, nil
		}
		return v, nil
	case t.kind == ppNumber:
		return parseCondInt(t.text)
	case t.kind == ppIdent:
		// Identifiers that survive expansion evaluate to zero.
		return 0, nil
	}
	return 0, fmt.Errorf("unexpected '%s'", t.text)
}

func parseCondInt(s string) (int64, error) {
	base := 10
	digits := s
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		base, digits = 16, s[2:]
	case len(s) > 1 && s[0] == '0':
		base, digits = 8, s[1:]
	}
	v, err := strconv.ParseInt(digits, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer '%s'", s)
	}
	return v, nil
}

func applyCondOp(op string, a, b int64) (int64, error) {
	switch op {
	case "||":
		return boolInt(a != 0 || b != 0), nil
	case "&&":
		return boolInt(a != 0 && b != 0), nil
	case "|":
		return a | b, nil
	case "^":
		return a ^ b, nil
	case "&":
		return a & b, nil
	case "==":
		return boolInt(a == b), nil
	case "!=":
		return boolInt(a != b), nil
	case "<":
		return boolInt(a < b), nil
	case ">":
		return boolInt(a > b), nil
	case "<=":
		return boolInt(a <= b), nil
	case ">=":
		return boolInt(a >= b), nil
	case "<<":
		return a << uint64(b&63), nil
	case ">>":
		return a >> uint64(b&63), nil
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/", "%":
		if b == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		if op == "/" {
			return a / b, nil
		}
		return a % b, nil
	}
	return 0, fmt.Errorf("unknown operator '%s'", op)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Source helpers

// stripComments replaces comments with spaces, keeping newlines inside
// block comments, and joins backslash line continuations while padding
// with blank lines to keep the line count.
func stripComments(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))
	pendingNewlines := 0
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src) && src[i+1] == '\n':
			i++
			pendingNewlines++
		case c == '\\' && i+2 < len(src) && src[i+1] == '\r' && src[i+2] == '\n':
			i += 2
			pendingNewlines++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			i--
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			sb.WriteByte(' ')
			for i < len(src) && !(src[i] == '*' && i+1 < len(src) && src[i+1] == '/') {
				if src[i] == '\n' {
					sb.WriteByte('\n')
				}
				i++
			}
			i++
		case c == '\n':
			sb.WriteByte('\n')
			for ; pendingNewlines > 0; pendingNewlines-- {
				sb.WriteByte('\n')
			}
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

func splitWord(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

// splitIdent splits a leading identifier from s. Unlike splitWord it stops
// at '(' so function-like macro definitions are recognized.
func splitIdent(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := 0
	for i < len(s) && isAlphaNumeric(s[i]) {
		i++
	}
	if i == 0 || isDigit(s[0]) {
		return "", s
	}
	return s[:i], s[i:]
}

func isIdentifier(s string) bool {
	if s == "" || isDigit(s[0]) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isAlphaNumeric(s[i]) {
			return false
		}
	}
	return true
}
