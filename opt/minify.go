// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package opt

import "github.com/gogpu/glslopt/ir"

// Minify renames user functions, arguments and locals to short names.
// The shader interface (uniforms, attributes, varyings), builtins, struct
// types and main keep their names.
type Minify struct {
	// Reserved reports names that must not be produced, such as profile
	// keywords and builtin functions.
	Reserved func(name string) bool
}

func (*Minify) Name() string { return PassMinify }

const nameLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
const nameDigits = nameLetters + "0123456789_"

// shortKeywords are the keywords a name generator reaches first.
var shortKeywords = map[string]bool{"do": true, "if": true, "in": true}

type nameGenerator struct {
	taken    map[string]bool
	reserved func(string) bool
	next     int
}

// name returns the next free short name.
func (g *nameGenerator) name() string {
	for {
		n := g.next
		g.next++
		buf := []byte{nameLetters[n%len(nameLetters)]}
		for n /= len(nameLetters); n > 0; n /= len(nameDigits) {
			n--
			buf = append(buf, nameDigits[n%len(nameDigits)])
		}
		s := string(buf)
		if g.taken[s] || shortKeywords[s] || (g.reserved != nil && g.reserved(s)) {
			continue
		}
		return s
	}
}

func (p *Minify) Run(m *ir.Module) (bool, error) {
	g := &nameGenerator{taken: map[string]bool{}, reserved: p.Reserved}
	for _, v := range m.GlobalVariables {
		g.taken[v.Name] = true
	}
	for _, t := range m.Types {
		if t.Name != "" {
			g.taken[t.Name] = true
		}
	}

	changed := false
	rename := func(name *string) {
		n := g.name()
		if *name != n {
			*name = n
			changed = true
		}
	}
	for i := range m.Functions {
		if ir.FunctionHandle(ir.Index(i)) != m.EntryPoint {
			rename(&m.Functions[i].Name)
		}
	}
	for i := range m.Functions {
		f := &m.Functions[i]
		for j := range f.Arguments {
			rename(&f.Arguments[j].Name)
		}
		for j := range f.LocalVars {
			rename(&f.LocalVars[j].Name)
		}
	}
	return changed, nil
}
