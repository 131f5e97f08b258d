// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glslopt

import (
	"fmt"
	"strings"
	"time"
)

// Phase is one timed step of a shader compilation.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

type timer struct {
	phases []Phase
}

func (t *timer) begin(name string) int {
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

func (t *timer) end(idx int, note string) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	if note != "" {
		p.Note = note
	}
}

// FormatTimings renders phases as an aligned table with a total line.
func FormatTimings(phases []Phase) string {
	var sb strings.Builder
	var total time.Duration
	for _, p := range phases {
		total += p.Dur
		fmt.Fprintf(&sb, "  %-12s %7.2f ms", p.Name, float64(p.Dur.Microseconds())/1000)
		if p.Note != "" {
			fmt.Fprintf(&sb, "  (%s)", p.Note)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  %-12s %7.2f ms\n", "total", float64(total.Microseconds())/1000)
	return sb.String()
}
