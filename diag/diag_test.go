// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package diag

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDiagnostic_String(t *testing.T) {
	tests := []struct {
		name string
		d    Diagnostic
		want string
	}{
		{"syntax", Errorf(KindSyntax, Position{Line: 1, Column: 20}, "syntax error, unexpected ';'"), "0:1(20): error: syntax error, unexpected ';'"},
		{"semantic", Errorf(KindSemantic, Position{Line: 3, Column: 5}, "`x' undeclared"), "0:3(5): error: `x' undeclared"},
		{"warning", Warnf(Position{Line: 2, Column: 1}, "unused variable 'y'"), "0:2(1): warning: unused variable 'y'"},
		{"internal", Errorf(KindInternal, Position{}, "pass dce broke operand order"), "0:0(0): internal error: pass dce broke operand order"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKind_Severity(t *testing.T) {
	if KindWarning.Severity() != SevWarning {
		t.Errorf("warning kind should map to warning severity")
	}
	for _, k := range []Kind{KindSyntax, KindSemantic, KindInternal} {
		if k.Severity() != SevError {
			t.Errorf("%s should map to error severity", k)
		}
	}
}

func TestLog_OrderAndErrors(t *testing.T) {
	var log Log
	if log.HasErrors() {
		t.Fatal("empty log must not have errors")
	}

	log.Add(Warnf(Position{Line: 1, Column: 1}, "first"))
	if log.HasErrors() {
		t.Fatal("warnings alone must not count as errors")
	}
	log.Add(Errorf(KindSemantic, Position{Line: 2, Column: 1}, "second"))
	log.Add(Warnf(Position{Line: 3, Column: 1}, "third"))

	if !log.HasErrors() {
		t.Fatal("expected HasErrors after adding an error")
	}

	var messages []string
	for _, d := range log.Items() {
		messages = append(messages, d.Message)
	}
	if diff := cmp.Diff([]string{"first", "second", "third"}, messages); diff != "" {
		t.Errorf("insertion order mismatch (-want +got):\n%s", diff)
	}

	lines := strings.Split(strings.TrimSuffix(log.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 log lines, got %d: %q", len(lines), log.String())
	}
	if len(log.Errors()) != 1 || len(log.Warnings()) != 2 {
		t.Errorf("Errors/Warnings split wrong: %d/%d", len(log.Errors()), len(log.Warnings()))
	}
}

func TestFormatWithContext(t *testing.T) {
	source := "void main() {\n\tfloat x = ;\n}"
	d := Errorf(KindSyntax, Position{Line: 2, Column: 12}, "unexpected ';'")

	got := FormatWithContext(d, source)
	if !strings.Contains(got, "  2| \tfloat x = ;") {
		t.Errorf("missing source line in:\n%s", got)
	}
	if !strings.Contains(got, "   | \t          ^") {
		t.Errorf("caret misaligned in:\n%s", got)
	}
}

func TestFormatWithContext_NoPosition(t *testing.T) {
	d := Errorf(KindInternal, Position{}, "boom")
	if got := FormatWithContext(d, "void main(){}"); got != d.String() {
		t.Errorf("expected plain string for positionless diagnostic, got %q", got)
	}
}
