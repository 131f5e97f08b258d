// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package snapshot_test runs every shader in testdata/in/ through both
// profiles and checks the results.
//
// Each output must compile again and reach a fixed point on the second
// pass. Outputs with a golden file under testdata/golden/{desktop,es}/
// are also compared to it.
//
// To regenerate golden files after intentional changes:
//
//	UPDATE_GOLDEN=1 go test ./snapshot/...
package snapshot_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/glslopt"
)

// shaderFile is an input shader loaded from disk.
type shaderFile struct {
	name   string
	stage  glslopt.Stage
	source string
}

var profiles = []struct {
	dir      string
	embedded bool
}{
	{"desktop", false},
	{"es", true},
}

func TestSnapshots(t *testing.T) {
	shaders := loadInputShaders(t, filepath.Join("testdata", "in"))
	if len(shaders) == 0 {
		t.Fatal("no input shaders found in testdata/in/")
	}

	for _, p := range profiles {
		c := glslopt.NewCompiler(p.embedded)
		t.Run(p.dir, func(t *testing.T) {
			for _, shader := range shaders {
				t.Run(shader.name, func(t *testing.T) {
					out := compile(t, c, shader.stage, shader.source)

					again := compile(t, c, shader.stage, out)
					if diff := cmp.Diff(out, again); diff != "" {
						t.Errorf("second pass changed output (-first +second):\n%s", diff)
					}

					compareGolden(t, filepath.Join("testdata", "golden", p.dir, shader.name), out)
				})
			}
		})
		if err := c.Dispose(); err != nil {
			t.Errorf("dispose %s compiler: %v", p.dir, err)
		}
	}
}

// TestRawSnapshots checks that the unoptimized reprint is itself valid
// input.
func TestRawSnapshots(t *testing.T) {
	shaders := loadInputShaders(t, filepath.Join("testdata", "in"))
	for _, p := range profiles {
		opts := glslopt.DefaultOptions()
		opts.Embedded = p.embedded
		opts.Optimize = false
		c, err := glslopt.NewCompilerWithOptions(opts)
		if err != nil {
			t.Fatal(err)
		}
		for _, shader := range shaders {
			t.Run(p.dir+"/"+shader.name, func(t *testing.T) {
				raw := compile(t, c, shader.stage, shader.source)
				compile(t, c, shader.stage, raw)
			})
		}
	}
}

func loadInputShaders(t *testing.T, dir string) []shaderFile {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read input directory %q: %v", dir, err)
	}

	var shaders []shaderFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var stage glslopt.Stage
		switch filepath.Ext(entry.Name()) {
		case ".vert":
			stage = glslopt.VertexShader
		case ".frag":
			stage = glslopt.FragmentShader
		default:
			continue
		}
		data, readErr := os.ReadFile(filepath.Join(dir, entry.Name()))
		if readErr != nil {
			t.Fatalf("read shader %q: %v", entry.Name(), readErr)
		}
		shaders = append(shaders, shaderFile{name: entry.Name(), stage: stage, source: string(data)})
	}
	slices.SortFunc(shaders, func(a, b shaderFile) int { return strings.Compare(a.name, b.name) })
	return shaders
}

func compile(t *testing.T, c *glslopt.Compiler, stage glslopt.Stage, source string) string {
	t.Helper()
	sh, err := glslopt.NewShader(c, stage, source)
	if err != nil {
		t.Fatal(err)
	}
	defer sh.Dispose()
	if ok, _ := sh.Compiled(); !ok {
		log, _ := sh.Log()
		t.Fatalf("compile failed:\n%s\nsource:\n%s", log, source)
	}
	out, _ := sh.Output()
	return out
}

// compareGolden compares actual with the golden file at path. Shaders
// without a golden file are only checked for stability.
func compareGolden(t *testing.T, path, actual string) {
	t.Helper()

	if os.Getenv("UPDATE_GOLDEN") != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0o644); err != nil {
			t.Fatalf("write golden file: %v", err)
		}
		t.Logf("updated golden file: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		t.Fatalf("read golden file %s: %v", path, err)
	}

	// Git may check files out with \r\n on Windows.
	want := strings.ReplaceAll(string(expected), "\r\n", "\n")
	if diff := cmp.Diff(want, actual); diff != "" {
		t.Errorf("output differs from golden %s (-want +got):\n%s", path, diff)
	}
}
