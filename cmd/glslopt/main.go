// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Command glslopt compiles and optimizes GLSL shaders.
//
// Usage:
//
//	glslopt compile [flags] <files...>
//	glslopt version
//
// Examples:
//
//	glslopt compile shader.frag                  # Optimized output to stdout
//	glslopt compile --es --out-dir out *.vert    # GLSL ES, one file per input
//	glslopt compile --raw --stage fragment - < s # Reprint stdin unoptimized
package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "glslopt",
		Short:         "GLSL shader optimizer",
		Long:          `glslopt compiles desktop GLSL 1.20 and GLSL ES 1.00 shaders and writes optimized source.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCompileCmd())
	root.AddCommand(newVersionCmd())

	root.PersistentFlags().String("color", "auto", "colorize diagnostics (auto|on|off)")
	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// useColor resolves the --color flag for output written to f.
func useColor(cmd *cobra.Command, f *os.File) bool {
	mode, _ := cmd.Root().PersistentFlags().GetString("color")
	switch mode {
	case "on", "always":
		return true
	case "off", "never":
		return false
	}
	return isTerminal(f)
}
