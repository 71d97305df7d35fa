// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package sxc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nickandperla.net/sxc/internal/eval"
	"nickandperla.net/sxc/internal/module"
	"nickandperla.net/sxc/internal/token"
)

func writeSource(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.sxc")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing source: %v", err)
	}
	return path
}

func newTestRuntime(t *testing.T, diag *strings.Builder, extra ...Option) (*Runtime, string) {
	t.Helper()
	outDir := t.TempDir()
	opts := append([]Option{
		WithMemoryCache(),
		WithOutputDir(outDir),
		WithDiagnosticWriter(diag),
	}, extra...)
	runtime, err := New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { runtime.Close() })
	return runtime, outDir
}

func TestTranspileMinimalProgram(t *testing.T) {
	var diag strings.Builder
	runtime, outDir := newTestRuntime(t, &diag)

	src := writeSource(t, "(defun main () (return 0))")
	if err := runtime.TranspileFile(src); err != nil {
		t.Fatalf("TranspileFile failed: %v\n%s", err, diag.String())
	}

	source, err := os.ReadFile(filepath.Join(outDir, "prog.cpp"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.HasPrefix(string(source), "#include \"prog.hpp\"\n") {
		t.Errorf("source missing header include:\n%s", source)
	}
	if !strings.Contains(string(source), "int main()") || !strings.Contains(string(source), "return 0;") {
		t.Errorf("unexpected source:\n%s", source)
	}

	header, err := os.ReadFile(filepath.Join(outDir, "prog.hpp"))
	if err != nil {
		t.Fatalf("reading header: %v", err)
	}
	if !strings.Contains(string(header), "int main();") {
		t.Errorf("header missing declaration:\n%s", header)
	}
}

func squareMacro(env *eval.Environment, ctx *eval.Context, tokens []token.Token, start int) ([]token.Token, bool) {
	end := token.FindCloseParen(tokens, start)
	argIndex := token.GetArgument(tokens, start, 1, end)
	if argIndex == token.None {
		env.ErrorAt(&tokens[start+1], "square expects one argument")
		return nil, false
	}
	produced := []token.Token{tokens[start]}
	produced = append(produced, token.Token{
		Kind: token.Symbol, Contents: "*",
		Source: tokens[start].Source, Line: tokens[start].Line,
	})
	produced = token.AppendTokenExpression(produced, tokens, argIndex)
	produced = token.AppendTokenExpression(produced, tokens, argIndex)
	return append(produced, tokens[end]), true
}

func TestConfiguredMacro(t *testing.T) {
	var diag strings.Builder
	runtime, outDir := newTestRuntime(t, &diag, WithMacro("square", squareMacro))

	src := writeSource(t, "(defun main () (return (square 5)))")
	if err := runtime.TranspileFile(src); err != nil {
		t.Fatalf("TranspileFile failed: %v\n%s", err, diag.String())
	}

	source, err := os.ReadFile(filepath.Join(outDir, "prog.cpp"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(source), "return (5 * 5);") {
		t.Errorf("macro rewrite missing:\n%s", source)
	}
}

func TestForwardReferenceAcrossPasses(t *testing.T) {
	var diag strings.Builder
	runtime, outDir := newTestRuntime(t, &diag)

	if err := runtime.AddString("(defun f () (g))\n(defun g () (return 0))", "fwd.sxc"); err != nil {
		t.Fatalf("AddString failed: %v\n%s", err, diag.String())
	}
	if err := runtime.Resolve(); err != nil {
		t.Fatalf("Resolve failed: %v\n%s", err, diag.String())
	}
	if err := runtime.Write(); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	source, err := os.ReadFile(filepath.Join(outDir, "fwd.cpp"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(source), "g();") {
		t.Errorf("resolved call missing:\n%s", source)
	}
}

func TestUnresolvedReferenceFails(t *testing.T) {
	var diag strings.Builder
	runtime, outDir := newTestRuntime(t, &diag)

	if err := runtime.AddString("(defun f () (h))", "miss.sxc"); err != nil {
		t.Fatalf("AddString failed: %v", err)
	}
	if err := runtime.Resolve(); err == nil {
		t.Fatal("Resolve should have failed")
	}
	if got := diag.String(); !strings.Contains(got, "miss.sxc:1:") ||
		!strings.Contains(got, "error: unresolved reference 'h'") {
		t.Errorf("unexpected diagnostics:\n%s", got)
	}
	if runtime.ErrorCount() == 0 {
		t.Error("error count should be non-zero")
	}

	// The writer must not run.
	if err := runtime.Write(); err == nil {
		t.Fatal("Write should refuse after errors")
	}
	if _, err := os.Stat(filepath.Join(outDir, "miss.cpp")); err == nil {
		t.Error("no output should exist")
	}
}

func TestMismatchedParens(t *testing.T) {
	var diag strings.Builder
	runtime, _ := newTestRuntime(t, &diag)

	err := runtime.AddString("(defun f ()", "bad.sxc")
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if !strings.Contains(err.Error(), "bad.sxc:1:1") || !strings.Contains(err.Error(), "unmatched open") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestChainedMacros(t *testing.T) {
	// m expands to (n); n expands to a bare statement. Fragments from n
	// appear at m's original call site.
	var diag strings.Builder
	runtime, outDir := newTestRuntime(t, &diag,
		WithMacro("m", func(env *eval.Environment, ctx *eval.Context, tokens []token.Token, start int) ([]token.Token, bool) {
			open := tokens[start]
			return []token.Token{
				open,
				{Kind: token.Symbol, Contents: "n", Source: open.Source, Line: open.Line},
				tokens[token.FindCloseParen(tokens, start)],
			}, true
		}),
		WithMacro("n", func(env *eval.Environment, ctx *eval.Context, tokens []token.Token, start int) ([]token.Token, bool) {
			open := tokens[start]
			return []token.Token{
				open,
				{Kind: token.Symbol, Contents: "return", Source: open.Source, Line: open.Line},
				{Kind: token.Symbol, Contents: "7", Source: open.Source, Line: open.Line},
				tokens[token.FindCloseParen(tokens, start)],
			}, true
		}))

	src := writeSource(t, "(defun main () (m))")
	if err := runtime.TranspileFile(src); err != nil {
		t.Fatalf("TranspileFile failed: %v\n%s", err, diag.String())
	}
	source, err := os.ReadFile(filepath.Join(outDir, "prog.cpp"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(source), "return 7;") {
		t.Errorf("chained expansion missing:\n%s", source)
	}
}

func TestConfigAppliesNameStyle(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "sxc.cue")
	err := os.WriteFile(configPath, []byte(`
writer: {
	function_name_style: "camel"
	header_footer: "// end of header\n"
}
`), 0o644)
	if err != nil {
		t.Fatalf("writing config: %v", err)
	}

	var diag strings.Builder
	runtime, outDir := newTestRuntime(t, &diag, WithConfigFiles(configPath))

	src := writeSource(t, "(defun my-entry-point () (return 0))")
	if err := runtime.TranspileFile(src); err != nil {
		t.Fatalf("TranspileFile failed: %v\n%s", err, diag.String())
	}

	header, err := os.ReadFile(filepath.Join(outDir, "prog.hpp"))
	if err != nil {
		t.Fatalf("reading header: %v", err)
	}
	if !strings.Contains(string(header), "void myEntryPoint();") {
		t.Errorf("camel style not applied:\n%s", header)
	}
	if !strings.HasSuffix(string(header), "// end of header\n") {
		t.Errorf("header footer missing:\n%s", header)
	}
}

func TestPreBuildHook(t *testing.T) {
	hookRan := false
	var diag strings.Builder
	runtime, _ := newTestRuntime(t, &diag,
		WithPreBuildHook(func(m *module.Manager, mod *module.Module) bool {
			hookRan = true
			return false
		}))

	src := writeSource(t, "(defun main () (return 0))")
	if err := runtime.TranspileFile(src); err != nil {
		t.Fatalf("TranspileFile failed: %v\n%s", err, diag.String())
	}

	// A false-returning hook aborts the build before any command runs.
	if _, err := runtime.Build(); err == nil {
		t.Fatal("Build should have been aborted by the hook")
	} else if !strings.Contains(err.Error(), "pre-build hook") {
		t.Errorf("unexpected error: %v", err)
	}
	if !hookRan {
		t.Error("hook was never invoked")
	}
}

func TestCompileTimeLoaderHook(t *testing.T) {
	// A macro declared in source is built and loaded between resolver
	// passes through the compile-time loader.
	var diag strings.Builder
	runtime, outDir := newTestRuntime(t, &diag,
		WithCompileTimeLoader(func(m *module.Manager, def *eval.ObjectDefinition) (bool, error) {
			m.Environment.RegisterMacro(def.Name.Contents,
				func(env *eval.Environment, ctx *eval.Context, tokens []token.Token, start int) ([]token.Token, bool) {
					open := tokens[start]
					return []token.Token{
						open,
						{Kind: token.Symbol, Contents: "return", Source: open.Source, Line: open.Line},
						{Kind: token.Symbol, Contents: "42", Source: open.Source, Line: open.Line},
						tokens[token.FindCloseParen(tokens, start)],
					}, true
				})
			return true, nil
		}))

	src := writeSource(t, "(defmacro answer ())\n(defun main () (answer))")
	if err := runtime.TranspileFile(src); err != nil {
		t.Fatalf("TranspileFile failed: %v\n%s", err, diag.String())
	}
	source, err := os.ReadFile(filepath.Join(outDir, "prog.cpp"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(source), "return 42;") {
		t.Errorf("late-loaded macro expansion missing:\n%s", source)
	}
}
