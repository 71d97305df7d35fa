// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"strings"
	"testing"

	"nickandperla.net/sxc/internal/output"
	"nickandperla.net/sxc/internal/token"
)

func TestForwardReference(t *testing.T) {
	// f calls g, defined later in the same module. The first pass records
	// an unresolved reference; the resolver's next pass fills the splice
	// slot reserved at record time.
	var diag strings.Builder
	env, out, numErrors := testModule(t,
		"(defun f () (g))\n(defun g () (return 0))", &diag, nil)
	if numErrors != 0 {
		t.Fatalf("unexpected errors:\n%s", diag.String())
	}

	f := env.GetObjectDefinition("f")
	if f == nil || len(f.References) != 1 {
		t.Fatalf("expected one recorded reference on f, got %+v", f)
	}
	if f.References[0].Resolved {
		t.Error("reference should be unresolved before the resolver runs")
	}

	if !ResolveReferences(env) {
		t.Fatalf("resolution failed:\n%s", diag.String())
	}
	if !f.References[0].Resolved {
		t.Error("reference to g should have resolved")
	}
	if f.State != StateResolved {
		t.Errorf("f should be resolved, state=%d", f.State)
	}

	src := sourceText(out)
	if !strings.Contains(src, "g();") {
		t.Errorf("call to g missing from f's body:\n%s", src)
	}
}

func TestUnresolvedReferenceReported(t *testing.T) {
	var diag strings.Builder
	env, _, numErrors := testModule(t, "(defun f () (h))", &diag, nil)
	if numErrors != 0 {
		t.Fatalf("unexpected evaluation errors:\n%s", diag.String())
	}

	if ResolveReferences(env) {
		t.Fatal("resolution should have failed")
	}
	got := diag.String()
	if !strings.Contains(got, "error: unresolved reference 'h'") {
		t.Errorf("missing unresolved diagnostic:\n%s", got)
	}
	if !strings.Contains(got, "test.sxc:1:") {
		t.Errorf("diagnostic should carry source coordinates:\n%s", got)
	}
	// Reported exactly once per run.
	if strings.Count(got, "unresolved reference 'h'") != 1 {
		t.Errorf("unresolved reference reported more than once:\n%s", got)
	}
	if env.GetObjectDefinition("f").State != StateErrored {
		t.Error("f should be in the errored state")
	}
}

func TestUnrequiredDefinitionDropped(t *testing.T) {
	// A definition not reachable from a required root is silently dropped;
	// its unresolved references must not be reported.
	var diag strings.Builder
	env := NewEnvironment(WithDiagnosticWriter(&diag))

	nameTok := &token.Token{Kind: token.Symbol, Contents: "orphan", Source: "test.sxc", Line: 1}
	useTok := &token.Token{Kind: token.Symbol, Contents: "missing", Source: "test.sxc", Line: 1}
	orphan := &ObjectDefinition{
		Name: nameTok, Kind: ObjectFunction,
		State: StateHasUnresolved, Output: &output.GeneratorOutput{},
	}
	orphan.References = append(orphan.References, &ObjectReference{
		Name: "missing", Token: useTok, Splice: &output.GeneratorOutput{}, Referrer: orphan,
	})
	env.AddObjectDefinition(orphan)

	if !ResolveReferences(env) {
		t.Fatalf("resolution should succeed when only unrequired definitions dangle:\n%s", diag.String())
	}
	if diag.Len() != 0 {
		t.Errorf("no diagnostics expected, got:\n%s", diag.String())
	}
}

func TestRequiredPropagation(t *testing.T) {
	var diag strings.Builder
	env, _, numErrors := testModule(t,
		"(defun f () (g))\n(defun g () (return 0))", &diag, nil)
	if numErrors != 0 {
		t.Fatalf("unexpected errors:\n%s", diag.String())
	}
	if !ResolveReferences(env) {
		t.Fatalf("resolution failed:\n%s", diag.String())
	}
	if !env.GetObjectDefinition("g").IsRequired {
		t.Error("g is referenced from a required root and must be required")
	}
}

func TestCompileTimeBuildLoadsMacro(t *testing.T) {
	// answer is declared with defmacro; the invocation of answer cannot
	// resolve until the compile-time builder loads it between passes.
	var diag strings.Builder
	var built []string
	env, out, numErrors := testModule(t,
		"(defmacro answer ())\n(defun main () (answer))", &diag, nil)
	if numErrors != 0 {
		t.Fatalf("unexpected errors:\n%s", diag.String())
	}

	// Wire the builder after the fact, as the module manager does.
	env.compileTimeBuilder = func(env *Environment, defs []*ObjectDefinition) (int, error) {
		for _, def := range defs {
			built = append(built, def.Name.Contents)
			env.RegisterMacro(def.Name.Contents, func(env *Environment, ctx *Context, tokens []token.Token, start int) ([]token.Token, bool) {
				open := tokens[start]
				return []token.Token{
					open,
					{Kind: token.Symbol, Contents: "return", Source: open.Source, Line: open.Line},
					{Kind: token.Symbol, Contents: "42", Source: open.Source, Line: open.Line},
					tokens[token.FindCloseParen(tokens, start)],
				}, true
			})
		}
		return len(defs), nil
	}

	if !ResolveReferences(env) {
		t.Fatalf("resolution failed:\n%s", diag.String())
	}
	if len(built) != 1 || built[0] != "answer" {
		t.Fatalf("expected exactly one compile-time build of 'answer', got %v", built)
	}
	if src := sourceText(out); !strings.Contains(src, "return 42;") {
		t.Errorf("late-loaded macro expansion missing:\n%s", src)
	}
}

func TestResolutionTerminatesWithoutBuilder(t *testing.T) {
	// With no compile-time builder, a reference to an unbuilt macro cannot
	// make progress; the loop must still terminate and report.
	var diag strings.Builder
	env, _, numErrors := testModule(t,
		"(defmacro answer ())\n(defun main () (answer))", &diag, nil)
	if numErrors != 0 {
		t.Fatalf("unexpected errors:\n%s", diag.String())
	}
	if ResolveReferences(env) {
		t.Fatal("resolution should fail without a builder")
	}
	if !strings.Contains(diag.String(), "unresolved reference 'answer'") {
		t.Errorf("expected unresolved diagnostic:\n%s", diag.String())
	}
}

func TestNestedCallArguments(t *testing.T) {
	// A resolved call whose arguments contain another deferred call: the
	// inner reference is discovered at resolution time and handled on a
	// later pass.
	var diag strings.Builder
	env, out, numErrors := testModule(t,
		"(defun f () (return (g (h))))\n(defun g (x int &return int) (return x))\n(defun h () (return 1))",
		&diag, nil)
	if numErrors != 0 {
		t.Fatalf("unexpected errors:\n%s", diag.String())
	}
	if !ResolveReferences(env) {
		t.Fatalf("resolution failed:\n%s", diag.String())
	}
	if src := sourceText(out); !strings.Contains(src, "g(h())") {
		t.Errorf("nested call missing:\n%s", src)
	}
}

func TestUniqueSymbolMinting(t *testing.T) {
	env := NewEnvironment()
	a := MakeUniqueSymbolName(env, "tmp")
	b := MakeUniqueSymbolName(env, "tmp")
	if a == b {
		t.Errorf("consecutive unique names must differ: %q", a)
	}
	c := MakeUniqueSymbolName(env, "other")
	if c == a || c == b {
		t.Errorf("unique names must differ across prefixes: %q", c)
	}
}

func TestContextUniqueSymbolMintingIsPure(t *testing.T) {
	makeCtx := func(env *Environment) *Context {
		name := &token.Token{Kind: token.Symbol, Contents: "my-func", Source: "test.sxc", Line: 1}
		return &Context{
			Scope:      ScopeBody,
			Definition: &ObjectDefinition{Name: name},
		}
	}

	// Same environment state, same context: same string.
	env1 := NewEnvironment()
	env2 := NewEnvironment()
	got1 := MakeContextUniqueSymbolName(env1, makeCtx(env1), "tmp")
	got2 := MakeContextUniqueSymbolName(env2, makeCtx(env2), "tmp")
	if got1 != got2 {
		t.Errorf("context-unique minting is not stable: %q vs %q", got1, got2)
	}

	// Successive mints in the same context still differ.
	again := MakeContextUniqueSymbolName(env1, makeCtx(env1), "tmp")
	if again == got1 {
		t.Errorf("successive mints must differ: %q", again)
	}
}
