// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"nickandperla.net/sxc/internal/output"
	"nickandperla.net/sxc/internal/token"
)

// ObjectKind classifies a top-level definition.
type ObjectKind int

const (
	ObjectFunction ObjectKind = iota
	ObjectMacro
	ObjectGenerator
	ObjectVariable
)

// String returns the string representation of an object kind.
func (k ObjectKind) String() string {
	switch k {
	case ObjectFunction:
		return "function"
	case ObjectMacro:
		return "macro"
	case ObjectGenerator:
		return "generator"
	case ObjectVariable:
		return "variable"
	}
	return "UNKNOWN"
}

// DefinitionState tracks a definition through evaluation and writing.
type DefinitionState int

const (
	// StateDeclared means the name is known but the body is not evaluated.
	StateDeclared DefinitionState = iota
	// StateEvaluating means the owning generator is in progress. Re-entry
	// while in this state is a cycle error.
	StateEvaluating
	// StateHasUnresolved means fragments are emitted but references pend.
	StateHasUnresolved
	// StateResolved means all splice slots are filled.
	StateResolved
	// StateEmitted means the writer has written the definition.
	StateEmitted
	// StateErrored is terminal failure.
	StateErrored
)

// MacroFunc is compile-time code that rewrites the invocation at start into
// a fresh token sequence. Produced tokens must be interned in the
// environment; returning a view of stack-local storage that later moves is
// forbidden.
type MacroFunc func(env *Environment, ctx *Context, tokens []token.Token, start int) ([]token.Token, bool)

// GeneratorFunc is compile-time code that emits target-language fragments
// for the invocation at start directly into out. The generator owns
// recursion into sub-expressions with appropriate sub-contexts and emits
// all structural delimiters itself.
type GeneratorFunc func(env *Environment, ctx *Context, tokens []token.Token, start int, out *output.GeneratorOutput) bool

// CompileTimeBuilder builds and loads the compile-time code behind
// macro/generator definitions discovered in source. It returns how many of
// the given definitions were loaded. The module manager supplies this; the
// resolver calls it between passes.
type CompileTimeBuilder func(env *Environment, defs []*ObjectDefinition) (int, error)

// ObjectDefinition is a top-level object being generated: a function,
// variable, macro, or generator. Created by the first invocation that
// defines it, mutated only by its owning generator, destroyed with the
// environment.
type ObjectDefinition struct {
	Name *token.Token
	Kind ObjectKind

	// RequiredRoot marks a definition required regardless of references
	// (the module pseudo-definition and module-level functions).
	// IsRequired is recomputed from the roots on every resolver pass; it
	// must not be cached across passes because reachability changes as
	// references resolve.
	RequiredRoot bool
	IsRequired   bool

	State DefinitionState
	Output     *output.GeneratorOutput
	References []*ObjectReference

	// CompileTimeLoaded is set once a macro/generator definition's code has
	// been built and its function registered.
	CompileTimeLoaded bool

	// InvocationTokens/StartIndex locate the defining form, so the
	// compile-time builder can reach the definition's body.
	InvocationTokens []token.Token
	StartIndex       int
}

// ObjectReference is a symbol use-site that could not be bound at the
// moment of emission. The splice slot is reserved in the referrer's streams
// when the reference is recorded so fragment order is preserved once it
// resolves.
type ObjectReference struct {
	Name     string
	Token    *token.Token
	Tokens   []token.Token
	Start    int
	Context  Context
	Splice   *output.GeneratorOutput
	Referrer *ObjectDefinition
	Resolved bool
}

// Environment owns all mutable evaluation state: definitions, the macro and
// generator registries, the unique-symbol counter, and the pool of
// macro-produced token sequences. Only the evaluator mutates it.
type Environment struct {
	definitions     map[string]*ObjectDefinition
	definitionOrder []string

	macros     map[string]MacroFunc
	generators map[string]GeneratorFunc

	nextUniqueID     int
	contextUniqueIDs map[string]int

	// macroTokenPool is append-only. Each expansion owns its sequence;
	// sequences never move once interned, so indices and pointers into them
	// stay valid until DestroyInvalidateTokens.
	macroTokenPool [][]token.Token

	diag       io.Writer
	errorCount int

	compileTimeBuilder CompileTimeBuilder
	logger             *slog.Logger

	macroDepth int
	destroyed  bool
}

// EnvironmentOption configures an Environment.
type EnvironmentOption func(*Environment)

// WithDiagnosticWriter redirects diagnostics (default os.Stderr).
func WithDiagnosticWriter(w io.Writer) EnvironmentOption {
	return func(e *Environment) { e.diag = w }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) EnvironmentOption {
	return func(e *Environment) { e.logger = l }
}

// WithCompileTimeBuilder sets the hook the resolver uses to build and load
// compile-time macro/generator code between passes.
func WithCompileTimeBuilder(b CompileTimeBuilder) EnvironmentOption {
	return func(e *Environment) { e.compileTimeBuilder = b }
}

// NewEnvironment creates an empty environment.
func NewEnvironment(opts ...EnvironmentOption) *Environment {
	e := &Environment{
		definitions:      make(map[string]*ObjectDefinition),
		macros:           make(map[string]MacroFunc),
		generators:       make(map[string]GeneratorFunc),
		contextUniqueIDs: make(map[string]int),
		diag:             os.Stderr,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddObjectDefinition registers a definition. A duplicate name is an error
// blamed at the new definition, with a note at the prior one.
func (e *Environment) AddObjectDefinition(def *ObjectDefinition) bool {
	name := def.Name.Contents
	if existing, ok := e.definitions[name]; ok {
		e.ErrorAtf(def.Name, "multiple definitions of '%s'", name)
		e.NoteAt(existing.Name, "previous definition is here")
		return false
	}
	e.definitions[name] = def
	e.definitionOrder = append(e.definitionOrder, name)
	return true
}

// GetObjectDefinition looks up a definition by name.
func (e *Environment) GetObjectDefinition(name string) *ObjectDefinition {
	return e.definitions[name]
}

// DefinitionsInOrder returns all definitions in declaration order. The
// resolver relies on this for deterministic diagnostic ordering.
func (e *Environment) DefinitionsInOrder() []*ObjectDefinition {
	defs := make([]*ObjectDefinition, 0, len(e.definitionOrder))
	for _, name := range e.definitionOrder {
		defs = append(defs, e.definitions[name])
	}
	return defs
}

// RegisterMacro adds a macro to the registry.
func (e *Environment) RegisterMacro(name string, f MacroFunc) {
	e.macros[name] = f
}

// RegisterGenerator adds a generator to the registry.
func (e *Environment) RegisterGenerator(name string, f GeneratorFunc) {
	e.generators[name] = f
}

// Macro looks up a macro by name.
func (e *Environment) Macro(name string) MacroFunc {
	return e.macros[name]
}

// Generator looks up a generator by name.
func (e *Environment) Generator(name string) GeneratorFunc {
	return e.generators[name]
}

// InternTokens takes ownership of a macro-produced token sequence. The
// returned slice is stable for the lifetime of the environment.
func (e *Environment) InternTokens(tokens []token.Token) []token.Token {
	owned := make([]token.Token, len(tokens))
	copy(owned, tokens)
	e.macroTokenPool = append(e.macroTokenPool, owned)
	return owned
}

// ErrorAt writes a token-pinpointed diagnostic immediately and bumps the
// error count.
func (e *Environment) ErrorAt(tok *token.Token, message string) {
	fmt.Fprintf(e.diag, "%s: error: %s\n", tok.Position(), message)
	e.errorCount++
}

// ErrorAtf is ErrorAt with formatting.
func (e *Environment) ErrorAtf(tok *token.Token, format string, args ...any) {
	e.ErrorAt(tok, fmt.Sprintf(format, args...))
}

// NoteAt writes a related-token note. Notes do not count as errors.
func (e *Environment) NoteAt(tok *token.Token, message string) {
	fmt.Fprintf(e.diag, "%s: note: %s\n", tok.Position(), message)
}

// ErrorCount returns the number of errors reported so far.
func (e *Environment) ErrorCount() int {
	return e.errorCount
}

// Logger returns the operational logger.
func (e *Environment) Logger() *slog.Logger {
	return e.logger
}

// DestroyInvalidateTokens tears the environment down. Every token pointer
// the environment handed out is invalid after this call; callers must not
// retain any.
func (e *Environment) DestroyInvalidateTokens() {
	e.definitions = nil
	e.definitionOrder = nil
	e.macros = nil
	e.generators = nil
	e.macroTokenPool = nil
	e.contextUniqueIDs = nil
	e.destroyed = true
}
