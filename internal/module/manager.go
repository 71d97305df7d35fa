// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package module drives per-file evaluation, cross-module reference
// resolution, compile-time build of macro/generator code, final
// target-language build, and the content-hash build cache.
package module

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"nickandperla.net/sxc/internal/build"
	"nickandperla.net/sxc/internal/eval"
	"nickandperla.net/sxc/internal/lexer"
	"nickandperla.net/sxc/internal/output"
	"nickandperla.net/sxc/internal/store"
	"nickandperla.net/sxc/internal/token"
	"nickandperla.net/sxc/internal/writer"
)

// PreBuildHook runs before a module is built. Returning false aborts the
// build.
type PreBuildHook func(manager *Manager, mod *Module) bool

// PreBuildHookSignature is published so hooks loaded through dynamic
// registration can be validated before use. Always update both together.
const PreBuildHookSignature = "func(*module.Manager, *module.Module) bool"

// DependencyType classifies a module dependency.
type DependencyType int

const (
	DependencyImport DependencyType = iota
	DependencyLibrary
)

// Dependency is one build-system dependency of a module.
type Dependency struct {
	Type DependencyType
	Name string
}

// Module is typically associated with a single source file.
type Module struct {
	Filename        string
	Tokens          []token.Token
	GeneratedOutput *output.GeneratorOutput

	SourceOutputName string
	HeaderOutputName string

	// Build system
	Dependencies           []Dependency
	SearchDirectories      []string
	AdditionalBuildOptions []string
	// Do not build or link this module. Useful for compile-time only files
	// and for files evaluated only for their declarations.
	SkipBuild bool

	CompileTimeBuildCommand build.ProcessCommand
	CompileTimeLinkCommand  build.ProcessCommand
	BuildTimeBuildCommand   build.ProcessCommand
	BuildTimeLinkCommand    build.ProcessCommand

	PreBuildHooks []PreBuildHook

	// definitionName is the module's pseudo-invocation token, stored here
	// so its address stays stable for the manager's lifetime.
	definitionName token.Token
}

// Manager owns the shared evaluation environment and every module added to
// the build.
type Manager struct {
	Environment *eval.Environment
	Modules     []*Module

	// BuildOutputDir is where generated and built artifacts land.
	BuildOutputDir string

	// CachedCommandCrcs holds the previous run's command CRCs; any artifact
	// whose current CRC differs appears in NewCommandCrcs and is rebuilt.
	CachedCommandCrcs map[string]uint32
	NewCommandCrcs    map[string]uint32

	cache  store.MetadataStore
	logger *slog.Logger

	nameStyles writer.NameStyleSettings
	format     writer.FormatSettings

	sourceHeading string
	sourceFooter  string
	headerHeading string
	headerFooter  string

	buildCommand build.ProcessCommand
	linkCommand  build.ProcessCommand

	compileTimeLoader CompileTimeLoader
	diagWriter        io.Writer
}

// CompileTimeLoader builds and loads one compile-time definition, returning
// true once its function is registered in the environment. The default
// manager has none; embedding code supplies one (e.g. precompiled Go
// functions keyed by name).
type CompileTimeLoader func(manager *Manager, def *eval.ObjectDefinition) (bool, error)

// Option configures a Manager.
type Option func(*Manager)

// WithCache sets the artifact cache store.
func WithCache(s store.MetadataStore) Option {
	return func(m *Manager) { m.cache = s }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithOutputDir sets the build output directory.
func WithOutputDir(dir string) Option {
	return func(m *Manager) { m.BuildOutputDir = dir }
}

// WithNameStyles sets identifier case conversion per category.
func WithNameStyles(s writer.NameStyleSettings) Option {
	return func(m *Manager) { m.nameStyles = s }
}

// WithHeadings sets the verbatim heading/footer strings for emitted files.
func WithHeadings(sourceHeading, sourceFooter, headerHeading, headerFooter string) Option {
	return func(m *Manager) {
		m.sourceHeading = sourceHeading
		m.sourceFooter = sourceFooter
		m.headerHeading = headerHeading
		m.headerFooter = headerFooter
	}
}

// WithBuildCommands overrides the target build and link commands.
func WithBuildCommands(buildCmd, linkCmd build.ProcessCommand) Option {
	return func(m *Manager) {
		m.buildCommand = buildCmd
		m.linkCommand = linkCmd
	}
}

// WithCompileTimeLoader sets the loader used to build and register
// compile-time macro/generator definitions between resolver passes.
func WithCompileTimeLoader(loader CompileTimeLoader) Option {
	return func(m *Manager) { m.compileTimeLoader = loader }
}

// WithDiagnosticWriter redirects compiler diagnostics (default os.Stderr).
func WithDiagnosticWriter(w io.Writer) Option {
	return func(m *Manager) { m.diagWriter = w }
}

// NewManager initializes the shared environment with the fundamental
// generator set and loads the cached command CRCs.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		CachedCommandCrcs: make(map[string]uint32),
		NewCommandCrcs:    make(map[string]uint32),
		cache:             store.NewMemory(),
		logger:            slog.Default(),
		nameStyles:        writer.DefaultNameStyleSettings(),
		format:            writer.DefaultFormatSettings(),
		headerHeading:     "#pragma once\n\n",
		buildCommand:      build.DefaultBuildCommand(),
		linkCommand:       build.DefaultLinkCommand(),
	}
	for _, opt := range opts {
		opt(m)
	}

	envOpts := []eval.EnvironmentOption{
		eval.WithLogger(m.logger),
		eval.WithCompileTimeBuilder(m.buildCompileTimeReferences),
	}
	if m.diagWriter != nil {
		envOpts = append(envOpts, eval.WithDiagnosticWriter(m.diagWriter))
	}
	m.Environment = eval.NewEnvironment(envOpts...)
	eval.ImportFundamentalGenerators(m.Environment)

	cached, err := m.cache.All()
	if err != nil {
		return nil, fmt.Errorf("loading artifact cache: %w", err)
	}
	m.CachedCommandCrcs = cached
	return m, nil
}

// ValidatePreBuildHook checks a dynamically registered hook against the
// published signature, so mismatched hooks fail at load time instead of at
// call time.
func ValidatePreBuildHook(hook any) (PreBuildHook, error) {
	if h, ok := hook.(PreBuildHook); ok {
		return h, nil
	}
	if h, ok := hook.(func(*Manager, *Module) bool); ok {
		return h, nil
	}
	return nil, fmt.Errorf("pre-build hook has type %s, expected %s",
		reflect.TypeOf(hook), PreBuildHookSignature)
}

// LoadTokenizeValidate reads and tokenizes a source file and validates its
// parentheses. The returned sequence is immutable.
func LoadTokenizeValidate(filename string) ([]token.Token, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", filename, err)
	}
	defer f.Close()

	tokens, err := lexer.Tokenize(f, filename)
	if err != nil {
		return nil, err
	}
	if err := lexer.ValidateParentheses(tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// AddEvaluateFile tokenizes filename and runs the first evaluation pass
// over it, producing fragments, definitions, and unresolved references in
// the shared environment.
func (m *Manager) AddEvaluateFile(filename string) (*Module, error) {
	tokens, err := LoadTokenizeValidate(filename)
	if err != nil {
		return nil, err
	}
	return m.AddEvaluateTokens(filename, tokens)
}

// AddEvaluateTokens is AddEvaluateFile for an already tokenized module, for
// embedding and tests.
func (m *Manager) AddEvaluateTokens(filename string, tokens []token.Token) (*Module, error) {
	mod := &Module{
		Filename:        filename,
		Tokens:          tokens,
		GeneratedOutput: &output.GeneratorOutput{},
	}
	// Top-level references attach to a pseudo-definition per module.
	mod.definitionName = token.Token{
		Kind:     token.Symbol,
		Contents: fmt.Sprintf("<module:%s>", filename),
		Source:   filename,
		Line:     1,
	}
	moduleDef := &eval.ObjectDefinition{
		Name:         &mod.definitionName,
		Kind:         eval.ObjectFunction,
		RequiredRoot: true,
		IsRequired:   true,
		State:        eval.StateEvaluating,
		Output:       mod.GeneratedOutput,
	}
	if !m.Environment.AddObjectDefinition(moduleDef) {
		return nil, fmt.Errorf("%s: duplicate module", filename)
	}

	ctx := eval.Context{
		Scope:          eval.ScopeModule,
		Definition:     moduleDef,
		IsRequired:     true,
		Module:         mod.GeneratedOutput,
		DefinitionName: &mod.definitionName,
	}
	delimiter := output.StringOutput{Modifiers: output.ModNewlineAfter}
	numErrors := eval.EvaluateGenerateAllRecursive(m.Environment, &ctx, tokens, 0, delimiter, mod.GeneratedOutput)

	if len(moduleDef.References) > 0 {
		moduleDef.State = eval.StateHasUnresolved
	} else {
		moduleDef.State = eval.StateResolved
	}

	m.Modules = append(m.Modules, mod)
	m.logger.Info("evaluated module", "filename", filename, "numTokens", len(tokens), "errors", numErrors)

	if numErrors != 0 {
		return mod, fmt.Errorf("%s: %d evaluation errors", filename, numErrors)
	}
	return mod, nil
}

// EvaluateResolveReferences runs the fixed-point resolver over everything
// added so far.
func (m *Manager) EvaluateResolveReferences() error {
	if !eval.ResolveReferences(m.Environment) {
		return fmt.Errorf("reference resolution failed with %d errors", m.Environment.ErrorCount())
	}
	return nil
}

// buildCompileTimeReferences is the environment's CompileTimeBuilder: it
// runs each blocked definition through the compile-time loader, to
// completion, before the resolver's next pass.
func (m *Manager) buildCompileTimeReferences(env *eval.Environment, defs []*eval.ObjectDefinition) (int, error) {
	if m.compileTimeLoader == nil {
		return 0, nil
	}
	built := 0
	for _, def := range defs {
		if def.CompileTimeLoaded {
			continue
		}
		m.logger.Info("building compile-time code", "definition", def.Name.Contents, "kind", def.Kind.String())
		loaded, err := m.compileTimeLoader(m, def)
		if err != nil {
			return built, fmt.Errorf("building %s '%s': %w", def.Kind, def.Name.Contents, err)
		}
		if loaded {
			def.CompileTimeLoaded = true
			built++
		}
	}
	return built, nil
}

// outputBaseName strips directory and extension from a module filename.
func outputBaseName(filename string) string {
	base := filepath.Base(filename)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// WriteGeneratedOutput writes each module's source and header files. It
// refuses to run with a non-zero error count.
func (m *Manager) WriteGeneratedOutput() error {
	if count := m.Environment.ErrorCount(); count != 0 {
		return fmt.Errorf("refusing to write output with %d errors", count)
	}

	for _, mod := range m.Modules {
		base := outputBaseName(mod.Filename)
		mod.SourceOutputName = filepath.Join(m.BuildOutputDir, base+".cpp")
		mod.HeaderOutputName = filepath.Join(m.BuildOutputDir, base+".hpp")

		settings := writer.OutputSettings{
			SourceOutputName: mod.SourceOutputName,
			HeaderOutputName: mod.HeaderOutputName,
			SourceHeading:    fmt.Sprintf("#include \"%s.hpp\"\n%s", base, m.sourceHeading),
			SourceFooter:     m.sourceFooter,
			HeaderHeading:    m.headerHeading,
			HeaderFooter:     m.headerFooter,
		}
		if err := writer.WriteGeneratorOutput(mod.GeneratedOutput, m.nameStyles, m.format, settings); err != nil {
			return err
		}
		m.logger.Info("wrote generated output",
			"source", mod.SourceOutputName, "header", mod.HeaderOutputName)
	}

	for _, def := range m.Environment.DefinitionsInOrder() {
		if def.IsRequired && def.State == eval.StateResolved {
			def.State = eval.StateEmitted
		}
	}
	return nil
}

// Build compiles and links every module that is not SkipBuild, consulting
// the CRC cache to skip artifacts whose commands are unchanged. Built
// outputs are appended to builtOutputs. The updated CRCs are persisted
// afterwards.
func (m *Manager) Build(builtOutputs *[]string) error {
	var objects []string

	for _, mod := range m.Modules {
		if mod.SkipBuild {
			continue
		}
		for _, hook := range mod.PreBuildHooks {
			if !hook(m, mod) {
				return fmt.Errorf("%s: pre-build hook failed", mod.Filename)
			}
		}

		base := outputBaseName(mod.Filename)
		objectName := filepath.Join(m.BuildOutputDir, base+".o")

		buildCmd := m.buildCommand
		if mod.BuildTimeBuildCommand.IsSet() {
			buildCmd = mod.BuildTimeBuildCommand
		}
		arguments := buildCmd.Resolve(map[string]string{
			"source": mod.SourceOutputName,
			"object": objectName,
		})
		arguments = append(arguments, mod.AdditionalBuildOptions...)

		if err := m.runCached(objectName, buildCmd.Executable, arguments); err != nil {
			return err
		}
		objects = append(objects, objectName)
	}

	if len(objects) == 0 {
		return m.persistCrcs()
	}

	executableName := filepath.Join(m.BuildOutputDir, outputBaseName(m.Modules[0].Filename))
	arguments := m.linkCommand.Resolve(map[string]string{
		"objects":    strings.Join(objects, " "),
		"executable": executableName,
	})
	if err := m.runCached(executableName, m.linkCommand.Executable, arguments); err != nil {
		return err
	}
	*builtOutputs = append(*builtOutputs, executableName)

	return m.persistCrcs()
}

// runCached runs a command unless the artifact exists and its cached
// command CRC matches the current one.
func (m *Manager) runCached(artifact string, executable string, arguments []string) error {
	crc := build.CommandCrc(executable, arguments)

	cached, haveCached := m.CachedCommandCrcs[artifact]
	_, statErr := os.Stat(artifact)
	if haveCached && cached == crc && statErr == nil {
		m.logger.Info("artifact up to date", "artifact", artifact)
		return nil
	}

	m.NewCommandCrcs[artifact] = crc
	return build.RunProcess(m.logger, executable, arguments)
}

// persistCrcs writes changed command CRCs back to the cache store.
func (m *Manager) persistCrcs() error {
	for artifact, crc := range m.NewCommandCrcs {
		if err := m.cache.SetCommandCrc(artifact, crc); err != nil {
			return fmt.Errorf("persisting artifact cache: %w", err)
		}
		m.CachedCommandCrcs[artifact] = crc
	}
	m.NewCommandCrcs = make(map[string]uint32)
	return nil
}

// Destroy tears down the environment (invalidating every token pointer it
// handed out) and closes the cache store.
func (m *Manager) Destroy() error {
	m.Environment.DestroyInvalidateTokens()
	return m.cache.Close()
}
