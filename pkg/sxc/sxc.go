// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package sxc

import (
	"fmt"
	"io"
	"log/slog"

	"nickandperla.net/sxc/internal/build"
	"nickandperla.net/sxc/internal/config"
	"nickandperla.net/sxc/internal/eval"
	"nickandperla.net/sxc/internal/lexer"
	"nickandperla.net/sxc/internal/module"
	"nickandperla.net/sxc/internal/store"
	"nickandperla.net/sxc/internal/writer"
)

// Runtime is the sxc transpiler runtime: one shared environment and module
// manager configured through options and CUE config files.
type Runtime struct {
	manager *module.Manager

	cache             store.MetadataStore
	configFiles       []string
	macros            map[string]eval.MacroFunc
	generators        map[string]eval.GeneratorFunc
	compileTimeLoader module.CompileTimeLoader
	preBuildHooks     []module.PreBuildHook
	outputDir         string
	logger            *slog.Logger
	diagWriter        io.Writer
	nameStyles        *writer.NameStyleSettings
}

// New creates a new runtime with the given options layered over the CUE
// configuration.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{
		macros:     make(map[string]eval.MacroFunc),
		generators: make(map[string]eval.GeneratorFunc),
	}
	for _, opt := range opts {
		opt(r)
	}

	loader := config.NewLoader(r.configFiles, config.Schema)

	managerOpts := []module.Option{}
	if r.cache == nil {
		if path := config.First[string](loader, "cache.path"); path != "" {
			s, err := store.NewSQLite(path)
			if err != nil {
				return nil, fmt.Errorf("opening artifact cache: %w", err)
			}
			r.cache = s
		}
	}
	if r.cache != nil {
		managerOpts = append(managerOpts, module.WithCache(r.cache))
	}
	if r.logger != nil {
		managerOpts = append(managerOpts, module.WithLogger(r.logger))
	}
	if r.diagWriter != nil {
		managerOpts = append(managerOpts, module.WithDiagnosticWriter(r.diagWriter))
	}
	if r.compileTimeLoader != nil {
		managerOpts = append(managerOpts, module.WithCompileTimeLoader(r.compileTimeLoader))
	}

	outputDir := r.outputDir
	if outputDir == "" {
		outputDir = config.First[string](loader, "build.output_dir")
	}
	if outputDir != "" {
		managerOpts = append(managerOpts, module.WithOutputDir(outputDir))
	}

	nameStyles := writer.DefaultNameStyleSettings()
	if r.nameStyles != nil {
		nameStyles = *r.nameStyles
	} else {
		assignStyle := func(path string, target *writer.NameStyle) error {
			raw := config.First[string](loader, path)
			if raw == "" {
				return nil
			}
			style, ok := writer.ParseNameStyle(raw)
			if !ok {
				return fmt.Errorf("unknown name style %q at %s", raw, path)
			}
			*target = style
			return nil
		}
		if err := assignStyle("writer.function_name_style", &nameStyles.FunctionNameStyle); err != nil {
			return nil, err
		}
		if err := assignStyle("writer.type_name_style", &nameStyles.TypeNameStyle); err != nil {
			return nil, err
		}
		if err := assignStyle("writer.variable_name_style", &nameStyles.VariableNameStyle); err != nil {
			return nil, err
		}
	}
	managerOpts = append(managerOpts, module.WithNameStyles(nameStyles))

	headerHeading := config.First[string](loader, "writer.header_heading")
	if headerHeading == "" {
		headerHeading = "#pragma once\n\n"
	}
	managerOpts = append(managerOpts, module.WithHeadings(
		config.First[string](loader, "writer.source_heading"),
		config.First[string](loader, "writer.source_footer"),
		headerHeading,
		config.First[string](loader, "writer.header_footer"),
	))

	type commandConfig struct {
		Executable string   `json:"executable"`
		Arguments  []string `json:"arguments"`
	}
	buildCmd := build.DefaultBuildCommand()
	linkCmd := build.DefaultLinkCommand()
	if c := (config.First[commandConfig](loader, "build.build_command")); c.Executable != "" {
		buildCmd = build.ProcessCommand{Executable: c.Executable, Arguments: c.Arguments}
	}
	if c := (config.First[commandConfig](loader, "build.link_command")); c.Executable != "" {
		linkCmd = build.ProcessCommand{Executable: c.Executable, Arguments: c.Arguments}
	}
	managerOpts = append(managerOpts, module.WithBuildCommands(buildCmd, linkCmd))

	manager, err := module.NewManager(managerOpts...)
	if err != nil {
		return nil, err
	}
	r.manager = manager

	for name, f := range r.macros {
		manager.Environment.RegisterMacro(name, f)
	}
	for name, f := range r.generators {
		manager.Environment.RegisterGenerator(name, f)
	}
	return r, nil
}

// Manager exposes the underlying module manager for advanced embedding.
func (r *Runtime) Manager() *module.Manager {
	return r.manager
}

// AddFile evaluates a source file into the shared environment. Hooks
// registered with WithPreBuildHook are attached to the module.
func (r *Runtime) AddFile(filename string) error {
	mod, err := r.manager.AddEvaluateFile(filename)
	if mod != nil {
		mod.PreBuildHooks = append(mod.PreBuildHooks, r.preBuildHooks...)
	}
	return err
}

// AddString evaluates in-memory source under the given module name.
func (r *Runtime) AddString(src string, name string) error {
	tokens, err := lexer.TokenizeString(src, name)
	if err != nil {
		return err
	}
	if err := lexer.ValidateParentheses(tokens); err != nil {
		return err
	}
	mod, err := r.manager.AddEvaluateTokens(name, tokens)
	if mod != nil {
		mod.PreBuildHooks = append(mod.PreBuildHooks, r.preBuildHooks...)
	}
	return err
}

// Resolve runs fixed-point reference resolution over everything added.
func (r *Runtime) Resolve() error {
	return r.manager.EvaluateResolveReferences()
}

// Write emits the generated source and header files. It refuses to run
// when any error has been reported.
func (r *Runtime) Write() error {
	return r.manager.WriteGeneratedOutput()
}

// TranspileFile runs the full pipeline for one file: evaluate, resolve,
// write.
func (r *Runtime) TranspileFile(filename string) error {
	if err := r.AddFile(filename); err != nil {
		return err
	}
	if err := r.Resolve(); err != nil {
		return err
	}
	return r.Write()
}

// Build compiles and links the written output, returning the built
// artifacts.
func (r *Runtime) Build() ([]string, error) {
	var builtOutputs []string
	if err := r.manager.Build(&builtOutputs); err != nil {
		return nil, err
	}
	return builtOutputs, nil
}

// ErrorCount returns the number of compiler diagnostics reported so far.
func (r *Runtime) ErrorCount() int {
	return r.manager.Environment.ErrorCount()
}

// Close tears down the environment and releases the cache. No token
// pointer obtained from the runtime may be used afterwards.
func (r *Runtime) Close() error {
	return r.manager.Destroy()
}
