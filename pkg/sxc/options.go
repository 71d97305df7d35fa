// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package sxc provides the public API for the sxc transpiler.
package sxc

import (
	"io"
	"log/slog"

	"nickandperla.net/sxc/internal/eval"
	"nickandperla.net/sxc/internal/module"
	"nickandperla.net/sxc/internal/store"
	"nickandperla.net/sxc/internal/writer"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithSQLiteCache configures SQLite-backed artifact cache persistence at
// the given path.
func WithSQLiteCache(path string) Option {
	return func(r *Runtime) {
		s, err := store.NewSQLite(path)
		if err == nil {
			r.cache = s
		}
	}
}

// WithMemoryCache configures an in-memory artifact cache (for testing).
func WithMemoryCache() Option {
	return func(r *Runtime) {
		r.cache = store.NewMemory()
	}
}

// WithConfigFiles adds CUE configuration files, earliest first.
func WithConfigFiles(paths ...string) Option {
	return func(r *Runtime) {
		r.configFiles = append(r.configFiles, paths...)
	}
}

// WithMacro registers a macro under name. The registry has no implicit
// defaults; every macro arrives through configuration or this option.
func WithMacro(name string, f eval.MacroFunc) Option {
	return func(r *Runtime) {
		r.macros[name] = f
	}
}

// WithGenerator registers a generator under name, alongside the
// fundamental set.
func WithGenerator(name string, f eval.GeneratorFunc) Option {
	return func(r *Runtime) {
		r.generators[name] = f
	}
}

// WithCompileTimeLoader supplies the loader invoked between resolver
// passes to build and register compile-time macro/generator definitions.
func WithCompileTimeLoader(loader module.CompileTimeLoader) Option {
	return func(r *Runtime) {
		r.compileTimeLoader = loader
	}
}

// WithPreBuildHook appends a hook run before each added module is built.
// A hook returning false aborts the build.
func WithPreBuildHook(hook module.PreBuildHook) Option {
	return func(r *Runtime) {
		r.preBuildHooks = append(r.preBuildHooks, hook)
	}
}

// WithOutputDir sets where generated and built artifacts land.
func WithOutputDir(dir string) Option {
	return func(r *Runtime) {
		r.outputDir = dir
	}
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithDiagnosticWriter redirects compiler diagnostics (for testing).
func WithDiagnosticWriter(w io.Writer) Option {
	return func(r *Runtime) {
		r.diagWriter = w
	}
}

// WithNameStyles overrides identifier case conversion per category.
func WithNameStyles(s writer.NameStyleSettings) Option {
	return func(r *Runtime) {
		r.nameStyles = &s
	}
}
