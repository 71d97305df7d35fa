// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package config loads sxc configuration from CUE files, validated against
// a closed schema.
package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// ErrValueNotFound is returned when no config file provides a value.
var ErrValueNotFound = errors.New("config value not found")

// Schema is the closed CUE schema every config file must satisfy.
const Schema = `
writer?: {
	function_name_style?: "snake" | "camel" | "pascal"
	type_name_style?:     "snake" | "camel" | "pascal"
	variable_name_style?: "snake" | "camel" | "pascal"
	source_heading?: string
	source_footer?:  string
	header_heading?: string
	header_footer?:  string
}
build?: {
	build_command?: {
		executable: string
		arguments?: [...string]
	}
	link_command?: {
		executable: string
		arguments?: [...string]
	}
	output_dir?: string
}
cache?: {
	path?: string
}
`

// Loader reads values from an ordered list of CUE config files. Earlier
// files win. Files are parsed and validated lazily, once, on the first
// lookup.
type Loader struct {
	paths     []string
	schemaSrc string

	loadOnce sync.Once
	files    []cue.Value
	loadErr  error
}

// NewLoader creates a loader over paths, validating each file against
// schemaSrc when non-empty.
func NewLoader(paths []string, schemaSrc string) *Loader {
	return &Loader{paths: paths, schemaSrc: schemaSrc}
}

// load parses every config file on first use. A failure in any file is
// sticky: all later lookups return the same error.
func (l *Loader) load() ([]cue.Value, error) {
	l.loadOnce.Do(func() {
		var schema cue.Value
		haveSchema := l.schemaSrc != ""
		if haveSchema {
			schema = cuecontext.New().CompileString("close({" + l.schemaSrc + "})")
			if err := schema.Err(); err != nil {
				l.loadErr = fmt.Errorf("compiling config schema: %w", err)
				return
			}
		}

		for _, path := range l.paths {
			contents, err := os.ReadFile(path)
			if err != nil {
				l.loadErr = fmt.Errorf("reading config: %w", err)
				return
			}

			value := cuecontext.New().CompileBytes(contents, cue.Filename(path))
			if err := value.Err(); err != nil {
				l.loadErr = fmt.Errorf("parsing %s: %w", path, err)
				return
			}
			if haveSchema {
				if err := schema.Unify(value).Validate(); err != nil {
					l.loadErr = fmt.Errorf("validating %s: %w", path, err)
					return
				}
			}

			l.files = append(l.files, value)
		}
	})
	return l.files, l.loadErr
}

// AssignFirst decodes the first occurrence of path across the config files
// into target. Returns ErrValueNotFound if no file provides it.
func (l *Loader) AssignFirst(path string, target any) error {
	files, err := l.load()
	if err != nil {
		return err
	}

	lookup := cue.ParsePath(path)
	for i, file := range files {
		value := file.LookupPath(lookup)
		if value.Err() != nil {
			continue
		}
		if err := value.Decode(target); err != nil {
			return fmt.Errorf("decoding %s from %s: %w", path, l.paths[i], err)
		}
		return nil
	}

	return ErrValueNotFound
}

// First returns the first value at path, or the zero value when absent.
// Malformed config panics; the schema validation on first load should have
// caught it.
func First[T any](loader *Loader, path string) T {
	var value T
	if err := loader.AssignFirst(path, &value); err != nil {
		if errors.Is(err, ErrValueNotFound) {
			return value
		}
		panic(err)
	}
	return value
}
