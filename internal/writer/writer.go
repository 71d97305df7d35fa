// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package writer serializes generator output fragments into final C/C++
// source and header text. Formatting is deterministic and the writer never
// reorders fragments; ordering is entirely the evaluator's responsibility.
package writer

import (
	"fmt"
	"os"
	"strings"

	"nickandperla.net/sxc/internal/output"
)

// NameStyle selects an identifier case convention.
type NameStyle int

const (
	NameStyleSnake NameStyle = iota
	NameStyleCamel
	NameStylePascal
)

// ParseNameStyle parses a style name from configuration.
func ParseNameStyle(s string) (NameStyle, bool) {
	switch strings.ToLower(s) {
	case "snake":
		return NameStyleSnake, true
	case "camel":
		return NameStyleCamel, true
	case "pascal":
		return NameStylePascal, true
	}
	return NameStyleSnake, false
}

// NameStyleSettings selects the conversion per identifier category.
type NameStyleSettings struct {
	FunctionNameStyle NameStyle
	TypeNameStyle     NameStyle
	VariableNameStyle NameStyle
}

// DefaultNameStyleSettings matches common C conventions: snake_case
// functions and variables, PascalCase types.
func DefaultNameStyleSettings() NameStyleSettings {
	return NameStyleSettings{
		FunctionNameStyle: NameStyleSnake,
		TypeNameStyle:     NameStylePascal,
		VariableNameStyle: NameStyleSnake,
	}
}

// FormatSettings controls whitespace.
type FormatSettings struct {
	Indent string
}

// DefaultFormatSettings uses tabs, one per block depth.
func DefaultFormatSettings() FormatSettings {
	return FormatSettings{Indent: "\t"}
}

// OutputSettings names the emitted files and their verbatim heading and
// footer strings.
type OutputSettings struct {
	SourceOutputName string
	HeaderOutputName string
	SourceHeading    string
	SourceFooter     string
	HeaderHeading    string
	HeaderFooter     string
}

// ConvertName rewrites a lisp-case identifier into the requested target
// style. Identifiers without dashes are already target-language names and
// pass through unchanged.
func ConvertName(name string, style NameStyle) string {
	if !strings.Contains(name, "-") {
		return name
	}
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_'
	})
	if len(words) == 0 {
		return name
	}

	var sb strings.Builder
	switch style {
	case NameStyleSnake:
		for i, w := range words {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteString(w)
		}
	case NameStyleCamel:
		for i, w := range words {
			if i == 0 {
				sb.WriteString(w)
			} else {
				sb.WriteString(capitalize(w))
			}
		}
	case NameStylePascal:
		for _, w := range words {
			sb.WriteString(capitalize(w))
		}
	}
	return sb.String()
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

type printer struct {
	sb          strings.Builder
	nameStyles  NameStyleSettings
	format      FormatSettings
	indent      int
	atLineStart bool
	needSpace   bool
}

func (p *printer) emit(text string) {
	if p.atLineStart {
		for i := 0; i < p.indent; i++ {
			p.sb.WriteString(p.format.Indent)
		}
		p.atLineStart = false
	} else if p.needSpace {
		p.sb.WriteByte(' ')
	}
	p.needSpace = false
	p.sb.WriteString(text)
}

func (p *printer) newline() {
	p.sb.WriteByte('\n')
	p.atLineStart = true
	p.needSpace = false
}

// writeStream serializes one fragment stream, recursively expanding splice
// markers in place. header selects which stream of a spliced output to
// follow.
func (p *printer) writeStream(stream []output.StringOutput, header bool) {
	for i := range stream {
		p.writeFragment(&stream[i], header)
	}
}

func (p *printer) writeFragment(frag *output.StringOutput, header bool) {
	m := frag.Modifiers

	if m&output.ModSplice != 0 {
		if frag.Splice != nil {
			if header {
				p.writeStream(frag.Splice.Header, header)
			} else {
				p.writeStream(frag.Splice.Source, header)
			}
		}
		return
	}

	if m&output.ModSpaceBefore != 0 {
		p.needSpace = true
	}
	if m&output.ModOpenBlock != 0 {
		p.needSpace = true
		p.emit("{")
		p.newline()
		p.indent++
	}
	if m&output.ModOpenParen != 0 {
		p.emit("(")
	}
	if m&output.ModOpenList != 0 {
		p.needSpace = true
		p.emit("{")
	}

	if frag.Text != "" {
		p.emit(p.convert(frag.Text, m))
	}

	if m&output.ModCloseParen != 0 {
		p.emit(")")
	}
	if m&output.ModCloseList != 0 {
		p.emit("}")
	}
	if m&output.ModSemicolon != 0 {
		p.emit(";")
		p.newline()
	}
	if m&output.ModCloseBlock != 0 {
		if p.indent > 0 {
			p.indent--
		}
		if !p.atLineStart {
			p.newline()
		}
		p.emit("}")
		p.newline()
	}
	if m&output.ModSpaceAfter != 0 {
		p.needSpace = true
	}
	if m&output.ModNewlineAfter != 0 && !p.atLineStart {
		p.newline()
	}
}

func (p *printer) convert(text string, m output.Modifier) string {
	switch {
	case m&output.ModConvertFunctionName != 0:
		return ConvertName(text, p.nameStyles.FunctionNameStyle)
	case m&output.ModConvertTypeName != 0:
		return ConvertName(text, p.nameStyles.TypeNameStyle)
	case m&output.ModConvertVariableName != 0:
		return ConvertName(text, p.nameStyles.VariableNameStyle)
	}
	return text
}

// BuildSourceText renders the source stream of root with its heading and
// footer.
func BuildSourceText(root *output.GeneratorOutput, nameStyles NameStyleSettings, format FormatSettings, settings OutputSettings) string {
	p := &printer{nameStyles: nameStyles, format: format, atLineStart: true}
	p.sb.WriteString(settings.SourceHeading)
	p.writeStream(root.Source, false)
	if !p.atLineStart {
		p.newline()
	}
	p.sb.WriteString(settings.SourceFooter)
	return p.sb.String()
}

// BuildHeaderText renders the header stream of root with its heading and
// footer.
func BuildHeaderText(root *output.GeneratorOutput, nameStyles NameStyleSettings, format FormatSettings, settings OutputSettings) string {
	p := &printer{nameStyles: nameStyles, format: format, atLineStart: true}
	p.sb.WriteString(settings.HeaderHeading)
	p.writeStream(root.Header, true)
	if !p.atLineStart {
		p.newline()
	}
	p.sb.WriteString(settings.HeaderFooter)
	return p.sb.String()
}

// WriteGeneratorOutput writes the source and header files named by
// settings.
func WriteGeneratorOutput(root *output.GeneratorOutput, nameStyles NameStyleSettings, format FormatSettings, settings OutputSettings) error {
	sourceText := BuildSourceText(root, nameStyles, format, settings)
	if err := os.WriteFile(settings.SourceOutputName, []byte(sourceText), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", settings.SourceOutputName, err)
	}
	headerText := BuildHeaderText(root, nameStyles, format, settings)
	if err := os.WriteFile(settings.HeaderOutputName, []byte(headerText), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", settings.HeaderOutputName, err)
	}
	return nil
}
