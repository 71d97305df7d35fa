// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package output holds the ordered, splice-capable fragment buffers that
// generators emit into and the writer consumes.
package output

import "nickandperla.net/sxc/internal/token"

// Modifier is a bitfield of formatting and conversion flags on a fragment.
// The writer consumes these to decide spacing, indentation, and identifier
// case conversion; the evaluator never interprets them.
type Modifier uint32

const (
	ModNone        Modifier = 0
	ModSpaceBefore Modifier = 1 << iota
	ModSpaceAfter
	ModNewlineAfter
	ModOpenBlock
	ModCloseBlock
	ModOpenList
	ModCloseList
	ModOpenParen
	ModCloseParen
	ModSemicolon
	ModConvertTypeName
	ModConvertFunctionName
	ModConvertVariableName
	ModSplice
)

// StringOutput is a single output fragment: a literal string, a
// language-token passthrough, or a splice marker standing in for another
// GeneratorOutput. Origin points at the source token to blame.
type StringOutput struct {
	Text      string
	Modifiers Modifier
	Origin    *token.Token
	Splice    *GeneratorOutput
}

// GeneratorOutput is a pair of ordered fragment streams. Fragment order
// within a stream is preserved through all splices: if A precedes B in the
// producing stream, A precedes B (modulo splice expansion) in the final
// file.
type GeneratorOutput struct {
	Source []StringOutput
	Header []StringOutput
}

// AddStringOutput appends a literal fragment to a stream.
func AddStringOutput(stream *[]StringOutput, text string, modifiers Modifier, origin *token.Token) {
	*stream = append(*stream, StringOutput{Text: text, Modifiers: modifiers, Origin: origin})
}

// AddLangTokenOutput appends a language-token fragment (brace, paren,
// semicolon) carried entirely by its modifier flags.
func AddLangTokenOutput(stream *[]StringOutput, modifiers Modifier, origin *token.Token) {
	*stream = append(*stream, StringOutput{Modifiers: modifiers, Origin: origin})
}

// AddSpliceOutput appends a splice marker for spliced to both the source and
// header streams of out. Pushing to both at the matching position preserves
// cross-stream ordering when the spliced output contributes to both.
func AddSpliceOutput(out *GeneratorOutput, spliced *GeneratorOutput, origin *token.Token) {
	out.Source = append(out.Source, StringOutput{Modifiers: ModSplice, Origin: origin, Splice: spliced})
	out.Header = append(out.Header, StringOutput{Modifiers: ModSplice, Origin: origin, Splice: spliced})
}

// AddModifier ors extra flags onto the most recent fragment of a stream.
func AddModifier(stream []StringOutput, modifiers Modifier) {
	if len(stream) == 0 {
		return
	}
	stream[len(stream)-1].Modifiers |= modifiers
}
