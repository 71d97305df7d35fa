// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package output

import (
	"testing"

	"nickandperla.net/sxc/internal/token"
)

func TestAddStringOutput(t *testing.T) {
	origin := &token.Token{Kind: token.Symbol, Contents: "x", Source: "test.sxc", Line: 1}
	var stream []StringOutput
	AddStringOutput(&stream, "int", ModSpaceAfter, origin)
	AddLangTokenOutput(&stream, ModSemicolon, origin)

	if len(stream) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(stream))
	}
	if stream[0].Text != "int" || stream[0].Modifiers != ModSpaceAfter {
		t.Errorf("unexpected first fragment: %+v", stream[0])
	}
	if stream[1].Text != "" || stream[1].Modifiers != ModSemicolon {
		t.Errorf("unexpected lang token fragment: %+v", stream[1])
	}
}

func TestAddSpliceOutputBothStreams(t *testing.T) {
	origin := &token.Token{Kind: token.Symbol, Contents: "f", Source: "test.sxc", Line: 1}
	parent := &GeneratorOutput{}
	child := &GeneratorOutput{}

	AddStringOutput(&parent.Source, "before", ModNone, origin)
	AddSpliceOutput(parent, child, origin)
	AddStringOutput(&parent.Source, "after", ModNone, origin)

	// A splice must land in both streams at the matching position so
	// cross-stream ordering holds when the child contributes to both.
	if len(parent.Source) != 3 {
		t.Fatalf("source stream has %d fragments, want 3", len(parent.Source))
	}
	if len(parent.Header) != 1 {
		t.Fatalf("header stream has %d fragments, want 1", len(parent.Header))
	}
	for _, frag := range []StringOutput{parent.Source[1], parent.Header[0]} {
		if frag.Modifiers&ModSplice == 0 {
			t.Errorf("expected splice modifier, got %v", frag.Modifiers)
		}
		if frag.Splice != child {
			t.Error("splice fragment does not point at the child output")
		}
	}
}

func TestAddModifier(t *testing.T) {
	origin := &token.Token{Kind: token.Symbol, Contents: "x"}
	var stream []StringOutput
	AddModifier(stream, ModSpaceAfter) // empty stream is a no-op

	AddStringOutput(&stream, "int", ModNone, origin)
	AddModifier(stream, ModSpaceAfter)
	if stream[0].Modifiers != ModSpaceAfter {
		t.Errorf("modifier not applied: %v", stream[0].Modifiers)
	}
}
