// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"strings"

	"nickandperla.net/sxc/internal/output"
	"nickandperla.net/sxc/internal/token"
)

// MaxMacroRecursionDepth bounds nested macro expansion. Exceeding it is a
// fatal error blamed at the head token of the expansion that reaches the
// bound; the outermost invocation of the chain is not reported.
const MaxMacroRecursionDepth = 128

// EvaluateGenerate evaluates the single expression at start into out,
// returning the number of errors reported. Dispatch order for invocations
// is macros, then generators, then function references; an unknown head is
// recorded as an ObjectReference with its splice slot reserved in out so
// fragment order is preserved once it resolves.
func EvaluateGenerate(env *Environment, ctx *Context, tokens []token.Token, start int, out *output.GeneratorOutput) int {
	tok := &tokens[start]
	if tok.Kind != token.OpenParen {
		return evaluateAtom(env, ctx, tokens, start, out)
	}

	end := token.FindCloseParen(tokens, start)
	headIndex := start + 1
	if headIndex >= end {
		env.ErrorAt(tok, "expected invocation name, got empty expression")
		return 1
	}
	head := &tokens[headIndex]
	if head.Kind != token.Symbol || token.IsSpecialSymbol(head) {
		env.ErrorAtf(head, "expected symbol naming an invocation, got %s '%s'", head.Kind, head.Contents)
		return 1
	}

	name := head.Contents
	if macro := env.Macro(name); macro != nil {
		return evaluateMacroExpansion(env, ctx, macro, tokens, start, out)
	}
	if generator := env.Generator(name); generator != nil {
		errorsBefore := env.ErrorCount()
		if !generator(env, ctx, tokens, start, out) {
			if env.ErrorCount() == errorsBefore {
				env.ErrorAtf(head, "generator '%s' failed", name)
			}
		}
		return env.ErrorCount() - errorsBefore
	}

	// Not a known macro or generator: either a function defined elsewhere or
	// a compile-time definition not yet built. Reserve the splice slot now;
	// the resolver fills it once the name binds.
	ref := &ObjectReference{
		Name:     name,
		Token:    head,
		Tokens:   tokens,
		Start:    start,
		Context:  *ctx,
		Splice:   &output.GeneratorOutput{},
		Referrer: ctx.Definition,
	}
	output.AddSpliceOutput(out, ref.Splice, head)
	if ctx.Definition != nil {
		ctx.Definition.References = append(ctx.Definition.References, ref)
	}
	return 0
}

// EvaluateGenerateAllRecursive evaluates every top-level expression in
// tokens from start until the sequence ends or an enclosing close paren is
// reached. The delimiter template is inserted between expressions when
// non-zero. Errors in one expression do not stop evaluation of its
// siblings.
func EvaluateGenerateAllRecursive(env *Environment, ctx *Context, tokens []token.Token, start int, delimiter output.StringOutput, out *output.GeneratorOutput) int {
	numErrors := 0
	for i := start; i < len(tokens); {
		if tokens[i].Kind == token.CloseParen {
			break
		}
		numErrors += EvaluateGenerate(env, ctx, tokens, i, out)
		i = token.FindExpressionEnd(tokens, i) + 1

		moreExpressions := i < len(tokens) && tokens[i].Kind != token.CloseParen
		if moreExpressions && (delimiter.Text != "" || delimiter.Modifiers != output.ModNone) {
			fragment := delimiter
			fragment.Origin = &tokens[i]
			out.Source = append(out.Source, fragment)
		}
	}
	return numErrors
}

func evaluateAtom(env *Environment, ctx *Context, tokens []token.Token, start int, out *output.GeneratorOutput) int {
	tok := &tokens[start]
	if ctx.Scope == ScopeModule {
		env.ErrorAtf(tok, "expected definition or invocation at module scope, got %s '%s'", tok.Kind, tok.Contents)
		return 1
	}

	switch tok.Kind {
	case token.String:
		output.AddStringOutput(&out.Source, escapeStringLiteral(tok.Contents), output.ModNone, tok)
	case token.Symbol:
		modifiers := output.ModNone
		if isIdentifierSymbol(tok.Contents) {
			modifiers = output.ModConvertVariableName
		}
		output.AddStringOutput(&out.Source, tok.Contents, modifiers, tok)
	default:
		env.ErrorAtf(tok, "unexpected %s", tok.Kind)
		return 1
	}
	return 0
}

func evaluateMacroExpansion(env *Environment, ctx *Context, macro MacroFunc, tokens []token.Token, start int, out *output.GeneratorOutput) int {
	invocation := &tokens[start+1]
	if env.macroDepth >= MaxMacroRecursionDepth {
		env.ErrorAtf(invocation, "macro recursion limit (%d) exceeded", MaxMacroRecursionDepth)
		return 1
	}

	env.macroDepth++
	errorsBefore := env.ErrorCount()
	produced, ok := macro(env, ctx, tokens, start)
	env.macroDepth--
	if !ok {
		if env.ErrorCount() == errorsBefore {
			env.ErrorAtf(invocation, "macro '%s' failed", invocation.Contents)
		}
		return env.ErrorCount() - errorsBefore
	}

	expanded := env.InternTokens(produced)
	env.Logger().Debug("macro expanded",
		"macro", invocation.Contents,
		"at", invocation.Position(),
		"numTokens", len(expanded))

	// Evaluate the expansion in place of the original invocation, with the
	// same context. Expansions containing further macro invocations recurse
	// through the depth guard above.
	env.macroDepth++
	numErrors := EvaluateGenerateAllRecursive(env, ctx, expanded, 0, output.StringOutput{}, out)
	env.macroDepth--
	return numErrors
}

// isIdentifierSymbol reports whether a symbol should undergo identifier
// case conversion. Numeric and operator-like symbols pass through verbatim.
func isIdentifierSymbol(contents string) bool {
	if contents == "" {
		return false
	}
	c := contents[0]
	if c >= '0' && c <= '9' {
		return false
	}
	if (c == '-' || c == '+' || c == '.') && len(contents) > 1 {
		next := contents[1]
		if next >= '0' && next <= '9' {
			return false
		}
	}
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// escapeStringLiteral renders token string contents as a quoted C string.
func escapeStringLiteral(contents string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range contents {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
