// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"fmt"

	"nickandperla.net/sxc/internal/output"
	"nickandperla.net/sxc/internal/token"
)

// ExpectEvaluatorScope errors at tok and returns false unless the context
// is at the expected scope.
func ExpectEvaluatorScope(env *Environment, generatorName string, tok *token.Token, ctx *Context, expected Scope) bool {
	if ctx.Scope != expected {
		env.ErrorAtf(tok, "%s expected %s scope, but is in %s scope", generatorName, expected, ctx.Scope)
		return false
	}
	return true
}

// IsForbiddenEvaluatorScope errors at tok and returns true if the context
// is at the forbidden scope.
func IsForbiddenEvaluatorScope(env *Environment, generatorName string, tok *token.Token, ctx *Context, forbidden Scope) bool {
	if ctx.Scope == forbidden {
		env.ErrorAtf(tok, "%s is not allowed in %s scope", generatorName, forbidden)
		return true
	}
	return false
}

// ExpectTokenType errors at tok and returns false unless tok has the
// expected kind.
func ExpectTokenType(env *Environment, generatorName string, tok *token.Token, expected token.Kind) bool {
	if tok.Kind != expected {
		env.ErrorAtf(tok, "%s expected %s, got %s", generatorName, expected, tok.Kind)
		return false
	}
	return true
}

// ExpectInInvocation errors and returns false if index is at or past the
// invocation's close paren, i.e. a required argument is missing.
func ExpectInInvocation(env *Environment, message string, tokens []token.Token, index int, endInvocation int) bool {
	if index >= endInvocation {
		blame := &tokens[endInvocation]
		env.ErrorAt(blame, message)
		return false
	}
	return true
}

// ExpectNumArguments errors unless the invocation at start has exactly the
// expected number of arguments, the head included.
func ExpectNumArguments(env *Environment, tokens []token.Token, start int, end int, expected int) bool {
	num := token.GetNumArguments(tokens, start, end)
	if num != expected {
		env.ErrorAtf(&tokens[start], "expected %d arguments, got %d", expected, num)
		return false
	}
	return true
}

// GetExpectedArgument is GetArgument with a diagnostic on failure.
func GetExpectedArgument(env *Environment, message string, tokens []token.Token, start int, desired int, end int) int {
	index := token.GetArgument(tokens, start, desired, end)
	if index == token.None {
		env.ErrorAt(&tokens[start], message)
	}
	return index
}

// MakeUniqueSymbolName mints a name never previously produced by this
// environment, for e.g. macro-generated variables. Use a prefix so the
// result still documents what it represents. Not reproducible across
// independent runs.
func MakeUniqueSymbolName(env *Environment, prefix string) string {
	name := fmt.Sprintf("%s_%d", prefix, env.nextUniqueID)
	env.nextUniqueID++
	return name
}

// MakeContextUniqueSymbolName derives a name from the evaluation context,
// yielding the same string across runs provided the context is not
// perturbed. Suitable for stable diffing of generated output.
func MakeContextUniqueSymbolName(env *Environment, ctx *Context, prefix string) string {
	definitionName := "<anonymous>"
	if ctx.Definition != nil {
		definitionName = ctx.Definition.Name.Contents
	} else if ctx.DefinitionName != nil {
		definitionName = ctx.DefinitionName.Contents
	}
	key := prefix + "\x00" + definitionName
	id := env.contextUniqueIDs[key]
	env.contextUniqueIDs[key]++
	return fmt.Sprintf("%s_%s_%d", prefix, definitionName, id)
}

// FunctionArgument is one (name type) pair of a function signature.
type FunctionArgument struct {
	NameIndex int
	TypeStart int
}

// ParseFunctionSignature reads the argument list whose open paren is at
// argsIndex: alternating name and type expressions, optionally closed by
// &return and a type expression. Returns the arguments, the return type
// start index (token.None when defaulted), and success.
func ParseFunctionSignature(env *Environment, tokens []token.Token, argsIndex int) ([]FunctionArgument, int, bool) {
	if !ExpectTokenType(env, "function signature", &tokens[argsIndex], token.OpenParen) {
		return nil, token.None, false
	}
	argsEnd := token.FindCloseParen(tokens, argsIndex)
	returnTypeStart := token.None

	var arguments []FunctionArgument
	i := argsIndex + 1
	for i < argsEnd {
		if tokens[i].Kind == token.Symbol && tokens[i].Contents == "&return" {
			typeIndex := i + 1
			if !ExpectInInvocation(env, "&return requires a type", tokens, typeIndex, argsEnd) {
				return nil, token.None, false
			}
			returnTypeStart = typeIndex
			i = token.FindExpressionEnd(tokens, typeIndex) + 1
			if i < argsEnd {
				env.ErrorAt(&tokens[i], "&return must be the last entry in the argument list")
				return nil, token.None, false
			}
			break
		}

		nameIndex := i
		if !ExpectTokenType(env, "argument name", &tokens[nameIndex], token.Symbol) {
			return nil, token.None, false
		}
		typeIndex := nameIndex + 1
		if !ExpectInInvocation(env, "argument is missing a type", tokens, typeIndex, argsEnd) {
			return nil, token.None, false
		}
		arguments = append(arguments, FunctionArgument{NameIndex: nameIndex, TypeStart: typeIndex})
		i = token.FindExpressionEnd(tokens, typeIndex) + 1
	}
	return arguments, returnTypeStart, true
}

// AppendTypeString prints the type expression at start into typeOut, with
// anything that must come after the declared name (array suffixes) going to
// afterNameOut. Supported forms: bare symbols, (* type), (& type),
// (const type), ([] type), and ([] size type).
func AppendTypeString(env *Environment, tokens []token.Token, start int, typeOut *[]output.StringOutput, afterNameOut *[]output.StringOutput) bool {
	tok := &tokens[start]
	if tok.Kind == token.Symbol {
		output.AddStringOutput(typeOut, tok.Contents, output.ModConvertTypeName, tok)
		return true
	}
	if tok.Kind != token.OpenParen {
		env.ErrorAtf(tok, "expected type, got %s", tok.Kind)
		return false
	}

	end := token.FindCloseParen(tokens, start)
	head := &tokens[start+1]
	if head.Kind != token.Symbol {
		env.ErrorAt(head, "expected type modifier symbol")
		return false
	}

	switch head.Contents {
	case "*", "&":
		innerIndex := token.GetArgument(tokens, start, 1, end)
		if innerIndex == token.None {
			env.ErrorAtf(head, "%s requires a type", head.Contents)
			return false
		}
		if !AppendTypeString(env, tokens, innerIndex, typeOut, afterNameOut) {
			return false
		}
		output.AddStringOutput(typeOut, head.Contents, output.ModNone, head)
		return true

	case "const":
		innerIndex := token.GetArgument(tokens, start, 1, end)
		if innerIndex == token.None {
			env.ErrorAt(head, "const requires a type")
			return false
		}
		output.AddStringOutput(typeOut, "const", output.ModSpaceAfter, head)
		return AppendTypeString(env, tokens, innerIndex, typeOut, afterNameOut)

	case "[]":
		numArgs := token.GetNumArguments(tokens, start, end)
		sizeText := ""
		typeArg := 1
		if numArgs == 3 {
			sizeIndex := token.GetArgument(tokens, start, 1, end)
			sizeText = tokens[sizeIndex].Contents
			typeArg = 2
		} else if numArgs != 2 {
			env.ErrorAt(head, "[] requires a type and an optional size")
			return false
		}
		innerIndex := token.GetArgument(tokens, start, typeArg, end)
		if !AppendTypeString(env, tokens, innerIndex, typeOut, afterNameOut) {
			return false
		}
		output.AddStringOutput(afterNameOut, "["+sizeText+"]", output.ModNone, head)
		return true
	}

	env.ErrorAtf(head, "unrecognized type modifier '%s'", head.Contents)
	return false
}
