// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"nickandperla.net/sxc/internal/output"
	"nickandperla.net/sxc/internal/token"
)

// statementOperationKind drives one step of table-driven statement output.
type statementOperationKind int

const (
	// stmtKeyword emits Text as a keyword or symbol.
	stmtKeyword statementOperationKind = iota
	// stmtExpression evaluates argument ArgIndex at expression scope.
	stmtExpression
	// stmtBody evaluates arguments from ArgIndex onward at body scope.
	stmtBody
	stmtOpenParen
	stmtCloseParen
	stmtOpenBlock
	stmtCloseBlock
	stmtEndStatement
)

// StatementOperation is one step of a simple generator built from a table
// instead of hand-written output calls.
type StatementOperation struct {
	Kind     statementOperationKind
	Text     string
	ArgIndex int
}

// StatementOutput interprets a statement-operation table against the
// invocation at start. It is the interface for building simple generators.
func StatementOutput(env *Environment, ctx *Context, tokens []token.Token, start int, operations []StatementOperation, out *output.GeneratorOutput) bool {
	end := token.FindCloseParen(tokens, start)
	blame := &tokens[start+1]

	// Any block opened must be closed on every exit path, including the
	// error ones, so the surrounding output stays balanced.
	openBlocks := 0
	fail := func() bool {
		for ; openBlocks > 0; openBlocks-- {
			output.AddLangTokenOutput(&out.Source, output.ModCloseBlock, blame)
		}
		return false
	}

	for _, op := range operations {
		switch op.Kind {
		case stmtKeyword:
			output.AddStringOutput(&out.Source, op.Text, output.ModSpaceBefore|output.ModSpaceAfter, blame)

		case stmtExpression:
			argIndex := GetExpectedArgument(env, "missing expression argument", tokens, start, op.ArgIndex, end)
			if argIndex == token.None {
				return fail()
			}
			exprCtx := *ctx
			exprCtx.Scope = ScopeExpressionOrStatement
			if EvaluateGenerate(env, &exprCtx, tokens, argIndex, out) != 0 {
				return fail()
			}

		case stmtBody:
			bodyStart := token.GetArgument(tokens, start, op.ArgIndex, end)
			if bodyStart == token.None {
				continue // an empty body is fine
			}
			bodyCtx := *ctx
			bodyCtx.Scope = ScopeBody
			delimiter := output.StringOutput{Modifiers: output.ModNewlineAfter}
			if EvaluateGenerateAllRecursive(env, &bodyCtx, tokens, bodyStart, delimiter, out) != 0 {
				return fail()
			}

		case stmtOpenParen:
			output.AddLangTokenOutput(&out.Source, output.ModOpenParen, blame)
		case stmtCloseParen:
			output.AddLangTokenOutput(&out.Source, output.ModCloseParen, blame)
		case stmtOpenBlock:
			output.AddLangTokenOutput(&out.Source, output.ModOpenBlock, blame)
			openBlocks++
		case stmtCloseBlock:
			output.AddLangTokenOutput(&out.Source, output.ModCloseBlock, blame)
			openBlocks--
		case stmtEndStatement:
			output.AddLangTokenOutput(&out.Source, output.ModSemicolon, blame)
		}
	}
	return true
}

// ImportFundamentalGenerators installs the built-in generator set. The
// macro registry stays empty; macros come entirely from configuration.
func ImportFundamentalGenerators(env *Environment) {
	env.RegisterGenerator("defun", DefunGenerator)
	env.RegisterGenerator("var", VarGenerator)
	env.RegisterGenerator("return", ReturnGenerator)
	env.RegisterGenerator("if", IfGenerator)
	env.RegisterGenerator("block", BlockGenerator)

	env.RegisterGenerator("defmacro", compileTimeDefinitionGenerator("defmacro", ObjectMacro))
	env.RegisterGenerator("defgenerator", compileTimeDefinitionGenerator("defgenerator", ObjectGenerator))

	env.RegisterGenerator("while", func(env *Environment, ctx *Context, tokens []token.Token, start int, out *output.GeneratorOutput) bool {
		if !ExpectEvaluatorScope(env, "while", &tokens[start+1], ctx, ScopeBody) {
			return false
		}
		return StatementOutput(env, ctx, tokens, start, []StatementOperation{
			{Kind: stmtKeyword, Text: "while"},
			{Kind: stmtOpenParen},
			{Kind: stmtExpression, ArgIndex: 1},
			{Kind: stmtCloseParen},
			{Kind: stmtOpenBlock},
			{Kind: stmtBody, ArgIndex: 2},
			{Kind: stmtCloseBlock},
		}, out)
	})

	env.RegisterGenerator("set", func(env *Environment, ctx *Context, tokens []token.Token, start int, out *output.GeneratorOutput) bool {
		if !ExpectEvaluatorScope(env, "set", &tokens[start+1], ctx, ScopeBody) {
			return false
		}
		end := token.FindCloseParen(tokens, start)
		if !ExpectNumArguments(env, tokens, start, end, 3) {
			return false
		}
		return StatementOutput(env, ctx, tokens, start, []StatementOperation{
			{Kind: stmtExpression, ArgIndex: 1},
			{Kind: stmtKeyword, Text: "="},
			{Kind: stmtExpression, ArgIndex: 2},
			{Kind: stmtEndStatement},
		}, out)
	})

	binaryOperators := map[string]string{
		"+": "+", "-": "-", "*": "*", "/": "/", "%": "%",
		"=": "==", "!=": "!=", "<": "<", "<=": "<=", ">": ">", ">=": ">=",
		"and": "&&", "or": "||",
	}
	for name, cOperator := range binaryOperators {
		env.RegisterGenerator(name, binaryOperatorGenerator(cOperator))
	}
	env.RegisterGenerator("not", unaryOperatorGenerator("!"))
	env.RegisterGenerator("addr", unaryOperatorGenerator("&"))
	env.RegisterGenerator("deref", unaryOperatorGenerator("*"))
}

// DefunGenerator handles (defun name (arg type ... [&return type]) body...).
// It creates the function's ObjectDefinition, evaluates the body at body
// scope into the definition's own output, and splices that output into the
// module stream. Module-level functions are always required.
func DefunGenerator(env *Environment, ctx *Context, tokens []token.Token, start int, out *output.GeneratorOutput) bool {
	end := token.FindCloseParen(tokens, start)
	invocation := &tokens[start+1]
	if !ExpectEvaluatorScope(env, "defun", invocation, ctx, ScopeModule) {
		return false
	}

	nameIndex := GetExpectedArgument(env, "defun expected a function name", tokens, start, 1, end)
	if nameIndex == token.None {
		return false
	}
	nameToken := &tokens[nameIndex]
	if !ExpectTokenType(env, "defun", nameToken, token.Symbol) {
		return false
	}

	argsIndex := GetExpectedArgument(env, "defun expected an argument list", tokens, start, 2, end)
	if argsIndex == token.None {
		return false
	}

	def := &ObjectDefinition{
		Name:         nameToken,
		Kind:         ObjectFunction,
		RequiredRoot: true,
		IsRequired:   true,
		State:        StateEvaluating,
		Output:       &output.GeneratorOutput{},
	}
	if !env.AddObjectDefinition(def) {
		return false
	}

	arguments, returnTypeStart, ok := ParseFunctionSignature(env, tokens, argsIndex)
	if !ok {
		def.State = StateErrored
		return false
	}

	if !outputFunctionSignature(env, tokens, nameToken, arguments, returnTypeStart, def.Output) {
		def.State = StateErrored
		return false
	}

	// Declaration for the header, definition body for the source.
	output.AddLangTokenOutput(&def.Output.Header, output.ModSemicolon, nameToken)
	output.AddLangTokenOutput(&def.Output.Source, output.ModOpenBlock, nameToken)

	bodyCtx := *ctx
	bodyCtx.Scope = ScopeBody
	bodyCtx.Definition = def
	bodyStart := token.FindExpressionEnd(tokens, argsIndex) + 1
	delimiter := output.StringOutput{Modifiers: output.ModNewlineAfter}
	numErrors := EvaluateGenerateAllRecursive(env, &bodyCtx, tokens, bodyStart, delimiter, def.Output)

	output.AddLangTokenOutput(&def.Output.Source, output.ModCloseBlock, &tokens[end])

	if numErrors != 0 {
		def.State = StateErrored
		return false
	}
	if len(def.References) > 0 {
		def.State = StateHasUnresolved
	} else {
		def.State = StateResolved
	}

	output.AddSpliceOutput(out, def.Output, nameToken)
	return true
}

// outputFunctionSignature emits "returntype name(type name, ...)" to both
// the source and header streams.
func outputFunctionSignature(env *Environment, tokens []token.Token, nameToken *token.Token, arguments []FunctionArgument, returnTypeStart int, out *output.GeneratorOutput) bool {
	var returnType, afterName []output.StringOutput
	if returnTypeStart == token.None {
		// C requires main to return int; everything else defaults to void.
		defaulted := "void"
		if nameToken.Contents == "main" {
			defaulted = "int"
		}
		output.AddStringOutput(&returnType, defaulted, output.ModNone, nameToken)
	} else {
		if !AppendTypeString(env, tokens, returnTypeStart, &returnType, &afterName) {
			return false
		}
		if len(afterName) > 0 {
			env.ErrorAt(&tokens[returnTypeStart], "array types cannot be returned from a function")
			return false
		}
	}
	output.AddModifier(returnType, output.ModSpaceAfter)

	for _, stream := range []*[]output.StringOutput{&out.Source, &out.Header} {
		*stream = append(*stream, returnType...)
		output.AddStringOutput(stream, nameToken.Contents, output.ModConvertFunctionName, nameToken)
		output.AddLangTokenOutput(stream, output.ModOpenParen, nameToken)

		for i, arg := range arguments {
			nameTok := &tokens[arg.NameIndex]
			var argType, argAfterName []output.StringOutput
			if !AppendTypeString(env, tokens, arg.TypeStart, &argType, &argAfterName) {
				return false
			}
			output.AddModifier(argType, output.ModSpaceAfter)
			if i > 0 {
				output.AddStringOutput(stream, ",", output.ModSpaceAfter, nameTok)
			}
			*stream = append(*stream, argType...)
			output.AddStringOutput(stream, nameTok.Contents, output.ModConvertVariableName, nameTok)
			*stream = append(*stream, argAfterName...)
		}

		output.AddLangTokenOutput(stream, output.ModCloseParen, nameToken)
	}
	return true
}

// VarGenerator handles (var name type [initializer]) at module or body
// scope. Module variables get an extern declaration in the header.
func VarGenerator(env *Environment, ctx *Context, tokens []token.Token, start int, out *output.GeneratorOutput) bool {
	end := token.FindCloseParen(tokens, start)
	invocation := &tokens[start+1]

	nameIndex := GetExpectedArgument(env, "var expected a name", tokens, start, 1, end)
	if nameIndex == token.None {
		return false
	}
	nameToken := &tokens[nameIndex]
	if !ExpectTokenType(env, "var", nameToken, token.Symbol) {
		return false
	}
	typeIndex := GetExpectedArgument(env, "var expected a type", tokens, start, 2, end)
	if typeIndex == token.None {
		return false
	}
	initializerIndex := token.GetArgument(tokens, start, 3, end)

	var varType, afterName []output.StringOutput
	if !AppendTypeString(env, tokens, typeIndex, &varType, &afterName) {
		return false
	}
	output.AddModifier(varType, output.ModSpaceAfter)

	atModuleScope := ctx.Scope == ScopeModule

	target := out
	var def *ObjectDefinition
	if atModuleScope {
		def = &ObjectDefinition{
			Name:         nameToken,
			Kind:         ObjectVariable,
			RequiredRoot: true,
			IsRequired:   true,
			State:        StateEvaluating,
			Output:       &output.GeneratorOutput{},
		}
		if !env.AddObjectDefinition(def) {
			return false
		}
		target = def.Output
	}

	target.Source = append(target.Source, varType...)
	output.AddStringOutput(&target.Source, nameToken.Contents, output.ModConvertVariableName, nameToken)
	target.Source = append(target.Source, afterName...)

	if initializerIndex != token.None {
		output.AddStringOutput(&target.Source, "=", output.ModSpaceBefore|output.ModSpaceAfter, invocation)
		exprCtx := *ctx
		exprCtx.Scope = ScopeExpressionOrStatement
		if EvaluateGenerate(env, &exprCtx, tokens, initializerIndex, target) != 0 {
			if def != nil {
				def.State = StateErrored
			}
			return false
		}
	}
	output.AddLangTokenOutput(&target.Source, output.ModSemicolon, invocation)

	if atModuleScope {
		output.AddStringOutput(&target.Header, "extern", output.ModSpaceAfter, nameToken)
		target.Header = append(target.Header, varType...)
		output.AddStringOutput(&target.Header, nameToken.Contents, output.ModConvertVariableName, nameToken)
		target.Header = append(target.Header, afterName...)
		output.AddLangTokenOutput(&target.Header, output.ModSemicolon, nameToken)

		def.State = StateResolved
		output.AddSpliceOutput(out, def.Output, nameToken)
	}
	return true
}

// ReturnGenerator handles (return [expression]). Statements are forbidden
// at module scope.
func ReturnGenerator(env *Environment, ctx *Context, tokens []token.Token, start int, out *output.GeneratorOutput) bool {
	invocation := &tokens[start+1]
	if IsForbiddenEvaluatorScope(env, "return", invocation, ctx, ScopeModule) {
		return false
	}
	end := token.FindCloseParen(tokens, start)
	numArgs := token.GetNumArguments(tokens, start, end)

	output.AddStringOutput(&out.Source, "return", output.ModSpaceAfter, invocation)
	if numArgs > 1 {
		exprCtx := *ctx
		exprCtx.Scope = ScopeExpressionOrStatement
		argIndex := token.GetArgument(tokens, start, 1, end)
		if EvaluateGenerate(env, &exprCtx, tokens, argIndex, out) != 0 {
			return false
		}
	}
	output.AddLangTokenOutput(&out.Source, output.ModSemicolon, invocation)
	return true
}

// IfGenerator handles (if condition then-block [else-block]).
func IfGenerator(env *Environment, ctx *Context, tokens []token.Token, start int, out *output.GeneratorOutput) bool {
	invocation := &tokens[start+1]
	if !ExpectEvaluatorScope(env, "if", invocation, ctx, ScopeBody) {
		return false
	}
	end := token.FindCloseParen(tokens, start)
	numArgs := token.GetNumArguments(tokens, start, end)
	if numArgs != 3 && numArgs != 4 {
		env.ErrorAtf(invocation, "if expects a condition, a then block, and an optional else block; got %d arguments", numArgs-1)
		return false
	}

	ops := []StatementOperation{
		{Kind: stmtKeyword, Text: "if"},
		{Kind: stmtOpenParen},
		{Kind: stmtExpression, ArgIndex: 1},
		{Kind: stmtCloseParen},
		{Kind: stmtOpenBlock},
	}
	if !StatementOutput(env, ctx, tokens, start, ops, out) {
		return false
	}

	thenIndex := token.GetArgument(tokens, start, 2, end)
	bodyCtx := *ctx
	bodyCtx.Scope = ScopeBody
	thenErrors := EvaluateGenerate(env, &bodyCtx, tokens, thenIndex, out)
	output.AddLangTokenOutput(&out.Source, output.ModCloseBlock, invocation)
	if thenErrors != 0 {
		return false
	}

	if numArgs == 4 {
		elseIndex := token.GetArgument(tokens, start, 3, end)
		output.AddStringOutput(&out.Source, "else", output.ModSpaceBefore|output.ModSpaceAfter, invocation)
		output.AddLangTokenOutput(&out.Source, output.ModOpenBlock, invocation)
		elseErrors := EvaluateGenerate(env, &bodyCtx, tokens, elseIndex, out)
		output.AddLangTokenOutput(&out.Source, output.ModCloseBlock, invocation)
		if elseErrors != 0 {
			return false
		}
	}
	return true
}

// BlockGenerator handles (block body...): a brace scope.
func BlockGenerator(env *Environment, ctx *Context, tokens []token.Token, start int, out *output.GeneratorOutput) bool {
	invocation := &tokens[start+1]
	if !ExpectEvaluatorScope(env, "block", invocation, ctx, ScopeBody) {
		return false
	}
	return StatementOutput(env, ctx, tokens, start, []StatementOperation{
		{Kind: stmtOpenBlock},
		{Kind: stmtBody, ArgIndex: 1},
		{Kind: stmtCloseBlock},
	}, out)
}

// compileTimeDefinitionGenerator builds defmacro and defgenerator. The
// definition is declared with its body tokens attached; its compile-time
// code is built and loaded later, between resolver passes, by the
// manager's compile-time builder. Nothing is emitted to the target
// language.
func compileTimeDefinitionGenerator(generatorName string, kind ObjectKind) GeneratorFunc {
	return func(env *Environment, ctx *Context, tokens []token.Token, start int, out *output.GeneratorOutput) bool {
		end := token.FindCloseParen(tokens, start)
		invocation := &tokens[start+1]
		if !ExpectEvaluatorScope(env, generatorName, invocation, ctx, ScopeModule) {
			return false
		}
		nameIndex := GetExpectedArgument(env, generatorName+" expected a name", tokens, start, 1, end)
		if nameIndex == token.None {
			return false
		}
		nameToken := &tokens[nameIndex]
		if !ExpectTokenType(env, generatorName, nameToken, token.Symbol) {
			return false
		}

		def := &ObjectDefinition{
			Name:             nameToken,
			Kind:             kind,
			State:            StateDeclared,
			Output:           &output.GeneratorOutput{},
			InvocationTokens: tokens,
			StartIndex:       start,
		}
		return env.AddObjectDefinition(def)
	}
}

func binaryOperatorGenerator(cOperator string) GeneratorFunc {
	return func(env *Environment, ctx *Context, tokens []token.Token, start int, out *output.GeneratorOutput) bool {
		invocation := &tokens[start+1]
		if IsForbiddenEvaluatorScope(env, invocation.Contents, invocation, ctx, ScopeModule) {
			return false
		}
		end := token.FindCloseParen(tokens, start)
		numArgs := token.GetNumArguments(tokens, start, end)
		if numArgs < 3 {
			env.ErrorAtf(invocation, "'%s' requires at least two arguments", invocation.Contents)
			return false
		}

		exprCtx := *ctx
		exprCtx.Scope = ScopeExpressionOrStatement
		output.AddLangTokenOutput(&out.Source, output.ModOpenParen, invocation)
		for i := 1; i < numArgs; i++ {
			if i > 1 {
				output.AddStringOutput(&out.Source, cOperator, output.ModSpaceBefore|output.ModSpaceAfter, invocation)
			}
			argIndex := token.GetArgument(tokens, start, i, end)
			if EvaluateGenerate(env, &exprCtx, tokens, argIndex, out) != 0 {
				return false
			}
		}
		output.AddLangTokenOutput(&out.Source, output.ModCloseParen, invocation)
		if ctx.Scope == ScopeBody {
			output.AddLangTokenOutput(&out.Source, output.ModSemicolon, invocation)
		}
		return true
	}
}

func unaryOperatorGenerator(cOperator string) GeneratorFunc {
	return func(env *Environment, ctx *Context, tokens []token.Token, start int, out *output.GeneratorOutput) bool {
		invocation := &tokens[start+1]
		if IsForbiddenEvaluatorScope(env, invocation.Contents, invocation, ctx, ScopeModule) {
			return false
		}
		end := token.FindCloseParen(tokens, start)
		if !ExpectNumArguments(env, tokens, start, end, 2) {
			return false
		}
		exprCtx := *ctx
		exprCtx.Scope = ScopeExpressionOrStatement
		output.AddStringOutput(&out.Source, cOperator, output.ModNone, invocation)
		output.AddLangTokenOutput(&out.Source, output.ModOpenParen, invocation)
		argIndex := token.GetArgument(tokens, start, 1, end)
		if EvaluateGenerate(env, &exprCtx, tokens, argIndex, out) != 0 {
			return false
		}
		output.AddLangTokenOutput(&out.Source, output.ModCloseParen, invocation)
		return true
	}
}
