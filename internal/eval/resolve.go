// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"nickandperla.net/sxc/internal/output"
	"nickandperla.net/sxc/internal/token"
)

// ResolveReferences runs the fixed-point resolution loop. Each pass
// recomputes required-ness from the roots, then processes unresolved
// references in (declaration order of the referring definition, token
// position) order. References to names that have become known are resolved
// into their reserved splice slots; references to compile-time definitions
// whose code is not yet loaded enqueue a build, run between passes. The
// loop terminates when a pass neither resolves a reference nor loads a
// compile-time artifact. Remaining unresolved references in required
// definitions are then reported, once each.
//
// Returns true if everything required resolved with no new errors.
func ResolveReferences(env *Environment) bool {
	errorsBefore := env.ErrorCount()

	for pass := 0; ; pass++ {
		progress := false
		propagateRequired(env)

		var needBuild []*ObjectDefinition
		for _, def := range env.DefinitionsInOrder() {
			if !def.IsRequired {
				continue
			}
			// References are appended in discovery order, which follows
			// token position; re-evaluation may append more, picked up on
			// the next pass.
			for _, ref := range def.References {
				if ref.Resolved {
					continue
				}
				resolved, build := resolveOne(env, ref)
				if resolved {
					progress = true
				}
				if build != nil {
					needBuild = append(needBuild, build)
				}
			}
		}

		if len(needBuild) > 0 && env.compileTimeBuilder != nil {
			built, err := env.compileTimeBuilder(env, needBuild)
			if err != nil {
				env.ErrorAtf(needBuild[0].Name, "compile-time build failed: %v", err)
				break
			}
			if built > 0 {
				progress = true
			}
		}

		if !progress {
			env.Logger().Debug("reference resolution converged", "passes", pass+1)
			break
		}
	}

	return reportUnresolved(env) && env.ErrorCount() == errorsBefore
}

// resolveOne attempts to bind a single reference. It returns whether the
// reference resolved, and a definition needing a compile-time build if one
// blocks it.
func resolveOne(env *Environment, ref *ObjectReference) (bool, *ObjectDefinition) {
	// A macro or generator loaded since the reference was recorded: the
	// invocation is re-attempted with its original context, emitting into
	// the splice slot reserved at record time.
	if env.Macro(ref.Name) != nil || env.Generator(ref.Name) != nil {
		ctx := ref.Context
		EvaluateGenerate(env, &ctx, ref.Tokens, ref.Start, ref.Splice)
		ref.Resolved = true
		return true, nil
	}

	target := env.GetObjectDefinition(ref.Name)
	if target == nil {
		return false, nil
	}

	switch target.Kind {
	case ObjectMacro, ObjectGenerator:
		if !target.CompileTimeLoaded {
			return false, target
		}
		// Loaded but not registered under this name would be a builder bug;
		// treat as unresolved so it is reported.
		return false, nil

	case ObjectFunction:
		if target.State == StateEvaluating {
			env.ErrorAtf(ref.Token, "'%s' references itself while it is being evaluated", ref.Name)
			env.NoteAt(target.Name, "definition is here")
			target.State = StateErrored
			ref.Resolved = true
			return true, nil
		}
		generateFunctionCall(env, ref)
		ref.Resolved = true
		return true, nil

	case ObjectVariable:
		out := ref.Splice
		output.AddStringOutput(&out.Source, ref.Name, output.ModConvertVariableName, ref.Token)
		ref.Resolved = true
		return true, nil
	}
	return false, nil
}

// generateFunctionCall fills a reference's splice slot with a C call to the
// target, evaluating the invocation's arguments as expressions with the
// reference's original context.
func generateFunctionCall(env *Environment, ref *ObjectReference) {
	out := ref.Splice
	end := token.FindCloseParen(ref.Tokens, ref.Start)

	output.AddStringOutput(&out.Source, ref.Name, output.ModConvertFunctionName, ref.Token)
	output.AddLangTokenOutput(&out.Source, output.ModOpenParen, ref.Token)

	argCtx := ref.Context
	argCtx.Scope = ScopeExpressionOrStatement
	for i := 1; ; i++ {
		argIndex := token.GetArgument(ref.Tokens, ref.Start, i, end)
		if argIndex == token.None {
			break
		}
		if i > 1 {
			output.AddStringOutput(&out.Source, ",", output.ModSpaceAfter, &ref.Tokens[argIndex])
		}
		EvaluateGenerate(env, &argCtx, ref.Tokens, argIndex, out)
	}

	closeParen := &ref.Tokens[end]
	output.AddLangTokenOutput(&out.Source, output.ModCloseParen, closeParen)
	if ref.Context.Scope == ScopeBody {
		output.AddLangTokenOutput(&out.Source, output.ModSemicolon, closeParen)
	}
}

// propagateRequired recomputes IsRequired for every definition: roots stay
// required, then requirement flows through resolved and unresolved
// references alike, top-down. Definitions left unrequired may be omitted
// from output and their unresolved references are not errors.
func propagateRequired(env *Environment) {
	order := env.DefinitionsInOrder()
	for _, def := range order {
		def.IsRequired = def.RequiredRoot
	}

	changed := true
	for changed {
		changed = false
		for _, def := range order {
			if !def.IsRequired {
				continue
			}
			for _, ref := range def.References {
				target := env.GetObjectDefinition(ref.Name)
				if target != nil && !target.IsRequired {
					target.IsRequired = true
					changed = true
				}
			}
		}
	}
}

// reportUnresolved reports every remaining unresolved reference in required
// definitions, exactly once per run, and finalizes definition states.
func reportUnresolved(env *Environment) bool {
	ok := true
	for _, def := range env.DefinitionsInOrder() {
		if !def.IsRequired {
			continue
		}
		unresolved := false
		for _, ref := range def.References {
			if ref.Resolved {
				continue
			}
			env.ErrorAtf(ref.Token, "unresolved reference '%s'", ref.Name)
			unresolved = true
		}
		if unresolved {
			def.State = StateErrored
			ok = false
		} else if def.State == StateHasUnresolved {
			def.State = StateResolved
		}
	}
	return ok
}
