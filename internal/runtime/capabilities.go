package runtime

import (
	"context"

	"github.com/risor-io/risor/object"

	"github.com/jward/typehook/internal/argmatch"
	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/delegation"
	"github.com/jward/typehook/internal/hook"
	"github.com/jward/typehook/internal/scope"
)

// capabilityBuiltins returns the fallback capability surface of a script:
// every utility operation configuration code and handlers may call by name.
func capabilityBuiltins(caps *hook.Capabilities, s *script) map[string]*object.Builtin {
	fns := []*object.Builtin{
		makePushScopeFn(caps),
		makePopScopeFn(caps),
		makeCurrentScopeFn(caps),
		makeWithScopeFn(caps),
		makeNewMethodFn(caps),
		makeNewDeferredMethodFn(caps, s),
		makeIsGeneratedFn(caps),
		makeSetDelegateFn(caps),
		makeTypeOfFn(),
		makeUniqueFn(),
		makeArgsMatchFn("arg_types_match", argmatch.Exact),
		makeArgsMatchFn("first_arg_types_match", argmatch.Prefix),
		makeArgTypeMatchesFn(),
		makeArgumentsFn(),
		makeIsAnnotatedByFn(caps),
		makeNodePredicateFn("is_dynamic", func(n ast.Node) bool {
			v, ok := n.(*ast.VariableExpr)
			return ok && caps.IsDynamic(v)
		}),
		makeNodePredicateFn("is_method_call", caps.IsMethodCall),
		makeNodePredicateFn("is_property", caps.IsProperty),
		makeNodePredicateFn("is_attribute", caps.IsAttribute),
		makeNodePredicateFn("is_variable", caps.IsVariable),
		makeNodePredicateFn("is_closure", caps.IsClosure),
		makeIsExtensionMethodFn(caps),
		makeSupportsVersionFn(caps),
		makeEnclosingFn("enclosing_class", func() any { return caps.Enclosing().EnclosingClass() }),
		makeEnclosingFn("enclosing_method", func() any { return caps.Enclosing().EnclosingMethod() }),
		makeEnclosingFn("enclosing_closure", func() any { return caps.Enclosing().EnclosingClosure() }),
		makeEnclosingFn("enclosing_method_call", func() any { return caps.Enclosing().EnclosingMethodCall() }),
		makeEnclosingFn("enclosing_binary_expression", func() any { return caps.Enclosing().EnclosingBinaryExpression() }),
	}
	out := make(map[string]*object.Builtin, len(fns))
	for _, fn := range fns {
		out[fn.Name()] = fn
	}
	return out
}

// makePushScopeFn creates "push_scope".
//
// push_scope() → scope
func makePushScopeFn(caps *hook.Capabilities) *object.Builtin {
	return object.NewBuiltin("push_scope", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("push_scope", 0, len(args))
		}
		return scopeObject(caps.PushScope())
	})
}

// makePopScopeFn creates "pop_scope". Popping an empty stack raises.
//
// pop_scope() → scope
func makePopScopeFn(caps *hook.Capabilities) *object.Builtin {
	return object.NewBuiltin("pop_scope", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("pop_scope", 0, len(args))
		}
		s, err := caps.PopScope()
		if err != nil {
			return object.NewError(err)
		}
		return scopeObject(s)
	})
}

// makeCurrentScopeFn creates "current_scope".
//
// current_scope() → scope or nil
func makeCurrentScopeFn(caps *hook.Capabilities) *object.Builtin {
	return object.NewBuiltin("current_scope", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("current_scope", 0, len(args))
		}
		return scopeObject(caps.CurrentScope())
	})
}

// makeWithScopeFn creates "with_scope", which runs fn(scope) in a new scope
// and always pops it afterwards.
//
// with_scope(fn) → scope
func makeWithScopeFn(caps *hook.Capabilities) *object.Builtin {
	return object.NewBuiltin("with_scope", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("with_scope", 1, len(args))
		}
		fn, ok := args[0].(*object.Function)
		if !ok {
			return object.Errorf("with_scope: expected function, got %s", args[0].Type())
		}
		callFn, ok := object.GetCallFunc(ctx)
		if !ok {
			return object.Errorf("with_scope: no call function in context")
		}
		var used *scope.Scope
		err := caps.WithScope(func(s *scope.Scope) error {
			used = s
			_, err := callFn(ctx, fn, []object.Object{scopeObject(s)})
			return err
		})
		if err != nil {
			return object.NewError(err)
		}
		return scopeObject(used)
	})
}

// makeNewMethodFn creates "new_method".
//
// new_method(name, type) → descriptor
func makeNewMethodFn(caps *hook.Capabilities) *object.Builtin {
	return object.NewBuiltin("new_method", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("new_method", 2, len(args))
		}
		name, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("new_method: name must be a string, got %s", args[0].Type())
		}
		t, err := toType(args[1])
		if err != nil {
			return object.Errorf("new_method: %v", err)
		}
		return toObject(caps.NewMethod(name.Value(), t))
	})
}

// makeNewDeferredMethodFn creates "new_deferred_method". The supplier is
// called through the script's VM on every return type query.
//
// new_deferred_method(name, fn) → descriptor
func makeNewDeferredMethodFn(caps *hook.Capabilities, s *script) *object.Builtin {
	return object.NewBuiltin("new_deferred_method", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("new_deferred_method", 2, len(args))
		}
		name, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("new_deferred_method: name must be a string, got %s", args[0].Type())
		}
		fn, ok := args[1].(*object.Function)
		if !ok {
			return object.Errorf("new_deferred_method: supplier must be a function, got %s", args[1].Type())
		}
		// Bound to this script's VM; lets queries made from inside its own
		// handlers re-enter it.
		callFn, _ := object.GetCallFunc(ctx)
		d := caps.NewDeferredMethod(name.Value(), func() (*ast.Type, error) {
			res, err := s.callback(callFn, fn, nil)
			if err != nil {
				return nil, err
			}
			return toType(res)
		})
		return toObject(d)
	})
}

// makeIsGeneratedFn creates "is_generated".
//
// is_generated(method) → bool
func makeIsGeneratedFn(caps *hook.Capabilities) *object.Builtin {
	return object.NewBuiltin("is_generated", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("is_generated", 1, len(args))
		}
		ref, err := toMethodRef(args[0])
		if err != nil {
			return object.False
		}
		return object.NewBool(caps.IsGenerated(ref))
	})
}

// makeSetDelegateFn creates "set_delegate".
//
// set_delegate(type, strategy="OWNER_FIRST") → nil
func makeSetDelegateFn(caps *hook.Capabilities) *object.Builtin {
	return object.NewBuiltin("set_delegate", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.NewArgsError("set_delegate", 1, len(args))
		}
		t, err := toType(args[0])
		if err != nil {
			return object.Errorf("set_delegate: %v", err)
		}
		strategy := delegation.OwnerFirst
		if len(args) == 2 {
			name, ok := args[1].(*object.String)
			if !ok {
				return object.Errorf("set_delegate: strategy must be a string, got %s", args[1].Type())
			}
			if strategy, err = delegation.ParseStrategy(name.Value()); err != nil {
				return object.Errorf("set_delegate: %v", err)
			}
		}
		caps.SetDelegate(t, strategy)
		return object.Nil
	})
}

// makeTypeOfFn creates "type_of".
//
// type_of(name) → type
func makeTypeOfFn() *object.Builtin {
	return object.NewBuiltin("type_of", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("type_of", 1, len(args))
		}
		t, err := toType(args[0])
		if err != nil {
			return object.Errorf("type_of: %v", err)
		}
		return toObject(t)
	})
}

// makeUniqueFn creates "unique".
//
// unique(method) → [method]
func makeUniqueFn() *object.Builtin {
	return object.NewBuiltin("unique", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("unique", 1, len(args))
		}
		return object.NewList([]object.Object{args[0]})
	})
}

// makeArgsMatchFn creates the exact and prefix matchers. The first argument
// is a call or a list of types; the rest are wanted types.
//
// arg_types_match(call_or_types, types...) → bool
func makeArgsMatchFn(name string, match func([]*ast.Type, ...*ast.Type) bool) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.NewArgsError(name, 1, len(args))
		}
		argTypes, err := toArgTypes(args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		want := make([]*ast.Type, 0, len(args)-1)
		for _, a := range args[1:] {
			t, err := toType(a)
			if err != nil {
				return object.Errorf("%s: %v", name, err)
			}
			want = append(want, t)
		}
		return object.NewBool(match(argTypes, want...))
	})
}

// makeArgTypeMatchesFn creates "arg_type_matches".
//
// arg_type_matches(call_or_types, index, type) → bool
func makeArgTypeMatchesFn() *object.Builtin {
	return object.NewBuiltin("arg_type_matches", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("arg_type_matches", 3, len(args))
		}
		argTypes, err := toArgTypes(args[0])
		if err != nil {
			return object.Errorf("arg_type_matches: %v", err)
		}
		index, err := toInt64(args[1])
		if err != nil {
			return object.Errorf("arg_type_matches: %v", err)
		}
		want, err := toType(args[2])
		if err != nil {
			return object.Errorf("arg_type_matches: %v", err)
		}
		return object.NewBool(argmatch.At(argTypes, int(index), want))
	})
}

// makeArgumentsFn creates "arguments".
//
// arguments(call) → [type]
func makeArgumentsFn() *object.Builtin {
	return object.NewBuiltin("arguments", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("arguments", 1, len(args))
		}
		argTypes, err := toArgTypes(args[0])
		if err != nil {
			return object.Errorf("arguments: %v", err)
		}
		return toObject(argTypes)
	})
}

// makeIsAnnotatedByFn creates "is_annotated_by".
//
// is_annotated_by(node, annotation) → bool
func makeIsAnnotatedByFn(caps *hook.Capabilities) *object.Builtin {
	return object.NewBuiltin("is_annotated_by", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("is_annotated_by", 2, len(args))
		}
		n, err := toNode(args[0])
		if err != nil {
			return object.False
		}
		name, err := toType(args[1])
		if err != nil {
			return object.Errorf("is_annotated_by: %v", err)
		}
		return object.NewBool(caps.IsAnnotatedBy(n, name.Name))
	})
}

// makeNodePredicateFn creates a one-argument node test. Non-nodes are false.
func makeNodePredicateFn(name string, pred func(ast.Node) bool) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError(name, 1, len(args))
		}
		n, err := toNode(args[0])
		if err != nil {
			return object.False
		}
		return object.NewBool(pred(n))
	})
}

// makeIsExtensionMethodFn creates "is_extension_method".
//
// is_extension_method(method) → bool
func makeIsExtensionMethodFn(caps *hook.Capabilities) *object.Builtin {
	return object.NewBuiltin("is_extension_method", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("is_extension_method", 1, len(args))
		}
		ref, err := toMethodRef(args[0])
		if err != nil {
			return object.False
		}
		return object.NewBool(caps.IsExtensionMethod(ref))
	})
}

// makeSupportsVersionFn creates "supports_version".
//
// supports_version(constraint) → bool
func makeSupportsVersionFn(caps *hook.Capabilities) *object.Builtin {
	return object.NewBuiltin("supports_version", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("supports_version", 1, len(args))
		}
		cons, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("supports_version: constraint must be a string, got %s", args[0].Type())
		}
		okVersion, err := caps.SupportsVersion(cons.Value())
		if err != nil {
			return object.NewError(err)
		}
		return object.NewBool(okVersion)
	})
}

// makeEnclosingFn creates a zero-argument accessor of the enclosing context.
func makeEnclosingFn(name string, get func() any) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError(name, 0, len(args))
		}
		return toObject(get())
	})
}
