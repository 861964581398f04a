package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/hook"
)

// handler wraps a script function as a hook.Handler. Script handlers are
// called as fn(ctx, ...args) where ctx is the dispatch-bound context module
// and args depend on the point (see eventArgs).
func (s *script) handler(p hook.Point, obj object.Object) (hook.Handler, error) {
	switch fn := obj.(type) {
	case *object.Function:
		return func(ctx context.Context, hc *hook.Context, ev *hook.Event) (any, error) {
			args := append([]object.Object{s.contextModule(hc)}, eventArgs(ev)...)
			s.enter(ctx)
			defer s.leave()
			res, err := s.machine.Call(ctx, fn, args)
			if err != nil {
				return nil, err
			}
			return fromObject(res), nil
		}, nil
	case object.Callable:
		return func(ctx context.Context, hc *hook.Context, ev *hook.Event) (any, error) {
			args := append([]object.Object{s.contextModule(hc)}, eventArgs(ev)...)
			res := fn.Call(ctx, args...)
			if errObj, ok := res.(*object.Error); ok {
				return nil, errObj.Value()
			}
			return fromObject(res), nil
		}, nil
	default:
		return nil, fmt.Errorf("expected a handler function for %s, got %s", p, obj.Type())
	}
}

// eventArgs lays out the positional arguments of a script handler.
//
//	setup, finish              ()
//	onMethodSelection          (expr, target)
//	before/afterMethodCall     (call)
//	unresolved*                (node)
//	missingMethod              (receiver, name, arg_types, call)
//	ambiguousMethods           (candidates, origin)
//	before/afterVisit*         (node)
//	incompatibleAssignment     (lhs, rhs, expr)
//	incompatibleReturnType     (stmt, inferred)
func eventArgs(ev *hook.Event) []object.Object {
	switch ev.Point {
	case hook.Setup, hook.Finish:
		return nil
	case hook.OnMethodSelection:
		return []object.Object{toObject(ev.Node), toObject(ev.Target)}
	case hook.MissingMethod:
		return []object.Object{
			toObject(ev.Receiver),
			object.NewString(ev.Name),
			toObject(ev.ArgTypes),
			toObject(ev.Node),
		}
	case hook.AmbiguousMethods:
		return []object.Object{toObject(ev.Candidates), toObject(ev.Node)}
	case hook.IncompatibleAssignment:
		return []object.Object{toObject(ev.LHS), toObject(ev.RHS), toObject(ev.Node)}
	case hook.IncompatibleReturnType:
		return []object.Object{toObject(ev.Node), toObject(ev.Inferred)}
	default:
		return []object.Object{toObject(ev.Node)}
	}
}

// contextModule builds the ctx argument: the capability surface plus the
// operations bound to this dispatch's result.
func (s *script) contextModule(hc *hook.Context) *object.Module {
	contents := map[string]object.Object{
		"point": object.NewString(hc.Point.String()),
	}
	for name, fn := range capabilityBuiltins(hc.Capabilities, s) {
		contents[name] = fn
	}
	contents["mark_handled"] = object.NewBuiltin("mark_handled", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) > 1 {
			return object.NewArgsError("mark_handled", 1, len(args))
		}
		v := true
		if len(args) == 1 {
			b, ok := args[0].(*object.Bool)
			if !ok {
				return object.Errorf("mark_handled: expected bool, got %s", args[0].Type())
			}
			v = b.Value()
		}
		hc.MarkHandled(v)
		return object.Nil
	})
	contents["handled"] = object.NewBuiltin("handled", func(ctx context.Context, args ...object.Object) object.Object {
		return object.NewBool(hc.Handled())
	})
	contents["make_dynamic"] = makeMakeDynamicFn(hc)
	return object.NewBuiltinsModule("ctx", contents)
}

// makeMakeDynamicFn creates ctx.make_dynamic, which dispatches on the node
// kind: calls, properties/attributes and variables.
//
// make_dynamic(node, type="java.lang.Object") → descriptor
func makeMakeDynamicFn(hc *hook.Context) *object.Builtin {
	return object.NewBuiltin("make_dynamic", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.NewArgsError("make_dynamic", 1, len(args))
		}
		n, err := toNode(args[0])
		if err != nil {
			return object.Errorf("make_dynamic: %v", err)
		}
		t := ast.Object
		if len(args) == 2 {
			if t, err = toType(args[1]); err != nil {
				return object.Errorf("make_dynamic: %v", err)
			}
		}
		switch n := n.(type) {
		case *ast.MethodCall:
			return toObject(hc.MakeDynamicCall(n, t))
		case *ast.PropertyExpr:
			return toObject(hc.MakeDynamicProperty(n, t))
		case *ast.VariableExpr:
			return toObject(hc.MakeDynamicVariable(n, t))
		default:
			return object.Errorf("make_dynamic: cannot make %s dynamic", ast.Describe(n))
		}
	})
}
