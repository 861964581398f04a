package runtime

import (
	"context"

	"github.com/risor-io/risor/object"

	"github.com/jward/typehook/internal/scope"
)

// scopeObject exposes a handler scope to scripts as a module of accessors.
// Values are stored as Risor objects and returned unchanged.
func scopeObject(s *scope.Scope) object.Object {
	if s == nil {
		return object.Nil
	}
	return object.NewBuiltinsModule("scope", map[string]object.Object{
		"get": object.NewBuiltin("get", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) < 1 || len(args) > 2 {
				return object.NewArgsError("scope.get", 1, len(args))
			}
			key, ok := args[0].(*object.String)
			if !ok {
				return object.Errorf("scope.get: key must be a string, got %s", args[0].Type())
			}
			if v, found := s.Get(key.Value()); found {
				return toObject(v)
			}
			if len(args) == 2 {
				return args[1]
			}
			return object.Nil
		}),
		"lookup": object.NewBuiltin("lookup", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 1 {
				return object.NewArgsError("scope.lookup", 1, len(args))
			}
			key, ok := args[0].(*object.String)
			if !ok {
				return object.Errorf("scope.lookup: key must be a string, got %s", args[0].Type())
			}
			if v, found := s.Lookup(key.Value()); found {
				return toObject(v)
			}
			return object.Nil
		}),
		"set": object.NewBuiltin("set", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 2 {
				return object.NewArgsError("scope.set", 2, len(args))
			}
			key, ok := args[0].(*object.String)
			if !ok {
				return object.Errorf("scope.set: key must be a string, got %s", args[0].Type())
			}
			s.Set(key.Value(), args[1])
			return object.Nil
		}),
		"has": object.NewBuiltin("has", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 1 {
				return object.NewArgsError("scope.has", 1, len(args))
			}
			key, ok := args[0].(*object.String)
			if !ok {
				return object.False
			}
			return object.NewBool(s.Has(key.Value()))
		}),
		"delete": object.NewBuiltin("delete", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 1 {
				return object.NewArgsError("scope.delete", 1, len(args))
			}
			key, ok := args[0].(*object.String)
			if !ok {
				return object.Errorf("scope.delete: key must be a string, got %s", args[0].Type())
			}
			s.Delete(key.Value())
			return object.Nil
		}),
		"keys": object.NewBuiltin("keys", func(ctx context.Context, args ...object.Object) object.Object {
			return toObject(s.Keys())
		}),
		"parent": object.NewBuiltin("parent", func(ctx context.Context, args ...object.Object) object.Object {
			return scopeObject(s.Parent())
		}),
	})
}
