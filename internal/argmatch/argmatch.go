// Package argmatch compares argument types at a call site with the types an
// extension expects, treating primitive and wrapper types as equivalent.
package argmatch

import "github.com/jward/typehook/internal/ast"

// Matches compares one argument type with a wanted type after normalizing
// boxing in the direction of the argument.
func Matches(arg, want *ast.Type) bool {
	if arg == nil || want == nil {
		return false
	}
	switch {
	case want.IsPrimitive() && !arg.IsPrimitive():
		want = want.Wrapper()
	case arg.IsPrimitive() && !want.IsPrimitive():
		want = want.Unwrapper()
	}
	return arg.Equal(want)
}

// Exact reports whether args has exactly len(want) entries and each matches.
// A nil want matches only an empty argument list.
func Exact(args []*ast.Type, want ...*ast.Type) bool {
	if want == nil {
		return len(args) == 0
	}
	if len(args) != len(want) {
		return false
	}
	for i := range args {
		if !Matches(args[i], want[i]) {
			return false
		}
	}
	return true
}

// Prefix reports whether the first len(want) arguments match want.
func Prefix(args []*ast.Type, want ...*ast.Type) bool {
	if want == nil {
		return len(args) == 0
	}
	if len(args) < len(want) {
		return false
	}
	for i := range want {
		if !Matches(args[i], want[i]) {
			return false
		}
	}
	return true
}

// At reports whether the argument at index matches want.
func At(args []*ast.Type, index int, want *ast.Type) bool {
	if index < 0 || index >= len(args) {
		return false
	}
	return Matches(args[index], want)
}

// Names resolves type names with ast.TypeOf.
func Names(names ...string) []*ast.Type {
	if names == nil {
		return nil
	}
	out := make([]*ast.Type, len(names))
	for i, n := range names {
		out[i] = ast.TypeOf(n)
	}
	return out
}
