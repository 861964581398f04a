package hook

import (
	"context"

	"github.com/jward/typehook/internal/ast"
)

// Event carries the arguments of one dispatch. Which fields are set depends
// on the point:
//
//	onMethodSelection        Node (expression), Target
//	before/afterMethodCall   Node (*ast.MethodCall)
//	unresolved*              Node (*ast.VariableExpr or *ast.PropertyExpr)
//	missingMethod            Receiver, Name, ArgTypes, Node (call)
//	ambiguousMethods         Candidates, Node (origin)
//	before/afterVisitMethod  Node (*ast.MethodNode)
//	before/afterVisitClass   Node (*ast.ClassNode)
//	incompatibleAssignment   LHS, RHS, Node (assignment)
//	incompatibleReturnType   Node (*ast.ReturnStmt), Inferred
type Event struct {
	Point      Point
	Node       ast.Node
	Target     ast.MethodRef
	Receiver   *ast.Type
	Name       string
	ArgTypes   []*ast.Type
	Candidates []ast.MethodRef
	LHS        *ast.Type
	RHS        *ast.Type
	Inferred   *ast.Type
}

// Result is the handled flag of one boolean dispatch. Each dispatch owns a
// fresh Result; handlers reach it only through their Context.
type Result struct {
	handled bool
}

// MarkHandled sets the flag; the last call in a dispatch wins.
func (r *Result) MarkHandled(v bool) { r.handled = v }

// Handled returns the flag.
func (r *Result) Handled() bool { return r.handled }

// Handler is an extension function bound to one point. Accumulating and
// refining points read the returned value: nil, one ast.MethodRef, or a
// collection of them ([]ast.MethodRef or []any holding only MethodRefs).
// Other points ignore it. A returned error is isolated by the dispatcher.
type Handler func(ctx context.Context, hc *Context, ev *Event) (any, error)
