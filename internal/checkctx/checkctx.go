// Package checkctx holds the host traversal's enclosing-node stacks for one
// unit. The host pushes and pops as it walks; the engine and handlers read.
package checkctx

import (
	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/delegation"
)

// EnclosingClosure pairs a closure with the delegation depth at its entry.
type EnclosingClosure struct {
	Closure *ast.ClosureExpr
	mark    int
}

// Context is the type-checking context of one unit.
type Context struct {
	classes  []*ast.ClassNode
	methods  []*ast.MethodNode
	closures []EnclosingClosure
	calls    []ast.Node
	binaries []*ast.BinaryExpr

	Delegation *delegation.Stack
}

// New returns an empty context with its own delegation stack.
func New() *Context {
	return &Context{Delegation: delegation.NewStack()}
}

func top[T any](s []T) (T, bool) {
	var zero T
	if len(s) == 0 {
		return zero, false
	}
	return s[len(s)-1], true
}

func pop[T any](s *[]T) (T, bool) {
	v, ok := top(*s)
	if ok {
		var zero T
		(*s)[len(*s)-1] = zero
		*s = (*s)[:len(*s)-1]
	}
	return v, ok
}

// PushEnclosingClass enters a class.
func (c *Context) PushEnclosingClass(cls *ast.ClassNode) { c.classes = append(c.classes, cls) }

// PopEnclosingClass leaves the current class.
func (c *Context) PopEnclosingClass() *ast.ClassNode {
	v, _ := pop(&c.classes)
	return v
}

// EnclosingClass returns the innermost class, or nil.
func (c *Context) EnclosingClass() *ast.ClassNode {
	v, _ := top(c.classes)
	return v
}

// EnclosingClasses returns the class stack, outermost first.
func (c *Context) EnclosingClasses() []*ast.ClassNode { return append([]*ast.ClassNode(nil), c.classes...) }

// PushEnclosingMethod enters a method.
func (c *Context) PushEnclosingMethod(m *ast.MethodNode) { c.methods = append(c.methods, m) }

// PopEnclosingMethod leaves the current method.
func (c *Context) PopEnclosingMethod() *ast.MethodNode {
	v, _ := pop(&c.methods)
	return v
}

// EnclosingMethod returns the innermost method, or nil.
func (c *Context) EnclosingMethod() *ast.MethodNode {
	v, _ := top(c.methods)
	return v
}

// EnclosingMethods returns the method stack, outermost first.
func (c *Context) EnclosingMethods() []*ast.MethodNode { return append([]*ast.MethodNode(nil), c.methods...) }

// PushEnclosingClosure enters a closure and remembers the delegation depth
// so frames set inside it are dropped on exit.
func (c *Context) PushEnclosingClosure(cl *ast.ClosureExpr) {
	c.closures = append(c.closures, EnclosingClosure{Closure: cl, mark: c.Delegation.Mark()})
}

// PopEnclosingClosure leaves the current closure and restores the delegation
// stack to its depth at entry.
func (c *Context) PopEnclosingClosure() (*ast.ClosureExpr, error) {
	v, ok := pop(&c.closures)
	if !ok {
		return nil, nil
	}
	return v.Closure, c.Delegation.Restore(v.mark)
}

// EnclosingClosure returns the innermost closure, or nil.
func (c *Context) EnclosingClosure() *ast.ClosureExpr {
	v, ok := top(c.closures)
	if !ok {
		return nil
	}
	return v.Closure
}

// EnclosingClosures returns the closure stack, outermost first.
func (c *Context) EnclosingClosures() []EnclosingClosure {
	return append([]EnclosingClosure(nil), c.closures...)
}

// PushEnclosingMethodCall enters a call's argument list.
func (c *Context) PushEnclosingMethodCall(call ast.Node) { c.calls = append(c.calls, call) }

// PopEnclosingMethodCall leaves the current call.
func (c *Context) PopEnclosingMethodCall() ast.Node {
	v, _ := pop(&c.calls)
	return v
}

// EnclosingMethodCall returns the innermost call, or nil.
func (c *Context) EnclosingMethodCall() ast.Node {
	v, _ := top(c.calls)
	return v
}

// EnclosingMethodCalls returns the call stack, outermost first.
func (c *Context) EnclosingMethodCalls() []ast.Node { return append([]ast.Node(nil), c.calls...) }

// PushEnclosingBinaryExpression enters a binary expression.
func (c *Context) PushEnclosingBinaryExpression(b *ast.BinaryExpr) {
	c.binaries = append(c.binaries, b)
}

// PopEnclosingBinaryExpression leaves the current binary expression.
func (c *Context) PopEnclosingBinaryExpression() *ast.BinaryExpr {
	v, _ := pop(&c.binaries)
	return v
}

// EnclosingBinaryExpression returns the innermost binary expression, or nil.
func (c *Context) EnclosingBinaryExpression() *ast.BinaryExpr {
	v, _ := top(c.binaries)
	return v
}

// InnermostDynamicHolder returns the node that receives the "contains
// dynamic access" flag: the innermost closure if any, else the innermost
// method. It returns nil outside of both.
func (c *Context) InnermostDynamicHolder() ast.Node {
	if cl := c.EnclosingClosure(); cl != nil {
		return cl
	}
	if m := c.EnclosingMethod(); m != nil {
		return m
	}
	return nil
}
