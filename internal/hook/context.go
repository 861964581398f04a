package hook

import (
	"fmt"
	"slices"

	"github.com/Masterminds/semver/v3"

	"github.com/jward/typehook/internal/argmatch"
	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/checkctx"
	"github.com/jward/typehook/internal/delegation"
	"github.com/jward/typehook/internal/dynamic"
	"github.com/jward/typehook/internal/scope"
	"github.com/jward/typehook/internal/synth"
)

// EngineVersion is the version SupportsVersion checks constraints against.
const EngineVersion = "1.2.0"

// Logger is the line logger handlers write to.
type Logger interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Capabilities is the unit-level surface available to configuration code
// and handlers: scopes, delegation, synthetic methods, matchers and
// read access to the enclosing context. One instance exists per unit.
type Capabilities struct {
	Unit    string
	scopes  *scope.Stack
	check   *checkctx.Context
	factory *synth.Factory
	marker  *dynamic.Marker
	log     Logger
	version *semver.Version
}

// NewCapabilities wires the per-unit state. debug enables the marker's
// "Turning ... into ..." lines on log.
func NewCapabilities(unit string, check *checkctx.Context, log Logger, debug bool) *Capabilities {
	factory := synth.NewFactory()
	var markLog dynamic.Logger
	if debug && log != nil {
		markLog = log
	}
	return &Capabilities{
		Unit:    unit,
		scopes:  scope.NewStack(),
		check:   check,
		factory: factory,
		marker:  dynamic.NewMarker(check, factory, markLog),
		log:     log,
		version: semver.MustParse(EngineVersion),
	}
}

// Scopes returns the unit's scope stack.
func (c *Capabilities) Scopes() *scope.Stack { return c.scopes }

// Factory returns the unit's descriptor factory.
func (c *Capabilities) Factory() *synth.Factory { return c.factory }

// Marker returns the unit's dynamic marker.
func (c *Capabilities) Marker() *dynamic.Marker { return c.marker }

// Enclosing returns the host's enclosing context.
func (c *Capabilities) Enclosing() *checkctx.Context { return c.check }

// PushScope opens a handler scope.
func (c *Capabilities) PushScope() *scope.Scope { return c.scopes.Push() }

// PopScope closes the current handler scope.
func (c *Capabilities) PopScope() (*scope.Scope, error) { return c.scopes.Pop() }

// CurrentScope returns the current handler scope, or nil.
func (c *Capabilities) CurrentScope() *scope.Scope { return c.scopes.Current() }

// WithScope runs body inside a fresh scope that is always popped.
func (c *Capabilities) WithScope(body func(*scope.Scope) error) error {
	return c.scopes.With(body)
}

// SetDelegate makes t the delegate for unqualified lookups in the current
// closure scope.
func (c *Capabilities) SetDelegate(t *ast.Type, s delegation.Strategy) *delegation.Frame {
	return c.check.Delegation.Set(t, s)
}

// NewMethod creates a generated method with a fixed return type.
func (c *Capabilities) NewMethod(name string, ret *ast.Type) synth.Descriptor {
	return c.factory.Fixed(name, ret)
}

// NewDeferredMethod creates a generated method whose return type is
// computed on every query.
func (c *Capabilities) NewDeferredMethod(name string, supply synth.Supplier) synth.Descriptor {
	return c.factory.Deferred(name, supply)
}

// IsGenerated reports whether ref was produced by NewMethod or
// NewDeferredMethod (or a dynamic marking) in this unit.
func (c *Capabilities) IsGenerated(ref ast.MethodRef) bool {
	return c.factory.IsGenerated(ref)
}

// Unique wraps ref in a one-element candidate list.
func (c *Capabilities) Unique(ref ast.MethodRef) []ast.MethodRef {
	return []ast.MethodRef{ref}
}

// ArgTypesMatch is argmatch.Exact.
func (c *Capabilities) ArgTypesMatch(args []*ast.Type, want ...*ast.Type) bool {
	return argmatch.Exact(args, want...)
}

// FirstArgTypesMatch is argmatch.Prefix.
func (c *Capabilities) FirstArgTypesMatch(args []*ast.Type, want ...*ast.Type) bool {
	return argmatch.Prefix(args, want...)
}

// ArgTypeMatches is argmatch.At.
func (c *Capabilities) ArgTypeMatches(args []*ast.Type, index int, want *ast.Type) bool {
	return argmatch.At(args, index, want)
}

// Arguments returns the argument types of a call.
func (c *Capabilities) Arguments(call *ast.MethodCall) []*ast.Type {
	return slices.Clone(call.ArgTypes)
}

// IsAnnotatedBy reports whether n carries the named annotation. Both the
// simple and the qualified name match.
func (c *Capabilities) IsAnnotatedBy(n ast.Node, annotation string) bool {
	a, ok := n.(ast.Annotated)
	if !ok {
		return false
	}
	want := ast.TypeOf(annotation).SimpleName()
	for _, name := range a.AnnotationNames() {
		if name == annotation || ast.TypeOf(name).SimpleName() == want {
			return true
		}
	}
	return false
}

// IsDynamic reports whether the host bound v dynamically.
func (c *Capabilities) IsDynamic(v *ast.VariableExpr) bool { return v.Dynamic }

// IsExtensionMethod reports whether ref is a declared extension method.
func (c *Capabilities) IsExtensionMethod(ref ast.MethodRef) bool {
	m, ok := ref.(*ast.MethodNode)
	return ok && m.Extension
}

// IsMethodCall reports whether n is a method call.
func (c *Capabilities) IsMethodCall(n ast.Node) bool {
	_, ok := n.(*ast.MethodCall)
	return ok
}

// IsProperty reports whether n is a property access (not an attribute).
func (c *Capabilities) IsProperty(n ast.Node) bool {
	p, ok := n.(*ast.PropertyExpr)
	return ok && !p.Attribute
}

// IsAttribute reports whether n is an attribute access.
func (c *Capabilities) IsAttribute(n ast.Node) bool {
	p, ok := n.(*ast.PropertyExpr)
	return ok && p.Attribute
}

// IsVariable reports whether n is a variable reference.
func (c *Capabilities) IsVariable(n ast.Node) bool {
	_, ok := n.(*ast.VariableExpr)
	return ok
}

// IsClosure reports whether n is a closure.
func (c *Capabilities) IsClosure(n ast.Node) bool {
	_, ok := n.(*ast.ClosureExpr)
	return ok
}

// Log writes an info line.
func (c *Capabilities) Log(msg string) {
	if c.log != nil {
		c.log.Info(msg)
	}
}

// Logger returns the unit's logger, which may be nil.
func (c *Capabilities) Logger() Logger { return c.log }

// SupportsVersion checks a semver constraint such as ">= 1.1" against
// EngineVersion.
func (c *Capabilities) SupportsVersion(constraint string) (bool, error) {
	cons, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("hook: version constraint %q: %w", constraint, err)
	}
	return cons.Check(c.version), nil
}

// Context is what a handler acts through during one dispatch. It extends
// the unit's capabilities with the dispatch's own result.
type Context struct {
	*Capabilities
	Point  Point
	result *Result
}

// NewContext binds caps to one dispatch of p. A nil result gets a private
// one, for points whose handled flag nobody reads.
func NewContext(caps *Capabilities, p Point, result *Result) *Context {
	if result == nil {
		result = &Result{}
	}
	return &Context{Capabilities: caps, Point: p, result: result}
}

// MarkHandled sets the dispatch's handled flag; the last call wins.
func (hc *Context) MarkHandled(v bool) { hc.result.MarkHandled(v) }

// Handled returns the dispatch's current handled flag.
func (hc *Context) Handled() bool { return hc.result.Handled() }

// MakeDynamicCall declares call dynamic with return type t (Object when
// nil), marks the dispatch handled and returns a descriptor for it.
func (hc *Context) MakeDynamicCall(call *ast.MethodCall, t *ast.Type) synth.Descriptor {
	return hc.marker.MarkCall(call, t, hc.result)
}

// MakeDynamicProperty declares a property or attribute access dynamic.
func (hc *Context) MakeDynamicProperty(p *ast.PropertyExpr, t *ast.Type) synth.Descriptor {
	return hc.marker.MarkProperty(p, t, hc.result)
}

// MakeDynamicVariable declares an unresolved variable dynamic.
func (hc *Context) MakeDynamicVariable(v *ast.VariableExpr, t *ast.Type) synth.Descriptor {
	return hc.marker.MarkVariable(v, t, hc.result)
}
