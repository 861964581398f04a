// Package dynamic lets handlers opt a reference out of static checking by
// declaring its resolved type.
package dynamic

import (
	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/checkctx"
	"github.com/jward/typehook/internal/synth"
)

// Handled is the dispatch result a marking sets.
type Handled interface {
	MarkHandled(bool)
}

// Logger receives debug lines when debugging is on.
type Logger interface {
	Info(msg string)
}

// Marker records dynamic markers for one unit.
type Marker struct {
	ctx     *checkctx.Context
	factory *synth.Factory
	log     Logger
	marked  []ast.Node
}

// NewMarker returns a marker over the unit's context and factory. log may
// be nil to disable debug output.
func NewMarker(ctx *checkctx.Context, factory *synth.Factory, log Logger) *Marker {
	return &Marker{ctx: ctx, factory: factory, log: log}
}

func orObject(t *ast.Type) *ast.Type {
	if t == nil {
		return ast.Object
	}
	return t
}

func (m *Marker) flagEnclosing() {
	if holder := m.ctx.InnermostDynamicHolder(); holder != nil {
		holder.Meta().Put(ast.DynamicResolution, true)
	}
}

func (m *Marker) debugf(format string, n ast.Node, t *ast.Type) {
	if m.log == nil {
		return
	}
	m.log.Info("Turning " + n.Text() + " into " + format + " " + t.String())
}

// MarkCall declares call dynamic with return type t (Object when nil) and
// returns a fixed descriptor named after the call.
func (m *Marker) MarkCall(call *ast.MethodCall, t *ast.Type, h Handled) synth.Descriptor {
	t = orObject(t)
	call.Meta().Put(ast.DynamicResolution, t)
	m.flagEnclosing()
	h.MarkHandled(true)
	m.marked = append(m.marked, call)
	m.debugf("a dynamic method call returning", call, t)
	return m.factory.Fixed(call.Name(), t)
}

// MarkProperty declares a property or attribute access dynamic with type t.
func (m *Marker) MarkProperty(p *ast.PropertyExpr, t *ast.Type, h Handled) synth.Descriptor {
	t = orObject(t)
	m.markReference(p, t, h)
	m.debugf("a dynamic property access of type", p, t)
	return m.factory.Fixed(p.Name(), t)
}

// MarkVariable declares an unresolved variable dynamic with type t.
func (m *Marker) MarkVariable(v *ast.VariableExpr, t *ast.Type, h Handled) synth.Descriptor {
	t = orObject(t)
	m.markReference(v, t, h)
	m.debugf("a dynamic variable access of type", v, t)
	return m.factory.Fixed(v.Name(), t)
}

func (m *Marker) markReference(n ast.Node, t *ast.Type, h Handled) {
	m.flagEnclosing()
	n.Meta().Put(ast.DynamicResolution, t)
	n.Meta().Put(ast.InferredType, t)
	h.MarkHandled(true)
	m.marked = append(m.marked, n)
}

// Marked returns the nodes marked so far, in marking order.
func (m *Marker) Marked() []ast.Node {
	return append([]ast.Node(nil), m.marked...)
}
