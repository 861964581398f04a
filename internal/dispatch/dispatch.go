// Package dispatch invokes the handlers registered for an extension point
// and aggregates their results under the point's policy.
//
// Handler failures (returned errors and panics) are isolated: they are
// reported and dispatch continues with the next handler. A handler that
// returns a value of the wrong shape from an accumulating or refining point
// aborts that dispatch with a *diag.ResultShapeError instead.
package dispatch

import (
	"context"
	"fmt"

	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/diag"
	"github.com/jward/typehook/internal/hook"
	"github.com/jward/typehook/internal/registry"
)

// Dispatcher runs handlers for one unit.
type Dispatcher struct {
	registry *registry.Registry
	caps     *hook.Capabilities
	reporter diag.Reporter
}

// New returns a dispatcher over reg. Isolated handler failures go to
// reporter, which may be nil.
func New(reg *registry.Registry, caps *hook.Capabilities, reporter diag.Reporter) *Dispatcher {
	return &Dispatcher{registry: reg, caps: caps, reporter: reporter}
}

// Registry returns the dispatcher's registry.
func (d *Dispatcher) Registry() *registry.Registry { return d.registry }

// call runs one handler, converting a returned error or a panic into a
// *diag.HandlerError.
func (d *Dispatcher) call(ctx context.Context, reg registry.Registration, hc *hook.Context, ev *hook.Event) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &diag.HandlerError{Point: reg.Point.String(), Handler: reg.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	res, err = reg.Handler(ctx, hc, ev)
	if err != nil {
		return nil, &diag.HandlerError{Point: reg.Point.String(), Handler: reg.Name(), Err: err}
	}
	return res, nil
}

func (d *Dispatcher) isolate(ev *hook.Event, err error) {
	if d.reporter == nil {
		return
	}
	dg := diag.FromError(d.caps.Unit, err)
	if ev != nil && ev.Node != nil {
		pos := ev.Node.Position()
		dg.Line, dg.Col = pos.Line, pos.Col
	}
	d.reporter.Report(dg)
}

func prepare(p hook.Point, ev *hook.Event) *hook.Event {
	if ev == nil {
		ev = &hook.Event{}
	}
	ev.Point = p
	return ev
}

// Void invokes every handler of p once, in registration order.
func (d *Dispatcher) Void(ctx context.Context, p hook.Point, ev *hook.Event) {
	ev = prepare(p, ev)
	hc := hook.NewContext(d.caps, p, nil)
	for _, reg := range d.registry.Handlers(p) {
		if _, err := d.call(ctx, reg, hc, ev); err != nil {
			d.isolate(ev, err)
		}
	}
}

// Handled invokes every handler of p with a fresh result and returns the
// handled flag as left by the last handler that set it.
func (d *Dispatcher) Handled(ctx context.Context, p hook.Point, ev *hook.Event) bool {
	ev = prepare(p, ev)
	result := &hook.Result{}
	hc := hook.NewContext(d.caps, p, result)
	for _, reg := range d.registry.Handlers(p) {
		if _, err := d.call(ctx, reg, hc, ev); err != nil {
			d.isolate(ev, err)
		}
	}
	return result.Handled()
}

// Accumulate invokes every handler of p and flattens their candidates in
// handler order.
func (d *Dispatcher) Accumulate(ctx context.Context, p hook.Point, ev *hook.Event) ([]ast.MethodRef, error) {
	ev = prepare(p, ev)
	hc := hook.NewContext(d.caps, p, nil)
	var out []ast.MethodRef
	for _, reg := range d.registry.Handlers(p) {
		res, err := d.call(ctx, reg, hc, ev)
		if err != nil {
			d.isolate(ev, err)
			continue
		}
		refs, ok := Candidates(res)
		if !ok {
			return nil, d.shapeError(ev, reg, res)
		}
		out = append(out, refs...)
	}
	return out, nil
}

// Refine narrows candidates: handlers run in order only while more than one
// candidate remains. Each handler sees the current list in ev.Candidates and
// may replace it; nil keeps it. Replacement sizes are not validated.
func (d *Dispatcher) Refine(ctx context.Context, p hook.Point, candidates []ast.MethodRef, ev *hook.Event) ([]ast.MethodRef, error) {
	ev = prepare(p, ev)
	hc := hook.NewContext(d.caps, p, nil)
	current := candidates
	handlers := d.registry.Handlers(p)
	for i := 0; len(current) > 1 && i < len(handlers); i++ {
		reg := handlers[i]
		ev.Candidates = current
		res, err := d.call(ctx, reg, hc, ev)
		if err != nil {
			d.isolate(ev, err)
			continue
		}
		if res == nil {
			continue
		}
		refs, ok := Candidates(res)
		if !ok {
			return nil, d.shapeError(ev, reg, res)
		}
		current = refs
	}
	ev.Candidates = current
	return current, nil
}

func (d *Dispatcher) shapeError(ev *hook.Event, reg registry.Registration, res any) error {
	err := &diag.ResultShapeError{Point: reg.Point.String(), Handler: reg.Name(), Value: res}
	d.isolate(ev, err)
	return err
}

// Candidates normalizes a handler result: nil is no candidates, a single
// ast.MethodRef is one, and []ast.MethodRef or []any of MethodRefs is many.
// ok is false for any other shape.
func Candidates(res any) (refs []ast.MethodRef, ok bool) {
	switch v := res.(type) {
	case nil:
		return nil, true
	case ast.MethodRef:
		return []ast.MethodRef{v}, true
	case []ast.MethodRef:
		return append([]ast.MethodRef(nil), v...), true
	case []any:
		out := make([]ast.MethodRef, 0, len(v))
		for _, item := range v {
			ref, isRef := item.(ast.MethodRef)
			if !isRef {
				return nil, false
			}
			out = append(out, ref)
		}
		return out, true
	default:
		return nil, false
	}
}
