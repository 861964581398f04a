// Package registry keeps the ordered handler lists of each extension point.
package registry

import (
	"fmt"

	"github.com/jward/typehook/internal/hook"
)

// Registration is one handler bound to a point. Position is the handler's
// index within its point's list.
type Registration struct {
	Point    hook.Point
	Position int
	Label    string
	Handler  hook.Handler
}

// Name labels the registration in diagnostics, e.g. "ext.risor#2".
func (r Registration) Name() string {
	return fmt.Sprintf("%s#%d", r.Label, r.Position+1)
}

// Registry maps points to handlers in registration order.
type Registry struct {
	handlers map[hook.Point][]Registration
	total    int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{handlers: make(map[hook.Point][]Registration)}
}

// Register appends h to p's handlers.
func (r *Registry) Register(p hook.Point, label string, h hook.Handler) (Registration, error) {
	if !p.Valid() {
		return Registration{}, fmt.Errorf("registry: invalid point %v", p)
	}
	if h == nil {
		return Registration{}, fmt.Errorf("registry: nil handler for %s", p)
	}
	reg := Registration{Point: p, Position: len(r.handlers[p]), Label: label, Handler: h}
	r.handlers[p] = append(r.handlers[p], reg)
	r.total++
	return reg, nil
}

// RegisterName resolves name with hook.ParsePoint and registers h. ok is
// false when name is not a point; the caller forwards such names to the
// capability surface.
func (r *Registry) RegisterName(name, label string, h hook.Handler) (reg Registration, ok bool, err error) {
	p, found := hook.ParsePoint(name)
	if !found {
		return Registration{}, false, nil
	}
	reg, err = r.Register(p, label, h)
	return reg, true, err
}

// Handlers returns p's registrations in order. The slice is a snapshot;
// registering during a dispatch does not affect it.
func (r *Registry) Handlers(p hook.Point) []Registration {
	hs := r.handlers[p]
	out := make([]Registration, len(hs))
	copy(out, hs)
	return out
}

// Count returns the number of handlers for p.
func (r *Registry) Count(p hook.Point) int { return len(r.handlers[p]) }

// Len returns the total number of registrations.
func (r *Registry) Len() int { return r.total }

// Reset drops every registration.
func (r *Registry) Reset() {
	r.handlers = make(map[hook.Point][]Registration)
	r.total = 0
}
