// Package synth fabricates method descriptors that extensions contribute
// to a unit without a declaration in the checked program.
package synth

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/jward/typehook/internal/ast"
)

// ReturnSource is the tagged return-type variant of a descriptor: Fixed or
// Deferred.
type ReturnSource interface {
	resolve() *ast.Type
}

// Fixed is a return type decided at creation.
type Fixed struct {
	Type *ast.Type
}

func (f Fixed) resolve() *ast.Type {
	if f.Type == nil {
		return ast.Object
	}
	return f.Type
}

// Supplier computes a deferred return type.
type Supplier func() (*ast.Type, error)

// Deferred recomputes its type on every query. A failing or panicking
// supplier yields ast.Object. Results are never cached.
type Deferred struct {
	Supply Supplier
}

func (d Deferred) resolve() (t *ast.Type) {
	defer func() {
		if r := recover(); r != nil {
			t = ast.Object
		}
	}()
	if d.Supply == nil {
		return ast.Object
	}
	got, err := d.Supply()
	if err != nil || got == nil {
		return ast.Object
	}
	return got
}

// Descriptor is a synthetic method. It has no parameters and no declared
// exceptions. Copies keep the identifier and therefore stay generated.
type Descriptor struct {
	ID     uint64
	Name   string
	Source ReturnSource
}

func (d Descriptor) MethodName() string { return d.Name }

// ReturnType resolves the descriptor's return source.
func (d Descriptor) ReturnType() *ast.Type {
	if d.Source == nil {
		return ast.Object
	}
	return d.Source.resolve()
}

// Params is always empty.
func (d Descriptor) Params() []ast.Param { return nil }

// Exceptions is always empty.
func (d Descriptor) Exceptions() []*ast.Type { return nil }

// IsDeferred reports whether the return type is computed lazily.
func (d Descriptor) IsDeferred() bool {
	_, ok := d.Source.(Deferred)
	return ok
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s#%d", d.Name, d.ID)
}

// nextID is process-wide so identifiers never collide between units.
var nextID atomic.Uint64

// Factory issues descriptors for one unit and remembers their identifiers.
type Factory struct {
	issued map[uint64]Descriptor
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{issued: make(map[uint64]Descriptor)}
}

func (f *Factory) issue(name string, src ReturnSource) Descriptor {
	d := Descriptor{ID: nextID.Add(1), Name: name, Source: src}
	f.issued[d.ID] = d
	return d
}

// Fixed creates a descriptor whose return type is t.
func (f *Factory) Fixed(name string, t *ast.Type) Descriptor {
	return f.issue(name, Fixed{Type: t})
}

// Deferred creates a descriptor whose return type is supplied on demand.
func (f *Factory) Deferred(name string, supply Supplier) Descriptor {
	return f.issue(name, Deferred{Supply: supply})
}

// IsGenerated reports whether ref is a descriptor issued by this factory.
func (f *Factory) IsGenerated(ref ast.MethodRef) bool {
	var id uint64
	switch d := ref.(type) {
	case Descriptor:
		id = d.ID
	case *Descriptor:
		if d == nil {
			return false
		}
		id = d.ID
	default:
		return false
	}
	_, ok := f.issued[id]
	return ok
}

// Count returns the number of issued descriptors.
func (f *Factory) Count() int { return len(f.issued) }

// Generated returns the issued descriptors in creation order.
func (f *Factory) Generated() []Descriptor {
	out := make([]Descriptor, 0, len(f.issued))
	for _, d := range f.issued {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
