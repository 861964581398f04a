// Package scope provides the nested, parent-linked bookkeeping contexts that
// extension handlers use to carry state across traversal steps.
package scope

import (
	"fmt"

	"github.com/jward/typehook/internal/diag"
)

// Scope is a mutable name/value mapping with a read-only link to the scope
// that was current when it was pushed. Keys keep insertion order.
type Scope struct {
	parent *Scope
	values map[string]any
	keys   []string
}

func newScope(parent *Scope) *Scope {
	return &Scope{parent: parent, values: make(map[string]any)}
}

// Parent returns the enclosing scope, or nil for the outermost one.
func (s *Scope) Parent() *Scope { return s.parent }

// Get returns the value stored under name in this scope only.
func (s *Scope) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Set stores v under name in this scope.
func (s *Scope) Set(name string, v any) {
	if _, ok := s.values[name]; !ok {
		s.keys = append(s.keys, name)
	}
	s.values[name] = v
}

// Has reports whether name is set in this scope.
func (s *Scope) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Delete removes name from this scope.
func (s *Scope) Delete(name string) {
	if _, ok := s.values[name]; !ok {
		return
	}
	delete(s.values, name)
	for i, k := range s.keys {
		if k == name {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the names set in this scope in insertion order.
func (s *Scope) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of entries in this scope.
func (s *Scope) Len() int { return len(s.keys) }

// Lookup searches this scope and then its parents.
func (s *Scope) Lookup(name string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.values[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (s *Scope) String() string {
	return fmt.Sprintf("scope%v", s.keys)
}

// Stack is the per-unit stack of handler scopes. It is not safe for
// concurrent use.
type Stack struct {
	scopes []*Scope
}

// NewStack returns an empty stack.
func NewStack() *Stack {
	return &Stack{}
}

// Push creates a scope parented to the current one and makes it current.
func (st *Stack) Push() *Scope {
	s := newScope(st.Current())
	st.scopes = append(st.scopes, s)
	return s
}

// Pop removes and returns the current scope.
func (st *Stack) Pop() (*Scope, error) {
	if len(st.scopes) == 0 {
		return nil, &diag.StateError{Stack: "scope stack"}
	}
	top := st.scopes[len(st.scopes)-1]
	st.scopes[len(st.scopes)-1] = nil
	st.scopes = st.scopes[:len(st.scopes)-1]
	return top, nil
}

// Current returns the top scope without removing it, or nil.
func (st *Stack) Current() *Scope {
	if len(st.scopes) == 0 {
		return nil
	}
	return st.scopes[len(st.scopes)-1]
}

// Depth returns the number of live scopes.
func (st *Stack) Depth() int { return len(st.scopes) }

// With pushes a scope, runs body with it and pops it again on every exit
// path. A panic in body is re-raised after the pop.
func (st *Stack) With(body func(*Scope) error) (err error) {
	s := st.Push()
	defer func() {
		if _, popErr := st.Pop(); popErr != nil && err == nil {
			err = popErr
		}
	}()
	return body(s)
}
