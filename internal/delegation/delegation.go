// Package delegation tracks which type unqualified member lookups resolve
// against inside nested closures.
package delegation

import (
	"fmt"
	"strings"

	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/diag"
)

// Strategy decides the precedence between a closure's lexical owner and its
// delegate.
type Strategy int

const (
	OwnerFirst Strategy = iota
	DelegateFirst
	OwnerOnly
	DelegateOnly
	SelfFirst
)

var strategyNames = [...]string{"OWNER_FIRST", "DELEGATE_FIRST", "OWNER_ONLY", "DELEGATE_ONLY", "SELF_FIRST"}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// ParseStrategy accepts the upper-case names, case-insensitively.
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if strings.EqualFold(n, name) {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("delegation: unknown strategy %q", name)
}

// Target is one candidate receiver for an unqualified lookup.
type Target int

const (
	Self Target = iota
	Owner
	Delegate
)

func (t Target) String() string {
	switch t {
	case Self:
		return "self"
	case Owner:
		return "owner"
	case Delegate:
		return "delegate"
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// Frame is one delegation record. Parent is the frame that was active when
// this one was set.
type Frame struct {
	Type     *ast.Type
	Strategy Strategy
	Parent   *Frame
}

// Order returns the lookup precedence for the frame's strategy.
func (f *Frame) Order() []Target {
	switch f.Strategy {
	case DelegateFirst:
		return []Target{Delegate, Owner}
	case OwnerOnly:
		return []Target{Owner}
	case DelegateOnly:
		return []Target{Delegate}
	case SelfFirst:
		return []Target{Self, Owner, Delegate}
	default:
		return []Target{Owner, Delegate}
	}
}

// LookupFunc reports whether name resolves against the given target. The
// delegate type is passed for Delegate lookups and is nil otherwise.
type LookupFunc func(target Target, delegate *ast.Type, name string) bool

// Resolve returns the first target in the frame's order that resolves name.
func (f *Frame) Resolve(name string, lookup LookupFunc) (Target, bool) {
	for _, t := range f.Order() {
		var dt *ast.Type
		if t == Delegate {
			dt = f.Type
		}
		if lookup(t, dt, name) {
			return t, true
		}
	}
	return 0, false
}

// Stack holds the delegation frames of one unit. Only the top is active.
type Stack struct {
	top   *Frame
	depth int
}

// NewStack returns an empty stack.
func NewStack() *Stack { return &Stack{} }

// Set pushes a frame for t with strategy s on top of the current one.
func (st *Stack) Set(t *ast.Type, s Strategy) *Frame {
	st.top = &Frame{Type: t, Strategy: s, Parent: st.top}
	st.depth++
	return st.top
}

// Top returns the active frame, or nil.
func (st *Stack) Top() *Frame { return st.top }

// Depth returns the number of frames.
func (st *Stack) Depth() int { return st.depth }

// Pop removes the active frame.
func (st *Stack) Pop() (*Frame, error) {
	if st.top == nil {
		return nil, &diag.StateError{Stack: "delegation stack"}
	}
	f := st.top
	st.top = f.Parent
	st.depth--
	return f, nil
}

// Mark records the current depth so a closure scope can drop the frames it
// set when it exits.
func (st *Stack) Mark() int { return st.depth }

// Restore pops frames until the depth equals mark.
func (st *Stack) Restore(mark int) error {
	for st.depth > mark {
		if _, err := st.Pop(); err != nil {
			return err
		}
	}
	return nil
}

// Resolve resolves name against the active frame. Without a frame the owner
// is the only target.
func (st *Stack) Resolve(name string, lookup LookupFunc) (Target, bool) {
	if st.top == nil {
		if lookup(Owner, nil, name) {
			return Owner, true
		}
		return 0, false
	}
	return st.top.Resolve(name, lookup)
}
